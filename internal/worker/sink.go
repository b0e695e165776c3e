package worker

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/pinmap/internal/compose"
	"github.com/MeKo-Tech/pinmap/internal/render"
	"github.com/MeKo-Tech/pinmap/internal/tile"
	"github.com/MeKo-Tech/pinmap/internal/viewport"
)

// DirSink writes tiles as z{z}_x{x}_y{y}.png files into a directory.
type DirSink struct {
	Dir string
}

// Put implements Sink.
func (s DirSink) Put(c tile.Coords, data []byte) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.Dir, c.Path("png")), data, 0o644); err != nil {
		return fmt.Errorf("failed to write tile %s: %w", c, err)
	}
	return nil
}

// SceneFunc composes the scene for a viewport transform.
type SceneFunc func(t viewport.Transform) compose.Scene

// SceneRenderer rasterizes composed scenes into PNG tiles.
type SceneRenderer struct {
	Scene   SceneFunc
	Size    int
	Options render.RasterOptions
}

// NewSceneRenderer creates a renderer for size x size tiles.
func NewSceneRenderer(scene SceneFunc, size int, opts render.RasterOptions) *SceneRenderer {
	if size <= 0 {
		size = tile.DefaultSize
	}
	opts.Width, opts.Height = size, size
	opts.Direct = true
	return &SceneRenderer{Scene: scene, Size: size, Options: opts}
}

// RenderTile implements Renderer. Each call uses its own rasterizer.
func (r *SceneRenderer) RenderTile(ctx context.Context, c tile.Coords) ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid tile %s", c)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img := render.NewRasterizer(r.Options).Render(r.Scene(c.Transform(r.Size)))
	var buf bytes.Buffer
	if err := render.EncodePNG(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode tile %s: %w", c, err)
	}
	return buf.Bytes(), nil
}
