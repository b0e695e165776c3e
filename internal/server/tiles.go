package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/pinmap/internal/compose"
	"github.com/MeKo-Tech/pinmap/internal/mbtiles"
	"github.com/MeKo-Tech/pinmap/internal/tile"
	"github.com/MeKo-Tech/pinmap/internal/viewport"
	"github.com/MeKo-Tech/pinmap/internal/worker"
)

// parseTilePath accepts "z{z}_x{x}_y{y}.png" or "{z}/{x}/{y}.png".
func parseTilePath(p string) (tile.Coords, error) {
	p = strings.TrimPrefix(p, "/")
	p = strings.TrimSuffix(p, ".png")

	if strings.HasPrefix(p, "z") {
		c, err := tile.ParseCoords(p)
		if err != nil {
			return tile.Coords{}, err
		}
		if !c.Valid() {
			return tile.Coords{}, fmt.Errorf("tile out of range: %s", c)
		}
		return c, nil
	}

	parts := strings.Split(p, "/")
	if len(parts) != 3 {
		return tile.Coords{}, fmt.Errorf("invalid tile path: %s", p)
	}
	var nums [3]uint32
	for i, part := range parts {
		v, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return tile.Coords{}, fmt.Errorf("invalid tile path: %s", p)
		}
		nums[i] = uint32(v)
	}
	c := tile.NewCoords(nums[0], nums[1], nums[2])
	if !c.Valid() {
		return tile.Coords{}, fmt.Errorf("tile out of range: %s", c)
	}
	return c, nil
}

// tileScene composes a neutral scene (no hover or selection) for a tile.
func (s *Server) tileScene(t viewport.Transform) compose.Scene {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.SceneFor(t, compose.UIState{}, nil)
}

func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	c, err := parseTilePath(r.PathValue("tile"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.serveTile(w, r, c)
}

func (s *Server) handleTileZXY(w http.ResponseWriter, r *http.Request) {
	c, err := parseTilePath(r.PathValue("z") + "/" + r.PathValue("x") + "/" + r.PathValue("y"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.serveTile(w, r, c)
}

func (s *Server) serveTile(w http.ResponseWriter, r *http.Request, c tile.Coords) {
	var (
		data []byte
		err  error
	)
	if s.tiles != nil {
		data, err = s.tiles.Get(c)
		if errors.Is(err, mbtiles.ErrTileNotFound) {
			http.NotFound(w, r)
			return
		}
	} else {
		data, err = s.renderTile(r.Context(), c)
	}
	if err != nil {
		s.log().Error("Failed to serve tile", "tile", c.String(), "error", err)
		http.Error(w, "failed to render tile", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", s.cfg.CacheControl)
	_, _ = w.Write(data)
}

// renderTile rasterizes one tile, bounded by the render semaphore.
func (s *Server) renderTile(ctx context.Context, c tile.Coords) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RenderTimeout)
	defer cancel()

	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-ctx.Done():
		return nil, fmt.Errorf("timed out waiting for render slot: %w", ctx.Err())
	}

	start := time.Now()
	renderer := worker.NewSceneRenderer(s.tileScene, s.cfg.TileSize, s.cfg.Raster)
	data, err := renderer.RenderTile(ctx, c)
	if err != nil {
		return nil, err
	}
	s.observeRender("tile", start)
	s.log().Debug("Rendered tile on demand", "tile", c.String(), "duration", time.Since(start))
	return data, nil
}
