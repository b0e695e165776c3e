package worker

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MeKo-Tech/pinmap/internal/compose"
	"github.com/MeKo-Tech/pinmap/internal/render"
	"github.com/MeKo-Tech/pinmap/internal/theme"
	"github.com/MeKo-Tech/pinmap/internal/tile"
	"github.com/MeKo-Tech/pinmap/internal/types"
	"github.com/MeKo-Tech/pinmap/internal/viewport"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRenderer struct {
	delay time.Duration
	fail  map[tile.Coords]bool
	calls atomic.Int32
}

func (f *fakeRenderer) RenderTile(ctx context.Context, c tile.Coords) ([]byte, error) {
	f.calls.Add(1)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(f.delay):
	}
	if f.fail[c] {
		return nil, errors.New("simulated failure")
	}
	return []byte(c.String()), nil
}

type memorySink struct {
	mu    sync.Mutex
	tiles map[tile.Coords][]byte
}

func (m *memorySink) Put(c tile.Coords, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tiles == nil {
		m.tiles = make(map[tile.Coords][]byte)
	}
	m.tiles[c] = data
	return nil
}

func TestPoolRendersIntoSink(t *testing.T) {
	r := &fakeRenderer{delay: time.Millisecond}
	sink := &memorySink{}
	var progressCalls atomic.Int32

	pool := New(Config{
		Workers:    3,
		Renderer:   r,
		Sink:       sink,
		OnProgress: func(completed, total, failed int) { progressCalls.Add(1) },
	})

	tiles := tile.TilesInBBox(tile.WorldBBox, 0, 2)
	results := pool.Run(context.Background(), tiles)

	require.Len(t, results, len(tiles))
	for _, res := range results {
		assert.NoError(t, res.Err)
		assert.Equal(t, len(res.Coords.String()), res.Bytes)
	}
	assert.Len(t, sink.tiles, len(tiles))
	assert.Equal(t, int32(len(tiles)), r.calls.Load())
	assert.Equal(t, int32(len(tiles)), progressCalls.Load())
}

func TestPoolReportsFailures(t *testing.T) {
	bad := tile.NewCoords(1, 1, 0)
	r := &fakeRenderer{fail: map[tile.Coords]bool{bad: true}}
	sink := &memorySink{}

	results := New(Config{Workers: 2, Renderer: r, Sink: sink}).Run(context.Background(), tile.TilesInBBox(tile.WorldBBox, 1, 1))

	require.Len(t, results, 4)
	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			assert.Equal(t, bad, res.Coords)
		}
	}
	assert.Equal(t, 1, failed)
	assert.Len(t, sink.tiles, 3)
}

func TestPoolCancellation(t *testing.T) {
	r := &fakeRenderer{delay: 100 * time.Millisecond}
	tiles := tile.TilesInBBox(tile.WorldBBox, 2, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	results := New(Config{Workers: 2, Renderer: r}).Run(ctx, tiles)

	assert.Less(t, time.Since(start), time.Second)
	require.Len(t, results, len(tiles), "every tile gets a result")
	cancelled := 0
	for _, res := range results {
		if errors.Is(res.Err, context.DeadlineExceeded) {
			cancelled++
		}
	}
	assert.Equal(t, len(tiles), cancelled)
}

func TestPoolEmpty(t *testing.T) {
	assert.Nil(t, New(Config{}).Run(context.Background(), nil))
}

func TestDirSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tiles")
	c := tile.NewCoords(2, 1, 3)
	require.NoError(t, DirSink{Dir: dir}.Put(c, []byte("png")))

	data, err := os.ReadFile(filepath.Join(dir, "z2_x1_y3.png"))
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))
}

func TestSceneRendererProducesTiles(t *testing.T) {
	regions := []types.Region{{ID: "EQ", Geometry: orb.Polygon{{{-10, -10}, {10, -10}, {10, 10}, {-10, 10}, {-10, -10}}}}}
	palette := theme.LightPalette()
	scene := func(tr viewport.Transform) compose.Scene {
		return compose.Compose(compose.Input{
			Regions:   regions,
			Transform: tr,
			Profile:   compose.DesktopProfile,
			Palette:   palette,
		})
	}

	r := NewSceneRenderer(scene, 64, render.RasterOptions{})
	data, err := r.RenderTile(context.Background(), tile.NewCoords(0, 0, 0))
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())

	// z0 puts the equator and prime meridian at the tile center.
	got := img.At(32, 32)
	assert.Equal(t, theme.RGBA(palette.Country, 1), got)

	_, err = r.RenderTile(context.Background(), tile.NewCoords(1, 2, 0))
	require.Error(t, err)
}
