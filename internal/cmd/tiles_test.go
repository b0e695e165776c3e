package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/pinmap/internal/tile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBBox(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    [4]float64
		wantErr bool
	}{
		{"world", "-180,-85.0511,179.9999,85.0511", tile.WorldBBox, false},
		{"with spaces", "25, 22, 35, 31", [4]float64{25, 22, 35, 31}, false},
		{"western hemisphere", "-125,24,-66,50", [4]float64{-125, 24, -66, 50}, false},
		{"too few values", "25,22,35", [4]float64{}, true},
		{"too many values", "25,22,35,31,0", [4]float64{}, true},
		{"invalid number", "west,22,35,31", [4]float64{}, true},
		{"minLon >= maxLon", "35,22,25,31", [4]float64{}, true},
		{"minLat >= maxLat", "25,31,35,31", [4]float64{}, true},
		{"empty", "", [4]float64{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseBBox(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseBBox(%q) expected error, got nil", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseBBox(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("parseBBox(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestScanTilesDirectory(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "more")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	files := []string{
		filepath.Join(dir, "z0_x0_y0.png"),
		filepath.Join(dir, "z2_x3_y1.png"),
		filepath.Join(nested, "z1_x1_y0.png"),
		filepath.Join(dir, "z1_x5_y0.png"), // out of range
		filepath.Join(dir, "readme.txt"),
		filepath.Join(dir, "z1_x0_y0@2x.png"),
	}
	for _, f := range files {
		require.NoError(t, os.WriteFile(f, []byte("x"), 0o644))
	}

	tiles, minZoom, maxZoom, err := scanTilesDirectory(dir)
	require.NoError(t, err)
	assert.Len(t, tiles, 3)
	assert.Equal(t, 0, minZoom)
	assert.Equal(t, 2, maxZoom)

	var coords []tile.Coords
	for _, tf := range tiles {
		coords = append(coords, tf.coords)
	}
	assert.Contains(t, coords, tile.NewCoords(1, 1, 0))
}

func TestScanTilesDirectoryEmpty(t *testing.T) {
	tiles, minZoom, maxZoom, err := scanTilesDirectory(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, tiles)
	assert.Equal(t, 0, minZoom)
	assert.Equal(t, 0, maxZoom)
}
