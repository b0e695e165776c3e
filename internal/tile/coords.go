// Package tile maps XYZ map tiles onto the pin map's viewport transform.
//
// The canvas projection is Web Mercator scaled so that 360 degrees of
// longitude span projection.Width, so a tile is just a transform that
// scales the canvas to the tile's global pixel grid and shifts it.
package tile

import (
	"fmt"
	"math"

	"github.com/MeKo-Tech/pinmap/internal/projection"
	"github.com/MeKo-Tech/pinmap/internal/viewport"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// DefaultSize is the tile edge length in pixels.
const DefaultSize = 256

// MaxZoom bounds tile requests.
const MaxZoom = 12

// Coords is a tile coordinate (z/x/y), y counted from the north.
type Coords struct {
	Z uint32
	X uint32
	Y uint32
}

// NewCoords creates a new Coords from zoom, x, y values.
func NewCoords(z, x, y uint32) Coords {
	return Coords{Z: z, X: x, Y: y}
}

// String returns the tile coordinate as "z{zoom}_x{x}_y{y}".
func (c Coords) String() string {
	return fmt.Sprintf("z%d_x%d_y%d", c.Z, c.X, c.Y)
}

// Path returns the file name for this tile.
func (c Coords) Path(extension string) string {
	return fmt.Sprintf("%s.%s", c.String(), extension)
}

// Valid reports whether x and y exist at zoom z.
func (c Coords) Valid() bool {
	if c.Z > MaxZoom {
		return false
	}
	n := uint32(1) << c.Z
	return c.X < n && c.Y < n
}

// Tile returns the maptile.Tile for this coordinate.
func (c Coords) Tile() maptile.Tile {
	return maptile.New(c.X, c.Y, maptile.Zoom(c.Z))
}

// Bound returns the geographic bounds of the tile.
func (c Coords) Bound() orb.Bound {
	return c.Tile().Bound()
}

// Center returns the center of the tile as (lon, lat).
func (c Coords) Center() (float64, float64) {
	b := c.Bound()
	return (b.Min.Lon() + b.Max.Lon()) / 2, (b.Min.Lat() + b.Max.Lat()) / 2
}

// Transform is the viewport transform that draws this tile on a size x size
// output: k = size*2^z/W, x = -size*x, y = size*2^(z-1) - k*H/2 - size*y.
func (c Coords) Transform(size int) viewport.Transform {
	s := float64(size)
	scale := math.Ldexp(1, int(c.Z))
	k := s * scale / projection.Width
	return viewport.Transform{
		K: k,
		X: -s * float64(c.X),
		Y: s*scale/2 - k*projection.Height/2 - s*float64(c.Y),
	}
}

// ParseCoords parses a tile string like "z3_x4_y2" into Coords.
func ParseCoords(s string) (Coords, error) {
	var c Coords
	n, err := fmt.Sscanf(s, "z%d_x%d_y%d", &c.Z, &c.X, &c.Y)
	if err != nil || n != 3 {
		return Coords{}, fmt.Errorf("invalid tile coordinate format: %s", s)
	}
	return c, nil
}

// TilesInBBox returns all tiles covering bbox [minLon, minLat, maxLon, maxLat]
// for every zoom in [zoomMin, zoomMax], computed per zoom level.
func TilesInBBox(bbox [4]float64, zoomMin, zoomMax int) []Coords {
	tiles := make([]Coords, 0, TileCount(bbox, zoomMin, zoomMax))
	for z := zoomMin; z <= zoomMax; z++ {
		minX, minY, maxX, maxY := span(bbox, z)
		for x := minX; x <= maxX; x++ {
			for y := minY; y <= maxY; y++ {
				tiles = append(tiles, NewCoords(uint32(z), x, y))
			}
		}
	}
	return tiles
}

// TileCount returns the number of tiles TilesInBBox would produce.
func TileCount(bbox [4]float64, zoomMin, zoomMax int) int {
	count := 0
	for z := zoomMin; z <= zoomMax; z++ {
		minX, minY, maxX, maxY := span(bbox, z)
		count += int(maxX-minX+1) * int(maxY-minY+1)
	}
	return count
}

// WorldBBox covers the renderable latitude range of Web Mercator.
var WorldBBox = [4]float64{-180, -85.0511, 179.9999, 85.0511}

func span(bbox [4]float64, z int) (minX, minY, maxX, maxY uint32) {
	zoom := maptile.Zoom(z)
	a := maptile.At(orb.Point{bbox[0], bbox[1]}, zoom)
	b := maptile.At(orb.Point{bbox[2], bbox[3]}, zoom)

	minX, maxX = a.X, b.X
	if minX > maxX {
		minX, maxX = maxX, minX
	}
	// maptile y grows southward, so the min latitude has the larger y.
	minY, maxY = a.Y, b.Y
	if minY > maxY {
		minY, maxY = maxY, minY
	}
	return minX, minY, maxX, maxY
}
