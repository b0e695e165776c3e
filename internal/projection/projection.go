// Package projection maps geographic coordinates onto the fixed logical canvas and back.
//
// Longitude is mapped linearly onto [0, Width]; latitude goes through the spherical
// Mercator formula scaled so that one full turn of longitude spans Width. The equator
// sits on Height/2.
package projection

import (
	"math"

	"github.com/MeKo-Tech/pinmap/internal/types"
	"github.com/paulmach/orb"
)

// Logical canvas size.
const (
	Width  = 800.0
	Height = 600.0
)

// Project converts lon/lat (degrees) to canvas coordinates.
// Latitudes at or beyond the poles have no Mercator image; y is NaN for them.
func Project(lon, lat float64) (x, y float64) {
	x = (lon + 180.0) * (Width / 360.0)

	if math.IsNaN(lat) || math.Abs(lat) >= 90 {
		return x, math.NaN()
	}

	latRad := lat * math.Pi / 180.0
	mercN := math.Log(math.Tan(math.Pi/4.0 + latRad/2.0))
	y = Height/2.0 - Width*mercN/(2.0*math.Pi)

	return x, y
}

// Unproject is the exact inverse of Project.
func Unproject(x, y float64) (lon, lat float64) {
	lon = x/Width*360.0 - 180.0

	mercN := (Height/2.0 - y) * (2.0 * math.Pi) / Width
	latRad := 2.0 * (math.Atan(math.Exp(mercN)) - math.Pi/4.0)
	lat = latRad * 180.0 / math.Pi

	return lon, lat
}

// ProjectPoint projects an orb point (lon, lat).
func ProjectPoint(p orb.Point) types.ScreenPoint {
	x, y := Project(p.Lon(), p.Lat())
	return types.ScreenPoint{X: x, Y: y}
}

// UnprojectPoint maps a canvas point back to an orb point (lon, lat).
func UnprojectPoint(p types.ScreenPoint) orb.Point {
	lon, lat := Unproject(p.X, p.Y)
	return orb.Point{lon, lat}
}

// Valid reports whether a projected coordinate pair is renderable.
func Valid(x, y float64) bool {
	return !math.IsNaN(x) && !math.IsNaN(y) && !math.IsInf(x, 0) && !math.IsInf(y, 0)
}

// Center is the canvas center.
func Center() types.ScreenPoint {
	return types.ScreenPoint{X: Width / 2, Y: Height / 2}
}
