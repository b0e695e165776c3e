// Package viewport owns the scale/translate mapping between canvas space and
// the rendered view, and the gesture state machine that mutates it.
package viewport

import (
	"fmt"
	"math"

	"github.com/MeKo-Tech/pinmap/internal/types"
)

// Transform maps canvas space to view space: view = canvas*K + (X, Y).
type Transform struct {
	K float64 `json:"k"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Identity is the unzoomed, untranslated view.
func Identity() Transform {
	return Transform{K: 1}
}

// Apply maps a canvas point into view space.
func (t Transform) Apply(p types.ScreenPoint) types.ScreenPoint {
	return types.ScreenPoint{X: p.X*t.K + t.X, Y: p.Y*t.K + t.Y}
}

// Invert maps a view point back into canvas space. K must be positive.
func (t Transform) Invert(p types.ScreenPoint) types.ScreenPoint {
	return types.ScreenPoint{X: (p.X - t.X) / t.K, Y: (p.Y - t.Y) / t.K}
}

// ZoomAbout rescales to k while keeping the canvas point under view point c fixed.
func (t Transform) ZoomAbout(c types.ScreenPoint, k float64) Transform {
	return Transform{
		K: k,
		X: c.X - (c.X-t.X)/t.K*k,
		Y: c.Y - (c.Y-t.Y)/t.K*k,
	}
}

// CenterOn returns a transform at scale k that puts canvas point p at view point c.
func CenterOn(p, c types.ScreenPoint, k float64) Transform {
	return Transform{K: k, X: c.X - p.X*k, Y: c.Y - p.Y*k}
}

// Translate shifts the view by (dx, dy).
func (t Transform) Translate(dx, dy float64) Transform {
	return Transform{K: t.K, X: t.X + dx, Y: t.Y + dy}
}

// Valid reports whether the transform is invertible and finite.
func (t Transform) Valid() bool {
	for _, v := range []float64{t.K, t.X, t.Y} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return t.K > 0
}

// SVG renders the transform as an SVG transform attribute.
func (t Transform) SVG() string {
	return fmt.Sprintf("translate(%g, %g) scale(%g)", t.X, t.Y, t.K)
}

func (t Transform) String() string {
	return fmt.Sprintf("k=%.3f x=%.2f y=%.2f", t.K, t.X, t.Y)
}
