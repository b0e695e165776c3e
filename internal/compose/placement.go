package compose

import (
	"math"

	"github.com/MeKo-Tech/pinmap/internal/pins"
	"github.com/MeKo-Tech/pinmap/internal/projection"
	"github.com/MeKo-Tech/pinmap/internal/spatial"
	"github.com/MeKo-Tech/pinmap/internal/types"
	"github.com/MeKo-Tech/pinmap/internal/viewport"
	"github.com/paulmach/orb"
)

// Placement is the result of mapping a click back to the map.
type Placement struct {
	Point    orb.Point
	Canvas   types.ScreenPoint
	RegionID string
	FlagCode string
}

// ViewToGeo maps a view-space point through the inverse transform and the
// inverse projection.
func ViewToGeo(t viewport.Transform, view types.ScreenPoint) (orb.Point, bool) {
	if !t.Valid() {
		return orb.Point{}, false
	}
	return CanvasToGeo(t.Invert(view))
}

// CanvasToGeo unprojects a canvas point.
func CanvasToGeo(canvas types.ScreenPoint) (orb.Point, bool) {
	pt := projection.UnprojectPoint(canvas)
	if math.IsNaN(pt[0]) || math.IsNaN(pt[1]) {
		return orb.Point{}, false
	}
	return pt, true
}

// Place resolves a canvas point to a geographic point and, when r is not
// nil, the region that contains it. Missing regions are not an error.
func Place(canvas types.ScreenPoint, r spatial.Resolver) (Placement, bool) {
	pt, ok := CanvasToGeo(canvas)
	if !ok {
		return Placement{}, false
	}
	pl := Placement{Point: pt, Canvas: canvas}
	if r == nil {
		return pl, true
	}
	if region, found := r.Lookup(pt); found {
		pl.RegionID = region.ID
		pl.FlagCode = pins.ISO3ToISO2(region.ID)
	}
	return pl, true
}
