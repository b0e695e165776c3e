// Package spatial resolves geographic points to the regions that contain them.
package spatial

import (
	"github.com/MeKo-Tech/pinmap/internal/types"
	"github.com/paulmach/orb"
)

// PointInRing reports whether pt lies inside ring using the even-odd rule.
// The ring is closed implicitly; rings with fewer than 3 vertices contain nothing.
// Horizontal edges never count as a crossing. Points exactly on an edge may go
// either way but the answer is deterministic.
func PointInRing(pt orb.Point, ring orb.Ring) bool {
	n := len(ring)
	if n < 3 {
		return false
	}

	x, y := pt[0], pt[1]
	inside := false

	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]

		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}

	return inside
}

// regionContains tests only the outer ring of every constituent polygon.
func regionContains(r types.Region, pt orb.Point) bool {
	for _, ring := range r.OuterRings() {
		if PointInRing(pt, ring) {
			return true
		}
	}
	return false
}

// FindRegionForPoint scans regions in order and returns the first one whose outer
// rings contain pt. Overlaps are resolved purely by list order.
func FindRegionForPoint(pt orb.Point, regions []types.Region) (types.Region, bool) {
	for _, r := range regions {
		if r.Geometry == nil {
			continue
		}
		if regionContains(r, pt) {
			return r, true
		}
	}
	return types.Region{}, false
}
