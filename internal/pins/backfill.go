package pins

import (
	"github.com/MeKo-Tech/pinmap/internal/spatial"
	"github.com/MeKo-Tech/pinmap/internal/types"
)

// Backfill resolves the region of every pin that has no LocationID. It
// returns a new slice and whether any pin changed. Pins outside every
// region are left untouched. A present FlagCode is kept.
func Backfill(list []types.Pin, r spatial.Resolver) ([]types.Pin, bool) {
	out := make([]types.Pin, len(list))
	copy(out, list)
	if r == nil {
		return out, false
	}

	changed := false
	for i, p := range out {
		if p.LocationID != "" {
			continue
		}
		region, ok := r.Lookup(p.Point())
		if !ok {
			continue
		}
		out[i].LocationID = region.ID
		if p.FlagCode == "" {
			out[i].FlagCode = ISO3ToISO2(region.ID)
		}
		changed = true
	}
	return out, changed
}

// Visited returns the set of region ids referenced by at least one pin.
func Visited(list []types.Pin) map[string]bool {
	v := make(map[string]bool, len(list))
	for _, p := range list {
		if p.LocationID != "" {
			v[p.LocationID] = true
		}
	}
	return v
}
