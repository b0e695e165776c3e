package spatial

import (
	"github.com/MeKo-Tech/pinmap/internal/types"
	"github.com/paulmach/orb"
)

// Resolver maps a geographic point to its enclosing region.
type Resolver interface {
	Lookup(pt orb.Point) (types.Region, bool)
}

// entry caches the outer rings of a region together with their bounds.
type entry struct {
	rings  []orb.Ring
	bounds []orb.Bound
	bound  orb.Bound
}

// Index is a read-only resolver over an ordered region list.
// Each outer ring carries a precomputed bounding box so most rings are
// rejected without running the ray cast. Results are identical to
// FindRegionForPoint over the same list.
type Index struct {
	regions []types.Region
	entries []entry
	byID    map[string]int
}

// NewIndex builds an index. The slice order is preserved and must not be
// mutated afterwards.
func NewIndex(regions []types.Region) *Index {
	idx := &Index{
		regions: regions,
		entries: make([]entry, len(regions)),
		byID:    make(map[string]int, len(regions)),
	}

	for i, r := range regions {
		rings := r.OuterRings()
		e := entry{rings: rings, bounds: make([]orb.Bound, len(rings))}
		for j, ring := range rings {
			b := ring.Bound()
			e.bounds[j] = b
			if j == 0 {
				e.bound = b
			} else {
				e.bound = e.bound.Union(b)
			}
		}
		idx.entries[i] = e

		if _, dup := idx.byID[r.ID]; !dup {
			idx.byID[r.ID] = i
		}
	}

	return idx
}

// Lookup returns the first region (in list order) containing pt.
func (idx *Index) Lookup(pt orb.Point) (types.Region, bool) {
	for i := range idx.entries {
		e := &idx.entries[i]
		if len(e.rings) == 0 || !e.bound.Contains(pt) {
			continue
		}
		for j, ring := range e.rings {
			if !e.bounds[j].Contains(pt) {
				continue
			}
			if PointInRing(pt, ring) {
				return idx.regions[i], true
			}
		}
	}
	return types.Region{}, false
}

// ByID returns the region with the given id (first occurrence).
func (idx *Index) ByID(id string) (types.Region, bool) {
	i, ok := idx.byID[id]
	if !ok {
		return types.Region{}, false
	}
	return idx.regions[i], true
}

// Len returns the number of indexed regions.
func (idx *Index) Len() int {
	return len(idx.regions)
}

// Regions returns the indexed regions in lookup order.
func (idx *Index) Regions() []types.Region {
	return idx.regions
}
