package types

import (
	"github.com/paulmach/orb"
)

// RegionKind distinguishes country-level regions from subdivisions.
type RegionKind string

const (
	RegionCountry     RegionKind = "country"
	RegionSubdivision RegionKind = "subdivision"
)

// Region is a named polygonal area loaded once per session.
type Region struct {
	ID         string                 // Stable key: ISO3 code or "<ISO2>_<Name>" for subdivisions
	Name       string                 // Display name
	Kind       RegionKind             // Country or subdivision
	Geometry   orb.Geometry           // orb.Polygon or orb.MultiPolygon, [lon, lat] order
	Properties map[string]interface{} // Source properties, passed through untouched
}

// Polygons returns the constituent polygons of the region geometry.
// Geometries other than Polygon and MultiPolygon yield nil.
func (r Region) Polygons() []orb.Polygon {
	switch g := r.Geometry.(type) {
	case orb.Polygon:
		return []orb.Polygon{g}
	case orb.MultiPolygon:
		return []orb.Polygon(g)
	default:
		return nil
	}
}

// OuterRings returns the first ring of every constituent polygon.
// Holes are not part of containment tests.
func (r Region) OuterRings() []orb.Ring {
	polys := r.Polygons()
	rings := make([]orb.Ring, 0, len(polys))
	for _, p := range polys {
		if len(p) == 0 {
			continue
		}
		rings = append(rings, p[0])
	}
	return rings
}

// Bound returns the bounding box of the region geometry.
func (r Region) Bound() orb.Bound {
	if r.Geometry == nil {
		return orb.Bound{}
	}
	return r.Geometry.Bound()
}

// RegionSet is an ordered, immutable list of regions.
// Order matters: lookups resolve overlaps by the first match.
type RegionSet []Region

// ByID returns the region with the given id.
func (rs RegionSet) ByID(id string) (Region, bool) {
	for _, r := range rs {
		if r.ID == id {
			return r, true
		}
	}
	return Region{}, false
}

// IDs returns the region ids in list order.
func (rs RegionSet) IDs() []string {
	ids := make([]string, len(rs))
	for i, r := range rs {
		ids[i] = r.ID
	}
	return ids
}
