package geodata

import (
	"context"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/pinmap/internal/types"
	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
)

// ShapefileSource reads polygon regions from an ESRI shapefile, such as the
// Natural Earth admin-0 countries.
type ShapefileSource struct {
	Path       string
	IDFields   []string
	NameFields []string
}

// NewShapefileSource creates a source with Natural Earth field names.
func NewShapefileSource(path string) *ShapefileSource {
	return &ShapefileSource{
		Path:       path,
		IDFields:   []string{"ISO_A3", "ADM0_A3", "iso_a3", "ID", "id"},
		NameFields: []string{"NAME", "NAME_EN", "ADMIN", "name"},
	}
}

// Name implements Source.
func (s *ShapefileSource) Name() string { return s.Path }

// Load implements Source. Non-polygon shapes and shapes without an id are
// skipped. A shapefile without attributes is an error.
func (s *ShapefileSource) Load(ctx context.Context) ([]types.Region, error) {
	shape, err := shp.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open shapefile: %w", err)
	}
	defer shape.Close()

	fieldIdx := make(map[string]int)
	for i, f := range shape.Fields() {
		fieldIdx[strings.TrimRight(string(f.Name[:]), "\x00 ")] = i
	}
	if len(fieldIdx) == 0 {
		return nil, fmt.Errorf("shapefile %s has no attributes (missing .dbf?)", s.Path)
	}
	if !hasAnyField(fieldIdx, s.IDFields) {
		return nil, fmt.Errorf("shapefile %s has none of the id fields %v", s.Path, s.IDFields)
	}

	var regions []types.Region
	skipped := 0
	for shape.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, p := shape.Shape()
		poly, ok := p.(*shp.Polygon)
		if !ok {
			continue
		}
		geom := polygonGeometry(poly)
		if geom == nil {
			continue
		}

		props := make(map[string]interface{}, len(fieldIdx))
		for name, i := range fieldIdx {
			props[name] = strings.TrimSpace(shape.ReadAttribute(n, i))
		}
		id := firstAttr(props, s.IDFields)
		if id == "" {
			skipped++
			continue
		}
		regions = append(regions, types.Region{
			ID:         id,
			Name:       firstAttr(props, s.NameFields),
			Kind:       types.RegionCountry,
			Geometry:   geom,
			Properties: props,
		})
	}
	if len(regions) == 0 && skipped > 0 {
		return nil, fmt.Errorf("shapefile %s: no shape has an id", s.Path)
	}
	return regions, nil
}

func hasAnyField(fields map[string]int, names []string) bool {
	for _, n := range names {
		if _, ok := fields[n]; ok {
			return true
		}
	}
	return false
}

func firstAttr(props map[string]interface{}, keys []string) string {
	for _, k := range keys {
		if v, ok := props[k].(string); ok && v != "" && v != "-99" {
			return v
		}
	}
	return ""
}

// polygonGeometry splits a shapefile polygon into parts. Clockwise parts
// are outer rings; counter-clockwise parts are holes of the preceding outer.
func polygonGeometry(p *shp.Polygon) orb.Geometry {
	var polys orb.MultiPolygon
	for i := range p.Parts {
		start := int(p.Parts[i])
		end := len(p.Points)
		if i+1 < len(p.Parts) {
			end = int(p.Parts[i+1])
		}
		if start < 0 || end > len(p.Points) || end-start < 3 {
			continue
		}
		ring := make(orb.Ring, 0, end-start)
		for _, pt := range p.Points[start:end] {
			ring = append(ring, orb.Point{pt.X, pt.Y})
		}

		if ring.Orientation() == orb.CW || len(polys) == 0 {
			polys = append(polys, orb.Polygon{ring})
			continue
		}
		last := len(polys) - 1
		polys[last] = append(polys[last], ring)
	}

	switch len(polys) {
	case 0:
		return nil
	case 1:
		return polys[0]
	default:
		return polys
	}
}
