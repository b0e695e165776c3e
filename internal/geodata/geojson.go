// Package geodata ingests region geometry from GeoJSON, shapefiles and the
// Overpass API and merges it into the ordered region list used for lookups.
package geodata

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/pinmap/internal/types"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ErrUnsupportedGeometry marks a feature whose geometry is not polygonal.
var ErrUnsupportedGeometry = errors.New("unsupported geometry")

// idProperties are tried in order when a feature has no top-level id.
var idProperties = []string{"id", "iso_a3", "ISO_A3", "ADM0_A3", "adm0_a3"}

// nameProperties are tried in order for the display name.
var nameProperties = []string{"name", "NAME", "name_en", "NAME_EN", "ADMIN", "admin"}

// DecodeGeoJSON converts a FeatureCollection into regions, keeping
// Polygon and MultiPolygon features in document order. Other geometries
// are skipped.
func DecodeGeoJSON(data []byte) ([]types.Region, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse GeoJSON: %w", err)
	}

	regions := make([]types.Region, 0, len(fc.Features))
	for i, f := range fc.Features {
		r, err := featureToRegion(f)
		if errors.Is(err, ErrUnsupportedGeometry) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		regions = append(regions, r)
	}
	return regions, nil
}

func featureToRegion(f *geojson.Feature) (types.Region, error) {
	if f == nil || f.Geometry == nil {
		return types.Region{}, ErrUnsupportedGeometry
	}
	var geom orb.Geometry
	switch g := f.Geometry.(type) {
	case orb.Polygon:
		geom = g
	case orb.MultiPolygon:
		geom = g
	default:
		return types.Region{}, fmt.Errorf("%w: %s", ErrUnsupportedGeometry, f.Geometry.GeoJSONType())
	}

	return types.Region{
		ID:         featureID(f),
		Name:       firstString(f.Properties, nameProperties),
		Kind:       types.RegionCountry,
		Geometry:   geom,
		Properties: map[string]interface{}(f.Properties),
	}, nil
}

func featureID(f *geojson.Feature) string {
	switch id := f.ID.(type) {
	case string:
		if id != "" {
			return id
		}
	case float64:
		return fmt.Sprintf("%d", int64(id))
	case json.Number:
		return id.String()
	}
	return firstString(f.Properties, idProperties)
}

func firstString(props geojson.Properties, keys []string) string {
	for _, k := range keys {
		if v, ok := props[k].(string); ok && strings.TrimSpace(v) != "" && v != "-99" {
			return v
		}
	}
	return ""
}

// EncodeGeoJSON writes regions as a FeatureCollection. The region id goes
// to the feature id and the display name to properties.name.
func EncodeGeoJSON(regions []types.Region) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for _, r := range regions {
		if r.Geometry == nil {
			continue
		}
		f := geojson.NewFeature(r.Geometry)
		f.ID = r.ID
		for k, v := range r.Properties {
			f.Properties[k] = v
		}
		f.Properties["name"] = r.Name
		f.Properties["kind"] = string(r.Kind)
		fc.Append(f)
	}

	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GeoJSON: %w", err)
	}
	return data, nil
}
