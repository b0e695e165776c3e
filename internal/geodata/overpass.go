package geodata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/MeKo-Christian/go-overpass"
	"github.com/MeKo-Tech/pinmap/internal/types"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// DefaultOverpassEndpoint is the public Overpass interpreter.
const DefaultOverpassEndpoint = "https://overpass-api.de/api/interpreter"

// querier is the subset of overpass.Client used here.
type querier interface {
	Query(query string) (overpass.Result, error)
}

// OverpassSource fetches first-level administrative boundaries (states,
// provinces) of one country from the Overpass API.
type OverpassSource struct {
	client     querier
	ISO2       string
	AdminLevel int
}

// NewOverpassSource creates a source for the subdivisions of a country.
func NewOverpassSource(endpoint, iso2 string) *OverpassSource {
	if endpoint == "" {
		endpoint = DefaultOverpassEndpoint
	}
	// One request at a time (API etiquette).
	client := overpass.NewWithSettings(endpoint, 1, http.DefaultClient)
	return &OverpassSource{client: &client, ISO2: strings.ToUpper(iso2), AdminLevel: 4}
}

// Name implements Source.
func (s *OverpassSource) Name() string { return "overpass:" + s.ISO2 }

// Load implements Source. The go-overpass client has no context support, so
// ctx only short-circuits before the request is sent.
func (s *OverpassSource) Load(ctx context.Context) ([]types.Region, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result, err := s.client.Query(s.query())
	if err != nil {
		return nil, fmt.Errorf("overpass query failed: %w", err)
	}
	return RegionsFromOverpass(&result), nil
}

func (s *OverpassSource) query() string {
	return fmt.Sprintf(`
[out:json][timeout:180];
area["ISO3166-1"="%s"][admin_level=2]->.country;
(
  relation["boundary"="administrative"]["admin_level"="%d"](area.country);
);
(._;way(r););
out geom;
`, s.ISO2, s.AdminLevel)
}

// UnmarshalOverpassJSON decodes a raw Overpass JSON response.
func UnmarshalOverpassJSON(data []byte) (*overpass.Result, error) {
	var result overpass.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal overpass json: %w", err)
	}
	return &result, nil
}

// RegionsFromOverpass assembles boundary relations into regions, sorted by
// name so repeated fetches give a stable order. Relations without a name or
// without any closed outer ring are skipped.
func RegionsFromOverpass(result *overpass.Result) []types.Region {
	if result == nil {
		return nil
	}
	var regions []types.Region
	for _, rel := range result.Relations {
		if rel == nil {
			continue
		}
		name := rel.Tags["name:en"]
		if name == "" {
			name = rel.Tags["name"]
		}
		if name == "" {
			continue
		}
		geom := assembleRelation(rel)
		if geom == nil {
			continue
		}
		props := make(map[string]interface{}, len(rel.Tags)+1)
		for k, v := range rel.Tags {
			props[k] = v
		}
		props["osm_id"] = fmt.Sprintf("relation/%d", rel.ID)
		regions = append(regions, types.Region{
			ID:         fmt.Sprintf("relation/%d", rel.ID),
			Name:       name,
			Kind:       types.RegionSubdivision,
			Geometry:   geom,
			Properties: props,
		})
	}
	sort.SliceStable(regions, func(i, j int) bool { return regions[i].Name < regions[j].Name })
	return regions
}

// assembleRelation stitches outer and inner member ways into closed rings
// and attaches each inner ring to the first outer ring that contains it.
func assembleRelation(rel *overpass.Relation) orb.Geometry {
	var outer, inner []orb.LineString
	for _, m := range rel.Members {
		if m.Type != "way" || m.Way == nil || len(m.Way.Geometry) < 2 {
			continue
		}
		ls := make(orb.LineString, len(m.Way.Geometry))
		for i, p := range m.Way.Geometry {
			ls[i] = orb.Point{p.Lon, p.Lat}
		}
		if m.Role == "inner" {
			inner = append(inner, ls)
		} else {
			outer = append(outer, ls)
		}
	}

	outerRings := stitchRings(outer)
	if len(outerRings) == 0 {
		return nil
	}
	polys := make(orb.MultiPolygon, len(outerRings))
	for i, r := range outerRings {
		polys[i] = orb.Polygon{r}
	}
	for _, hole := range stitchRings(inner) {
		for i := range polys {
			if planar.RingContains(polys[i][0], hole[0]) {
				polys[i] = append(polys[i], hole)
				break
			}
		}
	}

	if len(polys) == 1 {
		return polys[0]
	}
	return polys
}

// stitchRings joins way segments end to end until each chain closes.
// Chains that never close are dropped.
func stitchRings(segments []orb.LineString) []orb.Ring {
	used := make([]bool, len(segments))
	var rings []orb.Ring

	for i := range segments {
		if used[i] {
			continue
		}
		used[i] = true
		chain := append(orb.LineString(nil), segments[i]...)

		for !closed(chain) {
			tail := chain[len(chain)-1]
			found := false
			for j := range segments {
				if used[j] {
					continue
				}
				seg := segments[j]
				switch tail {
				case seg[0]:
					chain = append(chain, seg[1:]...)
				case seg[len(seg)-1]:
					for k := len(seg) - 2; k >= 0; k-- {
						chain = append(chain, seg[k])
					}
				default:
					continue
				}
				used[j] = true
				found = true
				break
			}
			if !found {
				break
			}
		}

		if closed(chain) && len(chain) >= 4 {
			rings = append(rings, orb.Ring(chain))
		}
	}
	return rings
}

func closed(ls orb.LineString) bool {
	return len(ls) > 1 && ls[0] == ls[len(ls)-1]
}
