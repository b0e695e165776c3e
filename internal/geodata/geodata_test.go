package geodata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/MeKo-Christian/go-overpass"
	"github.com/MeKo-Tech/pinmap/internal/types"
	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCollection = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": "POL", "properties": {"name": "Poland"},
     "geometry": {"type": "Polygon", "coordinates": [[[14,49],[24,49],[24,55],[14,55],[14,49]]]}},
    {"type": "Feature", "properties": {"iso_a3": "EGY", "name": "Egypt"},
     "geometry": {"type": "MultiPolygon", "coordinates": [[[[25,22],[35,22],[35,31],[25,31],[25,22]]]]}},
    {"type": "Feature", "id": "PT", "properties": {"name": "A point"},
     "geometry": {"type": "Point", "coordinates": [1, 2]}},
    {"type": "Feature", "id": 840, "properties": {"name": "United States of America"},
     "geometry": {"type": "Polygon", "coordinates": [[[-125,25],[-67,25],[-67,49],[-125,49],[-125,25]]]}}
  ]
}`

func rect(x0, y0, x1, y1 float64) orb.Ring {
	return orb.Ring{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}}
}

func TestDecodeGeoJSON(t *testing.T) {
	regions, err := DecodeGeoJSON([]byte(sampleCollection))
	require.NoError(t, err)
	require.Len(t, regions, 3, "point feature should be skipped")

	assert.Equal(t, "POL", regions[0].ID)
	assert.Equal(t, "Poland", regions[0].Name)
	assert.IsType(t, orb.Polygon{}, regions[0].Geometry)

	assert.Equal(t, "EGY", regions[1].ID, "id falls back to iso_a3")
	assert.IsType(t, orb.MultiPolygon{}, regions[1].Geometry)

	assert.Equal(t, "840", regions[2].ID, "numeric ids are formatted as integers")
	for _, r := range regions {
		assert.Equal(t, types.RegionCountry, r.Kind)
	}
}

func TestDecodeGeoJSONInvalid(t *testing.T) {
	_, err := DecodeGeoJSON([]byte(`{"type": "nope"`))
	require.Error(t, err)
}

func TestEncodeGeoJSONRoundTripKeepsIdentity(t *testing.T) {
	in := []types.Region{
		{ID: "US_Texas", Name: "Texas (USA)", Kind: types.RegionSubdivision, Geometry: orb.Polygon{rect(0, 0, 1, 1)}},
		{ID: "EMPTY", Name: "No geometry"},
	}
	data, err := EncodeGeoJSON(in)
	require.NoError(t, err)

	out, err := DecodeGeoJSON(data)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "US_Texas", out[0].ID)
	assert.Equal(t, "Texas (USA)", out[0].Name)
	assert.Equal(t, "subdivision", out[0].Properties["kind"])
}

func TestSubdivisionID(t *testing.T) {
	tests := []struct {
		iso2, name, want string
	}{
		{"US", "Texas", "US_Texas"},
		{"US", "New York", "US_NewYork"},
		{"US", "District of Columbia", "US_DistrictofColumbia"},
		{"CA", " Nova\tScotia ", "CA_NovaScotia"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, SubdivisionID(tt.iso2, tt.name))
		})
	}
}

func TestMerge(t *testing.T) {
	countries := []types.Region{
		{ID: "ATA", Name: "Antarctica"},
		{ID: "SWZ", Name: "Swaziland"},
		{ID: "USA", Name: "United States of America"},
		{ID: "POL", Name: "Poland"},
	}
	states := SubdivisionSet{
		Decomposition: USDecomposition,
		Regions: []types.Region{
			{ID: "relation/1", Name: "New York"},
			{ID: "relation/2", Name: "Texas"},
		},
	}

	merged := Merge(DefaultMergeOptions(), countries, states)
	ids := types.RegionSet(merged).IDs()
	assert.Equal(t, []string{"SWZ", "POL", "US_NewYork", "US_Texas"}, ids)

	assert.Equal(t, "Eswatini", merged[0].Name)
	assert.Equal(t, "New York (USA)", merged[2].Name)
	assert.Equal(t, types.RegionSubdivision, merged[2].Kind)

	// inputs untouched
	assert.Equal(t, "Swaziland", countries[1].Name)
	assert.Equal(t, "relation/1", states.Regions[0].ID)
}

func TestMergeWithoutDecomposition(t *testing.T) {
	countries := []types.Region{{ID: "USA", Name: "United States of America"}, {ID: "ATA"}}
	merged := Merge(DefaultMergeOptions(), countries)
	require.Len(t, merged, 1)
	assert.Equal(t, "USA", merged[0].ID)
}

func TestStitchRings(t *testing.T) {
	// A square split into three open ways, one reversed.
	segments := []orb.LineString{
		{{0, 0}, {1, 0}},
		{{1, 1}, {1, 0}},
		{{1, 1}, {0, 1}, {0, 0}},
		{{5, 5}, {6, 6}}, // never closes
	}
	rings := stitchRings(segments)
	require.Len(t, rings, 1)
	assert.Equal(t, orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}, rings[0])
}

func boundaryWay(id int64, pts ...orb.Point) *overpass.Way {
	geom := make([]overpass.Point, len(pts))
	for i, p := range pts {
		geom[i] = overpass.Point{Lat: p[1], Lon: p[0]}
	}
	return &overpass.Way{Meta: overpass.Meta{ID: id}, Geometry: geom}
}

func sampleOverpassResult() overpass.Result {
	north := boundaryWay(11, orb.Point{0, 0}, orb.Point{10, 0}, orb.Point{10, 10})
	south := boundaryWay(12, orb.Point{10, 10}, orb.Point{0, 10}, orb.Point{0, 0})
	lake := boundaryWay(13, orb.Point{4, 4}, orb.Point{6, 4}, orb.Point{6, 6}, orb.Point{4, 6}, orb.Point{4, 4})
	island := boundaryWay(21, orb.Point{20, 0}, orb.Point{21, 0}, orb.Point{21, 1}, orb.Point{20, 0})

	return overpass.Result{
		Ways: map[int64]*overpass.Way{11: north, 12: south, 13: lake, 21: island},
		Relations: map[int64]*overpass.Relation{
			100: {
				Meta: overpass.Meta{ID: 100, Tags: map[string]string{"name": "Zeta", "boundary": "administrative"}},
				Members: []overpass.RelationMember{
					{Type: "way", Way: north, Role: "outer"},
					{Type: "way", Way: south, Role: "outer"},
					{Type: "way", Way: lake, Role: "inner"},
					{Type: "way", Way: island, Role: "outer"},
				},
			},
			200: {
				Meta: overpass.Meta{ID: 200, Tags: map[string]string{"name": "Alpha", "name:en": "Alpha State"}},
				Members: []overpass.RelationMember{
					{Type: "way", Way: boundaryWay(31, orb.Point{30, 0}, orb.Point{31, 0}, orb.Point{31, 1}, orb.Point{30, 0}), Role: "outer"},
				},
			},
			300: {
				Meta: overpass.Meta{ID: 300, Tags: map[string]string{}},
			},
		},
	}
}

func TestRegionsFromOverpass(t *testing.T) {
	result := sampleOverpassResult()
	regions := RegionsFromOverpass(&result)
	require.Len(t, regions, 2, "unnamed relation should be skipped")

	assert.Equal(t, "Alpha State", regions[0].Name, "name:en preferred, sorted by name")
	assert.IsType(t, orb.Polygon{}, regions[0].Geometry)

	zeta := regions[1]
	assert.Equal(t, "relation/100", zeta.ID)
	mp, ok := zeta.Geometry.(orb.MultiPolygon)
	require.True(t, ok, "two outer rings give a MultiPolygon, got %T", zeta.Geometry)
	require.Len(t, mp, 2)
	assert.Len(t, mp[0], 2, "lake attached as a hole of the containing outer ring")
	assert.Len(t, mp[1], 1)
}

type fakeQuerier struct {
	result overpass.Result
	err    error
	query  string
}

func (f *fakeQuerier) Query(q string) (overpass.Result, error) {
	f.query = q
	return f.result, f.err
}

func TestOverpassSourceLoad(t *testing.T) {
	fq := &fakeQuerier{result: sampleOverpassResult()}
	src := &OverpassSource{client: fq, ISO2: "US", AdminLevel: 4}

	regions, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, regions, 2)
	assert.Contains(t, fq.query, `"ISO3166-1"="US"`)
	assert.Contains(t, fq.query, `"admin_level"="4"`)
	assert.Equal(t, "overpass:US", src.Name())

	fq.err = errors.New("rate limited")
	_, err = src.Load(context.Background())
	require.Error(t, err)
}

func TestUnmarshalOverpassJSON(t *testing.T) {
	_, err := UnmarshalOverpassJSON([]byte(`{"elements": `))
	require.Error(t, err)
}

func writeShapefile(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "countries.shp")

	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("ISO_A3", 3),
		shp.StringField("ADM0_A3", 3),
		shp.StringField("NAME", 40),
	}))

	// Clockwise outer ring followed by a counter-clockwise hole.
	outer := []shp.Point{{X: 0, Y: 0}, {X: 0, Y: 10}, {X: 10, Y: 10}, {X: 10, Y: 0}, {X: 0, Y: 0}}
	hole := []shp.Point{{X: 2, Y: 2}, {X: 4, Y: 2}, {X: 4, Y: 4}, {X: 2, Y: 4}, {X: 2, Y: 2}}
	second := []shp.Point{{X: 20, Y: 0}, {X: 20, Y: 5}, {X: 25, Y: 5}, {X: 25, Y: 0}, {X: 20, Y: 0}}

	shapes := []struct {
		parts [][]shp.Point
		attrs [3]string
	}{
		{[][]shp.Point{outer, hole}, [3]string{"AAA", "AAA", "Alphaland"}},
		{[][]shp.Point{outer, second}, [3]string{"-99", "BBB", "Betaland"}},
		{[][]shp.Point{second}, [3]string{"-99", "-99", "Nowhere"}},
	}
	for _, s := range shapes {
		poly := shp.Polygon(*shp.NewPolyLine(s.parts))
		n := w.Write(&poly)
		for i, v := range s.attrs {
			require.NoError(t, w.WriteAttribute(int(n), i, v))
		}
	}
	w.Close()

	// go-shp v0.1.1 writes the attribute table without the dot.
	if _, err := os.Stat(filepath.Join(dir, "countriesdbf")); err == nil {
		require.NoError(t, os.Rename(filepath.Join(dir, "countriesdbf"), filepath.Join(dir, "countries.dbf")))
	}
	return path
}

func TestShapefileSource(t *testing.T) {
	path := writeShapefile(t, t.TempDir())

	regions, err := NewShapefileSource(path).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, regions, 2, "shape without an id is skipped")

	assert.Equal(t, "AAA", regions[0].ID)
	assert.Equal(t, "Alphaland", regions[0].Name)
	poly, ok := regions[0].Geometry.(orb.Polygon)
	require.True(t, ok, "got %T", regions[0].Geometry)
	assert.Len(t, poly, 2, "hole attached to outer ring")

	assert.Equal(t, "BBB", regions[1].ID, "-99 falls through to the next id field")
	assert.Equal(t, "Betaland", regions[1].Name)
	assert.IsType(t, orb.MultiPolygon{}, regions[1].Geometry)
}

func TestShapefileSourceWithoutAttributes(t *testing.T) {
	dir := t.TempDir()
	path := writeShapefile(t, dir)
	require.NoError(t, os.Remove(filepath.Join(dir, "countries.dbf")))

	regions, err := NewShapefileSource(path).Load(context.Background())
	require.Error(t, err)
	assert.Empty(t, regions)
}

func TestShapefileSourceWithoutIDField(t *testing.T) {
	path := writeShapefile(t, t.TempDir())
	src := NewShapefileSource(path)
	src.IDFields = []string{"GID_0"}

	_, err := src.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GID_0")
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "world.geojson")
	require.NoError(t, os.WriteFile(path, []byte(sampleCollection), 0o644))

	regions, err := NewFileSource(path).Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, regions, 3)

	_, err = NewFileSource(filepath.Join(dir, "missing.json")).Load(context.Background())
	require.Error(t, err)
}

func TestFileSourceHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/world.json" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(sampleCollection))
	}))
	defer srv.Close()

	regions, err := NewFileSource(srv.URL + "/world.json").Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, regions, 3)

	_, err = NewFileSource(srv.URL + "/other.json").Load(context.Background())
	require.Error(t, err)
}

func TestOpenSource(t *testing.T) {
	assert.IsType(t, &OverpassSource{}, OpenSource("overpass:us", ""))
	assert.IsType(t, &ShapefileSource{}, OpenSource("ne_110m_admin_0_countries.SHP", ""))
	assert.IsType(t, &FileSource{}, OpenSource("https://example.com/world.json", ""))
}

type countingSource struct {
	StaticSource
	calls atomic.Int32
	err   error
}

func (c *countingSource) Load(ctx context.Context) ([]types.Region, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return c.StaticSource.Load(ctx)
}

func TestLoaderMergesOnce(t *testing.T) {
	countries := &countingSource{StaticSource: StaticSource{Label: "countries", Regions: []types.Region{
		{ID: "USA", Name: "United States of America"},
		{ID: "POL", Name: "Poland"},
	}}}
	states := StaticSource{Label: "states", Regions: []types.Region{{Name: "Texas"}}}

	l := NewLoader(countries, []SubdivisionSource{{Decomposition: USDecomposition, Source: states}}, DefaultMergeOptions(), nil)
	first, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"POL", "US_Texas"}, types.RegionSet(first).IDs())

	second, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), countries.calls.Load())
}

func TestLoaderSubdivisionFailureKeepsCountry(t *testing.T) {
	countries := StaticSource{Label: "countries", Regions: []types.Region{{ID: "USA"}, {ID: "POL"}}}
	broken := &countingSource{StaticSource: StaticSource{Label: "states"}, err: errors.New("timeout")}

	l := NewLoader(countries, []SubdivisionSource{{Decomposition: USDecomposition, Source: broken}}, DefaultMergeOptions(), nil)
	regions, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"USA", "POL"}, types.RegionSet(regions).IDs())
}

func TestLoaderCountryFailure(t *testing.T) {
	broken := &countingSource{StaticSource: StaticSource{Label: "countries"}, err: errors.New("boom")}
	_, err := NewLoader(broken, nil, DefaultMergeOptions(), nil).Load(context.Background())
	require.Error(t, err)
}
