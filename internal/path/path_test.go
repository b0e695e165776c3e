package path

import (
	"math"
	"strings"
	"testing"

	"github.com/MeKo-Tech/pinmap/internal/projection"
	"github.com/MeKo-Tech/pinmap/internal/types"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingProjectsVertices(t *testing.T) {
	sp := Ring(orb.Ring{{0, 0}, {90, 0}, {90, 45}})
	require.Len(t, sp, 3)

	assert.Equal(t, MoveTo, sp[0].Kind)
	assert.Equal(t, LineTo, sp[1].Kind)
	assert.Equal(t, LineTo, sp[2].Kind)
	assert.InDelta(t, 400, sp[0].P.X, 1e-9)
	assert.InDelta(t, 300, sp[0].P.Y, 1e-9)
	assert.InDelta(t, 600, sp[1].P.X, 1e-9)
	assert.Less(t, sp[2].P.Y, 300.0)
}

func TestRingSkipsInvalidVertices(t *testing.T) {
	tests := []struct {
		name      string
		ring      orb.Ring
		wantLen   int
		wantFirst float64
	}{
		{"pole first", orb.Ring{{0, 90}, {10, 0}, {20, 0}}, 2, projectX(10)},
		{"nan middle", orb.Ring{{0, 0}, {math.NaN(), 0}, {20, 0}}, 2, projectX(0)},
		{"south pole last", orb.Ring{{0, 0}, {10, 0}, {20, -90}}, 2, projectX(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sp := Ring(tt.ring)
			require.Len(t, sp, tt.wantLen)
			assert.Equal(t, MoveTo, sp[0].Kind)
			assert.InDelta(t, tt.wantFirst, sp[0].P.X, 1e-9)
			for _, op := range sp[1:] {
				assert.Equal(t, LineTo, op.Kind)
			}
		})
	}
}

func projectX(lon float64) float64 {
	x, _ := projection.Project(lon, 0)
	return x
}

func TestRingAllInvalid(t *testing.T) {
	assert.Nil(t, Ring(orb.Ring{{0, 90}, {10, 90}, {20, -90}}))
	assert.Nil(t, Ring(nil))
}

func TestGenerate(t *testing.T) {
	poly := orb.Polygon{
		{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}},
		{{2, 2}, {4, 2}, {4, 4}, {2, 2}},
	}
	p := Generate(poly)
	require.Len(t, p, 2)
	assert.Len(t, p[0], 5)
	assert.Len(t, p[1], 4)

	multi := orb.MultiPolygon{poly, {{{50, 50}, {60, 50}, {60, 60}}}}
	assert.Len(t, Generate(multi), 3)

	withDegenerate := orb.Polygon{{{0, 90}, {10, 90}}, {{0, 0}, {1, 0}, {1, 1}}}
	assert.Len(t, Generate(withDegenerate), 1)

	assert.Nil(t, Generate(orb.Point{1, 2}))
	assert.Nil(t, Generate(nil))
}

func TestPathD(t *testing.T) {
	p := Path{
		{
			{Kind: MoveTo, P: types.ScreenPoint{X: 1, Y: 2}},
			{Kind: LineTo, P: types.ScreenPoint{X: 3.14159, Y: 4}},
		},
		{
			{Kind: MoveTo, P: types.ScreenPoint{X: 5, Y: 6}},
		},
	}
	assert.Equal(t, "M1.00 2.00 L3.14 4.00 Z M5.00 6.00 Z", p.D())
	assert.Equal(t, "", Path(nil).D())
}

func TestPathBound(t *testing.T) {
	p := Generate(orb.Polygon{{{-90, -45}, {90, -45}, {90, 45}, {-90, 45}}})
	min, max, ok := p.Bound()
	require.True(t, ok)
	assert.InDelta(t, 200, min.X, 1e-9)
	assert.InDelta(t, 600, max.X, 1e-9)
	assert.Less(t, min.Y, 300.0)
	assert.Greater(t, max.Y, 300.0)

	_, _, ok = Path(nil).Bound()
	assert.False(t, ok)
}

func TestCache(t *testing.T) {
	regions := []types.Region{
		{ID: "A", Geometry: orb.Polygon{{{0, 0}, {10, 0}, {10, 10}}}},
		{ID: "B", Geometry: orb.MultiPolygon{{{{20, 0}, {30, 0}, {30, 10}}}}},
		{ID: "A", Geometry: orb.Polygon{{{50, 0}, {60, 0}, {60, 10}}}},
	}
	c := NewCache(regions)

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []string{"A", "B"}, c.IDs())

	d := c.D("A")
	assert.True(t, strings.HasPrefix(d, "M400.00 300.00"))
	assert.Equal(t, d, c.D("A"))
	assert.Equal(t, "", c.D("missing"))

	p, ok := c.Path("B")
	require.True(t, ok)
	assert.Len(t, p, 1)
}
