package types

import (
	"testing"
	"time"

	"github.com/paulmach/orb"
)

func square(x0, y0, size float64) orb.Ring {
	return orb.Ring{{x0, y0}, {x0 + size, y0}, {x0 + size, y0 + size}, {x0, y0 + size}, {x0, y0}}
}

func TestRegionOuterRings(t *testing.T) {
	tests := []struct {
		name   string
		geom   orb.Geometry
		expect int
	}{
		{"polygon with hole", orb.Polygon{square(0, 0, 10), square(2, 2, 1)}, 1},
		{"multipolygon", orb.MultiPolygon{{square(0, 0, 1)}, {square(5, 5, 1), square(5.2, 5.2, 0.1)}}, 2},
		{"point", orb.Point{1, 2}, 0},
		{"nil", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Region{ID: "X", Geometry: tt.geom}
			if got := len(r.OuterRings()); got != tt.expect {
				t.Errorf("OuterRings() = %d rings, want %d", got, tt.expect)
			}
		})
	}
}

func TestRegionSetByID(t *testing.T) {
	rs := RegionSet{{ID: "POL"}, {ID: "US_Texas"}}

	if _, ok := rs.ByID("US_Texas"); !ok {
		t.Fatal("expected US_Texas to be found")
	}
	if _, ok := rs.ByID("DEU"); ok {
		t.Fatal("expected DEU to be missing")
	}
	if ids := rs.IDs(); len(ids) != 2 || ids[0] != "POL" {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

func TestNewPinID(t *testing.T) {
	ts := time.UnixMilli(1768946582134)
	if got := NewPinID(ts); got != "1768946582134" {
		t.Errorf("NewPinID() = %s", got)
	}
}

func TestScreenPointMid(t *testing.T) {
	p := ScreenPoint{X: 0, Y: 10}.Mid(ScreenPoint{X: 10, Y: 20})
	if p.X != 5 || p.Y != 15 {
		t.Errorf("Mid() = %v", p)
	}
}
