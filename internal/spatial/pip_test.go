package spatial

import (
	"testing"

	"github.com/MeKo-Tech/pinmap/internal/types"
	"github.com/paulmach/orb"
)

func square(x0, y0, x1, y1 float64) orb.Ring {
	return orb.Ring{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}}
}

func TestPointInRing(t *testing.T) {
	sq := square(0, 0, 10, 10)

	tests := []struct {
		name string
		pt   orb.Point
		ring orb.Ring
		want bool
	}{
		{"inside", orb.Point{5, 5}, sq, true},
		{"outside right", orb.Point{15, 5}, sq, false},
		{"outside above", orb.Point{5, 11}, sq, false},
		{"outside left", orb.Point{-1, 5}, sq, false},
		{"open ring", orb.Point{5, 5}, orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}}, true},
		{"two vertices", orb.Point{0.5, 0.5}, orb.Ring{{0, 0}, {1, 1}}, false},
		{"empty ring", orb.Point{0, 0}, nil, false},
		{"concave notch", orb.Point{5, 8}, orb.Ring{{0, 0}, {10, 0}, {10, 10}, {5, 5}, {0, 10}}, false},
		{"concave body", orb.Point{5, 2}, orb.Ring{{0, 0}, {10, 0}, {10, 10}, {5, 5}, {0, 10}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PointInRing(tt.pt, tt.ring); got != tt.want {
				t.Errorf("PointInRing(%v) = %v, want %v", tt.pt, got, tt.want)
			}
		})
	}
}

func TestPointInRingEdgeIsDeterministic(t *testing.T) {
	sq := square(0, 0, 10, 10)
	for _, pt := range []orb.Point{{0, 5}, {10, 5}, {5, 0}, {5, 10}, {0, 0}} {
		first := PointInRing(pt, sq)
		for i := 0; i < 5; i++ {
			if PointInRing(pt, sq) != first {
				t.Fatalf("edge point %v flipped result", pt)
			}
		}
	}
}

func TestFindRegionForPointFirstMatchWins(t *testing.T) {
	a := types.Region{ID: "A", Geometry: orb.Polygon{square(0, 0, 10, 10)}}
	b := types.Region{ID: "B", Geometry: orb.Polygon{square(5, 5, 15, 15)}}

	got, ok := FindRegionForPoint(orb.Point{7, 7}, []types.Region{a, b})
	if !ok || got.ID != "A" {
		t.Fatalf("got %q ok=%v, want A", got.ID, ok)
	}

	got, ok = FindRegionForPoint(orb.Point{7, 7}, []types.Region{b, a})
	if !ok || got.ID != "B" {
		t.Fatalf("got %q ok=%v, want B", got.ID, ok)
	}

	got, ok = FindRegionForPoint(orb.Point{12, 12}, []types.Region{a, b})
	if !ok || got.ID != "B" {
		t.Fatalf("got %q ok=%v, want B", got.ID, ok)
	}

	if _, ok := FindRegionForPoint(orb.Point{50, 50}, []types.Region{a, b}); ok {
		t.Fatal("expected no region")
	}
}

func TestFindRegionForPointIgnoresHoles(t *testing.T) {
	withHole := types.Region{
		ID:       "H",
		Geometry: orb.Polygon{square(0, 0, 10, 10), square(4, 4, 6, 6)},
	}
	got, ok := FindRegionForPoint(orb.Point{5, 5}, []types.Region{withHole})
	if !ok || got.ID != "H" {
		t.Fatalf("point inside hole should still match outer ring, got %q ok=%v", got.ID, ok)
	}
}

func TestFindRegionForPointMultiPolygon(t *testing.T) {
	r := types.Region{
		ID: "M",
		Geometry: orb.MultiPolygon{
			{square(0, 0, 1, 1)},
			{square(20, 20, 21, 21)},
		},
	}
	if _, ok := FindRegionForPoint(orb.Point{20.5, 20.5}, []types.Region{r}); !ok {
		t.Fatal("expected match in second polygon")
	}
	if _, ok := FindRegionForPoint(orb.Point{10, 10}, []types.Region{r}); ok {
		t.Fatal("expected no match between polygons")
	}
}

func TestFindRegionForPointSkipsNonPolygons(t *testing.T) {
	regions := []types.Region{
		{ID: "nil"},
		{ID: "line", Geometry: orb.LineString{{0, 0}, {10, 10}}},
		{ID: "sq", Geometry: orb.Polygon{square(0, 0, 10, 10)}},
	}
	got, ok := FindRegionForPoint(orb.Point{5, 5}, regions)
	if !ok || got.ID != "sq" {
		t.Fatalf("got %q ok=%v, want sq", got.ID, ok)
	}
}
