package projection

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestProjectOrigin(t *testing.T) {
	x, y := Project(0, 0)
	if !almostEqual(x, Width/2, 1e-9) || !almostEqual(y, Height/2, 1e-9) {
		t.Fatalf("Project(0,0) = (%f, %f), want canvas center", x, y)
	}
}

func TestProjectLongitudeIsLinear(t *testing.T) {
	tests := []struct {
		lon  float64
		want float64
	}{
		{-180, 0},
		{-90, 200},
		{0, 400},
		{90, 600},
		{180, 800},
	}

	for _, tt := range tests {
		x, _ := Project(tt.lon, 10)
		if !almostEqual(x, tt.want, 1e-9) {
			t.Errorf("Project(%v, 10).x = %f, want %f", tt.lon, x, tt.want)
		}
	}
}

func TestProjectNorthIsUp(t *testing.T) {
	_, yNorth := Project(0, 45)
	_, ySouth := Project(0, -45)
	if yNorth >= Height/2 || ySouth <= Height/2 {
		t.Fatalf("expected north above equator and south below, got north=%f south=%f", yNorth, ySouth)
	}
	if !almostEqual(Height/2-yNorth, ySouth-Height/2, 1e-9) {
		t.Fatalf("expected symmetric latitudes, got %f vs %f", Height/2-yNorth, ySouth-Height/2)
	}
}

func TestProjectRoundTrip(t *testing.T) {
	for lon := -180.0; lon <= 180.0; lon += 7.5 {
		for lat := -84.9; lat < 85.0; lat += 3.3 {
			x, y := Project(lon, lat)
			gotLon, gotLat := Unproject(x, y)
			if !almostEqual(gotLon, lon, 1e-6) || !almostEqual(gotLat, lat, 1e-6) {
				t.Fatalf("round trip (%f, %f) -> (%f, %f)", lon, lat, gotLon, gotLat)
			}
		}
	}
}

func TestProjectPoles(t *testing.T) {
	for _, lat := range []float64{90, -90, 91, math.NaN()} {
		x, y := Project(10, lat)
		if Valid(x, y) {
			t.Errorf("Project(10, %v) = (%f, %f), expected unrenderable", lat, x, y)
		}
	}
}

func TestPointHelpers(t *testing.T) {
	p := ProjectPoint(orb.Point{30.6, 29.57})
	back := UnprojectPoint(p)
	if !almostEqual(back.Lon(), 30.6, 1e-9) || !almostEqual(back.Lat(), 29.57, 1e-9) {
		t.Fatalf("unexpected round trip: %v", back)
	}
	if c := Center(); c.X != 400 || c.Y != 300 {
		t.Fatalf("Center() = %v", c)
	}
}
