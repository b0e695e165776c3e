package compose

import "github.com/MeKo-Tech/pinmap/internal/viewport"

// Device classes.
const (
	Desktop = "desktop"
	Mobile  = "mobile"
)

// DefaultBreakpoint is the viewport width below which the mobile profile applies.
const DefaultBreakpoint = 768

// Profile holds the per-device zoom range and pin sizing.
type Profile struct {
	Name      string
	Bounds    viewport.Bounds
	PinMinPx  float64 // on-screen pin diameter at minimum zoom
	PinMaxPx  float64 // on-screen pin diameter at maximum zoom
	FlagRatio float64 // flag width relative to pin diameter
}

var (
	DesktopProfile = Profile{Name: Desktop, Bounds: viewport.DesktopBounds, PinMinPx: 16, PinMaxPx: 24, FlagRatio: 10.0 / 16.0}
	MobileProfile  = Profile{Name: Mobile, Bounds: viewport.MobileBounds, PinMinPx: 50, PinMaxPx: 60, FlagRatio: 30.0 / 50.0}
)

// ProfileForWidth picks the device profile for a viewport width.
func ProfileForWidth(width, breakpoint float64) Profile {
	if breakpoint <= 0 {
		breakpoint = DefaultBreakpoint
	}
	if width > 0 && width < breakpoint {
		return MobileProfile
	}
	return DesktopProfile
}

// ProfileByName returns a built-in profile; unknown names select desktop.
func ProfileByName(name string) Profile {
	if name == Mobile {
		return MobileProfile
	}
	return DesktopProfile
}

// PinPixels is the on-screen pin diameter at scale k.
func (p Profile) PinPixels(k float64) float64 {
	t := p.Bounds.Progress(k)
	return p.PinMinPx + (p.PinMaxPx-p.PinMinPx)*t
}

// PinSize is the canvas-space pin diameter at scale k. Rendered under the
// viewport transform it appears PinPixels(k) wide.
func (p Profile) PinSize(k float64) float64 {
	if k <= 0 {
		k = p.Bounds.Min
	}
	return p.PinPixels(k) / k
}
