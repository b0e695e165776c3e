package viewport

import "math"

// Bounds is the allowed zoom range. Min must be positive.
type Bounds struct {
	Min float64 `json:"min" mapstructure:"zoom_min"`
	Max float64 `json:"max" mapstructure:"zoom_max"`
}

var (
	DesktopBounds = Bounds{Min: 1, Max: 32}
	MobileBounds  = Bounds{Min: 1, Max: 20}
)

// Clamp saturates k into the range.
func (b Bounds) Clamp(k float64) float64 {
	return math.Min(math.Max(k, b.Min), b.Max)
}

// Progress is the normalized position of k within the range, in [0,1].
func (b Bounds) Progress(k float64) float64 {
	if b.Max <= b.Min {
		return 0
	}
	return (b.Clamp(k) - b.Min) / (b.Max - b.Min)
}

// Valid reports whether the bounds describe a usable range.
func (b Bounds) Valid() bool {
	return b.Min > 0 && b.Max >= b.Min && !math.IsInf(b.Max, 0)
}
