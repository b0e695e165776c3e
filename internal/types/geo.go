package types

import "fmt"

// ScreenPoint is a position in the logical canvas (or in rendered SVG space).
type ScreenPoint struct {
	X float64
	Y float64
}

// Add returns p+q.
func (p ScreenPoint) Add(q ScreenPoint) ScreenPoint {
	return ScreenPoint{X: p.X + q.X, Y: p.Y + q.Y}
}

// Sub returns p-q.
func (p ScreenPoint) Sub(q ScreenPoint) ScreenPoint {
	return ScreenPoint{X: p.X - q.X, Y: p.Y - q.Y}
}

// Mid returns the midpoint between p and q.
func (p ScreenPoint) Mid(q ScreenPoint) ScreenPoint {
	return ScreenPoint{X: (p.X + q.X) / 2, Y: (p.Y + q.Y) / 2}
}

// String returns a human-readable representation of the point
func (p ScreenPoint) String() string {
	return fmt.Sprintf("(%.2f, %.2f)", p.X, p.Y)
}
