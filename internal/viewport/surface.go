package viewport

import (
	"github.com/MeKo-Tech/pinmap/internal/projection"
	"github.com/MeKo-Tech/pinmap/internal/types"
)

// Surface maps client coordinates (pixels on the host element) into view
// space. ok is false while no usable mapping exists, e.g. before layout.
type Surface interface {
	ClientToView(client types.ScreenPoint) (types.ScreenPoint, bool)
}

// FitSurface is a host element showing the canvas with uniform scaling,
// centered in both axes (SVG "xMidYMid meet").
type FitSurface struct {
	Left, Top     float64
	Width, Height float64
}

// ClientToView implements Surface.
func (s FitSurface) ClientToView(client types.ScreenPoint) (types.ScreenPoint, bool) {
	if s.Width <= 0 || s.Height <= 0 {
		return types.ScreenPoint{}, false
	}
	scale := s.Scale()
	ox := s.Left + (s.Width-projection.Width*scale)/2
	oy := s.Top + (s.Height-projection.Height*scale)/2
	return types.ScreenPoint{X: (client.X - ox) / scale, Y: (client.Y - oy) / scale}, true
}

// ViewToClient is the inverse of ClientToView.
func (s FitSurface) ViewToClient(view types.ScreenPoint) (types.ScreenPoint, bool) {
	if s.Width <= 0 || s.Height <= 0 {
		return types.ScreenPoint{}, false
	}
	scale := s.Scale()
	ox := s.Left + (s.Width-projection.Width*scale)/2
	oy := s.Top + (s.Height-projection.Height*scale)/2
	return types.ScreenPoint{X: view.X*scale + ox, Y: view.Y*scale + oy}, true
}

// Scale is the client pixels per view unit.
func (s FitSurface) Scale() float64 {
	sx := s.Width / projection.Width
	sy := s.Height / projection.Height
	if sx < sy {
		return sx
	}
	return sy
}

// IdentitySurface treats client coordinates as view coordinates.
type IdentitySurface struct{}

// ClientToView implements Surface.
func (IdentitySurface) ClientToView(client types.ScreenPoint) (types.ScreenPoint, bool) {
	return client, true
}
