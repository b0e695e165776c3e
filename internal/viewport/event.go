package viewport

import (
	"fmt"
	"math"

	"github.com/MeKo-Tech/pinmap/internal/types"
)

// EventType names an input event fed through Handle.
type EventType string

const (
	EventPointerDown EventType = "pointerdown"
	EventPointerMove EventType = "pointermove"
	EventPointerUp   EventType = "pointerup"
	EventClick       EventType = "click"
	EventWheel       EventType = "wheel"
	EventTouchStart  EventType = "touchstart"
	EventTouchMove   EventType = "touchmove"
	EventTouchEnd    EventType = "touchend"
	EventZoomIn      EventType = "zoomin"
	EventZoomOut     EventType = "zoomout"
	EventReset       EventType = "reset"
	EventSettle      EventType = "settle"
)

// Event is a serializable input event in client coordinates.
type Event struct {
	Type   EventType `json:"type"`
	X      float64   `json:"x"`
	Y      float64   `json:"y"`
	ID     int       `json:"id,omitempty"`
	DeltaY float64   `json:"deltaY,omitempty"`
}

// Result reports what an event did.
type Result struct {
	Changed bool               `json:"changed"`
	Click   *types.ScreenPoint `json:"click,omitempty"` // canvas point of an accepted click
}

// Validate reports an unknown event type or non-finite coordinates.
func (e Event) Validate() error {
	switch e.Type {
	case EventPointerDown, EventPointerMove, EventPointerUp, EventClick, EventWheel,
		EventTouchStart, EventTouchMove, EventTouchEnd,
		EventZoomIn, EventZoomOut, EventReset, EventSettle:
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	for _, v := range []float64{e.X, e.Y, e.DeltaY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s event has non-finite coordinates", e.Type)
		}
	}
	return nil
}

// Handle dispatches e to the matching machine operation.
func (m *Machine) Handle(e Event) (Result, error) {
	if err := e.Validate(); err != nil {
		return Result{}, err
	}
	p := types.ScreenPoint{X: e.X, Y: e.Y}
	before := m.t

	switch e.Type {
	case EventPointerDown:
		m.PointerDown(p)
	case EventPointerMove:
		m.PointerMove(p)
	case EventPointerUp:
		m.PointerUp()
	case EventClick:
		if c, ok := m.Click(p); ok {
			return Result{Click: &c}, nil
		}
	case EventWheel:
		m.Wheel(p, e.DeltaY)
	case EventTouchStart:
		m.TouchStart(e.ID, p)
	case EventTouchMove:
		m.TouchMove(e.ID, p)
	case EventTouchEnd:
		m.TouchEnd(e.ID)
	case EventZoomIn:
		m.ZoomIn()
	case EventZoomOut:
		m.ZoomOut()
	case EventReset:
		m.Reset()
	case EventSettle:
		m.Settle()
	default:
		return Result{}, fmt.Errorf("unknown event type %q", e.Type)
	}

	return Result{Changed: m.t != before}, nil
}
