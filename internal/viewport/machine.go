package viewport

import (
	"math"

	"github.com/MeKo-Tech/pinmap/internal/projection"
	"github.com/MeKo-Tech/pinmap/internal/types"
	"github.com/paulmach/orb"
)

// State is the gesture state of a Machine.
type State int

const (
	Idle State = iota
	Panning
	PinchZooming
	Animating
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Panning:
		return "panning"
	case PinchZooming:
		return "pinch"
	case Animating:
		return "animating"
	default:
		return "unknown"
	}
}

// Options configure zoom steps and thresholds.
type Options struct {
	Bounds        Bounds
	WheelStep     float64 // multiplicative step per wheel notch
	ButtonStep    float64 // multiplicative step per zoom button press
	DragThreshold float64 // view units of movement that turn a press into a drag
	FocusZoom     float64 // minimum scale after ZoomToLocation
}

// DefaultOptions returns the standard steps for the given zoom range.
func DefaultOptions(b Bounds) Options {
	return Options{
		Bounds:        b,
		WheelStep:     1.1,
		ButtonStep:    1.2,
		DragThreshold: 2,
		FocusZoom:     4,
	}
}

type contact struct {
	id int
	p  types.ScreenPoint // view space
}

// Machine is the viewport gesture state machine. It is not safe for
// concurrent use; callers serialize events.
type Machine struct {
	opts    Options
	surface Surface

	t     Transform
	state State

	anchor types.ScreenPoint // view-space press point minus translation
	press  types.ScreenPoint // view-space press point
	moved  bool

	contacts []contact
	lastDist float64
}

// New creates a machine at the identity transform (clamped into bounds).
func New(opts Options) *Machine {
	if opts.WheelStep <= 1 {
		opts.WheelStep = 1.1
	}
	if opts.ButtonStep <= 1 {
		opts.ButtonStep = 1.2
	}
	if opts.DragThreshold <= 0 {
		opts.DragThreshold = 2
	}
	if opts.FocusZoom <= 0 {
		opts.FocusZoom = 4
	}
	if !opts.Bounds.Valid() {
		opts.Bounds = DesktopBounds
	}
	m := &Machine{opts: opts, t: Identity()}
	m.t.K = opts.Bounds.Clamp(m.t.K)
	return m
}

// Attach sets the surface used to map client coordinates. nil detaches.
func (m *Machine) Attach(s Surface) {
	m.surface = s
}

// Options returns the machine configuration.
func (m *Machine) Options() Options { return m.opts }

// State returns the current gesture state.
func (m *Machine) State() State { return m.state }

// Transform returns the current transform.
func (m *Machine) Transform() Transform { return m.t }

// SetTransform replaces the transform, clamping its scale.
func (m *Machine) SetTransform(t Transform) {
	if !t.Valid() {
		return
	}
	t.K = m.opts.Bounds.Clamp(t.K)
	m.t = t
}

// Dragged reports whether the current or most recent press moved far enough
// to count as a drag. A click following a drag must be ignored.
func (m *Machine) Dragged() bool { return m.moved }

// toView maps client coordinates into view space.
func (m *Machine) toView(client types.ScreenPoint) (types.ScreenPoint, bool) {
	if m.surface == nil {
		return types.ScreenPoint{}, false
	}
	p, ok := m.surface.ClientToView(client)
	if !ok || math.IsNaN(p.X) || math.IsNaN(p.Y) {
		return types.ScreenPoint{}, false
	}
	return p, true
}

// ClientToCanvas maps client coordinates through the surface and the
// inverse transform into canvas space.
func (m *Machine) ClientToCanvas(client types.ScreenPoint) (types.ScreenPoint, bool) {
	v, ok := m.toView(client)
	if !ok {
		return types.ScreenPoint{}, false
	}
	return m.t.Invert(v), true
}

// ClientToGeo maps client coordinates to a geographic point.
func (m *Machine) ClientToGeo(client types.ScreenPoint) (orb.Point, bool) {
	c, ok := m.ClientToCanvas(client)
	if !ok {
		return orb.Point{}, false
	}
	pt := projection.UnprojectPoint(c)
	if math.IsNaN(pt.Lon()) || math.IsNaN(pt.Lat()) {
		return orb.Point{}, false
	}
	return pt, true
}

// settle ends a pending animation before handling a new event.
func (m *Machine) settle() {
	if m.state == Animating {
		m.state = Idle
	}
}

// Settle marks a programmatic transition as finished.
func (m *Machine) Settle() {
	m.settle()
}

// PointerDown starts a pan. It returns false when the point cannot be mapped.
func (m *Machine) PointerDown(client types.ScreenPoint) bool {
	m.settle()
	v, ok := m.toView(client)
	if !ok {
		return false
	}
	m.beginPan(v)
	m.moved = false
	return true
}

func (m *Machine) beginPan(v types.ScreenPoint) {
	m.state = Panning
	m.press = v
	m.anchor = types.ScreenPoint{X: v.X - m.t.X, Y: v.Y - m.t.Y}
}

// PointerMove pans while a press is active. It returns true if the
// transform changed.
func (m *Machine) PointerMove(client types.ScreenPoint) bool {
	m.settle()
	if m.state != Panning {
		return false
	}
	v, ok := m.toView(client)
	if !ok {
		return false
	}
	if !m.moved && math.Hypot(v.X-m.press.X, v.Y-m.press.Y) >= m.opts.DragThreshold {
		m.moved = true
	}
	next := Transform{K: m.t.K, X: v.X - m.anchor.X, Y: v.Y - m.anchor.Y}
	changed := next != m.t
	m.t = next
	return changed
}

// PointerUp ends the gesture.
func (m *Machine) PointerUp() {
	m.settle()
	m.contacts = m.contacts[:0]
	m.state = Idle
}

// Cancel abandons any gesture and returns to Idle.
func (m *Machine) Cancel() {
	m.contacts = m.contacts[:0]
	m.state = Idle
}

// Click returns the canvas point for a click at client, or false if the
// click follows a drag or cannot be mapped.
func (m *Machine) Click(client types.ScreenPoint) (types.ScreenPoint, bool) {
	m.settle()
	if m.moved {
		return types.ScreenPoint{}, false
	}
	return m.ClientToCanvas(client)
}

// Wheel zooms about the cursor by one step. Positive deltaY zooms out.
func (m *Machine) Wheel(client types.ScreenPoint, deltaY float64) bool {
	m.settle()
	if deltaY == 0 {
		return false
	}
	step := m.opts.WheelStep
	if deltaY > 0 {
		step = 1 / step
	}
	k := m.opts.Bounds.Clamp(m.t.K * step)
	if k == m.t.K {
		return false
	}
	v, ok := m.toView(client)
	if !ok {
		return false
	}
	m.t = m.t.ZoomAbout(v, k)
	return true
}

// ZoomBy scales about the canvas center by factor, clamped.
func (m *Machine) ZoomBy(factor float64) bool {
	m.settle()
	k := m.opts.Bounds.Clamp(m.t.K * factor)
	if k == m.t.K {
		return false
	}
	m.t = m.t.ZoomAbout(projection.Center(), k)
	return true
}

// ZoomIn applies one zoom button step.
func (m *Machine) ZoomIn() bool { return m.ZoomBy(m.opts.ButtonStep) }

// ZoomOut applies one zoom button step outwards.
func (m *Machine) ZoomOut() bool { return m.ZoomBy(1 / m.opts.ButtonStep) }

// ZoomToLocation centers the view on lon/lat at a scale of at least
// FocusZoom. The target is committed at once; the machine stays in
// Animating until Settle or the next input event.
func (m *Machine) ZoomToLocation(lon, lat float64) bool {
	x, y := projection.Project(lon, lat)
	if !projection.Valid(x, y) {
		return false
	}
	k := m.opts.Bounds.Clamp(math.Max(m.t.K, m.opts.FocusZoom))
	m.contacts = m.contacts[:0]
	m.t = CenterOn(types.ScreenPoint{X: x, Y: y}, projection.Center(), k)
	m.state = Animating
	return true
}

// Reset returns to the minimum scale with no translation.
func (m *Machine) Reset() {
	m.Cancel()
	m.t = Transform{K: m.opts.Bounds.Clamp(1)}
}

// TouchStart registers a contact. One contact pans; a second starts a pinch.
func (m *Machine) TouchStart(id int, client types.ScreenPoint) bool {
	m.settle()
	v, ok := m.toView(client)
	if !ok {
		return false
	}
	for i := range m.contacts {
		if m.contacts[i].id == id {
			m.contacts[i].p = v
			return true
		}
	}
	m.contacts = append(m.contacts, contact{id: id, p: v})

	switch len(m.contacts) {
	case 1:
		m.beginPan(v)
		m.moved = false
	case 2:
		m.state = PinchZooming
		m.moved = true
		m.lastDist = m.pinchDistance()
	}
	return true
}

// TouchMove updates a contact, panning or pinch-zooming.
func (m *Machine) TouchMove(id int, client types.ScreenPoint) bool {
	m.settle()
	v, ok := m.toView(client)
	if !ok {
		return false
	}
	idx := -1
	for i := range m.contacts {
		if m.contacts[i].id == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	m.contacts[idx].p = v

	switch m.state {
	case Panning:
		if idx != 0 {
			return false
		}
		return m.PointerMove(client)
	case PinchZooming:
		if idx > 1 {
			return false
		}
		return m.pinch()
	default:
		return false
	}
}

func (m *Machine) pinchDistance() float64 {
	a, b := m.contacts[0].p, m.contacts[1].p
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

func (m *Machine) pinch() bool {
	dist := m.pinchDistance()
	last := m.lastDist
	m.lastDist = dist
	if last <= 0 || dist <= 0 {
		return false
	}
	k := m.opts.Bounds.Clamp(m.t.K * dist / last)
	if k == m.t.K {
		return false
	}
	mid := m.contacts[0].p.Mid(m.contacts[1].p)
	m.t = m.t.ZoomAbout(mid, k)
	return true
}

// TouchEnd removes a contact. Lifting one finger of a pinch resumes panning
// with the remaining one; lifting the last returns to Idle.
func (m *Machine) TouchEnd(id int) {
	m.settle()
	for i := range m.contacts {
		if m.contacts[i].id == id {
			m.contacts = append(m.contacts[:i], m.contacts[i+1:]...)
			break
		}
	}

	switch len(m.contacts) {
	case 0:
		m.state = Idle
	case 1:
		if m.state == PinchZooming {
			m.beginPan(m.contacts[0].p)
		}
	default:
		if m.state == PinchZooming {
			m.lastDist = m.pinchDistance()
		}
	}
}
