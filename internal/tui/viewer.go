// Package tui is a terminal map viewer. The terminal grid is the viewport
// surface: each cell covers one client unit horizontally and two
// vertically, so the 4:3 canvas keeps its shape in a typical font.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/MeKo-Tech/pinmap/internal/compose"
	"github.com/MeKo-Tech/pinmap/internal/controller"
	"github.com/MeKo-Tech/pinmap/internal/types"
	"github.com/MeKo-Tech/pinmap/internal/viewport"
	"github.com/gdamore/tcell/v2"
)

// cellAspect is the client height of one terminal row.
const cellAspect = 2

// panStep is the view distance moved by one arrow key press.
const panStep = 40

// Viewer draws the controller's scene and feeds terminal input back into it.
// All controller access happens on the event loop goroutine.
type Viewer struct {
	screen tcell.Screen
	ctrl   *controller.Controller
	logger *slog.Logger

	surface viewport.FitSurface
	down    bool
	status  string
}

// New creates a viewer on an initialized screen.
func New(screen tcell.Screen, ctrl *controller.Controller, logger *slog.Logger) *Viewer {
	v := &Viewer{screen: screen, ctrl: ctrl, logger: logger}
	v.attach()
	return v
}

func (v *Viewer) log() *slog.Logger {
	if v.logger != nil {
		return v.logger
	}
	return slog.Default()
}

// attach sizes the surface to the terminal, leaving the last row for status.
func (v *Viewer) attach() {
	w, h := v.screen.Size()
	rows := h - 1
	if rows < 1 {
		rows = 1
	}
	v.surface = viewport.FitSurface{Width: float64(w), Height: float64(rows * cellAspect)}
	v.ctrl.Attach(v.surface)
}

// client is the surface point at the center of a cell.
func client(x, y int) types.ScreenPoint {
	return types.ScreenPoint{X: float64(x) + 0.5, Y: (float64(y) + 0.5) * cellAspect}
}

// cellOf is the cell containing a surface point.
func cellOf(p types.ScreenPoint) (int, int) {
	return int(math.Floor(p.X)), int(math.Floor(p.Y / cellAspect))
}

// PostRegions hands a loaded region snapshot to the event loop.
func (v *Viewer) PostRegions(regions []types.Region) error {
	return v.screen.PostEvent(tcell.NewEventInterrupt(regions))
}

// Run draws and handles events until the user quits or ctx is done.
func (v *Viewer) Run(ctx context.Context) error {
	v.screen.EnableMouse()
	v.screen.Clear()
	v.Draw()

	go func() {
		<-ctx.Done()
		_ = v.screen.PostEvent(tcell.NewEventInterrupt(nil))
	}()

	for {
		ev := v.screen.PollEvent()
		if ev == nil {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
		if !v.HandleEvent(ev) {
			return nil
		}
		v.Draw()
	}
}

// HandleEvent applies one terminal event. It returns false to quit.
func (v *Viewer) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		return v.handleKey(ev)
	case *tcell.EventMouse:
		v.handleMouse(ev)
	case *tcell.EventResize:
		v.screen.Sync()
		v.attach()
	case *tcell.EventInterrupt:
		if regions, ok := ev.Data().([]types.Region); ok {
			v.ctrl.SetRegions(regions, nil)
			v.status = fmt.Sprintf("%d regions loaded", len(regions))
		}
	}
	return true
}

func (v *Viewer) handleKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false
	case tcell.KeyLeft:
		v.pan(panStep, 0)
	case tcell.KeyRight:
		v.pan(-panStep, 0)
	case tcell.KeyUp:
		v.pan(0, panStep)
	case tcell.KeyDown:
		v.pan(0, -panStep)
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q', 'Q':
			return false
		case '+', '=':
			v.event(viewport.Event{Type: viewport.EventZoomIn})
		case '-', '_':
			v.event(viewport.Event{Type: viewport.EventZoomOut})
		case 'r', 'R':
			v.event(viewport.Event{Type: viewport.EventReset})
		case 'p', 'P':
			if err := v.ctrl.TogglePinMode(); err != nil {
				v.status = "map is read-only"
			} else if v.ctrl.PinMode() {
				v.status = "click to place a pin"
			} else {
				v.status = ""
			}
		}
	}
	return true
}

func (v *Viewer) pan(dx, dy float64) {
	vp := v.ctrl.Viewport()
	vp.SetTransform(vp.Transform().Translate(dx, dy))
}

func (v *Viewer) handleMouse(ev *tcell.EventMouse) {
	x, y := ev.Position()
	p := client(x, y)
	btn := ev.Buttons()

	switch {
	case btn&tcell.WheelUp != 0:
		v.event(viewport.Event{Type: viewport.EventWheel, X: p.X, Y: p.Y, DeltaY: -1})
	case btn&tcell.WheelDown != 0:
		v.event(viewport.Event{Type: viewport.EventWheel, X: p.X, Y: p.Y, DeltaY: 1})
	case btn&tcell.Button1 != 0:
		if !v.down {
			v.down = true
			v.event(viewport.Event{Type: viewport.EventPointerDown, X: p.X, Y: p.Y})
		} else {
			v.event(viewport.Event{Type: viewport.EventPointerMove, X: p.X, Y: p.Y})
		}
	default:
		if v.down {
			v.down = false
			v.event(viewport.Event{Type: viewport.EventPointerUp, X: p.X, Y: p.Y})
			v.click(p)
		}
		v.ctrl.HoverAt(p)
	}
}

func (v *Viewer) click(p types.ScreenPoint) {
	out, err := v.ctrl.HandleEvent(viewport.Event{Type: viewport.EventClick, X: p.X, Y: p.Y})
	if err != nil || out.Draft == nil {
		return
	}
	if !out.Draft.IsNew {
		v.status = "pin: " + out.Draft.Pin.Title
		return
	}
	pin, err := v.ctrl.SaveDraft(context.Background())
	if err != nil {
		v.log().Error("Failed to save pin", "error", err)
		v.status = "failed to save pin"
		return
	}
	v.status = fmt.Sprintf("pin placed in %s", pin.LocationID)
}

func (v *Viewer) event(e viewport.Event) {
	if _, err := v.ctrl.HandleEvent(e); err != nil && !errors.Is(err, controller.ErrNotLoaded) {
		v.log().Debug("Event rejected", "type", e.Type, "error", err)
	}
}

// Draw renders the current scene and the status line.
func (v *Viewer) Draw() {
	w, h := v.screen.Size()
	rows := h - 1
	if rows < 1 {
		rows = 1
	}
	scene := v.ctrl.Scene()
	g := newGrid(w, rows)

	v.drawFill(g, scene)
	if !scene.Loading {
		v.drawOutlines(g, scene)
		v.drawPins(g, scene)
	}
	g.blit(v.screen)
	v.drawStatus(w, h-1, scene)
	v.screen.Show()
}

// drawFill colors each cell by the region under its center.
func (v *Viewer) drawFill(g *grid, scene compose.Scene) {
	water := tcellColor(scene.Palette.MapBackground)
	fills := make(map[string]tcell.Color, len(scene.Regions))
	for _, r := range scene.Regions {
		fills[r.ID] = tcellColor(r.Fill)
	}

	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			bg := water
			if !scene.Loading {
				if id, ok := v.regionAt(client(x, y), scene.Transform); ok {
					if c, found := fills[id]; found {
						bg = c
					}
				}
			}
			g.fill(x, y, bg)
		}
	}
}

func (v *Viewer) regionAt(p types.ScreenPoint, t viewport.Transform) (string, bool) {
	view, ok := v.surface.ClientToView(p)
	if !ok {
		return "", false
	}
	pt, ok := compose.CanvasToGeo(t.Invert(view))
	if !ok {
		return "", false
	}
	r, ok := v.ctrl.Lookup(pt.Lon(), pt.Lat())
	return r.ID, ok
}

func (v *Viewer) toCell(t viewport.Transform, p types.ScreenPoint) (int, int, bool) {
	c, ok := v.surface.ViewToClient(t.Apply(p))
	if !ok {
		return 0, 0, false
	}
	x, y := cellOf(c)
	return x, y, true
}

func (v *Viewer) drawOutlines(g *grid, scene compose.Scene) {
	for _, r := range scene.Regions {
		fg := tcellColor(r.Stroke)
		for _, sp := range r.Path {
			if len(sp) < 2 {
				continue
			}
			x0, y0, ok := v.toCell(scene.Transform, sp[0].P)
			if !ok {
				continue
			}
			fx, fy := x0, y0
			for _, op := range sp[1:] {
				x1, y1, _ := v.toCell(scene.Transform, op.P)
				g.line(x0, y0, x1, y1, '·', fg)
				x0, y0 = x1, y1
			}
			g.line(x0, y0, fx, fy, '·', fg)
		}
	}
}

func (v *Viewer) drawPins(g *grid, scene compose.Scene) {
	for _, p := range scene.Pins {
		x, y, ok := v.toCell(scene.Transform, p.Center)
		if !ok {
			continue
		}
		fg := tcellColor(p.Fill)
		if p.Hovered || p.Selected {
			fg = tcellColor(scene.Palette.Primary)
		}
		g.mark(x, y, '●', fg)
	}
}

func (v *Viewer) drawStatus(width, row int, scene compose.Scene) {
	var parts []string
	if scene.Loading {
		parts = append(parts, "loading map…")
	} else {
		parts = append(parts,
			fmt.Sprintf("zoom %.2fx", scene.Transform.K),
			fmt.Sprintf("pins %d", len(v.ctrl.Pins())),
			fmt.Sprintf("visited %d", scene.VisitedCount()),
		)
	}
	if v.ctrl.PinMode() {
		parts = append(parts, "[PIN MODE]")
	}
	if tt, ok := v.ctrl.Tooltip(); ok {
		parts = append(parts, tt.Title)
	}
	if v.status != "" {
		parts = append(parts, v.status)
	}
	parts = append(parts, "+/- zoom  p pin  r reset  q quit")
	line := strings.Join(parts, " | ")

	style := tcell.StyleDefault.Reverse(true)
	x := 0
	for _, ch := range line {
		if x >= width {
			break
		}
		v.screen.SetContent(x, row, ch, nil, style)
		x++
	}
	for ; x < width; x++ {
		v.screen.SetContent(x, row, ' ', nil, style)
	}
}
