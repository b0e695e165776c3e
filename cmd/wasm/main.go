//go:build js && wasm
// +build js,wasm

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"syscall/js"

	"github.com/MeKo-Tech/pinmap/internal/compose"
	"github.com/MeKo-Tech/pinmap/internal/controller"
	"github.com/MeKo-Tech/pinmap/internal/geodata"
	"github.com/MeKo-Tech/pinmap/internal/pins"
	"github.com/MeKo-Tech/pinmap/internal/projection"
	"github.com/MeKo-Tech/pinmap/internal/render"
	"github.com/MeKo-Tech/pinmap/internal/theme"
	"github.com/MeKo-Tech/pinmap/internal/types"
	"github.com/MeKo-Tech/pinmap/internal/viewport"
)

// InitRequest configures the map from the page.
type InitRequest struct {
	Device  string       `json:"device"`
	Theme   string       `json:"theme"`
	CanEdit bool         `json:"canEdit"`
	Pins    []types.Pin  `json:"pins"`
	Surface *SurfaceSpec `json:"surface"`
}

// SurfaceSpec is the bounding rect of the map element.
type SurfaceSpec struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type lookupResponse struct {
	Found bool   `json:"found"`
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
}

var (
	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
	ctrl   *controller.Controller
)

func jsError(err error) interface{} {
	return map[string]interface{}{"error": err.Error()}
}

func jsJSON(v interface{}) interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return jsError(err)
	}
	return string(data)
}

func decodeArg(args []js.Value, i int, v interface{}) error {
	if len(args) <= i {
		return fmt.Errorf("missing argument %d", i)
	}
	if err := json.Unmarshal([]byte(args[i].String()), v); err != nil {
		return fmt.Errorf("failed to parse argument %d: %w", i, err)
	}
	return nil
}

// pinmapInit(requestJSON) creates the controller. Pins default to the
// embedded list.
func pinmapInit(this js.Value, args []js.Value) interface{} {
	req := InitRequest{Device: "desktop", Theme: "dark"}
	if len(args) > 0 {
		if err := decodeArg(args, 0, &req); err != nil {
			return jsError(err)
		}
	}
	palette, err := theme.ByName(req.Theme)
	if err != nil {
		return jsError(err)
	}
	list := req.Pins
	if list == nil {
		list = pins.Fallback()
	}
	ctrl = controller.New(controller.Config{
		Capabilities: controller.Capabilities{CanEdit: req.CanEdit},
		Profile:      compose.ProfileByName(req.Device),
		Palette:      palette,
	}, list, logger)
	if s := req.Surface; s != nil {
		ctrl.Attach(viewport.FitSurface{Left: s.Left, Top: s.Top, Width: s.Width, Height: s.Height})
	}
	return map[string]interface{}{"status": "ready", "pins": len(list)}
}

// pinmapRegions(geojson) installs the region snapshot.
func pinmapRegions(this js.Value, args []js.Value) interface{} {
	if ctrl == nil {
		return jsError(controller.ErrNotLoaded)
	}
	if len(args) < 1 {
		return jsError(fmt.Errorf("missing argument 0"))
	}
	regions, err := geodata.DecodeGeoJSON([]byte(args[0].String()))
	if err != nil {
		return jsError(err)
	}
	ctrl.SetRegions(regions, nil)
	return map[string]interface{}{"regions": len(regions)}
}

func pinmapProject(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return jsError(fmt.Errorf("want lon, lat"))
	}
	x, y := projection.Project(args[0].Float(), args[1].Float())
	if !projection.Valid(x, y) {
		return js.Null()
	}
	return []interface{}{x, y}
}

func pinmapUnproject(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return jsError(fmt.Errorf("want x, y"))
	}
	lon, lat := projection.Unproject(args[0].Float(), args[1].Float())
	return []interface{}{lon, lat}
}

// pinmapLookup(lon, lat) resolves the region containing a point.
func pinmapLookup(this js.Value, args []js.Value) interface{} {
	if ctrl == nil || !ctrl.Loaded() {
		return jsError(controller.ErrNotLoaded)
	}
	if len(args) < 2 {
		return jsError(fmt.Errorf("want lon, lat"))
	}
	r, ok := ctrl.Lookup(args[0].Float(), args[1].Float())
	if !ok {
		return jsJSON(lookupResponse{})
	}
	return jsJSON(lookupResponse{Found: true, ID: r.ID, Name: r.Name})
}

// pinmapEvent(eventJSON) feeds one input event and returns the outcome.
func pinmapEvent(this js.Value, args []js.Value) interface{} {
	if ctrl == nil {
		return jsError(controller.ErrNotLoaded)
	}
	var e viewport.Event
	if err := decodeArg(args, 0, &e); err != nil {
		return jsError(err)
	}
	out, err := ctrl.HandleEvent(e)
	if err != nil {
		return jsError(err)
	}
	if e.Type == viewport.EventPointerMove {
		ctrl.HoverAt(types.ScreenPoint{X: e.X, Y: e.Y})
	}
	return jsJSON(out)
}

// pinmapSVG() renders the current scene.
func pinmapSVG(this js.Value, args []js.Value) interface{} {
	if ctrl == nil {
		return jsError(controller.ErrNotLoaded)
	}
	var buf bytes.Buffer
	if err := render.WriteSVG(&buf, ctrl.Scene(), render.DefaultSVGOptions()); err != nil {
		return jsError(err)
	}
	return buf.String()
}

func main() {
	c := make(chan struct{})

	js.Global().Set("pinmapInit", js.FuncOf(pinmapInit))
	js.Global().Set("pinmapRegions", js.FuncOf(pinmapRegions))
	js.Global().Set("pinmapProject", js.FuncOf(pinmapProject))
	js.Global().Set("pinmapUnproject", js.FuncOf(pinmapUnproject))
	js.Global().Set("pinmapLookup", js.FuncOf(pinmapLookup))
	js.Global().Set("pinmapEvent", js.FuncOf(pinmapEvent))
	js.Global().Set("pinmapSVG", js.FuncOf(pinmapSVG))

	fmt.Println("pinmap WASM module loaded")
	<-c
}
