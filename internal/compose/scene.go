// Package compose derives the drawable scene from regions, pins, the
// viewport transform and explicit UI state.
//
// Styles are pure functions of that input: hovering a region or pin changes
// the UIState value, never a previously built layer.
package compose

import (
	"math"

	"github.com/MeKo-Tech/pinmap/internal/path"
	"github.com/MeKo-Tech/pinmap/internal/pins"
	"github.com/MeKo-Tech/pinmap/internal/projection"
	"github.com/MeKo-Tech/pinmap/internal/theme"
	"github.com/MeKo-Tech/pinmap/internal/types"
	"github.com/MeKo-Tech/pinmap/internal/viewport"
	"github.com/lucasb-eyer/go-colorful"
)

// HoverScale enlarges the hovered pin.
const HoverScale = 1.3

// UIState is the interaction state that styles depend on.
type UIState struct {
	HoveredRegion string `json:"hoveredRegion,omitempty"`
	HoveredPin    string `json:"hoveredPin,omitempty"`
	SelectedPin   string `json:"selectedPin,omitempty"`
	PinMode       bool   `json:"pinMode"`
	Dragging      bool   `json:"dragging"`
}

// RegionLayer is one region outline with its derived style.
type RegionLayer struct {
	ID          string
	Name        string
	Path        path.Path
	D           string
	Fill        colorful.Color
	Stroke      colorful.Color
	StrokeWidth float64 // canvas units, 1 screen pixel after scaling
	Visited     bool
	Hovered     bool
	Cursor      string
}

// PinLayer is one pin marker in canvas space.
type PinLayer struct {
	ID           string
	Center       types.ScreenPoint
	Radius       float64
	Scale        float64
	ShadowOffset float64
	StrokeWidth  float64
	Fill         colorful.Color
	Stroke       colorful.Color
	FlagCode     string
	FlagURL      string
	FlagWidth    float64
	FlagHeight   float64
	Emoji        string
	EmojiSize    float64
	EmojiOffset  float64
	Hovered      bool
	Selected     bool
}

// Scene is everything a renderer needs for one frame.
type Scene struct {
	Transform viewport.Transform
	Palette   theme.Palette
	Regions   []RegionLayer
	Pins      []PinLayer
	Loading   bool // regions not yet available
}

// Input bundles the state a scene is derived from.
type Input struct {
	Regions   []types.Region
	Paths     *path.Cache
	Pins      []types.Pin
	Transform viewport.Transform
	Profile   Profile
	Palette   theme.Palette
	UI        UIState
}

// Compose builds the scene. Pins whose location does not project are left out.
func Compose(in Input) Scene {
	t := in.Transform
	if !t.Valid() {
		t = viewport.Identity()
	}
	k := t.K

	s := Scene{
		Transform: t,
		Palette:   in.Palette,
		Loading:   len(in.Regions) == 0,
	}

	visited := pins.Visited(in.Pins)
	cursor := "default"
	if in.UI.PinMode {
		cursor = "crosshair"
	}

	paths := in.Paths
	if paths == nil && len(in.Regions) > 0 {
		paths = path.NewCache(in.Regions)
	}

	s.Regions = make([]RegionLayer, 0, len(in.Regions))
	for _, r := range in.Regions {
		p, _ := paths.Path(r.ID)
		isVisited := visited[r.ID]
		hovered := in.UI.HoveredRegion == r.ID
		s.Regions = append(s.Regions, RegionLayer{
			ID:          r.ID,
			Name:        r.Name,
			Path:        p,
			D:           paths.D(r.ID),
			Fill:        in.Palette.RegionFill(isVisited, hovered),
			Stroke:      in.Palette.Stroke,
			StrokeWidth: 1 / k,
			Visited:     isVisited,
			Hovered:     hovered,
			Cursor:      cursor,
		})
	}

	size := in.Profile.PinSize(k)
	flagW := size * in.Profile.FlagRatio
	s.Pins = make([]PinLayer, 0, len(in.Pins))
	for _, p := range in.Pins {
		c := projection.ProjectPoint(p.Point())
		if !projection.Valid(c.X, c.Y) {
			continue
		}
		hovered := in.UI.HoveredPin == p.ID
		scale := 1.0
		if hovered {
			scale = HoverScale
		}
		layer := PinLayer{
			ID:           p.ID,
			Center:       c,
			Radius:       size / 2,
			Scale:        scale,
			ShadowOffset: 2 / k,
			StrokeWidth:  1 / k,
			Fill:         in.Palette.Pin,
			Stroke:       in.Palette.PinStroke,
			Emoji:        p.Emoji,
			EmojiSize:    10 / k,
			EmojiOffset:  -size / 1.2,
			Hovered:      hovered,
			Selected:     in.UI.SelectedPin == p.ID,
		}
		if p.FlagCode != "" {
			layer.FlagCode = p.FlagCode
			layer.FlagURL = pins.FlagURL(p.FlagCode)
			layer.FlagWidth = flagW
			layer.FlagHeight = flagW * 0.75
		}
		s.Pins = append(s.Pins, layer)
	}

	return s
}

// HitPin returns the topmost pin under a canvas point. Pins drawn later
// are on top.
func (s Scene) HitPin(canvas types.ScreenPoint) (string, bool) {
	for i := len(s.Pins) - 1; i >= 0; i-- {
		p := s.Pins[i]
		if math.Hypot(canvas.X-p.Center.X, canvas.Y-p.Center.Y) <= p.Radius*p.Scale {
			return p.ID, true
		}
	}
	return "", false
}

// VisitedCount returns how many region layers are visited.
func (s Scene) VisitedCount() int {
	n := 0
	for _, r := range s.Regions {
		if r.Visited {
			n++
		}
	}
	return n
}
