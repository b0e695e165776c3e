// Package controller ties the map core together: one controller owns the
// viewport, the pin list, UI state and the loaded region snapshot.
//
// Author and public views are the same controller; Capabilities.CanEdit
// gates every mutation of the pin list.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/MeKo-Tech/pinmap/internal/compose"
	"github.com/MeKo-Tech/pinmap/internal/path"
	"github.com/MeKo-Tech/pinmap/internal/pins"
	"github.com/MeKo-Tech/pinmap/internal/spatial"
	"github.com/MeKo-Tech/pinmap/internal/theme"
	"github.com/MeKo-Tech/pinmap/internal/types"
	"github.com/MeKo-Tech/pinmap/internal/viewport"
	"github.com/paulmach/orb"
)

var (
	// ErrReadOnly is returned for mutations without edit capability.
	ErrReadOnly = errors.New("map is read-only")
	// ErrNotLoaded is returned for geometry-dependent actions before regions load.
	ErrNotLoaded = errors.New("regions not loaded")
	// ErrUnknownPin is returned when a pin id does not exist.
	ErrUnknownPin = errors.New("unknown pin")
	// ErrNoDraft is returned when saving without an open draft.
	ErrNoDraft = errors.New("no pin draft open")
	// ErrInvalidPin is returned for pins with coordinates off the globe.
	ErrInvalidPin = errors.New("invalid pin coordinates")
)

// Default field values for new pins.
const (
	DraftTitle   = "New Stream"
	UntitledName = "No Title"
)

// Capabilities select what the user may do.
type Capabilities struct {
	CanEdit bool
}

// Config is threaded into New explicitly.
type Config struct {
	Capabilities
	Profile compose.Profile
	Palette theme.Palette
	Options viewport.Options // zero value derives defaults from Profile.Bounds
}

// Draft is a pin being created or edited.
type Draft struct {
	Pin   types.Pin `json:"pin"`
	IsNew bool      `json:"isNew"`
}

// Outcome reports the effect of an input event.
type Outcome struct {
	Changed bool   `json:"changed"`
	Draft   *Draft `json:"draft,omitempty"`
}

// Controller is not safe for concurrent use; callers serialize access.
type Controller struct {
	cfg    Config
	logger *slog.Logger

	vp       *viewport.Machine
	list     []types.Pin
	regions  types.RegionSet
	index    *spatial.Index
	resolver spatial.Resolver
	paths    *path.Cache

	ui    compose.UIState
	draft *Draft
	store pins.Store
	now   func() time.Time
}

// New creates a controller with the given configuration and initial pins.
func New(cfg Config, initial []types.Pin, logger *slog.Logger) *Controller {
	if cfg.Profile.Name == "" {
		cfg.Profile = compose.DesktopProfile
	}
	if cfg.Palette.Name == "" {
		cfg.Palette = theme.DarkPalette()
	}
	if !cfg.Options.Bounds.Valid() {
		cfg.Options = viewport.DefaultOptions(cfg.Profile.Bounds)
	}

	c := &Controller{
		cfg:    cfg,
		logger: logger,
		vp:     viewport.New(cfg.Options),
		list:   append([]types.Pin(nil), initial...),
		now:    time.Now,
	}
	return c
}

func (c *Controller) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.Default()
}

// SetStore persists every pin mutation to s.
func (c *Controller) SetStore(s pins.Store) {
	c.store = s
}

// Config returns the controller configuration.
func (c *Controller) Config() Config { return c.cfg }

// CanEdit reports the edit capability.
func (c *Controller) CanEdit() bool { return c.cfg.CanEdit }

// Viewport exposes the viewport machine.
func (c *Controller) Viewport() *viewport.Machine { return c.vp }

// Attach sets the surface that maps client coordinates.
func (c *Controller) Attach(s viewport.Surface) { c.vp.Attach(s) }

// Loaded reports whether the region snapshot has arrived.
func (c *Controller) Loaded() bool { return c.index != nil }

// SetRegions installs the immutable region snapshot. resolver may wrap the
// index with a cache; nil uses the index directly. Pins without a location
// are backfilled.
func (c *Controller) SetRegions(regions []types.Region, resolver spatial.Resolver) *spatial.Index {
	c.regions = types.RegionSet(regions)
	c.index = spatial.NewIndex(regions)
	c.paths = path.NewCache(regions)
	c.resolver = resolver
	if c.resolver == nil {
		c.resolver = c.index
	}
	c.log().Info("Regions loaded", "count", len(regions))
	c.backfill(context.Background())
	return c.index
}

// SetResolver replaces the lookup resolver, e.g. with a cached wrapper
// around the index returned by SetRegions.
func (c *Controller) SetResolver(r spatial.Resolver) {
	if r == nil {
		r = c.index
	}
	c.resolver = r
}

// Regions returns the loaded regions in lookup order.
func (c *Controller) Regions() types.RegionSet { return c.regions }

// Paths returns the outline cache (nil before load).
func (c *Controller) Paths() *path.Cache { return c.paths }

// Lookup resolves the region containing a geographic point.
func (c *Controller) Lookup(lon, lat float64) (types.Region, bool) {
	if !c.Loaded() {
		return types.Region{}, false
	}
	return c.resolver.Lookup(orb.Point{lon, lat})
}

func (c *Controller) backfill(ctx context.Context) {
	if !c.Loaded() || len(c.list) == 0 {
		return
	}
	out, changed := pins.Backfill(c.list, c.resolver)
	if !changed {
		return
	}
	c.log().Info("Pin locations backfilled")
	if err := c.commit(ctx, out); err != nil {
		// Backfilled fields are derived, so keep them in memory anyway.
		c.list = out
		c.log().Warn("Failed to persist backfilled pins", "error", err)
	}
}

// Pins returns a copy of the pin list.
func (c *Controller) Pins() []types.Pin {
	return append([]types.Pin(nil), c.list...)
}

// SetPins replaces the pin list (e.g. after an external load) and backfills.
func (c *Controller) SetPins(list []types.Pin) {
	c.list = append([]types.Pin(nil), list...)
	c.backfill(context.Background())
}

// Pin returns a pin by id.
func (c *Controller) Pin(id string) (types.Pin, bool) {
	for _, p := range c.list {
		if p.ID == id {
			return p, true
		}
	}
	return types.Pin{}, false
}

// Visited returns the set of visited region ids.
func (c *Controller) Visited() map[string]bool { return pins.Visited(c.list) }

// Groups returns pins bucketed by continent.
func (c *Controller) Groups(desc bool) []pins.Group {
	return pins.GroupByContinent(c.Pins(), desc)
}

// UI returns the current UI state.
func (c *Controller) UI() compose.UIState {
	ui := c.ui
	ui.Dragging = c.vp.State() == viewport.Panning && c.vp.Dragged()
	return ui
}

// Scene composes the current frame.
func (c *Controller) Scene() compose.Scene {
	return compose.Compose(c.sceneInput())
}

func (c *Controller) sceneInput() compose.Input {
	return compose.Input{
		Regions:   c.regions,
		Paths:     c.paths,
		Pins:      c.list,
		Transform: c.vp.Transform(),
		Profile:   c.cfg.Profile,
		Palette:   c.cfg.Palette,
		UI:        c.UI(),
	}
}

// SceneFor composes a frame with an explicit transform and UI state,
// leaving the controller untouched.
func (c *Controller) SceneFor(t viewport.Transform, ui compose.UIState, palette *theme.Palette) compose.Scene {
	in := c.sceneInput()
	in.Transform = t
	in.UI = ui
	if palette != nil {
		in.Palette = *palette
	}
	return compose.Compose(in)
}

// Tooltip returns the hover card for the current UI state.
func (c *Controller) Tooltip() (compose.Tooltip, bool) {
	return compose.TooltipFor(c.UI(), c.regions, c.list)
}

// PinMode reports whether clicks place pins.
func (c *Controller) PinMode() bool { return c.ui.PinMode }

// SetPinMode enters or leaves pin placement mode.
func (c *Controller) SetPinMode(on bool) error {
	if on && !c.cfg.CanEdit {
		return ErrReadOnly
	}
	c.ui.PinMode = on
	return nil
}

// TogglePinMode flips pin placement mode.
func (c *Controller) TogglePinMode() error {
	return c.SetPinMode(!c.ui.PinMode)
}

// SetHover records the hovered region and pin ids.
func (c *Controller) SetHover(regionID, pinID string) {
	c.ui.HoveredRegion = regionID
	c.ui.HoveredPin = pinID
}

// HoverAt updates hover state from a client position. Pins take
// precedence over regions. It returns true when the hover target changed.
func (c *Controller) HoverAt(client types.ScreenPoint) bool {
	prev := c.ui
	c.ui.HoveredPin, c.ui.HoveredRegion = "", ""

	canvas, ok := c.vp.ClientToCanvas(client)
	if ok {
		if id, hit := c.Scene().HitPin(canvas); hit {
			c.ui.HoveredPin = id
		} else if pl, placed := compose.Place(canvas, c.resolverOrNil()); placed {
			c.ui.HoveredRegion = pl.RegionID
		}
	}
	return prev.HoveredPin != c.ui.HoveredPin || prev.HoveredRegion != c.ui.HoveredRegion
}

func (c *Controller) resolverOrNil() spatial.Resolver {
	if !c.Loaded() {
		return nil
	}
	return c.resolver
}

// HandleEvent feeds an input event to the viewport. An accepted click in
// pin mode opens a draft for a new pin at the clicked location; a click on
// a pin opens it for editing.
func (c *Controller) HandleEvent(e viewport.Event) (Outcome, error) {
	res, err := c.vp.Handle(e)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Changed: res.Changed}
	if res.Click == nil {
		return out, nil
	}

	if c.ui.PinMode {
		d, err := c.PlaceAt(*res.Click)
		if err != nil {
			if errors.Is(err, ErrNotLoaded) {
				return out, nil
			}
			return out, err
		}
		out.Draft = &d
		return out, nil
	}

	if id, hit := c.Scene().HitPin(*res.Click); hit {
		if d, err := c.OpenPin(id); err == nil {
			out.Draft = &d
		}
	}
	return out, nil
}

// PlaceAt opens a new-pin draft at a canvas point, auto-filling the region
// and flag code. Placement leaves pin mode.
func (c *Controller) PlaceAt(canvas types.ScreenPoint) (Draft, error) {
	if !c.cfg.CanEdit {
		return Draft{}, ErrReadOnly
	}
	if !c.Loaded() {
		return Draft{}, ErrNotLoaded
	}
	pl, ok := compose.Place(canvas, c.resolver)
	if !ok {
		return Draft{}, fmt.Errorf("point %s has no geographic location", canvas)
	}

	d := Draft{
		IsNew: true,
		Pin: types.Pin{
			ID:         c.newID(),
			Lat:        pl.Point.Lat(),
			Lon:        pl.Point.Lon(),
			Title:      DraftTitle,
			Emoji:      types.DefaultEmoji,
			FlagCode:   pl.FlagCode,
			LocationID: pl.RegionID,
		},
	}
	c.draft = &d
	c.ui.PinMode = false
	c.ui.SelectedPin = d.Pin.ID
	c.log().Debug("Pin draft opened", "id", d.Pin.ID, "location", d.Pin.LocationID)
	return d, nil
}

func (c *Controller) newID() string {
	id := types.NewPinID(c.now())
	for {
		if _, exists := c.Pin(id); !exists {
			return id
		}
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return id + "1"
		}
		id = strconv.FormatInt(n+1, 10)
	}
}

// OpenPin opens an existing pin as a draft.
func (c *Controller) OpenPin(id string) (Draft, error) {
	p, ok := c.Pin(id)
	if !ok {
		return Draft{}, ErrUnknownPin
	}
	d := Draft{Pin: p}
	c.draft = &d
	c.ui.SelectedPin = id
	return d, nil
}

// Draft returns the open draft.
func (c *Controller) Draft() (Draft, bool) {
	if c.draft == nil {
		return Draft{}, false
	}
	return *c.draft, true
}

// UpdateDraft edits the open draft. The id and coordinates are kept.
func (c *Controller) UpdateDraft(edit func(p *types.Pin)) error {
	if !c.cfg.CanEdit {
		return ErrReadOnly
	}
	if c.draft == nil {
		return ErrNoDraft
	}
	p := c.draft.Pin
	edit(&p)
	p.ID, p.Lat, p.Lon = c.draft.Pin.ID, c.draft.Pin.Lat, c.draft.Pin.Lon
	c.draft.Pin = p
	return nil
}

// CancelDraft closes the draft without saving.
func (c *Controller) CancelDraft() {
	c.draft = nil
	c.ui.SelectedPin = ""
}

// SaveDraft commits the open draft: new pins are appended, existing ones
// replaced in place. When the store fails the pin list is unchanged and the
// draft stays open.
func (c *Controller) SaveDraft(ctx context.Context) (types.Pin, error) {
	if !c.cfg.CanEdit {
		return types.Pin{}, ErrReadOnly
	}
	if c.draft == nil {
		return types.Pin{}, ErrNoDraft
	}
	p := normalize(c.draft.Pin)
	next, replaced := withPin(c.list, p)
	if !c.draft.IsNew && !replaced {
		return types.Pin{}, ErrUnknownPin
	}
	if err := c.commit(ctx, next); err != nil {
		return types.Pin{}, err
	}
	c.draft = nil
	c.ui.SelectedPin = ""
	c.log().Info("Pin saved", "id", p.ID, "location", p.LocationID)
	return p, nil
}

func normalize(p types.Pin) types.Pin {
	if p.Title == "" {
		p.Title = UntitledName
	}
	if p.Emoji == "" {
		p.Emoji = types.DefaultEmoji
	}
	return p
}

// withPin returns a copy of list with p replacing the pin of the same id,
// or appended.
func withPin(list []types.Pin, p types.Pin) ([]types.Pin, bool) {
	next := append(make([]types.Pin, 0, len(list)+1), list...)
	for i := range next {
		if next[i].ID == p.ID {
			next[i] = p
			return next, true
		}
	}
	return append(next, p), false
}

func validCoords(p types.Pin) bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// UpsertPin adds or replaces a pin directly. Missing ids are generated and
// missing locations resolved when regions are loaded.
func (c *Controller) UpsertPin(ctx context.Context, p types.Pin) (types.Pin, error) {
	if !c.cfg.CanEdit {
		return types.Pin{}, ErrReadOnly
	}
	if !validCoords(p) {
		return types.Pin{}, fmt.Errorf("%w: lat %g, lon %g", ErrInvalidPin, p.Lat, p.Lon)
	}
	if p.ID == "" {
		p.ID = c.newID()
	}
	if p.LocationID == "" && c.Loaded() {
		if r, ok := c.resolver.Lookup(p.Point()); ok {
			p.LocationID = r.ID
			if p.FlagCode == "" {
				p.FlagCode = pins.ISO3ToISO2(r.ID)
			}
		}
	}
	p = normalize(p)
	next, _ := withPin(c.list, p)
	if err := c.commit(ctx, next); err != nil {
		return types.Pin{}, err
	}
	return p, nil
}

// DeletePin removes a pin.
func (c *Controller) DeletePin(ctx context.Context, id string) error {
	if !c.cfg.CanEdit {
		return ErrReadOnly
	}
	for i := range c.list {
		if c.list[i].ID != id {
			continue
		}
		next := append(append(make([]types.Pin, 0, len(c.list)-1), c.list[:i]...), c.list[i+1:]...)
		if err := c.commit(ctx, next); err != nil {
			return err
		}
		if c.draft != nil && c.draft.Pin.ID == id {
			c.CancelDraft()
		}
		if c.ui.HoveredPin == id {
			c.ui.HoveredPin = ""
		}
		c.log().Info("Pin deleted", "id", id)
		return nil
	}
	return ErrUnknownPin
}

// commit saves next to the store and only then makes it the pin list.
func (c *Controller) commit(ctx context.Context, next []types.Pin) error {
	if c.store != nil {
		if err := c.store.Save(ctx, next); err != nil {
			return fmt.Errorf("failed to save pins: %w", err)
		}
	}
	c.list = next
	return nil
}

// ZoomToPin centers the view on a pin.
func (c *Controller) ZoomToPin(id string) error {
	p, ok := c.Pin(id)
	if !ok {
		return ErrUnknownPin
	}
	c.vp.ZoomToLocation(p.Lon, p.Lat)
	c.ui.SelectedPin = id
	return nil
}

// ZoomToLocation centers the view on a geographic point.
func (c *Controller) ZoomToLocation(lon, lat float64) bool {
	return c.vp.ZoomToLocation(lon, lat)
}
