package controller

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/MeKo-Tech/pinmap/internal/compose"
	"github.com/MeKo-Tech/pinmap/internal/pins"
	"github.com/MeKo-Tech/pinmap/internal/types"
	"github.com/MeKo-Tech/pinmap/internal/viewport"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegions() []types.Region {
	return []types.Region{
		{ID: "EQ", Name: "Equatoria", Geometry: orb.Polygon{{{-10, -10}, {10, -10}, {10, 10}, {-10, 10}}}},
		{ID: "EGY", Name: "Egypt", Geometry: orb.Polygon{{{25, 22}, {35, 22}, {35, 31}, {25, 31}}}},
	}
}

func newEditor(t *testing.T) *Controller {
	t.Helper()
	c := New(Config{Capabilities: Capabilities{CanEdit: true}}, nil, nil)
	c.Attach(viewport.IdentitySurface{})
	c.now = func() time.Time { return time.UnixMilli(1768946582134) }
	return c
}

func click(t *testing.T, c *Controller, x, y float64) Outcome {
	t.Helper()
	p := viewport.Event{X: x, Y: y}
	for _, typ := range []viewport.EventType{viewport.EventPointerDown, viewport.EventPointerUp} {
		p.Type = typ
		_, err := c.HandleEvent(p)
		require.NoError(t, err)
	}
	p.Type = viewport.EventClick
	out, err := c.HandleEvent(p)
	require.NoError(t, err)
	return out
}

func TestPlaceAtCenterFillsLocation(t *testing.T) {
	c := newEditor(t)
	c.SetRegions(testRegions(), nil)
	require.NoError(t, c.SetPinMode(true))

	out := click(t, c, 400, 300)
	require.NotNil(t, out.Draft)
	d := out.Draft
	assert.True(t, d.IsNew)
	assert.InDelta(t, 0, d.Pin.Lon, 1e-9)
	assert.InDelta(t, 0, d.Pin.Lat, 1e-9)
	assert.Equal(t, "EQ", d.Pin.LocationID)
	assert.Equal(t, "EQ", d.Pin.FlagCode)
	assert.Equal(t, DraftTitle, d.Pin.Title)
	assert.Equal(t, "1768946582134", d.Pin.ID)
	assert.False(t, c.PinMode(), "placement leaves pin mode")

	saved, err := c.SaveDraft(context.Background())
	require.NoError(t, err)
	assert.Equal(t, d.Pin.ID, saved.ID)
	assert.True(t, c.Visited()["EQ"])
	_, open := c.Draft()
	assert.False(t, open)
}

func TestPlacementIgnoredBeforeLoad(t *testing.T) {
	c := newEditor(t)
	require.NoError(t, c.SetPinMode(true))

	out := click(t, c, 400, 300)
	assert.Nil(t, out.Draft)
	assert.True(t, c.PinMode())

	_, err := c.PlaceAt(types.ScreenPoint{X: 400, Y: 300})
	assert.ErrorIs(t, err, ErrNotLoaded)
	_, ok := c.Lookup(0, 0)
	assert.False(t, ok)
}

func TestDragSuppressesPlacement(t *testing.T) {
	c := newEditor(t)
	c.SetRegions(testRegions(), nil)
	require.NoError(t, c.SetPinMode(true))

	for _, e := range []viewport.Event{
		{Type: viewport.EventPointerDown, X: 400, Y: 300},
		{Type: viewport.EventPointerMove, X: 420, Y: 300},
		{Type: viewport.EventPointerUp, X: 420, Y: 300},
	} {
		_, err := c.HandleEvent(e)
		require.NoError(t, err)
	}
	out, err := c.HandleEvent(viewport.Event{Type: viewport.EventClick, X: 420, Y: 300})
	require.NoError(t, err)
	assert.Nil(t, out.Draft)
	assert.True(t, c.PinMode())
}

func TestReadOnly(t *testing.T) {
	c := New(Config{}, pins.Fallback(), nil)
	c.Attach(viewport.IdentitySurface{})
	c.SetRegions(testRegions(), nil)
	ctx := context.Background()

	assert.False(t, c.CanEdit())
	assert.ErrorIs(t, c.SetPinMode(true), ErrReadOnly)
	assert.ErrorIs(t, c.TogglePinMode(), ErrReadOnly)
	assert.NoError(t, c.SetPinMode(false))
	_, err := c.PlaceAt(types.ScreenPoint{X: 400, Y: 300})
	assert.ErrorIs(t, err, ErrReadOnly)
	assert.ErrorIs(t, c.DeletePin(ctx, "1768946582134"), ErrReadOnly)
	_, err = c.UpsertPin(ctx, types.Pin{})
	assert.ErrorIs(t, err, ErrReadOnly)
	_, err = c.SaveDraft(ctx)
	assert.ErrorIs(t, err, ErrReadOnly)

	// Viewing still works.
	require.NoError(t, c.ZoomToPin("1768946582134"))
	assert.Equal(t, 4.0, c.Viewport().Transform().K)
	assert.ErrorIs(t, c.ZoomToPin("nope"), ErrUnknownPin)
}

func TestBackfillOnLoad(t *testing.T) {
	c := newEditor(t)
	c.SetPins([]types.Pin{{ID: "a", Lat: 29.5, Lon: 30.6}, {ID: "b", Lat: 50, Lon: -40}})
	assert.Empty(t, c.Pins()[0].LocationID)

	c.SetRegions(testRegions(), nil)
	list := c.Pins()
	assert.Equal(t, "EGY", list[0].LocationID)
	assert.Equal(t, "EG", list[0].FlagCode)
	assert.Empty(t, list[1].LocationID)
}

func TestEditExistingPin(t *testing.T) {
	c := newEditor(t)
	store := pins.NewFileStore(filepath.Join(t.TempDir(), "pins.json"))
	c.SetStore(store)
	c.SetPins(pins.Fallback())
	ctx := context.Background()

	d, err := c.OpenPin("1768953230094")
	require.NoError(t, err)
	assert.False(t, d.IsNew)

	require.NoError(t, c.UpdateDraft(func(p *types.Pin) {
		p.Title = ""
		p.Emoji = ""
		p.Lat = 0
		p.VideoLink = "https://youtu.be/SNKIio-1uxE"
	}))
	saved, err := c.SaveDraft(ctx)
	require.NoError(t, err)
	assert.Equal(t, UntitledName, saved.Title)
	assert.Equal(t, types.DefaultEmoji, saved.Emoji)
	assert.InDelta(t, 14.644906530693145, saved.Lat, 1e-12, "coordinates are kept")

	stored, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, UntitledName, stored[1].Title)

	require.NoError(t, c.DeletePin(ctx, "1768953230094"))
	assert.Len(t, c.Pins(), 1)
	assert.ErrorIs(t, c.DeletePin(ctx, "1768953230094"), ErrUnknownPin)

	stored, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 1)

	_, err = c.SaveDraft(ctx)
	assert.ErrorIs(t, err, ErrNoDraft)
	assert.ErrorIs(t, c.UpdateDraft(func(*types.Pin) {}), ErrNoDraft)
}

func TestUpsertPin(t *testing.T) {
	c := newEditor(t)
	c.SetRegions(testRegions(), nil)
	ctx := context.Background()

	p, err := c.UpsertPin(ctx, types.Pin{Lat: 1, Lon: 1})
	require.NoError(t, err)
	assert.Equal(t, "1768946582134", p.ID)
	assert.Equal(t, "EQ", p.LocationID)
	assert.Equal(t, UntitledName, p.Title)

	p2, err := c.UpsertPin(ctx, types.Pin{Lat: 2, Lon: 2})
	require.NoError(t, err)
	assert.Equal(t, "1768946582135", p2.ID, "ids stay unique")

	p.Title = "renamed"
	_, err = c.UpsertPin(ctx, p)
	require.NoError(t, err)
	require.Len(t, c.Pins(), 2)
	assert.Equal(t, "renamed", c.Pins()[0].Title)
}

type failingStore struct {
	fail  bool
	saved []types.Pin
}

func (s *failingStore) Load(context.Context) ([]types.Pin, error) { return s.saved, nil }

func (s *failingStore) Save(_ context.Context, list []types.Pin) error {
	if s.fail {
		return errors.New("disk full")
	}
	s.saved = append([]types.Pin(nil), list...)
	return nil
}

func TestSaveDraftKeepsDraftWhenStoreFails(t *testing.T) {
	c := newEditor(t)
	c.SetRegions(testRegions(), nil)
	store := &failingStore{fail: true}
	c.SetStore(store)
	ctx := context.Background()

	require.NoError(t, c.SetPinMode(true))
	_, err := c.PlaceAt(types.ScreenPoint{X: 400, Y: 300})
	require.NoError(t, err)

	_, err = c.SaveDraft(ctx)
	require.Error(t, err)
	assert.Empty(t, c.Pins(), "unsaved pin is not listed")
	_, open := c.Draft()
	assert.True(t, open, "draft survives for a retry")

	store.fail = false
	saved, err := c.SaveDraft(ctx)
	require.NoError(t, err)
	assert.Equal(t, "EQ", saved.LocationID)
	assert.Len(t, c.Pins(), 1)
	assert.Len(t, store.saved, 1)
	_, open = c.Draft()
	assert.False(t, open)
}

func TestMutationsRollBackWhenStoreFails(t *testing.T) {
	c := newEditor(t)
	c.SetPins([]types.Pin{{ID: "a", Lat: 1, Lon: 1, Title: "kept"}})
	store := &failingStore{fail: true}
	c.SetStore(store)
	ctx := context.Background()

	_, err := c.UpsertPin(ctx, types.Pin{ID: "a", Lat: 1, Lon: 1, Title: "changed"})
	require.Error(t, err)
	_, err = c.UpsertPin(ctx, types.Pin{Lat: 2, Lon: 2})
	require.Error(t, err)
	require.Error(t, c.DeletePin(ctx, "a"))

	list := c.Pins()
	require.Len(t, list, 1)
	assert.Equal(t, "kept", list[0].Title)
}

func TestUpsertPinRejectsCoordinatesOffTheGlobe(t *testing.T) {
	c := newEditor(t)
	ctx := context.Background()

	tests := []types.Pin{
		{Lat: 95, Lon: 0},
		{Lat: -90.5, Lon: 0},
		{Lat: 0, Lon: 181},
		{Lat: 0, Lon: -200},
	}
	for _, p := range tests {
		_, err := c.UpsertPin(ctx, p)
		if !errors.Is(err, ErrInvalidPin) {
			t.Errorf("UpsertPin(lat=%g, lon=%g) error = %v, want ErrInvalidPin", p.Lat, p.Lon, err)
		}
	}
	assert.Empty(t, c.Pins())

	_, err := c.UpsertPin(ctx, types.Pin{Lat: 90, Lon: -180})
	assert.NoError(t, err)
}

func TestHoverAndScene(t *testing.T) {
	c := newEditor(t)
	c.SetRegions(testRegions(), nil)
	c.SetPins([]types.Pin{{ID: "p", Lat: 29.5, Lon: 30.6}})

	assert.True(t, c.HoverAt(types.ScreenPoint{X: 400, Y: 300}))
	assert.Equal(t, "EQ", c.UI().HoveredRegion)
	assert.Empty(t, c.UI().HoveredPin)
	assert.False(t, c.HoverAt(types.ScreenPoint{X: 401, Y: 300}))

	s := c.Scene()
	require.Len(t, s.Regions, 2)
	assert.True(t, s.Regions[0].Hovered)
	assert.True(t, s.Regions[1].Visited)

	pin := s.Pins[0]
	assert.True(t, c.HoverAt(pin.Center))
	assert.Equal(t, "p", c.UI().HoveredPin)
	tt, ok := c.Tooltip()
	require.True(t, ok)
	assert.Equal(t, "Stream", tt.Subtitle)

	assert.True(t, c.HoverAt(types.ScreenPoint{X: 10, Y: 10}))
	assert.Equal(t, compose.UIState{}, c.UI())
}

func TestClickOnPinOpensIt(t *testing.T) {
	c := newEditor(t)
	c.SetRegions(testRegions(), nil)
	c.SetPins([]types.Pin{{ID: "p", Lat: 0, Lon: 0}})

	out := click(t, c, 400, 300)
	require.NotNil(t, out.Draft)
	assert.False(t, out.Draft.IsNew)
	assert.Equal(t, "p", out.Draft.Pin.ID)
	assert.Equal(t, "p", c.UI().SelectedPin)

	c.CancelDraft()
	assert.Empty(t, c.UI().SelectedPin)
}
