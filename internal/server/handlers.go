package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/MeKo-Tech/pinmap/internal/compose"
	"github.com/MeKo-Tech/pinmap/internal/controller"
	"github.com/MeKo-Tech/pinmap/internal/pins"
	"github.com/MeKo-Tech/pinmap/internal/render"
	"github.com/MeKo-Tech/pinmap/internal/types"
	"github.com/MeKo-Tech/pinmap/internal/viewport"
	"github.com/paulmach/orb"
)

const maxBodySize = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusFor maps controller errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, controller.ErrReadOnly):
		return http.StatusForbidden
	case errors.Is(err, controller.ErrNotLoaded):
		return http.StatusServiceUnavailable
	case errors.Is(err, controller.ErrUnknownPin), errors.Is(err, controller.ErrNoDraft):
		return http.StatusNotFound
	case errors.Is(err, controller.ErrInvalidPin):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func queryFloat(r *http.Request, key string) (float64, bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, true, nil
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 || v > 8192 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return v, nil
}

// sceneFromQuery composes a scene. Without k/x/y the live viewport and UI
// state are used; hover, selected and theme override individual parts.
func (s *Server) sceneFromQuery(r *http.Request) (compose.Scene, error) {
	palette, err := s.paletteFor(r.URL.Query().Get("theme"))
	if err != nil {
		return compose.Scene{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.ctrl.Viewport().Transform()
	ui := s.ctrl.UI()
	q := r.URL.Query()

	if k, ok, err := queryFloat(r, "k"); err != nil {
		return compose.Scene{}, err
	} else if ok {
		x, _, err := queryFloat(r, "x")
		if err != nil {
			return compose.Scene{}, err
		}
		y, _, err := queryFloat(r, "y")
		if err != nil {
			return compose.Scene{}, err
		}
		t = viewport.Transform{K: k, X: x, Y: y}
		if !t.Valid() {
			return compose.Scene{}, fmt.Errorf("invalid transform %s", t)
		}
	}
	if q.Has("hover") {
		ui.HoveredRegion = q.Get("hover")
	}
	if q.Has("selected") {
		ui.SelectedPin = q.Get("selected")
	}
	return s.ctrl.SceneFor(t, ui, palette), nil
}

func (s *Server) handleSVG(w http.ResponseWriter, r *http.Request) {
	scene, err := s.sceneFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	opts := s.cfg.SVG
	if opts.Width, err = queryInt(r, "w", opts.Width); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if opts.Height, err = queryInt(r, "h", opts.Height); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	start := time.Now()
	var buf bytes.Buffer
	if err := render.WriteSVG(&buf, scene, opts); err != nil {
		s.log().Error("Failed to render SVG", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.observeRender("svg", start)

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", s.cfg.CacheControl)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handlePNG(w http.ResponseWriter, r *http.Request) {
	scene, err := s.sceneFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	opts := s.cfg.Raster
	if opts.Width, err = queryInt(r, "w", opts.Width); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if opts.Height, err = queryInt(r, "h", opts.Height); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	start := time.Now()
	var buf bytes.Buffer
	if err := render.RenderPNG(&buf, scene, opts); err != nil {
		s.log().Error("Failed to render PNG", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.observeRender("png", start)

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", s.cfg.CacheControl)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) observeRender(format string, start time.Time) {
	s.metrics.RendersTotal.WithLabelValues(format).Inc()
	s.metrics.RenderDuration.WithLabelValues(format).Observe(float64(time.Since(start).Milliseconds()))
}

type regionInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Visited bool   `json:"visited"`
}

func (s *Server) handleRegions(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ctrl.Loaded() {
		writeError(w, http.StatusServiceUnavailable, controller.ErrNotLoaded)
		return
	}
	visited := s.ctrl.Visited()
	out := make([]regionInfo, 0, len(s.ctrl.Regions()))
	for _, reg := range s.ctrl.Regions() {
		out = append(out, regionInfo{ID: reg.ID, Name: reg.Name, Kind: string(reg.Kind), Visited: visited[reg.ID]})
	}
	writeJSON(w, http.StatusOK, out)
}

type lookupResponse struct {
	Found    bool   `json:"found"`
	ID       string `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	FlagCode string `json:"flagCode,omitempty"`
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	lat, okLat, err := queryFloat(r, "lat")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	lon, okLon, err := queryFloat(r, "lon")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !okLat || !okLon || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		writeError(w, http.StatusBadRequest, errors.New("lat and lon are required"))
		return
	}

	s.mu.Lock()
	loaded := s.ctrl.Loaded()
	cached := s.cached
	s.mu.Unlock()
	if !loaded {
		writeError(w, http.StatusServiceUnavailable, controller.ErrNotLoaded)
		return
	}

	var (
		reg   types.Region
		found bool
	)
	if cached != nil {
		// The cached resolver is safe for concurrent use; Redis round trips
		// happen outside the controller lock.
		reg, found = cached.LookupContext(r.Context(), orb.Point{lon, lat})
	} else {
		s.mu.Lock()
		reg, found = s.ctrl.Lookup(lon, lat)
		s.mu.Unlock()
	}

	if !found {
		s.metrics.LookupsTotal.WithLabelValues("miss").Inc()
		writeJSON(w, http.StatusOK, lookupResponse{})
		return
	}
	s.metrics.LookupsTotal.WithLabelValues("found").Inc()
	writeJSON(w, http.StatusOK, lookupResponse{
		Found:    true,
		ID:       reg.ID,
		Name:     reg.Name,
		FlagCode: pins.ISO3ToISO2(reg.ID),
	})
}

func (s *Server) handleListPins(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.URL.Query().Get("grouped") != "" {
		desc := r.URL.Query().Get("order") != "asc"
		writeJSON(w, http.StatusOK, s.ctrl.Groups(desc))
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Pins())
}

func (s *Server) handleUpsertPin(w http.ResponseWriter, r *http.Request) {
	var p types.Pin
	if err := decodeBody(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	saved, err := s.ctrl.UpsertPin(r.Context(), p)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	s.metrics.PinsTotal.Set(float64(len(s.ctrl.Pins())))
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleDeletePin(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ctrl.DeletePin(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	s.metrics.PinsTotal.Set(float64(len(s.ctrl.Pins())))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	list := s.ctrl.Pins()
	s.mu.Unlock()

	var buf bytes.Buffer
	if err := pins.WriteExport(&buf, list, s.now()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", pins.ExportFilename))
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleView(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.snapshot())
}

type eventsRequest struct {
	Events []viewport.Event `json:"events"`
	Hover  *viewport.Event  `json:"hover,omitempty"` // pointer position for hover tracking
}

type eventsResponse struct {
	Outcomes []controller.Outcome `json:"outcomes"`
	View     viewState            `json:"view"`
}

// handleEvents feeds a batch of input events through the controller in order.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	var req eventsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	// A batch is applied whole or not at all.
	for i, e := range req.Events {
		if err := e.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("event %d: %w", i, err))
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	resp := eventsResponse{Outcomes: make([]controller.Outcome, 0, len(req.Events))}
	for _, e := range req.Events {
		out, err := s.ctrl.HandleEvent(e)
		if err != nil {
			s.log().Warn("Event failed", "type", e.Type, "error", err)
		}
		resp.Outcomes = append(resp.Outcomes, out)
	}
	if req.Hover != nil {
		s.ctrl.HoverAt(types.ScreenPoint{X: req.Hover.X, Y: req.Hover.Y})
	}
	resp.View = s.snapshot()
	writeJSON(w, http.StatusOK, resp)
}

// handleSurface attaches the client's map element geometry.
func (s *Server) handleSurface(w http.ResponseWriter, r *http.Request) {
	var fit viewport.FitSurface
	if err := decodeBody(r, &fit); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if fit.Width <= 0 || fit.Height <= 0 {
		writeError(w, http.StatusBadRequest, errors.New("surface width and height must be positive"))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl.Attach(fit)
	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) handlePinMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		On *bool `json:"on"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if req.On == nil {
		err = s.ctrl.TogglePinMode()
	} else {
		err = s.ctrl.SetPinMode(*req.On)
	}
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, s.snapshot())
}

type zoomToRequest struct {
	PinID string   `json:"pinId,omitempty"`
	Lon   *float64 `json:"lon,omitempty"`
	Lat   *float64 `json:"lat,omitempty"`
}

func (s *Server) handleZoomTo(w http.ResponseWriter, r *http.Request) {
	var req zoomToRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case req.PinID != "":
		if err := s.ctrl.ZoomToPin(req.PinID); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
	case req.Lon != nil && req.Lat != nil:
		if !s.ctrl.ZoomToLocation(*req.Lon, *req.Lat) {
			writeError(w, http.StatusBadRequest, errors.New("location does not project"))
			return
		}
	default:
		writeError(w, http.StatusBadRequest, errors.New("pinId or lon/lat required"))
		return
	}
	writeJSON(w, http.StatusOK, s.snapshot())
}

// handleLocate centers the view on the requester's approximate location.
// An "ip" field in the body overrides the connection address.
func (s *Server) handleLocate(w http.ResponseWriter, r *http.Request) {
	if s.locator == nil {
		writeError(w, http.StatusNotImplemented, errors.New("geolocation is not configured"))
		return
	}

	var req struct {
		IP string `json:"ip"`
	}
	if r.ContentLength > 0 {
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	ip := clientIP(r)
	if req.IP != "" {
		ip = net.ParseIP(req.IP)
	}
	if ip == nil {
		writeError(w, http.StatusBadRequest, errors.New("no client address"))
		return
	}

	lon, lat, err := s.locator.Locate(ip)
	if err != nil {
		s.log().Debug("Geolocation failed", "ip", ip.String(), "error", err)
		writeError(w, http.StatusNotFound, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl.ZoomToLocation(lon, lat)
	writeJSON(w, http.StatusOK, s.snapshot())
}
