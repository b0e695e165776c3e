// Package server exposes a controller over HTTP: rendered maps, the pin
// API, viewport events, region lookup and XYZ tiles.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/MeKo-Tech/pinmap/internal/compose"
	"github.com/MeKo-Tech/pinmap/internal/controller"
	"github.com/MeKo-Tech/pinmap/internal/mbtiles"
	"github.com/MeKo-Tech/pinmap/internal/render"
	"github.com/MeKo-Tech/pinmap/internal/spatial"
	"github.com/MeKo-Tech/pinmap/internal/theme"
	"github.com/MeKo-Tech/pinmap/internal/types"
	"github.com/MeKo-Tech/pinmap/internal/viewport"
)

// Config holds server settings.
type Config struct {
	Addr            string
	CacheControl    string // applied to rendered images and tiles
	LookupPrecision int    // decimals of the lookup cache key
	TileSize        int
	MaxRenders      int           // concurrent on-demand tile renders
	RenderTimeout   time.Duration // per on-demand tile
	Raster          render.RasterOptions
	SVG             render.SVGOptions
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		CacheControl:    "public, max-age=60",
		LookupPrecision: 5,
		TileSize:        256,
		MaxRenders:      4,
		RenderTimeout:   30 * time.Second,
		Raster:          render.DefaultRasterOptions(),
		SVG:             render.DefaultSVGOptions(),
	}
}

// Server serializes all controller access behind one mutex.
type Server struct {
	cfg     Config
	logger  *slog.Logger
	metrics *Metrics

	mu     sync.Mutex
	ctrl   *controller.Controller
	cached *spatial.CachedResolver

	cache   spatial.Cache
	locator Locator
	tiles   *mbtiles.Reader
	sem     chan struct{}
	now     func() time.Time
}

// Option customizes a Server.
type Option func(*Server)

// WithLookupCache caches region lookups (LRU or Redis).
func WithLookupCache(c spatial.Cache) Option {
	return func(s *Server) { s.cache = c }
}

// WithLocator enables /api/view/locate.
func WithLocator(l Locator) Option {
	return func(s *Server) { s.locator = l }
}

// WithMBTiles serves /tiles from a pre-rendered file instead of rendering on demand.
func WithMBTiles(r *mbtiles.Reader) Option {
	return func(s *Server) { s.tiles = r }
}

// New creates a server around ctrl.
func New(ctrl *controller.Controller, cfg Config, logger *slog.Logger, opts ...Option) *Server {
	def := DefaultConfig()
	if cfg.LookupPrecision <= 0 {
		cfg.LookupPrecision = def.LookupPrecision
	}
	if cfg.TileSize <= 0 {
		cfg.TileSize = def.TileSize
	}
	if cfg.MaxRenders <= 0 {
		cfg.MaxRenders = def.MaxRenders
	}
	if cfg.RenderTimeout <= 0 {
		cfg.RenderTimeout = def.RenderTimeout
	}
	if cfg.Raster.Width <= 0 || cfg.Raster.Height <= 0 {
		cfg.Raster = def.Raster
	}
	if cfg.SVG.Width <= 0 || cfg.SVG.Height <= 0 {
		cfg.SVG = def.SVG
	}

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		metrics: NewMetrics(),
		ctrl:    ctrl,
		sem:     make(chan struct{}, cfg.MaxRenders),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics.PinsTotal.Set(float64(len(ctrl.Pins())))
	return s
}

func (s *Server) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

// Metrics exposes the server's collectors.
func (s *Server) Metrics() *Metrics { return s.metrics }

// SetRegions installs loaded regions. It is safe to call while serving.
func (s *Server) SetRegions(regions []types.Region) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.ctrl.SetRegions(regions, nil)
	if s.cache != nil {
		s.cached = spatial.NewCachedResolver(idx, s.cache, s.cfg.LookupPrecision)
		s.ctrl.SetResolver(s.cached)
	}
	s.metrics.RegionsLoaded.Set(float64(idx.Len()))
	s.metrics.PinsTotal.Set(float64(len(s.ctrl.Pins())))
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	route := func(pattern, name string, h http.HandlerFunc) {
		mux.Handle(pattern, instrument(name, s.metrics, s.log(), h))
	}

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", s.metrics.Handler())

	route("GET /map.svg", "map_svg", s.handleSVG)
	route("GET /map.png", "map_png", s.handlePNG)
	route("GET /tiles/{tile}", "tiles", s.handleTile)
	route("GET /tiles/{z}/{x}/{y}", "tiles", s.handleTileZXY)

	route("GET /api/regions", "regions", s.handleRegions)
	route("GET /api/lookup", "lookup", s.handleLookup)

	route("GET /api/pins", "pins_list", s.handleListPins)
	route("POST /api/pins", "pins_upsert", s.handleUpsertPin)
	route("DELETE /api/pins/{id}", "pins_delete", s.handleDeletePin)
	route("GET /api/pins/export", "pins_export", s.handleExport)

	route("GET /api/view", "view", s.handleView)
	route("POST /api/view/events", "view_events", s.handleEvents)
	route("POST /api/view/surface", "view_surface", s.handleSurface)
	route("POST /api/view/pin-mode", "view_pin_mode", s.handlePinMode)
	route("POST /api/view/zoom-to", "view_zoom_to", s.handleZoomTo)
	route("POST /api/view/locate", "view_locate", s.handleLocate)

	return withCORS(mux)
}

// ListenAndServe runs the HTTP server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log().Info("Starting map server", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.log().Info("Shutting down map server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down: %w", err)
		}
		return nil
	}
}

// viewState is the JSON shape of the current interaction state.
type viewState struct {
	Transform viewport.Transform `json:"transform"`
	State     string             `json:"state"`
	UI        compose.UIState    `json:"ui"`
	Loaded    bool               `json:"loaded"`
	CanEdit   bool               `json:"canEdit"`
	Visited   int                `json:"visited"`
	Tooltip   *compose.Tooltip   `json:"tooltip,omitempty"`
	Draft     *controller.Draft  `json:"draft,omitempty"`
}

// snapshot must be called with s.mu held.
func (s *Server) snapshot() viewState {
	vs := viewState{
		Transform: s.ctrl.Viewport().Transform(),
		State:     s.ctrl.Viewport().State().String(),
		UI:        s.ctrl.UI(),
		Loaded:    s.ctrl.Loaded(),
		CanEdit:   s.ctrl.CanEdit(),
		Visited:   len(s.ctrl.Visited()),
	}
	if tt, ok := s.ctrl.Tooltip(); ok {
		vs.Tooltip = &tt
	}
	if d, ok := s.ctrl.Draft(); ok {
		vs.Draft = &d
	}
	return vs
}

// paletteFor resolves the optional theme query parameter.
func (s *Server) paletteFor(name string) (*theme.Palette, error) {
	if name == "" {
		return nil, nil
	}
	p, err := theme.ByName(name)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
