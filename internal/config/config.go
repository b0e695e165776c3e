// Package config loads pinmap configuration from file, environment and
// flags through viper, and derives the explicit values the core is built
// from (device profiles, palette, merge options).
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/MeKo-Tech/pinmap/internal/compose"
	"github.com/MeKo-Tech/pinmap/internal/controller"
	"github.com/MeKo-Tech/pinmap/internal/geodata"
	"github.com/MeKo-Tech/pinmap/internal/theme"
	"github.com/MeKo-Tech/pinmap/internal/viewport"
	"github.com/spf13/viper"
)

// Default region sources.
const (
	DefaultCountriesURL = "https://raw.githubusercontent.com/holtzy/D3-graph-gallery/master/DATA/world.geojson"
	DefaultUSStatesURL  = "https://raw.githubusercontent.com/PublicaMundi/MappingAPI/master/data/geojson/us-states.json"
)

// Config holds all configuration for the application.
type Config struct {
	Theme            string
	ThemeOverrides   map[string]string `mapstructure:"theme_overrides"`
	Device           string
	DeviceBreakpoint float64 `mapstructure:"device_breakpoint"`
	Profiles         map[string]ProfileConfig

	Regions RegionsConfig
	Pins    PinsConfig
	Serve   ServeConfig
	Log     LogConfig
}

// ProfileConfig is the zoom range and pin sizing of one device class.
type ProfileConfig struct {
	ZoomMin   float64 `mapstructure:"zoom_min"`
	ZoomMax   float64 `mapstructure:"zoom_max"`
	PinMinPx  float64 `mapstructure:"pin_min_px"`
	PinMaxPx  float64 `mapstructure:"pin_max_px"`
	FlagRatio float64 `mapstructure:"flag_ratio"`
}

// RegionsConfig selects the region sources and how they are merged.
type RegionsConfig struct {
	Countries        string
	Subdivisions     []SubdivisionConfig
	Exclude          []string
	Renames          []RenameConfig
	OverpassEndpoint string        `mapstructure:"overpass_endpoint"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// SubdivisionConfig decomposes one country into the regions of Source.
type SubdivisionConfig struct {
	Country string
	ISO2    string `mapstructure:"iso2"`
	Label   string
	Source  string
}

// RenameConfig replaces a region display name.
type RenameConfig struct {
	From string
	To   string
}

// PinsConfig selects where pins are loaded from and saved to.
type PinsConfig struct {
	Store   string // file, sqlite, postgres
	Path    string // file store path
	DSN     string `mapstructure:"dsn"`
	Remote  string // read-only JSON pin list URL
	Timeout time.Duration
}

// ServeConfig holds HTTP server settings.
type ServeConfig struct {
	Addr            string
	CanEdit         bool          `mapstructure:"can_edit"`
	CacheControl    string        `mapstructure:"cache_control"`
	LookupCacheSize int           `mapstructure:"lookup_cache_size"`
	LookupCacheTTL  time.Duration `mapstructure:"lookup_cache_ttl"`
	LookupPrecision int           `mapstructure:"lookup_precision"`
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	GeoIPDB         string        `mapstructure:"geoip_db"`
	MBTiles         string        `mapstructure:"mbtiles"`
	TileSize        int           `mapstructure:"tile_size"`
	MaxRenders      int           `mapstructure:"max_renders"`
	RenderTimeout   time.Duration `mapstructure:"render_timeout"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("theme", theme.Dark)
	v.SetDefault("device", compose.Desktop)
	v.SetDefault("device_breakpoint", compose.DefaultBreakpoint)

	setProfile := func(name string, p compose.Profile) {
		v.SetDefault("profiles."+name+".zoom_min", p.Bounds.Min)
		v.SetDefault("profiles."+name+".zoom_max", p.Bounds.Max)
		v.SetDefault("profiles."+name+".pin_min_px", p.PinMinPx)
		v.SetDefault("profiles."+name+".pin_max_px", p.PinMaxPx)
		v.SetDefault("profiles."+name+".flag_ratio", p.FlagRatio)
	}
	setProfile(compose.Desktop, compose.DesktopProfile)
	setProfile(compose.Mobile, compose.MobileProfile)

	v.SetDefault("regions.countries", DefaultCountriesURL)
	v.SetDefault("regions.subdivisions", []map[string]any{{
		"country": geodata.USDecomposition.Country,
		"iso2":    geodata.USDecomposition.ISO2,
		"label":   geodata.USDecomposition.Label,
		"source":  DefaultUSStatesURL,
	}})
	v.SetDefault("regions.exclude", []string{"ATA"})
	v.SetDefault("regions.renames", []map[string]any{{"from": "Swaziland", "to": "Eswatini"}})
	v.SetDefault("regions.overpass_endpoint", geodata.DefaultOverpassEndpoint)
	v.SetDefault("regions.timeout", 30*time.Second)

	v.SetDefault("pins.store", "file")
	v.SetDefault("pins.path", "pins.json")
	v.SetDefault("pins.timeout", 10*time.Second)

	v.SetDefault("serve.addr", "127.0.0.1:8080")
	v.SetDefault("serve.can_edit", false)
	v.SetDefault("serve.cache_control", "no-store")
	v.SetDefault("serve.lookup_cache_size", 10000)
	v.SetDefault("serve.lookup_cache_ttl", time.Hour)
	v.SetDefault("serve.lookup_precision", 5)
	v.SetDefault("serve.redis_db", 0)
	v.SetDefault("serve.tile_size", 256)
	v.SetDefault("serve.max_renders", 4)
	v.SetDefault("serve.render_timeout", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads the config file (if any) registered on v and unmarshals the
// merged result. A missing config file is not an error.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if _, err := c.Palette(); err != nil {
		return err
	}
	for name, p := range c.Profiles {
		b := viewport.Bounds{Min: p.ZoomMin, Max: p.ZoomMax}
		if !b.Valid() {
			return fmt.Errorf("invalid zoom range for profile %q: [%g, %g]", name, p.ZoomMin, p.ZoomMax)
		}
		if p.PinMinPx <= 0 || p.PinMaxPx < p.PinMinPx {
			return fmt.Errorf("invalid pin size for profile %q: %g-%g px", name, p.PinMinPx, p.PinMaxPx)
		}
	}
	switch c.Pins.Store {
	case "file", "sqlite", "postgres", "none":
	default:
		return fmt.Errorf("unknown pin store %q (want file, sqlite, postgres or none)", c.Pins.Store)
	}
	for i, s := range c.Regions.Subdivisions {
		if s.Country == "" || s.ISO2 == "" || s.Source == "" {
			return fmt.Errorf("subdivision %d needs country, iso2 and source", i)
		}
	}
	return nil
}

// Profile returns the configured profile for a device class, starting
// from the built-in profile so unset fields keep their defaults.
func (c *Config) Profile(name string) compose.Profile {
	p := compose.ProfileByName(name)
	pc, ok := c.Profiles[name]
	if !ok {
		return p
	}
	if pc.ZoomMin > 0 {
		p.Bounds.Min = pc.ZoomMin
	}
	if pc.ZoomMax > 0 {
		p.Bounds.Max = pc.ZoomMax
	}
	if pc.PinMinPx > 0 {
		p.PinMinPx = pc.PinMinPx
	}
	if pc.PinMaxPx > 0 {
		p.PinMaxPx = pc.PinMaxPx
	}
	if pc.FlagRatio > 0 {
		p.FlagRatio = pc.FlagRatio
	}
	return p
}

// ProfileForWidth resolves the device class from a viewport width.
func (c *Config) ProfileForWidth(width float64) compose.Profile {
	return c.Profile(compose.ProfileForWidth(width, c.DeviceBreakpoint).Name)
}

// Palette returns the configured theme with overrides applied.
func (c *Config) Palette() (theme.Palette, error) {
	p, err := theme.ByName(c.Theme)
	if err != nil {
		return theme.Palette{}, err
	}
	if len(c.ThemeOverrides) == 0 {
		return p, nil
	}
	return p.WithOverrides(c.ThemeOverrides)
}

// MergeOptions converts the region settings.
func (c *Config) MergeOptions() geodata.MergeOptions {
	opts := geodata.MergeOptions{
		Exclude: append([]string(nil), c.Regions.Exclude...),
		Renames: make(map[string]string, len(c.Regions.Renames)),
	}
	for _, r := range c.Regions.Renames {
		opts.Renames[r.From] = r.To
	}
	return opts
}

// Decompositions lists the configured country decompositions.
func (c *Config) Decompositions() []geodata.Decomposition {
	out := make([]geodata.Decomposition, 0, len(c.Regions.Subdivisions))
	for _, s := range c.Regions.Subdivisions {
		label := s.Label
		if label == "" {
			label = s.Country
		}
		out = append(out, geodata.Decomposition{Country: s.Country, ISO2: strings.ToUpper(s.ISO2), Label: label})
	}
	return out
}

// Controller builds the explicit controller configuration.
func (c *Config) Controller(canEdit bool) (controller.Config, error) {
	palette, err := c.Palette()
	if err != nil {
		return controller.Config{}, err
	}
	return controller.Config{
		Capabilities: controller.Capabilities{CanEdit: canEdit},
		Profile:      c.Profile(c.Device),
		Palette:      palette,
	}, nil
}

// NewLogger creates a logger writing to stderr.
func (c *Config) NewLogger() *slog.Logger {
	return c.NewLoggerTo(os.Stderr)
}

// NewLoggerTo creates a logger based on the log settings.
func (c *Config) NewLoggerTo(w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(c.Log.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}
