package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/pinmap/internal/compose"
	"github.com/MeKo-Tech/pinmap/internal/theme"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	v := viper.New()
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, theme.Dark, cfg.Theme)
	assert.Equal(t, compose.Desktop, cfg.Device)
	assert.Equal(t, DefaultCountriesURL, cfg.Regions.Countries)
	require.Len(t, cfg.Regions.Subdivisions, 1)
	assert.Equal(t, "USA", cfg.Regions.Subdivisions[0].Country)
	assert.Equal(t, "US", cfg.Regions.Subdivisions[0].ISO2)
	assert.Equal(t, "file", cfg.Pins.Store)
	assert.Equal(t, 5, cfg.Serve.LookupPrecision)

	opts := cfg.MergeOptions()
	assert.Equal(t, []string{"ATA"}, opts.Exclude)
	assert.Equal(t, "Eswatini", opts.Renames["Swaziland"])

	assert.Equal(t, compose.DesktopProfile, cfg.Profile(compose.Desktop))
	assert.Equal(t, compose.MobileProfile, cfg.Profile(compose.Mobile))
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
theme: light
theme_overrides:
  pin: "#ff0000"
  glow: "rgba(0,0,0,0.5)"
device: mobile
profiles:
  mobile:
    zoom_max: 12
regions:
  countries: ./world.geojson
  subdivisions:
    - country: CAN
      iso2: ca
      source: ./provinces.shp
  renames:
    - from: Czechia
      to: Czech Republic
pins:
  store: sqlite
  dsn: pins.db
serve:
  can_edit: true
  redis_addr: localhost:6379
  lookup_cache_ttl: 5m
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	v := viper.New()
	v.SetConfigFile(path)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.True(t, cfg.Serve.CanEdit)
	assert.Equal(t, "localhost:6379", cfg.Serve.RedisAddr)
	assert.Equal(t, "5m0s", cfg.Serve.LookupCacheTTL.String())
	assert.Equal(t, "sqlite", cfg.Pins.Store)

	p := cfg.Profile(compose.Mobile)
	assert.Equal(t, 12.0, p.Bounds.Max)
	assert.Equal(t, compose.MobileProfile.Bounds.Min, p.Bounds.Min)
	assert.Equal(t, compose.MobileProfile.PinMinPx, p.PinMinPx)

	dec := cfg.Decompositions()
	require.Len(t, dec, 1)
	assert.Equal(t, "CA", dec[0].ISO2)
	assert.Equal(t, "CAN", dec[0].Label, "label defaults to the country id")

	assert.Equal(t, "Czech Republic", cfg.MergeOptions().Renames["Czechia"])

	pal, err := cfg.Palette()
	require.NoError(t, err)
	assert.Equal(t, theme.Light, pal.Name)
	assert.Equal(t, "#ff0000", pal.Pin.Hex())
	assert.InDelta(t, 0.5, pal.GlowAlpha, 1e-9)

	cc, err := cfg.Controller(true)
	require.NoError(t, err)
	assert.True(t, cc.CanEdit)
	assert.Equal(t, compose.Mobile, cc.Profile.Name)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PINMAP_THEME", "light")
	v := viper.New()
	v.SetEnvPrefix("PINMAP")
	v.AutomaticEnv()

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, theme.Light, cfg.Theme)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	v := viper.New()
	v.SetConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := Load(v)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		set  func(v *viper.Viper)
	}{
		{"unknown theme", func(v *viper.Viper) { v.Set("theme", "neon") }},
		{"bad override", func(v *viper.Viper) { v.Set("theme_overrides", map[string]string{"nope": "#fff"}) }},
		{"inverted zoom", func(v *viper.Viper) {
			v.Set("profiles.desktop.zoom_min", 10)
			v.Set("profiles.desktop.zoom_max", 2)
		}},
		{"unknown store", func(v *viper.Viper) { v.Set("pins.store", "s3") }},
		{"incomplete subdivision", func(v *viper.Viper) {
			v.Set("regions.subdivisions", []map[string]any{{"country": "USA"}})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			tt.set(v)
			if _, err := Load(v); err == nil {
				t.Errorf("Load() succeeded, want error")
			}
		})
	}
}

func TestProfileForWidth(t *testing.T) {
	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, compose.Mobile, cfg.ProfileForWidth(500).Name)
	assert.Equal(t, compose.Desktop, cfg.ProfileForWidth(1024).Name)
	assert.Equal(t, compose.Desktop, cfg.ProfileForWidth(0).Name)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{Log: LogConfig{Level: "warn", Format: "json"}}
	logger := cfg.NewLoggerTo(&buf)

	logger.Info("hidden")
	logger.Warn("Regions loaded", "count", 3)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "Regions loaded", rec["msg"])
	assert.Equal(t, float64(3), rec["count"])
}
