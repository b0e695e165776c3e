// Package theme holds the explicit color palettes used for map rendering.
package theme

import (
	"fmt"
	"image/color"
	"sort"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Names of the built-in palettes.
const (
	Dark  = "dark"
	Light = "light"
)

// Palette is a complete set of map colors for one theme.
type Palette struct {
	Name string

	Background    colorful.Color
	PanelBg       colorful.Color
	TextPrimary   colorful.Color
	TextSecondary colorful.Color
	Border        colorful.Color

	MapBackground colorful.Color // water
	Country       colorful.Color
	CountryHover  colorful.Color
	Stroke        colorful.Color
	Glow          colorful.Color
	GlowAlpha     float64

	Primary      colorful.Color
	Visited      colorful.Color
	VisitedHover colorful.Color
	Pin          colorful.Color
	PinStroke    colorful.Color
	Shadow       colorful.Color
	ShadowAlpha  float64
}

// mustHex parses a built-in color literal.
func mustHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(fmt.Sprintf("theme: bad color %q: %v", s, err))
	}
	return c
}

func accent(p Palette) Palette {
	p.Primary = mustHex("#ef4444")
	p.Visited = mustHex("#65e327")
	p.VisitedHover = mustHex("#9bff69")
	p.Pin = mustHex("#fbbf24")
	p.PinStroke = mustHex("#ffffff")
	p.Shadow = mustHex("#000000")
	p.ShadowAlpha = 0.3
	return p
}

// DarkPalette is the default theme.
func DarkPalette() Palette {
	return accent(Palette{
		Name:          Dark,
		Background:    mustHex("#171717"),
		PanelBg:       mustHex("#262626"),
		TextPrimary:   mustHex("#f5f5f5"),
		TextSecondary: mustHex("#a3a3a3"),
		Border:        mustHex("#404040"),
		MapBackground: mustHex("#0a0a0a"),
		Country:       mustHex("#262626"),
		CountryHover:  mustHex("#404040"),
		Stroke:        mustHex("#525252"),
		Glow:          mustHex("#000000"),
		GlowAlpha:     0.5,
	})
}

// LightPalette is the light theme.
func LightPalette() Palette {
	return accent(Palette{
		Name:          Light,
		Background:    mustHex("#ffffff"),
		PanelBg:       mustHex("#ffffff"),
		TextPrimary:   mustHex("#0f172a"),
		TextSecondary: mustHex("#64748b"),
		Border:        mustHex("#e2e8f0"),
		MapBackground: mustHex("#f0f9ff"),
		Country:       mustHex("#cbd5e1"),
		CountryHover:  mustHex("#94a3b8"),
		Stroke:        mustHex("#ffffff"),
		Glow:          mustHex("#000000"),
		GlowAlpha:     0.1,
	})
}

// ByName returns a built-in palette. An empty name selects the dark theme.
func ByName(name string) (Palette, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", Dark:
		return DarkPalette(), nil
	case Light:
		return LightPalette(), nil
	default:
		return Palette{}, fmt.Errorf("unknown theme %q (want %s or %s)", name, Dark, Light)
	}
}

// RegionFill is the fill of a region given its derived UI state.
func (p Palette) RegionFill(visited, hovered bool) colorful.Color {
	switch {
	case visited && hovered:
		return p.VisitedHover
	case visited:
		return p.Visited
	case hovered:
		return p.CountryHover
	default:
		return p.Country
	}
}

// fields maps override keys to palette slots.
func (p *Palette) fields() map[string]*colorful.Color {
	return map[string]*colorful.Color{
		"background":     &p.Background,
		"panel_bg":       &p.PanelBg,
		"text_primary":   &p.TextPrimary,
		"text_secondary": &p.TextSecondary,
		"border":         &p.Border,
		"map_background": &p.MapBackground,
		"country":        &p.Country,
		"country_hover":  &p.CountryHover,
		"stroke":         &p.Stroke,
		"glow":           &p.Glow,
		"primary":        &p.Primary,
		"visited":        &p.Visited,
		"visited_hover":  &p.VisitedHover,
		"pin":            &p.Pin,
		"pin_stroke":     &p.PinStroke,
		"shadow":         &p.Shadow,
	}
}

// WithOverrides returns a copy with the given colors replaced. Values are
// hex ("#rrggbb") or css "rgba(r,g,b,a)"; an rgba glow also sets GlowAlpha.
func (p Palette) WithOverrides(overrides map[string]string) (Palette, error) {
	out := p
	slots := out.fields()

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		slot, ok := slots[strings.ToLower(key)]
		if !ok {
			return Palette{}, fmt.Errorf("unknown theme color %q", key)
		}
		c, alpha, err := ParseColor(overrides[key])
		if err != nil {
			return Palette{}, fmt.Errorf("failed to parse theme color %q: %w", key, err)
		}
		*slot = c
		switch strings.ToLower(key) {
		case "glow":
			out.GlowAlpha = alpha
		case "shadow":
			out.ShadowAlpha = alpha
		}
	}
	return out, nil
}

// ParseColor parses "#rgb", "#rrggbb" or "rgba(r,g,b,a)". Hex colors are opaque.
func ParseColor(s string) (colorful.Color, float64, error) {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)

	if strings.HasPrefix(lower, "rgba(") && strings.HasSuffix(lower, ")") {
		parts := strings.Split(lower[len("rgba("):len(lower)-1], ",")
		if len(parts) != 4 {
			return colorful.Color{}, 0, fmt.Errorf("malformed rgba %q", s)
		}
		var rgb [3]uint8
		for i := 0; i < 3; i++ {
			v, err := strconv.Atoi(strings.TrimSpace(parts[i]))
			if err != nil || v < 0 || v > 255 {
				return colorful.Color{}, 0, fmt.Errorf("malformed rgba channel %q", parts[i])
			}
			rgb[i] = uint8(v)
		}
		a, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if err != nil || a < 0 || a > 1 {
			return colorful.Color{}, 0, fmt.Errorf("malformed rgba alpha %q", parts[3])
		}
		return colorful.Color{R: float64(rgb[0]) / 255, G: float64(rgb[1]) / 255, B: float64(rgb[2]) / 255}, a, nil
	}

	if len(s) == 4 && s[0] == '#' {
		s = string([]byte{'#', s[1], s[1], s[2], s[2], s[3], s[3]})
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return colorful.Color{}, 0, err
	}
	return c, 1, nil
}

// RGBA converts c with opacity alpha into a premultiplied image color.
func RGBA(c colorful.Color, alpha float64) color.RGBA {
	r, g, b := c.Clamped().RGB255()
	a := clamp01(alpha)
	return color.RGBA{
		R: uint8(float64(r)*a + 0.5),
		G: uint8(float64(g)*a + 0.5),
		B: uint8(float64(b)*a + 0.5),
		A: uint8(a*255 + 0.5),
	}
}

// CSS formats c with opacity alpha for SVG attributes.
func CSS(c colorful.Color, alpha float64) string {
	if alpha >= 1 {
		return c.Clamped().Hex()
	}
	r, g, b := c.Clamped().RGB255()
	return fmt.Sprintf("rgba(%d,%d,%d,%s)", r, g, b, strconv.FormatFloat(clamp01(alpha), 'f', -1, 64))
}

// Mix blends a toward b in Lab space; t=0 yields a, t=1 yields b.
func Mix(a, b colorful.Color, t float64) colorful.Color {
	return a.BlendLab(b, clamp01(t)).Clamped()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
