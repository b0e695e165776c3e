package render

import (
	"image"
	"image/draw"
	"image/png"
	"io"
	"math"

	"github.com/aquilax/go-perlin"
	"github.com/disintegration/gift"
	"golang.org/x/image/vector"

	"github.com/MeKo-Tech/pinmap/internal/compose"
	"github.com/MeKo-Tech/pinmap/internal/path"
	"github.com/MeKo-Tech/pinmap/internal/projection"
	"github.com/MeKo-Tech/pinmap/internal/theme"
	"github.com/MeKo-Tech/pinmap/internal/types"
	"github.com/MeKo-Tech/pinmap/internal/viewport"
)

// RasterOptions control PNG output.
type RasterOptions struct {
	Width  int
	Height int

	// Direct treats view units as output pixels. Tiles use it; otherwise
	// the 800x600 view is fit into the output, centered.
	Direct bool

	GlowSigma     float32 // 0 disables the land glow
	Paper         bool    // perlin texture on the water background
	PaperSeed     int64
	PaperStrength float64
}

// DefaultRasterOptions renders at canvas size with glow and paper texture.
func DefaultRasterOptions() RasterOptions {
	return RasterOptions{
		Width:         projection.Width,
		Height:        projection.Height,
		GlowSigma:     4,
		Paper:         true,
		PaperSeed:     42,
		PaperStrength: 0.06,
	}
}

// Rasterizer draws scenes onto RGBA images.
type Rasterizer struct {
	opts  RasterOptions
	fit   viewport.FitSurface
	scale float64 // output pixels per view unit
	ras   *vector.Rasterizer
}

// NewRasterizer creates a rasterizer for the given output size.
func NewRasterizer(opts RasterOptions) *Rasterizer {
	if opts.Width <= 0 {
		opts.Width = projection.Width
	}
	if opts.Height <= 0 {
		opts.Height = projection.Height
	}
	r := &Rasterizer{
		opts:  opts,
		fit:   viewport.FitSurface{Width: float64(opts.Width), Height: float64(opts.Height)},
		scale: 1,
		ras:   vector.NewRasterizer(opts.Width, opts.Height),
	}
	if !opts.Direct {
		r.scale = r.fit.Scale()
	}
	return r
}

// Render draws the scene: background, glow, region fills, outlines, pins.
func (r *Rasterizer) Render(s compose.Scene) *image.RGBA {
	bounds := image.Rect(0, 0, r.opts.Width, r.opts.Height)
	dst := image.NewRGBA(bounds)
	p := s.Palette

	draw.Draw(dst, bounds, image.NewUniform(theme.RGBA(p.MapBackground, 1)), image.Point{}, draw.Src)
	if r.opts.Paper && r.opts.PaperStrength > 0 {
		r.applyPaper(dst)
	}
	if s.Loading {
		return dst
	}

	t := s.Transform
	if r.opts.GlowSigma > 0 && p.GlowAlpha > 0 {
		r.drawGlow(dst, s, t)
	}

	for _, layer := range s.Regions {
		r.ras.Reset(r.opts.Width, r.opts.Height)
		r.addPath(layer.Path, t)
		r.ras.Draw(dst, bounds, image.NewUniform(theme.RGBA(layer.Fill, 1)), image.Point{})
	}

	for _, layer := range s.Regions {
		w := layer.StrokeWidth * t.K * r.scale
		if w < 0.5 {
			w = 0.5
		}
		r.ras.Reset(r.opts.Width, r.opts.Height)
		r.addOutline(layer.Path, t, w)
		r.ras.Draw(dst, bounds, image.NewUniform(theme.RGBA(layer.Stroke, 1)), image.Point{})
	}

	for _, pin := range s.Pins {
		r.drawPin(dst, pin, p, t)
	}
	return dst
}

// toPx maps a canvas point to output pixels.
func (r *Rasterizer) toPx(t viewport.Transform, p types.ScreenPoint) (float32, float32) {
	v := t.Apply(p)
	if !r.opts.Direct {
		v, _ = r.fit.ViewToClient(v)
	}
	return float32(v.X), float32(v.Y)
}

func (r *Rasterizer) addPath(pth path.Path, t viewport.Transform) {
	for _, sub := range pth {
		if len(sub) < 3 {
			continue
		}
		for _, op := range sub {
			x, y := r.toPx(t, op.P)
			if op.Kind == path.MoveTo {
				r.ras.MoveTo(x, y)
			} else {
				r.ras.LineTo(x, y)
			}
		}
		r.ras.ClosePath()
	}
}

// addOutline adds one quad per edge. The rasterizer accumulates coverage,
// so overlapping quads at the joints stay opaque.
func (r *Rasterizer) addOutline(pth path.Path, t viewport.Transform, width float64) {
	half := width / 2
	for _, sub := range pth {
		if len(sub) < 2 {
			continue
		}
		n := len(sub)
		for i := 0; i < n; i++ {
			x0, y0 := r.toPx(t, sub[i].P)
			x1, y1 := r.toPx(t, sub[(i+1)%n].P)
			dx, dy := float64(x1-x0), float64(y1-y0)
			l := math.Hypot(dx, dy)
			if l == 0 {
				continue
			}
			nx, ny := float32(-dy/l*half), float32(dx/l*half)
			r.ras.MoveTo(x0+nx, y0+ny)
			r.ras.LineTo(x1+nx, y1+ny)
			r.ras.LineTo(x1-nx, y1-ny)
			r.ras.LineTo(x0-nx, y0-ny)
			r.ras.ClosePath()
		}
	}
}

func (r *Rasterizer) addCircle(cx, cy, radius float32) {
	const segments = 32
	r.ras.MoveTo(cx+radius, cy)
	for i := 1; i < segments; i++ {
		a := 2 * math.Pi * float64(i) / segments
		r.ras.LineTo(cx+radius*float32(math.Cos(a)), cy+radius*float32(math.Sin(a)))
	}
	r.ras.ClosePath()
}

func (r *Rasterizer) drawPin(dst *image.RGBA, pin compose.PinLayer, p theme.Palette, t viewport.Transform) {
	bounds := dst.Bounds()
	px := float32(t.K * r.scale) // pixels per canvas unit
	cx, cy := r.toPx(t, pin.Center)
	radius := float32(pin.Radius*pin.Scale) * px
	off := float32(pin.ShadowOffset) * px
	stroke := float32(pin.StrokeWidth) * px
	if pin.Selected {
		stroke *= 2
	}

	r.ras.Reset(bounds.Dx(), bounds.Dy())
	r.addCircle(cx+off, cy+off, radius)
	r.ras.Draw(dst, bounds, image.NewUniform(theme.RGBA(p.Shadow, p.ShadowAlpha)), image.Point{})

	r.ras.Reset(bounds.Dx(), bounds.Dy())
	r.addCircle(cx, cy, radius+stroke/2)
	r.ras.Draw(dst, bounds, image.NewUniform(theme.RGBA(pin.Stroke, 1)), image.Point{})

	r.ras.Reset(bounds.Dx(), bounds.Dy())
	r.addCircle(cx, cy, radius-stroke/2)
	r.ras.Draw(dst, bounds, image.NewUniform(theme.RGBA(pin.Fill, 1)), image.Point{})
}

// drawGlow blurs a land mask and composites it in the glow color.
func (r *Rasterizer) drawGlow(dst *image.RGBA, s compose.Scene, t viewport.Transform) {
	bounds := dst.Bounds()
	mask := image.NewAlpha(bounds)
	r.ras.Reset(bounds.Dx(), bounds.Dy())
	for _, layer := range s.Regions {
		r.addPath(layer.Path, t)
	}
	r.ras.Draw(mask, bounds, image.Opaque, image.Point{})

	g := gift.New(gift.GaussianBlur(r.opts.GlowSigma * float32(r.scale)))
	blurred := image.NewAlpha(g.Bounds(bounds))
	g.Draw(blurred, mask)

	glow := theme.RGBA(s.Palette.Glow, s.Palette.GlowAlpha)
	draw.DrawMask(dst, bounds, image.NewUniform(glow), image.Point{}, blurred, image.Point{}, draw.Over)
}

// applyPaper modulates the background brightness with perlin noise.
func (r *Rasterizer) applyPaper(dst *image.RGBA) {
	noise := perlin.NewPerlin(2.0, 2.0, 3, r.opts.PaperSeed)
	b := dst.Bounds()
	scale := 64 * r.scale
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := noise.Noise2D(float64(x)/scale, float64(y)/scale) * r.opts.PaperStrength
			i := dst.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				dst.Pix[i+c] = shade(dst.Pix[i+c], v)
			}
		}
	}
}

func shade(c uint8, v float64) uint8 {
	f := float64(c) * (1 + v)
	switch {
	case f < 0:
		return 0
	case f > 255:
		return 255
	default:
		return uint8(f)
	}
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

// RenderPNG rasterizes the scene and writes it as PNG.
func RenderPNG(w io.Writer, s compose.Scene, opts RasterOptions) error {
	return EncodePNG(w, NewRasterizer(opts).Render(s))
}
