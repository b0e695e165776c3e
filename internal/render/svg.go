// Package render draws a composed scene as SVG or as a raster image.
package render

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"

	svg "github.com/ajstarks/svgo"

	"github.com/MeKo-Tech/pinmap/internal/compose"
	"github.com/MeKo-Tech/pinmap/internal/projection"
	"github.com/MeKo-Tech/pinmap/internal/theme"
)

// SVGOptions control the SVG document.
type SVGOptions struct {
	Width  int  // pixel width attribute, defaults to the canvas width
	Height int  // pixel height attribute, defaults to the canvas height
	Glow   bool // blurred land halo under the regions
	Titles bool // <title> children with region names
}

// DefaultSVGOptions renders at canvas size with glow and titles.
func DefaultSVGOptions() SVGOptions {
	return SVGOptions{Width: projection.Width, Height: projection.Height, Glow: true, Titles: true}
}

// WriteSVG writes the scene as a standalone SVG document. The viewBox is
// the logical canvas and the viewport transform is one group transform.
func WriteSVG(w io.Writer, s compose.Scene, opts SVGOptions) error {
	if opts.Width <= 0 {
		opts.Width = projection.Width
	}
	if opts.Height <= 0 {
		opts.Height = projection.Height
	}

	// svgo writes without returning errors; buffer and report on copy.
	var buf bytes.Buffer
	canvas := svg.New(&buf)
	canvas.Startview(opts.Width, opts.Height, 0, 0, projection.Width, projection.Height)

	p := s.Palette
	canvas.Rect(0, 0, projection.Width, projection.Height, attr("fill", theme.CSS(p.MapBackground, 1)))

	if s.Loading {
		canvas.Text(projection.Width/2, projection.Height/2, "Loading map…",
			attr("text-anchor", "middle"),
			attr("fill", theme.CSS(p.TextSecondary, 1)),
			attr("font-family", "sans-serif"))
		canvas.End()
		_, err := buf.WriteTo(w)
		return err
	}

	if opts.Glow {
		canvas.Def()
		canvas.Filter("glow", attr("x", "-20%"), attr("y", "-20%"), attr("width", "140%"), attr("height", "140%"))
		canvas.FeGaussianBlur(svg.Filterspec{In: "SourceGraphic"}, 4, 4)
		canvas.Fend()
		canvas.DefEnd()
	}

	canvas.Gtransform(s.Transform.SVG())

	if opts.Glow && len(s.Regions) > 0 {
		canvas.Group(attr("filter", "url(#glow)"), attr("opacity", num(p.GlowAlpha)))
		for _, r := range s.Regions {
			if r.D == "" {
				continue
			}
			canvas.Path(r.D, attr("fill", theme.CSS(p.Glow, 1)))
		}
		canvas.Gend()
	}

	canvas.Gid("regions")
	for _, r := range s.Regions {
		if r.D == "" {
			continue
		}
		attrs := []string{
			attr("data-id", r.ID),
			attr("fill", theme.CSS(r.Fill, 1)),
			attr("stroke", theme.CSS(r.Stroke, 1)),
			attr("stroke-width", num(r.StrokeWidth)),
			attr("cursor", r.Cursor),
		}
		if r.Visited {
			attrs = append(attrs, attr("class", "visited"))
		}
		if opts.Titles && r.Name != "" {
			fmt.Fprintf(canvas.Writer, "<path d=\"%s\" %s>", r.D, join(attrs))
			canvas.Title(r.Name)
			fmt.Fprintln(canvas.Writer, "</path>")
			continue
		}
		canvas.Path(r.D, attrs...)
	}
	canvas.Gend()

	canvas.Gid("pins")
	for _, pin := range s.Pins {
		writePin(canvas, pin, p)
	}
	canvas.Gend()

	canvas.Gend()
	canvas.End()

	_, err := buf.WriteTo(w)
	return err
}

func writePin(canvas *svg.SVG, pin compose.PinLayer, p theme.Palette) {
	cx, cy := pin.Center.X, pin.Center.Y
	r := pin.Radius * pin.Scale

	strokeWidth := pin.StrokeWidth
	if pin.Selected {
		strokeWidth *= 2
	}

	canvas.Group(attr("data-pin", pin.ID), attr("cursor", "pointer"))
	canvas.Path(circleD(cx+pin.ShadowOffset, cy+pin.ShadowOffset, r),
		attr("fill", theme.CSS(p.Shadow, p.ShadowAlpha)))
	canvas.Path(circleD(cx, cy, r),
		attr("fill", theme.CSS(pin.Fill, 1)),
		attr("stroke", theme.CSS(pin.Stroke, 1)),
		attr("stroke-width", num(strokeWidth)))

	if pin.FlagURL != "" {
		fw, fh := pin.FlagWidth*pin.Scale, pin.FlagHeight*pin.Scale
		fmt.Fprintf(canvas.Writer, "<image href=\"%s\" x=\"%s\" y=\"%s\" width=\"%s\" height=\"%s\" preserveAspectRatio=\"xMidYMid slice\"/>\n",
			escape(pin.FlagURL), num(cx-fw/2), num(cy-fh/2), num(fw), num(fh))
	}
	if pin.Emoji != "" {
		fmt.Fprintf(canvas.Writer, "<text x=\"%s\" y=\"%s\" font-size=\"%s\" text-anchor=\"middle\">%s</text>\n",
			num(cx), num(cy+pin.EmojiOffset*pin.Scale), num(pin.EmojiSize*pin.Scale), escape(pin.Emoji))
	}
	canvas.Gend()
}

// circleD is a circle as two arcs, so it can carry fractional radii.
func circleD(cx, cy, r float64) string {
	return fmt.Sprintf("M%s %s A%s %s 0 1 0 %s %s A%s %s 0 1 0 %s %s Z",
		num(cx-r), num(cy), num(r), num(r), num(cx+r), num(cy),
		num(r), num(r), num(cx-r), num(cy))
}

func attr(name, value string) string {
	return name + `="` + escape(value) + `"`
}

func join(attrs []string) string {
	var b bytes.Buffer
	for i, a := range attrs {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(a)
	}
	return b.String()
}

func escape(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
