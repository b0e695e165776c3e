// Package path turns region geometry into drawable outlines in canvas space.
//
// Outlines are independent of the viewport transform, so they are built once
// per region set and reused for every frame.
package path

import (
	"strconv"
	"strings"

	"github.com/MeKo-Tech/pinmap/internal/projection"
	"github.com/MeKo-Tech/pinmap/internal/types"
	"github.com/paulmach/orb"
)

// OpKind is a path operation.
type OpKind uint8

const (
	MoveTo OpKind = iota
	LineTo
)

// Op is a single path command at a canvas point.
type Op struct {
	Kind OpKind
	P    types.ScreenPoint
}

// Subpath is one closed outline, typically a single ring.
type Subpath []Op

// Path is the outline of a whole region.
type Path []Subpath

// Ring projects ring into a closed subpath. Vertices that do not project
// (poles, NaN input) are skipped; the first projectable vertex becomes the
// move. A ring with no projectable vertex yields nil.
func Ring(ring orb.Ring) Subpath {
	var sp Subpath
	for _, p := range ring {
		x, y := projection.Project(p.Lon(), p.Lat())
		if !projection.Valid(x, y) {
			continue
		}
		kind := LineTo
		if len(sp) == 0 {
			kind = MoveTo
		}
		sp = append(sp, Op{Kind: kind, P: types.ScreenPoint{X: x, Y: y}})
	}
	return sp
}

// Generate emits one subpath per ring of a Polygon, or per ring of every
// polygon of a MultiPolygon. Other geometry types produce an empty path.
func Generate(g orb.Geometry) Path {
	var polys []orb.Polygon
	switch geom := g.(type) {
	case orb.Polygon:
		polys = []orb.Polygon{geom}
	case orb.MultiPolygon:
		polys = geom
	default:
		return nil
	}

	var p Path
	for _, poly := range polys {
		for _, ring := range poly {
			if sp := Ring(ring); len(sp) > 0 {
				p = append(p, sp)
			}
		}
	}
	return p
}

// Bound returns the canvas-space bounding box of the path.
func (p Path) Bound() (min, max types.ScreenPoint, ok bool) {
	for _, sp := range p {
		for _, op := range sp {
			if !ok {
				min, max, ok = op.P, op.P, true
				continue
			}
			if op.P.X < min.X {
				min.X = op.P.X
			}
			if op.P.Y < min.Y {
				min.Y = op.P.Y
			}
			if op.P.X > max.X {
				max.X = op.P.X
			}
			if op.P.Y > max.Y {
				max.Y = op.P.Y
			}
		}
	}
	return min, max, ok
}

// D serializes the path as an SVG path data string with two decimals.
func (p Path) D() string {
	var sb strings.Builder
	for _, sp := range p {
		for _, op := range sp {
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			if op.Kind == MoveTo {
				sb.WriteByte('M')
			} else {
				sb.WriteByte('L')
			}
			sb.WriteString(strconv.FormatFloat(op.P.X, 'f', 2, 64))
			sb.WriteByte(' ')
			sb.WriteString(strconv.FormatFloat(op.P.Y, 'f', 2, 64))
		}
		sb.WriteString(" Z")
	}
	return strings.TrimSpace(sb.String())
}
