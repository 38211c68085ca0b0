// Package sketch assembles bounded 2D profiles from line segments, arcs and
// circles and builds them into planar faces of a topology graph.
package sketch

import (
	"fmt"
	"math"

	"github.com/chazu/kerf/pkg/geom"
	"github.com/chazu/kerf/pkg/geometry"
)

// SegmentKind identifies the variant of a Segment.
type SegmentKind int

const (
	SegmentLine SegmentKind = iota
	SegmentArc
	SegmentCircle
)

func (k SegmentKind) String() string {
	switch k {
	case SegmentLine:
		return "line"
	case SegmentArc:
		return "arc"
	case SegmentCircle:
		return "circle"
	default:
		return fmt.Sprintf("SegmentKind(%d)", int(k))
	}
}

// Segment is one piece of a 2D loop in sketch coordinates.
type Segment struct {
	Kind SegmentKind

	// Line endpoints.
	From, To geom.Vec2

	// Arc and circle geometry. An arc runs counter-clockwise from Start to
	// End when End > Start and clockwise otherwise. Angles are in radians.
	Center     geom.Vec2
	Radius     float64
	Start, End float64
}

// Line returns the straight segment from a to b.
func Line(a, b geom.Vec2) Segment { return Segment{Kind: SegmentLine, From: a, To: b} }

// Arc returns the arc about center from angle start to angle end.
func Arc(center geom.Vec2, radius, start, end float64) Segment {
	return Segment{Kind: SegmentArc, Center: center, Radius: radius, Start: start, End: end}
}

// Circle returns a full counter-clockwise circle starting at angle 0.
func Circle(center geom.Vec2, radius float64) Segment {
	return Segment{Kind: SegmentCircle, Center: center, Radius: radius, End: 2 * math.Pi}
}

func (s Segment) pointAt(angle float64) geom.Vec2 {
	sn, cs := math.Sincos(angle)
	return s.Center.Add(geom.Vec2{X: cs, Y: sn}.Scale(s.Radius))
}

// StartPoint returns where the segment begins.
func (s Segment) StartPoint() geom.Vec2 {
	switch s.Kind {
	case SegmentLine:
		return s.From
	default:
		return s.pointAt(s.Start)
	}
}

// EndPoint returns where the segment ends.
func (s Segment) EndPoint() geom.Vec2 {
	switch s.Kind {
	case SegmentLine:
		return s.To
	default:
		return s.pointAt(s.End)
	}
}

// Reverse returns the segment traversed backwards.
func (s Segment) Reverse() Segment {
	switch s.Kind {
	case SegmentLine:
		s.From, s.To = s.To, s.From
	default:
		s.Start, s.End = s.End, s.Start
	}
	return s
}

// Closed reports whether the segment forms a loop on its own.
func (s Segment) Closed() bool { return s.Kind == SegmentCircle }

// CCW reports whether an arc or circle turns counter-clockwise.
func (s Segment) CCW() bool { return s.End > s.Start }

// Length returns the segment's length.
func (s Segment) Length() float64 {
	switch s.Kind {
	case SegmentLine:
		return s.From.Dist(s.To)
	default:
		return math.Abs(s.End-s.Start) * s.Radius
	}
}

// curve returns the segment as a counter-clockwise 3D curve on the plane
// together with its parameter range and whether traversal runs against
// the curve.
func (s Segment) curve(plane geometry.Surface) (c geometry.Curve, t0, t1 float64, reversed bool) {
	switch s.Kind {
	case SegmentLine:
		a, b := plane.PointAt2(s.From), plane.PointAt2(s.To)
		return geometry.LineThrough(a, b), 0, 1, false
	}
	c = geometry.CircleInPlane(plane.PointAt2(s.Center), plane.U, plane.V, s.Radius)
	if s.CCW() {
		return c, s.Start, s.End, false
	}
	return c, s.End, s.Start, true
}

// Approximate samples the segment in traversal order within tol. The
// endpoint is included.
func (s Segment) Approximate(tol geom.Tolerance) ([]geom.Vec2, error) {
	c, t0, t1, reversed := s.curve(geometry.XYPlane())
	pl, err := geometry.ApproximateCurve(c, t0, t1, tol, 0)
	if err != nil {
		return nil, err
	}
	out := make([]geom.Vec2, len(pl.Points))
	for i, p := range pl.Points {
		out[i] = p.XY()
	}
	if reversed {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	out[0], out[len(out)-1] = s.StartPoint(), s.EndPoint()
	return out, nil
}

func (s Segment) String() string {
	switch s.Kind {
	case SegmentLine:
		return fmt.Sprintf("line(%v -> %v)", s.From, s.To)
	case SegmentArc:
		return fmt.Sprintf("arc(c=%v r=%g %g..%g)", s.Center, s.Radius, s.Start, s.End)
	case SegmentCircle:
		return fmt.Sprintf("circle(c=%v r=%g)", s.Center, s.Radius)
	}
	return s.Kind.String()
}
