// Package geometry holds the parametric curves and surfaces that topology
// is built on. Both are closed tagged variants: every switch over a Kind
// covers every case, and adding a kind means visiting each of them.
package geometry

import (
	"fmt"
	"math"

	"github.com/chazu/kerf/pkg/geom"
)

// CurveKind identifies the variant of a Curve.
type CurveKind int

const (
	CurveLine CurveKind = iota
	CurveCircle
)

func (k CurveKind) String() string {
	switch k {
	case CurveLine:
		return "line"
	case CurveCircle:
		return "circle"
	default:
		return fmt.Sprintf("CurveKind(%d)", int(k))
	}
}

// Curve is a parametric map from a scalar domain to 3D points.
//
//	Line:   P(t) = Origin + t·Dir                 t ∈ ℝ
//	Circle: P(t) = Origin + A·cos t + B·sin t     t ∈ [0, 2π), periodic
//
// A and B are orthogonal. Equal lengths give a circle of that radius;
// unequal lengths give an ellipse with semi-axes A and B, which is how
// plane sections of swept circles are represented.
type Curve struct {
	Kind   CurveKind
	Origin geom.Vec3
	Dir    geom.Vec3
	A, B   geom.Vec3
}

// Line returns the line through origin with direction dir.
func Line(origin, dir geom.Vec3) Curve {
	return Curve{Kind: CurveLine, Origin: origin, Dir: dir}
}

// LineThrough returns the line with P(0) = p0 and P(1) = p1.
func LineThrough(p0, p1 geom.Vec3) Curve { return Line(p0, p1.Sub(p0)) }

// Circle returns the circle about center spanned by the orthogonal radius
// vectors a and b. The parameter runs from a towards b.
func Circle(center, a, b geom.Vec3) Curve {
	return Curve{Kind: CurveCircle, Origin: center, A: a, B: b}
}

// Ellipse returns the ellipse about center with orthogonal semi-axis
// vectors a and b.
func Ellipse(center, a, b geom.Vec3) Curve {
	return Curve{Kind: CurveCircle, Origin: center, A: a, B: b}
}

// CircleInPlane returns the circle of the given radius about center lying in
// the plane with unit axes u and v, parameterised counter-clockwise about
// u×v.
func CircleInPlane(center, u, v geom.Vec3, radius float64) Curve {
	return Circle(center, u.Normalize().Scale(radius), v.Normalize().Scale(radius))
}

// Periodic reports whether the curve's domain wraps around.
func (c Curve) Periodic() bool {
	switch c.Kind {
	case CurveLine:
		return false
	case CurveCircle:
		return true
	}
	panic("geometry: unknown curve kind " + c.Kind.String())
}

// Period returns the length of the parameter period, or 0 for bounded
// curves.
func (c Curve) Period() float64 {
	if c.Periodic() {
		return 2 * math.Pi
	}
	return 0
}

// PointAt evaluates the curve at t.
func (c Curve) PointAt(t float64) geom.Vec3 {
	switch c.Kind {
	case CurveLine:
		return c.Origin.Add(c.Dir.Scale(t))
	case CurveCircle:
		// Evaluated from t directly each time; no incremental rotation.
		s, co := math.Sincos(t)
		return c.Origin.Add(c.A.Scale(co)).Add(c.B.Scale(s))
	}
	panic("geometry: unknown curve kind " + c.Kind.String())
}

// TangentAt returns the derivative dP/dt at t. It is not normalised.
func (c Curve) TangentAt(t float64) geom.Vec3 {
	switch c.Kind {
	case CurveLine:
		return c.Dir
	case CurveCircle:
		s, co := math.Sincos(t)
		return c.B.Scale(co).Sub(c.A.Scale(s))
	}
	panic("geometry: unknown curve kind " + c.Kind.String())
}

// Reverse returns the curve traversed backwards: Reverse().PointAt(-t) ==
// PointAt(t), so a range [t0, t1] becomes [-t1, -t0].
func (c Curve) Reverse() Curve {
	switch c.Kind {
	case CurveLine:
		c.Dir = c.Dir.Neg()
	case CurveCircle:
		c.B = c.B.Neg()
	default:
		panic("geometry: unknown curve kind " + c.Kind.String())
	}
	return c
}

// Transform applies tf to the curve.
func (c Curve) Transform(tf geom.Transform) Curve {
	c.Origin = tf.Point(c.Origin)
	c.Dir = tf.Vector(c.Dir)
	c.A = tf.Vector(c.A)
	c.B = tf.Vector(c.B)
	return c
}

// Translate moves the curve by d.
func (c Curve) Translate(d geom.Vec3) Curve {
	c.Origin = c.Origin.Add(d)
	return c
}

// Radius returns the radius of a circle, the larger semi-axis of an
// ellipse and 0 for a line.
func (c Curve) Radius() float64 {
	if c.Kind == CurveCircle {
		return math.Max(c.A.Length(), c.B.Length())
	}
	return 0
}

// Circular reports whether a circle-kind curve has equal semi-axes.
func (c Curve) Circular() bool {
	if c.Kind != CurveCircle {
		return false
	}
	a, b := c.A.Length(), c.B.Length()
	return math.Abs(a-b) <= 1e-12*math.Max(a, b)
}

// Normal returns the unit axis of a circle (A×B). Lines have no normal.
func (c Curve) Normal() geom.Vec3 {
	if c.Kind == CurveCircle {
		return c.A.Cross(c.B).Normalize()
	}
	return geom.Vec3{}
}

// Project returns the parameter of the point on the curve closest to p.
// For circles the result lies in (-π, π].
func (c Curve) Project(p geom.Vec3) float64 {
	switch c.Kind {
	case CurveLine:
		return p.Sub(c.Origin).Dot(c.Dir) / c.Dir.Length2()
	case CurveCircle:
		d := p.Sub(c.Origin)
		return math.Atan2(d.Dot(c.B)/c.B.Length2(), d.Dot(c.A)/c.A.Length2())
	}
	panic("geometry: unknown curve kind " + c.Kind.String())
}

// ProjectInRange is Project with a periodic result shifted into
// [t0, t0+period). Non-periodic curves return Project unchanged.
func (c Curve) ProjectInRange(p geom.Vec3, t0 float64) float64 {
	t := c.Project(p)
	if !c.Periodic() {
		return t
	}
	return WrapParam(t, t0, c.Period())
}

// WrapParam shifts t by whole periods into [t0, t0+period).
func WrapParam(t, t0, period float64) float64 {
	t = t0 + math.Mod(t-t0, period)
	if t < t0 {
		t += period
	}
	return t
}

// NearestTurn shifts u by whole turns to the value nearest ref.
func NearestTurn(u, ref float64) float64 {
	const turn = 2 * math.Pi
	return u + turn*math.Round((ref-u)/turn)
}

// IsFullPeriod reports whether [t0, t1] spans a whole period of a periodic
// curve, within an angular slack of 1e-9.
func (c Curve) IsFullPeriod(t0, t1 float64) bool {
	return c.Periodic() && math.Abs(math.Abs(t1-t0)-c.Period()) < 1e-9
}

// Length returns the arc length of the curve over [t0, t1].
func (c Curve) Length(t0, t1 float64) float64 {
	switch c.Kind {
	case CurveLine:
		return math.Abs(t1-t0) * c.Dir.Length()
	case CurveCircle:
		if c.Circular() {
			return math.Abs(t1-t0) * c.Radius()
		}
		return c.arcLength(t0, t1)
	}
	panic("geometry: unknown curve kind " + c.Kind.String())
}

// arcLength integrates |P'(t)| over [t0, t1] with composite Simpson
// steps of at most 1/64 turn.
func (c Curve) arcLength(t0, t1 float64) float64 {
	if t1 < t0 {
		t0, t1 = t1, t0
	}
	n := 2 * int(math.Ceil((t1-t0)*64/(4*math.Pi)))
	if n < 2 {
		n = 2
	}
	h := (t1 - t0) / float64(n)
	sum := c.TangentAt(t0).Length() + c.TangentAt(t1).Length()
	for i := 1; i < n; i++ {
		w := 2.0
		if i%2 == 1 {
			w = 4
		}
		sum += w * c.TangentAt(t0+h*float64(i)).Length()
	}
	return sum * h / 3
}

func (c Curve) String() string {
	switch c.Kind {
	case CurveLine:
		return fmt.Sprintf("line(%v + t·%v)", c.Origin, c.Dir)
	case CurveCircle:
		if !c.Circular() {
			return fmt.Sprintf("ellipse(c=%v a=%g b=%g)", c.Origin, c.A.Length(), c.B.Length())
		}
		return fmt.Sprintf("circle(c=%v r=%g)", c.Origin, c.Radius())
	}
	return c.Kind.String()
}
