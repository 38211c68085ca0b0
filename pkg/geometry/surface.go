package geometry

import (
	"fmt"
	"math"

	"github.com/chazu/kerf/pkg/geom"
)

// SurfaceKind identifies the variant of a Surface.
type SurfaceKind int

const (
	SurfacePlane SurfaceKind = iota
	SurfaceSwept
)

func (k SurfaceKind) String() string {
	switch k {
	case SurfacePlane:
		return "plane"
	case SurfaceSwept:
		return "swept"
	default:
		return fmt.Sprintf("SurfaceKind(%d)", int(k))
	}
}

// Surface is a parametric map from (u, v) to 3D points.
//
//	Plane: S(u, v) = Origin + u·U + v·V           normal U×V
//	Swept: S(u, v) = Curve(u) + v·Path            normal Curve'(u)×Path
type Surface struct {
	Kind SurfaceKind

	Origin geom.Vec3
	U, V   geom.Vec3

	Curve Curve
	Path  geom.Vec3
}

// Plane returns the plane through origin spanned by u and v.
func Plane(origin, u, v geom.Vec3) Surface {
	return Surface{Kind: SurfacePlane, Origin: origin, U: u, V: v}
}

// XYPlane is the plane z = 0 with its standard axes.
func XYPlane() Surface { return Plane(geom.Vec3{}, geom.XAxis, geom.YAxis) }

// PlaneFromNormal returns a plane through origin whose normal is n, with
// arbitrary orthonormal in-plane axes.
func PlaneFromNormal(origin, n geom.Vec3) Surface {
	n = n.Normalize()
	u := n.AnyPerpendicular()
	return Plane(origin, u, n.Cross(u))
}

// Swept returns the surface traced by curve translated along path.
func Swept(curve Curve, path geom.Vec3) Surface {
	return Surface{Kind: SurfaceSwept, Curve: curve, Path: path}
}

// PointAt evaluates the surface at (u, v).
func (s Surface) PointAt(u, v float64) geom.Vec3 {
	switch s.Kind {
	case SurfacePlane:
		return s.Origin.Add(s.U.Scale(u)).Add(s.V.Scale(v))
	case SurfaceSwept:
		return s.Curve.PointAt(u).Add(s.Path.Scale(v))
	}
	panic("geometry: unknown surface kind " + s.Kind.String())
}

// PointAt2 evaluates the surface at a parameter-space point.
func (s Surface) PointAt2(p geom.Vec2) geom.Vec3 { return s.PointAt(p.X, p.Y) }

// NormalAt returns the unit normal at (u, v).
func (s Surface) NormalAt(u, v float64) geom.Vec3 {
	switch s.Kind {
	case SurfacePlane:
		return s.U.Cross(s.V).Normalize()
	case SurfaceSwept:
		return s.Curve.TangentAt(u).Cross(s.Path).Normalize()
	}
	panic("geometry: unknown surface kind " + s.Kind.String())
}

// Reverse returns the surface with its normal flipped. A plane negates V
// (so v coordinates change sign); a swept surface reverses its curve (so u
// coordinates change sign).
func (s Surface) Reverse() Surface {
	switch s.Kind {
	case SurfacePlane:
		s.V = s.V.Neg()
	case SurfaceSwept:
		s.Curve = s.Curve.Reverse()
	default:
		panic("geometry: unknown surface kind " + s.Kind.String())
	}
	return s
}

// Transform applies tf to the surface.
func (s Surface) Transform(tf geom.Transform) Surface {
	switch s.Kind {
	case SurfacePlane:
		s.Origin = tf.Point(s.Origin)
		s.U = tf.Vector(s.U)
		s.V = tf.Vector(s.V)
	case SurfaceSwept:
		s.Curve = s.Curve.Transform(tf)
		s.Path = tf.Vector(s.Path)
	default:
		panic("geometry: unknown surface kind " + s.Kind.String())
	}
	return s
}

// Translate moves the surface by d.
func (s Surface) Translate(d geom.Vec3) Surface {
	switch s.Kind {
	case SurfacePlane:
		s.Origin = s.Origin.Add(d)
	case SurfaceSwept:
		s.Curve = s.Curve.Translate(d)
	}
	return s
}

// Periodic reports whether u wraps around (swept circles).
func (s Surface) Periodic() bool {
	return s.Kind == SurfaceSwept && s.Curve.Periodic()
}

// Planar reports whether the surface is flat: a plane, or a line swept
// along a path.
func (s Surface) Planar() bool {
	switch s.Kind {
	case SurfacePlane:
		return true
	case SurfaceSwept:
		return s.Curve.Kind == CurveLine
	}
	return false
}

// Project returns the parameters of the point on the surface closest to p.
// For swept circles u lies in (-π, π].
func (s Surface) Project(p geom.Vec3) (u, v float64) {
	switch s.Kind {
	case SurfacePlane:
		return solve2(s.U, s.V, p.Sub(s.Origin))
	case SurfaceSwept:
		switch s.Curve.Kind {
		case CurveLine:
			return solve2(s.Curve.Dir, s.Path, p.Sub(s.Curve.Origin))
		case CurveCircle:
			n := s.Curve.Normal()
			v = p.Sub(s.Curve.Origin).Dot(n) / s.Path.Dot(n)
			return s.Curve.Project(p.Sub(s.Path.Scale(v))), v
		}
	}
	panic("geometry: unknown surface kind " + s.Kind.String())
}

// Project2 is Project returning a parameter-space point.
func (s Surface) Project2(p geom.Vec3) geom.Vec2 {
	u, v := s.Project(p)
	return geom.Vec2{X: u, Y: v}
}

// Distance returns the distance from p to the surface.
func (s Surface) Distance(p geom.Vec3) float64 {
	u, v := s.Project(p)
	return s.PointAt(u, v).Dist(p)
}

// Frame returns origin, unit in-plane axes and unit normal for a planar
// surface. ok is false for curved surfaces.
func (s Surface) Frame() (origin, x, y, n geom.Vec3, ok bool) {
	var a, b geom.Vec3
	switch {
	case s.Kind == SurfacePlane:
		origin, a, b = s.Origin, s.U, s.V
	case s.Kind == SurfaceSwept && s.Curve.Kind == CurveLine:
		origin, a, b = s.Curve.Origin, s.Curve.Dir, s.Path
	default:
		return origin, x, y, n, false
	}
	n = a.Cross(b).Normalize()
	x = a.Normalize()
	y = n.Cross(x)
	return origin, x, y, n, true
}

// solve2 returns (a, b) minimising |a·e0 + b·e1 - d|.
func solve2(e0, e1, d geom.Vec3) (float64, float64) {
	g00, g01, g11 := e0.Dot(e0), e0.Dot(e1), e1.Dot(e1)
	r0, r1 := d.Dot(e0), d.Dot(e1)
	det := g00*g11 - g01*g01
	if math.Abs(det) < 1e-300 {
		return 0, 0
	}
	return (r0*g11 - r1*g01) / det, (r1*g00 - r0*g01) / det
}

func (s Surface) String() string {
	switch s.Kind {
	case SurfacePlane:
		return fmt.Sprintf("plane(o=%v n=%v)", s.Origin, s.NormalAt(0, 0))
	case SurfaceSwept:
		return fmt.Sprintf("swept(%v along %v)", s.Curve, s.Path)
	}
	return s.Kind.String()
}
