package geom

import (
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Transform is an affine transform of 3D space. It wraps the sdfx 4x4
// matrix so kernel solids and sdfx solids share one transform algebra.
type Transform struct {
	m sdf.M44
}

// Identity returns the identity transform.
func Identity() Transform { return Transform{m: sdf.Identity3d()} }

// Translation returns a transform moving points by v.
func Translation(v Vec3) Transform { return Transform{m: sdf.Translate3d(v.sdfx())} }

// Rotation returns a rotation of angle radians about axis through the
// origin (right-handed).
func Rotation(axis Vec3, angle float64) Transform {
	return Transform{m: sdf.Rotate3d(axis.Normalize().sdfx(), angle)}
}

// RotationEuler returns the rotation X, then Y, then Z by the given angles
// in degrees.
func RotationEuler(x, y, z float64) Transform {
	const rad = math.Pi / 180
	m := sdf.RotateZ(z * rad).Mul(sdf.RotateY(y * rad)).Mul(sdf.RotateX(x * rad))
	return Transform{m: m}
}

// Scaling returns a uniform scale about the origin.
func Scaling(s float64) Transform { return Transform{m: sdf.Scale3d(v3.Vec{X: s, Y: s, Z: s})} }

// FrameTransform returns the rigid motion taking the world X axis to x, the
// Z axis to n and the origin to origin. x and n must be perpendicular.
func FrameTransform(origin, x, n Vec3) Transform {
	n = n.Normalize()
	x = x.Normalize()
	var align Transform
	switch c := ZAxis.Dot(n); {
	case c > 1-1e-12:
		align = Identity()
	case c < -1+1e-12:
		align = Rotation(XAxis, math.Pi)
	default:
		align = Rotation(ZAxis.Cross(n), math.Acos(c))
	}
	xa := align.Vector(XAxis)
	spin := Rotation(n, math.Atan2(xa.Cross(x).Dot(n), xa.Dot(x)))
	return align.Then(spin).Then(Translation(origin))
}

// Then returns the transform that applies t first, then next.
func (t Transform) Then(next Transform) Transform { return Transform{m: next.m.Mul(t.m)} }

// Inverse returns the inverse transform.
func (t Transform) Inverse() Transform { return Transform{m: t.m.Inverse()} }

// Matrix returns the underlying sdfx matrix.
func (t Transform) Matrix() sdf.M44 { return t.m }

// Point transforms a position.
func (t Transform) Point(p Vec3) Vec3 { return fromSdfx(t.m.MulPosition(p.sdfx())) }

// Vector transforms a direction (translation is ignored).
func (t Transform) Vector(v Vec3) Vec3 {
	return t.Point(v).Sub(t.Point(Vec3{}))
}

// Normal transforms a surface normal, returning a unit vector. Uniform
// scales and rigid motions keep normals perpendicular, so this is the
// normalised direction transform.
func (t Transform) Normal(n Vec3) Vec3 { return t.Vector(n).Normalize() }

// ScaleFactor returns the length scale of the transform, measured on the X
// axis. Kernel transforms are uniform so every axis agrees.
func (t Transform) ScaleFactor() float64 { return t.Vector(XAxis).Length() }

// Flips reports whether the transform reverses orientation.
func (t Transform) Flips() bool {
	x, y, z := t.Vector(XAxis), t.Vector(YAxis), t.Vector(ZAxis)
	return x.Cross(y).Dot(z) < 0
}

func (a Vec3) sdfx() v3.Vec { return v3.Vec{X: a.X, Y: a.Y, Z: a.Z} }

func fromSdfx(v v3.Vec) Vec3 { return Vec3{X: v.X, Y: v.Y, Z: v.Z} }

// ToSdfx converts a to an sdfx vector.
func (a Vec3) ToSdfx() v3.Vec { return a.sdfx() }

// FromSdfx converts an sdfx vector.
func FromSdfx(v v3.Vec) Vec3 { return fromSdfx(v) }
