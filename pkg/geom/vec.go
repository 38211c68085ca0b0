// Package geom provides the math primitives of the kernel: fixed-dimension
// points and vectors, tolerance comparison, affine transforms, bounding
// boxes and 2D line/circle intersection. All values are plain structs and
// every operation is deterministic.
package geom

import "math"

// Vec2 is a 2D point or vector.
type Vec2 struct {
	X, Y float64
}

// Vec3 is a 3D point or vector.
type Vec3 struct {
	X, Y, Z float64
}

// ---------------------------------------------------------------------------
// Vec2
// ---------------------------------------------------------------------------

func (a Vec2) Add(b Vec2) Vec2         { return Vec2{a.X + b.X, a.Y + b.Y} }
func (a Vec2) Sub(b Vec2) Vec2         { return Vec2{a.X - b.X, a.Y - b.Y} }
func (a Vec2) Scale(s float64) Vec2    { return Vec2{a.X * s, a.Y * s} }
func (a Vec2) Dot(b Vec2) float64      { return a.X*b.X + a.Y*b.Y }
func (a Vec2) Neg() Vec2               { return Vec2{-a.X, -a.Y} }
func (a Vec2) Length() float64         { return math.Hypot(a.X, a.Y) }
func (a Vec2) Dist(b Vec2) float64     { return a.Sub(b).Length() }
func (a Vec2) Perp() Vec2              { return Vec2{-a.Y, a.X} }
func (a Vec2) Lerp(b Vec2, t float64) Vec2 { return a.Add(b.Sub(a).Scale(t)) }

// Cross returns the z component of the 3D cross product of a and b.
func (a Vec2) Cross(b Vec2) float64 { return a.X*b.Y - a.Y*b.X }

// Normalize returns a unit vector in the direction of a. The zero vector
// is returned unchanged.
func (a Vec2) Normalize() Vec2 {
	l := a.Length()
	if l == 0 {
		return a
	}
	return a.Scale(1 / l)
}

// Angle returns the angle of a measured counter-clockwise from +X.
func (a Vec2) Angle() float64 { return math.Atan2(a.Y, a.X) }

// XYZ lifts a into the plane z = 0.
func (a Vec2) XYZ() Vec3 { return Vec3{a.X, a.Y, 0} }

// ---------------------------------------------------------------------------
// Vec3
// ---------------------------------------------------------------------------

func (a Vec3) Add(b Vec3) Vec3      { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a Vec3) Sub(b Vec3) Vec3      { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }
func (a Vec3) Scale(s float64) Vec3 { return Vec3{a.X * s, a.Y * s, a.Z * s} }
func (a Vec3) Dot(b Vec3) float64   { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }
func (a Vec3) Neg() Vec3            { return Vec3{-a.X, -a.Y, -a.Z} }
func (a Vec3) Length() float64      { return math.Sqrt(a.Dot(a)) }
func (a Vec3) Length2() float64     { return a.Dot(a) }
func (a Vec3) Dist(b Vec3) float64  { return a.Sub(b).Length() }

func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		a.Y*b.Z - a.Z*b.Y,
		a.Z*b.X - a.X*b.Z,
		a.X*b.Y - a.Y*b.X,
	}
}

// Lerp interpolates linearly from a (t = 0) to b (t = 1).
func (a Vec3) Lerp(b Vec3, t float64) Vec3 { return a.Add(b.Sub(a).Scale(t)) }

// Normalize returns a unit vector in the direction of a. The zero vector
// is returned unchanged.
func (a Vec3) Normalize() Vec3 {
	l := a.Length()
	if l == 0 {
		return a
	}
	return a.Scale(1 / l)
}

// Min returns the component-wise minimum.
func (a Vec3) Min(b Vec3) Vec3 {
	return Vec3{math.Min(a.X, b.X), math.Min(a.Y, b.Y), math.Min(a.Z, b.Z)}
}

// Max returns the component-wise maximum.
func (a Vec3) Max(b Vec3) Vec3 {
	return Vec3{math.Max(a.X, b.X), math.Max(a.Y, b.Y), math.Max(a.Z, b.Z)}
}

// Component returns the i-th coordinate (0 = X, 1 = Y, 2 = Z).
func (a Vec3) Component(i int) float64 {
	switch i {
	case 0:
		return a.X
	case 1:
		return a.Y
	default:
		return a.Z
	}
}

// XY drops the Z coordinate.
func (a Vec3) XY() Vec2 { return Vec2{a.X, a.Y} }

// Array returns the coordinates as an array.
func (a Vec3) Array() [3]float64 { return [3]float64{a.X, a.Y, a.Z} }

// AnyPerpendicular returns a unit vector perpendicular to a. a must be
// non-zero.
func (a Vec3) AnyPerpendicular() Vec3 {
	ax, ay, az := math.Abs(a.X), math.Abs(a.Y), math.Abs(a.Z)
	var other Vec3
	switch {
	case ax <= ay && ax <= az:
		other = Vec3{1, 0, 0}
	case ay <= az:
		other = Vec3{0, 1, 0}
	default:
		other = Vec3{0, 0, 1}
	}
	return a.Cross(other).Normalize()
}

// Basis axes.
var (
	XAxis = Vec3{1, 0, 0}
	YAxis = Vec3{0, 1, 0}
	ZAxis = Vec3{0, 0, 1}
)
