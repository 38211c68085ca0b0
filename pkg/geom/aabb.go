package geom

import (
	"math"

	"github.com/deadsy/sdfx/sdf"
	"github.com/dhconnelly/rtreego"
)

// AABB is an axis-aligned bounding box. The zero value is empty.
type AABB struct {
	Min, Max Vec3
	valid    bool
}

// NewAABB returns the box spanning min and max.
func NewAABB(min, max Vec3) AABB {
	return AABB{Min: min.Min(max), Max: min.Max(max), valid: true}
}

// AABBFromPoints returns the smallest box containing pts.
func AABBFromPoints(pts ...Vec3) AABB {
	var b AABB
	for _, p := range pts {
		b = b.Extend(p)
	}
	return b
}

// Empty reports whether the box contains no points.
func (b AABB) Empty() bool { return !b.valid }

// Extend returns b grown to include p.
func (b AABB) Extend(p Vec3) AABB {
	if !b.valid {
		return AABB{Min: p, Max: p, valid: true}
	}
	return AABB{Min: b.Min.Min(p), Max: b.Max.Max(p), valid: true}
}

// Union returns the smallest box containing b and o.
func (b AABB) Union(o AABB) AABB {
	switch {
	case !b.valid:
		return o
	case !o.valid:
		return b
	}
	return AABB{Min: b.Min.Min(o.Min), Max: b.Max.Max(o.Max), valid: true}
}

// Intersect returns the overlap of b and o, empty when they are disjoint.
func (b AABB) Intersect(o AABB) AABB {
	if !b.valid || !o.valid {
		return AABB{}
	}
	min, max := b.Min.Max(o.Min), b.Max.Min(o.Max)
	if min.X > max.X || min.Y > max.Y || min.Z > max.Z {
		return AABB{}
	}
	return AABB{Min: min, Max: max, valid: true}
}

// Grow returns b expanded by d in every direction.
func (b AABB) Grow(d float64) AABB {
	if !b.valid {
		return b
	}
	off := Vec3{d, d, d}
	return AABB{Min: b.Min.Sub(off), Max: b.Max.Add(off), valid: true}
}

// Overlaps reports whether b and o intersect when both are grown by tol.
func (b AABB) Overlaps(o AABB, tol Tolerance) bool {
	if !b.valid || !o.valid {
		return false
	}
	t := float64(tol)
	return b.Min.X <= o.Max.X+t && o.Min.X <= b.Max.X+t &&
		b.Min.Y <= o.Max.Y+t && o.Min.Y <= b.Max.Y+t &&
		b.Min.Z <= o.Max.Z+t && o.Min.Z <= b.Max.Z+t
}

// Contains reports whether p lies inside b grown by tol.
func (b AABB) Contains(p Vec3, tol Tolerance) bool {
	if !b.valid {
		return false
	}
	return tol.Within(p.X, b.Min.X, b.Max.X) &&
		tol.Within(p.Y, b.Min.Y, b.Max.Y) &&
		tol.Within(p.Z, b.Min.Z, b.Max.Z)
}

// Size returns the extent along each axis.
func (b AABB) Size() Vec3 {
	if !b.valid {
		return Vec3{}
	}
	return b.Max.Sub(b.Min)
}

// Center returns the midpoint of the box.
func (b AABB) Center() Vec3 { return b.Min.Lerp(b.Max, 0.5) }

// Diagonal returns the length of the box diagonal.
func (b AABB) Diagonal() float64 { return b.Size().Length() }

// MinExtent returns the smallest strictly positive extent, or 0 when the
// box is empty or a single point.
func (b AABB) MinExtent() float64 {
	s := b.Size()
	min := math.Inf(1)
	for i := 0; i < 3; i++ {
		if e := s.Component(i); e > 0 && e < min {
			min = e
		}
	}
	if math.IsInf(min, 1) {
		return 0
	}
	return min
}

// Transform returns the bounds of b's eight corners under t.
func (b AABB) Transform(t Transform) AABB {
	if !b.valid {
		return b
	}
	var out AABB
	for i := 0; i < 8; i++ {
		c := b.Min
		if i&1 != 0 {
			c.X = b.Max.X
		}
		if i&2 != 0 {
			c.Y = b.Max.Y
		}
		if i&4 != 0 {
			c.Z = b.Max.Z
		}
		out = out.Extend(t.Point(c))
	}
	return out
}

// Box3 converts b to an sdfx bounding box.
func (b AABB) Box3() sdf.Box3 {
	return sdf.Box3{Min: b.Min.sdfx(), Max: b.Max.sdfx()}
}

// AABBFromBox3 converts an sdfx bounding box.
func AABBFromBox3(bb sdf.Box3) AABB {
	return NewAABB(fromSdfx(bb.Min), fromSdfx(bb.Max))
}

// Rect converts b to an R-tree rectangle, padding every side by pad. pad
// must be positive so degenerate boxes still have volume.
func (b AABB) Rect(pad float64) rtreego.Rect {
	p := rtreego.Point{b.Min.X - pad, b.Min.Y - pad, b.Min.Z - pad}
	s := b.Size()
	lengths := []float64{s.X + 2*pad, s.Y + 2*pad, s.Z + 2*pad}
	r, err := rtreego.NewRect(p, lengths)
	if err != nil {
		// Only reachable with pad <= 0 on a flat box.
		panic("geom: invalid rtree rect: " + err.Error())
	}
	return r
}

// AABB2 is a 2D axis-aligned bounding box.
type AABB2 struct {
	Min, Max Vec2
	valid    bool
}

// AABB2FromPoints returns the smallest 2D box containing pts.
func AABB2FromPoints(pts ...Vec2) AABB2 {
	var b AABB2
	for _, p := range pts {
		b = b.Extend(p)
	}
	return b
}

// Extend returns b grown to include p.
func (b AABB2) Extend(p Vec2) AABB2 {
	if !b.valid {
		return AABB2{Min: p, Max: p, valid: true}
	}
	return AABB2{
		Min:   Vec2{math.Min(b.Min.X, p.X), math.Min(b.Min.Y, p.Y)},
		Max:   Vec2{math.Max(b.Max.X, p.X), math.Max(b.Max.Y, p.Y)},
		valid: true,
	}
}

// Empty reports whether the box contains no points.
func (b AABB2) Empty() bool { return !b.valid }

// Overlaps reports whether b and o intersect when grown by tol.
func (b AABB2) Overlaps(o AABB2, tol Tolerance) bool {
	if !b.valid || !o.valid {
		return false
	}
	t := float64(tol)
	return b.Min.X <= o.Max.X+t && o.Min.X <= b.Max.X+t &&
		b.Min.Y <= o.Max.Y+t && o.Min.Y <= b.Max.Y+t
}

// Contains reports whether p lies inside b grown by tol.
func (b AABB2) Contains(p Vec2, tol Tolerance) bool {
	return b.valid && tol.Within(p.X, b.Min.X, b.Max.X) && tol.Within(p.Y, b.Min.Y, b.Max.Y)
}

// ContainsBox reports whether o lies inside b grown by tol.
func (b AABB2) ContainsBox(o AABB2, tol Tolerance) bool {
	return o.valid && b.Contains(o.Min, tol) && b.Contains(o.Max, tol)
}
