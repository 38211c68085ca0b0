package geom

import "math"

// IntersectionKind classifies the result of a 2D intersection query.
type IntersectionKind int

const (
	// None: the inputs do not meet.
	None IntersectionKind = iota
	// Points: the inputs cross transversally at Count points.
	Points
	// Tangent: the inputs touch at a single point without crossing.
	Tangent
	// Coincident: the inputs share a continuous piece. For segments the
	// shared piece is Points[0]..Points[1].
	Coincident
)

func (k IntersectionKind) String() string {
	switch k {
	case None:
		return "none"
	case Points:
		return "points"
	case Tangent:
		return "tangent"
	case Coincident:
		return "coincident"
	default:
		return "unknown"
	}
}

// Intersection is the fixed-size result of a 2D intersection query. T and
// U hold the parameters of each point on the first and second input: line
// parameters for lines and segments, angles for circles.
type Intersection struct {
	Kind   IntersectionKind
	Count  int
	Points [2]Vec2
	T      [2]float64
	U      [2]float64
}

// Hit reports whether the inputs meet at all.
func (i Intersection) Hit() bool { return i.Kind != None }

// IntersectLines intersects the infinite lines p0 + t·d0 and p1 + u·d1.
// Parallel lines closer than tol are Coincident.
func IntersectLines(p0, d0, p1, d1 Vec2, tol Tolerance) Intersection {
	denom := d0.Cross(d1)
	l0, l1 := d0.Length(), d1.Length()
	if l0 == 0 || l1 == 0 {
		return Intersection{}
	}
	w := p1.Sub(p0)
	if math.Abs(denom) <= 1e-12*l0*l1 {
		// Parallel: distance from p1 to the first line.
		if math.Abs(w.Cross(d0))/l0 <= float64(tol) {
			return Intersection{Kind: Coincident}
		}
		return Intersection{}
	}
	t := w.Cross(d1) / denom
	u := w.Cross(d0) / denom
	return Intersection{
		Kind:   Points,
		Count:  1,
		Points: [2]Vec2{p0.Add(d0.Scale(t))},
		T:      [2]float64{t},
		U:      [2]float64{u},
	}
}

// IntersectSegments intersects the closed segments a0-a1 and b0-b1.
// Endpoint contact counts as an intersection. Collinear overlapping
// segments are Coincident with the overlap endpoints in Points.
func IntersectSegments(a0, a1, b0, b1 Vec2, tol Tolerance) Intersection {
	da, db := a1.Sub(a0), b1.Sub(b0)
	la, lb := da.Length(), db.Length()
	if la == 0 || lb == 0 {
		return Intersection{}
	}
	res := IntersectLines(a0, da, b0, db, tol)
	switch res.Kind {
	case Points:
		// Convert parameter slack into a distance check along each segment.
		ta, ub := res.T[0], res.U[0]
		if ta*la < -float64(tol) || (ta-1)*la > float64(tol) ||
			ub*lb < -float64(tol) || (ub-1)*lb > float64(tol) {
			return Intersection{}
		}
		res.T[0] = clamp01(ta)
		res.U[0] = clamp01(ub)
		res.Points[0] = a0.Add(da.Scale(res.T[0]))
		return res
	case Coincident:
		// Project b onto a and intersect the parameter intervals.
		ua := da.Scale(1 / (la * la))
		t0 := b0.Sub(a0).Dot(ua)
		t1 := b1.Sub(a0).Dot(ua)
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		lo, hi := math.Max(0, t0), math.Min(1, t1)
		slack := float64(tol) / la
		if lo > hi+slack {
			return Intersection{}
		}
		if hi-lo <= slack {
			m := clamp01((lo + hi) / 2)
			p := a0.Add(da.Scale(m))
			return Intersection{Kind: Points, Count: 1, Points: [2]Vec2{p}, T: [2]float64{m}, U: [2]float64{segParam(b0, db, p)}}
		}
		p, q := a0.Add(da.Scale(lo)), a0.Add(da.Scale(hi))
		return Intersection{
			Kind:   Coincident,
			Count:  2,
			Points: [2]Vec2{p, q},
			T:      [2]float64{lo, hi},
			U:      [2]float64{segParam(b0, db, p), segParam(b0, db, q)},
		}
	}
	return Intersection{}
}

// IntersectLineCircle intersects the infinite line p + t·d with the circle
// of radius r about c. A line within tol of the circle's radius is Tangent.
func IntersectLineCircle(p, d, c Vec2, r float64, tol Tolerance) Intersection {
	l := d.Length()
	if l == 0 {
		return Intersection{}
	}
	u := d.Scale(1 / l)
	// Foot of the perpendicular from c.
	s := c.Sub(p).Dot(u)
	foot := p.Add(u.Scale(s))
	h := foot.Dist(c)
	switch {
	case h > r+float64(tol):
		return Intersection{}
	case math.Abs(h-r) <= float64(tol):
		return Intersection{
			Kind:   Tangent,
			Count:  1,
			Points: [2]Vec2{foot},
			T:      [2]float64{s / l},
			U:      [2]float64{foot.Sub(c).Angle()},
		}
	}
	half := math.Sqrt(r*r - h*h)
	q0, q1 := foot.Sub(u.Scale(half)), foot.Add(u.Scale(half))
	return Intersection{
		Kind:   Points,
		Count:  2,
		Points: [2]Vec2{q0, q1},
		T:      [2]float64{(s - half) / l, (s + half) / l},
		U:      [2]float64{q0.Sub(c).Angle(), q1.Sub(c).Angle()},
	}
}

// IntersectCircles intersects two circles. Identical circles are
// Coincident; circles touching internally or externally are Tangent.
func IntersectCircles(c0 Vec2, r0 float64, c1 Vec2, r1 float64, tol Tolerance) Intersection {
	d := c0.Dist(c1)
	t := float64(tol)
	if d <= t && math.Abs(r0-r1) <= t {
		return Intersection{Kind: Coincident}
	}
	if d > r0+r1+t || d < math.Abs(r0-r1)-t || d == 0 {
		return Intersection{}
	}
	dir := c1.Sub(c0).Scale(1 / d)
	if math.Abs(d-(r0+r1)) <= t || math.Abs(d-math.Abs(r0-r1)) <= t {
		var p Vec2
		if r0 >= r1 || math.Abs(d-(r0+r1)) <= t {
			p = c0.Add(dir.Scale(r0))
		} else {
			p = c0.Sub(dir.Scale(r0))
		}
		return Intersection{
			Kind:   Tangent,
			Count:  1,
			Points: [2]Vec2{p},
			T:      [2]float64{p.Sub(c0).Angle()},
			U:      [2]float64{p.Sub(c1).Angle()},
		}
	}
	// Distance from c0 to the radical line.
	a := (d*d + r0*r0 - r1*r1) / (2 * d)
	h := math.Sqrt(math.Max(0, r0*r0-a*a))
	m := c0.Add(dir.Scale(a))
	off := dir.Perp().Scale(h)
	q0, q1 := m.Add(off), m.Sub(off)
	return Intersection{
		Kind:   Points,
		Count:  2,
		Points: [2]Vec2{q0, q1},
		T:      [2]float64{q0.Sub(c0).Angle(), q1.Sub(c0).Angle()},
		U:      [2]float64{q0.Sub(c1).Angle(), q1.Sub(c1).Angle()},
	}
}

func clamp01(x float64) float64 { return math.Max(0, math.Min(1, x)) }

func segParam(o, d, p Vec2) float64 { return clamp01(p.Sub(o).Dot(d) / d.Dot(d)) }
