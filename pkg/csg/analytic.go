package csg

import (
	"math"

	"github.com/chazu/kerf/pkg/geom"
	"github.com/chazu/kerf/pkg/geometry"
	"github.com/chazu/kerf/pkg/kerrors"
)

const (
	// parallelEps bounds the sine of the angle below which two directions
	// are parallel.
	parallelEps = 1e-9
	// rootSamples is the number of samples per turn used to bracket the
	// zeros of a function of an angle.
	rootSamples = 64
)

// analytic is the implicit form of a face surface: a plane, or a circle
// swept along a straight path.
type analytic struct {
	surface geometry.Surface
	cyl     bool

	// Plane through o with unit normal n.
	o, n geom.Vec3

	// Circle c + r(a cos θ + b sin θ) with unit normal m = a×b, swept
	// along d. dn is d·m and never zero.
	c, m, a, b geom.Vec3
	r          float64
	d          geom.Vec3
	dn         float64
}

func analyze(s geometry.Surface) (analytic, error) {
	if o, _, _, n, ok := s.Frame(); ok {
		return analytic{surface: s, o: o, n: n}, nil
	}
	if s.Kind == geometry.SurfaceSwept && s.Curve.Kind == geometry.CurveCircle && s.Curve.Circular() {
		c := s.Curve
		m := c.Normal()
		return analytic{
			surface: s, cyl: true,
			c: c.Origin, m: m, a: c.A.Normalize(), b: c.B.Normalize(), r: c.Radius(),
			d: s.Path, dn: s.Path.Dot(m),
		}, nil
	}
	return analytic{}, kerrors.Newf(kerrors.Unsupported, "booleans on %v are not supported", s)
}

// radial returns p slid along the sweep into the circle's plane, relative
// to the circle's center.
func (s analytic) radial(p geom.Vec3) geom.Vec3 {
	q := p.Sub(s.c)
	return q.Sub(s.d.Scale(q.Dot(s.m) / s.dn))
}

// radialDir is radial for a direction.
func (s analytic) radialDir(v geom.Vec3) geom.Vec3 {
	return v.Sub(s.d.Scale(v.Dot(s.m) / s.dn))
}

// eval returns the signed offset of p from the surface. It is the exact
// distance for planes and for circles swept along their axis.
func (s analytic) eval(p geom.Vec3) float64 {
	if s.cyl {
		return s.radial(p).Length() - s.r
	}
	return p.Sub(s.o).Dot(s.n)
}

func (s analytic) axis() geom.Vec3 { return s.d.Normalize() }

// sectionAxes returns the radius vectors of the right section: the cut of
// the swept surface by the plane through c normal to the sweep.
func (s analytic) sectionAxes() (geom.Vec3, geom.Vec3) {
	u := s.axis()
	A, B := s.a.Scale(s.r), s.b.Scale(s.r)
	return A.Sub(u.Scale(A.Dot(u))), B.Sub(u.Scale(B.Dot(u)))
}

func (s analytic) sectionPoint(t float64) geom.Vec3 {
	A, B := s.sectionAxes()
	sn, cs := math.Sincos(t)
	return s.c.Add(A.Scale(cs)).Add(B.Scale(sn))
}

// ray is the result of intersecting a ray with a surface.
type ray struct {
	hits   []float64
	grazes []geom.Vec3
	along  bool
}

// castRay intersects p + t·dir, t > 0, with the surface. Tangent contacts
// are reported as grazes; along is set when the ray runs in the surface.
func (s analytic) castRay(p, dir geom.Vec3, tol float64) ray {
	var out ray
	if !s.cyl {
		dn := dir.Dot(s.n)
		f := s.eval(p)
		if math.Abs(dn) < parallelEps {
			out.along = math.Abs(f) <= tol
			return out
		}
		if t := -f / dn; t > 0 {
			out.hits = append(out.hits, t)
		}
		return out
	}
	ts, along := s.lineRoots(p, dir, tol)
	out.along = along
	for _, t := range ts {
		if t.t <= 0 {
			continue
		}
		if t.touch {
			out.grazes = append(out.grazes, p.Add(dir.Scale(t.t)))
			continue
		}
		out.hits = append(out.hits, t.t)
	}
	return out
}

// lineRoots returns the parameters at which p + t·dir meets the swept
// circle. A line passing within tol of tangency yields one touch; a line
// parallel to the sweep at the radius lies in the surface.
func (s analytic) lineRoots(p, dir geom.Vec3, tol float64) (roots []root, along bool) {
	w0 := s.radial(p)
	wd := s.radialDir(dir)
	aa := wd.Dot(wd)
	if aa < 1e-24 {
		return nil, math.Abs(w0.Length()-s.r) <= tol
	}
	tm := -w0.Dot(wd) / aa
	dm := w0.Add(wd.Scale(tm)).Length()
	switch {
	case math.Abs(dm-s.r) <= tol:
		return []root{{t: tm, touch: true}}, false
	case dm > s.r:
		return nil, false
	}
	h := math.Sqrt(s.r*s.r-dm*dm) / math.Sqrt(aa)
	return []root{{t: tm - h}, {t: tm + h}}, false
}

// carrier is one curve along which two surfaces meet. tangent marks a
// ruling where they touch without crossing.
type carrier struct {
	curve   geometry.Curve
	tangent bool
}

// intersectSurfaces returns the curves shared by two surfaces, or
// coincident when they are the same surface within tol. Swept circles
// with non-parallel sweeps fail with Unsupported.
func intersectSurfaces(p, q analytic, tol float64) (cs []carrier, coincident bool, err error) {
	switch {
	case !p.cyl && !q.cyl:
		cs, coincident = planePlane(p, q, tol)
		return cs, coincident, nil
	case !p.cyl:
		return planeCylinder(p, q, tol), false, nil
	case !q.cyl:
		return planeCylinder(q, p, tol), false, nil
	}
	return cylinderCylinder(p, q, tol)
}

func planePlane(p, q analytic, tol float64) ([]carrier, bool) {
	dir := p.n.Cross(q.n)
	if dir.Length() <= parallelEps {
		return nil, math.Abs(q.o.Sub(p.o).Dot(p.n)) <= tol
	}
	d0, d1 := p.o.Dot(p.n), q.o.Dot(q.n)
	c := p.n.Dot(q.n)
	den := 1 - c*c
	pt := p.n.Scale((d0 - d1*c) / den).Add(q.n.Scale((d1 - d0*c) / den))
	return []carrier{{curve: geometry.Line(pt, dir.Normalize())}}, false
}

// planeCylinder cuts swept circle s by plane p. A plane crossing the sweep
// gives one ellipse, rotated onto its principal axes; a plane along the
// sweep gives up to two rulings.
func planeCylinder(p, s analytic, tol float64) []carrier {
	u := s.axis()
	if math.Abs(u.Dot(p.n)) > parallelEps {
		dnn := s.d.Dot(p.n)
		c := s.c.Add(s.d.Scale(p.o.Sub(s.c).Dot(p.n) / dnn))
		A, B := s.a.Scale(s.r), s.b.Scale(s.r)
		A1 := A.Sub(s.d.Scale(A.Dot(p.n) / dnn))
		B1 := B.Sub(s.d.Scale(B.Dot(p.n) / dnn))
		th := 0.5 * math.Atan2(2*A1.Dot(B1), A1.Length2()-B1.Length2())
		sn, cs := math.Sincos(th)
		A2 := A1.Scale(cs).Add(B1.Scale(sn))
		B2 := B1.Scale(cs).Sub(A1.Scale(sn))
		return []carrier{{curve: geometry.Ellipse(c, A2, B2)}}
	}

	A, B := s.sectionAxes()
	K := s.c.Sub(p.o).Dot(p.n)
	alpha, beta := A.Dot(p.n), B.Dot(p.n)
	R := math.Hypot(alpha, beta)
	phi := math.Atan2(beta, alpha)
	ruling := func(t float64, tangent bool) carrier {
		return carrier{curve: geometry.Line(s.sectionPoint(t), u), tangent: tangent}
	}
	switch {
	case math.Abs(math.Abs(K)-R) <= tol:
		if K > 0 {
			phi += math.Pi
		}
		return []carrier{ruling(phi, true)}
	case math.Abs(K) > R:
		return nil
	}
	da := math.Acos(-K / R)
	return []carrier{ruling(phi-da, false), ruling(phi+da, false)}
}

// cylinderCylinder meets two swept circles with parallel sweeps along
// rulings found numerically around the first one's right section.
func cylinderCylinder(p, q analytic, tol float64) ([]carrier, bool, error) {
	u := p.axis()
	if u.Cross(q.axis()).Length() > parallelEps {
		return nil, false, kerrors.Newf(kerrors.Unsupported, "intersection of swept circles with non-parallel sweeps").
			With("surface", p.surface).With("other", q.surface)
	}
	h := func(t float64) float64 { return q.eval(p.sectionPoint(t)) }
	coincident := true
	for i := 0; i < rootSamples; i++ {
		if math.Abs(h(2*math.Pi*float64(i)/rootSamples)) > tol {
			coincident = false
			break
		}
	}
	if coincident {
		return nil, true, nil
	}
	var out []carrier
	for _, r := range findRoots(h, 0, 2*math.Pi, true, tol) {
		out = append(out, carrier{curve: geometry.Line(p.sectionPoint(r.t), u), tangent: r.touch})
	}
	return out, false, nil
}

// root is a zero of a sampled function. touch marks a zero where the
// function does not change sign.
type root struct {
	t     float64
	touch bool
}

// findRoots returns the zeros of fn on [lo, hi] in increasing order.
// Sign changes between samples are bisected. Local minima of |fn| that
// come within tol of zero are touches, or two zeros when fn changes sign
// between the samples.
func findRoots(fn func(float64) float64, lo, hi float64, periodic bool, tol float64) []root {
	n := int(math.Ceil(rootSamples * (hi - lo) / (2 * math.Pi)))
	if n < 8 {
		n = 8
	}
	step := (hi - lo) / float64(n)
	ts := make([]float64, n+1)
	fs := make([]float64, n+1)
	for i := range ts {
		ts[i] = lo + step*float64(i)
		fs[i] = fn(ts[i])
	}
	if periodic {
		ts[n], fs[n] = hi, fs[0]
	}

	var out []root
	for i := 0; i < n; i++ {
		switch {
		case fs[i] == 0:
			out = append(out, root{t: ts[i]})
		case fs[i]*fs[i+1] < 0:
			out = append(out, root{t: bisect(fn, ts[i], ts[i+1], fs[i])})
		}
	}
	if !periodic && fs[n] == 0 {
		out = append(out, root{t: ts[n]})
	}

	first, last := 1, n-1
	if periodic {
		first, last = 0, n-1
	}
	for i := first; i <= last; i++ {
		prev, next := i-1, i+1
		if prev < 0 {
			prev = n - 1
		}
		a, c, e := fs[prev], fs[i], fs[next]
		if c == 0 || a*c <= 0 || c*e <= 0 || math.Abs(c) > math.Abs(a) || math.Abs(c) > math.Abs(e) {
			continue
		}
		sign := math.Copysign(1, c)
		signed := func(t float64) float64 { return sign * fn(t) }
		l, h := ts[i]-step, ts[i]+step
		tm := goldenMin(signed, l, h)
		switch fm := signed(tm); {
		case fm < 0:
			out = append(out, root{t: bisect(fn, l, tm, fn(l))}, root{t: bisect(fn, tm, h, fn(tm))})
		case fm <= tol:
			out = append(out, root{t: tm, touch: true})
		}
	}
	if periodic {
		for i := range out {
			out[i].t = geometry.WrapParam(out[i].t, lo, hi-lo)
		}
	}
	sortRoots(out)
	return out
}

func sortRoots(rs []root) {
	for i := 1; i < len(rs); i++ {
		for j := i; j > 0 && rs[j].t < rs[j-1].t; j-- {
			rs[j], rs[j-1] = rs[j-1], rs[j]
		}
	}
}

// bisect narrows a sign change of fn on [a, b]; fa is fn(a).
func bisect(fn func(float64) float64, a, b, fa float64) float64 {
	for i := 0; i < 100 && b-a > 1e-15*math.Max(1, math.Abs(a)); i++ {
		m := (a + b) / 2
		fm := fn(m)
		if fm == 0 {
			return m
		}
		if (fm < 0) == (fa < 0) {
			a, fa = m, fm
		} else {
			b = m
		}
	}
	return (a + b) / 2
}

// goldenMin returns the minimiser of fn on [a, b] by golden-section search.
func goldenMin(fn func(float64) float64, a, b float64) float64 {
	const g = 0.6180339887498949
	c, d := b-g*(b-a), a+g*(b-a)
	fc, fd := fn(c), fn(d)
	for i := 0; i < 80; i++ {
		if fc < fd {
			b, d, fd = d, c, fc
			c = b - g*(b-a)
			fc = fn(c)
		} else {
			a, c, fc = c, d, fd
			d = a + g*(b-a)
			fd = fn(d)
		}
	}
	return (a + b) / 2
}

// curveParam returns the parameter of the point of c nearest p, refining
// the closed-form projection of ellipses with Newton steps.
func curveParam(c geometry.Curve, p geom.Vec3) float64 {
	t := c.Project(p)
	if c.Kind != geometry.CurveCircle || c.Circular() {
		return t
	}
	for i := 0; i < 8; i++ {
		d := c.PointAt(t).Sub(p)
		d1 := c.TangentAt(t)
		d2 := c.PointAt(t).Sub(c.Origin).Neg()
		den := d1.Dot(d1) + d.Dot(d2)
		if den == 0 {
			break
		}
		dt := d.Dot(d1) / den
		t -= dt
		if math.Abs(dt) < 1e-15 {
			break
		}
	}
	return t
}
