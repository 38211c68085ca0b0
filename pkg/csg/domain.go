package csg

import (
	"math"
	"sort"

	"github.com/chazu/kerf/pkg/geom"
	"github.com/chazu/kerf/pkg/geometry"
	"github.com/chazu/kerf/pkg/kerrors"
	"github.com/chazu/kerf/pkg/topo"
)

const (
	turn = 2 * math.Pi
	// nearSamples is how many sample tolerances from the boundary the
	// exact side test replaces ring parity.
	nearSamples = 4
	// scanLines is the number of parameter lines tried when sampling a
	// region.
	scanLines = 17
)

// paramRing is a cycle sampled into the surface's parameter plane. On
// periodic surfaces u is unwrapped; the last point repeats the first,
// shifted by turns whole periods.
type paramRing struct {
	pts   []geom.Vec2
	turns int
}

// area is the signed area of a ring that does not wind around the surface.
func (r paramRing) area() float64 { return geom.SignedArea(r.pts[:len(r.pts)-1]) }

// crossings calls fn with v at every point where the vertical line at u
// meets the ring. On periodic surfaces every translate of u is tried.
func (r paramRing) crossings(u float64, periodic bool, fn func(v float64)) {
	for i := 0; i+1 < len(r.pts); i++ {
		a, c := r.pts[i], r.pts[i+1]
		lo, hi := math.Min(a.X, c.X), math.Max(a.X, c.X)
		kmin, kmax := 0.0, 0.0
		if periodic {
			kmin, kmax = math.Ceil((lo-u)/turn), math.Floor((hi-u)/turn)
		}
		for k := kmin; k <= kmax; k++ {
			uu := u + turn*k
			if (a.X > uu) == (c.X > uu) {
				continue
			}
			fn(a.Y + (uu-a.X)*(c.Y-a.Y)/(c.X-a.X))
		}
	}
}

// parity returns the number of ring crossings above p.
func (r paramRing) parity(p geom.Vec2, periodic bool) int {
	n := 0
	r.crossings(p.X, periodic, func(v float64) {
		if v > p.Y {
			n++
		}
	})
	return n
}

// vAt returns the lowest crossing of the vertical line at u.
func (r paramRing) vAt(u float64, periodic bool) (float64, bool) {
	best, ok := math.Inf(1), false
	r.crossings(u, periodic, func(v float64) {
		if v < best {
			best, ok = v, true
		}
	})
	return best, ok
}

// ringOf samples a cycle of half-edges into the parameter plane of s.
func (b *builder) ringOf(s geometry.Surface, hes []topo.HalfEdge) (paramRing, error) {
	var pts []geom.Vec2
	periodic := s.Periodic()
	for _, h := range hes {
		ps, err := b.g.HalfEdgePoints(h, b.sampleTol)
		if err != nil {
			return paramRing{}, err
		}
		for _, p := range ps[:len(ps)-1] {
			q := s.Project2(p)
			if periodic && len(pts) > 0 {
				q.X = geometry.NearestTurn(q.X, pts[len(pts)-1].X)
			}
			pts = append(pts, q)
		}
	}
	if len(pts) == 0 {
		return paramRing{}, kerrors.New(kerrors.CsgDegenerate, "cycle has no points")
	}
	end := pts[0]
	turns := 0
	if periodic {
		end.X = geometry.NearestTurn(pts[0].X, pts[len(pts)-1].X)
		turns = int(math.Round((end.X - pts[0].X) / turn))
	}
	pts = append(pts, end)
	return paramRing{pts: pts, turns: turns}, nil
}

// boundary is one half-edge of a face domain in traversal direction.
type boundary struct {
	curve  geometry.Curve
	t0, t1 float64
	closed bool
	// prev and next index the neighbouring half-edges of the same cycle.
	prev, next int
}

// faceDomain answers point-in-face queries for one original face.
type faceDomain struct {
	face     topo.FaceID
	surf     geometry.Surface
	an       analytic
	periodic bool
	bounds   geom.AABB

	edges []boundary
	rings []paramRing
	band  bool

	sample geom.Vec3
	weight float64
}

func (b *builder) newDomain(f topo.FaceID) (*faceDomain, error) {
	face := b.g.Face(f)
	an, err := analyze(face.Surface)
	if err != nil {
		return nil, err
	}
	d := &faceDomain{
		face: f, surf: face.Surface, an: an, periodic: face.Surface.Periodic(),
		bounds: b.g.FaceBounds(f),
	}
	for _, c := range face.Cycles() {
		hes := b.g.Cycle(c).HalfEdges
		base := len(d.edges)
		for i, h := range hes {
			curve, t0, t1 := b.g.OrientedCurve(h)
			d.edges = append(d.edges, boundary{
				curve: curve, t0: t0, t1: t1, closed: b.g.Edge(h.Edge).Closed(),
				prev: base + (i+len(hes)-1)%len(hes),
				next: base + (i+1)%len(hes),
			})
		}
		r, err := b.ringOf(face.Surface, hes)
		if err != nil {
			return nil, err
		}
		d.rings = append(d.rings, r)
	}
	d.band = d.rings[0].turns != 0
	p, w, ok := sampleRegion(face.Surface, d.rings, d.band)
	if !ok {
		return nil, kerrors.Newf(kerrors.CsgDegenerate, "face cannot be sampled").With("face", f)
	}
	d.sample, d.weight = p, w
	return d, nil
}

// nearest returns the point of boundary e closest to p and its parameter.
func (e boundary) nearest(p geom.Vec3) (float64, geom.Vec3) {
	if e.curve.Kind == geometry.CurveLine {
		t := math.Max(e.t0, math.Min(e.t1, e.curve.Project(p)))
		return t, e.curve.PointAt(t)
	}
	t := geometry.WrapParam(curveParam(e.curve, p), e.t0, turn)
	if !e.closed && t > e.t1 {
		p0, p1 := e.curve.PointAt(e.t0), e.curve.PointAt(e.t1)
		if p.Dist(p0) < p.Dist(p1) {
			return e.t0, p0
		}
		return e.t1, p1
	}
	return t, e.curve.PointAt(t)
}

// contains reports whether p, a point on or near the face's surface, lies
// inside the face. on is set when p is within tol of the boundary.
func (d *faceDomain) contains(p geom.Vec3, tol, sampleTol float64) (in, on bool) {
	if !d.bounds.Contains(p, geom.Tolerance(tol)) {
		return false, false
	}
	best, bestT, bestD := -1, 0.0, math.Inf(1)
	var bestQ geom.Vec3
	for i, e := range d.edges {
		t, q := e.nearest(p)
		if dd := q.Dist(p); dd < bestD {
			best, bestT, bestD, bestQ = i, t, dd, q
		}
	}
	if bestD <= tol {
		return false, true
	}
	if bestD <= nearSamples*sampleTol {
		return d.side(p, best, bestT, bestQ), false
	}
	q := d.surf.Project2(p)
	n := 0
	for _, r := range d.rings {
		n += r.parity(q, d.periodic)
	}
	return n%2 == 1, false
}

// side decides containment of p from its nearest boundary point q on edge
// i at parameter t: the face lies to the left of every half-edge.
func (d *faceDomain) side(p geom.Vec3, i int, t float64, q geom.Vec3) bool {
	e := d.edges[i]
	u, v := d.surf.Project(q)
	n := d.surf.NormalAt(u, v)
	left := func(tan geom.Vec3) bool { return p.Sub(q).Dot(n.Cross(tan)) > 0 }
	if e.closed || (t > e.t0 && t < e.t1) {
		return left(e.curve.TangentAt(t))
	}
	var tin, tout geom.Vec3
	if t <= e.t0 {
		pe := d.edges[e.prev]
		tin, tout = pe.curve.TangentAt(pe.t1), e.curve.TangentAt(e.t0)
	} else {
		ne := d.edges[e.next]
		tin, tout = e.curve.TangentAt(e.t1), ne.curve.TangentAt(ne.t0)
	}
	if tin.Cross(tout).Dot(n) > 0 {
		return left(tin) && left(tout)
	}
	return left(tin) || left(tout)
}

// sampleRegion returns an interior point of the region bounded by rings,
// the first being the exterior, and the length of the scan interval it was
// taken from. band marks a region winding around a periodic surface.
func sampleRegion(s geometry.Surface, rings []paramRing, band bool) (geom.Vec3, float64, bool) {
	periodic := s.Periodic()
	var lo, hi float64
	if band {
		lo = rings[0].pts[0].X
		hi = lo + turn
	} else {
		lo, hi = math.Inf(1), math.Inf(-1)
		for _, p := range rings[0].pts {
			lo, hi = math.Min(lo, p.X), math.Max(hi, p.X)
		}
	}
	var best geom.Vec3
	bestW := 0.0
	var vs []float64
	for i := 0; i < scanLines; i++ {
		u := lo + (hi-lo)*(float64(i)+0.5)/scanLines
		vs = vs[:0]
		for _, r := range rings {
			r.crossings(u, periodic, func(v float64) { vs = append(vs, v) })
		}
		if len(vs)%2 == 1 {
			continue
		}
		sort.Float64s(vs)
		for k := 0; k+1 < len(vs); k += 2 {
			w := s.PointAt(u, vs[k]).Dist(s.PointAt(u, vs[k+1]))
			if w > bestW {
				best, bestW = s.PointAt(u, (vs[k]+vs[k+1])/2), w
			}
		}
	}
	return best, bestW, bestW > 0
}
