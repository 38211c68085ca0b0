package csg

import (
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/chazu/kerf/pkg/geom"
	"github.com/chazu/kerf/pkg/geometry"
	"github.com/chazu/kerf/pkg/kerrors"
	"github.com/chazu/kerf/pkg/topo"
)

// tangentSamples is the number of points of a tangent ruling tested
// against both faces.
const tangentSamples = 33

// span is one piece of a carrier lying inside two faces. v0 and v1 are
// negative for a closed carrier with no trim points.
type span struct {
	curve  geometry.Curve
	t0, t1 float64
	v0, v1 topo.VertexID
	faces  [2]topo.FaceID
}

type facePair [2]topo.FaceID

// trimPoint is a crossing placed on one carrier.
type trimPoint struct {
	t float64
	v topo.VertexID
}

// trimAll computes the cuts of every overlapping face pair in parallel,
// then creates their edges in pair order.
func (b *builder) trimAll() error {
	tree := b.faceIndex(b.active[1])
	var pairs []facePair
	for _, fa := range b.active[0] {
		for _, fb := range search(tree, b.dom[fa].bounds, b.tol.Float()) {
			pairs = append(pairs, facePair{fa, fb})
		}
	}
	res := make([][]span, len(pairs))
	var eg errgroup.Group
	eg.SetLimit(b.parallelism)
	for i, p := range pairs {
		eg.Go(func() error {
			ss, err := b.trim(p)
			res[i] = ss
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	for i, p := range pairs {
		for _, s := range res[i] {
			if s.v0 < 0 {
				v := b.g.CreateVertex(s.curve.PointAt(s.t0))
				s.v0, s.v1 = v, v
			}
			e, err := b.g.CreateEdge(s.curve, s.v0, s.v1, s.t0, s.t1)
			if err != nil {
				return kerrors.Wrap(err, kerrors.CsgDegenerate, "cut between %v and %v", p[0], p[1])
			}
			b.cuts[0][p[0]] = append(b.cuts[0][p[0]], e)
			b.cuts[1][p[1]] = append(b.cuts[1][p[1]], e)
			b.cutEdges[e] = true
		}
	}
	return nil
}

// trim returns the pieces of the curves shared by the surfaces of a face
// pair that lie strictly inside both faces.
func (b *builder) trim(p facePair) ([]span, error) {
	da, db := b.dom[p[0]], b.dom[p[1]]
	tol := b.tol.Float()
	carriers, coincident, err := intersectSurfaces(da.an, db.an, tol)
	if err != nil {
		return nil, err
	}
	if coincident {
		return nil, b.checkCoincident(da, db)
	}
	if len(carriers) == 0 {
		return nil, nil
	}

	var pts []*crossing
	for _, e := range b.g.FaceEdges(p[0]) {
		pts = append(pts, b.crossings[edgeFace{edge: e, face: p[1]}]...)
	}
	for _, e := range b.g.FaceEdges(p[1]) {
		pts = append(pts, b.crossings[edgeFace{edge: e, face: p[0]}]...)
	}
	on := make([][]trimPoint, len(carriers))
	for _, c := range pts {
		best, bestD, bestT := -1, math.Inf(1), 0.0
		for i, cr := range carriers {
			if cr.tangent {
				continue
			}
			t := curveParam(cr.curve, c.p)
			if d := cr.curve.PointAt(t).Dist(c.p); d < bestD {
				best, bestD, bestT = i, d, t
			}
		}
		if best < 0 {
			return nil, kerrors.Newf(kerrors.CsgDegenerate, "crossing lies on a tangent contact").
				With("face", p[0]).With("other", p[1]).With("point", c.p)
		}
		if carriers[best].curve.Periodic() {
			bestT = geometry.WrapParam(bestT, 0, turn)
		}
		on[best] = append(on[best], trimPoint{t: bestT, v: c.v})
	}

	var out []span
	for i, cr := range carriers {
		if cr.tangent {
			if err := b.checkTangent(cr.curve, da, db); err != nil {
				return nil, err
			}
			continue
		}
		ss, err := b.spans(cr.curve, on[i], da, db)
		if err != nil {
			return nil, err
		}
		out = append(out, ss...)
	}
	return out, nil
}

// spans splits a carrier at its trim points and keeps the intervals inside
// both faces.
func (b *builder) spans(c geometry.Curve, tps []trimPoint, da, db *faceDomain) ([]span, error) {
	faces := [2]topo.FaceID{da.face, db.face}
	if len(tps) == 0 {
		if !c.Periodic() {
			return nil, nil
		}
		in, err := b.intervalInside(c, 0, turn, da, db, 0, 0.25, 0.5, 0.75)
		if err != nil || !in {
			return nil, err
		}
		return []span{{curve: c, t0: 0, t1: turn, v0: -1, v1: -1, faces: faces}}, nil
	}
	sort.Slice(tps, func(i, j int) bool { return tps[i].t < tps[j].t })
	n := len(tps) - 1
	if c.Periodic() {
		tps = append(tps, trimPoint{t: tps[0].t + turn, v: tps[0].v})
		n = len(tps) - 1
	}
	var out []span
	for i := 0; i < n; i++ {
		lo, hi := tps[i], tps[i+1]
		if c.Length(lo.t, hi.t) < 2*b.tol.Float() || (lo.v == hi.v && n > 1) {
			return nil, kerrors.Newf(kerrors.CsgDegenerate, "trim points nearly coincide").
				With("face", da.face).With("other", db.face).With("point", c.PointAt(lo.t))
		}
		in, err := b.intervalInside(c, lo.t, hi.t, da, db, 0.5, 0.3, 0.7)
		if err != nil {
			return nil, err
		}
		if in {
			out = append(out, span{curve: c, t0: lo.t, t1: hi.t, v0: lo.v, v1: hi.v, faces: faces})
		}
	}
	return out, nil
}

// intervalInside tests the carrier at the given fractions of [t0, t1]. The
// points must agree; any of them on a face boundary fails.
func (b *builder) intervalInside(c geometry.Curve, t0, t1 float64, da, db *faceDomain, fracs ...float64) (bool, error) {
	tol, st := b.tol.Float(), b.sampleTol.Float()
	var first bool
	for i, f := range fracs {
		p := c.PointAt(t0 + (t1-t0)*f)
		inA, onA := da.contains(p, tol, st)
		inB, onB := db.contains(p, tol, st)
		if onA || onB {
			return false, kerrors.Newf(kerrors.CsgDegenerate, "intersection runs along a face boundary").
				With("face", da.face).With("other", db.face).With("point", p)
		}
		in := inA && inB
		if i == 0 {
			first = in
			continue
		}
		if in != first {
			return false, kerrors.Newf(kerrors.CsgDegenerate, "intersection leaves a face between trim points").
				With("face", da.face).With("other", db.face).With("point", p)
		}
	}
	return first, nil
}

// checkTangent fails when a ruling along which the surfaces touch passes
// through both faces.
func (b *builder) checkTangent(c geometry.Curve, da, db *faceDomain) error {
	box := da.bounds.Intersect(db.bounds).Grow(b.tol.Float())
	lo, hi, ok := clipLine(c, box)
	if !ok {
		return nil
	}
	tol, st := b.tol.Float(), b.sampleTol.Float()
	for i := 0; i < tangentSamples; i++ {
		p := c.PointAt(lo + (hi-lo)*float64(i)/(tangentSamples-1))
		inA, onA := da.contains(p, tol, st)
		inB, onB := db.contains(p, tol, st)
		if (inA || onA) && (inB || onB) {
			return kerrors.Newf(kerrors.CsgDegenerate, "faces touch along a line").
				With("face", da.face).With("other", db.face).With("point", p)
		}
	}
	return nil
}

// clipLine returns the parameter range of line c inside box.
func clipLine(c geometry.Curve, box geom.AABB) (lo, hi float64, ok bool) {
	if box.Empty() {
		return 0, 0, false
	}
	lo, hi = math.Inf(-1), math.Inf(1)
	for k := 0; k < 3; k++ {
		o, d := c.Origin.Component(k), c.Dir.Component(k)
		mn, mx := box.Min.Component(k), box.Max.Component(k)
		if math.Abs(d) < 1e-15 {
			if o < mn || o > mx {
				return 0, 0, false
			}
			continue
		}
		t0, t1 := (mn-o)/d, (mx-o)/d
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		lo, hi = math.Max(lo, t0), math.Min(hi, t1)
	}
	return lo, hi, lo <= hi
}

// checkCoincident fails when two faces on the same surface share area.
// Boundaries lying on the other face are caught with the crossings; this
// covers a face nested inside the other.
func (b *builder) checkCoincident(da, db *faceDomain) error {
	tol, st := b.tol.Float(), b.sampleTol.Float()
	for _, pair := range [][2]*faceDomain{{da, db}, {db, da}} {
		if in, on := pair[1].contains(pair[0].sample, tol, st); in || on {
			return kerrors.Newf(kerrors.CsgDegenerate, "faces coincide within tolerance").
				With("face", pair[0].face).With("other", pair[1].face)
		}
	}
	return nil
}
