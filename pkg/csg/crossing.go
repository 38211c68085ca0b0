package csg

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/kerf/pkg/geom"
	"github.com/chazu/kerf/pkg/geometry"
	"github.com/chazu/kerf/pkg/kerrors"
	"github.com/chazu/kerf/pkg/topo"
)

type hitKind int

const (
	hitCross hitKind = iota
	hitTouch
	// hitEnd is a meeting at an end vertex of an open edge.
	hitEnd
)

// edgeHit is one point where an edge meets a surface.
type edgeHit struct {
	t    float64
	kind hitKind
}

// crossing is an edge of one operand passing through the interior of a
// face of the other. v is created once the crossings are final.
type crossing struct {
	edge topo.EdgeID
	face topo.FaceID
	t    float64
	p    geom.Vec3
	v    topo.VertexID
}

type edgeFace struct {
	edge topo.EdgeID
	face topo.FaceID
}

// meetEdge returns where edge e meets surface s. on is set when the whole
// edge lies in the surface.
func meetEdge(e topo.Edge, s analytic, tol float64) (hits []edgeHit, on bool) {
	c := e.Curve
	t0, t1 := e.Range[0], e.Range[1]
	closed := e.Closed()
	var roots []root
	switch {
	case c.Kind == geometry.CurveLine && !s.cyl:
		g0, g1 := s.eval(c.PointAt(t0)), s.eval(c.PointAt(t1))
		if math.Abs(g0) <= tol && math.Abs(g1) <= tol {
			return nil, true
		}
		if g0 != g1 {
			roots = append(roots, root{t: t0 + (t1-t0)*g0/(g0-g1)})
		}
	case c.Kind == geometry.CurveLine:
		var along bool
		roots, along = s.lineRoots(c.Origin, c.Dir, tol)
		if along {
			return nil, true
		}
	case !s.cyl:
		var lies bool
		roots, lies = conicPlane(c, s, tol)
		if lies {
			return nil, true
		}
	default:
		fn := func(t float64) float64 { return s.eval(c.PointAt(t)) }
		lies := true
		for i := 0; i <= rootSamples; i++ {
			if math.Abs(fn(t0+(t1-t0)*float64(i)/rootSamples)) > tol {
				lies = false
				break
			}
		}
		if lies {
			return nil, true
		}
		roots = findRoots(fn, t0, t1, closed, tol)
	}

	slack := endSlack * tol
	p0, p1 := c.PointAt(t0), c.PointAt(t1)
	var atStart, atEnd bool
	for _, r := range roots {
		t := r.t
		if c.Periodic() {
			t = geometry.WrapParam(t, t0, turn)
		}
		if !closed {
			p := c.PointAt(t)
			if p.Dist(p0) <= slack {
				atStart = true
				continue
			}
			if p.Dist(p1) <= slack {
				atEnd = true
				continue
			}
			if t < t0 || t > t1 {
				continue
			}
		}
		kind := hitCross
		if r.touch {
			kind = hitTouch
		}
		hits = append(hits, edgeHit{t: t, kind: kind})
	}
	if !closed {
		if atStart || math.Abs(s.eval(p0)) <= tol {
			hits = append(hits, edgeHit{t: t0, kind: hitEnd})
		}
		if atEnd || math.Abs(s.eval(p1)) <= tol {
			hits = append(hits, edgeHit{t: t1, kind: hitEnd})
		}
	}
	return hits, false
}

// endSlack is how far, in tolerances, a meeting may sit from an edge's end
// vertex and still be taken as meeting the vertex.
const endSlack = 2

// conicPlane meets circle or ellipse c with plane s in closed form.
func conicPlane(c geometry.Curve, s analytic, tol float64) ([]root, bool) {
	K := c.Origin.Sub(s.o).Dot(s.n)
	alpha, beta := c.A.Dot(s.n), c.B.Dot(s.n)
	R := math.Hypot(alpha, beta)
	if math.Abs(K)+R <= tol {
		return nil, true
	}
	if R == 0 {
		return nil, false
	}
	phi := math.Atan2(beta, alpha)
	switch {
	case math.Abs(math.Abs(K)-R) <= tol:
		if K > 0 {
			phi += math.Pi
		}
		return []root{{t: phi, touch: true}}, false
	case math.Abs(K) > R:
		return nil, false
	}
	da := math.Acos(-K / R)
	return []root{{t: phi - da}, {t: phi + da}}, false
}

type faceEntry struct {
	face topo.FaceID
	rect rtreego.Rect
}

func (e *faceEntry) Bounds() rtreego.Rect { return e.rect }

// faceIndex builds an R-tree over faces.
func (b *builder) faceIndex(faces []topo.FaceID) *rtreego.Rtree {
	tree := rtreego.NewTree(3, 25, 50)
	for _, f := range faces {
		tree.Insert(&faceEntry{face: f, rect: b.dom[f].bounds.Rect(b.tol.Float())})
	}
	return tree
}

// search returns the faces whose boxes meet box, in id order.
func search(tree *rtreego.Rtree, box geom.AABB, pad float64) []topo.FaceID {
	hits := tree.SearchIntersect(box.Rect(pad))
	out := make([]topo.FaceID, len(hits))
	for i, h := range hits {
		out[i] = h.(*faceEntry).face
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// findCrossings meets every edge of the overlapping faces of each operand
// with the overlapping faces of the other. Contacts that are not clean
// crossings of a face interior fail with CsgDegenerate.
func (b *builder) findCrossings() error {
	var pairs []edgeFace
	for s := 0; s < 2; s++ {
		tree := b.faceIndex(b.active[1-s])
		seen := make(map[topo.EdgeID]bool)
		for _, f := range b.active[s] {
			for _, e := range b.g.FaceEdges(f) {
				if seen[e] {
					continue
				}
				seen[e] = true
				for _, other := range search(tree, b.g.EdgeBounds(e), b.tol.Float()) {
					pairs = append(pairs, edgeFace{edge: e, face: other})
				}
			}
		}
	}

	res := make([][]crossing, len(pairs))
	var eg errgroup.Group
	eg.SetLimit(b.parallelism)
	for i, p := range pairs {
		eg.Go(func() error {
			cs, err := b.crossEdge(p.edge, p.face)
			res[i] = cs
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	for i, p := range pairs {
		for j := range res[i] {
			b.crossings[p] = append(b.crossings[p], &res[i][j])
		}
	}
	b.pairs = len(pairs)
	return nil
}

// crossEdge returns the crossings of edge e with face f.
func (b *builder) crossEdge(e topo.EdgeID, f topo.FaceID) ([]crossing, error) {
	edge := b.g.Edge(e)
	dom := b.dom[f]
	tol := b.tol.Float()
	hits, on := meetEdge(edge, dom.an, tol)
	if on {
		pts, err := b.g.HalfEdgePoints(topo.HalfEdge{Edge: e}, b.sampleTol)
		if err != nil {
			return nil, err
		}
		for i, p := range pts {
			at := []geom.Vec3{p}
			if i+1 < len(pts) {
				at = append(at, p.Lerp(pts[i+1], 0.5))
			}
			for _, q := range at {
				if in, onB := dom.contains(q, tol, b.sampleTol.Float()); in || onB {
					return nil, kerrors.Newf(kerrors.CsgDegenerate, "edge lies on a face of the other solid").
						With("edge", e).With("face", f)
				}
			}
		}
		return nil, nil
	}
	var out []crossing
	for _, h := range hits {
		p := edge.Curve.PointAt(h.t)
		in, onB := dom.contains(p, tol, b.sampleTol.Float())
		switch {
		case onB:
			return nil, kerrors.Newf(kerrors.CsgDegenerate, "edge meets the boundary of a face of the other solid").
				With("edge", e).With("face", f).With("point", p)
		case !in:
		case h.kind == hitEnd:
			return nil, kerrors.Newf(kerrors.CsgDegenerate, "vertex lies on a face of the other solid").
				With("edge", e).With("face", f).With("point", p)
		case h.kind == hitTouch:
			return nil, kerrors.Newf(kerrors.CsgDegenerate, "edge touches a face of the other solid").
				With("edge", e).With("face", f).With("point", p)
		default:
			out = append(out, crossing{edge: e, face: f, t: h.t, p: p, v: -1})
		}
	}
	return out, nil
}

// splitEdges creates a vertex for every crossing and splits each crossed
// edge into sub-edges on the same curve. Both faces using an edge share
// its sub-edges.
func (b *builder) splitEdges() error {
	byEdge := make(map[topo.EdgeID][]*crossing)
	var keys []edgeFace
	for k := range b.crossings {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].edge != keys[j].edge {
			return keys[i].edge < keys[j].edge
		}
		return keys[i].face < keys[j].face
	})
	for _, k := range keys {
		for _, c := range b.crossings[k] {
			c.v = b.g.CreateVertex(c.p)
			byEdge[k.edge] = append(byEdge[k.edge], c)
			b.ncross++
		}
	}

	edges := make([]topo.EdgeID, 0, len(byEdge))
	for e := range byEdge {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i] < edges[j] })
	for _, e := range edges {
		cs := byEdge[e]
		sort.Slice(cs, func(i, j int) bool { return cs[i].t < cs[j].t })
		subs, err := b.splitEdge(e, cs)
		if err != nil {
			return kerrors.Wrap(err, kerrors.CsgDegenerate, "split %v at %d crossings", e, len(cs))
		}
		b.split[e] = subs
	}
	return nil
}

func (b *builder) splitEdge(id topo.EdgeID, cs []*crossing) ([]topo.HalfEdge, error) {
	e := b.g.Edge(id)
	var ts []float64
	var vs []topo.VertexID
	if e.Closed() {
		for _, c := range cs {
			ts = append(ts, c.t)
			vs = append(vs, c.v)
		}
		ts = append(ts, cs[0].t+turn)
		vs = append(vs, cs[0].v)
	} else {
		ts = append(ts, e.Range[0])
		vs = append(vs, e.Start)
		for _, c := range cs {
			ts = append(ts, c.t)
			vs = append(vs, c.v)
		}
		ts = append(ts, e.Range[1])
		vs = append(vs, e.End)
	}
	out := make([]topo.HalfEdge, 0, len(ts)-1)
	for i := 0; i+1 < len(ts); i++ {
		if vs[i] == vs[i+1] && len(ts) > 2 {
			return nil, kerrors.New(kerrors.CsgDegenerate, "crossings of %v coincide", id)
		}
		sub, err := b.g.CreateEdge(e.Curve, vs[i], vs[i+1], ts[i], ts[i+1])
		if err != nil {
			return nil, err
		}
		out = append(out, topo.HalfEdge{Edge: sub})
	}
	return out, nil
}

// subEdges returns the pieces of h in traversal order.
func (b *builder) subEdges(h topo.HalfEdge) []topo.HalfEdge {
	subs, ok := b.split[h.Edge]
	if !ok {
		return []topo.HalfEdge{h}
	}
	if !h.Reversed {
		return subs
	}
	out := make([]topo.HalfEdge, len(subs))
	for i, s := range subs {
		out[len(subs)-1-i] = s.Flip()
	}
	return out
}
