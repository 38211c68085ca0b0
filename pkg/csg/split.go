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

const (
	// tangentStep is the fraction of a half-edge's range used to measure
	// its direction at either end.
	tangentStep = 1e-4
	// angleEps is the smallest angle between two darts leaving a vertex.
	angleEps = 1e-9
	// holeOffset is the fraction of a segment's length a hole's sample
	// point is moved off the hole.
	holeOffset = 1e-3
)

// region is one connected piece of an operand face after splitting. Its
// first cycle is the exterior; a band's second cycle is its upper
// boundary. A whole region is an untouched face.
type region struct {
	side   int
	face   topo.FaceID
	whole  bool
	cycles [][]topo.HalfEdge
	rings  []paramRing
	band   bool
	sample geom.Vec3
	weight float64
}

// dart is a half-edge available for tracing a face's regions. out is its
// direction leaving its start and back the direction pointing back along
// it from its end, both as angles in the parameter plane.
type dart struct {
	h         topo.HalfEdge
	from, to  topo.VertexID
	out, back float64
}

// splitAll splits the touched faces in parallel and returns their regions
// in face order.
func (b *builder) splitAll(faces [][2]int) ([][]*region, error) {
	res := make([][]*region, len(faces))
	var eg errgroup.Group
	eg.SetLimit(b.parallelism)
	for i, sf := range faces {
		eg.Go(func() error {
			rs, err := b.splitFace(sf[0], topo.FaceID(sf[1]))
			res[i] = rs
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

// splitFace divides face f of operand s along its cuts. The boundary
// contributes its sub-edges in cycle direction and every cut both of its
// half-edges; the regions are the cycles traced by always taking the
// sharpest turn to the left.
func (b *builder) splitFace(s int, f topo.FaceID) ([]*region, error) {
	face := b.g.Face(f)
	surf := face.Surface
	var darts []dart
	add := func(h topo.HalfEdge) {
		darts = append(darts, b.newDart(surf, h))
	}
	for _, c := range face.Cycles() {
		for _, h := range b.g.Cycle(c).HalfEdges {
			for _, sub := range b.subEdges(h) {
				add(sub)
			}
		}
	}
	for _, e := range b.cuts[s][f] {
		add(topo.HalfEdge{Edge: e})
		add(topo.HalfEdge{Edge: e, Reversed: true})
	}

	cycles, err := traceCycles(darts)
	if err != nil {
		return nil, kerrors.Wrap(err, kerrors.CsgDegenerate, "split %v", f)
	}

	var outers, holes, bands []traced
	for _, hes := range cycles {
		r, err := b.ringOf(surf, hes)
		if err != nil {
			return nil, err
		}
		t := traced{hes: hes, ring: r}
		switch {
		case r.turns != 0:
			bands = append(bands, t)
		case r.area() > 0:
			outers = append(outers, t)
		default:
			holes = append(holes, t)
		}
	}

	var regions []*region
	for _, o := range outers {
		regions = append(regions, &region{side: s, face: f, cycles: [][]topo.HalfEdge{o.hes}, rings: []paramRing{o.ring}})
	}
	pairs, err := pairBands(bands, surf.Periodic())
	if err != nil {
		return nil, kerrors.Wrap(err, kerrors.CsgDegenerate, "split %v", f)
	}
	for _, p := range pairs {
		regions = append(regions, &region{
			side: s, face: f, band: true,
			cycles: [][]topo.HalfEdge{p[0].hes, p[1].hes},
			rings:  []paramRing{p[0].ring, p[1].ring},
		})
	}

	for _, h := range holes {
		r := holeOwner(h.ring, regions, surf.Periodic())
		if r == nil {
			return nil, kerrors.Newf(kerrors.CsgDegenerate, "hole lies in no region").With("face", f)
		}
		r.cycles = append(r.cycles, h.hes)
		r.rings = append(r.rings, h.ring)
	}

	for _, r := range regions {
		p, w, ok := sampleRegion(surf, r.rings, r.band)
		if !ok {
			return nil, kerrors.Newf(kerrors.CsgDegenerate, "region cannot be sampled").With("face", f)
		}
		r.sample, r.weight = p, w
	}
	return regions, nil
}

// traced is a cycle found while splitting a face.
type traced struct {
	hes  []topo.HalfEdge
	ring paramRing
}

func (b *builder) newDart(s geometry.Surface, h topo.HalfEdge) dart {
	c, t0, t1 := b.g.OrientedCurve(h)
	dt := tangentStep * (t1 - t0)
	dir := func(t, t2 float64) float64 {
		p, q := s.Project2(c.PointAt(t)), s.Project2(c.PointAt(t2))
		du := q.X - p.X
		if s.Periodic() {
			du = geometry.NearestTurn(du, 0)
		}
		return math.Atan2(q.Y-p.Y, du)
	}
	return dart{
		h: h, from: b.g.Start(h), to: b.g.End(h),
		out: dir(t0, t0+dt), back: dir(t1, t1-dt),
	}
}

// traceCycles partitions darts into cycles. After arriving at a vertex the
// next dart is the one reached first turning clockwise from the way back;
// the dart's own twin is never taken.
func traceCycles(darts []dart) ([][]topo.HalfEdge, error) {
	leaving := make(map[topo.VertexID][]int)
	for i, d := range darts {
		leaving[d.from] = append(leaving[d.from], i)
	}
	next := func(i int) (int, error) {
		d := darts[i]
		best, bestRot := -1, math.Inf(1)
		for _, j := range leaving[d.to] {
			o := darts[j]
			if o.h == d.h.Flip() {
				continue
			}
			rot := math.Mod(d.back-o.out, turn)
			if rot < 0 {
				rot += turn
			}
			if rot < angleEps || rot > turn-angleEps {
				return 0, kerrors.Newf(kerrors.CsgDegenerate, "edges leave a vertex in the same direction").With("vertex", d.to)
			}
			if math.Abs(rot-bestRot) < angleEps {
				return 0, kerrors.Newf(kerrors.CsgDegenerate, "edges leave a vertex in the same direction").With("vertex", d.to)
			}
			if rot < bestRot {
				best, bestRot = j, rot
			}
		}
		if best < 0 {
			return 0, kerrors.Newf(kerrors.CsgDegenerate, "cut ends inside a face").With("vertex", d.to)
		}
		return best, nil
	}

	used := make([]bool, len(darts))
	var out [][]topo.HalfEdge
	for start := range darts {
		if used[start] {
			continue
		}
		var hes []topo.HalfEdge
		i := start
		for {
			if used[i] {
				return nil, kerrors.Newf(kerrors.CsgDegenerate, "split edges do not close into cycles").With("edge", darts[i].h.Edge)
			}
			used[i] = true
			hes = append(hes, darts[i].h)
			j, err := next(i)
			if err != nil {
				return nil, err
			}
			if j == start {
				break
			}
			i = j
		}
		out = append(out, hes)
	}
	return out, nil
}

// pairBands matches the cycles winding around a periodic surface into
// regions. Sorted along a parameter line clear of every cycle, each
// region's lower boundary (winding forwards) is followed by its upper one.
func pairBands(bands []traced, periodic bool) ([][2]traced, error) {
	if len(bands) == 0 {
		return nil, nil
	}
	var us []float64
	for _, t := range bands {
		for _, p := range t.ring.pts {
			us = append(us, geometry.WrapParam(p.X, 0, turn))
		}
	}
	sort.Float64s(us)
	gap, at := turn-us[len(us)-1]+us[0], us[len(us)-1]
	for i := 1; i < len(us); i++ {
		if g := us[i] - us[i-1]; g > gap {
			gap, at = g, us[i-1]
		}
	}
	u := at + gap/2

	type level struct {
		v float64
		t traced
	}
	levels := make([]level, len(bands))
	for i, t := range bands {
		v, ok := t.ring.vAt(u, periodic)
		if !ok {
			return nil, kerrors.New(kerrors.CsgDegenerate, "winding cycle misses a parameter line")
		}
		levels[i] = level{v: v, t: t}
	}
	sort.SliceStable(levels, func(i, j int) bool {
		if levels[i].v != levels[j].v {
			return levels[i].v < levels[j].v
		}
		return levels[i].t.ring.turns < levels[j].t.ring.turns
	})
	if len(levels)%2 == 1 {
		return nil, kerrors.New(kerrors.CsgDegenerate, "odd number of winding cycles")
	}
	out := make([][2]traced, 0, len(levels)/2)
	for i := 0; i < len(levels); i += 2 {
		lo, hi := levels[i].t, levels[i+1].t
		if lo.ring.turns != 1 || hi.ring.turns != -1 {
			return nil, kerrors.New(kerrors.CsgDegenerate, "winding cycles do not bound bands")
		}
		out = append(out, [2]traced{lo, hi})
	}
	return out, nil
}

// holeOwner returns the region a hole ring lies in: the smallest outer
// region containing a point just off the hole, or the band around it.
func holeOwner(hole paramRing, regions []*region, periodic bool) *region {
	i, best := 0, -1.0
	for k := 0; k+1 < len(hole.pts); k++ {
		if l := hole.pts[k].Dist(hole.pts[k+1]); l > best {
			i, best = k, l
		}
	}
	a, c := hole.pts[i], hole.pts[i+1]
	d := c.Sub(a)
	p := a.Lerp(c, 0.5).Add(d.Perp().Scale(holeOffset))

	var owner *region
	area := math.Inf(1)
	for _, r := range regions {
		if r.band {
			continue
		}
		if r.rings[0].parity(p, periodic)%2 == 1 {
			if ar := r.rings[0].area(); ar < area {
				owner, area = r, ar
			}
		}
	}
	if owner != nil {
		return owner
	}
	for _, r := range regions {
		if r.band && (r.rings[0].parity(p, periodic)+r.rings[1].parity(p, periodic))%2 == 1 {
			return r
		}
	}
	return nil
}
