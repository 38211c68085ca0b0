package tessellate

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
	// seamTries is the number of lower-boundary vertices tried as the
	// start of the seam cutting a band open.
	seamTries = 16
	// maxPoints bounds the vertices of one refined face.
	maxPoints = 1 << 20
)

// turnStep is the largest angle a chord may turn around a circle of radius
// r while staying within tol of it.
func turnStep(r, tol float64) float64 {
	if tol >= r {
		return math.Pi / 2
	}
	return math.Min(2*math.Acos(1-tol/r), math.Pi/2)
}

// unrolled is a cycle of a curved face in the surface's parameter plane,
// with u unwrapped. turns counts how often it winds around the surface.
type unrolled struct {
	uv    []geom.Vec2
	xyz   []geom.Vec3
	turns int
}

func unroll(s geometry.Surface, pts []geom.Vec3) unrolled {
	out := unrolled{uv: make([]geom.Vec2, len(pts)), xyz: pts}
	for i, p := range pts {
		q := s.Project2(p)
		if i > 0 {
			q.X = geometry.NearestTurn(q.X, out.uv[i-1].X)
		}
		out.uv[i] = q
	}
	end := geometry.NearestTurn(out.uv[0].X, out.uv[len(pts)-1].X)
	out.turns = int(math.Round((end - out.uv[0].X) / turn))
	return out
}

// shifted returns c moved by k whole turns.
func (c unrolled) shifted(k float64) unrolled {
	out := unrolled{uv: make([]geom.Vec2, len(c.uv)), xyz: c.xyz, turns: c.turns}
	for i, q := range c.uv {
		out.uv[i] = geom.Vec2{X: q.X + k*turn, Y: q.Y}
	}
	return out
}

// rotated returns the points of a winding cycle starting at vertex i and
// ending one period later at its copy, so the result runs across exactly
// one turn.
func (c unrolled) rotated(i int) unrolled {
	n := len(c.uv)
	shift := float64(c.turns) * turn
	out := unrolled{turns: c.turns}
	for k := 0; k <= n; k++ {
		j := (i + k) % n
		q := c.uv[j]
		if i+k >= n {
			q.X += shift
		}
		out.uv = append(out.uv, q)
		out.xyz = append(out.xyz, c.xyz[j])
	}
	return out
}

func (c unrolled) centerU() float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, q := range c.uv {
		lo, hi = math.Min(lo, q.X), math.Max(hi, q.X)
	}
	return (lo + hi) / 2
}

// curvedPatch triangulates a face on a periodic swept surface. The face is
// unrolled into its parameter plane, with a band cut open along a seam
// between its two boundaries, ear-clipped in a chart scaled to the
// surface, and refined until no triangle turns further around the surface
// than tol allows.
func curvedPatch(g *topo.Graph, face topo.Face, edges map[topo.EdgeID][]geom.Vec3, id topo.FaceID, tol float64) (*patch, error) {
	s := face.Surface
	var cycles []unrolled
	for _, c := range face.Cycles() {
		cycles = append(cycles, unroll(s, cyclePoints(g, edges, c)))
	}

	var outer unrolled
	var holes []unrolled
	switch cycles[0].turns {
	case 0:
		outer = cycles[0]
		mid := outer.centerU()
		for _, h := range cycles[1:] {
			holes = append(holes, h.shifted(math.Round((mid-h.centerU())/turn)))
		}
	default:
		var ok bool
		outer, holes, ok = cutBand(cycles, tol)
		if !ok {
			return nil, kerrors.Newf(kerrors.InvalidTopology, "band has no seam clear of its boundary").With("face", id)
		}
	}

	sx, sy := s.Curve.Radius(), s.Path.Length()
	chart := func(q geom.Vec2) geom.Vec2 { return geom.Vec2{X: sx * q.X, Y: sy * q.Y} }
	m := &refiner{s: s}
	var rings [][]geom.Vec2
	for _, c := range append([]unrolled{outer}, holes...) {
		ring := make([]geom.Vec2, len(c.uv))
		base := len(m.uv)
		for i, q := range c.uv {
			ring[i] = chart(q)
			m.fixed(base+i, base+(i+1)%len(c.uv))
		}
		m.uv = append(m.uv, c.uv...)
		m.xyz = append(m.xyz, c.xyz...)
		rings = append(rings, ring)
	}
	tris, err := geom.Triangulate(rings[0], rings[1:]...)
	if err != nil {
		return nil, kerrors.Wrap(err, kerrors.InvalidTopology, "triangulate face %v", id)
	}
	m.chart = chart
	m.tris = tris
	m.flip()
	if err := m.refine(turnStep(sx, tol)); err != nil {
		return nil, kerrors.Wrap(err, kerrors.ToleranceExceeded, "refine face %v", id)
	}

	p := &patch{points: m.xyz, tris: m.tris, normals: make([]geom.Vec3, len(m.uv))}
	for i, q := range m.uv {
		p.normals[i] = s.NormalAt(q.X, q.Y)
	}
	return p, nil
}

// cutBand opens a face winding around its surface into a simple polygon:
// along the lower boundary, up a seam, back along the upper boundary and
// down the seam's copy one turn earlier. Holes are moved into the turn the
// polygon covers. ok is false when no seam tried clears every cycle.
func cutBand(cycles []unrolled, tol float64) (unrolled, []unrolled, bool) {
	var lower, upper unrolled
	var holes []unrolled
	bands := 0
	for _, c := range cycles {
		switch c.turns {
		case 1:
			lower = c
			bands++
		case -1:
			upper = c
			bands++
		case 0:
			holes = append(holes, c)
		default:
			return unrolled{}, nil, false
		}
	}
	if bands != 2 || lower.uv == nil || upper.uv == nil {
		return unrolled{}, nil, false
	}

	n := len(lower.uv)
	tries := seamTries
	if tries > n {
		tries = n
	}
	ptol := geom.Tolerance(tol * 1e-3)
	for k := 0; k < tries; k++ {
		lo := lower.rotated(k * n / tries)
		u0 := lo.uv[0].X
		// Start the upper boundary at its vertex closest around the
		// surface to the seam's foot, one turn along.
		j, best := 0, math.Inf(1)
		for i, q := range upper.uv {
			if d := math.Abs(geometry.NearestTurn(q.X-u0, 0)); d < best {
				j, best = i, d
			}
		}
		up := upper.rotated(j)
		up = up.shifted(math.Round((u0 + turn - up.uv[0].X) / turn))

		poly := unrolled{
			uv:  append(append([]geom.Vec2(nil), lo.uv...), up.uv...),
			xyz: append(append([]geom.Vec3(nil), lo.xyz...), up.xyz...),
		}
		if geom.SignedArea(poly.uv) <= 0 {
			continue
		}
		if _, _, bad := geom.SelfIntersection(poly.uv, ptol); bad {
			continue
		}
		moved := make([]unrolled, len(holes))
		clear := true
		for i, h := range holes {
			moved[i] = h.shifted(math.Round((u0+turn/2-h.centerU())/turn))
			if geom.SegmentsCross(poly.uv, moved[i].uv, ptol) {
				clear = false
				break
			}
		}
		if clear {
			return poly, moved, true
		}
	}
	return unrolled{}, nil, false
}

// refiner holds the triangulation of one curved face. uv are the surface
// parameters of each vertex and chart maps them to the scaled plane the
// triangles were built in.
type refiner struct {
	s     geometry.Surface
	uv    []geom.Vec2
	xyz   []geom.Vec3
	tris  [][3]int
	chart func(geom.Vec2) geom.Vec2
	// bound holds the boundary edges, which are never flipped or split.
	bound map[[2]int]bool
}

func (m *refiner) fixed(a, b int) {
	if m.bound == nil {
		m.bound = make(map[[2]int]bool)
	}
	m.bound[edgeKey(a, b)] = true
}

func edgeKey(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

// halfEdges maps every directed triangle edge to its triangle.
func (m *refiner) halfEdges() map[[2]int]int {
	out := make(map[[2]int]int, 3*len(m.tris))
	for k, t := range m.tris {
		for i := 0; i < 3; i++ {
			out[[2]int{t[i], t[(i+1)%3]}] = k
		}
	}
	return out
}

// opposite returns the vertex of triangle t not on edge a-b.
func opposite(t [3]int, a, b int) int {
	for _, v := range t {
		if v != a && v != b {
			return v
		}
	}
	return -1
}

// flip makes the interior edges locally Delaunay in the chart.
func (m *refiner) flip() {
	for pass := 0; pass < 4*len(m.tris)+8; pass++ {
		he := m.halfEdges()
		flipped := false
		for k := range m.tris {
			t := m.tris[k]
			for i := 0; i < 3; i++ {
				a, b := t[i], t[(i+1)%3]
				if m.bound[edgeKey(a, b)] {
					continue
				}
				o, ok := he[[2]int{b, a}]
				if !ok || o == k {
					continue
				}
				c, d := opposite(t, a, b), opposite(m.tris[o], a, b)
				pa, pb, pc, pd := m.chart(m.uv[a]), m.chart(m.uv[b]), m.chart(m.uv[c]), m.chart(m.uv[d])
				if !inCircle(pa, pb, pc, pd) {
					continue
				}
				// The new diagonal c-d must leave both triangles positive.
				if geom.TriangleArea(pc, pd, pb) <= 0 || geom.TriangleArea(pd, pc, pa) <= 0 {
					continue
				}
				m.tris[k] = [3]int{c, d, b}
				m.tris[o] = [3]int{d, c, a}
				flipped = true
				break
			}
			if flipped {
				break
			}
		}
		if !flipped {
			return
		}
	}
}

// inCircle reports whether d lies strictly inside the circumcircle of the
// counter-clockwise triangle a, b, c.
func inCircle(a, b, c, d geom.Vec2) bool {
	ax, ay := a.X-d.X, a.Y-d.Y
	bx, by := b.X-d.X, b.Y-d.Y
	cx, cy := c.X-d.X, c.Y-d.Y
	det := (ax*ax+ay*ay)*(bx*cy-cx*by) - (bx*bx+by*by)*(ax*cy-cx*ay) + (cx*cx+cy*cy)*(ax*by-bx*ay)
	return det > 1e-12*(ax*ax+ay*ay+bx*bx+by*by+cx*cx+cy*cy)
}

// refine splits interior edges turning more than step around the surface
// at their parameter midpoints, widest first, until none is left.
func (m *refiner) refine(step float64) error {
	for {
		he := m.halfEdges()
		type long struct {
			a, b int
			du   float64
		}
		var todo []long
		for e := range he {
			if e[0] > e[1] || m.bound[edgeKey(e[0], e[1])] {
				continue
			}
			if du := math.Abs(m.uv[e[0]].X - m.uv[e[1]].X); du > step {
				todo = append(todo, long{e[0], e[1], du})
			}
		}
		if len(todo) == 0 {
			return nil
		}
		sort.Slice(todo, func(i, j int) bool {
			if todo[i].du != todo[j].du {
				return todo[i].du > todo[j].du
			}
			if todo[i].a != todo[j].a {
				return todo[i].a < todo[j].a
			}
			return todo[i].b < todo[j].b
		})
		for _, e := range todo {
			t1, ok1 := he[[2]int{e.a, e.b}]
			t2, ok2 := he[[2]int{e.b, e.a}]
			if !ok1 || !ok2 {
				continue
			}
			if len(m.uv) >= maxPoints {
				return kerrors.Newf(kerrors.ToleranceExceeded, "refinement needs more than %d vertices", maxPoints)
			}
			m.split(he, t1, t2, e.a, e.b)
		}
	}
}

// split inserts the midpoint of edge a-b, shared by triangles t1 (a→b) and
// t2 (b→a), replacing both with two triangles each.
func (m *refiner) split(he map[[2]int]int, t1, t2, a, b int) {
	q := m.uv[a].Lerp(m.uv[b], 0.5)
	mid := len(m.uv)
	m.uv = append(m.uv, q)
	m.xyz = append(m.xyz, m.s.PointAt(q.X, q.Y))

	c, d := opposite(m.tris[t1], a, b), opposite(m.tris[t2], a, b)
	set := func(k int, t [3]int) {
		old := m.tris[k]
		for i := 0; i < 3; i++ {
			key := [2]int{old[i], old[(i+1)%3]}
			if o, ok := he[key]; ok && o == k {
				delete(he, key)
			}
		}
		m.tris[k] = t
		for i := 0; i < 3; i++ {
			he[[2]int{t[i], t[(i+1)%3]}] = k
		}
	}
	n1, n2 := len(m.tris), len(m.tris)+1
	m.tris = append(m.tris, [3]int{}, [3]int{})
	set(t1, [3]int{a, mid, c})
	set(n1, [3]int{mid, b, c})
	set(t2, [3]int{b, mid, d})
	set(n2, [3]int{mid, a, d})
}
