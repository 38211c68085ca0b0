package geom

import (
	"errors"
	"math"
	"sort"
)

// ErrTriangulation is returned when a polygon cannot be clipped into
// triangles, which happens only for self-intersecting input.
var ErrTriangulation = errors.New("geom: polygon cannot be triangulated")

// Triangulate splits the polygon with outer boundary outer and holes into
// triangles by ear clipping. Holes are first bridged into the outer
// boundary. Windings are normalised, so any orientation is accepted. The
// result indexes the concatenation of outer and every hole, in order, and
// every triangle is counter-clockwise.
func Triangulate(outer []Vec2, holes ...[]Vec2) ([][3]int, error) {
	if len(outer) < 3 {
		return nil, ErrTriangulation
	}
	pts := append([]Vec2(nil), outer...)
	ring := indexRange(0, len(outer))
	if SignedArea(outer) < 0 {
		reverseInts(ring)
	}

	type hole struct {
		idx   []int
		right int // index into idx of the rightmost vertex
	}
	hs := make([]hole, 0, len(holes))
	for _, h := range holes {
		if len(h) < 3 {
			continue
		}
		idx := indexRange(len(pts), len(h))
		pts = append(pts, h...)
		if SignedArea(h) > 0 {
			reverseInts(idx)
		}
		r := 0
		for i, k := range idx {
			if pts[k].X > pts[idx[r]].X || (pts[k].X == pts[idx[r]].X && pts[k].Y < pts[idx[r]].Y) {
				r = i
			}
		}
		hs = append(hs, hole{idx: idx, right: r})
	}
	sort.SliceStable(hs, func(i, j int) bool {
		return pts[hs[i].idx[hs[i].right]].X > pts[hs[j].idx[hs[j].right]].X
	})
	for _, h := range hs {
		var err error
		if ring, err = bridge(pts, ring, h.idx, h.right); err != nil {
			return nil, err
		}
	}
	return clipEars(pts, ring)
}

// bridge splices hole into ring through a mutually visible vertex pair.
func bridge(pts []Vec2, ring, hole []int, right int) ([]int, error) {
	m := pts[hole[right]]
	// Nearest edge crossed by the ray from m towards +X.
	best, bestX := -1, math.Inf(1)
	for i := range ring {
		a, b := pts[ring[i]], pts[ring[(i+1)%len(ring)]]
		if (a.Y > m.Y) == (b.Y > m.Y) && a.Y != m.Y && b.Y != m.Y {
			continue
		}
		if a.Y == b.Y {
			continue
		}
		x := a.X + (m.Y-a.Y)*(b.X-a.X)/(b.Y-a.Y)
		if x >= m.X && x < bestX && within(m.Y, a.Y, b.Y) {
			best, bestX = i, x
		}
	}
	if best < 0 {
		return nil, ErrTriangulation
	}
	// Candidate: the endpoint of the hit edge with the larger X.
	i0, i1 := best, (best+1)%len(ring)
	cand := i0
	if pts[ring[i1]].X > pts[ring[i0]].X {
		cand = i1
	}
	hit := Vec2{X: bestX, Y: m.Y}
	p := pts[ring[cand]]
	if p != hit {
		// A reflex vertex inside triangle (m, hit, p) blocks the view; take
		// the one closest in angle to the ray.
		bestAngle := math.Inf(1)
		for i, k := range ring {
			q := pts[k]
			if i == cand || q == m {
				continue
			}
			if !q.inTriangle(m, hit, p) && !q.inTriangle(m, p, hit) {
				continue
			}
			prev, next := pts[ring[(i+len(ring)-1)%len(ring)]], pts[ring[(i+1)%len(ring)]]
			if q.Sub(prev).Cross(next.Sub(q)) > 0 {
				continue
			}
			d := q.Sub(m)
			ang := math.Abs(math.Atan2(d.Y, d.X))
			if ang < bestAngle || (ang == bestAngle && q.X > pts[ring[cand]].X) {
				bestAngle, cand = ang, i
			}
		}
	}

	out := make([]int, 0, len(ring)+len(hole)+2)
	out = append(out, ring[:cand+1]...)
	for k := 0; k <= len(hole); k++ {
		out = append(out, hole[(right+k)%len(hole)])
	}
	out = append(out, ring[cand])
	out = append(out, ring[cand+1:]...)
	return out, nil
}

func within(y, a, b float64) bool {
	lo, hi := math.Min(a, b), math.Max(a, b)
	return y >= lo && y <= hi
}

// clipEars triangulates a simple counter-clockwise ring, possibly with
// bridge seams (repeated vertices).
func clipEars(pts []Vec2, ring []int) ([][3]int, error) {
	tris := make([][3]int, 0, len(ring)-2)
	idx := append([]int(nil), ring...)
	for len(idx) > 3 {
		n := len(idx)
		ear := -1
		for i := 0; i < n; i++ {
			if isEar(pts, idx, i) {
				ear = i
				break
			}
		}
		if ear < 0 {
			// No clean ear: numerically degenerate input. Clip the vertex
			// with the flattest convex corner so progress is guaranteed.
			ear = flattest(pts, idx)
			if ear < 0 {
				return nil, ErrTriangulation
			}
		}
		a, b, c := idx[(ear+n-1)%n], idx[ear], idx[(ear+1)%n]
		if pts[b].Sub(pts[a]).Cross(pts[c].Sub(pts[b])) > 0 {
			tris = append(tris, [3]int{a, b, c})
		}
		idx = append(idx[:ear], idx[ear+1:]...)
	}
	a, b, c := idx[0], idx[1], idx[2]
	if pts[b].Sub(pts[a]).Cross(pts[c].Sub(pts[b])) > 0 {
		tris = append(tris, [3]int{a, b, c})
	}
	return tris, nil
}

func isEar(pts []Vec2, idx []int, i int) bool {
	n := len(idx)
	a, b, c := pts[idx[(i+n-1)%n]], pts[idx[i]], pts[idx[(i+1)%n]]
	if b.Sub(a).Cross(c.Sub(b)) <= 0 {
		return false
	}
	for j := 0; j < n; j++ {
		q := pts[idx[j]]
		if q == a || q == b || q == c {
			continue
		}
		if q.inTriangle(a, b, c) {
			return false
		}
	}
	return true
}

func flattest(pts []Vec2, idx []int) int {
	n := len(idx)
	best, bestArea := -1, math.Inf(1)
	for i := 0; i < n; i++ {
		a, b, c := pts[idx[(i+n-1)%n]], pts[idx[i]], pts[idx[(i+1)%n]]
		if area := math.Abs(b.Sub(a).Cross(c.Sub(b))); area < bestArea {
			best, bestArea = i, area
		}
	}
	return best
}

// inTriangle reports whether p lies inside or on the counter-clockwise
// triangle abc.
func (p Vec2) inTriangle(a, b, c Vec2) bool {
	return b.Sub(a).Cross(p.Sub(a)) >= 0 &&
		c.Sub(b).Cross(p.Sub(b)) >= 0 &&
		a.Sub(c).Cross(p.Sub(c)) >= 0
}

func indexRange(start, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = start + i
	}
	return out
}

func reverseInts(s []int) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// TriangleArea returns the signed area of triangle abc.
func TriangleArea(a, b, c Vec2) float64 { return b.Sub(a).Cross(c.Sub(a)) / 2 }
