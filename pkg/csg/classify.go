package csg

import (
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/chazu/kerf/pkg/geom"
	"github.com/chazu/kerf/pkg/kerrors"
	"github.com/chazu/kerf/pkg/topo"
)

// rayDirs are the directions tried in turn by inside; a ray that grazes a
// face boundary or runs along a face is retried along the next one.
var rayDirs = []geom.Vec3{
	geom.Vec3{X: 0.2711, Y: 0.5347, Z: 0.8013}.Normalize(),
	geom.Vec3{X: -0.6181, Y: 0.3141, Z: 0.7207}.Normalize(),
	geom.Vec3{X: 0.1033, Y: -0.9463, Z: 0.3063}.Normalize(),
	geom.Vec3{X: -0.4142, Y: -0.2718, Z: -0.8683}.Normalize(),
	geom.Vec3{X: 0.8821, Y: -0.1297, Z: -0.4528}.Normalize(),
	geom.Vec3{X: -0.0577, Y: 0.9911, Z: -0.1201}.Normalize(),
}

// patches groups regions of one operand connected through edges that are
// not cuts. The groups are ordered by their first region.
func (b *builder) patches(regions []*region) [][]*region {
	parent := make([]int, len(regions))
	for i := range parent {
		parent[i] = i
	}
	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	byEdge := make(map[topo.EdgeID]int)
	for i, r := range regions {
		for _, hes := range r.cycles {
			for _, h := range hes {
				if b.cutEdges[h.Edge] {
					continue
				}
				j, ok := byEdge[h.Edge]
				if !ok {
					byEdge[h.Edge] = i
					continue
				}
				if a, c := find(i), find(j); a != c {
					if a < c {
						parent[c] = a
					} else {
						parent[a] = c
					}
				}
			}
		}
	}
	idx := make(map[int]int)
	var out [][]*region
	for i, r := range regions {
		root := find(i)
		k, ok := idx[root]
		if !ok {
			k = len(out)
			idx[root] = k
			out = append(out, nil)
		}
		out[k] = append(out[k], r)
	}
	return out
}

// representative returns the region of a patch with the widest sample
// interval.
func representative(rs []*region) *region {
	best := rs[0]
	for _, r := range rs[1:] {
		if r.weight > best.weight {
			best = r
		}
	}
	return best
}

// classifyAll tests the samples against target operands in parallel.
func (b *builder) classifyAll(samples []geom.Vec3, against []int) ([]bool, error) {
	out := make([]bool, len(samples))
	var eg errgroup.Group
	eg.SetLimit(b.parallelism)
	for i, p := range samples {
		eg.Go(func() error {
			in, err := b.inside(p, against[i])
			if err != nil {
				return err
			}
			out[i] = in
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// onBoundary returns the face of operand s that p lies on, if any.
func (b *builder) onBoundary(p geom.Vec3, s int) (topo.FaceID, bool) {
	tol, st := b.tol.Float(), b.sampleTol.Float()
	for _, f := range b.faces[s] {
		d := b.dom[f]
		if math.Abs(d.an.eval(p)) > tol {
			continue
		}
		if in, on := d.contains(p, tol, st); in || on {
			return f, true
		}
	}
	return 0, false
}

// inside reports whether p lies inside operand s by ray parity over its
// faces. A point on the operand's boundary fails with CsgDegenerate.
func (b *builder) inside(p geom.Vec3, s int) (bool, error) {
	if !b.bounds[s].Contains(p, b.tol) {
		return false, nil
	}
	if f, ok := b.onBoundary(p, s); ok {
		return false, kerrors.Newf(kerrors.CsgDegenerate, "sample lies on the other solid's boundary").
			With("face", f).With("point", p)
	}
	for attempt, dir := range rayDirs {
		hits, ok := b.cast(p, dir, s)
		if ok {
			return hits%2 == 1, nil
		}
		b.log.Warn("csg: ray cast ambiguous, retrying", "attempt", attempt, "point", p)
	}
	return false, kerrors.Newf(kerrors.CsgDegenerate, "containment is ambiguous").With("point", p)
}

// cast counts the faces of operand s crossed by the ray p + t·dir, t > 0.
// ok is false when the ray grazes a face, meets a face boundary or runs
// along a face.
func (b *builder) cast(p, dir geom.Vec3, s int) (hits int, ok bool) {
	tol, st := b.tol.Float(), b.sampleTol.Float()
	for _, f := range b.faces[s] {
		d := b.dom[f]
		r := d.an.castRay(p, dir, tol)
		if r.along {
			return 0, false
		}
		for _, q := range r.grazes {
			if in, on := d.contains(q, tol, st); in || on {
				return 0, false
			}
		}
		for _, t := range r.hits {
			if t <= tol {
				continue
			}
			in, on := d.contains(p.Add(dir.Scale(t)), tol, st)
			if on {
				return 0, false
			}
			if in {
				hits++
			}
		}
	}
	return hits, true
}

// classifyShells reports, for each whole shell, whether it
// lies inside the other operand.
func (b *builder) classifyShells(shells []wholeShell) ([]bool, error) {
	out := make([]bool, len(shells))
	var samples []geom.Vec3
	var against, idx []int
	for i, w := range shells {
		if !b.g.ShellBounds(w.id).Overlaps(b.bounds[1-w.side], b.tol) {
			continue
		}
		var best *faceDomain
		for _, f := range b.g.Shell(w.id).Faces {
			for _, v := range b.g.FaceVertices(f) {
				if of, ok := b.onBoundary(b.g.Point(v), 1-w.side); ok {
					return nil, kerrors.Newf(kerrors.CsgDegenerate, "vertex lies on the other solid's boundary").
						With("vertex", v).With("face", of)
				}
			}
			if d := b.dom[f]; best == nil || d.weight > best.weight {
				best = d
			}
		}
		samples = append(samples, best.sample)
		against = append(against, 1-w.side)
		idx = append(idx, i)
	}
	in, err := b.classifyAll(samples, against)
	if err != nil {
		return nil, err
	}
	for k, i := range idx {
		out[i] = in[k]
	}
	return out, nil
}
