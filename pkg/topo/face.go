package topo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/chazu/kerf/pkg/geom"
	"github.com/chazu/kerf/pkg/geometry"
	"github.com/chazu/kerf/pkg/kerrors"
)

// validationDeviation is the relative chord deviation used to sample curved
// edges when checking faces. Validation needs shape, not accuracy.
const validationDeviation = 1e-3

// HalfEdgePoints samples a half-edge in traversal order within tol. The
// last point is the half-edge's end vertex position.
func (g *Graph) HalfEdgePoints(h HalfEdge, tol geom.Tolerance) ([]geom.Vec3, error) {
	c, t0, t1 := g.OrientedCurve(h)
	pl, err := geometry.ApproximateCurve(c, t0, t1, tol, 0)
	if err != nil {
		return nil, err
	}
	pts := pl.Points
	// Snap ends to the canonical vertices so neighbours agree exactly.
	pts[0] = g.Point(g.Start(h))
	pts[len(pts)-1] = g.Point(g.End(h))
	return pts, nil
}

// CyclePoints samples a cycle as a closed polyline without the repeated
// closing point.
func (g *Graph) CyclePoints(c CycleID, tol geom.Tolerance) ([]geom.Vec3, error) {
	var out []geom.Vec3
	for _, h := range g.cycles[c].HalfEdges {
		pts, err := g.HalfEdgePoints(h, tol)
		if err != nil {
			return nil, err
		}
		out = append(out, pts[:len(pts)-1]...)
	}
	return out, nil
}

func (g *Graph) validationTolerance(c geometry.Curve) geom.Tolerance {
	return geom.Tolerance(math.Max(c.Radius()*validationDeviation, g.tol.Float()))
}

// checkFace enforces the face-local invariants: boundary on the surface,
// simple cycles, correct windings and holes inside the exterior.
func (g *Graph) checkFace(f Face) error {
	slack := endpointSlack * g.tol.Float()
	for _, c := range f.Cycles() {
		for _, h := range g.cycles[c].HalfEdges {
			e := g.edges[h.Edge]
			for _, t := range []float64{e.Range[0], (e.Range[0] + e.Range[1]) / 2, e.Range[1]} {
				if d := f.Surface.Distance(e.Curve.PointAt(t)); d > slack {
					return kerrors.Newf(kerrors.InvalidTopology, "edge lies %g off the face surface", d).With("edge", h.Edge)
				}
			}
		}
	}

	rings := make([]orb.Ring, 0, 1+len(f.Interiors))
	for _, c := range f.Cycles() {
		ring, ok, err := g.paramRing(f.Surface, c)
		if err != nil {
			return err
		}
		if !ok {
			// The cycle wraps around a periodic surface; only closure and
			// manifold orientation apply.
			return nil
		}
		rings = append(rings, ring)
	}

	for i, ring := range rings {
		if err := checkSimple(ring, g.paramTolerance(f.Surface)); err != nil {
			return kerrors.Wrap(err, kerrors.InvalidTopology, "cycle %d of face", i)
		}
	}
	ext := rings[0]
	if a := planar.Area(ext); a <= g.tol.Float()*g.tol.Float() {
		return kerrors.New(kerrors.InvalidTopology, "face has zero area (%g)", a)
	}
	if ext.Orientation() != orb.CCW {
		return kerrors.New(kerrors.InvalidTopology, "exterior cycle is not counter-clockwise")
	}
	for i, hole := range rings[1:] {
		if hole.Orientation() != orb.CW {
			return kerrors.Newf(kerrors.InvalidTopology, "hole cycle is not clockwise").With("hole", i)
		}
		for _, p := range hole {
			if !planar.RingContains(ext, p) {
				return kerrors.Newf(kerrors.InvalidTopology, "hole leaves the exterior").With("hole", i)
			}
		}
	}
	return nil
}

// paramTolerance converts the graph tolerance into parameter units.
func (g *Graph) paramTolerance(s geometry.Surface) geom.Tolerance {
	switch s.Kind {
	case geometry.SurfacePlane:
		return geom.Tolerance(g.tol.Float() / math.Max(s.U.Length(), s.V.Length()))
	case geometry.SurfaceSwept:
		scale := s.Path.Length()
		if s.Curve.Kind == geometry.CurveCircle {
			scale = math.Max(scale, s.Curve.Radius())
		} else {
			scale = math.Max(scale, s.Curve.Dir.Length())
		}
		return geom.Tolerance(g.tol.Float() / scale)
	}
	return g.tol
}

// paramRing maps a cycle into the surface's parameter plane as a closed orb
// ring. On periodic surfaces u is unwrapped continuously; ok is false if
// the unwrapped cycle does not close (it goes around the surface).
func (g *Graph) paramRing(s geometry.Surface, c CycleID) (orb.Ring, bool, error) {
	var ring orb.Ring
	var last float64
	for _, h := range g.cycles[c].HalfEdges {
		curve, _, _ := g.OrientedCurve(h)
		pts, err := g.HalfEdgePoints(h, g.validationTolerance(curve))
		if err != nil {
			return nil, false, err
		}
		for _, p := range pts[:len(pts)-1] {
			u, v := s.Project(p)
			if s.Periodic() && len(ring) > 0 {
				u = geometry.NearestTurn(u, last)
			}
			last = u
			ring = append(ring, orb.Point{u, v})
		}
	}
	if s.Periodic() && math.Abs(geometry.NearestTurn(ring[0][0], last)-ring[0][0]) > math.Pi {
		return nil, false, nil
	}
	ring = append(ring, ring[0])
	return ring, true, nil
}

// checkSimple reports an error if two non-adjacent segments of the closed
// ring touch or cross.
func checkSimple(ring orb.Ring, tol geom.Tolerance) error {
	n := len(ring) - 1
	if n < 2 {
		return kerrors.New(kerrors.InvalidTopology, "cycle has fewer than two distinct points")
	}
	pts := make([]geom.Vec2, n)
	for i := range pts {
		pts[i] = geom.Vec2{X: ring[i][0], Y: ring[i][1]}
	}
	if i, j, ok := geom.SelfIntersection(pts, tol); ok {
		return kerrors.Newf(kerrors.InvalidTopology, "cycle self-intersects").With("segment", i).With("other", j)
	}
	return nil
}
