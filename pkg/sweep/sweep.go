// Package sweep extrudes planar profile faces along a straight vector into
// closed solids.
package sweep

import (
	"math"

	"github.com/chazu/kerf/pkg/geom"
	"github.com/chazu/kerf/pkg/geometry"
	"github.com/chazu/kerf/pkg/kerrors"
	"github.com/chazu/kerf/pkg/kernel"
	"github.com/chazu/kerf/pkg/topo"
)

// Sweep extrudes the planar face profile along dir and returns the closed
// solid it traces. The solid has one near cap, one far cap and one side
// face per boundary edge of the profile, holes included; a closed circle
// edge yields a single cylindrical side face.
//
// A zero-length dir, or one lying in the profile plane, fails with
// InvalidSweep before anything is created. A non-planar profile fails with
// InvalidProfile. On any failure the graph is left unchanged.
func Sweep(g *topo.Graph, profile topo.FaceID, dir geom.Vec3) (topo.SolidID, error) {
	tol := g.Tolerance()
	if dir.Length() <= tol.Float() {
		return 0, kerrors.New(kerrors.InvalidSweep, "sweep direction %v has zero length", dir)
	}
	surface := g.Face(profile).Surface
	if surface.Kind != geometry.SurfacePlane {
		return 0, kerrors.New(kerrors.InvalidProfile, "sweep profile must be planar, got %v", surface.Kind)
	}
	n := surface.NormalAt(0, 0)
	along := n.Dot(dir)
	if math.Abs(along) <= tol.Float() {
		return 0, kerrors.New(kerrors.InvalidSweep, "sweep direction %v lies in the profile plane", dir)
	}

	m := g.Mark()
	s := &sweeper{g: g, dir: dir, top: make(map[topo.VertexID]topo.VertexID), topEdge: make(map[topo.EdgeID]topo.EdgeID)}
	solid, err := s.run(profile, along < 0)
	if err != nil {
		g.Rollback(m)
		return 0, err
	}
	kernel.Logger().Debug("sweep: solid built",
		"solid", solid, "faces", len(g.SolidFaces(solid)), "dir", dir)
	return solid, nil
}

type sweeper struct {
	g   *topo.Graph
	dir geom.Vec3

	top     map[topo.VertexID]topo.VertexID
	topEdge map[topo.EdgeID]topo.EdgeID
}

// run builds the solid. flipped is true when the profile normal points
// against the sweep direction.
func (s *sweeper) run(profile topo.FaceID, flipped bool) (topo.SolidID, error) {
	// front is the profile oriented with its normal along dir; the far cap
	// is front translated and the near cap is front reversed.
	front, near := profile, profile
	var err error
	if flipped {
		if front, err = s.g.ReverseFace(profile); err != nil {
			return 0, err
		}
	} else {
		if near, err = s.g.ReverseFace(profile); err != nil {
			return 0, err
		}
	}

	far, err := s.farCap(front)
	if err != nil {
		return 0, err
	}
	faces := []topo.FaceID{near, far}
	for _, c := range s.g.Face(front).Cycles() {
		for _, h := range s.g.Cycle(c).HalfEdges {
			side, err := s.sideFace(h)
			if err != nil {
				return 0, err
			}
			faces = append(faces, side)
		}
	}
	shell, err := s.g.CreateShell(faces, true)
	if err != nil {
		return 0, err
	}
	return s.g.CreateSolid(shell)
}

func (s *sweeper) topVertex(v topo.VertexID) topo.VertexID {
	if t, ok := s.top[v]; ok {
		return t
	}
	t := s.g.CreateVertex(s.g.Point(v).Add(s.dir))
	s.top[v] = t
	return t
}

// topHalf returns h translated to the far cap, with the same direction.
func (s *sweeper) topHalf(h topo.HalfEdge) (topo.HalfEdge, error) {
	if e, ok := s.topEdge[h.Edge]; ok {
		return topo.HalfEdge{Edge: e, Reversed: h.Reversed}, nil
	}
	src := s.g.Edge(h.Edge)
	e, err := s.g.CreateEdge(src.Curve.Translate(s.dir), s.topVertex(src.Start), s.topVertex(src.End), src.Range[0], src.Range[1])
	if err != nil {
		return topo.HalfEdge{}, err
	}
	s.topEdge[h.Edge] = e
	return topo.HalfEdge{Edge: e, Reversed: h.Reversed}, nil
}

func (s *sweeper) farCap(front topo.FaceID) (topo.FaceID, error) {
	f := s.g.Face(front)
	cycles := make([]topo.CycleID, 0, 1+len(f.Interiors))
	for _, c := range f.Cycles() {
		src := s.g.Cycle(c).HalfEdges
		hes := make([]topo.HalfEdge, len(src))
		for i, h := range src {
			t, err := s.topHalf(h)
			if err != nil {
				return 0, err
			}
			hes[i] = t
		}
		id, err := s.g.CreateCycle(hes)
		if err != nil {
			return 0, err
		}
		cycles = append(cycles, id)
	}
	return s.g.CreateFace(f.Surface.Translate(s.dir), cycles[0], cycles[1:]...)
}

// sideFace creates the face swept by half-edge h of the front cap. Its
// cycle runs, in (u, v), along h at v = 0, up the vertical at h's end,
// back along the far copy of h and down the vertical at h's start.
func (s *sweeper) sideFace(h topo.HalfEdge) (topo.FaceID, error) {
	curve, _, _ := s.g.OrientedCurve(h)
	surface := geometry.Swept(curve, s.dir)
	top, err := s.topHalf(h)
	if err != nil {
		return 0, err
	}

	if s.g.Edge(h.Edge).Closed() {
		bottom, err := s.g.CreateCycle([]topo.HalfEdge{h})
		if err != nil {
			return 0, err
		}
		upper, err := s.g.CreateCycle([]topo.HalfEdge{top.Flip()})
		if err != nil {
			return 0, err
		}
		return s.g.CreateFace(surface, bottom, upper)
	}

	a, b := s.g.Start(h), s.g.End(h)
	up, err := s.g.LineEdge(b, s.topVertex(b))
	if err != nil {
		return 0, err
	}
	down, err := s.g.LineEdge(s.topVertex(a), a)
	if err != nil {
		return 0, err
	}
	cycle, err := s.g.CreateCycle([]topo.HalfEdge{h, up, top.Flip(), down})
	if err != nil {
		return 0, err
	}
	return s.g.CreateFace(surface, cycle)
}
