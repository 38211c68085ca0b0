package sketch

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/chazu/kerf/pkg/geom"
	"github.com/chazu/kerf/pkg/geometry"
	"github.com/chazu/kerf/pkg/kerrors"
	"github.com/chazu/kerf/pkg/kernel"
	"github.com/chazu/kerf/pkg/topo"
)

// Options tunes Build.
type Options struct {
	// ApproxTolerance is the chord deviation used to approximate curved
	// loops for the self-intersection and containment checks. Zero derives
	// it from the profile size.
	ApproxTolerance geom.Tolerance
}

// checked is a loop with its approximation, normalised to the winding it
// needs in the face.
type checked struct {
	loop Loop
	pts  []geom.Vec2
}

// Build validates p and creates the planar face it bounds on plane, which
// must be a plane with orthonormal axes. The exterior is wound
// counter-clockwise and holes clockwise about the plane normal whatever
// their input direction. Invalid profiles fail with InvalidProfile and add
// nothing to g.
func Build(g *topo.Graph, p Profile, plane geometry.Surface, opts Options) (topo.FaceID, error) {
	if err := checkPlane(plane); err != nil {
		return 0, err
	}
	loops, err := checkProfile(p, g.Tolerance(), opts)
	if err != nil {
		return 0, err
	}

	m := g.Mark()
	face, err := build(g, loops, plane)
	if err != nil {
		g.Rollback(m)
		return 0, kerrors.Wrap(err, kerrors.InvalidProfile, "build profile face")
	}
	kernel.Logger().Debug("sketch: profile built",
		"face", face, "loops", len(loops), "segments", len(p.Exterior))
	return face, nil
}

// Check validates p without building anything.
func Check(p Profile, tol geom.Tolerance, opts Options) error {
	_, err := checkProfile(p, tol, opts)
	return err
}

func checkPlane(s geometry.Surface) error {
	if s.Kind != geometry.SurfacePlane {
		return kerrors.New(kerrors.InvalidProfile, "sketch surface must be a plane, got %v", s.Kind)
	}
	const eps = 1e-9
	if math.Abs(s.U.Length()-1) > eps || math.Abs(s.V.Length()-1) > eps || math.Abs(s.U.Dot(s.V)) > eps {
		return kerrors.New(kerrors.InvalidProfile, "sketch plane axes must be orthonormal")
	}
	return nil
}

func checkProfile(p Profile, tol geom.Tolerance, opts Options) ([]checked, error) {
	if err := tol.Validate(); err != nil {
		return nil, err
	}
	at := opts.ApproxTolerance
	if at <= 0 {
		b := p.Bounds()
		at = geom.Tolerance(math.Max(b.Max.Sub(b.Min).Length()*1e-4, 10*tol.Float()))
	}

	var out []checked
	for i, l := range p.Loops() {
		c, err := checkLoop(l, tol, at, i == 0)
		if err != nil {
			if i == 0 {
				return nil, kerrors.Wrap(err, kerrors.InvalidProfile, "exterior")
			}
			return nil, kerrors.Wrap(err, kerrors.InvalidProfile, "hole %d", i-1)
		}
		out = append(out, c)
	}

	ext := ring(out[0].pts)
	for i, h := range out[1:] {
		for _, q := range h.pts {
			if !planar.RingContains(ext, orb.Point{q.X, q.Y}) {
				return nil, kerrors.Newf(kerrors.InvalidProfile, "hole is not inside the exterior").With("hole", i)
			}
		}
		if geom.SegmentsCross(out[0].pts, h.pts, tol) {
			return nil, kerrors.Newf(kerrors.InvalidProfile, "hole touches the exterior").With("hole", i)
		}
		for j, o := range out[1+i+1:] {
			other := i + 1 + j
			if geom.SegmentsCross(h.pts, o.pts, tol) ||
				planar.RingContains(ring(h.pts), orb.Point{o.pts[0].X, o.pts[0].Y}) ||
				planar.RingContains(ring(o.pts), orb.Point{h.pts[0].X, h.pts[0].Y}) {
				return nil, kerrors.Newf(kerrors.InvalidProfile, "holes overlap").With("hole", i).With("other", other)
			}
		}
	}
	return out, nil
}

func checkLoop(l Loop, tol, at geom.Tolerance, exterior bool) (checked, error) {
	if err := l.Check(tol); err != nil {
		return checked{}, err
	}
	pts, err := l.Approximate(at)
	if err != nil {
		return checked{}, err
	}
	if i, j, bad := geom.SelfIntersection(pts, tol); bad {
		return checked{}, kerrors.Newf(kerrors.InvalidProfile, "loop self-intersects").With("chord", i).With("other", j)
	}
	area := geom.SignedArea(pts)
	if math.Abs(area) <= tol.Float()*tol.Float() {
		return checked{}, kerrors.New(kerrors.InvalidProfile, "loop encloses no area")
	}
	if (area > 0) != exterior {
		l = l.Reverse()
		for a, b := 0, len(pts)-1; a < b; a, b = a+1, b-1 {
			pts[a], pts[b] = pts[b], pts[a]
		}
	}
	return checked{loop: l, pts: pts}, nil
}

func build(g *topo.Graph, loops []checked, plane geometry.Surface) (topo.FaceID, error) {
	cycles := make([]topo.CycleID, len(loops))
	for i, c := range loops {
		hes, err := buildLoop(g, c.loop, plane)
		if err != nil {
			return 0, err
		}
		if cycles[i], err = g.CreateCycle(hes); err != nil {
			return 0, err
		}
	}
	return g.CreateFace(plane, cycles[0], cycles[1:]...)
}

func buildLoop(g *topo.Graph, l Loop, plane geometry.Surface) ([]topo.HalfEdge, error) {
	verts := make([]topo.VertexID, len(l))
	for i, s := range l {
		verts[i] = g.CreateVertex(plane.PointAt2(s.StartPoint()))
	}
	hes := make([]topo.HalfEdge, len(l))
	for i, s := range l {
		v0, v1 := verts[i], verts[(i+1)%len(l)]
		if s.Kind == SegmentLine {
			h, err := g.LineEdge(v0, v1)
			if err != nil {
				return nil, err
			}
			hes[i] = h
			continue
		}
		c, t0, t1, reversed := s.curve(plane)
		if reversed {
			v0, v1 = v1, v0
		}
		e, err := g.CreateEdge(c, v0, v1, t0, t1)
		if err != nil {
			return nil, err
		}
		hes[i] = topo.HalfEdge{Edge: e, Reversed: reversed}
	}
	return hes, nil
}
