// Package brep implements the kernel interface on the exact boundary
// representation: sketches become planar faces, sweeps become closed
// solids and booleans run through csg. One topology graph is owned per
// kernel instance.
package brep

import (
	"math"

	"github.com/chazu/kerf/pkg/csg"
	"github.com/chazu/kerf/pkg/geom"
	"github.com/chazu/kerf/pkg/geometry"
	"github.com/chazu/kerf/pkg/kerrors"
	"github.com/chazu/kerf/pkg/kernel"
	"github.com/chazu/kerf/pkg/model"
	"github.com/chazu/kerf/pkg/sketch"
	"github.com/chazu/kerf/pkg/sweep"
	"github.com/chazu/kerf/pkg/tessellate"
	"github.com/chazu/kerf/pkg/topo"
)

// Name identifies the backend.
const Name = "brep"

// Kernel evaluates model operations on a topology graph.
type Kernel struct {
	cfg kernel.Config
	g   *topo.Graph
}

// New returns a kernel with an empty graph.
func New(cfg kernel.Config) (*Kernel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g, err := topo.New(cfg.Tolerance)
	if err != nil {
		return nil, err
	}
	return &Kernel{cfg: cfg, g: g}, nil
}

// Factory adapts New to kernel.Factory.
func Factory(cfg kernel.Config) (kernel.Kernel, error) {
	k, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return k, nil
}

// Graph returns the topology graph holding the kernel's solids.
func (k *Kernel) Graph() *topo.Graph { return k.g }

func (k *Kernel) Name() string { return Name }

// profile is a checked sketch that has not been built into the graph yet.
// Faces are built on demand by Sweep and ToMesh.
type profile struct {
	p     sketch.Profile
	plane geometry.Surface
}

func (p *profile) Dim() int { return 2 }

func (p *profile) Bounds() geom.AABB {
	b := p.p.Bounds()
	if b.Empty() {
		return geom.AABB{}
	}
	return geom.AABBFromPoints(
		p.plane.PointAt(b.Min.X, b.Min.Y),
		p.plane.PointAt(b.Max.X, b.Min.Y),
		p.plane.PointAt(b.Max.X, b.Max.Y),
		p.plane.PointAt(b.Min.X, b.Max.Y),
	)
}

// solid is a closed solid in the kernel's graph.
type solid struct {
	id     topo.SolidID
	bounds geom.AABB
}

func (s *solid) Dim() int          { return 3 }
func (s *solid) Bounds() geom.AABB { return s.bounds }

func (k *Kernel) newSolid(id topo.SolidID) *solid {
	return &solid{id: id, bounds: k.g.SolidBounds(id)}
}

// SolidID returns the graph ID behind a solid shape.
func SolidID(s kernel.Shape) (topo.SolidID, bool) {
	so, ok := s.(*solid)
	if !ok {
		return 0, false
	}
	return so.id, true
}

// Sketch checks the sketch and returns it as a profile shape.
func (k *Kernel) Sketch(d model.SketchData) (kernel.Shape, error) {
	plane, err := planeSurface(d.Plane)
	if err != nil {
		return nil, err
	}
	ext, err := convertLoop(d.Exterior)
	if err != nil {
		return nil, err
	}
	p := sketch.Profile{Exterior: ext}
	for _, h := range d.Holes {
		l, err := convertLoop(h)
		if err != nil {
			return nil, err
		}
		p.Holes = append(p.Holes, l)
	}
	if err := sketch.Check(p, k.cfg.Tolerance, sketch.Options{}); err != nil {
		return nil, err
	}
	return &profile{p: p, plane: plane}, nil
}

// Difference2D cuts b out of a. Both must be profiles on the same plane
// with the same axes.
func (k *Kernel) Difference2D(a, b kernel.Shape) (kernel.Shape, error) {
	pa, err := asProfile(a)
	if err != nil {
		return nil, err
	}
	pb, err := asProfile(b)
	if err != nil {
		return nil, err
	}
	if !samePlane(pa.plane, pb.plane, k.cfg.Tolerance) {
		return nil, kerrors.New(kerrors.InvalidProfile, "difference2d operands lie on different planes")
	}
	out := sketch.Difference(pa.p, pb.p)
	if err := sketch.Check(out, k.cfg.Tolerance, sketch.Options{}); err != nil {
		return nil, err
	}
	return &profile{p: out, plane: pa.plane}, nil
}

// Sweep builds the profile face and extrudes it along path.
func (k *Kernel) Sweep(s kernel.Shape, path geom.Vec3) (kernel.Shape, error) {
	p, err := asProfile(s)
	if err != nil {
		return nil, err
	}
	m := k.g.Mark()
	f, err := sketch.Build(k.g, p.p, p.plane, sketch.Options{})
	if err != nil {
		return nil, err
	}
	id, err := sweep.Sweep(k.g, f, path)
	if err != nil {
		k.g.Rollback(m)
		return nil, err
	}
	return k.newSolid(id), nil
}

func (k *Kernel) Union(a, b kernel.Shape) (kernel.Shape, error) {
	return k.boolean(csg.OpUnion, a, b)
}

func (k *Kernel) Difference(a, b kernel.Shape) (kernel.Shape, error) {
	return k.boolean(csg.OpDifference, a, b)
}

func (k *Kernel) Intersection(a, b kernel.Shape) (kernel.Shape, error) {
	return k.boolean(csg.OpIntersection, a, b)
}

func (k *Kernel) boolean(op csg.Op, a, b kernel.Shape) (kernel.Shape, error) {
	sa, err := asSolid(a, op.String())
	if err != nil {
		return nil, err
	}
	sb, err := asSolid(b, op.String())
	if err != nil {
		return nil, err
	}
	id, err := csg.Apply(k.g, op, sa.id, sb.id, csg.Options{
		SampleTolerance: k.cfg.FacetTolerance,
		Parallelism:     k.cfg.Parallelism,
	})
	if err != nil {
		return nil, err
	}
	return k.newSolid(id), nil
}

// Transform moves a profile's plane or copies a solid under tf.
func (k *Kernel) Transform(s kernel.Shape, tf geom.Transform) (kernel.Shape, error) {
	switch sh := s.(type) {
	case *profile:
		return &profile{p: sh.p, plane: sh.plane.Transform(tf)}, nil
	case *solid:
		id, err := k.g.TransformSolid(sh.id, tf)
		if err != nil {
			return nil, err
		}
		return k.newSolid(id), nil
	default:
		return nil, kerrors.New(kerrors.InvalidDescription, "shape %T does not belong to the brep kernel", s)
	}
}

// ToMesh tessellates a solid, or the face of a profile. Profile faces are
// built temporarily and removed again.
func (k *Kernel) ToMesh(s kernel.Shape, tol geom.Tolerance) (*kernel.Mesh, error) {
	opts := tessellate.Options{Tolerance: tol, MaxDepth: k.cfg.MaxDepth, Parallelism: k.cfg.Parallelism}
	switch sh := s.(type) {
	case *solid:
		return tessellate.Solid(k.g, sh.id, opts)
	case *profile:
		if err := tol.Validate(); err != nil {
			return nil, err
		}
		m := k.g.Mark()
		defer k.g.Rollback(m)
		f, err := sketch.Build(k.g, sh.p, sh.plane, sketch.Options{})
		if err != nil {
			return nil, err
		}
		return tessellate.Face(k.g, f, opts)
	default:
		return nil, kerrors.New(kerrors.InvalidDescription, "shape %T does not belong to the brep kernel", s)
	}
}

func asProfile(s kernel.Shape) (*profile, error) {
	p, ok := s.(*profile)
	if !ok {
		return nil, kerrors.New(kerrors.InvalidProfile, "expected a profile, got a %dD shape", s.Dim())
	}
	return p, nil
}

func asSolid(s kernel.Shape, op string) (*solid, error) {
	so, ok := s.(*solid)
	if !ok {
		return nil, kerrors.New(kerrors.InvalidDescription, "%s operand must be a solid, got a %dD shape", op, s.Dim())
	}
	return so, nil
}

// planeSurface converts a sketch plane into an orthonormal plane surface.
// V is made perpendicular to U keeping the side it points to.
func planeSurface(p model.Plane) (geometry.Surface, error) {
	p = p.OrDefault()
	u := p.U.Normalize()
	v := p.V.Sub(u.Scale(p.V.Dot(u)))
	if p.U.Length() == 0 || v.Length() < 1e-12 {
		return geometry.Surface{}, kerrors.New(kerrors.InvalidProfile, "sketch plane axes %v and %v are degenerate", p.U, p.V)
	}
	return geometry.Plane(p.Origin, u, v.Normalize()), nil
}

func samePlane(a, b geometry.Surface, tol geom.Tolerance) bool {
	const eps = 1e-9
	return a.Origin.Sub(b.Origin).Length() <= tol.Float() &&
		math.Abs(a.U.Dot(b.U)-1) <= eps &&
		math.Abs(a.V.Dot(b.V)-1) <= eps
}

func convertLoop(l model.Loop) (sketch.Loop, error) {
	out := make(sketch.Loop, len(l))
	for i, s := range l {
		switch s.Kind {
		case model.SegmentLine:
			out[i] = sketch.Line(s.From, s.To)
		case model.SegmentArc:
			out[i] = sketch.Arc(s.Center, s.Radius, s.Start, s.End)
		case model.SegmentCircle:
			out[i] = sketch.Circle(s.Center, s.Radius)
		default:
			return nil, kerrors.Newf(kerrors.InvalidProfile, "unknown segment kind %v", s.Kind).With("segment", i)
		}
	}
	return out, nil
}

var _ kernel.Kernel = (*Kernel)(nil)
