// Package sdfx implements the kernel.Kernel interface using the
// github.com/deadsy/sdfx SDF-based CAD library. Meshes are approximate
// (marching cubes), so this backend serves as a cross-check for the exact
// brep kernel rather than a replacement for it.
package sdfx

import (
	"math"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"

	"github.com/chazu/kerf/pkg/geom"
	"github.com/chazu/kerf/pkg/kerrors"
	"github.com/chazu/kerf/pkg/kernel"
	"github.com/chazu/kerf/pkg/model"
	"github.com/chazu/kerf/pkg/sketch"
)

// Name identifies the backend.
const Name = "sdfx"

// Compile-time interface check.
var _ kernel.Kernel = (*SdfxKernel)(nil)

const (
	// maxMeshCells caps the marching cubes resolution along the longest
	// axis.
	maxMeshCells = 200
	minMeshCells = 8
)

// sdfxProfile is a 2D SDF in the coordinates of a sketch plane.
type sdfxProfile struct {
	s     sdf.SDF2
	plane model.Plane
}

func (p *sdfxProfile) Dim() int { return 2 }

func (p *sdfxProfile) Bounds() geom.AABB {
	bb := p.s.BoundingBox()
	return geom.AABBFromPoints(
		p.plane.Point(geom.Vec2{X: bb.Min.X, Y: bb.Min.Y}),
		p.plane.Point(geom.Vec2{X: bb.Max.X, Y: bb.Min.Y}),
		p.plane.Point(geom.Vec2{X: bb.Max.X, Y: bb.Max.Y}),
		p.plane.Point(geom.Vec2{X: bb.Min.X, Y: bb.Max.Y}),
	)
}

// sdfxSolid wraps an sdf.SDF3 to implement kernel.Shape.
type sdfxSolid struct {
	s sdf.SDF3
}

func (s *sdfxSolid) Dim() int { return 3 }

// Bounds returns the axis-aligned bounding box.
func (s *sdfxSolid) Bounds() geom.AABB {
	bb := s.s.BoundingBox()
	return geom.NewAABB(geom.FromSdfx(bb.Min), geom.FromSdfx(bb.Max))
}

// SdfxKernel implements kernel.Kernel using sdfx.
type SdfxKernel struct {
	cfg kernel.Config
}

// New returns a new SdfxKernel.
func New(cfg kernel.Config) (*SdfxKernel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &SdfxKernel{cfg: cfg}, nil
}

// Factory adapts New to kernel.Factory.
func Factory(cfg kernel.Config) (kernel.Kernel, error) {
	k, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return k, nil
}

func (k *SdfxKernel) Name() string { return Name }

// Sketch converts the sketch loops into a 2D SDF. Lone circles map to
// sdf.Circle2D; every other loop is approximated by a polygon.
func (k *SdfxKernel) Sketch(d model.SketchData) (kernel.Shape, error) {
	plane := d.Plane.OrDefault()
	if plane.U.Cross(plane.V).Length() < 1e-12 {
		return nil, kerrors.New(kerrors.InvalidProfile, "sketch plane axes %v and %v are degenerate", plane.U, plane.V)
	}
	s, err := k.loop(d.Exterior)
	if err != nil {
		return nil, kerrors.Wrap(err, kerrors.InvalidProfile, "exterior")
	}
	for i, h := range d.Holes {
		hs, err := k.loop(h)
		if err != nil {
			return nil, kerrors.Wrap(err, kerrors.InvalidProfile, "hole %d", i)
		}
		s = sdf.Difference2D(s, hs)
	}
	return &sdfxProfile{s: s, plane: plane}, nil
}

func (k *SdfxKernel) loop(l model.Loop) (sdf.SDF2, error) {
	if len(l) == 1 && l[0].Kind == model.SegmentCircle {
		c, err := sdf.Circle2D(l[0].Radius)
		if err != nil {
			return nil, err
		}
		return sdf.Transform2D(c, sdf.Translate2d(v2.Vec{X: l[0].Center.X, Y: l[0].Center.Y})), nil
	}
	sl := make(sketch.Loop, len(l))
	for i, s := range l {
		sl[i] = sketch.Segment{
			Kind: sketch.SegmentKind(s.Kind), From: s.From, To: s.To,
			Center: s.Center, Radius: s.Radius, Start: s.Start, End: s.End,
		}
	}
	if err := sl.Check(k.cfg.Tolerance); err != nil {
		return nil, err
	}
	pts, err := sl.Approximate(k.facetTolerance(sl))
	if err != nil {
		return nil, err
	}
	vs := make([]v2.Vec, len(pts))
	for i, p := range pts {
		vs[i] = v2.Vec{X: p.X, Y: p.Y}
	}
	return sdf.Polygon2D(vs)
}

// facetTolerance is the chord deviation for polygonising curved loops.
func (k *SdfxKernel) facetTolerance(l sketch.Loop) geom.Tolerance {
	if k.cfg.FacetTolerance > 0 {
		return k.cfg.FacetTolerance
	}
	b := sketch.NewProfile(l).Bounds()
	return geom.Tolerance(math.Max(b.Max.Sub(b.Min).Length()*1e-3, 10*k.cfg.Tolerance.Float()))
}

// Difference2D cuts b out of a. Both must lie on the same plane.
func (k *SdfxKernel) Difference2D(a, b kernel.Shape) (kernel.Shape, error) {
	pa, ok := a.(*sdfxProfile)
	pb, okb := b.(*sdfxProfile)
	if !ok || !okb {
		return nil, kerrors.New(kerrors.InvalidProfile, "difference2d operands must be profiles")
	}
	if pa.plane != pb.plane {
		return nil, kerrors.New(kerrors.InvalidProfile, "difference2d operands lie on different planes")
	}
	return &sdfxProfile{s: sdf.Difference2D(pa.s, pb.s), plane: pa.plane}, nil
}

// Sweep extrudes a profile. sdf.Extrude3D only extrudes along the plane
// normal, so oblique paths fail with InvalidSweep.
func (k *SdfxKernel) Sweep(s kernel.Shape, path geom.Vec3) (kernel.Shape, error) {
	p, ok := s.(*sdfxProfile)
	if !ok {
		return nil, kerrors.New(kerrors.InvalidProfile, "expected a profile, got a %dD shape", s.Dim())
	}
	tol := k.cfg.Tolerance.Float()
	n := p.plane.Normal()
	h := path.Dot(n)
	if math.Abs(h) <= tol {
		return nil, kerrors.New(kerrors.InvalidSweep, "sweep direction %v lies in the profile plane", path)
	}
	if path.Sub(n.Scale(h)).Length() > tol {
		return nil, kerrors.New(kerrors.InvalidSweep, "sdfx sweeps only along the profile normal, got %v", path)
	}
	// Extrude3D is centred on z = 0.
	local := sdf.Transform3D(sdf.Extrude3D(p.s, math.Abs(h)), sdf.Translate3d(geom.Vec3{Z: h / 2}.ToSdfx()))
	place := geom.FrameTransform(p.plane.Origin, p.plane.U, n)
	return &sdfxSolid{s: sdf.Transform3D(local, place.Matrix())}, nil
}

// Union returns the union of two solids.
func (k *SdfxKernel) Union(a, b kernel.Shape) (kernel.Shape, error) {
	sa, sb, err := solids("union", a, b)
	if err != nil {
		return nil, err
	}
	return &sdfxSolid{s: sdf.Union3D(sa, sb)}, nil
}

// Difference returns the difference a - b.
func (k *SdfxKernel) Difference(a, b kernel.Shape) (kernel.Shape, error) {
	sa, sb, err := solids("difference", a, b)
	if err != nil {
		return nil, err
	}
	return &sdfxSolid{s: sdf.Difference3D(sa, sb)}, nil
}

// Intersection returns the intersection of two solids.
func (k *SdfxKernel) Intersection(a, b kernel.Shape) (kernel.Shape, error) {
	sa, sb, err := solids("intersection", a, b)
	if err != nil {
		return nil, err
	}
	return &sdfxSolid{s: sdf.Intersect3D(sa, sb)}, nil
}

func solids(op string, a, b kernel.Shape) (sdf.SDF3, sdf.SDF3, error) {
	sa, ok := a.(*sdfxSolid)
	sb, okb := b.(*sdfxSolid)
	if !ok || !okb {
		return nil, nil, kerrors.New(kerrors.InvalidDescription, "%s operands must be solids", op)
	}
	return sa.s, sb.s, nil
}

// Transform applies tf to a solid, or moves a profile's plane.
func (k *SdfxKernel) Transform(s kernel.Shape, tf geom.Transform) (kernel.Shape, error) {
	switch sh := s.(type) {
	case *sdfxSolid:
		return &sdfxSolid{s: sdf.Transform3D(sh.s, tf.Matrix())}, nil
	case *sdfxProfile:
		pl := sh.plane
		return &sdfxProfile{s: sh.s, plane: model.Plane{
			Origin: tf.Point(pl.Origin),
			U:      tf.Vector(pl.U),
			V:      tf.Vector(pl.V),
		}}, nil
	default:
		return nil, kerrors.New(kerrors.InvalidDescription, "shape %T does not belong to the sdfx kernel", s)
	}
}

// ToMesh converts a solid to a triangle mesh using marching cubes. The
// cell size follows tol up to maxMeshCells along the longest axis.
func (k *SdfxKernel) ToMesh(s kernel.Shape, tol geom.Tolerance) (*kernel.Mesh, error) {
	if err := tol.Validate(); err != nil {
		return nil, err
	}
	so, ok := s.(*sdfxSolid)
	if !ok {
		return nil, kerrors.New(kerrors.InvalidProfile, "sdfx meshes solids only, got a %dD shape", s.Dim())
	}
	sdf3 := so.s

	size := sdf3.BoundingBox().Size()
	extent := math.Max(size.X, math.Max(size.Y, size.Z))
	cells := int(math.Ceil(extent / tol.Float()))
	cells = max(minMeshCells, min(cells, maxMeshCells))

	renderer := render.NewMarchingCubesUniform(cells)
	triangles := render.ToTriangles(sdf3, renderer)
	if len(triangles) == 0 {
		return nil, kerrors.New(kerrors.EmptyResult, "sdfx solid has no surface")
	}

	numVerts := len(triangles) * 3
	vertices := make([]float32, 0, numVerts*3)
	normals := make([]float32, 0, numVerts*3)
	indices := make([]uint32, 0, numVerts)

	for i, tri := range triangles {
		// Face normal.
		n := tri.Normal()
		nx := float32(n.X)
		ny := float32(n.Y)
		nz := float32(n.Z)

		for j := 0; j < 3; j++ {
			v := tri[j]
			vertices = append(vertices, float32(v.X), float32(v.Y), float32(v.Z))
			normals = append(normals, nx, ny, nz)
			indices = append(indices, uint32(i*3+j))
		}
	}

	kernel.Logger().Debug("sdfx: mesh done", "cells", cells, "triangles", len(triangles))
	return &kernel.Mesh{
		Vertices: vertices,
		Normals:  normals,
		Indices:  indices,
	}, nil
}
