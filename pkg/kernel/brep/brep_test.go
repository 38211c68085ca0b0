package brep_test

import (
	"math"
	"testing"

	"github.com/chazu/kerf/pkg/geom"
	"github.com/chazu/kerf/pkg/kerrors"
	"github.com/chazu/kerf/pkg/kernel"
	"github.com/chazu/kerf/pkg/kernel/brep"
	"github.com/chazu/kerf/pkg/model"
)

func v(x, y float64) geom.Vec2 { return geom.Vec2{X: x, Y: y} }

func rectLoop(x0, y0, x1, y1 float64) model.Loop {
	pts := []geom.Vec2{v(x0, y0), v(x1, y0), v(x1, y1), v(x0, y1)}
	var l model.Loop
	for i, p := range pts {
		l = append(l, model.Segment{Kind: model.SegmentLine, From: p, To: pts[(i+1)%len(pts)]})
	}
	return l
}

func circleLoop(c geom.Vec2, r float64) model.Loop {
	return model.Loop{{Kind: model.SegmentCircle, Center: c, Radius: r}}
}

func newKernel(t *testing.T) *brep.Kernel {
	t.Helper()
	k, err := brep.New(kernel.DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return k
}

func box(t *testing.T, k kernel.Kernel, min, max geom.Vec3) kernel.Shape {
	t.Helper()
	p, err := k.Sketch(model.SketchData{
		Exterior: rectLoop(min.X, min.Y, max.X, max.Y),
		Plane:    model.Plane{Origin: geom.Vec3{Z: min.Z}},
	})
	if err != nil {
		t.Fatalf("Sketch: %v", err)
	}
	s, err := k.Sweep(p, geom.Vec3{Z: max.Z - min.Z})
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	return s
}

// volume integrates the signed volume enclosed by a closed mesh.
func volume(m *kernel.Mesh) float64 {
	var vol float64
	for _, tri := range m.Triangles() {
		var p [3]geom.Vec3
		for k := range p {
			p[k] = geom.Vec3{X: float64(tri.Points[k][0]), Y: float64(tri.Points[k][1]), Z: float64(tri.Points[k][2])}
		}
		vol += p[0].Dot(p[1].Cross(p[2])) / 6
	}
	return vol
}

func near(a, b geom.Vec3) bool { return a.Dist(b) <= 1e-6 }

func TestSweepBox(t *testing.T) {
	k := newKernel(t)
	s := box(t, k, geom.Vec3{}, geom.Vec3{X: 2, Y: 3, Z: 4})
	if s.Dim() != 3 {
		t.Errorf("Dim() = %d, want 3", s.Dim())
	}
	b := s.Bounds()
	if !near(b.Min, geom.Vec3{}) || !near(b.Max, geom.Vec3{X: 2, Y: 3, Z: 4}) {
		t.Errorf("bounds = %v..%v", b.Min, b.Max)
	}
	m, err := k.ToMesh(s, 0.01)
	if err != nil {
		t.Fatalf("ToMesh: %v", err)
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got := m.TriangleCount(); got != 12 {
		t.Errorf("TriangleCount() = %d, want 12", got)
	}
	if vol := volume(m); math.Abs(vol-24) > 1e-3 {
		t.Errorf("volume = %g, want 24", vol)
	}
	if _, ok := brep.SolidID(s); !ok {
		t.Error("SolidID() found no solid behind the shape")
	}
}

func TestBooleans(t *testing.T) {
	tests := []struct {
		name string
		op   func(k kernel.Kernel, a, b kernel.Shape) (kernel.Shape, error)
		vol  float64
	}{
		{"union", kernel.Kernel.Union, 15},
		{"difference", kernel.Kernel.Difference, 7},
		{"intersection", kernel.Kernel.Intersection, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := newKernel(t)
			a := box(t, k, geom.Vec3{}, geom.Vec3{X: 2, Y: 2, Z: 2})
			b := box(t, k, geom.Vec3{X: 1, Y: 1, Z: 1}, geom.Vec3{X: 3, Y: 3, Z: 3})
			s, err := tt.op(k, a, b)
			if err != nil {
				t.Fatalf("%s: %v", tt.name, err)
			}
			m, err := k.ToMesh(s, 0.01)
			if err != nil {
				t.Fatalf("ToMesh: %v", err)
			}
			if vol := volume(m); math.Abs(vol-tt.vol) > 1e-3 {
				t.Errorf("volume = %g, want %g", vol, tt.vol)
			}
		})
	}
}

func TestPlateWithHole(t *testing.T) {
	k := newKernel(t)
	outer, err := k.Sketch(model.SketchData{Exterior: rectLoop(-2, -1, 2, 1)})
	if err != nil {
		t.Fatalf("Sketch outer: %v", err)
	}
	hole, err := k.Sketch(model.SketchData{Exterior: circleLoop(v(0, 0), 0.5)})
	if err != nil {
		t.Fatalf("Sketch hole: %v", err)
	}
	p, err := k.Difference2D(outer, hole)
	if err != nil {
		t.Fatalf("Difference2D: %v", err)
	}
	if p.Dim() != 2 {
		t.Errorf("Dim() = %d, want 2", p.Dim())
	}
	s, err := k.Sweep(p, geom.Vec3{Z: 1})
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	m, err := k.ToMesh(s, 0.001)
	if err != nil {
		t.Fatalf("ToMesh: %v", err)
	}
	exact := 8 - math.Pi*0.25
	// The inscribed hole polygon removes slightly less than the disc.
	if vol := volume(m); vol < exact-1e-3 || vol > exact+0.01 {
		t.Errorf("volume = %g, want about %g", vol, exact)
	}
}

func TestProfileMeshLeavesGraphUnchanged(t *testing.T) {
	k := newKernel(t)
	p, err := k.Sketch(model.SketchData{Exterior: circleLoop(v(1, 1), 1)})
	if err != nil {
		t.Fatalf("Sketch: %v", err)
	}
	before := k.Graph().Counts()
	m, err := k.ToMesh(p, 0.01)
	if err != nil {
		t.Fatalf("ToMesh: %v", err)
	}
	if m.TriangleCount() == 0 {
		t.Error("profile mesh is empty")
	}
	if after := k.Graph().Counts(); after != before {
		t.Errorf("graph changed: %+v -> %+v", before, after)
	}
}

func TestTransformProfile(t *testing.T) {
	k := newKernel(t)
	p, err := k.Sketch(model.SketchData{Exterior: rectLoop(0, 0, 1, 2)})
	if err != nil {
		t.Fatalf("Sketch: %v", err)
	}
	moved, err := k.Transform(p, geom.Translation(geom.Vec3{X: 5, Z: 1}))
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	b := moved.Bounds()
	if !near(b.Min, geom.Vec3{X: 5, Z: 1}) || !near(b.Max, geom.Vec3{X: 6, Y: 2, Z: 1}) {
		t.Errorf("bounds = %v..%v", b.Min, b.Max)
	}
	s, err := k.Sweep(moved, geom.Vec3{Z: 1})
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if b := s.Bounds(); !near(b.Max, geom.Vec3{X: 6, Y: 2, Z: 2}) {
		t.Errorf("swept max = %v, want (6,2,2)", b.Max)
	}
}

func TestTransformSolid(t *testing.T) {
	k := newKernel(t)
	s := box(t, k, geom.Vec3{}, geom.Vec3{X: 1, Y: 1, Z: 1})
	moved, err := k.Transform(s, geom.RotationEuler(0, 0, 90).Then(geom.Translation(geom.Vec3{Z: 2})))
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	b := moved.Bounds()
	if !near(b.Min, geom.Vec3{X: -1, Z: 2}) || !near(b.Max, geom.Vec3{Y: 1, Z: 3}) {
		t.Errorf("bounds = %v..%v, want (-1,0,2)..(0,1,3)", b.Min, b.Max)
	}
}

func TestErrors(t *testing.T) {
	k := newKernel(t)
	solid := box(t, k, geom.Vec3{}, geom.Vec3{X: 1, Y: 1, Z: 1})
	prof, err := k.Sketch(model.SketchData{Exterior: rectLoop(0, 0, 1, 1)})
	if err != nil {
		t.Fatalf("Sketch: %v", err)
	}
	tilted, err := k.Sketch(model.SketchData{
		Exterior: circleLoop(v(0.5, 0.5), 0.2),
		Plane:    model.Plane{U: geom.XAxis, V: geom.ZAxis},
	})
	if err != nil {
		t.Fatalf("Sketch tilted: %v", err)
	}

	tests := []struct {
		name string
		run  func() error
		kind kerrors.Kind
	}{
		{"open loop", func() error {
			_, err := k.Sketch(model.SketchData{Exterior: rectLoop(0, 0, 1, 1)[:3]})
			return err
		}, kerrors.InvalidProfile},
		{"degenerate plane", func() error {
			_, err := k.Sketch(model.SketchData{Exterior: rectLoop(0, 0, 1, 1), Plane: model.Plane{U: geom.XAxis, V: geom.XAxis}})
			return err
		}, kerrors.InvalidProfile},
		{"sweep a solid", func() error {
			_, err := k.Sweep(solid, geom.Vec3{Z: 1})
			return err
		}, kerrors.InvalidProfile},
		{"sweep in plane", func() error {
			_, err := k.Sweep(prof, geom.Vec3{X: 1})
			return err
		}, kerrors.InvalidSweep},
		{"union of a profile", func() error {
			_, err := k.Union(solid, prof)
			return err
		}, kerrors.InvalidDescription},
		{"difference2d across planes", func() error {
			_, err := k.Difference2D(prof, tilted)
			return err
		}, kerrors.InvalidProfile},
		{"bad tolerance", func() error {
			_, err := k.ToMesh(solid, 0)
			return err
		}, kerrors.InvalidTolerance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !kerrors.Is(err, tt.kind) {
				t.Errorf("error = %v, want %s", err, tt.kind)
			}
		})
	}
}
