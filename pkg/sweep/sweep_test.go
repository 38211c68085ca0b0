package sweep

import (
	"math"
	"testing"

	"github.com/chazu/kerf/pkg/geom"
	"github.com/chazu/kerf/pkg/geometry"
	"github.com/chazu/kerf/pkg/kerrors"
	"github.com/chazu/kerf/pkg/sketch"
	"github.com/chazu/kerf/pkg/topo"
)

const tol = geom.Tolerance(1e-6)

func v(x, y float64) geom.Vec2 { return geom.Vec2{X: x, Y: y} }

func profileFace(t *testing.T, g *topo.Graph, p sketch.Profile) topo.FaceID {
	t.Helper()
	f, err := sketch.Build(g, p, geometry.XYPlane(), sketch.Options{})
	if err != nil {
		t.Fatalf("sketch.Build: %v", err)
	}
	return f
}

func TestSweepFaceCounts(t *testing.T) {
	slot := sketch.Loop{
		sketch.Line(v(-1, -0.5), v(1, -0.5)),
		sketch.Arc(v(1, 0), 0.5, -math.Pi/2, math.Pi/2),
		sketch.Line(v(1, 0.5), v(-1, 0.5)),
		sketch.Arc(v(-1, 0), 0.5, math.Pi/2, 3*math.Pi/2),
	}
	annulus := sketch.Difference(
		sketch.NewProfile(sketch.CircleLoop(v(0, 0), 1)),
		sketch.NewProfile(sketch.CircleLoop(v(0, 0), 0.5)))
	frame := sketch.Difference(sketch.NewProfile(sketch.Rect(4, 4)), sketch.NewProfile(sketch.Rect(2, 2)))

	tests := []struct {
		name    string
		profile sketch.Profile
		dir     geom.Vec3
		faces   int
	}{
		{"box", sketch.NewProfile(sketch.Rect(2, 1)), geom.Vec3{Z: 3}, 6},
		{"triangle", sketch.NewProfile(sketch.Polygon(v(0, 0), v(1, 0), v(0, 1))), geom.Vec3{Z: 1}, 5},
		{"cylinder", sketch.NewProfile(sketch.CircleLoop(v(0, 0), 1)), geom.Vec3{Z: 2}, 3},
		{"annulus", annulus, geom.Vec3{Z: 1}, 4},
		{"slot", sketch.NewProfile(slot), geom.Vec3{Z: 1}, 6},
		{"frame", frame, geom.Vec3{Z: 1}, 10},
		{"oblique", sketch.NewProfile(sketch.Rect(1, 1)), geom.Vec3{X: 1, Y: 1, Z: 1}, 6},
		{"downwards", sketch.NewProfile(sketch.Rect(1, 1)), geom.Vec3{Z: -2}, 6},
		{"downwards annulus", annulus, geom.Vec3{Z: -1}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := topo.MustNew(tol)
			f := profileFace(t, g, tt.profile)
			edges := len(g.FaceEdges(f))
			so, err := Sweep(g, f, tt.dir)
			if err != nil {
				t.Fatalf("Sweep: %v", err)
			}
			faces := g.SolidFaces(so)
			if len(faces) != tt.faces {
				t.Errorf("faces = %d, want %d", len(faces), tt.faces)
			}
			if len(faces) != edges+2 {
				t.Errorf("faces = %d, want boundary edges (%d) + 2", len(faces), edges)
			}
			if err := g.ValidateSolid(so); err != nil {
				t.Errorf("ValidateSolid: %v", err)
			}
			if n := len(g.Solid(so).Shells); n != 1 {
				t.Errorf("shells = %d, want 1", n)
			}
		})
	}
}

func TestSweepNormalsPointOutward(t *testing.T) {
	for _, dir := range []geom.Vec3{{Z: 2}, {Z: -2}} {
		g := topo.MustNew(tol)
		f := profileFace(t, g, sketch.NewProfile(sketch.Rect(2, 2)))
		so, err := Sweep(g, f, dir)
		if err != nil {
			t.Fatalf("Sweep(%v): %v", dir, err)
		}
		center := g.SolidBounds(so).Center()
		for _, fid := range g.SolidFaces(so) {
			face := g.Face(fid)
			pts, err := g.CyclePoints(face.Exterior, tol)
			if err != nil {
				t.Fatalf("CyclePoints: %v", err)
			}
			var c geom.Vec3
			for _, p := range pts {
				c = c.Add(p)
			}
			c = c.Scale(1 / float64(len(pts)))
			u, w := face.Surface.Project(c)
			if n := face.Surface.NormalAt(u, w); n.Dot(c.Sub(center)) <= 0 {
				t.Errorf("dir %v: face %v normal %v points inward", dir, fid, n)
			}
		}
	}
}

func TestSweepCylinderOutward(t *testing.T) {
	g := topo.MustNew(tol)
	f := profileFace(t, g, sketch.NewProfile(sketch.CircleLoop(v(0, 0), 1)))
	so, err := Sweep(g, f, geom.Vec3{Z: 1})
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	for _, fid := range g.SolidFaces(so) {
		s := g.Face(fid).Surface
		if s.Kind != geometry.SurfaceSwept {
			continue
		}
		p := s.PointAt(0.3, 0.5)
		radial := geom.Vec3{X: p.X, Y: p.Y}
		if s.NormalAt(0.3, 0.5).Dot(radial) <= 0 {
			t.Error("cylinder wall normal points inward")
		}
	}
}

func TestSweepRejects(t *testing.T) {
	tests := []struct {
		name string
		dir  geom.Vec3
		kind kerrors.Kind
	}{
		{"zero", geom.Vec3{}, kerrors.InvalidSweep},
		{"below tolerance", geom.Vec3{Z: 1e-9}, kerrors.InvalidSweep},
		{"in plane", geom.Vec3{X: 1}, kerrors.InvalidSweep},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := topo.MustNew(tol)
			f := profileFace(t, g, sketch.NewProfile(sketch.Rect(1, 1)))
			before := g.Counts()
			_, err := Sweep(g, f, tt.dir)
			if !kerrors.Is(err, tt.kind) {
				t.Fatalf("Sweep error = %v, want %s", err, tt.kind)
			}
			if after := g.Counts(); after != before {
				t.Errorf("failed sweep changed graph: %+v -> %+v", before, after)
			}
		})
	}
}

func TestSweepRejectsCurvedProfile(t *testing.T) {
	g := topo.MustNew(tol)
	f := profileFace(t, g, sketch.NewProfile(sketch.CircleLoop(v(0, 0), 1)))
	so, err := Sweep(g, f, geom.Vec3{Z: 1})
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	var wall topo.FaceID = -1
	for _, fid := range g.SolidFaces(so) {
		if g.Face(fid).Surface.Kind == geometry.SurfaceSwept {
			wall = fid
		}
	}
	if _, err := Sweep(g, wall, geom.Vec3{X: 1}); !kerrors.Is(err, kerrors.InvalidProfile) {
		t.Errorf("sweeping a curved face: error = %v, want INVALID_PROFILE", err)
	}
}

func TestSweepSharesProfileEdges(t *testing.T) {
	g := topo.MustNew(tol)
	f := profileFace(t, g, sketch.NewProfile(sketch.Rect(1, 1)))
	profileEdges := g.FaceEdges(f)
	so, err := Sweep(g, f, geom.Vec3{Z: 1})
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	c := g.Counts()
	if c.Vertices != 8 || c.Edges != 12 {
		t.Errorf("counts = %+v, want 8 vertices and 12 edges", c)
	}
	uses := g.EdgeUses(g.SolidFaces(so))
	for _, e := range profileEdges {
		if len(uses[e]) != 2 {
			t.Errorf("profile edge %v used %d times in the solid", e, len(uses[e]))
		}
	}
}
