package topo

import (
	"math"
	"testing"

	"github.com/chazu/kerf/pkg/geom"
	"github.com/chazu/kerf/pkg/geometry"
	"github.com/chazu/kerf/pkg/kerrors"
)

const tol = geom.Tolerance(1e-6)

// cube builds a closed unit cube [0,1]^3 shell from line edges and returns
// the graph, its solid and faces.
func cube(t *testing.T, g *Graph, origin geom.Vec3) SolidID {
	t.Helper()
	v := func(x, y, z float64) VertexID { return g.CreateVertex(origin.Add(geom.Vec3{X: x, Y: y, Z: z})) }
	c := [8]VertexID{
		v(0, 0, 0), v(1, 0, 0), v(1, 1, 0), v(0, 1, 0),
		v(0, 0, 1), v(1, 0, 1), v(1, 1, 1), v(0, 1, 1),
	}
	// Each quad is listed counter-clockwise seen from outside.
	quads := [][4]int{
		{0, 3, 2, 1}, // bottom, -Z
		{4, 5, 6, 7}, // top, +Z
		{0, 1, 5, 4}, // -Y
		{1, 2, 6, 5}, // +X
		{2, 3, 7, 6}, // +Y
		{3, 0, 4, 7}, // -X
	}
	var faces []FaceID
	for _, q := range quads {
		var hes []HalfEdge
		for i := 0; i < 4; i++ {
			h, err := g.LineEdge(c[q[i]], c[q[(i+1)%4]])
			if err != nil {
				t.Fatalf("LineEdge: %v", err)
			}
			hes = append(hes, h)
		}
		cy, err := g.CreateCycle(hes)
		if err != nil {
			t.Fatalf("CreateCycle: %v", err)
		}
		p0, p1, p3 := g.Point(c[q[0]]), g.Point(c[q[1]]), g.Point(c[q[3]])
		f, err := g.CreateFace(geometry.Plane(p0, p1.Sub(p0), p3.Sub(p0)), cy)
		if err != nil {
			t.Fatalf("CreateFace: %v", err)
		}
		faces = append(faces, f)
	}
	sh, err := g.CreateShell(faces, true)
	if err != nil {
		t.Fatalf("CreateShell: %v", err)
	}
	so, err := g.CreateSolid(sh)
	if err != nil {
		t.Fatalf("CreateSolid: %v", err)
	}
	return so
}

func TestNewRejectsBadTolerance(t *testing.T) {
	for _, bad := range []geom.Tolerance{0, -1} {
		if _, err := New(bad); !kerrors.Is(err, kerrors.InvalidTolerance) {
			t.Errorf("New(%v) error = %v, want INVALID_TOLERANCE", bad, err)
		}
	}
}

func TestCreateVertexDedup(t *testing.T) {
	g := MustNew(0.01)
	a := g.CreateVertex(geom.Vec3{X: 0, Y: 0, Z: 0})
	b := g.CreateVertex(geom.Vec3{X: 0.005, Y: 0, Z: 0})
	if a != b {
		t.Fatalf("points within tolerance got distinct vertices %v, %v", a, b)
	}
	c := g.CreateVertex(geom.Vec3{X: 0.02, Y: 0, Z: 0})
	if c == a {
		t.Fatal("points beyond tolerance merged")
	}
	if g.Point(a) != (geom.Vec3{}) {
		t.Errorf("canonical point moved to %v", g.Point(a))
	}
	if g.Merges() != 1 {
		t.Errorf("Merges() = %d, want 1", g.Merges())
	}
}

func TestCreateVertexNearestAndFirstWins(t *testing.T) {
	g := MustNew(0.01)
	a := g.CreateVertex(geom.Vec3{X: 0, Y: 0, Z: 0})
	b := g.CreateVertex(geom.Vec3{X: 0.015, Y: 0, Z: 0})

	// Within tolerance of both; nearer to b.
	if got := g.CreateVertex(geom.Vec3{X: 0.009, Y: 0, Z: 0}); got != b {
		t.Errorf("nearest: got %v, want %v", got, b)
	}
	// Equidistant: the first created wins.
	if got := g.CreateVertex(geom.Vec3{X: 0.0075, Y: 0, Z: 0}); got != a {
		t.Errorf("tie: got %v, want %v", got, a)
	}
	// No transitive closure: a and b stay distinct.
	if a == b {
		t.Error("a and b merged transitively")
	}
}

func TestCreateVertexIdempotent(t *testing.T) {
	g := MustNew(0.01)
	pts := []geom.Vec3{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0.004, Y: 0.004, Z: 0}, {X: 1, Y: 0.003, Z: 0}, {X: 0, Y: 1, Z: 0}}
	first := make([]VertexID, len(pts))
	for i, p := range pts {
		first[i] = g.CreateVertex(p)
	}
	n := g.Counts().Vertices
	// Re-running over the canonical points creates nothing new.
	for i := 0; i < n; i++ {
		if got := g.CreateVertex(g.Point(VertexID(i))); got != VertexID(i) {
			t.Errorf("re-dedup of v%d gave %v", i, got)
		}
	}
	for i, p := range pts {
		if got := g.CreateVertex(p); got != first[i] {
			t.Errorf("point %d: got %v, want %v", i, got, first[i])
		}
	}
	if g.Counts().Vertices != n {
		t.Errorf("vertex count changed from %d to %d", n, g.Counts().Vertices)
	}
}

func TestCreateEdgeChecks(t *testing.T) {
	g := MustNew(tol)
	a := g.CreateVertex(geom.Vec3{})
	b := g.CreateVertex(geom.Vec3{X: 1, Y: 0, Z: 0})
	line := geometry.LineThrough(g.Point(a), g.Point(b))
	circle := geometry.CircleInPlane(geom.Vec3{}, geom.XAxis, geom.YAxis, 1)

	tests := []struct {
		name   string
		curve  geometry.Curve
		v0, v1 VertexID
		t0, t1 float64
		ok     bool
	}{
		{"line", line, a, b, 0, 1, true},
		{"empty range", line, a, b, 1, 1, false},
		{"wrong end", line, a, a, 0, 1, false},
		{"endpoint off curve", line, b, a, 0, 1, false},
		{"full circle", circle, b, b, 0, 2 * math.Pi, true},
		{"full circle two vertices", circle, a, b, 0, 2 * math.Pi, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.CreateEdge(tt.curve, tt.v0, tt.v1, tt.t0, tt.t1)
			if (err == nil) != tt.ok {
				t.Fatalf("CreateEdge error = %v, want ok=%v", err, tt.ok)
			}
			if err != nil && !kerrors.Is(err, kerrors.InvalidTopology) {
				t.Errorf("kind = %s, want INVALID_TOPOLOGY", kerrors.KindOf(err))
			}
		})
	}
}

func TestLineEdgeShared(t *testing.T) {
	g := MustNew(tol)
	a := g.CreateVertex(geom.Vec3{})
	b := g.CreateVertex(geom.Vec3{X: 1, Y: 0, Z: 0})
	ab, err := g.LineEdge(a, b)
	if err != nil {
		t.Fatalf("LineEdge: %v", err)
	}
	ba, err := g.LineEdge(b, a)
	if err != nil {
		t.Fatalf("LineEdge: %v", err)
	}
	if ab.Edge != ba.Edge || ab.Reversed == ba.Reversed {
		t.Errorf("LineEdge(a,b)=%v LineEdge(b,a)=%v, want shared edge opposite directions", ab, ba)
	}
	if g.Start(ba) != b || g.End(ba) != a {
		t.Error("reversed half-edge endpoints wrong")
	}
}

func TestCreateCycleClosure(t *testing.T) {
	g := MustNew(tol)
	a := g.CreateVertex(geom.Vec3{})
	b := g.CreateVertex(geom.Vec3{X: 1, Y: 0, Z: 0})
	c := g.CreateVertex(geom.Vec3{X: 0, Y: 1, Z: 0})
	ab, _ := g.LineEdge(a, b)
	bc, _ := g.LineEdge(b, c)
	ca, _ := g.LineEdge(c, a)

	if _, err := g.CreateCycle([]HalfEdge{ab, bc, ca}); err != nil {
		t.Fatalf("closed triangle rejected: %v", err)
	}
	if _, err := g.CreateCycle([]HalfEdge{ab, bc}); !kerrors.Is(err, kerrors.InvalidTopology) {
		t.Errorf("open cycle: error = %v, want INVALID_TOPOLOGY", err)
	}
	if _, err := g.CreateCycle([]HalfEdge{ab, ca, bc}); err == nil {
		t.Error("misordered cycle accepted")
	}
	if _, err := g.CreateCycle(nil); err == nil {
		t.Error("empty cycle accepted")
	}
}

func TestCreateFaceOrientation(t *testing.T) {
	g := MustNew(tol)
	a := g.CreateVertex(geom.Vec3{})
	b := g.CreateVertex(geom.Vec3{X: 1, Y: 0, Z: 0})
	c := g.CreateVertex(geom.Vec3{X: 0, Y: 1, Z: 0})
	ab, _ := g.LineEdge(a, b)
	bc, _ := g.LineEdge(b, c)
	ca, _ := g.LineEdge(c, a)
	ccw, _ := g.CreateCycle([]HalfEdge{ab, bc, ca})
	cw, _ := g.CreateCycle([]HalfEdge{ca.Flip(), bc.Flip(), ab.Flip()})

	if _, err := g.CreateFace(geometry.XYPlane(), ccw); err != nil {
		t.Fatalf("CCW face rejected: %v", err)
	}
	if _, err := g.CreateFace(geometry.XYPlane(), cw); !kerrors.Is(err, kerrors.InvalidTopology) {
		t.Errorf("CW exterior: error = %v, want INVALID_TOPOLOGY", err)
	}
	lifted := geometry.Plane(geom.Vec3{X: 0, Y: 0, Z: 1}, geom.XAxis, geom.YAxis)
	if _, err := g.CreateFace(lifted, ccw); err == nil {
		t.Error("face with boundary off its surface accepted")
	}
}

func TestCreateFaceSelfIntersecting(t *testing.T) {
	g := MustNew(tol)
	// Bow tie: 0,0 -> 1,1 -> 1,0 -> 0,1.
	p := []VertexID{
		g.CreateVertex(geom.Vec3{X: 0, Y: 0, Z: 0}),
		g.CreateVertex(geom.Vec3{X: 1, Y: 1, Z: 0}),
		g.CreateVertex(geom.Vec3{X: 1, Y: 0, Z: 0}),
		g.CreateVertex(geom.Vec3{X: 0, Y: 1, Z: 0}),
	}
	var hes []HalfEdge
	for i := range p {
		h, err := g.LineEdge(p[i], p[(i+1)%len(p)])
		if err != nil {
			t.Fatalf("LineEdge: %v", err)
		}
		hes = append(hes, h)
	}
	cy, err := g.CreateCycle(hes)
	if err != nil {
		t.Fatalf("CreateCycle: %v", err)
	}
	if _, err := g.CreateFace(geometry.XYPlane(), cy); !kerrors.Is(err, kerrors.InvalidTopology) {
		t.Errorf("bow tie: error = %v, want INVALID_TOPOLOGY", err)
	}
}

func TestCubeIsManifold(t *testing.T) {
	g := MustNew(tol)
	so := cube(t, g, geom.Vec3{})
	if err := g.ValidateSolid(so); err != nil {
		t.Fatalf("ValidateSolid: %v", err)
	}
	c := g.Counts()
	if c.Vertices != 8 || c.Edges != 12 || c.Faces != 6 {
		t.Errorf("counts = %+v, want 8 vertices, 12 edges, 6 faces", c)
	}
	uses := g.EdgeUses(g.SolidFaces(so))
	for e, u := range uses {
		if len(u) != 2 {
			t.Errorf("edge %v has %d uses", e, len(u))
		}
	}
	b := g.SolidBounds(so)
	if b.Min != (geom.Vec3{}) || b.Max != (geom.Vec3{X: 1, Y: 1, Z: 1}) {
		t.Errorf("SolidBounds = %v..%v", b.Min, b.Max)
	}
	if n := len(g.FaceVertices(g.SolidFaces(so)[0])); n != 4 {
		t.Errorf("FaceVertices = %d, want 4", n)
	}
}

func TestOpenShellFailsWhenClosed(t *testing.T) {
	g := MustNew(tol)
	so := cube(t, g, geom.Vec3{})
	faces := g.SolidFaces(so)[:5]
	if _, err := g.CreateShell(faces, true); !kerrors.Is(err, kerrors.NonManifoldResult) {
		t.Fatalf("five-face closed shell: error = %v, want NON_MANIFOLD_RESULT", err)
	}
	if errs := g.Check(faces); len(errs) != 4 {
		t.Errorf("Check found %d violations, want 4 (the open rim)", len(errs))
	}
	if _, err := g.CreateShell(faces, false); err != nil {
		t.Errorf("open shell rejected: %v", err)
	}
}

func TestReverseFaceBreaksOrientation(t *testing.T) {
	g := MustNew(tol)
	so := cube(t, g, geom.Vec3{})
	faces := g.SolidFaces(so)
	rev, err := g.ReverseFace(faces[0])
	if err != nil {
		t.Fatalf("ReverseFace: %v", err)
	}
	n0 := g.Face(faces[0]).Surface.NormalAt(0, 0)
	n1 := g.Face(rev).Surface.NormalAt(0, 0)
	if n0.Dot(n1) > -0.999 {
		t.Errorf("reversed normal %v not opposite %v", n1, n0)
	}
	mixed := append([]FaceID{rev}, faces[1:]...)
	errs := g.Check(mixed)
	if len(errs) != 4 {
		t.Errorf("Check found %d violations, want 4 same-direction edges", len(errs))
	}
}

func TestTransformSolid(t *testing.T) {
	g := MustNew(tol)
	so := cube(t, g, geom.Vec3{})
	moved, err := g.TransformSolid(so, geom.Translation(geom.Vec3{X: 5, Y: 0, Z: 0}).Then(geom.Rotation(geom.ZAxis, math.Pi/2)))
	if err != nil {
		t.Fatalf("TransformSolid: %v", err)
	}
	if err := g.ValidateSolid(moved); err != nil {
		t.Fatalf("transformed solid invalid: %v", err)
	}
	b := g.SolidBounds(moved)
	if math.Abs(b.Min.Y-5) > 1e-9 || math.Abs(b.Max.Y-6) > 1e-9 {
		t.Errorf("transformed bounds = %v..%v", b.Min, b.Max)
	}
	if _, err := g.TransformSolid(so, geom.Identity()); err != nil {
		t.Errorf("identity transform: %v", err)
	}
}

func TestRollback(t *testing.T) {
	g := MustNew(tol)
	m := g.Mark()
	cube(t, g, geom.Vec3{})
	g.Rollback(m)
	if c := g.Counts(); c != (Counts{}) {
		t.Fatalf("counts after rollback = %+v", c)
	}
	// The vertex index no longer returns deleted vertices.
	if _, ok := g.FindVertex(geom.Vec3{}); ok {
		t.Error("FindVertex found a rolled back vertex")
	}
	cube(t, g, geom.Vec3{})
}

func TestComponents(t *testing.T) {
	g := MustNew(tol)
	a := cube(t, g, geom.Vec3{})
	b := cube(t, g, geom.Vec3{X: 3, Y: 0, Z: 0})
	faces := append(g.SolidFaces(a), g.SolidFaces(b)...)
	groups := g.Components(faces)
	if len(groups) != 2 || len(groups[0]) != 6 || len(groups[1]) != 6 {
		t.Fatalf("Components = %v", groups)
	}
	if groups[0][0] != faces[0] {
		t.Error("groups not ordered by lowest face")
	}
}

func TestCircleFaceAndCylinderShell(t *testing.T) {
	g := MustNew(tol)
	circle := geometry.CircleInPlane(geom.Vec3{}, geom.XAxis, geom.YAxis, 1)
	top := circle.Translate(geom.Vec3{X: 0, Y: 0, Z: 1})
	v0 := g.CreateVertex(circle.PointAt(0))
	v1 := g.CreateVertex(top.PointAt(0))
	e0, err := g.CreateEdge(circle, v0, v0, 0, 2*math.Pi)
	if err != nil {
		t.Fatalf("bottom circle: %v", err)
	}
	e1, err := g.CreateEdge(top, v1, v1, 0, 2*math.Pi)
	if err != nil {
		t.Fatalf("top circle: %v", err)
	}
	bottomCap, _ := g.CreateCycle([]HalfEdge{{Edge: e0, Reversed: true}})
	topCap, _ := g.CreateCycle([]HalfEdge{{Edge: e1}})
	sideBottom, _ := g.CreateCycle([]HalfEdge{{Edge: e0}})
	sideTop, _ := g.CreateCycle([]HalfEdge{{Edge: e1, Reversed: true}})

	fb, err := g.CreateFace(geometry.XYPlane().Reverse(), bottomCap)
	if err != nil {
		t.Fatalf("bottom cap: %v", err)
	}
	ft, err := g.CreateFace(geometry.Plane(geom.Vec3{X: 0, Y: 0, Z: 1}, geom.XAxis, geom.YAxis), topCap)
	if err != nil {
		t.Fatalf("top cap: %v", err)
	}
	fs, err := g.CreateFace(geometry.Swept(circle, geom.Vec3{X: 0, Y: 0, Z: 1}), sideBottom, sideTop)
	if err != nil {
		t.Fatalf("side: %v", err)
	}
	if _, err := g.CreateShell([]FaceID{fb, ft, fs}, true); err != nil {
		t.Fatalf("cylinder shell: %v", err)
	}
}
