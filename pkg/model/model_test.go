package model

import (
	"math"
	"strings"
	"testing"

	"github.com/chazu/kerf/pkg/geom"
	"github.com/chazu/kerf/pkg/kerrors"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

func rect(w, h float64) Loop {
	x, y := w/2, h/2
	pts := []geom.Vec2{{X: -x, Y: -y}, {X: x, Y: -y}, {X: x, Y: y}, {X: -x, Y: y}}
	l := make(Loop, len(pts))
	for i := range pts {
		l[i] = Segment{Kind: SegmentLine, From: pts[i], To: pts[(i+1)%len(pts)]}
	}
	return l
}

func circle(r float64) Loop {
	return Loop{{Kind: SegmentCircle, Radius: r}}
}

// buildPlate creates a valid graph: a 4x2 plate with a hole, swept 1 up,
// under a group root.
func buildPlate() *Graph {
	g := New()

	outerID := NewNodeID("sketch/outer")
	holeID := NewNodeID("sketch/hole")
	diffID := NewNodeID("difference2d/plate")
	sweepID := NewNodeID("sweep/plate")
	groupID := NewNodeID("group/root")

	g.AddNode(&Node{ID: outerID, Kind: NodeSketch, Name: "outer", Data: SketchData{Exterior: rect(4, 2)}})
	g.AddNode(&Node{ID: holeID, Kind: NodeSketch, Name: "hole", Data: SketchData{Exterior: circle(0.5)}})
	g.AddNode(&Node{ID: diffID, Kind: NodeDifference2D, Children: []NodeID{outerID, holeID}, Data: Difference2DData{}})
	g.AddNode(&Node{ID: sweepID, Kind: NodeSweep, Name: "plate", Children: []NodeID{diffID}, Data: SweepData{Path: geom.Vec3{Z: 1}}})
	g.AddNode(&Node{ID: groupID, Kind: NodeGroup, Name: "root", Children: []NodeID{sweepID}, Data: GroupData{}})
	g.AddRoot(groupID)
	return g
}

// hasError returns true if errs contains at least one error-severity finding
// whose message contains substr.
func hasError(errs []ValidationError, substr string) bool {
	for _, e := range errs {
		if e.Severity == SeverityError && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

func hasWarning(errs []ValidationError, substr string) bool {
	for _, e := range errs {
		if e.Severity == SeverityWarning && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// IDs and params
// ---------------------------------------------------------------------------

func TestNewNodeIDDeterministic(t *testing.T) {
	a, b := NewNodeID("sweep/plate"), NewNodeID("sweep/plate")
	if a != b {
		t.Errorf("NewNodeID not deterministic: %s != %s", a, b)
	}
	if a == NewNodeID("sweep/other") {
		t.Error("different paths produced the same ID")
	}
	if a.IsZero() || !ZeroID.IsZero() {
		t.Error("IsZero wrong")
	}
	if len(a.Short()) != 8 || !strings.HasPrefix(a.String(), a.Short()) {
		t.Errorf("Short() = %q for %q", a.Short(), a.String())
	}
	text, err := a.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	var c NodeID
	if err := c.UnmarshalText(text); err != nil || c != a {
		t.Errorf("UnmarshalText(%s) = %s, %v", text, c, err)
	}
}

func TestParseParams(t *testing.T) {
	p, err := ParseParams([]string{"width=10", " depth = 2.5", "name=a=b", "width=12"})
	if err != nil {
		t.Fatalf("ParseParams: %v", err)
	}
	if p["width"] != "12" || p["name"] != "a=b" {
		t.Errorf("params = %v", p)
	}
	if f, err := p.Float("depth", 0); err != nil || f != 2.5 {
		t.Errorf("Float(depth) = %v, %v", f, err)
	}
	if f, err := p.Float("missing", 7); err != nil || f != 7 {
		t.Errorf("Float(missing) = %v, %v", f, err)
	}
	if _, err := p.Float("name", 0); !kerrors.Is(err, kerrors.InvalidDescription) {
		t.Errorf("Float(name) error = %v, want INVALID_DESCRIPTION", err)
	}
	if got := p.Get("missing", "x"); got != "x" {
		t.Errorf("Get(missing) = %q", got)
	}

	for _, bad := range []string{"novalue", "=1", ""} {
		if _, err := ParseParams([]string{bad}); !kerrors.Is(err, kerrors.InvalidDescription) {
			t.Errorf("ParseParams(%q) error = %v, want INVALID_DESCRIPTION", bad, err)
		}
	}
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

func TestValidate_ValidPlate(t *testing.T) {
	g := buildPlate()
	if errs := Validate(g); len(errs) != 0 {
		t.Errorf("Validate() = %v, want none", errs)
	}
	res := ValidateAll(g)
	if len(res.Errors) != 0 || len(res.Warnings) != 0 {
		t.Errorf("ValidateAll() = %+v, want clean", res)
	}
	if err := Check(g); err != nil {
		t.Errorf("Check() = %v", err)
	}
}

func TestValidate_Cycle(t *testing.T) {
	g := New()
	a, b := NewNodeID("t/a"), NewNodeID("t/b")
	g.AddNode(&Node{ID: a, Kind: NodeTransform, Children: []NodeID{b}, Data: TransformData{}})
	g.AddNode(&Node{ID: b, Kind: NodeTransform, Children: []NodeID{a}, Data: TransformData{}})
	g.AddRoot(a)
	if !hasError(Validate(g), "cycle detected") {
		t.Error("cycle not reported")
	}
}

func TestValidate_Structure(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(g *Graph)
		want   string
	}{
		{"dangling child", func(g *Graph) {
			n := g.MustLookup("plate")
			n.Children = []NodeID{NewNodeID("missing")}
		}, "does not exist"},
		{"dangling root", func(g *Graph) {
			g.AddRoot(NewNodeID("missing-root"))
		}, "root reference"},
		{"duplicate name", func(g *Graph) {
			id := NewNodeID("sketch/dup")
			g.AddNode(&Node{ID: id, Kind: NodeSketch, Name: "hole", Data: SketchData{Exterior: circle(1)}})
			g.AddRoot(id)
		}, "duplicate name"},
		{"sweep arity", func(g *Graph) {
			n := g.MustLookup("plate")
			n.Children = append(n.Children, g.MustLookup("outer").ID)
		}, "want 1"},
		{"wrong data", func(g *Graph) {
			g.MustLookup("plate").Data = GroupData{}
		}, "carries"},
		{"boolean arity", func(g *Graph) {
			id := NewNodeID("union/one")
			g.AddNode(&Node{ID: id, Kind: NodeUnion, Children: []NodeID{g.MustLookup("plate").ID}, Data: BooleanData{}})
			g.AddRoot(id)
		}, "at least 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := buildPlate()
			tt.mutate(g)
			if errs := Validate(g); !hasError(errs, tt.want) {
				t.Errorf("Validate() = %v, want error containing %q", errs, tt.want)
			}
			if err := Check(g); !kerrors.Is(err, kerrors.InvalidDescription) {
				t.Errorf("Check() = %v, want INVALID_DESCRIPTION", err)
			}
		})
	}
}

func TestValidate_OrphanWarning(t *testing.T) {
	g := buildPlate()
	g.AddNode(&Node{ID: NewNodeID("sketch/stray"), Kind: NodeSketch, Name: "stray", Data: SketchData{Exterior: circle(1)}})
	errs := Validate(g)
	if !hasWarning(errs, "orphan") {
		t.Errorf("Validate() = %v, want orphan warning", errs)
	}
	if err := Check(g); err != nil {
		t.Errorf("Check() = %v, warnings must not block", err)
	}
}

func TestValidateAll_Geometry(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(g *Graph)
		want   string
	}{
		{"zero sweep", func(g *Graph) {
			g.MustLookup("plate").Data = SweepData{}
		}, "non-zero"},
		{"negative radius", func(g *Graph) {
			g.MustLookup("hole").Data = SketchData{Exterior: circle(-1)}
		}, "must be positive"},
		{"empty sketch", func(g *Graph) {
			g.MustLookup("outer").Data = SketchData{}
		}, "no exterior"},
		{"nan coordinate", func(g *Graph) {
			l := rect(1, 1)
			l[0].From.X = math.NaN()
			g.MustLookup("outer").Data = SketchData{Exterior: l}
		}, "non-finite"},
		{"sweep of solid", func(g *Graph) {
			id := NewNodeID("sweep/twice")
			g.AddNode(&Node{ID: id, Kind: NodeSweep, Children: []NodeID{g.MustLookup("plate").ID}, Data: SweepData{Path: geom.Vec3{X: 1}}})
			g.AddRoot(id)
		}, "operand 0 is solid"},
		{"union of profiles", func(g *Graph) {
			id := NewNodeID("union/flat")
			g.AddNode(&Node{ID: id, Kind: NodeUnion, Children: []NodeID{g.MustLookup("outer").ID, g.MustLookup("hole").ID}, Data: BooleanData{}})
			g.AddRoot(id)
		}, "want a solid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := buildPlate()
			tt.mutate(g)
			res := ValidateAll(g)
			if !hasError(res.Errors, tt.want) {
				t.Errorf("ValidateAll() errors = %v, want one containing %q", res.Errors, tt.want)
			}
		})
	}
}

func TestValidateAll_ProfileRootWarning(t *testing.T) {
	g := New()
	id := NewNodeID("sketch/flat")
	g.AddNode(&Node{ID: id, Kind: NodeSketch, Data: SketchData{Exterior: rect(1, 1)}})
	g.AddRoot(id)
	res := ValidateAll(g)
	if len(res.Errors) != 0 || len(res.Warnings) != 1 {
		t.Errorf("ValidateAll() = %+v, want one warning", res)
	}
}

// ---------------------------------------------------------------------------
// Bounds and dimensions
// ---------------------------------------------------------------------------

func TestBounds(t *testing.T) {
	g := buildPlate()
	near := func(a, b geom.Vec3) bool { return a.Dist(b) < 1e-9 }

	b := g.Bounds(g.MustLookup("plate").ID)
	if !near(b.Min, geom.Vec3{X: -2, Y: -1}) || !near(b.Max, geom.Vec3{X: 2, Y: 1, Z: 1}) {
		t.Errorf("sweep bounds = %v..%v", b.Min, b.Max)
	}

	// A moved copy and the union of both.
	tr := geom.Vec3{X: 10}
	moveID := NewNodeID("transform/move")
	g.AddNode(&Node{ID: moveID, Kind: NodeTransform, Children: []NodeID{g.MustLookup("plate").ID}, Data: TransformData{Translation: &tr}})
	unionID := NewNodeID("union/both")
	g.AddNode(&Node{ID: unionID, Kind: NodeUnion, Children: []NodeID{g.MustLookup("plate").ID, moveID}, Data: BooleanData{}})
	interID := NewNodeID("intersection/none")
	g.AddNode(&Node{ID: interID, Kind: NodeIntersection, Children: []NodeID{g.MustLookup("plate").ID, moveID}, Data: BooleanData{}})

	b = g.Bounds(unionID)
	if !near(b.Min, geom.Vec3{X: -2, Y: -1}) || !near(b.Max, geom.Vec3{X: 12, Y: 1, Z: 1}) {
		t.Errorf("union bounds = %v..%v", b.Min, b.Max)
	}
	if b := g.Bounds(interID); !b.Empty() {
		t.Errorf("disjoint intersection bounds = %v..%v, want empty", b.Min, b.Max)
	}
	if d := g.Dim(moveID); d != 3 {
		t.Errorf("Dim(transform of sweep) = %d, want 3", d)
	}
	if d := g.Dim(g.MustLookup("outer").ID); d != 2 {
		t.Errorf("Dim(sketch) = %d, want 2", d)
	}
	if d := g.Dim(g.MustLookup("root").ID); d != 0 {
		t.Errorf("Dim(group) = %d, want 0", d)
	}
}

func TestSketchBoundsOnPlane(t *testing.T) {
	sd := SketchData{
		Exterior: rect(2, 2),
		Plane:    Plane{Origin: geom.Vec3{Z: 5}, U: geom.YAxis, V: geom.ZAxis},
	}
	b := sketchBounds(sd)
	if b.Min.Dist(geom.Vec3{Y: -1, Z: 4}) > 1e-9 || b.Max.Dist(geom.Vec3{Y: 1, Z: 6}) > 1e-9 {
		t.Errorf("bounds = %v..%v", b.Min, b.Max)
	}
	if n := sd.Plane.Normal(); n.Dist(geom.XAxis) > 1e-9 {
		t.Errorf("Normal() = %v, want +X", n)
	}
}
