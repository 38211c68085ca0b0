package engine

import (
	"math"
	"strings"
	"testing"

	"github.com/chazu/kerf/pkg/geom"
	"github.com/chazu/kerf/pkg/model"
)

// ---------------------------------------------------------------------------
// Preprocessing tests
// ---------------------------------------------------------------------------

func TestPreprocessSource(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{"simple keyword", `(circle :radius 2)`, `(circle "__kw_radius" 2)`},
		{"multiple keywords", `(rect :width 4 :height 2)`, `(rect "__kw_width" 4 "__kw_height" 2)`},
		{"keyword in string preserved", `"thing with :keyword inside"`, `"thing with :keyword inside"`},
		{"escaped quote in string", `"a \" :b"`, `"a \" :b"`},
		{"assignment operator preserved", `(def x := 10)`, `(def x := 10)`},
		{"kebab-case identifier", `(def plate-width 10)`, `(def plate_width 10)`},
		{"hyphen in keyword preserved", `:head-dia`, `"__kw_head-dia"`},
		{"minus operator preserved", `(- 10 5)`, `(- 10 5)`},
		{"negative number preserved", `(vec3 0 0 -1)`, `(vec3 0 0 -1)`},
		{"double semicolon comment", `;; comment with :keyword`, `// comment with :keyword`},
		{"single semicolon comment", `; simple comment`, `// simple comment`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := preprocessSource(tt.input); got != tt.expect {
				t.Errorf("preprocessSource(%q) = %q, want %q", tt.input, got, tt.expect)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func evaluate(t *testing.T, src string, params model.Params) *model.Description {
	t.Helper()
	d, evalErrs, err := NewEngine().Evaluate(src, params)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}
	return d
}

func evalFails(t *testing.T, src, want string) {
	t.Helper()
	d, evalErrs, err := NewEngine().Evaluate(src, nil)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if d != nil || len(evalErrs) == 0 {
		t.Fatalf("expected eval error containing %q", want)
	}
	if !strings.Contains(evalErrs[0].Message, want) {
		t.Errorf("error = %q, want containing %q", evalErrs[0].Message, want)
	}
}

func lookup(t *testing.T, d *model.Description, name string) *model.Node {
	t.Helper()
	n := d.Graph.Lookup(name)
	if n == nil {
		t.Fatalf("no node named %q", name)
	}
	return n
}

// ---------------------------------------------------------------------------
// Sketch primitives
// ---------------------------------------------------------------------------

func TestRectIsCentred(t *testing.T) {
	d := evaluate(t, `(sketch "r" (rect 4 2 :at (vec2 1 1)))`, nil)
	sd := lookup(t, d, "r").Data.(model.SketchData)
	if len(sd.Exterior) != 4 {
		t.Fatalf("rect has %d segments, want 4", len(sd.Exterior))
	}
	want := []geom.Vec2{{X: -1, Y: 0}, {X: 3, Y: 0}, {X: 3, Y: 2}, {X: -1, Y: 2}}
	for i, s := range sd.Exterior {
		if s.Kind != model.SegmentLine || s.From != want[i] || s.To != want[(i+1)%4] {
			t.Errorf("segment %d = %+v, want line %v -> %v", i, s, want[i], want[(i+1)%4])
		}
	}
}

func TestKeywordDimensions(t *testing.T) {
	d := evaluate(t, `(sketch "r" (rect :width 6 :height 3))
(sketch "c" (circle :radius 2 :center (vec2 5 0)))`, nil)
	r := lookup(t, d, "r").Data.(model.SketchData)
	if b := r.Exterior[2].From; b.X != 3 || b.Y != 1.5 {
		t.Errorf("rect corner = %v, want (3, 1.5)", b)
	}
	c := lookup(t, d, "c").Data.(model.SketchData)
	if len(c.Exterior) != 1 || c.Exterior[0].Kind != model.SegmentCircle {
		t.Fatalf("circle exterior = %+v", c.Exterior)
	}
	if c.Exterior[0].Radius != 2 || c.Exterior[0].Center != (geom.Vec2{X: 5}) {
		t.Errorf("circle = %+v", c.Exterior[0])
	}
}

func TestChainWithArc(t *testing.T) {
	src := `
(sketch "d"
  (chain
    (line (vec2 0 0) (vec2 2 0))
    (arc :center (vec2 0 0) :radius 2 :start 0 :end 90)
    (line (vec2 0 2) (vec2 0 0))))`
	d := evaluate(t, src, nil)
	sd := lookup(t, d, "d").Data.(model.SketchData)
	if len(sd.Exterior) != 3 {
		t.Fatalf("chain has %d segments, want 3", len(sd.Exterior))
	}
	arc := sd.Exterior[1]
	if arc.Kind != model.SegmentArc || arc.Radius != 2 {
		t.Fatalf("segment 1 = %+v, want arc of radius 2", arc)
	}
	if math.Abs(arc.End-math.Pi/2) > 1e-12 || arc.Start != 0 {
		t.Errorf("arc angles = %v..%v, want 0..pi/2", arc.Start, arc.End)
	}
}

func TestPolygonCloses(t *testing.T) {
	d := evaluate(t, `(sketch "tri" (polygon (vec2 0 0) (vec2 1 0) (vec2 0 1)))`, nil)
	sd := lookup(t, d, "tri").Data.(model.SketchData)
	if len(sd.Exterior) != 3 {
		t.Fatalf("polygon has %d segments, want 3", len(sd.Exterior))
	}
	if last := sd.Exterior[2]; last.To != sd.Exterior[0].From {
		t.Errorf("polygon does not close: %v != %v", last.To, sd.Exterior[0].From)
	}
}

func TestSketchHolesAndPlane(t *testing.T) {
	src := `
(def p (plane :origin (vec3 0 0 5)))
(sketch "s" (rect 10 10) :holes (list (circle 1) (circle 1 :center (vec2 3 3))) :plane p)`
	sd := lookup(t, evaluate(t, src, nil), "s").Data.(model.SketchData)
	if len(sd.Holes) != 2 {
		t.Fatalf("got %d holes, want 2", len(sd.Holes))
	}
	if sd.Plane.Origin != (geom.Vec3{Z: 5}) {
		t.Errorf("plane origin = %v, want (0, 0, 5)", sd.Plane.Origin)
	}
	if sd.Plane.U != geom.XAxis || sd.Plane.V != geom.YAxis {
		t.Errorf("plane axes = %v %v, want X and Y", sd.Plane.U, sd.Plane.V)
	}
}

// ---------------------------------------------------------------------------
// Graph construction
// ---------------------------------------------------------------------------

func TestPlateWithHole(t *testing.T) {
	src := `
;; a plate with a bore
(def outer (sketch "outer" (rect 40 20)))
(def bore (sketch "bore" (circle 4)))
(def profile (difference2d "profile" outer bore))
(sweep "plate" profile :path (vec3 0 0 5))
`
	d := evaluate(t, src, nil)
	g := d.Graph
	if g.NodeCount() != 4 {
		t.Fatalf("expected 4 nodes, got %d", g.NodeCount())
	}
	plate := lookup(t, d, "plate")
	if plate.Kind != model.NodeSweep {
		t.Errorf("plate kind = %s, want sweep", plate.Kind)
	}
	if sd := plate.Data.(model.SweepData); sd.Path != (geom.Vec3{Z: 5}) {
		t.Errorf("sweep path = %v", sd.Path)
	}
	profile := lookup(t, d, "profile")
	if len(plate.Children) != 1 || plate.Children[0] != profile.ID {
		t.Errorf("plate children = %v, want [profile]", plate.Children)
	}
	if len(profile.Children) != 2 || profile.Children[0] != lookup(t, d, "outer").ID {
		t.Errorf("profile children = %v", profile.Children)
	}
	if len(g.Roots) != 1 || g.Roots[0] != plate.ID {
		t.Errorf("roots = %v, want [plate]", g.Roots)
	}
	if err := model.Check(g); err != nil {
		t.Errorf("Check: %v", err)
	}
}

func TestBooleansAndTransforms(t *testing.T) {
	src := `
(def a (sweep (sketch (rect 2 2)) (vec3 0 0 2)))
(def b (translate a (vec3 1 0 0)))
(def c (rotate b (vec3 0 0 45)))
(def m (transform a :translate (vec3 0 0 1) :rotate (vec3 90 0 0)))
(union "u" a c)
(difference "d" a m)
(intersection "i" b m)
`
	d := evaluate(t, src, nil)
	for name, kind := range map[string]model.NodeKind{"u": model.NodeUnion, "d": model.NodeDifference, "i": model.NodeIntersection} {
		n := lookup(t, d, name)
		if n.Kind != kind || len(n.Children) != 2 {
			t.Errorf("%s: kind %s with %d children", name, n.Kind, len(n.Children))
		}
	}
	if len(d.Graph.Roots) != 3 {
		t.Errorf("expected the three booleans as roots, got %d", len(d.Graph.Roots))
	}

	m := d.Graph.Get(lookup(t, d, "d").Children[1])
	td := m.Data.(model.TransformData)
	if td.Translation == nil || *td.Translation != (geom.Vec3{Z: 1}) {
		t.Errorf("translation = %v", td.Translation)
	}
	if td.Rotation == nil || *td.Rotation != (geom.Vec3{X: 90}) {
		t.Errorf("rotation = %v", td.Rotation)
	}
}

func TestSharedOperand(t *testing.T) {
	src := `
(def s (sweep (sketch (rect 2 2)) (vec3 0 0 2)))
(union "u" s (translate s (vec3 3 0 0)))
`
	d := evaluate(t, src, nil)
	u := lookup(t, d, "u")
	moved := d.Graph.Get(u.Children[1])
	if moved.Children[0] != u.Children[0] {
		t.Error("shared operand should be one node referenced twice")
	}
	if d.Graph.NodeCount() != 4 {
		t.Errorf("expected 4 nodes, got %d", d.Graph.NodeCount())
	}
}

func TestGroupSetsRoots(t *testing.T) {
	src := `
(def a (sweep "a" (sketch (rect 2 2)) (vec3 0 0 2)))
(def b (sweep "b" (sketch (circle 1)) (vec3 0 0 3)))
(def unused (sketch "unused" (rect 1 1)))
(group "parts" a b :description "two parts")
`
	d := evaluate(t, src, nil)
	grp := lookup(t, d, "parts")
	if len(d.Graph.Roots) != 1 || d.Graph.Roots[0] != grp.ID {
		t.Fatalf("roots = %v, want only the group", d.Graph.Roots)
	}
	if gd := grp.Data.(model.GroupData); gd.Description != "two parts" {
		t.Errorf("description = %q", gd.Description)
	}
	v := model.ValidateAll(d.Graph)
	if len(v.Warnings) == 0 {
		t.Error("expected an orphan warning for the unused sketch")
	}
}

func TestRefByName(t *testing.T) {
	d := evaluate(t, `
(sketch "base" (rect 3 3))
(sweep "block" (ref "base") (vec3 0 0 1))`, nil)
	block := lookup(t, d, "block")
	if block.Children[0] != lookup(t, d, "base").ID {
		t.Error("ref should resolve to the named node")
	}
}

func TestParams(t *testing.T) {
	src := `(sweep "b" (sketch (rect (param "w" 10) 2)) (vec3 0 0 (param "h" 1)))`

	d := evaluate(t, src, nil)
	if p := lookup(t, d, "b").Data.(model.SweepData).Path; p.Z != 1 {
		t.Errorf("default height = %v, want 1", p.Z)
	}

	d = evaluate(t, src, model.Params{"w": "20", "h": "7.5"})
	if p := lookup(t, d, "b").Data.(model.SweepData).Path; p.Z != 7.5 {
		t.Errorf("height = %v, want 7.5", p.Z)
	}
	if d.Params["w"] != "20" {
		t.Errorf("description params = %v", d.Params)
	}
}

func TestStableAnonymousIDs(t *testing.T) {
	src := `(union (sweep (sketch (rect 1 1)) (vec3 0 0 1)) (sweep (sketch (circle 2)) (vec3 0 0 1)))`
	a := evaluate(t, src, nil)
	b := evaluate(t, src, nil)
	for id := range a.Graph.Nodes {
		if b.Graph.Get(id) == nil {
			t.Errorf("node %s missing from second evaluation", id.Short())
		}
	}
}

func TestBuiltinErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"duplicate name", `(sketch "a" (rect 1 1)) (sketch "a" (rect 2 2))`, "already defined"},
		{"unknown ref", `(ref "missing")`, "no node named"},
		{"sweep without path", `(sweep (sketch (rect 1 1)))`, "path"},
		{"union of one", `(union (sweep (sketch (rect 1 1)) (vec3 0 0 1)))`, "at least 2"},
		{"sketch without loop", `(sketch "x")`, "exterior"},
		{"group without name", `(group (sketch (rect 1 1)))`, "name"},
		{"bad vec3", `(vec3 1 2)`, "exactly 3"},
		{"chain of points", `(chain (vec2 0 0))`, "expected line or arc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evalFails(t, tt.src, tt.want)
		})
	}

	// A malformed parameter value surfaces as an evaluation error.
	d, evalErrs, err := NewEngine().Evaluate(`(param "w" 1)`, model.Params{"w": "wide"})
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if d != nil || len(evalErrs) == 0 {
		t.Error("expected an eval error for a non-numeric parameter")
	}
}
