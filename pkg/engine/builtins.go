package engine

import (
	"fmt"
	"math"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/kerf/pkg/geom"
	"github.com/chazu/kerf/pkg/model"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource rewrites model source before passing it to zygomys:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     so keywords need not be registered as globals, which would clash
//     with user variables of the same name.
//
//  2. Kebab-case to underscore: fillet-radius -> fillet_radius
//     zygomys reads a hyphen inside an identifier as subtraction.
//
//  3. ; line comments become // comments.
//
// String literals and comments are copied through unchanged.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		switch {
		case b[i] == '"':
			j := skipQuoted(b, i, '"', true)
			result = append(result, b[i:j]...)
			i = j
		case b[i] == '`':
			j := skipQuoted(b, i, '`', false)
			result = append(result, b[i:j]...)
			i = j
		case b[i] == ';':
			result = append(result, '/', '/')
			i++
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
		case b[i] == ':' && i+1 < len(b) && b[i+1] == '=':
			// := is the assignment operator.
			result = append(result, ':', '=')
			i += 2
		case b[i] == ':' && i+1 < len(b) && isLetter(b[i+1]):
			j := i + 1
			for j < len(b) && isKWChar(b[j]) {
				j++
			}
			result = append(result, '"')
			result = append(result, kwPrefix...)
			result = append(result, b[i+1:j]...)
			result = append(result, '"')
			i = j
		case b[i] == '-' && i > 0 && i+1 < len(b) && isIdentChar(b[i-1]) && isLetter(b[i+1]):
			// A hyphen between identifier characters, not a minus.
			result = append(result, '_')
			i++
		default:
			result = append(result, b[i])
			i++
		}
	}
	return string(result)
}

// skipQuoted returns the index just past the literal opened at b[i].
func skipQuoted(b []byte, i int, quote byte, escapes bool) int {
	i++
	for i < len(b) && b[i] != quote {
		if escapes && b[i] == '\\' && i+1 < len(b) {
			i++
		}
		i++
	}
	if i < len(b) {
		i++
	}
	return i
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpVec2 wraps a geom.Vec2.
type sexpVec2 struct {
	vec geom.Vec2
}

func (v *sexpVec2) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec2 %g %g)", v.vec.X, v.vec.Y)
}
func (v *sexpVec2) Type() *zygo.RegisteredType { return nil }

// sexpVec3 wraps a geom.Vec3.
type sexpVec3 struct {
	vec geom.Vec3
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// sexpSegment wraps one loop segment, produced by line and arc.
type sexpSegment struct {
	seg model.Segment
}

func (s *sexpSegment) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(%s)", s.seg.Kind)
}
func (s *sexpSegment) Type() *zygo.RegisteredType { return nil }

// sexpLoop wraps a closed loop, produced by rect, circle, polygon and chain.
type sexpLoop struct {
	loop model.Loop
}

func (l *sexpLoop) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(chain %d segments)", len(l.loop))
}
func (l *sexpLoop) Type() *zygo.RegisteredType { return nil }

// sexpPlane wraps a sketch plane.
type sexpPlane struct {
	plane model.Plane
}

func (p *sexpPlane) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(plane :origin (vec3 %g %g %g))", p.plane.Origin.X, p.plane.Origin.Y, p.plane.Origin.Z)
}
func (p *sexpPlane) Type() *zygo.RegisteredType { return nil }

// sexpNodeRef wraps a model.NodeID so it can be passed between builtins.
type sexpNodeRef struct {
	id   model.NodeID
	name string // human-readable name for error messages
}

func (n *sexpNodeRef) SexpString(ps *zygo.PrintState) string {
	if n.name != "" {
		return fmt.Sprintf("(ref %q)", n.name)
	}
	return fmt.Sprintf("(noderef %s)", n.id.Short())
}
func (n *sexpNodeRef) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// Keywords are identified by the __kw_ prefix added during preprocessing.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				// Keyword at end with no value: a flag.
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// name pops a leading positional string, falling back to :name. Names are
// optional for every node builtin except group.
func (a *kwArgs) name() (string, error) {
	if len(a.positional) > 0 {
		if s, ok := a.positional[0].(*zygo.SexpStr); ok {
			a.positional = a.positional[1:]
			return s.S, nil
		}
	}
	if v, ok := a.kw["name"]; ok {
		return toString(v)
	}
	return "", nil
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toNodeRef extracts a NodeID from a sexpNodeRef.
func toNodeRef(s zygo.Sexp) (model.NodeID, error) {
	if ref, ok := s.(*sexpNodeRef); ok {
		return ref.id, nil
	}
	return model.ZeroID, fmt.Errorf("expected node reference, got %T (%s)", s, s.SexpString(nil))
}

// toVec2 extracts a Vec2 from a sexpVec2.
func toVec2(s zygo.Sexp) (geom.Vec2, error) {
	if v, ok := s.(*sexpVec2); ok {
		return v.vec, nil
	}
	return geom.Vec2{}, fmt.Errorf("expected vec2, got %T (%s)", s, s.SexpString(nil))
}

// toVec3 extracts a Vec3 from a sexpVec3.
func toVec3(s zygo.Sexp) (geom.Vec3, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return geom.Vec3{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// toLoop extracts a Loop from a sexpLoop.
func toLoop(s zygo.Sexp) (model.Loop, error) {
	if l, ok := s.(*sexpLoop); ok {
		return l.loop, nil
	}
	return nil, fmt.Errorf("expected loop, got %T (%s)", s, s.SexpString(nil))
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// kwFloat reads an optional numeric keyword.
func (a kwArgs) kwFloat(key string, def float64) (float64, error) {
	v, ok := a.kw[key]
	if !ok {
		return def, nil
	}
	return toFloat64(v)
}

// kwVec2 reads an optional vec2 keyword.
func (a kwArgs) kwVec2(key string, def geom.Vec2) (geom.Vec2, error) {
	v, ok := a.kw[key]
	if !ok {
		return def, nil
	}
	return toVec2(v)
}

// kwVec3 reads an optional vec3 keyword.
func (a kwArgs) kwVec3(key string) (*geom.Vec3, error) {
	v, ok := a.kw[key]
	if !ok {
		return nil, nil
	}
	vec, err := toVec3(v)
	if err != nil {
		return nil, err
	}
	return &vec, nil
}

// ---------------------------------------------------------------------------
// Graph builder
// ---------------------------------------------------------------------------

// builder accumulates the description while the source runs.
type builder struct {
	g      *model.Graph
	params model.Params
	order  []model.NodeID
	anon   map[model.NodeKind]int
}

func newBuilder(params model.Params) *builder {
	if params == nil {
		params = model.Params{}
	}
	return &builder{g: model.New(), params: params, anon: make(map[model.NodeKind]int)}
}

// add inserts a node. Named nodes take their ID from the name; anonymous
// ones are numbered per kind in evaluation order, so IDs are stable
// across re-evaluations of the same source.
func (b *builder) add(kind model.NodeKind, name string, children []model.NodeID, data model.NodeData) (*sexpNodeRef, error) {
	var id model.NodeID
	if name != "" {
		if b.g.Lookup(name) != nil {
			return nil, fmt.Errorf("%s: name %q is already defined", kind, name)
		}
		id = model.NewNodeID(name)
	} else {
		b.anon[kind]++
		id = model.NewNodeID(fmt.Sprintf("%s/%d", kind, b.anon[kind]))
	}
	b.g.AddNode(&model.Node{ID: id, Kind: kind, Name: name, Children: children, Data: data})
	b.order = append(b.order, id)
	return &sexpNodeRef{id: id, name: name}, nil
}

// description finishes the graph. Without an explicit group, every node
// no other node references becomes a root, in creation order.
func (b *builder) description() *model.Description {
	if len(b.g.Roots) == 0 {
		used := make(map[model.NodeID]bool)
		for _, n := range b.g.Nodes {
			for _, c := range n.Children {
				used[c] = true
			}
		}
		for _, id := range b.order {
			if !used[id] {
				b.g.AddRoot(id)
			}
		}
	}
	return &model.Description{Graph: b.g, Params: b.params}
}

// operands reads node references from the remaining positional arguments.
func operands(op string, args []zygo.Sexp, min int) ([]model.NodeID, error) {
	if len(args) < min {
		return nil, fmt.Errorf("%s requires at least %d operands, got %d", op, min, len(args))
	}
	ids := make([]model.NodeID, len(args))
	for i, a := range args {
		id, err := toNodeRef(a)
		if err != nil {
			return nil, fmt.Errorf("%s: operand %d: %w", op, i, err)
		}
		ids[i] = id
	}
	return ids, nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the model builtins into a zygomys environment.
// The builtins populate b during evaluation.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, b *builder) {

	// -----------------------------------------------------------------------
	// (vec2 1 2) (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec2", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		xs, err := floats(name, args, 2)
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpVec2{vec: geom.Vec2{X: xs[0], Y: xs[1]}}, nil
	})
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		xs, err := floats(name, args, 3)
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpVec3{vec: geom.Vec3{X: xs[0], Y: xs[1], Z: xs[2]}}, nil
	})

	// -----------------------------------------------------------------------
	// (param "width" 10)
	// -----------------------------------------------------------------------
	env.AddFunction("param", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("param requires a key and a default, got %d arguments", len(args))
		}
		key, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("param: key: %w", err)
		}
		if s, ok := args[1].(*zygo.SexpStr); ok {
			return &zygo.SexpStr{S: b.params.Get(key, s.S)}, nil
		}
		def, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("param: default: %w", err)
		}
		f, err := b.params.Float(key, def)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("param: %w", err)
		}
		return &zygo.SexpFloat{Val: f}, nil
	})

	// -----------------------------------------------------------------------
	// (line (vec2 0 0) (vec2 1 0))
	// (arc :center (vec2 0 0) :radius 1 :start 0 :end 90)    ; degrees
	// -----------------------------------------------------------------------
	env.AddFunction("line", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("line requires 2 points, got %d arguments", len(args))
		}
		from, err := toVec2(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("line: from: %w", err)
		}
		to, err := toVec2(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("line: to: %w", err)
		}
		return &sexpSegment{seg: model.Segment{Kind: model.SegmentLine, From: from, To: to}}, nil
	})
	env.AddFunction("arc", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		seg := model.Segment{Kind: model.SegmentArc}
		var err error
		if seg.Center, err = pa.kwVec2("center", geom.Vec2{}); err != nil {
			return zygo.SexpNull, fmt.Errorf("arc: center: %w", err)
		}
		if seg.Radius, err = pa.kwFloat("radius", 0); err != nil {
			return zygo.SexpNull, fmt.Errorf("arc: radius: %w", err)
		}
		start, err := pa.kwFloat("start", 0)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("arc: start: %w", err)
		}
		end, err := pa.kwFloat("end", 0)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("arc: end: %w", err)
		}
		seg.Start, seg.End = start*math.Pi/180, end*math.Pi/180
		return &sexpSegment{seg: seg}, nil
	})

	// -----------------------------------------------------------------------
	// (rect 4 2 :at (vec2 0 0))       ; centred on :at
	// (circle 1 :center (vec2 0 0))
	// (polygon (vec2 0 0) (vec2 1 0) (vec2 0 1))
	// (chain (line ...) (arc ...) ...)
	// -----------------------------------------------------------------------
	env.AddFunction("rect", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		w, err := sizeArg(pa, 0, "width")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rect: width: %w", err)
		}
		h, err := sizeArg(pa, 1, "height")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rect: height: %w", err)
		}
		at, err := pa.kwVec2("at", geom.Vec2{})
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rect: at: %w", err)
		}
		x, y := w/2, h/2
		return &sexpLoop{loop: polygon(
			geom.Vec2{X: at.X - x, Y: at.Y - y}, geom.Vec2{X: at.X + x, Y: at.Y - y},
			geom.Vec2{X: at.X + x, Y: at.Y + y}, geom.Vec2{X: at.X - x, Y: at.Y + y},
		)}, nil
	})
	env.AddFunction("circle", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		r, err := sizeArg(pa, 0, "radius")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("circle: radius: %w", err)
		}
		c, err := pa.kwVec2("center", geom.Vec2{})
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("circle: center: %w", err)
		}
		return &sexpLoop{loop: model.Loop{{Kind: model.SegmentCircle, Center: c, Radius: r}}}, nil
	})
	env.AddFunction("polygon", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 3 {
			return zygo.SexpNull, fmt.Errorf("polygon requires at least 3 points, got %d", len(args))
		}
		pts := make([]geom.Vec2, len(args))
		for i, a := range args {
			p, err := toVec2(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("polygon: point %d: %w", i, err)
			}
			pts[i] = p
		}
		return &sexpLoop{loop: polygon(pts...)}, nil
	})
	env.AddFunction("chain", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) == 0 {
			return zygo.SexpNull, fmt.Errorf("chain requires at least one segment")
		}
		l := make(model.Loop, len(args))
		for i, a := range args {
			s, ok := a.(*sexpSegment)
			if !ok {
				return zygo.SexpNull, fmt.Errorf("chain: segment %d: expected line or arc, got %T (%s)", i, a, a.SexpString(nil))
			}
			l[i] = s.seg
		}
		return &sexpLoop{loop: l}, nil
	})

	// -----------------------------------------------------------------------
	// (plane :origin (vec3 0 0 5) :u (vec3 1 0 0) :v (vec3 0 1 0))
	// -----------------------------------------------------------------------
	env.AddFunction("plane", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		pl := model.XYPlane()
		for key, dst := range map[string]*geom.Vec3{"origin": &pl.Origin, "u": &pl.U, "v": &pl.V} {
			v, err := pa.kwVec3(key)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("plane: %s: %w", key, err)
			}
			if v != nil {
				*dst = *v
			}
		}
		return &sexpPlane{plane: pl}, nil
	})

	// -----------------------------------------------------------------------
	// (sketch "base" (rect 4 2) :holes (list (circle 0.5)) :plane p)
	// -----------------------------------------------------------------------
	env.AddFunction("sketch", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		nodeName, err := pa.name()
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("sketch: name: %w", err)
		}
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("sketch requires one exterior loop, got %d", len(pa.positional))
		}
		sd := model.SketchData{Plane: model.XYPlane()}
		if sd.Exterior, err = toLoop(pa.positional[0]); err != nil {
			return zygo.SexpNull, fmt.Errorf("sketch: exterior: %w", err)
		}
		if v, ok := pa.kw["holes"]; ok {
			items, err := sexpListToSlice(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("sketch: holes: %w", err)
			}
			for i, item := range items {
				l, err := toLoop(item)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("sketch: hole %d: %w", i, err)
				}
				sd.Holes = append(sd.Holes, l)
			}
		}
		if v, ok := pa.kw["plane"]; ok {
			p, ok := v.(*sexpPlane)
			if !ok {
				return zygo.SexpNull, fmt.Errorf("sketch: plane: expected plane, got %T (%s)", v, v.SexpString(nil))
			}
			sd.Plane = p.plane
		}
		return b.add(model.NodeSketch, nodeName, nil, sd)
	})

	// -----------------------------------------------------------------------
	// (difference2d "plate" outer hole...)
	// -----------------------------------------------------------------------
	env.AddFunction("difference2d", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		nodeName, err := pa.name()
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("difference2d: name: %w", err)
		}
		ids, err := operands(name, pa.positional, 2)
		if err != nil {
			return zygo.SexpNull, err
		}
		return b.add(model.NodeDifference2D, nodeName, ids, model.Difference2DData{})
	})

	// -----------------------------------------------------------------------
	// (sweep "plate" profile (vec3 0 0 1))  or  (sweep profile :path (vec3 0 0 1))
	// -----------------------------------------------------------------------
	env.AddFunction("sweep", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		nodeName, err := pa.name()
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("sweep: name: %w", err)
		}
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("sweep requires a profile")
		}
		profile, err := toNodeRef(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("sweep: profile: %w", err)
		}
		var path *geom.Vec3
		switch {
		case len(pa.positional) == 2:
			v, err := toVec3(pa.positional[1])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("sweep: path: %w", err)
			}
			path = &v
		default:
			if path, err = pa.kwVec3("path"); err != nil {
				return zygo.SexpNull, fmt.Errorf("sweep: path: %w", err)
			}
		}
		if path == nil {
			return zygo.SexpNull, fmt.Errorf("sweep requires a path vector")
		}
		return b.add(model.NodeSweep, nodeName, []model.NodeID{profile}, model.SweepData{Path: *path})
	})

	// -----------------------------------------------------------------------
	// (union "body" a b ...) (difference a b ...) (intersection a b ...)
	// -----------------------------------------------------------------------
	for fn, kind := range map[string]model.NodeKind{
		"union":        model.NodeUnion,
		"difference":   model.NodeDifference,
		"intersection": model.NodeIntersection,
	} {
		env.AddFunction(fn, func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			pa := parseArgs(args)
			nodeName, err := pa.name()
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: name: %w", name, err)
			}
			ids, err := operands(name, pa.positional, 2)
			if err != nil {
				return zygo.SexpNull, err
			}
			return b.add(kind, nodeName, ids, model.BooleanData{})
		})
	}

	// -----------------------------------------------------------------------
	// (translate ref (vec3 1 0 0))
	// (rotate ref (vec3 0 0 90))                     ; Euler degrees
	// (transform ref :rotate (vec3 ...) :translate (vec3 ...))
	// -----------------------------------------------------------------------
	env.AddFunction("translate", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return transformBuiltin(b, name, args, func(td *model.TransformData, v geom.Vec3) { td.Translation = &v })
	})
	env.AddFunction("rotate", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return transformBuiltin(b, name, args, func(td *model.TransformData, v geom.Vec3) { td.Rotation = &v })
	})
	env.AddFunction("transform", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		nodeName, err := pa.name()
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("transform: name: %w", err)
		}
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("transform requires one shape reference")
		}
		child, err := toNodeRef(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("transform: shape: %w", err)
		}
		var td model.TransformData
		if td.Translation, err = pa.kwVec3("translate"); err != nil {
			return zygo.SexpNull, fmt.Errorf("transform: translate: %w", err)
		}
		if td.Rotation, err = pa.kwVec3("rotate"); err != nil {
			return zygo.SexpNull, fmt.Errorf("transform: rotate: %w", err)
		}
		return b.add(model.NodeTransform, nodeName, []model.NodeID{child}, td)
	})

	// -----------------------------------------------------------------------
	// (ref "base")
	// -----------------------------------------------------------------------
	env.AddFunction("ref", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("ref requires a name argument")
		}
		refName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("ref: name: %w", err)
		}
		n := b.g.Lookup(refName)
		if n == nil {
			return zygo.SexpNull, fmt.Errorf("ref: no node named %q", refName)
		}
		return &sexpNodeRef{id: n.ID, name: refName}, nil
	})

	// -----------------------------------------------------------------------
	// (group "parts" a b ...)
	// -----------------------------------------------------------------------
	env.AddFunction("group", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		groupName, err := pa.name()
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("group: name: %w", err)
		}
		if groupName == "" {
			return zygo.SexpNull, fmt.Errorf("group requires a name argument")
		}
		ids, err := operands(name, pa.positional, 1)
		if err != nil {
			return zygo.SexpNull, err
		}
		gd := model.GroupData{}
		if v, ok := pa.kw["description"]; ok {
			if gd.Description, err = toString(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("group: description: %w", err)
			}
		}
		ref, err := b.add(model.NodeGroup, groupName, ids, gd)
		if err != nil {
			return zygo.SexpNull, err
		}
		b.g.AddRoot(ref.id)
		return ref, nil
	})
}

// transformBuiltin handles (translate ref v) and (rotate ref v).
func transformBuiltin(b *builder, fn string, args []zygo.Sexp, set func(*model.TransformData, geom.Vec3)) (zygo.Sexp, error) {
	pa := parseArgs(args)
	nodeName, err := pa.name()
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("%s: name: %w", fn, err)
	}
	if len(pa.positional) != 2 {
		return zygo.SexpNull, fmt.Errorf("%s requires a shape reference and a vec3", fn)
	}
	child, err := toNodeRef(pa.positional[0])
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("%s: shape: %w", fn, err)
	}
	v, err := toVec3(pa.positional[1])
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("%s: %w", fn, err)
	}
	var td model.TransformData
	set(&td, v)
	return b.add(model.NodeTransform, nodeName, []model.NodeID{child}, td)
}

// floats reads exactly n numeric arguments.
func floats(fn string, args []zygo.Sexp, n int) ([]float64, error) {
	if len(args) != n {
		return nil, fmt.Errorf("%s requires exactly %d arguments, got %d", fn, n, len(args))
	}
	out := make([]float64, n)
	for i, a := range args {
		f, err := toFloat64(a)
		if err != nil {
			return nil, fmt.Errorf("%s: argument %d: %w", fn, i, err)
		}
		out[i] = f
	}
	return out, nil
}

// sizeArg reads a dimension given positionally at index i or by keyword.
func sizeArg(pa kwArgs, i int, key string) (float64, error) {
	if v, ok := pa.kw[key]; ok {
		return toFloat64(v)
	}
	if i < len(pa.positional) {
		return toFloat64(pa.positional[i])
	}
	return 0, fmt.Errorf("missing %s", key)
}

// polygon returns the closed loop through pts.
func polygon(pts ...geom.Vec2) model.Loop {
	l := make(model.Loop, len(pts))
	for i, p := range pts {
		l[i] = model.Segment{Kind: model.SegmentLine, From: p, To: pts[(i+1)%len(pts)]}
	}
	return l
}
