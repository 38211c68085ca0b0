package model

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/chazu/kerf/pkg/kerrors"
)

// ValidationSeverity indicates whether a validation finding blocks evaluation
// or is merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // blocks evaluation
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	NodeID   NodeID             // which node has the problem (zero if graph-level)
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if e.NodeID.IsZero() {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] node %s: %s", e.Severity, e.NodeID.Short(), e.Message)
}

// ValidationWarning describes a non-blocking advisory finding.
type ValidationWarning struct {
	NodeID  NodeID
	Message string
}

// ValidationResult bundles errors (blocking) and warnings (advisory)
// from all validation tiers.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// Validate runs the structural checks on the graph and returns the
// findings. An empty slice means the graph is well formed. Validate never
// mutates the graph.
func Validate(g *Graph) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateDAG(g)...)
	errs = append(errs, validateReferences(g)...)
	errs = append(errs, validateNames(g)...)
	errs = append(errs, validateRoots(g)...)
	errs = append(errs, validateArity(g)...)
	return errs
}

// ValidateAll runs the structural and geometric checks and separates
// errors from warnings.
func ValidateAll(g *Graph) ValidationResult {
	var result ValidationResult
	for _, e := range Validate(g) {
		if e.Severity == SeverityWarning {
			result.Warnings = append(result.Warnings, ValidationWarning{NodeID: e.NodeID, Message: e.Message})
		} else {
			result.Errors = append(result.Errors, e)
		}
	}
	if len(result.Errors) > 0 {
		// Geometric checks assume a well-formed DAG.
		return result
	}
	errs, warnings := validateGeometry(g)
	result.Errors = append(result.Errors, errs...)
	result.Warnings = append(result.Warnings, warnings...)
	return result
}

// Check returns an InvalidDescription error listing every blocking finding,
// or nil.
func Check(g *Graph) error {
	if g == nil {
		return kerrors.New(kerrors.InvalidDescription, "no graph")
	}
	res := ValidateAll(g)
	if len(res.Errors) == 0 {
		return nil
	}
	msgs := make([]string, len(res.Errors))
	for i, e := range res.Errors {
		msgs[i] = e.Error()
	}
	sort.Strings(msgs)
	return kerrors.Newf(kerrors.InvalidDescription, "%s", strings.Join(msgs, "; ")).
		With("errors", len(msgs))
}

// validateDAG checks for cycles using DFS with 3-color marking.
// White (0) = unvisited, gray (1) = in current DFS path, black (2) = fully explored.
func validateDAG(g *Graph) []ValidationError {
	const (
		white = iota
		gray
		black
	)

	color := make(map[NodeID]int)
	var errs []ValidationError

	var visit func(id NodeID) bool // returns true if cycle found
	visit = func(id NodeID) bool {
		switch color[id] {
		case black:
			return false
		case gray:
			errs = append(errs, ValidationError{
				NodeID:   id,
				Message:  fmt.Sprintf("cycle detected: node %s is part of a cycle", id.Short()),
				Severity: SeverityError,
			})
			return true
		}
		color[id] = gray
		node, ok := g.Nodes[id]
		if !ok {
			// Dangling reference; handled by validateReferences.
			color[id] = black
			return false
		}
		for _, childID := range node.Children {
			if visit(childID) {
				return true
			}
		}
		color[id] = black
		return false
	}

	for id := range g.Nodes {
		if color[id] == white && visit(id) {
			break
		}
	}
	return errs
}

// validateReferences checks that every child NodeID points to a node that
// exists.
func validateReferences(g *Graph) []ValidationError {
	var errs []ValidationError
	for _, node := range g.Nodes {
		for _, childID := range node.Children {
			if _, ok := g.Nodes[childID]; !ok {
				errs = append(errs, ValidationError{
					NodeID:   node.ID,
					Message:  fmt.Sprintf("child reference %s does not exist", childID.Short()),
					Severity: SeverityError,
				})
			}
		}
	}
	return errs
}

// validateNames checks that the NameIndex points to existing nodes and
// that no two nodes share a name.
func validateNames(g *Graph) []ValidationError {
	var errs []ValidationError
	for name, id := range g.NameIndex {
		if _, ok := g.Nodes[id]; !ok {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("name index entry %q references non-existent node %s", name, id.Short()),
				Severity: SeverityError,
			})
		}
	}
	nameToNodes := make(map[string][]NodeID)
	for id, node := range g.Nodes {
		if node.Name != "" {
			nameToNodes[node.Name] = append(nameToNodes[node.Name], id)
		}
	}
	for name, ids := range nameToNodes {
		if len(ids) > 1 {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("duplicate name %q assigned to %d nodes", name, len(ids)),
				Severity: SeverityError,
			})
		}
	}
	return errs
}

// validateRoots checks that every root exists and warns about nodes no
// root reaches.
func validateRoots(g *Graph) []ValidationError {
	var errs []ValidationError
	for _, rid := range g.Roots {
		if _, ok := g.Nodes[rid]; !ok {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("root reference %s does not exist", rid.Short()),
				Severity: SeverityError,
			})
		}
	}
	if len(g.Nodes) == 0 {
		return errs
	}

	reachable := make(map[NodeID]bool)
	queue := make([]NodeID, 0, len(g.Roots))
	for _, rid := range g.Roots {
		if _, ok := g.Nodes[rid]; ok && !reachable[rid] {
			reachable[rid] = true
			queue = append(queue, rid)
		}
	}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		node := g.Nodes[current]
		if node == nil {
			continue
		}
		for _, childID := range node.Children {
			if !reachable[childID] {
				reachable[childID] = true
				queue = append(queue, childID)
			}
		}
	}
	for id, node := range g.Nodes {
		if !reachable[id] {
			errs = append(errs, ValidationError{
				NodeID:   id,
				Message:  fmt.Sprintf("node %q is not reachable from any root (orphan)", node.Label()),
				Severity: SeverityWarning,
			})
		}
	}
	return errs
}

// validateArity checks child counts and that each node carries the data
// type of its kind.
func validateArity(g *Graph) []ValidationError {
	var errs []ValidationError
	bad := func(n *Node, format string, args ...any) {
		errs = append(errs, ValidationError{NodeID: n.ID, Message: fmt.Sprintf(format, args...), Severity: SeverityError})
	}
	for _, n := range g.Nodes {
		var dataOK bool
		switch n.Kind {
		case NodeSketch:
			_, dataOK = n.Data.(SketchData)
			if len(n.Children) != 0 {
				bad(n, "sketch has %d children, want none", len(n.Children))
			}
		case NodeDifference2D:
			_, dataOK = n.Data.(Difference2DData)
			if len(n.Children) < 2 {
				bad(n, "difference2d has %d children, want at least 2", len(n.Children))
			}
		case NodeSweep:
			_, dataOK = n.Data.(SweepData)
			if len(n.Children) != 1 {
				bad(n, "sweep has %d children, want 1", len(n.Children))
			}
		case NodeTransform:
			_, dataOK = n.Data.(TransformData)
			if len(n.Children) != 1 {
				bad(n, "transform has %d children, want 1", len(n.Children))
			}
		case NodeUnion, NodeDifference, NodeIntersection:
			_, dataOK = n.Data.(BooleanData)
			if len(n.Children) < 2 {
				bad(n, "%s has %d children, want at least 2", n.Kind, len(n.Children))
			}
		case NodeGroup:
			_, dataOK = n.Data.(GroupData)
		default:
			bad(n, "unknown node kind %d", int(n.Kind))
			continue
		}
		if !dataOK {
			bad(n, "%s node carries %T data", n.Kind, n.Data)
		}
	}
	return errs
}

// ---------------------------------------------------------------------------
// Geometric validation
// ---------------------------------------------------------------------------

func validateGeometry(g *Graph) ([]ValidationError, []ValidationWarning) {
	var errs []ValidationError
	var warnings []ValidationWarning
	errs = append(errs, validateSketches(g)...)
	errs = append(errs, validateSweeps(g)...)
	errs = append(errs, validateOperands(g)...)
	for _, rid := range g.Roots {
		if g.Dim(rid) == 2 {
			warnings = append(warnings, ValidationWarning{
				NodeID:  rid,
				Message: "root is a profile and is meshed as a flat face",
			})
		}
	}
	return errs, warnings
}

func finite(xs ...float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// validateSketches checks that every loop has segments with finite
// coordinates and positive radii. Closure and self-intersection are
// checked by the sketch builder.
func validateSketches(g *Graph) []ValidationError {
	var errs []ValidationError
	for _, node := range g.Nodes {
		sd, ok := node.Data.(SketchData)
		if !ok {
			continue
		}
		bad := func(format string, args ...any) {
			errs = append(errs, ValidationError{NodeID: node.ID, Message: fmt.Sprintf(format, args...), Severity: SeverityError})
		}
		if len(sd.Exterior) == 0 {
			bad("sketch has no exterior loop")
		}
		for li, l := range append([]Loop{sd.Exterior}, sd.Holes...) {
			if li > 0 && len(l) == 0 {
				bad("hole %d is empty", li-1)
			}
			for si, s := range l {
				if !finite(s.From.X, s.From.Y, s.To.X, s.To.Y, s.Center.X, s.Center.Y, s.Radius, s.Start, s.End) {
					bad("loop %d segment %d has non-finite coordinates", li, si)
					continue
				}
				if s.Kind != SegmentLine && s.Radius <= 0 {
					bad("loop %d segment %d: %s radius is %.4f, must be positive", li, si, s.Kind, s.Radius)
				}
			}
		}
		p := sd.Plane.OrDefault()
		if p.U.Cross(p.V).Length() == 0 {
			bad("sketch plane axes are parallel")
		}
	}
	return errs
}

// validateSweeps checks that sweep paths are non-zero.
func validateSweeps(g *Graph) []ValidationError {
	var errs []ValidationError
	for _, node := range g.Nodes {
		sd, ok := node.Data.(SweepData)
		if !ok {
			continue
		}
		if !finite(sd.Path.X, sd.Path.Y, sd.Path.Z) || sd.Path.Length() == 0 {
			errs = append(errs, ValidationError{
				NodeID:   node.ID,
				Message:  fmt.Sprintf("sweep path %v must be finite and non-zero", sd.Path),
				Severity: SeverityError,
			})
		}
	}
	return errs
}

// validateOperands checks that operations receive operands of the right
// dimension.
func validateOperands(g *Graph) []ValidationError {
	var errs []ValidationError
	want := func(n *Node, dim int) {
		for i, c := range n.Children {
			if got := g.Dim(c); got != dim {
				errs = append(errs, ValidationError{
					NodeID:   n.ID,
					Message:  fmt.Sprintf("%s operand %d is %s, want a %s", n.Kind, i, dimName(got), dimName(dim)),
					Severity: SeverityError,
				})
			}
		}
	}
	for _, n := range g.Nodes {
		switch {
		case n.Kind == NodeDifference2D, n.Kind == NodeSweep:
			want(n, 2)
		case n.Kind.Boolean():
			want(n, 3)
		}
	}
	return errs
}

func dimName(d int) string {
	switch d {
	case 2:
		return "profile"
	case 3:
		return "solid"
	default:
		return "group"
	}
}
