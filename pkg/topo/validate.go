package topo

import (
	"fmt"
	"sort"

	"github.com/chazu/kerf/pkg/kerrors"
)

// EdgeUse is one traversal of an edge by a face cycle.
type EdgeUse struct {
	Face     FaceID
	Cycle    CycleID
	Reversed bool
}

// EdgeUses returns, for every edge used by faces, the list of its uses.
// This is the derived back-reference table from edges to faces.
func (g *Graph) EdgeUses(faces []FaceID) map[EdgeID][]EdgeUse {
	uses := make(map[EdgeID][]EdgeUse)
	for _, f := range faces {
		for _, c := range g.faces[f].Cycles() {
			for _, h := range g.cycles[c].HalfEdges {
				uses[h.Edge] = append(uses[h.Edge], EdgeUse{Face: f, Cycle: c, Reversed: h.Reversed})
			}
		}
	}
	return uses
}

// ValidationError is a single manifold violation found in a shell.
type ValidationError struct {
	Edge    EdgeID
	Uses    int
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("edge %v: %s", e.Edge, e.Message)
}

// Check returns every manifold violation of the faces taken as a closed
// shell, ordered by edge. An empty result means the faces are closed and
// consistently oriented.
func (g *Graph) Check(faces []FaceID) []ValidationError {
	uses := g.EdgeUses(faces)
	edges := make([]EdgeID, 0, len(uses))
	for e := range uses {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i] < edges[j] })

	var errs []ValidationError
	for _, e := range edges {
		u := uses[e]
		switch {
		case len(u) != 2:
			errs = append(errs, ValidationError{
				Edge:    e,
				Uses:    len(u),
				Message: fmt.Sprintf("used by %d face cycles, want 2", len(u)),
			})
		case u[0].Reversed == u[1].Reversed:
			errs = append(errs, ValidationError{
				Edge:    e,
				Uses:    2,
				Message: fmt.Sprintf("traversed in the same direction by %v and %v", u[0].Face, u[1].Face),
			})
		}
	}
	return errs
}

// Validate checks that a shell is edge-manifold: every edge is used by
// exactly two face cycles in opposite directions.
func (g *Graph) Validate(id ShellID) error {
	return g.validateShell(g.shells[id])
}

func (g *Graph) validateShell(s Shell) error {
	errs := g.Check(s.Faces)
	if len(errs) == 0 {
		return nil
	}
	first := errs[0]
	return kerrors.Newf(kerrors.NonManifoldResult, "%s", first.Message).
		With("edge", first.Edge).
		With("violations", len(errs))
}

// ValidateSolid validates every shell of a solid.
func (g *Graph) ValidateSolid(id SolidID) error {
	for _, sh := range g.solids[id].Shells {
		if err := g.Validate(sh); err != nil {
			return fmt.Errorf("topo: shell %v: %w", sh, err)
		}
	}
	return nil
}
