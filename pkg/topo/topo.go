// Package topo is the topological graph of the kernel: vertices, edges,
// cycles, faces, shells and solids stored in an append-only arena and
// addressed by typed indices.
//
// Entities never change after construction. Operations that "modify" a
// solid append new entities that reference the unaffected ones. There are
// no back-pointers; derived lookups such as the faces using an edge are
// computed on demand (see EdgeUses).
//
// A Graph is not safe for concurrent mutation. Concurrent reads are safe
// while no goroutine is creating entities.
package topo

import (
	"fmt"

	"github.com/chazu/kerf/pkg/geom"
	"github.com/chazu/kerf/pkg/geometry"
)

// Typed arena indices.
type (
	VertexID int
	EdgeID   int
	CycleID  int
	FaceID   int
	ShellID  int
	SolidID  int
)

func (id VertexID) String() string { return fmt.Sprintf("v%d", int(id)) }
func (id EdgeID) String() string   { return fmt.Sprintf("e%d", int(id)) }
func (id CycleID) String() string  { return fmt.Sprintf("c%d", int(id)) }
func (id FaceID) String() string   { return fmt.Sprintf("f%d", int(id)) }
func (id ShellID) String() string  { return fmt.Sprintf("sh%d", int(id)) }
func (id SolidID) String() string  { return fmt.Sprintf("so%d", int(id)) }

// Vertex is a canonical point identity.
type Vertex struct {
	Point geom.Vec3
	// Bucket is the tolerance cell the canonical point falls in.
	Bucket geom.Cell
}

// Edge is a bounded piece of a curve between two vertices. A closed edge
// (full period of a periodic curve) has Start == End.
type Edge struct {
	Curve      geometry.Curve
	Start, End VertexID
	// Range is the parameter interval [T0, T1] with T0 < T1; Start sits at
	// T0 and End at T1.
	Range [2]float64
}

// Closed reports whether the edge is a full closed curve.
func (e Edge) Closed() bool { return e.Start == e.End }

// HalfEdge is one traversal of an edge inside a cycle.
type HalfEdge struct {
	Edge     EdgeID
	Reversed bool
}

// Flip returns the opposite traversal of the same edge.
func (h HalfEdge) Flip() HalfEdge { return HalfEdge{Edge: h.Edge, Reversed: !h.Reversed} }

func (h HalfEdge) String() string {
	if h.Reversed {
		return "-" + h.Edge.String()
	}
	return "+" + h.Edge.String()
}

// Cycle is a closed, consistently oriented sequence of half-edges.
type Cycle struct {
	HalfEdges []HalfEdge
}

// Face is a bounded region of a surface: one exterior cycle and any number
// of hole cycles. Exterior cycles wind counter-clockwise and holes
// clockwise in the surface's parameter space, so the surface normal points
// out of the solid.
type Face struct {
	Surface   geometry.Surface
	Exterior  CycleID
	Interiors []CycleID
}

// Cycles returns the exterior followed by the interiors.
func (f Face) Cycles() []CycleID {
	out := make([]CycleID, 0, 1+len(f.Interiors))
	out = append(out, f.Exterior)
	return append(out, f.Interiors...)
}

// Shell is a set of faces. In a closed shell every edge is used by exactly
// two faces, once in each direction.
type Shell struct {
	Faces  []FaceID
	Closed bool
}

// Solid is one or more closed shells, one per connected component.
type Solid struct {
	Shells []ShellID
}

// Counts is the number of entities of each kind in a graph.
type Counts struct {
	Vertices, Edges, Cycles, Faces, Shells, Solids int
}
