package model

import "fmt"

// Graph is the top-level immutable data structure produced by evaluation.
// It is never mutated once handed to the kernel; each evaluation produces
// a new graph.
type Graph struct {
	Nodes     map[NodeID]*Node  `json:"nodes"`
	Roots     []NodeID          `json:"roots"`
	NameIndex map[string]NodeID `json:"name_index"`
	Version   uint64            `json:"version"`
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		Nodes:     make(map[NodeID]*Node),
		NameIndex: make(map[string]NodeID),
	}
}

// AddNode adds a node to the graph. It does not check for duplicates.
func (g *Graph) AddNode(n *Node) {
	g.Nodes[n.ID] = n
	if n.Name != "" {
		g.NameIndex[n.Name] = n.ID
	}
}

// AddRoot registers a node ID as a root of the graph. Adding a root twice
// is a no-op.
func (g *Graph) AddRoot(id NodeID) {
	for _, r := range g.Roots {
		if r == id {
			return
		}
	}
	g.Roots = append(g.Roots, id)
}

// Lookup returns the node with the given user-assigned name, or nil.
func (g *Graph) Lookup(name string) *Node {
	id, ok := g.NameIndex[name]
	if !ok {
		return nil
	}
	return g.Nodes[id]
}

// MustLookup returns the node with the given name, or panics.
func (g *Graph) MustLookup(name string) *Node {
	n := g.Lookup(name)
	if n == nil {
		panic(fmt.Sprintf("model: no node named %q", name))
	}
	return n
}

// Get returns the node with the given ID, or nil.
func (g *Graph) Get(id NodeID) *Node {
	return g.Nodes[id]
}

// Children returns the child nodes of the given node.
func (g *Graph) Children(n *Node) []*Node {
	children := make([]*Node, 0, len(n.Children))
	for _, cid := range n.Children {
		if c := g.Nodes[cid]; c != nil {
			children = append(children, c)
		}
	}
	return children
}

// NodeCount returns the total number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.Nodes)
}

// Dim returns 2 for nodes that evaluate to a profile and 3 for solids.
// Groups and unknown nodes report 0.
func (g *Graph) Dim(id NodeID) int {
	return g.dim(id, make(map[NodeID]bool))
}

func (g *Graph) dim(id NodeID, seen map[NodeID]bool) int {
	n := g.Nodes[id]
	if n == nil || seen[id] {
		return 0
	}
	seen[id] = true
	defer delete(seen, id)
	switch n.Kind {
	case NodeSketch, NodeDifference2D:
		return 2
	case NodeSweep, NodeUnion, NodeDifference, NodeIntersection:
		return 3
	case NodeTransform:
		if len(n.Children) != 1 {
			return 0
		}
		return g.dim(n.Children[0], seen)
	default:
		return 0
	}
}

// Description is the kernel's input: an owned graph plus the parameters it
// was evaluated with.
type Description struct {
	Graph  *Graph `json:"graph"`
	Params Params `json:"params,omitempty"`
}
