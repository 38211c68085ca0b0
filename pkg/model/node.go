package model

// NodeKind enumerates the operations of the description graph.
type NodeKind int

const (
	NodeSketch       NodeKind = iota // closed 2D profile on a plane
	NodeDifference2D                 // first profile minus the others
	NodeSweep                        // straight sweep of a profile
	NodeTransform                    // rigid motion of a child
	NodeUnion                        // boolean union of solids
	NodeDifference                   // first solid minus the others
	NodeIntersection                 // boolean intersection of solids
	NodeGroup                        // independent shapes meshed separately
)

func (k NodeKind) String() string {
	switch k {
	case NodeSketch:
		return "sketch"
	case NodeDifference2D:
		return "difference2d"
	case NodeSweep:
		return "sweep"
	case NodeTransform:
		return "transform"
	case NodeUnion:
		return "union"
	case NodeDifference:
		return "difference"
	case NodeIntersection:
		return "intersection"
	case NodeGroup:
		return "group"
	default:
		return "unknown"
	}
}

// Boolean reports whether k combines solids.
func (k NodeKind) Boolean() bool {
	return k == NodeUnion || k == NodeDifference || k == NodeIntersection
}

// Node is one operation of the description graph. Children are the
// operands, in order.
type Node struct {
	ID       NodeID   `json:"id"`
	Kind     NodeKind `json:"kind"`
	Name     string   `json:"name,omitempty"`
	Children []NodeID `json:"children,omitempty"`
	Data     NodeData `json:"data,omitempty"`
}

// NodeData is the interface for kind-specific node payloads.
type NodeData interface {
	nodeData() // marker method restricting implementations to this package
}

// Label returns the node's name, or its short ID when it has none.
func (n *Node) Label() string {
	if n.Name != "" {
		return n.Name
	}
	return n.ID.Short()
}
