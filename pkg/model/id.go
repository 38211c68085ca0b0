package model

import "github.com/google/uuid"

// NodeID identifies a description node. IDs built with NewNodeID are
// derived from a path, so re-evaluating the same source yields the same
// IDs.
type NodeID uuid.UUID

// ZeroID is the unset node ID.
var ZeroID NodeID

// namespace scopes node IDs away from other SHA-1 UUIDs.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/chazu/kerf/model"))

// NewNodeID returns the ID for a node at path.
func NewNodeID(path string) NodeID {
	return NodeID(uuid.NewSHA1(namespace, []byte(path)))
}

// IsZero reports whether id is unset.
func (id NodeID) IsZero() bool { return id == ZeroID }

func (id NodeID) String() string { return uuid.UUID(id).String() }

// Short returns the first eight hex digits, for messages and part names.
func (id NodeID) Short() string { return id.String()[:8] }

// MarshalText implements encoding.TextMarshaler.
func (id NodeID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *NodeID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}
