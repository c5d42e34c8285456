package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateNode is returned when a node id is already present in the graph.
	ErrDuplicateNode = errors.New("duplicate node")

	// ErrNodeNotFound is returned when an operation references a node that is not in the graph.
	ErrNodeNotFound = errors.New("node not found")

	// ErrInvalidWeight is returned when an edge weight is NaN or infinite.
	ErrInvalidWeight = errors.New("invalid edge weight")
)

// NodeError carries the node id an operation failed on.
type NodeError struct {
	ID  string
	Err error
}

// Error returns a human-readable description including the node id.
func (e *NodeError) Error() string {
	return fmt.Sprintf("%v: %q", e.Err, e.ID)
}

// Unwrap returns the base error for errors.Is compatibility.
func (e *NodeError) Unwrap() error {
	return e.Err
}
