package graph

import (
	"errors"
)

// END is a special constant used to represent the end node in the graph.
const END = "END"

// START names the virtual node that precedes the entry point in exported diagrams.
const START = "START"

var (
	// ErrEntryPointNotSet is returned when the entry point of the graph is not set.
	ErrEntryPointNotSet = errors.New("entry point not set")

	// ErrNodeNotFound is returned when a node is not found in the graph.
	ErrNodeNotFound = errors.New("node not found")

	// ErrNoOutgoingEdge is returned when no outgoing edge is found for a node.
	ErrNoOutgoingEdge = errors.New("no outgoing edge found for node")

	// ErrRecursionLimit is returned when an invocation executes more nodes than allowed.
	ErrRecursionLimit = errors.New("recursion limit reached")

	// ErrUnexpectedRoute is returned when a router picks a node outside its declared targets.
	ErrUnexpectedRoute = errors.New("router returned an undeclared target")

	// ErrNodePanic wraps a panic recovered from a node function.
	ErrNodePanic = errors.New("node panicked")
)

// Edge represents an edge in the graph.
type Edge struct {
	// From is the name of the node from which the edge originates.
	From string

	// To is the name of the node to which the edge points.
	To string
}
