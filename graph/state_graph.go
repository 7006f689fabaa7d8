package graph

import (
	"context"
	"fmt"
	"slices"
)

// NodeFunc transforms the state. With a schema installed the returned value is
// treated as an update and merged; without one it replaces the state.
type NodeFunc[S any] func(ctx context.Context, state S) (S, error)

// Router picks the next node name, or END, from the state.
type Router[S any] func(ctx context.Context, state S) string

// Node is a named step of the graph.
type Node[S any] struct {
	Name        string
	Description string
	Function    NodeFunc[S]
}

type conditionalEdge[S any] struct {
	router  Router[S]
	targets []string
}

// StateGraph is a generic directed graph whose nodes share a state of type S.
//
//	g := graph.NewStateGraph[MyState]()
//	g.AddNode("think", "call the model", think)
//	g.AddNode("act", "run a tool", act)
//	g.SetEntryPoint("think")
//	g.AddConditionalEdge("think", route, "act", graph.END)
//	g.AddEdge("act", "think")
type StateGraph[S any] struct {
	nodes            map[string]Node[S]
	order            []string
	edges            []Edge
	conditionalEdges map[string]conditionalEdge[S]
	entryPoint       string
	retryPolicy      *RetryPolicy
	schema           StateSchema[S]
	listeners        []NodeListener[S]
}

// NewStateGraph creates an empty graph for state type S.
func NewStateGraph[S any]() *StateGraph[S] {
	return &StateGraph[S]{
		nodes:            make(map[string]Node[S]),
		conditionalEdges: make(map[string]conditionalEdge[S]),
	}
}

// AddNode adds a node. Adding a node twice replaces its function.
func (g *StateGraph[S]) AddNode(name string, description string, fn NodeFunc[S]) {
	if _, exists := g.nodes[name]; !exists {
		g.order = append(g.order, name)
	}
	g.nodes[name] = Node[S]{
		Name:        name,
		Description: description,
		Function:    fn,
	}
}

// AddEdge adds a static edge between two nodes.
func (g *StateGraph[S]) AddEdge(from, to string) {
	g.edges = append(g.edges, Edge{From: from, To: to})
}

// AddConditionalEdge routes from a node to whatever router returns. When
// targets are listed, Compile checks that they exist and routing outside them
// fails with ErrUnexpectedRoute. A conditional edge takes precedence over
// static edges leaving the same node.
func (g *StateGraph[S]) AddConditionalEdge(from string, router Router[S], targets ...string) {
	g.conditionalEdges[from] = conditionalEdge[S]{router: router, targets: targets}
}

// SetEntryPoint sets the entry point node name for the state graph.
func (g *StateGraph[S]) SetEntryPoint(name string) {
	g.entryPoint = name
}

// SetRetryPolicy sets the retry policy applied to every node.
func (g *StateGraph[S]) SetRetryPolicy(policy *RetryPolicy) {
	g.retryPolicy = policy
}

// SetSchema installs the schema that merges node results into the state.
func (g *StateGraph[S]) SetSchema(schema StateSchema[S]) {
	g.schema = schema
}

// AddListener registers a listener notified around every node execution.
func (g *StateGraph[S]) AddListener(l NodeListener[S]) {
	g.listeners = append(g.listeners, l)
}

// Nodes returns the nodes in the order they were added.
func (g *StateGraph[S]) Nodes() []Node[S] {
	out := make([]Node[S], 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.nodes[name])
	}
	return out
}

func (g *StateGraph[S]) known(name string) bool {
	if name == END {
		return true
	}
	_, ok := g.nodes[name]
	return ok
}

func (g *StateGraph[S]) validate() error {
	if g.entryPoint == "" {
		return ErrEntryPointNotSet
	}
	if _, ok := g.nodes[g.entryPoint]; !ok {
		return fmt.Errorf("%w: entry point %s", ErrNodeNotFound, g.entryPoint)
	}
	for _, e := range g.edges {
		if _, ok := g.nodes[e.From]; !ok {
			return fmt.Errorf("%w: edge source %s", ErrNodeNotFound, e.From)
		}
		if !g.known(e.To) {
			return fmt.Errorf("%w: edge target %s", ErrNodeNotFound, e.To)
		}
	}
	for from, ce := range g.conditionalEdges {
		if _, ok := g.nodes[from]; !ok {
			return fmt.Errorf("%w: conditional edge source %s", ErrNodeNotFound, from)
		}
		for _, t := range ce.targets {
			if !g.known(t) {
				return fmt.Errorf("%w: conditional edge target %s", ErrNodeNotFound, t)
			}
		}
	}
	return nil
}

// Compile validates the graph and returns a runnable.
func (g *StateGraph[S]) Compile(opts ...CompileOption) (*Runnable[S], error) {
	if err := g.validate(); err != nil {
		return nil, err
	}

	cfg := compileConfig{recursionLimit: DefaultRecursionLimit}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Runnable[S]{
		graph:          g,
		checkpointer:   cfg.checkpointer,
		recursionLimit: cfg.recursionLimit,
	}, nil
}

func (ce conditionalEdge[S]) allows(next string) bool {
	return len(ce.targets) == 0 || slices.Contains(ce.targets, next)
}
