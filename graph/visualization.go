package graph

import (
	"fmt"
	"sort"
	"strings"
)

// Exporter renders a graph as a diagram.
type Exporter[S any] struct {
	graph *StateGraph[S]
}

// NewExporter creates a new graph exporter for the given graph
func NewExporter[S any](graph *StateGraph[S]) *Exporter[S] {
	return &Exporter[S]{graph: graph}
}

// MermaidOptions defines configuration for Mermaid diagram generation
type MermaidOptions struct {
	// Direction of the flowchart (e.g., "TD", "LR")
	Direction string
}

func (ge *Exporter[S]) conditionalSources() []string {
	froms := make([]string, 0, len(ge.graph.conditionalEdges))
	for from := range ge.graph.conditionalEdges {
		froms = append(froms, from)
	}
	sort.Strings(froms)
	return froms
}

func (ge *Exporter[S]) reachesEnd() bool {
	for _, e := range ge.graph.edges {
		if e.To == END {
			return true
		}
	}
	for _, ce := range ge.graph.conditionalEdges {
		for _, t := range ce.targets {
			if t == END {
				return true
			}
		}
	}
	return false
}

// DrawMermaid generates a top-down Mermaid flowchart
func (ge *Exporter[S]) DrawMermaid() string {
	return ge.DrawMermaidWithOptions(MermaidOptions{Direction: "TD"})
}

// DrawMermaidWithOptions generates a Mermaid diagram with custom options.
// Conditional edges with declared targets are drawn as dotted arrows to each
// target; routers without targets get a "?" placeholder node.
func (ge *Exporter[S]) DrawMermaidWithOptions(opts MermaidOptions) string {
	var sb strings.Builder

	direction := opts.Direction
	if direction == "" {
		direction = "TD"
	}
	fmt.Fprintf(&sb, "flowchart %s\n", direction)

	if ge.graph.entryPoint != "" {
		sb.WriteString("    START([\"START\"])\n")
		sb.WriteString("    style START fill:#90EE90\n")
	}

	for _, name := range ge.graph.order {
		fmt.Fprintf(&sb, "    %s[\"%s\"]\n", name, name)
	}

	if ge.reachesEnd() {
		sb.WriteString("    END([\"END\"])\n")
		sb.WriteString("    style END fill:#FFB6C1\n")
	}

	if ge.graph.entryPoint != "" {
		fmt.Fprintf(&sb, "    START --> %s\n", ge.graph.entryPoint)
	}

	for _, e := range ge.graph.edges {
		fmt.Fprintf(&sb, "    %s --> %s\n", e.From, e.To)
	}

	for _, from := range ge.conditionalSources() {
		ce := ge.graph.conditionalEdges[from]
		if len(ce.targets) == 0 {
			fmt.Fprintf(&sb, "    %s -.-> %s_condition((?))\n", from, from)
			continue
		}
		for _, t := range ce.targets {
			fmt.Fprintf(&sb, "    %s -.-> %s\n", from, t)
		}
	}

	if ge.graph.entryPoint != "" {
		fmt.Fprintf(&sb, "    style %s fill:#87CEEB\n", ge.graph.entryPoint)
	}

	return sb.String()
}

// DrawDOT generates a DOT (Graphviz) representation of the graph
func (ge *Exporter[S]) DrawDOT() string {
	var sb strings.Builder

	sb.WriteString("digraph G {\n")
	sb.WriteString("    rankdir=TD;\n")
	sb.WriteString("    node [shape=box];\n")

	if ge.graph.entryPoint != "" {
		sb.WriteString("    START [label=\"START\", shape=ellipse, style=filled, fillcolor=lightgreen];\n")
		fmt.Fprintf(&sb, "    START -> %s;\n", ge.graph.entryPoint)
		fmt.Fprintf(&sb, "    %s [style=filled, fillcolor=lightblue];\n", ge.graph.entryPoint)
	}

	if ge.reachesEnd() {
		sb.WriteString("    END [label=\"END\", shape=ellipse, style=filled, fillcolor=lightpink];\n")
	}

	for _, e := range ge.graph.edges {
		fmt.Fprintf(&sb, "    %s -> %s;\n", e.From, e.To)
	}

	for _, from := range ge.conditionalSources() {
		ce := ge.graph.conditionalEdges[from]
		if len(ce.targets) == 0 {
			fmt.Fprintf(&sb, "    %s -> %s_condition [style=dashed, label=\"?\"];\n", from, from)
			fmt.Fprintf(&sb, "    %s_condition [label=\"?\", shape=diamond, style=filled, fillcolor=lightyellow];\n", from)
			continue
		}
		for _, t := range ce.targets {
			fmt.Fprintf(&sb, "    %s -> %s [style=dashed];\n", from, t)
		}
	}

	sb.WriteString("}\n")
	return sb.String()
}
