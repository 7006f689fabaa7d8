// Package graph is a small state-graph runtime in the style of LangGraph.
//
// A StateGraph[S] holds named nodes that transform a state of type S, static
// edges, and conditional edges whose router inspects the state to choose the
// next node. Compile validates the wiring and returns a Runnable that walks
// the graph one node at a time from the entry point until END:
//
//	g := graph.NewStateGraph[State]()
//	g.AddNode("llm_call", "ask the model", think)
//	g.AddNode("calculator", "evaluate an expression", calculate)
//	g.SetEntryPoint("llm_call")
//	g.AddConditionalEdge("llm_call", route, "calculator", graph.END)
//	g.AddEdge("calculator", "llm_call")
//
//	runnable, err := g.Compile(graph.WithCheckpointer(cs))
//	final, err := runnable.InvokeWithConfig(ctx, input, &graph.Config{ThreadID: "t1"})
//
// Each invocation is bounded by a recursion limit (DefaultRecursionLimit node
// executions unless overridden). Nodes may be retried under a RetryPolicy,
// panics are converted to errors wrapping ErrNodePanic, and listeners observe
// every node start, completion and failure.
//
// When a checkpointer is configured and the invocation carries a thread ID,
// the state is saved after every node, and LatestState restores it later.
// An Exporter renders the graph as Mermaid or Graphviz DOT.
package graph
