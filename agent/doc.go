// Package agent implements Socrates as a ReAct agent.
//
// Each user turn runs a graph that alternates between a model call
// (llm_call) and tool nodes (wikipedia, speech, calculator, vector_search).
// The model asks for a tool by answering with a JSON object:
//
//	{"action": "calcular", "input": "2025 - 399"}
//
// The tool's observation is appended to the conversation as an assistant
// message followed by a short nudge, and the model is called again. The
// turn ends when the model replies without a known action or when the
// iteration budget is spent.
//
//	a, err := agent.New(agent.Config{Model: llm, Tools: registry})
//	reply, err := a.Ask(ctx, "dialogo-1", "¿Qué es la virtud?")
//	fmt.Println(reply.Answer)
//
// Threads are checkpointed after every node, so History and follow-up
// questions see the whole conversation.
package agent
