// Socrates - a Socratic dialogue agent in Go
//
// Socrates answers questions the way the philosopher would: it replies with
// questions, examines definitions and leads the user towards their own
// conclusions. Under the hood it is a ReAct agent. A state graph alternates
// between a language model call and tool nodes until the model answers
// without requesting a tool.
//
// # Packages
//
//   - graph: generic state-graph engine with conditional edges, retries,
//     listeners, checkpointing and Mermaid export.
//   - agent: the Socratic ReAct loop built on graph.
//   - prompts: the persona, rules, tool instructions and follow-up nudges.
//   - tool: Wikipedia, calculator, text-to-speech and the five corpus
//     search actions, all langchaingo tools.
//   - corpus: the semantic store of Platonic texts, backed by PostgreSQL
//     with pgvector or by an embedded chromem-go database.
//   - ingest: loads texts, splits them into fragments, aggregates concepts
//     and writes the embeddings into a corpus.
//   - llms/llamacpp: langchaingo model and embedder for a llama.cpp server.
//   - store: checkpoint persistence in memory, SQLite, Redis or PostgreSQL.
//   - config, log: TOML configuration and pluggable logging.
//
// # Quick Start
//
//	llm, _ := llamacpp.New(llamacpp.WithBaseURL("http://localhost:8080"))
//
//	socrates, _ := agent.New(agent.Config{
//		Model: llm,
//		Tools: tool.NewRegistry(tool.NewCalculator(), tool.NewWikipediaSearch()),
//	})
//
//	reply, _ := socrates.Ask(ctx, "", "¿Qué es la justicia?")
//	fmt.Println(reply.Answer)
//
// The socrates command (cmd/socrates) wires everything from a config file:
//
//	socrates init-db
//	socrates ingest --dir textos --glossary glosario.txt
//	socrates chat
package socrates
