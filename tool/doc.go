// Package tool holds the collaborators the Socratic agent can act with.
//
// Every tool implements langchaingo's tools.Tool and reports its own
// failures inside the returned text, so a broken collaborator never aborts
// a conversation turn:
//
//   - WikipediaSearch: intro extract of the best matching article.
//   - Calculator: arithmetic, plus years elapsed since a date like "399 a.C.".
//   - TextToSpeech: audio through an OpenAI-compatible /audio/speech endpoint.
//   - CorpusTool: one semantic query over a corpus.Store per vector action.
//
// A Registry maps the action names the model emits to tools:
//
//	reg := tool.NewRegistry(
//		tool.NewWikipediaSearch(),
//		tool.NewCalculator(),
//	)
//	for _, t := range tool.NewCorpusTools(store) {
//		reg.Register(t)
//	}
//	t, ok := reg.Lookup("calcular")
package tool
