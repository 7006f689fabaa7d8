package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/socrates-agent/socrates/corpus"
	"github.com/socrates-agent/socrates/graph"
	"github.com/socrates-agent/socrates/log"
	"github.com/socrates-agent/socrates/prompts"
	"github.com/socrates-agent/socrates/store/memory"
	"github.com/socrates-agent/socrates/tool"
)

// scriptedModel replies with the scripted answers in order, repeating the
// last one when the script runs out.
type scriptedModel struct {
	mu      sync.Mutex
	replies []string
	calls   [][]llms.MessageContent
	options []llms.CallOptions

	// err fails every call after the first errAfter calls.
	err      error
	errAfter int
}

func (m *scriptedModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}
	m.calls = append(m.calls, messages)
	m.options = append(m.options, opts)

	if m.err != nil && len(m.calls) > m.errAfter {
		return nil, m.err
	}
	i := min(len(m.calls)-1, len(m.replies)-1)
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.replies[i]}}}, nil
}

func (m *scriptedModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func (m *scriptedModel) systemPrompt(call int) string {
	return MessageText(m.calls[call][0])
}

// stubTool answers every call with a fixed output.
type stubTool struct {
	name   string
	output string
	err    error
	inputs []string
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub " + s.name }
func (s *stubTool) Call(ctx context.Context, input string) (string, error) {
	s.inputs = append(s.inputs, input)
	return s.output, s.err
}

type stubStore struct {
	documents []corpus.DocumentMatch
}

func (s *stubStore) SearchDocuments(ctx context.Context, query string, limit int) ([]corpus.DocumentMatch, error) {
	return s.documents, nil
}

func (s *stubStore) RelatedConcepts(ctx context.Context, concept string, limit int) ([]corpus.ConceptMatch, error) {
	return nil, nil
}

func (s *stubStore) SearchFragments(ctx context.Context, query string, limit int) ([]corpus.FragmentMatch, error) {
	return nil, nil
}

func (s *stubStore) ConceptContext(ctx context.Context, concept string) ([]corpus.ConceptContext, error) {
	return nil, nil
}

func (s *stubStore) CompareDocuments(ctx context.Context, title1, title2 string) (*corpus.Comparison, error) {
	return &corpus.Comparison{}, nil
}

func newTestAgent(t *testing.T, model llms.Model, reg *tool.Registry, opts ...func(*Config)) *Agent {
	t.Helper()
	cfg := Config{Model: model, Tools: reg, Logger: log.NoOpLogger{}}
	for _, o := range opts {
		o(&cfg)
	}
	a, err := New(cfg)
	require.NoError(t, err)
	return a
}

func texts(messages []llms.MessageContent) []string {
	out := make([]string, len(messages))
	for i, m := range messages {
		out[i] = string(m.Role) + ": " + MessageText(m)
	}
	return out
}

func TestNew_RequiresModel(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrNoModel)
}

func TestAgent_PlainAnswer(t *testing.T) {
	model := &scriptedModel{replies: []string{"[INST] Dime, ¿qué entiendes tú por virtud? [/INST]"}}
	a := newTestAgent(t, model, nil)

	reply, err := a.Ask(context.Background(), "t1", "  ¿Qué es la virtud?  ")
	require.NoError(t, err)

	assert.Equal(t, "t1", reply.ThreadID)
	assert.Equal(t, "Dime, ¿qué entiendes tú por virtud?", reply.Answer)
	assert.Empty(t, reply.Steps)
	assert.Equal(t, []string{
		"human: ¿Qué es la virtud?",
		"ai: Dime, ¿qué entiendes tú por virtud?",
	}, texts(reply.Messages))

	require.Len(t, model.calls, 1)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.calls[0][0].Role)
	assert.Equal(t, prompts.SystemPrompt(true), model.systemPrompt(0))

	opts := model.options[0]
	assert.Equal(t, 0.4, opts.Temperature)
	assert.Equal(t, 0.9, opts.TopP)
	assert.Equal(t, 218, opts.MaxTokens)
	assert.Equal(t, 1.1, opts.RepetitionPenalty)
}

func TestAgent_CalculatorRoundTrip(t *testing.T) {
	model := &scriptedModel{replies: []string{
		`Calculemos. {"action": "calcular", "input": "2025 - 399"}`,
		"Han pasado 1626 años. ¿Te parece mucho tiempo?",
	}}
	a := newTestAgent(t, model, tool.NewRegistry(tool.NewCalculator()))

	reply, err := a.Ask(context.Background(), "t1", "¿Cuántos años desde el 399?")
	require.NoError(t, err)

	assert.Equal(t, "Han pasado 1626 años. ¿Te parece mucho tiempo?", reply.Answer)
	assert.Equal(t, []Step{{Action: "calcular", Input: "2025 - 399", Observation: "1626"}}, reply.Steps)
	assert.Equal(t, []string{
		"human: ¿Cuántos años desde el 399?",
		`ai: Calculemos. {"action": "calcular", "input": "2025 - 399"}`,
		"ai: Resultado del cálculo: 1626\n\n" + prompts.Followup(prompts.FollowupCalculator),
		"ai: Han pasado 1626 años. ¿Te parece mucho tiempo?",
	}, texts(reply.Messages))

	// The second call sees the observation.
	require.Len(t, model.calls, 2)
	assert.Len(t, model.calls[1], 4)
}

func TestAgent_WikipediaAndSpeechNodes(t *testing.T) {
	wiki := &stubTool{name: "wikipedia", output: "Sócrates fue un filósofo griego."}
	voz := &stubTool{name: "voz", output: "Audio generado exitosamente: socrates_1.wav"}
	model := &scriptedModel{replies: []string{
		`{"action": "Wikipedia", "input": "Sócrates"}`,
		`{"action": "voz", "input": "Solo sé que no sé nada"}`,
		"He aquí mi respuesta.",
	}}
	a := newTestAgent(t, model, tool.NewRegistry(wiki, voz))

	reply, err := a.Ask(context.Background(), "", "Háblame de Sócrates")
	require.NoError(t, err)

	assert.NotEmpty(t, reply.ThreadID)
	assert.Equal(t, []string{"Sócrates"}, wiki.inputs)
	assert.Equal(t, []string{"Solo sé que no sé nada"}, voz.inputs)
	require.Len(t, reply.Steps, 2)
	assert.Equal(t, "wikipedia", reply.Steps[0].Action)

	msgs := texts(reply.Messages)
	assert.Equal(t, "ai: Información de Wikipedia: Sócrates fue un filósofo griego.\n\n"+
		prompts.Followup(prompts.FollowupWikipedia), msgs[2])
	assert.Equal(t, "ai: Audio generado: Audio generado exitosamente: socrates_1.wav\n\n"+
		prompts.Followup(prompts.FollowupSpeech), msgs[4])
}

func TestAgent_VectorSearch(t *testing.T) {
	store := &stubStore{documents: []corpus.DocumentMatch{{Title: "Fedón", Preview: "Sobre el alma"}}}
	reg := tool.NewRegistry()
	for _, ct := range tool.NewCorpusTools(store) {
		reg.Register(ct)
	}

	t.Run("results", func(t *testing.T) {
		model := &scriptedModel{replies: []string{
			`{"action": "buscar_documentos_por_contenido", "input": "alma"}`,
			"El Fedón trata del alma.",
		}}
		reply, err := newTestAgent(t, model, reg).Ask(context.Background(), "v1", "¿Dónde se habla del alma?")
		require.NoError(t, err)

		msgs := texts(reply.Messages)
		assert.Equal(t, "ai: Fedón: Sobre el alma\n\n"+prompts.Followup(tool.ActionSearchDocuments), msgs[2])
	})

	t.Run("no results", func(t *testing.T) {
		model := &scriptedModel{replies: []string{
			`{"action": "buscar_conceptos_relacionados", "input": "cicuta"}`,
			"No hallé nada.",
		}}
		reply, err := newTestAgent(t, model, reg).Ask(context.Background(), "v2", "cicuta")
		require.NoError(t, err)
		assert.Equal(t, "ai: "+tool.NoResults, texts(reply.Messages)[2])
	})

	t.Run("missing input", func(t *testing.T) {
		model := &scriptedModel{replies: []string{
			`{"action": "buscar_fragmentos_especificos", "input": ""}`,
			"Necesito saber qué buscar.",
		}}
		reply, err := newTestAgent(t, model, reg).Ask(context.Background(), "v3", "busca")
		require.NoError(t, err)
		assert.Equal(t, "ai: "+NoVectorInput, texts(reply.Messages)[2])
		assert.Equal(t, []Step{{Action: tool.ActionSearchFragments, Observation: NoVectorInput}}, reply.Steps)
	})
}

func TestAgent_ToolFailuresBecomeObservations(t *testing.T) {
	broken := &stubTool{name: "wikipedia", err: errors.New("timeout")}
	model := &scriptedModel{replies: []string{
		`{"action": "wikipedia", "input": "Platón"}`,
		`{"action": "voz", "input": "hola"}`,
		"Sigamos dialogando.",
	}}
	a := newTestAgent(t, model, tool.NewRegistry(broken))

	reply, err := a.Ask(context.Background(), "t1", "Platón")
	require.NoError(t, err)
	assert.Equal(t, "Sigamos dialogando.", reply.Answer)
	require.Len(t, reply.Steps, 2)
	assert.Equal(t, "Error: timeout", reply.Steps[0].Observation)
	assert.Equal(t, "Herramienta no disponible: voz", reply.Steps[1].Observation)
}

func TestAgent_UnknownOrMalformedActionEndsTurn(t *testing.T) {
	for _, r := range []string{
		`{"action": "volar", "input": "Atenas"}`,
		`{"action": wikipedia}`,
	} {
		model := &scriptedModel{replies: []string{r}}
		reply, err := newTestAgent(t, model, nil).Ask(context.Background(), "t", "¿Puedes volar?")
		require.NoError(t, err)
		assert.Equal(t, r, reply.Answer)
		assert.Len(t, model.calls, 1)
	}
}

func TestAgent_IterationBudget(t *testing.T) {
	wiki := &stubTool{name: "wikipedia", output: "algo"}
	model := &scriptedModel{replies: []string{`{"action": "wikipedia", "input": "Atenas"}`}}
	a := newTestAgent(t, model, tool.NewRegistry(wiki), func(c *Config) { c.MaxIterations = 2 })

	reply, err := a.Ask(context.Background(), "t", "Atenas")
	require.NoError(t, err)

	require.Len(t, model.calls, 3)
	assert.Equal(t, prompts.SystemPrompt(true), model.systemPrompt(0))
	assert.Equal(t, prompts.SystemPrompt(true), model.systemPrompt(1))
	assert.Equal(t, prompts.SystemPrompt(false), model.systemPrompt(2))
	assert.Len(t, reply.Steps, 2)
	assert.Len(t, wiki.inputs, 2)
}

func TestAgent_RecursionLimit(t *testing.T) {
	wiki := &stubTool{name: "wikipedia", output: "algo"}
	model := &scriptedModel{replies: []string{`{"action": "wikipedia", "input": "Atenas"}`}}
	a := newTestAgent(t, model, tool.NewRegistry(wiki), func(c *Config) {
		c.MaxIterations = 100
		c.RecursionLimit = 5
	})

	_, err := a.Ask(context.Background(), "t", "Atenas")
	assert.ErrorIs(t, err, graph.ErrRecursionLimit)
}

func TestAgent_ModelErrorAbortsTurn(t *testing.T) {
	boom := errors.New("connection refused")
	a := newTestAgent(t, &scriptedModel{err: boom}, nil)

	_, err := a.Ask(context.Background(), "t", "¿Hola?")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "node llm_call")

	_, err = a.Ask(context.Background(), "t", "   ")
	assert.ErrorIs(t, err, ErrEmptyQuestion)
}

func TestAgent_FailedTurnKeepsHistory(t *testing.T) {
	checkpoints := memory.NewMemoryCheckpointStore()
	model := &scriptedModel{
		replies: []string{
			"Nadie comete el mal a sabiendas.",
			`Calculemos. {"action": "calcular", "input": "2025 - 399"}`,
		},
		err:      errors.New("connection refused"),
		errAfter: 2,
	}
	a := newTestAgent(t, model, tool.NewRegistry(tool.NewCalculator()), func(c *Config) { c.Checkpointer = checkpoints })
	ctx := context.Background()

	_, err := a.Ask(ctx, "menon", "¿Se puede enseñar la virtud?")
	require.NoError(t, err)

	// The calculator step is checkpointed before the follow-up model call fails.
	_, err = a.Ask(ctx, "menon", "¿Cuántos años desde el 399?")
	require.Error(t, err)
	require.Len(t, model.calls, 3)

	history, err := a.History(ctx, "menon")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"human: ¿Se puede enseñar la virtud?",
		"ai: Nadie comete el mal a sabiendas.",
	}, texts(history))

	list, err := checkpoints.List(ctx, "menon")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestAgent_RetriesModelCalls(t *testing.T) {
	model := &flakyModel{failures: 2, reply: "Aquí estoy."}
	a := newTestAgent(t, model, nil, func(c *Config) {
		c.RetryPolicy = &graph.RetryPolicy{MaxRetries: 2, BaseDelay: 1, Retryable: func(error) bool { return true }}
	})

	reply, err := a.Ask(context.Background(), "t", "¿Estás ahí?")
	require.NoError(t, err)
	assert.Equal(t, "Aquí estoy.", reply.Answer)
	assert.Equal(t, 3, model.calls)
}

type flakyModel struct {
	failures int
	reply    string
	calls    int
}

func (m *flakyModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.calls++
	if m.calls <= m.failures {
		return nil, errors.New("server busy")
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.reply}}}, nil
}

func (m *flakyModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func TestAgent_Threads(t *testing.T) {
	checkpoints := memory.NewMemoryCheckpointStore()
	model := &scriptedModel{replies: []string{"Primera respuesta.", "Segunda respuesta."}}
	a := newTestAgent(t, model, nil, func(c *Config) { c.Checkpointer = checkpoints })
	ctx := context.Background()

	_, err := a.Ask(ctx, "fedon", "Primera pregunta")
	require.NoError(t, err)
	reply, err := a.Ask(ctx, "fedon", "Segunda pregunta")
	require.NoError(t, err)

	want := []string{
		"human: Primera pregunta",
		"ai: Primera respuesta.",
		"human: Segunda pregunta",
		"ai: Segunda respuesta.",
	}
	assert.Equal(t, want, texts(reply.Messages))
	assert.Len(t, model.calls[1], 4) // system prompt + three messages

	history, err := a.History(ctx, "fedon")
	require.NoError(t, err)
	assert.Equal(t, want, texts(history))

	other, err := a.History(ctx, "criton")
	require.NoError(t, err)
	assert.Empty(t, other)

	list, err := checkpoints.List(ctx, "fedon")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Segunda pregunta", list[1].Metadata["question"])

	require.NoError(t, a.Reset(ctx, "fedon"))
	history, err = a.History(ctx, "fedon")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestAgent_StepsResetEveryTurn(t *testing.T) {
	model := &scriptedModel{replies: []string{
		`{"action": "calcular", "input": "1 + 1"}`,
		"Dos.",
		"Nada que calcular.",
	}}
	a := newTestAgent(t, model, tool.NewRegistry(tool.NewCalculator()))
	ctx := context.Background()

	first, err := a.Ask(ctx, "t", "¿1 + 1?")
	require.NoError(t, err)
	assert.Len(t, first.Steps, 1)

	second, err := a.Ask(ctx, "t", "¿Y ahora?")
	require.NoError(t, err)
	assert.Empty(t, second.Steps)
	assert.Equal(t, "Nada que calcular.", second.Answer)
}

func TestAgent_Graph(t *testing.T) {
	a := newTestAgent(t, &scriptedModel{replies: []string{"ok"}}, nil)
	mermaid := graph.NewExporter(a.Graph()).DrawMermaid()
	for _, node := range []string{NodeLLMCall, NodeWikipedia, NodeSpeech, NodeCalculator, NodeVectorSearch} {
		assert.True(t, strings.Contains(mermaid, node), node)
	}
}

func TestRouteAction(t *testing.T) {
	tests := map[string]string{
		"wikipedia":                         NodeWikipedia,
		" VOZ ":                             NodeSpeech,
		"calcular":                          NodeCalculator,
		"buscar_documentos_por_contenido":   NodeVectorSearch,
		"buscar_conceptos_relacionados":     NodeVectorSearch,
		"buscar_fragmentos_especificos":     NodeVectorSearch,
		"analizar_contexto_concepto":        NodeVectorSearch,
		"comparar_documentos_por_conceptos": NodeVectorSearch,
		"":                                  graph.END,
		"volar":                             graph.END,
	}
	for action, want := range tests {
		assert.Equal(t, want, RouteAction(action), action)
	}
}
