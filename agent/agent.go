package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"

	"github.com/socrates-agent/socrates/graph"
	"github.com/socrates-agent/socrates/log"
	"github.com/socrates-agent/socrates/prompts"
	"github.com/socrates-agent/socrates/store"
	"github.com/socrates-agent/socrates/store/memory"
	"github.com/socrates-agent/socrates/tool"
)

// Node names.
const (
	NodeLLMCall      = "llm_call"
	NodeWikipedia    = "wikipedia"
	NodeSpeech       = "speech"
	NodeCalculator   = "calculator"
	NodeVectorSearch = "vector_search"
)

// DefaultMaxIterations is the number of model calls per turn allowed to
// request a tool.
const DefaultMaxIterations = 6

// Observation texts.
const (
	NoVectorInput = "No se recibió texto para búsqueda vectorial."
	toolMissing   = "Herramienta no disponible: "
)

var (
	// ErrNoModel is returned by New without a model.
	ErrNoModel = errors.New("agent: model is required")

	// ErrEmptyQuestion is returned by Ask for a blank question.
	ErrEmptyQuestion = errors.New("agent: empty question")

	// ErrNoChoices is returned when the model answers without choices.
	ErrNoChoices = errors.New("agent: model returned no choices")
)

// Sampling holds the generation parameters of every model call.
type Sampling struct {
	Temperature   float64
	TopP          float64
	MaxTokens     int
	RepeatPenalty float64
}

// DefaultSampling returns the parameters tuned for a 7B Spanish Mistral.
func DefaultSampling() Sampling {
	return Sampling{
		Temperature:   0.4,
		TopP:          0.9,
		MaxTokens:     218,
		RepeatPenalty: 1.1,
	}
}

func (s Sampling) options() []llms.CallOption {
	return []llms.CallOption{
		llms.WithTemperature(s.Temperature),
		llms.WithTopP(s.TopP),
		llms.WithMaxTokens(s.MaxTokens),
		llms.WithRepetitionPenalty(s.RepeatPenalty),
	}
}

// Config configures an Agent.
type Config struct {
	// Model answers as Socrates. Required.
	Model llms.Model
	// Tools maps actions to tools. Missing tools are reported to the model.
	Tools *tool.Registry
	// Checkpointer persists threads. Defaults to an in-memory store.
	Checkpointer store.CheckpointStore
	Logger       log.Logger
	// Sampling defaults to DefaultSampling when zero.
	Sampling       Sampling
	MaxIterations  int
	RecursionLimit int
	// HistoryLimit caps the thread messages sent to the model. Zero sends all.
	HistoryLimit int
	RetryPolicy    *graph.RetryPolicy
	Listeners      []graph.NodeListener[State]
}

// Reply is the outcome of one user turn.
type Reply struct {
	ThreadID string
	Answer   string
	Steps    []Step
	Messages []llms.MessageContent
}

// Agent is the Socratic ReAct agent.
type Agent struct {
	model         llms.Model
	tools         *tool.Registry
	logger        log.Logger
	options       []llms.CallOption
	maxIterations int
	historyLimit  int

	graph    *graph.StateGraph[State]
	runnable *graph.Runnable[State]
}

// New builds and compiles the agent graph.
func New(cfg Config) (*Agent, error) {
	if cfg.Model == nil {
		return nil, ErrNoModel
	}
	if cfg.Tools == nil {
		cfg.Tools = tool.NewRegistry()
	}
	if cfg.Checkpointer == nil {
		cfg.Checkpointer = memory.NewMemoryCheckpointStore()
	}
	if cfg.Sampling == (Sampling{}) {
		cfg.Sampling = DefaultSampling()
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}

	a := &Agent{
		model:         cfg.Model,
		tools:         cfg.Tools,
		logger:        log.OrDefault(cfg.Logger),
		options:       cfg.Sampling.options(),
		maxIterations: cfg.MaxIterations,
		historyLimit:  cfg.HistoryLimit,
	}

	g := graph.NewStateGraph[State]()
	g.SetSchema(graph.NewStructSchema(State{}, mergeState))
	g.AddNode(NodeLLMCall, "Socrates reasons and may request a tool", a.callModel)
	g.AddNode(NodeWikipedia, "Encyclopedia lookup", a.toolNode("Información de Wikipedia", prompts.FollowupWikipedia))
	g.AddNode(NodeSpeech, "Text to speech", a.toolNode("Audio generado", prompts.FollowupSpeech))
	g.AddNode(NodeCalculator, "Arithmetic and date calculations", a.toolNode("Resultado del cálculo", prompts.FollowupCalculator))
	g.AddNode(NodeVectorSearch, "Semantic search over the Platonic corpus", a.vectorSearch)

	g.SetEntryPoint(NodeLLMCall)
	g.AddConditionalEdge(NodeLLMCall, func(ctx context.Context, s State) string {
		return RouteAction(s.Action)
	}, NodeWikipedia, NodeSpeech, NodeCalculator, NodeVectorSearch, graph.END)
	for _, n := range []string{NodeWikipedia, NodeSpeech, NodeCalculator, NodeVectorSearch} {
		g.AddEdge(n, NodeLLMCall)
	}

	if cfg.RetryPolicy != nil {
		g.SetRetryPolicy(cfg.RetryPolicy)
	}
	g.AddListener(graph.NewLoggingListener[State](a.logger))
	for _, l := range cfg.Listeners {
		g.AddListener(l)
	}

	runnable, err := g.Compile(
		graph.WithCheckpointer(cfg.Checkpointer),
		graph.WithRecursionLimit(cfg.RecursionLimit),
	)
	if err != nil {
		return nil, fmt.Errorf("compile agent graph: %w", err)
	}
	a.graph = g
	a.runnable = runnable
	return a, nil
}

// RouteAction maps an action to the node that serves it, or graph.END.
func RouteAction(action string) string {
	switch action = tool.NormalizeAction(action); {
	case action == tool.ActionWikipedia:
		return NodeWikipedia
	case action == tool.ActionSpeech:
		return NodeSpeech
	case action == tool.ActionCalculator:
		return NodeCalculator
	case tool.IsVectorAction(action):
		return NodeVectorSearch
	default:
		return graph.END
	}
}

// Graph returns the agent graph, e.g. for graph.NewExporter.
func (a *Agent) Graph() *graph.StateGraph[State] {
	return a.graph
}

// Ask runs one user turn on a thread. An empty threadID starts a new thread.
func (a *Agent) Ask(ctx context.Context, threadID, question string) (*Reply, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if threadID == "" {
		threadID = uuid.NewString()
	}

	prev, _, err := a.runnable.LatestState(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("load thread %s: %w", threadID, err)
	}
	input := State{
		Messages: appendMessages(prev.Messages, []llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeHuman, question),
		}),
	}

	final, err := a.runnable.InvokeWithConfig(ctx, input, &graph.Config{
		ThreadID: threadID,
		Metadata: map[string]any{"question": question},
	})
	if err != nil {
		return nil, err
	}

	return &Reply{
		ThreadID: threadID,
		Answer:   lastAnswer(final.Messages),
		Steps:    final.Steps,
		Messages: final.Messages,
	}, nil
}

// History returns the messages of a thread, oldest first.
func (a *Agent) History(ctx context.Context, threadID string) ([]llms.MessageContent, error) {
	s, _, err := a.runnable.LatestState(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("load thread %s: %w", threadID, err)
	}
	return s.Messages, nil
}

// Reset forgets a thread.
func (a *Agent) Reset(ctx context.Context, threadID string) error {
	if err := a.runnable.ClearThread(ctx, threadID); err != nil {
		return fmt.Errorf("clear thread %s: %w", threadID, err)
	}
	return nil
}

func lastAnswer(messages []llms.MessageContent) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == llms.ChatMessageTypeAI {
			return MessageText(messages[i])
		}
	}
	return ""
}

// callModel is the THINK step. Once the iteration budget is spent the model
// gets the base prompt and its reply is not parsed, forcing an answer.
func (a *Agent) callModel(ctx context.Context, s State) (State, error) {
	full := s.Iterations < a.maxIterations
	history := recentMessages(s.Messages, a.historyLimit)
	messages := make([]llms.MessageContent, 0, len(history)+1)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, prompts.SystemPrompt(full)))
	messages = append(messages, history...)

	resp, err := a.model.GenerateContent(ctx, messages, a.options...)
	if err != nil {
		return State{}, fmt.Errorf("model call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return State{}, ErrNoChoices
	}

	reply := CleanReply(resp.Choices[0].Content)
	a.logger.Debug("model reply (iteration %d): %q", s.Iterations+1, reply)

	update := State{
		Messages:   []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeAI, reply)},
		Iterations: 1,
	}
	if !full {
		a.logger.Warn("iteration budget of %d spent, answering without tools", a.maxIterations)
		return update, nil
	}

	d, ok, err := ParseDecision(reply)
	if err != nil {
		a.logger.Warn("ignoring malformed action: %v", err)
		return update, nil
	}
	if ok {
		update.Action = d.Action
		update.ToolInput = d.Input
	}
	return update, nil
}

// run calls the tool registered for action. Failures become observation text.
func (a *Agent) run(ctx context.Context, action, input string) string {
	t, ok := a.tools.Lookup(action)
	if !ok {
		a.logger.Warn("no tool registered for action %s", action)
		return toolMissing + action
	}

	a.logger.Info("%s(%q)", action, input)
	out, err := t.Call(ctx, input)
	if err != nil {
		a.logger.Error("%s failed: %v", action, err)
		return "Error: " + err.Error()
	}
	return strings.TrimSpace(out)
}

func observation(text, followupKey string) llms.MessageContent {
	if f := prompts.Followup(followupKey); f != "" {
		text += "\n\n" + f
	}
	return llms.TextParts(llms.ChatMessageTypeAI, text)
}

// toolNode builds the ACT and OBSERVE steps of a single-tool node.
func (a *Agent) toolNode(prefix, followupKey string) graph.NodeFunc[State] {
	return func(ctx context.Context, s State) (State, error) {
		action := tool.NormalizeAction(s.Action)
		obs := a.run(ctx, action, s.ToolInput)
		return State{
			Messages:     []llms.MessageContent{observation(prefix+": "+obs, followupKey)},
			LastToolUsed: followupKey,
			Steps:        []Step{{Action: action, Input: s.ToolInput, Observation: obs}},
		}, nil
	}
}

func (a *Agent) vectorSearch(ctx context.Context, s State) (State, error) {
	action := tool.NormalizeAction(s.Action)
	update := State{LastToolUsed: action}

	if strings.TrimSpace(s.ToolInput) == "" {
		update.Messages = []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeAI, NoVectorInput)}
		update.Steps = []Step{{Action: action, Observation: NoVectorInput}}
		return update, nil
	}

	obs := a.run(ctx, action, s.ToolInput)
	msg := llms.TextParts(llms.ChatMessageTypeAI, obs)
	if obs != tool.NoResults {
		msg = observation(obs, action)
	}
	update.Messages = []llms.MessageContent{msg}
	update.Steps = []Step{{Action: action, Input: s.ToolInput, Observation: obs}}
	return update, nil
}
