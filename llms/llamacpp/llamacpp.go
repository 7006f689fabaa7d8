package llamacpp

import (
	"context"
	"errors"
	"strings"

	"github.com/tmc/langchaingo/callbacks"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"

	"github.com/socrates-agent/socrates/llms/llamacpp/client"
)

var ErrEmptyResponse = errors.New("no response")

// LLM is a langchaingo model backed by a llama.cpp server.
type LLM struct {
	client           *client.Client
	model            string
	embeddingModel   string
	CallbacksHandler callbacks.Handler
}

var (
	_ llms.Model                = (*LLM)(nil)
	_ embeddings.EmbedderClient = (*LLM)(nil)
)

// New returns a client for a llama.cpp server.
//
// The server URL defaults to LLAMACPP_BASE_URL or http://localhost:8080.
//
// Example:
//
//	llm, err := llamacpp.New(
//		llamacpp.WithBaseURL("http://localhost:8080"),
//		llamacpp.WithModel("mistral-7b-instruct-v0.2.Q4_K_M"),
//	)
func New(opts ...Option) (*LLM, error) {
	options := &options{
		apiKey:         getEnvOrDefault("LLAMACPP_API_KEY", ""),
		baseURL:        getEnvOrDefault("LLAMACPP_BASE_URL", defaultBaseURL),
		model:          defaultModel,
		embeddingModel: defaultEmbeddingModel,
	}

	for _, opt := range opts {
		opt(options)
	}

	clientOpts := []client.Option{
		client.WithAPIKey(options.apiKey),
		client.WithBaseURL(options.baseURL),
	}
	if options.httpClient != nil {
		clientOpts = append(clientOpts, client.WithHTTPClient(options.httpClient))
	}

	c, err := client.New(clientOpts...)
	if err != nil {
		return nil, err
	}

	return &LLM{
		client:           c,
		model:            options.model,
		embeddingModel:   options.embeddingModel,
		CallbacksHandler: options.callbacksHandler,
	}, nil
}

// Call generates a response from the LLM for the given prompt.
func (o *LLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, o, prompt, options...)
}

// GenerateContent implements the Model interface.
func (o *LLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if o.CallbacksHandler != nil {
		o.CallbacksHandler.HandleLLMGenerateContentStart(ctx, messages)
	}

	opts := &llms.CallOptions{}
	for _, opt := range options {
		opt(opts)
	}

	result, err := o.client.CreateCompletion(ctx, o.modelName(*opts), &client.CompletionRequest{
		Messages:      toMessages(messages),
		Temperature:   opts.Temperature,
		TopP:          opts.TopP,
		RepeatPenalty: opts.RepetitionPenalty,
		MaxTokens:     opts.MaxTokens,
		Stop:          opts.StopWords,
		StreamingFunc: opts.StreamingFunc,
		Stream:        opts.StreamingFunc != nil,
	})
	if err != nil {
		if o.CallbacksHandler != nil {
			o.CallbacksHandler.HandleLLMError(ctx, err)
		}
		return nil, err
	}

	choice := &llms.ContentChoice{
		Content:        result.Result,
		StopReason:     "stop",
		GenerationInfo: make(map[string]any),
	}
	if len(result.Choices) > 0 && result.Choices[0].FinishReason != "" {
		choice.StopReason = result.Choices[0].FinishReason
	}
	if result.Usage.TotalTokens > 0 {
		choice.GenerationInfo["prompt_tokens"] = result.Usage.PromptTokens
		choice.GenerationInfo["completion_tokens"] = result.Usage.CompletionTokens
		choice.GenerationInfo["total_tokens"] = result.Usage.TotalTokens
	}

	resp := &llms.ContentResponse{Choices: []*llms.ContentChoice{choice}}

	if o.CallbacksHandler != nil {
		o.CallbacksHandler.HandleLLMGenerateContentEnd(ctx, resp)
	}

	return resp, nil
}

// CreateEmbedding embeds texts with the server's /v1/embeddings endpoint.
// It satisfies embeddings.EmbedderClient so the LLM can back an embedder.
func (o *LLM) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := o.client.CreateEmbedding(ctx, o.embeddingModel, texts)
	if err != nil {
		return nil, err
	}

	emb := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(emb) {
			return nil, ErrEmptyResponse
		}
		emb[d.Index] = d.Embedding
	}
	return emb, nil
}

func (o *LLM) modelName(opts llms.CallOptions) string {
	if opts.Model != "" {
		return opts.Model
	}
	return o.model
}

// toMessages maps langchaingo roles onto chat completion roles. Only text
// parts are forwarded.
func toMessages(messages []llms.MessageContent) []client.Message {
	out := make([]client.Message, 0, len(messages))
	for _, msg := range messages {
		var role string
		switch msg.Role {
		case llms.ChatMessageTypeAI:
			role = "assistant"
		case llms.ChatMessageTypeSystem:
			role = "system"
		case llms.ChatMessageTypeTool:
			role = "tool"
		default:
			role = "user"
		}

		var content strings.Builder
		for _, part := range msg.Parts {
			if text, ok := part.(llms.TextContent); ok {
				content.WriteString(text.Text)
			}
		}

		out = append(out, client.Message{Role: role, Content: content.String()})
	}
	return out
}
