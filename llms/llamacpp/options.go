package llamacpp

import (
	"net/http"
	"os"

	"github.com/tmc/langchaingo/callbacks"
)

const (
	defaultBaseURL        = "http://localhost:8080"
	defaultModel          = "mistral-7b-instruct-v0.2.Q4_K_M"
	defaultEmbeddingModel = "all-MiniLM-L6-v2"
)

type options struct {
	apiKey           string
	model            string
	embeddingModel   string
	baseURL          string
	httpClient       *http.Client
	callbacksHandler callbacks.Handler
}

// Option is a function that configures an LLM.
type Option func(*options)

// WithAPIKey sets the API key for servers started with --api-key.
func WithAPIKey(apiKey string) Option {
	return func(opts *options) {
		opts.apiKey = apiKey
	}
}

// WithModel sets the chat model name. llama.cpp serves a single model and
// mostly ignores it, but it is echoed back in responses.
func WithModel(model string) Option {
	return func(opts *options) {
		opts.model = model
	}
}

// WithEmbeddingModel sets the model name sent to /v1/embeddings.
func WithEmbeddingModel(model string) Option {
	return func(opts *options) {
		opts.embeddingModel = model
	}
}

// WithHTTPClient sets the HTTP client for the LLM.
func WithHTTPClient(client *http.Client) Option {
	return func(opts *options) {
		opts.httpClient = client
	}
}

// WithCallbacks sets the callbacks handler for the LLM.
func WithCallbacks(handler callbacks.Handler) Option {
	return func(opts *options) {
		opts.callbacksHandler = handler
	}
}

// WithBaseURL sets the server URL.
// Default is "http://localhost:8080".
func WithBaseURL(baseURL string) Option {
	return func(opts *options) {
		opts.baseURL = baseURL
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
