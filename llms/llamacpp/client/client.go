package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	ErrEmptyResponse = errors.New("empty response")
	ErrEmptyInput    = errors.New("texts cannot be empty")
)

const (
	defaultBaseURL           = "http://localhost:8080"
	defaultChatEndpoint      = "/v1/chat/completions"
	defaultEmbeddingEndpoint = "/v1/embeddings"
)

// Client talks to the OpenAI-compatible HTTP API of a llama.cpp server.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Option is a function that configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// WithAPIKey sets the bearer token sent to servers started with --api-key.
func WithAPIKey(apiKey string) Option {
	return func(opts *clientOptions) {
		opts.apiKey = apiKey
	}
}

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) Option {
	return func(opts *clientOptions) {
		opts.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(client *http.Client) Option {
	return func(opts *clientOptions) {
		opts.httpClient = client
	}
}

// New creates a new Client with the given options.
func New(opts ...Option) (*Client, error) {
	options := &clientOptions{
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
	}

	for _, opt := range opts {
		opt(options)
	}

	baseURL := strings.TrimSuffix(strings.TrimSpace(options.baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("base url cannot be empty")
	}
	// Accept both "http://host:8080" and "http://host:8080/v1".
	baseURL = strings.TrimSuffix(baseURL, "/v1")

	return &Client{
		apiKey:     options.apiKey,
		baseURL:    baseURL,
		httpClient: options.httpClient,
	}, nil
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest represents a request to the chat completion API.
// RepeatPenalty is a llama.cpp extension to the OpenAI schema. Temperature
// is always sent so that 0 selects greedy sampling instead of the server
// default.
type CompletionRequest struct {
	Model         string                                        `json:"model,omitempty"`
	Messages      []Message                                     `json:"messages"`
	Temperature   float64                                       `json:"temperature"`
	TopP          float64                                       `json:"top_p,omitempty"`
	RepeatPenalty float64                                       `json:"repeat_penalty,omitempty"`
	MaxTokens     int                                           `json:"max_tokens,omitempty"`
	Stop          []string                                      `json:"stop,omitempty"`
	Stream        bool                                          `json:"stream,omitempty"`
	StreamingFunc func(ctx context.Context, chunk []byte) error `json:"-"`
}

// CompletionResponse represents a response from the chat completion API.
type CompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`

	// Result is the text of the first choice, or the concatenated deltas
	// of a streamed response.
	Result string `json:"-"`
}

// Choice represents a choice in the completion response.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	Delta        Delta   `json:"delta"`
	FinishReason string  `json:"finish_reason"`
}

// Delta represents the delta content in streaming responses.
type Delta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// Usage represents token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// EmbeddingRequest represents a request to the embedding API.
type EmbeddingRequest struct {
	Model string   `json:"model,omitempty"`
	Input []string `json:"input"`
}

// EmbeddingResponse represents a response from the embedding API.
type EmbeddingResponse struct {
	Object string      `json:"object"`
	Data   []EmbedData `json:"data"`
	Model  string      `json:"model"`
	Usage  Usage       `json:"usage"`
}

// EmbedData represents embedding data in the response.
type EmbedData struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// APIError is returned for non-200 responses.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("llama.cpp server returned %d: %s", e.StatusCode, e.Message)
}

// CreateCompletion sends a chat completion request.
func (c *Client) CreateCompletion(ctx context.Context, model string, req *CompletionRequest) (*CompletionResponse, error) {
	req.Model = model

	resp, err := c.post(ctx, defaultChatEndpoint, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if req.Stream {
		return c.readStream(ctx, resp.Body, req.StreamingFunc)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var result CompletionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(result.Choices) == 0 {
		return nil, ErrEmptyResponse
	}
	result.Result = result.Choices[0].Message.Content

	return &result, nil
}

// readStream consumes a server-sent event stream of chat completion chunks.
func (c *Client) readStream(ctx context.Context, body io.Reader, fn func(context.Context, []byte) error) (*CompletionResponse, error) {
	var (
		fullContent strings.Builder
		result      CompletionResponse
	)

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}

		var chunk struct {
			ID      string   `json:"id"`
			Model   string   `json:"model"`
			Choices []Choice `json:"choices"`
			Usage   *Usage   `json:"usage,omitempty"`
		}
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}

		if chunk.ID != "" {
			result.ID = chunk.ID
		}
		if chunk.Model != "" {
			result.Model = chunk.Model
		}
		if len(chunk.Choices) > 0 {
			choice := chunk.Choices[0]
			delta := choice.Delta.Content
			fullContent.WriteString(delta)
			if choice.FinishReason != "" {
				result.Choices = []Choice{{FinishReason: choice.FinishReason}}
			}

			if fn != nil && delta != "" {
				if err := fn(ctx, []byte(delta)); err != nil {
					return nil, fmt.Errorf("streaming function error: %w", err)
				}
			}
		}
		if chunk.Usage != nil {
			result.Usage = *chunk.Usage
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}

	result.Result = fullContent.String()
	if len(result.Choices) > 0 {
		result.Choices[0].Message = Message{Role: "assistant", Content: result.Result}
	}
	return &result, nil
}

// CreateEmbedding sends an embedding request.
func (c *Client) CreateEmbedding(ctx context.Context, model string, texts []string) (*EmbeddingResponse, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	resp, err := c.post(ctx, defaultEmbeddingEndpoint, EmbeddingRequest{Model: model, Input: texts})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var result EmbeddingResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrEmptyResponse, len(result.Data), len(texts))
	}

	return &result, nil
}

// post marshals payload and returns the response when the status is 200.
// The caller closes the body.
func (c *Client) post(ctx context.Context, endpoint string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		msg := strings.TrimSpace(string(respBody))
		var apiErr errorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	return resp, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
