package llamacpp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
)

// TestLLM_Create tests the LLM creation with various options.
func TestLLM_Create(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		wantErr bool
	}{
		{
			name: "defaults",
			opts: nil,
		},
		{
			name: "with base url and model",
			opts: []Option{
				WithBaseURL("http://127.0.0.1:8080/v1"),
				WithModel("mistral-7b-instruct"),
				WithEmbeddingModel("all-MiniLM-L6-v2"),
			},
		},
		{
			name:    "empty base url",
			opts:    []Option{WithBaseURL("")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm, err := New(tt.opts...)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && llm == nil {
				t.Error("New() returned nil LLM")
			}
		})
	}
}

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	Temperature   float64 `json:"temperature"`
	TopP          float64 `json:"top_p"`
	RepeatPenalty float64 `json:"repeat_penalty"`
	MaxTokens     int     `json:"max_tokens"`
	Stream        bool    `json:"stream"`
}

func TestLLM_GenerateContent(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"id":"c","choices":[{"index":0,"message":{"role":"assistant","content":"THINK: ..."},"finish_reason":"length"}],"usage":{"prompt_tokens":40,"completion_tokens":218,"total_tokens":258}}`))
	}))
	defer server.Close()

	llm, err := New(WithBaseURL(server.URL), WithModel("mistral"))
	require.NoError(t, err)

	resp, err := llm.GenerateContent(context.Background(), []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, "Eres Sócrates."),
		llms.TextParts(llms.ChatMessageTypeHuman, "¿Qué es la justicia?"),
		llms.TextParts(llms.ChatMessageTypeAI, "¿Qué crees tú?"),
	},
		llms.WithTemperature(0.4),
		llms.WithTopP(0.9),
		llms.WithRepetitionPenalty(1.1),
		llms.WithMaxTokens(218),
	)
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)

	assert.Equal(t, "THINK: ...", resp.Choices[0].Content)
	assert.Equal(t, "length", resp.Choices[0].StopReason)
	assert.Equal(t, 258, resp.Choices[0].GenerationInfo["total_tokens"])

	assert.Equal(t, "mistral", got.Model)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "assistant", got.Messages[2].Role)
	assert.InDelta(t, 0.4, got.Temperature, 1e-9)
	assert.InDelta(t, 0.9, got.TopP, 1e-9)
	assert.InDelta(t, 1.1, got.RepeatPenalty, 1e-9)
	assert.Equal(t, 218, got.MaxTokens)
	assert.False(t, got.Stream)
}

func TestLLM_GenerateContentStreaming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"Hola\"}}]}\n\n"))
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\", amigo\"},\"finish_reason\":\"stop\"}]}\n\n"))
		w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer server.Close()

	llm, err := New(WithBaseURL(server.URL))
	require.NoError(t, err)

	var streamed string
	resp, err := llm.GenerateContent(context.Background(),
		[]llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, "saluda")},
		llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			streamed += string(chunk)
			return nil
		}),
	)
	require.NoError(t, err)
	assert.Equal(t, "Hola, amigo", resp.Choices[0].Content)
	assert.Equal(t, "Hola, amigo", streamed)
	assert.Equal(t, "stop", resp.Choices[0].StopReason)
}

func TestLLM_Call(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Sí."}}]}`))
	}))
	defer server.Close()

	llm, err := New(WithBaseURL(server.URL))
	require.NoError(t, err)

	out, err := llm.Call(context.Background(), "¿Es la virtud enseñable?")
	require.NoError(t, err)
	assert.Equal(t, "Sí.", out)
}

func TestLLM_GenerateContentError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	llm, err := New(WithBaseURL(server.URL))
	require.NoError(t, err)

	_, err = llm.GenerateContent(context.Background(),
		[]llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, "x")})
	assert.ErrorContains(t, err, "boom")
}

func TestLLM_CreateEmbedding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "all-MiniLM-L6-v2", req.Model)

		// Reply in reverse order; results are placed by index.
		type item struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}
		data := make([]item, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, item{Index: i, Embedding: []float32{float32(i), float32(len(req.Input[i]))}})
		}
		json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data})
	}))
	defer server.Close()

	llm, err := New(WithBaseURL(server.URL))
	require.NoError(t, err)

	emb, err := llm.CreateEmbedding(context.Background(), []string{"alma", "virtud"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0, 4}, {1, 6}}, emb)

	embedder, err := embeddings.NewEmbedder(llm)
	require.NoError(t, err)
	vec, err := embedder.EmbedQuery(context.Background(), "ser")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 3}, vec)
}
