package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/kataras/golog"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/socrates-agent/socrates/agent"
	"github.com/socrates-agent/socrates/config"
	"github.com/socrates-agent/socrates/corpus"
	"github.com/socrates-agent/socrates/corpus/chromem"
	"github.com/socrates-agent/socrates/corpus/pgvector"
	"github.com/socrates-agent/socrates/graph"
	"github.com/socrates-agent/socrates/llms/llamacpp"
	"github.com/socrates-agent/socrates/llms/llamacpp/client"
	"github.com/socrates-agent/socrates/log"
	"github.com/socrates-agent/socrates/store"
	"github.com/socrates-agent/socrates/store/memory"
	"github.com/socrates-agent/socrates/store/postgres"
	"github.com/socrates-agent/socrates/store/redis"
	"github.com/socrates-agent/socrates/store/sqlite"
	"github.com/socrates-agent/socrates/tool"
)

func newLogger(w io.Writer, level log.LogLevel) *log.GologLogger {
	gl := golog.New()
	gl.SetOutput(w)
	logger := log.NewGologLogger(gl)
	logger.SetLevel(level)
	return logger
}

// embedderClient is implemented by the chat backends that can also embed.
type embedderClient interface {
	llms.Model
	embeddings.EmbedderClient
}

func buildModel(cfg config.Config) (embedderClient, error) {
	httpClient := &http.Client{Timeout: cfg.LLM.TimeoutDuration()}

	switch strings.ToLower(strings.TrimSpace(cfg.LLM.Provider)) {
	case "", "llamacpp":
		llm, err := llamacpp.New(
			llamacpp.WithBaseURL(cfg.LLM.BaseURL),
			llamacpp.WithModel(cfg.LLM.Model),
			llamacpp.WithAPIKey(cfg.LLM.APIKey),
			llamacpp.WithEmbeddingModel(cfg.Embeddings.Model),
			llamacpp.WithHTTPClient(httpClient),
		)
		if err != nil {
			return nil, fmt.Errorf("create llama.cpp client: %w", err)
		}
		return llm, nil
	case "openai":
		opts := []openai.Option{
			openai.WithToken(cfg.LLM.APIKey),
			openai.WithModel(cfg.LLM.Model),
			openai.WithEmbeddingModel(cfg.Embeddings.Model),
			openai.WithHTTPClient(httpClient),
		}
		if cfg.LLM.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.LLM.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create openai client: %w", err)
		}
		return llm, nil
	default:
		return nil, fmt.Errorf("%w: llm provider %s", errUnsupportedBackend, cfg.LLM.Provider)
	}
}

// buildEmbedder embeds with the chat backend unless a dedicated embeddings
// server is configured.
func buildEmbedder(cfg config.Config, chat embeddings.EmbedderClient) (*embeddings.EmbedderImpl, error) {
	ec := chat
	if cfg.Embeddings.BaseURL != "" {
		llm, err := llamacpp.New(
			llamacpp.WithBaseURL(cfg.Embeddings.BaseURL),
			llamacpp.WithEmbeddingModel(cfg.Embeddings.Model),
			llamacpp.WithHTTPClient(&http.Client{Timeout: cfg.LLM.TimeoutDuration()}),
		)
		if err != nil {
			return nil, fmt.Errorf("create embeddings client: %w", err)
		}
		ec = llm
	}
	return embeddings.NewEmbedder(ec)
}

// corpusBackend is a corpus that can be queried and written to.
type corpusBackend interface {
	corpus.Store
	corpus.Indexer
}

func openCorpus(ctx context.Context, cfg config.Config, embedder corpus.Embedder) (corpusBackend, func(), error) {
	switch strings.ToLower(cfg.Corpus.Backend) {
	case "", "pgvector":
		s, err := pgvector.New(ctx, embedder, pgvector.Options{
			ConnString: cfg.Corpus.PostgresDSN,
			Model:      cfg.Embeddings.Model,
			Dimensions: cfg.Embeddings.Dimensions,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "chromem":
		s, err := chromem.New(embedder, chromem.Options{
			Path:     cfg.Corpus.Path,
			Compress: cfg.Corpus.Compress,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("%w: corpus backend %s", errUnsupportedBackend, cfg.Corpus.Backend)
	}
}

func openCheckpointer(ctx context.Context, cfg config.CheckpointConfig) (store.CheckpointStore, func(), error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "memory":
		return memory.NewMemoryCheckpointStore(), func() {}, nil
	case "sqlite":
		s, err := sqlite.NewSqliteCheckpointStore(sqlite.SqliteOptions{Path: cfg.SQLitePath})
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case "redis":
		s := redis.NewRedisCheckpointStore(redis.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.RedisTTLDuration(),
		})
		return s, func() { _ = s.Close() }, nil
	case "postgres":
		s, err := postgres.NewPostgresCheckpointStore(ctx, postgres.PostgresOptions{ConnString: cfg.PostgresDSN})
		if err != nil {
			return nil, nil, err
		}
		if err := s.InitSchema(ctx); err != nil {
			s.Close()
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: checkpoint backend %s", errUnsupportedBackend, cfg.Backend)
	}
}

// buildTools registers every tool the agent may call. A nil store leaves the
// vector-search actions unregistered.
func buildTools(cfg config.Config, corpusStore corpus.Store) *tool.Registry {
	wikiOpts := []tool.WikipediaOption{
		tool.WithWikipediaLanguage(cfg.Wikipedia.Language),
		tool.WithWikipediaSentences(cfg.Wikipedia.Sentences),
		tool.WithWikipediaUserAgent(cfg.Wikipedia.UserAgent),
		tool.WithWikipediaHTTPClient(&http.Client{Timeout: cfg.Wikipedia.TimeoutDuration()}),
	}
	if cfg.Wikipedia.BaseURL != "" {
		wikiOpts = append(wikiOpts, tool.WithWikipediaBaseURL(cfg.Wikipedia.BaseURL))
	}

	registry := tool.NewRegistry(
		tool.NewWikipediaSearch(wikiOpts...),
		tool.NewCalculator(),
	)
	if cfg.Speech.Enabled {
		registry.Register(tool.NewTextToSpeech(tool.SpeechOptions{
			BaseURL:   cfg.Speech.BaseURL,
			APIKey:    cfg.Speech.APIKey,
			Model:     cfg.Speech.Model,
			Voice:     cfg.Speech.Voice,
			Format:    cfg.Speech.Format,
			OutputDir: cfg.Speech.OutputDir,
		}))
	}
	if corpusStore != nil {
		for _, t := range tool.NewCorpusTools(corpusStore) {
			registry.Register(t)
		}
	}
	return registry
}

func agentConfig(cfg config.Config, model llms.Model, tools *tool.Registry, checkpoints store.CheckpointStore, logger log.Logger) agent.Config {
	return agent.Config{
		Model:        model,
		Tools:        tools,
		Checkpointer: checkpoints,
		Logger:       logger,
		Sampling: agent.Sampling{
			Temperature:   cfg.LLM.Temperature,
			TopP:          cfg.LLM.TopP,
			MaxTokens:     cfg.LLM.MaxTokens,
			RepeatPenalty: cfg.LLM.RepeatPenalty,
		},
		MaxIterations:  cfg.Agent.MaxIterations,
		RecursionLimit: cfg.Agent.RecursionLimit,
		HistoryLimit:   cfg.Agent.HistoryLimit,
		RetryPolicy: &graph.RetryPolicy{
			MaxRetries:      2,
			BackoffStrategy: graph.ExponentialBackoff,
			Retryable:       retryableModelError,
		},
	}
}

// retryableModelError reports whether a model call failed for a transient
// reason worth repeating.
func retryableModelError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusBadGateway || apiErr.StatusCode == http.StatusServiceUnavailable
	}
	var llmErr *llms.Error
	if errors.As(err, &llmErr) {
		switch llmErr.Code {
		case llms.ErrCodeTimeout, llms.ErrCodeProviderUnavailable, llms.ErrCodeRateLimit:
			return true
		}
	}
	return false
}

// app is a fully wired agent plus the resources to release on exit.
type app struct {
	agent   *agent.Agent
	closers []func()
}

func (r *app) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

func (c *cli) newApp(ctx context.Context) (*app, error) {
	rt := &app{}

	model, err := buildModel(c.cfg)
	if err != nil {
		return nil, fmt.Errorf("build model: %w", err)
	}
	embedder, err := buildEmbedder(c.cfg, model)
	if err != nil {
		return nil, fmt.Errorf("build embedder: %w", err)
	}

	corpusStore, closeCorpus, err := openCorpus(ctx, c.cfg, embedder)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	rt.closers = append(rt.closers, closeCorpus)

	checkpoints, closeCheckpoints, err := openCheckpointer(ctx, c.cfg.Checkpoint)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("open checkpoint store: %w", err)
	}
	rt.closers = append(rt.closers, closeCheckpoints)

	rt.agent, err = agent.New(agentConfig(c.cfg, model, buildTools(c.cfg, corpusStore), checkpoints, c.logger.Named("agent")))
	if err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}
