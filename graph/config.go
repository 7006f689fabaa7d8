package graph

import (
	"context"

	"github.com/socrates-agent/socrates/store"
)

// DefaultRecursionLimit bounds the number of node executions of one invocation.
const DefaultRecursionLimit = 25

// Config carries per-invocation settings.
type Config struct {
	// ThreadID selects the checkpoint thread. Empty disables checkpointing.
	ThreadID string

	// RecursionLimit overrides the compiled limit when positive.
	RecursionLimit int

	// Metadata is copied onto every checkpoint saved by the invocation.
	Metadata map[string]any
}

type configKey struct{}

// WithConfig returns a context carrying cfg.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// GetConfig returns the Config of the running invocation, or nil.
func GetConfig(ctx context.Context) *Config {
	cfg, _ := ctx.Value(configKey{}).(*Config)
	return cfg
}

type compileConfig struct {
	checkpointer   store.CheckpointStore
	recursionLimit int
}

// CompileOption configures a Runnable at compile time.
type CompileOption func(*compileConfig)

// WithCheckpointer saves the state after every node of invocations that carry a thread ID.
func WithCheckpointer(cs store.CheckpointStore) CompileOption {
	return func(c *compileConfig) {
		c.checkpointer = cs
	}
}

// WithRecursionLimit sets the default recursion limit.
func WithRecursionLimit(n int) CompileOption {
	return func(c *compileConfig) {
		if n > 0 {
			c.recursionLimit = n
		}
	}
}
