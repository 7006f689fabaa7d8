package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/socrates-agent/socrates/log"
	"github.com/socrates-agent/socrates/store"
)

// Runnable is a compiled StateGraph.
type Runnable[S any] struct {
	graph          *StateGraph[S]
	checkpointer   store.CheckpointStore
	recursionLimit int
}

// Graph returns the graph the runnable was compiled from.
func (r *Runnable[S]) Graph() *StateGraph[S] {
	return r.graph
}

// Invoke executes the graph from its entry point until END.
func (r *Runnable[S]) Invoke(ctx context.Context, input S) (S, error) {
	return r.InvokeWithConfig(ctx, input, nil)
}

// InvokeWithConfig executes the graph with per-invocation settings. On error
// the state reached so far is returned along with the error, and the
// checkpoints written by the failed invocation are deleted so the thread
// keeps its last completed state.
func (r *Runnable[S]) InvokeWithConfig(ctx context.Context, input S, cfg *Config) (S, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	var saved []string
	state, err := r.run(WithConfig(ctx, cfg), input, cfg, &saved)
	if err != nil && len(saved) > 0 {
		r.rollback(context.WithoutCancel(ctx), saved)
	}
	return state, err
}

func (r *Runnable[S]) run(ctx context.Context, input S, cfg *Config, saved *[]string) (S, error) {
	state := input
	if r.graph.schema != nil {
		var err error
		state, err = r.graph.schema.Update(r.graph.schema.Init(), input)
		if err != nil {
			return input, fmt.Errorf("failed to initialize state with schema: %w", err)
		}
	}

	limit := r.recursionLimit
	if cfg.RecursionLimit > 0 {
		limit = cfg.RecursionLimit
	}

	version, err := r.lastVersion(ctx, cfg.ThreadID)
	if err != nil {
		return state, err
	}

	current := r.graph.entryPoint
	for steps := 0; current != END; steps++ {
		if err := ctx.Err(); err != nil {
			return state, err
		}
		if steps >= limit {
			return state, fmt.Errorf("%w: %d steps without reaching %s", ErrRecursionLimit, limit, END)
		}

		node, ok := r.graph.nodes[current]
		if !ok {
			return state, fmt.Errorf("%w: %s", ErrNodeNotFound, current)
		}

		r.notify(ctx, NodeEventStart, current, state, nil)

		result, err := r.runNode(ctx, node, state)
		if err != nil {
			r.notify(ctx, NodeEventError, current, state, err)
			return state, fmt.Errorf("node %s: %w", current, err)
		}

		state, err = r.merge(state, result)
		if err != nil {
			return state, fmt.Errorf("node %s: schema update failed: %w", current, err)
		}

		r.notify(ctx, NodeEventComplete, current, state, nil)

		if cfg.ThreadID != "" && r.checkpointer != nil {
			version++
			id, err := r.saveCheckpoint(ctx, cfg, current, state, version)
			if err != nil {
				return state, err
			}
			*saved = append(*saved, id)
		}

		current, err = r.next(ctx, current, state)
		if err != nil {
			return state, err
		}
	}

	return state, nil
}

func (r *Runnable[S]) runNode(ctx context.Context, node Node[S], state S) (result S, err error) {
	err = r.graph.retryPolicy.execute(ctx, func() (callErr error) {
		defer func() {
			if p := recover(); p != nil {
				callErr = fmt.Errorf("%w: %v", ErrNodePanic, p)
			}
		}()
		result, callErr = node.Function(ctx, state)
		return callErr
	})
	return result, err
}

func (r *Runnable[S]) merge(current, result S) (S, error) {
	if r.graph.schema == nil {
		return result, nil
	}
	return r.graph.schema.Update(current, result)
}

func (r *Runnable[S]) next(ctx context.Context, from string, state S) (string, error) {
	if ce, ok := r.graph.conditionalEdges[from]; ok {
		next := ce.router(ctx, state)
		if next == "" {
			return "", fmt.Errorf("conditional edge returned empty next node from %s", from)
		}
		if !ce.allows(next) {
			return "", fmt.Errorf("%w: %s -> %s", ErrUnexpectedRoute, from, next)
		}
		return next, nil
	}
	for _, e := range r.graph.edges {
		if e.From == from {
			return e.To, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNoOutgoingEdge, from)
}

func (r *Runnable[S]) notify(ctx context.Context, event NodeEvent, node string, state S, err error) {
	for _, l := range r.graph.listeners {
		l.OnNodeEvent(ctx, event, node, state, err)
	}
}

func (r *Runnable[S]) lastVersion(ctx context.Context, threadID string) (int, error) {
	if threadID == "" || r.checkpointer == nil {
		return 0, nil
	}
	cp, err := r.checkpointer.Latest(ctx, threadID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read checkpoints of thread %s: %w", threadID, err)
	}
	return cp.Version, nil
}

func (r *Runnable[S]) saveCheckpoint(ctx context.Context, cfg *Config, node string, state S, version int) (string, error) {
	cp, err := store.NewCheckpoint(cfg.ThreadID, node, state, version)
	if err != nil {
		return "", err
	}
	for k, v := range cfg.Metadata {
		cp.Metadata[k] = v
	}
	if err := r.checkpointer.Save(ctx, cp); err != nil {
		return "", fmt.Errorf("failed to save checkpoint after %s: %w", node, err)
	}
	return cp.ID, nil
}

// rollback deletes checkpoints newest first.
func (r *Runnable[S]) rollback(ctx context.Context, ids []string) {
	for i := len(ids) - 1; i >= 0; i-- {
		if err := r.checkpointer.Delete(ctx, ids[i]); err != nil {
			log.Warn("failed to roll back checkpoint %s: %v", ids[i], err)
		}
	}
}

// LatestState restores the newest checkpointed state of a thread. found is
// false when the thread has no checkpoints or no checkpointer is configured.
func (r *Runnable[S]) LatestState(ctx context.Context, threadID string) (state S, found bool, err error) {
	if r.checkpointer == nil {
		return state, false, nil
	}
	cp, err := r.checkpointer.Latest(ctx, threadID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return state, false, nil
		}
		return state, false, err
	}
	if err := cp.Decode(&state); err != nil {
		return state, false, err
	}
	return state, true, nil
}

// ClearThread deletes every checkpoint of a thread.
func (r *Runnable[S]) ClearThread(ctx context.Context, threadID string) error {
	if r.checkpointer == nil {
		return nil
	}
	return r.checkpointer.Clear(ctx, threadID)
}
