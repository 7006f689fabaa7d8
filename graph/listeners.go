package graph

import (
	"context"
	"sync"
	"time"

	"github.com/socrates-agent/socrates/log"
)

// NodeEvent is the kind of event emitted around a node execution.
type NodeEvent string

const (
	NodeEventStart    NodeEvent = "start"
	NodeEventComplete NodeEvent = "complete"
	NodeEventError    NodeEvent = "error"
)

// NodeListener observes node executions.
type NodeListener[S any] interface {
	OnNodeEvent(ctx context.Context, event NodeEvent, nodeName string, state S, err error)
}

// NodeListenerFunc is a function adapter for NodeListener
type NodeListenerFunc[S any] func(ctx context.Context, event NodeEvent, nodeName string, state S, err error)

// OnNodeEvent implements NodeListener
func (f NodeListenerFunc[S]) OnNodeEvent(ctx context.Context, event NodeEvent, nodeName string, state S, err error) {
	f(ctx, event, nodeName, state, err)
}

// LoggingListener logs node transitions and their duration.
type LoggingListener[S any] struct {
	logger  log.Logger
	mu      sync.Mutex
	started map[string]time.Time
}

// NewLoggingListener creates a listener writing to logger (the default logger when nil).
func NewLoggingListener[S any](logger log.Logger) *LoggingListener[S] {
	return &LoggingListener[S]{
		logger:  log.OrDefault(logger),
		started: make(map[string]time.Time),
	}
}

// OnNodeEvent implements NodeListener
func (l *LoggingListener[S]) OnNodeEvent(ctx context.Context, event NodeEvent, nodeName string, _ S, err error) {
	thread := ""
	if cfg := GetConfig(ctx); cfg != nil {
		thread = cfg.ThreadID
	}
	key := thread + "/" + nodeName

	l.mu.Lock()
	defer l.mu.Unlock()
	switch event {
	case NodeEventStart:
		l.started[key] = time.Now()
		l.logger.Debug("thread=%s node %s started", thread, nodeName)
	case NodeEventComplete:
		l.logger.Debug("thread=%s node %s completed in %s", thread, nodeName, time.Since(l.started[key]))
		delete(l.started, key)
	case NodeEventError:
		l.logger.Error("thread=%s node %s failed after %s: %v", thread, nodeName, time.Since(l.started[key]), err)
		delete(l.started, key)
	}
}
