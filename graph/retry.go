package graph

import (
	"context"
	"strings"
	"time"
)

// BackoffStrategy defines different backoff strategies
type BackoffStrategy int

const (
	// FixedBackoff waits BaseDelay between attempts
	FixedBackoff BackoffStrategy = iota
	// ExponentialBackoff doubles the delay on every attempt
	ExponentialBackoff
	// LinearBackoff grows the delay by BaseDelay on every attempt
	LinearBackoff
)

// RetryPolicy defines how to handle node failures
type RetryPolicy struct {
	MaxRetries      int
	BackoffStrategy BackoffStrategy
	// BaseDelay defaults to one second.
	BaseDelay time.Duration
	// RetryableErrors lists substrings of error messages worth retrying.
	RetryableErrors []string
	// Retryable, when set, decides instead of RetryableErrors.
	Retryable func(error) bool
}

func (p *RetryPolicy) retryable(err error) bool {
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	msg := err.Error()
	for _, pattern := range p.RetryableErrors {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

func (p *RetryPolicy) delay(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	switch p.BackoffStrategy {
	case ExponentialBackoff:
		return base * time.Duration(1<<attempt)
	case LinearBackoff:
		return base * time.Duration(attempt+1)
	default:
		return base
	}
}

// execute runs fn, retrying according to the policy. A nil policy runs fn once.
func (p *RetryPolicy) execute(ctx context.Context, fn func() error) error {
	attempts := 1
	if p != nil {
		attempts += p.MaxRetries
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if p == nil || attempt == attempts-1 || !p.retryable(err) {
			return err
		}
		select {
		case <-time.After(p.delay(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
