package resilience

import (
	"context"
	"sync"
	"time"
)

// Executor composes a retry policy around a per-attempt timeout.
// The zero Executor, and a nil *Executor, run the operation directly.
type Executor struct {
	retry   *Retry
	timeout *Timeout
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// NewExecutor creates a new resilience executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithRetry adds retry logic to the executor.
func WithRetry(r *Retry) ExecutorOption {
	return func(e *Executor) {
		e.retry = r
	}
}

// WithTimeout bounds each attempt to timeout. A non-positive timeout
// disables it.
func WithTimeout(timeout time.Duration) ExecutorOption {
	return func(e *Executor) {
		if timeout <= 0 {
			e.timeout = nil
			return
		}
		e.timeout = NewTimeout(TimeoutConfig{Timeout: timeout})
	}
}

// WithTimeoutConfig adds timeout with custom config to the executor.
func WithTimeoutConfig(t *Timeout) ExecutorOption {
	return func(e *Executor) {
		e.timeout = t
	}
}

// Retry returns the configured retry policy, or nil.
func (e *Executor) Retry() *Retry { return e.retry }

// Timeout returns the configured timeout, or nil.
func (e *Executor) Timeout() *Timeout { return e.timeout }

// Execute runs op through the configured patterns. The timeout applies to
// each attempt; the retry wraps the attempts.
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	if e == nil {
		return op(ctx)
	}

	execute := op

	if e.timeout != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return e.timeout.Execute(ctx, inner)
		}
	}

	if e.retry != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return e.retry.Execute(ctx, inner)
		}
	}

	return execute(ctx)
}

// Do runs fn through e and returns the value of the successful attempt.
//
// An attempt abandoned by the timeout may still finish later; its value is
// discarded and never returned.
func Do[T any](ctx context.Context, e *Executor, fn func(context.Context) (T, error)) (T, error) {
	var (
		mu     sync.Mutex
		result T
		gen    int
	)

	err := e.Execute(ctx, func(ctx context.Context) error {
		mu.Lock()
		gen++
		attempt := gen
		mu.Unlock()

		v, err := fn(ctx)
		if err != nil {
			return err
		}

		mu.Lock()
		if attempt == gen {
			result = v
		}
		mu.Unlock()
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}

	mu.Lock()
	defer mu.Unlock()
	return result, nil
}
