package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultTimeout bounds an attempt when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// TimeoutConfig configures a Timeout.
type TimeoutConfig struct {
	// Timeout bounds one attempt. Default: DefaultTimeout
	Timeout time.Duration
}

// Timeout gives each operation its own deadline.
type Timeout struct {
	config TimeoutConfig
}

// NewTimeout returns a Timeout, filling in DefaultTimeout.
func NewTimeout(config TimeoutConfig) *Timeout {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	return &Timeout{config: config}
}

// Execute runs op under a deadline and returns as soon as either finishes.
// An expired deadline yields an error matching ErrTimeout while op, which
// sees its context canceled, is left to return on its own. Deadlines and
// cancellation inherited from ctx come back unchanged.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	ctx, cancel := context.WithTimeoutCause(ctx, t.config.Timeout, ErrTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- op(ctx) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	if errors.Is(err, context.DeadlineExceeded) && errors.Is(context.Cause(ctx), ErrTimeout) {
		return fmt.Errorf("%w after %s", ErrTimeout, t.config.Timeout)
	}
	return err
}

// Config returns the timeout configuration.
func (t *Timeout) Config() TimeoutConfig {
	return t.config
}

// ExecuteWithTimeout runs op once under timeout.
func ExecuteWithTimeout(ctx context.Context, timeout time.Duration, op func(context.Context) error) error {
	return NewTimeout(TimeoutConfig{Timeout: timeout}).Execute(ctx, op)
}
