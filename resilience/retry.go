package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// BackoffStrategy selects how the delay grows between attempts.
type BackoffStrategy int

const (
	// BackoffExponential multiplies the delay by Multiplier each attempt.
	BackoffExponential BackoffStrategy = iota
	// BackoffLinear adds InitialDelay each attempt.
	BackoffLinear
	// BackoffConstant waits InitialDelay every time.
	BackoffConstant
)

// RetryConfig configures the retry behavior. Zero fields take the
// defaults noted on each.
type RetryConfig struct {
	// MaxAttempts counts the first attempt. Default: 3
	MaxAttempts int

	// InitialDelay is the wait after the first failure. Default: 100ms
	InitialDelay time.Duration

	// MaxDelay caps any single wait. Default: 30s
	MaxDelay time.Duration

	// Multiplier applies to BackoffExponential. Default: 2.0
	Multiplier float64

	Strategy BackoffStrategy

	// Jitter adds up to 25% to each wait.
	Jitter bool

	// RetryIf reports whether err is worth another attempt.
	// Default: DefaultRetryIf
	RetryIf func(err error) bool

	// OnRetry runs after a failed attempt, before the wait.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultRetryIf retries every error except permanent ones and context
// cancellation.
func DefaultRetryIf(err error) bool {
	if err == nil || IsPermanent(err) {
		return false
	}
	return !errors.Is(err, context.Canceled)
}

// Retry re-runs an operation with backoff.
type Retry struct {
	config RetryConfig
}

// NewRetry fills the defaults of config and returns a Retry.
func NewRetry(config RetryConfig) *Retry {
	config.MaxAttempts = orDefault(config.MaxAttempts, 3)
	config.InitialDelay = orDefault(config.InitialDelay, 100*time.Millisecond)
	config.MaxDelay = orDefault(config.MaxDelay, 30*time.Second)
	config.Multiplier = orDefault(config.Multiplier, 2.0)
	if config.RetryIf == nil {
		config.RetryIf = DefaultRetryIf
	}
	return &Retry{config: config}
}

func orDefault[T int | float64 | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}

// Execute runs op until it succeeds, returns a non-retryable error, or the
// attempts run out. Exhausting more than one attempt returns an error
// matching both ErrMaxRetriesExceeded and the last failure.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	attempts := r.config.MaxAttempts

	for attempt := 1; ; attempt++ {
		err := op(ctx)
		switch {
		case err == nil:
			return nil
		case !r.config.RetryIf(err):
			return err
		case attempt == attempts && attempts == 1:
			return err
		case attempt == attempts:
			return fmt.Errorf("%w after %d attempts: %w", ErrMaxRetriesExceeded, attempts, err)
		}

		delay := r.Delay(attempt)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// Delay returns the wait after the given failed attempt, counting from 1.
func (r *Retry) Delay(attempt int) time.Duration {
	base := r.config.InitialDelay
	var delay time.Duration
	switch r.config.Strategy {
	case BackoffConstant:
		delay = base
	case BackoffLinear:
		delay = base * time.Duration(attempt)
	default:
		delay = time.Duration(float64(base) * math.Pow(r.config.Multiplier, float64(attempt-1)))
	}
	delay = min(delay, r.config.MaxDelay)

	if r.config.Jitter && delay >= 4 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		delay += time.Duration(rand.Int64N(int64(delay / 4)))
	}
	return delay
}

// Config returns the retry configuration with defaults applied.
func (r *Retry) Config() RetryConfig {
	return r.config
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
