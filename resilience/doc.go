// Package resilience guards handle construction with retries and timeouts.
//
// Building a handle may resolve credentials or read shared configuration
// files, which can be slow or fail transiently. An Executor composes a
// per-attempt Timeout with a Retry policy:
//
//	exec := resilience.NewExecutor(
//	    resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{
//	        MaxAttempts:  3,
//	        InitialDelay: 100 * time.Millisecond,
//	    })),
//	    resilience.WithTimeout(5*time.Second),
//	)
//
//	client, err := resilience.Do(ctx, exec, func(ctx context.Context) (*s3.Client, error) {
//	    return build(ctx)
//	})
//
// Errors marked with Permanent are never retried.
package resilience
