package awscache

import (
	"context"
	"sync"

	"github.com/jonwraymond/clientcache/config"
	"github.com/jonwraymond/clientcache/observe"
	"github.com/jonwraymond/clientcache/resilience"
	"github.com/jonwraymond/clientcache/secret"
)

var (
	defaultMu      sync.Mutex
	defaultSession *Session
)

// SetupDefaultSession replaces the default session with one built from opts.
// The previous default session is not closed.
func SetupDefaultSession(ctx context.Context, opts ...SessionOption) (*Session, error) {
	s, err := NewSession(ctx, opts...)
	if err != nil {
		return nil, err
	}
	defaultMu.Lock()
	defaultSession = s
	defaultMu.Unlock()
	return s, nil
}

// DefaultSession returns the default session, creating it with no options
// on first use.
func DefaultSession(ctx context.Context) (*Session, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultSession != nil {
		return defaultSession, nil
	}
	s, err := NewSession(ctx)
	if err != nil {
		return nil, err
	}
	defaultSession = s
	return s, nil
}

// Client returns a cached client from the default session.
func Client(ctx context.Context, service string, opts ...CallOption) (any, error) {
	s, err := DefaultSession(ctx)
	if err != nil {
		return nil, err
	}
	return s.Client(ctx, service, opts...)
}

// Resource returns a cached resource from the default session.
func Resource(ctx context.Context, service string, opts ...CallOption) (*ServiceResource, error) {
	s, err := DefaultSession(ctx)
	if err != nil {
		return nil, err
	}
	return s.Resource(ctx, service, opts...)
}

// NewSessionFromEnv loads config.Config from the environment and an optional
// .env file and creates a session from it.
func NewSessionFromEnv(ctx context.Context, opts ...SessionOption) (*Session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return NewSessionFromConfig(ctx, cfg, opts...)
}

// NewSessionFromConfig creates a session from cfg. When tracing or metrics
// are enabled it starts an Observer, which Close shuts down. opts are
// applied after the options derived from cfg.
func NewSessionFromConfig(ctx context.Context, cfg config.Config, opts ...SessionOption) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	obsCfg := cfg.ObserveConfig()
	logger := observe.NewLogger(obsCfg.Logging.Level)
	middleware := observe.NewMiddleware(nil, nil, logger)

	var obs observe.Observer
	if obsCfg.Tracing.Enabled || obsCfg.Metrics.Enabled {
		var err error
		if obs, err = observe.NewObserver(ctx, obsCfg); err != nil {
			return nil, err
		}
		if middleware, err = observe.MiddlewareFromObserver(obs); err != nil {
			_ = obs.Shutdown(ctx)
			return nil, err
		}
		logger = obs.Logger()
	}

	executor := resilience.NewExecutor(
		resilience.WithTimeout(cfg.FactoryTimeout),
		resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{MaxAttempts: cfg.FactoryAttempts})),
	)

	resolver := secret.NewResolver(true, secret.NewEnvProvider(), secret.NewFileProvider(cfg.SecretDir))
	defaults := cfg.CacheConfig("")

	base := []SessionOption{
		WithRegion(cfg.Region),
		WithProfile(cfg.Profile),
		WithCredentials(cfg.Credentials()),
		WithDefaultPolicy(defaults.Policy),
		WithDefaultCapacity(defaults.Capacity),
		WithExecutor(executor),
		WithLogger(logger),
		WithMiddleware(middleware),
		WithResolver(resolver),
	}
	if obs != nil {
		base = append(base, WithObserver(obs))
	}
	if cfg.EndpointURL != "" {
		base = append(base, WithDefaultParams(map[string]any{ParamEndpointURL: cfg.EndpointURL}))
	}

	s, err := NewSession(ctx, append(base, opts...)...)
	if err != nil && obs != nil {
		_ = obs.Shutdown(ctx)
	}
	return s, err
}
