package awscache

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/clientcache/cache"
	"github.com/jonwraymond/clientcache/observe"
	"github.com/jonwraymond/clientcache/resilience"
	"github.com/jonwraymond/clientcache/secret"
)

// Session builds and caches service handles for one AWS configuration.
//
// Contract:
//   - Concurrency: safe for concurrent use. Concurrent requests for the
//     same missing key construct the handle once.
//   - Identity: repeated requests with equal parameters and policy return
//     the same handle until it is evicted.
//   - Isolation: each Session owns its caches.
type Session struct {
	id            string
	awsConfig     aws.Config
	registry      *Registry
	executor      *resilience.Executor
	middleware    *observe.Middleware
	logger        observe.Logger
	resolver      *secret.Resolver
	collector     *observe.CacheCollector
	observer      observe.Observer
	defaultPolicy cache.PolicyType
	defaultParams cache.Params

	// caches is fixed after NewSession: kind → policy → cache.
	caches map[string]map[cache.PolicyType]*cache.Cache[any]
	group  singleflight.Group
}

type sessionOptions struct {
	region          string
	profile         string
	credentials     secret.Credentials
	awsConfig       *aws.Config
	loadOptions     []func(*awsconfig.LoadOptions) error
	registry        *Registry
	executor        *resilience.Executor
	middleware      *observe.Middleware
	logger          observe.Logger
	resolver        *secret.Resolver
	collector       *observe.CacheCollector
	observer        observe.Observer
	defaultPolicy   cache.PolicyType
	defaultCapacity int
	defaultParams   cache.Params
}

// SessionOption configures a Session.
type SessionOption func(*sessionOptions)

// WithRegion sets the default region.
func WithRegion(region string) SessionOption {
	return func(o *sessionOptions) { o.region = region }
}

// WithProfile selects a shared config profile.
func WithProfile(profile string) SessionOption {
	return func(o *sessionOptions) { o.profile = profile }
}

// WithCredentials sets explicit credentials. Fields may hold ${VAR} or
// secretref values, resolved when the session is created.
func WithCredentials(creds secret.Credentials) SessionOption {
	return func(o *sessionOptions) { o.credentials = creds }
}

// WithAWSConfig uses cfg instead of loading the default configuration.
// Region and credentials options still override it.
func WithAWSConfig(cfg aws.Config) SessionOption {
	return func(o *sessionOptions) { o.awsConfig = &cfg }
}

// WithLoadOptions adds options for config.LoadDefaultConfig.
func WithLoadOptions(opts ...func(*awsconfig.LoadOptions) error) SessionOption {
	return func(o *sessionOptions) { o.loadOptions = append(o.loadOptions, opts...) }
}

// WithRegistry sets the factory registry.
// Default: DefaultRegistry
func WithRegistry(r *Registry) SessionOption {
	return func(o *sessionOptions) { o.registry = r }
}

// WithExecutor guards configuration loading and handle construction.
// Default: a single attempt with no timeout.
func WithExecutor(e *resilience.Executor) SessionOption {
	return func(o *sessionOptions) { o.executor = e }
}

// WithMiddleware sets the construction tracing, metrics and logging.
// Default: observe.NopMiddleware with the session logger.
func WithMiddleware(m *observe.Middleware) SessionOption {
	return func(o *sessionOptions) { o.middleware = m }
}

// WithLogger sets the session logger, also used for AWS SDK log output.
func WithLogger(l observe.Logger) SessionOption {
	return func(o *sessionOptions) { o.logger = l }
}

// WithResolver sets the resolver for credential values and string
// construction parameters.
// Default: secret.NewDefaultResolver
func WithResolver(r *secret.Resolver) SessionOption {
	return func(o *sessionOptions) { o.resolver = r }
}

// WithCollector reports the session's cache sizes through cc.
func WithCollector(cc *observe.CacheCollector) SessionOption {
	return func(o *sessionOptions) { o.collector = cc }
}

// WithObserver hands obs to the session; Close shuts it down.
func WithObserver(obs observe.Observer) SessionOption {
	return func(o *sessionOptions) { o.observer = obs }
}

// WithDefaultPolicy sets the policy used when a call names none.
// Default: cache.DefaultPolicy
func WithDefaultPolicy(p cache.PolicyType) SessionOption {
	return func(o *sessionOptions) { o.defaultPolicy = p }
}

// WithDefaultCapacity sets the initial capacity of every session cache.
// Default: cache.DefaultCapacity
func WithDefaultCapacity(n int) SessionOption {
	return func(o *sessionOptions) { o.defaultCapacity = n }
}

// WithDefaultParams sets parameters merged beneath every call's parameters.
func WithDefaultParams(params cache.Params) SessionOption {
	return func(o *sessionOptions) { o.defaultParams = maps.Clone(params) }
}

// NewSession resolves credentials, loads the AWS configuration and creates
// the session caches.
func NewSession(ctx context.Context, opts ...SessionOption) (*Session, error) {
	o := sessionOptions{registry: DefaultRegistry}
	for _, opt := range opts {
		opt(&o)
	}

	policy, err := cache.ParsePolicyType(string(o.defaultPolicy))
	if err != nil {
		return nil, err
	}
	if o.defaultCapacity < 0 {
		return nil, fmt.Errorf("%w: got %d", cache.ErrInvalidCapacity, o.defaultCapacity)
	}
	if o.registry == nil {
		o.registry = DefaultRegistry
	}
	if o.logger == nil {
		o.logger = observe.NopLogger()
	}
	if o.middleware == nil {
		o.middleware = observe.NewMiddleware(nil, nil, o.logger)
	}
	if o.resolver == nil {
		if o.resolver, err = secret.NewDefaultResolver(); err != nil {
			return nil, err
		}
	}

	s := &Session{
		id:            uuid.NewString(),
		registry:      o.registry,
		executor:      o.executor,
		middleware:    o.middleware,
		resolver:      o.resolver,
		collector:     o.collector,
		observer:      o.observer,
		defaultPolicy: policy,
		defaultParams: o.defaultParams,
	}
	s.logger = o.logger.WithHandle(observe.HandleMeta{Session: s.id})

	creds, err := o.credentials.Resolve(ctx, o.resolver)
	if err != nil {
		return nil, fmt.Errorf("awscache: credentials: %w", err)
	}
	if s.awsConfig, err = s.loadConfig(ctx, o, creds); err != nil {
		return nil, err
	}

	if err := s.buildCaches(o.defaultCapacity); err != nil {
		return nil, err
	}

	s.logger.Debug(ctx, "session created",
		observe.Field{Key: "aws.region", Value: s.awsConfig.Region},
		observe.Field{Key: "aws.profile", Value: o.profile},
		observe.Field{Key: "cache.policy", Value: string(policy)},
	)
	return s, nil
}

func (s *Session) loadConfig(ctx context.Context, o sessionOptions, creds secret.Credentials) (aws.Config, error) {
	smithyLogger := observe.NewSmithyLogger(o.logger)

	if o.awsConfig != nil {
		cfg := o.awsConfig.Copy()
		if o.region != "" {
			cfg.Region = o.region
		}
		if p := creds.Provider(); p != nil {
			cfg.Credentials = aws.NewCredentialsCache(p)
		}
		if cfg.Logger == nil {
			cfg.Logger = smithyLogger
		}
		return cfg, nil
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithLogger(smithyLogger),
	}
	if o.region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(o.region))
	}
	if o.profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(o.profile))
	}
	if p := creds.Provider(); p != nil {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(p))
	}
	loadOpts = append(loadOpts, o.loadOptions...)

	cfg, err := resilience.Do(ctx, s.executor, func(ctx context.Context) (aws.Config, error) {
		return awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	})
	if err != nil {
		return aws.Config{}, errors.Join(ErrLoadConfig, err)
	}
	return cfg, nil
}

func (s *Session) buildCaches(capacity int) error {
	s.caches = make(map[string]map[cache.PolicyType]*cache.Cache[any], len(Kinds))
	for _, kind := range Kinds {
		s.caches[kind] = make(map[cache.PolicyType]*cache.Cache[any], len(cache.PolicyTypes))
		for _, policy := range cache.PolicyTypes {
			name := kind + "." + string(policy)
			meta := observe.HandleMeta{Kind: kind, Cache: name, Policy: string(policy), Session: s.id}
			cfg := cache.Config{Name: name, Policy: policy, Capacity: capacity}
			hooks := cache.WithHooks(observe.CacheHooks[any](s.logger, s.middleware.Metrics(), meta))

			var (
				c   *cache.Cache[any]
				err error
			)
			if kind == KindClient {
				c, err = NewClientCache(cfg, hooks)
			} else {
				c, err = NewResourceCache(cfg, hooks)
			}
			if err != nil {
				return err
			}
			s.caches[kind][policy] = c
			if s.collector != nil {
				s.collector.Track(sessionCache{c, s.id})
			}
		}
	}
	return nil
}

// sessionCache qualifies a cache name with the session ID for the collector.
type sessionCache struct {
	*cache.Cache[any]
	session string
}

func (c sessionCache) Name() string { return c.session + "/" + c.Cache.Name() }

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Region returns the configured default region.
func (s *Session) Region() string { return s.awsConfig.Region }

// AWSConfig returns a copy of the session's base AWS configuration.
func (s *Session) AWSConfig() aws.Config { return s.awsConfig.Copy() }

// Cache returns the session cache for kind and policy.
func (s *Session) Cache(kind string, policy cache.PolicyType) (*cache.Cache[any], error) {
	byPolicy, ok := s.caches[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	if policy == "" {
		policy = s.defaultPolicy
	}
	c, ok := byPolicy[policy]
	if !ok {
		return nil, fmt.Errorf("%w: %q", cache.ErrInvalidPolicy, string(policy))
	}
	return c, nil
}

// Clear empties every session cache.
func (s *Session) Clear() {
	for _, byPolicy := range s.caches {
		for _, c := range byPolicy {
			c.Clear()
		}
	}
}

// Close stops size reporting, closes the resolver's providers and shuts down
// the observer, if any. Cached handles stay usable.
func (s *Session) Close(ctx context.Context) error {
	if s.collector != nil {
		for _, byPolicy := range s.caches {
			for _, c := range byPolicy {
				s.collector.Untrack(s.id + "/" + c.Name())
			}
		}
	}
	var errs []error
	if err := s.resolver.Close(); err != nil {
		errs = append(errs, err)
	}
	if s.observer != nil {
		if err := s.observer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
