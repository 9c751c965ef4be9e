package awscache

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/jonwraymond/clientcache/cache"
	"github.com/jonwraymond/clientcache/observe"
	"github.com/jonwraymond/clientcache/resilience"
	"github.com/jonwraymond/clientcache/secret"
)

type callOptions struct {
	policy   cache.PolicyType
	capacity int
	params   cache.Params
}

// CallOption configures one Client or Resource call.
type CallOption func(*callOptions)

// WithPolicy selects the LRU or LFU cache for this call.
func WithPolicy(p cache.PolicyType) CallOption {
	return func(o *callOptions) { o.policy = p }
}

// WithCapacity resizes the selected cache before the lookup. Shrinking
// evicts entries.
func WithCapacity(n int) CallOption {
	return func(o *callOptions) { o.capacity = n }
}

// WithParams adds construction parameters. Later calls override earlier
// ones; service_name is always the requested service.
func WithParams(params cache.Params) CallOption {
	return func(o *callOptions) {
		if o.params == nil {
			o.params = make(cache.Params, len(params))
		}
		maps.Copy(o.params, params)
	}
}

// Client returns the cached client for service and the call's parameters,
// constructing and caching it on a miss.
func (s *Session) Client(ctx context.Context, service string, opts ...CallOption) (any, error) {
	return s.handle(ctx, KindClient, service, opts)
}

// Resource returns the cached resource for service and the call's
// parameters, constructing and caching it on a miss.
func (s *Session) Resource(ctx context.Context, service string, opts ...CallOption) (*ServiceResource, error) {
	h, err := s.handle(ctx, KindResource, service, opts)
	if err != nil {
		return nil, err
	}
	return h.(*ServiceResource), nil
}

// WithCallCredentials builds the handle with explicit credentials instead of
// the session's. They are part of the key, so each credential set gets its
// own handle; the secret and token never appear in key labels.
func WithCallCredentials(creds secret.Credentials) CallOption {
	return WithParams(cache.Params(creds.Params()))
}

// ClientAs is Client with the result asserted to T, e.g. *s3.Client.
func ClientAs[T any](ctx context.Context, s *Session, service string, opts ...CallOption) (T, error) {
	var zero T
	h, err := s.Client(ctx, service, opts...)
	if err != nil {
		return zero, err
	}
	c, ok := h.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %q client is %T", ErrUnexpectedType, service, h)
	}
	return c, nil
}

func (s *Session) handle(ctx context.Context, kind, service string, opts []CallOption) (any, error) {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}

	c, err := s.Cache(kind, o.policy)
	if err != nil {
		return nil, err
	}
	if o.capacity != 0 && o.capacity != c.Capacity() {
		if err := c.Resize(o.capacity); err != nil {
			return nil, err
		}
	}

	params := make(cache.Params, len(s.defaultParams)+len(o.params)+1)
	maps.Copy(params, s.defaultParams)
	maps.Copy(params, o.params)
	params[ParamServiceName] = service

	resolved, err := s.resolver.ResolveParams(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("awscache: %s %q: %w", kind, service, err)
	}
	params = resolved

	params, err = NormalizeParams(params)
	if err != nil {
		return nil, fmt.Errorf("awscache: %s %q: %w", kind, service, err)
	}
	key, err := KeySchema(kind).NewKey(params)
	if err != nil {
		return nil, err
	}
	if h, ok := c.Lookup(key); ok {
		return h, nil
	}

	flight := c.Name() + "/" + key.Digest().String()
	h, err, _ := s.group.Do(flight, func() (any, error) {
		meta := observe.HandleMeta{
			Kind:    kind,
			Service: service,
			Cache:   c.Name(),
			Policy:  string(c.Policy()),
			Key:     key.String(),
			Session: s.id,
		}
		h, err := s.middleware.Wrap(func(ctx context.Context, _ observe.HandleMeta) (any, error) {
			return s.construct(ctx, kind, service, params)
		})(ctx, meta)
		if err != nil {
			return nil, err
		}

		if err := c.Set(key, h); err != nil {
			if errors.Is(err, cache.ErrAlreadyExists) {
				if existing, ok := c.Lookup(key); ok {
					return existing, nil
				}
			}
			return nil, err
		}
		return h, nil
	})
	return h, err
}

func (s *Session) construct(ctx context.Context, kind, service string, params cache.Params) (any, error) {
	factory, ok := s.registry.Lookup(service)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownService, service)
	}

	client, err := resilience.Do(ctx, s.executor, func(ctx context.Context) (any, error) {
		return factory(ctx, s.awsConfig.Copy(), params)
	})
	if err != nil {
		return nil, fmt.Errorf("awscache: construct %s %q: %w", kind, service, err)
	}
	if kind == KindResource {
		return NewServiceResource(service, client)
	}
	return client, nil
}
