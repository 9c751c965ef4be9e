package awscache

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/jonwraymond/clientcache/cache"
)

// Handle kinds.
const (
	KindClient   = "client"
	KindResource = "resource"
)

// Kinds lists the supported handle kinds.
var Kinds = []string{KindClient, KindResource}

const sdkServicePrefix = "github.com/aws/aws-sdk-go-v2/service/"

// KeySchema returns the key schema for kind. Client and resource keys never
// compare equal, even for identical parameters. Parameters set to the value
// the factories assume when they are omitted are dropped from the key.
func KeySchema(kind string) cache.KeySchema {
	return cache.KeySchema{
		Namespace:     kind,
		Discriminator: cache.DefaultDiscriminator,
		Sensitive:     slices.Clone(cache.DefaultSensitiveParams),
		Defaults: cache.Params{
			ParamUsePathStyle:     false,
			ParamRetryMaxAttempts: 0,
		},
	}
}

// NewClientKey derives a client cache key from construction parameters.
// "service_name" is required.
func NewClientKey(params cache.Params) (cache.Key, error) {
	return newKey(KindClient, params)
}

// NewResourceKey derives a resource cache key from construction parameters.
// "service_name" is required.
func NewResourceKey(params cache.Params) (cache.Key, error) {
	return newKey(KindResource, params)
}

// newKey coerces the built-in parameters the way the factories read them,
// so "true" and true, or 3 and "3", share a key.
func newKey(kind string, params cache.Params) (cache.Key, error) {
	normalized, err := NormalizeParams(params)
	if err != nil {
		return cache.Key{}, err
	}
	return KeySchema(kind).NewKey(normalized)
}

// IsClient reports, as an error, whether v is an AWS SDK v2 service client:
// a non-nil *Client from a package under github.com/aws/aws-sdk-go-v2/service/.
func IsClient(v any) error {
	if v == nil {
		return fmt.Errorf("%w: got nil", ErrNotClient)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("%w: got %T", ErrNotClient, v)
	}
	t := rv.Type().Elem()
	if t.Kind() != reflect.Struct || t.Name() != "Client" || !strings.HasPrefix(t.PkgPath(), sdkServicePrefix) {
		return fmt.Errorf("%w: got %T", ErrNotClient, v)
	}
	return nil
}

// IsResource reports, as an error, whether v is a *ServiceResource wrapping
// a service client.
func IsResource(v any) error {
	r, ok := v.(*ServiceResource)
	if !ok || r == nil {
		return fmt.Errorf("%w: got %T", ErrNotResource, v)
	}
	if err := IsClient(r.client); err != nil {
		return fmt.Errorf("%w: %w", ErrNotResource, err)
	}
	return nil
}

// ServiceResource is the resource handle of a service: a named wrapper
// around its own client, cached separately from plain clients.
type ServiceResource struct {
	service string
	client  any
}

// NewServiceResource wraps client as the resource handle for service.
func NewServiceResource(service string, client any) (*ServiceResource, error) {
	if err := IsClient(client); err != nil {
		return nil, err
	}
	return &ServiceResource{service: service, client: client}, nil
}

// Service returns the service name, e.g. "s3".
func (r *ServiceResource) Service() string { return r.service }

// Client returns the wrapped service client.
func (r *ServiceResource) Client() any { return r.client }

func (r *ServiceResource) String() string {
	return fmt.Sprintf("%s.ServiceResource(%T)", r.service, r.client)
}

// ResourceClient returns r's client as T.
func ResourceClient[T any](r *ServiceResource) (T, error) {
	c, ok := r.client.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: resource %q holds %T", ErrUnexpectedType, r.service, r.client)
	}
	return c, nil
}

// NewClientCache creates a cache that only accepts client keys and AWS SDK
// v2 service clients.
func NewClientCache(cfg cache.Config, opts ...cache.Option[any]) (*cache.Cache[any], error) {
	return newKindCache(KindClient, cfg, opts)
}

// NewResourceCache creates a cache that only accepts resource keys and
// *ServiceResource values.
func NewResourceCache(cfg cache.Config, opts ...cache.Option[any]) (*cache.Cache[any], error) {
	return newKindCache(KindResource, cfg, opts)
}

func newKindCache(kind string, cfg cache.Config, opts []cache.Option[any]) (*cache.Cache[any], error) {
	validate := IsClient
	if kind == KindResource {
		validate = IsResource
	}
	cfg.Namespace = kind
	if cfg.Name == "" {
		cfg.Name = kind
	}
	// The kind's predicate is applied last so callers cannot replace it.
	opts = append(slices.Clone(opts), cache.WithValidator(validate))
	return cache.New(cfg, opts...)
}
