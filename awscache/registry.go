package awscache

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/jonwraymond/clientcache/cache"
	"github.com/jonwraymond/clientcache/resilience"
	"github.com/jonwraymond/clientcache/secret"
)

// Construction parameters understood by every built-in factory.
const (
	ParamServiceName      = "service_name"
	ParamRegionName       = "region_name"
	ParamEndpointURL      = "endpoint_url"
	ParamRetryMaxAttempts = "retry_max_attempts"
	ParamAppID            = "app_id"
	ParamAccessKeyID      = "aws_access_key_id"
	ParamSecretAccessKey  = "aws_secret_access_key"
	ParamSessionToken     = "aws_session_token"

	// ParamUsePathStyle is only accepted by s3.
	ParamUsePathStyle = "use_path_style"
)

var (
	stringParams = []string{ParamRegionName, ParamEndpointURL, ParamAppID, ParamAccessKeyID, ParamSecretAccessKey, ParamSessionToken}
	intParams    = []string{ParamRetryMaxAttempts}
	boolParams   = []string{ParamUsePathStyle}
)

var commonParams = []string{
	ParamServiceName,
	ParamRegionName,
	ParamEndpointURL,
	ParamRetryMaxAttempts,
	ParamAppID,
	ParamAccessKeyID,
	ParamSecretAccessKey,
	ParamSessionToken,
}

// Factory builds a service client from a base configuration and the
// construction parameters of one key. cfg is a copy the factory may modify.
// Factories must not cache; the Session does.
type Factory func(ctx context.Context, cfg aws.Config, params cache.Params) (any, error)

// Registry maps service names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty factory registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory for service.
func (r *Registry) Register(service string, factory Factory) error {
	service = strings.TrimSpace(service)
	if service == "" || factory == nil {
		return ErrInvalidFactory
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[service]; exists {
		return fmt.Errorf("%w: %q", ErrFactoryExists, service)
	}
	r.factories[service] = factory
	return nil
}

// Lookup returns the factory for service.
func (r *Registry) Lookup(service string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[service]
	return f, ok
}

// Services returns registered service names in sorted order.
func (r *Registry) Services() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry holds the built-in s3 and sts factories.
var DefaultRegistry = func() *Registry {
	r := NewRegistry()
	_ = r.Register("s3", NewS3Client)
	_ = r.Register("sts", NewSTSClient)
	return r
}()

// NewS3Client builds an *s3.Client. Besides the common parameters it accepts
// use_path_style.
func NewS3Client(_ context.Context, cfg aws.Config, params cache.Params) (any, error) {
	if err := checkParams(params, ParamUsePathStyle); err != nil {
		return nil, err
	}
	cfg, err := ApplyParams(cfg, params)
	if err != nil {
		return nil, err
	}
	pathStyle, _, err := boolParam(params, ParamUsePathStyle)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = pathStyle
	}), nil
}

// NewSTSClient builds an *sts.Client from the common parameters.
func NewSTSClient(_ context.Context, cfg aws.Config, params cache.Params) (any, error) {
	if err := checkParams(params); err != nil {
		return nil, err
	}
	cfg, err := ApplyParams(cfg, params)
	if err != nil {
		return nil, err
	}
	return sts.NewFromConfig(cfg), nil
}

// ApplyParams overlays the common construction parameters onto cfg.
// Explicit credentials replace the configured provider.
func ApplyParams(cfg aws.Config, params cache.Params) (aws.Config, error) {
	if v, ok, err := stringParam(params, ParamRegionName); err != nil {
		return cfg, err
	} else if ok {
		cfg.Region = v
	}

	if v, ok, err := stringParam(params, ParamEndpointURL); err != nil {
		return cfg, err
	} else if ok {
		cfg.BaseEndpoint = aws.String(v)
	}

	// Zero keeps the configured attempts.
	if v, ok, err := intParam(params, ParamRetryMaxAttempts); err != nil {
		return cfg, err
	} else if ok && v < 0 {
		return cfg, invalidParam(ParamRetryMaxAttempts, "must not be negative")
	} else if v > 0 {
		cfg.RetryMaxAttempts = v
	}

	if v, ok, err := stringParam(params, ParamAppID); err != nil {
		return cfg, err
	} else if ok {
		cfg.AppID = v
	}

	var creds secret.Credentials
	for name, dst := range map[string]*string{
		ParamAccessKeyID:     &creds.AccessKeyID,
		ParamSecretAccessKey: &creds.SecretAccessKey,
		ParamSessionToken:    &creds.SessionToken,
	} {
		v, _, err := stringParam(params, name)
		if err != nil {
			return cfg, err
		}
		*dst = v
	}
	if err := creds.Validate(); err != nil {
		return cfg, resilience.Permanent(fmt.Errorf("%w: %w", ErrInvalidParam, err))
	}
	if p := creds.Provider(); p != nil {
		cfg.Credentials = aws.NewCredentialsCache(p)
	}

	return cfg, nil
}

// NormalizeParams returns a copy of params with the built-in parameters
// coerced to the types the factories read: strings, ints and bools.
// Other parameters are copied as they are.
func NormalizeParams(params cache.Params) (cache.Params, error) {
	if params == nil {
		return nil, nil
	}
	out := maps.Clone(params)
	for _, name := range stringParams {
		if v, ok, err := stringParam(params, name); err != nil {
			return nil, err
		} else if ok {
			out[name] = v
		}
	}
	for _, name := range intParams {
		if v, ok, err := intParam(params, name); err != nil {
			return nil, err
		} else if ok {
			out[name] = v
		}
	}
	for _, name := range boolParams {
		if v, ok, err := boolParam(params, name); err != nil {
			return nil, err
		} else if ok {
			out[name] = v
		}
	}
	return out, nil
}

// checkParams rejects parameters outside the common set and extra.
func checkParams(params cache.Params, extra ...string) error {
	for name := range params {
		if !slices.Contains(commonParams, name) && !slices.Contains(extra, name) {
			return invalidParam(name, "not accepted")
		}
	}
	return nil
}

func invalidParam(name, detail string) error {
	return resilience.Permanent(fmt.Errorf("%w: %s: %s", ErrInvalidParam, name, detail))
}

func stringParam(params cache.Params, name string) (string, bool, error) {
	raw, ok := params[name]
	if !ok || raw == nil {
		return "", false, nil
	}
	switch v := raw.(type) {
	case string:
		return v, true, nil
	case *string:
		if v == nil {
			return "", false, nil
		}
		return *v, true, nil
	}
	return "", false, invalidParam(name, fmt.Sprintf("want string, got %T", raw))
}

func boolParam(params cache.Params, name string) (bool, bool, error) {
	raw, ok := params[name]
	if !ok || raw == nil {
		return false, false, nil
	}
	switch v := raw.(type) {
	case bool:
		return v, true, nil
	case *bool:
		if v == nil {
			return false, false, nil
		}
		return *v, true, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, false, invalidParam(name, fmt.Sprintf("want bool, got %q", v))
		}
		return b, true, nil
	}
	return false, false, invalidParam(name, fmt.Sprintf("want bool, got %T", raw))
}

func intParam(params cache.Params, name string) (int, bool, error) {
	raw, ok := params[name]
	if !ok || raw == nil {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case int:
		return v, true, nil
	case int32:
		return int(v), true, nil
	case int64:
		return int(v), true, nil
	case float64:
		if v != math.Trunc(v) {
			return 0, false, invalidParam(name, fmt.Sprintf("want integer, got %v", v))
		}
		return int(v), true, nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, false, invalidParam(name, fmt.Sprintf("want integer, got %q", v))
		}
		return n, true, nil
	}
	return 0, false, invalidParam(name, fmt.Sprintf("want integer, got %T", raw))
}
