package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/jonwraymond/clientcache/cache"
	"github.com/jonwraymond/clientcache/observe"
	"github.com/jonwraymond/clientcache/secret"
)

// Config is the environment-driven configuration of a Session.
type Config struct {
	// Policy is the default eviction policy, LRU or LFU.
	Policy string `env:"CLIENTCACHE_POLICY" envDefault:"LRU"`

	// Capacity is the default capacity of each cache.
	Capacity int `env:"CLIENTCACHE_CAPACITY" envDefault:"10"`

	Region  string `env:"AWS_REGION"`
	Profile string `env:"AWS_PROFILE"`

	// Explicit credentials. Each may be a literal, ${VAR} or secretref value.
	AccessKeyID     string `env:"CLIENTCACHE_AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"CLIENTCACHE_AWS_SECRET_ACCESS_KEY"`
	SessionToken    string `env:"CLIENTCACHE_AWS_SESSION_TOKEN"`

	// SecretDir roots relative secretref:file references.
	SecretDir string `env:"CLIENTCACHE_SECRET_DIR"`

	// EndpointURL overrides the service endpoint for every handle.
	EndpointURL string `env:"CLIENTCACHE_ENDPOINT_URL"`

	FactoryTimeout  time.Duration `env:"CLIENTCACHE_FACTORY_TIMEOUT" envDefault:"30s"`
	FactoryAttempts int           `env:"CLIENTCACHE_FACTORY_ATTEMPTS" envDefault:"1"`

	ServiceName      string  `env:"CLIENTCACHE_SERVICE_NAME" envDefault:"clientcache"`
	LogLevel         string  `env:"CLIENTCACHE_LOG_LEVEL" envDefault:"info"`
	TracingExporter  string  `env:"CLIENTCACHE_TRACING_EXPORTER" envDefault:"none"`
	TracingSamplePct float64 `env:"CLIENTCACHE_TRACING_SAMPLE_PCT" envDefault:"1.0"`
	MetricsExporter  string  `env:"CLIENTCACHE_METRICS_EXPORTER" envDefault:"none"`

	// OTelGlobal installs the session's providers as the otel globals.
	OTelGlobal bool `env:"CLIENTCACHE_OTEL_GLOBAL" envDefault:"false"`
}

// Load reads the .env files named by paths, or ./.env when none are given,
// then parses the process environment. A missing ./.env is not an error;
// a missing file named explicitly is.
func Load(paths ...string) (Config, error) {
	if err := godotenv.Load(paths...); err != nil {
		if len(paths) > 0 || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, errors.Join(ErrLoadingDotenv, err)
		}
	}
	return parse(env.Options{})
}

// FromMap parses values instead of the process environment. Unset keys
// take their defaults.
func FromMap(values map[string]string) (Config, error) {
	return parse(env.Options{Environment: values})
}

func parse(opts env.Options) (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges and names.
func (c Config) Validate() error {
	if _, err := cache.ParsePolicyType(c.Policy); err != nil {
		return fmt.Errorf("%w: CLIENTCACHE_POLICY: %w", ErrInvalidConfig, err)
	}
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: CLIENTCACHE_CAPACITY must be positive, got %d", ErrInvalidConfig, c.Capacity)
	}
	if c.FactoryAttempts <= 0 {
		return fmt.Errorf("%w: CLIENTCACHE_FACTORY_ATTEMPTS must be positive, got %d", ErrInvalidConfig, c.FactoryAttempts)
	}
	if c.FactoryTimeout < 0 {
		return fmt.Errorf("%w: CLIENTCACHE_FACTORY_TIMEOUT must not be negative", ErrInvalidConfig)
	}
	if err := c.Credentials().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	obs := c.ObserveConfig()
	if err := obs.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// PolicyType returns the parsed default policy. Call after Validate.
func (c Config) PolicyType() cache.PolicyType {
	p, _ := cache.ParsePolicyType(c.Policy)
	return p
}

// CacheConfig returns the default policy and capacity as the configuration
// of a cache named name.
func (c Config) CacheConfig(name string) cache.Config {
	return cache.Config{
		Name:     name,
		Policy:   c.PolicyType(),
		Capacity: c.Capacity,
	}
}

// Credentials returns the unresolved explicit credentials.
func (c Config) Credentials() secret.Credentials {
	return secret.Credentials{
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		SessionToken:    c.SessionToken,
	}
}

// ObserveConfig returns the telemetry configuration. An exporter of "none"
// or "" disables that signal.
func (c Config) ObserveConfig() observe.Config {
	tracing := normalize(c.TracingExporter)
	metrics := normalize(c.MetricsExporter)
	var attrs map[string]string
	if c.Region != "" {
		attrs = map[string]string{"cloud.region": c.Region}
	}
	return observe.Config{
		ServiceName: c.ServiceName,
		Attributes:  attrs,
		Global:      c.OTelGlobal,
		Tracing: observe.TracingConfig{
			Enabled:   tracing != "none",
			Exporter:  tracing,
			SamplePct: c.TracingSamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  metrics != "none",
			Exporter: metrics,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   strings.ToLower(strings.TrimSpace(c.LogLevel)),
		},
	}
}

func normalize(exporter string) string {
	exporter = strings.ToLower(strings.TrimSpace(exporter))
	if exporter == "" {
		return "none"
	}
	return exporter
}
