package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Cache event names recorded by RecordCacheEvent.
const (
	EventHit    = "hit"
	EventMiss   = "miss"
	EventInsert = "insert"
	EventEvict  = "evict"
	EventRemove = "remove"
)

// Metrics records handle construction and cache activity.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordConstruction records one handle construction with its duration
	// and error status.
	RecordConstruction(ctx context.Context, meta HandleMeta, duration time.Duration, err error)

	// RecordCacheEvent records a cache event. reason is only set for
	// evictions.
	RecordCacheEvent(ctx context.Context, meta HandleMeta, event, reason string)
}

type metricsImpl struct {
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram
	eventCount   metric.Int64Counter
}

// NewMetrics creates Metrics backed by the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	return newMetrics(meter)
}

func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	totalCount, err := meter.Int64Counter(
		"clientcache.construct.total",
		metric.WithDescription("Total number of handle constructions"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"clientcache.construct.errors",
		metric.WithDescription("Total number of failed handle constructions"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"clientcache.construct.duration_ms",
		metric.WithDescription("Handle construction duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	eventCount, err := meter.Int64Counter(
		"clientcache.cache.events",
		metric.WithDescription("Cache hits, misses, inserts, evictions and removals"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		totalCount:   totalCount,
		errorCount:   errorCount,
		durationHist: durationHist,
		eventCount:   eventCount,
	}, nil
}

func (m *metricsImpl) RecordConstruction(ctx context.Context, meta HandleMeta, duration time.Duration, err error) {
	opt := metric.WithAttributes(meta.attributes(false)...)

	m.totalCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordCacheEvent(ctx context.Context, meta HandleMeta, event, reason string) {
	attrs := append(meta.attributes(false), attribute.String("cache.event", event))
	if reason != "" {
		attrs = append(attrs, attribute.String("cache.evict_reason", reason))
	}
	m.eventCount.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// NopMetrics returns Metrics that record nothing.
func NopMetrics() Metrics {
	return noopMetrics{}
}

type noopMetrics struct{}

func (noopMetrics) RecordConstruction(context.Context, HandleMeta, time.Duration, error) {}
func (noopMetrics) RecordCacheEvent(context.Context, HandleMeta, string, string)       {}
