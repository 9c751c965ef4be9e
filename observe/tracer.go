package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// HandleMeta describes a cached handle for telemetry purposes.
type HandleMeta struct {
	Kind    string // Handle kind, e.g. "client" or "resource" (may be empty)
	Service string // Service name, e.g. "s3" (required)
	Cache   string // Owning cache name (optional)
	Policy  string // Eviction policy of the owning cache (optional)
	Key     string // Redacted key label (optional)
	Session string // Session ID (optional)
}

// SpanName returns the deterministic span name for constructing this handle.
// Format: clientcache.construct.<kind>.<service> or clientcache.construct.<service>
func (m HandleMeta) SpanName() string {
	if m.Kind != "" {
		return "clientcache.construct." + m.Kind + "." + m.Service
	}
	return "clientcache.construct." + m.Service
}

// HandleID returns "<kind>.<service>", or the service alone without a kind.
func (m HandleMeta) HandleID() string {
	if m.Kind != "" {
		return m.Kind + "." + m.Service
	}
	return m.Service
}

// Validate reports ErrMissingService if Service is empty.
func (m HandleMeta) Validate() error {
	if m.Service == "" {
		return ErrMissingService
	}
	return nil
}

// fields lists the non-empty metadata as log fields.
func (m HandleMeta) fields() []Field {
	var fields []Field
	if m.Service != "" {
		fields = append(fields,
			Field{Key: "handle.id", Value: m.HandleID()},
			Field{Key: "handle.service", Value: m.Service},
		)
	}
	if m.Kind != "" {
		fields = append(fields, Field{Key: "handle.kind", Value: m.Kind})
	}
	if m.Cache != "" {
		fields = append(fields, Field{Key: "cache.name", Value: m.Cache})
	}
	if m.Policy != "" {
		fields = append(fields, Field{Key: "cache.policy", Value: m.Policy})
	}
	if m.Key != "" {
		fields = append(fields, Field{Key: "handle.key", Value: m.Key})
	}
	if m.Session != "" {
		fields = append(fields, Field{Key: "session.id", Value: m.Session})
	}
	return fields
}

// attributes lists the metadata used on spans and metrics. The key label is
// left off metrics to keep cardinality bounded.
func (m HandleMeta) attributes(withKey bool) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("handle.id", m.HandleID()),
		attribute.String("handle.service", m.Service),
	}
	if m.Kind != "" {
		attrs = append(attrs, attribute.String("handle.kind", m.Kind))
	}
	if m.Cache != "" {
		attrs = append(attrs, attribute.String("cache.name", m.Cache))
	}
	if m.Policy != "" {
		attrs = append(attrs, attribute.String("cache.policy", m.Policy))
	}
	if withKey && m.Key != "" {
		attrs = append(attrs, attribute.String("handle.key", m.Key))
	}
	if withKey && m.Session != "" {
		attrs = append(attrs, attribute.String("session.id", m.Session))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing with handle construction spans.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for handle construction.
	StartSpan(ctx context.Context, meta HandleMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer wrapping the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a new span with handle metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta HandleMeta) (context.Context, trace.Span) {
	attrs := append(meta.attributes(true), attribute.Bool("handle.error", false))

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("handle.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type noopTracer struct {
	noop trace.Tracer
}

// NopTracer returns a Tracer whose spans record nothing.
func NopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta HandleMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, _ error) {
	span.End()
}
