package observe

import (
	"context"

	"github.com/jonwraymond/clientcache/cache"
)

// CacheHooks returns cache hooks that log each event at debug level and
// record it with metrics. meta describes the cache; the service and key of
// each event are filled in from the event's key.
func CacheHooks[V any](logger Logger, metrics Metrics, meta HandleMeta) cache.Hooks[V] {
	if logger == nil {
		logger = NopLogger()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}

	emit := func(key cache.Key, event, reason string) {
		ctx := context.Background()
		m := meta
		m.Service = key.Discriminator()
		m.Key = key.String()

		metrics.RecordCacheEvent(ctx, m, event, reason)

		fields := []Field{{Key: "cache.event", Value: event}}
		if reason != "" {
			fields = append(fields, Field{Key: "cache.evict_reason", Value: reason})
		}
		logger.WithHandle(m).Debug(ctx, "cache "+event, fields...)
	}

	return cache.Hooks[V]{
		OnHit:    func(key cache.Key, _ V) { emit(key, EventHit, "") },
		OnMiss:   func(key cache.Key) { emit(key, EventMiss, "") },
		OnInsert: func(key cache.Key, _ V) { emit(key, EventInsert, "") },
		OnEvict: func(key cache.Key, _ V, reason cache.EvictReason) {
			emit(key, EventEvict, reason.String())
		},
		OnRemove: func(key cache.Key, _ V) { emit(key, EventRemove, "") },
	}
}
