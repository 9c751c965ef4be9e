package observe

import (
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jonwraymond/clientcache/cache"
)

// SizedCache is the view of a cache the collector reads on each scrape.
// *cache.Cache satisfies it.
type SizedCache interface {
	Name() string
	Policy() cache.PolicyType
	Len() int
	Capacity() int
}

// CacheCollector is a prometheus.Collector reporting the size and capacity
// of tracked caches. Values are read at scrape time.
type CacheCollector struct {
	mu       sync.RWMutex
	caches   map[string]SizedCache
	entries  *prometheus.Desc
	capacity *prometheus.Desc
}

// NewCacheCollector creates a collector whose metrics are prefixed with
// namespace, e.g. "clientcache_cache_entries".
func NewCacheCollector(namespace string, constLabels prometheus.Labels) *CacheCollector {
	labels := []string{"cache", "policy"}
	return &CacheCollector{
		caches: make(map[string]SizedCache),
		entries: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "entries"),
			"Number of handles currently cached.",
			labels, constLabels,
		),
		capacity: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "capacity"),
			"Maximum number of handles the cache holds.",
			labels, constLabels,
		),
	}
}

// Track starts reporting c under its name, replacing any cache tracked
// under the same name.
func (cc *CacheCollector) Track(c SizedCache) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.caches[c.Name()] = c
}

// Untrack stops reporting the cache with the given name.
func (cc *CacheCollector) Untrack(name string) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	delete(cc.caches, name)
}

// Describe implements prometheus.Collector.
func (cc *CacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- cc.entries
	ch <- cc.capacity
}

// Collect implements prometheus.Collector.
func (cc *CacheCollector) Collect(ch chan<- prometheus.Metric) {
	cc.mu.RLock()
	names := make([]string, 0, len(cc.caches))
	for name := range cc.caches {
		names = append(names, name)
	}
	caches := make([]SizedCache, 0, len(names))
	sort.Strings(names)
	for _, name := range names {
		caches = append(caches, cc.caches[name])
	}
	cc.mu.RUnlock()

	for _, c := range caches {
		policy := string(c.Policy())
		ch <- prometheus.MustNewConstMetric(cc.entries, prometheus.GaugeValue, float64(c.Len()), c.Name(), policy)
		ch <- prometheus.MustNewConstMetric(cc.capacity, prometheus.GaugeValue, float64(c.Capacity()), c.Name(), policy)
	}
}

var _ prometheus.Collector = (*CacheCollector)(nil)
