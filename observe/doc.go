// Package observe provides observability primitives for handle caches.
//
// It traces and measures handle construction, turns cache events into logs
// and metrics, exposes cache occupancy to Prometheus, and adapts the
// structured logger to the AWS SDK's logging interface. It performs no I/O
// beyond exporter setup.
package observe
