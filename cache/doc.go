// Package cache provides a bounded, concurrency-safe cache that keeps one
// canonical instance per remote-service handle configuration.
//
// It provides SHA-256-based Key derivation from construction parameters,
// LRU and LFU eviction policies, and a dictionary-like container that
// refuses silent overwrites and reports misuse through typed errors.
//
// Eviction only drops the cache's reference to a value. Closing sockets or
// releasing credentials owned by a cached handle is the caller's job.
package cache
