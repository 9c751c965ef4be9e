package cache

import (
	"fmt"
	"iter"
	"strings"
	"sync"
)

// DefaultCapacity is the capacity used when Config.Capacity is zero.
const DefaultCapacity = 10

// Config configures a Cache.
type Config struct {
	// Name identifies the cache in errors, logs and metrics.
	Name string

	// Namespace, when set, restricts the cache to keys built under a
	// KeySchema with the same Namespace. Other keys fail with
	// ErrInvalidKeyType.
	Namespace string

	// Policy selects the eviction policy.
	// Default: DefaultPolicy
	Policy PolicyType

	// Capacity is the maximum number of entries.
	// Default: DefaultCapacity
	Capacity int
}

// DefaultConfig returns an LRU configuration holding DefaultCapacity entries.
func DefaultConfig() Config {
	return Config{
		Policy:   DefaultPolicy,
		Capacity: DefaultCapacity,
	}
}

// Option configures optional Cache behavior.
type Option[V any] func(*Cache[V])

// WithValidator sets the predicate every value must satisfy before Set
// stores it. A non-nil result fails Set with ErrInvalidValueType.
func WithValidator[V any](fn func(V) error) Option[V] {
	return func(c *Cache[V]) {
		c.validate = fn
	}
}

// WithHooks registers event hooks.
func WithHooks[V any](hooks Hooks[V]) Option[V] {
	return func(c *Cache[V]) {
		c.hooks = hooks
	}
}

// Cache is a bounded map from Key to handle values.
//
// Contract:
//   - Concurrency: safe for concurrent use. Every operation is atomic and
//     operations on one Cache are linearizable.
//   - Ownership: values are stored and returned as-is, never copied.
//     Evicting a value only drops the cache's reference.
//   - Errors: failures are *Error values wrapping a package sentinel and
//     leave the cache unchanged.
type Cache[V any] struct {
	mu         sync.RWMutex
	name       string
	namespace  string
	policyType PolicyType
	capacity   int
	entries    map[Digest]*entry[V]
	policy     EvictionPolicy
	validate   func(V) error
	hooks      Hooks[V]
	observed   bool
}

type entry[V any] struct {
	key   Key
	value V
}

// New creates an empty Cache.
// It returns ErrInvalidCapacity for a negative capacity and ErrInvalidPolicy
// for an unknown policy.
func New[V any](cfg Config, opts ...Option[V]) (*Cache[V], error) {
	if cfg.Capacity < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, cfg.Capacity)
	}
	if cfg.Capacity == 0 {
		cfg.Capacity = DefaultCapacity
	}

	policyType, err := ParsePolicyType(string(cfg.Policy))
	if err != nil {
		return nil, err
	}
	policy, err := NewPolicy(policyType)
	if err != nil {
		return nil, err
	}

	c := &Cache[V]{
		name:       cfg.Name,
		namespace:  cfg.Namespace,
		policyType: policyType,
		capacity:   cfg.Capacity,
		entries:    make(map[Digest]*entry[V], cfg.Capacity),
		policy:     policy,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.observed = !c.hooks.empty()

	return c, nil
}

// Name returns the configured cache name.
func (c *Cache[V]) Name() string { return c.name }

// Policy returns the eviction policy type.
func (c *Cache[V]) Policy() PolicyType { return c.policyType }

// Capacity returns the current maximum number of entries.
func (c *Cache[V]) Capacity() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.capacity
}

// Len returns the number of cached entries.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Set caches value under key.
//
// Checks run in order: key validity (ErrInvalidKeyType), presence
// (ErrAlreadyExists), then the validator (ErrInvalidValueType). Existing
// entries are never overwritten. At capacity, the policy's victim is evicted
// before value is inserted.
func (c *Cache[V]) Set(key Key, value V) error {
	if err := c.checkKey("set", key); err != nil {
		return err
	}

	// Run caller code outside the lock; its verdict is reported after the
	// presence check.
	var valueErr error
	if c.validate != nil {
		valueErr = c.validate(value)
	}

	c.mu.Lock()
	if _, ok := c.entries[key.digest]; ok {
		c.mu.Unlock()
		return c.errorf("set", key, ErrAlreadyExists, "")
	}
	if valueErr != nil {
		c.mu.Unlock()
		return c.errorf("set", key, ErrInvalidValueType, valueErr.Error())
	}

	var events []event[V]
	for len(c.entries) >= c.capacity {
		ev, ok := c.evictLocked(EvictReasonCapacity)
		if !ok {
			break
		}
		events = c.record(events, ev)
	}
	c.entries[key.digest] = &entry[V]{key: key, value: value}
	c.policy.Inserted(key.digest)
	events = c.record(events, event[V]{kind: eventInsert, key: key, value: value})
	c.mu.Unlock()

	c.hooks.fire(events)
	return nil
}

// Get returns the value cached under key and records the access.
// It returns ErrNotFound if key is not cached.
func (c *Cache[V]) Get(key Key) (V, error) {
	var zero V
	if err := c.checkKey("get", key); err != nil {
		return zero, err
	}
	value, ok := c.lookup(key)
	if !ok {
		return zero, c.errorf("get", key, ErrNotFound, "")
	}
	return value, nil
}

// Lookup returns the value cached under key and true, or the zero value and
// false. A hit records the access. Invalid keys report false.
func (c *Cache[V]) Lookup(key Key) (V, bool) {
	if c.checkKey("lookup", key) != nil {
		var zero V
		return zero, false
	}
	return c.lookup(key)
}

// GetOrDefault returns the value cached under key, or fallback if absent.
func (c *Cache[V]) GetOrDefault(key Key, fallback V) V {
	if value, ok := c.Lookup(key); ok {
		return value
	}
	return fallback
}

func (c *Cache[V]) lookup(key Key) (V, bool) {
	c.mu.Lock()
	e, ok := c.entries[key.digest]
	if ok {
		c.policy.Accessed(key.digest)
	}
	c.mu.Unlock()

	if !ok {
		var zero V
		if c.observed {
			c.hooks.fire([]event[V]{{kind: eventMiss, key: key}})
		}
		return zero, false
	}
	if c.observed {
		c.hooks.fire([]event[V]{{kind: eventHit, key: key, value: e.value}})
	}
	return e.value, true
}

// Contains reports whether key is cached without recording an access.
func (c *Cache[V]) Contains(key Key) bool {
	if c.checkKey("contains", key) != nil {
		return false
	}
	c.mu.RLock()
	_, ok := c.entries[key.digest]
	c.mu.RUnlock()
	return ok
}

// Delete removes key. It returns ErrNotFound if key is not cached.
func (c *Cache[V]) Delete(key Key) error {
	_, err := c.remove("delete", key)
	return err
}

// Pop removes key and returns its value.
// It returns ErrNotFound if key is not cached.
func (c *Cache[V]) Pop(key Key) (V, error) {
	return c.remove("pop", key)
}

func (c *Cache[V]) remove(op string, key Key) (V, error) {
	var zero V
	if err := c.checkKey(op, key); err != nil {
		return zero, err
	}

	c.mu.Lock()
	e, ok := c.entries[key.digest]
	if !ok {
		c.mu.Unlock()
		return zero, c.errorf(op, key, ErrNotFound, "")
	}
	delete(c.entries, key.digest)
	c.policy.Remove(key.digest)
	c.mu.Unlock()

	if c.observed {
		c.hooks.fire([]event[V]{{kind: eventRemove, key: e.key, value: e.value}})
	}
	return e.value, nil
}

// Evict removes the policy's current victim and returns it.
// It returns ErrNotFound if the cache is empty.
func (c *Cache[V]) Evict() (Key, V, error) {
	c.mu.Lock()
	ev, ok := c.evictLocked(EvictReasonManual)
	c.mu.Unlock()

	if !ok {
		var zero V
		return Key{}, zero, &Error{Op: "evict", Cache: c.name, Detail: "cache is empty", Err: ErrNotFound}
	}
	if c.observed {
		c.hooks.fire([]event[V]{ev})
	}
	return ev.key, ev.value, nil
}

// Resize changes the capacity, evicting victims until the cache fits.
// It returns ErrInvalidCapacity if capacity is not positive.
func (c *Cache[V]) Resize(capacity int) error {
	if capacity <= 0 {
		return &Error{Op: "resize", Cache: c.name, Detail: fmt.Sprintf("got %d", capacity), Err: ErrInvalidCapacity}
	}

	var events []event[V]
	c.mu.Lock()
	c.capacity = capacity
	for len(c.entries) > c.capacity {
		ev, ok := c.evictLocked(EvictReasonResize)
		if !ok {
			break
		}
		events = c.record(events, ev)
	}
	c.mu.Unlock()

	c.hooks.fire(events)
	return nil
}

// Clear removes every entry and resets the policy's bookkeeping.
func (c *Cache[V]) Clear() {
	var events []event[V]
	c.mu.Lock()
	if c.observed {
		for _, d := range c.policy.Keys() {
			if e, ok := c.entries[d]; ok {
				events = append(events, event[V]{kind: eventRemove, key: e.key, value: e.value})
			}
		}
	}
	c.entries = make(map[Digest]*entry[V], c.capacity)
	// The type was validated in New.
	c.policy, _ = NewPolicy(c.policyType)
	c.mu.Unlock()

	c.hooks.fire(events)
}

// Keys returns the cached keys in eviction order, next victim first.
// The snapshot is taken when ranging starts and does not record accesses.
func (c *Cache[V]) Keys() iter.Seq[Key] {
	return func(yield func(Key) bool) {
		for _, e := range c.snapshot() {
			if !yield(e.key) {
				return
			}
		}
	}
}

// Values returns the cached values in eviction order. See Keys.
func (c *Cache[V]) Values() iter.Seq[V] {
	return func(yield func(V) bool) {
		for _, e := range c.snapshot() {
			if !yield(e.value) {
				return
			}
		}
	}
}

// All returns the cached entries in eviction order. See Keys.
func (c *Cache[V]) All() iter.Seq2[Key, V] {
	return func(yield func(Key, V) bool) {
		for _, e := range c.snapshot() {
			if !yield(e.key, e.value) {
				return
			}
		}
	}
}

// String lists the redacted labels of the cached keys.
func (c *Cache[V]) String() string {
	name := c.name
	if name == "" {
		name = "cache"
	}

	entries := c.snapshot()
	if len(entries) == 0 {
		return name + "(empty)"
	}

	var b strings.Builder
	b.WriteString(name)
	b.WriteString(":")
	for _, e := range entries {
		b.WriteString("\n  - ")
		b.WriteString(e.key.String())
	}
	return b.String()
}

func (c *Cache[V]) snapshot() []*entry[V] {
	c.mu.RLock()
	defer c.mu.RUnlock()

	order := c.policy.Keys()
	entries := make([]*entry[V], 0, len(order))
	for _, d := range order {
		if e, ok := c.entries[d]; ok {
			entries = append(entries, e)
		}
	}
	return entries
}

// evictLocked removes the policy's victim. Must be called with c.mu held.
func (c *Cache[V]) evictLocked(reason EvictReason) (event[V], bool) {
	victim, ok := c.policy.Victim()
	if !ok {
		return event[V]{}, false
	}
	c.policy.Remove(victim)
	e, ok := c.entries[victim]
	if !ok {
		return event[V]{}, false
	}
	delete(c.entries, victim)
	return event[V]{kind: eventEvict, key: e.key, value: e.value, reason: reason}, true
}

func (c *Cache[V]) record(events []event[V], ev event[V]) []event[V] {
	if !c.observed {
		return events
	}
	return append(events, ev)
}

func (c *Cache[V]) checkKey(op string, key Key) error {
	if key.IsZero() {
		return &Error{Op: op, Cache: c.name, Detail: "zero key", Err: ErrInvalidKeyType}
	}
	if c.namespace != "" && key.namespace != c.namespace {
		return c.errorf(op, key, ErrInvalidKeyType,
			fmt.Sprintf("key namespace %q, want %q", key.namespace, c.namespace))
	}
	return nil
}
