package cache

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

type testHandle struct {
	service string
}

func newTestCache(t testing.TB, policy PolicyType, capacity int, opts ...Option[*testHandle]) *Cache[*testHandle] {
	t.Helper()
	c, err := New[*testHandle](Config{Name: "test", Policy: policy, Capacity: capacity}, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func serviceKey(t testing.TB, service string) Key {
	t.Helper()
	return mustKey(t, DefaultKeySchema(), Params{"service_name": service})
}

func keyNames(c *Cache[*testHandle]) []string {
	var names []string
	for k := range c.Keys() {
		names = append(names, k.Discriminator())
	}
	return names
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantCap int
		wantPol PolicyType
		wantErr error
	}{
		{"defaults", Config{}, DefaultCapacity, PolicyLRU, nil},
		{"lfu", Config{Policy: "lfu", Capacity: 3}, 3, PolicyLFU, nil},
		{"negative capacity", Config{Capacity: -1}, 0, "", ErrInvalidCapacity},
		{"unknown policy", Config{Policy: "ARC"}, 0, "", ErrInvalidPolicy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New[*testHandle](tt.cfg)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("New() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if c.Capacity() != tt.wantCap {
				t.Errorf("Capacity() = %d, want %d", c.Capacity(), tt.wantCap)
			}
			if c.Policy() != tt.wantPol {
				t.Errorf("Policy() = %q, want %q", c.Policy(), tt.wantPol)
			}
			if c.Len() != 0 {
				t.Errorf("Len() = %d, want 0", c.Len())
			}
		})
	}
}

func TestCache_IdentityRoundTrip(t *testing.T) {
	c := newTestCache(t, PolicyLRU, 2)
	key := serviceKey(t, "s3")
	h := &testHandle{service: "s3"}

	if err := c.Set(key, h); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	// A second key derived from the same params finds the same instance.
	got, err := c.Get(serviceKey(t, "s3"))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != h {
		t.Errorf("Get() returned a different instance")
	}
}

func TestCache_SetAlreadyExists(t *testing.T) {
	c := newTestCache(t, PolicyLRU, 2)
	key := serviceKey(t, "s3")
	first := &testHandle{service: "s3"}

	if err := c.Set(key, first); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		err := c.Set(key, &testHandle{service: "s3"})
		if !errors.Is(err, ErrAlreadyExists) {
			t.Fatalf("Set() error = %v, want ErrAlreadyExists", err)
		}
	}

	got, _ := c.Get(key)
	if got != first {
		t.Error("existing entry was overwritten")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestCache_NotFound(t *testing.T) {
	c := newTestCache(t, PolicyLRU, 2)
	key := serviceKey(t, "sqs")

	_, err := c.Get(key)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}

	if v, ok := c.Lookup(key); ok || v != nil {
		t.Errorf("Lookup() = %v, %v; want nil, false", v, ok)
	}

	fallback := &testHandle{service: "fallback"}
	if got := c.GetOrDefault(key, fallback); got != fallback {
		t.Errorf("GetOrDefault() = %v, want fallback", got)
	}

	if err := c.Delete(key); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
	if _, err := c.Pop(key); !errors.Is(err, ErrNotFound) {
		t.Errorf("Pop() error = %v, want ErrNotFound", err)
	}
}

func TestCache_InvalidKey(t *testing.T) {
	c, err := New[*testHandle](Config{Name: "clients", Namespace: "client"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	foreign := mustKey(t, KeySchema{Namespace: "resource"}, Params{"service_name": "s3"})
	tests := []struct {
		name string
		key  Key
	}{
		{"zero key", Key{}},
		{"namespace mismatch", foreign},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.Set(tt.key, &testHandle{}); !errors.Is(err, ErrInvalidKeyType) {
				t.Errorf("Set() error = %v, want ErrInvalidKeyType", err)
			}
			if _, err := c.Get(tt.key); !errors.Is(err, ErrInvalidKeyType) {
				t.Errorf("Get() error = %v, want ErrInvalidKeyType", err)
			}
			if err := c.Delete(tt.key); !errors.Is(err, ErrInvalidKeyType) {
				t.Errorf("Delete() error = %v, want ErrInvalidKeyType", err)
			}
			if _, ok := c.Lookup(tt.key); ok {
				t.Error("Lookup() should report false")
			}
			if c.Contains(tt.key) {
				t.Error("Contains() should report false")
			}
			if c.Len() != 0 {
				t.Errorf("Len() = %d, want 0", c.Len())
			}
		})
	}
}

func TestCache_InvalidValue(t *testing.T) {
	errNil := errors.New("nil handle")
	c := newTestCache(t, PolicyLRU, 2, WithValidator(func(h *testHandle) error {
		if h == nil {
			return errNil
		}
		return nil
	}))
	key := serviceKey(t, "s3")

	err := c.Set(key, nil)
	if !errors.Is(err, ErrInvalidValueType) {
		t.Fatalf("Set() error = %v, want ErrInvalidValueType", err)
	}
	if !strings.Contains(err.Error(), errNil.Error()) {
		t.Errorf("error should carry the validator message: %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}

	// Presence is checked before the validator.
	if err := c.Set(key, &testHandle{}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := c.Set(key, nil); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("Set() error = %v, want ErrAlreadyExists", err)
	}
}

func TestCache_LRUEviction(t *testing.T) {
	c := newTestCache(t, PolicyLRU, 2)
	a, b, cKey := serviceKey(t, "a"), serviceKey(t, "b"), serviceKey(t, "c")

	_ = c.Set(a, &testHandle{service: "a"})
	_ = c.Set(b, &testHandle{service: "b"})
	if _, err := c.Get(a); err != nil {
		t.Fatalf("Get(a) error = %v", err)
	}
	_ = c.Set(cKey, &testHandle{service: "c"})

	if c.Contains(b) {
		t.Error("b should have been evicted")
	}
	if !c.Contains(a) || !c.Contains(cKey) {
		t.Error("a and c should remain cached")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

func TestCache_LFUEviction(t *testing.T) {
	c := newTestCache(t, PolicyLFU, 2)
	a, b, cKey := serviceKey(t, "a"), serviceKey(t, "b"), serviceKey(t, "c")

	_ = c.Set(a, &testHandle{service: "a"})
	_ = c.Set(b, &testHandle{service: "b"})
	_, _ = c.Get(a)
	_, _ = c.Get(a)
	_, _ = c.Get(b)
	_ = c.Set(cKey, &testHandle{service: "c"})

	if c.Contains(b) {
		t.Error("b should have been evicted")
	}
	if !c.Contains(a) || !c.Contains(cKey) {
		t.Error("a and c should remain cached")
	}
}

func TestCache_LFUTieBreakByInsertion(t *testing.T) {
	c := newTestCache(t, PolicyLFU, 2)
	a, b, cKey := serviceKey(t, "a"), serviceKey(t, "b"), serviceKey(t, "c")

	_ = c.Set(a, &testHandle{})
	_ = c.Set(b, &testHandle{})
	_ = c.Set(cKey, &testHandle{})

	if c.Contains(a) {
		t.Error("a was inserted first and should have been evicted")
	}
}

func TestCache_ContainsDoesNotTouch(t *testing.T) {
	c := newTestCache(t, PolicyLRU, 2)
	a, b, cKey := serviceKey(t, "a"), serviceKey(t, "b"), serviceKey(t, "c")

	_ = c.Set(a, &testHandle{})
	_ = c.Set(b, &testHandle{})
	if !c.Contains(a) {
		t.Fatal("Contains(a) = false")
	}
	_ = c.Set(cKey, &testHandle{})

	if c.Contains(a) {
		t.Error("Contains should not refresh recency")
	}
}

func TestCache_DeleteAndPop(t *testing.T) {
	c := newTestCache(t, PolicyLRU, 3)
	a, b := serviceKey(t, "a"), serviceKey(t, "b")
	ha, hb := &testHandle{service: "a"}, &testHandle{service: "b"}
	_ = c.Set(a, ha)
	_ = c.Set(b, hb)

	if err := c.Delete(a); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if c.Contains(a) {
		t.Error("a should be gone")
	}

	got, err := c.Pop(b)
	if err != nil {
		t.Fatalf("Pop() error = %v", err)
	}
	if got != hb {
		t.Error("Pop() returned a different instance")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}

	// A removed key can be set again.
	if err := c.Set(a, ha); err != nil {
		t.Errorf("Set() after Delete error = %v", err)
	}
}

func TestCache_Evict(t *testing.T) {
	c := newTestCache(t, PolicyLRU, 3)

	if _, _, err := c.Evict(); !errors.Is(err, ErrNotFound) {
		t.Errorf("Evict() on empty cache error = %v, want ErrNotFound", err)
	}

	a, b := serviceKey(t, "a"), serviceKey(t, "b")
	ha := &testHandle{service: "a"}
	_ = c.Set(a, ha)
	_ = c.Set(b, &testHandle{service: "b"})

	key, value, err := c.Evict()
	if err != nil {
		t.Fatalf("Evict() error = %v", err)
	}
	if !key.Equal(a) || value != ha {
		t.Errorf("Evict() = %s, want %s", key, a)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestCache_Resize(t *testing.T) {
	c := newTestCache(t, PolicyLRU, 4)
	for _, s := range []string{"a", "b", "c", "d"} {
		_ = c.Set(serviceKey(t, s), &testHandle{service: s})
	}

	if err := c.Resize(2); err != nil {
		t.Fatalf("Resize() error = %v", err)
	}
	if c.Capacity() != 2 || c.Len() != 2 {
		t.Errorf("Capacity() = %d, Len() = %d; want 2, 2", c.Capacity(), c.Len())
	}
	if got, want := keyNames(c), []string{"c", "d"}; !slices.Equal(got, want) {
		t.Errorf("keys = %v, want %v", got, want)
	}

	if err := c.Resize(5); err != nil {
		t.Fatalf("Resize() error = %v", err)
	}
	if c.Len() != 2 {
		t.Errorf("growing should keep entries, Len() = %d", c.Len())
	}

	for _, n := range []int{0, -3} {
		if err := c.Resize(n); !errors.Is(err, ErrInvalidCapacity) {
			t.Errorf("Resize(%d) error = %v, want ErrInvalidCapacity", n, err)
		}
	}
	if c.Capacity() != 5 {
		t.Errorf("failed Resize changed capacity to %d", c.Capacity())
	}
}

func TestCache_Clear(t *testing.T) {
	for _, pt := range PolicyTypes {
		t.Run(string(pt), func(t *testing.T) {
			c := newTestCache(t, pt, 2)
			a, b := serviceKey(t, "a"), serviceKey(t, "b")
			_ = c.Set(a, &testHandle{})
			_ = c.Set(b, &testHandle{})

			c.Clear()
			if c.Len() != 0 {
				t.Errorf("Len() = %d, want 0", c.Len())
			}
			if c.Contains(a) {
				t.Error("a should be gone")
			}

			// Bookkeeping is reset: capacity still applies normally.
			_ = c.Set(a, &testHandle{})
			_ = c.Set(b, &testHandle{})
			_ = c.Set(serviceKey(t, "c"), &testHandle{})
			if c.Len() != 2 || c.Contains(a) {
				t.Errorf("after Clear, eviction misbehaved: %v", keyNames(c))
			}
		})
	}
}

func TestCache_IterationOrder(t *testing.T) {
	c := newTestCache(t, PolicyLRU, 3)
	for _, s := range []string{"a", "b", "c"} {
		_ = c.Set(serviceKey(t, s), &testHandle{service: s})
	}
	_, _ = c.Get(serviceKey(t, "a"))

	if got, want := keyNames(c), []string{"b", "c", "a"}; !slices.Equal(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}

	var services []string
	for v := range c.Values() {
		services = append(services, v.service)
	}
	if want := []string{"b", "c", "a"}; !slices.Equal(services, want) {
		t.Errorf("Values() = %v, want %v", services, want)
	}

	for k, v := range c.All() {
		if k.Discriminator() != v.service {
			t.Errorf("All() pair mismatch: %s -> %s", k, v.service)
		}
	}

	// Iterating must not record accesses.
	_ = c.Set(serviceKey(t, "d"), &testHandle{service: "d"})
	if c.Contains(serviceKey(t, "b")) {
		t.Error("b should have been evicted")
	}
}

func TestCache_IterationIsSnapshot(t *testing.T) {
	c := newTestCache(t, PolicyLRU, 3)
	for _, s := range []string{"a", "b", "c"} {
		_ = c.Set(serviceKey(t, s), &testHandle{service: s})
	}

	var seen int
	for k := range c.Keys() {
		// Mutating during iteration neither deadlocks nor changes the view.
		_ = c.Delete(k)
		seen++
	}
	if seen != 3 {
		t.Errorf("iterated %d keys, want 3", seen)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}

	// Early break.
	_ = c.Set(serviceKey(t, "a"), &testHandle{})
	_ = c.Set(serviceKey(t, "b"), &testHandle{})
	for range c.All() {
		break
	}
}

func TestCache_String(t *testing.T) {
	c := newTestCache(t, PolicyLRU, 2)
	if got := c.String(); got != "test(empty)" {
		t.Errorf("String() = %q, want %q", got, "test(empty)")
	}

	key := mustKey(t, DefaultKeySchema(), Params{"service_name": "s3", "aws_secret_access_key": "hunter2"})
	_ = c.Set(key, &testHandle{})

	got := c.String()
	if !strings.HasPrefix(got, "test:\n  - key(") {
		t.Errorf("String() = %q", got)
	}
	if strings.Contains(got, "hunter2") {
		t.Errorf("String() leaks a secret: %q", got)
	}
}

func TestCache_Hooks(t *testing.T) {
	var mu sync.Mutex
	var log []string
	record := func(format string, args ...any) {
		mu.Lock()
		log = append(log, fmt.Sprintf(format, args...))
		mu.Unlock()
	}

	var c *Cache[*testHandle]
	c = newTestCache(t, PolicyLRU, 1, WithHooks(Hooks[*testHandle]{
		OnHit:    func(k Key, _ *testHandle) { record("hit %s", k.Discriminator()) },
		OnMiss:   func(k Key) { record("miss %s", k.Discriminator()) },
		OnInsert: func(k Key, _ *testHandle) { record("insert %s", k.Discriminator()) },
		OnEvict: func(k Key, _ *testHandle, r EvictReason) {
			// Hooks run without the lock held.
			_ = c.Len()
			record("evict %s %s", k.Discriminator(), r)
		},
		OnRemove: func(k Key, _ *testHandle) { record("remove %s", k.Discriminator()) },
	}))

	a, b := serviceKey(t, "a"), serviceKey(t, "b")
	_ = c.Set(a, &testHandle{})
	_, _ = c.Get(a)
	_, _ = c.Get(b)
	_ = c.Set(b, &testHandle{})
	_ = c.Delete(b)
	_ = c.Set(a, &testHandle{})
	_, _, _ = c.Evict()
	_ = c.Set(b, &testHandle{})
	c.Clear()

	want := []string{
		"insert a",
		"hit a",
		"miss b",
		"evict a capacity",
		"insert b",
		"remove b",
		"insert a",
		"evict a manual",
		"insert b",
		"remove b",
	}
	if !slices.Equal(log, want) {
		t.Errorf("events =\n  %v\nwant\n  %v", log, want)
	}
}

func TestCache_ResizeHook(t *testing.T) {
	var reasons []EvictReason
	c := newTestCache(t, PolicyLFU, 3, WithHooks(Hooks[*testHandle]{
		OnEvict: func(_ Key, _ *testHandle, r EvictReason) { reasons = append(reasons, r) },
	}))
	for _, s := range []string{"a", "b", "c"} {
		_ = c.Set(serviceKey(t, s), &testHandle{})
	}
	_ = c.Resize(1)

	if want := []EvictReason{EvictReasonResize, EvictReasonResize}; !slices.Equal(reasons, want) {
		t.Errorf("reasons = %v, want %v", reasons, want)
	}
}

func TestCache_ConcurrentDisjointKeys(t *testing.T) {
	const workers = 8
	const perWorker = 60

	c := newTestCache(t, PolicyLFU, workers*perWorker)
	var deleted atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				key := mustKey(t, DefaultKeySchema(), Params{"service_name": "s3", "worker": w, "n": i})
				h := &testHandle{service: fmt.Sprintf("%d-%d", w, i)}
				if err := c.Set(key, h); err != nil {
					t.Errorf("Set() error = %v", err)
					return
				}
				got, err := c.Get(key)
				if err != nil || got != h {
					t.Errorf("Get() = %v, %v; want own handle", got, err)
					return
				}
				if i%3 == 0 {
					if err := c.Delete(key); err != nil {
						t.Errorf("Delete() error = %v", err)
						return
					}
					deleted.Add(1)
				}
				for k, v := range c.All() {
					if k.IsZero() || v == nil {
						t.Errorf("All() yielded an empty entry")
						return
					}
				}
			}
		}(w)
	}
	wg.Wait()

	want := workers*perWorker - int(deleted.Load())
	if c.Len() != want {
		t.Errorf("Len() = %d, want %d inserts minus deletes", c.Len(), want)
	}
}

func TestCache_ConcurrentSameKey(t *testing.T) {
	c := newTestCache(t, PolicyLRU, 4)
	key := serviceKey(t, "s3")

	const goroutines = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	var wins int
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := c.Set(key, &testHandle{service: "s3"})
			switch {
			case err == nil:
				mu.Lock()
				wins++
				mu.Unlock()
			case !errors.Is(err, ErrAlreadyExists):
				t.Errorf("Set() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("%d Set calls succeeded, want exactly 1", wins)
	}
}

func TestCache_CapacityBoundUnderContention(t *testing.T) {
	const capacity = 5
	c := newTestCache(t, PolicyLRU, capacity)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				key := mustKey(t, DefaultKeySchema(), Params{"service_name": "sts", "w": w, "i": i})
				_ = c.Set(key, &testHandle{})
				if n := c.Len(); n > capacity {
					t.Errorf("Len() = %d exceeds capacity %d", n, capacity)
					return
				}
			}
		}(w)
	}
	wg.Wait()
}
