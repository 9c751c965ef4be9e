package cache

import (
	"fmt"
	"testing"
)

// BenchmarkNewKey measures key derivation for a typical client parameter set.
func BenchmarkNewKey(b *testing.B) {
	params := Params{
		"service_name":          "s3",
		"region_name":           "us-west-2",
		"aws_access_key_id":     "AKIDEXAMPLE",
		"aws_secret_access_key": "secret",
		"config":                map[string]any{"retries": map[string]any{"max_attempts": 3}},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = NewKey(params)
	}
}

// BenchmarkCache_Get_Hit measures hit performance for each policy.
func BenchmarkCache_Get_Hit(b *testing.B) {
	for _, pt := range PolicyTypes {
		b.Run(string(pt), func(b *testing.B) {
			c := newTestCache(b, pt, 16)
			key := serviceKey(b, "s3")
			_ = c.Set(key, &testHandle{})

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = c.Get(key)
			}
		})
	}
}

// BenchmarkCache_Set_Evict measures inserts into a full cache.
func BenchmarkCache_Set_Evict(b *testing.B) {
	keys := make([]Key, 1024)
	for i := range keys {
		keys[i] = mustKey(b, DefaultKeySchema(), Params{"service_name": "s3", "n": i})
	}

	for _, pt := range PolicyTypes {
		b.Run(string(pt), func(b *testing.B) {
			c := newTestCache(b, pt, 64)

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				key := keys[i%len(keys)]
				if err := c.Set(key, &testHandle{}); err != nil {
					_ = c.Delete(key)
				}
			}
		})
	}
}

// BenchmarkCache_Parallel measures mixed reads under contention.
func BenchmarkCache_Parallel(b *testing.B) {
	c := newTestCache(b, PolicyLRU, 32)
	keys := make([]Key, 32)
	for i := range keys {
		keys[i] = mustKey(b, DefaultKeySchema(), Params{"service_name": fmt.Sprintf("svc-%d", i)})
		_ = c.Set(keys[i], &testHandle{})
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_, _ = c.Lookup(keys[i%len(keys)])
			i++
		}
	})
}
