// Package awscache caches AWS SDK v2 service clients and resources so each
// distinct construction configuration yields one shared handle.
//
// The low-level API pairs a cache.Cache with a handle kind:
//
//	clients, _ := awscache.NewClientCache(cache.Config{Capacity: 20})
//	key, _ := awscache.NewClientKey(cache.Params{"service_name": "s3", "region_name": "us-west-2"})
//	_ = clients.Set(key, s3.NewFromConfig(cfg))
//
// Session is the high-level API. It owns an LRU and an LFU cache for each
// kind and builds missing handles through a Registry of service factories:
//
//	sess, err := awscache.NewSession(ctx, awscache.WithRegion("us-east-1"))
//	c, err := awscache.ClientAs[*s3.Client](ctx, sess, "s3")
//	again, err := awscache.ClientAs[*s3.Client](ctx, sess, "s3") // same pointer
//
// Package-level Client and Resource use a lazily created default session;
// SetupDefaultSession replaces it.
//
// Sessions never share caches. Evicting a handle drops the cache's
// reference only; callers holding it may keep using it.
package awscache
