// Package cache provides an optional Redis-backed cache for stats-service
// responses.
//
// The stats service computes completeness statistics per polygon, which is
// expensive on its side and rate limited on ours. Two requests for the same
// geometry within a short window return the same statistics, so responses
// are cached under a digest of the geometry bytes with a bounded TTL.
//
// # Usage
//
//	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	mgr := cache.NewManager(rdb, time.Hour)
//
//	key := cache.KeyForGeometry(geometryBytes)
//	entry, err := mgr.Get(ctx, key)
//	if err == cache.ErrCacheMiss {
//		// fetch from the stats service, then:
//		mgr.Set(ctx, key, cache.NewEntry(body, time.Hour))
//	}
//
// The cache is a best-effort optimization: every error degrades to a miss
// and the client works identically with no Redis configured.
package cache
