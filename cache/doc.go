// Package cache provides a read-through cache with TTL expiry and
// swappable backends.
//
// # Cache Interface
//
// The [Cache] interface defines five operations: [Cache.Get], [Cache.Set],
// [Cache.Hits], [Cache.Expire], and [Cache.Close]. All implementations
// satisfy this interface, so backends can be swapped at construction time
// without changing call sites.
//
// The interface uses [any] for values rather than generics because Go does
// not allow generic methods on interfaces. Type safety is provided by the
// package-level generic functions [Get] and [Exec].
//
// # Implementations
//
//   - [NewInMemory] — In-process map guarded by a mutex, bounded by
//     [WithMaxItems]. When a new key is inserted at capacity, the least
//     recently used entry is evicted; recency is updated on both Get and
//     Set. Expired entries are dropped lazily at access time — there is no
//     background sweeper. Values are stored as-is with zero serialization
//     overhead. Lost on process restart and private to the process.
//
//   - [NewRedis] — Backed by Redis using [github.com/redis/go-redis/v9].
//     Values are serialized to msgpack and stored in Redis hashes (fields
//     "v" for value, "h" for hit count). Expiry uses native Redis TTL.
//     Because Redis is shared across processes, this is the backend to use
//     behind a load balancer where every process must observe the same
//     cached values. Backend failures surface as [ErrBackendUnavailable],
//     never as a miss, so callers can tell "not cached" from "cache
//     unavailable".
//
//   - [NewTiered] — Layers multiple caches, fastest first: Get returns the
//     first hit, Set writes through to every tier. Typically an in-memory
//     L1 in front of a Redis L2.
//
// # Read-Through
//
// [Exec] combines lookup and population in one call:
//
//	cached, v, err := cache.Exec(ctx, cache.CacheConfig{Key: key, Expires: ttl}, c,
//	    func(ctx context.Context) (Report, error) {
//	        return buildReport(ctx, key)
//	    },
//	)
//
// On a hit the cached value is returned with cached=true and the invoker is
// never called. On a miss the invoker runs, its result is stored with the
// given TTL, and cached=false is returned. There is no single-flight
// guarantee: concurrent misses for the same key may each invoke, so
// invokers must be idempotent.
//
// # TTL Semantics
//
// A TTL of zero or below means "do not cache": Set drops any existing
// entry and stores nothing. An expired entry is logically absent the
// moment its deadline passes, regardless of when it is physically removed.
package cache
