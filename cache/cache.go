package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrBackendUnavailable marks errors caused by an unreachable or failing
// remote backend. It is distinct from a cache miss: callers that see this
// error can fall back to computing directly, but must not treat the key as
// simply absent. Test with errors.Is.
var ErrBackendUnavailable = errors.New("cache: backend unavailable")

type Cache interface {
	// Get retrieves a value from the cache using the cache's base context.
	Get(key string) (bool, any, error)
	// GetContext retrieves a value from the cache. The context controls
	// cancellation and timeout for I/O-backed implementations.
	GetContext(ctx context.Context, key string) (bool, any, error)

	// Set stores a value in the cache with a TTL using the cache's base context.
	Set(key string, val any, expires time.Duration) error
	// SetContext stores a value in the cache with a TTL. If expires <= 0,
	// the value is immediately expired (equivalent to not caching it).
	SetContext(ctx context.Context, key string, val any, expires time.Duration) error

	// Hits returns the number of times a key has been read since it was set.
	Hits(key string) (bool, int)
	// HitsContext returns the number of times a key has been read since it was set.
	HitsContext(ctx context.Context, key string) (bool, int)

	// Expire removes a key from the cache.
	Expire(key string) (bool, error)
	// ExpireContext removes a key from the cache.
	ExpireContext(ctx context.Context, key string) (bool, error)

	// Close shuts down the cache.
	Close() error
	// CloseContext shuts down the cache.
	CloseContext(ctx context.Context) error
}

// GetContext retrieves a typed value from the cache using the provided context.
// For the in-memory cache, it performs a direct type assertion.
// For the Redis cache, it deserializes from []byte using msgpack.
func GetContext[T any](ctx context.Context, c Cache, key string) (bool, T, error) {
	found, val, err := c.GetContext(ctx, key)
	if !found || err != nil {
		var zero T
		return false, zero, err
	}
	if typed, ok := val.(T); ok {
		return true, typed, nil
	}
	if data, ok := val.([]byte); ok {
		var result T
		if err := msgpack.Unmarshal(data, &result); err != nil {
			var zero T
			return false, zero, fmt.Errorf("cache: failed to unmarshal value: %w", err)
		}
		return true, result, nil
	}
	var zero T
	return false, zero, fmt.Errorf("cache: cannot convert value of type %T to %T", val, zero)
}

// Get retrieves a typed value from the cache using a background context.
func Get[T any](c Cache, key string) (bool, T, error) {
	return GetContext[T](context.Background(), c, key)
}

// DefaultQueryTimeout is the per-operation timeout for cache backends that
// perform I/O (Redis). Prevents indefinite hangs on slow or unresponsive
// storage.
const DefaultQueryTimeout = 5 * time.Second

// DefaultMaxItems is the capacity of the in-memory cache when WithMaxItems
// is not given.
const DefaultMaxItems = 1024

// config holds the resolved configuration for a cache implementation.
type config struct {
	maxItems     int
	queryTimeout time.Duration
	prefix       string
}

// Option configures a Cache implementation.
type Option func(*config)

func defaultConfig() config {
	return config{
		maxItems:     DefaultMaxItems,
		queryTimeout: DefaultQueryTimeout,
	}
}

func applyOptions(opts []Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithMaxItems bounds the in-memory cache to n entries. When a new key is
// inserted at capacity, the least recently used entry is evicted first.
// Defaults to DefaultMaxItems. Must be at least 1.
func WithMaxItems(n int) Option {
	return func(c *config) { c.maxItems = n }
}

// WithQueryTimeout sets the per-operation timeout for I/O-backed caches
// (Redis). Defaults to DefaultQueryTimeout (5 seconds).
func WithQueryTimeout(d time.Duration) Option {
	return func(c *config) { c.queryTimeout = d }
}

// WithPrefix sets the key prefix for namespacing cache keys.
// Applies to the Redis backend. Defaults to empty (no prefix).
func WithPrefix(p string) Option {
	return func(c *config) { c.prefix = p }
}

// CacheConfig configures the Exec helper.
type CacheConfig struct {
	// Expires is the TTL for the computed value. If <= 0 the value is not
	// cached and every call recomputes.
	Expires time.Duration
	// Key is the cache key. Required.
	Key string
}

// Invoker produces the value for a key on a cache miss. It must be
// idempotent: Exec gives no single-flight guarantee, so concurrent misses
// for the same key may each invoke it.
type Invoker[T any] func(ctx context.Context) (T, error)

// Exec is a read-through helper. It checks the cache for config.Key first.
// On a hit it returns the cached value with cached=true. On a miss it calls
// invoke, stores the result with config.Expires, and returns the fresh value
// with cached=false.
//
// Cache read errors are propagated so callers can tell "not cached" from
// "cache unavailable". If the cache Set fails after a successful invoke, the
// value is still returned and the Set error is swallowed — failing to cache
// a value the caller already has is a degradation, not a failure.
func Exec[T any](ctx context.Context, config CacheConfig, c Cache, invoke Invoker[T]) (bool, T, error) {
	found, val, err := GetContext[T](ctx, c, config.Key)
	if err != nil {
		var zero T
		return false, zero, err
	}
	if found {
		return true, val, nil
	}

	result, err := invoke(ctx)
	if err != nil {
		var zero T
		return false, zero, err
	}

	_ = c.SetContext(ctx, config.Key, result, config.Expires)

	return false, result, nil
}
