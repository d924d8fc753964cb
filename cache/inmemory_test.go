package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInMemory(t *testing.T, opts ...Option) Cache {
	t.Helper()
	c, err := NewInMemory(context.Background(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestInMemoryZeroCapacity(t *testing.T) {
	_, err := NewInMemory(context.Background(), WithMaxItems(0))
	assert.Error(t, err)
	_, err = NewInMemory(context.Background(), WithMaxItems(-5))
	assert.Error(t, err)
}

func TestInMemorySetGet(t *testing.T) {
	c := newTestInMemory(t)
	found, val, err := c.Get("test")
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, val)
	assert.NoError(t, c.Set("test", "value", time.Minute))
	found, val, err = c.Get("test")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "value", val)
	ok, hits := c.Hits("test")
	assert.True(t, ok)
	assert.Equal(t, 1, hits)
}

func TestInMemoryLazyExpiry(t *testing.T) {
	c := newTestInMemory(t)
	assert.NoError(t, c.Set("test", "value", 10*time.Millisecond))
	found, val, err := c.Get("test")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "value", val)
	time.Sleep(11 * time.Millisecond)
	found, val, err = c.Get("test")
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, val)
	ok, hits := c.Hits("test")
	assert.False(t, ok)
	assert.Equal(t, 0, hits)
	// The expired entry is physically gone after the lookup.
	impl := c.(*inMemoryCache)
	impl.mutex.Lock()
	assert.Empty(t, impl.cache)
	assert.Zero(t, impl.recency.Len())
	impl.mutex.Unlock()
}

func TestInMemoryHitsDropsExpiredEntry(t *testing.T) {
	c := newTestInMemory(t)
	assert.NoError(t, c.Set("test", "value", 5*time.Millisecond))
	time.Sleep(6 * time.Millisecond)
	ok, hits := c.Hits("test")
	assert.False(t, ok)
	assert.Zero(t, hits)
	// Hits follows the same lazy-expiry discipline as Get: the expired
	// entry is physically removed by the lookup.
	impl := c.(*inMemoryCache)
	impl.mutex.Lock()
	assert.Empty(t, impl.cache)
	assert.Zero(t, impl.recency.Len())
	impl.mutex.Unlock()
}

func TestInMemoryZeroTTLDoesNotCache(t *testing.T) {
	c := newTestInMemory(t)
	assert.NoError(t, c.Set("a", 1, 0))
	found, _, err := c.Get("a")
	assert.NoError(t, err)
	assert.False(t, found)

	// A zero-TTL Set also supersedes any live entry.
	assert.NoError(t, c.Set("b", 1, time.Minute))
	assert.NoError(t, c.Set("b", 2, -time.Second))
	found, _, err = c.Get("b")
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestInMemoryLRUEviction(t *testing.T) {
	c := newTestInMemory(t, WithMaxItems(3))
	assert.NoError(t, c.Set("a", 1, time.Minute))
	assert.NoError(t, c.Set("b", 2, time.Minute))
	assert.NoError(t, c.Set("c", 3, time.Minute))

	// Touch "a" so "b" becomes the LRU entry.
	found, _, err := c.Get("a")
	assert.NoError(t, err)
	assert.True(t, found)

	// Inserting a fourth key evicts exactly "b".
	assert.NoError(t, c.Set("d", 4, time.Minute))
	found, _, err = c.Get("b")
	assert.NoError(t, err)
	assert.False(t, found)
	for _, key := range []string{"a", "c", "d"} {
		found, _, err = c.Get(key)
		assert.NoError(t, err)
		assert.True(t, found, "expected %s to survive eviction", key)
	}
}

func TestInMemorySetUpdatesRecency(t *testing.T) {
	c := newTestInMemory(t, WithMaxItems(2))
	assert.NoError(t, c.Set("a", 1, time.Minute))
	assert.NoError(t, c.Set("b", 2, time.Minute))
	// Overwriting "a" promotes it, so "b" is evicted next.
	assert.NoError(t, c.Set("a", 10, time.Minute))
	assert.NoError(t, c.Set("c", 3, time.Minute))
	found, _, err := c.Get("b")
	assert.NoError(t, err)
	assert.False(t, found)
	found, val, err := c.Get("a")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 10, val)
}

func TestInMemoryCapacityOne(t *testing.T) {
	c := newTestInMemory(t, WithMaxItems(1))
	assert.NoError(t, c.Set("x", 1, 5*time.Second))
	assert.NoError(t, c.Set("y", 2, 5*time.Second))
	found, _, err := c.Get("x")
	assert.NoError(t, err)
	assert.False(t, found)
	found, val, err := c.Get("y")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 2, val)
}

func TestInMemoryEvictPrefersExpired(t *testing.T) {
	c := newTestInMemory(t, WithMaxItems(2))
	assert.NoError(t, c.Set("stale", 1, time.Millisecond))
	assert.NoError(t, c.Set("live", 2, time.Minute))
	time.Sleep(2 * time.Millisecond)
	// At capacity the expired entry goes first, not the live LRU one.
	assert.NoError(t, c.Set("fresh", 3, time.Minute))
	found, _, err := c.Get("live")
	assert.NoError(t, err)
	assert.True(t, found)
	found, _, err = c.Get("fresh")
	assert.NoError(t, err)
	assert.True(t, found)
}

func TestInMemoryExpire(t *testing.T) {
	c := newTestInMemory(t)
	assert.NoError(t, c.Set("test", "value", time.Minute))
	ok, err := c.Expire("test")
	assert.NoError(t, err)
	assert.True(t, ok)
	ok, err = c.Expire("test")
	assert.NoError(t, err)
	assert.False(t, ok)
	found, _, err := c.Get("test")
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestInMemoryConcurrentAccess(t *testing.T) {
	c := newTestInMemory(t, WithMaxItems(64))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("key-%d", j%100)
				assert.NoError(t, c.Set(key, n, time.Minute))
				_, _, err := c.Get(key)
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()
	// The bound holds under concurrent writers.
	impl := c.(*inMemoryCache)
	impl.mutex.Lock()
	assert.LessOrEqual(t, impl.recency.Len(), 64)
	assert.Equal(t, impl.recency.Len(), len(impl.cache))
	impl.mutex.Unlock()
}
