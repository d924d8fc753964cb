package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"
)

// entry is one key's slot in the in-memory cache. The element field points
// back into the recency list so Get and Set can promote in O(1).
type entry struct {
	key     string
	object  any
	expires time.Time
	hits    int
}

type inMemoryCache struct {
	ctx      context.Context
	cancel   context.CancelFunc
	cache    map[string]*list.Element
	recency  *list.List // front = most recently used
	mutex    sync.Mutex
	once     sync.Once
	maxItems int
}

var _ Cache = (*inMemoryCache)(nil)

// NewInMemory returns a bounded in-memory Cache. Capacity comes from
// WithMaxItems; when a new key is inserted at capacity, the least recently
// used entry is evicted. Expired entries are dropped lazily on access —
// there is no background sweeper. A capacity below 1 is a configuration
// error.
func NewInMemory(parent context.Context, opts ...Option) (Cache, error) {
	cfg := applyOptions(opts)
	if cfg.maxItems < 1 {
		return nil, fmt.Errorf("cache: max items must be at least 1, got %d", cfg.maxItems)
	}
	ctx, cancel := context.WithCancel(parent)
	return &inMemoryCache{
		ctx:      ctx,
		cancel:   cancel,
		cache:    make(map[string]*list.Element),
		recency:  list.New(),
		maxItems: cfg.maxItems,
	}, nil
}

func (c *inMemoryCache) GetContext(_ context.Context, key string) (bool, any, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	el, ok := c.cache[key]
	if !ok {
		return false, nil, nil
	}
	e := el.Value.(*entry)
	if e.expires.Before(time.Now()) {
		c.removeLocked(el)
		return false, nil, nil
	}
	e.hits++
	c.recency.MoveToFront(el)
	return true, e.object, nil
}

func (c *inMemoryCache) Get(key string) (bool, any, error) {
	return c.GetContext(c.ctx, key)
}

func (c *inMemoryCache) HitsContext(_ context.Context, key string) (bool, int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	el, ok := c.cache[key]
	if !ok {
		return false, 0
	}
	e := el.Value.(*entry)
	if e.expires.Before(time.Now()) {
		c.removeLocked(el)
		return false, 0
	}
	return true, e.hits
}

func (c *inMemoryCache) Hits(key string) (bool, int) {
	return c.HitsContext(c.ctx, key)
}

func (c *inMemoryCache) SetContext(_ context.Context, key string, val any, expires time.Duration) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if expires <= 0 {
		// Immediately expired, equivalent to not caching. Any previous
		// value for the key is superseded and dropped.
		if el, ok := c.cache[key]; ok {
			c.removeLocked(el)
		}
		return nil
	}
	if el, ok := c.cache[key]; ok {
		e := el.Value.(*entry)
		e.hits = 0
		e.expires = time.Now().Add(expires)
		e.object = val
		c.recency.MoveToFront(el)
		return nil
	}
	if c.recency.Len() >= c.maxItems {
		c.evictLocked()
	}
	el := c.recency.PushFront(&entry{key: key, object: val, expires: time.Now().Add(expires)})
	c.cache[key] = el
	return nil
}

func (c *inMemoryCache) Set(key string, val any, expires time.Duration) error {
	return c.SetContext(c.ctx, key, val, expires)
}

func (c *inMemoryCache) ExpireContext(_ context.Context, key string) (bool, error) {
	c.mutex.Lock()
	el, ok := c.cache[key]
	if ok {
		c.removeLocked(el)
	}
	c.mutex.Unlock()
	return ok, nil
}

func (c *inMemoryCache) Expire(key string) (bool, error) {
	return c.ExpireContext(c.ctx, key)
}

func (c *inMemoryCache) CloseContext(_ context.Context) error {
	c.once.Do(func() {
		c.cancel()
	})
	return nil
}

func (c *inMemoryCache) Close() error {
	return c.CloseContext(c.ctx)
}

// evictLocked prefers dropping an already-expired entry over evicting a
// live one. Expired entries do not count toward recency, so scanning from
// the back finds them before any live LRU candidate is touched.
func (c *inMemoryCache) evictLocked() {
	now := time.Now()
	for el := c.recency.Back(); el != nil; el = el.Prev() {
		if el.Value.(*entry).expires.Before(now) {
			c.removeLocked(el)
			return
		}
	}
	if el := c.recency.Back(); el != nil {
		c.removeLocked(el)
	}
}

func (c *inMemoryCache) removeLocked(el *list.Element) {
	c.recency.Remove(el)
	delete(c.cache, el.Value.(*entry).key)
}
