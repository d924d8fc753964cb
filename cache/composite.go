package cache

import (
	"context"
	"time"
)

type tieredCache struct {
	tiers []Cache
}

var _ Cache = (*tieredCache)(nil)

// NewTiered returns a Cache that layers multiple caches, fastest first.
// Get checks tiers in order and returns the first hit. Set writes through
// to every tier. Expire removes from every tier. The usual topology is an
// in-memory L1 in front of a Redis L2 so that hot keys skip the network
// while the shared tier keeps processes consistent.
// At least one tier must be provided; panics if empty.
func NewTiered(tiers ...Cache) Cache {
	if len(tiers) == 0 {
		panic("cache: NewTiered requires at least one cache")
	}
	return &tieredCache{tiers: tiers}
}

func (c *tieredCache) GetContext(ctx context.Context, key string) (bool, any, error) {
	for _, tier := range c.tiers {
		found, val, err := tier.GetContext(ctx, key)
		if err != nil {
			return false, nil, err
		}
		if found {
			return true, val, nil
		}
	}
	return false, nil, nil
}

func (c *tieredCache) Get(key string) (bool, any, error) {
	return c.GetContext(context.Background(), key)
}

func (c *tieredCache) SetContext(ctx context.Context, key string, val any, expires time.Duration) error {
	var firstErr error
	for _, tier := range c.tiers {
		if err := tier.SetContext(ctx, key, val, expires); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *tieredCache) Set(key string, val any, expires time.Duration) error {
	return c.SetContext(context.Background(), key, val, expires)
}

func (c *tieredCache) HitsContext(ctx context.Context, key string) (bool, int) {
	for _, tier := range c.tiers {
		if found, hits := tier.HitsContext(ctx, key); found {
			return true, hits
		}
	}
	return false, 0
}

func (c *tieredCache) Hits(key string) (bool, int) {
	return c.HitsContext(context.Background(), key)
}

func (c *tieredCache) ExpireContext(ctx context.Context, key string) (bool, error) {
	anyFound := false
	for _, tier := range c.tiers {
		found, err := tier.ExpireContext(ctx, key)
		if err != nil {
			return anyFound, err
		}
		if found {
			anyFound = true
		}
	}
	return anyFound, nil
}

func (c *tieredCache) Expire(key string) (bool, error) {
	return c.ExpireContext(context.Background(), key)
}

func (c *tieredCache) CloseContext(ctx context.Context) error {
	var firstErr error
	for _, tier := range c.tiers {
		if err := tier.CloseContext(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *tieredCache) Close() error {
	return c.CloseContext(context.Background())
}
