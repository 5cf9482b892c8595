package tilecache

import (
	"context"
	"sync"

	"github.com/golang/groupcache/lru"
	"github.com/jamesrr39/goutil/errorsx"
)

// Cache stores fetched resource bytes, keyed by URL
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, errorsx.Error)
	Put(ctx context.Context, key string, data []byte) errorsx.Error
}

const DefaultMaxEntries = 512

var _ Cache = &MemoryCache{}

// MemoryCache is a bounded, least-recently-used in-memory cache
type MemoryCache struct {
	mu    sync.Mutex
	cache *lru.Cache
}

func NewMemoryCache(maxEntries int) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	return &MemoryCache{
		cache: lru.New(maxEntries),
	}
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, errorsx.Error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	val, ok := c.cache.Get(key)
	if !ok {
		return nil, false, nil
	}

	return val.([]byte), true, nil
}

func (c *MemoryCache) Put(ctx context.Context, key string, data []byte) errorsx.Error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Add(key, data)

	return nil
}

func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.cache.Len()
}

// NopCache never stores anything
type NopCache struct{}

func (NopCache) Get(ctx context.Context, key string) ([]byte, bool, errorsx.Error) {
	return nil, false, nil
}

func (NopCache) Put(ctx context.Context, key string, data []byte) errorsx.Error {
	return nil
}
