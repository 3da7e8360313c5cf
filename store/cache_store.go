package store

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

// CacheStore is a read-through LRU cache of a delegate Store. Writes made
// through the CacheStore update its cache, but writes made by other clients
// of the delegate are not observed: cached reads may then be stale. Use it
// only where this process is the sole writer of the keys it reads.
type CacheStore struct {
	Store Store

	cache *lru.Cache
	// mu is held for reading while a cache miss is filled from the delegate,
	// and for writing while a mutation is applied to the delegate and cache.
	// This keeps a racing fill from re-caching a value that's been replaced.
	mu sync.RWMutex
}

type cachedValue struct {
	value []byte
	ok    bool
}

// NewCacheStore returns a CacheStore of |store| which caches up to |size| keys.
func NewCacheStore(store Store, size int) *CacheStore {
	var cache, err = lru.New(size)
	if err != nil {
		panic(err.Error()) // Only errors on size <= 0.
	}
	return &CacheStore{Store: store, cache: cache}
}

func (c *CacheStore) Provider() string { return c.Store.Provider() }

func (c *CacheStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if v, ok := c.cache.Get(key); ok {
		storeCacheTotal.WithLabelValues("hit").Inc()
		var cv = v.(cachedValue)
		return append([]byte(nil), cv.value...), cv.ok, nil
	}
	storeCacheTotal.WithLabelValues("miss").Inc()

	c.mu.RLock()
	defer c.mu.RUnlock()

	var value, ok, err = c.Store.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	c.cache.Add(key, cachedValue{value: append([]byte(nil), value...), ok: ok})
	return value, ok, nil
}

func (c *CacheStore) Put(ctx context.Context, key string, value []byte, d Durability) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.Store.Put(ctx, key, value, d); err != nil {
		c.cache.Remove(key)
		return err
	}
	c.cache.Add(key, cachedValue{value: append([]byte{}, value...), ok: true})
	return nil
}

func (c *CacheStore) Delete(ctx context.Context, key string, d Durability) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.Store.Delete(ctx, key, d); err != nil {
		c.cache.Remove(key)
		return err
	}
	c.cache.Add(key, cachedValue{ok: false})
	return nil
}

func (c *CacheStore) Write(ctx context.Context, b *Batch, d Durability) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err = c.Store.Write(ctx, b, d)

	for _, op := range b.Ops {
		if err != nil {
			c.cache.Remove(op.Key)
		} else if op.Delete {
			c.cache.Add(op.Key, cachedValue{ok: false})
		} else {
			c.cache.Add(op.Key, cachedValue{value: append([]byte{}, op.Value...), ok: true})
		}
	}
	return err
}

func (c *CacheStore) Flush(ctx context.Context) error { return c.Store.Flush(ctx) }

func (c *CacheStore) Close() error {
	c.cache.Purge()
	return c.Store.Close()
}

// Len returns the number of cached keys.
func (c *CacheStore) Len() int { return c.cache.Len() }
