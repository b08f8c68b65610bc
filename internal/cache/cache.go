package cache

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// item represents a cached value with expiration
type item[V any] struct {
	value      V
	expiration int64
}

func (i item[V]) expired(now int64) bool {
	return i.expiration > 0 && now > i.expiration
}

// Cache is an in-memory TTL cache with a size cap. Concurrent loads of the
// same key are collapsed into one.
type Cache[V any] struct {
	items      map[string]item[V]
	mu         sync.RWMutex
	defaultTTL time.Duration
	maxSize    int
	group      singleflight.Group
	gen        uint64 // bumped by Delete and Clear
	stop       chan struct{}
	stopOnce   sync.Once
}

// New creates a cache. A cleanup goroutine runs every interval until Close.
func New[V any](defaultTTL time.Duration, maxSize int, interval time.Duration) *Cache[V] {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if interval <= 0 {
		interval = time.Minute
	}
	c := &Cache[V]{
		items:      make(map[string]item[V]),
		defaultTTL: defaultTTL,
		maxSize:    maxSize,
		stop:       make(chan struct{}),
	}
	go c.cleanup(interval)
	return c
}

// Get retrieves an item from the cache
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	it, found := c.items[key]
	c.mu.RUnlock()

	if !found || it.expired(time.Now().UnixNano()) {
		var zero V
		return zero, false
	}
	return it.value, true
}

// Set stores an item in the cache with default TTL
func (c *Cache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores an item with custom TTL. A TTL of zero never expires.
func (c *Cache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	var expiration int64
	if ttl > 0 {
		expiration = time.Now().Add(ttl).UnixNano()
	}

	c.mu.Lock()
	c.store(key, value, expiration)
	c.mu.Unlock()
}

// store inserts an item, evicting if full. Caller holds mu.
func (c *Cache[V]) store(key string, value V, expiration int64) {
	if _, exists := c.items[key]; !exists && len(c.items) >= c.maxSize {
		c.evictOne()
	}
	c.items[key] = item[V]{value: value, expiration: expiration}
}

// Delete removes an item from the cache
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.gen++
	c.mu.Unlock()
	c.group.Forget(key)
}

// GetOrLoad gets from cache or loads using the provided function. A load
// that overlaps a Delete or Clear is returned to its callers but not cached.
func (c *Cache[V]) GetOrLoad(key string, loader func() (V, error)) (V, error) {
	if val, found := c.Get(key); found {
		return val, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if val, found := c.Get(key); found {
			return val, nil
		}
		c.mu.RLock()
		gen := c.gen
		c.mu.RUnlock()

		result, err := loader()
		if err != nil {
			return nil, err
		}

		var expiration int64
		if c.defaultTTL > 0 {
			expiration = time.Now().Add(c.defaultTTL).UnixNano()
		}
		c.mu.Lock()
		if c.gen == gen {
			c.store(key, result, expiration)
		}
		c.mu.Unlock()
		return result, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// evictOne removes one expired item, or the one closest to expiry. Caller holds mu.
func (c *Cache[V]) evictOne() {
	now := time.Now().UnixNano()
	var victim string
	var soonest int64

	for key, it := range c.items {
		if it.expired(now) {
			delete(c.items, key)
			return
		}
		if victim == "" || (it.expiration > 0 && (soonest == 0 || it.expiration < soonest)) {
			victim = key
			soonest = it.expiration
		}
	}

	if victim != "" {
		delete(c.items, victim)
	}
}

// cleanup periodically removes expired items
func (c *Cache[V]) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			now := time.Now().UnixNano()
			c.mu.Lock()
			for key, it := range c.items {
				if it.expired(now) {
					delete(c.items, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

// Size returns the number of items in the cache
func (c *Cache[V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Clear removes all items from the cache
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	c.items = make(map[string]item[V])
	c.gen++
	c.mu.Unlock()
}

// Close stops the cleanup goroutine
func (c *Cache[V]) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}
