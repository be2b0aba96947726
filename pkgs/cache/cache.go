package cache

import (
	lru "github.com/hashicorp/golang-lru"
)

// Cache is a thread-safe LRU cache. It fronts slower lookups (the
// on-disk event store, remote listings) with a bounded in-process hot
// set; eviction is purely LRU, staleness is the caller's concern.
type Cache struct {
	container *lru.Cache
}

// NewCache creates a Cache bounded at capacity entries.
func NewCache(capacity int) *Cache {
	cache := new(Cache)
	cache.container, _ = lru.New(capacity)
	return cache
}

// Add inserts an item. When the cache is full, the least recently used
// item is evicted to make room.
func (c *Cache) Add(key, val interface{}) {
	c.container.Add(key, val)
}

// Peek gets an item without updating its recency.
func (c *Cache) Peek(key interface{}) interface{} {
	v, _ := c.container.Peek(key)
	return v
}

// Get gets an item and marks it most recently used.
func (c *Cache) Get(key interface{}) interface{} {
	v, _ := c.container.Get(key)
	return v
}

// Keys returns all keys in the cache, oldest first.
func (c *Cache) Keys() []interface{} {
	return c.container.Keys()
}

// Remove removes an item from the cache.
func (c *Cache) Remove(key interface{}) {
	c.container.Remove(key)
}

// Has checks whether an item is in the cache without updating its
// recency.
func (c *Cache) Has(key interface{}) bool {
	return c.container.Contains(key)
}

// Len returns the number of items in the cache.
func (c *Cache) Len() int {
	return c.container.Len()
}
