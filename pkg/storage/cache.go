package storage

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// entry pairs a cached value with the deadline it expires at.
type entry[V any] struct {
	val V
	exp time.Time
}

// Cache is a bounded, TTL-expiring in-memory layer in front of a
// space's cache database (§3: "cache - a short-term... store of
// records fetched from the network"). Nothing outside this package's
// tests constructs one; pkg/cascade's read path does not use it.
type Cache[K comparable, V any] struct {
	mu  sync.Mutex
	lru *lru.Cache[K, entry[V]]
	ttl time.Duration
}

// NewCache builds a cache holding at most capacity entries, each
// expiring ttl after it was last Put. An expired entry is removed when
// it is next read, not when its ttl passes.
func NewCache[K comparable, V any](capacity int, ttl time.Duration) (*Cache[K, V], error) {
	l, err := lru.New[K, entry[V]](capacity)
	if err != nil {
		return nil, err
	}
	return &Cache[K, V]{lru: l, ttl: ttl}, nil
}

// Get returns the cached value for key, or ok=false if absent or
// expired. An expired entry is evicted on read.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.lru.Get(key)
	if !ok {
		return zero, false
	}
	if time.Now().After(e.exp) {
		c.lru.Remove(key)
		return zero, false
	}
	return e.val, true
}

// Put stores val under key with the cache's configured TTL.
func (c *Cache[K, V]) Put(key K, val V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, entry[V]{val: val, exp: time.Now().Add(c.ttl)})
}

// Remove evicts key if present.
func (c *Cache[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
}

// Len returns the number of entries currently held, expired or not.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
