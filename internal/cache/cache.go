// Package cache is a small TTL cache for computed read models. Expiry
// is driven by the caller's clock rather than timers, and concurrent
// misses for the same key share one fill instead of stampeding the
// database.
package cache

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache maps string keys to values of type V with a fixed TTL. Errors
// from fill functions are never cached.
type Cache[V any] struct {
	ttl     time.Duration
	mu      sync.Mutex
	entries map[string]entry[V]
	group   singleflight.Group
}

// New creates a cache whose entries expire ttl after being filled.
func New[V any](ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		ttl:     ttl,
		entries: make(map[string]entry[V]),
	}
}

// Get returns the cached value for key, filling it via fill on a miss.
// Concurrent callers missing on the same key wait for a single fill.
func (c *Cache[V]) Get(key string, now time.Time, fill func() (V, error)) (V, error) {
	if v, ok := c.lookup(key, now); ok {
		return v, nil
	}

	res, err, _ := c.group.Do(key, func() (interface{}, error) {
		// A concurrent fill may have landed while we queued.
		if v, ok := c.lookup(key, now); ok {
			return v, nil
		}
		v, err := fill()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = entry[V]{value: v, expiresAt: now.Add(c.ttl)}
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

func (c *Cache[V]) lookup(key string, now time.Time) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !now.Before(e.expiresAt) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Invalidate drops one key.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// InvalidatePrefix drops every key beginning with prefix. Read-model
// keys embed the athlete id up front, so a completed sync can flush all
// of one athlete's views in one call.
func (c *Cache[V]) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(c.entries, key)
		}
	}
}

// Len reports the number of stored entries, expired or not.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
