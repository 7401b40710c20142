package registry

import (
	"maps"
	"sync"
	"time"
)

// Value is a cached raw feature value and when it was last seen.
type Value struct {
	Raw     int64
	Updated time.Time
}

// Cache holds the last known raw value per feature id.
type Cache struct {
	mu     sync.RWMutex
	values map[string]Value
	now    func() time.Time
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{values: make(map[string]Value), now: time.Now}
}

// Set records raw for id.
func (c *Cache) Set(id string, raw int64) {
	c.mu.Lock()
	c.values[id] = Value{Raw: raw, Updated: c.now()}
	c.mu.Unlock()
}

// Get returns the cached value for id.
func (c *Cache) Get(id string) (Value, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[id]
	return v, ok
}

// Snapshot returns a copy of every cached value.
func (c *Cache) Snapshot() map[string]Value {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.values)
}

// Reset drops every value. The Link Plus connection calls this before
// rebuilding the cache after a reconnect.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.values = make(map[string]Value)
	c.mu.Unlock()
}

// Len returns the number of cached features
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}
