// Package cache provides an in-process TTL cache.
package cache

import (
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryCache is a size-bounded LRU cache whose entries expire after a TTL.
// It is safe for concurrent use.
type MemoryCache struct {
	lru     *expirable.LRU[string, interface{}]
	maxSize int
	ttl     time.Duration
}

// Stats reports cache usage
type Stats struct {
	Items   int           `json:"items"`
	MaxSize int           `json:"max_size"`
	TTL     time.Duration `json:"ttl"`
}

// NewMemoryCache creates a cache holding up to maxItems entries for ttl.
func NewMemoryCache(maxItems int, ttl time.Duration) (*MemoryCache, error) {
	if maxItems <= 0 {
		return nil, fmt.Errorf("cache size must be positive, got %d", maxItems)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("cache TTL must be positive, got %s", ttl)
	}
	return &MemoryCache{
		lru:     expirable.NewLRU[string, interface{}](maxItems, nil, ttl),
		maxSize: maxItems,
		ttl:     ttl,
	}, nil
}

// Get returns the cached value for key
func (c *MemoryCache) Get(key string) (interface{}, bool) {
	return c.lru.Get(key)
}

// GetStrings returns a cached string slice
func (c *MemoryCache) GetStrings(key string) ([]string, bool) {
	v, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	s, ok := v.([]string)
	return s, ok
}

// GetString returns a cached string
func (c *MemoryCache) GetString(key string) (string, bool) {
	v, ok := c.lru.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Set stores a value
func (c *MemoryCache) Set(key string, value interface{}) {
	c.lru.Add(key, value)
}

// Delete removes a value
func (c *MemoryCache) Delete(key string) {
	c.lru.Remove(key)
}

// Purge removes all values
func (c *MemoryCache) Purge() {
	c.lru.Purge()
}

// Len returns the number of cached values
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

// Stats returns cache usage
func (c *MemoryCache) Stats() Stats {
	return Stats{
		Items:   c.lru.Len(),
		MaxSize: c.maxSize,
		TTL:     c.ttl,
	}
}
