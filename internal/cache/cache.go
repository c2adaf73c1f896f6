// Package cache memoizes search answers with a bounded, expiring LRU.
package cache

import (
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/you/railticket/internal/metrics"
)

// Result is anything the cache can hold; the total drives the stale-empty rule
type Result interface {
	TotalItems() int
}

// Policy decides what happens to a zero-result entry on read
type Policy int

const (
	// ServeAll replays every entry until it expires
	ServeAll Policy = iota
	// StaleEmpty evicts a zero-result entry on its next read and reports a
	// miss, so data materialized after the first answer is picked up.
	StaleEmpty
)

// Cache is a TTL + LRU cache of search results, safe for concurrent use.
// Cached values are shared between callers and must not be mutated.
type Cache[V Result] struct {
	name   string
	policy Policy
	lru    *expirable.LRU[string, V]
}

// New creates a cache holding at most size entries for ttl each.
// name labels the cache in metrics.
func New[V Result](name string, size int, ttl time.Duration, policy Policy) *Cache[V] {
	return &Cache[V]{
		name:   name,
		policy: policy,
		lru:    expirable.NewLRU[string, V](size, nil, ttl),
	}
}

// Get returns the entry for key, or false on a miss
func (c *Cache[V]) Get(key string) (V, bool) {
	v, ok := c.lru.Get(key)
	if !ok {
		metrics.IncCacheMiss(c.name)
		return v, false
	}
	if c.policy == StaleEmpty && v.TotalItems() == 0 {
		c.lru.Remove(key)
		metrics.IncCacheStaleEmpty(c.name)
		var zero V
		return zero, false
	}
	metrics.IncCacheHit(c.name)
	return v, true
}

// Put stores v under key, replacing any previous entry
func (c *Cache[V]) Put(key string, v V) {
	c.lru.Add(key, v)
}

// Len reports the number of live entries
func (c *Cache[V]) Len() int {
	return c.lru.Len()
}

// Key joins normalized request parts into a cache key
func Key(parts ...string) string {
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(p)
	}
	return b.String()
}
