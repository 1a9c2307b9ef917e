package tier

import (
	"time"

	expirable "github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultTier is assumed for users whose tier cannot be resolved.
const DefaultTier = "free_trial"

// Cache is a bounded TTL map from userId to subscription tier. It is a
// best-effort enrichment store: a missing or expired entry never blocks a
// request, it only skips enrichment. Insertion past the cap evicts the
// least-recently-used entry.
type Cache struct {
	lru *expirable.LRU[string, string]
}

// NewCache creates a cache holding at most maxEntries tiers for ttl each.
func NewCache(maxEntries int, ttl time.Duration) *Cache {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{
		lru: expirable.NewLRU[string, string](maxEntries, nil, ttl),
	}
}

// Get returns the cached tier for userID, if present and fresh.
func (c *Cache) Get(userID string) (string, bool) {
	return c.lru.Get(userID)
}

// Set stores the tier for userID.
func (c *Cache) Set(userID, tier string) {
	c.lru.Add(userID, tier)
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	return c.lru.Len()
}
