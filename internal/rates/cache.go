package rates

import (
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type cacheEntry struct {
	price     decimal.Decimal
	fetchedAt time.Time
}

// Cache holds the last known USD price per asset. Entries never expire; the
// TTL only decides whether an entry is fresh.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cacheEntry
}

// NewCache creates a cache with the given freshness window. A nil clock uses time.Now.
func NewCache(ttl time.Duration, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the cached price, whether it is still fresh, and whether any price is known.
func (c *Cache) Get(symbol string) (price decimal.Decimal, fresh bool, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[strings.ToUpper(symbol)]
	if !ok {
		return decimal.Zero, false, false
	}
	return entry.price, c.now().Sub(entry.fetchedAt) < c.ttl, true
}

func (c *Cache) Put(symbol string, price decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[strings.ToUpper(symbol)] = cacheEntry{price: price, fetchedAt: c.now()}
}
