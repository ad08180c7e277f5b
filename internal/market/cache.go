package market

import (
	"sort"
	"sync"
	"time"

	"autopilot/internal/domain"
)

// Cache keeps the most recent opportunity per market for a TTL. The quick
// scan reads it instead of fetching again.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]domain.Opportunity
	ttl     time.Duration
	now     func() time.Time
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]domain.Opportunity),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Set replaces the entry for the opportunity's market unless the cached one
// is newer.
func (c *Cache) Set(o domain.Opportunity) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cur, ok := c.entries[o.Market]; ok && cur.Timestamp.After(o.Timestamp) {
		return
	}
	c.entries[o.Market] = o
}

func (c *Cache) Get(market string) (domain.Opportunity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	o, ok := c.entries[market]
	if !ok || c.expired(o) {
		return domain.Opportunity{}, false
	}
	return o, true
}

// All returns the non-expired entries, highest priority first.
func (c *Cache) All() []domain.Opportunity {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]domain.Opportunity, 0, len(c.entries))
	for _, o := range c.entries {
		if !c.expired(o) {
			result = append(result, o)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Priority != result[j].Priority {
			return result[i].Priority > result[j].Priority
		}
		return result[i].Market < result[j].Market
	})
	return result
}

// AtLeast returns the non-expired entries whose priority is >= threshold.
func (c *Cache) AtLeast(threshold int) []domain.Opportunity {
	var hot []domain.Opportunity
	for _, o := range c.All() {
		if o.Priority >= threshold {
			hot = append(hot, o)
		}
	}
	return hot
}

func (c *Cache) expired(o domain.Opportunity) bool {
	return c.ttl > 0 && c.now().Sub(o.Timestamp) > c.ttl
}
