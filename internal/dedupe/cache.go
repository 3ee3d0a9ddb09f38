package dedupe

import (
	"sync"
	"time"
)

type entry struct {
	url string
	ts  time.Time
}

// Cache keeps a fixed-size set of recently persisted claim URLs. It is
// a fast path in front of the store's url-equality query, not a
// substitute for it: entries expire and the process may restart.
type Cache struct {
	mu       sync.Mutex
	items    map[string]time.Time
	order    []entry
	capacity int
	ttl      time.Duration
}

// NewCache creates a cache with the provided capacity and ttl.
func NewCache(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{
		items:    make(map[string]time.Time, capacity),
		order:    make([]entry, 0, capacity),
		capacity: capacity,
		ttl:      ttl,
	}
}

// IsSeen returns true when the URL has already been observed inside the
// ttl window. It does not mark the URL as seen; use MarkSeen for that.
func (c *Cache) IsSeen(url string) bool {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if ts, ok := c.items[url]; ok {
		if now.Sub(ts) <= c.ttl {
			return true
		}
	}
	return false
}

// MarkSeen records that a claim with this URL has been written.
func (c *Cache) MarkSeen(url string) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[url] = now
	c.order = append(c.order, entry{url: url, ts: now})
	c.compact(now)
}

func (c *Cache) compact(now time.Time) {
	cutoff := now.Add(-c.ttl)

	for len(c.order) > 0 && (len(c.items) > c.capacity || c.order[0].ts.Before(cutoff)) {
		oldest := c.order[0]
		c.order = c.order[1:]

		if ts, ok := c.items[oldest.url]; ok {
			if ts == oldest.ts {
				delete(c.items, oldest.url)
			}
		}
	}
}
