package utils

import (
	"sync"
	"time"
)

// JoinCache tracks member-join timestamps for a single guild. Unlike
// SlidingWindow it never evicts on Add: entries are retained until Prune
// discards everything older than twice the window, so memory is bounded by a
// periodic prune cycle rather than by each insert. Counting always uses the
// single configured window.
type JoinCache struct {
	mu      sync.Mutex
	window  time.Duration
	entries []time.Time
}

func NewJoinCache(window time.Duration) *JoinCache {
	return &JoinCache{window: window}
}

// Add records a join and returns the number of joins within the window.
func (c *JoinCache) Add(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, now)
	return c.countLocked(now)
}

// Count returns the number of joins within the window without recording one.
func (c *JoinCache) Count(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.countLocked(now)
}

// Prune discards entries older than twice the window.
func (c *JoinCache) Prune(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := now.Add(-2 * c.window)
	idx := 0
	for _, entry := range c.entries {
		if entry.After(cutoff) {
			break
		}
		idx++
	}
	c.entries = c.entries[idx:]
}

// Size reports retained entries, including ones outside the counting window.
func (c *JoinCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *JoinCache) countLocked(now time.Time) int {
	cutoff := now.Add(-c.window)
	count := 0
	for _, entry := range c.entries {
		if entry.After(cutoff) {
			count++
		}
	}
	return count
}
