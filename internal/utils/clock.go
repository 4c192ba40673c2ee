package utils

import (
	"sync"
	"time"
)

// MonotonicClock hands out UTC creation timestamps that never go backwards,
// truncated to the precision the backing store can round-trip.
type MonotonicClock struct {
	mu        sync.Mutex
	precision time.Duration
	last      time.Time
	now       func() time.Time
}

func NewMonotonicClock(precision time.Duration) *MonotonicClock {
	return &MonotonicClock{precision: precision, now: time.Now}
}

// Next returns max(now, previous timestamp).
func (c *MonotonicClock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Truncate(c.precision)
	if t.Before(c.last) {
		t = c.last
	}
	c.last = t
	return t
}

// Observe moves the floor forward, used when a store reopens existing data.
func (c *MonotonicClock) Observe(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.After(c.last) {
		c.last = t.UTC()
	}
}
