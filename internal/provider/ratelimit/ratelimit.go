package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Cooldown enforces a minimum time between the starts of successive fetch
// cycles. It is a deadline check, not a sleep: callers that must stay
// responsive can poll Remaining, and Wait returns early if the context is
// canceled.
type Cooldown struct {
	Interval time.Duration

	now   func() time.Time
	mu    sync.Mutex
	start time.Time
}

// NewCooldown returns a gate that opens interval after each Begin.
func NewCooldown(interval time.Duration) *Cooldown {
	return &Cooldown{Interval: interval, now: time.Now}
}

// Begin records the start of a cycle.
func (c *Cooldown) Begin() time.Time {
	if c == nil {
		return time.Now()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = c.clock()
	return c.start
}

// Remaining reports how long until the next cycle may start.
func (c *Cooldown) Remaining() time.Duration {
	if c == nil || c.Interval <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.start.IsZero() {
		return 0
	}
	wait := c.start.Add(c.Interval).Sub(c.clock())
	if wait < 0 {
		return 0
	}
	return wait
}

// Wait blocks until the cooldown has elapsed. onPending, when set, is called
// with the remaining duration before each wait so callers can show it.
func (c *Cooldown) Wait(ctx context.Context, onPending func(time.Duration)) error {
	for {
		wait := c.Remaining()
		if wait <= 0 {
			return nil
		}
		if onPending != nil {
			onPending(wait)
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (c *Cooldown) clock() time.Time {
	if c.now == nil {
		return time.Now()
	}
	return c.now()
}
