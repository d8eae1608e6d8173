package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"candleview/internal/market"
	"candleview/internal/provider"
)

// TokenBucket guards a per-minute request quota. It starts full so a burst
// of calls passes before pacing kicks in.
type TokenBucket struct {
	perSecond float64
	capacity  float64

	now    func() time.Time
	mu     sync.Mutex
	tokens float64
	last   time.Time
}

func NewTokenBucket(tokensPerSecond float64, burst int) *TokenBucket {
	if tokensPerSecond <= 0 {
		tokensPerSecond = 1e-7
	}
	if burst <= 0 {
		burst = 1
	}
	tb := &TokenBucket{perSecond: tokensPerSecond, capacity: float64(burst), now: time.Now}
	tb.tokens = tb.capacity
	tb.last = tb.now()
	return tb
}

// PerMinute builds a bucket from a requests-per-minute quota.
func PerMinute(rpm, burst int) *TokenBucket {
	return NewTokenBucket(float64(rpm)/60.0, burst)
}

// refill must be called with mu held.
func (tb *TokenBucket) refill() {
	now := tb.now()
	if d := now.Sub(tb.last); d > 0 {
		tb.tokens = min(tb.capacity, tb.tokens+d.Seconds()*tb.perSecond)
		tb.last = now
	}
}

// deficit must be called with mu held.
func (tb *TokenBucket) deficit() time.Duration {
	d := time.Duration(math.Round((1 - tb.tokens) / tb.perSecond * float64(time.Second)))
	return max(d, time.Millisecond)
}

// Delay reports how long until a token is available, without taking one.
func (tb *TokenBucket) Delay() time.Duration {
	if tb == nil {
		return 0
	}
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill()
	if tb.tokens >= 1 {
		return 0
	}
	return tb.deficit()
}

// take consumes a token, or reports how long to wait for one.
func (tb *TokenBucket) take() (time.Duration, bool) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill()
	if tb.tokens >= 1 {
		tb.tokens--
		return 0, true
	}
	return tb.deficit(), false
}

// Wait blocks until a token is taken or ctx is done.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		wait, ok := tb.take()
		if ok {
			return nil
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

// TokenBucketProvider wraps a Provider and gates calls using a token bucket.
// Delay lets a caller wait out the quota before issuing Fetch.
type TokenBucketProvider struct {
	P  provider.Provider
	TB *TokenBucket
}

func (t *TokenBucketProvider) Name() string { return t.P.Name() }

// Delay reports the time until the next call would pass the bucket.
func (t *TokenBucketProvider) Delay() time.Duration { return t.TB.Delay() }

func (t *TokenBucketProvider) Fetch(ctx context.Context, req market.Request) (market.RawResponse, error) {
	if t.TB != nil {
		if err := t.TB.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return t.P.Fetch(ctx, req)
}
