package util

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket that refills at a fixed rate up to burst
// tokens. The Alpaca source uses it to stay under the data API quota.
type RateLimiter struct {
	mu       sync.Mutex
	rate     float64 // tokens per second
	burst    float64
	tokens   float64
	lastTime time.Time
	now      func() time.Time
}

// NewRateLimiter creates a RateLimiter that allows perMinute operations per
// minute with a burst of one.
func NewRateLimiter(perMinute int) *RateLimiter {
	return NewBurstRateLimiter(perMinute, 1)
}

// NewBurstRateLimiter is NewRateLimiter with a configurable bucket size. The
// bucket starts full.
func NewBurstRateLimiter(perMinute, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		rate:     float64(perMinute) / 60.0,
		burst:    float64(burst),
		tokens:   float64(burst),
		lastTime: time.Now(),
		now:      time.Now,
	}
}

// Allow takes a token if one is available without blocking.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}
	return false
}

// Wait blocks until a token is available or the context is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		if rl.Allow() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (rl *RateLimiter) refill() {
	now := rl.now()
	rl.tokens += now.Sub(rl.lastTime).Seconds() * rl.rate
	if rl.tokens > rl.burst {
		rl.tokens = rl.burst
	}
	rl.lastTime = now
}
