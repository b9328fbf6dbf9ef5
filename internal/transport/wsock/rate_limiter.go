// Package wsock implements a token bucket rate limiter for per-connection
// throttling that keeps one requester from flooding the reply contexts.
package wsock

import (
	"sync"
	"time"
)

type rateLimiter struct {
	mu        sync.Mutex
	tokens    float64
	capacity  float64
	rate      float64
	lastCheck time.Time
	now       func() time.Time
}

func newRateLimiter(limit RateLimit) *rateLimiter {
	capacity, interval := limit.Burst, limit.RefillInterval
	if capacity <= 0 {
		capacity = 1
	}
	if interval <= 0 {
		interval = time.Second
	}

	rate := float64(capacity) / interval.Seconds()
	if rate <= 0 {
		rate = float64(capacity)
	}

	return &rateLimiter{
		tokens:    float64(capacity),
		capacity:  float64(capacity),
		rate:      rate,
		lastCheck: time.Now(),
		now:       time.Now,
	}
}

// take removes one token, refilling for the time elapsed since the last
// call. When the bucket is empty it takes nothing and returns how long until
// the next token is available.
func (rl *rateLimiter) take() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if elapsed := now.Sub(rl.lastCheck).Seconds(); elapsed > 0 {
		rl.tokens = min(rl.capacity, rl.tokens+elapsed*rl.rate)
	}
	rl.lastCheck = now

	if rl.tokens < 1 {
		wait := time.Duration((1 - rl.tokens) / rl.rate * float64(time.Second))
		return max(wait, time.Millisecond)
	}
	rl.tokens--
	return 0
}
