package auth

import (
	"sync"
	"time"
)

// RateLimiter implements a token bucket rate limiter keyed by caller,
// so one user burning through their allowance never throttles another.
type RateLimiter struct {
	mu       sync.Mutex
	rate     float64 // tokens per second
	capacity int64   // maximum token capacity per bucket
	buckets  map[string]*bucket
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewRateLimiter creates a limiter that allows rate operations per
// interval for each distinct key.
func NewRateLimiter(rate int64, interval time.Duration) *RateLimiter {
	if rate <= 0 || interval <= 0 {
		panic("rate and interval must be positive")
	}

	return &RateLimiter{
		rate:     float64(rate) / interval.Seconds(),
		capacity: rate,
		buckets:  make(map[string]*bucket),
	}
}

// Allow reports whether the caller identified by key may proceed, and
// consumes one token when it may.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(rl.capacity), last: now}
		rl.buckets[key] = b
	}

	elapsed := now.Sub(b.last).Seconds()
	b.last = now
	b.tokens = min(float64(rl.capacity), b.tokens+elapsed*rl.rate)

	if b.tokens < 1.0 {
		return false
	}

	b.tokens--
	return true
}

// WaitTime returns how long the caller must wait before their next
// token becomes available. Zero means a request would be allowed now.
func (rl *RateLimiter) WaitTime(key string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok || b.tokens >= 1.0 {
		return 0
	}

	secondsNeeded := (1.0 - b.tokens) / rl.rate
	return time.Duration(secondsNeeded * float64(time.Second))
}

// Reset refills every bucket to full capacity.
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for _, b := range rl.buckets {
		b.tokens = float64(rl.capacity)
		b.last = now
	}
}
