package resilience

import (
	"context"
	"sync"
	"time"
)

// RateLimiterConfig sizes each per-key token bucket.
type RateLimiterConfig struct {
	// Rate is tokens regained per second. Default: 1
	Rate float64
	// Burst is the bucket capacity. Default: 5
	Burst int
	// Now is the clock. Default: time.Now
	Now func() time.Time
}

func (c RateLimiterConfig) withDefaults() RateLimiterConfig {
	if c.Rate <= 0 {
		c.Rate = 1
	}
	if c.Burst <= 0 {
		c.Burst = 5
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

type bucket struct {
	tokens float64
	seen   time.Time
}

// KeyedLimiter throttles callers independently by key, usually the
// client address. Buckets idle for longer than the idle period are
// forgotten by Sweep.
type KeyedLimiter struct {
	rate  float64
	burst float64
	now   func() time.Time
	idle  time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewKeyedLimiter returns a limiter whose idle period defaults to ten
// minutes.
func NewKeyedLimiter(config RateLimiterConfig, idle time.Duration) *KeyedLimiter {
	config = config.withDefaults()
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	return &KeyedLimiter{
		rate:    config.Rate,
		burst:   float64(config.Burst),
		now:     config.Now,
		idle:    idle,
		buckets: make(map[string]*bucket),
	}
}

// Take spends one token from key's bucket. When the bucket is empty it
// returns false and the time until a token will be available.
func (k *KeyedLimiter) Take(key string) (time.Duration, bool) {
	now := k.now()

	k.mu.Lock()
	defer k.mu.Unlock()

	b, ok := k.buckets[key]
	if !ok {
		b = &bucket{tokens: k.burst, seen: now}
		k.buckets[key] = b
	}
	if elapsed := now.Sub(b.seen); elapsed > 0 {
		b.tokens = min(k.burst, b.tokens+elapsed.Seconds()*k.rate)
	}
	b.seen = now

	if b.tokens >= 1 {
		b.tokens--
		return 0, true
	}
	return time.Duration((1 - b.tokens) / k.rate * float64(time.Second)), false
}

// Sweep forgets idle buckets and reports how many it dropped. A dropped
// bucket comes back full, so only buckets that would have refilled
// anyway should be idle long enough to go.
func (k *KeyedLimiter) Sweep() int {
	cutoff := k.now().Add(-k.idle)

	k.mu.Lock()
	defer k.mu.Unlock()

	n := 0
	for key, b := range k.buckets {
		if b.seen.Before(cutoff) {
			delete(k.buckets, key)
			n++
		}
	}
	return n
}

// Len returns the number of tracked keys.
func (k *KeyedLimiter) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.buckets)
}

// Run calls Sweep every interval until ctx is done.
func (k *KeyedLimiter) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = k.idle
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			k.Sweep()
		}
	}
}
