package resilience

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestKeyedLimiter_Defaults(t *testing.T) {
	k := NewKeyedLimiter(RateLimiterConfig{}, 0)
	if k.rate != 1 || k.burst != 5 || k.idle != 10*time.Minute {
		t.Errorf("rate=%v burst=%v idle=%v", k.rate, k.burst, k.idle)
	}
}

func TestKeyedLimiter_Take(t *testing.T) {
	clock := newFakeClock()
	k := NewKeyedLimiter(RateLimiterConfig{Rate: 2, Burst: 3, Now: clock.Now}, time.Minute)

	steps := []struct {
		name    string
		advance time.Duration
		wantOK  bool
		wantIn  time.Duration
	}{
		{name: "first", wantOK: true},
		{name: "second", wantOK: true},
		{name: "third", wantOK: true},
		{name: "burst spent", wantOK: false, wantIn: 500 * time.Millisecond},
		{name: "half refilled", advance: 250 * time.Millisecond, wantOK: false, wantIn: 250 * time.Millisecond},
		{name: "refilled", advance: 250 * time.Millisecond, wantOK: true},
	}
	for _, s := range steps {
		t.Run(s.name, func(t *testing.T) {
			clock.Advance(s.advance)
			in, ok := k.Take("10.0.0.1")
			if ok != s.wantOK || in != s.wantIn {
				t.Errorf("Take() = (%v, %v), want (%v, %v)", in, ok, s.wantIn, s.wantOK)
			}
		})
	}
}

func TestKeyedLimiter_RefillCapsAtBurst(t *testing.T) {
	clock := newFakeClock()
	k := NewKeyedLimiter(RateLimiterConfig{Rate: 1, Burst: 2, Now: clock.Now}, time.Hour)

	k.Take("a")
	clock.Advance(30 * time.Minute)

	granted := 0
	for i := 0; i < 5; i++ {
		if _, ok := k.Take("a"); ok {
			granted++
		}
	}
	if granted != 2 {
		t.Errorf("granted = %d, want 2", granted)
	}
}

func TestKeyedLimiter_IsolatesKeys(t *testing.T) {
	clock := newFakeClock()
	k := NewKeyedLimiter(RateLimiterConfig{Rate: 1, Burst: 1, Now: clock.Now}, time.Minute)

	if _, ok := k.Take("10.0.0.1"); !ok {
		t.Fatal("first attempt from 10.0.0.1 should pass")
	}
	if _, ok := k.Take("10.0.0.1"); ok {
		t.Error("second attempt from 10.0.0.1 should be throttled")
	}
	if _, ok := k.Take("10.0.0.2"); !ok {
		t.Error("other clients should have their own bucket")
	}
	if k.Len() != 2 {
		t.Errorf("Len() = %d, want 2", k.Len())
	}
}

func TestKeyedLimiter_Sweep(t *testing.T) {
	clock := newFakeClock()
	k := NewKeyedLimiter(RateLimiterConfig{Now: clock.Now}, time.Minute)

	k.Take("old")
	clock.Advance(2 * time.Minute)
	k.Take("fresh")

	if n := k.Sweep(); n != 1 {
		t.Errorf("Sweep() = %d, want 1", n)
	}
	if k.Len() != 1 {
		t.Errorf("Len() = %d, want 1", k.Len())
	}
}

func TestKeyedLimiter_RunStopsOnCancel(t *testing.T) {
	k := NewKeyedLimiter(RateLimiterConfig{}, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		k.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestKeyedLimiter_Concurrent(t *testing.T) {
	clock := newFakeClock()
	k := NewKeyedLimiter(RateLimiterConfig{Rate: 0.001, Burst: 50, Now: clock.Now}, time.Minute)

	var mu sync.Mutex
	allowed := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := k.Take("shared"); ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 50 {
		t.Errorf("allowed = %d, want 50", allowed)
	}
}
