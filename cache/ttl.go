package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// TTL caches values by key until they expire.
type TTL[K ~string, V any] struct {
	policy Policy
	now    func() time.Time
	group  singleflight.Group

	mu      sync.Mutex
	entries map[K]entry[V]

	hits   atomic.Uint64
	misses atomic.Uint64
}

type entry[V any] struct {
	value   V
	expires time.Time
}

// Option configures a TTL cache.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now for expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New creates an empty cache.
func New[K ~string, V any](policy Policy, opts ...Option) *TTL[K, V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &TTL[K, V]{
		policy:  policy,
		now:     o.now,
		entries: make(map[K]entry[V]),
	}
}

// Get returns a fresh value. Expired entries are dropped on access.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if ok && c.now().Before(e.expires) {
		c.hits.Add(1)
		return e.value, true
	}
	if ok {
		delete(c.entries, key)
	}
	c.misses.Add(1)
	var zero V
	return zero, false
}

// Put stores value for DefaultTTL. It does nothing when the policy is
// disabled.
func (c *TTL[K, V]) Put(key K, value V) {
	if !c.policy.Enabled() {
		return
	}
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok && c.policy.MaxEntries > 0 && len(c.entries) >= c.policy.MaxEntries {
		c.evictLocked(now)
	}
	c.entries[key] = entry[V]{value: value, expires: now.Add(c.policy.DefaultTTL)}
}

// evictLocked drops every expired entry, or the oldest one when nothing
// has expired. All entries share one TTL, so oldest is soonest to expire.
func (c *TTL[K, V]) evictLocked(now time.Time) {
	var (
		oldest  K
		first   time.Time
		found   bool
		expired bool
	)
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
			expired = true
			continue
		}
		if !found || e.expires.Before(first) {
			oldest, first, found = k, e.expires, true
		}
	}
	if !expired && found {
		delete(c.entries, oldest)
	}
}

// Load returns the cached value or runs load once for all concurrent
// callers of the same key. Load errors reach every waiter and are not
// cached.
func (c *TTL[K, V]) Load(ctx context.Context, key K, load func(context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	res, err, _ := c.group.Do(string(key), func() (any, error) {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.Put(key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

// Purge drops every entry.
func (c *TTL[K, V]) Purge() {
	c.mu.Lock()
	clear(c.entries)
	c.mu.Unlock()
}

// Len counts stored entries, expired ones included until they are next
// touched.
func (c *TTL[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats reports lookups since creation.
type Stats struct {
	Hits   uint64
	Misses uint64
}

func (c *TTL[K, V]) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}
