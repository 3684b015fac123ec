package cache

import "time"

// Policy bounds a TTL cache.
type Policy struct {
	// DefaultTTL is how long a loaded value stays fresh. Zero disables
	// caching: every lookup goes to the loader.
	DefaultTTL time.Duration

	// MaxEntries caps the cache. Zero means unbounded.
	MaxEntries int
}

// DefaultPolicy keeps values for a minute, at most 1024 of them.
func DefaultPolicy() Policy {
	return Policy{DefaultTTL: time.Minute, MaxEntries: 1024}
}

// Enabled reports whether values are kept at all.
func (p Policy) Enabled() bool {
	return p.DefaultTTL > 0
}
