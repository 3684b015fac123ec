package health

import (
	"context"
	"fmt"
	"time"
)

// Status orders component health from best to worst.
type Status int

const (
	StatusHealthy Status = iota
	StatusDegraded
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// MarshalText renders the status by name in JSON reports.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result is one checker's verdict. Latency is filled in by the
// Aggregator.
type Result struct {
	Status  Status
	Message string
	Details map[string]any
	Latency time.Duration
	Err     error
}

func verdict(status Status, details map[string]any, format string, args ...any) Result {
	return Result{Status: status, Message: fmt.Sprintf(format, args...), Details: details}
}

// Checker probes one dependency.
type Checker interface {
	Name() string
	Check(ctx context.Context) Result
}

// Pinger is anything that can prove it is reachable, such as the store
// or an event broker.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker reports a Pinger's health. A ping slower than slowAfter is
// degraded; a failed ping is unhealthy.
type PingChecker struct {
	name      string
	pinger    Pinger
	slowAfter time.Duration
	now       func() time.Time
}

// NewPingChecker creates a PingChecker. A zero slowAfter never degrades.
func NewPingChecker(name string, p Pinger, slowAfter time.Duration) *PingChecker {
	return &PingChecker{name: name, pinger: p, slowAfter: slowAfter, now: time.Now}
}

func (c *PingChecker) Name() string { return c.name }

// Check pings the component once.
func (c *PingChecker) Check(ctx context.Context) Result {
	start := c.now()
	err := c.pinger.Ping(ctx)
	took := c.now().Sub(start)
	details := map[string]any{"ping": took.String()}

	switch {
	case err != nil:
		r := verdict(StatusUnhealthy, details, "%s unreachable", c.name)
		r.Err = err
		return r
	case c.slowAfter > 0 && took > c.slowAfter:
		return verdict(StatusDegraded, details, "%s answered in %s", c.name, took)
	default:
		return verdict(StatusHealthy, details, "%s reachable", c.name)
	}
}
