package health

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/todoauth/observe"
)

// AggregatorConfig configures the health aggregator.
type AggregatorConfig struct {
	// Timeout bounds one round of checks. Default: 5 seconds
	Timeout time.Duration

	// Logger receives status transitions. Default: no-op.
	Logger observe.Logger

	// Registerer, when set, exports each check's status as the
	// todoauth_health_status gauge (0 healthy, 1 degraded, 2 unhealthy).
	Registerer prometheus.Registerer
}

// Report is the outcome of one round of checks. Status is the worst
// status among Checks; an empty report is healthy.
type Report struct {
	Status    Status
	CheckedAt time.Time
	Checks    map[string]Result
}

// Aggregator runs named checkers concurrently under one deadline and
// logs whenever a checker changes status.
type Aggregator struct {
	timeout time.Duration
	logger  observe.Logger
	gauge   *prometheus.GaugeVec
	now     func() time.Time

	mu       sync.Mutex
	checkers []Checker
	last     map[string]Status
}

func NewAggregator(config AggregatorConfig) *Aggregator {
	a := &Aggregator{
		timeout: config.Timeout,
		logger:  config.Logger,
		now:     time.Now,
		last:    make(map[string]Status),
	}
	if a.timeout <= 0 {
		a.timeout = 5 * time.Second
	}
	if a.logger == nil {
		a.logger = observe.NopLogger()
	}
	if config.Registerer != nil {
		a.gauge = promauto.With(config.Registerer).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "todoauth",
			Name:      "health_status",
			Help:      "Health check status: 0 healthy, 1 degraded, 2 unhealthy.",
		}, []string{"check"})
	}
	return a
}

// Register adds a checker. A checker with the same name is replaced in
// place.
func (a *Aggregator) Register(c Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()

	i := slices.IndexFunc(a.checkers, func(x Checker) bool { return x.Name() == c.Name() })
	if i >= 0 {
		a.checkers[i] = c
		return
	}
	a.checkers = append(a.checkers, c)
}

// Names lists registered checkers in registration order.
func (a *Aggregator) Names() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	names := make([]string, len(a.checkers))
	for i, c := range a.checkers {
		names[i] = c.Name()
	}
	return names
}

// Run executes the named checkers, or all of them when no names are
// given. Any unknown name fails the whole round with ErrUnknownCheck.
func (a *Aggregator) Run(ctx context.Context, names ...string) (Report, error) {
	selected, err := a.selectCheckers(names)
	if err != nil {
		return Report{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	report := Report{
		Status:    StatusHealthy,
		CheckedAt: a.now().UTC(),
		Checks:    make(map[string]Result, len(selected)),
	}
	var mu sync.Mutex
	var g errgroup.Group
	for _, c := range selected {
		g.Go(func() error {
			r := a.bounded(ctx, c)
			mu.Lock()
			report.Checks[c.Name()] = r
			report.Status = max(report.Status, r.Status)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for name, r := range report.Checks {
		a.track(ctx, name, r)
	}
	return report, nil
}

func (a *Aggregator) selectCheckers(names []string) ([]Checker, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(names) == 0 {
		return slices.Clone(a.checkers), nil
	}
	out := make([]Checker, 0, len(names))
	for _, name := range names {
		i := slices.IndexFunc(a.checkers, func(c Checker) bool { return c.Name() == name })
		if i < 0 {
			return nil, ErrUnknownCheck
		}
		out = append(out, a.checkers[i])
	}
	return out, nil
}

// bounded runs c but gives up at the deadline even if c ignores ctx.
func (a *Aggregator) bounded(ctx context.Context, c Checker) Result {
	start := time.Now()
	done := make(chan Result, 1)
	go func() { done <- c.Check(ctx) }()

	select {
	case r := <-done:
		r.Latency = time.Since(start)
		return r
	case <-ctx.Done():
		return Result{
			Status:  StatusUnhealthy,
			Message: "no answer before deadline",
			Latency: time.Since(start),
			Err:     ErrTimedOut,
		}
	}
}

// track updates the gauge and logs status transitions. A checker that
// starts out healthy is not logged.
func (a *Aggregator) track(ctx context.Context, name string, r Result) {
	if a.gauge != nil {
		a.gauge.WithLabelValues(name).Set(float64(r.Status))
	}

	a.mu.Lock()
	prev, seen := a.last[name]
	a.last[name] = r.Status
	a.mu.Unlock()

	if seen && prev == r.Status || !seen && r.Status == StatusHealthy {
		return
	}

	fields := []observe.Field{
		{Key: "check", Value: name},
		{Key: "status", Value: r.Status.String()},
		{Key: "message", Value: r.Message},
	}
	if r.Err != nil {
		fields = append(fields, observe.ErrorField(r.Err))
	}
	if r.Status == StatusHealthy {
		a.logger.Info(ctx, "health check recovered", fields...)
		return
	}
	a.logger.Warn(ctx, "health check status changed", fields...)
}
