package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AuthMetrics counts authentication outcomes. Implementations must be
// safe for concurrent use.
type AuthMetrics interface {
	// RecordDecision counts one bearer token decision, e.g.
	// "authenticated", "unauthorized" or "forbidden".
	RecordDecision(ctx context.Context, outcome string)

	// RecordLogin counts one credential exchange and its latency.
	RecordLogin(ctx context.Context, result string, duration time.Duration)
}

type otelAuthMetrics struct {
	decisions     metric.Int64Counter
	logins        metric.Int64Counter
	loginDuration metric.Float64Histogram
}

// NewAuthMetrics creates the auth.* instruments on meter.
func NewAuthMetrics(meter metric.Meter) (AuthMetrics, error) {
	m := &otelAuthMetrics{}
	var err error
	if m.decisions, err = meter.Int64Counter("auth.decisions",
		metric.WithDescription("Bearer token decisions by outcome"),
		metric.WithUnit("{decision}")); err != nil {
		return nil, err
	}
	if m.logins, err = meter.Int64Counter("auth.logins",
		metric.WithDescription("Credential logins by result"),
		metric.WithUnit("{login}")); err != nil {
		return nil, err
	}
	if m.loginDuration, err = meter.Float64Histogram("auth.login.duration_ms",
		metric.WithDescription("Credential login latency"),
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *otelAuthMetrics) RecordDecision(ctx context.Context, outcome string) {
	m.decisions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *otelAuthMetrics) RecordLogin(ctx context.Context, result string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("result", result))
	m.logins.Add(ctx, 1, attrs)
	m.loginDuration.Record(ctx, float64(duration.Microseconds())/1000, attrs)
}

type nopAuthMetrics struct{}

func (nopAuthMetrics) RecordDecision(context.Context, string)             {}
func (nopAuthMetrics) RecordLogin(context.Context, string, time.Duration) {}

// NopAuthMetrics records nothing.
func NopAuthMetrics() AuthMetrics {
	return nopAuthMetrics{}
}
