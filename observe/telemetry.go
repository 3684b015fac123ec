package observe

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Option configures New.
type Option func(*options)

type options struct {
	registerer prometheus.Registerer
}

// WithPrometheusRegisterer sets the registry the prometheus metrics
// exporter feeds.
func WithPrometheusRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// Telemetry owns the providers built from a Config. Disabled parts are
// no-ops, so callers never check for nil.
type Telemetry struct {
	tracer trace.Tracer
	meter  metric.Meter
	logger Logger

	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider

	shutdownOnce sync.Once
	shutdownErr  error
}

// New validates cfg and builds the enabled providers. Enabled providers
// are also installed as the otel globals.
func New(ctx context.Context, cfg Config, opts ...Option) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.Version),
	))
	if err != nil {
		return nil, fmt.Errorf("observe: resource: %w", err)
	}

	t := &Telemetry{
		tracer: tracenoop.NewTracerProvider().Tracer(cfg.ServiceName),
		meter:  metricnoop.NewMeterProvider().Meter(cfg.ServiceName),
		logger: NopLogger(),
	}

	if cfg.Tracing.Enabled {
		exp, err := spanExporter(ctx, cfg.Tracing.Exporter)
		if err != nil {
			return nil, err
		}
		popts := []sdktrace.TracerProviderOption{
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Tracing.SamplePct))),
		}
		if exp != nil {
			popts = append(popts, sdktrace.WithBatcher(exp))
		}
		t.tp = sdktrace.NewTracerProvider(popts...)
		otel.SetTracerProvider(t.tp)
		t.tracer = t.tp.Tracer(cfg.ServiceName)
	}

	if cfg.Metrics.Enabled {
		reader, err := metricReader(ctx, cfg.Metrics.Exporter, o.registerer)
		if err != nil {
			_ = t.Shutdown(ctx)
			return nil, err
		}
		mopts := []sdkmetric.Option{sdkmetric.WithResource(res)}
		if reader != nil {
			mopts = append(mopts, sdkmetric.WithReader(reader))
		}
		t.mp = sdkmetric.NewMeterProvider(mopts...)
		otel.SetMeterProvider(t.mp)
		t.meter = t.mp.Meter(cfg.ServiceName)
	}

	if cfg.Logging.Enabled {
		t.logger = NewLogger(cfg.Logging.Level).With(Field{Key: "service", Value: cfg.ServiceName})
	}
	return t, nil
}

func (t *Telemetry) Tracer() trace.Tracer { return t.tracer }

func (t *Telemetry) Meter() metric.Meter { return t.meter }

func (t *Telemetry) Logger() Logger { return t.logger }

// Shutdown flushes and stops the providers. Later calls return the
// first result.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	t.shutdownOnce.Do(func() {
		var errs []error
		if t.tp != nil {
			if err := t.tp.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider: %w", err))
			}
		}
		if t.mp != nil {
			if err := t.mp.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("meter provider: %w", err))
			}
		}
		t.shutdownErr = errors.Join(errs...)
	})
	return t.shutdownErr
}
