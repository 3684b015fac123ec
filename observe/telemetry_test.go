package observe

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		ServiceName: "todoauth",
		Tracing:     TracingConfig{Enabled: true, Exporter: "stdout", SamplePct: 0.5},
		Metrics:     MetricsConfig{Enabled: true, Exporter: "prometheus"},
		Logging:     LoggingConfig{Enabled: true, Level: "INFO"},
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid"},
		{name: "missing service name", mutate: func(c *Config) { c.ServiceName = " " }, wantErr: "service_name"},
		{name: "jaeger is gone", mutate: func(c *Config) { c.Tracing.Exporter = "jaeger" }, wantErr: "tracing.exporter"},
		{name: "sample pct above one", mutate: func(c *Config) { c.Tracing.SamplePct = 1.5 }, wantErr: "sample_pct"},
		{name: "disabled tracing skips checks", mutate: func(c *Config) { c.Tracing = TracingConfig{Exporter: "zipkin", SamplePct: 9} }},
		{name: "unknown metrics exporter", mutate: func(c *Config) { c.Metrics.Exporter = "statsd" }, wantErr: "metrics.exporter"},
		{name: "unknown level", mutate: func(c *Config) { c.Logging.Level = "trace" }, wantErr: "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidConfig) || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateReportsEveryProblem(t *testing.T) {
	err := Config{
		Metrics: MetricsConfig{Enabled: true, Exporter: "statsd"},
		Logging: LoggingConfig{Enabled: true, Level: "trace"},
	}.Validate()
	for _, want := range []string{"service_name", "metrics.exporter", "logging.level"} {
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Errorf("error %v does not mention %s", err, want)
		}
	}
}

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), Config{ServiceName: "todoauth"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if tel.Tracer() == nil || tel.Meter() == nil || tel.Logger() == nil {
		t.Fatal("disabled parts must be no-ops, not nil")
	}
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNew_PrometheusRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	ctx := context.Background()
	tel, err := New(ctx, Config{
		ServiceName: "todoauth",
		Metrics:     MetricsConfig{Enabled: true, Exporter: "prometheus"},
	}, WithPrometheusRegisterer(reg))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	am, err := NewAuthMetrics(tel.Meter())
	if err != nil {
		t.Fatalf("NewAuthMetrics() error = %v", err)
	}
	am.RecordDecision(ctx, "authenticated")
	am.RecordLogin(ctx, "success", 0)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	var names []string
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	joined := strings.Join(names, " ")
	for _, want := range []string{"auth_decisions", "auth_logins"} {
		if !strings.Contains(joined, want) {
			t.Errorf("registry lacks %s: %v", want, names)
		}
	}

	if err := tel.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
	if err := tel.Shutdown(ctx); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	if _, err := New(context.Background(), Config{}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("New() error = %v, want ErrInvalidConfig", err)
	}
}

func TestExporters(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "")
	ctx := context.Background()

	for _, name := range []string{"", "none"} {
		if exp, err := spanExporter(ctx, name); exp != nil || err != nil {
			t.Errorf("spanExporter(%q) = %v, %v", name, exp, err)
		}
		if r, err := metricReader(ctx, name, nil); r != nil || err != nil {
			t.Errorf("metricReader(%q) = %v, %v", name, r, err)
		}
	}
	if exp, err := spanExporter(ctx, "stdout"); exp == nil || err != nil {
		t.Errorf("spanExporter(stdout) = %v, %v", exp, err)
	}
	if _, err := spanExporter(ctx, "otlp"); !errors.Is(err, errNoEndpoint) {
		t.Errorf("spanExporter(otlp) without endpoint error = %v", err)
	}
	if _, err := metricReader(ctx, "otlp", nil); !errors.Is(err, errNoEndpoint) {
		t.Errorf("metricReader(otlp) without endpoint error = %v", err)
	}
	if _, err := metricReader(ctx, "statsd", nil); err == nil {
		t.Error("unknown metrics exporter should fail")
	}

	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "http://localhost:4317")
	exp, err := spanExporter(ctx, "otlp")
	if err != nil || exp == nil {
		t.Fatalf("spanExporter(otlp) = %v, %v", exp, err)
	}
	_ = exp.Shutdown(ctx)
}
