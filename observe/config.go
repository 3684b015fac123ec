package observe

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrInvalidConfig wraps every Config.Validate failure.
var ErrInvalidConfig = errors.New("observe: invalid config")

var (
	traceExporters  = []string{"", "none", "stdout", "otlp"}
	metricExporters = []string{"", "none", "stdout", "otlp", "prometheus"}
	logLevels       = []string{"", "debug", "info", "warn", "error"}
)

// Config selects what New sets up.
type Config struct {
	ServiceName string        `mapstructure:"service_name"`
	Version     string        `mapstructure:"version"`
	Tracing     TracingConfig `mapstructure:"tracing"`
	Metrics     MetricsConfig `mapstructure:"metrics"`
	Logging     LoggingConfig `mapstructure:"logging"`
}

// TracingConfig configures spans.
type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Exporter is one of none, stdout or otlp. otlp reads the standard
	// OTEL_EXPORTER_OTLP_* variables.
	Exporter string `mapstructure:"exporter"`

	// SamplePct is the root sampling ratio in [0, 1].
	SamplePct float64 `mapstructure:"sample_pct"`
}

// MetricsConfig configures OpenTelemetry instruments.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Exporter is one of none, stdout, otlp or prometheus. prometheus
	// feeds the registry served on the ops listener.
	Exporter string `mapstructure:"exporter"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Level   string `mapstructure:"level"`
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ServiceName) == "" {
		errs = append(errs, errors.New("observe.service_name is required"))
	}
	if c.Tracing.Enabled {
		if !slices.Contains(traceExporters, c.Tracing.Exporter) {
			errs = append(errs, fmt.Errorf("observe.tracing.exporter %q is not one of none, stdout, otlp", c.Tracing.Exporter))
		}
		if c.Tracing.SamplePct < 0 || c.Tracing.SamplePct > 1 {
			errs = append(errs, fmt.Errorf("observe.tracing.sample_pct %v is outside [0, 1]", c.Tracing.SamplePct))
		}
	}
	if c.Metrics.Enabled && !slices.Contains(metricExporters, c.Metrics.Exporter) {
		errs = append(errs, fmt.Errorf("observe.metrics.exporter %q is not one of none, stdout, otlp, prometheus", c.Metrics.Exporter))
	}
	if c.Logging.Enabled && !slices.Contains(logLevels, strings.ToLower(c.Logging.Level)) {
		errs = append(errs, fmt.Errorf("observe.logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}
