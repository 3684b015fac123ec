package observe

import (
	"context"
	"errors"
	"fmt"
	"os"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// errNoEndpoint reports an otlp exporter selected without an endpoint.
var errNoEndpoint = errors.New("observe: otlp exporter needs OTEL_EXPORTER_OTLP_ENDPOINT")

// otlpEndpointSet reports whether the generic or the signal specific
// OTLP endpoint variable is set.
func otlpEndpointSet(signal string) bool {
	return os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" ||
		os.Getenv("OTEL_EXPORTER_OTLP_"+signal+"_ENDPOINT") != ""
}

// spanExporter returns nil for none.
func spanExporter(ctx context.Context, name string) (sdktrace.SpanExporter, error) {
	switch name {
	case "", "none":
		return nil, nil
	case "stdout":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "otlp":
		if !otlpEndpointSet("TRACES") {
			return nil, errNoEndpoint
		}
		return otlptracegrpc.New(ctx)
	default:
		return nil, fmt.Errorf("observe: unknown trace exporter %q", name)
	}
}

// metricReader returns nil for none. The prometheus reader registers its
// collector with reg, or with the default registerer when reg is nil.
func metricReader(ctx context.Context, name string, reg promclient.Registerer) (sdkmetric.Reader, error) {
	switch name {
	case "", "none":
		return nil, nil
	case "stdout":
		exp, err := stdoutmetric.New()
		if err != nil {
			return nil, err
		}
		return sdkmetric.NewPeriodicReader(exp), nil
	case "otlp":
		if !otlpEndpointSet("METRICS") {
			return nil, errNoEndpoint
		}
		exp, err := otlpmetricgrpc.New(ctx)
		if err != nil {
			return nil, err
		}
		return sdkmetric.NewPeriodicReader(exp), nil
	case "prometheus":
		var opts []prometheus.Option
		if reg != nil {
			opts = append(opts, prometheus.WithRegisterer(reg))
		}
		return prometheus.New(opts...)
	default:
		return nil, fmt.Errorf("observe: unknown metrics exporter %q", name)
	}
}
