package observe

import (
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Middleware records one server span, the request instruments and an
// access log line per request.
type Middleware struct {
	tracer   trace.Tracer
	logger   Logger
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

// NewMiddleware creates the request instruments on t's meter.
func NewMiddleware(t *Telemetry) (*Middleware, error) {
	requests, err := t.Meter().Int64Counter("http.server.requests",
		metric.WithDescription("Handled requests by route and status"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}
	duration, err := t.Meter().Float64Histogram("http.server.duration_ms",
		metric.WithDescription("Request latency"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	return &Middleware{
		tracer:   t.Tracer(),
		logger:   t.Logger(),
		requests: requests,
		duration: duration,
	}, nil
}

// Handler wraps next. route is the registered pattern, so path values
// such as todo ids never become span names or labels.
func (m *Middleware) Handler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := m.tracer.Start(r.Context(), r.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("http.route", route),
			))
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(ctx))
		elapsed := float64(time.Since(start).Microseconds()) / 1000

		span.SetAttributes(attribute.Int("http.response.status_code", rec.status))
		if rec.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
		}

		attrs := metric.WithAttributes(
			attribute.String("http.request.method", r.Method),
			attribute.String("http.route", route),
			attribute.String("http.response.status_code", strconv.Itoa(rec.status)),
		)
		m.requests.Add(ctx, 1, attrs)
		m.duration.Record(ctx, elapsed, attrs)

		fields := []Field{
			{Key: "method", Value: r.Method},
			{Key: "route", Value: route},
			{Key: "path", Value: r.URL.Path},
			{Key: "status", Value: rec.status},
			{Key: "duration_ms", Value: elapsed},
		}
		logger := ContextLogger(r.Context(), m.logger)
		if rec.status >= http.StatusInternalServerError {
			logger.Error(ctx, "request failed", fields...)
			return
		}
		logger.Info(ctx, "request completed", fields...)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

// Flush keeps event streams working behind the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
