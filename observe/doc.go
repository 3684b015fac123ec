// Package observe carries the logging, tracing and metrics used across
// todoauth.
//
// New builds a Telemetry from Config: OpenTelemetry trace and metric
// providers plus a JSON slog logger. Middleware turns one route into a
// server span, request metrics and an access log line. AuthMetrics
// counts token decisions and credential logins.
package observe
