package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the API listener.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	LoginsLimited    prometheus.Counter
	EventSubscribers prometheus.Gauge
	RateLimitKeys    prometheus.GaugeFunc
}

// NewMetrics creates and registers the API collectors with reg. keys
// reports the number of live login rate-limit buckets.
func NewMetrics(reg prometheus.Registerer, keys func() int) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "todoauth",
				Name:      "http_requests_total",
				Help:      "Total number of API requests by route and status code",
			},
			[]string{"route", "code"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "todoauth",
				Name:      "http_request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		LoginsLimited: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: "todoauth",
				Name:      "login_rate_limited_total",
				Help:      "Login attempts rejected by the per-client rate limit",
			},
		),
		EventSubscribers: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "todoauth",
				Name:      "event_stream_subscribers",
				Help:      "Open todo event streams",
			},
		),
		RateLimitKeys: f.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: "todoauth",
				Name:      "login_rate_limit_keys",
				Help:      "Client addresses with a live login rate-limit bucket",
			},
			func() float64 { return float64(keys()) },
		),
	}
}
