package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonwraymond/todoauth/health"
)

// NewOpsHandler serves the health probes and /metrics from gatherer.
func NewOpsHandler(agg *health.Aggregator, gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	health.RegisterHandlers(mux, agg)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}
