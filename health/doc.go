// Package health reports whether todoauth's dependencies are usable.
//
// Checkers ping the database and the event broker and inspect the Go
// runtime. An Aggregator runs them concurrently under one deadline and
// the handlers in this package expose the result on the ops listener:
//
//	agg := health.NewAggregator(health.AggregatorConfig{Logger: logger})
//	agg.Register(health.NewPingChecker("database", db, 250*time.Millisecond))
//	agg.Register(health.NewPingChecker("events", broker, 250*time.Millisecond))
//	health.RegisterHandlers(mux, agg)
//
// /healthz only proves the process serves HTTP. /readyz and /health fail
// with 503 when any checker is unhealthy; a degraded checker still
// reports ready.
package health
