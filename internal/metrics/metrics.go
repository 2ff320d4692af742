package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all Prometheus metrics for arbix
type Registry struct {
	reg *prometheus.Registry

	// Upstream HTTP metrics
	UpstreamDuration *prometheus.HistogramVec
	UpstreamErrors   *prometheus.CounterVec
	BreakerState     *prometheus.GaugeVec

	// Quote cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	// Signal metrics
	SourceFailures  *prometheus.CounterVec
	Recommendations *prometheus.CounterVec
	RefreshDuration prometheus.Histogram

	// Push metrics
	WSClients prometheus.Gauge
}

// NewRegistry creates a registry with all arbix metrics registered
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		UpstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arbix_upstream_request_duration_seconds",
				Help:    "Duration of upstream API requests in seconds",
				Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"host", "result"},
		),

		UpstreamErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbix_upstream_errors_total",
				Help: "Total number of failed upstream requests by host and kind",
			},
			[]string{"host", "kind"},
		),

		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "arbix_circuit_breaker_state",
				Help: "Circuit breaker state per upstream host (0 closed, 1 half-open, 2 open)",
			},
			[]string{"host"},
		),

		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbix_quote_cache_hits_total",
				Help: "Total number of quote cache hits by source",
			},
			[]string{"source"},
		),

		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbix_quote_cache_misses_total",
				Help: "Total number of quote cache misses by source",
			},
			[]string{"source"},
		),

		SourceFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbix_source_failures_total",
				Help: "Total number of quotes that could not be collected by source",
			},
			[]string{"source"},
		),

		Recommendations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbix_recommendations_total",
				Help: "Total number of arbitrage recommendations by buy and sell venue",
			},
			[]string{"buy", "sell"},
		),

		RefreshDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "arbix_refresh_duration_seconds",
				Help:    "Duration of a full token price refresh in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		WSClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "arbix_websocket_clients",
				Help: "Number of connected WebSocket clients",
			},
		),
	}

	r.reg.MustRegister(
		r.UpstreamDuration,
		r.UpstreamErrors,
		r.BreakerState,
		r.CacheHits,
		r.CacheMisses,
		r.SourceFailures,
		r.Recommendations,
		r.RefreshDuration,
		r.WSClients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// Handler returns the HTTP handler exposing this registry
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry (used by tests)
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}
