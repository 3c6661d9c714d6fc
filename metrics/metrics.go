// Package metrics exposes Prometheus instrumentation for the lookup gateway.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector carries the gateway's Prometheus metrics.
type Collector struct {
	registry *prometheus.Registry

	QueriesTotal   *prometheus.CounterVec
	FailoversTotal prometheus.Counter
	ThrottlesTotal prometheus.Counter
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
}

// New constructs a collector with the gateway's counters registered.
func New() (*Collector, error) {
	registry := prometheus.NewRegistry()

	queriesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lookup_gateway",
		Name:      "queries_total",
		Help:      "Total lookup queries by command and outcome status.",
	}, []string{"command", "status"})

	failoversTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "lookup_gateway",
		Name:      "failovers_total",
		Help:      "Total escalations from the primary to the backup channel.",
	})

	throttlesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "lookup_gateway",
		Name:      "throttles_total",
		Help:      "Total anti-spam throttle markers detected.",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "lookup_gateway",
		Name:      "cache_hits_total",
		Help:      "Total queries answered from the response cache.",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "lookup_gateway",
		Name:      "cache_misses_total",
		Help:      "Total queries that went to the external service.",
	})

	for _, c := range []prometheus.Collector{
		queriesTotal, failoversTotal, throttlesTotal, cacheHits, cacheMisses,
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &Collector{
		registry:       registry,
		QueriesTotal:   queriesTotal,
		FailoversTotal: failoversTotal,
		ThrottlesTotal: throttlesTotal,
		CacheHits:      cacheHits,
		CacheMisses:    cacheMisses,
	}, nil
}

// Handler returns an HTTP handler for exposing the metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
