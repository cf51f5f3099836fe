// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the pipeline.
type Metrics struct {
	// Cache metrics
	CacheHits      *prometheus.CounterVec
	CacheMisses    *prometheus.CounterVec
	CacheEvictions prometheus.Counter
	CacheDropped   prometheus.Counter

	// Fetch metrics
	PagesFetched      prometheus.Counter
	FetchFailovers    prometheus.Counter
	TransactionsSeen  prometheus.Counter
	HistoryRuns       *prometheus.CounterVec
	HistoryRunSeconds prometheus.Histogram

	// Connection pool metrics
	PoolActive  prometheus.Gauge
	PoolWaiting prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered on the default
// registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "xrpl_amm_history"
	}

	return &Metrics{
		CacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Cache hits by entry kind.",
		}, []string{"kind"}),
		CacheMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Cache misses by entry kind.",
		}, []string{"kind"}),
		CacheEvictions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Entries evicted by the periodic sweep.",
		}),
		CacheDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_dropped_writes_total",
			Help:      "Writes dropped for exceeding the per-entry byte ceiling.",
		}),
		PagesFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "account_tx pages fetched.",
		}),
		FetchFailovers: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failovers_total",
			Help:      "Endpoint failovers during history fetches.",
		}),
		TransactionsSeen: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_seen_total",
			Help:      "Raw transactions received from nodes.",
		}),
		HistoryRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_runs_total",
			Help:      "History pipeline runs by outcome.",
		}, []string{"outcome"}),
		HistoryRunSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "history_run_seconds",
			Help:      "End-to-end history pipeline duration.",
			Buckets:   prometheus.DefBuckets,
		}),
		PoolActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_active_sessions",
			Help:      "Sessions currently held out of the connection pool.",
		}),
		PoolWaiting: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_waiting_requests",
			Help:      "Requests queued for a connection pool slot.",
		}),
	}
}

// Handler returns the HTTP handler exposing the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
