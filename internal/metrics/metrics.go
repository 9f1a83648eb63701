// Package metrics exposes Prometheus instrumentation for query, mutation,
// and cache invalidation traffic.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	OutcomeOK      = "ok"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
)

var (
	// QueriesTotal counts query submissions by operation (fetch, page,
	// count, one, first) and outcome.
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querydeck_queries_total",
			Help: "Total number of query submissions",
		},
		[]string{"operation", "outcome"},
	)
	// QueryDuration is the latency of query submissions, including row mapping.
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "querydeck_query_duration_seconds",
			Help:    "Query submission latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	// MutationsTotal counts bulk mutations by entity, kind, and outcome.
	MutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querydeck_mutations_total",
			Help: "Total number of bulk mutations",
		},
		[]string{"entity", "kind", "outcome"},
	)
	// RowsAffected counts rows changed by bulk mutations.
	RowsAffected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querydeck_rows_affected_total",
			Help: "Total number of rows changed by bulk mutations",
		},
		[]string{"entity", "kind"},
	)
	// InvalidationsTotal counts delivered cache invalidation signals.
	InvalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querydeck_invalidations_total",
			Help: "Total number of cache invalidation signals delivered",
		},
		[]string{"entity", "outcome"},
	)
	// CacheEvictions counts cached instances evicted by invalidation.
	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querydeck_cache_evictions_total",
			Help: "Total number of cached entity instances evicted",
		},
		[]string{"entity"},
	)
)

// ObserveQuery records one query submission that started at start.
func ObserveQuery(operation, outcome string, start time.Time) {
	QueriesTotal.WithLabelValues(operation, outcome).Inc()
	QueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// ObserveMutation records one bulk mutation. affected is only counted for
// successful mutations.
func ObserveMutation(entity, kind, outcome string, affected int64) {
	MutationsTotal.WithLabelValues(entity, kind, outcome).Inc()
	if outcome == OutcomeOK && affected > 0 {
		RowsAffected.WithLabelValues(entity, kind).Add(float64(affected))
	}
}

// Handler returns the Prometheus HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
