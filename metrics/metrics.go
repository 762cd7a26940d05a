// Package metrics exposes Prometheus collectors for the chat and query
// paths.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registry is dedicated to this process's own collectors; the default
// registry's Go runtime collectors are not exposed.
var registry = prometheus.NewRegistry()

var (
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datachat_turns_total",
			Help: "Total number of chat turns by outcome.",
		},
		[]string{"status"},
	)

	turnDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "datachat_turn_duration_seconds",
			Help:    "Wall-clock duration of one chat turn.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	queriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datachat_queries_total",
			Help: "Total number of gateway query executions by outcome.",
		},
		[]string{"status"},
	)

	queryDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "datachat_query_duration_seconds",
			Help:    "Data-fetch duration of gateway queries.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	registry.MustRegister(turnsTotal, turnDurationSeconds, queriesTotal, queryDurationSeconds)
}

// Handler serves the dedicated registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// ObserveTurn records one finished chat turn.
func ObserveTurn(status string, elapsed time.Duration) {
	turnsTotal.WithLabelValues(status).Inc()
	turnDurationSeconds.Observe(elapsed.Seconds())
}

// ObserveQuery records one gateway query attempt.
func ObserveQuery(status string, elapsed time.Duration) {
	queriesTotal.WithLabelValues(status).Inc()
	if status == "ok" {
		queryDurationSeconds.Observe(elapsed.Seconds())
	}
}
