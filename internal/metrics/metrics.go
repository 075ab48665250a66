// Package metrics holds the Prometheus collectors of the watcher.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"
)

var (
	// CyclesTotal counts processor cycles by domain and result
	// ("ok", "skipped", "error", "panic", "cancelled").
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mudwatch_cycles_total",
			Help: "Processor cycles by domain and result",
		},
		[]string{"domain", "result"},
	)

	CycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mudwatch_cycle_duration_seconds",
			Help:    "Duration of processor cycles in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"domain"},
	)

	CyclesOverlapped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mudwatch_cycles_overlapped_total",
			Help: "Timer firings that found the previous cycle still running",
		},
		[]string{"domain"},
	)

	FetchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mudwatch_fetch_failures_total",
			Help: "Failed page fetches by source host",
		},
		[]string{"host"},
	)

	// Notifications counts delivery operations by channel, op ("send",
	// "edit", "delete") and result.
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mudwatch_notifications_total",
			Help: "Notification operations by channel, op and result",
		},
		[]string{"channel", "op", "result"},
	)

	StatWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mudwatch_stat_writes_total",
			Help: "Stat rows written by kind and result",
		},
		[]string{"kind", "result"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mudwatch_circuit_breaker_state",
			Help: "Fetch circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mudwatch_circuit_breaker_transitions_total",
			Help: "Fetch circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)
)

// BreakerState maps a breaker state onto the gauge value.
func BreakerState(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// Result labels a finished operation.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
