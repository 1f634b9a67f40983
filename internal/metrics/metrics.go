package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Mutations counts mutating operations by name and outcome
	Mutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "study_mutations_total",
			Help: "Total number of mutating operations",
		},
		[]string{"operation", "outcome"},
	)

	// SnapshotReads counts façade reads served from cache or recomputed
	SnapshotReads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "study_snapshot_reads_total",
			Help: "Total number of snapshot reads by source",
		},
		[]string{"source"},
	)

	// RemindersSent counts reminder notifications by outcome
	RemindersSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "study_reminders_total",
			Help: "Total number of review reminders",
		},
		[]string{"outcome"},
	)

	registry = prometheus.NewRegistry()
)

func init() {
	registry.MustRegister(Mutations, SnapshotReads, RemindersSent)
}

// ObserveMutation records the outcome of a mutating operation
func ObserveMutation(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	Mutations.WithLabelValues(operation, outcome).Inc()
}

// Handler exposes the registered collectors in the Prometheus text format
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
