package ranklist

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricMutationsTotal       = "ranking_mutations_total"
	MetricMutationDuration     = "ranking_mutation_duration_seconds"
	MetricReconcileRowsChanged = "ranking_reconcile_rows_changed_total"
)

// Operation constants for labeling.
const (
	OpInsert    = "insert"
	OpDelete    = "delete"
	OpReorder   = "reorder"
	OpReconcile = "reconcile"
)

// Status constants for operation completion.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Metrics contains Prometheus metrics for ranking list mutations.
// All operations are thread-safe.
type Metrics struct {
	mutationsTotal   *prometheus.CounterVec
	mutationDuration *prometheus.HistogramVec
	reconcileRows    prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register
// them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		mutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricMutationsTotal,
				Help: "Total number of ranking list mutations by operation and status",
			},
			[]string{"operation", "status"},
		),
		mutationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricMutationDuration,
				Help:    "Histogram of ranking list mutation duration in seconds by operation",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"operation"},
		),
		reconcileRows: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricReconcileRowsChanged,
				Help: "Total number of ranking rows rewritten by reconciliation",
			},
		),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.mutationsTotal,
		m.mutationDuration,
		m.reconcileRows,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncMutation increments the mutation counter for an operation and status.
func (m *Metrics) IncMutation(operation, status string) {
	m.mutationsTotal.WithLabelValues(operation, status).Inc()
}

// ObserveMutationDuration records how long a mutation took.
func (m *Metrics) ObserveMutationDuration(operation string, seconds float64) {
	m.mutationDuration.WithLabelValues(operation).Observe(seconds)
}

// AddReconcileRows records the number of rows rewritten by a reconcile run.
func (m *Metrics) AddReconcileRows(n int) {
	m.reconcileRows.Add(float64(n))
}
