package match

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricScoresComputedTotal = "match_scores_computed_total"
	MetricBatchDuration       = "match_batch_duration_seconds"
	MetricBatchShops          = "match_batch_shops"
)

// Outcome constants for labeling score computations.
const (
	OutcomeScored   = "scored"
	OutcomeNoSignal = "no_signal"
	OutcomeError    = "error"
)

// Metrics contains Prometheus metrics for match-score computation.
// All operations are thread-safe.
type Metrics struct {
	scoresComputed *prometheus.CounterVec
	batchDuration  prometheus.Histogram
	batchShops     prometheus.Histogram
}

// NewMetrics creates a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register
// them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		scoresComputed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricScoresComputedTotal,
				Help: "Total number of per-shop match score computations by outcome",
			},
			[]string{"outcome"},
		),
		batchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricBatchDuration,
				Help:    "Histogram of batch match score computation duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
		),
		batchShops: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricBatchShops,
				Help:    "Histogram of candidate shop count per batch request",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
			},
		),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.scoresComputed,
		m.batchDuration,
		m.batchShops,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncScore increments the per-shop score counter for an outcome.
func (m *Metrics) IncScore(outcome string) {
	m.scoresComputed.WithLabelValues(outcome).Inc()
}

// ObserveBatch records a completed batch: its duration and shop count.
func (m *Metrics) ObserveBatch(seconds float64, shops int) {
	m.batchDuration.Observe(seconds)
	m.batchShops.Observe(float64(shops))
}
