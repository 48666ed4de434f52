package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rlgprojects/admission/internal/domain/service"
)

var _ service.MetricsRecorder = (*Metrics)(nil)

// Metrics manages the Prometheus metrics of the admission core.
type Metrics struct {
	Decisions     *prometheus.CounterVec
	DecisionTime  *prometheus.HistogramVec
	Degradations  *prometheus.CounterVec
	AnomalyScores prometheus.Histogram
}

// NewMetrics creates and registers the metrics on the given registerer, the
// default registry when nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "admission_decisions_total",
				Help: "Total admission decisions by endpoint and outcome.",
			},
			[]string{"endpoint", "outcome"},
		),
		DecisionTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "admission_decision_duration_seconds",
				Help:    "Latency of admission decisions.",
				Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"endpoint"},
		),
		Degradations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "admission_degradations_total",
				Help: "Total absorbed dependency failures by kind.",
			},
			[]string{"kind"},
		),
		AnomalyScores: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "admission_anomaly_score",
				Help:    "Distribution of computed anomaly scores.",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
		),
	}
}

// RecordDecision counts one decision and observes its latency.
func (m *Metrics) RecordDecision(endpoint, outcome string, latency time.Duration) {
	m.Decisions.WithLabelValues(endpoint, outcome).Inc()
	m.DecisionTime.WithLabelValues(endpoint).Observe(latency.Seconds())
}

// RecordDegradation counts an absorbed dependency failure.
func (m *Metrics) RecordDegradation(kind string) {
	m.Degradations.WithLabelValues(kind).Inc()
}

// ObserveAnomalyScore samples a computed anomaly score.
func (m *Metrics) ObserveAnomalyScore(score float64) {
	m.AnomalyScores.Observe(score)
}
