package service

import "time"

// MetricsRecorder is the observability port of the admission core. The
// prometheus-backed implementation lives in infrastructure/monitoring; tests
// may pass nil or a recording fake.
type MetricsRecorder interface {
	// RecordDecision counts a decision by endpoint and outcome and observes
	// its latency.
	RecordDecision(endpoint, outcome string, latency time.Duration)

	// RecordDegradation counts an absorbed dependency failure.
	RecordDegradation(kind string)

	// ObserveAnomalyScore samples a computed anomaly score.
	ObserveAnomalyScore(score float64)
}
