// Package models defines the domain types of the admission control core.
package models

import "time"

// RawRequest carries the minimal request attributes the core needs. Transport
// layers populate it; the core never touches the underlying HTTP request.
type RawRequest struct {
	// RemoteAddr is the caller's source address (host or host:port).
	RemoteAddr string

	// UserAgent is the caller's user-agent header, possibly empty.
	UserAgent string

	// PrincipalID is the authenticated principal id when the surrounding
	// system resolved one, empty otherwise. When set it takes precedence
	// over address-derived identity.
	PrincipalID string
}

// AdmissionDecision is the sole output of the admission gateway. It is
// produced fresh per request and never mutated afterwards.
type AdmissionDecision struct {
	// Admitted reports whether the request may proceed.
	Admitted bool `json:"admitted"`

	// Limit is the effective maximum cost budget for the window.
	Limit int `json:"limit"`

	// Remaining is the unconsumed budget after this request; 0 when rejected.
	Remaining float64 `json:"remaining"`

	// ResetAt is when the current window expires, in epoch seconds.
	ResetAt int64 `json:"reset_at"`

	// RetryAfterSeconds is the wait hint for rejected requests; nil when admitted.
	RetryAfterSeconds *int `json:"retry_after_seconds,omitempty"`

	// AnomalyScore is the last known behavioral anomaly score for the client,
	// in [0,1]. Informational; it lags the current request by design.
	AnomalyScore float64 `json:"anomaly_score"`

	// Degraded reports that the decision was made under a dependency outage
	// (fail-open path). Admitted decisions with Degraded set were not
	// accounted against the shared window.
	Degraded bool `json:"degraded,omitempty"`
}

// RetryAfter returns the retry hint or 0 when none is set.
func (d *AdmissionDecision) RetryAfter() int {
	if d.RetryAfterSeconds == nil {
		return 0
	}
	return *d.RetryAfterSeconds
}

// PolicyDescriptor is the machine-readable description of the active
// admission policy, served on the administrative surface and mirrored into
// the X-RateLimit-Policy header.
type PolicyDescriptor struct {
	Version        string            `json:"version"`
	GeneratedAt    time.Time         `json:"generated_at"`
	AdvisorID      string            `json:"advisor_id"`
	OffHoursPolicy string            `json:"off_hours_policy"`
	Compliance     []string          `json:"compliance"`
	Endpoints      []EndpointSummary `json:"endpoints"`
}

// EndpointSummary is the per-endpoint slice of the policy descriptor.
type EndpointSummary struct {
	Name          string  `json:"name"`
	MaxUnits      int     `json:"max_units"`
	WindowSeconds int     `json:"window_seconds"`
	FailurePolicy string  `json:"failure_policy"`
	AnomalyReject float64 `json:"reject_anomaly_above,omitempty"`
}
