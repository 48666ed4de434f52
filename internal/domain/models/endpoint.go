package models

import (
	"time"

	"github.com/rlgprojects/admission/pkg/constants"
)

// EndpointLimit is one entry of the static endpoint limits table. The table
// is loaded once at startup and immutable thereafter.
type EndpointLimit struct {
	// MaxUnits is the base cost budget per window.
	MaxUnits int

	// Window is the base accounting window length.
	Window time.Duration

	// FailurePolicy decides fail-open vs fail-closed when the counter store
	// is unreachable.
	FailurePolicy constants.FailurePolicy

	// RejectAnomalyAbove, when > 0, rejects requests whose last known anomaly
	// score exceeds it. Zero disables the hook.
	RejectAnomalyAbove float64
}

// DefaultEndpointLimit returns the global default applied to endpoints absent
// from the table: 60 units per 60 seconds, best-effort on store outage.
func DefaultEndpointLimit() EndpointLimit {
	return EndpointLimit{
		MaxUnits:      constants.DefaultMaxUnits,
		Window:        constants.DefaultWindow,
		FailurePolicy: constants.FailurePolicyBestEffort,
	}
}

// Strict reports whether the endpoint fails closed on store outages.
func (e EndpointLimit) Strict() bool {
	return e.FailurePolicy == constants.FailurePolicyStrict
}

// EndpointLimitTable maps endpoint names to their static base limits.
type EndpointLimitTable map[string]EndpointLimit

// Lookup returns the endpoint's limit or the global default when absent.
func (t EndpointLimitTable) Lookup(endpoint string) EndpointLimit {
	if limit, ok := t[endpoint]; ok {
		return limit
	}
	return DefaultEndpointLimit()
}
