// Package service defines the domain service contracts of the admission
// control core. Implementations live under internal/application and
// internal/infrastructure; callers depend only on these interfaces.
package service

import (
	"context"
	"time"

	"github.com/rlgprojects/admission/internal/domain/models"
)

// ================================================================================
// Window Counter Store
// ================================================================================

// CounterStore is the only component touching shared mutable state. Both
// mutating operations must execute as single atomic operations so concurrent
// callers never observe lost updates or stale expiries.
type CounterStore interface {
	// IncrementAndExpire atomically adds cost to the keyed counter, arms the
	// window TTL if the key is new, and returns the post-increment
	// accumulated cost.
	IncrementAndExpire(ctx context.Context, key string, cost float64, window time.Duration) (float64, error)

	// Read returns the current accumulated cost, 0 when the key is absent.
	Read(ctx context.Context, key string) (float64, error)

	// TTL returns the remaining window lifetime for the key, 0 when absent.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// DeleteByPrefix removes all keys under the prefix and returns the count.
	// Administrative reset only; never called on the hot path.
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)

	// AppendTimestamp atomically appends ts to the keyed behavior log, prunes
	// entries older than lookback, and returns the post-prune cardinality.
	AppendTimestamp(ctx context.Context, key string, ts time.Time, lookback time.Duration) (int64, error)
}

// ================================================================================
// Collaborator Contracts
// ================================================================================

// GeoResolver resolves a source address to a geographic context. A nil
// context with nil error is a valid, expected "unknown" answer.
type GeoResolver interface {
	Lookup(ctx context.Context, sourceAddress string) (*models.GeoContext, error)
}

// LimitAdvisor optionally suggests a limit multiplier for an endpoint and
// region. Implementations must respect ctx deadlines; failures are treated
// as "no suggestion" by callers, never propagated.
type LimitAdvisor interface {
	// SuggestMultiplier returns a multiplier in (0, inf). Callers clamp it.
	SuggestMultiplier(ctx context.Context, endpoint string, geo models.GeoContext) (float64, error)

	// Identity names the advisor for the policy descriptor.
	Identity() string
}

// LoadGauge supplies the current system load in [0,1]. Implementations
// return 0 when load cannot be measured, which disables backpressure.
type LoadGauge interface {
	Current() float64
}

// SecretProvider supplies the process-wide secret seeding client key
// derivation so keys cannot be correlated across deployments.
type SecretProvider interface {
	KeyDerivationSecret(ctx context.Context) ([]byte, error)
}

// ================================================================================
// Core Services
// ================================================================================

// BehaviorScorer maintains per-client behavior profiles off the hot path.
type BehaviorScorer interface {
	// RecordAsync schedules a behavior-log update for the client. It never
	// blocks; when the worker pool is saturated the sample is dropped.
	RecordAsync(clientKey string)

	// LastScore returns the most recent anomaly score for the client, 0 when
	// none has been computed yet. The score lags by at most one request.
	LastScore(clientKey string) float64
}

// AdmissionService is the gateway exposed to protected handlers.
type AdmissionService interface {
	// Admit decides whether the request may proceed and produces the
	// client-visible accounting. OverLimit is expressed in the decision, not
	// as an error; only strict-endpoint store outages and programming errors
	// return a non-nil error.
	Admit(ctx context.Context, raw models.RawRequest, endpoint string, cost float64) (*models.AdmissionDecision, error)

	// ResetLimits clears all window counters whose client key starts with
	// the prefix. Administrative surface only.
	ResetLimits(ctx context.Context, clientKeyPrefix string) (int, error)

	// Policy returns the machine-readable active policy.
	Policy() models.PolicyDescriptor
}

// AuditPublisher records operability events (over-limit, degradation,
// administrative resets) outside the request path.
type AuditPublisher interface {
	Publish(ctx context.Context, event AuditEvent) error
	Close() error
}

// AuditEvent is one operability event.
type AuditEvent struct {
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Endpoint  string                 `json:"endpoint,omitempty"`
	ClientKey string                 `json:"client_key,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}
