// Package constants defines system-wide constants for the admission control service.
// This package provides type-safe constant definitions used across all modules.
package constants

import "time"

// ================================================================================
// Admission Window Constants
// ================================================================================

const (
	// DefaultMaxUnits is the global default cost budget per window when an
	// endpoint has no entry in the limits table (60 units).
	DefaultMaxUnits = 60

	// DefaultWindow is the global default accounting window (60 seconds).
	DefaultWindow = 60 * time.Second

	// BehaviorLookbackWindow is the lookback window for behavior profiles (5 minutes).
	BehaviorLookbackWindow = 5 * time.Minute

	// AnomalyBaselineCount is the request count within the lookback window that
	// maps to an anomaly score of 1.0 under the default scoring function.
	AnomalyBaselineCount = 120

	// MinLimitMultiplier is the lower clamp for advisor-suggested multipliers.
	MinLimitMultiplier = 0.1

	// MaxLimitMultiplier is the upper clamp for advisor-suggested multipliers.
	MaxLimitMultiplier = 10.0

	// OffHoursRelaxFactor scales limits up outside working hours.
	OffHoursRelaxFactor = 1.5

	// OffHoursTightenFactor scales limits down outside working hours.
	OffHoursTightenFactor = 0.5

	// LoadFloorFraction is the minimum fraction of the base limit that load
	// backpressure may scale down to.
	LoadFloorFraction = 0.1

	// DefaultLoadThreshold is the system load gauge value above which
	// backpressure starts scaling limits down.
	DefaultLoadThreshold = 0.7
)

// ================================================================================
// Key Namespace Constants
// ================================================================================

const (
	// RateLimitKeyPrefix namespaces window counter keys in the shared store.
	RateLimitKeyPrefix = "ratelimit"

	// BehaviorKeyPrefix namespaces behavior log keys in the shared store.
	BehaviorKeyPrefix = "behavior"

	// AnonymousClientKey is the fixed accounting bucket for requests whose
	// client identity cannot be derived.
	AnonymousClientKey = "anonymous"
)

// ================================================================================
// Timeout Constants
// ================================================================================

const (
	// DefaultStoreTimeout bounds the synchronous counter store round-trip on
	// the admission hot path.
	DefaultStoreTimeout = 100 * time.Millisecond

	// DefaultAdvisorTimeout bounds the limit advisor call.
	DefaultAdvisorTimeout = 50 * time.Millisecond

	// GeoCacheTTL is the bounded lifetime of cached geography contexts.
	GeoCacheTTL = 30 * time.Minute

	// AnomalyScoreTTL is how long a last-known anomaly score stays readable
	// after the most recent behavior update.
	AnomalyScoreTTL = 10 * time.Minute
)

// ================================================================================
// Failure Policy Constants
// ================================================================================

// FailurePolicy defines endpoint behavior when the counter store is unreachable.
type FailurePolicy string

const (
	// FailurePolicyBestEffort admits requests when the store is down (fail open).
	FailurePolicyBestEffort FailurePolicy = "best_effort"

	// FailurePolicyStrict rejects requests when the store is down (fail closed).
	FailurePolicyStrict FailurePolicy = "strict"
)

// OffHoursPolicy defines how limits change outside regional working hours.
type OffHoursPolicy string

const (
	// OffHoursRelax raises limits outside working hours.
	OffHoursRelax OffHoursPolicy = "relax"

	// OffHoursTighten lowers limits outside working hours.
	OffHoursTighten OffHoursPolicy = "tighten"
)

// ================================================================================
// Geography Constants
// ================================================================================

const (
	// CountryUnknown is the fallback country code when geography cannot be resolved.
	CountryUnknown = "UNKNOWN"

	// TimezoneFallback is the fallback timezone for unresolvable geography.
	TimezoneFallback = "UTC"

	// DefaultWorkingHoursStart is the fallback working-hours start (local hour).
	DefaultWorkingHoursStart = 9

	// DefaultWorkingHoursEnd is the fallback working-hours end (local hour).
	DefaultWorkingHoursEnd = 17
)

// ================================================================================
// Log Level Constants
// ================================================================================

// LogLevel represents logging verbosity.
type LogLevel int

const (
	// LogLevelDebug enables debug and above.
	LogLevelDebug LogLevel = iota

	// LogLevelInfo enables info and above.
	LogLevelInfo

	// LogLevelWarn enables warnings and above.
	LogLevelWarn

	// LogLevelError enables errors and above.
	LogLevelError

	// LogLevelFatal enables fatal only.
	LogLevelFatal
)

// ================================================================================
// Context Key Constants
// ================================================================================

// ContextKey is the type for request-scoped context keys.
type ContextKey string

const (
	// ContextKeyRequestID carries the per-request correlation id.
	ContextKeyRequestID ContextKey = "request_id"

	// ContextKeyEndpoint carries the admission endpoint name.
	ContextKeyEndpoint ContextKey = "endpoint"
)

// ================================================================================
// Audit Event Constants
// ================================================================================

// AuditEventType classifies audit events published by the core.
type AuditEventType string

const (
	// AuditEventOverLimit records a client-visible rate limit rejection.
	AuditEventOverLimit AuditEventType = "admission.over_limit"

	// AuditEventDegradation records a dependency failure absorbed by policy.
	AuditEventDegradation AuditEventType = "admission.degradation"

	// AuditEventAdminReset records an administrative counter reset.
	AuditEventAdminReset AuditEventType = "admission.admin_reset"

	// AuditEventAnomalyReject records a policy-hook rejection on anomaly score.
	AuditEventAnomalyReject AuditEventType = "admission.anomaly_reject"
)

// ComplianceTags lists the compliance regimes the accounting design honors.
// Client identities are stored only as irreversible hashes.
var ComplianceTags = []string{"GDPR", "CCPA"}
