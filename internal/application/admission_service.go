package application

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rlgprojects/admission/internal/domain/models"
	"github.com/rlgprojects/admission/internal/domain/service"
	"github.com/rlgprojects/admission/pkg/constants"
	"github.com/rlgprojects/admission/pkg/errors"
	"github.com/rlgprojects/admission/pkg/logger"
)

var _ service.AdmissionService = (*AdmissionGateway)(nil)

// AdmissionGateway orchestrates the admission decision: identity resolution,
// asynchronous behavior tracking, adaptive limit calculation, and atomic
// enforcement against the window counter store.
//
// Accounting semantics: the cost is applied optimistically and the decision
// compares the post-increment total against the limit. A rejected request
// therefore overshoots the window by at most its own cost; retries within
// the same window are rejected on the already-saturated counter without the
// overshoot growing past one request's cost beyond each attempt's own charge.
type AdmissionGateway struct {
	resolver     *ContextResolver
	behavior     service.BehaviorScorer
	calculator   *LimitCalculator
	store        service.CounterStore
	load         service.LoadGauge
	audit        service.AuditPublisher
	metrics      service.MetricsRecorder
	table        models.EndpointLimitTable
	storeTimeout time.Duration
	policy       models.PolicyDescriptor
	logger       logger.Logger
}

// AdmissionGatewayConfig wires an AdmissionGateway.
type AdmissionGatewayConfig struct {
	Resolver     *ContextResolver
	Behavior     service.BehaviorScorer
	Calculator   *LimitCalculator
	Store        service.CounterStore
	Load         service.LoadGauge      // nil means no backpressure signal
	Audit        service.AuditPublisher // nil disables event publishing
	Metrics      service.MetricsRecorder
	Table        models.EndpointLimitTable
	StoreTimeout time.Duration
	OffHours     constants.OffHoursPolicy
	AdvisorID    string
}

// NewAdmissionGateway creates the gateway and freezes its policy descriptor.
func NewAdmissionGateway(cfg AdmissionGatewayConfig, log logger.Logger) *AdmissionGateway {
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = constants.DefaultStoreTimeout
	}
	if log == nil {
		log = logger.NewNoopLogger()
	}

	return &AdmissionGateway{
		resolver:     cfg.Resolver,
		behavior:     cfg.Behavior,
		calculator:   cfg.Calculator,
		store:        cfg.Store,
		load:         cfg.Load,
		audit:        cfg.Audit,
		metrics:      cfg.Metrics,
		table:        cfg.Table,
		storeTimeout: cfg.StoreTimeout,
		policy:       buildPolicyDescriptor(cfg.Table, cfg.OffHours, cfg.AdvisorID),
		logger:       log.WithComponent("admission_gateway"),
	}
}

// Admit decides whether the request may proceed. Over-limit is expressed in
// the returned decision; only strict-endpoint store outages surface as errors.
func (g *AdmissionGateway) Admit(ctx context.Context, raw models.RawRequest, endpoint string, cost float64) (*models.AdmissionDecision, error) {
	start := time.Now()
	if cost <= 0 {
		cost = 1.0
	}

	clientKey, geo := g.resolver.Resolve(ctx, raw)

	// Behavior tracking is fire-and-forget; the score read below is the last
	// known value and lags the current request by design.
	g.behavior.RecordAsync(clientKey)
	anomalyScore := g.behavior.LastScore(clientKey)

	var systemLoad float64
	if g.load != nil {
		systemLoad = g.load.Current()
	}

	limit, window := g.calculator.Compute(ctx, endpoint, geo, systemLoad)
	endpointLimit := g.table.Lookup(endpoint)

	// Policy hook: endpoints may opt into rejecting high-anomaly clients.
	// Checked before the increment so rejected anomalies are not charged.
	if endpointLimit.RejectAnomalyAbove > 0 && anomalyScore > endpointLimit.RejectAnomalyAbove {
		decision := g.rejectedDecision(ctx, clientKey, endpoint, limit, window, anomalyScore)
		g.publish(constants.AuditEventAnomalyReject, endpoint, clientKey, map[string]interface{}{
			"anomaly_score": anomalyScore,
			"threshold":     endpointLimit.RejectAnomalyAbove,
		})
		g.recordDecision(endpoint, "anomaly_reject", start)
		return decision, nil
	}

	counterKey := windowKey(clientKey, endpoint)

	storeCtx, cancel := context.WithTimeout(ctx, g.storeTimeout)
	defer cancel()

	current, err := g.store.IncrementAndExpire(storeCtx, counterKey, cost, window)
	if err != nil {
		return g.handleStoreFailure(ctx, err, endpointLimit, endpoint, clientKey, limit, window, cost, anomalyScore, start)
	}

	now := time.Now()

	if current > float64(limit) {
		decision := g.rejectedDecision(ctx, clientKey, endpoint, limit, window, anomalyScore)
		g.publish(constants.AuditEventOverLimit, endpoint, clientKey, map[string]interface{}{
			"limit":   limit,
			"current": current,
		})
		g.recordDecision(endpoint, "rejected", start)
		return decision, nil
	}

	remaining := float64(limit) - current
	if remaining < 0 {
		remaining = 0
	}

	g.recordDecision(endpoint, "admitted", start)

	// ResetAt is approximated as now+window so the admitted path stays at a
	// single store round-trip.
	return &models.AdmissionDecision{
		Admitted:     true,
		Limit:        limit,
		Remaining:    remaining,
		ResetAt:      now.Add(window).Unix(),
		AnomalyScore: anomalyScore,
	}, nil
}

// rejectedDecision builds the over-limit decision with the remaining window
// TTL as the retry hint. The increment already happened for over-limit
// rejections; the window policy tolerates that bounded overshoot.
func (g *AdmissionGateway) rejectedDecision(ctx context.Context, clientKey, endpoint string, limit int, window time.Duration, anomalyScore float64) *models.AdmissionDecision {
	now := time.Now()
	counterKey := windowKey(clientKey, endpoint)

	retryAfter := int(window / time.Second)
	ttlCtx, cancel := context.WithTimeout(ctx, g.storeTimeout)
	defer cancel()
	if ttl, err := g.store.TTL(ttlCtx, counterKey); err == nil && ttl > 0 {
		retryAfter = int((ttl + time.Second - 1) / time.Second)
	}

	return &models.AdmissionDecision{
		Admitted:          false,
		Limit:             limit,
		Remaining:         0,
		ResetAt:           now.Unix() + int64(retryAfter),
		RetryAfterSeconds: &retryAfter,
		AnomalyScore:      anomalyScore,
	}
}

// handleStoreFailure applies the endpoint's failure policy: best-effort
// endpoints admit without accounting, strict endpoints reject with a
// distinguishable unavailability error.
func (g *AdmissionGateway) handleStoreFailure(
	ctx context.Context,
	cause error,
	endpointLimit models.EndpointLimit,
	endpoint, clientKey string,
	limit int,
	window time.Duration,
	cost, anomalyScore float64,
	start time.Time,
) (*models.AdmissionDecision, error) {
	g.logger.Error(ctx, "counter store unreachable", cause,
		logger.String("endpoint", endpoint),
		logger.String("policy", string(endpointLimit.FailurePolicy)),
	)
	g.publish(constants.AuditEventDegradation, endpoint, clientKey, map[string]interface{}{
		"policy": string(endpointLimit.FailurePolicy),
		"cause":  cause.Error(),
	})
	if g.metrics != nil {
		g.metrics.RecordDegradation("store_unavailable")
	}

	if endpointLimit.Strict() {
		g.recordDecision(endpoint, "unavailable", start)
		return nil, errors.ErrStoreUnavailable("admission state unavailable for strict endpoint").
			WithCause(cause).
			WithMetadata("endpoint", endpoint)
	}

	remaining := float64(limit) - cost
	if remaining < 0 {
		remaining = 0
	}

	g.recordDecision(endpoint, "degraded_admit", start)
	return &models.AdmissionDecision{
		Admitted:     true,
		Limit:        limit,
		Remaining:    remaining,
		ResetAt:      time.Now().Add(window).Unix(),
		AnomalyScore: anomalyScore,
		Degraded:     true,
	}, nil
}

// ResetLimits clears all window counters under the client key prefix.
func (g *AdmissionGateway) ResetLimits(ctx context.Context, clientKeyPrefix string) (int, error) {
	removed, err := g.store.DeleteByPrefix(ctx, constants.RateLimitKeyPrefix+":"+clientKeyPrefix)
	if err != nil {
		return 0, errors.ErrInternal("failed to reset limits").WithCause(err)
	}

	g.publish(constants.AuditEventAdminReset, "", clientKeyPrefix, map[string]interface{}{
		"removed": removed,
	})
	g.logger.Info(ctx, "limits reset",
		logger.String("prefix", clientKeyPrefix),
		logger.Int("removed", removed),
	)
	return removed, nil
}

// Policy returns the frozen policy descriptor.
func (g *AdmissionGateway) Policy() models.PolicyDescriptor {
	return g.policy
}

func (g *AdmissionGateway) publish(eventType constants.AuditEventType, endpoint, clientKey string, fields map[string]interface{}) {
	if g.audit == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	event := service.AuditEvent{
		Type:      string(eventType),
		Timestamp: time.Now().UTC(),
		Endpoint:  endpoint,
		ClientKey: clientKey,
		Fields:    fields,
	}
	if err := g.audit.Publish(ctx, event); err != nil {
		g.logger.Warn(ctx, "audit publish failed",
			logger.String("event_type", string(eventType)),
			logger.Error(err),
		)
	}
}

func (g *AdmissionGateway) recordDecision(endpoint, outcome string, start time.Time) {
	if g.metrics != nil {
		g.metrics.RecordDecision(endpoint, outcome, time.Since(start))
	}
}

// windowKey builds the namespaced counter key ratelimit:{clientKey}:{endpoint}.
func windowKey(clientKey, endpoint string) string {
	return constants.RateLimitKeyPrefix + ":" + clientKey + ":" + endpoint
}

// buildPolicyDescriptor freezes the machine-readable policy at startup.
func buildPolicyDescriptor(table models.EndpointLimitTable, offHours constants.OffHoursPolicy, advisorID string) models.PolicyDescriptor {
	if offHours == "" {
		offHours = constants.OffHoursRelax
	}
	if advisorID == "" {
		advisorID = "none"
	}

	endpoints := make([]models.EndpointSummary, 0, len(table))
	for name, limit := range table {
		endpoints = append(endpoints, models.EndpointSummary{
			Name:          name,
			MaxUnits:      limit.MaxUnits,
			WindowSeconds: int(limit.Window / time.Second),
			FailurePolicy: string(limit.FailurePolicy),
			AnomalyReject: limit.RejectAnomalyAbove,
		})
	}
	sort.Slice(endpoints, func(i, j int) bool { return endpoints[i].Name < endpoints[j].Name })

	return models.PolicyDescriptor{
		Version:        uuid.NewString(),
		GeneratedAt:    time.Now().UTC(),
		AdvisorID:      advisorID,
		OffHoursPolicy: string(offHours),
		Compliance:     constants.ComplianceTags,
		Endpoints:      endpoints,
	}
}
