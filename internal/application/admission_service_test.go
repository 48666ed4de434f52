package application_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlgprojects/admission/internal/application"
	"github.com/rlgprojects/admission/internal/domain/models"
	"github.com/rlgprojects/admission/internal/domain/service"
	"github.com/rlgprojects/admission/internal/infrastructure/store"
	"github.com/rlgprojects/admission/pkg/constants"
	"github.com/rlgprojects/admission/pkg/errors"
)

type stubScorer struct {
	score float64
}

func (s stubScorer) RecordAsync(clientKey string)      {}
func (s stubScorer) LastScore(clientKey string) float64 { return s.score }

type failingStore struct{}

func (failingStore) IncrementAndExpire(ctx context.Context, key string, cost float64, window time.Duration) (float64, error) {
	return 0, assert.AnError
}

func (failingStore) Read(ctx context.Context, key string) (float64, error) {
	return 0, assert.AnError
}

func (failingStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	return 0, assert.AnError
}

func (failingStore) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	return 0, assert.AnError
}

func (failingStore) AppendTimestamp(ctx context.Context, key string, ts time.Time, lookback time.Duration) (int64, error) {
	return 0, assert.AnError
}

// blockingStore honors ctx cancellation but never answers otherwise.
type blockingStore struct{}

func (blockingStore) IncrementAndExpire(ctx context.Context, key string, cost float64, window time.Duration) (float64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func (blockingStore) Read(ctx context.Context, key string) (float64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func (blockingStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func (blockingStore) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func (blockingStore) AppendTimestamp(ctx context.Context, key string, ts time.Time, lookback time.Duration) (int64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

// ttlCountingStore counts TTL reads on top of a real store.
type ttlCountingStore struct {
	service.CounterStore
	mu       sync.Mutex
	ttlCalls int
}

func (s *ttlCountingStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	s.ttlCalls++
	s.mu.Unlock()
	return s.CounterStore.TTL(ctx, key)
}

func (s *ttlCountingStore) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ttlCalls
}

type recordingAudit struct {
	mu     sync.Mutex
	events []service.AuditEvent
}

func (a *recordingAudit) Publish(ctx context.Context, event service.AuditEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

func (a *recordingAudit) Close() error { return nil }

func (a *recordingAudit) types() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	types := make([]string, 0, len(a.events))
	for _, event := range a.events {
		types = append(types, event.Type)
	}
	return types
}

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func newManualClock() *manualClock {
	return &manualClock{t: time.Unix(1_700_000_000, 0)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type gatewayOptions struct {
	store        service.CounterStore
	behavior     service.BehaviorScorer
	audit        service.AuditPublisher
	table        models.EndpointLimitTable
	storeTimeout time.Duration
}

func newGateway(t *testing.T, opts gatewayOptions) *application.AdmissionGateway {
	t.Helper()

	if opts.table == nil {
		opts.table = models.EndpointLimitTable{
			"search": {MaxUnits: 5, Window: 10 * time.Second, FailurePolicy: constants.FailurePolicyBestEffort},
		}
	}
	if opts.behavior == nil {
		opts.behavior = stubScorer{}
	}

	resolver, err := application.NewContextResolver(context.Background(),
		staticSecrets{secret: []byte("gateway-test-secret")},
		&stubGeo{geo: &models.GeoContext{
			CountryCode:  "DE",
			Timezone:     "UTC",
			WorkingHours: models.WorkingHours{StartHour: 0, EndHour: 24},
		}},
		time.Minute, nil)
	require.NoError(t, err)

	calculator := application.NewLimitCalculator(application.LimitCalculatorConfig{
		Table: opts.table,
	}, nil)

	return application.NewAdmissionGateway(application.AdmissionGatewayConfig{
		Resolver:     resolver,
		Behavior:     opts.behavior,
		Calculator:   calculator,
		Store:        opts.store,
		Audit:        opts.audit,
		Table:        opts.table,
		StoreTimeout: opts.storeTimeout,
	}, nil)
}

func testRequest() models.RawRequest {
	return models.RawRequest{RemoteAddr: "203.0.113.7:54231", UserAgent: "curl/8.0"}
}

func TestAdmissionGateway_WindowExhaustionAndReset(t *testing.T) {
	clock := newManualClock()
	memStore := store.NewMemoryCounterStore()
	memStore.SetClock(clock.Now)
	gateway := newGateway(t, gatewayOptions{store: memStore})

	for i := 0; i < 5; i++ {
		decision, err := gateway.Admit(context.Background(), testRequest(), "search", 1)
		require.NoError(t, err)
		assert.True(t, decision.Admitted)
		assert.Equal(t, 5, decision.Limit)
		assert.Equal(t, float64(4-i), decision.Remaining)
	}

	decision, err := gateway.Admit(context.Background(), testRequest(), "search", 1)
	require.NoError(t, err)
	assert.False(t, decision.Admitted)
	assert.Equal(t, 0.0, decision.Remaining)
	require.NotNil(t, decision.RetryAfterSeconds)
	assert.Greater(t, *decision.RetryAfterSeconds, 0)
	assert.LessOrEqual(t, *decision.RetryAfterSeconds, 10)

	// A fresh window admits again with full capacity.
	clock.Advance(11 * time.Second)
	decision, err = gateway.Admit(context.Background(), testRequest(), "search", 1)
	require.NoError(t, err)
	assert.True(t, decision.Admitted)
	assert.Equal(t, 4.0, decision.Remaining)
}

func TestAdmissionGateway_FractionalCosts(t *testing.T) {
	gateway := newGateway(t, gatewayOptions{store: store.NewMemoryCounterStore()})

	decision, err := gateway.Admit(context.Background(), testRequest(), "search", 2.5)
	require.NoError(t, err)
	assert.True(t, decision.Admitted)
	assert.Equal(t, 2.5, decision.Remaining)

	decision, err = gateway.Admit(context.Background(), testRequest(), "search", 2.5)
	require.NoError(t, err)
	assert.True(t, decision.Admitted)
	assert.Equal(t, 0.0, decision.Remaining)

	decision, err = gateway.Admit(context.Background(), testRequest(), "search", 0.5)
	require.NoError(t, err)
	assert.False(t, decision.Admitted)
}

func TestAdmissionGateway_NonPositiveCostDefaultsToOne(t *testing.T) {
	gateway := newGateway(t, gatewayOptions{store: store.NewMemoryCounterStore()})

	decision, err := gateway.Admit(context.Background(), testRequest(), "search", 0)
	require.NoError(t, err)
	assert.Equal(t, 4.0, decision.Remaining)
}

func TestAdmissionGateway_ConcurrentRequestsNeverOverAdmit(t *testing.T) {
	const workers = 10

	table := models.EndpointLimitTable{
		"search": {MaxUnits: workers - 1, Window: time.Minute, FailurePolicy: constants.FailurePolicyBestEffort},
	}
	gateway := newGateway(t, gatewayOptions{store: store.NewMemoryCounterStore(), table: table})

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			decision, err := gateway.Admit(context.Background(), testRequest(), "search", 1)
			if !assert.NoError(t, err) {
				return
			}
			if decision.Admitted {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, workers-1, admitted)
}

func TestAdmissionGateway_BestEffortFailsOpen(t *testing.T) {
	audit := &recordingAudit{}
	gateway := newGateway(t, gatewayOptions{store: failingStore{}, audit: audit})

	decision, err := gateway.Admit(context.Background(), testRequest(), "search", 1)
	require.NoError(t, err)
	assert.True(t, decision.Admitted)
	assert.True(t, decision.Degraded)
	assert.Equal(t, 4.0, decision.Remaining)
	assert.Contains(t, audit.types(), string(constants.AuditEventDegradation))
}

func TestAdmissionGateway_BlockedStoreDegradesWithinTimeout(t *testing.T) {
	gateway := newGateway(t, gatewayOptions{
		store:        blockingStore{},
		storeTimeout: 50 * time.Millisecond,
	})

	started := time.Now()
	decision, err := gateway.Admit(context.Background(), testRequest(), "search", 1)
	elapsed := time.Since(started)

	require.NoError(t, err)
	assert.True(t, decision.Admitted)
	assert.True(t, decision.Degraded)
	assert.Less(t, elapsed, time.Second, "degradation must be bounded by the store timeout")
}

func TestAdmissionGateway_AdmittedPathSkipsTTLRead(t *testing.T) {
	counting := &ttlCountingStore{CounterStore: store.NewMemoryCounterStore()}
	gateway := newGateway(t, gatewayOptions{store: counting})

	decision, err := gateway.Admit(context.Background(), testRequest(), "search", 1)
	require.NoError(t, err)
	require.True(t, decision.Admitted)

	assert.Equal(t, 0, counting.calls())
	assert.InDelta(t, time.Now().Add(10*time.Second).Unix(), decision.ResetAt, 2)
}

func TestAdmissionGateway_StrictFailsClosed(t *testing.T) {
	table := models.EndpointLimitTable{
		"auth": {MaxUnits: 20, Window: 5 * time.Minute, FailurePolicy: constants.FailurePolicyStrict},
	}
	gateway := newGateway(t, gatewayOptions{store: failingStore{}, table: table})

	decision, err := gateway.Admit(context.Background(), testRequest(), "auth", 1)
	require.Error(t, err)
	assert.Nil(t, decision)
	assert.True(t, errors.IsStoreUnavailable(err))
}

func TestAdmissionGateway_AnomalyHookRejects(t *testing.T) {
	table := models.EndpointLimitTable{
		"search": {MaxUnits: 5, Window: 10 * time.Second, FailurePolicy: constants.FailurePolicyBestEffort, RejectAnomalyAbove: 0.9},
	}
	audit := &recordingAudit{}
	memStore := store.NewMemoryCounterStore()
	gateway := newGateway(t, gatewayOptions{
		store:    memStore,
		behavior: stubScorer{score: 0.95},
		audit:    audit,
		table:    table,
	})

	decision, err := gateway.Admit(context.Background(), testRequest(), "search", 1)
	require.NoError(t, err)
	assert.False(t, decision.Admitted)
	assert.Equal(t, 0.95, decision.AnomalyScore)
	assert.Contains(t, audit.types(), string(constants.AuditEventAnomalyReject))

	// Anomaly rejections happen before the increment, so the window stays
	// uncharged and a cleared score admits with full capacity.
	cleared := newGateway(t, gatewayOptions{store: memStore, table: table})
	decision, err = cleared.Admit(context.Background(), testRequest(), "search", 1)
	require.NoError(t, err)
	assert.True(t, decision.Admitted)
	assert.Equal(t, 4.0, decision.Remaining)
}

func TestAdmissionGateway_AnomalyScoreLagsOneRequest(t *testing.T) {
	memStore := store.NewMemoryCounterStore()
	tracker := application.NewBehaviorTracker(memStore, application.BehaviorTrackerConfig{
		Lookback:      time.Minute,
		BaselineCount: 2,
		Workers:       2,
	}, nil)
	gateway := newGateway(t, gatewayOptions{store: memStore, behavior: tracker})

	first, err := gateway.Admit(context.Background(), testRequest(), "search", 1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, first.AnomalyScore)

	assert.Eventually(t, func() bool {
		decision, err := gateway.Admit(context.Background(), testRequest(), "search", 1)
		require.NoError(t, err)
		return decision.AnomalyScore > 0
	}, time.Second, 10*time.Millisecond)
}

func TestAdmissionGateway_OverLimitPublishesAuditEvent(t *testing.T) {
	table := models.EndpointLimitTable{
		"search": {MaxUnits: 1, Window: 10 * time.Second, FailurePolicy: constants.FailurePolicyBestEffort},
	}
	audit := &recordingAudit{}
	gateway := newGateway(t, gatewayOptions{store: store.NewMemoryCounterStore(), audit: audit, table: table})

	_, err := gateway.Admit(context.Background(), testRequest(), "search", 1)
	require.NoError(t, err)
	decision, err := gateway.Admit(context.Background(), testRequest(), "search", 1)
	require.NoError(t, err)

	assert.False(t, decision.Admitted)
	assert.Contains(t, audit.types(), string(constants.AuditEventOverLimit))
}

func TestAdmissionGateway_ResetLimits(t *testing.T) {
	audit := &recordingAudit{}
	gateway := newGateway(t, gatewayOptions{store: store.NewMemoryCounterStore(), audit: audit})

	for i := 0; i < 5; i++ {
		_, err := gateway.Admit(context.Background(), testRequest(), "search", 1)
		require.NoError(t, err)
	}
	decision, err := gateway.Admit(context.Background(), testRequest(), "search", 1)
	require.NoError(t, err)
	require.False(t, decision.Admitted)

	removed, err := gateway.ResetLimits(context.Background(), "")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, removed, 1)
	assert.Contains(t, audit.types(), string(constants.AuditEventAdminReset))

	decision, err = gateway.Admit(context.Background(), testRequest(), "search", 1)
	require.NoError(t, err)
	assert.True(t, decision.Admitted)
	assert.Equal(t, 4.0, decision.Remaining)
}

func TestAdmissionGateway_ResetLimitsStoreFailure(t *testing.T) {
	gateway := newGateway(t, gatewayOptions{store: failingStore{}})

	_, err := gateway.ResetLimits(context.Background(), "client")
	assert.Error(t, err)
}

func TestAdmissionGateway_PolicyDescriptor(t *testing.T) {
	table := models.EndpointLimitTable{
		"search": {MaxUnits: 5, Window: 10 * time.Second, FailurePolicy: constants.FailurePolicyBestEffort},
		"auth":   {MaxUnits: 20, Window: 5 * time.Minute, FailurePolicy: constants.FailurePolicyStrict},
	}
	gateway := newGateway(t, gatewayOptions{store: store.NewMemoryCounterStore(), table: table})

	policy := gateway.Policy()
	assert.NotEmpty(t, policy.Version)
	assert.False(t, policy.GeneratedAt.IsZero())
	assert.Contains(t, policy.Compliance, "GDPR")
	require.Len(t, policy.Endpoints, 2)
	assert.Equal(t, "auth", policy.Endpoints[0].Name)
	assert.Equal(t, "search", policy.Endpoints[1].Name)
	assert.Equal(t, string(constants.FailurePolicyStrict), policy.Endpoints[0].FailurePolicy)

	// The descriptor is frozen at construction.
	assert.Equal(t, policy.Version, gateway.Policy().Version)
}
