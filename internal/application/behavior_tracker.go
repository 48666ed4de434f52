package application

import (
	"context"
	"runtime"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/semaphore"

	"github.com/rlgprojects/admission/internal/domain/service"
	"github.com/rlgprojects/admission/pkg/constants"
	"github.com/rlgprojects/admission/pkg/logger"
)

var _ service.BehaviorScorer = (*BehaviorTracker)(nil)

// BehaviorTracker maintains per-client behavior profiles through the counter
// store's append-and-prune primitive. Updates run on a bounded worker pool so
// anomaly tracking never adds latency to admission decisions; the computed
// score becomes visible starting with the client's next request.
type BehaviorTracker struct {
	store    service.CounterStore
	scores   *gocache.Cache
	workers  *semaphore.Weighted
	lookback time.Duration
	baseline float64
	timeout  time.Duration
	metrics  service.MetricsRecorder
	logger   logger.Logger
}

// BehaviorTrackerConfig configures a BehaviorTracker.
type BehaviorTrackerConfig struct {
	// Lookback is the behavior log horizon (default 5 minutes).
	Lookback time.Duration

	// BaselineCount is the request count mapping to score 1.0.
	BaselineCount int

	// Workers bounds concurrent background updates. Zero derives a small
	// multiple of the CPU count.
	Workers int

	// StoreTimeout bounds each background store call.
	StoreTimeout time.Duration

	// Metrics optionally samples computed scores.
	Metrics service.MetricsRecorder
}

// NewBehaviorTracker creates a tracker over the given counter store.
func NewBehaviorTracker(store service.CounterStore, cfg BehaviorTrackerConfig, log logger.Logger) *BehaviorTracker {
	if cfg.Lookback <= 0 {
		cfg.Lookback = constants.BehaviorLookbackWindow
	}
	if cfg.BaselineCount <= 0 {
		cfg.BaselineCount = constants.AnomalyBaselineCount
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkerCount()
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = time.Second
	}
	if log == nil {
		log = logger.NewNoopLogger()
	}

	return &BehaviorTracker{
		store:    store,
		scores:   gocache.New(constants.AnomalyScoreTTL, 2*constants.AnomalyScoreTTL),
		workers:  semaphore.NewWeighted(int64(cfg.Workers)),
		lookback: cfg.Lookback,
		baseline: float64(cfg.BaselineCount),
		timeout:  cfg.StoreTimeout,
		metrics:  cfg.Metrics,
		logger:   log.WithComponent("behavior_tracker"),
	}
}

// RecordAsync schedules a behavior update for the client. It never blocks:
// when all workers are busy the sample is dropped rather than queued, keeping
// the hot path free of backpressure from anomaly tracking.
func (t *BehaviorTracker) RecordAsync(clientKey string) {
	if !t.workers.TryAcquire(1) {
		t.logger.Debug(context.Background(), "behavior worker pool saturated, sample dropped",
			logger.String("client_key", clientKey),
		)
		return
	}

	go func() {
		defer t.workers.Release(1)

		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()

		if _, err := t.Record(ctx, clientKey); err != nil {
			t.logger.Warn(ctx, "behavior update failed",
				logger.String("client_key", clientKey),
				logger.Error(err),
			)
		}
	}()
}

// Record appends the current timestamp to the client's behavior log and
// recomputes the anomaly score synchronously. The gateway never calls this on
// the hot path; it exists for the worker goroutines and for tests.
func (t *BehaviorTracker) Record(ctx context.Context, clientKey string) (float64, error) {
	key := constants.BehaviorKeyPrefix + ":" + clientKey

	count, err := t.store.AppendTimestamp(ctx, key, time.Now(), t.lookback)
	if err != nil {
		return 0, err
	}

	score := t.scoreFromCount(count)
	t.scores.SetDefault(clientKey, score)
	if t.metrics != nil {
		t.metrics.ObserveAnomalyScore(score)
	}
	return score, nil
}

// LastScore returns the most recent anomaly score for the client, 0 when
// none has been computed yet.
func (t *BehaviorTracker) LastScore(clientKey string) float64 {
	if cached, ok := t.scores.Get(clientKey); ok {
		return cached.(float64)
	}
	return 0
}

// defaultWorkerCount sizes the pool at a small multiple of the CPU count.
func defaultWorkerCount() int {
	return 2 * runtime.NumCPU()
}

// scoreFromCount maps a behavior log cardinality to [0,1]. Monotonic in the
// count, saturating at the configured baseline.
func (t *BehaviorTracker) scoreFromCount(count int64) float64 {
	score := float64(count) / t.baseline
	if score > 1 {
		return 1
	}
	return score
}
