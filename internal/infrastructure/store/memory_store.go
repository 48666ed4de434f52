package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rlgprojects/admission/internal/domain/service"
)

var _ service.CounterStore = (*MemoryCounterStore)(nil)

// janitorInterval is how often the background sweep evicts expired entries.
const janitorInterval = time.Minute

// MemoryCounterStore is a process-local counter store. It honors the same
// atomicity contract as the Redis implementation under a single mutex, which
// makes it suitable for tests and for single-instance deployments, but not
// for fleets sharing admission state. A background sweep evicts expired
// counters and stale behavior logs so burst-then-idle clients do not stay
// resident forever; Close stops it.
type MemoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]*windowCounter
	logs     map[string]*behaviorLog
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

type windowCounter struct {
	accumulated float64
	expiresAt   time.Time
}

type behaviorLog struct {
	entries   []time.Time
	expiresAt time.Time
}

// NewMemoryCounterStore creates an empty in-memory counter store and starts
// its background sweep.
func NewMemoryCounterStore() *MemoryCounterStore {
	s := &MemoryCounterStore{
		counters: make(map[string]*windowCounter),
		logs:     make(map[string]*behaviorLog),
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go s.janitor()
	return s
}

// SetClock overrides the time source. Test hook; not safe to call once the
// store is in use.
func (s *MemoryCounterStore) SetClock(now func() time.Time) {
	s.now = now
}

// Close stops the background sweep. Safe to call more than once.
func (s *MemoryCounterStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

func (s *MemoryCounterStore) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

// sweep evicts expired counters and behavior logs past their horizon.
func (s *MemoryCounterStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, counter := range s.counters {
		if !counter.expiresAt.After(now) {
			delete(s.counters, key)
		}
	}
	for key, log := range s.logs {
		if !log.expiresAt.After(now) {
			delete(s.logs, key)
		}
	}
}

// IncrementAndExpire atomically adds cost and returns the accumulated total.
func (s *MemoryCounterStore) IncrementAndExpire(ctx context.Context, key string, cost float64, window time.Duration) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	counter, ok := s.counters[key]
	if !ok || !counter.expiresAt.After(now) {
		counter = &windowCounter{expiresAt: now.Add(window)}
		s.counters[key] = counter
	}

	counter.accumulated += cost
	return counter.accumulated, nil
}

// Read returns the accumulated cost, 0 when absent or expired.
func (s *MemoryCounterStore) Read(ctx context.Context, key string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	counter, ok := s.counters[key]
	if !ok || !counter.expiresAt.After(s.now()) {
		return 0, nil
	}
	return counter.accumulated, nil
}

// TTL returns the remaining window lifetime, 0 when absent or expired.
func (s *MemoryCounterStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	counter, ok := s.counters[key]
	if !ok {
		return 0, nil
	}

	remaining := counter.expiresAt.Sub(s.now())
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

// DeleteByPrefix removes counters and behavior logs under the prefix.
func (s *MemoryCounterStore) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key := range s.counters {
		if strings.HasPrefix(key, prefix) {
			delete(s.counters, key)
			removed++
		}
	}
	for key := range s.logs {
		if strings.HasPrefix(key, prefix) {
			delete(s.logs, key)
			removed++
		}
	}
	return removed, nil
}

// AppendTimestamp appends ts, prunes entries older than lookback, and returns
// the post-prune cardinality. The log expires one lookback after its newest
// entry, mirroring the Redis implementation's EXPIRE refresh.
func (s *MemoryCounterStore) AppendTimestamp(ctx context.Context, key string, ts time.Time, lookback time.Duration) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	log, ok := s.logs[key]
	if !ok {
		log = &behaviorLog{}
		s.logs[key] = log
	}

	horizon := ts.Add(-lookback)
	entries := append(log.entries, ts)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Before(entries[j]) })

	kept := entries[:0]
	for _, entry := range entries {
		if entry.After(horizon) {
			kept = append(kept, entry)
		}
	}

	log.entries = kept
	log.expiresAt = ts.Add(lookback)
	return int64(len(kept)), nil
}
