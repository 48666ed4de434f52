// Package store provides window counter store implementations. The Redis
// implementation is the production backend; the in-memory one serves tests
// and single-process fallback.
package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rlgprojects/admission/internal/domain/service"
	"github.com/rlgprojects/admission/pkg/logger"
)

var _ service.CounterStore = (*RedisCounterStore)(nil)

// incrementAndExpireScript atomically increments a float counter and arms the
// window TTL only when the key has none, so concurrent increments within a
// window never refresh the expiry.
const incrementAndExpireScript = `
local current = redis.call('INCRBYFLOAT', KEYS[1], ARGV[1])
if redis.call('TTL', KEYS[1]) < 0 then
    redis.call('EXPIRE', KEYS[1], ARGV[2])
end
return tostring(current)
`

// appendAndPruneScript atomically appends a timestamped member to the
// behavior log, prunes entries older than the lookback horizon, refreshes the
// log TTL, and returns the post-prune cardinality.
const appendAndPruneScript = `
redis.call('ZADD', KEYS[1], ARGV[1], ARGV[2])
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[3])
redis.call('EXPIRE', KEYS[1], ARGV[4])
return redis.call('ZCARD', KEYS[1])
`

// RedisCounterStore implements the counter store on Redis. Both mutating
// operations execute as single Lua scripts so the store stays correct across
// multiple concurrently running service instances.
type RedisCounterStore struct {
	client redis.UniversalClient
	logger logger.Logger
}

// NewRedisCounterStore creates a Redis-backed counter store.
func NewRedisCounterStore(client redis.UniversalClient, log logger.Logger) *RedisCounterStore {
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &RedisCounterStore{
		client: client,
		logger: log.WithComponent("counter_store"),
	}
}

// IncrementAndExpire atomically adds cost and returns the accumulated total.
func (s *RedisCounterStore) IncrementAndExpire(ctx context.Context, key string, cost float64, window time.Duration) (float64, error) {
	seconds := int64(window / time.Second)
	if seconds < 1 {
		seconds = 1
	}

	result, err := s.client.Eval(ctx, incrementAndExpireScript, []string{key},
		formatFloat(cost), seconds).Result()
	if err != nil {
		return 0, fmt.Errorf("increment %s: %w", key, err)
	}

	raw, ok := result.(string)
	if !ok {
		return 0, fmt.Errorf("increment %s: unexpected script result %T", key, result)
	}

	current, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("increment %s: parse %q: %w", key, raw, err)
	}

	return current, nil
}

// Read returns the accumulated cost, 0 when absent.
func (s *RedisCounterStore) Read(ctx context.Context, key string) (float64, error) {
	raw, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", key, err)
	}

	current, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("read %s: parse %q: %w", key, raw, err)
	}
	return current, nil
}

// TTL returns the remaining window lifetime, 0 when the key is absent or has
// no expiry.
func (s *RedisCounterStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("ttl %s: %w", key, err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// DeleteByPrefix removes all keys under the prefix using SCAN, never KEYS,
// so administrative resets do not stall the server.
func (s *RedisCounterStore) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	var (
		cursor  uint64
		removed int
	)

	for {
		keys, next, err := s.client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return removed, fmt.Errorf("scan %s: %w", prefix, err)
		}

		if len(keys) > 0 {
			deleted, err := s.client.Del(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("delete %s: %w", prefix, err)
			}
			removed += int(deleted)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	s.logger.Debug(ctx, "counters reset",
		logger.String("prefix", prefix),
		logger.Int("removed", removed),
	)

	return removed, nil
}

// AppendTimestamp appends ts to the behavior log and returns the post-prune
// cardinality. Members carry a nanosecond suffix so same-second requests stay
// distinct in the sorted set.
func (s *RedisCounterStore) AppendTimestamp(ctx context.Context, key string, ts time.Time, lookback time.Duration) (int64, error) {
	score := float64(ts.UnixNano()) / float64(time.Second)
	member := strconv.FormatInt(ts.UnixNano(), 10)
	horizon := score - lookback.Seconds()
	ttlSeconds := int64(lookback / time.Second)
	if ttlSeconds < 1 {
		ttlSeconds = 1
	}

	result, err := s.client.Eval(ctx, appendAndPruneScript, []string{key},
		formatFloat(score), member, formatFloat(horizon), ttlSeconds).Result()
	if err != nil {
		return 0, fmt.Errorf("append %s: %w", key, err)
	}

	count, ok := result.(int64)
	if !ok {
		return 0, fmt.Errorf("append %s: unexpected script result %T", key, result)
	}
	return count, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
