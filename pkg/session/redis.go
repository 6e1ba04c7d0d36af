package session

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/caremesh-ai/rampart/pkg/threat"
)

const (
	fieldRequestCount = "request_count"
	fieldThreatCount  = "prior_threat_count"
)

// reconcileScript decrements the threat counter with a zero floor in one
// atomic step, so concurrent reconciliations cannot drive it negative.
var reconcileScript = redis.NewScript(`
local v = redis.call('HINCRBY', KEYS[1], ARGV[1], -1)
if v < 0 then
  redis.call('HSET', KEYS[1], ARGV[1], 0)
  return 0
end
return v
`)

// RedisStore is a Store backed by a redis hash per session. Counter updates
// use HINCRBY, which redis serializes per key, so concurrent requests for
// the same session cannot lose updates and different sessions never contend.
// Keys carry no TTL: retention is the caller's policy, matching the
// in-process store.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisStore creates a store over an existing redis client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, keyPrefix: "rampart:session:"}
}

func (s *RedisStore) key(sessionID string) string {
	return s.keyPrefix + sessionID
}

// Adjust applies the adjustment policy using the counters stored in redis.
func (s *RedisStore) Adjust(ctx context.Context, sessionID string, base float64, sig Signals) (float64, error) {
	st, err := s.State(ctx, sessionID)
	if err != nil {
		return clamp01(base), err
	}
	return adjust(base, st, sig), nil
}

// RecordOutcome bumps the request counter and, for blocks, the threat
// counter.
func (s *RedisStore) RecordOutcome(ctx context.Context, sessionID string, action threat.Action) error {
	pipe := s.client.TxPipeline()
	pipe.HIncrBy(ctx, s.key(sessionID), fieldRequestCount, 1)
	if action == threat.ActionBlock {
		pipe.HIncrBy(ctx, s.key(sessionID), fieldThreatCount, 1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record outcome for %s: %w", sessionID, err)
	}
	return nil
}

// ReconcileFalsePositive decrements the threat counter, floored at zero.
func (s *RedisStore) ReconcileFalsePositive(ctx context.Context, sessionID string) error {
	if err := reconcileScript.Run(ctx, s.client, []string{s.key(sessionID)}, fieldThreatCount).Err(); err != nil {
		return fmt.Errorf("reconcile for %s: %w", sessionID, err)
	}
	return nil
}

// State reads the session's counters. A session never seen before reads as
// zeros; the hash is created lazily by the first RecordOutcome.
func (s *RedisStore) State(ctx context.Context, sessionID string) (State, error) {
	vals, err := s.client.HMGet(ctx, s.key(sessionID), fieldRequestCount, fieldThreatCount).Result()
	if err != nil {
		return State{}, fmt.Errorf("read state for %s: %w", sessionID, err)
	}
	return State{
		RequestCount:     toInt64(vals[0]),
		PriorThreatCount: toInt64(vals[1]),
	}, nil
}

func toInt64(v interface{}) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	var n int64
	_, _ = fmt.Sscan(s, &n)
	return n
}
