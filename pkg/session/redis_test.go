package session

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/caremesh-ai/rampart/pkg/threat"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client)
}

func TestRedisStateUnknownSession(t *testing.T) {
	s := newTestRedisStore(t)
	st, err := s.State(context.Background(), "never-seen")
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if st.RequestCount != 0 || st.PriorThreatCount != 0 {
		t.Fatalf("unknown session should read as zeros, got %+v", st)
	}
}

func TestRedisRecordOutcomeCounters(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()
	id := "sess-redis"

	if err := s.RecordOutcome(ctx, id, threat.ActionAllow); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.RecordOutcome(ctx, id, threat.ActionBlock); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.RecordOutcome(ctx, id, threat.ActionBlock); err != nil {
		t.Fatalf("record: %v", err)
	}

	st, err := s.State(ctx, id)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if st.RequestCount != 3 {
		t.Errorf("expected 3 requests, got %d", st.RequestCount)
	}
	if st.PriorThreatCount != 2 {
		t.Errorf("expected 2 threats, got %d", st.PriorThreatCount)
	}
}

func TestRedisAdjustUsesStoredCounters(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()
	id := "sess-adjust"

	s.RecordOutcome(ctx, id, threat.ActionBlock)
	s.RecordOutcome(ctx, id, threat.ActionBlock)

	got, err := s.Adjust(ctx, id, 0.40, Signals{})
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if diff := got - 0.50; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected 0.40 + 2*0.05 = 0.50, got %f", got)
	}
}

func TestRedisReconcileRoundTrip(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()
	id := "sess-rt"

	s.RecordOutcome(ctx, id, threat.ActionBlock)
	if err := s.ReconcileFalsePositive(ctx, id); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	st, _ := s.State(ctx, id)
	if st.PriorThreatCount != 0 {
		t.Fatalf("expected threat count back to 0, got %d", st.PriorThreatCount)
	}
	if st.RequestCount != 1 {
		t.Fatalf("reconcile must not touch the request count, got %d", st.RequestCount)
	}
}

func TestRedisReconcileFloorsAtZero(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()
	id := "sess-floor"

	for i := 0; i < 3; i++ {
		if err := s.ReconcileFalsePositive(ctx, id); err != nil {
			t.Fatalf("reconcile: %v", err)
		}
	}
	st, _ := s.State(ctx, id)
	if st.PriorThreatCount != 0 {
		t.Fatalf("threat count must not go negative, got %d", st.PriorThreatCount)
	}
}

func TestRedisErrorSurfacesFromAdjust(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStore(client)
	mr.Close()

	got, err := s.Adjust(context.Background(), "sess", 0.40, Signals{})
	if err == nil {
		t.Fatalf("expected an error when redis is down")
	}
	if got != 0.40 {
		t.Fatalf("adjust should fall back to the clamped base, got %f", got)
	}
}
