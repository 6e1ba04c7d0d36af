package session

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/caremesh-ai/rampart/pkg/threat"
)

const shardCount = 32

type sessionState struct {
	requestCount     int64
	priorThreatCount int64
}

type shard struct {
	mu       sync.Mutex
	sessions map[string]*sessionState
}

// MemoryStore is the in-process Store. Sessions are sharded by id hash so
// concurrent requests for different sessions proceed in parallel while
// requests for the same session serialize on its shard. Entries are created
// on first reference and never evicted automatically; callers that need to
// cap growth use Len and Evict.
type MemoryStore struct {
	shards [shardCount]shard
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	for i := range s.shards {
		s.shards[i].sessions = make(map[string]*sessionState)
	}
	return s
}

func (s *MemoryStore) shardFor(sessionID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return &s.shards[h.Sum32()%shardCount]
}

// Adjust applies the adjustment policy using the session's counters.
func (s *MemoryStore) Adjust(ctx context.Context, sessionID string, base float64, sig Signals) (float64, error) {
	st, err := s.State(ctx, sessionID)
	if err != nil {
		return clamp01(base), err
	}
	return adjust(base, st, sig), nil
}

// RecordOutcome bumps the request counter and, for blocks, the threat
// counter.
func (s *MemoryStore) RecordOutcome(_ context.Context, sessionID string, action threat.Action) error {
	sh := s.shardFor(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st := sh.get(sessionID)
	st.requestCount++
	if action == threat.ActionBlock {
		st.priorThreatCount++
	}
	return nil
}

// ReconcileFalsePositive decrements the threat counter, floored at zero.
func (s *MemoryStore) ReconcileFalsePositive(_ context.Context, sessionID string) error {
	sh := s.shardFor(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st := sh.get(sessionID)
	if st.priorThreatCount > 0 {
		st.priorThreatCount--
	}
	return nil
}

// State returns a snapshot of the session's counters, creating the session
// on first reference.
func (s *MemoryStore) State(_ context.Context, sessionID string) (State, error) {
	sh := s.shardFor(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st := sh.get(sessionID)
	return State{RequestCount: st.requestCount, PriorThreatCount: st.priorThreatCount}, nil
}

// get returns the state for sessionID, creating it if absent.
// Caller must hold the shard lock.
func (sh *shard) get(sessionID string) *sessionState {
	st, ok := sh.sessions[sessionID]
	if !ok {
		st = &sessionState{}
		sh.sessions[sessionID] = st
	}
	return st
}

// Len returns the number of tracked sessions.
func (s *MemoryStore) Len() int {
	n := 0
	for i := range s.shards {
		s.shards[i].mu.Lock()
		n += len(s.shards[i].sessions)
		s.shards[i].mu.Unlock()
	}
	return n
}

// Evict removes a session's counters. Intended for caller-managed capacity
// limits; the store itself never evicts.
func (s *MemoryStore) Evict(sessionID string) {
	sh := s.shardFor(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	delete(sh.sessions, sessionID)
}
