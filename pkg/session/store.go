// Package session tracks small per-session counters and turns ambient risk
// signals into score adjustments. The store is the only shared mutable
// state in the pipeline: implementations must serialize read-modify-write
// per session id without letting unrelated sessions block one another.
package session

import (
	"context"

	"github.com/caremesh-ai/rampart/pkg/threat"
)

// Signals are the ambient risk inputs supplied by the caller alongside a
// request; they are not stored.
type Signals struct {
	// KnownBadActor marks a session the caller has already attributed to
	// a hostile operator.
	KnownBadActor bool

	// ExternalRiskScore is a risk estimate from an outside system, in
	// [0,1]. Values <= 0.5 are ignored by the adjustment policy.
	ExternalRiskScore float64
}

// State is a read-only snapshot of one session's counters.
type State struct {
	RequestCount     int64
	PriorThreatCount int64
}

// Store holds per-session intelligence.
//
// Adjust applies the additive adjustment policy to base using the stored
// counters plus the passed signals, clamping to [0,1] after every term.
// RecordOutcome is called once per decided request regardless of action:
// it increments the request counter always and the prior-threat counter
// only for block outcomes, so request volume accumulates across allows too.
// ReconcileFalsePositive decrements the prior-threat counter (floor zero);
// it is the only path by which the threat count decreases, used when a
// human reviewer overturns a block.
type Store interface {
	Adjust(ctx context.Context, sessionID string, base float64, sig Signals) (float64, error)
	RecordOutcome(ctx context.Context, sessionID string, action threat.Action) error
	ReconcileFalsePositive(ctx context.Context, sessionID string) error
	State(ctx context.Context, sessionID string) (State, error)
}

// adjustment thresholds and increments, applied in fixed order.
const (
	badActorBoost       = 0.3
	highVolumeThreshold = 100
	highVolumeBoost     = 0.05
	perThreatBoost      = 0.05
	threatBoostCap      = 0.2
	externalThreshold   = 0.5
	externalFactor      = 0.1
)

// adjust applies the four additive terms to base given a counter snapshot
// and ambient signals. Shared by every backend so the policy cannot drift.
func adjust(base float64, st State, sig Signals) float64 {
	score := clamp01(base)
	if sig.KnownBadActor {
		score = clamp01(score + badActorBoost)
	}
	if st.RequestCount > highVolumeThreshold {
		score = clamp01(score + highVolumeBoost)
	}
	if st.PriorThreatCount > 0 {
		boost := float64(st.PriorThreatCount) * perThreatBoost
		if boost > threatBoostCap {
			boost = threatBoostCap
		}
		score = clamp01(score + boost)
	}
	if sig.ExternalRiskScore > externalThreshold {
		score = clamp01(score + sig.ExternalRiskScore*externalFactor)
	}
	return score
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
