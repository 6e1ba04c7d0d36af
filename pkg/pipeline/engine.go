// Package pipeline assembles the security decision pipeline: pattern
// detection, optional adaptive classification, scoring, session-aware
// adjustment and the final decision, behind one Evaluate call.
package pipeline

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/caremesh-ai/rampart/pkg/decision"
	"github.com/caremesh-ai/rampart/pkg/metrics"
	"github.com/caremesh-ai/rampart/pkg/session"
	"github.com/caremesh-ai/rampart/pkg/threat"
)

// SessionContext identifies the caller's session and carries its ambient
// risk signals.
type SessionContext struct {
	SessionID         string  `json:"session_id"`
	UserID            string  `json:"user_id,omitempty"`
	SourceIP          string  `json:"source_ip,omitempty"`
	KnownBadActor     bool    `json:"known_bad_actor,omitempty"`
	ExternalRiskScore float64 `json:"external_risk_score,omitempty"`
}

// Request is one inbound evaluation call.
type Request struct {
	Text    string         `json:"text"`
	Session SessionContext `json:"session_context"`
	// ClassifierOverride forces the classifier on or off for this call,
	// overriding configuration. Nil means use the configured default.
	ClassifierOverride *bool `json:"classifier_override,omitempty"`
}

// Diagnostic is the flattened view of a detection pass, suitable for
// logging alongside the decision.
type Diagnostic struct {
	IsSafe        bool             `json:"is_safe"`
	RiskLevel     threat.Severity  `json:"risk_level"`
	RiskScore     float64          `json:"risk_score"`
	Findings      []threat.Finding `json:"findings"`
	DetectionMode threat.Mode      `json:"detection_mode"`
	InputLength   int              `json:"input_length"`
}

// Outcome bundles the decision with its diagnostic view.
type Outcome struct {
	Decision   decision.Decision `json:"decision"`
	Diagnostic Diagnostic        `json:"diagnostic"`
}

// Options configures the engine.
type Options struct {
	// SafetyThreshold is the advisory line for the diagnostic IsSafe
	// flag. It sits below the block threshold: an input can be unsafe yet
	// still allowed.
	SafetyThreshold float64

	// StrictMode converts high/critical detection passes into a
	// SecurityRejected error instead of a normal outcome.
	StrictMode bool
}

// Engine is the top-level pipeline.
type Engine struct {
	orchestrator *Orchestrator
	store        session.Store
	decider      *decision.Engine
	registry     *metrics.Registry
	opts         Options
}

// NewEngine assembles the pipeline from its stages. registry may be nil to
// disable metrics.
func NewEngine(orc *Orchestrator, store session.Store, decider *decision.Engine, registry *metrics.Registry, opts Options) *Engine {
	return &Engine{
		orchestrator: orc,
		store:        store,
		decider:      decider,
		registry:     registry,
		opts:         opts,
	}
}

// Evaluate runs one request through the full pipeline.
//
// Returns a ValidationError for malformed calls and, in strict mode, a
// SecurityRejected error when the detection pass reports high or critical
// risk. Classifier failures never surface here; they degrade the pass to
// pattern-only detection.
func (e *Engine) Evaluate(ctx context.Context, req Request) (*Outcome, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	start := time.Now()
	det := e.orchestrator.Run(ctx, req.Text, req.ClassifierOverride)

	// Snapshot counters before this request's outcome lands, so the
	// escalation check sees prior threats only.
	prior, err := e.store.State(ctx, req.Session.SessionID)
	if err != nil {
		log.Printf("[pipeline] session state for %s unavailable: %v", req.Session.SessionID, err)
	}

	adjusted, err := e.store.Adjust(ctx, req.Session.SessionID, det.RiskScore, session.Signals{
		KnownBadActor:     req.Session.KnownBadActor,
		ExternalRiskScore: req.Session.ExternalRiskScore,
	})
	if err != nil {
		log.Printf("[pipeline] session adjustment for %s unavailable, using raw score: %v", req.Session.SessionID, err)
		adjusted = det.RiskScore
	}

	d := e.decider.Decide(ctx, decision.Input{
		SessionID:        req.Session.SessionID,
		UserID:           req.Session.UserID,
		AdjustedScore:    adjusted,
		KnownBadActor:    req.Session.KnownBadActor,
		Detection:        det,
		PriorThreatCount: prior.PriorThreatCount,
	})

	if e.registry != nil {
		e.registry.Record(d.Action, time.Since(start))
	}

	if e.opts.StrictMode && threat.CompareSeverity(det.RiskLevel, threat.SeverityHigh) >= 0 {
		return nil, &threat.SecurityRejected{
			RiskLevel: det.RiskLevel,
			RiskScore: det.RiskScore,
			Findings:  det.Findings,
		}
	}

	return &Outcome{
		Decision: d,
		Diagnostic: Diagnostic{
			IsSafe:        det.RiskScore < e.opts.SafetyThreshold,
			RiskLevel:     det.RiskLevel,
			RiskScore:     det.RiskScore,
			Findings:      det.Findings,
			DetectionMode: det.Mode,
			InputLength:   len(req.Text),
		},
	}, nil
}

// ReconcileFalsePositive reverses one prior block for the session; used
// when a human reviewer overturns a decision.
func (e *Engine) ReconcileFalsePositive(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return &threat.ValidationError{Field: "session_id", Reason: "must not be empty"}
	}
	return e.store.ReconcileFalsePositive(ctx, sessionID)
}

// Metrics returns the current metrics snapshot, or a zero snapshot when
// metrics are disabled.
func (e *Engine) Metrics() metrics.Snapshot {
	if e.registry == nil {
		return metrics.Snapshot{}
	}
	return e.registry.Snapshot()
}

func validate(req Request) error {
	if strings.TrimSpace(req.Text) == "" {
		return &threat.ValidationError{Field: "text", Reason: "must not be empty"}
	}
	if req.Session.SessionID == "" {
		return &threat.ValidationError{Field: "session_context.session_id", Reason: "must not be empty"}
	}
	if req.Session.ExternalRiskScore < 0 || req.Session.ExternalRiskScore > 1 {
		return &threat.ValidationError{Field: "session_context.external_risk_score", Reason: "must be in [0,1]"}
	}
	return nil
}
