// Package decision converts an adjusted risk score plus session signals
// into an actionable, auditable decision. Each request is a single
// transition: every action is terminal for that request.
package decision

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/caremesh-ai/rampart/pkg/session"
	"github.com/caremesh-ai/rampart/pkg/threat"
)

// Config holds the threshold policy.
type Config struct {
	// HighThreshold blocks outright when the adjusted score reaches it.
	HighThreshold float64
	// MediumThreshold triggers deception (or monitoring) below the block
	// line.
	MediumThreshold float64
	// BadActorFloor is the score above which a known-bad actor is blocked
	// regardless of thresholds.
	BadActorFloor float64
	// EnableDeception selects deceive over monitor for medium-band scores.
	EnableDeception bool
	// EscalateAfterBlocks upgrades a block to escalate once the session
	// has accumulated this many prior threats. Zero disables escalation.
	EscalateAfterBlocks int64
}

// DefaultConfig returns the stock threshold policy.
func DefaultConfig() Config {
	return Config{
		HighThreshold:       0.90,
		MediumThreshold:     0.70,
		BadActorFloor:       0.3,
		EnableDeception:     true,
		EscalateAfterBlocks: 3,
	}
}

// Input is everything the engine needs for one transition.
type Input struct {
	SessionID     string
	UserID        string
	AdjustedScore float64
	KnownBadActor bool
	Detection     threat.DetectionResult
	// PriorThreatCount is the session's threat counter before this
	// request, used for the escalation upgrade.
	PriorThreatCount int64
}

// Decision is the final output returned to the caller.
type Decision struct {
	Action          threat.Action `json:"action"`
	Confidence      float64       `json:"confidence"`
	Reasoning       string        `json:"reasoning"`
	Recommendations []string      `json:"recommendations"`
	DeceptionToken  string        `json:"deception_token,omitempty"`
}

// Engine applies the threshold policy and triggers side effects.
type Engine struct {
	cfg      Config
	store    session.Store
	deployer Deployer
	audit    AuditSink
}

// NewEngine wires the engine to its collaborators. A nil deployer disables
// deception regardless of configuration; a nil audit sink is replaced by a
// no-op.
func NewEngine(cfg Config, store session.Store, deployer Deployer, audit AuditSink) *Engine {
	if audit == nil {
		audit = NopSink{}
	}
	return &Engine{cfg: cfg, store: store, deployer: deployer, audit: audit}
}

// Decide evaluates the transition policy in order:
//
//  1. adjusted score >= high threshold -> block (upgraded to escalate for
//     sessions past the escalation line)
//  2. adjusted score >= medium threshold -> deceive if enabled, else monitor
//  3. known-bad actor with score above the floor -> block
//  4. allow, with a false-positive-review advisory above the floor
//
// Every decided request records a session outcome, so the request counter
// tracks volume across all actions; blocks (and escalations) additionally
// count as threats. Deceptions deploy a honeytoken, best-effort.
func (e *Engine) Decide(ctx context.Context, in Input) Decision {
	dominant := dominantCategory(in.Detection.Findings)
	score := in.AdjustedScore

	var d Decision
	switch {
	case score >= e.cfg.HighThreshold:
		d = Decision{
			Action:     threat.ActionBlock,
			Confidence: score,
			Reasoning: fmt.Sprintf("adjusted score %.2f at or above high threshold %.2f; dominant category %s",
				score, e.cfg.HighThreshold, dominant),
			Recommendations: []string{
				"review session " + in.SessionID + " for related requests",
				"submit for false-positive reconciliation if the block is overturned",
			},
		}
		if e.cfg.EscalateAfterBlocks > 0 && in.PriorThreatCount >= e.cfg.EscalateAfterBlocks {
			d.Action = threat.ActionEscalate
			d.Reasoning += fmt.Sprintf("; session has %d prior threats, escalating to an operator", in.PriorThreatCount)
			d.Recommendations = append([]string{"page the on-call security operator"}, d.Recommendations...)
		}

	case score >= e.cfg.MediumThreshold:
		if e.cfg.EnableDeception && e.deployer != nil {
			d = Decision{
				Action:     threat.ActionDeceive,
				Confidence: score,
				Reasoning: fmt.Sprintf("adjusted score %.2f at or above medium threshold %.2f; dominant category %s; deploying deception",
					score, e.cfg.MediumThreshold, dominant),
				Recommendations: []string{"watch for honeytoken access from this session"},
			}
			token, err := e.deployer.Deploy(ctx, in.SessionID, in.UserID, dominant)
			if err != nil {
				// Degraded mode: the decision stands without a token.
				depErr := &threat.DeploymentError{SessionID: in.SessionID, Err: err}
				log.Printf("[decision] %v", depErr)
				e.audit.Submit(AuditEvent{
					Timestamp: time.Now().UTC(),
					Category:  "deployment-failure",
					SessionID: in.SessionID,
					Severity:  in.Detection.RiskLevel,
					Metadata:  map[string]interface{}{"error": err.Error()},
				})
			} else {
				d.DeceptionToken = token
			}
		} else {
			d = Decision{
				Action:     threat.ActionMonitor,
				Confidence: score,
				Reasoning: fmt.Sprintf("adjusted score %.2f at or above medium threshold %.2f; dominant category %s; deception disabled",
					score, e.cfg.MediumThreshold, dominant),
				Recommendations: []string{"observe subsequent requests from session " + in.SessionID},
			}
		}

	case in.KnownBadActor && score > e.cfg.BadActorFloor:
		d = Decision{
			Action:     threat.ActionBlock,
			Confidence: score,
			Reasoning: fmt.Sprintf("known-bad actor with adjusted score %.2f above sensitivity floor %.2f; dominant category %s",
				score, e.cfg.BadActorFloor, dominant),
			Recommendations: []string{"review the actor designation for session " + in.SessionID},
		}

	default:
		d = Decision{
			Action:     threat.ActionAllow,
			Confidence: score,
			Reasoning:  fmt.Sprintf("adjusted score %.2f below all thresholds; dominant category %s", score, dominant),
		}
		if score > e.cfg.BadActorFloor {
			d.Recommendations = []string{"log for false-positive review"}
		}
	}

	// Escalations still count as blocks in the session ledger.
	outcome := d.Action
	if outcome == threat.ActionEscalate {
		outcome = threat.ActionBlock
	}
	e.recordOutcome(ctx, in.SessionID, outcome)

	if d.Action != threat.ActionAllow {
		e.auditDecision(in, d)
	}
	return d
}

func (e *Engine) recordOutcome(ctx context.Context, sessionID string, action threat.Action) {
	if e.store == nil {
		return
	}
	if err := e.store.RecordOutcome(ctx, sessionID, action); err != nil {
		log.Printf("[decision] record outcome for %s: %v", sessionID, err)
	}
}

func (e *Engine) auditDecision(in Input, d Decision) {
	e.audit.Submit(AuditEvent{
		Timestamp: time.Now().UTC(),
		Category:  dominantCategory(in.Detection.Findings).String(),
		SessionID: in.SessionID,
		Severity:  in.Detection.RiskLevel,
		Metadata: map[string]interface{}{
			"action":     d.Action.String(),
			"confidence": d.Confidence,
			"mode":       string(in.Detection.Mode),
			"findings":   len(in.Detection.Findings),
		},
	})
}

// dominantCategory returns the category of the most severe finding, first
// wins on ties. Returns an empty category for an empty set.
func dominantCategory(findings []threat.Finding) threat.Category {
	var dominant threat.Category
	level := threat.SeverityNone
	for _, f := range findings {
		if threat.CompareSeverity(f.Severity, level) > 0 {
			level = f.Severity
			dominant = f.Category
		}
	}
	if dominant == "" {
		return "none"
	}
	return dominant
}
