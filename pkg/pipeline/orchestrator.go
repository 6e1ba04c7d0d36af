package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/caremesh-ai/rampart/pkg/classifier"
	"github.com/caremesh-ai/rampart/pkg/patterns"
	"github.com/caremesh-ai/rampart/pkg/threat"
)

// highConfidenceFloor: a classifier verdict above this confidence is never
// diluted by averaging with weaker pattern findings.
const highConfidenceFloor = 0.9

// Orchestrator merges deterministic pattern detection with the optional
// adaptive classifier into one detection result per input.
type Orchestrator struct {
	detector          *patterns.Detector
	classifier        classifier.Classifier
	enableClassifier  bool
	classifierTimeout time.Duration
	breakpoints       threat.Breakpoints
}

// NewOrchestrator wires the orchestrator. cls may be nil (pattern-only
// deployment); timeout <= 0 defaults to 300ms.
func NewOrchestrator(det *patterns.Detector, cls classifier.Classifier, enable bool, timeout time.Duration, bps threat.Breakpoints) *Orchestrator {
	if timeout <= 0 {
		timeout = 300 * time.Millisecond
	}
	return &Orchestrator{
		detector:          det,
		classifier:        cls,
		enableClassifier:  enable,
		classifierTimeout: timeout,
		breakpoints:       bps,
	}
}

// Run executes one detection pass. The pattern detector always runs; the
// classifier runs only when enabled (or per-call overridden) and trained,
// under a bounded timeout. Classifier unavailability is recovered by
// falling back to pattern-only detection for this call; it never fails the
// pass.
func (o *Orchestrator) Run(ctx context.Context, text string, overrideUseClassifier *bool) threat.DetectionResult {
	patternFindings := o.detector.Detect(text)

	useClassifier := o.enableClassifier
	if overrideUseClassifier != nil {
		useClassifier = *overrideUseClassifier
	}

	if useClassifier && o.classifier != nil && o.classifier.IsTrained() {
		res, err := o.classify(ctx, text)
		if err == nil && res.IsThreat {
			return o.merge(patternFindings, res)
		}
		if err != nil && !errors.Is(err, threat.ErrClassifierUnavailable) {
			log.Printf("[pipeline] classifier error treated as unavailable: %v", err)
		}
	}

	findings := patternFindings
	return threat.DetectionResult{
		Findings:  findings,
		RiskScore: Score(findings),
		RiskLevel: threat.MaxFindingSeverity(findings),
		Mode:      threat.ModePattern,
	}
}

func (o *Orchestrator) classify(ctx context.Context, text string) (classifier.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, o.classifierTimeout)
	defer cancel()
	return o.classifier.Classify(ctx, text)
}

// merge builds the result set from a positive classifier verdict plus the
// pattern findings whose categories the classifier does not already cover.
// The classifier takes precedence for its own category; its severity comes
// from the confidence breakpoints rather than the fixed category mapping.
func (o *Orchestrator) merge(patternFindings []threat.Finding, res classifier.Result) threat.DetectionResult {
	merged := []threat.Finding{{
		Category:    res.Category,
		Severity:    o.breakpoints.Severity(res.Confidence),
		Confidence:  res.Confidence,
		Evidence:    fmt.Sprintf("classifier %s verdict (confidence %.2f)", res.Mode, res.Confidence),
		Remediation: "Block the request and review the session",
		Locus:       -1,
	}}
	for _, f := range patternFindings {
		if f.Category != res.Category {
			merged = append(merged, f)
		}
	}

	mode := threat.ModeClassifier
	if len(patternFindings) > 0 {
		mode = threat.ModeHybrid
	}

	score := Score(merged)
	if res.Confidence > highConfidenceFloor && res.Confidence > score {
		score = res.Confidence
	}

	return threat.DetectionResult{
		Findings:  merged,
		RiskScore: score,
		RiskLevel: threat.MaxFindingSeverity(merged),
		Mode:      mode,
	}
}
