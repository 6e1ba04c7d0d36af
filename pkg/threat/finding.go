// Package threat defines the domain types shared by every stage of the
// security decision pipeline: findings, severities, categories, detection
// results and the error taxonomy surfaced to callers.
package threat

// Mode records which detection strategy produced a result set.
type Mode string

const (
	// ModePattern means only the deterministic matchers ran or matched.
	ModePattern Mode = "pattern"
	// ModeClassifier means only the adaptive classifier produced findings.
	ModeClassifier Mode = "classifier"
	// ModeHybrid means classifier output was merged with pattern findings.
	ModeHybrid Mode = "hybrid"
)

// Finding is one detected threat indicator.
//
// Evidence is a short descriptive string (matcher name and description); it
// never carries the raw input, so findings are safe to log.
type Finding struct {
	Category    Category `json:"category"`
	Severity    Severity `json:"severity"`
	Confidence  float64  `json:"confidence"`
	Evidence    string   `json:"evidence"`
	Remediation string   `json:"remediation,omitempty"`
	// Locus is the byte offset of the match within the normalized input,
	// or -1 when no position applies. Offset zero is a real position, so
	// the field is always serialized.
	Locus int `json:"locus"`
}

// DetectionResult is the output of one detection pass over a single input.
type DetectionResult struct {
	Findings  []Finding `json:"findings"`
	RiskScore float64   `json:"risk_score"`
	RiskLevel Severity  `json:"risk_level"`
	Mode      Mode      `json:"mode"`
}

// MaxFindingSeverity returns the highest severity among the findings, or
// SeverityNone for an empty set.
func MaxFindingSeverity(findings []Finding) Severity {
	level := SeverityNone
	for _, f := range findings {
		level = MaxSeverity(level, f.Severity)
	}
	return level
}
