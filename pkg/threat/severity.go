package threat

import "fmt"

// Severity is the ordered severity level of a finding.
type Severity string

const (
	// SeverityNone indicates no threat content was found.
	SeverityNone Severity = "none"

	// SeverityLow indicates a weak or ambiguous threat indicator.
	// Examples: a single suspicious keyword, a mild format anomaly
	SeverityLow Severity = "low"

	// SeverityMedium indicates a credible threat indicator.
	// Examples: oversized input, domain misinformation markers
	SeverityMedium Severity = "medium"

	// SeverityHigh indicates a strong threat indicator.
	// Examples: jailbreak attempts, data exfiltration requests
	SeverityHigh Severity = "high"

	// SeverityCritical indicates an unambiguous attack.
	// Examples: SQL injection, instruction override payloads
	SeverityCritical Severity = "critical"
)

// severityWeights maps severity levels to score weights in [0,1].
// A single critical finding is enough to saturate the risk score.
var severityWeights = map[Severity]float64{
	SeverityCritical: 1.0,
	SeverityHigh:     0.8,
	SeverityMedium:   0.5,
	SeverityLow:      0.3,
	SeverityNone:     0.0,
}

// severityRank orders severities for comparison. Higher is more severe.
var severityRank = map[Severity]int{
	SeverityNone:     0,
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// IsValid returns true if the severity level is one of the known values.
func (s Severity) IsValid() bool {
	_, ok := severityRank[s]
	return ok
}

// Weight returns the score weight for the severity level.
// Returns 0.0 for unknown severities.
func (s Severity) Weight() float64 {
	return severityWeights[s]
}

// String returns the string representation of the severity.
func (s Severity) String() string { return string(s) }

// ParseSeverity parses a string into a Severity value.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(s)
	if !sev.IsValid() {
		return "", fmt.Errorf("invalid severity: %s", s)
	}
	return sev, nil
}

// CompareSeverity compares two severity levels.
// Returns a negative value if s1 < s2, zero if equal, positive if s1 > s2.
func CompareSeverity(s1, s2 Severity) int {
	return severityRank[s1] - severityRank[s2]
}

// MaxSeverity returns the more severe of the two levels.
func MaxSeverity(s1, s2 Severity) Severity {
	if CompareSeverity(s1, s2) >= 0 {
		return s1
	}
	return s2
}

// AllSeverities returns the severity levels ordered from critical to none.
func AllSeverities() []Severity {
	return []Severity{
		SeverityCritical,
		SeverityHigh,
		SeverityMedium,
		SeverityLow,
		SeverityNone,
	}
}

// Breakpoints maps classifier confidence to a severity level. The source
// model gives no empirical basis for the cut points, so they are data
// rather than invariants; tune per deployment.
type Breakpoints struct {
	Critical float64 // confidence >= Critical -> critical
	High     float64 // confidence >= High -> high
	Medium   float64 // confidence >= Medium -> medium, else low
}

// DefaultBreakpoints returns the stock confidence cut points.
func DefaultBreakpoints() Breakpoints {
	return Breakpoints{Critical: 0.95, High: 0.85, Medium: 0.70}
}

// Severity maps a classifier confidence to a severity level.
func (b Breakpoints) Severity(confidence float64) Severity {
	switch {
	case confidence >= b.Critical:
		return SeverityCritical
	case confidence >= b.High:
		return SeverityHigh
	case confidence >= b.Medium:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
