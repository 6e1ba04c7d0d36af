package pipeline

import (
	"testing"

	"github.com/caremesh-ai/rampart/pkg/threat"
)

func TestScoreEmpty(t *testing.T) {
	if got := Score(nil); got != 0 {
		t.Fatalf("empty finding set must score 0, got %f", got)
	}
}

func TestScoreSeverityFloor(t *testing.T) {
	// A single finding never scores below the weight of its severity, no
	// matter how low its confidence.
	cases := []struct {
		sev  threat.Severity
		conf float64
	}{
		{threat.SeverityCritical, 0.1},
		{threat.SeverityHigh, 0.2},
		{threat.SeverityMedium, 0.3},
		{threat.SeverityLow, 0.1},
	}
	for _, c := range cases {
		got := Score([]threat.Finding{{Severity: c.sev, Confidence: c.conf}})
		if got != c.sev.Weight() {
			t.Errorf("score(%s, %.1f) = %f, want floor %f", c.sev, c.conf, got, c.sev.Weight())
		}
	}
}

func TestScoreNeverBelowMaxSeverityWeight(t *testing.T) {
	findings := []threat.Finding{
		{Severity: threat.SeverityCritical, Confidence: 0.85},
		{Severity: threat.SeverityLow, Confidence: 0.1},
		{Severity: threat.SeverityLow, Confidence: 0.1},
	}
	got := Score(findings)
	if got < threat.SeverityCritical.Weight() {
		t.Fatalf("low-confidence noise dragged score to %f, below the critical floor", got)
	}
}

func TestScoreCorroborationRaisesAboveFloor(t *testing.T) {
	// Several confident medium findings outweigh the single-severity floor.
	findings := []threat.Finding{
		{Severity: threat.SeverityHigh, Confidence: 1.0},
		{Severity: threat.SeverityHigh, Confidence: 1.0},
		{Severity: threat.SeverityMedium, Confidence: 1.0},
	}
	got := Score(findings)
	want := (0.8 + 0.8 + 0.5) / 3.0
	if want < threat.SeverityHigh.Weight() {
		want = threat.SeverityHigh.Weight()
	}
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("score = %f, want %f", got, want)
	}
}

func TestScoreAddingFindingsNeverLowersFloor(t *testing.T) {
	base := []threat.Finding{{Severity: threat.SeverityHigh, Confidence: 0.9}}
	extended := append([]threat.Finding{}, base...)
	extended = append(extended, threat.Finding{Severity: threat.SeverityLow, Confidence: 0.1})

	if Score(extended) < threat.SeverityHigh.Weight() {
		t.Fatalf("adding a weak finding pushed the score below the severity floor")
	}
}

func TestScoreBounded(t *testing.T) {
	findings := []threat.Finding{
		{Severity: threat.SeverityCritical, Confidence: 1.0},
		{Severity: threat.SeverityCritical, Confidence: 1.0},
	}
	got := Score(findings)
	if got < 0 || got > 1 {
		t.Fatalf("score %f outside [0,1]", got)
	}
	if got != 1.0 {
		t.Fatalf("saturated critical findings should score 1.0, got %f", got)
	}
}
