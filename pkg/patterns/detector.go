package patterns

import (
	"fmt"
	"strings"

	"github.com/caremesh-ai/rampart/pkg/normalize"
	"github.com/caremesh-ai/rampart/pkg/threat"
)

// Detector runs the matcher catalog over untrusted text. It is a pure
// function of the input and the registry: no side effects, no I/O, safe
// for concurrent use.
type Detector struct {
	registry *Registry
	maxLen   int
}

// contentCategories is the fixed scan order for regex-backed categories.
// Length and format violations are evaluated structurally, not by regex.
var contentCategories = []threat.Category{
	threat.CategoryPromptOverride,
	threat.CategoryInjectionSQL,
	threat.CategoryInjectionScript,
	threat.CategoryInjectionCommand,
	threat.CategoryDataExfiltration,
	threat.CategoryJailbreak,
	threat.CategoryDomainMisinformation,
}

// NewDetector creates a detector over the given registry. maxLen is the
// input length ceiling; values <= 0 disable the length check.
func NewDetector(registry *Registry, maxLen int) *Detector {
	return &Detector{registry: registry, maxLen: maxLen}
}

// Detect scans text and returns zero or more findings.
//
// The length check runs first and independently: an oversized input gets a
// length-violation finding in addition to any content matches. Each content
// category emits at most one finding (first matching rule wins) and the
// scan continues with the next category. Matching happens on the folded
// form of the input, so case and whitespace variations do not matter.
func (d *Detector) Detect(text string) []threat.Finding {
	var findings []threat.Finding

	if d.maxLen > 0 && len(text) > d.maxLen {
		findings = append(findings, threat.Finding{
			Category:    threat.CategoryLengthViolation,
			Severity:    threat.CategoryLengthViolation.BaseSeverity(),
			Confidence:  1.0,
			Evidence:    fmt.Sprintf("input length %d exceeds maximum %d", len(text), d.maxLen),
			Remediation: "Truncate or split the input before resubmitting",
			Locus:       d.maxLen,
		})
	}

	folded := normalize.Fold(text)
	for _, cat := range contentCategories {
		rule, offset := d.registry.FirstMatch(folded, cat)
		if rule == nil {
			continue
		}
		findings = append(findings, threat.Finding{
			Category:    cat,
			Severity:    cat.BaseSeverity(),
			Confidence:  rule.Confidence,
			Evidence:    rule.Name + ": " + rule.Description,
			Remediation: rule.Remediation,
			Locus:       offset,
		})
	}

	if f, ok := d.formatFinding(text); ok {
		findings = append(findings, f)
	}

	return findings
}

// formatFinding evaluates the structural format checks that regexes cannot
// express cleanly: control bytes, encoding residue, unbalanced code fences.
func (d *Detector) formatFinding(text string) (threat.Finding, bool) {
	cat := threat.CategoryFormatViolation

	switch {
	case normalize.HasControlBytes(text):
		return threat.Finding{
			Category:    cat,
			Severity:    cat.BaseSeverity(),
			Confidence:  1.0,
			Evidence:    "control_bytes: non-whitespace control characters in input",
			Remediation: "Strip control characters and resubmit",
			Locus:       -1,
		}, true
	case normalize.HasReplacementRune(text):
		return threat.Finding{
			Category:    cat,
			Severity:    cat.BaseSeverity(),
			Confidence:  0.9,
			Evidence:    "replacement_rune: U+FFFD residue from a mangled encoding",
			Remediation: "Re-encode the input as valid UTF-8",
			Locus:       -1,
		}, true
	case strings.Count(text, "```")%2 == 1:
		return threat.Finding{
			Category:    cat,
			Severity:    cat.BaseSeverity(),
			Confidence:  0.6,
			Evidence:    "unbalanced_fence: odd number of code fence markers",
			Remediation: "Close or remove the dangling code fence",
			Locus:       -1,
		}, true
	}
	return threat.Finding{}, false
}
