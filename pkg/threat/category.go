package threat

import "fmt"

// Category identifies the kind of threat content a finding reports.
type Category string

const (
	// CategoryPromptOverride covers attempts to replace or cancel the
	// standing instructions of the downstream model.
	CategoryPromptOverride Category = "prompt-override"

	// CategoryInjectionSQL covers SQL injection payloads.
	CategoryInjectionSQL Category = "injection-sql"

	// CategoryInjectionScript covers script/HTML injection payloads.
	CategoryInjectionScript Category = "injection-script"

	// CategoryInjectionCommand covers shell command injection payloads.
	CategoryInjectionCommand Category = "injection-command"

	// CategoryDataExfiltration covers requests to export, dump or transmit
	// protected records to an external destination.
	CategoryDataExfiltration Category = "data-exfiltration"

	// CategoryJailbreak covers roleplay and persona attacks that try to
	// strip the downstream model of its safety behavior.
	CategoryJailbreak Category = "jailbreak"

	// CategoryDomainMisinformation covers content pushing fabricated
	// clinical claims into the processing path.
	CategoryDomainMisinformation Category = "domain-misinformation"

	// CategoryLengthViolation is emitted when input exceeds the configured
	// maximum length.
	CategoryLengthViolation Category = "length-violation"

	// CategoryFormatViolation covers structurally malformed input such as
	// control bytes or mangled encodings.
	CategoryFormatViolation Category = "format-violation"
)

// baseSeverity is the fixed category -> severity mapping for findings
// produced by deterministic matchers. Classifier-derived findings take
// their severity from confidence breakpoints instead.
var baseSeverity = map[Category]Severity{
	CategoryPromptOverride:       SeverityHigh,
	CategoryInjectionSQL:         SeverityCritical,
	CategoryInjectionScript:      SeverityCritical,
	CategoryInjectionCommand:     SeverityCritical,
	CategoryDataExfiltration:     SeverityHigh,
	CategoryJailbreak:            SeverityHigh,
	CategoryDomainMisinformation: SeverityMedium,
	CategoryLengthViolation:      SeverityMedium,
	CategoryFormatViolation:      SeverityLow,
}

// IsValid returns true if the category is one of the known values.
func (c Category) IsValid() bool {
	_, ok := baseSeverity[c]
	return ok
}

// BaseSeverity returns the fixed severity for pattern findings in this
// category. Returns SeverityNone for unknown categories.
func (c Category) BaseSeverity() Severity {
	if s, ok := baseSeverity[c]; ok {
		return s
	}
	return SeverityNone
}

// String returns the string representation of the category.
func (c Category) String() string { return string(c) }

// ParseCategory parses a string into a Category value.
func ParseCategory(s string) (Category, error) {
	cat := Category(s)
	if !cat.IsValid() {
		return "", fmt.Errorf("invalid category: %s", s)
	}
	return cat, nil
}

// AllCategories returns the known categories in detection order.
func AllCategories() []Category {
	return []Category{
		CategoryPromptOverride,
		CategoryInjectionSQL,
		CategoryInjectionScript,
		CategoryInjectionCommand,
		CategoryDataExfiltration,
		CategoryJailbreak,
		CategoryDomainMisinformation,
		CategoryLengthViolation,
		CategoryFormatViolation,
	}
}
