// Package patterns implements the deterministic matcher catalog for the
// decision pipeline. All regexes are compiled once at registry construction
// and shared across requests.
//
// Design principles:
//   - COMPILE ONCE: all rules compiled at construction, not per-request
//   - CATEGORIZED: rules organized by threat category for first-match scans
//   - NORMALIZED INPUT: rules match the folded form (lowercase, collapsed
//     whitespace), so expressions use single spaces and lowercase tokens
package patterns

import (
	"regexp"

	"github.com/caremesh-ai/rampart/pkg/threat"
)

// Rule holds a compiled regex with metadata.
type Rule struct {
	Name        string          // Human-readable name for evidence strings
	Regex       *regexp.Regexp  // Compiled regex (never nil after construction)
	Category    threat.Category // Threat category
	Confidence  float64         // Confidence assigned to a match (0.0-1.0)
	Description string          // What this rule detects
	Remediation string          // Suggested operator response
}

// Registry holds all compiled rules, organized by category. Immutable after
// construction, safe for concurrent readers.
type Registry struct {
	byCategory map[threat.Category][]*Rule
	total      int
}

// NewRegistry creates and populates the rule registry.
func NewRegistry() *Registry {
	r := &Registry{
		byCategory: make(map[threat.Category][]*Rule),
	}

	r.registerPromptOverrideRules()
	r.registerSQLInjectionRules()
	r.registerScriptInjectionRules()
	r.registerCommandInjectionRules()
	r.registerExfiltrationRules()
	r.registerJailbreakRules()
	r.registerMisinformationRules()

	return r
}

// register adds a rule to the registry (construction only).
func (r *Registry) register(name, expr string, cat threat.Category, confidence float64, description, remediation string) {
	rule := &Rule{
		Name:        name,
		Regex:       regexp.MustCompile(expr),
		Category:    cat,
		Confidence:  confidence,
		Description: description,
		Remediation: remediation,
	}
	r.byCategory[cat] = append(r.byCategory[cat], rule)
	r.total++
}

// FirstMatch returns the first rule in the category that matches text,
// along with the byte offset of the match, or (nil, -1) if none match.
// Rules are evaluated in registration order.
func (r *Registry) FirstMatch(text string, cat threat.Category) (*Rule, int) {
	for _, rule := range r.byCategory[cat] {
		if loc := rule.Regex.FindStringIndex(text); loc != nil {
			return rule, loc[0]
		}
	}
	return nil, -1
}

// RulesByCategory returns the rules for a category.
// Returns an empty slice if the category has none (never nil).
func (r *Registry) RulesByCategory(cat threat.Category) []*Rule {
	if rules, ok := r.byCategory[cat]; ok {
		return rules
	}
	return []*Rule{}
}

// TotalRules returns the total count of registered rules.
func (r *Registry) TotalRules() int { return r.total }

// CategoryCount returns the number of rules in a category.
func (r *Registry) CategoryCount(cat threat.Category) int {
	return len(r.byCategory[cat])
}
