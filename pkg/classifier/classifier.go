// Package classifier defines the pluggable threat classifier contract and
// its backends. The pipeline treats every classifier as optional: an
// untrained instance is a valid value, and callers gate invocation on
// IsTrained rather than on construction errors.
package classifier

import (
	"context"

	"github.com/caremesh-ai/rampart/pkg/threat"
)

// Result is the output of one classification call.
type Result struct {
	// IsThreat is true when the model labels the input as an attack.
	IsThreat bool `json:"is_threat"`

	// Confidence is the model's confidence in the label (0.0-1.0).
	Confidence float64 `json:"confidence"`

	// Category is the threat category the label maps to. Only meaningful
	// when IsThreat is true.
	Category threat.Category `json:"category"`

	// Mode identifies the backend that produced the result.
	Mode string `json:"mode"`
}

// Classifier is the capability interface for probabilistic threat
// classification. Classify returns threat.ErrClassifierUnavailable (possibly
// wrapped) when no trained model can serve the call; it never returns a
// partial result alongside an error.
type Classifier interface {
	Classify(ctx context.Context, text string) (Result, error)

	// IsTrained reports whether the backend has a usable model loaded.
	// Orchestrators branch on this instead of probing with failing calls.
	IsTrained() bool

	Close() error
}
