package threat

import (
	"errors"
	"fmt"
)

// ErrClassifierUnavailable reports that the adaptive classifier could not
// serve a call (no trained model, timeout, or internal failure). It is
// recovered inside the pipeline by falling back to pattern-only detection
// and is never surfaced to callers as a request failure.
var ErrClassifierUnavailable = errors.New("classifier unavailable")

// ValidationError reports a malformed call: missing or empty text, a bad
// session context, or an unsupported option value. Always surfaced
// synchronously; never silently defaulted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s: %s", e.Field, e.Reason)
}

// SecurityRejected is returned in strict mode when the detection pass
// reports high or critical risk. It carries the full finding set so an
// upstream component can distinguish a security rejection from an internal
// error and explain the refusal.
type SecurityRejected struct {
	RiskLevel Severity
	RiskScore float64
	Findings  []Finding
}

func (e *SecurityRejected) Error() string {
	return fmt.Sprintf("input rejected: risk level %s (score %.2f, %d findings)",
		e.RiskLevel, e.RiskScore, len(e.Findings))
}

// DeploymentError reports a failed deception deployment. The decision that
// triggered the deployment is still returned (without a token); the error
// is logged as a degraded-mode event.
type DeploymentError struct {
	SessionID string
	Err       error
}

func (e *DeploymentError) Error() string {
	return fmt.Sprintf("deception deployment failed for session %s: %v", e.SessionID, e.Err)
}

func (e *DeploymentError) Unwrap() error { return e.Err }
