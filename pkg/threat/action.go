package threat

import "fmt"

// Action is the final disposition of one request. Every action is terminal
// for the request that produced it.
type Action string

const (
	// ActionAllow lets the input proceed to the downstream service.
	ActionAllow Action = "allow"
	// ActionBlock refuses the input outright.
	ActionBlock Action = "block"
	// ActionDeceive deploys a decoy artifact and tracks the session
	// instead of blocking immediately.
	ActionDeceive Action = "deceive"
	// ActionMonitor lets the input proceed under heightened observation.
	ActionMonitor Action = "monitor"
	// ActionEscalate hands the session to a human operator.
	ActionEscalate Action = "escalate"
)

// IsValid returns true if the action is one of the known values.
func (a Action) IsValid() bool {
	switch a {
	case ActionAllow, ActionBlock, ActionDeceive, ActionMonitor, ActionEscalate:
		return true
	}
	return false
}

// String returns the string representation of the action.
func (a Action) String() string { return string(a) }

// ParseAction parses a string into an Action value.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.IsValid() {
		return "", fmt.Errorf("invalid action: %s", s)
	}
	return a, nil
}
