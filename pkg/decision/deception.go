package decision

import (
	"context"

	"github.com/google/uuid"

	"github.com/caremesh-ai/rampart/pkg/threat"
)

// Deployer plants a decoy artifact for a session under deception. Deploy
// returns an opaque token identifying the deployment; the token is attached
// to the decision so downstream tooling can correlate decoy touches back to
// the session. Deployment is best-effort: a failure degrades the decision
// to a tokenless deceive, it never fails the request.
type Deployer interface {
	Deploy(ctx context.Context, sessionID, userID string, cat threat.Category) (string, error)
}

// TokenDeployer is the in-process reference Deployer: it mints an opaque
// honeytoken id without provisioning any external decoy. Real deployments
// wrap the deception service's client behind the same interface.
type TokenDeployer struct{}

// NewTokenDeployer creates the reference deployer.
func NewTokenDeployer() *TokenDeployer { return &TokenDeployer{} }

// Deploy returns a fresh honeytoken id.
func (d *TokenDeployer) Deploy(ctx context.Context, sessionID, userID string, cat threat.Category) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "htk-" + uuid.NewString(), nil
}
