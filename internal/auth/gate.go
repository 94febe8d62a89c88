package auth

import (
	"context"

	"github.com/rs/zerolog"
)

// Verifier validates a bearer credential and produces an identity. Exactly one
// implementation is active per deployment, chosen once at startup.
type Verifier interface {
	Verify(ctx context.Context, credential string) (*Identity, error)
}

// Gate performs authentication and authorization decisions. It holds no
// mutable state beyond the configuration captured at construction.
type Gate struct {
	verifier Verifier
	mode     string
	logger   zerolog.Logger
}

// NewGate builds the gate around the local-secret verifier, switching to
// federated verification only when both identity-provider settings are
// present. Callers never observe which mode is active.
func NewGate(local *LocalVerifier, idpURL, idpServiceKey string, logger zerolog.Logger) *Gate {
	g := &Gate{verifier: local, mode: "local", logger: logger}
	if idpURL != "" && idpServiceKey != "" {
		g.verifier = NewFederatedVerifier(idpURL, idpServiceKey)
		g.mode = "federated"
	}
	logger.Info().Str("mode", g.mode).Msg("access gate initialized")
	return g
}

// Mode reports the active verification strategy, for diagnostics only.
func (g *Gate) Mode() string {
	return g.mode
}

// Authenticate verifies a credential and returns the identity it carries.
func (g *Gate) Authenticate(ctx context.Context, credential string) (*Identity, error) {
	if credential == "" {
		return nil, ErrUnauthenticated
	}
	id, err := g.verifier.Verify(ctx, credential)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	return id, nil
}

// OptionalAuthenticate returns a best-effort identity. It never fails: an
// absent or invalid credential yields nil.
func (g *Gate) OptionalAuthenticate(ctx context.Context, credential string) *Identity {
	if credential == "" {
		return nil
	}
	id, err := g.verifier.Verify(ctx, credential)
	if err != nil {
		return nil
	}
	return id
}

// Authorize checks the identity's role against the allowed set.
func (g *Gate) Authorize(id *Identity, allowed ...Role) error {
	if id == nil {
		return ErrUnauthenticated
	}
	for _, role := range allowed {
		if id.Role == role {
			return nil
		}
	}
	return ErrInsufficientPermissions
}

// AuthorizeOwnResource passes admins unconditionally; other identities must
// match the resource owner. An empty ownerID marks an unowned resource, open
// to any authenticated or anonymous caller.
func (g *Gate) AuthorizeOwnResource(id *Identity, ownerID string) error {
	if ownerID == "" {
		return nil
	}
	if id == nil {
		return ErrAccessDenied
	}
	if id.IsAdmin() {
		return nil
	}
	if id.ID == ownerID {
		return nil
	}
	return ErrAccessDenied
}

// AuthorizeClientResource is the client-scoped variant: admins pass, clients
// pass only for their own clientID.
func (g *Gate) AuthorizeClientResource(id *Identity, clientID string) error {
	if id == nil {
		return ErrUnauthenticated
	}
	if id.IsAdmin() {
		return nil
	}
	if id.Role == RoleClient && id.ClientID == clientID {
		return nil
	}
	return ErrAccessDenied
}
