package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// Role is the internal role vocabulary shared by both verification modes.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleClient Role = "client"
	RolePublic Role = "public"
)

var (
	ErrUnauthenticated         = errors.New("unauthenticated")
	ErrInsufficientPermissions = errors.New("insufficient permissions")
	ErrAccessDenied            = errors.New("access denied")
)

// Identity is the uniform record produced by either verification strategy.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	Role     Role   `json:"role"`
	ClientID string `json:"client_id,omitempty"`
}

func (id *Identity) IsAdmin() bool {
	return id != nil && id.Role == RoleAdmin
}

type ctxKey struct{}

// WithIdentity attaches an authenticated identity to the request context.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFrom returns the identity attached by the gate middleware, if any.
func IdentityFrom(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(*Identity)
	return id, ok && id != nil
}

// ParseBearer extracts the credential from an Authorization: Bearer header.
func ParseBearer(r *http.Request) (string, bool) {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if authz == "" {
		return "", false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authz, prefix))
	if token == "" {
		return "", false
	}
	return token, true
}
