package auth

import (
	"net/http"
)

// ErrorWriter renders a gate failure as an HTTP response. The httpapi package
// supplies one so all error envelopes share a single shape.
type ErrorWriter func(w http.ResponseWriter, status int, code, message string)

// Require authenticates every request and rejects those without a valid
// credential.
func (g *Gate) Require(writeErr ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cred, _ := ParseBearer(r)
			id, err := g.Authenticate(r.Context(), cred)
			if err != nil {
				writeErr(w, http.StatusUnauthorized, "unauthenticated", "missing or invalid credential")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireRoles authenticates and additionally checks the role.
func (g *Gate) RequireRoles(writeErr ErrorWriter, allowed ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cred, _ := ParseBearer(r)
			id, err := g.Authenticate(r.Context(), cred)
			if err != nil {
				writeErr(w, http.StatusUnauthorized, "unauthenticated", "missing or invalid credential")
				return
			}
			if err := g.Authorize(id, allowed...); err != nil {
				writeErr(w, http.StatusForbidden, "insufficient_permissions", "role not permitted for this resource")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// Optional attaches an identity when a valid credential is present and lets
// the request through either way.
func (g *Gate) Optional() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cred, ok := ParseBearer(r); ok {
				if id := g.OptionalAuthenticate(r.Context(), cred); id != nil {
					r = r.WithContext(WithIdentity(r.Context(), id))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
