package httpapi

import (
	"net/http"
	"strings"

	"github.com/ndimarco/aria/internal/auth"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_payload", "username and password are required")
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "invalid_payload", "username and password are required")
		return
	}
	if s.local == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "password login is handled by the identity provider")
		return
	}

	token, id, err := s.local.Login(req.Username, req.Password)
	if err != nil {
		s.metrics.AuthDecisions.WithLabelValues("denied").Inc()
		respondError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}
	s.metrics.AuthDecisions.WithLabelValues("allowed").Inc()
	s.logger.Info().Str("username", id.Username).Str("role", string(id.Role)).Msg("user logged in")

	respondSuccess(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  id,
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFrom(r.Context())
	respondSuccess(w, http.StatusOK, map[string]any{"user": id})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFrom(r.Context())
	if s.local == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "token refresh is handled by the identity provider")
		return
	}
	token, err := s.local.IssueToken(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to refresh token")
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{"token": token})
}

// handleVerify confirms the presented credential is currently valid. Clients
// poll it to decide whether a stored token still works before reconnecting.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFrom(r.Context())
	respondSuccess(w, http.StatusOK, map[string]any{
		"valid": true,
		"user":  id,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	// Tokens are stateless; logout exists so clients have a uniform endpoint
	// to call in both verification modes.
	id, _ := auth.IdentityFrom(r.Context())
	s.logger.Info().Str("username", id.Username).Msg("user logged out")
	respondSuccess(w, http.StatusOK, map[string]any{"message": "logged out"})
}

func (s *Server) handleListUsers(w http.ResponseWriter, _ *http.Request) {
	if s.local == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "user listing is handled by the identity provider")
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{"users": s.local.Users()})
}
