package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ndimarco/aria/internal/agent"
	"github.com/ndimarco/aria/internal/auth"
	"github.com/ndimarco/aria/internal/chat"
	"github.com/ndimarco/aria/internal/config"
	"github.com/ndimarco/aria/internal/deploy"
	"github.com/ndimarco/aria/internal/observability"
	"github.com/ndimarco/aria/internal/relay"
	"github.com/ndimarco/aria/internal/session"
)

// Deps carries the collaborators the HTTP surface exposes.
type Deps struct {
	Gate        *auth.Gate
	Local       *auth.LocalVerifier
	Agents      *agent.Store
	Sessions    *session.Manager
	Hub         *relay.Hub
	Deployments *deploy.Store
	ChatStore   chat.Store
	Responder   chat.Responder
	Metrics     *observability.Metrics
	Stages      *observability.StageWindow
	Logger      zerolog.Logger
}

type Server struct {
	cfg         config.Config
	gate        *auth.Gate
	local       *auth.LocalVerifier
	agents      *agent.Store
	sessions    *session.Manager
	hub         *relay.Hub
	deployments *deploy.Store
	chatStore   chat.Store
	responder   chat.Responder
	metrics     *observability.Metrics
	stages      *observability.StageWindow
	logger      zerolog.Logger
	upgrader    websocket.Upgrader
	started     time.Time
	wsConns     atomic.Int64
}

func New(cfg config.Config, deps Deps) *Server {
	return &Server{
		cfg:         cfg,
		gate:        deps.Gate,
		local:       deps.Local,
		agents:      deps.Agents,
		sessions:    deps.Sessions,
		hub:         deps.Hub,
		deployments: deps.Deployments,
		chatStore:   deps.ChatStore,
		responder:   deps.Responder,
		metrics:     deps.Metrics,
		stages:      deps.Stages,
		logger:      deps.Logger.With().Str("component", "httpapi").Logger(),
		started:     time.Now().UTC(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Default: only allow browser websocket connections from the
				// same origin, so other sites cannot drive a user's signaling
				// channel if the relay is ever exposed beyond localhost.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/status", s.handleStatus)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.With(s.gate.Require(respondError)).Get("/me", s.handleMe)
		r.With(s.gate.Require(respondError)).Get("/verify", s.handleVerify)
		r.With(s.gate.Require(respondError)).Post("/refresh", s.handleRefresh)
		r.With(s.gate.Require(respondError)).Post("/logout", s.handleLogout)
		r.With(s.gate.RequireRoles(respondError, auth.RoleAdmin)).Get("/users", s.handleListUsers)
	})

	r.Route("/api/agents", func(r chi.Router) {
		r.Get("/", s.handleListAgents)
		r.Get("/search/{query}", s.handleSearchAgents)
		r.Get("/{id}", s.handleGetAgent)
		r.With(s.gate.RequireRoles(respondError, auth.RoleAdmin)).Post("/", s.handleCreateAgent)
		r.With(s.gate.RequireRoles(respondError, auth.RoleAdmin)).Put("/{id}", s.handleUpdateAgent)
		r.With(s.gate.RequireRoles(respondError, auth.RoleAdmin)).Delete("/{id}", s.handleDeleteAgent)
	})

	r.Route("/api/chat", func(r chi.Router) {
		r.Use(s.gate.Optional())
		r.Post("/", s.handleChat)
		r.Get("/{conversationId}", s.handleGetConversation)
	})

	r.Route("/api/deploy", func(r chi.Router) {
		r.With(s.gate.RequireRoles(respondError, auth.RoleAdmin)).Get("/", s.handleListDeployments)
		r.Group(func(r chi.Router) {
			r.Use(s.gate.Require(respondError))
			r.Post("/{clientId}/{agentId}", s.handleDeployAgent)
			r.Get("/{clientId}/agents", s.handleClientAgents)
			r.Delete("/{clientId}/{agentId}", s.handleRemoveDeployment)
		})
	})

	r.Route("/api/voice", func(r chi.Router) {
		r.Use(s.gate.Optional())
		r.Post("/session", s.handleCreateVoiceSession)
		r.Post("/offer", s.handleVoiceOffer)
		r.Post("/ice", s.handleVoiceICE)
		r.Post("/transcribe", s.handleTranscribe)
		r.Post("/preview", s.handleVoicePreview)
		r.Get("/agents/{id}/config", s.handleAgentVoiceConfig)
		r.With(s.gate.RequireRoles(respondError, auth.RoleAdmin)).
			Get("/sessions", s.handleListVoiceSessions)
		r.With(s.gate.RequireRoles(respondError, auth.RoleAdmin)).
			Get("/stats", s.handleVoiceStats)
		r.Get("/sessions/{id}", s.handleGetVoiceSession)
		r.Delete("/sessions/{id}", s.handleEndVoiceSession)
	})

	r.With(s.gate.Optional()).Get("/ws", s.handleWS)

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   "1.0.0",
		"uptime":    time.Since(s.started).Seconds(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "operational",
		"services": map[string]string{
			"auth":  s.gate.Mode(),
			"chat":  "ready",
			"voice": "ready",
		},
		"activeSessions":    s.sessions.Count(),
		"activeConnections": s.wsConns.Load(),
	})
}

var errEmptyBody = errors.New("empty request body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type successEnvelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

type errorEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

func respondSuccess(w http.ResponseWriter, status int, data any) {
	respondJSON(w, status, successEnvelope{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorEnvelope{Success: false, Error: message, Code: code})
}

// respondGateError maps gate failures to the envelope the clients expect.
func respondGateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		respondError(w, http.StatusUnauthorized, "unauthenticated", "missing or invalid credential")
	case errors.Is(err, auth.ErrInsufficientPermissions):
		respondError(w, http.StatusForbidden, "insufficient_permissions", "role not permitted for this resource")
	case errors.Is(err, auth.ErrAccessDenied):
		respondError(w, http.StatusForbidden, "access_denied", "access denied to this resource")
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
