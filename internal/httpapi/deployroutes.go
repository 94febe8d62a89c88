package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ndimarco/aria/internal/auth"
	"github.com/ndimarco/aria/internal/deploy"
)

type deployRequest struct {
	Config map[string]any `json:"config"`
}

func (s *Server) handleDeployAgent(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientId")
	agentID := chi.URLParam(r, "agentId")

	identity, _ := auth.IdentityFrom(r.Context())
	if err := s.gate.AuthorizeClientResource(identity, clientID); err != nil {
		respondGateError(w, err)
		return
	}

	var req deployRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_payload", err.Error())
		return
	}
	if req.Config == nil {
		req.Config = map[string]any{}
	}

	if _, err := s.agents.Get(agentID); err != nil {
		respondError(w, http.StatusNotFound, "agent_not_found", "agent not found")
		return
	}

	d, err := s.deployments.Deploy(clientID, agentID, req.Config)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to deploy agent")
		return
	}

	respondSuccess(w, http.StatusOK, map[string]any{
		"message": "Agent " + agentID + " deployed to " + clientID,
		"deployment": map[string]any{
			"client_id":   clientID,
			"agent_id":    agentID,
			"config":      d.Config,
			"deployed_at": d.DeployedAt,
		},
	})
}

func (s *Server) handleClientAgents(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientId")

	identity, _ := auth.IdentityFrom(r.Context())
	if err := s.gate.AuthorizeClientResource(identity, clientID); err != nil {
		respondGateError(w, err)
		return
	}

	active, err := s.deployments.ActiveForClient(clientID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to fetch client agents")
		return
	}

	agents := make([]map[string]any, 0, len(active))
	for _, d := range active {
		profile := s.agentProfileOrNil(d.AgentID)
		if profile == nil {
			s.logger.Warn().Str("agent_id", d.AgentID).Str("client_id", clientID).Msg("deployed agent profile missing")
			continue
		}
		agents = append(agents, map[string]any{
			"agent": profile,
			"deployment": map[string]any{
				"deployed_at": d.DeployedAt,
				"config":      d.Config,
			},
		})
	}

	respondSuccess(w, http.StatusOK, map[string]any{
		"client_id": clientID,
		"agents":    agents,
	})
}

func (s *Server) handleRemoveDeployment(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientId")
	agentID := chi.URLParam(r, "agentId")

	identity, _ := auth.IdentityFrom(r.Context())
	if err := s.gate.AuthorizeClientResource(identity, clientID); err != nil {
		respondGateError(w, err)
		return
	}

	if err := s.deployments.Remove(clientID, agentID); err != nil {
		switch {
		case errors.Is(err, deploy.ErrClientNotFound):
			respondError(w, http.StatusNotFound, "client_not_found", "client not found")
		case errors.Is(err, deploy.ErrNotDeployed):
			respondError(w, http.StatusNotFound, "not_deployed", "agent not deployed to this client")
		default:
			respondError(w, http.StatusInternalServerError, "internal_error", "failed to remove agent")
		}
		return
	}

	respondSuccess(w, http.StatusOK, map[string]any{
		"message": "Agent " + agentID + " removed from " + clientID,
	})
}

func (s *Server) handleListDeployments(w http.ResponseWriter, _ *http.Request) {
	all, err := s.deployments.All()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to fetch deployments")
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{"deployments": all})
}
