package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ndimarco/aria/internal/agent"
)

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	language := strings.TrimSpace(r.URL.Query().Get("language"))
	profiles, err := s.agents.List(language)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list agents")
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{
		"agents": profiles,
		"count":  len(profiles),
	})
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	profile, err := s.agents.Get(id)
	if err != nil {
		if errors.Is(err, agent.ErrNotFound) {
			respondError(w, http.StatusNotFound, "agent_not_found", "agent not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load agent")
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{"agent": profile})
}

func (s *Server) handleSearchAgents(w http.ResponseWriter, r *http.Request) {
	query := chi.URLParam(r, "query")
	profiles, err := s.agents.Search(query)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "search failed")
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{
		"agents": profiles,
		"count":  len(profiles),
		"query":  query,
	})
}

func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var profile agent.Profile
	if err := decodeJSON(r, &profile); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_payload", err.Error())
		return
	}
	if strings.TrimSpace(profile.ID) == "" || strings.TrimSpace(profile.Name) == "" {
		respondError(w, http.StatusBadRequest, "invalid_payload", "agent id and name are required")
		return
	}
	if _, err := s.agents.Get(profile.ID); err == nil {
		respondError(w, http.StatusConflict, "agent_exists", "agent with this id already exists")
		return
	}
	if err := s.agents.Save(&profile); err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to save agent")
		return
	}
	s.logger.Info().Str("agent_id", profile.ID).Msg("agent created")
	respondSuccess(w, http.StatusCreated, map[string]any{"agent": profile})
}

func (s *Server) handleUpdateAgent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	existing, err := s.agents.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "agent_not_found", "agent not found")
		return
	}

	var profile agent.Profile
	if err := decodeJSON(r, &profile); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_payload", err.Error())
		return
	}
	profile.ID = id
	profile.CreatedAt = existing.CreatedAt
	if err := s.agents.Save(&profile); err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to save agent")
		return
	}
	s.logger.Info().Str("agent_id", id).Msg("agent updated")
	respondSuccess(w, http.StatusOK, map[string]any{"agent": profile})
}

func (s *Server) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.agents.Delete(id); err != nil {
		if errors.Is(err, agent.ErrNotFound) {
			respondError(w, http.StatusNotFound, "agent_not_found", "agent not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to delete agent")
		return
	}
	s.logger.Info().Str("agent_id", id).Msg("agent deleted")
	respondSuccess(w, http.StatusOK, map[string]any{"message": "agent deleted"})
}
