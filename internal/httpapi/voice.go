package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ndimarco/aria/internal/agent"
	"github.com/ndimarco/aria/internal/audio"
	"github.com/ndimarco/aria/internal/auth"
	"github.com/ndimarco/aria/internal/session"
)

type createVoiceSessionRequest struct {
	AgentID      string         `json:"agentId"`
	ClientConfig map[string]any `json:"clientConfig"`
}

func (s *Server) handleCreateVoiceSession(w http.ResponseWriter, r *http.Request) {
	var req createVoiceSessionRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.AgentID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_payload", "agent ID is required")
		return
	}

	ownerID := ""
	if id, ok := auth.IdentityFrom(r.Context()); ok {
		ownerID = id.ID
	}

	sess, err := s.sessions.Create(req.AgentID, ownerID, req.ClientConfig)
	if err != nil {
		switch {
		case errors.Is(err, agent.ErrNotFound):
			respondError(w, http.StatusNotFound, "agent_not_found", "agent not found")
		case errors.Is(err, session.ErrVoiceUnsupported):
			respondError(w, http.StatusBadRequest, "voice_unsupported", "agent does not support voice interactions")
		default:
			respondError(w, http.StatusInternalServerError, "internal_error", "failed to create voice session")
		}
		return
	}

	s.metrics.ActiveSessions.Set(float64(s.sessions.Count()))
	s.metrics.SessionEvents.WithLabelValues("created").Inc()
	s.logger.Info().Str("session_id", sess.ID).Str("agent_id", sess.AgentID).Str("user_id", ownerID).Msg("voice session created")

	respondSuccess(w, http.StatusOK, map[string]any{
		"sessionId": sess.ID,
		"agentId":   sess.AgentID,
		"agentName": sess.AgentName,
		"voiceConfig": map[string]any{
			"voiceId":   sess.VoiceConfig.VoiceID,
			"voiceName": sess.VoiceConfig.VoiceName,
			"settings":  sess.VoiceConfig.Settings,
		},
		"personality":  sess.Personality,
		"capabilities": sess.Capabilities,
	})
}

type voiceOfferRequest struct {
	SessionID string          `json:"sessionId"`
	Offer     json.RawMessage `json:"offer"`
	Type      string          `json:"type"`
}

// handleVoiceOffer accepts both directions of the negotiation: type "offer"
// stores the offer and returns a synthesized answer, type "answer" records
// the remote answer carried in the same field.
func (s *Server) handleVoiceOffer(w http.ResponseWriter, r *http.Request) {
	var req voiceOfferRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.SessionID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_payload", "session ID is required")
		return
	}
	if req.Type == "" {
		req.Type = "offer"
	}

	switch req.Type {
	case "offer":
		answer, status, err := s.sessions.SubmitOffer(req.SessionID, req.Offer)
		if err != nil {
			respondError(w, http.StatusNotFound, "session_not_found", "voice session not found")
			return
		}
		s.metrics.SessionEvents.WithLabelValues("offer").Inc()
		s.logger.Info().Str("session_id", req.SessionID).Msg("negotiation offer processed")
		respondSuccess(w, http.StatusOK, map[string]any{
			"sessionId": req.SessionID,
			"answer":    answer,
			"status":    status,
		})
	case "answer":
		status, err := s.sessions.SubmitAnswer(req.SessionID, req.Offer)
		if err != nil {
			respondError(w, http.StatusNotFound, "session_not_found", "voice session not found")
			return
		}
		s.metrics.SessionEvents.WithLabelValues("answer").Inc()
		respondSuccess(w, http.StatusOK, map[string]any{
			"sessionId": req.SessionID,
			"status":    status,
		})
	default:
		respondError(w, http.StatusBadRequest, "invalid_payload", `invalid offer type, must be "offer" or "answer"`)
	}
}

type voiceICERequest struct {
	SessionID string          `json:"sessionId"`
	Candidate json.RawMessage `json:"candidate"`
}

func (s *Server) handleVoiceICE(w http.ResponseWriter, r *http.Request) {
	var req voiceICERequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.SessionID) == "" || len(req.Candidate) == 0 {
		respondError(w, http.StatusBadRequest, "invalid_payload", "session ID and ICE candidate are required")
		return
	}

	count, err := s.sessions.AppendCandidate(req.SessionID, req.Candidate)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", "voice session not found")
		return
	}

	proj, err := s.sessions.Project(req.SessionID)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", "voice session not found")
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{
		"sessionId":          req.SessionID,
		"candidatesReceived": count,
		"status":             proj.Status,
	})
}

type transcribeRequest struct {
	SessionID string `json:"sessionId"`
	AudioData string `json:"audioData"`
	Format    string `json:"format"`
}

// handleTranscribe acknowledges audio and returns a stand-in transcription.
// TODO: wire a real speech-to-text backend once one is selected.
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	var req transcribeRequest
	if err := decodeJSON(r, &req); err != nil || req.SessionID == "" || req.AudioData == "" {
		respondError(w, http.StatusBadRequest, "invalid_payload", "session ID and audio data are required")
		return
	}

	sess, err := s.sessions.Get(req.SessionID)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", "voice session not found")
		return
	}
	_ = s.sessions.Touch(req.SessionID)

	language := "en"
	if strings.Contains(sess.AgentID, "_es") {
		language = "es"
	}
	respondSuccess(w, http.StatusOK, map[string]any{
		"sessionId": req.SessionID,
		"transcription": map[string]any{
			"text":       "Transcription placeholder - integrate with actual STT service",
			"confidence": 0.95,
			"language":   language,
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
		},
		"agentResponse": map[string]any{
			"text":        "Agent " + sess.AgentName + " received your message",
			"shouldSpeak": true,
		},
	})
}

type voicePreviewRequest struct {
	VoiceID string `json:"voiceId"`
	Text    string `json:"text"`
}

// handleVoicePreview returns a short silent clip until a synthesis backend
// produces real audio for the requested voice.
func (s *Server) handleVoicePreview(w http.ResponseWriter, r *http.Request) {
	var req voicePreviewRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.VoiceID) == "" || strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "invalid_payload", "voice ID and text are required")
		return
	}

	wav, err := audio.SilentWAV(44100, 2)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to generate voice preview")
		return
	}
	s.logger.Info().Str("voice_id", req.VoiceID).Int("text_len", len(req.Text)).Msg("voice preview requested")

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(len(wav)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(wav)
}

func (s *Server) handleAgentVoiceConfig(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	profile, err := s.agents.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "agent_not_found", "agent not found")
		return
	}

	respondSuccess(w, http.StatusOK, map[string]any{
		"agentId":      profile.ID,
		"agentName":    profile.Name,
		"voiceConfig":  profile.VoiceConfig,
		"personality":  profile.Personality,
		"capabilities": profile.Capabilities,
		"language":     profile.Language,
		"audioSample":  profile.AudioSample,
	})
}

func (s *Server) handleGetVoiceSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.sessions.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", "voice session not found")
		return
	}

	identity, _ := auth.IdentityFrom(r.Context())
	if err := s.gate.AuthorizeOwnResource(identity, sess.OwnerUserID); err != nil {
		respondError(w, http.StatusForbidden, "access_denied", "access denied to this voice session")
		return
	}

	proj, err := s.sessions.Project(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", "voice session not found")
		return
	}
	respondSuccess(w, http.StatusOK, proj)
}

func (s *Server) handleEndVoiceSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.sessions.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", "voice session not found")
		return
	}

	identity, _ := auth.IdentityFrom(r.Context())
	if err := s.gate.AuthorizeOwnResource(identity, sess.OwnerUserID); err != nil {
		respondError(w, http.StatusForbidden, "access_denied", "access denied to this voice session")
		return
	}

	if err := s.sessions.Terminate(id); err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", "voice session not found")
		return
	}
	s.metrics.ActiveSessions.Set(float64(s.sessions.Count()))
	s.metrics.SessionEvents.WithLabelValues("ended").Inc()
	s.logger.Info().Str("session_id", id).Msg("voice session ended")

	respondSuccess(w, http.StatusOK, map[string]any{
		"sessionId": id,
		"message":   "Voice session ended successfully",
	})
}

// handleVoiceStats reports negotiation latency percentiles over the rolling
// sample window.
func (s *Server) handleVoiceStats(w http.ResponseWriter, _ *http.Request) {
	respondSuccess(w, http.StatusOK, s.stages.Snapshot())
}

func (s *Server) handleListVoiceSessions(w http.ResponseWriter, _ *http.Request) {
	sessions := s.sessions.List()
	respondSuccess(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}
