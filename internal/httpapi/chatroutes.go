package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ndimarco/aria/internal/agent"
	"github.com/ndimarco/aria/internal/auth"
	"github.com/ndimarco/aria/internal/chat"
)

type chatRequest struct {
	AgentID        string `json:"agentId"`
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
	ClientID       string `json:"clientId"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_payload", err.Error())
		return
	}
	if strings.TrimSpace(req.AgentID) == "" || strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "invalid_payload", "agent ID and message are required")
		return
	}

	profile, err := s.agents.Get(req.AgentID)
	if err != nil {
		respondError(w, http.StatusNotFound, "agent_not_found", "agent not found")
		return
	}

	// An authenticated caller's clientId wins over whatever the body claims.
	clientID := req.ClientID
	if id, ok := auth.IdentityFrom(r.Context()); ok && id.ClientID != "" {
		clientID = id.ClientID
	}
	if clientID == "" {
		clientID = "anonymous"
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	ctx := r.Context()
	userMsg := chat.Message{Role: "user", Content: req.Message, Timestamp: time.Now().UTC()}
	if err := s.chatStore.AppendMessage(ctx, conversationID, req.AgentID, clientID, userMsg); err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to record message")
		return
	}

	conv, err := s.chatStore.Conversation(ctx, conversationID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load conversation")
		return
	}

	reply, err := s.responder.Respond(ctx, profile, conv)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to process chat message")
		return
	}
	s.metrics.ChatResponses.WithLabelValues(reply.Source).Inc()

	assistantMsg := chat.Message{Role: "assistant", Content: reply.Text, Timestamp: time.Now().UTC()}
	if err := s.chatStore.AppendMessage(ctx, conversationID, req.AgentID, clientID, assistantMsg); err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to record response")
		return
	}

	respondSuccess(w, http.StatusOK, map[string]any{
		"conversationId": conversationID,
		"response":       reply.Text,
		"agent": map[string]any{
			"id":     profile.ID,
			"name":   profile.Name,
			"avatar": profile.Avatar,
		},
	})
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationId")
	conv, err := s.chatStore.Conversation(r.Context(), id)
	if err != nil {
		if errors.Is(err, chat.ErrConversationNotFound) {
			respondError(w, http.StatusNotFound, "conversation_not_found", "conversation not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to fetch conversation")
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{"conversation": conv})
}

// agentProfileOrNil is a helper for handlers that tolerate missing agents.
func (s *Server) agentProfileOrNil(id string) *agent.Profile {
	p, err := s.agents.Get(id)
	if err != nil {
		return nil
	}
	return p
}
