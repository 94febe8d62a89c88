package chat

import (
	"errors"
	"time"
)

var ErrConversationNotFound = errors.New("conversation not found")

// Message is a single turn in a conversation, user or assistant.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation groups the turns exchanged with one agent on behalf of one
// client. Conversations are keyed by a caller-supplied or generated id so a
// client can continue a thread across requests.
type Conversation struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agentId"`
	ClientID  string    `json:"clientId"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
}
