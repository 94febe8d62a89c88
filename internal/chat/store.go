package chat

import (
	"context"
	"strings"
)

// Store persists conversation transcripts.
type Store interface {
	// AppendMessage adds a turn to the conversation, creating the
	// conversation on first use.
	AppendMessage(ctx context.Context, conversationID, agentID, clientID string, msg Message) error
	// Conversation returns the full transcript.
	Conversation(ctx context.Context, conversationID string) (*Conversation, error)
	Close() error
}

// NewStore creates a postgres-backed store when configured, otherwise in-memory.
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewInMemoryStore(), nil
	}
	return NewPostgresStore(ctx, databaseURL)
}
