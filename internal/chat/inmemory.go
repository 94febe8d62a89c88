package chat

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore is a simple in-process conversation store for local/dev use.
type InMemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{conversations: make(map[string]*Conversation)}
}

func (s *InMemoryStore) AppendMessage(_ context.Context, conversationID, agentID, clientID string, msg Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		conv = &Conversation{
			ID:        conversationID,
			AgentID:   agentID,
			ClientID:  clientID,
			CreatedAt: time.Now().UTC(),
		}
		s.conversations[conversationID] = conv
	}
	conv.Messages = append(conv.Messages, msg)
	return nil
}

func (s *InMemoryStore) Conversation(_ context.Context, conversationID string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		return nil, ErrConversationNotFound
	}
	out := *conv
	out.Messages = append([]Message(nil), conv.Messages...)
	return &out, nil
}

func (s *InMemoryStore) Close() error { return nil }
