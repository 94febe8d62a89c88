package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ndimarco/aria/internal/agent"
)

var julie = &agent.Profile{
	ID:      "julie",
	Name:    "Julie",
	Role:    "Care Coordinator",
	Tagline: "Always here to help",
	Personality: agent.Personality{
		Traits:      []string{"warm", "organized"},
		Specialties: []string{"scheduling"},
		Origin:      "Staten Island",
	},
}

func TestInMemoryStoreRoundTrip(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	if err := s.AppendMessage(ctx, "conv1", "julie", "client1", Message{Role: "user", Content: "hi"}); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}
	if err := s.AppendMessage(ctx, "conv1", "julie", "client1", Message{Role: "assistant", Content: "hello"}); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}

	conv, err := s.Conversation(ctx, "conv1")
	if err != nil {
		t.Fatalf("Conversation() error = %v", err)
	}
	if conv.AgentID != "julie" || conv.ClientID != "client1" {
		t.Fatalf("conversation metadata = %+v", conv)
	}
	if len(conv.Messages) != 2 || conv.Messages[0].Role != "user" || conv.Messages[1].Role != "assistant" {
		t.Fatalf("messages = %+v", conv.Messages)
	}
	if conv.Messages[0].Timestamp.IsZero() {
		t.Fatalf("message not timestamped on append")
	}

	// Returned transcript is a copy.
	conv.Messages[0].Content = "mutated"
	again, _ := s.Conversation(ctx, "conv1")
	if again.Messages[0].Content != "hi" {
		t.Fatalf("store leaked internal message slice")
	}
}

func TestInMemoryStoreUnknownConversation(t *testing.T) {
	s := NewInMemoryStore()
	if _, err := s.Conversation(context.Background(), "nope"); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("Conversation() error = %v, want ErrConversationNotFound", err)
	}
}

func TestCannedResponderKeywords(t *testing.T) {
	cases := []struct {
		message string
		want    string
	}{
		{"Can I schedule an appointment?", "schedule an appointment"},
		{"Do you take my insurance?", "insurance"},
		{"I'm in a lot of pain", "emergency"},
		{"What does a crown cost?", "pricing"},
		{"Hello there", "How can I help you today?"},
	}

	for _, tc := range cases {
		conv := &Conversation{Messages: []Message{{Role: "user", Content: tc.message}}}
		reply, err := CannedResponder{}.Respond(context.Background(), julie, conv)
		if err != nil {
			t.Fatalf("Respond(%q) error = %v", tc.message, err)
		}
		if reply.Source != "canned" {
			t.Fatalf("source = %q", reply.Source)
		}
		if !strings.Contains(reply.Text, tc.want) {
			t.Fatalf("Respond(%q) = %q, want mention of %q", tc.message, reply.Text, tc.want)
		}
		if !strings.Contains(reply.Text, "Julie") && !strings.Contains(reply.Text, "Care Coordinator") {
			t.Fatalf("reply lost the agent persona: %q", reply.Text)
		}
	}
}

type stubResponder struct {
	reply Reply
	err   error
	calls int
}

func (r *stubResponder) Respond(context.Context, *agent.Profile, *Conversation) (Reply, error) {
	r.calls++
	return r.reply, r.err
}

func TestFallbackResponderPrefersPrimary(t *testing.T) {
	primary := &stubResponder{reply: Reply{Text: "from primary", Source: "llm"}}
	fallback := &stubResponder{reply: Reply{Text: "from fallback", Source: "canned"}}
	r := NewFallbackResponder(primary, fallback, zerolog.Nop())

	reply, err := r.Respond(context.Background(), julie, &Conversation{})
	if err != nil || reply.Text != "from primary" || reply.Source != "llm" {
		t.Fatalf("Respond() = %+v, %v", reply, err)
	}
	if fallback.calls != 0 {
		t.Fatalf("fallback invoked despite healthy primary")
	}
}

func TestFallbackResponderFallsBackOnError(t *testing.T) {
	primary := &stubResponder{err: errors.New("boom")}
	fallback := &stubResponder{reply: Reply{Text: "from fallback", Source: "canned"}}
	r := NewFallbackResponder(primary, fallback, zerolog.Nop())

	reply, err := r.Respond(context.Background(), julie, &Conversation{})
	if err != nil || reply.Text != "from fallback" || reply.Source != "canned" {
		t.Fatalf("Respond() = %+v, %v", reply, err)
	}
}

func TestFallbackResponderPropagatesCancellation(t *testing.T) {
	primary := &stubResponder{err: context.Canceled}
	fallback := &stubResponder{reply: Reply{Text: "from fallback", Source: "canned"}}
	r := NewFallbackResponder(primary, fallback, zerolog.Nop())

	if _, err := r.Respond(context.Background(), julie, &Conversation{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Respond() error = %v, want context.Canceled", err)
	}
	if fallback.calls != 0 {
		t.Fatalf("fallback masked a cancellation")
	}
}

func TestLLMResponder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("x-api-key = %q", r.Header.Get("x-api-key"))
		}
		var req llmRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if !strings.Contains(req.System, "Julie") || !strings.Contains(req.System, "Staten Island") {
			t.Errorf("system prompt missing persona: %q", req.System)
		}
		if len(req.Messages) != 1 || req.Messages[0].Content != "hi" {
			t.Errorf("messages = %+v", req.Messages)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"text": "hello from the model"}},
		})
	}))
	defer srv.Close()

	r := NewLLMResponder(srv.URL, "test-key", "claude-3-haiku-20240307")
	conv := &Conversation{Messages: []Message{{Role: "user", Content: "hi"}}}
	reply, err := r.Respond(context.Background(), julie, conv)
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if reply.Text != "hello from the model" || reply.Source != "llm" {
		t.Fatalf("reply = %+v", reply)
	}
}

func TestLLMResponderSurfacesAPIFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	r := NewLLMResponder(srv.URL, "test-key", "claude-3-haiku-20240307")
	conv := &Conversation{Messages: []Message{{Role: "user", Content: "hi"}}}
	if _, err := r.Respond(context.Background(), julie, conv); err == nil {
		t.Fatalf("Respond() succeeded against failing API")
	}
}
