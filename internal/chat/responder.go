package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ndimarco/aria/internal/agent"
)

// Reply is a generated assistant turn, tagged with the responder that
// produced it.
type Reply struct {
	Text   string
	Source string
}

// Responder produces the assistant reply for a conversation.
type Responder interface {
	Respond(ctx context.Context, profile *agent.Profile, conv *Conversation) (Reply, error)
}

// LLMResponder forwards the transcript to a messages-style completion API,
// speaking in the agent's persona via a generated system prompt.
type LLMResponder struct {
	url    string
	apiKey string
	model  string
	client *http.Client
}

func NewLLMResponder(url, apiKey, model string) *LLMResponder {
	return &LLMResponder{
		url:    strings.TrimRight(strings.TrimSpace(url), "/"),
		apiKey: apiKey,
		model:  model,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

type llmMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type llmRequest struct {
	Model       string       `json:"model"`
	MaxTokens   int          `json:"max_tokens"`
	Temperature float64      `json:"temperature"`
	System      string       `json:"system"`
	Messages    []llmMessage `json:"messages"`
}

type llmResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

func (r *LLMResponder) Respond(ctx context.Context, profile *agent.Profile, conv *Conversation) (Reply, error) {
	msgs := make([]llmMessage, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		msgs = append(msgs, llmMessage{Role: m.Role, Content: m.Content})
	}

	payload, err := json.Marshal(llmRequest{
		Model:       r.model,
		MaxTokens:   1000,
		Temperature: 0.7,
		System:      buildSystemPrompt(profile),
		Messages:    msgs,
	})
	if err != nil {
		return Reply{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return Reply{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", r.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	res, err := r.client.Do(httpReq)
	if err != nil {
		return Reply{}, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return Reply{}, fmt.Errorf("completion api status %d: %s", res.StatusCode, string(body))
	}

	var out llmResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return Reply{}, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Content) == 0 || strings.TrimSpace(out.Content[0].Text) == "" {
		return Reply{}, fmt.Errorf("completion api returned empty content")
	}
	return Reply{Text: out.Content[0].Text, Source: "llm"}, nil
}

func buildSystemPrompt(profile *agent.Profile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, %s at Dr. Pedro's dental practice.\n", profile.Name, profile.Role)
	fmt.Fprintf(&b, "Your personality traits: %s\n", strings.Join(profile.Personality.Traits, ", "))
	fmt.Fprintf(&b, "Your specialties: %s\n", strings.Join(profile.Personality.Specialties, ", "))
	fmt.Fprintf(&b, "Your tagline: %q\n\n", profile.Tagline)

	fmt.Fprintf(&b, "Communication style: %s\n", orDefault(profile.Personality.CommunicationStyle, "professional"))
	fmt.Fprintf(&b, "Approach: %s\n", orDefault(profile.Personality.Approach, "empathetic"))
	fmt.Fprintf(&b, "Tone: %s", orDefault(profile.Personality.Tone, "warm-professional"))

	if profile.Personality.Origin != "" {
		fmt.Fprintf(&b, "\nYou are from %s and speak with that local flavor.", profile.Personality.Origin)
	}
	if profile.Personality.Language != "" {
		fmt.Fprintf(&b, "\nYou speak %s.", profile.Personality.Language)
	}

	b.WriteString("\n\nProvide helpful, accurate information about dental care while maintaining your unique personality.\n")
	b.WriteString("Keep responses concise and conversational. If asked about appointments, guide them through scheduling.\n")
	b.WriteString("Always be professional while showing your personality.")
	return b.String()
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
