package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/ndimarco/aria/internal/agent"
)

// CannedResponder answers from keyword templates. It is the terminal fallback
// when no completion API is configured or reachable, so it never fails.
type CannedResponder struct{}

func (CannedResponder) Respond(_ context.Context, profile *agent.Profile, conv *Conversation) (Reply, error) {
	var last string
	for i := len(conv.Messages) - 1; i >= 0; i-- {
		if conv.Messages[i].Role == "user" {
			last = conv.Messages[i].Content
			break
		}
	}
	lower := strings.ToLower(last)

	var text string
	switch {
	case strings.Contains(lower, "appointment") || strings.Contains(lower, "schedule"):
		text = fmt.Sprintf("Hi! I'm %s, %s. I'd be happy to help you schedule an appointment. What day works best for you?",
			profile.Name, profile.Role)
	case strings.Contains(lower, "insurance"):
		text = fmt.Sprintf("As %s, I can help with insurance questions. We accept most major dental insurance plans. Would you like me to check if we accept your specific insurance?",
			profile.Role)
	case strings.Contains(lower, "pain") || strings.Contains(lower, "emergency"):
		text = fmt.Sprintf("I understand you're experiencing discomfort. As %s, I want to make sure you get the care you need. If this is a dental emergency, we can see you today. Would you like me to arrange an urgent appointment?",
			profile.Name)
	case strings.Contains(lower, "cost") || strings.Contains(lower, "price"):
		text = fmt.Sprintf("I'm %s, and I can help with pricing information. The cost varies depending on the procedure. Would you like to tell me what specific treatment you're interested in?",
			profile.Name)
	default:
		text = fmt.Sprintf("Hello! I'm %s, %s at Dr. Pedro's office. %s. How can I help you today?",
			profile.Name, profile.Role, profile.Tagline)
	}
	return Reply{Text: text, Source: "canned"}, nil
}
