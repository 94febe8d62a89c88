package relay

import (
	"encoding/json"
	"time"
)

// Responder synthesizes negotiation answers while no real agent endpoint
// terminates the exchange. Production deployments with two live endpoints
// relay answers pass-through and never see these payloads survive, since a
// real answer overwrites the synthesized one.
type Responder struct{}

type placeholderAnswer struct {
	Type      string    `json:"type"`
	SDP       string    `json:"sdp"`
	Timestamp time.Time `json:"timestamp"`
}

// Answer produces a placeholder SDP answer for the given offer. The offer
// itself is never inspected.
func (Responder) Answer(sessionID string, _ json.RawMessage) json.RawMessage {
	data, err := json.Marshal(placeholderAnswer{
		Type:      "answer",
		SDP:       "v=0\r\no=- 0 0 IN IP4 127.0.0.1\r\ns=placeholder\r\nt=0 0\r\n",
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return nil
	}
	return data
}
