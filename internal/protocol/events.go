package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// EventType identifies the signaling events carried over the persistent
// channel. Payloads are opaque to the relay: nothing here inspects SDP or
// candidate contents.
type EventType string

const (
	TypeJoinSession   EventType = "voice:join-session"
	TypeLeaveSession  EventType = "voice:leave-session"
	TypeOffer         EventType = "webrtc:offer"
	TypeAnswer        EventType = "webrtc:answer"
	TypeICECandidate  EventType = "webrtc:ice-candidate"
	TypeTranscription EventType = "voice:transcription"
	TypeAgentResponse EventType = "voice:agent-response"
	TypeError         EventType = "error"
)

var ErrUnsupportedType = errors.New("unsupported event type")

// Event is the wire envelope for every relayed message. Timestamp is assigned
// on receipt by the relay, never taken from the client.
type Event struct {
	Type      EventType       `json:"type"`
	SessionID string          `json:"sessionId"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Code      string          `json:"code,omitempty"`
	Detail    string          `json:"detail,omitempty"`
	Timestamp time.Time       `json:"timestamp,omitempty"`
}

// ParseEvent decodes and validates one inbound client event.
func ParseEvent(raw []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return Event{}, fmt.Errorf("invalid envelope: %w", err)
	}

	switch ev.Type {
	case TypeJoinSession, TypeLeaveSession:
	case TypeOffer, TypeAnswer, TypeICECandidate:
		if len(ev.Payload) == 0 {
			return Event{}, fmt.Errorf("%s requires a payload", ev.Type)
		}
	case TypeTranscription, TypeAgentResponse:
	default:
		return Event{}, ErrUnsupportedType
	}

	if ev.SessionID == "" {
		return Event{}, errors.New("sessionId is required")
	}
	// Never trust a client-supplied timestamp.
	ev.Timestamp = time.Time{}
	return ev, nil
}

// ErrorEvent builds the diagnostic sent to a sender whose event could not be
// relayed. It is never broadcast.
func ErrorEvent(sessionID, code, detail string) Event {
	return Event{
		Type:      TypeError,
		SessionID: sessionID,
		Code:      code,
		Detail:    detail,
		Timestamp: time.Now().UTC(),
	}
}
