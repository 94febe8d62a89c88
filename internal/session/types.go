package session

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/ndimarco/aria/internal/agent"
)

// Status is the lifecycle state of a voice session. States only ever advance;
// a terminated or swept session is removed rather than stored as ended.
type Status string

const (
	StatusInitiated      Status = "initiated"
	StatusOfferReceived  Status = "offer-received"
	StatusAnswerSent     Status = "answer-sent"
	StatusAnswerReceived Status = "answer-received"
)

var statusRank = map[Status]int{
	StatusInitiated:      0,
	StatusOfferReceived:  1,
	StatusAnswerSent:     2,
	StatusAnswerReceived: 3,
}

var (
	ErrNotFound         = errors.New("voice session not found")
	ErrVoiceUnsupported = errors.New("agent does not support voice interactions")
)

// Candidate is one opaque connectivity hint, timestamped on receipt.
type Candidate struct {
	Payload    json.RawMessage `json:"candidate"`
	ReceivedAt time.Time       `json:"received_at"`
}

// Session is the full record for one negotiation between a caller and an
// agent. Agent data is snapshotted at creation so later profile edits never
// leak into a live session.
type Session struct {
	ID           string
	AgentID      string
	AgentName    string
	Status       Status
	OwnerUserID  string
	ClientConfig map[string]any
	CreatedAt    time.Time
	LastActivity time.Time

	VoiceConfig  agent.VoiceConfig
	Personality  agent.Personality
	Capabilities []string

	Offer      json.RawMessage
	Answer     json.RawMessage
	Candidates []Candidate
}

// Projection is the read-only view returned by status queries. It omits the
// negotiation blobs so oversized payloads never ride along on lookups.
type Projection struct {
	ID             string    `json:"id"`
	AgentID        string    `json:"agent_id"`
	AgentName      string    `json:"agent_name"`
	Status         Status    `json:"status"`
	OwnerUserID    string    `json:"user_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivity   time.Time `json:"last_activity"`
	CandidateCount int       `json:"ice_candidates_count"`
	HasOffer       bool      `json:"has_offer"`
	HasAnswer      bool      `json:"has_answer"`
}

func project(s *Session) Projection {
	return Projection{
		ID:             s.ID,
		AgentID:        s.AgentID,
		AgentName:      s.AgentName,
		Status:         s.Status,
		OwnerUserID:    s.OwnerUserID,
		CreatedAt:      s.CreatedAt,
		LastActivity:   s.LastActivity,
		CandidateCount: len(s.Candidates),
		HasOffer:       len(s.Offer) > 0,
		HasAnswer:      len(s.Answer) > 0,
	}
}

// advance moves the status forward, never backward. Resubmissions overwrite
// payloads without regressing state.
func (s *Session) advance(to Status) {
	if statusRank[to] > statusRank[s.Status] {
		s.Status = to
	}
}
