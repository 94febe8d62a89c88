package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ndimarco/aria/internal/agent"
	"github.com/ndimarco/aria/internal/observability"
)

// ProfileSource supplies agent profiles for capability validation at session
// creation. It is the only external collaborator the manager touches.
type ProfileSource interface {
	Get(id string) (*agent.Profile, error)
}

// AnswerFunc synthesizes a negotiation answer for a received offer. The relay
// provides a placeholder implementation until real endpoints terminate the
// exchange themselves.
type AnswerFunc func(sessionID string, offer json.RawMessage) json.RawMessage

// Manager owns the in-process session table and is the only writer of session
// status. Mutations for one session id are serialized through a per-entry
// mutex; the outer RWMutex guards map membership only, so independent
// sessions never contend.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*entry

	profiles ProfileSource
	answerer AnswerFunc
	onRemove func(sessionID string)
	stages   *observability.StageWindow
}

type entry struct {
	mu      sync.Mutex
	s       *Session
	offerAt time.Time
}

func NewManager(profiles ProfileSource, answerer AnswerFunc) *Manager {
	if answerer == nil {
		answerer = func(string, json.RawMessage) json.RawMessage { return nil }
	}
	return &Manager{
		sessions: make(map[string]*entry),
		profiles: profiles,
		answerer: answerer,
	}
}

// SetRemoveHook registers a callback fired after a session leaves the table,
// whether by explicit termination or sweep. The relay uses it to tear down
// the session's broadcast group synchronously.
func (m *Manager) SetRemoveHook(hook func(sessionID string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onRemove = hook
}

// SetStageWindow attaches a rolling latency window fed by negotiation
// transitions. A nil window records nothing.
func (m *Manager) SetStageWindow(w *observability.StageWindow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages = w
}

func (m *Manager) stageWindow() *observability.StageWindow {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stages
}

// Create validates the agent's voice capability, snapshots its profile data
// and inserts a fresh record in state initiated.
func (m *Manager) Create(agentID, ownerUserID string, clientConfig map[string]any) (*Session, error) {
	profile, err := m.profiles.Get(agentID)
	if err != nil {
		if errors.Is(err, agent.ErrNotFound) {
			return nil, agent.ErrNotFound
		}
		return nil, fmt.Errorf("load agent %s: %w", agentID, err)
	}
	if !profile.VoiceConfig.Enabled {
		return nil, ErrVoiceUnsupported
	}

	now := time.Now().UTC()
	s := &Session{
		ID:           "voice_" + uuid.NewString(),
		AgentID:      agentID,
		AgentName:    profile.Name,
		Status:       StatusInitiated,
		OwnerUserID:  ownerUserID,
		ClientConfig: clientConfig,
		CreatedAt:    now,
		LastActivity: now,
		VoiceConfig:  profile.VoiceConfig,
		Personality:  profile.Personality,
		Capabilities: append([]string(nil), profile.Capabilities...),
	}

	m.mu.Lock()
	m.sessions[s.ID] = &entry{s: s}
	m.mu.Unlock()
	return clone(s), nil
}

// Get returns a full snapshot of the record. Callers outside this package
// should usually prefer Project.
func (m *Manager) Get(sessionID string) (*Session, error) {
	e, ok := m.lookup(sessionID)
	if !ok {
		return nil, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return clone(e.s), nil
}

// Project returns the read-only status view without negotiation payloads.
func (m *Manager) Project(sessionID string) (Projection, error) {
	e, ok := m.lookup(sessionID)
	if !ok {
		return Projection{}, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return project(e.s), nil
}

// SubmitOffer stores the offer, synthesizes an answer and advances the state
// through offer-received to answer-sent. The synthesized answer is returned
// for delivery to the offering party.
func (m *Manager) SubmitOffer(sessionID string, offer json.RawMessage) (json.RawMessage, Status, error) {
	e, ok := m.lookup(sessionID)
	if !ok {
		return nil, "", ErrNotFound
	}
	stages := m.stageWindow()
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now().UTC()
	e.s.LastActivity = now
	if e.s.Offer != nil {
		stages.ObserveIndicator("offer_resubmitted")
	} else {
		stages.Observe("create_to_offer", float64(now.Sub(e.s.CreatedAt))/float64(time.Millisecond))
	}
	e.offerAt = now
	e.s.Offer = offer
	e.s.advance(StatusOfferReceived)

	answer := m.answerer(sessionID, offer)
	e.s.Answer = answer
	e.s.advance(StatusAnswerSent)
	return answer, e.s.Status, nil
}

// SubmitAnswer records the remote answer. Resubmission overwrites.
func (m *Manager) SubmitAnswer(sessionID string, answer json.RawMessage) (Status, error) {
	e, ok := m.lookup(sessionID)
	if !ok {
		return "", ErrNotFound
	}
	stages := m.stageWindow()
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now().UTC()
	e.s.LastActivity = now
	if e.s.Status != StatusAnswerReceived && !e.offerAt.IsZero() {
		stages.Observe("offer_to_answer", float64(now.Sub(e.offerAt))/float64(time.Millisecond))
		stages.Observe("negotiation_total", float64(now.Sub(e.s.CreatedAt))/float64(time.Millisecond))
	}
	e.s.Answer = answer
	e.s.advance(StatusAnswerReceived)
	return e.s.Status, nil
}

// AppendCandidate stores one connectivity hint. Candidates are append-only
// and never change the lifecycle state. Returns the running count.
func (m *Manager) AppendCandidate(sessionID string, candidate json.RawMessage) (int, error) {
	e, ok := m.lookup(sessionID)
	if !ok {
		return 0, ErrNotFound
	}
	stages := m.stageWindow()
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now().UTC()
	e.s.LastActivity = now
	if e.s.Status == StatusInitiated {
		stages.ObserveIndicator("ice_before_offer")
	}
	e.s.Candidates = append(e.s.Candidates, Candidate{Payload: candidate, ReceivedAt: now})
	return len(e.s.Candidates), nil
}

// Touch bumps lastActivity for relay traffic that carries no negotiation
// payload (transcriptions, agent responses).
func (m *Manager) Touch(sessionID string) error {
	e, ok := m.lookup(sessionID)
	if !ok {
		return ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.s.LastActivity = time.Now().UTC()
	return nil
}

// Terminate removes the record and fires the teardown hook. Authorization is
// the caller's responsibility; the sweeper and the HTTP boundary both end up
// here.
func (m *Manager) Terminate(sessionID string) error {
	m.mu.Lock()
	e, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	hook := m.onRemove
	m.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	// Wait for any in-flight mutation on this entry, then tear the broadcast
	// group down synchronously.
	e.mu.Lock()
	defer e.mu.Unlock()
	if hook != nil {
		hook(sessionID)
	}
	return nil
}

// List returns projections of every live session.
func (m *Manager) List() []Projection {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.sessions))
	for _, e := range m.sessions {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	out := make([]Projection, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, project(e.s))
		e.mu.Unlock()
	}
	return out
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// evictIfInactive removes the session only if it is still stale, re-checking
// under the entry lock so a mutation that raced the sweep keeps the session
// alive.
func (m *Manager) evictIfInactive(sessionID string, threshold time.Duration, now time.Time) bool {
	m.mu.Lock()
	e, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return false
	}
	e.mu.Lock()
	if now.Sub(e.s.LastActivity) <= threshold {
		e.mu.Unlock()
		m.mu.Unlock()
		return false
	}
	delete(m.sessions, sessionID)
	hook := m.onRemove
	m.mu.Unlock()
	e.mu.Unlock()

	if hook != nil {
		hook(sessionID)
	}
	return true
}

func (m *Manager) lookup(sessionID string) (*entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[sessionID]
	return e, ok
}

func clone(s *Session) *Session {
	c := *s
	c.Candidates = append([]Candidate(nil), s.Candidates...)
	c.Capabilities = append([]string(nil), s.Capabilities...)
	return &c
}
