package relay

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ndimarco/aria/internal/observability"
	"github.com/ndimarco/aria/internal/protocol"
	"github.com/ndimarco/aria/internal/session"
)

// Hub maps each session id to its broadcast group of connected parties and
// forwards signaling events between them without inspecting payloads.
// Membership is ephemeral state derived from the session store: removing a
// session tears its group down synchronously via the manager's remove hook.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}

	sessions *session.Manager
	metrics  *observability.Metrics
	logger   zerolog.Logger
}

func NewHub(sessions *session.Manager, metrics *observability.Metrics, logger zerolog.Logger) *Hub {
	h := &Hub{
		rooms:    make(map[string]map[*Client]struct{}),
		sessions: sessions,
		metrics:  metrics,
		logger:   logger,
	}
	sessions.SetRemoveHook(h.CloseRoom)
	return h
}

// Join adds a client to a session's broadcast group. Rejoining is a no-op.
func (h *Hub) Join(sessionID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[sessionID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[sessionID] = room
	}
	if _, member := room[c]; member {
		return
	}
	room[c] = struct{}{}
	c.joined[sessionID] = struct{}{}
}

// Leave removes a client from a group, deleting the group when it empties.
func (h *Hub) Leave(sessionID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(sessionID, c)
}

func (h *Hub) leaveLocked(sessionID string, c *Client) {
	room, ok := h.rooms[sessionID]
	if !ok {
		return
	}
	delete(room, c)
	delete(c.joined, sessionID)
	if len(room) == 0 {
		delete(h.rooms, sessionID)
	}
}

// CloseRoom tears down the broadcast group for a removed session.
func (h *Hub) CloseRoom(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[sessionID]
	if !ok {
		return
	}
	for c := range room {
		delete(c.joined, sessionID)
	}
	delete(h.rooms, sessionID)
}

// Disconnect removes a client from every group it joined.
func (h *Hub) Disconnect(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sessionID := range c.joined {
		h.leaveLocked(sessionID, c)
	}
}

// RoomSize reports current group membership, for diagnostics.
func (h *Hub) RoomSize(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}

// HandleEvent processes one inbound event from a client: it stamps the
// receipt time, applies the matching lifecycle transition, and relays the
// event to every other group member. Events for unknown sessions are dropped
// with a diagnostic to the sender only.
func (h *Hub) HandleEvent(c *Client, ev protocol.Event) {
	ev.Timestamp = time.Now().UTC()
	h.metrics.RelayEvents.WithLabelValues("inbound", string(ev.Type)).Inc()

	switch ev.Type {
	case protocol.TypeJoinSession:
		if err := h.sessions.Touch(ev.SessionID); err != nil {
			h.rejectUnknown(c, ev)
			return
		}
		h.Join(ev.SessionID, c)
		return

	case protocol.TypeLeaveSession:
		h.Leave(ev.SessionID, c)
		return

	case protocol.TypeOffer:
		answer, _, err := h.sessions.SubmitOffer(ev.SessionID, ev.Payload)
		if err != nil {
			h.rejectUnknown(c, ev)
			return
		}
		h.broadcast(ev.SessionID, c, ev)
		// Development stand-in: until a real agent endpoint answers, hand
		// the synthesized answer straight back to the offering party.
		if len(answer) > 0 {
			h.deliver(c, protocol.Event{
				Type:      protocol.TypeAnswer,
				SessionID: ev.SessionID,
				Payload:   answer,
				Timestamp: time.Now().UTC(),
			})
		}
		return

	case protocol.TypeAnswer:
		if _, err := h.sessions.SubmitAnswer(ev.SessionID, ev.Payload); err != nil {
			h.rejectUnknown(c, ev)
			return
		}
		h.broadcast(ev.SessionID, c, ev)
		return

	case protocol.TypeICECandidate:
		if _, err := h.sessions.AppendCandidate(ev.SessionID, ev.Payload); err != nil {
			h.rejectUnknown(c, ev)
			return
		}
		h.broadcast(ev.SessionID, c, ev)
		return

	case protocol.TypeTranscription, protocol.TypeAgentResponse:
		if err := h.sessions.Touch(ev.SessionID); err != nil {
			h.rejectUnknown(c, ev)
			return
		}
		h.broadcast(ev.SessionID, c, ev)
		return

	default:
		h.deliver(c, protocol.ErrorEvent(ev.SessionID, "unsupported_event", string(ev.Type)))
	}
}

func (h *Hub) rejectUnknown(c *Client, ev protocol.Event) {
	h.metrics.RelayDropped.WithLabelValues("unknown_session").Inc()
	h.deliver(c, protocol.ErrorEvent(ev.SessionID, "session_not_found", "voice session not found"))
}

// broadcast delivers the event to every current group member except the
// sender. An empty group is a no-op: delivery is at-most-once and
// unacknowledged, so the sender is not told whether anyone received it.
func (h *Hub) broadcast(sessionID string, from *Client, ev protocol.Event) {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[sessionID]))
	for c := range h.rooms[sessionID] {
		if c != from {
			members = append(members, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range members {
		h.deliver(c, ev)
	}
}

func (h *Hub) deliver(c *Client, ev protocol.Event) {
	if c.trySend(ev) {
		h.metrics.RelayEvents.WithLabelValues("outbound", string(ev.Type)).Inc()
		return
	}
	// Keep websocket writes single-threaded; drop when the outbound queue is
	// saturated.
	h.metrics.RelayDropped.WithLabelValues("queue_full").Inc()
	h.logger.Warn().Str("session_id", ev.SessionID).Str("type", string(ev.Type)).Msg("outbound queue full, dropping event")
}
