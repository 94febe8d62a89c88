package relay

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ndimarco/aria/internal/auth"
	"github.com/ndimarco/aria/internal/protocol"
)

const (
	writeTimeout    = 10 * time.Second
	readTimeout     = 120 * time.Second
	maxMessageBytes = 2 << 20
	sendQueueSize   = 256
)

// Client is one persistent-channel connection. Outbound events flow through a
// bounded queue drained by a single writer goroutine, so per-sender delivery
// order is preserved and websocket writes stay single-threaded.
type Client struct {
	ID       string
	Identity *auth.Identity

	hub    *Hub
	conn   *websocket.Conn
	send   chan protocol.Event
	joined map[string]struct{}
	logger zerolog.Logger
}

func NewClient(hub *Hub, conn *websocket.Conn, identity *auth.Identity, logger zerolog.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		ID:       id,
		Identity: identity,
		hub:      hub,
		conn:     conn,
		send:     make(chan protocol.Event, sendQueueSize),
		joined:   make(map[string]struct{}),
		logger:   logger.With().Str("socket_id", id).Logger(),
	}
}

func (c *Client) trySend(ev protocol.Event) bool {
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

// Run drives both pumps and blocks until the connection closes. Cleanup of
// group membership happens exactly once, whichever pump exits first.
func (c *Client) Run() {
	c.logger.Info().Msg("websocket connected")
	done := make(chan struct{})
	go c.writePump(done)
	c.readPump()
	close(done)
	c.hub.Disconnect(c)
	c.logger.Info().Msg("websocket disconnected")
}

func (c *Client) readPump() {
	c.conn.SetReadLimit(maxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		if msgType != websocket.TextMessage {
			continue
		}
		ev, err := protocol.ParseEvent(data)
		if err != nil {
			c.trySend(protocol.ErrorEvent("", "invalid_event", err.Error()))
			continue
		}
		c.hub.HandleEvent(c, ev)
	}
}

func (c *Client) writePump(done <-chan struct{}) {
	defer func() { _ = c.conn.Close() }()
	for {
		select {
		case <-done:
			return
		case ev := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteJSON(ev); err != nil {
				c.logger.Debug().Err(err).Msg("websocket write failed")
				return
			}
		}
	}
}
