package httpapi

import (
	"net/http"

	"github.com/ndimarco/aria/internal/auth"
	"github.com/ndimarco/aria/internal/relay"
)

// handleWS upgrades the request and runs the signaling connection until the
// peer goes away. Authentication is optional: anonymous callers may join
// unowned sessions, the relay enforces nothing further per event.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the failure response.
		return
	}

	identity, _ := auth.IdentityFrom(r.Context())
	client := relay.NewClient(s.hub, conn, identity, s.logger)

	s.wsConns.Add(1)
	s.metrics.ActiveConnections.Inc()
	defer func() {
		s.wsConns.Add(-1)
		s.metrics.ActiveConnections.Dec()
	}()

	client.Run()
}
