package server

import (
	"fmt"
	"log"
	"net/http"

	"github.com/Tyrowin/chatrelay/internal/chat"
)

// WebSocketHandler upgrades the request and serves the chat protocol on the
// resulting connection, one JSON message per text frame.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	transport := newWSTransport(conn, r.RemoteAddr, s.cfg.Server.MaxFrameSize)
	session := chat.NewSession(transport, s.cfg.Server.SendQueueSize)
	log.Printf("New WebSocket connection from %s", session)
	if !s.spawn(session, transportWebSocket) {
		_ = transport.Close()
	}
}

// HealthHandler reports liveness and the number of online users.
func (s *Server) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "chatrelay is running! %d users online\n", s.router.Sessions().Len())
}
