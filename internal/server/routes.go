package server

import (
	"net/http"

	"github.com/Tyrowin/chatrelay/internal/metrics"
)

// SetupRoutes configures and returns an HTTP ServeMux with all application routes.
// It sets up handlers for the health check, the WebSocket gateway and metrics.
func (s *Server) SetupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.HealthHandler)
	mux.HandleFunc("/ws", s.WebSocketHandler)
	mux.Handle("/metrics", metrics.Handler())
	return mux
}
