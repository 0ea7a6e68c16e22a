package server

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"

	"github.com/Tyrowin/chatrelay/internal/chat"
	"github.com/Tyrowin/chatrelay/internal/config"
	"github.com/gorilla/websocket"
)

// Server owns the listeners, the chat state and every live connection.
type Server struct {
	cfg      config.Config
	router   *chat.Router
	upgrader websocket.Upgrader

	listener   net.Listener
	httpServer *http.Server
	httpLn     net.Listener

	mu       sync.Mutex
	sessions map[*chat.Session]struct{}
	closing  bool
	done     chan struct{}
	wg       sync.WaitGroup
}

// New builds a Server with fresh registries. Call Start to bind listeners.
func New(cfg config.Config) *Server {
	router := chat.NewRouter(
		chat.NewRegistry(),
		chat.NewGroups(),
		chat.NewHistory(cfg.History.Limit),
		cfg.Server.MaxFrameSize,
	)
	origins := newOriginPolicy(cfg.HTTP.AllowedOrigins)

	return &Server{
		cfg:    cfg,
		router: router,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.checkOrigin,
		},
		sessions: make(map[*chat.Session]struct{}),
		done:     make(chan struct{}),
	}
}

// Router exposes the chat router, mainly for inspection in tests.
func (s *Server) Router() *chat.Router {
	return s.router
}

// Start binds the TCP listener and, when configured, the HTTP listener, then
// serves both in the background. A bind failure is returned immediately.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Server.Addr, err)
	}
	s.listener = ln

	if s.cfg.HTTP.Addr != "" {
		httpLn, err := net.Listen("tcp", s.cfg.HTTP.Addr)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("listen on %s: %w", s.cfg.HTTP.Addr, err)
		}
		s.httpLn = httpLn
		s.httpServer = CreateServer(s.cfg.HTTP.Addr, s.SetupRoutes())
		go s.serveHTTP()
	}

	s.wg.Add(1)
	go s.acceptLoop(ln)

	log.Printf("Chat server listening on %s", ln.Addr())
	return nil
}

// Addr returns the bound TCP address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// HTTPAddr returns the bound HTTP address, or nil when HTTP is disabled.
func (s *Server) HTTPAddr() net.Addr {
	if s.httpLn == nil {
		return nil
	}
	return s.httpLn.Addr()
}
