// Package chat holds the server-side chat state: sessions, the registry of
// who is online, named groups, the message history and the router that
// applies the protocol to them.
package chat

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Tyrowin/chatrelay/internal/metrics"
	"github.com/Tyrowin/chatrelay/internal/protocol"
	"github.com/google/uuid"
)

// DefaultSendQueueSize is the outbound buffer used when none is configured.
const DefaultSendQueueSize = 256

// Transport carries whole message payloads for one connection. ReadPayload
// is only called from the session's receive loop and WritePayload only from
// its write pump.
type Transport interface {
	ReadPayload() ([]byte, error)
	WritePayload(payload []byte) error
	Close() error
	RemoteAddr() string
}

// Session is the server-side state of one connected peer.
type Session struct {
	id          string
	transport   Transport
	connectedAt time.Time
	send        chan []byte

	mu       sync.Mutex
	identity string
	closed   bool

	closeOnce sync.Once
}

// NewSession wraps transport in a Session with an outbound queue of
// queueSize payloads.
func NewSession(transport Transport, queueSize int) *Session {
	if queueSize <= 0 {
		queueSize = DefaultSendQueueSize
	}
	return &Session{
		id:          uuid.NewString(),
		transport:   transport,
		connectedAt: time.Now(),
		send:        make(chan []byte, queueSize),
	}
}

// ID returns the unique id assigned when the connection was accepted.
func (s *Session) ID() string { return s.id }

// RemoteAddr returns the peer address for logging.
func (s *Session) RemoteAddr() string { return s.transport.RemoteAddr() }

// Identity returns the logged in name, or "" before login.
func (s *Session) Identity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// Authenticated reports whether the session completed a login.
func (s *Session) Authenticated() bool {
	return s.Identity() != ""
}

func (s *Session) setIdentity(identity string) {
	s.mu.Lock()
	s.identity = identity
	s.mu.Unlock()
}

// String identifies the session in logs by name, address and id.
func (s *Session) String() string {
	if identity := s.Identity(); identity != "" {
		return fmt.Sprintf("%s (%s, session %s)", identity, s.RemoteAddr(), s.id)
	}
	return fmt.Sprintf("%s (session %s)", s.RemoteAddr(), s.id)
}

// Lifetime returns how long the session has been connected.
func (s *Session) Lifetime() time.Duration {
	return time.Since(s.connectedAt)
}

// Deliver queues payload for the write pump without blocking. A session
// whose queue is full stops accepting payloads and is closed in the
// background, which ends its receive loop.
func (s *Session) Deliver(payload []byte) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	select {
	case s.send <- payload:
		s.mu.Unlock()
		metrics.PayloadsDelivered.Inc()
		return true
	default:
	}
	s.closed = true
	s.mu.Unlock()

	metrics.SlowSessionsClosed.Inc()
	log.Printf("Send queue full for %s; closing session", s)
	// Closing may block on the transport; callers can hold the registry lock.
	go func() { _ = s.Close() }()
	return false
}

// ReadMessage blocks for the next payload and decodes it. Errors wrapping
// protocol.ErrMalformed concern that payload only.
func (s *Session) ReadMessage() (protocol.Message, error) {
	payload, err := s.transport.ReadPayload()
	if err != nil {
		return protocol.Message{}, err
	}
	return protocol.Unmarshal(payload)
}

// WritePump writes queued payloads in order until the session is closed or
// a write fails.
func (s *Session) WritePump() {
	for payload := range s.send {
		if err := s.transport.WritePayload(payload); err != nil {
			log.Printf("Error writing to %s: %v", s, err)
			_ = s.Close()
			return
		}
	}
}

// Close stops delivery and closes the transport, which unblocks a pending
// read. Only the first call does anything.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.send)
		s.mu.Unlock()
		err = s.transport.Close()
	})
	return err
}
