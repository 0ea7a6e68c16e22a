// Package testhelpers provides common utilities and helper functions for testing the chat relay.
//
// It starts servers on ephemeral ports and offers small TCP and WebSocket
// clients that speak the relay protocol, so integration tests read as
// conversations instead of socket plumbing.
package testhelpers

import (
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/Tyrowin/chatrelay/internal/config"
	"github.com/Tyrowin/chatrelay/internal/protocol"
	"github.com/Tyrowin/chatrelay/internal/server"
	"github.com/gorilla/websocket"
)

// DefaultTimeout bounds every wait performed by the helpers.
const DefaultTimeout = 2 * time.Second

// TestConfig returns a configuration bound to loopback ephemeral ports with
// rate limiting disabled.
func TestConfig() config.Config {
	cfg := config.Default()
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.HTTP.AllowedOrigins = []string{"http://localhost:8080"}
	cfg.RateLimit.Burst = 0
	cfg.Shutdown.Timeout = 2 * time.Second
	return cfg
}

// StartServer starts a relay with cfg and shuts it down when the test ends.
func StartServer(t *testing.T, cfg config.Config) *server.Server {
	t.Helper()

	srv := server.New(cfg)
	if err := srv.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() {
		_ = srv.Shutdown(cfg.Shutdown.Timeout)
	})
	return srv
}

// Client is a protocol-speaking test client. Incoming messages are read by a
// background goroutine so waits can time out without breaking the stream.
type Client struct {
	t        *testing.T
	send     func(protocol.Message) error
	sendRaw  func([]byte) error
	close    func() error
	incoming chan protocol.Message
}

// Dial connects a TCP client to addr.
func Dial(t *testing.T, addr string) *Client {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, DefaultTimeout)
	if err != nil {
		t.Fatalf("Failed to connect to %s: %v", addr, err)
	}

	c := &Client{
		t: t,
		send: func(msg protocol.Message) error {
			frame, err := protocol.Encode(msg, 0)
			if err != nil {
				return err
			}
			_, err = conn.Write(frame)
			return err
		},
		sendRaw: func(data []byte) error {
			_, err := conn.Write(data)
			return err
		},
		close:    conn.Close,
		incoming: make(chan protocol.Message, 256),
	}

	dec := protocol.NewDecoder(conn, 0)
	go func() {
		defer close(c.incoming)
		for {
			msg, err := dec.Next()
			if err != nil {
				return
			}
			c.incoming <- msg
		}
	}()

	t.Cleanup(func() { _ = c.Close() })
	return c
}

// DialWebSocket connects a WebSocket client to url with an allowed Origin header.
func DialWebSocket(t *testing.T, url string) *Client {
	t.Helper()

	conn, err := ConnectWebSocket(url)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket to %s: %v", url, err)
	}

	c := &Client{
		t:        t,
		send:     func(msg protocol.Message) error { return conn.WriteJSON(msg) },
		sendRaw:  func(data []byte) error { return conn.WriteMessage(websocket.TextMessage, data) },
		close:    conn.Close,
		incoming: make(chan protocol.Message, 256),
	}

	go func() {
		defer close(c.incoming)
		for {
			var msg protocol.Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			c.incoming <- msg
		}
	}()

	t.Cleanup(func() { _ = c.Close() })
	return c
}

// ConnectWebSocket creates a WebSocket connection to the specified URL.
// It returns the connection or an error if connection fails.
func ConnectWebSocket(url string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: DefaultTimeout,
	}

	headers := http.Header{}
	headers.Set("Origin", "http://localhost:8080")

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// Send writes msg or fails the test.
func (c *Client) Send(msg protocol.Message) {
	c.t.Helper()
	if err := c.send(msg); err != nil {
		c.t.Fatalf("Failed to send %s: %v", msg.Type, err)
	}
}

// SendRaw writes bytes as-is, bypassing the encoder.
func (c *Client) SendRaw(data []byte) {
	c.t.Helper()
	if err := c.sendRaw(data); err != nil {
		c.t.Fatalf("Failed to send raw data: %v", err)
	}
}

// Receive returns the next message, or false if none arrives within timeout
// or the connection closed.
func (c *Client) Receive(timeout time.Duration) (protocol.Message, bool) {
	select {
	case msg, ok := <-c.incoming:
		return msg, ok
	case <-time.After(timeout):
		return protocol.Message{}, false
	}
}

// Expect returns the next message and fails the test unless it has kind.
func (c *Client) Expect(kind protocol.Kind) protocol.Message {
	c.t.Helper()
	msg, ok := c.Receive(DefaultTimeout)
	if !ok {
		c.t.Fatalf("Expected %s message, got nothing", kind)
	}
	if msg.Type != kind {
		c.t.Fatalf("Expected %s message, got %+v", kind, msg)
	}
	return msg
}

// ExpectNoMessage fails the test if anything arrives within d.
func (c *Client) ExpectNoMessage(d time.Duration) {
	c.t.Helper()
	if msg, ok := c.Receive(d); ok {
		c.t.Errorf("Expected no message, got %+v", msg)
	}
}

// ExpectClosed fails the test unless the server closes the connection within timeout.
func (c *Client) ExpectClosed(timeout time.Duration) {
	c.t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case _, ok := <-c.incoming:
			if !ok {
				return
			}
		case <-deadline:
			c.t.Fatal("Expected connection to be closed by the server")
		}
	}
}

// Login sends a login for name and returns the login_response.
func (c *Client) Login(name string) protocol.Message {
	c.t.Helper()
	c.Send(protocol.Message{Type: protocol.KindLogin, Username: name})
	return c.Expect(protocol.KindLoginResponse)
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.close()
}

// LoginTCP dials addr and logs in as name, failing the test unless the login succeeds.
func LoginTCP(t *testing.T, addr, name string) *Client {
	t.Helper()
	c := Dial(t, addr)
	if resp := c.Login(name); resp.Status != protocol.StatusSuccess {
		t.Fatalf("Login as %s failed: %+v", name, resp)
	}
	return c
}
