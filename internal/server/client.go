package server

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Tyrowin/chatrelay/internal/protocol"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
)

// wsTransport carries one JSON payload per WebSocket text message and keeps
// the connection alive with pings.
type wsTransport struct {
	conn      *websocket.Conn
	addr      string
	done      chan struct{}
	closeOnce sync.Once
}

func newWSTransport(conn *websocket.Conn, addr string, maxFrameSize int) *wsTransport {
	conn.SetReadLimit(int64(maxFrameSize))
	t := &wsTransport{
		conn: conn,
		addr: addr,
		done: make(chan struct{}),
	}
	t.setupReadConnection()
	go t.keepAlive()
	return t
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (t *wsTransport) setupReadConnection() {
	if err := t.conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		log.Printf("Error setting initial read deadline for %s: %v", t.addr, err)
	}
	t.conn.SetPongHandler(func(string) error {
		return t.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
}

// keepAlive pings the peer until the transport is closed. WriteControl may
// run concurrently with the session's write pump.
func (t *wsTransport) keepAlive() {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			if err := t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("Error writing ping message to %s: %v", t.addr, err)
				}
				return
			}
		}
	}
}

func (t *wsTransport) ReadPayload() ([]byte, error) {
	messageType, payload, err := t.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if messageType != websocket.TextMessage {
		return nil, fmt.Errorf("%w: websocket message type %d", protocol.ErrMalformed, messageType)
	}
	return payload, nil
}

func (t *wsTransport) WritePayload(payload []byte) error {
	if err := t.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.TextMessage, payload)
}

// Close sends a close frame when possible and closes the connection.
func (t *wsTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = t.conn.Close()
	})
	return err
}

func (t *wsTransport) RemoteAddr() string {
	return t.addr
}
