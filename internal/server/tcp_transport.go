package server

import (
	"net"

	"github.com/Tyrowin/chatrelay/internal/protocol"
)

// tcpTransport carries length-prefixed JSON frames over a stream connection.
type tcpTransport struct {
	conn    net.Conn
	decoder *protocol.Decoder
}

func newTCPTransport(conn net.Conn, maxFrameSize int) *tcpTransport {
	return &tcpTransport{
		conn:    conn,
		decoder: protocol.NewDecoder(conn, maxFrameSize),
	}
}

func (t *tcpTransport) ReadPayload() ([]byte, error) {
	return t.decoder.NextPayload()
}

func (t *tcpTransport) WritePayload(payload []byte) error {
	_, err := t.conn.Write(protocol.Frame(payload))
	return err
}

func (t *tcpTransport) Close() error {
	return t.conn.Close()
}

func (t *tcpTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}
