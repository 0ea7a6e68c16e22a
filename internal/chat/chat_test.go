package chat

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/Tyrowin/chatrelay/internal/protocol"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	addr string

	mu       sync.Mutex
	writes   [][]byte
	closed   bool
	done     chan struct{}
	closeErr error
}

func newFakeTransport(addr string) *fakeTransport {
	return &fakeTransport{addr: addr, done: make(chan struct{})}
}

func (f *fakeTransport) ReadPayload() ([]byte, error) {
	<-f.done
	return nil, io.EOF
}

func (f *fakeTransport) WritePayload(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return io.ErrClosedPipe
	}
	f.writes = append(f.writes, append([]byte(nil), payload...))
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.done)
	}
	return f.closeErr
}

func (f *fakeTransport) RemoteAddr() string { return f.addr }

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func newTestSession(t *testing.T, addr string) (*Session, *fakeTransport) {
	t.Helper()
	transport := newFakeTransport(addr)
	return NewSession(transport, 64), transport
}

// queued drains and decodes everything waiting in the session's send queue.
func queued(t *testing.T, s *Session) []protocol.Message {
	t.Helper()
	var out []protocol.Message
	for {
		select {
		case payload, ok := <-s.send:
			if !ok {
				return out
			}
			msg, err := protocol.Unmarshal(payload)
			require.NoError(t, err)
			out = append(out, msg)
		default:
			return out
		}
	}
}

func kinds(msgs []protocol.Message) []protocol.Kind {
	out := make([]protocol.Kind, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, msg.Type)
	}
	return out
}

func fixedClock() time.Time {
	return time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)
}
