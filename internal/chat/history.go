package chat

import (
	"sync"

	"github.com/Tyrowin/chatrelay/internal/protocol"
)

// History records routed chat messages for auditing. The protocol never
// reads it back.
type History struct {
	mu      sync.Mutex
	entries []protocol.Message
	limit   int
}

// NewHistory returns a History keeping at most limit entries; zero or less
// keeps everything.
func NewHistory(limit int) *History {
	return &History{limit: limit}
}

// Append records msg, evicting the oldest entry when the limit is reached.
func (h *History) Append(msg protocol.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries, msg)
	if h.limit > 0 && len(h.entries) > h.limit {
		h.entries = append(h.entries[:0:0], h.entries[len(h.entries)-h.limit:]...)
	}
}

// Len returns the number of recorded messages.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Snapshot returns a copy of the recorded messages, oldest first.
func (h *History) Snapshot() []protocol.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]protocol.Message(nil), h.entries...)
}
