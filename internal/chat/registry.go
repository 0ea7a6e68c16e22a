package chat

import (
	"errors"
	"sort"
	"sync"
)

var (
	// ErrAlreadyOnline is returned when a name is already held by a live session.
	ErrAlreadyOnline = errors.New("chat: identity already online")
	// ErrEmptyIdentity is returned for a blank login name.
	ErrEmptyIdentity = errors.New("chat: identity is empty")
)

// AnnounceFunc runs inside the registry's critical section with the online
// snapshot and every session other than the one being added or removed.
type AnnounceFunc func(online []string, others []*Session) error

// Registry maps each online identity to its session.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Register adds s under identity and returns the snapshot that includes it.
func (r *Registry) Register(identity string, s *Session) ([]string, error) {
	var online []string
	err := r.Join(identity, s, func(snapshot []string, _ []*Session) error {
		online = snapshot
		return nil
	})
	return online, err
}

// Join adds s under identity and, before releasing the lock, calls announce.
// If announce fails the insert is undone so no one observes it.
func (r *Registry) Join(identity string, s *Session, announce AnnounceFunc) error {
	if identity == "" {
		return ErrEmptyIdentity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[identity]; exists {
		return ErrAlreadyOnline
	}
	r.sessions[identity] = s

	if announce == nil {
		return nil
	}
	if err := announce(r.snapshotLocked(), r.othersLocked(s)); err != nil {
		delete(r.sessions, identity)
		return err
	}
	return nil
}

// Remove deletes identity if it is still held by s. It returns the snapshot
// after removal and whether an entry was deleted.
func (r *Registry) Remove(identity string, s *Session) ([]string, bool) {
	var online []string
	removed, _ := r.Leave(identity, s, func(snapshot []string, _ []*Session) error {
		online = snapshot
		return nil
	})
	if !removed {
		return r.Snapshot(), false
	}
	return online, true
}

// Leave deletes identity if it is still held by s and calls announce with the
// remaining sessions before releasing the lock. Removing an absent entry is a
// no-op and does not call announce.
func (r *Registry) Leave(identity string, s *Session, announce AnnounceFunc) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.sessions[identity]
	if !exists || current != s {
		return false, nil
	}
	delete(r.sessions, identity)

	if announce == nil {
		return true, nil
	}
	return true, announce(r.snapshotLocked(), r.othersLocked(nil))
}

// Lookup returns the session holding identity.
func (r *Registry) Lookup(identity string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[identity]
	return s, ok
}

// Snapshot returns the online identities in ascending order.
func (r *Registry) Snapshot() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

// Len returns the number of online identities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Broadcast delivers payload to every online session except exclude and
// returns how many accepted it.
func (r *Registry) Broadcast(payload []byte, exclude *Session) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	delivered := 0
	for _, s := range r.sessions {
		if s == exclude {
			continue
		}
		if s.Deliver(payload) {
			delivered++
		}
	}
	return delivered
}

func (r *Registry) snapshotLocked() []string {
	identities := make([]string, 0, len(r.sessions))
	for identity := range r.sessions {
		identities = append(identities, identity)
	}
	sort.Strings(identities)
	return identities
}

func (r *Registry) othersLocked(exclude *Session) []*Session {
	others := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		if s != exclude {
			others = append(others, s)
		}
	}
	return others
}
