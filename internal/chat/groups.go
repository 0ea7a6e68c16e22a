package chat

import (
	"sort"
	"sync"
)

// Groups maps group names to their member identities. Groups live until
// the process exits.
type Groups struct {
	mu     sync.RWMutex
	groups map[string][]string
}

// NewGroups returns an empty group registry.
func NewGroups() *Groups {
	return &Groups{groups: make(map[string][]string)}
}

// Create stores name with members, replacing any previous group of the same
// name. Duplicate and blank members are dropped; the stored list is returned.
func (g *Groups) Create(name string, members []string) []string {
	set := make([]string, 0, len(members))
	seen := make(map[string]struct{}, len(members))
	for _, member := range members {
		if member == "" {
			continue
		}
		if _, dup := seen[member]; dup {
			continue
		}
		seen[member] = struct{}{}
		set = append(set, member)
	}

	g.mu.Lock()
	g.groups[name] = set
	g.mu.Unlock()

	return append([]string(nil), set...)
}

// MembersOf returns a copy of the members of name and whether it exists.
func (g *Groups) MembersOf(name string) ([]string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	members, ok := g.groups[name]
	if !ok {
		return nil, false
	}
	return append([]string(nil), members...), true
}

// Names returns the group names in ascending order.
func (g *Groups) Names() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	names := make([]string, 0, len(g.groups))
	for name := range g.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
