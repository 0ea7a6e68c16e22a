package chat

import (
	"testing"

	"github.com/Tyrowin/chatrelay/internal/protocol"
	"github.com/stretchr/testify/assert"
)

func TestGroupsCreateCollapsesDuplicates(t *testing.T) {
	t.Parallel()

	groups := NewGroups()
	members := groups.Create("team", []string{"alice", "bob", "alice", "", "carol"})
	assert.Equal(t, []string{"alice", "bob", "carol"}, members)

	got, ok := groups.MembersOf("team")
	assert.True(t, ok)
	assert.Equal(t, members, got)
}

func TestGroupsCreateKeepsListedOrder(t *testing.T) {
	t.Parallel()

	groups := NewGroups()
	members := groups.Create("ops", []string{"zoe", "bob", "zoe", "alice"})
	assert.Equal(t, []string{"zoe", "bob", "alice"}, members)
}

func TestGroupsCreateLastWriterWins(t *testing.T) {
	t.Parallel()

	groups := NewGroups()
	groups.Create("team", []string{"alice", "bob"})
	groups.Create("team", []string{"carol"})

	got, ok := groups.MembersOf("team")
	assert.True(t, ok)
	assert.Equal(t, []string{"carol"}, got)
	assert.Equal(t, []string{"team"}, groups.Names())
}

func TestGroupsMembersOfUnknown(t *testing.T) {
	t.Parallel()

	got, ok := NewGroups().MembersOf("nope")
	assert.False(t, ok)
	assert.Empty(t, got)
}

func TestGroupsMembersOfReturnsCopy(t *testing.T) {
	t.Parallel()

	groups := NewGroups()
	groups.Create("team", []string{"alice"})
	got, _ := groups.MembersOf("team")
	got[0] = "mallory"

	again, _ := groups.MembersOf("team")
	assert.Equal(t, []string{"alice"}, again)
}

func TestHistoryLimit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{name: "unbounded", limit: 0, want: []string{"1", "2", "3", "4"}},
		{name: "bounded", limit: 2, want: []string{"3", "4"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHistory(tc.limit)
			for _, content := range []string{"1", "2", "3", "4"} {
				h.Append(protocol.Message{Type: protocol.KindMessage, Content: content})
			}

			var got []string
			for _, msg := range h.Snapshot() {
				got = append(got, msg.Content)
			}
			assert.Equal(t, tc.want, got)
			assert.Equal(t, len(tc.want), h.Len())
		})
	}
}
