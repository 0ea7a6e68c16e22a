// Package protocol defines the chat wire messages and the length-prefixed
// framing used to carry them over a byte stream.
package protocol

import (
	"encoding/json"
	"time"
)

// Kind identifies the variant carried by a Message.
type Kind string

// The closed set of message kinds understood by the relay.
const (
	KindLogin         Kind = "login"
	KindLoginResponse Kind = "login_response"
	KindMessage       Kind = "message"
	KindMessageSent   Kind = "message_sent"
	KindGroupCreate   Kind = "group_create"
	KindGroupCreated  Kind = "group_created"
	KindGroupMessage  Kind = "group_message"
	KindFileTransfer  Kind = "file_transfer"
	KindGetUsers      Kind = "get_users"
	KindUsersList     Kind = "users_list"
	KindUserJoined    Kind = "user_joined"
	KindUserLeft      Kind = "user_left"
)

// Status values carried by login_response and message_sent.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// BroadcastRecipient addresses a chat message to every other online user.
const BroadcastRecipient = "all"

// TimestampLayout is the format of server-assigned timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

// Message is the decoded form of every application message. Only the fields
// relevant to Type are set. On the wire the fields a kind requires are always
// present, even when empty; the rest are omitted when empty.
type Message struct {
	Type        Kind     `json:"type"`
	Username    string   `json:"username"`
	Status      string   `json:"status"`
	Message     string   `json:"message"`
	OnlineUsers []string `json:"online_users"`
	Sender      string   `json:"sender"`
	Recipient   string   `json:"recipient"`
	Content     string   `json:"content"`
	Timestamp   string   `json:"timestamp"`
	GroupName   string   `json:"group_name"`
	Members     []string `json:"members"`
	Filename    string   `json:"filename"`
	Filedata    string   `json:"filedata"`
	Users       []string `json:"users"`
}

// requiredFields lists, per kind, the keys written even when their value is
// empty. Kinds not listed only carry their non-empty fields.
var requiredFields = map[Kind][]string{
	KindLogin:         {"username"},
	KindLoginResponse: {"status", "online_users"},
	KindMessage:       {"recipient", "content"},
	KindMessageSent:   {"status"},
	KindGroupCreate:   {"group_name", "members"},
	KindGroupCreated:  {"group_name", "members"},
	KindGroupMessage:  {"group_name", "content"},
	KindFileTransfer:  {"filename", "filedata"},
	KindUsersList:     {"users"},
	KindUserJoined:    {"username", "online_users"},
	KindUserLeft:      {"username", "online_users"},
}

// MarshalJSON writes the keys required by m.Type plus every non-empty field.
// Required lists are written as [] rather than null.
func (m Message) MarshalJSON() ([]byte, error) {
	required := make(map[string]bool, 4)
	for _, key := range requiredFields[m.Type] {
		required[key] = true
	}

	fields := map[string]any{"type": m.Type}
	text := func(key, value string) {
		if value != "" || required[key] {
			fields[key] = value
		}
	}
	list := func(key string, value []string) {
		switch {
		case value != nil:
			fields[key] = value
		case required[key]:
			fields[key] = []string{}
		}
	}

	text("username", m.Username)
	text("status", m.Status)
	text("message", m.Message)
	list("online_users", m.OnlineUsers)
	text("sender", m.Sender)
	text("recipient", m.Recipient)
	text("content", m.Content)
	text("timestamp", m.Timestamp)
	text("group_name", m.GroupName)
	list("members", m.Members)
	text("filename", m.Filename)
	text("filedata", m.Filedata)
	list("users", m.Users)

	return json.Marshal(fields)
}

// FormatTimestamp renders t the way the relay stamps outgoing messages.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// LoginResponse builds a successful login reply.
func LoginResponse(username string, online []string) Message {
	return Message{
		Type:        KindLoginResponse,
		Status:      StatusSuccess,
		Message:     "Welcome " + username + "!",
		OnlineUsers: online,
	}
}

// LoginError builds a failed login reply with a human readable reason.
func LoginError(reason string) Message {
	return Message{Type: KindLoginResponse, Status: StatusError, Message: reason, OnlineUsers: []string{}}
}

// Presence builds a user_joined or user_left notification.
func Presence(kind Kind, username string, online []string) Message {
	return Message{Type: kind, Username: username, OnlineUsers: online}
}

// MessageSent acknowledges a chat message to its sender.
func MessageSent() Message {
	return Message{Type: KindMessageSent, Status: StatusSuccess}
}

// UsersList answers a get_users request.
func UsersList(users []string) Message {
	return Message{Type: KindUsersList, Users: users}
}
