package chat

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Tyrowin/chatrelay/internal/metrics"
	"github.com/Tyrowin/chatrelay/internal/protocol"
)

// Router applies the chat protocol to decoded messages. A session with no
// identity is unauthenticated and may only log in.
type Router struct {
	sessions     *Registry
	groups       *Groups
	history      *History
	maxFrameSize int
	now          func() time.Time
}

// NewRouter returns a Router over the given registries. Outgoing payloads
// larger than maxFrameSize fail to encode.
func NewRouter(sessions *Registry, groups *Groups, history *History, maxFrameSize int) *Router {
	return &Router{
		sessions:     sessions,
		groups:       groups,
		history:      history,
		maxFrameSize: maxFrameSize,
		now:          time.Now,
	}
}

// Sessions returns the registry of online identities.
func (r *Router) Sessions() *Registry { return r.sessions }

// Groups returns the group registry.
func (r *Router) Groups() *Groups { return r.groups }

// History returns the message history.
func (r *Router) History() *History { return r.history }

// Handle routes one message received on s. Unknown kinds, and anything other
// than login before authentication, are ignored. An error means a reply or
// delivery could not be encoded; nothing was delivered in that case.
func (r *Router) Handle(s *Session, msg protocol.Message) error {
	metrics.MessagesReceived.WithLabelValues(kindLabel(msg.Type)).Inc()

	if msg.Type == protocol.KindLogin {
		return r.handleLogin(s, msg)
	}

	identity := s.Identity()
	if identity == "" {
		if isKnownKind(msg.Type) {
			log.Printf("Ignoring %s from unauthenticated %s", msg.Type, s)
		}
		return nil
	}

	switch msg.Type {
	case protocol.KindMessage:
		return r.handleMessage(s, identity, msg)
	case protocol.KindGroupCreate:
		return r.handleGroupCreate(identity, msg)
	case protocol.KindGroupMessage:
		return r.handleGroupMessage(identity, msg)
	case protocol.KindFileTransfer:
		return r.handleFileTransfer(identity, msg)
	case protocol.KindGetUsers:
		return r.reply(s, protocol.UsersList(r.sessions.Snapshot()))
	default:
		return nil
	}
}

// Disconnect removes s from the registry and tells everyone still online.
// Calling it for an unauthenticated or already removed session does nothing.
func (r *Router) Disconnect(s *Session) error {
	identity := s.Identity()
	if identity == "" {
		return nil
	}

	removed, err := r.sessions.Leave(identity, s, func(online []string, others []*Session) error {
		metrics.OnlineUsers.Set(float64(len(online)))
		payload, err := r.encode(protocol.Presence(protocol.KindUserLeft, identity, online))
		if err != nil {
			return err
		}
		for _, other := range others {
			other.Deliver(payload)
		}
		return nil
	})
	if removed {
		log.Printf("%s disconnected", s)
	}
	return err
}

func (r *Router) handleLogin(s *Session, msg protocol.Message) error {
	if current := s.Identity(); current != "" {
		metrics.LoginFailures.WithLabelValues("already_logged_in").Inc()
		return r.reply(s, protocol.LoginError(fmt.Sprintf("already logged in as %s", current)))
	}

	username := msg.Username
	if strings.TrimSpace(username) == "" {
		metrics.LoginFailures.WithLabelValues("empty_username").Inc()
		return r.reply(s, protocol.LoginError("username is required"))
	}

	err := r.sessions.Join(username, s, func(online []string, others []*Session) error {
		reply, err := r.encode(protocol.LoginResponse(username, online))
		if err != nil {
			return err
		}
		joined, err := r.encode(protocol.Presence(protocol.KindUserJoined, username, online))
		if err != nil {
			return err
		}

		s.setIdentity(username)
		s.Deliver(reply)
		for _, other := range others {
			other.Deliver(joined)
		}
		metrics.OnlineUsers.Set(float64(len(online)))
		return nil
	})

	switch {
	case errors.Is(err, ErrAlreadyOnline):
		metrics.LoginFailures.WithLabelValues("already_online").Inc()
		log.Printf("Rejected login for %q from %s: already online", username, s.RemoteAddr())
		return r.reply(s, protocol.LoginError(fmt.Sprintf("username %s is already online", username)))
	case err != nil:
		metrics.LoginFailures.WithLabelValues("internal").Inc()
		return fmt.Errorf("login %q: %w", username, err)
	}

	log.Printf("%s logged in from %s", username, s.RemoteAddr())
	return nil
}

func (r *Router) handleMessage(s *Session, sender string, msg protocol.Message) error {
	out := protocol.Message{
		Type:      protocol.KindMessage,
		Sender:    sender,
		Recipient: msg.Recipient,
		Content:   msg.Content,
		Timestamp: r.timestamp(),
	}
	payload, err := r.encode(out)
	if err != nil {
		return err
	}

	if msg.Recipient == protocol.BroadcastRecipient {
		delivered := r.sessions.Broadcast(payload, s)
		log.Printf("Broadcast from %s delivered to %d users", sender, delivered)
	} else if !r.deliverTo(msg.Recipient, payload) {
		log.Printf("Dropped message from %s: %q is not online", sender, msg.Recipient)
	}

	r.history.Append(out)
	return r.reply(s, protocol.MessageSent())
}

func (r *Router) handleGroupCreate(creator string, msg protocol.Message) error {
	if msg.GroupName == "" {
		log.Printf("Ignoring group_create without a name from %s", creator)
		return nil
	}

	members := r.groups.Create(msg.GroupName, msg.Members)
	payload, err := r.encode(protocol.Message{
		Type:      protocol.KindGroupCreated,
		GroupName: msg.GroupName,
		Members:   members,
	})
	if err != nil {
		return err
	}

	for _, member := range members {
		r.deliverTo(member, payload)
	}
	log.Printf("Group %q created by %s with %d members", msg.GroupName, creator, len(members))
	return nil
}

func (r *Router) handleGroupMessage(sender string, msg protocol.Message) error {
	members, ok := r.groups.MembersOf(msg.GroupName)
	if !ok {
		return nil
	}

	payload, err := r.encode(protocol.Message{
		Type:      protocol.KindGroupMessage,
		Sender:    sender,
		GroupName: msg.GroupName,
		Content:   msg.Content,
		Timestamp: r.timestamp(),
	})
	if err != nil {
		return err
	}

	for _, member := range members {
		if member == sender {
			continue
		}
		r.deliverTo(member, payload)
	}
	return nil
}

func (r *Router) handleFileTransfer(sender string, msg protocol.Message) error {
	payload, err := r.encode(protocol.Message{
		Type:      protocol.KindFileTransfer,
		Sender:    sender,
		Filename:  msg.Filename,
		Filedata:  msg.Filedata,
		Timestamp: r.timestamp(),
	})
	if err != nil {
		return err
	}

	if r.deliverTo(msg.Recipient, payload) {
		log.Printf("File %q relayed from %s to %s", msg.Filename, sender, msg.Recipient)
	}
	return nil
}

func (r *Router) deliverTo(identity string, payload []byte) bool {
	peer, ok := r.sessions.Lookup(identity)
	if !ok {
		return false
	}
	return peer.Deliver(payload)
}

func (r *Router) reply(s *Session, msg protocol.Message) error {
	payload, err := r.encode(msg)
	if err != nil {
		return err
	}
	s.Deliver(payload)
	return nil
}

func (r *Router) encode(msg protocol.Message) ([]byte, error) {
	return protocol.Marshal(msg, r.maxFrameSize)
}

func (r *Router) timestamp() string {
	return protocol.FormatTimestamp(r.now())
}

func isKnownKind(kind protocol.Kind) bool {
	switch kind {
	case protocol.KindLogin, protocol.KindMessage, protocol.KindGroupCreate,
		protocol.KindGroupMessage, protocol.KindFileTransfer, protocol.KindGetUsers:
		return true
	}
	return false
}

// kindLabel keeps the metrics label set closed.
func kindLabel(kind protocol.Kind) string {
	if isKnownKind(kind) {
		return string(kind)
	}
	return "unknown"
}
