package messaging

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/campuscircle/campuscircle-go/api"
	"github.com/campuscircle/campuscircle-go/shared/id"
	"github.com/campuscircle/campuscircle-go/shared/protocol"
)

// Realtime is the slice of the realtime client a session depends on.
type Realtime interface {
	OnMessage(subscriberID string, cb MessageCallback)
	OffMessage(subscriberID string)
	OnTyping(subscriberID string, cb TypingCallback)
	OffTyping(subscriberID string)
	OnReadReceipt(subscriberID string, cb ReadReceiptCallback)
	OffReadReceipt(subscriberID string)
	SendMessage(ctx context.Context, recipient, content string, kind protocol.MessageKind)
	SendTypingIndicator(ctx context.Context, recipient string, isTyping bool)
	SendReadReceipt(ctx context.Context, recipient, conversationID string)
}

var _ Realtime = (*Client)(nil)

// Backend is the REST system of record a session persists through.
type Backend interface {
	GetConversation(ctx context.Context, conversationID string) (*api.Conversation, error)
	GetConversationWith(ctx context.Context, username string) (*api.Conversation, error)
	SendMessage(ctx context.Context, conversationID, text string) (*api.Message, error)
	SendMessageToUser(ctx context.Context, recipient, text string) (*api.Conversation, error)
	MarkRead(ctx context.Context, conversationID string) error
}

var _ Backend = (*api.Client)(nil)

// Delivery tracks the two-phase state of an optimistic message.
type Delivery int

const (
	// DeliveryConfirmed covers history entries and server-acknowledged sends.
	DeliveryConfirmed Delivery = iota
	DeliveryPending
	DeliveryFailed
)

func (d Delivery) String() string {
	switch d {
	case DeliveryConfirmed:
		return "confirmed"
	case DeliveryPending:
		return "pending"
	case DeliveryFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Message is one entry in a conversation's ordered sequence.
type Message struct {
	ID        string
	Sender    string
	Text      string
	Timestamp time.Time
	Delivery  Delivery
}

type SessionState int

const (
	SessionLoading SessionState = iota
	SessionReady
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionLoading:
		return "loading"
	case SessionReady:
		return "ready"
	case SessionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type SessionOptions struct {
	// Identity is the local user's username.
	Identity string
	// Peer is the other participant.
	Peer string
	// ConversationID may be empty; it is adopted from the backend on first
	// fetch or first persisted send.
	ConversationID string

	// TypingIdle is the quiet period before "stopped typing" is published.
	TypingIdle time.Duration // default 2s
	// PeerTypingTimeout clears a stuck peer-typing flag after silence. The
	// wire protocol has no safeguard of its own, so a peer that dies
	// mid-type would otherwise leave the flag set forever.
	PeerTypingTimeout time.Duration // default 5s

	// OnChange, when set, is invoked after every visible state change.
	OnChange func()
}

// Session orchestrates one open conversation: REST-fetched history,
// optimistic local sends reconciled with server confirmations, inbound
// realtime events filtered to the peer, and the typing debounce.
//
// Sessions share the process-wide realtime client; closing a session only
// removes its own registrations.
type Session struct {
	rt      Realtime
	backend Backend
	opts    SessionOptions
	subID   string

	debouncer *TypingDebouncer

	mu         sync.Mutex
	state      SessionState
	messages   []Message
	convID     string
	peerTyping bool
	peerLast   time.Time
	peerTimer  *time.Timer
	peerReadAt time.Time
}

func NewSession(rt Realtime, backend Backend, opts SessionOptions) *Session {
	if opts.TypingIdle == 0 {
		opts.TypingIdle = 2 * time.Second
	}
	if opts.PeerTypingTimeout == 0 {
		opts.PeerTypingTimeout = 5 * time.Second
	}

	s := &Session{
		rt:      rt,
		backend: backend,
		opts:    opts,
		subID:   id.NewSession(),
		convID:  opts.ConversationID,
		state:   SessionLoading,
	}
	s.debouncer = NewTypingDebouncer(opts.TypingIdle, func(isTyping bool) {
		s.rt.SendTypingIndicator(context.Background(), s.opts.Peer, isTyping)
	})
	return s
}

// Open fetches history, marks the conversation read and registers for
// realtime events. Fetch failures are logged, not returned: the session
// still becomes Ready and stays usable for sending.
func (s *Session) Open(ctx context.Context) {
	conv, err := s.fetchConversation(ctx)
	if err != nil {
		slog.Error("session: fetch history failed", "peer", s.opts.Peer, "error", err)
	}

	s.mu.Lock()
	if conv != nil {
		s.convID = conv.ID
		s.messages = make([]Message, 0, len(conv.Messages))
		for _, m := range conv.Messages {
			s.messages = append(s.messages, Message{
				ID:        m.ID,
				Sender:    m.Sender,
				Text:      m.Text,
				Timestamp: m.Timestamp,
			})
		}
	}
	convID := s.convID
	s.state = SessionReady
	s.mu.Unlock()

	if convID != "" {
		if err := s.backend.MarkRead(ctx, convID); err != nil {
			slog.Error("session: mark read failed", "conversation_id", convID, "error", err)
		}
		s.rt.SendReadReceipt(ctx, s.opts.Peer, convID)
	}

	s.rt.OnMessage(s.subID, s.handleMessage)
	s.rt.OnTyping(s.subID, s.handleTyping)
	s.rt.OnReadReceipt(s.subID, s.handleReadReceipt)

	s.notifyChange()
}

func (s *Session) fetchConversation(ctx context.Context) (*api.Conversation, error) {
	s.mu.Lock()
	convID := s.convID
	s.mu.Unlock()

	if convID != "" {
		return s.backend.GetConversation(ctx, convID)
	}
	return s.backend.GetConversationWith(ctx, s.opts.Peer)
}

// Send appends an optimistic message, publishes it best-effort over the
// realtime channel and persists it via REST. On REST failure the optimistic
// entry is retained and marked Failed; the returned error reports the
// persistence failure.
func (s *Session) Send(ctx context.Context, text string) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, nil
	}

	msg := Message{
		ID:        id.NewMessage(),
		Sender:    s.opts.Identity,
		Text:      text,
		Timestamp: time.Now().UTC(),
		Delivery:  DeliveryPending,
	}

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	convID := s.convID
	s.mu.Unlock()
	s.notifyChange()

	// Sending ends the current typing pause.
	s.debouncer.Stop()

	// Best effort; a warning no-op when disconnected.
	s.rt.SendMessage(ctx, s.opts.Peer, text, protocol.KindText)

	var restErr error
	if convID != "" {
		_, restErr = s.backend.SendMessage(ctx, convID, text)
	} else {
		var conv *api.Conversation
		conv, restErr = s.backend.SendMessageToUser(ctx, s.opts.Peer, text)
		if restErr == nil && conv != nil {
			s.mu.Lock()
			s.convID = conv.ID
			s.mu.Unlock()
		}
	}

	if restErr != nil {
		slog.Error("session: persist message failed", "peer", s.opts.Peer, "error", restErr)
		msg.Delivery = DeliveryFailed
	} else {
		msg.Delivery = DeliveryConfirmed
	}
	s.setDelivery(msg.ID, msg.Delivery)
	s.notifyChange()

	return msg, restErr
}

func (s *Session) setDelivery(msgID string, d Delivery) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].ID == msgID {
			s.messages[i].Delivery = d
			return
		}
	}
}

// Keystroke records local input activity, driving the typing debounce.
func (s *Session) Keystroke() {
	s.debouncer.Keystroke()
}

func (s *Session) handleMessage(ctx context.Context, pm protocol.ChatMessage) {
	if pm.Sender != s.opts.Peer && pm.Recipient != s.opts.Peer {
		return
	}

	msgID := pm.ID
	if msgID == "" {
		msgID = id.NewMessage()
	}

	s.mu.Lock()
	for _, m := range s.messages {
		// Identifier equality is the only dedup rule.
		if m.ID == msgID {
			s.mu.Unlock()
			return
		}
	}
	ts := pm.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	s.messages = append(s.messages, Message{
		ID:        msgID,
		Sender:    pm.Sender,
		Text:      pm.Content,
		Timestamp: ts,
	})
	s.mu.Unlock()

	s.notifyChange()
}

func (s *Session) handleTyping(ctx context.Context, ind protocol.TypingIndicator) {
	if ind.Sender != s.opts.Peer {
		return
	}

	s.mu.Lock()
	s.peerTyping = ind.IsTyping
	if ind.IsTyping {
		s.peerLast = time.Now()
		if s.peerTimer == nil {
			s.peerTimer = time.AfterFunc(s.opts.PeerTypingTimeout, s.clearPeerTyping)
		} else {
			s.peerTimer.Reset(s.opts.PeerTypingTimeout)
		}
	} else if s.peerTimer != nil {
		s.peerTimer.Stop()
	}
	s.mu.Unlock()

	s.notifyChange()
}

// clearPeerTyping is the safeguard for a peer that went silent without
// publishing isTyping=false.
func (s *Session) clearPeerTyping() {
	s.mu.Lock()
	if !s.peerTyping {
		s.mu.Unlock()
		return
	}
	// A fresh indicator may have arrived while this expiry was already in
	// flight; its Reset could not cancel us, so re-arm for the remainder.
	if remaining := s.opts.PeerTypingTimeout - time.Since(s.peerLast); remaining > 0 {
		s.peerTimer.Reset(remaining)
		s.mu.Unlock()
		return
	}
	s.peerTyping = false
	s.mu.Unlock()

	s.notifyChange()
}

func (s *Session) handleReadReceipt(ctx context.Context, rr protocol.ReadReceipt) {
	if rr.Sender != s.opts.Peer {
		return
	}

	s.mu.Lock()
	if s.convID != "" && rr.ConversationID != "" && rr.ConversationID != s.convID {
		s.mu.Unlock()
		return
	}
	s.peerReadAt = time.Now().UTC()
	s.mu.Unlock()

	s.notifyChange()
}

// Messages returns a snapshot of the conversation sequence.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Session) PeerTyping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peerTyping
}

// PeerReadAt reports when the peer last acknowledged reading the
// conversation; zero when no receipt has arrived.
func (s *Session) PeerReadAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peerReadAt
}

func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.convID
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Peer() string {
	return s.opts.Peer
}

// Close removes this session's registrations and cancels its timers. The
// shared connection is left alone: other sessions may still be using it.
func (s *Session) Close() {
	s.rt.OffMessage(s.subID)
	s.rt.OffTyping(s.subID)
	s.rt.OffReadReceipt(s.subID)

	s.debouncer.Cancel()

	s.mu.Lock()
	if s.peerTimer != nil {
		s.peerTimer.Stop()
	}
	s.state = SessionClosed
	s.mu.Unlock()
}

func (s *Session) notifyChange() {
	if s.opts.OnChange != nil {
		s.opts.OnChange()
	}
}
