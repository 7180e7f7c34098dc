// Package messaging implements the CampusCircle realtime messaging core: a
// single authenticated WebSocket connection per identity, three standing
// per-user subscriptions (messages, typing, read receipts), fan-out to
// registered subscribers, and best-effort outbound publishing. The REST
// backend stays the system of record; this channel is a latency
// optimization on top of it.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/campuscircle/campuscircle-go/auth"
	"github.com/campuscircle/campuscircle-go/shared/backoff"
	"github.com/campuscircle/campuscircle-go/shared/id"
	"github.com/campuscircle/campuscircle-go/shared/otel"
	"github.com/campuscircle/campuscircle-go/shared/protocol"
)

// State is the connection lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

type Options struct {
	// URL is the realtime endpoint, e.g. ws://host:8081/ws.
	URL string
	// Credentials supplies the bearer token at connect time.
	Credentials auth.CredentialStore

	HandshakeTimeout  time.Duration // default 10s
	HeartbeatInterval time.Duration // default 4s
	PongTimeout       time.Duration // default 4s
	WriteTimeout      time.Duration // default 10s
	// Reconnect bounds retries after unexpected transport failure.
	Reconnect backoff.Strategy
}

func (o *Options) withDefaults() Options {
	opts := *o
	if opts.HandshakeTimeout == 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.HeartbeatInterval == 0 {
		opts.HeartbeatInterval = 4 * time.Second
	}
	if opts.PongTimeout == 0 {
		opts.PongTimeout = 4 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if len(opts.Reconnect.Delays) == 0 {
		opts.Reconnect = backoff.Reconnect
	}
	return opts
}

// Client owns the single realtime connection for one identity. Construct it
// once at application start and pass it to every component that needs
// realtime messaging.
type Client struct {
	opts     Options
	registry *Registry

	mu      sync.RWMutex
	writeMu sync.Mutex

	conn     *websocket.Conn
	state    State
	identity string
	subs     map[protocol.Topic]bool
	// gen invalidates pumps belonging to a torn-down connection.
	gen uint64

	observers map[string]func(connected bool)

	lifeCtx    context.Context
	lifeCancel context.CancelFunc
}

func NewClient(opts Options) *Client {
	return &Client{
		opts:      opts.withDefaults(),
		registry:  NewRegistry(),
		subs:      make(map[protocol.Topic]bool),
		observers: make(map[string]func(bool)),
	}
}

// Connect establishes the realtime connection for identity. Calling while
// already connected or connecting under the same identity is a no-op; a
// different identity tears down the prior connection first. The returned
// error covers only the synchronous handshake — later transport failures
// surface through IsConnected and connection observers, never as errors.
func (c *Client) Connect(ctx context.Context, identity string) error {
	c.mu.Lock()
	if c.state != StateDisconnected && c.identity == identity {
		c.mu.Unlock()
		slog.Debug("ws: already connected", "identity", identity)
		return nil
	}

	toreDown := false
	if c.state != StateDisconnected {
		c.teardownLocked()
		toreDown = true
	}

	c.state = StateConnecting
	c.identity = identity
	if c.lifeCtx == nil {
		c.lifeCtx, c.lifeCancel = context.WithCancel(context.Background())
	}
	expectGen := c.gen
	c.mu.Unlock()

	if toreDown {
		c.notifyConnectionChange(false)
	}

	if err := c.dial(ctx, expectGen); err != nil {
		c.mu.Lock()
		// A superseding Connect owns the state now; only the current
		// attempt may record the failure.
		if c.gen == expectGen {
			c.state = StateDisconnected
		}
		c.mu.Unlock()
		return err
	}

	c.notifyConnectionChange(true)
	return nil
}

// errDialSuperseded reports a handshake that lost to a newer connection
// attempt or an explicit disconnect.
var errDialSuperseded = errors.New("ws: connection attempt superseded")

// dial performs the authenticated handshake, establishes the standing
// subscriptions before any frame is read, and starts the pumps. expectGen is
// the connection generation the attempt belongs to; if it changed while the
// handshake was in flight the new socket is discarded.
func (c *Client) dial(ctx context.Context, expectGen uint64) error {
	header := http.Header{}
	if c.opts.Credentials != nil {
		token, err := c.opts.Credentials.Get(auth.KeyAccessToken)
		if err != nil {
			slog.Warn("ws: no access token available, dialing unauthenticated", "error", err)
		} else {
			header.Set("Authorization", "Bearer "+token)
		}
	}

	slog.Info("ws: connecting", "url", c.opts.URL)

	dialer := websocket.Dialer{
		HandshakeTimeout: c.opts.HandshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, c.opts.URL, header)
	if err != nil {
		if resp != nil {
			slog.Error("ws: connection failed", "status", resp.StatusCode, "error", err)
		} else {
			slog.Error("ws: connection failed", "error", err)
		}
		return err
	}

	for _, topic := range protocol.StandingTopics() {
		env := protocol.NewEnvelope(topic, protocol.TypeSubscribe, protocol.Subscribe{Topic: topic})
		if err := c.writeConn(conn, env); err != nil {
			slog.Error("ws: subscribe failed", "topic", topic, "error", err)
			conn.Close()
			return err
		}
	}

	pongWait := c.opts.HeartbeatInterval + c.opts.PongTimeout
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	c.mu.Lock()
	if c.gen != expectGen {
		c.mu.Unlock()
		conn.Close()
		slog.Debug("ws: discarding superseded connection")
		return errDialSuperseded
	}
	c.gen++
	gen := c.gen
	c.conn = conn
	c.state = StateConnected
	for _, topic := range protocol.StandingTopics() {
		c.subs[topic] = true
	}
	lifeCtx := c.lifeCtx
	c.mu.Unlock()

	connectionUp.Set(1)

	go c.readPump(lifeCtx, conn, gen)
	go c.heartbeat(lifeCtx, conn, gen)

	slog.Info("ws: connected", "identity", c.Identity())
	return nil
}

// Disconnect tears down the connection, cancels every subscription and
// clears the identity. Always succeeds; safe to call when already
// disconnected. Observers are notified with false.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.teardownLocked()
	c.identity = ""
	if c.lifeCancel != nil {
		c.lifeCancel()
		c.lifeCtx, c.lifeCancel = nil, nil
	}
	c.mu.Unlock()

	connectionUp.Set(0)
	c.notifyConnectionChange(false)
	slog.Info("ws: disconnected")
}

// teardownLocked closes the transport and invalidates the pumps. Caller
// holds c.mu.
func (c *Client) teardownLocked() {
	c.gen++
	if c.conn != nil {
		for topic := range c.subs {
			env := protocol.NewEnvelope(topic, protocol.TypeUnsubscribe, protocol.Unsubscribe{Topic: topic})
			_ = c.writeConn(c.conn, env)
		}
		c.conn.Close()
		c.conn = nil
	}
	c.subs = make(map[protocol.Topic]bool)
	c.state = StateDisconnected
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state == StateConnected
}

func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Identity returns the username the connection is scoped to, or "" when
// disconnected.
func (c *Client) Identity() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

// Subscriptions lists the currently active standing subscriptions.
func (c *Client) Subscriptions() []protocol.Topic {
	c.mu.RLock()
	defer c.mu.RUnlock()
	topics := make([]protocol.Topic, 0, len(c.subs))
	for topic, active := range c.subs {
		if active {
			topics = append(topics, topic)
		}
	}
	return topics
}

// OnConnectionChange registers an observer invoked on every connected /
// disconnected transition. Registering under an existing id replaces the
// prior observer.
func (c *Client) OnConnectionChange(observerID string, cb func(connected bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers[observerID] = cb
}

// OffConnectionChange removes the observer; idempotent.
func (c *Client) OffConnectionChange(observerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.observers, observerID)
}

func (c *Client) notifyConnectionChange(connected bool) {
	c.mu.RLock()
	cbs := make(map[string]func(bool), len(c.observers))
	for obsID, cb := range c.observers {
		cbs[obsID] = cb
	}
	c.mu.RUnlock()

	for obsID, cb := range cbs {
		invoke(obsID, func() { cb(connected) })
	}
}

func (c *Client) readPump(ctx context.Context, conn *websocket.Conn, gen uint64) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("ws: read error", "error", err)
			}
			c.handleReadFailure(gen)
			return
		}

		env, err := protocol.DecodeEnvelope(data)
		if err != nil {
			decodeErrorsTotal.Inc()
			slog.Error("ws: decode error", "error", err)
			continue
		}

		c.handleFrame(ctx, env)
	}
}

// handleReadFailure reacts to an unexpected transport failure by entering
// the bounded reconnect loop. Stale pumps (superseded by a newer connection
// or an explicit disconnect) return without effect.
func (c *Client) handleReadFailure(gen uint64) {
	c.mu.Lock()
	if c.gen != gen || c.state != StateConnected {
		c.mu.Unlock()
		return
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.subs = make(map[protocol.Topic]bool)
	c.state = StateReconnecting
	lifeCtx := c.lifeCtx
	c.mu.Unlock()

	connectionUp.Set(0)
	c.notifyConnectionChange(false)

	go c.reconnect(lifeCtx)
}

func (c *Client) reconnect(ctx context.Context) {
	err := backoff.RetryWithCallback(ctx, c.opts.Reconnect, func(ctx context.Context, attempt int) error {
		c.mu.RLock()
		aborted := c.state != StateReconnecting
		expectGen := c.gen
		c.mu.RUnlock()
		if aborted {
			return nil
		}
		reconnectsTotal.Inc()
		return c.dial(ctx, expectGen)
	}, func(attempt int, err error, delay time.Duration) {
		slog.Warn("ws: reconnect attempt failed", "attempt", attempt, "error", err, "retry_in", delay)
	})
	if err != nil {
		c.mu.Lock()
		terminal := c.state == StateReconnecting
		if terminal {
			c.state = StateDisconnected
		}
		c.mu.Unlock()
		if terminal {
			slog.Error("ws: reconnect exhausted, giving up", "error", err)
		}
		return
	}

	if c.IsConnected() {
		c.notifyConnectionChange(true)
	}
}

func (c *Client) heartbeat(ctx context.Context, conn *websocket.Conn, gen uint64) {
	ticker := time.NewTicker(c.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		c.mu.RLock()
		stale := c.gen != gen
		c.mu.RUnlock()
		if stale {
			return
		}

		c.writeMu.Lock()
		conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
		err := conn.WriteMessage(websocket.PingMessage, nil)
		c.writeMu.Unlock()
		if err != nil {
			slog.Debug("ws: ping failed", "error", err)
			return
		}
	}
}

// handleFrame decodes one inbound envelope into its typed event and fans it
// out. Malformed bodies are dropped per frame, never propagated.
func (c *Client) handleFrame(ctx context.Context, env *protocol.Envelope) {
	if env.HasTraceContext() {
		ctx = otel.Extract(ctx, otel.TraceContext{
			TraceID:    env.TraceID,
			SpanID:     env.SpanID,
			TraceFlags: env.TraceFlags,
		})
	}

	switch env.Type {
	case protocol.TypeChatMessage:
		msg, err := protocol.DecodeBody[protocol.ChatMessage](env)
		if err != nil {
			decodeErrorsTotal.Inc()
			slog.Error("ws: decode chat message error", "error", err)
			return
		}
		framesTotal.WithLabelValues("message").Inc()
		c.registry.dispatchMessage(ctx, *msg)

	case protocol.TypeTypingIndicator:
		ind, err := protocol.DecodeBody[protocol.TypingIndicator](env)
		if err != nil {
			decodeErrorsTotal.Inc()
			slog.Error("ws: decode typing indicator error", "error", err)
			return
		}
		framesTotal.WithLabelValues("typing").Inc()
		c.registry.dispatchTyping(ctx, *ind)

	case protocol.TypeReadReceipt:
		rr, err := protocol.DecodeBody[protocol.ReadReceipt](env)
		if err != nil {
			decodeErrorsTotal.Inc()
			slog.Error("ws: decode read receipt error", "error", err)
			return
		}
		framesTotal.WithLabelValues("read_receipt").Inc()
		c.registry.dispatchReadReceipt(ctx, *rr)

	case protocol.TypeSubscribeAck:
		ack, err := protocol.DecodeBody[protocol.SubscribeAck](env)
		if err != nil {
			slog.Error("ws: decode subscribe ack error", "error", err)
			return
		}
		if !ack.Success {
			slog.Error("ws: subscribe rejected", "topic", ack.Topic, "error", ack.Error)
		}

	case protocol.TypeError:
		body, err := protocol.DecodeBody[protocol.Error](env)
		if err != nil {
			slog.Error("ws: decode error frame", "error", err)
			return
		}
		slog.Error("ws: server error", "code", body.Code, "message", body.Message)

	default:
		slog.Debug("ws: unhandled frame", "type", env.Type)
	}
}

func (c *Client) writeConn(conn *websocket.Conn, env *protocol.Envelope) error {
	data, err := env.Encode()
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	err = conn.WriteMessage(websocket.BinaryMessage, data)
	c.writeMu.Unlock()
	println("DEBUG client writeConn", conn.LocalAddr().String(), "type", fmt.Sprint(env.Type), "err", fmt.Sprint(err))
	return err
}

func (c *Client) writeEnvelope(env *protocol.Envelope) bool {
	c.mu.RLock()
	conn := c.conn
	connected := c.state == StateConnected
	c.mu.RUnlock()

	if !connected || conn == nil {
		return false
	}
	if err := c.writeConn(conn, env); err != nil {
		slog.Warn("ws: publish failed", "type", env.Type, "error", err)
		return false
	}
	return true
}

// SendMessage publishes a chat message. When the connection is down this is
// a no-op with a warning: callers persist via REST regardless, so nothing is
// queued for later.
func (c *Client) SendMessage(ctx context.Context, recipient, content string, kind protocol.MessageKind) {
	if kind == "" {
		kind = protocol.KindText
	}

	c.mu.RLock()
	sender := c.identity
	connected := c.state == StateConnected
	c.mu.RUnlock()

	if !connected {
		publishDroppedTotal.WithLabelValues("message").Inc()
		slog.Warn("ws: not connected, cannot send message", "recipient", recipient)
		return
	}

	env := protocol.NewEnvelope("", protocol.TypeChatMessage, protocol.ChatMessage{
		ID:          id.NewMessage(),
		Sender:      sender,
		Recipient:   recipient,
		Content:     content,
		MessageType: kind,
		Timestamp:   time.Now().UTC(),
	})
	applyTraceContext(ctx, env)
	c.writeEnvelope(env)
}

// SendTypingIndicator publishes a typing-state change. Fire and forget; the
// same no-op-when-disconnected contract as SendMessage.
func (c *Client) SendTypingIndicator(ctx context.Context, recipient string, isTyping bool) {
	if !c.IsConnected() {
		publishDroppedTotal.WithLabelValues("typing").Inc()
		slog.Warn("ws: not connected, cannot send typing indicator", "recipient", recipient)
		return
	}

	env := protocol.NewEnvelope("", protocol.TypeTypingIndicator, protocol.TypingIndicator{
		Recipient: recipient,
		IsTyping:  isTyping,
	})
	applyTraceContext(ctx, env)
	c.writeEnvelope(env)
}

// SendReadReceipt publishes a read receipt for a conversation.
func (c *Client) SendReadReceipt(ctx context.Context, recipient, conversationID string) {
	if !c.IsConnected() {
		publishDroppedTotal.WithLabelValues("read_receipt").Inc()
		slog.Warn("ws: not connected, cannot send read receipt", "recipient", recipient)
		return
	}

	env := protocol.NewEnvelope("", protocol.TypeReadReceipt, protocol.ReadReceipt{
		Recipient:      recipient,
		ConversationID: conversationID,
	})
	applyTraceContext(ctx, env)
	c.writeEnvelope(env)
}

func applyTraceContext(ctx context.Context, env *protocol.Envelope) {
	tc := otel.Inject(ctx)
	env.TraceID = tc.TraceID
	env.SpanID = tc.SpanID
	env.TraceFlags = tc.TraceFlags
}

// Subscriber registration, keyed by a fixed string per UI surface.

func (c *Client) OnMessage(subscriberID string, cb MessageCallback) {
	c.registry.OnMessage(subscriberID, cb)
}

func (c *Client) OffMessage(subscriberID string) {
	c.registry.OffMessage(subscriberID)
}

func (c *Client) OnTyping(subscriberID string, cb TypingCallback) {
	c.registry.OnTyping(subscriberID, cb)
}

func (c *Client) OffTyping(subscriberID string) {
	c.registry.OffTyping(subscriberID)
}

func (c *Client) OnReadReceipt(subscriberID string, cb ReadReceiptCallback) {
	c.registry.OnReadReceipt(subscriberID, cb)
}

func (c *Client) OffReadReceipt(subscriberID string) {
	c.registry.OffReadReceipt(subscriberID)
}
