package messaging

import (
	"context"
	"log/slog"
	"sync"

	"github.com/campuscircle/campuscircle-go/shared/protocol"
)

type MessageCallback func(ctx context.Context, msg protocol.ChatMessage)
type TypingCallback func(ctx context.Context, ind protocol.TypingIndicator)
type ReadReceiptCallback func(ctx context.Context, rr protocol.ReadReceipt)

// Registry fans decoded inbound events out to every registered subscriber.
// Subscribers register under a string key, one per UI surface; registering
// under an existing key replaces the prior callback. No ordering is
// guaranteed across keys.
type Registry struct {
	mu         sync.RWMutex
	messageCbs map[string]MessageCallback
	typingCbs  map[string]TypingCallback
	receiptCbs map[string]ReadReceiptCallback
}

func NewRegistry() *Registry {
	return &Registry{
		messageCbs: make(map[string]MessageCallback),
		typingCbs:  make(map[string]TypingCallback),
		receiptCbs: make(map[string]ReadReceiptCallback),
	}
}

func (r *Registry) OnMessage(id string, cb MessageCallback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messageCbs[id] = cb
}

func (r *Registry) OffMessage(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.messageCbs, id)
}

func (r *Registry) OnTyping(id string, cb TypingCallback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.typingCbs[id] = cb
}

func (r *Registry) OffTyping(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.typingCbs, id)
}

func (r *Registry) OnReadReceipt(id string, cb ReadReceiptCallback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.receiptCbs[id] = cb
}

func (r *Registry) OffReadReceipt(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.receiptCbs, id)
}

func (r *Registry) dispatchMessage(ctx context.Context, msg protocol.ChatMessage) {
	r.mu.RLock()
	cbs := make(map[string]MessageCallback, len(r.messageCbs))
	for id, cb := range r.messageCbs {
		cbs[id] = cb
	}
	r.mu.RUnlock()

	for id, cb := range cbs {
		invoke(id, func() { cb(ctx, msg) })
	}
}

func (r *Registry) dispatchTyping(ctx context.Context, ind protocol.TypingIndicator) {
	r.mu.RLock()
	cbs := make(map[string]TypingCallback, len(r.typingCbs))
	for id, cb := range r.typingCbs {
		cbs[id] = cb
	}
	r.mu.RUnlock()

	for id, cb := range cbs {
		invoke(id, func() { cb(ctx, ind) })
	}
}

func (r *Registry) dispatchReadReceipt(ctx context.Context, rr protocol.ReadReceipt) {
	r.mu.RLock()
	cbs := make(map[string]ReadReceiptCallback, len(r.receiptCbs))
	for id, cb := range r.receiptCbs {
		cbs[id] = cb
	}
	r.mu.RUnlock()

	for id, cb := range cbs {
		invoke(id, func() { cb(ctx, rr) })
	}
}

// invoke isolates subscriber failures: a panicking callback must not block
// delivery to the remaining subscribers.
func invoke(id string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("ws: subscriber callback panicked", "subscriber", id, "panic", rec)
		}
	}()
	fn()
}
