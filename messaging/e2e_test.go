package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuscircle/campuscircle-go/api"
	"github.com/campuscircle/campuscircle-go/shared/protocol"
)

// Two users, each with their own realtime client and session, wired through
// the relaying broker. The sender's entry is optimistic-then-confirmed, the
// receiver sees the live push, and a re-delivered frame stays a single entry.
func TestEndToEndLiveDelivery(t *testing.T) {
	broker, url := startBroker(t, map[string]string{"tok-a": "alice", "tok-b": "bob"})
	broker.relay = true

	clientA := newTestClient(t, url, "tok-a")
	clientB := newTestClient(t, url, "tok-b")
	require.NoError(t, clientA.Connect(context.Background(), "alice"))
	require.NoError(t, clientB.Connect(context.Background(), "bob"))

	backendA := &fakeBackend{}
	backendB := &fakeBackend{conv: &api.Conversation{ID: "conv-ab"}}

	sessionA := NewSession(clientA, backendA, SessionOptions{Identity: "alice", Peer: "bob", TypingIdle: time.Hour})
	t.Cleanup(sessionA.Close)
	sessionA.Open(context.Background())

	sessionB := NewSession(clientB, backendB, SessionOptions{Identity: "bob", Peer: "alice", TypingIdle: time.Hour})
	t.Cleanup(sessionB.Close)
	sessionB.Open(context.Background())

	msg, err := sessionA.Send(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, DeliveryConfirmed, msg.Delivery)

	// Alice's own view: one optimistic entry, now confirmed and persisted.
	msgsA := sessionA.Messages()
	require.Len(t, msgsA, 1)
	assert.Equal(t, DeliveryConfirmed, msgsA[0].Delivery)
	assert.Equal(t, []string{"hello"}, backendA.sentTexts())

	// Bob's live session receives the push.
	require.Eventually(t, func() bool {
		msgs := sessionB.Messages()
		return len(msgs) == 1 && msgs[0].Text == "hello" && msgs[0].Sender == "alice"
	}, 5*time.Second, 20*time.Millisecond)

	// A re-delivered frame does not create a second entry.
	chatFrames := broker.framesOfType(protocol.TypeChatMessage)
	require.NotEmpty(t, chatFrames)
	broker.push(t, chatFrames[0])

	time.Sleep(100 * time.Millisecond)
	assert.Len(t, sessionB.Messages(), 1)
}

// With the realtime channel down the publish is a silent no-op and the REST
// path alone carries the message.
func TestEndToEndDisconnectedFallsBackToREST(t *testing.T) {
	offline := NewClient(Options{URL: "ws://127.0.0.1:1/ws", Credentials: storeWithToken("tok")})
	backend := &fakeBackend{conv: &api.Conversation{ID: "conv-1"}}

	s := NewSession(offline, backend, SessionOptions{Identity: "alice", Peer: "bob", TypingIdle: time.Hour})
	t.Cleanup(s.Close)
	s.Open(context.Background())

	msg, err := s.Send(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, DeliveryConfirmed, msg.Delivery)
	assert.Equal(t, []string{"hello"}, backend.sentTexts())
}
