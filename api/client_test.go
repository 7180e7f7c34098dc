package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuscircle/campuscircle-go/auth"
)

func testCreds() *auth.MemoryStore {
	store := auth.NewMemoryStore()
	store.Set(auth.KeyAccessToken, "test-token")
	return store
}

func newTestBackend(t *testing.T, register func(r chi.Router)) *Client {
	t.Helper()
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.Header.Get("Authorization") != "Bearer test-token" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, req)
		})
	})
	register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, testCreds())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestGetConversation(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTestBackend(t, func(r chi.Router) {
		r.Get("/direct-messages/{id}", func(w http.ResponseWriter, req *http.Request) {
			assert.Equal(t, "conv-1", chi.URLParam(req, "id"))
			writeJSON(w, Conversation{
				ID:           "conv-1",
				Participants: []string{"alice", "bob"},
				Messages: []Message{
					{ID: "m1", Sender: "bob", Text: "hey", Timestamp: ts},
				},
			})
		})
	})

	conv, err := c.GetConversation(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "conv-1", conv.ID)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, "hey", conv.Messages[0].Text)
	assert.Equal(t, ts, conv.Messages[0].Timestamp)
	assert.Equal(t, "bob", conv.Peer("alice"))
}

func TestGetConversationNormalizesIDs(t *testing.T) {
	c := newTestBackend(t, func(r chi.Router) {
		r.Get("/direct-messages/{id}", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, map[string]any{
				"id": "conv-1",
				"messages": []map[string]any{
					{"messageId": "legacy-7", "sender": "bob", "text": "old field"},
					{"sender": "bob", "text": "no id at all"},
				},
			})
		})
	})

	conv, err := c.GetConversation(context.Background(), "conv-1")
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "legacy-7", conv.Messages[0].ID)
	assert.NotEmpty(t, conv.Messages[1].ID, "a generated id fills the gap")
}

func TestGetConversationWithNotFound(t *testing.T) {
	c := newTestBackend(t, func(r chi.Router) {
		r.Get("/direct-messages/with", func(w http.ResponseWriter, req *http.Request) {
			http.Error(w, `{"message":"no conversation"}`, http.StatusNotFound)
		})
	})

	conv, err := c.GetConversationWith(context.Background(), "stranger")
	require.NoError(t, err)
	assert.Nil(t, conv)
}

func TestGetConversationWithQuery(t *testing.T) {
	c := newTestBackend(t, func(r chi.Router) {
		r.Get("/direct-messages/with", func(w http.ResponseWriter, req *http.Request) {
			assert.Equal(t, "bob", req.URL.Query().Get("username"))
			writeJSON(w, Conversation{ID: "conv-9", Participants: []string{"alice", "bob"}})
		})
	})

	conv, err := c.GetConversationWith(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, "conv-9", conv.ID)
}

func TestSendMessage(t *testing.T) {
	c := newTestBackend(t, func(r chi.Router) {
		r.Post("/direct-messages/{id}/messages", func(w http.ResponseWriter, req *http.Request) {
			var body map[string]string
			require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			assert.Equal(t, "hello", body["text"])
			writeJSON(w, Message{ID: "m-new", Sender: "alice", Text: body["text"]})
		})
	})

	msg, err := c.SendMessage(context.Background(), "conv-1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "m-new", msg.ID)
}

func TestSendMessageToUser(t *testing.T) {
	c := newTestBackend(t, func(r chi.Router) {
		r.Post("/direct-messages/send", func(w http.ResponseWriter, req *http.Request) {
			var body map[string]string
			require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			assert.Equal(t, "bob", body["recipientUsername"])
			assert.Equal(t, "first contact", body["text"])
			writeJSON(w, Conversation{ID: "conv-created"})
		})
	})

	conv, err := c.SendMessageToUser(context.Background(), "bob", "first contact")
	require.NoError(t, err)
	assert.Equal(t, "conv-created", conv.ID)
}

func TestMarkRead(t *testing.T) {
	var called bool
	c := newTestBackend(t, func(r chi.Router) {
		r.Post("/direct-messages/{id}/read", func(w http.ResponseWriter, req *http.Request) {
			called = true
			w.WriteHeader(http.StatusNoContent)
		})
	})

	require.NoError(t, c.MarkRead(context.Background(), "conv-1"))
	assert.True(t, called)
}

func TestUnreadCount(t *testing.T) {
	c := newTestBackend(t, func(r chi.Router) {
		r.Get("/direct-messages/unread-count", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, map[string]int{"unreadCount": 7})
		})
	})

	n, err := c.UnreadCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestListMyConversations(t *testing.T) {
	last := Message{ID: "m9", Sender: "bob", Text: "see you", Timestamp: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	c := newTestBackend(t, func(r chi.Router) {
		r.Get("/direct-messages/my", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, []Conversation{
				{ID: "conv-1", Participants: []string{"alice", "bob"}, LastMessage: &last, UnreadCount: 2},
				{ID: "conv-2", Participants: []string{"alice", "carol"}},
			})
		})
	})

	summaries, err := c.ListMyConversations(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "bob", summaries[0].Peer)
	assert.Equal(t, "see you", summaries[0].LastMessage)
	assert.Equal(t, last.Timestamp, summaries[0].LastMessageTime)
	assert.Equal(t, 2, summaries[0].UnreadCount)
	assert.Equal(t, "carol", summaries[1].Peer)
	assert.Empty(t, summaries[1].LastMessage)
}

func TestErrorMapping(t *testing.T) {
	c := newTestBackend(t, func(r chi.Router) {
		r.Get("/direct-messages/{id}", func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			writeJSON(w, map[string]string{"message": "not a participant"})
		})
	})

	_, err := c.GetConversation(context.Background(), "conv-1")
	require.Error(t, err)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "not a participant", apiErr.Message)
}

func TestAuthorizationHeaderSent(t *testing.T) {
	// The middleware in newTestBackend rejects anything without the bearer
	// token, so a successful round trip proves the header is attached.
	c := newTestBackend(t, func(r chi.Router) {
		r.Get("/direct-messages/unread-count", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, map[string]int{"unreadCount": 0})
		})
	})

	_, err := c.UnreadCount(context.Background())
	require.NoError(t, err)

	// And a client holding no token is turned away.
	bare := NewClient(c.baseURL, auth.NewMemoryStore())
	_, err = bare.UnreadCount(context.Background())
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}
