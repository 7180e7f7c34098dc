package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/campuscircle/campuscircle-go/shared/id"
)

// ListMyConversations returns the inbox view for the given user.
func (c *Client) ListMyConversations(ctx context.Context, username string) ([]ConversationSummary, error) {
	var convs []Conversation
	if err := c.do(ctx, http.MethodGet, "/direct-messages/my", nil, nil, &convs); err != nil {
		return nil, err
	}

	summaries := make([]ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		s := ConversationSummary{
			ID:              conv.ID,
			Peer:            conv.Peer(username),
			UnreadCount:     conv.UnreadCount,
			LastMessageTime: conv.UpdatedAt,
		}
		if conv.LastMessage != nil {
			s.LastMessage = conv.LastMessage.Text
			s.LastMessageTime = conv.LastMessage.Timestamp
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}

// GetConversation fetches one conversation with its full message history.
func (c *Client) GetConversation(ctx context.Context, conversationID string) (*Conversation, error) {
	var conv Conversation
	if err := c.do(ctx, http.MethodGet, "/direct-messages/"+conversationID, nil, nil, &conv); err != nil {
		return nil, err
	}
	normalizeMessages(&conv)
	return &conv, nil
}

// GetConversationWith fetches the conversation between the current user and
// another user. Returns nil without error when none exists yet.
func (c *Client) GetConversationWith(ctx context.Context, username string) (*Conversation, error) {
	query := url.Values{"username": []string{username}}
	var conv Conversation
	err := c.do(ctx, http.MethodGet, "/direct-messages/with", query, nil, &conv)
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	normalizeMessages(&conv)
	return &conv, nil
}

// StartConversation creates a conversation with the recipient.
func (c *Client) StartConversation(ctx context.Context, recipient string) (*Conversation, error) {
	body := map[string]string{"recipientUsername": recipient}
	var conv Conversation
	if err := c.do(ctx, http.MethodPost, "/direct-messages/start", nil, body, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// SendMessage persists a message into an existing conversation.
func (c *Client) SendMessage(ctx context.Context, conversationID, text string) (*Message, error) {
	body := map[string]any{"text": text}
	var msg Message
	if err := c.do(ctx, http.MethodPost, "/direct-messages/"+conversationID+"/messages", nil, body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SendMessageToUser persists a message to a user, creating the conversation
// when needed. Returns the (possibly new) conversation.
func (c *Client) SendMessageToUser(ctx context.Context, recipient, text string) (*Conversation, error) {
	body := map[string]string{"recipientUsername": recipient, "text": text}
	var conv Conversation
	if err := c.do(ctx, http.MethodPost, "/direct-messages/send", nil, body, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// MarkRead marks every message in the conversation as read.
func (c *Client) MarkRead(ctx context.Context, conversationID string) error {
	return c.do(ctx, http.MethodPost, "/direct-messages/"+conversationID+"/read", nil, nil, nil)
}

// UnreadCount returns the number of unread messages across conversations.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var out struct {
		UnreadCount int `json:"unreadCount"`
	}
	if err := c.do(ctx, http.MethodGet, "/direct-messages/unread-count", nil, nil, &out); err != nil {
		return 0, err
	}
	return out.UnreadCount, nil
}

// normalizeMessages gives every message a stable id. Older backend versions
// populate messageId instead of id.
func normalizeMessages(conv *Conversation) {
	for i := range conv.Messages {
		m := &conv.Messages[i]
		if m.ID == "" {
			if m.MessageID != "" {
				m.ID = m.MessageID
			} else {
				m.ID = id.NewMessage()
			}
		}
	}
}
