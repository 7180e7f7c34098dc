package api

import "time"

// Message is one persisted direct message, normalized so every entry has a
// stable identifier.
type Message struct {
	ID        string     `json:"id"`
	MessageID string     `json:"messageId,omitempty"`
	Sender    string     `json:"sender"`
	Text      string     `json:"text"`
	MediaURLs []string   `json:"mediaUrls,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	ReadAt    *time.Time `json:"readAt,omitempty"`
}

// Conversation is the backend's direct-message thread representation.
type Conversation struct {
	ID           string    `json:"id"`
	Participants []string  `json:"participants"`
	Messages     []Message `json:"messages,omitempty"`
	LastMessage  *Message  `json:"lastMessage,omitempty"`
	UnreadCount  int       `json:"unreadCount"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Peer returns the participant that is not the given user.
func (c Conversation) Peer(username string) string {
	for _, p := range c.Participants {
		if p != username {
			return p
		}
	}
	if len(c.Participants) > 0 {
		return c.Participants[0]
	}
	return ""
}

// ConversationSummary is the inbox-level view of a conversation.
type ConversationSummary struct {
	ID              string
	Peer            string
	LastMessage     string
	LastMessageTime time.Time
	UnreadCount     int
}
