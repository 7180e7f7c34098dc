package protocol

import "time"

type MessageType uint16

const (
	TypeError           MessageType = 1
	TypeChatMessage     MessageType = 2
	TypeTypingIndicator MessageType = 3
	TypeReadReceipt     MessageType = 4
	TypeSubscribe       MessageType = 10
	TypeSubscribeAck    MessageType = 11
	TypeUnsubscribe     MessageType = 12
	TypeUnsubscribeAck  MessageType = 13
)

func (t MessageType) String() string {
	switch t {
	case TypeError:
		return "Error"
	case TypeChatMessage:
		return "ChatMessage"
	case TypeTypingIndicator:
		return "TypingIndicator"
	case TypeReadReceipt:
		return "ReadReceipt"
	case TypeSubscribe:
		return "Subscribe"
	case TypeSubscribeAck:
		return "SubscribeAck"
	case TypeUnsubscribe:
		return "Unsubscribe"
	case TypeUnsubscribeAck:
		return "UnsubscribeAck"
	default:
		return "Unknown"
	}
}

// Topic is a server-side per-identity logical channel for one event kind.
type Topic string

const (
	TopicMessages     Topic = "messages"
	TopicTyping       Topic = "typing"
	TopicReadReceipts Topic = "read-receipts"
)

// StandingTopics lists every topic a connected client subscribes to.
func StandingTopics() []Topic {
	return []Topic{TopicMessages, TopicTyping, TopicReadReceipts}
}

// MessageKind distinguishes chat message content types.
type MessageKind string

const (
	KindText  MessageKind = "TEXT"
	KindImage MessageKind = "IMAGE"
	KindFile  MessageKind = "FILE"
)

type ChatMessage struct {
	// ID is the message identifier when the producer assigned one;
	// consumers generate a local one when it is absent.
	ID          string      `msgpack:"id,omitempty" json:"id,omitempty"`
	Sender      string      `msgpack:"sender" json:"sender"`
	Recipient   string      `msgpack:"recipient" json:"recipient"`
	Content     string      `msgpack:"content" json:"content"`
	MessageType MessageKind `msgpack:"messageType,omitempty" json:"messageType,omitempty"`
	Timestamp   time.Time   `msgpack:"timestamp,omitempty" json:"timestamp,omitempty"`
}

type TypingIndicator struct {
	Sender    string `msgpack:"sender" json:"sender"`
	Recipient string `msgpack:"recipient" json:"recipient"`
	IsTyping  bool   `msgpack:"isTyping" json:"isTyping"`
}

type ReadReceipt struct {
	Sender         string `msgpack:"sender" json:"sender"`
	Recipient      string `msgpack:"recipient" json:"recipient"`
	ConversationID string `msgpack:"conversationId" json:"conversationId"`
}

type Subscribe struct {
	Topic Topic `msgpack:"topic" json:"topic"`
}

type SubscribeAck struct {
	Topic   Topic  `msgpack:"topic" json:"topic"`
	Success bool   `msgpack:"success" json:"success"`
	Error   string `msgpack:"error,omitempty" json:"error,omitempty"`
}

type Unsubscribe struct {
	Topic Topic `msgpack:"topic" json:"topic"`
}

type UnsubscribeAck struct {
	Topic   Topic `msgpack:"topic" json:"topic"`
	Success bool  `msgpack:"success" json:"success"`
}

type Error struct {
	Code    string `msgpack:"code" json:"code"`
	Message string `msgpack:"message" json:"message"`
}
