// Package id provides ID generation helpers used across packages.
package id

import (
	nanoid "github.com/matoous/go-nanoid/v2"
)

const DefaultLength = 21

const (
	PrefixMessage      = "msg"
	PrefixConversation = "conv"
	PrefixSession      = "sess"
)

func New(prefix string) string {
	id, err := nanoid.New(DefaultLength)
	if err != nil {
		panic("nanoid generation failed: " + err.Error())
	}
	return prefix + "_" + id
}

func NewMessage() string      { return New(PrefixMessage) }
func NewConversation() string { return New(PrefixConversation) }
func NewSession() string      { return New(PrefixSession) }
