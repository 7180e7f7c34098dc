// Package protocol defines the wire format for the CampusCircle realtime
// channel. Every frame is a msgpack Envelope carrying one typed body;
// decoding happens once at the boundary so nothing downstream handles
// unstructured data.
package protocol

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

type Envelope struct {
	Topic Topic       `msgpack:"topic,omitempty" json:"topic,omitempty"`
	Type  MessageType `msgpack:"type" json:"type"`
	Body  any         `msgpack:"body" json:"body"`

	// W3C Trace Context
	TraceID    string `msgpack:"trace_id,omitempty" json:"traceId,omitempty"`
	SpanID     string `msgpack:"span_id,omitempty" json:"spanId,omitempty"`
	TraceFlags byte   `msgpack:"trace_flags,omitempty" json:"traceFlags,omitempty"`
}

func NewEnvelope(topic Topic, msgType MessageType, body any) *Envelope {
	return &Envelope{
		Topic: topic,
		Type:  msgType,
		Body:  body,
	}
}

func (e *Envelope) HasTraceContext() bool {
	return e.TraceID != "" && e.SpanID != ""
}

func (e *Envelope) Encode() ([]byte, error) {
	data, err := msgpack.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return data, nil
}

func DecodeEnvelope(data []byte) (*Envelope, error) {
	var e Envelope
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return &e, nil
}

// DecodeBody converts an envelope body into its concrete type. Bodies arrive
// as map[string]any after transport decode, so a re-encode round trip is the
// conversion path.
func DecodeBody[T any](e *Envelope) (*T, error) {
	if typed, ok := e.Body.(T); ok {
		return &typed, nil
	}

	data, err := msgpack.Marshal(e.Body)
	if err != nil {
		return nil, fmt.Errorf("re-encode body: %w", err)
	}

	var result T
	if err := msgpack.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode body to %T: %w", result, err)
	}
	return &result, nil
}
