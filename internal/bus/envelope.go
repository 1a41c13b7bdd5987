// Package bus implements the typed envelope protocol exchanged between the
// background process and its UI surfaces. Envelopes ride a WebSocket
// transport as JSON; an envelope with a requestId expects exactly one reply
// echoing that id, an envelope without one is a fire-and-forget event.
package bus

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Envelope is the structured message unit of the inter-context protocol.
type Envelope struct {
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
}

// ErrorPayload is the reply payload used when a request handler fails.
// Failures travel as values: exceptions do not serialize across contexts.
type ErrorPayload struct {
	Error string `json:"error"`
}

// NewEvent builds a fire-and-forget event envelope.
func NewEvent(kind string, payload any) (Envelope, error) {
	raw, err := marshalPayload(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Kind: kind, Payload: raw}, nil
}

// NewRequest builds a request envelope carrying a fresh unique requestId.
func NewRequest(kind string, payload any) (Envelope, error) {
	raw, err := marshalPayload(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Kind: kind, Payload: raw, RequestID: uuid.NewString()}, nil
}

// NewReply builds the reply to a request envelope, echoing its requestId.
func NewReply(req Envelope, payload any) (Envelope, error) {
	raw, err := marshalPayload(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Kind: req.Kind, Payload: raw, RequestID: req.RequestID}, nil
}

func marshalPayload(payload any) (json.RawMessage, error) {
	if payload == nil {
		return nil, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return raw, nil
}
