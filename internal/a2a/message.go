// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package a2a defines the agent-to-agent message envelope exchanged between
// the supervisor and its sub-agents, the error taxonomy carried by failed
// responses, and the per-kind retry policy.
package a2a

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Protocol is the tag stamped on every message and used as the ID prefix.
const Protocol = "a2a/1.0"

const idPrefix = "a2a-"

// Status is the processing status of a message.
type Status string

const (
	StatusPending Status = "pending"
	StatusOK      Status = "ok"
	StatusError   Status = "error"
)

// Payload is an opaque structured payload carried verbatim as JSON.
type Payload = json.RawMessage

// NewPayload encodes v as a Payload. A nil v yields a nil payload.
func NewPayload(v any) (Payload, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}
	return Payload(data), nil
}

// MustPayload is NewPayload for values known to encode.
func MustPayload(v any) Payload {
	p, err := NewPayload(v)
	if err != nil {
		panic(err)
	}
	return p
}

// Decode unmarshals a payload into v.
func Decode(p Payload, v any) error {
	if len(p) == 0 {
		return fmt.Errorf("decoding payload: empty payload")
	}
	if err := json.Unmarshal(p, v); err != nil {
		return fmt.Errorf("decoding payload: %w", err)
	}
	return nil
}

// Metrics records the cost of one exchange.
type Metrics struct {
	LatencyMs int64 `json:"latency_ms"`
	TokensIn  int   `json:"tokens_in"`
	TokensOut int   `json:"tokens_out"`
}

// Add accumulates token counts from other. Latency is left untouched.
func (m *Metrics) Add(other Metrics) {
	m.TokensIn += other.TokensIn
	m.TokensOut += other.TokensOut
}

// Message is the A2A envelope.
type Message struct {
	Protocol      string    `json:"protocol"`
	ID            string    `json:"id"`
	CorrelationID string    `json:"correlation_id"`
	Timestamp     time.Time `json:"timestamp"`
	Sender        string    `json:"sender"`
	Receiver      string    `json:"receiver"`
	Intent        string    `json:"intent"`
	Input         Payload   `json:"input,omitempty"`
	Status        Status    `json:"status"`
	Output        Payload   `json:"output,omitempty"`
	Error         *Error    `json:"error,omitempty"`
	Metrics       Metrics   `json:"metrics"`
}

func newID() string {
	return idPrefix + uuid.NewString()
}

func now() time.Time {
	return time.Now().UTC().Round(0)
}

// NewRequest builds a pending request. An empty correlationID starts a new
// conversation keyed by the request's own ID.
func NewRequest(sender, receiver, intent string, input Payload, correlationID string) Message {
	id := newID()
	if correlationID == "" {
		correlationID = id
	}
	return Message{
		Protocol:      Protocol,
		ID:            id,
		CorrelationID: correlationID,
		Timestamp:     now(),
		Sender:        sender,
		Receiver:      receiver,
		Intent:        intent,
		Input:         input,
		Status:        StatusPending,
	}
}

// ResponseIntent returns the intent used by responses to intent.
func ResponseIntent(intent string) string {
	return intent + "_response"
}

// NewResponse derives a response from req: sender and receiver are swapped,
// the intent is suffixed with "_response" and the correlation ID is kept.
func NewResponse(req Message, status Status, output Payload, err *Error, metrics Metrics) Message {
	return Message{
		Protocol:      Protocol,
		ID:            newID(),
		CorrelationID: req.CorrelationID,
		Timestamp:     now(),
		Sender:        req.Receiver,
		Receiver:      req.Sender,
		Intent:        ResponseIntent(req.Intent),
		Status:        status,
		Output:        output,
		Error:         err,
		Metrics:       metrics,
	}
}

// OK builds a successful response carrying output.
func OK(req Message, output Payload, metrics Metrics) Message {
	return NewResponse(req, StatusOK, output, nil, metrics)
}

// Fail builds an error response carrying err.
func Fail(req Message, err Error, metrics Metrics) Message {
	return NewResponse(req, StatusError, nil, &err, metrics)
}

// Marshal encodes m as JSON.
func Marshal(m Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshaling message %s: %w", m.ID, err)
	}
	return data, nil
}

// Unmarshal decodes a message produced by Marshal.
func Unmarshal(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("unmarshaling message: %w", err)
	}
	if m.Protocol != Protocol {
		return Message{}, fmt.Errorf("unmarshaling message: unsupported protocol %q", m.Protocol)
	}
	return m, nil
}
