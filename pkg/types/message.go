// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"time"
)

// MessageError is the persisted form of a classified A2A error.
type MessageError struct {
	Kind        string  `json:"kind" yaml:"kind"`
	Message     string  `json:"message" yaml:"message"`
	Recoverable bool    `json:"recoverable" yaml:"recoverable"`
	RetryAfter  float64 `json:"retry_after,omitempty" yaml:"retry_after,omitempty"`
}

// MessageMetrics holds per-exchange cost figures.
type MessageMetrics struct {
	LatencyMs int64 `json:"latency_ms" yaml:"latency_ms"`
	TokensIn  int   `json:"tokens_in" yaml:"tokens_in"`
	TokensOut int   `json:"tokens_out" yaml:"tokens_out"`
}

// PaperTaskMessage is the immutable audit record of one A2A exchange: the
// request and its response merged into a single row.
type PaperTaskMessage struct {
	ID            int64           `json:"id" yaml:"id"`
	TaskID        string          `json:"task_id" yaml:"task_id"`
	MessageID     string          `json:"message_id" yaml:"message_id"`
	CorrelationID string          `json:"correlation_id" yaml:"correlation_id"`
	Sender        string          `json:"sender" yaml:"sender"`
	Receiver      string          `json:"receiver" yaml:"receiver"`
	Intent        string          `json:"intent" yaml:"intent"`
	Status        string          `json:"status" yaml:"status"`
	Attempt       int             `json:"attempt" yaml:"attempt"`
	Input         json.RawMessage `json:"input,omitempty" yaml:"-"`
	Output        json.RawMessage `json:"output,omitempty" yaml:"-"`
	Error         *MessageError   `json:"error,omitempty" yaml:"error,omitempty"`
	Metrics       MessageMetrics  `json:"metrics" yaml:"metrics"`
	CreatedAt     time.Time       `json:"created_at" yaml:"created_at"`
}
