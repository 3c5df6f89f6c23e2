// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists paper tasks and their append-only A2A audit trail.
// SQLite is the production backend; Memory serves tests and dry runs.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pdiddy/medpaper/internal/a2a"
	"github.com/pdiddy/medpaper/pkg/types"
)

// ErrNotFound is returned when a task does not exist.
var ErrNotFound = errors.New("task not found")

// ListOptions filters ListTasks. Zero values match everything.
type ListOptions struct {
	UserID string
	Status types.TaskStatus
	Limit  int
}

// Store is the persistence interface used by the supervisor and the paper
// service. Messages can only be appended; no method updates or deletes them.
type Store interface {
	SaveTask(ctx context.Context, t *types.MedicalPaperTask) error
	LoadTask(ctx context.Context, id string) (*types.MedicalPaperTask, error)
	ListTasks(ctx context.Context, opts ListOptions) ([]types.MedicalPaperTask, error)
	AppendMessage(ctx context.Context, taskID string, req, resp a2a.Message, attempt int) error
	ListMessages(ctx context.Context, taskID string) ([]types.PaperTaskMessage, error)
	Close() error
}

// NewRecord merges a request and its response into one audit record.
// Identity, routing and input come from the request; status, output, error
// and metrics from the response.
func NewRecord(taskID string, req, resp a2a.Message, attempt int) types.PaperTaskMessage {
	rec := types.PaperTaskMessage{
		TaskID:        taskID,
		MessageID:     req.ID,
		CorrelationID: req.CorrelationID,
		Sender:        req.Sender,
		Receiver:      req.Receiver,
		Intent:        req.Intent,
		Status:        string(resp.Status),
		Attempt:       attempt,
		Input:         json.RawMessage(req.Input),
		Output:        json.RawMessage(resp.Output),
		Metrics: types.MessageMetrics{
			LatencyMs: resp.Metrics.LatencyMs,
			TokensIn:  resp.Metrics.TokensIn,
			TokensOut: resp.Metrics.TokensOut,
		},
		CreatedAt: resp.Timestamp,
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = req.Timestamp
	}
	if resp.Error != nil {
		rec.Error = &types.MessageError{
			Kind:        string(resp.Error.Kind),
			Message:     resp.Error.Message,
			Recoverable: resp.Error.Recoverable,
			RetryAfter:  resp.Error.RetryAfter,
		}
	}
	return rec
}

// cloneTask deep-copies t through JSON so stored tasks never alias caller
// memory.
func cloneTask(t *types.MedicalPaperTask) (*types.MedicalPaperTask, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encoding task %s: %w", t.ID, err)
	}
	var out types.MedicalPaperTask
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding task %s: %w", t.ID, err)
	}
	return &out, nil
}
