// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pdiddy/medpaper/internal/a2a"
	"github.com/pdiddy/medpaper/pkg/types"
)

// Memory is an in-process Store guarded by a mutex.
type Memory struct {
	mu       sync.Mutex
	tasks    map[string]*types.MedicalPaperTask
	messages map[string][]types.PaperTaskMessage
	nextID   int64
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		tasks:    make(map[string]*types.MedicalPaperTask),
		messages: make(map[string][]types.PaperTaskMessage),
	}
}

func (m *Memory) SaveTask(_ context.Context, t *types.MedicalPaperTask) error {
	c, err := cloneTask(t)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[t.ID] = c
	return nil
}

func (m *Memory) LoadTask(_ context.Context, id string) (*types.MedicalPaperTask, error) {
	m.mu.Lock()
	t, ok := m.tasks[id]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return cloneTask(t)
}

func (m *Memory) ListTasks(_ context.Context, opts ListOptions) ([]types.MedicalPaperTask, error) {
	m.mu.Lock()
	var tasks []types.MedicalPaperTask
	for _, t := range m.tasks {
		if opts.UserID != "" && t.UserID != opts.UserID {
			continue
		}
		if opts.Status != "" && t.Status != opts.Status {
			continue
		}
		c, err := cloneTask(t)
		if err != nil {
			m.mu.Unlock()
			return nil, err
		}
		tasks = append(tasks, *c)
	}
	m.mu.Unlock()

	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
		}
		return tasks[i].ID < tasks[j].ID
	})
	if opts.Limit > 0 && len(tasks) > opts.Limit {
		tasks = tasks[:opts.Limit]
	}
	return tasks, nil
}

func (m *Memory) AppendMessage(_ context.Context, taskID string, req, resp a2a.Message, attempt int) error {
	rec := NewRecord(taskID, req, resp, attempt)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[taskID]; !ok {
		return fmt.Errorf("appending message: %w: %s", ErrNotFound, taskID)
	}
	m.nextID++
	rec.ID = m.nextID
	m.messages[taskID] = append(m.messages[taskID], rec)
	return nil
}

func (m *Memory) ListMessages(_ context.Context, taskID string) ([]types.PaperTaskMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.PaperTaskMessage(nil), m.messages[taskID]...), nil
}

func (m *Memory) Close() error { return nil }
