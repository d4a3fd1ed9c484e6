package store

import (
	"context"
	"sync"

	"scorelens/internal/confidence"
)

// MemoryStore keeps tasks in a mutex-guarded map. Suitable for the local dev
// server, where every request is served by the same process.
type MemoryStore struct {
	mu    sync.Mutex
	tasks map[string]*Task
}

// NewMemoryStore returns an empty in-memory task store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]*Task)}
}

func (m *MemoryStore) Create(_ context.Context, task *Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *task
	m.tasks[task.ID] = &copied
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *task
	return &copied, nil
}

func (m *MemoryStore) SetResult(_ context.Context, id string, result *confidence.ExtractedData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return ErrNotFound
	}
	task.Status = StatusCompleted
	task.Result = result
	task.Error = ""
	return nil
}

func (m *MemoryStore) SetFailed(_ context.Context, id string, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return ErrNotFound
	}
	task.Status = StatusFailed
	task.Error = message
	return nil
}
