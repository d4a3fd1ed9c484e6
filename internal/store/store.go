// Package store persists extraction tasks for the dev server. The memory
// implementation backs local runs; the DynamoDB implementation backs the
// Lambda deployment, where process and status requests may land on different
// instances.
package store

import (
	"context"
	"errors"
	"time"

	"scorelens/internal/confidence"
)

// Task status values, as served on the wire.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ErrNotFound is returned when a task ID has no record, including records
// already expired out of DynamoDB.
var ErrNotFound = errors.New("task not found")

// Task is one extraction task's lifecycle record.
type Task struct {
	ID        string
	ObjectKey string
	Status    string
	Result    *confidence.ExtractedData
	Error     string
	CreatedAt time.Time
}

// TaskStore persists extraction tasks. Create writes a pending record;
// SetResult and SetFailed are the two terminal transitions.
type TaskStore interface {
	Create(ctx context.Context, task *Task) error
	Get(ctx context.Context, id string) (*Task, error)
	SetResult(ctx context.Context, id string, result *confidence.ExtractedData) error
	SetFailed(ctx context.Context, id string, message string) error
}
