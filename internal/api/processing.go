package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"

	"scorelens/internal/confidence"
)

// TaskState is the processing engine's view of one extraction task.
type TaskState string

const (
	TaskPending   TaskState = "pending"
	TaskCompleted TaskState = "completed"
	TaskFailed    TaskState = "failed"
)

// TaskStatus is one poll result. Data is present only when Status is
// TaskCompleted.
type TaskStatus struct {
	Status TaskState                 `json:"status"`
	Data   *confidence.ExtractedData `json:"data,omitempty"`
}

// StartProcessing tells the engine to begin extracting the uploaded object.
// The engine is asynchronous: the returned task ID is an opaque handle for
// subsequent PollStatus calls, not a completion signal.
func (c *Client) StartProcessing(ctx context.Context, objectKey string) (string, error) {
	endpoint := c.endpoint("process") + "?file_name=" + url.QueryEscape(objectKey)

	log.Debug().Str("object_key", objectKey).Msg("Starting processing")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return "", &RequestError{Op: "start_processing", Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &RequestError{Op: "start_processing", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &RequestError{Op: "start_processing", Err: err}
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", &RequestError{Op: "start_processing", StatusCode: resp.StatusCode}
	}

	var payload struct {
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", &RequestError{Op: "start_processing", Err: fmt.Errorf("parse response: %w", err)}
	}
	if payload.TaskID == "" {
		return "", &RequestError{Op: "start_processing", Err: fmt.Errorf("engine returned no task id")}
	}

	log.Info().Str("object_key", objectKey).Str("task_id", payload.TaskID).Msg("Processing accepted")
	return payload.TaskID, nil
}

// PollStatus fetches the current state of a processing task. A transport or
// HTTP-level failure is a *RequestError (retryable by the caller's polling
// policy); an engine-reported failed task comes back as a normal TaskStatus
// with Status == TaskFailed, which is terminal for the task.
func (c *Client) PollStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
	endpoint := c.endpoint("process/status") + "?task_id=" + url.QueryEscape(taskID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &RequestError{Op: "poll_status", Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RequestError{Op: "poll_status", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestError{Op: "poll_status", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &RequestError{Op: "poll_status", StatusCode: resp.StatusCode}
	}

	var status TaskStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, &RequestError{Op: "poll_status", Err: fmt.Errorf("parse response: %w", err)}
	}

	switch status.Status {
	case TaskPending, TaskCompleted, TaskFailed:
	default:
		return nil, &RequestError{Op: "poll_status", Err: fmt.Errorf("unknown task status %q", status.Status)}
	}

	if status.Status == TaskCompleted && status.Data == nil {
		return nil, &RequestError{Op: "poll_status", Err: fmt.Errorf("completed task %s has no data", taskID)}
	}

	log.Debug().Str("task_id", taskID).Str("status", string(status.Status)).Msg("Poll result")
	return &status, nil
}
