package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"scorelens/internal/api"
	"scorelens/internal/confidence"
)

// StartProcessing begins the asynchronous leg of the workflow: request an
// upload target, upload the selected screenshot, and hand the object to the
// processing engine. The object key is generated here, once, and reused
// unchanged through every call of the attempt.
//
// The method returns as soon as the transition to StepUploading is made; the
// chain itself runs in a controller-owned goroutine and reports back through
// the state.
func (c *Controller) StartProcessing(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Step != StepIdle {
		step := c.state.Step
		c.mu.Unlock()
		return fmt.Errorf("cannot start processing during %s", step)
	}
	if c.state.SelectedFile == nil {
		c.mu.Unlock()
		return errors.New("no screenshot selected")
	}

	// A fresh attempt: anything still in flight from a previous one becomes
	// stale and will be ignored when it lands.
	c.attempt++
	gen := c.attempt
	file := c.state.SelectedFile
	key := api.NewObjectKey(file.FileName())

	c.state.Step = StepUploading
	c.state.LastError = ""
	c.state.Dirty = true
	snap := c.state.clone()
	c.mu.Unlock()

	log.Info().Str("object_key", key).Str("path", file.Path).Msg("Starting upload chain")
	c.notify(snap)

	go c.runUploadChain(ctx, gen, key, file.Path)
	return nil
}

// runUploadChain performs target request → upload → processing start in
// order. Storage must acknowledge the upload before processing starts, and
// processing must be accepted before polling begins. Any failure regresses
// the workflow to StepIdle with a classified message.
func (c *Controller) runUploadChain(ctx context.Context, gen int, key, path string) {
	target, err := c.backend.RequestUploadTarget(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("object_key", key).Msg("Upload target request failed")
		c.apply(gen, func(s *State) {
			s.setStep(StepIdle)
			s.LastError = errorText(err)
		})
		return
	}

	if err := c.backend.Upload(ctx, target, path); err != nil {
		log.Warn().Err(err).Str("object_key", key).Msg("Upload failed")
		c.apply(gen, func(s *State) {
			s.setStep(StepIdle)
			s.LastError = errorText(err)
		})
		return
	}

	// Storage has acknowledged: the key is now assigned to this attempt.
	if !c.apply(gen, func(s *State) {
		s.UploadedObjectKey = key
	}) {
		return
	}

	taskID, err := c.backend.StartProcessing(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("object_key", key).Msg("Processing start failed")
		c.apply(gen, func(s *State) {
			s.setStep(StepIdle)
			s.LastError = "Could not start processing: " + errorText(err)
		})
		return
	}

	c.mu.Lock()
	if gen != c.attempt {
		c.mu.Unlock()
		return
	}
	c.state.setStep(StepProcessing)
	c.state.ProcessingTaskID = taskID
	suspended := c.state.Step == StepClosing
	snap := c.state.clone()
	c.mu.Unlock()

	c.notify(snap)
	if !suspended {
		c.startPolling(gen, taskID)
	}
}

// startPolling launches the cancellable status-poll loop for the given task.
// The loop is bound to the attempt: a reset or close cancels it, and its
// results are generation-checked like every other asynchronous leg.
func (c *Controller) startPolling(gen int, taskID string) {
	c.mu.Lock()
	if gen != c.attempt {
		c.mu.Unlock()
		return
	}
	c.stopPollingLocked()
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(c.pollDeadline))
	c.pollCancel = cancel
	interval := c.pollInterval
	c.mu.Unlock()

	log.Debug().Str("task_id", taskID).Dur("interval", interval).Msg("Polling started")
	go c.pollLoop(ctx, gen, taskID, interval)
}

// pollLoop issues one status request per tick until the task completes,
// fails, the deadline passes, or the loop is cancelled. Each poll is a
// discrete request, not an open connection.
func (c *Controller) pollLoop(ctx context.Context, gen int, taskID string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				log.Warn().Str("task_id", taskID).Msg("Polling deadline exceeded")
				c.clearPollLoop(gen)
				c.apply(gen, func(s *State) {
					s.setStep(StepIdle)
					s.ProcessingTaskID = ""
					s.LastError = "Processing is taking too long. Please try again."
				})
			}
			return

		case <-ticker.C:
			status, err := c.backend.PollStatus(ctx, taskID)
			if ctx.Err() != nil {
				// Cancelled mid-request: whatever came back is stale.
				return
			}
			if err != nil {
				log.Warn().Err(err).Str("task_id", taskID).Msg("Status poll failed")
				c.clearPollLoop(gen)
				c.apply(gen, func(s *State) {
					s.setStep(StepIdle)
					s.ProcessingTaskID = ""
					s.LastError = processingFailedMessage
				})
				return
			}

			switch status.Status {
			case api.TaskPending:
				// Keep polling.

			case api.TaskFailed:
				log.Warn().Str("task_id", taskID).Msg("Engine reported processing failed")
				c.clearPollLoop(gen)
				c.apply(gen, func(s *State) {
					s.setStep(StepIdle)
					s.ProcessingTaskID = ""
					s.LastError = processingFailedMessage
				})
				return

			case api.TaskCompleted:
				log.Info().
					Str("task_id", taskID).
					Int("players", len(status.Data.Players)).
					Msg("Processing completed")
				c.clearPollLoop(gen)
				data := status.Data
				c.apply(gen, func(s *State) {
					s.setStep(StepReviewGameData)
					s.Metadata = &data.Metadata
					s.PlayerStats = confidence.Initialize(data.Players)
					s.LastError = ""
				})
				return
			}
		}
	}
}

// clearPollLoop drops the stored cancel func for a loop that is terminating
// on its own, so a later RequestClose does not cancel an unrelated context.
func (c *Controller) clearPollLoop(gen int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen == c.attempt {
		c.stopPollingLocked()
	}
}
