// Package workflow implements the scoreboard ingestion state machine: file
// validation, pre-signed upload, asynchronous processing with polling, user
// review of confidence-tagged extraction results, and final submission.
//
// The Controller owns the State exclusively. User actions and asynchronous
// client results are both funneled through its methods; every transition is
// applied under one mutex, and asynchronous results carry an attempt
// generation so a stale response can never mutate a state that has been
// reset and reused for a new attempt.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"scorelens/internal/api"
	"scorelens/internal/imagecheck"
)

const (
	// defaultPollInterval is how often the controller asks the engine for
	// task status while in StepProcessing.
	defaultPollInterval = 3 * time.Second

	// defaultPollDeadline bounds the whole polling loop. The engine normally
	// finishes in well under a minute; a hung engine should not be polled
	// forever.
	defaultPollDeadline = 10 * time.Minute
)

// processingFailedMessage is the user-facing message for both an
// engine-reported failure and a transport failure while polling.
const processingFailedMessage = "Processing failed. Please try again from the start."

// Backend is the slice of the API surface the workflow drives. *api.Client
// satisfies it.
type Backend interface {
	RequestUploadTarget(ctx context.Context, fileName string) (*api.UploadTarget, error)
	Upload(ctx context.Context, target *api.UploadTarget, path string) error
	StartProcessing(ctx context.Context, objectKey string) (string, error)
	PollStatus(ctx context.Context, taskID string) (*api.TaskStatus, error)
	Submit(ctx context.Context, record *api.Record) (string, error)
}

var _ Backend = (*api.Client)(nil)

// Controller drives one ingestion dialog's workflow.
type Controller struct {
	mu      sync.Mutex
	backend Backend
	state   State

	// attempt is the stale-response guard: asynchronous work started for
	// attempt N applies its results only while the counter still reads N.
	attempt int

	// pollCancel stops the active poll loop; nil when no loop is running.
	pollCancel context.CancelFunc

	pollInterval time.Duration
	pollDeadline time.Duration

	validate func(path string) (*imagecheck.Accepted, error)
	notify   func(State)

	submitting bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithPollInterval overrides the status-poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) { c.pollInterval = d }
}

// WithPollDeadline overrides the overall polling deadline.
func WithPollDeadline(d time.Duration) Option {
	return func(c *Controller) { c.pollDeadline = d }
}

// WithNotify registers a callback invoked with a state snapshot after every
// transition. It is called outside the controller lock.
func WithNotify(fn func(State)) Option {
	return func(c *Controller) { c.notify = fn }
}

// New creates a Controller in StepIdle.
func New(backend Backend, opts ...Option) *Controller {
	c := &Controller{
		backend:      backend,
		state:        State{Step: StepIdle},
		pollInterval: defaultPollInterval,
		pollDeadline: defaultPollDeadline,
		validate:     imagecheck.Validate,
		notify:       func(State) {},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns a read-only copy of the current workflow state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// mutate applies fn to the state under the lock and notifies the observer.
func (c *Controller) mutate(fn func(*State)) {
	c.mu.Lock()
	fn(&c.state)
	snap := c.state.clone()
	c.mu.Unlock()
	c.notify(snap)
}

// apply is mutate with a stale-response guard: it is a no-op if the attempt
// counter moved on since the asynchronous work was started.
func (c *Controller) apply(gen int, fn func(*State)) bool {
	c.mu.Lock()
	if gen != c.attempt {
		c.mu.Unlock()
		log.Debug().Int("gen", gen).Int("attempt", c.attempt).Msg("Ignoring stale async result")
		return false
	}
	fn(&c.state)
	snap := c.state.clone()
	c.mu.Unlock()
	c.notify(snap)
	return true
}

// SelectFile validates a candidate screenshot and stores it for upload. It
// is only meaningful in StepIdle. A validation failure leaves the selection
// unset and surfaces the validator's message; re-selecting after a failure
// clears the previous error immediately.
func (c *Controller) SelectFile(path string) error {
	c.mu.Lock()
	if c.state.Step != StepIdle {
		step := c.state.Step
		c.mu.Unlock()
		return fmt.Errorf("cannot select a file during %s", step)
	}
	// Clear the previous failure before validating the new candidate.
	c.state.LastError = ""
	c.mu.Unlock()

	accepted, err := c.validate(path)
	if err != nil {
		log.Info().Str("path", path).Err(err).Msg("Screenshot rejected")
		c.mutate(func(s *State) {
			s.LastError = err.Error()
		})
		return err
	}

	log.Info().Str("path", path).Str("format", accepted.Format).Msg("Screenshot selected")
	c.mutate(func(s *State) {
		s.SelectedFile = accepted
		s.LastError = ""
		s.Dirty = true
	})
	return nil
}

// DismissError clears the last failure message.
func (c *Controller) DismissError() {
	c.mutate(func(s *State) {
		s.LastError = ""
	})
}

// RequestClose handles the user asking to close the dialog. With no pending
// edits the workflow resets and closes immediately; otherwise the
// close-confirmation overlay suspends the current step. Polling is paused
// while the overlay is up.
func (c *Controller) RequestClose() {
	c.mu.Lock()
	if !c.state.Dirty {
		c.resetLocked(true)
		snap := c.state.clone()
		c.mu.Unlock()
		c.notify(snap)
		return
	}
	if c.state.Step == StepClosing {
		c.mu.Unlock()
		return
	}
	c.state.PriorStep = c.state.Step
	c.state.Step = StepClosing
	c.stopPollingLocked()
	snap := c.state.clone()
	c.mu.Unlock()

	log.Debug().Str("prior_step", snap.PriorStep.String()).Msg("Close requested, awaiting confirmation")
	c.notify(snap)
}

// ConfirmClose abandons the in-progress ingestion: every field resets to its
// empty default, in-flight work is orphaned (its results will fail the
// generation check), and polling stops for good.
func (c *Controller) ConfirmClose() {
	c.mu.Lock()
	if c.state.Step != StepClosing {
		c.mu.Unlock()
		return
	}
	c.resetLocked(true)
	snap := c.state.clone()
	c.mu.Unlock()

	log.Info().Msg("Ingestion abandoned by user")
	c.notify(snap)
}

// CancelClose dismisses the close-confirmation overlay and resumes the
// suspended step, restarting the poll loop if processing was under way.
func (c *Controller) CancelClose() {
	c.mu.Lock()
	if c.state.Step != StepClosing {
		c.mu.Unlock()
		return
	}
	c.state.Step = c.state.activeStep()
	resumePoll := c.state.Step == StepProcessing && c.state.ProcessingTaskID != ""
	gen := c.attempt
	taskID := c.state.ProcessingTaskID
	snap := c.state.clone()
	c.mu.Unlock()

	c.notify(snap)
	if resumePoll {
		c.startPolling(gen, taskID)
	}
}

// resetLocked returns every field to its empty default and invalidates all
// outstanding asynchronous work. Callers hold c.mu.
func (c *Controller) resetLocked(closed bool) {
	c.stopPollingLocked()
	c.attempt++
	c.submitting = false
	c.state = State{Step: StepIdle, Closed: closed}
}

// stopPollingLocked cancels the active poll loop, if any. Callers hold c.mu.
func (c *Controller) stopPollingLocked() {
	if c.pollCancel != nil {
		c.pollCancel()
		c.pollCancel = nil
	}
}

// errorText prefers a typed error's user-facing message.
func errorText(err error) string {
	var upErr *api.UploadError
	if errors.As(err, &upErr) {
		return upErr.UserMessage()
	}
	return err.Error()
}
