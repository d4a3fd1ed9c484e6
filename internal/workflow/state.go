package workflow

import (
	"scorelens/internal/confidence"
	"scorelens/internal/imagecheck"
)

// State is the single source of truth for one in-progress ingestion. It is
// mutated only by the Controller; everything else sees read-only snapshots.
type State struct {
	Step Step

	// PriorStep is the step suspended by the close-confirmation overlay.
	// Meaningful only while Step is StepClosing.
	PriorStep Step

	// SelectedFile is the validated screenshot, owned by the controller
	// until submission or reset.
	SelectedFile *imagecheck.Accepted

	// UploadedObjectKey is the storage key assigned for this attempt. Empty
	// until the storage service acknowledges the upload. Going back to Idle
	// keeps it; only a full reset clears it.
	UploadedObjectKey string

	// ProcessingTaskID is the engine's task handle. Empty until the engine
	// accepts the task.
	ProcessingTaskID string

	// Metadata and PlayerStats hold the extraction result, confidence tags
	// included, once processing completes.
	Metadata    *confidence.Metadata
	PlayerStats map[string]confidence.StatMap

	// Final-step fields collected before submission.
	Title      string
	Tournament string
	PlayedAt   string // YYYY-MM-DD

	// LastError is the human-readable failure of the most recent transition.
	// Cleared on every successful transition and on manual dismissal.
	LastError string

	// FieldErrors maps a field name (e.g. "score_one", "Dashy.kills",
	// "title") to its validation message.
	FieldErrors map[string]string

	// Dirty is set once a file is selected or any field edited; it gates
	// the close-confirmation overlay.
	Dirty bool

	// Closed reports that the workflow ended, by confirmed close or by a
	// successful submission.
	Closed bool

	// SubmittedID is the persisted analysis ID after a successful
	// submission, for post-success navigation.
	SubmittedID string

	// stripped is the confidence-free player mapping computed when the
	// scoreboard review is confirmed.
	stripped map[string]map[string]int
}

// setStep moves the workflow to the given step. While the close overlay is
// up, asynchronous results land on the suspended step instead, so cancelling
// the overlay resumes where the work left off.
func (s *State) setStep(step Step) {
	if s.Step == StepClosing && step != StepClosing {
		s.PriorStep = step
		return
	}
	s.Step = step
}

// activeStep is the step the workflow logic should treat as current: the
// suspended one while the close overlay is up.
func (s *State) activeStep() Step {
	if s.Step == StepClosing {
		return s.PriorStep
	}
	return s.Step
}

// clone returns a deep copy safe to hand outside the controller.
func (s *State) clone() State {
	out := *s

	if s.Metadata != nil {
		meta := *s.Metadata
		out.Metadata = &meta
	}

	if s.PlayerStats != nil {
		out.PlayerStats = make(map[string]confidence.StatMap, len(s.PlayerStats))
		for name, stats := range s.PlayerStats {
			copied := make(confidence.StatMap, len(stats))
			for k, v := range stats {
				copied[k] = v
			}
			out.PlayerStats[name] = copied
		}
	}

	if s.FieldErrors != nil {
		out.FieldErrors = make(map[string]string, len(s.FieldErrors))
		for k, v := range s.FieldErrors {
			out.FieldErrors[k] = v
		}
	}

	if s.stripped != nil {
		out.stripped = make(map[string]map[string]int, len(s.stripped))
		for name, stats := range s.stripped {
			copied := make(map[string]int, len(stats))
			for k, v := range stats {
				copied[k] = v
			}
			out.stripped[name] = copied
		}
	}

	return out
}

// StrippedPlayers returns the submission-ready player mapping computed at
// scoreboard confirmation, or nil before that.
func (s State) StrippedPlayers() map[string]map[string]int {
	return s.stripped
}
