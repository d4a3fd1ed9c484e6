package workflow

// Step identifies the active stage of the ingestion workflow. Exactly one
// step is active at a time.
type Step int

const (
	// StepIdle is the opening state: a file may be selected but nothing is
	// in flight.
	StepIdle Step = iota
	// StepUploading covers the upload-target request, the direct-to-storage
	// upload, and the processing-start call.
	StepUploading
	// StepProcessing means the engine accepted the task and the controller
	// is polling for completion.
	StepProcessing
	// StepReviewGameData is the first review screen: map, mode, teams, scores.
	StepReviewGameData
	// StepReviewScoreboard is the per-player stat review screen.
	StepReviewScoreboard
	// StepReviewFinal collects title, tournament, and played date before
	// submission.
	StepReviewFinal
	// StepClosing is the close-confirmation overlay; it suspends whichever
	// step was active and is reachable from any of them.
	StepClosing
)

func (s Step) String() string {
	switch s {
	case StepIdle:
		return "idle"
	case StepUploading:
		return "uploading"
	case StepProcessing:
		return "processing"
	case StepReviewGameData:
		return "review_game_data"
	case StepReviewScoreboard:
		return "review_scoreboard"
	case StepReviewFinal:
		return "review_final"
	case StepClosing:
		return "closing"
	default:
		return "unknown"
	}
}
