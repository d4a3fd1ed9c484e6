package workflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"scorelens/internal/api"
	"scorelens/internal/confidence"
)

// Metadata field names accepted by EditMetadata.
const (
	FieldMap      = "map"
	FieldMode     = "mode"
	FieldTeamOne  = "team_one"
	FieldTeamTwo  = "team_two"
	FieldScoreOne = "score_one"
	FieldScoreTwo = "score_two"
)

// EditMetadata overwrites one extracted metadata field with user input and
// marks it resolved. Score fields are parsed as integers; a non-numeric
// entry is rejected at the field level and recorded in FieldErrors without
// touching the stored value.
func (c *Controller) EditMetadata(field, text string) error {
	c.mu.Lock()

	if c.state.Step != StepReviewGameData {
		step := c.state.Step
		c.mu.Unlock()
		return fmt.Errorf("cannot edit game data during %s", step)
	}
	if c.state.Metadata == nil {
		c.mu.Unlock()
		return errors.New("no extracted metadata to edit")
	}

	text = strings.TrimSpace(text)
	meta := c.state.Metadata

	switch field {
	case FieldMap:
		meta.Map = confidence.Resolved(text)
	case FieldMode:
		meta.Mode = confidence.Resolved(text)
	case FieldTeamOne:
		meta.TeamOne = confidence.Resolved(text)
	case FieldTeamTwo:
		meta.TeamTwo = confidence.Resolved(text)
	case FieldScoreOne, FieldScoreTwo:
		score, err := strconv.Atoi(text)
		if err != nil {
			c.setFieldErrorLocked(field, "must be a whole number")
			snap := c.state.clone()
			c.mu.Unlock()
			c.notify(snap)
			return fmt.Errorf("%s: %q is not a whole number", field, text)
		}
		if field == FieldScoreOne {
			meta.ScoreOne = confidence.Resolved(score)
		} else {
			meta.ScoreTwo = confidence.Resolved(score)
		}
	default:
		c.mu.Unlock()
		return fmt.Errorf("unknown metadata field %q", field)
	}

	c.state.Dirty = true
	delete(c.state.FieldErrors, field)
	snap := c.state.clone()
	c.mu.Unlock()

	c.notify(snap)
	return nil
}

// ConfirmGameData validates the required metadata fields and advances to the
// scoreboard review. On failure the step is unchanged and FieldErrors holds
// one message per offending field.
func (c *Controller) ConfirmGameData() error {
	c.mu.Lock()
	if c.state.Step != StepReviewGameData {
		step := c.state.Step
		c.mu.Unlock()
		return fmt.Errorf("cannot confirm game data during %s", step)
	}

	meta := c.state.Metadata
	fieldErrs := map[string]string{}
	if meta == nil {
		c.mu.Unlock()
		return errors.New("no extracted metadata to confirm")
	}
	if strings.TrimSpace(meta.Mode.Value) == "" {
		fieldErrs[FieldMode] = "game mode is required"
	}
	if strings.TrimSpace(meta.Map.Value) == "" {
		fieldErrs[FieldMap] = "map is required"
	}
	if strings.TrimSpace(meta.TeamOne.Value) == "" {
		fieldErrs[FieldTeamOne] = "team name is required"
	}
	if strings.TrimSpace(meta.TeamTwo.Value) == "" {
		fieldErrs[FieldTeamTwo] = "team name is required"
	}
	if meta.ScoreOne.Value < 0 {
		fieldErrs[FieldScoreOne] = "score cannot be negative"
	}
	if meta.ScoreTwo.Value < 0 {
		fieldErrs[FieldScoreTwo] = "score cannot be negative"
	}

	if len(fieldErrs) > 0 {
		c.state.FieldErrors = fieldErrs
		snap := c.state.clone()
		c.mu.Unlock()
		c.notify(snap)
		return fmt.Errorf("%d game data fields failed validation", len(fieldErrs))
	}

	c.state.Step = StepReviewScoreboard
	c.state.FieldErrors = nil
	c.state.LastError = ""
	snap := c.state.clone()
	c.mu.Unlock()

	log.Debug().Msg("Game data confirmed")
	c.notify(snap)
	return nil
}

// BackToIdle leaves the game-data review, discarding the extracted data but
// not the uploaded object: the user is not forced to re-upload, only to
// restart processing.
func (c *Controller) BackToIdle() error {
	c.mu.Lock()
	if c.state.Step != StepReviewGameData {
		step := c.state.Step
		c.mu.Unlock()
		return fmt.Errorf("cannot go back to idle during %s", step)
	}
	c.state.Step = StepIdle
	c.state.Metadata = nil
	c.state.PlayerStats = nil
	c.state.stripped = nil
	c.state.ProcessingTaskID = ""
	c.state.FieldErrors = nil
	snap := c.state.clone()
	c.mu.Unlock()

	c.notify(snap)
	return nil
}

// EditPlayerStat overwrites one stat for one player with user input and
// marks it resolved. Other stats for the player are untouched. Non-numeric
// input is rejected at the field level.
func (c *Controller) EditPlayerStat(player, statKey, text string) error {
	c.mu.Lock()

	if c.state.Step != StepReviewScoreboard {
		step := c.state.Step
		c.mu.Unlock()
		return fmt.Errorf("cannot edit player stats during %s", step)
	}

	stats, ok := c.state.PlayerStats[player]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("unknown player %q", player)
	}
	if _, ok := stats[statKey]; !ok {
		c.mu.Unlock()
		return fmt.Errorf("unknown stat %q for player %q", statKey, player)
	}

	field := player + "." + statKey
	value, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		c.setFieldErrorLocked(field, "must be a whole number")
		snap := c.state.clone()
		c.mu.Unlock()
		c.notify(snap)
		return fmt.Errorf("%s: %q is not a whole number", field, text)
	}

	stats.ApplyEdit(statKey, value)
	c.state.Dirty = true
	delete(c.state.FieldErrors, field)
	snap := c.state.clone()
	c.mu.Unlock()

	c.notify(snap)
	return nil
}

// ConfirmScoreboard validates the per-player stats, strips their confidence
// tags into the submission-ready mapping, and advances to the final review.
func (c *Controller) ConfirmScoreboard() error {
	c.mu.Lock()
	if c.state.Step != StepReviewScoreboard {
		step := c.state.Step
		c.mu.Unlock()
		return fmt.Errorf("cannot confirm scoreboard during %s", step)
	}

	fieldErrs := map[string]string{}
	for player, stats := range c.state.PlayerStats {
		for key, v := range stats {
			if v.Value < 0 {
				fieldErrs[player+"."+key] = "cannot be negative"
			}
		}
	}
	if len(fieldErrs) > 0 {
		c.state.FieldErrors = fieldErrs
		snap := c.state.clone()
		c.mu.Unlock()
		c.notify(snap)
		return fmt.Errorf("%d player stats failed validation", len(fieldErrs))
	}

	c.state.stripped = confidence.Strip(c.state.PlayerStats)
	c.state.Step = StepReviewFinal
	c.state.FieldErrors = nil
	c.state.LastError = ""
	snap := c.state.clone()
	c.mu.Unlock()

	log.Debug().Int("players", len(snap.stripped)).Msg("Scoreboard confirmed")
	c.notify(snap)
	return nil
}

// BackToGameData returns from the scoreboard review to the game-data review.
func (c *Controller) BackToGameData() error {
	return c.stepBack(StepReviewScoreboard, StepReviewGameData)
}

// BackToScoreboard returns from the final review to the scoreboard review.
func (c *Controller) BackToScoreboard() error {
	return c.stepBack(StepReviewFinal, StepReviewScoreboard)
}

func (c *Controller) stepBack(from, to Step) error {
	c.mu.Lock()
	if c.state.Step != from {
		step := c.state.Step
		c.mu.Unlock()
		return fmt.Errorf("cannot go back to %s during %s", to, step)
	}
	c.state.Step = to
	c.state.FieldErrors = nil
	snap := c.state.clone()
	c.mu.Unlock()

	c.notify(snap)
	return nil
}

// SetTitle records the analysis title.
func (c *Controller) SetTitle(title string) { c.setFinal(func(s *State) { s.Title = strings.TrimSpace(title) }) }

// SetTournament records the tournament name.
func (c *Controller) SetTournament(tournament string) {
	c.setFinal(func(s *State) { s.Tournament = strings.TrimSpace(tournament) })
}

// SetPlayedAt records the date the map was played, as YYYY-MM-DD.
func (c *Controller) SetPlayedAt(playedAt string) {
	c.setFinal(func(s *State) { s.PlayedAt = strings.TrimSpace(playedAt) })
}

func (c *Controller) setFinal(fn func(*State)) {
	c.mutate(func(s *State) {
		fn(s)
		s.Dirty = true
	})
}

// Submit validates the final fields and posts the finished record. On
// success the workflow resets and closes, retaining only the new analysis ID
// for navigation; on failure the final review stays open with a classified,
// retry-capable message.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Step != StepReviewFinal {
		step := c.state.Step
		c.mu.Unlock()
		return fmt.Errorf("cannot submit during %s", step)
	}
	if c.submitting {
		c.mu.Unlock()
		return errors.New("submission already in progress")
	}

	fieldErrs := map[string]string{}
	if c.state.Title == "" {
		fieldErrs["title"] = "title is required"
	}
	if c.state.Tournament == "" {
		fieldErrs["tournament"] = "tournament is required"
	}
	if _, err := time.Parse("2006-01-02", c.state.PlayedAt); err != nil {
		fieldErrs["played_at"] = "date must be YYYY-MM-DD"
	}
	if len(fieldErrs) > 0 {
		c.state.FieldErrors = fieldErrs
		snap := c.state.clone()
		c.mu.Unlock()
		c.notify(snap)
		return fmt.Errorf("%d fields failed validation", len(fieldErrs))
	}
	if c.state.UploadedObjectKey == "" {
		c.mu.Unlock()
		return errors.New("no uploaded screenshot to submit")
	}
	if c.state.stripped == nil || c.state.Metadata == nil {
		c.mu.Unlock()
		return errors.New("no confirmed scoreboard data to submit")
	}

	record := &api.Record{
		Title:      c.state.Title,
		Tournament: c.state.Tournament,
		PlayedAt:   c.state.PlayedAt,
		Map:        c.state.Metadata.Map.Value,
		Mode:       c.state.Metadata.Mode.Value,
		TeamOne:    c.state.Metadata.TeamOne.Value,
		TeamTwo:    c.state.Metadata.TeamTwo.Value,
		ScoreOne:   c.state.Metadata.ScoreOne.Value,
		ScoreTwo:   c.state.Metadata.ScoreTwo.Value,
		ObjectKey:  c.state.UploadedObjectKey,
		Players:    c.state.stripped,
	}

	c.submitting = true
	gen := c.attempt
	c.state.FieldErrors = nil
	c.state.LastError = ""
	c.mu.Unlock()

	go c.runSubmit(ctx, gen, record)
	return nil
}

// runSubmit posts the record and applies the outcome if the attempt is
// still current.
func (c *Controller) runSubmit(ctx context.Context, gen int, record *api.Record) {
	id, err := c.backend.Submit(ctx, record)

	c.mu.Lock()
	if gen != c.attempt {
		c.mu.Unlock()
		return
	}
	c.submitting = false

	if err != nil {
		c.state.LastError = submissionErrorText(err)
		snap := c.state.clone()
		c.mu.Unlock()
		log.Warn().Err(err).Msg("Submission failed")
		c.notify(snap)
		return
	}

	c.resetLocked(true)
	c.state.SubmittedID = id
	snap := c.state.clone()
	c.mu.Unlock()

	log.Info().Str("id", id).Msg("Analysis submitted")
	c.notify(snap)
}

// submissionErrorText maps a submission failure to its user-facing message.
func submissionErrorText(err error) string {
	var subErr *api.SubmissionError
	if errors.As(err, &subErr) {
		switch subErr.Kind {
		case api.SubmissionTimeout:
			return "The submission timed out. Please try again."
		case api.SubmissionValidation:
			if subErr.Message != "" {
				return "Submission rejected: " + subErr.Message
			}
			return "Submission rejected by the server."
		}
	}
	return "Submission failed. Please try again."
}

// setFieldErrorLocked records a field-level validation message. Callers hold
// c.mu.
func (c *Controller) setFieldErrorLocked(field, message string) {
	if c.state.FieldErrors == nil {
		c.state.FieldErrors = map[string]string{}
	}
	c.state.FieldErrors[field] = message
}
