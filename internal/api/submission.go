package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Record is the fully validated, confidence-stripped analysis submitted for
// persistence.
type Record struct {
	Title      string                    `json:"title"`
	Tournament string                    `json:"tournament"`
	PlayedAt   string                    `json:"played_at"` // YYYY-MM-DD
	Map        string                    `json:"map"`
	Mode       string                    `json:"mode"`
	TeamOne    string                    `json:"team_one"`
	TeamTwo    string                    `json:"team_two"`
	ScoreOne   int                       `json:"score_one"`
	ScoreTwo   int                       `json:"score_two"`
	ObjectKey  string                    `json:"object_key"`
	Players    map[string]map[string]int `json:"players"`
}

// Submit posts the finalized record to the persistence API and returns the
// new analysis ID. A fixed caller-side deadline bounds the call; exceeding it
// yields a timeout-kind *SubmissionError, a 4xx rejection yields a
// validation-kind error with the server's detail verbatim, and anything else
// is generic.
func (c *Client) Submit(ctx context.Context, record *Record) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, submitTimeout)
	defer cancel()

	payload, err := json.Marshal(record)
	if err != nil {
		return "", &SubmissionError{Kind: SubmissionGeneric, Err: fmt.Errorf("encode record: %w", err)}
	}

	log.Debug().
		Str("title", record.Title).
		Str("object_key", record.ObjectKey).
		Int("players", len(record.Players)).
		Msg("Submitting analysis")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("analyses"), bytes.NewReader(payload))
	if err != nil {
		return "", &SubmissionError{Kind: SubmissionGeneric, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.submitClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			log.Warn().Dur("duration", time.Since(start)).Msg("Submission timed out")
			return "", &SubmissionError{Kind: SubmissionTimeout, Err: err}
		}
		return "", &SubmissionError{Kind: SubmissionGeneric, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &SubmissionError{Kind: SubmissionGeneric, Err: err}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		msg := errorMessage(body)
		log.Warn().Int("status", resp.StatusCode).Str("detail", msg).Msg("Submission rejected")
		return "", &SubmissionError{Kind: SubmissionValidation, StatusCode: resp.StatusCode, Message: msg}
	default:
		return "", &SubmissionError{Kind: SubmissionGeneric, StatusCode: resp.StatusCode}
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", &SubmissionError{Kind: SubmissionGeneric, Err: fmt.Errorf("parse response: %w", err)}
	}
	if result.ID == "" {
		return "", &SubmissionError{Kind: SubmissionGeneric, Err: fmt.Errorf("server returned no analysis id")}
	}

	log.Info().Str("id", result.ID).Dur("duration", time.Since(start)).Msg("Analysis persisted")
	return result.ID, nil
}

// DeleteAnalysis removes a persisted analysis.
func (c *Client) DeleteAnalysis(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.endpoint("analysis/"+id), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete analysis %s: %w", id, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		if msg := errorMessage(body); msg != "" {
			return fmt.Errorf("delete analysis %s: HTTP %d: %s", id, resp.StatusCode, msg)
		}
		return fmt.Errorf("delete analysis %s: HTTP %d", id, resp.StatusCode)
	}

	log.Info().Str("id", id).Msg("Analysis deleted")
	return nil
}
