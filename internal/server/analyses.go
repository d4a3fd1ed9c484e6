package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"

	"scorelens/internal/api"
)

// analysisRecord is a persisted analysis: the submitted record plus the
// server-assigned identity.
type analysisRecord struct {
	ID          string    `json:"id"`
	SubmittedAt time.Time `json:"submitted_at"`
	api.Record
}

// POST /analyses
//
// Validates and persists a finalized analysis. Rejections are 422 with the
// failure detail in the body, which the client surfaces verbatim.
func (s *Server) handleAnalyses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var record api.Record
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if msg := validateRecord(&record); msg != "" {
		log.Warn().Str("detail", msg).Msg("Analysis rejected")
		httpError(w, http.StatusUnprocessableEntity, msg)
		return
	}

	stored := &analysisRecord{
		ID:          "analysis-" + uuid.NewString(),
		SubmittedAt: time.Now().UTC(),
		Record:      record,
	}
	s.analysesMu.Lock()
	s.analyses[stored.ID] = stored
	s.analysesMu.Unlock()

	log.Info().Str("id", stored.ID).Str("title", record.Title).Msg("Analysis persisted")
	respondJSON(w, http.StatusCreated, map[string]string{"id": stored.ID})
}

// validateRecord returns a rejection message, or "" when the record is
// acceptable.
func validateRecord(record *api.Record) string {
	switch {
	case record.Title == "":
		return "title is required"
	case record.Tournament == "":
		return "tournament is required"
	case record.Map == "" || record.Mode == "":
		return "map and mode are required"
	case record.TeamOne == "" || record.TeamTwo == "":
		return "both team names are required"
	case record.ObjectKey == "":
		return "object_key is required"
	case len(record.Players) == 0:
		return "at least one player is required"
	}
	if _, err := time.Parse("2006-01-02", record.PlayedAt); err != nil {
		return "played_at must be YYYY-MM-DD"
	}
	if record.ScoreOne < 0 || record.ScoreTwo < 0 {
		return "scores cannot be negative"
	}
	for name, stats := range record.Players {
		for key, v := range stats {
			if v < 0 {
				return "negative stat " + key + " for player " + name
			}
		}
	}
	return ""
}

// DELETE /analysis/{id}
func (s *Server) handleAnalysisDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/analysis/")
	s.analysesMu.Lock()
	_, ok := s.analyses[id]
	delete(s.analyses, id)
	s.analysesMu.Unlock()

	if !ok {
		httpError(w, http.StatusNotFound, "analysis not found")
		return
	}
	log.Info().Str("id", id).Msg("Analysis deleted")
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Routes under /analyses/{id}/...
func (s *Server) handleAnalysisRoutes(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/analyses/"), "/")
	if len(parts) != 2 || parts[1] != "export" {
		httpError(w, http.StatusNotFound, "not found")
		return
	}
	s.handleAnalysisExport(w, r, parts[0])
}

// GET /analyses/{id}/export
//
// Streams the analysis as zstd-compressed JSON for archival.
func (s *Server) handleAnalysisExport(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	s.analysesMu.Lock()
	record, ok := s.analyses[id]
	s.analysesMu.Unlock()
	if !ok {
		httpError(w, http.StatusNotFound, "analysis not found")
		return
	}

	payload, err := json.Marshal(record)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "failed to encode analysis")
		return
	}

	w.Header().Set("Content-Type", "application/zstd")
	w.Header().Set("Content-Disposition", `attachment; filename="`+id+`.json.zst"`)
	w.WriteHeader(http.StatusOK)

	enc, err := zstd.NewWriter(w)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create zstd encoder")
		return
	}
	if _, err := enc.Write(payload); err != nil {
		log.Error().Err(err).Str("id", id).Msg("Export write failed")
		enc.Close()
		return
	}
	if err := enc.Close(); err != nil {
		log.Error().Err(err).Str("id", id).Msg("Export flush failed")
	}
}
