package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"scorelens/internal/store"
)

// extractionTimeout bounds one extraction run, vision call included.
const extractionTimeout = 2 * time.Minute

// newTaskID generates a random task ID so task handles cannot be enumerated.
func newTaskID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		log.Fatal().Err(err).Msg("Failed to generate random task ID")
	}
	return "task-" + hex.EncodeToString(b)
}

// POST /process?file_name=...
//
// Creates an extraction task for an already-uploaded object and responds 202
// with the task handle. Extraction itself runs through the task store, so
// completion is observed by polling /process/status.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	key := r.URL.Query().Get("file_name")
	if key == "" {
		httpError(w, http.StatusBadRequest, "file_name is required")
		return
	}

	data, mimeType, err := s.fetchObject(r.Context(), key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Processing requested for unknown object")
		httpError(w, http.StatusNotFound, "no uploaded object with that name")
		return
	}

	task := &store.Task{
		ID:        newTaskID(),
		ObjectKey: key,
		Status:    store.StatusPending,
		CreatedAt: time.Now(),
	}
	if err := s.cfg.Store.Create(r.Context(), task); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to create task")
		httpError(w, http.StatusInternalServerError, "failed to create task")
		return
	}

	log.Info().Str("task_id", task.ID).Str("key", key).Msg("Extraction task created")

	if s.cfg.SyncProcessing {
		s.runExtraction(task.ID, data, mimeType)
	} else {
		go s.runExtraction(task.ID, data, mimeType)
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"task_id": task.ID})
}

// runExtraction drives one task to a terminal state.
func (s *Server) runExtraction(taskID string, data []byte, mimeType string) {
	ctx, cancel := context.WithTimeout(context.Background(), extractionTimeout)
	defer cancel()

	result, err := s.cfg.Extractor.Extract(ctx, data, mimeType)
	if err != nil {
		log.Warn().Err(err).Str("task_id", taskID).Msg("Extraction failed")
		if storeErr := s.cfg.Store.SetFailed(ctx, taskID, err.Error()); storeErr != nil {
			log.Error().Err(storeErr).Str("task_id", taskID).Msg("Failed to record task failure")
		}
		return
	}

	if err := s.cfg.Store.SetResult(ctx, taskID, result); err != nil {
		log.Error().Err(err).Str("task_id", taskID).Msg("Failed to record task result")
		return
	}
	log.Info().Str("task_id", taskID).Int("players", len(result.Players)).Msg("Extraction completed")
}

// GET /process/status?task_id=...
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	taskID := r.URL.Query().Get("task_id")
	if taskID == "" {
		httpError(w, http.StatusBadRequest, "task_id is required")
		return
	}

	task, err := s.cfg.Store.Get(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpError(w, http.StatusNotFound, "task not found")
			return
		}
		log.Error().Err(err).Str("task_id", taskID).Msg("Task lookup failed")
		httpError(w, http.StatusInternalServerError, "task lookup failed")
		return
	}

	resp := map[string]interface{}{"status": task.Status}
	if task.Result != nil {
		resp["data"] = task.Result
	}
	respondJSON(w, http.StatusOK, resp)
}

// fetchObject returns an uploaded object's bytes and MIME type, from memory
// in local mode or from S3 in bucket mode.
func (s *Server) fetchObject(ctx context.Context, key string) ([]byte, string, error) {
	if s.cfg.Bucket == "" {
		s.uploadsMu.Lock()
		upload, ok := s.uploads[key]
		s.uploadsMu.Unlock()
		if !ok {
			return nil, "", store.ErrNotFound
		}
		return upload.data, mimeTypeForKey(key, upload.mimeType), nil
	}

	out, err := s.cfg.S3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.cfg.Bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, "", err
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", err
	}
	mimeType := ""
	if out.ContentType != nil {
		mimeType = *out.ContentType
	}
	return data, mimeTypeForKey(key, mimeType), nil
}

// mimeTypeForKey prefers the stored content type and falls back to the key's
// extension.
func mimeTypeForKey(key, stored string) string {
	if stored != "" && stored != "application/octet-stream" {
		return stored
	}
	if strings.HasSuffix(key, ".png") {
		return "image/png"
	}
	return "image/jpeg"
}
