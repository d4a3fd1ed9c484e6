package server

import (
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// maxUploadBytes bounds local-mode uploads. Full HD screenshots are a few MB;
// anything past this is not a scoreboard capture.
const maxUploadBytes = 10 << 20

// presignExpiry is how long an issued upload target stays valid.
const presignExpiry = 15 * time.Minute

// Object keys are issued by the client as uuid + extension; reject anything
// that could address outside that namespace.
var validObjectKey = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// GET /upload-url?file_name=...
//
// Issues the upload target for one object: a pre-signed S3 POST in bucket
// mode, or this server's own /upload/{key} endpoint in local mode. Either
// way the response carries the URL plus the form fields the uploader must
// send verbatim.
func (s *Server) handleUploadURL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	key := r.URL.Query().Get("file_name")
	if key == "" {
		httpError(w, http.StatusBadRequest, "file_name is required")
		return
	}
	if !validObjectKey.MatchString(key) || strings.Contains(key, "..") {
		log.Warn().Str("key", key).Msg("Rejecting unsafe object key")
		httpError(w, http.StatusBadRequest, "invalid file name")
		return
	}

	if s.cfg.Bucket != "" {
		result, err := s.cfg.Presigner.PresignPostObject(r.Context(), &s3.PutObjectInput{
			Bucket: &s.cfg.Bucket,
			Key:    &key,
		}, func(opts *s3.PresignPostOptions) {
			opts.Expires = presignExpiry
		})
		if err != nil {
			log.Error().Err(err).Str("key", key).Msg("Failed to presign upload")
			httpError(w, http.StatusInternalServerError, "failed to generate upload URL")
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"url":    result.URL,
			"fields": result.Values,
		})
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"url": scheme + "://" + r.Host + "/upload/" + key,
		"fields": map[string]string{
			"key": key,
		},
	})
}

// POST /upload/{key}
//
// Local-mode storage endpoint: accepts the multipart form the issuer
// described and keeps the object in memory. Responds 204 with an empty body,
// matching the storage service's acknowledgement contract.
func (s *Server) handleLocalUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	key := strings.TrimPrefix(r.URL.Path, "/upload/")
	if key == "" || !validObjectKey.MatchString(key) {
		httpError(w, http.StatusBadRequest, "invalid upload key")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Upload rejected")
		httpError(w, http.StatusRequestEntityTooLarge, "upload too large or malformed")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httpError(w, http.StatusBadRequest, "missing file part")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "failed to read upload")
		return
	}

	s.uploadsMu.Lock()
	s.uploads[key] = storedUpload{
		data:     data,
		mimeType: header.Header.Get("Content-Type"),
	}
	s.uploadsMu.Unlock()

	log.Info().Str("key", key).Int("bytes", len(data)).Msg("Object stored")
	w.WriteHeader(http.StatusNoContent)
}
