// Package server implements the HTTP surface the ingestion client talks to:
// the upload-URL issuer, the processing engine endpoints, and the analysis
// persistence API. One Server backs both the standalone dev binary and the
// Lambda deployment; the differences (S3 vs. local object storage, sync vs.
// async extraction) are configuration.
package server

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"scorelens/internal/engine"
	"scorelens/internal/store"
)

// Config wires a Server's collaborators.
type Config struct {
	Store     store.TaskStore
	Extractor engine.Extractor

	// Bucket enables S3 mode: upload targets are pre-signed POSTs against
	// this bucket and objects are fetched from it for extraction. When
	// empty, uploads land in process memory via POST /upload/{key}.
	Bucket    string
	S3        *s3.Client
	Presigner *s3.PresignClient

	// SyncProcessing runs extraction before the process response is
	// written, for hosts that freeze background goroutines between
	// requests. The task still completes through the store, so the
	// client's polling is unchanged.
	SyncProcessing bool
}

// Server holds the handler state for one process.
type Server struct {
	cfg Config

	uploadsMu sync.Mutex
	uploads   map[string]storedUpload

	analysesMu sync.Mutex
	analyses   map[string]*analysisRecord
}

type storedUpload struct {
	data     []byte
	mimeType string
}

// New creates a Server from the given config.
func New(cfg Config) *Server {
	return &Server{
		cfg:      cfg,
		uploads:  make(map[string]storedUpload),
		analyses: make(map[string]*analysisRecord),
	}
}

// Handler returns the routed HTTP handler, wrapped with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/upload-url", s.handleUploadURL)
	mux.HandleFunc("/upload/", s.handleLocalUpload)
	mux.HandleFunc("/process", s.handleProcess)
	mux.HandleFunc("/process/status", s.handleStatus)
	mux.HandleFunc("/analyses", s.handleAnalyses)
	mux.HandleFunc("/analyses/", s.handleAnalysisRoutes)
	mux.HandleFunc("/analysis/", s.handleAnalysisDelete)

	return withLogging(mux)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		if !strings.HasPrefix(r.URL.Path, "/health") {
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Dur("duration", time.Since(start)).
				Msg("Request")
		}
	})
}
