// Package api implements the HTTP clients the ingestion workflow depends on:
// the upload-URL issuer, the direct-to-storage upload, the asynchronous
// processing engine, and the analysis persistence API.
//
// Each call takes a context and returns a typed error from errors.go so the
// workflow controller can classify failures without string matching.
package api

import (
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// defaultTimeout is the HTTP client timeout for issuer and engine calls.
	defaultTimeout = 30 * time.Second

	// uploadTimeout allows for slow direct-to-storage uploads of full-HD
	// screenshots on residential links.
	uploadTimeout = 2 * time.Minute

	// submitTimeout is the caller-side deadline on the final submission.
	submitTimeout = 5 * time.Minute
)

// Client talks to the scorelens backend and, via pre-signed targets, to the
// object store.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	uploadClient *http.Client
	submitClient *http.Client
}

// NewClient creates a Client for the given API base URL, e.g.
// "https://api.scorelens.gg". A trailing slash is tolerated.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		httpClient:   &http.Client{Timeout: defaultTimeout},
		uploadClient: &http.Client{Timeout: uploadTimeout},
		// Submission is bounded by the per-request context in Submit; a
		// transport-level Timeout here would undercut that deadline.
		submitClient: &http.Client{},
	}
}

// endpoint joins a path like "process/status" onto the base URL.
func (c *Client) endpoint(path string) string {
	return c.baseURL + "/" + strings.TrimPrefix(path, "/")
}

// NewObjectKey generates the globally unique storage key for one upload: a
// random UUID plus the original file's lowercased extension. The key is
// generated once per attempt and must be reused unchanged through upload and
// processing start; regenerating it between calls would desynchronize the
// stored object from the processing task.
func NewObjectKey(originalName string) string {
	return uuid.NewString() + strings.ToLower(filepath.Ext(originalName))
}
