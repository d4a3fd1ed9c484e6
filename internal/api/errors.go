package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// AuthorizationError means the upload-URL issuer rejected the request.
type AuthorizationError struct {
	StatusCode int
	Message    string
}

func (e *AuthorizationError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("upload authorization rejected (HTTP %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upload authorization rejected (HTTP %d)", e.StatusCode)
}

// UploadErrorKind classifies a failed direct-to-storage upload.
type UploadErrorKind string

const (
	UploadOversized   UploadErrorKind = "oversized"
	UploadExpiredAuth UploadErrorKind = "expired_auth"
	UploadGeneric     UploadErrorKind = "generic"
)

// UploadError is any non-204 outcome of the direct-to-storage upload.
// StatusCode is 0 when the transport itself failed.
type UploadError struct {
	StatusCode int
	Err        error
}

func (e *UploadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upload failed: %v", e.Err)
	}
	return fmt.Sprintf("upload failed with HTTP %d", e.StatusCode)
}

func (e *UploadError) Unwrap() error { return e.Err }

// Kind classifies the failure by the storage service's status code.
func (e *UploadError) Kind() UploadErrorKind {
	switch e.StatusCode {
	case http.StatusRequestEntityTooLarge:
		return UploadOversized
	case http.StatusForbidden:
		return UploadExpiredAuth
	default:
		return UploadGeneric
	}
}

// UserMessage is the retry-capable message shown for a failed upload.
func (e *UploadError) UserMessage() string {
	switch e.Kind() {
	case UploadOversized:
		return "The screenshot is too large to upload."
	case UploadExpiredAuth:
		return "The upload authorization expired. Please try again."
	default:
		return "The upload failed. Please try again."
	}
}

// RequestError is a transport-level or unexpected-response failure talking to
// the processing engine (start or poll). It is retryable by the caller; it is
// distinct from an engine-reported failed task, which is terminal.
type RequestError struct {
	Op         string // "start_processing" or "poll_status"
	StatusCode int    // 0 when the transport failed
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: unexpected HTTP %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// SubmissionErrorKind classifies a failed final submission.
type SubmissionErrorKind string

const (
	SubmissionTimeout    SubmissionErrorKind = "timeout"
	SubmissionValidation SubmissionErrorKind = "validation"
	SubmissionGeneric    SubmissionErrorKind = "generic"
)

// SubmissionError is a failed attempt to persist the finalized analysis.
type SubmissionError struct {
	Kind       SubmissionErrorKind
	StatusCode int
	Message    string // server-supplied detail for validation rejections
	Err        error
}

func (e *SubmissionError) Error() string {
	switch e.Kind {
	case SubmissionTimeout:
		return "submission timed out"
	case SubmissionValidation:
		return fmt.Sprintf("submission rejected (HTTP %d): %s", e.StatusCode, e.Message)
	default:
		if e.Err != nil {
			return fmt.Sprintf("submission failed: %v", e.Err)
		}
		return fmt.Sprintf("submission failed with HTTP %d", e.StatusCode)
	}
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// errorMessage extracts the server's human-readable detail from an error
// response body of the form {"message": "..."} or {"error": "..."}.
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}
