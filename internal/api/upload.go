package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

// UploadTarget is a pre-signed upload destination: a URL plus the exact form
// fields the storage service requires. The fields must be sent back verbatim.
type UploadTarget struct {
	URL    string            `json:"url"`
	Fields map[string]string `json:"fields"`
}

// RequestUploadTarget asks the upload-URL issuer for a pre-signed target
// keyed by the caller-supplied object key (see NewObjectKey).
func (c *Client) RequestUploadTarget(ctx context.Context, fileName string) (*UploadTarget, error) {
	endpoint := c.endpoint("upload-url") + "?file_name=" + url.QueryEscape(fileName)

	log.Debug().Str("file_name", fileName).Msg("Requesting upload target")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &AuthorizationError{Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &AuthorizationError{StatusCode: resp.StatusCode, Message: "unreadable response"}
	}

	if resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Msg("Upload target request rejected")
		return nil, &AuthorizationError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}

	var target UploadTarget
	if err := json.Unmarshal(body, &target); err != nil {
		return nil, &AuthorizationError{StatusCode: resp.StatusCode, Message: "malformed issuer response"}
	}
	if target.URL == "" {
		return nil, &AuthorizationError{StatusCode: resp.StatusCode, Message: "issuer returned no upload URL"}
	}

	log.Debug().Str("file_name", fileName).Int("fields", len(target.Fields)).Msg("Upload target issued")
	return &target, nil
}

// Upload performs the direct multipart upload to the pre-signed target: all
// issuer fields verbatim, then the file payload as the "file" part. Success
// is signaled only by HTTP 204 with an empty body; any other status is an
// *UploadError carrying the raw status for classification.
func (c *Client) Upload(ctx context.Context, target *UploadTarget, path string) error {
	start := time.Now()

	f, err := os.Open(path)
	if err != nil {
		return &UploadError{Err: fmt.Errorf("open file: %w", err)}
	}
	defer f.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	// Field order matters to some storage services: fields first, file last.
	for key, value := range target.Fields {
		if err := writer.WriteField(key, value); err != nil {
			return &UploadError{Err: fmt.Errorf("write field %q: %w", key, err)}
		}
	}

	part, err := writer.CreateFormFile("file", target.Fields["key"])
	if err != nil {
		return &UploadError{Err: fmt.Errorf("create file part: %w", err)}
	}
	if _, err := io.Copy(part, f); err != nil {
		return &UploadError{Err: fmt.Errorf("read file: %w", err)}
	}
	if err := writer.Close(); err != nil {
		return &UploadError{Err: fmt.Errorf("finalize form: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, &buf)
	if err != nil {
		return &UploadError{Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.uploadClient.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("Upload transport failure")
		return &UploadError{Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusNoContent || len(body) != 0 {
		log.Warn().
			Int("status", resp.StatusCode).
			Int("body_length", len(body)).
			Dur("duration", time.Since(start)).
			Msg("Upload rejected by storage")
		return &UploadError{StatusCode: resp.StatusCode}
	}

	log.Info().
		Str("path", path).
		Dur("duration", time.Since(start)).
		Msg("Screenshot uploaded to storage")
	return nil
}
