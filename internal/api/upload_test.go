package api

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// newTestClient creates a Client pointing at a test HTTP server.
func newTestClient(server *httptest.Server) *Client {
	c := NewClient(server.URL)
	c.httpClient = server.Client()
	c.uploadClient = server.Client()
	c.submitClient = server.Client()
	return c
}

// writeTestFile writes a small PNG to a temp file and returns its path.
func writeTestFile(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "scoreboard.png")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewObjectKey(t *testing.T) {
	key1 := NewObjectKey("Scoreboard Final.PNG")
	key2 := NewObjectKey("Scoreboard Final.PNG")

	if key1 == key2 {
		t.Error("two generated keys must not collide")
	}
	if !strings.HasSuffix(key1, ".png") {
		t.Errorf("key %q should end in lowercased extension .png", key1)
	}
	if strings.ContainsAny(key1, " /\\") {
		t.Errorf("key %q must not contain separators or spaces", key1)
	}
}

func TestRequestUploadTarget(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/upload-url" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("file_name"); got != "abc.png" {
			t.Errorf("file_name = %q, want abc.png", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"url": "https://storage.example/bucket", "fields": {"key": "abc.png", "policy": "p0licy"}}`))
	}))
	defer server.Close()

	target, err := newTestClient(server).RequestUploadTarget(context.Background(), "abc.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if target.URL != "https://storage.example/bucket" {
		t.Errorf("URL = %q", target.URL)
	}
	if target.Fields["policy"] != "p0licy" {
		t.Errorf("fields not preserved: %v", target.Fields)
	}
}

func TestRequestUploadTargetRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message": "signature expired"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server).RequestUploadTarget(context.Background(), "abc.png")
	var authErr *AuthorizationError
	if !errors.As(err, &authErr) {
		t.Fatalf("error = %v, want *AuthorizationError", err)
	}
	if authErr.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode = %d, want 403", authErr.StatusCode)
	}
	if !strings.Contains(authErr.Error(), "signature expired") {
		t.Errorf("error should carry the server message, got %q", authErr.Error())
	}
}

func TestUploadSuccess(t *testing.T) {
	path := writeTestFile(t)

	var gotFields map[string]string
	var gotFileBytes int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Fatalf("not a multipart form: %v", err)
		}
		gotFields = map[string]string{}
		for key, vals := range r.MultipartForm.Value {
			gotFields[key] = vals[0]
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("missing file part: %v", err)
		}
		defer file.Close()
		buf := new(bytes.Buffer)
		buf.ReadFrom(file)
		gotFileBytes = buf.Len()

		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	target := &UploadTarget{
		URL: server.URL,
		Fields: map[string]string{
			"key":    "abc.png",
			"policy": "p0licy",
		},
	}

	if err := newTestClient(server).Upload(context.Background(), target, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotFields["key"] != "abc.png" || gotFields["policy"] != "p0licy" {
		t.Errorf("issuer fields not forwarded verbatim: %v", gotFields)
	}
	if gotFileBytes == 0 {
		t.Error("file payload was empty")
	}
}

func TestUploadClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantKind UploadErrorKind
	}{
		{"oversized", http.StatusRequestEntityTooLarge, UploadOversized},
		{"expired auth", http.StatusForbidden, UploadExpiredAuth},
		{"server error", http.StatusInternalServerError, UploadGeneric},
		{"unexpected ok", http.StatusOK, UploadGeneric},
	}

	path := writeTestFile(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			target := &UploadTarget{URL: server.URL, Fields: map[string]string{"key": "abc.png"}}
			err := newTestClient(server).Upload(context.Background(), target, path)

			var upErr *UploadError
			if !errors.As(err, &upErr) {
				t.Fatalf("error = %v, want *UploadError", err)
			}
			if upErr.Kind() != tt.wantKind {
				t.Errorf("Kind() = %q, want %q", upErr.Kind(), tt.wantKind)
			}
		})
	}
}

func TestUploadRejectsNonEmptySuccessBody(t *testing.T) {
	// A 204 is only a success when the body is empty.
	path := writeTestFile(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("uploaded!"))
	}))
	defer server.Close()

	target := &UploadTarget{URL: server.URL, Fields: map[string]string{"key": "abc.png"}}
	err := newTestClient(server).Upload(context.Background(), target, path)
	if err == nil {
		t.Fatal("expected error for non-204 response")
	}
}
