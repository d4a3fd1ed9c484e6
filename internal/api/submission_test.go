package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testRecord() *Record {
	return &Record{
		Title:      "OpTic vs FaZe map 1",
		Tournament: "Major IV",
		PlayedAt:   "2026-08-20",
		Map:        "Karachi",
		Mode:       "hardpoint",
		TeamOne:    "OpTic Texas",
		TeamTwo:    "Atlanta FaZe",
		ScoreOne:   250,
		ScoreTwo:   218,
		ObjectKey:  "abc.png",
		Players: map[string]map[string]int{
			"Dashy": {"kills": 21, "deaths": 14},
		},
	}
}

func TestSubmit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/analyses" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		var got Record
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("invalid body: %v", err)
		}
		if got.Title != "OpTic vs FaZe map 1" {
			t.Errorf("title = %q", got.Title)
		}
		if got.Players["Dashy"]["kills"] != 21 {
			t.Errorf("players not flattened: %v", got.Players)
		}

		w.Write([]byte(`{"id": "analysis-77"}`))
	}))
	defer server.Close()

	id, err := newTestClient(server).Submit(context.Background(), testRecord())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "analysis-77" {
		t.Errorf("id = %q, want analysis-77", id)
	}
}

func TestSubmitValidationRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error": "played_at must not be in the future"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server).Submit(context.Background(), testRecord())
	var subErr *SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("error = %v, want *SubmissionError", err)
	}
	if subErr.Kind != SubmissionValidation {
		t.Errorf("Kind = %q, want validation", subErr.Kind)
	}
	if subErr.Message != "played_at must not be in the future" {
		t.Errorf("Message = %q, want server detail verbatim", subErr.Message)
	}
}

func TestSubmitServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestClient(server).Submit(context.Background(), testRecord())
	var subErr *SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("error = %v, want *SubmissionError", err)
	}
	if subErr.Kind != SubmissionGeneric {
		t.Errorf("Kind = %q, want generic", subErr.Kind)
	}
}

func TestSubmitTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"id": "too-late"}`))
	}))
	defer server.Close()

	// The parent deadline is tighter than the caller-side submit timeout, so
	// it wins; the classification path is the same either way.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := newTestClient(server).Submit(ctx, testRecord())
	var subErr *SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("error = %v, want *SubmissionError", err)
	}
	if subErr.Kind != SubmissionTimeout {
		t.Errorf("Kind = %q, want timeout", subErr.Kind)
	}
}

func TestSubmitTransportDoesNotCapDeadline(t *testing.T) {
	// The submission deadline comes from the request context in Submit. A
	// transport-level Timeout on the submit client would silently cap it at
	// whatever that transport allows, so the submit client must carry none
	// and must not share the short-timeout transport for issuer and engine
	// calls.
	c := NewClient("http://localhost:8080")
	if c.submitClient.Timeout != 0 {
		t.Errorf("submit transport timeout = %v, want 0 (deadline belongs to the %v request context)", c.submitClient.Timeout, submitTimeout)
	}
	if c.submitClient == c.httpClient {
		t.Error("submit client must not share the issuer/engine transport")
	}
}

func TestDeleteAnalysis(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("expected DELETE, got %s", r.Method)
		}
		if r.URL.Path != "/analysis/analysis-77" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"status": "deleted"}`))
	}))
	defer server.Close()

	if err := newTestClient(server).DeleteAnalysis(context.Background(), "analysis-77"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDeleteAnalysisNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message": "no such analysis"}`))
	}))
	defer server.Close()

	err := newTestClient(server).DeleteAnalysis(context.Background(), "nope")
	if err == nil {
		t.Fatal("expected error")
	}
}
