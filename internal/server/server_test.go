package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"scorelens/internal/api"
	"scorelens/internal/engine"
	"scorelens/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *api.Client) {
	t.Helper()
	srv := New(Config{
		Store:     store.NewMemoryStore(),
		Extractor: engine.NewFixture(),
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, api.NewClient(ts.URL)
}

func writeTempScreenshot(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scoreboard.png")
	if err := os.WriteFile(path, []byte("not a real png, the fixture never decodes it"), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

// The dev server and the API client agree on every contract: this drives the
// full ingestion path through real HTTP.
func TestEndToEndIngestion(t *testing.T) {
	_, client := newTestServer(t)
	ctx := context.Background()
	path := writeTempScreenshot(t)

	key := api.NewObjectKey("scoreboard.png")
	target, err := client.RequestUploadTarget(ctx, key)
	if err != nil {
		t.Fatalf("RequestUploadTarget: %v", err)
	}
	if target.Fields["key"] != key {
		t.Errorf("issued key = %q, want %q", target.Fields["key"], key)
	}

	if err := client.Upload(ctx, target, path); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	taskID, err := client.StartProcessing(ctx, key)
	if err != nil {
		t.Fatalf("StartProcessing: %v", err)
	}
	if taskID == "" {
		t.Fatal("empty task ID")
	}

	var status *api.TaskStatus
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		status, err = client.PollStatus(ctx, taskID)
		if err != nil {
			t.Fatalf("PollStatus: %v", err)
		}
		if status.Status != api.TaskPending {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if status.Status != api.TaskCompleted {
		t.Fatalf("status = %q, want completed", status.Status)
	}
	if status.Data == nil || len(status.Data.Players) == 0 {
		t.Fatal("completed task carried no extraction data")
	}

	record := &api.Record{
		Title:      "Major IV Winners Final",
		Tournament: "CDL Major IV",
		PlayedAt:   "2026-08-22",
		Map:        status.Data.Metadata.Map.Value,
		Mode:       status.Data.Metadata.Mode.Value,
		TeamOne:    status.Data.Metadata.TeamOne.Value,
		TeamTwo:    status.Data.Metadata.TeamTwo.Value,
		ScoreOne:   status.Data.Metadata.ScoreOne.Value,
		ScoreTwo:   status.Data.Metadata.ScoreTwo.Value,
		ObjectKey:  key,
		Players:    map[string]map[string]int{"Dashy": {"kills": 28}},
	}
	id, err := client.Submit(ctx, record)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if id == "" {
		t.Fatal("empty analysis ID")
	}

	if err := client.DeleteAnalysis(ctx, id); err != nil {
		t.Fatalf("DeleteAnalysis: %v", err)
	}
	if err := client.DeleteAnalysis(ctx, id); err == nil {
		t.Error("deleting an already-deleted analysis succeeded")
	}
}

func TestProcessUnknownObject(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/process?file_name=missing.png", "", nil)
	if err != nil {
		t.Fatalf("POST /process: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestStatusUnknownTask(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/process/status?task_id=task-unknown")
	if err != nil {
		t.Fatalf("GET /process/status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestUploadURLRejectsUnsafeKeys(t *testing.T) {
	ts, _ := newTestServer(t)

	for _, key := range []string{"..%2F..%2Fetc%2Fpasswd", ".hidden", "a%20b"} {
		resp, err := http.Get(ts.URL + "/upload-url?file_name=" + key)
		if err != nil {
			t.Fatalf("GET /upload-url: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("key %q: status = %d, want 400", key, resp.StatusCode)
		}
	}
}

func TestAnalysesValidation(t *testing.T) {
	ts, _ := newTestServer(t)

	cases := []struct {
		name   string
		record api.Record
	}{
		{"missing title", api.Record{Tournament: "CDL", PlayedAt: "2026-08-22", Map: "Karachi", Mode: "hardpoint", TeamOne: "A", TeamTwo: "B", ObjectKey: "x.png", Players: map[string]map[string]int{"P": {"kills": 1}}}},
		{"bad date", api.Record{Title: "T", Tournament: "CDL", PlayedAt: "22/08/2026", Map: "Karachi", Mode: "hardpoint", TeamOne: "A", TeamTwo: "B", ObjectKey: "x.png", Players: map[string]map[string]int{"P": {"kills": 1}}}},
		{"no players", api.Record{Title: "T", Tournament: "CDL", PlayedAt: "2026-08-22", Map: "Karachi", Mode: "hardpoint", TeamOne: "A", TeamTwo: "B", ObjectKey: "x.png"}},
		{"negative stat", api.Record{Title: "T", Tournament: "CDL", PlayedAt: "2026-08-22", Map: "Karachi", Mode: "hardpoint", TeamOne: "A", TeamTwo: "B", ObjectKey: "x.png", Players: map[string]map[string]int{"P": {"kills": -1}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := api.NewClient(ts.URL).Submit(context.Background(), &tc.record)
			if err == nil {
				t.Fatal("Submit accepted an invalid record")
			}
			var subErr *api.SubmissionError
			if !errors.As(err, &subErr) || subErr.Kind != api.SubmissionValidation {
				t.Errorf("error = %v, want a validation rejection", err)
			}
		})
	}
}

func TestExportRoundTrips(t *testing.T) {
	ts, client := newTestServer(t)
	ctx := context.Background()

	record := &api.Record{
		Title:      "Major IV Winners Final",
		Tournament: "CDL Major IV",
		PlayedAt:   "2026-08-22",
		Map:        "Karachi",
		Mode:       "hardpoint",
		TeamOne:    "OpTic Texas",
		TeamTwo:    "Atlanta FaZe",
		ScoreOne:   250,
		ScoreTwo:   198,
		ObjectKey:  "abc.png",
		Players:    map[string]map[string]int{"Dashy": {"kills": 28, "deaths": 19}},
	}
	id, err := client.Submit(ctx, record)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	resp, err := http.Get(ts.URL + "/analyses/" + id + "/export")
	if err != nil {
		t.Fatalf("GET export: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/zstd" {
		t.Errorf("content type = %q, want application/zstd", ct)
	}

	dec, err := zstd.NewReader(resp.Body)
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	defer dec.Close()
	payload, err := io.ReadAll(dec)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}

	var exported struct {
		ID    string `json:"id"`
		Title string `json:"title"`
		Map   string `json:"map"`
	}
	if err := json.Unmarshal(payload, &exported); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if exported.ID != id || exported.Title != record.Title || exported.Map != "Karachi" {
		t.Errorf("export = %+v", exported)
	}
}

func TestDeleteAnalysisRespondsWithStatus(t *testing.T) {
	ts, client := newTestServer(t)

	record := api.Record{Title: "T", Tournament: "CDL", PlayedAt: "2026-08-22", Map: "Karachi", Mode: "hardpoint", TeamOne: "A", TeamTwo: "B", ObjectKey: "x.png", Players: map[string]map[string]int{"P": {"kills": 1}}}
	id, err := client.Submit(context.Background(), &record)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/analysis/"+id, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "deleted" {
		t.Errorf("status field = %q, want %q", body.Status, "deleted")
	}
}

func TestExportUnknownAnalysis(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/analyses/analysis-nope/export")
	if err != nil {
		t.Fatalf("GET export: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestSyncProcessingCompletesBeforeResponse(t *testing.T) {
	srv := New(Config{
		Store:          store.NewMemoryStore(),
		Extractor:      engine.NewFixture(),
		SyncProcessing: true,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	client := api.NewClient(ts.URL)
	ctx := context.Background()

	key := api.NewObjectKey("scoreboard.png")
	target, err := client.RequestUploadTarget(ctx, key)
	if err != nil {
		t.Fatalf("RequestUploadTarget: %v", err)
	}
	if err := client.Upload(ctx, target, writeTempScreenshot(t)); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	taskID, err := client.StartProcessing(ctx, key)
	if err != nil {
		t.Fatalf("StartProcessing: %v", err)
	}

	// The first poll already sees the terminal state.
	status, err := client.PollStatus(ctx, taskID)
	if err != nil {
		t.Fatalf("PollStatus: %v", err)
	}
	if status.Status != api.TaskCompleted {
		t.Errorf("status = %q, want completed on first poll", status.Status)
	}
}
