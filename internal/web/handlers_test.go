package web

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopsift/shopsift/internal/config"
	"github.com/shopsift/shopsift/internal/core"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{}
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Server.RequestTimeout = 30 * time.Second
	cfg.Upload.MaxFileSize = 1 << 20
	cfg.Match.Threshold = 95
	cfg.Session.TTL = time.Minute
	cfg.Rate.Enabled = false

	service := core.NewService(cfg, nil)
	return NewServer(service, cfg)
}

// uploadBody builds a multipart body with the three file roles.
func uploadBody(t *testing.T, threshold string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	files := []struct {
		field, name, content string
	}{
		{"product", "products.csv", "Handle,Title,Vendor\nblue-hat,Blue Hat,Acme\nblue-hatt,Blue Hatt,Acme\n"},
		{"inventory", "inventory.csv", "Handle,Title,Qty\nblue-hat,Blue Hat,3\nblue-hatt,Blue Hatt,2\n"},
		{"selected", "selected.csv", "Title\nBlue Hat\n"},
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write([]byte(f.content)); err != nil {
			t.Fatal(err)
		}
	}
	if threshold != "" {
		if err := w.WriteField("threshold", threshold); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, w.FormDataContentType()
}

func startRun(t *testing.T, srv *Server, threshold string) core.RunStatus {
	t.Helper()
	body, contentType := uploadBody(t, threshold)
	req := httptest.NewRequest(http.MethodPost, "/api/runs", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /api/runs = %d: %s", rec.Code, rec.Body.String())
	}
	var status core.RunStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	return status
}

func TestStartRunCompletes(t *testing.T) {
	srv := testServer(t)

	// Default threshold 95: only the exact title matches
	status := startRun(t, srv, "")
	if status.Phase != core.PhaseComplete {
		t.Fatalf("phase = %s, want complete", status.Phase)
	}
	if status.Threshold != 95 {
		t.Errorf("threshold = %d, want config default 95", status.Threshold)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/runs/"+status.ID+"/inventory.csv", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("download = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "blue-hat,Blue Hat,3") {
		t.Errorf("inventory csv missing matched row:\n%s", rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "Blue Hatt") {
		t.Errorf("inventory csv includes unmatched row:\n%s", rec.Body.String())
	}
}

func TestStartRunConflictFlow(t *testing.T) {
	srv := testServer(t)

	status := startRun(t, srv, "80")
	if status.Phase != core.PhaseAwaitingResolutions {
		t.Fatalf("phase = %s, want awaiting_resolutions", status.Phase)
	}
	if len(status.Conflicts) != 1 || status.Conflicts[0].Title != "Blue Hat" {
		t.Fatalf("conflicts = %+v", status.Conflicts)
	}

	// Downloads are refused while awaiting
	req := httptest.NewRequest(http.MethodGet, "/api/runs/"+status.ID+"/inventory.csv", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Errorf("download while awaiting = %d, want 409", rec.Code)
	}

	// Submit a decision for the conflicted title
	body, _ := json.Marshal(map[string]string{"Blue Hat": "Blue Hatt"})
	req = httptest.NewRequest(http.MethodPost, "/api/runs/"+status.ID+"/resolutions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("resolutions = %d: %s", rec.Code, rec.Body.String())
	}
	var done core.RunStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &done); err != nil {
		t.Fatal(err)
	}
	if done.Phase != core.PhaseComplete {
		t.Fatalf("phase = %s after resolutions", done.Phase)
	}

	// The product download reflects the chosen title's handle
	req = httptest.NewRequest(http.MethodGet, "/api/runs/"+status.ID+"/product.csv", nil)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("product download = %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "blue-hatt,Blue Hatt,Acme") {
		t.Errorf("product csv missing chosen row:\n%s", rec.Body.String())
	}
}

func TestStartRunInvalidThreshold(t *testing.T) {
	srv := testServer(t)

	body, contentType := uploadBody(t, "150")
	req := httptest.NewRequest(http.MethodPost, "/api/runs", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("threshold 150 = %d, want 400", rec.Code)
	}
	var errResp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil {
		t.Fatal(err)
	}
	if errResp.Code != "MATCH001" {
		t.Errorf("error code = %q, want MATCH001", errResp.Code)
	}
}

func TestStartRunMissingFiles(t *testing.T) {
	srv := testServer(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/runs", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty upload = %d, want 400", rec.Code)
	}
}

func TestRunStatusNotFound(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/runs/unknown", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown run = %d, want 404", rec.Code)
	}
	var errResp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil {
		t.Fatal(err)
	}
	if errResp.Code != "RUN001" {
		t.Errorf("error code = %q, want RUN001", errResp.Code)
	}
}

func TestHistoryDisabled(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("history without store = %d, want 400", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %v", body["status"])
	}
	if body["history"] != false {
		t.Errorf("history = %v, want false", body["history"])
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(2, time.Minute)

	if !rl.allow("1.2.3.4") || !rl.allow("1.2.3.4") {
		t.Fatal("first two requests should pass")
	}
	if rl.allow("1.2.3.4") {
		t.Error("third request should be limited")
	}
	// Other IPs are unaffected
	if !rl.allow("5.6.7.8") {
		t.Error("distinct IP should pass")
	}
}
