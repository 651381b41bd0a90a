package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/lilybateman/SquatchScan/internal/config"
	"github.com/lilybateman/SquatchScan/internal/history"
	"github.com/lilybateman/SquatchScan/internal/progress"
	"github.com/lilybateman/SquatchScan/internal/scoring"
	"github.com/lilybateman/SquatchScan/internal/vision"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	// Load with a missing path to pick up all defaults.
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load default config: %v", err)
	}
	cfg.Providers = map[string]config.ProviderConfig{
		"fake": {Type: "fake"},
	}
	cfg.DefaultProvider = "fake"
	return cfg
}

func newTestServer(t *testing.T, prov vision.Provider) *Server {
	t.Helper()
	s := New(testConfig(t), nil)
	s.providers = map[string]vision.Provider{"fake": prov}
	s.defaultProvider = "fake"
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func newAnalyzeRequest(t *testing.T, image []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", "blurry.jpg")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(image); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func doAnalyze(t *testing.T, s *Server, image []byte) (*httptest.ResponseRecorder, analyzeResponse) {
	t.Helper()
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, newAnalyzeRequest(t, image))

	var parsed analyzeResponse
	if rr.Code == http.StatusOK {
		if err := json.Unmarshal(rr.Body.Bytes(), &parsed); err != nil {
			t.Fatalf("invalid JSON response: %v", err)
		}
	}
	return rr, parsed
}

func TestAnalyze_SimplePath(t *testing.T) {
	fake := vision.NewFake(`{"environment": "forest", "isSquatchLikeHumanoid": true, "description": "tall shape"}`)
	s := newTestServer(t, fake)

	rr, resp := doAnalyze(t, s, []byte("image-bytes"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	// 10 base + 15 forest + 45 squatch-like
	if resp.Report.Score != 70 {
		t.Fatalf("score = %d, want 70", resp.Report.Score)
	}
	if resp.Report.Verdict != scoring.VerdictSuspicious {
		t.Fatalf("verdict = %q, want %q", resp.Report.Verdict, scoring.VerdictSuspicious)
	}
	if resp.ID == "" {
		t.Fatal("response should carry an analysis id")
	}
	if resp.Description != "tall shape" {
		t.Fatalf("description = %q, want pass-through", resp.Description)
	}
	if resp.ProgressHint != progress.Message(progress.Count-1) {
		t.Fatalf("progressHint = %q, want the closing status line", resp.ProgressHint)
	}
	if string(fake.LastImage) != "image-bytes" {
		t.Fatalf("provider received %q", fake.LastImage)
	}
}

func TestAnalyze_OperatorOverride(t *testing.T) {
	s := newTestServer(t, vision.NewFake(`{"isOperatorProfileMatch": true, "isWearingClothes": true}`))

	rr, resp := doAnalyze(t, s, []byte("selfie"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if resp.Report.Score != 100 || !resp.Report.IsOverrideMatch {
		t.Fatalf("expected override report, got %+v", resp.Report)
	}
	if resp.Report.Verdict != scoring.VerdictOverride {
		t.Fatalf("verdict = %q", resp.Report.Verdict)
	}
}

func TestAnalyze_GarbageModelOutputScoresBaseline(t *testing.T) {
	s := newTestServer(t, vision.NewFake("Hmm, that's just a guy in a gorilla suit, I think?"))

	rr, resp := doAnalyze(t, s, []byte("img"))
	if rr.Code != http.StatusOK {
		t.Fatalf("unparseable model output must not fail the request, got %d", rr.Code)
	}
	if resp.Report.Score != 10 {
		t.Fatalf("empty-record score = %d, want 10", resp.Report.Score)
	}
	if resp.Report.Verdict != scoring.VerdictDefinitelyNot {
		t.Fatalf("verdict = %q", resp.Report.Verdict)
	}
}

func TestAnalyze_ProviderError(t *testing.T) {
	fake := vision.NewFake("")
	fake.Error = errors.New("upstream on fire")
	s := newTestServer(t, fake)

	rr, _ := doAnalyze(t, s, []byte("img"))
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rr.Code)
	}

	var errBody apiErrorBody
	if err := json.Unmarshal(rr.Body.Bytes(), &errBody); err != nil {
		t.Fatalf("invalid error JSON: %v", err)
	}
	if errBody.Error.Type != "provider_error" {
		t.Fatalf("error type = %q, want provider_error", errBody.Error.Type)
	}
}

func TestAnalyze_RejectsBadRequests(t *testing.T) {
	s := newTestServer(t, vision.NewFake(`{}`))

	// Wrong method
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/analyze", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET should be rejected, got %d", rr.Code)
	}

	// Missing image field
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("note", "no image here")
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rr = httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing image should be 400, got %d", rr.Code)
	}

	// Empty image
	rr, _ = func() (*httptest.ResponseRecorder, analyzeResponse) {
		return doAnalyze(t, s, nil)
	}()
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("empty image should be 400, got %d", rr.Code)
	}
}

func TestProgressEndpoint(t *testing.T) {
	s := newTestServer(t, vision.NewFake(`{}`))

	get := func(query string) progressResponse {
		rr := httptest.NewRecorder()
		s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/progress"+query, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("progress returned %d", rr.Code)
		}
		var resp progressResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid progress JSON: %v", err)
		}
		return resp
	}

	if got := get("?step=3"); got.Message != progress.Message(3) {
		t.Fatalf("step 3 message = %q", got.Message)
	}
	// Wraps modulo the cycle length.
	if got := get("?step=12"); got.Message != progress.Message(3) {
		t.Fatalf("step 12 should wrap to step 3, got %q", got.Message)
	}
	// Negative and garbage clamp to step 0.
	if got := get("?step=-5"); got.Message != progress.Message(0) {
		t.Fatalf("negative step should clamp to 0, got %q", got.Message)
	}
	if got := get("?step=squatch"); got.Message != progress.Message(0) {
		t.Fatalf("garbage step should clamp to 0, got %q", got.Message)
	}
}

func TestSightingsEndpoint_WithHistory(t *testing.T) {
	cfg := testConfig(t)
	cfg.History.Enabled = true
	cfg.History.Path = filepath.Join(t.TempDir(), "sightings.db")

	s := New(cfg, nil)
	s.providers = map[string]vision.Provider{"fake": vision.NewFake(`{"environment": "forest", "isSquatchLikeHumanoid": true}`)}
	s.defaultProvider = "fake"
	t.Cleanup(func() { s.Close(context.Background()) })

	for i := 0; i < 2; i++ {
		if rr, _ := doAnalyze(t, s, []byte("img")); rr.Code != http.StatusOK {
			t.Fatalf("analyze returned %d", rr.Code)
		}
	}

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/sightings?limit=5", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("sightings returned %d: %s", rr.Code, rr.Body.String())
	}

	var entries []history.Entry
	if err := json.Unmarshal(rr.Body.Bytes(), &entries); err != nil {
		t.Fatalf("invalid sightings JSON: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(entries))
	}
	if entries[0].Score != 70 {
		t.Fatalf("stored score = %d, want 70", entries[0].Score)
	}
}

func TestSightingsEndpoint_HistoryDisabled(t *testing.T) {
	s := newTestServer(t, vision.NewFake(`{}`))

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/sightings", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("sightings returned %d", rr.Code)
	}
	if body := bytes.TrimSpace(rr.Body.Bytes()); string(body) != "[]" {
		t.Fatalf("expected empty list, got %s", body)
	}
}

func TestReloadSwapsProviders(t *testing.T) {
	s := newTestServer(t, vision.NewFake(`{"environment": "forest", "isSquatchLikeHumanoid": true}`))

	if rr, resp := doAnalyze(t, s, []byte("img")); rr.Code != http.StatusOK || resp.Report.Score != 70 {
		t.Fatalf("pre-reload analyze: code=%d report=%+v", rr.Code, resp.Report)
	}

	// Reload rebuilds the registry from config; the canned fake record
	// carries no scoring signals, so only the baseline survives.
	if err := s.Reload(testConfig(t)); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if rr, resp := doAnalyze(t, s, []byte("img")); rr.Code != http.StatusOK || resp.Report.Score != 10 {
		t.Fatalf("post-reload analyze: code=%d report=%+v", rr.Code, resp.Report)
	}

	// A broken config must not disturb the running registry.
	bad := testConfig(t)
	bad.DefaultProvider = "missing"
	if err := s.Reload(bad); err == nil {
		t.Fatal("reload with bad config should fail")
	}
	if rr, _ := doAnalyze(t, s, []byte("img")); rr.Code != http.StatusOK {
		t.Fatalf("registry should survive failed reload, got %d", rr.Code)
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, vision.NewFake(`{}`))

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz returned %d", rr.Code)
	}
}

func TestIndexServed(t *testing.T) {
	s := newTestServer(t, vision.NewFake(`{}`))

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("index returned %d", rr.Code)
	}
	if !bytes.Contains(rr.Body.Bytes(), []byte("SquatchScan")) {
		t.Fatal("index page should mention SquatchScan")
	}
}
