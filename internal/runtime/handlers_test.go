package runtime

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tonetutor-labs/tonetutor-core/internal/assess"
	"github.com/tonetutor-labs/tonetutor-core/internal/config"
	"github.com/tonetutor-labs/tonetutor-core/internal/history"
	"github.com/tonetutor-labs/tonetutor-core/internal/protocol"
	"github.com/tonetutor-labs/tonetutor-core/internal/transcode"
	"github.com/tonetutor-labs/tonetutor-core/internal/translate"
)

func testRuntime(t *testing.T) *Runtime {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))

	cfg := config.Default()
	cfg.History.RetentionMode = "ephemeral"
	store, err := history.Open(context.Background(), cfg.History, logger)
	if err != nil {
		t.Fatalf("open ephemeral store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return &Runtime{
		cfg:         cfg,
		logger:      logger,
		assessSvc:   assess.NewService(nil, transcode.NewNoopTranscoder(), store, nil, logger),
		translateOp: translate.NewService(cfg.Translate, logger),
		store:       store,
	}
}

func postJSON(t *testing.T, handler http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestHandleAssessmentDemoMode(t *testing.T) {
	rt := testRuntime(t)

	rec := postJSON(t, rt.handleAssessment, protocol.AssessmentRequest{
		AudioData:     base64.StdEncoding.EncodeToString([]byte("audio")),
		ReferenceText: "你好",
		ContentType:   "audio/wav",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp protocol.AssessmentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || !resp.Simulated {
		t.Fatalf("expected simulated success, got success=%v simulated=%v", resp.Success, resp.Simulated)
	}
}

func TestHandleAssessmentValidation(t *testing.T) {
	rt := testRuntime(t)

	rec := postJSON(t, rt.handleAssessment, protocol.AssessmentRequest{ReferenceText: "你好"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	var resp protocol.AssessmentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Success || resp.Error == "" {
		t.Fatalf("expected failure envelope, got %+v", resp)
	}
}

func TestHandleAssessmentRejectsGet(t *testing.T) {
	rt := testRuntime(t)
	req := httptest.NewRequest(http.MethodGet, "/api/speech-assessment", nil)
	rec := httptest.NewRecorder()
	rt.handleAssessment(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestHandleTranslateNotConfigured(t *testing.T) {
	rt := testRuntime(t)

	rec := postJSON(t, rt.handleTranslate, protocol.TranslateRequest{Text: "hello"})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 when translator has no credentials", rec.Code)
	}

	var resp protocol.TranslateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Success {
		t.Fatal("expected success=false")
	}
}

func TestHandleTranslateMissingText(t *testing.T) {
	rt := testRuntime(t)
	if rec := postJSON(t, rt.handleTranslate, protocol.TranslateRequest{}); rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleAttempts(t *testing.T) {
	rt := testRuntime(t)
	req := httptest.NewRequest(http.MethodGet, "/api/attempts?limit=5", nil)
	rec := httptest.NewRecorder()
	rt.handleAttempts(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	rt := testRuntime(t)
	handler := rt.cors(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("preflight must not reach the handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/speech-assessment", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow-origin = %q, want *", got)
	}
}
