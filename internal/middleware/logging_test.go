package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type accessLogEntry struct {
	Level     string `json:"level"`
	Msg       string `json:"msg"`
	Method    string `json:"method"`
	Path      string `json:"path"`
	Status    int    `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Size      int    `json:"size"`
	RequestID string `json:"request_id"`
	UserID    int64  `json:"user_id"`
	ErrorCode string `json:"error_code"`
}

// loggedRequest runs one request through the logging middleware and
// returns the parsed JSON log line.
func loggedRequest(t *testing.T, wrap func(http.Handler) http.Handler, inner http.HandlerFunc, req *http.Request) accessLogEntry {
	t.Helper()
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var handler http.Handler = Logging(logger)(inner)
	if wrap != nil {
		handler = wrap(handler)
	}
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry accessLogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v, log: %s", err, buf.String())
	}
	return entry
}

func TestLogging_BasicFields(t *testing.T) {
	entry := loggedRequest(t, nil, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("hello"))
	}, httptest.NewRequest(http.MethodGet, "/api/ranking", nil))

	if entry.Method != "GET" {
		t.Errorf("expected method GET, got %s", entry.Method)
	}
	if entry.Path != "/api/ranking" {
		t.Errorf("expected path /api/ranking, got %s", entry.Path)
	}
	if entry.Status != 200 {
		t.Errorf("expected status 200, got %d", entry.Status)
	}
	if entry.LatencyMS < 0 {
		t.Errorf("expected latency_ms >= 0, got %d", entry.LatencyMS)
	}
	if entry.Size != len("hello") {
		t.Errorf("expected size %d, got %d", len("hello"), entry.Size)
	}
	if entry.Level != "INFO" {
		t.Errorf("expected level INFO, got %s", entry.Level)
	}
}

func TestLogging_WithRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/ranking", nil)
	req.Header.Set(RequestIDHeader, "test-request-id-456")

	entry := loggedRequest(t, RequestID, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}, req)

	if entry.RequestID != "test-request-id-456" {
		t.Errorf("expected request_id test-request-id-456, got %s", entry.RequestID)
	}
}

func TestLogging_WithUserID(t *testing.T) {
	entry := loggedRequest(t, nil, func(w http.ResponseWriter, r *http.Request) {
		// What the auth middleware does after verifying a token.
		UpdateResponseContext(w, SetUserID(r.Context(), 123))
		w.WriteHeader(http.StatusOK)
	}, httptest.NewRequest(http.MethodGet, "/api/ranking", nil))

	if entry.UserID != 123 {
		t.Errorf("expected user_id 123, got %d", entry.UserID)
	}
}

func TestLogging_ClientErrorLevel(t *testing.T) {
	entry := loggedRequest(t, nil, func(w http.ResponseWriter, r *http.Request) {
		UpdateResponseContext(w, SetErrorCode(r.Context(), "validation_error"))
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"validation failed"}`))
	}, httptest.NewRequest(http.MethodPost, "/api/ranking/reorder", nil))

	if entry.Status != 400 {
		t.Errorf("expected status 400, got %d", entry.Status)
	}
	if entry.ErrorCode != "validation_error" {
		t.Errorf("expected error_code validation_error, got %s", entry.ErrorCode)
	}
	if entry.Level != "WARN" {
		t.Errorf("expected level WARN for 4xx, got %s", entry.Level)
	}
}

func TestLogging_ServerErrorLevel(t *testing.T) {
	entry := loggedRequest(t, nil, func(w http.ResponseWriter, r *http.Request) {
		UpdateResponseContext(w, SetErrorCode(r.Context(), "internal_error"))
		w.WriteHeader(http.StatusInternalServerError)
	}, httptest.NewRequest(http.MethodGet, "/api/match/scores", nil))

	if entry.Status != 500 {
		t.Errorf("expected status 500, got %d", entry.Status)
	}
	if entry.ErrorCode != "internal_error" {
		t.Errorf("expected error_code internal_error, got %s", entry.ErrorCode)
	}
	if entry.Level != "ERROR" {
		t.Errorf("expected level ERROR for 5xx, got %s", entry.Level)
	}
}

func TestLogging_DefaultStatus(t *testing.T) {
	entry := loggedRequest(t, nil, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}, httptest.NewRequest(http.MethodGet, "/health", nil))

	if entry.Status != 200 {
		t.Errorf("expected default status 200, got %d", entry.Status)
	}
}

func TestLogging_AllFieldsPresent(t *testing.T) {
	req := httptest.NewRequest(http.MethodDelete, "/api/ranking/123", nil)
	req.Header.Set(RequestIDHeader, "req-id-789")

	body := `{"error":"forbidden"}`
	entry := loggedRequest(t, RequestID, func(w http.ResponseWriter, r *http.Request) {
		ctx := SetUserID(r.Context(), 55)
		ctx = SetErrorCode(ctx, "forbidden")
		UpdateResponseContext(w, ctx)
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(body))
	}, req)

	if entry.Method != "DELETE" || entry.Path != "/api/ranking/123" {
		t.Errorf("expected DELETE /api/ranking/123, got %s %s", entry.Method, entry.Path)
	}
	if entry.Status != 403 {
		t.Errorf("expected status 403, got %d", entry.Status)
	}
	if entry.RequestID != "req-id-789" {
		t.Errorf("expected request_id req-id-789, got %s", entry.RequestID)
	}
	if entry.UserID != 55 {
		t.Errorf("expected user_id 55, got %d", entry.UserID)
	}
	if entry.ErrorCode != "forbidden" {
		t.Errorf("expected error_code forbidden, got %s", entry.ErrorCode)
	}
	if entry.Size != len(body) {
		t.Errorf("expected size %d, got %d", len(body), entry.Size)
	}
}

func TestLogging_NoErrorCodeFor2xx(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		UpdateResponseContext(w, SetErrorCode(r.Context(), "some_code"))
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/ranking", nil))

	if strings.Contains(buf.String(), "error_code") {
		t.Error("error_code should not be logged for 2xx responses")
	}
}

func TestNewLogger(t *testing.T) {
	for _, env := range []string{"production", "development"} {
		if NewLogger(env) == nil {
			t.Fatalf("NewLogger(%q) returned nil", env)
		}
	}
}

func TestUserIDContext(t *testing.T) {
	ctx := context.Background()
	if id := GetUserID(ctx); id != 0 {
		t.Errorf("expected zero user ID, got %d", id)
	}
	if id := GetUserID(SetUserID(ctx, 42)); id != 42 {
		t.Errorf("expected 42, got %d", id)
	}
}

func TestErrorCodeContext(t *testing.T) {
	ctx := context.Background()
	if code := GetErrorCode(ctx); code != "" {
		t.Errorf("expected empty error code, got %q", code)
	}
	if code := GetErrorCode(SetErrorCode(ctx, "not_found")); code != "not_found" {
		t.Errorf("expected not_found, got %q", code)
	}
}

func TestResponseWriter_WriteHeader(t *testing.T) {
	w := httptest.NewRecorder()
	rw := newResponseWriter(w)

	rw.WriteHeader(http.StatusCreated)

	if rw.statusCode != http.StatusCreated {
		t.Errorf("expected status code 201, got %d", rw.statusCode)
	}
	if w.Code != http.StatusCreated {
		t.Errorf("expected underlying writer status 201, got %d", w.Code)
	}
}

func TestResponseWriter_Write(t *testing.T) {
	rw := newResponseWriter(httptest.NewRecorder())

	data := []byte("test response body")
	n, err := rw.Write(data)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if n != len(data) || rw.size != len(data) {
		t.Errorf("expected %d bytes written and sized, got n=%d size=%d", len(data), n, rw.size)
	}
}
