package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogging(t *testing.T) {
	obs, logs := observer.New(zapcore.InfoLevel)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	req := httptest.NewRequest("POST", "/api/v1/jobs", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	w := httptest.NewRecorder()

	Logging(zap.New(obs))(handler).ServeHTTP(w, req)

	if logs.Len() != 1 {
		t.Fatalf("expected 1 log entry, got %d", logs.Len())
	}
	fields := logs.All()[0].ContextMap()
	if fields["method"] != "POST" {
		t.Errorf("expected method POST, got %v", fields["method"])
	}
	if fields["path"] != "/api/v1/jobs" {
		t.Errorf("expected path /api/v1/jobs, got %v", fields["path"])
	}
	if fields["status"] != int64(http.StatusAccepted) {
		t.Errorf("expected status 202, got %v", fields["status"])
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Error("expected a generated request id")
	}
}

func TestLogging_ReusesRequestID(t *testing.T) {
	obs, logs := observer.New(zapcore.InfoLevel)

	req := httptest.NewRequest("GET", "/api/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()

	Logging(zap.New(obs))(http.NotFoundHandler()).ServeHTTP(w, req)

	if got := w.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("expected abc-123, got %s", got)
	}
	if got := logs.All()[0].ContextMap()["request_id"]; got != "abc-123" {
		t.Errorf("expected logged request id abc-123, got %v", got)
	}
}
