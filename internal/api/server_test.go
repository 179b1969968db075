// internal/api/server_test.go
package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/newthinker/chartgen/internal/app"
	"github.com/newthinker/chartgen/internal/pipeline"
	"github.com/newthinker/chartgen/internal/storage/archive"
	"github.com/newthinker/chartgen/internal/symbol"
)

type nopRunner struct{}

func (nopRunner) Execute(ctx context.Context, req app.RunRequest) []pipeline.Result {
	return nil
}

func testDeps(t *testing.T) Dependencies {
	t.Helper()
	store, err := archive.NewLocalFS(t.TempDir())
	if err != nil {
		t.Fatalf("creating storage: %v", err)
	}
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "chartgen_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	return Dependencies{
		Runner:         nopRunner{},
		Artifacts:      store,
		Gatherer:       reg,
		DefaultSymbols: []symbol.Raw{"700"},
	}
}

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	cfg.MaxJobs = 10
	srv, err := NewServer(cfg, testDeps(t), zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv
}

func serve(srv *Server, method, target, apiKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t, Config{Host: "localhost", APIKey: "test-key"})

	w := serve(srv, "GET", "/api/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected request id header")
	}
}

func TestServer_Metrics(t *testing.T) {
	srv := newTestServer(t, Config{Host: "localhost"})

	w := serve(srv, "GET", "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "chartgen_test_total 1") {
		t.Errorf("expected registered counter in output, got:\n%s", w.Body.String())
	}
}

func TestServer_MetricsDisabled(t *testing.T) {
	deps := testDeps(t)
	deps.Gatherer = nil
	srv, err := NewServer(Config{MaxJobs: 1}, deps, nil)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	if w := serve(srv, "GET", "/metrics", ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestServer_APIAuth_Required(t *testing.T) {
	srv := newTestServer(t, Config{Host: "localhost", APIKey: "test-key"})

	if w := serve(srv, "GET", "/api/v1/jobs", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without key, got %d", w.Code)
	}
}

func TestServer_APIAuth_ValidKey(t *testing.T) {
	srv := newTestServer(t, Config{Host: "localhost", APIKey: "test-key"})

	if w := serve(srv, "GET", "/api/v1/jobs", "test-key"); w.Code != http.StatusOK {
		t.Errorf("expected 200 with key, got %d", w.Code)
	}
}

func TestServer_APIAuth_Disabled(t *testing.T) {
	srv := newTestServer(t, Config{Host: "localhost"})

	if w := serve(srv, "GET", "/api/v1/charts", ""); w.Code != http.StatusOK {
		t.Errorf("expected 200 with disabled auth, got %d", w.Code)
	}
}

func TestServer_RunsWithoutLedger(t *testing.T) {
	srv := newTestServer(t, Config{Host: "localhost"})

	if w := serve(srv, "GET", "/api/v1/runs", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without ledger, got %d", w.Code)
	}
}

func TestServer_StartJob(t *testing.T) {
	srv := newTestServer(t, Config{Host: "localhost"})

	if w := serve(srv, "POST", "/api/v1/jobs", ""); w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestNewServer_RequiresRunner(t *testing.T) {
	deps := testDeps(t)
	deps.Runner = nil
	if _, err := NewServer(Config{}, deps, nil); err == nil {
		t.Error("expected error without runner")
	}
}
