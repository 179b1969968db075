package metrics

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func findFamily(t *testing.T, reg *Registry, name string) *dto.MetricFamily {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	if reg == nil {
		t.Fatal("expected non-nil registry")
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	// Should have go runtime metrics at minimum
	if len(mfs) == 0 {
		t.Error("expected some metrics to be registered")
	}
}

func TestRegistry_RecordSymbol(t *testing.T) {
	reg := NewRegistry()
	at := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)

	reg.RecordSymbol("saved", 2*time.Second, at)
	reg.RecordSymbol("no_data", 500*time.Millisecond, at.Add(time.Minute))
	reg.RecordSymbol("saved", time.Second, at.Add(2*time.Minute))

	mf := findFamily(t, reg, "chartgen_symbols_processed_total")
	if mf == nil {
		t.Fatal("expected chartgen_symbols_processed_total metric")
	}
	counts := map[string]float64{}
	for _, m := range mf.GetMetric() {
		for _, label := range m.GetLabel() {
			if label.GetName() == "status" {
				counts[label.GetValue()] = m.GetCounter().GetValue()
			}
		}
	}
	if counts["saved"] != 2 || counts["no_data"] != 1 {
		t.Errorf("unexpected counts %v", counts)
	}

	hist := findFamily(t, reg, "chartgen_symbol_duration_seconds")
	if hist == nil || hist.GetMetric()[0].GetHistogram().GetSampleCount() != 3 {
		t.Error("expected 3 duration samples")
	}

	last := findFamily(t, reg, "chartgen_last_success_timestamp_seconds")
	if last == nil {
		t.Fatal("expected last success gauge")
	}
	want := float64(at.Add(2 * time.Minute).Unix())
	if got := last.GetMetric()[0].GetGauge().GetValue(); got != want {
		t.Errorf("last success = %v, want %v", got, want)
	}
}

func TestRegistry_LastSuccessIgnoresFailures(t *testing.T) {
	reg := NewRegistry()
	reg.RecordSymbol("failed", time.Second, time.Now())

	last := findFamily(t, reg, "chartgen_last_success_timestamp_seconds")
	if last == nil {
		t.Fatal("expected last success gauge")
	}
	if got := last.GetMetric()[0].GetGauge().GetValue(); got != 0 {
		t.Errorf("expected gauge untouched, got %v", got)
	}
}

func TestRegistry_RecordBatch(t *testing.T) {
	reg := NewRegistry()
	reg.RecordBatch(95 * time.Second)

	runs := findFamily(t, reg, "chartgen_batch_runs_total")
	if runs == nil || runs.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Error("expected one batch run")
	}

	dur := findFamily(t, reg, "chartgen_batch_duration_seconds")
	if dur == nil {
		t.Fatal("expected chartgen_batch_duration_seconds metric")
	}
	if sum := dur.GetMetric()[0].GetHistogram().GetSampleSum(); sum != 95 {
		t.Errorf("expected sample sum 95, got %v", sum)
	}
}

func TestStatusToString(t *testing.T) {
	tests := []struct {
		status   int
		expected string
	}{
		{0, "error"},
		{100, "1xx"},
		{200, "2xx"},
		{301, "3xx"},
		{404, "4xx"},
		{429, "4xx"},
		{503, "5xx"},
	}

	for _, tt := range tests {
		if got := statusToString(tt.status); got != tt.expected {
			t.Errorf("statusToString(%d) = %s, want %s", tt.status, got, tt.expected)
		}
	}
}

func TestRegistry_WriteTextfile(t *testing.T) {
	reg := NewRegistry()
	reg.RecordBatch(time.Second)

	path := filepath.Join(t.TempDir(), "chartgen.prom")
	if err := reg.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading textfile: %v", err)
	}
	if !strings.Contains(string(data), "chartgen_batch_runs_total 1") {
		t.Errorf("textfile missing batch counter:\n%s", data)
	}
}

func TestRegistry_Push(t *testing.T) {
	var gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reg := NewRegistry()
	reg.RecordBatch(time.Second)

	if err := reg.Push(srv.URL, "chartgen"); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if gotMethod != http.MethodPut {
		t.Errorf("expected PUT, got %s", gotMethod)
	}
	if gotPath != "/metrics/job/chartgen" {
		t.Errorf("unexpected push path %s", gotPath)
	}
}

func TestRegistry_PushError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if err := NewRegistry().Push(srv.URL, "chartgen"); err == nil {
		t.Error("expected error from failing pushgateway")
	}
}

// Ensure the registry implements prometheus.Gatherer interface
func TestRegistry_ImplementsGatherer(t *testing.T) {
	reg := NewRegistry()
	var _ prometheus.Gatherer = reg
}
