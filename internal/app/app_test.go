package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/chartgen/internal/alert"
	"github.com/newthinker/chartgen/internal/config"
	"github.com/newthinker/chartgen/internal/core"
	"github.com/newthinker/chartgen/internal/pipeline"
	"github.com/newthinker/chartgen/internal/render"
	"github.com/newthinker/chartgen/internal/symbol"
)

type stubProvider struct{}

func (stubProvider) Name() string { return "stub" }

func (stubProvider) FetchHistory(ctx context.Context, sym string, period core.Period) ([]core.OHLCV, error) {
	if sym != "0700.HK" {
		return nil, nil
	}
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]core.OHLCV, 30)
	for i := range bars {
		bars[i] = core.OHLCV{Symbol: sym, Open: 300, High: 305, Low: 295, Close: 302, Volume: 1000, Time: start.AddDate(0, 0, i)}
	}
	return bars, nil
}

func (stubProvider) FetchProfile(ctx context.Context, sym string) (*core.Profile, error) {
	return &core.Profile{Symbol: sym, DisplayName: "Tencent"}, nil
}

type stubRenderer struct{}

func (stubRenderer) Render(ctx context.Context, in render.Input) ([]byte, error) {
	return []byte("PNG"), nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.Provider.Name = "stub"
	cfg.Chart.OutputDir = filepath.Join(dir, "charts")
	return cfg
}

func fixedClock() time.Time {
	return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
}

func TestNew_RegistersBuiltinProviders(t *testing.T) {
	cfg := testConfig(t)
	cfg.Provider.Name = "yahoo"

	a, err := New(cfg, nil, WithRenderer(stubRenderer{}))
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, []string{"eastmoney", "yahoo"}, a.Providers())
	assert.Nil(t, a.Ledger())
}

func TestNew_RegistersAlpacaWithKeys(t *testing.T) {
	cfg := testConfig(t)
	cfg.Provider.Name = "alpaca"
	cfg.Provider.Alpaca.APIKey = "key"
	cfg.Provider.Alpaca.APISecret = "secret"

	a, err := New(cfg, nil, WithRenderer(stubRenderer{}))
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, []string{"alpaca", "eastmoney", "yahoo"}, a.Providers())
}

func TestNew_UnknownProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.Provider.Name = "alpaca"

	_, err := New(cfg, nil)
	assert.ErrorIs(t, err, core.ErrUnknownProvider)
}

func TestNew_UnknownStyle(t *testing.T) {
	cfg := testConfig(t)
	cfg.Chart.Style = "neon"

	_, err := New(cfg, nil, WithProvider(stubProvider{}))
	assert.ErrorIs(t, err, core.ErrUnknownStyle)
}

func TestNew_UnknownNotifier(t *testing.T) {
	cfg := testConfig(t)
	cfg.Notifiers = map[string]config.NotifierConfig{"pager": {Enabled: true}}

	_, err := New(cfg, nil, WithProvider(stubProvider{}), WithRenderer(stubRenderer{}))
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}

func TestApp_Run(t *testing.T) {
	var mu sync.Mutex
	var payload map[string]any
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		json.NewDecoder(r.Body).Decode(&payload)
	}))
	defer hook.Close()

	cfg := testConfig(t)
	state := t.TempDir()
	cfg.Ledger.Path = filepath.Join(state, "ledger.db")
	cfg.Metrics.Textfile = filepath.Join(state, "chartgen.prom")
	cfg.Notifiers = map[string]config.NotifierConfig{
		"webhook":  {Enabled: true, URL: hook.URL},
		"telegram": {Enabled: false},
	}

	a, err := New(cfg, nil,
		WithProvider(stubProvider{}),
		WithRenderer(stubRenderer{}),
		WithClock(fixedClock),
	)
	require.NoError(t, err)
	defer a.Close()

	var out bytes.Buffer
	results := a.Run(context.Background(), symbol.ParseList([]any{700, "AAPL"}), &out)
	require.Len(t, results, 2)

	chart := filepath.Join(cfg.Chart.OutputDir, "0700.HK_20240315.png")
	assert.FileExists(t, chart)
	assert.Equal(t, "Chart saved: "+chart+"\nNo data found for AAPL\n", out.String())

	runs, err := a.Ledger().Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].Saved)
	assert.Equal(t, 1, runs[0].NoData)

	prom, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(prom), `chartgen_symbols_processed_total{status="saved"} 1`))

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, payload)
	assert.Equal(t, "chart_run", payload["type"])
	assert.Equal(t, float64(2), payload["total"])
}

func TestApp_RunWithoutReporter(t *testing.T) {
	a, err := New(testConfig(t), nil,
		WithProvider(stubProvider{}),
		WithRenderer(stubRenderer{}),
		WithClock(fixedClock),
	)
	require.NoError(t, err)
	defer a.Close()

	results := a.Run(context.Background(), []symbol.Raw{"700"}, nil)
	require.Len(t, results, 1)
	assert.Equal(t, core.StatusSaved, results[0].Status)
}

type collectReporter struct {
	got []pipeline.Result
}

func (c *collectReporter) Report(r pipeline.Result) {
	c.got = append(c.got, r)
}

func TestApp_ExecuteUsesRequestID(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ledger.Path = filepath.Join(t.TempDir(), "ledger.db")

	a, err := New(cfg, nil,
		WithProvider(stubProvider{}),
		WithRenderer(stubRenderer{}),
		WithClock(fixedClock),
	)
	require.NoError(t, err)
	defer a.Close()

	rep := &collectReporter{}
	results := a.Execute(context.Background(), RunRequest{
		ID:       "job-42",
		Symbols:  []symbol.Raw{"700", "MSFT"},
		Reporter: rep,
	})
	require.Len(t, results, 2)
	require.Len(t, rep.got, 2)
	assert.Equal(t, "0700.HK", rep.got[0].Canonical)

	runs, err := a.Ledger().Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "job-42", runs[0].RunID)

	ok, err := a.Artifacts().Exists(context.Background(), "0700.HK_20240315.png")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotNil(t, a.Metrics())
}

func TestApp_RunFiresAlerts(t *testing.T) {
	var mu sync.Mutex
	var types []string
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		json.NewDecoder(r.Body).Decode(&payload)
		mu.Lock()
		types = append(types, payload["type"].(string))
		mu.Unlock()
	}))
	defer hook.Close()

	cfg := testConfig(t)
	cfg.Notifiers = map[string]config.NotifierConfig{"webhook": {Enabled: true, URL: hook.URL}}
	cfg.Alerts.Rules = []alert.Rule{{Name: "missing_data", Expr: "no_data > 0", Message: "some symbols had no data"}}

	a, err := New(cfg, nil,
		WithProvider(stubProvider{}),
		WithRenderer(stubRenderer{}),
		WithClock(fixedClock),
	)
	require.NoError(t, err)
	defer a.Close()

	a.Run(context.Background(), []symbol.Raw{"700", "AAPL"}, nil)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"chart_run", "alert"}, types)
}

func TestApp_AlertsWithoutNotifiers(t *testing.T) {
	cfg := testConfig(t)
	cfg.Alerts.Rules = []alert.Rule{{Name: "failures", Expr: "failed > 0"}}

	a, err := New(cfg, nil,
		WithProvider(stubProvider{}),
		WithRenderer(stubRenderer{}),
		WithClock(fixedClock),
	)
	require.NoError(t, err)
	defer a.Close()

	results := a.Run(context.Background(), []symbol.Raw{"700"}, nil)
	require.Len(t, results, 1)
	assert.Equal(t, core.StatusSaved, results[0].Status)
}
