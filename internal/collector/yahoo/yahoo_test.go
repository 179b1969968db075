package yahoo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/chartgen/internal/collector"
	"github.com/newthinker/chartgen/internal/core"
)

const historyBody = `{
  "chart": {
    "result": [{
      "meta": {"symbol": "0700.HK", "currency": "HKD", "longName": "Tencent Holdings Limited", "shortName": "TENCENT", "exchangeName": "HKG", "fullExchangeName": "HKSE"},
      "timestamp": [1704159000, 1704245400, 1704331800, 1704418200],
      "indicators": {"quote": [{
        "open":   [290.0, 288.0, null, 285.0],
        "high":   [295.0, 291.0, null, 290.0],
        "low":    [287.0, 284.0, null, 283.0],
        "close":  [291.0, 286.0, null, 289.0],
        "volume": [1000, 2000, null, null]
      }]}
    }],
    "error": null
  }
}`

const notFoundBody = `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`

func newTestServer(t *testing.T, handler http.HandlerFunc) *Yahoo {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewWithConfig(Config{BaseURL: srv.URL})
}

func TestYahoo_ImplementsProvider(t *testing.T) {
	var _ collector.Provider = (*Yahoo)(nil)
}

func TestYahoo_Name(t *testing.T) {
	y := New()
	if y.Name() != "yahoo" {
		t.Errorf("expected 'yahoo', got '%s'", y.Name())
	}
}

func TestYahoo_FetchHistory(t *testing.T) {
	var gotPath, gotRange, gotInterval, gotUA string
	y := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotRange = r.URL.Query().Get("range")
		gotInterval = r.URL.Query().Get("interval")
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(historyBody))
	})

	bars, err := y.FetchHistory(context.Background(), "0700.HK", core.Period1y)
	require.NoError(t, err)

	assert.Equal(t, "/0700.HK", gotPath)
	assert.Equal(t, "1y", gotRange)
	assert.Equal(t, "1d", gotInterval)
	assert.NotEmpty(t, gotUA)

	// null bar skipped
	require.Len(t, bars, 3)
	assert.Equal(t, 291.0, bars[0].Close)
	assert.Equal(t, int64(1000), bars[0].Volume)
	assert.Equal(t, "0700.HK", bars[0].Symbol)
	assert.Equal(t, int64(0), bars[2].Volume)
	assert.True(t, bars[0].Time.Before(bars[1].Time))
}

func TestYahoo_FetchHistory_NotFoundIsEmpty(t *testing.T) {
	y := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(notFoundBody))
	})

	bars, err := y.FetchHistory(context.Background(), "ZZZZ", core.Period6mo)
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestYahoo_FetchHistory_InvalidSymbolIsEmpty(t *testing.T) {
	called := false
	y := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	bars, err := y.FetchHistory(context.Background(), "../etc/passwd", core.Period6mo)
	require.NoError(t, err)
	assert.Empty(t, bars)
	assert.False(t, called, "invalid symbols should not reach the network")
}

func TestYahoo_FetchHistory_ServerError(t *testing.T) {
	y := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := y.FetchHistory(context.Background(), "AAPL", core.Period1mo)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrProviderFailed))
	assert.Contains(t, err.Error(), "503")
}

func TestYahoo_FetchHistory_MalformedJSON(t *testing.T) {
	y := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart": [`))
	})

	_, err := y.FetchHistory(context.Background(), "AAPL", core.Period1mo)
	assert.ErrorIs(t, err, core.ErrProviderFailed)
}

func TestYahoo_FetchProfile(t *testing.T) {
	y := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(historyBody))
	})

	p, err := y.FetchProfile(context.Background(), "0700.HK")
	require.NoError(t, err)
	assert.Equal(t, "Tencent Holdings Limited", p.DisplayName)
	assert.Equal(t, "HKD", p.Currency)
	assert.Equal(t, "HKSE", p.Exchange)
}

func TestYahoo_FetchProfile_ShortNameFallback(t *testing.T) {
	body := strings.Replace(historyBody, `"longName": "Tencent Holdings Limited", `, "", 1)
	y := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	})

	p, err := y.FetchProfile(context.Background(), "0700.HK")
	require.NoError(t, err)
	assert.Equal(t, "TENCENT", p.DisplayName)
}

func TestYahoo_FetchProfile_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"not found", http.StatusNotFound, notFoundBody},
		{"no names", http.StatusOK, `{"chart":{"result":[{"meta":{"symbol":"X"}}],"error":null}}`},
		{"bad json", http.StatusOK, `not json`},
		{"server error", http.StatusInternalServerError, ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			y := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := y.FetchProfile(context.Background(), "AAPL")
			assert.ErrorIs(t, err, core.ErrProfileFailed)
		})
	}
}

func TestYahoo_CancelledContext(t *testing.T) {
	y := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(historyBody))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := y.FetchHistory(ctx, "AAPL", core.Period1mo)
	assert.Error(t, err)
}

func TestValidSymbol(t *testing.T) {
	tests := []struct {
		symbol string
		valid  bool
	}{
		{"AAPL", true},
		{"0700.HK", true},
		{"600519.SS", true},
		{"^HSI", true},
		{"BRK-B", true},
		{"0700.HKX", true},
		{"", false},
		{"-005.HK", true},
		{"BTC?foo=bar", false},
		{"../etc/passwd", false},
	}

	for _, tc := range tests {
		if got := validSymbol.MatchString(tc.symbol); got != tc.valid {
			t.Errorf("validSymbol(%q) = %v, want %v", tc.symbol, got, tc.valid)
		}
	}
}
