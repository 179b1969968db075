package eastmoney

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/chartgen/internal/collector"
	"github.com/newthinker/chartgen/internal/core"
)

const klineBody = `{"rc":0,"data":{"code":"00700","market":116,"name":"腾讯控股","klines":[
"2024-03-13,290.00,295.20,296.00,288.40,18234567",
"2024-03-14,295.20,293.00,297.80,292.00,15123456",
"bad line",
"2024-03-15,293.00,298.60,299.00,292.20,20123456"]}}`

func newTestServer(t *testing.T, status int, body string, gotQuery *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotQuery != nil {
			*gotQuery = r.URL.RawQuery
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestProvider(url string) *Eastmoney {
	e := New(Config{BaseURL: url})
	e.now = func() time.Time { return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC) }
	return e
}

func TestEastmoney_ImplementsProvider(t *testing.T) {
	var _ collector.Provider = (*Eastmoney)(nil)
}

func TestEastmoney_Name(t *testing.T) {
	assert.Equal(t, "eastmoney", New(Config{}).Name())
}

func TestSecID(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"0700.HK", "116.00700", true},
		{"0005.hk", "116.00005", true},
		{"600519.SS", "1.600519", true},
		{"600519.SH", "1.600519", true},
		{"000001.SZ", "0.000001", true},
		{"AAPL", "", false},
		{"BRK.B", "", false},
		{"ABC.HK", "", false},
	}

	for _, tc := range tests {
		got, ok := secID(tc.input)
		assert.Equal(t, tc.ok, ok, tc.input)
		assert.Equal(t, tc.want, got, tc.input)
	}
}

func TestEastmoney_FetchHistory(t *testing.T) {
	var query string
	srv := newTestServer(t, http.StatusOK, klineBody, &query)

	bars, err := newTestProvider(srv.URL).FetchHistory(context.Background(), "0700.HK", core.Period1y)
	require.NoError(t, err)
	require.Len(t, bars, 3)

	assert.Contains(t, query, "secid=116.00700")
	assert.Contains(t, query, "beg=20230315")
	assert.Contains(t, query, "end=20240315")
	assert.Contains(t, query, "klt=101")

	first := bars[0]
	assert.Equal(t, "0700.HK", first.Symbol)
	assert.Equal(t, 290.0, first.Open)
	assert.Equal(t, 295.2, first.Close)
	assert.Equal(t, 296.0, first.High)
	assert.Equal(t, 288.4, first.Low)
	assert.Equal(t, int64(18234567), first.Volume)
	assert.True(t, bars[2].Time.After(bars[1].Time))
}

func TestEastmoney_FetchHistory_NoData(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{"rc":0,"data":null}`, nil)

	bars, err := newTestProvider(srv.URL).FetchHistory(context.Background(), "9999.HK", core.Period6mo)
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestEastmoney_FetchHistory_UnsupportedSymbol(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	bars, err := newTestProvider(srv.URL).FetchHistory(context.Background(), "AAPL", core.Period1y)
	require.NoError(t, err)
	assert.Empty(t, bars)
	assert.False(t, called)
}

func TestEastmoney_FetchHistory_ServerError(t *testing.T) {
	srv := newTestServer(t, http.StatusBadGateway, "", nil)

	_, err := newTestProvider(srv.URL).FetchHistory(context.Background(), "0700.HK", core.Period1y)
	assert.True(t, errors.Is(err, core.ErrProviderFailed))
}

func TestEastmoney_FetchHistory_MalformedBody(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, "<html>", nil)

	_, err := newTestProvider(srv.URL).FetchHistory(context.Background(), "0700.HK", core.Period1y)
	assert.ErrorIs(t, err, core.ErrProviderFailed)
}

func TestEastmoney_FetchProfile(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, klineBody, nil)

	p, err := newTestProvider(srv.URL).FetchProfile(context.Background(), "0700.HK")
	require.NoError(t, err)
	assert.Equal(t, "腾讯控股", p.DisplayName)
	assert.Equal(t, "HKD", p.Currency)
	assert.Equal(t, "HKEX", p.Exchange)
}

func TestEastmoney_FetchProfile_MissingName(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{"rc":0,"data":null}`, nil)

	_, err := newTestProvider(srv.URL).FetchProfile(context.Background(), "0700.HK")
	assert.ErrorIs(t, err, core.ErrProfileFailed)
}

func TestParseKline(t *testing.T) {
	_, ok := parseKline("X", "2024-03-15,1,2,3")
	assert.False(t, ok)

	_, ok = parseKline("X", "15/03/2024,1,2,3,0.5,100")
	assert.False(t, ok)

	bar, ok := parseKline("600519.SS", "2024-03-15,1700.5,1712.0,1720.0,1698.1,31234")
	require.True(t, ok)
	assert.Equal(t, 1712.0, bar.Close)
	assert.Equal(t, int64(31234), bar.Volume)
}
