package core

import (
	"testing"
	"time"
)

func TestDetectMarket(t *testing.T) {
	tests := []struct {
		symbol   string
		expected Market
	}{
		{"0700.HK", MarketHK},
		{"0700.hk", MarketHK},
		{"600519.SS", MarketCNA},
		{"000001.SZ", MarketCNA},
		{"AAPL", MarketUS},
		{"0700.HKX", MarketUS},
	}

	for _, tc := range tests {
		if got := DetectMarket(tc.symbol); got != tc.expected {
			t.Errorf("DetectMarket(%s) = %s, want %s", tc.symbol, got, tc.expected)
		}
	}
}

func TestMarket_Currency(t *testing.T) {
	if MarketHK.Currency() != "HKD" {
		t.Errorf("expected HKD, got %q", MarketHK.Currency())
	}
	if MarketUS.Currency() != "" {
		t.Errorf("expected empty currency for US, got %q", MarketUS.Currency())
	}
}

func TestCloses(t *testing.T) {
	bars := []OHLCV{{Close: 1}, {Close: 2.5}, {Close: 3}}
	closes := Closes(bars)

	expected := []float64{1, 2.5, 3}
	if len(closes) != len(expected) {
		t.Fatalf("expected %d closes, got %d", len(expected), len(closes))
	}
	for i, v := range expected {
		if closes[i] != v {
			t.Errorf("closes[%d] = %f, want %f", i, closes[i], v)
		}
	}
}

func TestPeriod_Valid(t *testing.T) {
	for _, p := range []Period{Period1mo, Period6mo, Period1y, PeriodYTD, PeriodMax} {
		if !p.Valid() {
			t.Errorf("expected %s to be valid", p)
		}
	}
	for _, p := range []Period{"", "6m", "1year", "1Y"} {
		if p.Valid() {
			t.Errorf("expected %q to be invalid", p)
		}
	}
}

func TestPeriod_Start(t *testing.T) {
	now := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		period Period
		want   time.Time
	}{
		{Period1mo, time.Date(2024, time.February, 15, 12, 0, 0, 0, time.UTC)},
		{Period6mo, time.Date(2023, time.September, 15, 12, 0, 0, 0, time.UTC)},
		{Period1y, time.Date(2023, time.March, 15, 12, 0, 0, 0, time.UTC)},
		{PeriodYTD, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tc := range tests {
		t.Run(string(tc.period), func(t *testing.T) {
			if got := tc.period.Start(now); !got.Equal(tc.want) {
				t.Errorf("Start() = %v, want %v", got, tc.want)
			}
		})
	}
}
