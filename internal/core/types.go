package core

import (
	"strings"
	"time"
)

// Market represents a trading market
type Market string

const (
	MarketUS  Market = "US"
	MarketHK  Market = "HK"
	MarketCNA Market = "CN_A"
)

// DetectMarket infers the market from a canonical symbol's exchange suffix.
func DetectMarket(symbol string) Market {
	upper := strings.ToUpper(symbol)
	switch {
	case strings.HasSuffix(upper, ".HK"):
		return MarketHK
	case strings.HasSuffix(upper, ".SS"), strings.HasSuffix(upper, ".SH"), strings.HasSuffix(upper, ".SZ"):
		return MarketCNA
	default:
		return MarketUS
	}
}

// Currency returns the quote currency used for axis labels, or "" when unknown.
func (m Market) Currency() string {
	switch m {
	case MarketHK:
		return "HKD"
	case MarketCNA:
		return "CNY"
	default:
		return ""
	}
}

// OHLCV represents a candlestick/bar
type OHLCV struct {
	Symbol   string
	Interval string // "1d"
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   int64
	Time     time.Time
}

// Closes extracts the close prices of bars in order.
func Closes(bars []OHLCV) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}

// Profile holds descriptive metadata for a symbol.
type Profile struct {
	Symbol      string
	DisplayName string
	Currency    string
	Exchange    string
}

// Period is a lookback window token forwarded verbatim to data providers.
type Period string

const (
	Period1d  Period = "1d"
	Period5d  Period = "5d"
	Period1mo Period = "1mo"
	Period3mo Period = "3mo"
	Period6mo Period = "6mo"
	Period1y  Period = "1y"
	Period2y  Period = "2y"
	Period5y  Period = "5y"
	Period10y Period = "10y"
	PeriodYTD Period = "ytd"
	PeriodMax Period = "max"
)

// Valid reports whether p is one of the known lookback tokens.
func (p Period) Valid() bool {
	switch p {
	case Period1d, Period5d, Period1mo, Period3mo, Period6mo,
		Period1y, Period2y, Period5y, Period10y, PeriodYTD, PeriodMax:
		return true
	}
	return false
}

// Start returns the beginning of the window ending at now, for providers
// that take explicit dates instead of range tokens.
func (p Period) Start(now time.Time) time.Time {
	switch p {
	case Period1d:
		return now.AddDate(0, 0, -1)
	case Period5d:
		return now.AddDate(0, 0, -5)
	case Period1mo:
		return now.AddDate(0, -1, 0)
	case Period3mo:
		return now.AddDate(0, -3, 0)
	case Period6mo:
		return now.AddDate(0, -6, 0)
	case Period1y:
		return now.AddDate(-1, 0, 0)
	case Period2y:
		return now.AddDate(-2, 0, 0)
	case Period5y:
		return now.AddDate(-5, 0, 0)
	case Period10y:
		return now.AddDate(-10, 0, 0)
	case PeriodYTD:
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	default:
		// "max" and anything unknown
		return time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
}
