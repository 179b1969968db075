package indicator

import (
	"math"

	talib "github.com/markcheno/go-talib"

	"github.com/newthinker/chartgen/internal/core"
)

// Overlay periods drawn on every chart.
const (
	FastPeriod = 10
	SlowPeriod = 20
)

// SMA calculates Simple Moving Average aligned to prices.
// Returns slice of length len(prices); the first period-1 entries are NaN.
func SMA(prices []float64, period int) []float64 {
	result := make([]float64, len(prices))
	if period < 1 || len(prices) < period {
		fillNaN(result)
		return result
	}
	if period == 1 {
		copy(result, prices)
		return result
	}

	// talib leaves the lookback region as zeros
	copy(result, talib.Sma(prices, period))
	fillNaN(result[:period-1])
	return result
}

// Defined reports whether an aligned indicator value exists.
func Defined(v float64) bool {
	return !math.IsNaN(v)
}

// FirstDefined returns the index of the first defined value, or -1.
func FirstDefined(series []float64) int {
	for i, v := range series {
		if Defined(v) {
			return i
		}
	}
	return -1
}

// Overlays holds the moving averages drawn over the price panel.
type Overlays struct {
	SMA10 []float64
	SMA20 []float64
}

// ComputeOverlays derives SMA10 and SMA20 of close from bars.
func ComputeOverlays(bars []core.OHLCV) Overlays {
	closes := core.Closes(bars)
	return Overlays{
		SMA10: SMA(closes, FastPeriod),
		SMA20: SMA(closes, SlowPeriod),
	}
}

func fillNaN(s []float64) {
	for i := range s {
		s[i] = math.NaN()
	}
}
