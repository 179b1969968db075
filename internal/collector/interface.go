package collector

import (
	"context"

	"github.com/newthinker/chartgen/internal/core"
)

// Provider defines the interface for price data providers
type Provider interface {
	// Name returns the registry key, e.g. "yahoo"
	Name() string

	// FetchHistory returns daily bars for symbol over period, oldest first.
	// An unknown symbol yields an empty slice and a nil error.
	FetchHistory(ctx context.Context, symbol string, period core.Period) ([]core.OHLCV, error)

	// FetchProfile returns descriptive metadata. Callers treat any error
	// as non-fatal.
	FetchProfile(ctx context.Context, symbol string) (*core.Profile, error)
}
