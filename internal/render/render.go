// Package render turns price history and overlays into chart images.
package render

import (
	"context"
	"fmt"

	"github.com/newthinker/chartgen/internal/core"
	"github.com/newthinker/chartgen/internal/indicator"
)

// Input is everything one chart needs.
type Input struct {
	Symbol   string
	Title    string
	YLabel   string
	History  []core.OHLCV
	Overlays indicator.Overlays
	Style    Style
}

// Renderer produces an encoded image for one chart, always with a price
// panel and a volume panel.
type Renderer interface {
	Render(ctx context.Context, in Input) ([]byte, error)
}

// Title formats the chart heading as "Display Name (CANONICAL)".
func Title(displayName, symbol string) string {
	if displayName == "" {
		displayName = symbol
	}
	return fmt.Sprintf("%s (%s)", displayName, symbol)
}

// YLabel labels the price axis with the market currency when known.
func YLabel(symbol string) string {
	if ccy := core.DetectMarket(symbol).Currency(); ccy != "" {
		return fmt.Sprintf("Price (%s)", ccy)
	}
	return "Price"
}

func validate(in Input) error {
	if len(in.History) == 0 {
		return core.WrapError(core.ErrRenderFailed, fmt.Errorf("empty price history for %s", in.Symbol))
	}
	n := len(in.History)
	if len(in.Overlays.SMA10) != n || len(in.Overlays.SMA20) != n {
		return core.WrapError(core.ErrRenderFailed,
			fmt.Errorf("overlay length mismatch for %s: bars=%d sma10=%d sma20=%d",
				in.Symbol, n, len(in.Overlays.SMA10), len(in.Overlays.SMA20)))
	}
	return nil
}
