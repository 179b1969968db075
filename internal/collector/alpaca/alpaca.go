// Package alpaca provides US equity history through the Alpaca market data API.
package alpaca

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"github.com/newthinker/chartgen/internal/core"
)

// Config holds Alpaca credentials
type Config struct {
	APIKey    string
	APISecret string
	BaseURL   string // trading API, used for asset names
	Feed      string // "iex" or "sip"
}

// barsClient is the subset of marketdata.Client used here
type barsClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// assetClient is the subset of alpaca.Client used here
type assetClient interface {
	GetAsset(symbol string) (*alpaca.Asset, error)
}

// Alpaca implements collector.Provider
type Alpaca struct {
	bars   barsClient
	assets assetClient
	feed   marketdata.Feed
	now    func() time.Time
}

// New creates an Alpaca provider
func New(cfg Config) *Alpaca {
	feed := marketdata.IEX
	if strings.EqualFold(cfg.Feed, "sip") {
		feed = marketdata.SIP
	}

	return &Alpaca{
		bars: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    cfg.APIKey,
			APISecret: cfg.APISecret,
			Feed:      feed,
		}),
		assets: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    cfg.APIKey,
			APISecret: cfg.APISecret,
			BaseURL:   cfg.BaseURL,
		}),
		feed: feed,
		now:  time.Now,
	}
}

func (a *Alpaca) Name() string {
	return "alpaca"
}

// FetchHistory fetches daily bars from period.Start(now) until now
func (a *Alpaca) FetchHistory(ctx context.Context, symbol string, period core.Period) ([]core.OHLCV, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	end := a.now().UTC()
	bars, err := a.bars.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     period.Start(end),
		End:       end,
		Feed:      a.feed,
	})
	if err != nil {
		if isNotFound(err) {
			return []core.OHLCV{}, nil
		}
		return nil, core.WrapError(core.ErrProviderFailed, fmt.Errorf("fetching history for %s: %w", symbol, err))
	}

	data := make([]core.OHLCV, 0, len(bars))
	for _, b := range bars {
		data = append(data, core.OHLCV{
			Symbol:   symbol,
			Interval: "1d",
			Open:     b.Open,
			High:     b.High,
			Low:      b.Low,
			Close:    b.Close,
			Volume:   int64(b.Volume),
			Time:     b.Timestamp.UTC(),
		})
	}
	return data, nil
}

// FetchProfile looks up the asset name through the trading API
func (a *Alpaca) FetchProfile(ctx context.Context, symbol string) (*core.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	asset, err := a.assets.GetAsset(symbol)
	if err != nil {
		return nil, core.WrapError(core.ErrProfileFailed, err)
	}
	if asset == nil || asset.Name == "" {
		return nil, core.WrapError(core.ErrProfileFailed, fmt.Errorf("no display name for %s", symbol))
	}

	return &core.Profile{
		Symbol:      symbol,
		DisplayName: asset.Name,
		Currency:    "USD",
		Exchange:    asset.Exchange,
	}, nil
}

// isNotFound reports whether Alpaca rejected the symbol itself
func isNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "invalid symbol") || strings.Contains(msg, "not found")
}
