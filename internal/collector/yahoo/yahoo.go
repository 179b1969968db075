package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/newthinker/chartgen/internal/core"
)

const (
	DefaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

	defaultUserAgent = "Mozilla/5.0"
	notFoundCode     = "Not Found"
)

// validSymbol matches symbols like AAPL, 0700.HK, 600519.SS, ^HSI, BRK-B
var validSymbol = regexp.MustCompile(`^\^?[A-Za-z0-9=\-]{1,12}(\.[A-Za-z]{1,4})?$`)

// Config holds Yahoo client settings
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	UserAgent         string
	Transport         http.RoundTripper // nil uses http.DefaultTransport
}

// DefaultConfig paces requests to one every two seconds.
func DefaultConfig() Config {
	return Config{
		BaseURL:           DefaultBaseURL,
		Timeout:           10 * time.Second,
		RequestsPerSecond: 0.5,
		Burst:             1,
		UserAgent:         defaultUserAgent,
	}
}

// Yahoo implements the Yahoo Finance provider
type Yahoo struct {
	client    *http.Client
	baseURL   string
	userAgent string
	limiter   *rate.Limiter
}

// New creates a Yahoo provider with DefaultConfig
func New() *Yahoo {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a Yahoo provider. Zero fields fall back to defaults;
// a non-positive rate disables pacing.
func NewWithConfig(cfg Config) *Yahoo {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Yahoo{
		client:    &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
		limiter:   rate.NewLimiter(limit, cfg.Burst),
	}
}

func (y *Yahoo) Name() string {
	return "yahoo"
}

// FetchHistory fetches daily bars for the period range token
func (y *Yahoo) FetchHistory(ctx context.Context, symbol string, period core.Period) ([]core.OHLCV, error) {
	if !validSymbol.MatchString(symbol) {
		return []core.OHLCV{}, nil
	}

	q := url.Values{}
	q.Set("range", string(period))
	q.Set("interval", "1d")

	body, err := y.get(ctx, symbol, q)
	if err != nil {
		return nil, core.WrapError(core.ErrProviderFailed, fmt.Errorf("fetching history for %s: %w", symbol, err))
	}

	var result chartResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, core.WrapError(core.ErrProviderFailed, fmt.Errorf("decoding response: %w", err))
	}

	if result.Chart.Error != nil {
		if result.Chart.Error.Code == notFoundCode {
			return []core.OHLCV{}, nil
		}
		return nil, core.WrapError(core.ErrProviderFailed,
			fmt.Errorf("yahoo error: %s", result.Chart.Error.Description))
	}

	if len(result.Chart.Result) == 0 {
		return []core.OHLCV{}, nil
	}

	return toBars(symbol, result.Chart.Result[0]), nil
}

// FetchProfile reads the display name from the chart metadata
func (y *Yahoo) FetchProfile(ctx context.Context, symbol string) (*core.Profile, error) {
	if !validSymbol.MatchString(symbol) {
		return nil, core.WrapError(core.ErrProfileFailed, fmt.Errorf("invalid symbol format: %s", symbol))
	}

	q := url.Values{}
	q.Set("range", "1d")
	q.Set("interval", "1d")

	body, err := y.get(ctx, symbol, q)
	if err != nil {
		return nil, core.WrapError(core.ErrProfileFailed, err)
	}
	if !gjson.ValidBytes(body) {
		return nil, core.WrapError(core.ErrProfileFailed, fmt.Errorf("invalid JSON for %s", symbol))
	}

	doc := gjson.ParseBytes(body)
	if desc := doc.Get("chart.error.description"); desc.Exists() {
		return nil, core.WrapError(core.ErrProfileFailed, fmt.Errorf("yahoo error: %s", desc.String()))
	}

	meta := doc.Get("chart.result.0.meta")
	name := meta.Get("longName").String()
	if name == "" {
		name = meta.Get("shortName").String()
	}
	if name == "" {
		return nil, core.WrapError(core.ErrProfileFailed, fmt.Errorf("no display name for %s", symbol))
	}

	exchange := meta.Get("fullExchangeName").String()
	if exchange == "" {
		exchange = meta.Get("exchangeName").String()
	}

	return &core.Profile{
		Symbol:      symbol,
		DisplayName: name,
		Currency:    meta.Get("currency").String(),
		Exchange:    exchange,
	}, nil
}

// get performs a paced chart request and returns the body. Yahoo answers
// unknown symbols with 404 and a JSON error payload, which is returned
// to the caller for decoding.
func (y *Yahoo) get(ctx context.Context, symbol string, q url.Values) ([]byte, error) {
	if err := y.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	u := fmt.Sprintf("%s/%s?%s", y.baseURL, url.PathEscape(symbol), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", y.userAgent)

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNotFound:
		return body, nil
	default:
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
}

func toBars(symbol string, r chartResult) []core.OHLCV {
	if len(r.Indicators.Quote) == 0 {
		return []core.OHLCV{}
	}
	quotes := r.Indicators.Quote[0]

	data := make([]core.OHLCV, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		open, high, low, cls := at(quotes.Open, i), at(quotes.High, i), at(quotes.Low, i), at(quotes.Close, i)
		if open == nil || high == nil || low == nil || cls == nil {
			continue // holidays and halted sessions
		}
		var volume int64
		if i < len(quotes.Volume) && quotes.Volume[i] != nil {
			volume = *quotes.Volume[i]
		}
		data = append(data, core.OHLCV{
			Symbol:   symbol,
			Interval: "1d",
			Open:     *open,
			High:     *high,
			Low:      *low,
			Close:    *cls,
			Volume:   volume,
			Time:     time.Unix(ts, 0).UTC(),
		})
	}

	sort.Slice(data, func(i, j int) bool { return data[i].Time.Before(data[j].Time) })
	return data
}

func at(values []*float64, i int) *float64 {
	if i >= len(values) {
		return nil
	}
	return values[i]
}

// Yahoo API response types
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Timestamp  []int64    `json:"timestamp"`
	Indicators indicators `json:"indicators"`
}

type indicators struct {
	Quote []quoteIndicator `json:"quote"`
}

type quoteIndicator struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}
