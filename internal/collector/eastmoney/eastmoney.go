package eastmoney

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/newthinker/chartgen/internal/core"
)

const historyURL = "https://push2his.eastmoney.com/api/qt/stock/kline/get"

// Config holds Eastmoney client settings
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Transport         http.RoundTripper
}

// Eastmoney serves daily klines for Hong Kong and mainland A-share listings
type Eastmoney struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
	now     func() time.Time
}

// New creates an Eastmoney provider. A non-positive rate disables pacing.
func New(cfg Config) *Eastmoney {
	if cfg.BaseURL == "" {
		cfg.BaseURL = historyURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Eastmoney{
		client:  &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		baseURL: cfg.BaseURL,
		limiter: rate.NewLimiter(limit, 1),
		now:     time.Now,
	}
}

func (e *Eastmoney) Name() string {
	return "eastmoney"
}

// secID maps 0700.HK to 116.00700, 600519.SS to 1.600519 and 000001.SZ to
// 0.000001. ok is false for markets Eastmoney is not used for.
func secID(symbol string) (id string, ok bool) {
	code, suffix, found := strings.Cut(strings.ToUpper(symbol), ".")
	if !found || code == "" {
		return "", false
	}
	switch suffix {
	case "HK":
		n, err := strconv.Atoi(code)
		if err != nil || n < 0 {
			return "", false
		}
		return fmt.Sprintf("116.%05d", n), true
	case "SS", "SH":
		return "1." + code, true
	case "SZ":
		return "0." + code, true
	default:
		return "", false
	}
}

// FetchHistory fetches forward-adjusted daily klines. Unsupported or
// unknown symbols give an empty result.
func (e *Eastmoney) FetchHistory(ctx context.Context, symbol string, period core.Period) ([]core.OHLCV, error) {
	id, ok := secID(symbol)
	if !ok {
		return []core.OHLCV{}, nil
	}

	now := e.now()
	body, err := e.get(ctx, id, period.Start(now), now)
	if err != nil {
		return nil, core.WrapError(core.ErrProviderFailed, fmt.Errorf("fetching history for %s: %w", symbol, err))
	}
	if !gjson.ValidBytes(body) {
		return nil, core.WrapError(core.ErrProviderFailed, fmt.Errorf("decoding response for %s", symbol))
	}

	lines := gjson.GetBytes(body, "data.klines").Array()
	data := make([]core.OHLCV, 0, len(lines))
	for _, line := range lines {
		bar, ok := parseKline(symbol, line.String())
		if ok {
			data = append(data, bar)
		}
	}
	return data, nil
}

// FetchProfile reads the listing name from the kline payload
func (e *Eastmoney) FetchProfile(ctx context.Context, symbol string) (*core.Profile, error) {
	id, ok := secID(symbol)
	if !ok {
		return nil, core.WrapError(core.ErrProfileFailed, fmt.Errorf("unsupported symbol: %s", symbol))
	}

	now := e.now()
	body, err := e.get(ctx, id, now.AddDate(0, 0, -7), now)
	if err != nil {
		return nil, core.WrapError(core.ErrProfileFailed, err)
	}

	name := gjson.GetBytes(body, "data.name").String()
	if name == "" {
		return nil, core.WrapError(core.ErrProfileFailed, fmt.Errorf("no name for %s", symbol))
	}
	return &core.Profile{
		Symbol:      symbol,
		DisplayName: name,
		Currency:    core.DetectMarket(symbol).Currency(),
		Exchange:    exchangeName(id),
	}, nil
}

func (e *Eastmoney) get(ctx context.Context, id string, start, end time.Time) ([]byte, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	q := url.Values{}
	q.Set("secid", id)
	q.Set("klt", "101") // daily
	q.Set("fqt", "1")
	q.Set("beg", start.Format("20060102"))
	q.Set("end", end.Format("20060102"))
	q.Set("fields1", "f1,f2,f3,f4,f5,f6")
	q.Set("fields2", "f51,f52,f53,f54,f55,f56")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// parseKline parses "date,open,close,high,low,volume"
func parseKline(symbol, line string) (core.OHLCV, bool) {
	f := strings.Split(line, ",")
	if len(f) < 6 {
		return core.OHLCV{}, false
	}

	t, err := time.Parse("2006-01-02", f[0])
	if err != nil {
		return core.OHLCV{}, false
	}
	open, err1 := strconv.ParseFloat(f[1], 64)
	closePrice, err2 := strconv.ParseFloat(f[2], 64)
	high, err3 := strconv.ParseFloat(f[3], 64)
	low, err4 := strconv.ParseFloat(f[4], 64)
	volume, err5 := strconv.ParseFloat(f[5], 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
		return core.OHLCV{}, false
	}

	return core.OHLCV{
		Symbol:   symbol,
		Interval: "1d",
		Open:     open,
		High:     high,
		Low:      low,
		Close:    closePrice,
		Volume:   int64(volume),
		Time:     t,
	}, true
}

func exchangeName(id string) string {
	switch {
	case strings.HasPrefix(id, "116."):
		return "HKEX"
	case strings.HasPrefix(id, "1."):
		return "SSE"
	default:
		return "SZSE"
	}
}
