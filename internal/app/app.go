// Package app wires configuration into a ready-to-run chart pipeline.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/chartgen/internal/alert"
	"github.com/newthinker/chartgen/internal/collector"
	"github.com/newthinker/chartgen/internal/collector/alpaca"
	"github.com/newthinker/chartgen/internal/collector/eastmoney"
	"github.com/newthinker/chartgen/internal/collector/yahoo"
	"github.com/newthinker/chartgen/internal/config"
	"github.com/newthinker/chartgen/internal/core"
	"github.com/newthinker/chartgen/internal/metrics"
	"github.com/newthinker/chartgen/internal/notifier"
	"github.com/newthinker/chartgen/internal/notifier/telegram"
	"github.com/newthinker/chartgen/internal/notifier/webhook"
	"github.com/newthinker/chartgen/internal/pipeline"
	"github.com/newthinker/chartgen/internal/render"
	"github.com/newthinker/chartgen/internal/storage/archive"
	"github.com/newthinker/chartgen/internal/storage/ledger"
	"github.com/newthinker/chartgen/internal/symbol"
)

// App is the main application orchestrator
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	providers *collector.Registry
	notifiers *notifier.Registry
	alerts    *alert.Evaluator
	metrics   *metrics.Registry
	ledger    *ledger.Store

	provider collector.Provider
	store    archive.Storage
	renderer render.Renderer
	style    render.Style
	clock    func() time.Time
}

// Option overrides a component built from config.
type Option func(*App)

// WithProvider registers p, replacing any provider of the same name.
func WithProvider(p collector.Provider) Option {
	return func(a *App) { a.providers.Register(p) }
}

// WithRenderer replaces the headless-browser renderer.
func WithRenderer(r render.Renderer) Option {
	return func(a *App) { a.renderer = r }
}

// WithClock sets the clock used for artifact dates.
func WithClock(clock func() time.Time) Option {
	return func(a *App) { a.clock = clock }
}

// New builds every component named by cfg. cfg must already be validated.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &App{
		cfg:       cfg,
		logger:    logger,
		providers: collector.NewRegistry(),
		notifiers: notifier.NewRegistry(),
		metrics:   metrics.NewRegistry(),
		clock:     time.Now,
	}

	a.registerProviders()
	for _, opt := range opts {
		opt(a)
	}

	provider, err := a.providers.MustGet(cfg.Provider.Name)
	if err != nil {
		return nil, err
	}
	a.provider = provider

	style, err := render.LookupStyle(cfg.Chart.Style)
	if err != nil {
		return nil, err
	}
	a.style = style

	a.store, err = archive.New(archive.Config{
		Type: cfg.Storage.Type,
		Path: cfg.Chart.OutputDir,
		S3: archive.S3Config{
			Bucket:    cfg.Storage.S3.Bucket,
			Endpoint:  cfg.Storage.S3.Endpoint,
			Region:    cfg.Storage.S3.Region,
			AccessKey: cfg.Storage.S3.AccessKey,
			SecretKey: cfg.Storage.S3.SecretKey,
			Prefix:    cfg.Storage.S3.Prefix,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating artifact storage: %w", err)
	}

	if a.renderer == nil {
		a.renderer = render.NewECharts(render.EChartsConfig{
			Width:      cfg.Chart.Width,
			Height:     cfg.Chart.Height,
			AssetsHost: cfg.Chart.AssetsHost,
		}, render.NewChrome(render.ChromeConfig{
			ExecPath: cfg.Chart.ChromePath,
			Timeout:  cfg.Chart.RenderTimeout,
		}))
	}

	if cfg.Ledger.Path != "" {
		a.ledger, err = ledger.Open(cfg.Ledger.Path)
		if err != nil {
			return nil, fmt.Errorf("opening run ledger: %w", err)
		}
	}

	if err := a.registerNotifiers(); err != nil {
		a.Close()
		return nil, err
	}

	if len(cfg.Alerts.Rules) > 0 {
		var sender alert.Sender
		if a.notifiers.Len() > 0 {
			sender = a.notifiers
		}
		a.alerts = alert.NewEvaluator(cfg.Alerts.Rules, sender, logger)
		a.alerts.SetCooldown(cfg.Alerts.Cooldown)
	}

	logger.Debug("app initialized",
		zap.String("provider", provider.Name()),
		zap.String("style", style.Name),
		zap.String("storage", cfg.Storage.Type),
		zap.Bool("ledger", a.ledger != nil),
		zap.Int("notifiers", a.notifiers.Len()),
		zap.Int("alert_rules", len(cfg.Alerts.Rules)),
	)
	return a, nil
}

func (a *App) registerProviders() {
	a.providers.Register(yahoo.NewWithConfig(yahoo.Config{
		Timeout:           a.cfg.Provider.Timeout,
		RequestsPerSecond: a.cfg.Provider.RequestsPerSecond,
		Transport:         metrics.Transport(a.metrics, nil),
	}))
	a.providers.Register(eastmoney.New(eastmoney.Config{
		Timeout:           a.cfg.Provider.Timeout,
		RequestsPerSecond: a.cfg.Provider.RequestsPerSecond,
		Transport:         metrics.Transport(a.metrics, nil),
	}))

	al := a.cfg.Provider.Alpaca
	if al.APIKey != "" && al.APISecret != "" {
		a.providers.Register(alpaca.New(alpaca.Config{
			APIKey:    al.APIKey,
			APISecret: al.APISecret,
			BaseURL:   al.BaseURL,
			Feed:      al.Feed,
		}))
	}
}

func (a *App) registerNotifiers() error {
	for name, nc := range a.cfg.Notifiers {
		if !nc.Enabled {
			continue
		}

		var n notifier.Notifier
		switch name {
		case "webhook":
			n = webhook.New(nc.URL, nc.Headers)
		case "telegram":
			n = telegram.New(nc.BotToken, nc.ChatID)
		default:
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown notifier %q", name))
		}
		if err := a.notifiers.Register(n); err != nil {
			return err
		}
	}
	return nil
}

// RunRequest describes one batch run.
type RunRequest struct {
	ID       string // empty generates a fresh run ID
	Symbols  []symbol.Raw
	Reporter pipeline.Reporter
}

// Run charts raws and exports metrics. Per-symbol failures are reported in
// the results, never as an error.
func (a *App) Run(ctx context.Context, raws []symbol.Raw, out io.Writer) []pipeline.Result {
	req := RunRequest{Symbols: raws}
	if out != nil {
		req.Reporter = pipeline.NewTextReporter(out)
	}
	return a.Execute(ctx, req)
}

// Execute runs req through a fresh pipeline.
func (a *App) Execute(ctx context.Context, req RunRequest) []pipeline.Result {
	opts := []pipeline.Option{
		pipeline.WithPeriod(core.Period(a.cfg.Chart.Period)),
		pipeline.WithStyle(a.style),
		pipeline.WithClock(a.clock),
		pipeline.WithLogger(a.logger),
		pipeline.WithMetrics(a.metrics),
	}
	if req.ID != "" {
		id := req.ID
		opts = append(opts, pipeline.WithRunID(func() string { return id }))
	}
	if req.Reporter != nil {
		opts = append(opts, pipeline.WithReporter(req.Reporter))
	}
	if a.ledger != nil {
		opts = append(opts, pipeline.WithLedger(a.ledger))
	}
	if a.notifiers.Len() > 0 || a.alerts != nil {
		opts = append(opts, pipeline.WithNotifier(runNotifier{notifiers: a.notifiers, alerts: a.alerts}))
	}

	results := pipeline.New(a.provider, a.renderer, a.store, opts...).Run(ctx, req.Symbols)
	a.exportMetrics()
	return results
}

// runNotifier fans a finished run out to the notifiers and the alert rules.
type runNotifier struct {
	notifiers *notifier.Registry
	alerts    *alert.Evaluator
}

func (n runNotifier) NotifyAll(ctx context.Context, summary core.RunSummary) map[string]error {
	errs := n.notifiers.NotifyAll(ctx, summary)
	if n.alerts != nil {
		_, alertErrs := n.alerts.Observe(ctx, summary)
		maps.Copy(errs, alertErrs)
	}
	return errs
}

func (a *App) exportMetrics() {
	if path := a.cfg.Metrics.Textfile; path != "" {
		if err := a.metrics.WriteTextfile(path); err != nil {
			a.logger.Error("writing metrics textfile failed", zap.String("path", path), zap.Error(err))
		}
	}
	if url := a.cfg.Metrics.Pushgateway; url != "" {
		if err := a.metrics.Push(url, a.cfg.Metrics.Job); err != nil {
			a.logger.Error("pushing metrics failed", zap.String("url", url), zap.Error(err))
		}
	}
}

// Ledger returns the run ledger, or nil when disabled.
func (a *App) Ledger() *ledger.Store {
	return a.ledger
}

// Artifacts returns the chart artifact storage.
func (a *App) Artifacts() archive.Storage {
	return a.store
}

// Metrics returns the metrics registry.
func (a *App) Metrics() *metrics.Registry {
	return a.metrics
}

// Providers returns the registered provider names.
func (a *App) Providers() []string {
	return a.providers.Names()
}

// Close releases the run ledger.
func (a *App) Close() error {
	var errs []error
	if a.ledger != nil {
		errs = append(errs, a.ledger.Close())
	}
	return errors.Join(errs...)
}
