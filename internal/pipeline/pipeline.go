// Package pipeline runs the per-symbol chart batch: fetch, overlay, render, save.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newthinker/chartgen/internal/collector"
	"github.com/newthinker/chartgen/internal/core"
	"github.com/newthinker/chartgen/internal/indicator"
	"github.com/newthinker/chartgen/internal/render"
	"github.com/newthinker/chartgen/internal/storage/archive"
	"github.com/newthinker/chartgen/internal/symbol"
)

// DefaultPeriod is the lookback used when none is configured.
const DefaultPeriod = core.Period("6mo")

// Recorder receives batch metrics.
type Recorder interface {
	RecordSymbol(status string, duration time.Duration, at time.Time)
	RecordBatch(duration time.Duration)
}

// Ledger persists finished runs.
type Ledger interface {
	Record(ctx context.Context, summary core.RunSummary) error
}

// Notifier fans a finished run out to external channels.
type Notifier interface {
	NotifyAll(ctx context.Context, summary core.RunSummary) map[string]error
}

// Pipeline generates one chart per symbol.
type Pipeline struct {
	provider collector.Provider
	renderer render.Renderer
	store    archive.Storage

	period   core.Period
	style    render.Style
	clock    func() time.Time
	newRunID func() string

	logger   *zap.Logger
	reporter Reporter
	metrics  Recorder
	ledger   Ledger
	notifier Notifier
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPeriod sets the lookback forwarded to the provider.
func WithPeriod(p core.Period) Option {
	return func(pl *Pipeline) { pl.period = p }
}

// WithStyle sets the chart style preset.
func WithStyle(s render.Style) Option {
	return func(pl *Pipeline) { pl.style = s }
}

// WithClock sets the source of the run date used in file names.
func WithClock(clock func() time.Time) Option {
	return func(pl *Pipeline) { pl.clock = clock }
}

// WithRunID sets the run id generator.
func WithRunID(fn func() string) Option {
	return func(pl *Pipeline) { pl.newRunID = fn }
}

func WithLogger(l *zap.Logger) Option {
	return func(pl *Pipeline) { pl.logger = l }
}

func WithReporter(r Reporter) Option {
	return func(pl *Pipeline) { pl.reporter = r }
}

func WithMetrics(m Recorder) Option {
	return func(pl *Pipeline) { pl.metrics = m }
}

func WithLedger(l Ledger) Option {
	return func(pl *Pipeline) { pl.ledger = l }
}

func WithNotifier(n Notifier) Option {
	return func(pl *Pipeline) { pl.notifier = n }
}

// New creates a Pipeline. Logger, reporter, metrics, ledger and notifier are optional.
func New(provider collector.Provider, renderer render.Renderer, store archive.Storage, opts ...Option) *Pipeline {
	p := &Pipeline{
		provider: provider,
		renderer: renderer,
		store:    store,
		period:   DefaultPeriod,
		style:    render.StyleDark(),
		clock:    time.Now,
		newRunID: uuid.NewString,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes raws sequentially in input order. A failing symbol never
// stops the batch; cancelling ctx stops before the next symbol.
func (p *Pipeline) Run(ctx context.Context, raws []symbol.Raw) []Result {
	runID := p.newRunID()
	started := p.clock()
	log := p.logger.With(zap.String("run_id", runID))

	log.Info("chart run starting",
		zap.Int("symbols", len(raws)),
		zap.String("period", string(p.period)),
		zap.String("style", p.style.Name),
		zap.String("provider", p.provider.Name()),
	)

	results := make([]Result, 0, len(raws))
	for i, raw := range raws {
		if ctx.Err() != nil {
			log.Warn("chart run cancelled",
				zap.Int("processed", i),
				zap.Int("skipped", len(raws)-i),
			)
			break
		}

		r := p.processSymbol(ctx, log, raw)
		results = append(results, r)

		if p.reporter != nil {
			p.reporter.Report(r)
		}
		if p.metrics != nil {
			p.metrics.RecordSymbol(string(r.Status), r.Duration, p.clock())
		}
	}

	p.finish(ctx, log, Summarize(runID, started, p.clock(), results))
	return results
}

func (p *Pipeline) finish(ctx context.Context, log *zap.Logger, summary core.RunSummary) {
	log.Info("chart run finished",
		zap.Int("saved", summary.Saved),
		zap.Int("no_data", summary.NoData),
		zap.Int("failed", summary.Failed),
		zap.Duration("duration", summary.Duration()),
	)

	if p.metrics != nil {
		p.metrics.RecordBatch(summary.Duration())
	}

	// Bookkeeping must not be cut short by the cancellation that ended the run.
	ctx = context.WithoutCancel(ctx)

	if p.ledger != nil {
		if err := p.ledger.Record(ctx, summary); err != nil {
			log.Error("recording run failed", zap.Error(err))
		}
	}
	if p.notifier != nil {
		for name, err := range p.notifier.NotifyAll(ctx, summary) {
			log.Error("notification failed", zap.String("notifier", name), zap.Error(err))
		}
	}
}

// processSymbol turns every failure, including panics, into a failed Result.
func (p *Pipeline) processSymbol(ctx context.Context, log *zap.Logger, raw symbol.Raw) (res Result) {
	start := time.Now()
	res = Result{Raw: raw, Canonical: symbol.Normalize(raw)}
	log = log.With(zap.String("raw", raw.String()), zap.String("symbol", res.Canonical))

	defer func() {
		if v := recover(); v != nil {
			res.Status = core.StatusFailed
			res.Err = fmt.Errorf("panic: %v", v)
			res.Location = ""
		}
		res.Duration = time.Since(start)
		if res.Status == core.StatusFailed {
			log.Error("processing symbol failed", zap.Error(res.Err))
		}
	}()

	history, err := p.provider.FetchHistory(ctx, res.Canonical, p.period)
	if err != nil {
		res.Status, res.Err = core.StatusFailed, err
		return res
	}
	res.Bars = len(history)
	if len(history) == 0 {
		res.Status = core.StatusNoData
		log.Info("no data")
		return res
	}

	overlays := indicator.ComputeOverlays(history)
	res.DisplayName = p.displayName(ctx, log, res.Canonical)

	img, err := p.renderer.Render(ctx, render.Input{
		Symbol:   res.Canonical,
		Title:    render.Title(res.DisplayName, res.Canonical),
		YLabel:   render.YLabel(res.Canonical),
		History:  history,
		Overlays: overlays,
		Style:    p.style,
	})
	if err != nil {
		res.Status, res.Err = core.StatusFailed, err
		return res
	}

	name := ArtifactName(res.Canonical, p.clock())
	if err := p.store.Write(ctx, name, img); err != nil {
		res.Status = core.StatusFailed
		res.Err = core.WrapError(core.ErrArtifactWrite, fmt.Errorf("%s: %w", name, err))
		return res
	}

	res.Status = core.StatusSaved
	res.Location = p.store.Location(name)
	log.Info("chart saved", zap.String("path", res.Location), zap.Int("bars", res.Bars))
	return res
}

// displayName never fails; the canonical symbol stands in for a missing name.
func (p *Pipeline) displayName(ctx context.Context, log *zap.Logger, canonical string) string {
	profile, err := p.provider.FetchProfile(ctx, canonical)
	if err != nil {
		log.Debug("profile lookup failed", zap.Error(err))
		return canonical
	}
	if profile == nil || profile.DisplayName == "" {
		return canonical
	}
	return profile.DisplayName
}
