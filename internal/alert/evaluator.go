package alert

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/chartgen/internal/core"
)

// Sender delivers alert text, e.g. a notifier registry.
type Sender interface {
	AlertAll(ctx context.Context, text string) map[string]error
}

// Evaluator checks rules after every run and sends the ones that fire.
// It keeps streaks and cooldowns across runs of the same process.
type Evaluator struct {
	rules    []Rule
	sender   Sender
	logger   *zap.Logger
	cooldown time.Duration

	// consecutive matching runs per rule
	streak map[string]int
	// last fired time for cooldown
	lastFired map[string]time.Time

	now func() time.Time

	mu sync.Mutex
}

// NewEvaluator creates a new alert evaluator. A nil sender only logs.
func NewEvaluator(rules []Rule, sender Sender, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{
		rules:     append([]Rule(nil), rules...),
		sender:    sender,
		logger:    logger,
		cooldown:  time.Hour,
		streak:    make(map[string]int),
		lastFired: make(map[string]time.Time),
		now:       time.Now,
	}
}

// SetCooldown sets the minimum time between two firings of one rule.
func (e *Evaluator) SetCooldown(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cooldown = d
}

// Observe evaluates every rule against one finished run. It returns the
// messages fired and the delivery errors keyed by "alert/<notifier>".
func (e *Evaluator) Observe(ctx context.Context, summary core.RunSummary) ([]string, map[string]error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	metrics := RunMetrics(summary)
	now := e.now()
	var fired []string

	for _, rule := range e.rules {
		if !rule.Evaluate(metrics) {
			delete(e.streak, rule.Name)
			continue
		}

		e.streak[rule.Name]++
		if e.streak[rule.Name] < max(rule.Runs, 1) {
			continue
		}

		if last, ok := e.lastFired[rule.Name]; ok && now.Sub(last) < e.cooldown {
			continue
		}

		fired = append(fired, rule.FormatMessage(metrics))
		e.lastFired[rule.Name] = now
		e.streak[rule.Name] = 0
	}

	errs := make(map[string]error)
	for _, msg := range fired {
		e.logger.Warn("alert fired", zap.String("run_id", summary.RunID), zap.String("alert", msg))
		if e.sender == nil {
			continue
		}
		for name, err := range e.sender.AlertAll(ctx, msg) {
			errs["alert/"+name] = err
		}
	}
	return fired, errs
}
