package pipeline

import (
	"time"

	"github.com/newthinker/chartgen/internal/core"
	"github.com/newthinker/chartgen/internal/symbol"
)

// Result is the outcome of one symbol.
type Result struct {
	Raw         symbol.Raw
	Canonical   string
	Status      core.Status
	Location    string // set when Status is saved
	DisplayName string
	Bars        int
	Err         error // set when Status is failed
	Duration    time.Duration
}

// Outcome converts r into its serializable form.
func (r Result) Outcome() core.Outcome {
	o := core.Outcome{
		Raw:         r.Raw.String(),
		Symbol:      r.Canonical,
		DisplayName: r.DisplayName,
		Status:      r.Status,
		Location:    r.Location,
		Bars:        r.Bars,
		Duration:    r.Duration,
	}
	if r.Err != nil {
		o.Error = r.Err.Error()
	}
	return o
}

// Summarize aggregates results into a run summary.
func Summarize(runID string, started, finished time.Time, results []Result) core.RunSummary {
	s := core.RunSummary{
		RunID:      runID,
		StartedAt:  started,
		FinishedAt: finished,
		Outcomes:   make([]core.Outcome, 0, len(results)),
	}
	for _, r := range results {
		s.Add(r.Outcome())
	}
	return s
}
