package pipeline

import (
	"fmt"
	"io"

	"github.com/newthinker/chartgen/internal/core"
)

// Reporter receives each result as soon as its symbol is done.
type Reporter interface {
	Report(r Result)
}

// TextReporter prints one human-readable line per result.
type TextReporter struct {
	w io.Writer
}

// NewTextReporter writes to w.
func NewTextReporter(w io.Writer) *TextReporter {
	return &TextReporter{w: w}
}

func (t *TextReporter) Report(r Result) {
	switch r.Status {
	case core.StatusSaved:
		fmt.Fprintf(t.w, "Chart saved: %s\n", r.Location)
	case core.StatusNoData:
		fmt.Fprintf(t.w, "No data found for %s\n", r.Canonical)
	case core.StatusFailed:
		fmt.Fprintf(t.w, "Error processing %s (%s): %v\n", r.Raw, r.Canonical, r.Err)
	}
}
