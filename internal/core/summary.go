package core

import "time"

// Status is the outcome of processing one symbol.
type Status string

const (
	StatusSaved  Status = "saved"
	StatusNoData Status = "no_data"
	StatusFailed Status = "failed"
)

// Outcome is the serializable record of one symbol in a run.
type Outcome struct {
	Raw         string        `json:"raw"`
	Symbol      string        `json:"symbol"`
	DisplayName string        `json:"display_name,omitempty"`
	Status      Status        `json:"status"`
	Location    string        `json:"location,omitempty"`
	Bars        int           `json:"bars"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration_ns"`
}

// RunSummary aggregates one batch run.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Total      int       `json:"total"`
	Saved      int       `json:"saved"`
	NoData     int       `json:"no_data"`
	Failed     int       `json:"failed"`
	Outcomes   []Outcome `json:"outcomes"`
}

// Add counts o into the summary.
func (s *RunSummary) Add(o Outcome) {
	s.Total++
	switch o.Status {
	case StatusSaved:
		s.Saved++
	case StatusNoData:
		s.NoData++
	case StatusFailed:
		s.Failed++
	}
	s.Outcomes = append(s.Outcomes, o)
}

// Duration is the wall time of the run.
func (s RunSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}
