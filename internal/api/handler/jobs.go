// Package handler implements the JSON endpoints of the serve command.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/chartgen/internal/api/job"
	"github.com/newthinker/chartgen/internal/api/response"
	"github.com/newthinker/chartgen/internal/app"
	"github.com/newthinker/chartgen/internal/core"
	"github.com/newthinker/chartgen/internal/pipeline"
	"github.com/newthinker/chartgen/internal/symbol"
)

// Runner executes one batch run.
type Runner interface {
	Execute(ctx context.Context, req app.RunRequest) []pipeline.Result
}

// JobRequest is the optional body of POST /api/v1/jobs. Symbols may mix
// numbers and strings; an empty list charts the configured symbols.
type JobRequest struct {
	Symbols []any `json:"symbols"`
}

// JobsHandler starts chart runs in the background, one at a time.
type JobsHandler struct {
	ctx      context.Context
	jobs     *job.Store
	runner   Runner
	defaults []symbol.Raw
	logger   *zap.Logger

	mu     sync.Mutex
	active string
	wg     sync.WaitGroup
}

// NewJobsHandler creates a jobs handler. Runs stop when ctx is canceled.
func NewJobsHandler(ctx context.Context, jobs *job.Store, runner Runner, defaults []symbol.Raw, logger *zap.Logger) *JobsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobsHandler{
		ctx:      ctx,
		jobs:     jobs,
		runner:   runner,
		defaults: defaults,
		logger:   logger,
	}
}

// Create starts a run and answers 202 with the job id.
func (h *JobsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(w, http.StatusBadRequest, core.WrapError(core.ErrInvalidRequest, err))
		return
	}

	raws := h.defaults
	if len(req.Symbols) > 0 {
		raws = symbol.ParseList(req.Symbols)
	}
	if len(raws) == 0 {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrInvalidRequest, fmt.Errorf("no symbols to chart")))
		return
	}

	h.mu.Lock()
	if h.active != "" {
		active := h.active
		h.mu.Unlock()
		response.Error(w, http.StatusConflict, core.WrapError(core.ErrRunInProgress, fmt.Errorf("job %s", active)))
		return
	}
	j := h.jobs.Create(len(raws))
	h.active = j.ID
	h.wg.Add(1)
	h.mu.Unlock()

	go h.run(j.ID, raws)

	response.JSON(w, http.StatusAccepted, map[string]any{
		"job_id": j.ID,
		"status": j.Status,
		"total":  j.Total,
	})
}

func (h *JobsHandler) run(id string, raws []symbol.Raw) {
	defer h.wg.Done()
	defer func() {
		h.mu.Lock()
		h.active = ""
		h.mu.Unlock()
	}()

	h.jobs.Update(id, func(j *job.Job) { j.Status = job.StatusRunning })

	started := time.Now()
	results := h.runner.Execute(h.ctx, app.RunRequest{
		ID:       id,
		Symbols:  raws,
		Reporter: progress{jobs: h.jobs, id: id},
	})
	summary := pipeline.Summarize(id, started, time.Now(), results)

	err := h.ctx.Err()
	h.jobs.Update(id, func(j *job.Job) {
		j.Summary = &summary
		if err != nil {
			j.Fail(core.WrapError(core.ErrRunCanceled, err))
			return
		}
		j.Status = job.StatusComplete
		j.Progress = 100
	})

	h.logger.Info("job finished",
		zap.String("job_id", id),
		zap.Int("saved", summary.Saved),
		zap.Int("no_data", summary.NoData),
		zap.Int("failed", summary.Failed),
		zap.Bool("canceled", err != nil),
	)
}

// Get returns one job.
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobs.Get(r.PathValue("id"))
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, j)
}

// List returns the retained jobs, newest first.
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	jobs := h.jobs.List()
	response.JSON(w, http.StatusOK, map[string]any{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// Wait blocks until the running job, if any, has returned.
func (h *JobsHandler) Wait() {
	h.wg.Wait()
}

// progress advances the job as each symbol finishes.
type progress struct {
	jobs *job.Store
	id   string
}

func (p progress) Report(pipeline.Result) {
	p.jobs.Update(p.id, func(j *job.Job) { j.Advance() })
}
