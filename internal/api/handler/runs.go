package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/newthinker/chartgen/internal/api/response"
	"github.com/newthinker/chartgen/internal/core"
	"github.com/newthinker/chartgen/internal/symbol"
)

const (
	defaultLimit = 20
	maxLimit     = 500
)

// RunHistory reads past runs from the ledger.
type RunHistory interface {
	Recent(ctx context.Context, limit int) ([]core.RunSummary, error)
	SymbolHistory(ctx context.Context, symbol string, limit int) ([]core.Outcome, error)
}

// RunsHandler serves the run ledger. A nil history answers 503.
type RunsHandler struct {
	history RunHistory
}

// NewRunsHandler creates a runs handler.
func NewRunsHandler(history RunHistory) *RunsHandler {
	return &RunsHandler{history: history}
}

// List returns the most recent runs.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		response.Fail(w, ledgerDisabled())
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		response.Fail(w, err)
		return
	}

	runs, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

// SymbolHistory returns past outcomes for one symbol. The path value is
// normalized first, so /symbols/700/history finds 0700.HK.
func (h *RunsHandler) SymbolHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		response.Fail(w, ledgerDisabled())
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		response.Fail(w, err)
		return
	}

	canonical := symbol.Normalize(symbol.Raw(r.PathValue("symbol")))
	outcomes, err := h.history.SymbolHistory(r.Context(), canonical, limit)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"symbol":   canonical,
		"outcomes": outcomes,
		"count":    len(outcomes),
	})
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, core.WrapError(core.ErrInvalidRequest, fmt.Errorf("limit must be a positive integer, got %q", raw))
	}
	return min(n, maxLimit), nil
}

func ledgerDisabled() error {
	return core.WrapError(core.ErrConfigMissing, fmt.Errorf("run ledger is disabled"))
}
