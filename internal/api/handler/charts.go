package handler

import (
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/newthinker/chartgen/internal/api/response"
	"github.com/newthinker/chartgen/internal/core"
	"github.com/newthinker/chartgen/internal/storage/archive"
)

// ChartsHandler serves saved chart images.
type ChartsHandler struct {
	store archive.Storage
}

// NewChartsHandler creates a charts handler.
func NewChartsHandler(store archive.Storage) *ChartsHandler {
	return &ChartsHandler{store: store}
}

// Get writes the PNG named by the path, e.g. /api/v1/charts/0700.HK_20240315.png.
func (h *ChartsHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" || name != path.Base(name) || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".png") {
		response.Fail(w, core.WrapError(core.ErrInvalidRequest, fmt.Errorf("bad chart name %q", name)))
		return
	}

	ok, err := h.store.Exists(r.Context(), name)
	if err != nil {
		response.Fail(w, err)
		return
	}
	if !ok {
		response.Fail(w, core.WrapError(core.ErrNotFound, fmt.Errorf("chart %s", name)))
		return
	}

	data, err := h.store.Read(r.Context(), name)
	if err != nil {
		response.Fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// List returns the chart names under the storage root, optionally only
// those starting with ?prefix=.
func (h *ChartsHandler) List(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	names, err := h.store.List(r.Context(), "")
	if err != nil {
		response.Fail(w, err)
		return
	}
	charts := make([]string, 0, len(names))
	for _, n := range names {
		if strings.HasSuffix(n, ".png") && strings.HasPrefix(n, prefix) {
			charts = append(charts, n)
		}
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"charts": charts,
		"count":  len(charts),
	})
}
