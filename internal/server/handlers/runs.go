package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/dwsmith1983/vidtrend/internal/pipeline"
)

// TriggerRun executes one pipeline run synchronously and returns its summary.
// A run already in progress yields 409.
func (h *Handlers) TriggerRun(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		h.writeError(w, http.StatusNotFound, "runs are not enabled", nil)
		return
	}

	// The run outlives a disconnecting client.
	summary, err := h.runner.TryRun(context.WithoutCancel(r.Context()))
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		h.writeError(w, http.StatusConflict, "run already in progress", nil)
		return
	case err != nil:
		h.logger.Error("triggered run failed", "error", err)
		w.WriteHeader(http.StatusBadGateway)
		writeJSON(w, map[string]any{"error": "run failed", "summary": summary})
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, summary)
}
