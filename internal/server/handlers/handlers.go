// Package handlers implements HTTP request handlers for the query API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dwsmith1983/vidtrend/internal/analysis"
	"github.com/dwsmith1983/vidtrend/internal/provider"
	"github.com/dwsmith1983/vidtrend/pkg/types"
)

// LatestBatch is the batch path parameter that resolves to the newest batch.
const LatestBatch = "latest"

// Pinger reports relational store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Runner triggers a pipeline run without waiting for one in progress.
type Runner interface {
	TryRun(ctx context.Context) (*types.RunSummary, error)
}

// Handlers contains all HTTP handler dependencies.
type Handlers struct {
	svc    *analysis.Service
	pinger Pinger
	runner Runner
	logger *slog.Logger
	now    func() time.Time
}

// New creates a new Handlers instance. runner may be nil.
func New(svc *analysis.Service, pinger Pinger, runner Runner) *Handlers {
	return &Handlers{
		svc:    svc,
		pinger: pinger,
		runner: runner,
		logger: slog.Default(),
		now:    time.Now,
	}
}

// SetLogger overrides the default logger.
func (h *Handlers) SetLogger(l *slog.Logger) {
	if l != nil {
		h.logger = l
	}
}

// writeError logs the internal error and returns a sanitized JSON error to the client.
func (h *Handlers) writeError(w http.ResponseWriter, status int, msg string, err error) {
	if err != nil {
		h.logger.Error(msg, "error", err, "status", status)
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// writeQueryError maps analysis errors to a status.
func (h *Handlers) writeQueryError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, analysis.ErrBatchNotFound), errors.Is(err, provider.ErrNoBatches):
		h.writeError(w, http.StatusNotFound, "batch not found", nil)
	default:
		h.writeError(w, http.StatusInternalServerError, msg, err)
	}
}

// batch resolves the {batchID} path parameter.
func (h *Handlers) batch(r *http.Request) (string, error) {
	id := chi.URLParam(r, "batchID")
	if id == LatestBatch {
		id = ""
	}
	return h.svc.ResolveBatch(r.Context(), id)
}

func limitParam(r *http.Request, def int) int {
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 && n <= 1000 {
			return n
		}
	}
	return def
}

func writeJSON(w http.ResponseWriter, v any) {
	_ = json.NewEncoder(w).Encode(v)
}
