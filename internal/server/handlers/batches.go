package handlers

import (
	"net/http"

	"github.com/dwsmith1983/vidtrend/internal/provider"
	"github.com/dwsmith1983/vidtrend/pkg/types"
)

// ListBatches returns loaded batches, newest first.
func (h *Handlers) ListBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := h.svc.Batches(r.Context(), limitParam(r, 50))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to list batches", err)
		return
	}
	if batches == nil {
		batches = []types.BatchInfo{}
	}
	writeJSON(w, batches)
}

// Categories returns the category summary of a batch.
func (h *Handlers) Categories(w http.ResponseWriter, r *http.Request) {
	batchID, err := h.batch(r)
	if err != nil {
		h.writeQueryError(w, "failed to resolve batch", err)
		return
	}
	stats, err := h.svc.CategorySummary(r.Context(), batchID)
	if err != nil {
		h.writeQueryError(w, "failed to load categories", err)
		return
	}
	if stats == nil {
		stats = []types.CategoryStat{}
	}
	writeJSON(w, stats)
}

// TopVideos ranks a batch's videos. ?sort= selects views_per_hour (default),
// view_count or like_view_ratio.
func (h *Handlers) TopVideos(w http.ResponseWriter, r *http.Request) {
	sort := types.VideoSort(r.URL.Query().Get("sort"))
	if sort == "" {
		sort = types.SortViewsPerHour
	}
	if !sort.Valid() {
		h.writeError(w, http.StatusBadRequest, "unsupported sort", nil)
		return
	}
	batchID, err := h.batch(r)
	if err != nil {
		h.writeQueryError(w, "failed to resolve batch", err)
		return
	}
	videos, err := h.svc.TopVideos(r.Context(), batchID, sort, limitParam(r, provider.DefaultLimit))
	if err != nil {
		h.writeQueryError(w, "failed to load videos", err)
		return
	}
	if videos == nil {
		videos = []types.TopVideo{}
	}
	writeJSON(w, videos)
}

// TopChannels returns the channels with the highest average views.
func (h *Handlers) TopChannels(w http.ResponseWriter, r *http.Request) {
	batchID, err := h.batch(r)
	if err != nil {
		h.writeQueryError(w, "failed to resolve batch", err)
		return
	}
	channels, err := h.svc.TopChannels(r.Context(), batchID, limitParam(r, provider.DefaultLimit))
	if err != nil {
		h.writeQueryError(w, "failed to load channels", err)
		return
	}
	if channels == nil {
		channels = []types.ChannelStat{}
	}
	writeJSON(w, channels)
}

// Durations returns per length-bucket statistics.
func (h *Handlers) Durations(w http.ResponseWriter, r *http.Request) {
	batchID, err := h.batch(r)
	if err != nil {
		h.writeQueryError(w, "failed to resolve batch", err)
		return
	}
	stats, err := h.svc.DurationStats(r.Context(), batchID)
	if err != nil {
		h.writeQueryError(w, "failed to load durations", err)
		return
	}
	if stats == nil {
		stats = []types.DurationStat{}
	}
	writeJSON(w, stats)
}

// Hashtags returns hashtag totals across categories.
func (h *Handlers) Hashtags(w http.ResponseWriter, r *http.Request) {
	batchID, err := h.batch(r)
	if err != nil {
		h.writeQueryError(w, "failed to resolve batch", err)
		return
	}
	tags, err := h.svc.TopHashtags(r.Context(), batchID, limitParam(r, 20))
	if err != nil {
		h.writeQueryError(w, "failed to load hashtags", err)
		return
	}
	if tags == nil {
		tags = []types.HashtagCount{}
	}
	writeJSON(w, tags)
}

// Report builds the full analysis report of a batch without publishing it.
func (h *Handlers) Report(w http.ResponseWriter, r *http.Request) {
	batchID, err := h.batch(r)
	if err != nil {
		h.writeQueryError(w, "failed to resolve batch", err)
		return
	}
	report, err := h.svc.BuildReport(r.Context(), batchID, limitParam(r, 20), h.now())
	if err != nil {
		h.writeQueryError(w, "failed to build report", err)
		return
	}
	writeJSON(w, report)
}
