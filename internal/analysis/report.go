package analysis

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/dwsmith1983/vidtrend/internal/blob"
	"github.com/dwsmith1983/vidtrend/pkg/types"
)

// DefaultAnalysisPrefix is where reports are published.
const DefaultAnalysisPrefix = "analysis/"

// BuildReport assembles the analysis report of batchID. limit bounds every
// ranked listing.
func (s *Service) BuildReport(ctx context.Context, batchID string, limit int, now time.Time) (*types.AnalysisReport, error) {
	videos, err := s.q.BatchVideos(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("reading batch %s: %w", batchID, err)
	}
	if len(videos) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
	}

	r := &types.AnalysisReport{BatchID: batchID, GeneratedAt: now.UTC()}
	if r.Categories, err = s.CategorySummary(ctx, batchID); err != nil {
		return nil, fmt.Errorf("category summary: %w", err)
	}
	if r.TopVideos, err = s.TopVideos(ctx, batchID, types.SortViewsPerHour, limit); err != nil {
		return nil, fmt.Errorf("top videos: %w", err)
	}
	if r.TopByLikeRatio, err = s.TopVideos(ctx, batchID, types.SortLikeViewRatio, limit); err != nil {
		return nil, fmt.Errorf("top videos by like ratio: %w", err)
	}
	if r.TopChannels, err = s.TopChannels(ctx, batchID, limit); err != nil {
		return nil, fmt.Errorf("top channels: %w", err)
	}
	if r.Durations, err = s.DurationStats(ctx, batchID); err != nil {
		return nil, fmt.Errorf("duration stats: %w", err)
	}
	if r.Hashtags, err = s.TopHashtags(ctx, batchID, limit); err != nil {
		return nil, fmt.Errorf("top hashtags: %w", err)
	}
	r.PublishDays, r.PublishHours = PublishSlots(videos)
	return r, nil
}

// PublishSlots groups videos by publish weekday and by publish hour (UTC).
// Videos without a publish time are skipped. Weekdays are ordered Monday
// first; hours ascend.
func PublishSlots(videos []types.VideoRow) (days, hours []types.PublishSlotStat) {
	type acc struct {
		n     int
		views float64
	}
	byDay := make(map[time.Weekday]*acc)
	byHour := make(map[int]*acc)
	add := func(a *acc, views int64) {
		a.n++
		a.views += float64(views)
	}
	for _, v := range videos {
		if v.PublishTime == nil || v.PublishTime.IsZero() {
			continue
		}
		t := v.PublishTime.UTC()
		if byDay[t.Weekday()] == nil {
			byDay[t.Weekday()] = &acc{}
		}
		if byHour[t.Hour()] == nil {
			byHour[t.Hour()] = &acc{}
		}
		add(byDay[t.Weekday()], v.ViewCount)
		add(byHour[t.Hour()], v.ViewCount)
	}

	dayKeys := make([]time.Weekday, 0, len(byDay))
	for d := range byDay {
		dayKeys = append(dayKeys, d)
	}
	// Sunday is 0; shift so Monday sorts first.
	slices.SortFunc(dayKeys, func(a, b time.Weekday) int { return cmp.Compare((a+6)%7, (b+6)%7) })
	for _, d := range dayKeys {
		a := byDay[d]
		days = append(days, types.PublishSlotStat{Slot: d.String(), VideoCount: a.n, AvgViews: a.views / float64(a.n)})
	}

	hourKeys := make([]int, 0, len(byHour))
	for h := range byHour {
		hourKeys = append(hourKeys, h)
	}
	slices.Sort(hourKeys)
	for _, h := range hourKeys {
		a := byHour[h]
		hours = append(hours, types.PublishSlotStat{Slot: strconv.Itoa(h), VideoCount: a.n, AvgViews: a.views / float64(a.n)})
	}
	return days, hours
}

// Publish uploads report as {prefix}analysis_results_{ts}.json and returns its URI.
func Publish(ctx context.Context, sink blob.Sink, logger *slog.Logger, prefix string, report *types.AnalysisReport, ts string) (string, error) {
	if prefix == "" {
		prefix = DefaultAnalysisPrefix
	}
	out := blob.WriteArtifact(ctx, sink, logger, prefix, blob.AnalysisArtifactName, ts, blob.JSONStrategy(report))
	if !out.OK {
		return "", fmt.Errorf("publishing analysis report: %w", out.Err)
	}
	return out.URI, nil
}
