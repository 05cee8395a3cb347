// Package testutil provides shared test utilities for vidtrend.
package testutil

import (
	"cmp"
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"github.com/dwsmith1983/vidtrend/internal/metric"
	"github.com/dwsmith1983/vidtrend/internal/provider"
	"github.com/dwsmith1983/vidtrend/pkg/types"
)

// Compile-time interface satisfaction check.
var _ provider.Backend = (*MockStore)(nil)

// MockStore is an in-memory relational store for testing. Like SQLite it
// reports ErrExplodeUnsupported for native hashtag aggregation unless
// NativeExplode is set.
type MockStore struct {
	mu       sync.Mutex
	videos   map[string]map[string]types.VideoRow // batch -> video id -> row
	channels map[string][]types.ChannelStat
	cats     map[string][]types.CategoryStat
	tags     map[string][]types.HashtagStat

	NativeExplode bool
	InsertErr     error
	AggregateErrs map[types.AggregateKind]error
	PingErr       error

	insertCalls int
}

// NewMockStore creates an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		videos:        make(map[string]map[string]types.VideoRow),
		channels:      make(map[string][]types.ChannelStat),
		cats:          make(map[string][]types.CategoryStat),
		tags:          make(map[string][]types.HashtagStat),
		AggregateErrs: make(map[types.AggregateKind]error),
	}
}

func (m *MockStore) Migrate(context.Context) error { return nil }

func (m *MockStore) Ping(context.Context) error { return m.PingErr }

func (m *MockStore) Close() error { return nil }

func (m *MockStore) InsertVideos(_ context.Context, rows []types.VideoRow) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertCalls++
	if m.InsertErr != nil {
		return 0, m.InsertErr
	}
	for _, r := range rows {
		if m.videos[r.BatchID] == nil {
			m.videos[r.BatchID] = make(map[string]types.VideoRow)
		}
		m.videos[r.BatchID][r.VideoID] = r
	}
	return len(rows), nil
}

// InsertCalls returns how many times InsertVideos was called.
func (m *MockStore) InsertCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertCalls
}

// Videos returns the rows of batchID ordered by category then video id.
func (m *MockStore) Videos(batchID string) []types.VideoRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedVideos(batchID)
}

func (m *MockStore) sortedVideos(batchID string) []types.VideoRow {
	out := make([]types.VideoRow, 0, len(m.videos[batchID]))
	for _, r := range m.videos[batchID] {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b types.VideoRow) int {
		return cmp.Or(cmp.Compare(a.CategoryID, b.CategoryID), cmp.Compare(a.VideoID, b.VideoID))
	})
	return out
}

// HashtagStats returns the stored hashtag rows of batchID.
func (m *MockStore) HashtagStats(batchID string) []types.HashtagStat {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.tags[batchID])
}

func (m *MockStore) ReplaceChannelStats(_ context.Context, batchID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.AggregateErrs[types.AggregateChannel]; err != nil {
		return 0, err
	}
	type key struct{ id, title string }
	groups := map[key][]types.VideoRow{}
	var order []key
	for _, r := range m.sortedVideos(batchID) {
		k := key{r.ChannelID, r.ChannelTitle}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r)
	}
	stats := make([]types.ChannelStat, 0, len(order))
	for _, k := range order {
		rows := groups[k]
		stats = append(stats, types.ChannelStat{
			BatchID:             batchID,
			ChannelID:           k.id,
			ChannelTitle:        k.title,
			VideoCount:          len(rows),
			AvgViews:            mean(rows, func(r types.VideoRow) float64 { return float64(r.ViewCount) }),
			AvgLikes:            mean(rows, func(r types.VideoRow) float64 { return float64(r.LikeCount) }),
			AvgComments:         mean(rows, func(r types.VideoRow) float64 { return float64(r.CommentCount) }),
			AvgLikeViewRatio:    mean(rows, func(r types.VideoRow) float64 { return r.LikeViewRatio }),
			AvgCommentViewRatio: mean(rows, func(r types.VideoRow) float64 { return r.CommentViewRatio }),
			ExtractedAt:         maxExtracted(rows),
		})
	}
	m.channels[batchID] = stats
	return len(stats), nil
}

func (m *MockStore) ReplaceCategoryStats(_ context.Context, batchID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.AggregateErrs[types.AggregateCategory]; err != nil {
		return 0, err
	}
	type key struct {
		id   int
		name string
	}
	groups := map[key][]types.VideoRow{}
	var order []key
	for _, r := range m.sortedVideos(batchID) {
		k := key{r.CategoryID, r.CategoryName}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r)
	}
	stats := make([]types.CategoryStat, 0, len(order))
	for _, k := range order {
		rows := groups[k]
		stats = append(stats, types.CategoryStat{
			BatchID:             batchID,
			CategoryID:          k.id,
			CategoryName:        k.name,
			VideoCount:          len(rows),
			AvgViews:            mean(rows, func(r types.VideoRow) float64 { return float64(r.ViewCount) }),
			AvgLikes:            mean(rows, func(r types.VideoRow) float64 { return float64(r.LikeCount) }),
			AvgComments:         mean(rows, func(r types.VideoRow) float64 { return float64(r.CommentCount) }),
			AvgDuration:         mean(rows, func(r types.VideoRow) float64 { return float64(r.DurationSeconds) }),
			AvgLikeViewRatio:    mean(rows, func(r types.VideoRow) float64 { return r.LikeViewRatio }),
			AvgCommentViewRatio: mean(rows, func(r types.VideoRow) float64 { return r.CommentViewRatio }),
			AvgViewsPerHour:     mean(rows, func(r types.VideoRow) float64 { return r.ViewsPerHour }),
			ExtractedAt:         maxExtracted(rows),
		})
	}
	m.cats[batchID] = stats
	return len(stats), nil
}

func (m *MockStore) ReplaceHashtagStats(_ context.Context, batchID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.AggregateErrs[types.AggregateHashtag]; err != nil {
		return 0, err
	}
	if !m.NativeExplode {
		return 0, provider.ErrExplodeUnsupported
	}
	type key struct {
		tag  string
		id   int
		name string
	}
	counts := map[key]*types.HashtagStat{}
	var order []key
	for _, r := range m.sortedVideos(batchID) {
		var tags []string
		if err := json.Unmarshal([]byte(r.AllHashtags), &tags); err != nil {
			continue
		}
		for _, tag := range tags {
			k := key{tag, r.CategoryID, r.CategoryName}
			st, ok := counts[k]
			if !ok {
				st = &types.HashtagStat{BatchID: batchID, Hashtag: tag, CategoryID: r.CategoryID, CategoryName: r.CategoryName}
				counts[k] = st
				order = append(order, k)
			}
			st.Count++
			if r.ExtractedAt != nil && r.ExtractedAt.After(st.ExtractedAt) {
				st.ExtractedAt = *r.ExtractedAt
			}
		}
	}
	stats := make([]types.HashtagStat, 0, len(order))
	for _, k := range order {
		stats = append(stats, *counts[k])
	}
	m.tags[batchID] = stats
	return len(stats), nil
}

func (m *MockStore) HashtagSources(_ context.Context, batchID string) ([]types.HashtagSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.HashtagSource
	for _, r := range m.sortedVideos(batchID) {
		src := types.HashtagSource{CategoryID: r.CategoryID, CategoryName: r.CategoryName, AllHashtags: r.AllHashtags}
		if r.ExtractedAt != nil {
			src.ExtractedAt = *r.ExtractedAt
		}
		out = append(out, src)
	}
	return out, nil
}

func (m *MockStore) WriteHashtagStats(_ context.Context, batchID string, stats []types.HashtagStat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.AggregateErrs[types.AggregateHashtag]; err != nil {
		return err
	}
	rows := make([]types.HashtagStat, len(stats))
	for i, st := range stats {
		st.BatchID = batchID
		rows[i] = st
	}
	m.tags[batchID] = rows
	return nil
}

func (m *MockStore) LatestBatchID(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	latest := ""
	for id := range m.videos {
		if id > latest {
			latest = id
		}
	}
	if latest == "" {
		return "", provider.ErrNoBatches
	}
	return latest, nil
}

func (m *MockStore) ListBatches(_ context.Context, limit int) ([]types.BatchInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []types.BatchInfo{}
	for id, rows := range m.videos {
		out = append(out, types.BatchInfo{BatchID: id, VideoCount: len(rows)})
	}
	slices.SortFunc(out, func(a, b types.BatchInfo) int { return cmp.Compare(b.BatchID, a.BatchID) })
	return truncate(out, provider.Limit(limit)), nil
}

func (m *MockStore) CategorySummary(_ context.Context, batchID string) ([]types.CategoryStat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := slices.Clone(m.cats[batchID])
	slices.SortStableFunc(out, func(a, b types.CategoryStat) int {
		return cmp.Or(cmp.Compare(b.VideoCount, a.VideoCount), cmp.Compare(a.CategoryID, b.CategoryID))
	})
	return out, nil
}

func (m *MockStore) TopVideos(_ context.Context, batchID string, sort types.VideoSort, limit int) ([]types.TopVideo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.sortedVideos(batchID)
	key := func(r types.VideoRow) float64 {
		switch provider.SortColumn(sort) {
		case string(types.SortViewCount):
			return float64(r.ViewCount)
		case string(types.SortLikeViewRatio):
			return r.LikeViewRatio
		}
		return r.ViewsPerHour
	}
	slices.SortStableFunc(rows, func(a, b types.VideoRow) int {
		return cmp.Or(cmp.Compare(key(b), key(a)), cmp.Compare(a.VideoID, b.VideoID))
	})
	out := make([]types.TopVideo, 0, len(rows))
	for _, r := range truncate(rows, provider.Limit(limit)) {
		out = append(out, types.TopVideo{
			VideoID:         r.VideoID,
			Title:           r.Title,
			ChannelTitle:    r.ChannelTitle,
			CategoryName:    r.CategoryName,
			ViewCount:       r.ViewCount,
			LikeCount:       r.LikeCount,
			CommentCount:    r.CommentCount,
			ViewsPerHour:    r.ViewsPerHour,
			LikeViewRatio:   r.LikeViewRatio,
			DurationSeconds: r.DurationSeconds,
		})
	}
	return out, nil
}

func (m *MockStore) TopChannels(_ context.Context, batchID string, limit int) ([]types.ChannelStat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := slices.Clone(m.channels[batchID])
	slices.SortStableFunc(out, func(a, b types.ChannelStat) int {
		return cmp.Or(cmp.Compare(b.AvgViews, a.AvgViews), cmp.Compare(a.ChannelID, b.ChannelID))
	})
	return truncate(out, provider.Limit(limit)), nil
}

func (m *MockStore) DurationStats(_ context.Context, batchID string) ([]types.DurationStat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	groups := map[string][]types.VideoRow{}
	var order []string
	for _, r := range m.sortedVideos(batchID) {
		if _, ok := groups[r.LengthCategory]; !ok {
			order = append(order, r.LengthCategory)
		}
		groups[r.LengthCategory] = append(groups[r.LengthCategory], r)
	}
	out := make([]types.DurationStat, 0, len(order))
	for _, c := range order {
		rows := groups[c]
		out = append(out, types.DurationStat{
			LengthCategory:   c,
			VideoCount:       len(rows),
			AvgViews:         mean(rows, func(r types.VideoRow) float64 { return float64(r.ViewCount) }),
			AvgLikeViewRatio: mean(rows, func(r types.VideoRow) float64 { return r.LikeViewRatio }),
			AvgViewsPerHour:  mean(rows, func(r types.VideoRow) float64 { return r.ViewsPerHour }),
		})
	}
	provider.OrderDurationStats(out, metric.LengthCategories)
	return out, nil
}

func (m *MockStore) TopHashtags(_ context.Context, batchID string, limit int) ([]types.HashtagCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	totals := map[string]int{}
	for _, st := range m.tags[batchID] {
		totals[st.Hashtag] += st.Count
	}
	out := make([]types.HashtagCount, 0, len(totals))
	for tag, n := range totals {
		out = append(out, types.HashtagCount{Hashtag: tag, Count: n})
	}
	slices.SortFunc(out, func(a, b types.HashtagCount) int {
		return cmp.Or(cmp.Compare(b.Count, a.Count), cmp.Compare(a.Hashtag, b.Hashtag))
	})
	return truncate(out, provider.Limit(limit)), nil
}

func (m *MockStore) BatchVideos(_ context.Context, batchID string) ([]types.VideoRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedVideos(batchID), nil
}

func mean(rows []types.VideoRow, f func(types.VideoRow) float64) float64 {
	if len(rows) == 0 {
		return 0
	}
	var sum float64
	for _, r := range rows {
		sum += f(r)
	}
	return sum / float64(len(rows))
}

func maxExtracted(rows []types.VideoRow) time.Time {
	var latest time.Time
	for _, r := range rows {
		if r.ExtractedAt != nil && r.ExtractedAt.After(latest) {
			latest = *r.ExtractedAt
		}
	}
	return latest
}

func truncate[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}
