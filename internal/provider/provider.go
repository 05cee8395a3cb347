// Package provider defines the relational store contract for vidtrend.
package provider

import (
	"context"
	"errors"
	"slices"

	"github.com/dwsmith1983/vidtrend/pkg/types"
)

// ErrExplodeUnsupported is returned by ReplaceHashtagStats when the engine
// cannot expand the JSON-encoded hashtag column natively. Callers fall back
// to HashtagSources plus WriteHashtagStats.
var ErrExplodeUnsupported = errors.New("native hashtag explode not supported")

// ErrNoBatches is returned by LatestBatchID on an empty store.
var ErrNoBatches = errors.New("no batches loaded")

// Store is the write side of the relational sink. Every write is scoped by
// batch_id; reloading a batch replaces its rows instead of appending.
type Store interface {
	// Migrate creates tables and indexes if they do not exist.
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error

	// InsertVideos upserts rows on (batch_id, video_id) in one transaction.
	// It either writes every row or returns an error.
	InsertVideos(ctx context.Context, rows []types.VideoRow) (int, error)

	// Aggregate recomputation. Each call deletes the batch's existing rows of
	// that aggregate and re-derives them from trending_videos atomically.
	ReplaceChannelStats(ctx context.Context, batchID string) (int, error)
	ReplaceCategoryStats(ctx context.Context, batchID string) (int, error)
	ReplaceHashtagStats(ctx context.Context, batchID string) (int, error)

	// Host-side hashtag fallback.
	HashtagSources(ctx context.Context, batchID string) ([]types.HashtagSource, error)
	WriteHashtagStats(ctx context.Context, batchID string, stats []types.HashtagStat) error

	Close() error
}

// Querier is the read side used by dashboards and reports.
type Querier interface {
	LatestBatchID(ctx context.Context) (string, error)
	ListBatches(ctx context.Context, limit int) ([]types.BatchInfo, error)
	CategorySummary(ctx context.Context, batchID string) ([]types.CategoryStat, error)
	TopVideos(ctx context.Context, batchID string, sort types.VideoSort, limit int) ([]types.TopVideo, error)
	TopChannels(ctx context.Context, batchID string, limit int) ([]types.ChannelStat, error)
	DurationStats(ctx context.Context, batchID string) ([]types.DurationStat, error)
	TopHashtags(ctx context.Context, batchID string, limit int) ([]types.HashtagCount, error)
	BatchVideos(ctx context.Context, batchID string) ([]types.VideoRow, error)
}

// Backend is a store that supports both sides.
type Backend interface {
	Store
	Querier
}

// DefaultLimit bounds listing queries when the caller passes a non-positive limit.
const DefaultLimit = 10

// Limit normalizes a caller-supplied limit.
func Limit(n int) int {
	if n <= 0 {
		return DefaultLimit
	}
	if n > 1000 {
		return 1000
	}
	return n
}

// SortColumn maps a ranking to its trending_videos column. Unknown values
// fall back to views_per_hour so the column name never comes from input.
func SortColumn(s types.VideoSort) string {
	if s.Valid() {
		return string(s)
	}
	return string(types.SortViewsPerHour)
}

// OrderDurationStats sorts stats by the length bucket order in order.
// Unknown buckets sort last.
func OrderDurationStats(stats []types.DurationStat, order []string) {
	rank := func(c string) int {
		if i := slices.Index(order, c); i >= 0 {
			return i
		}
		return len(order)
	}
	slices.SortStableFunc(stats, func(a, b types.DurationStat) int {
		return rank(a.LengthCategory) - rank(b.LengthCategory)
	})
}
