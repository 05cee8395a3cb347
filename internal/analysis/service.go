// Package analysis answers dashboard queries over loaded batches and builds
// the per-batch analysis report.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/dwsmith1983/vidtrend/internal/cache"
	"github.com/dwsmith1983/vidtrend/internal/provider"
	"github.com/dwsmith1983/vidtrend/pkg/types"
)

// ErrBatchNotFound is returned when a query names a batch with no rows.
var ErrBatchNotFound = errors.New("batch not found")

// Service is a cache-aside front for a Querier. Entries are keyed by batch id
// and the batch's cache generation; reloading a batch must call Invalidate so
// readers stop seeing the previous load.
type Service struct {
	q      provider.Querier
	cache  *cache.Cache
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithCache enables caching through c.
func WithCache(c *cache.Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a Service over q.
func NewService(q provider.Querier, opts ...Option) *Service {
	s := &Service{q: q, logger: slog.New(slog.DiscardHandler)}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ResolveBatch returns batchID, or the latest batch when batchID is empty.
// The latest batch is never cached.
func (s *Service) ResolveBatch(ctx context.Context, batchID string) (string, error) {
	if batchID != "" {
		return batchID, nil
	}
	id, err := s.q.LatestBatchID(ctx)
	if err != nil {
		return "", fmt.Errorf("resolving latest batch: %w", err)
	}
	return id, nil
}

// Invalidate drops every cached result of batchID.
func (s *Service) Invalidate(ctx context.Context, batchID string) error {
	if err := s.cache.Invalidate(ctx, batchID); err != nil {
		return fmt.Errorf("invalidating cache of batch %s: %w", batchID, err)
	}
	return nil
}

func (s *Service) key(ctx context.Context, kind, batchID string, parts ...string) string {
	return cache.Key(append([]string{kind, batchID, s.cache.Generation(ctx, batchID)}, parts...)...)
}

// Batches lists loaded batches, newest first.
func (s *Service) Batches(ctx context.Context, limit int) ([]types.BatchInfo, error) {
	return s.q.ListBatches(ctx, provider.Limit(limit))
}

// CategorySummary returns the category aggregate of batchID.
func (s *Service) CategorySummary(ctx context.Context, batchID string) ([]types.CategoryStat, error) {
	return cache.Fetch(ctx, s.cache, s.key(ctx, "categories", batchID), func(ctx context.Context) ([]types.CategoryStat, error) {
		return s.q.CategorySummary(ctx, batchID)
	})
}

// TopVideos ranks the batch's videos by sort.
func (s *Service) TopVideos(ctx context.Context, batchID string, sort types.VideoSort, limit int) ([]types.TopVideo, error) {
	if !sort.Valid() {
		return nil, fmt.Errorf("unsupported sort %q", sort)
	}
	limit = provider.Limit(limit)
	key := s.key(ctx, "top_videos", batchID, string(sort), strconv.Itoa(limit))
	return cache.Fetch(ctx, s.cache, key, func(ctx context.Context) ([]types.TopVideo, error) {
		return s.q.TopVideos(ctx, batchID, sort, limit)
	})
}

// TopChannels returns the channels with the highest average views.
func (s *Service) TopChannels(ctx context.Context, batchID string, limit int) ([]types.ChannelStat, error) {
	limit = provider.Limit(limit)
	return cache.Fetch(ctx, s.cache, s.key(ctx, "top_channels", batchID, strconv.Itoa(limit)), func(ctx context.Context) ([]types.ChannelStat, error) {
		return s.q.TopChannels(ctx, batchID, limit)
	})
}

// DurationStats returns per length-bucket statistics.
func (s *Service) DurationStats(ctx context.Context, batchID string) ([]types.DurationStat, error) {
	return cache.Fetch(ctx, s.cache, s.key(ctx, "durations", batchID), func(ctx context.Context) ([]types.DurationStat, error) {
		return s.q.DurationStats(ctx, batchID)
	})
}

// TopHashtags returns hashtag totals across categories.
func (s *Service) TopHashtags(ctx context.Context, batchID string, limit int) ([]types.HashtagCount, error) {
	limit = provider.Limit(limit)
	return cache.Fetch(ctx, s.cache, s.key(ctx, "hashtags", batchID, strconv.Itoa(limit)), func(ctx context.Context) ([]types.HashtagCount, error) {
		return s.q.TopHashtags(ctx, batchID, limit)
	})
}
