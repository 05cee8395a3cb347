// Package aggregate recomputes the per-batch channel, category and hashtag
// summary tables. Each kind is computed independently; a failure in one is
// reported without blocking the others.
package aggregate

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dwsmith1983/vidtrend/internal/provider"
	"github.com/dwsmith1983/vidtrend/internal/retry"
	"github.com/dwsmith1983/vidtrend/pkg/types"
)

// Calculator recomputes aggregates against a relational store.
type Calculator struct {
	store  provider.Store
	logger *slog.Logger
	runner *retry.Runner
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithLogger sets the calculator logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Calculator) { c.logger = l }
}

// WithRetry runs every store call under r.
func WithRetry(r *retry.Runner) Option {
	return func(c *Calculator) { c.runner = r }
}

// New creates a Calculator over store.
func New(store provider.Store, opts ...Option) *Calculator {
	c := &Calculator{store: store, logger: slog.New(slog.DiscardHandler)}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Compute recomputes every aggregate kind for batchID. The returned map holds
// only the kinds that failed; an empty map means all succeeded.
func (c *Calculator) Compute(ctx context.Context, batchID string) map[types.AggregateKind]error {
	failed := make(map[types.AggregateKind]error)
	for _, kind := range types.AggregateKinds {
		n, err := c.computeKind(ctx, kind, batchID)
		if err != nil {
			c.logger.Error("aggregate failed", "kind", kind, "batch_id", batchID, "error", err)
			failed[kind] = err
			continue
		}
		c.logger.Info("aggregate computed", "kind", kind, "batch_id", batchID, "rows", n)
	}
	return failed
}

func (c *Calculator) computeKind(ctx context.Context, kind types.AggregateKind, batchID string) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic computing %s aggregate: %v", kind, r)
		}
	}()
	switch kind {
	case types.AggregateChannel:
		return retry.Value(ctx, c.runner, "channel aggregate", func(ctx context.Context) (int, error) {
			return c.store.ReplaceChannelStats(ctx, batchID)
		})
	case types.AggregateCategory:
		return retry.Value(ctx, c.runner, "category aggregate", func(ctx context.Context) (int, error) {
			return c.store.ReplaceCategoryStats(ctx, batchID)
		})
	case types.AggregateHashtag:
		return c.hashtags(ctx, batchID)
	}
	return 0, fmt.Errorf("unknown aggregate kind %q", kind)
}

func (c *Calculator) hashtags(ctx context.Context, batchID string) (int, error) {
	n, err := retry.Value(ctx, c.runner, "hashtag aggregate", func(ctx context.Context) (int, error) {
		n, err := c.store.ReplaceHashtagStats(ctx, batchID)
		if errors.Is(err, provider.ErrExplodeUnsupported) {
			return 0, retry.Permanent(err)
		}
		return n, err
	})
	if err == nil {
		return n, nil
	}
	if errors.Is(err, provider.ErrExplodeUnsupported) {
		c.logger.Debug("native hashtag explode unavailable, aggregating on host", "batch_id", batchID)
	} else {
		c.logger.Warn("native hashtag aggregate failed, aggregating on host", "batch_id", batchID, "error", err)
	}

	hostN, hostErr := c.hostHashtags(ctx, batchID)
	if hostErr != nil {
		if errors.Is(err, provider.ErrExplodeUnsupported) {
			return 0, hostErr
		}
		return 0, errors.Join(err, hostErr)
	}
	return hostN, nil
}

func (c *Calculator) hostHashtags(ctx context.Context, batchID string) (int, error) {
	sources, err := retry.Value(ctx, c.runner, "hashtag sources", func(ctx context.Context) ([]types.HashtagSource, error) {
		return c.store.HashtagSources(ctx, batchID)
	})
	if err != nil {
		return 0, err
	}
	stats := ExplodeHashtags(batchID, sources, c.logger)
	err = c.runner.Run(ctx, "write hashtag aggregate", func(ctx context.Context) error {
		return c.store.WriteHashtagStats(ctx, batchID, stats)
	})
	if err != nil {
		return 0, err
	}
	return len(stats), nil
}

// ExplodeHashtags expands each source's JSON hashtag array into one count per
// (hashtag, category_id, category_name), keeping the latest extraction time of
// each group. Rows whose hashtag column is not a JSON array are skipped.
// Results are ordered by count descending, then hashtag, then category id.
func ExplodeHashtags(batchID string, sources []types.HashtagSource, logger *slog.Logger) []types.HashtagStat {
	type key struct {
		tag  string
		id   int
		name string
	}
	groups := make(map[key]*types.HashtagStat)
	skipped := 0
	for _, src := range sources {
		if src.AllHashtags == "" {
			continue
		}
		var tags []string
		if err := json.Unmarshal([]byte(src.AllHashtags), &tags); err != nil {
			skipped++
			continue
		}
		for _, tag := range tags {
			if tag == "" {
				continue
			}
			k := key{tag, src.CategoryID, src.CategoryName}
			st, ok := groups[k]
			if !ok {
				st = &types.HashtagStat{
					BatchID:      batchID,
					Hashtag:      tag,
					CategoryID:   src.CategoryID,
					CategoryName: src.CategoryName,
				}
				groups[k] = st
			}
			st.Count++
			st.ExtractedAt = latest(st.ExtractedAt, src.ExtractedAt)
		}
	}
	if skipped > 0 && logger != nil {
		logger.Warn("skipped rows with malformed hashtag arrays", "batch_id", batchID, "rows", skipped)
	}

	out := make([]types.HashtagStat, 0, len(groups))
	for _, st := range groups {
		out = append(out, *st)
	}
	slices.SortFunc(out, func(a, b types.HashtagStat) int {
		return cmp.Or(
			cmp.Compare(b.Count, a.Count),
			cmp.Compare(a.Hashtag, b.Hashtag),
			cmp.Compare(a.CategoryID, b.CategoryID),
			cmp.Compare(a.CategoryName, b.CategoryName),
		)
	})
	return out
}

func latest(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
