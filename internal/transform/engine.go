// Package transform turns per-category raw record batches into canonical
// records stamped with a single batch id. Categories are processed
// independently; a failure in one is logged and drops only that category.
package transform

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/dwsmith1983/vidtrend/internal/metric"
	"github.com/dwsmith1983/vidtrend/internal/normalize"
	"github.com/dwsmith1983/vidtrend/pkg/types"
)

// DefaultHoursSincePublished is used when either timestamp of a record is
// missing or unparseable.
const DefaultHoursSincePublished = 24.0

// DefaultConcurrency bounds parallel category transforms.
const DefaultConcurrency = 4

// Engine runs the transform stage.
type Engine struct {
	logger      *slog.Logger
	normalizer  *normalize.Normalizer
	concurrency int
	now         func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithConcurrency bounds how many categories are transformed at once.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithClock overrides the clock used when no extraction timestamp is available.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates a transform Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger:      slog.New(slog.DiscardHandler),
		concurrency: DefaultConcurrency,
		now:         time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	e.normalizer = normalize.New(e.logger)
	return e
}

// Transform normalizes and enriches every category in raw. The returned
// result is never nil; categories that failed or were empty are listed in
// Failed and absent from Batches.
func (e *Engine) Transform(ctx context.Context, raw map[int][]types.RawRecord) *types.TransformResult {
	ids := make([]int, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	res := &types.TransformResult{
		BatchID: e.batchID(raw, ids),
		Batches: make(map[int][]types.CanonicalVideo, len(raw)),
		Failed:  make(map[int]string),
	}
	e.logger.Info("transform started", "batch_id", res.BatchID, "categories", len(ids))

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(e.concurrency)
	for _, id := range ids {
		records := raw[id]
		g.Go(func() error {
			videos, err := e.transformCategory(ctx, id, records, res.BatchID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				e.logger.Error("category transform failed, dropping", "category_id", id, "error", err)
				res.Failed[id] = err.Error()
			case len(videos) == 0:
				e.logger.Warn("category produced no records, dropping", "category_id", id)
				res.Failed[id] = "no records"
			default:
				res.Batches[id] = videos
			}
			return nil
		})
	}
	_ = g.Wait()

	e.logger.Info("transform finished",
		"batch_id", res.BatchID,
		"categories", len(res.Batches),
		"failed", len(res.Failed),
		"rows", res.Rows())
	return res
}

func (e *Engine) transformCategory(ctx context.Context, id int, records []types.RawRecord, batchID string) (videos []types.CanonicalVideo, err error) {
	defer func() {
		if r := recover(); r != nil {
			videos = nil
			err = fmt.Errorf("panic transforming category %d: %v", id, r)
		}
	}()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	videos, err = e.normalizer.NormalizeBatch(records, batchID, id)
	if err != nil {
		return nil, fmt.Errorf("normalize category %d: %w", id, err)
	}
	for i := range videos {
		e.Derive(&videos[i])
	}
	return videos, nil
}

// Derive fills the derived metric and text-feature fields of v in place.
func (e *Engine) Derive(v *types.CanonicalVideo) {
	v.DurationSeconds = metric.ParseDuration(v.Duration, e.logger)
	v.LengthCategory = metric.BucketLength(v.DurationSeconds)

	if v.PublishTime.IsZero() || v.ExtractedAt.IsZero() {
		e.logger.Warn("missing timestamps, using default age",
			"video_id", v.VideoID, "hours", DefaultHoursSincePublished)
		v.HoursSincePublished = DefaultHoursSincePublished
	} else {
		v.HoursSincePublished = metric.HoursBetween(v.PublishTime, v.ExtractedAt)
	}
	v.ViewsPerHour = metric.ViewsPerHour(v.ViewCount, v.HoursSincePublished)
	v.LikeViewRatio = metric.EngagementRatio(v.LikeCount, v.ViewCount)
	v.CommentViewRatio = metric.EngagementRatio(v.CommentCount, v.ViewCount)

	v.TitleHashtags = metric.ExtractHashtags(v.Title)
	v.DescriptionHashtags = metric.ExtractHashtags(v.Description)
	v.AllHashtags = make([]string, 0, len(v.TitleHashtags)+len(v.DescriptionHashtags))
	v.AllHashtags = append(v.AllHashtags, v.TitleHashtags...)
	v.AllHashtags = append(v.AllHashtags, v.DescriptionHashtags...)

	v.TitleLength = utf8.RuneCountInString(v.Title)
	v.TitleWordCount = len(strings.Fields(v.Title))
	v.DescriptionLength = utf8.RuneCountInString(v.Description)
	v.HasDescription = v.DescriptionLength > 0
}

// batchID derives the run's batch id from the extraction timestamp of the
// first record of the lowest category id, falling back to the clock.
func (e *Engine) batchID(raw map[int][]types.RawRecord, ids []int) string {
	for _, id := range ids {
		if len(raw[id]) == 0 {
			continue
		}
		if t, ok := normalize.ParseTime(raw[id][0][types.FieldExtractedAt]); ok {
			return types.FormatBatchID(t)
		}
		break
	}
	return types.FormatBatchID(e.now())
}
