package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dwsmith1983/vidtrend/internal/metric"
	"github.com/dwsmith1983/vidtrend/internal/provider"
	"github.com/dwsmith1983/vidtrend/pkg/types"
)

// LatestBatchID returns the most recent batch id.
func (s *Store) LatestBatchID(ctx context.Context) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx, `
		SELECT batch_id FROM trending_videos ORDER BY batch_id DESC LIMIT 1
	`).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", provider.ErrNoBatches
	}
	return id, err
}

// ListBatches returns recent batches, most recent first.
func (s *Store) ListBatches(ctx context.Context, limit int) ([]types.BatchInfo, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT batch_id, COUNT(*) FROM trending_videos
		GROUP BY batch_id
		ORDER BY batch_id DESC
		LIMIT $1
	`, provider.Limit(limit))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.BatchInfo, error) {
		var b types.BatchInfo
		err := row.Scan(&b.BatchID, &b.VideoCount)
		return b, err
	})
}

// CategorySummary returns the trends_summary rows of batchID.
func (s *Store) CategorySummary(ctx context.Context, batchID string) ([]types.CategoryStat, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT batch_id, category_id, category_name, video_count, avg_views, avg_likes,
			avg_comments, avg_duration, avg_like_view_ratio, avg_comment_view_ratio,
			avg_views_per_hour, extracted_at
		FROM trends_summary
		WHERE batch_id = $1
		ORDER BY video_count DESC, category_id
	`, batchID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.CategoryStat, error) {
		var c types.CategoryStat
		var extracted *time.Time
		err := row.Scan(&c.BatchID, &c.CategoryID, &c.CategoryName, &c.VideoCount, &c.AvgViews,
			&c.AvgLikes, &c.AvgComments, &c.AvgDuration, &c.AvgLikeViewRatio,
			&c.AvgCommentViewRatio, &c.AvgViewsPerHour, &extracted)
		c.ExtractedAt = derefTime(extracted)
		return c, err
	})
}

// TopVideos ranks the videos of batchID by sort.
func (s *Store) TopVideos(ctx context.Context, batchID string, sort types.VideoSort, limit int) ([]types.TopVideo, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT video_id, title, channel_title, category_name, view_count, like_count,
			comment_count, views_per_hour, like_view_ratio, duration_seconds
		FROM trending_videos
		WHERE batch_id = $1
		ORDER BY `+provider.SortColumn(sort)+` DESC, video_id
		LIMIT $2
	`, batchID, provider.Limit(limit))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.TopVideo, error) {
		var v types.TopVideo
		err := row.Scan(&v.VideoID, &v.Title, &v.ChannelTitle, &v.CategoryName, &v.ViewCount,
			&v.LikeCount, &v.CommentCount, &v.ViewsPerHour, &v.LikeViewRatio, &v.DurationSeconds)
		return v, err
	})
}

// TopChannels ranks the channel_stats rows of batchID by average views.
func (s *Store) TopChannels(ctx context.Context, batchID string, limit int) ([]types.ChannelStat, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT batch_id, channel_id, channel_title, video_count, avg_views, avg_likes,
			avg_comments, avg_like_view_ratio, avg_comment_view_ratio, extracted_at
		FROM channel_stats
		WHERE batch_id = $1
		ORDER BY avg_views DESC, channel_id
		LIMIT $2
	`, batchID, provider.Limit(limit))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.ChannelStat, error) {
		var c types.ChannelStat
		var extracted *time.Time
		err := row.Scan(&c.BatchID, &c.ChannelID, &c.ChannelTitle, &c.VideoCount, &c.AvgViews,
			&c.AvgLikes, &c.AvgComments, &c.AvgLikeViewRatio, &c.AvgCommentViewRatio, &extracted)
		c.ExtractedAt = derefTime(extracted)
		return c, err
	})
}

// DurationStats groups batchID by length bucket, in bucket order.
func (s *Store) DurationStats(ctx context.Context, batchID string) ([]types.DurationStat, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT length_category, COUNT(*), AVG(view_count)::float8,
			AVG(like_view_ratio), AVG(views_per_hour)
		FROM trending_videos
		WHERE batch_id = $1
		GROUP BY length_category
	`, batchID)
	if err != nil {
		return nil, err
	}
	stats, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.DurationStat, error) {
		var d types.DurationStat
		err := row.Scan(&d.LengthCategory, &d.VideoCount, &d.AvgViews, &d.AvgLikeViewRatio, &d.AvgViewsPerHour)
		return d, err
	})
	if err != nil {
		return nil, err
	}
	provider.OrderDurationStats(stats, metric.LengthCategories)
	return stats, nil
}

// TopHashtags totals hashtag counts of batchID across categories.
func (s *Store) TopHashtags(ctx context.Context, batchID string, limit int) ([]types.HashtagCount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT hashtag, SUM(count)::int
		FROM hashtags
		WHERE batch_id = $1
		GROUP BY hashtag
		ORDER BY SUM(count) DESC, hashtag
		LIMIT $2
	`, batchID, provider.Limit(limit))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.HashtagCount, error) {
		var h types.HashtagCount
		err := row.Scan(&h.Hashtag, &h.Count)
		return h, err
	})
}

// BatchVideos returns every canonical row of batchID.
func (s *Store) BatchVideos(ctx context.Context, batchID string) ([]types.VideoRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT batch_id, video_id, title, channel_id, channel_title, category_id, category_name,
			publish_time, extracted_at, view_count, like_count, comment_count, duration_seconds,
			length_category, hours_since_published, views_per_hour, like_view_ratio,
			comment_view_ratio, thumbnail_url, tags, title_hashtags, description_hashtags,
			all_hashtags, title_length, title_word_count, has_description, description_length
		FROM trending_videos
		WHERE batch_id = $1
		ORDER BY category_id, video_id
	`, batchID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.VideoRow, error) {
		var r types.VideoRow
		err := row.Scan(&r.BatchID, &r.VideoID, &r.Title, &r.ChannelID, &r.ChannelTitle,
			&r.CategoryID, &r.CategoryName, &r.PublishTime, &r.ExtractedAt, &r.ViewCount,
			&r.LikeCount, &r.CommentCount, &r.DurationSeconds, &r.LengthCategory,
			&r.HoursSincePublished, &r.ViewsPerHour, &r.LikeViewRatio, &r.CommentViewRatio,
			&r.ThumbnailURL, &r.Tags, &r.TitleHashtags, &r.DescriptionHashtags, &r.AllHashtags,
			&r.TitleLength, &r.TitleWordCount, &r.HasDescription, &r.DescriptionLength)
		return r, err
	})
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}
