package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dwsmith1983/vidtrend/internal/metric"
	"github.com/dwsmith1983/vidtrend/internal/provider"
	"github.com/dwsmith1983/vidtrend/pkg/types"
)

// LatestBatchID returns the most recent batch id.
func (s *Store) LatestBatchID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT batch_id FROM trending_videos ORDER BY batch_id DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", provider.ErrNoBatches
	}
	return id, err
}

// ListBatches returns recent batches, most recent first.
func (s *Store) ListBatches(ctx context.Context, limit int) ([]types.BatchInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT batch_id, COUNT(*) FROM trending_videos
		GROUP BY batch_id
		ORDER BY batch_id DESC
		LIMIT ?
	`, provider.Limit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []types.BatchInfo{}
	for rows.Next() {
		var b types.BatchInfo
		if err := rows.Scan(&b.BatchID, &b.VideoCount); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// CategorySummary returns the trends_summary rows of batchID.
func (s *Store) CategorySummary(ctx context.Context, batchID string) ([]types.CategoryStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT batch_id, category_id, category_name, video_count, avg_views, avg_likes,
			avg_comments, avg_duration, avg_like_view_ratio, avg_comment_view_ratio,
			avg_views_per_hour, extracted_at
		FROM trends_summary
		WHERE batch_id = ?
		ORDER BY video_count DESC, category_id
	`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []types.CategoryStat{}
	for rows.Next() {
		var c types.CategoryStat
		var extracted sql.NullString
		if err := rows.Scan(&c.BatchID, &c.CategoryID, &c.CategoryName, &c.VideoCount, &c.AvgViews,
			&c.AvgLikes, &c.AvgComments, &c.AvgDuration, &c.AvgLikeViewRatio,
			&c.AvgCommentViewRatio, &c.AvgViewsPerHour, &extracted); err != nil {
			return nil, err
		}
		c.ExtractedAt = valueTime(extracted)
		out = append(out, c)
	}
	return out, rows.Err()
}

// TopVideos ranks the videos of batchID by sort.
func (s *Store) TopVideos(ctx context.Context, batchID string, sort types.VideoSort, limit int) ([]types.TopVideo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT video_id, title, channel_title, category_name, view_count, like_count,
			comment_count, views_per_hour, like_view_ratio, duration_seconds
		FROM trending_videos
		WHERE batch_id = ?
		ORDER BY `+provider.SortColumn(sort)+` DESC, video_id
		LIMIT ?
	`, batchID, provider.Limit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []types.TopVideo{}
	for rows.Next() {
		var v types.TopVideo
		if err := rows.Scan(&v.VideoID, &v.Title, &v.ChannelTitle, &v.CategoryName, &v.ViewCount,
			&v.LikeCount, &v.CommentCount, &v.ViewsPerHour, &v.LikeViewRatio, &v.DurationSeconds); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// TopChannels ranks the channel_stats rows of batchID by average views.
func (s *Store) TopChannels(ctx context.Context, batchID string, limit int) ([]types.ChannelStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT batch_id, channel_id, channel_title, video_count, avg_views, avg_likes,
			avg_comments, avg_like_view_ratio, avg_comment_view_ratio, extracted_at
		FROM channel_stats
		WHERE batch_id = ?
		ORDER BY avg_views DESC, channel_id
		LIMIT ?
	`, batchID, provider.Limit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []types.ChannelStat{}
	for rows.Next() {
		var c types.ChannelStat
		var extracted sql.NullString
		if err := rows.Scan(&c.BatchID, &c.ChannelID, &c.ChannelTitle, &c.VideoCount, &c.AvgViews,
			&c.AvgLikes, &c.AvgComments, &c.AvgLikeViewRatio, &c.AvgCommentViewRatio, &extracted); err != nil {
			return nil, err
		}
		c.ExtractedAt = valueTime(extracted)
		out = append(out, c)
	}
	return out, rows.Err()
}

// DurationStats groups batchID by length bucket, in bucket order.
func (s *Store) DurationStats(ctx context.Context, batchID string) ([]types.DurationStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT length_category, COUNT(*), AVG(view_count), AVG(like_view_ratio), AVG(views_per_hour)
		FROM trending_videos
		WHERE batch_id = ?
		GROUP BY length_category
	`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []types.DurationStat{}
	for rows.Next() {
		var d types.DurationStat
		if err := rows.Scan(&d.LengthCategory, &d.VideoCount, &d.AvgViews, &d.AvgLikeViewRatio, &d.AvgViewsPerHour); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	provider.OrderDurationStats(out, metric.LengthCategories)
	return out, nil
}

// TopHashtags totals hashtag counts of batchID across categories.
func (s *Store) TopHashtags(ctx context.Context, batchID string, limit int) ([]types.HashtagCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT hashtag, SUM(count) AS total
		FROM hashtags
		WHERE batch_id = ?
		GROUP BY hashtag
		ORDER BY total DESC, hashtag
		LIMIT ?
	`, batchID, provider.Limit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []types.HashtagCount{}
	for rows.Next() {
		var h types.HashtagCount
		if err := rows.Scan(&h.Hashtag, &h.Count); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// BatchVideos returns every canonical row of batchID.
func (s *Store) BatchVideos(ctx context.Context, batchID string) ([]types.VideoRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT batch_id, video_id, title, channel_id, channel_title, category_id, category_name,
			publish_time, extracted_at, view_count, like_count, comment_count, duration_seconds,
			length_category, hours_since_published, views_per_hour, like_view_ratio,
			comment_view_ratio, thumbnail_url, tags, title_hashtags, description_hashtags,
			all_hashtags, title_length, title_word_count, has_description, description_length
		FROM trending_videos
		WHERE batch_id = ?
		ORDER BY category_id, video_id
	`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []types.VideoRow{}
	for rows.Next() {
		var r types.VideoRow
		var published, extracted sql.NullString
		if err := rows.Scan(&r.BatchID, &r.VideoID, &r.Title, &r.ChannelID, &r.ChannelTitle,
			&r.CategoryID, &r.CategoryName, &published, &extracted, &r.ViewCount,
			&r.LikeCount, &r.CommentCount, &r.DurationSeconds, &r.LengthCategory,
			&r.HoursSincePublished, &r.ViewsPerHour, &r.LikeViewRatio, &r.CommentViewRatio,
			&r.ThumbnailURL, &r.Tags, &r.TitleHashtags, &r.DescriptionHashtags, &r.AllHashtags,
			&r.TitleLength, &r.TitleWordCount, &r.HasDescription, &r.DescriptionLength); err != nil {
			return nil, err
		}
		r.PublishTime = parseTime(published)
		r.ExtractedAt = parseTime(extracted)
		out = append(out, r)
	}
	return out, rows.Err()
}
