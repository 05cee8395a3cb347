package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dwsmith1983/vidtrend/pkg/types"
)

// InsertVideos upserts canonical rows keyed by (batch_id, video_id).
func (s *Store) InsertVideos(ctx context.Context, rows []types.VideoRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, r := range rows {
		_, err := tx.Exec(ctx, `
			INSERT INTO trending_videos (batch_id, video_id, title, channel_id, channel_title,
				category_id, category_name, publish_time, extracted_at, view_count, like_count,
				comment_count, duration_seconds, length_category, hours_since_published,
				views_per_hour, like_view_ratio, comment_view_ratio, thumbnail_url, tags,
				title_hashtags, description_hashtags, all_hashtags, title_length,
				title_word_count, has_description, description_length)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
				$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27)
			ON CONFLICT (batch_id, video_id) DO UPDATE SET
				title                 = EXCLUDED.title,
				channel_id            = EXCLUDED.channel_id,
				channel_title         = EXCLUDED.channel_title,
				category_id           = EXCLUDED.category_id,
				category_name         = EXCLUDED.category_name,
				publish_time          = EXCLUDED.publish_time,
				extracted_at          = EXCLUDED.extracted_at,
				view_count            = EXCLUDED.view_count,
				like_count            = EXCLUDED.like_count,
				comment_count         = EXCLUDED.comment_count,
				duration_seconds      = EXCLUDED.duration_seconds,
				length_category       = EXCLUDED.length_category,
				hours_since_published = EXCLUDED.hours_since_published,
				views_per_hour        = EXCLUDED.views_per_hour,
				like_view_ratio       = EXCLUDED.like_view_ratio,
				comment_view_ratio    = EXCLUDED.comment_view_ratio,
				thumbnail_url         = EXCLUDED.thumbnail_url,
				tags                  = EXCLUDED.tags,
				title_hashtags        = EXCLUDED.title_hashtags,
				description_hashtags  = EXCLUDED.description_hashtags,
				all_hashtags          = EXCLUDED.all_hashtags,
				title_length          = EXCLUDED.title_length,
				title_word_count      = EXCLUDED.title_word_count,
				has_description       = EXCLUDED.has_description,
				description_length    = EXCLUDED.description_length,
				loaded_at             = NOW()
		`, r.BatchID, r.VideoID, r.Title, r.ChannelID, r.ChannelTitle,
			r.CategoryID, r.CategoryName, r.PublishTime, r.ExtractedAt, r.ViewCount, r.LikeCount,
			r.CommentCount, r.DurationSeconds, r.LengthCategory, r.HoursSincePublished,
			r.ViewsPerHour, r.LikeViewRatio, r.CommentViewRatio, r.ThumbnailURL, r.Tags,
			r.TitleHashtags, r.DescriptionHashtags, r.AllHashtags, r.TitleLength,
			r.TitleWordCount, r.HasDescription, r.DescriptionLength)
		if err != nil {
			return 0, fmt.Errorf("insert video %s: %w", r.VideoID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit videos: %w", err)
	}
	return len(rows), nil
}

// ReplaceChannelStats recomputes channel_stats for batchID.
func (s *Store) ReplaceChannelStats(ctx context.Context, batchID string) (int, error) {
	return s.replace(ctx, "channel_stats", batchID, `
		INSERT INTO channel_stats (batch_id, channel_id, channel_title, video_count, avg_views,
			avg_likes, avg_comments, avg_like_view_ratio, avg_comment_view_ratio, extracted_at)
		SELECT batch_id, channel_id, channel_title, COUNT(*),
			AVG(view_count)::float8, AVG(like_count)::float8, AVG(comment_count)::float8,
			AVG(like_view_ratio), AVG(comment_view_ratio), MAX(extracted_at)
		FROM trending_videos
		WHERE batch_id = $1
		GROUP BY batch_id, channel_id, channel_title
	`)
}

// ReplaceCategoryStats recomputes trends_summary for batchID.
func (s *Store) ReplaceCategoryStats(ctx context.Context, batchID string) (int, error) {
	return s.replace(ctx, "trends_summary", batchID, `
		INSERT INTO trends_summary (batch_id, category_id, category_name, video_count, avg_views,
			avg_likes, avg_comments, avg_duration, avg_like_view_ratio, avg_comment_view_ratio,
			avg_views_per_hour, extracted_at)
		SELECT batch_id, category_id, category_name, COUNT(*),
			AVG(view_count)::float8, AVG(like_count)::float8, AVG(comment_count)::float8,
			AVG(duration_seconds)::float8, AVG(like_view_ratio), AVG(comment_view_ratio),
			AVG(views_per_hour), MAX(extracted_at)
		FROM trending_videos
		WHERE batch_id = $1
		GROUP BY batch_id, category_id, category_name
	`)
}

// ReplaceHashtagStats recomputes hashtags for batchID, expanding the JSON
// hashtag arrays in the database.
func (s *Store) ReplaceHashtagStats(ctx context.Context, batchID string) (int, error) {
	return s.replace(ctx, "hashtags", batchID, `
		INSERT INTO hashtags (batch_id, hashtag, count, category_id, category_name, extracted_at)
		SELECT v.batch_id, h.tag, COUNT(*), v.category_id, v.category_name, MAX(v.extracted_at)
		FROM trending_videos v
		CROSS JOIN LATERAL jsonb_array_elements_text(
			COALESCE(NULLIF(v.all_hashtags, ''), '[]')::jsonb) AS h(tag)
		WHERE v.batch_id = $1
		GROUP BY v.batch_id, h.tag, v.category_id, v.category_name
	`)
}

// replace deletes table's rows for batchID and runs insertSQL in one transaction.
func (s *Store) replace(ctx context.Context, table, batchID, insertSQL string) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// table is one of the fixed aggregate table names above.
	if _, err := tx.Exec(ctx, "DELETE FROM "+table+" WHERE batch_id = $1", batchID); err != nil {
		return 0, fmt.Errorf("clear %s: %w", table, err)
	}
	tag, err := tx.Exec(ctx, insertSQL, batchID)
	if err != nil {
		return 0, fmt.Errorf("compute %s: %w", table, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit %s: %w", table, err)
	}
	return int(tag.RowsAffected()), nil
}

// HashtagSources returns the hashtag column of every row in batchID.
func (s *Store) HashtagSources(ctx context.Context, batchID string) ([]types.HashtagSource, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT category_id, category_name, all_hashtags, extracted_at
		FROM trending_videos
		WHERE batch_id = $1
		ORDER BY category_id, video_id
	`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.HashtagSource
	for rows.Next() {
		var src types.HashtagSource
		var extracted *time.Time
		if err := rows.Scan(&src.CategoryID, &src.CategoryName, &src.AllHashtags, &extracted); err != nil {
			return nil, err
		}
		if extracted != nil {
			src.ExtractedAt = extracted.UTC()
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

// WriteHashtagStats replaces the hashtags rows of batchID with stats.
func (s *Store) WriteHashtagStats(ctx context.Context, batchID string, stats []types.HashtagStat) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "DELETE FROM hashtags WHERE batch_id = $1", batchID); err != nil {
		return fmt.Errorf("clear hashtags: %w", err)
	}
	batch := &pgx.Batch{}
	for _, st := range stats {
		batch.Queue(`
			INSERT INTO hashtags (batch_id, hashtag, count, category_id, category_name, extracted_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, batchID, st.Hashtag, st.Count, st.CategoryID, st.CategoryName, nullTime(st.ExtractedAt))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert hashtags: %w", err)
	}
	return tx.Commit(ctx)
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
