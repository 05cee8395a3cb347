package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dwsmith1983/vidtrend/internal/provider"
	"github.com/dwsmith1983/vidtrend/pkg/types"
)

const upsertVideo = `
	INSERT INTO trending_videos (batch_id, video_id, title, channel_id, channel_title,
		category_id, category_name, publish_time, extracted_at, view_count, like_count,
		comment_count, duration_seconds, length_category, hours_since_published,
		views_per_hour, like_view_ratio, comment_view_ratio, thumbnail_url, tags,
		title_hashtags, description_hashtags, all_hashtags, title_length,
		title_word_count, has_description, description_length)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (batch_id, video_id) DO UPDATE SET
		title                 = excluded.title,
		channel_id            = excluded.channel_id,
		channel_title         = excluded.channel_title,
		category_id           = excluded.category_id,
		category_name         = excluded.category_name,
		publish_time          = excluded.publish_time,
		extracted_at          = excluded.extracted_at,
		view_count            = excluded.view_count,
		like_count            = excluded.like_count,
		comment_count         = excluded.comment_count,
		duration_seconds      = excluded.duration_seconds,
		length_category       = excluded.length_category,
		hours_since_published = excluded.hours_since_published,
		views_per_hour        = excluded.views_per_hour,
		like_view_ratio       = excluded.like_view_ratio,
		comment_view_ratio    = excluded.comment_view_ratio,
		thumbnail_url         = excluded.thumbnail_url,
		tags                  = excluded.tags,
		title_hashtags        = excluded.title_hashtags,
		description_hashtags  = excluded.description_hashtags,
		all_hashtags          = excluded.all_hashtags,
		title_length          = excluded.title_length,
		title_word_count      = excluded.title_word_count,
		has_description       = excluded.has_description,
		description_length    = excluded.description_length
`

// InsertVideos upserts canonical rows keyed by (batch_id, video_id).
func (s *Store) InsertVideos(ctx context.Context, rows []types.VideoRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertVideo)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		_, err := stmt.ExecContext(ctx, r.BatchID, r.VideoID, r.Title, r.ChannelID, r.ChannelTitle,
			r.CategoryID, r.CategoryName, formatTime(r.PublishTime), formatTime(r.ExtractedAt),
			r.ViewCount, r.LikeCount, r.CommentCount, r.DurationSeconds, r.LengthCategory,
			r.HoursSincePublished, r.ViewsPerHour, r.LikeViewRatio, r.CommentViewRatio,
			r.ThumbnailURL, r.Tags, r.TitleHashtags, r.DescriptionHashtags, r.AllHashtags,
			r.TitleLength, r.TitleWordCount, r.HasDescription, r.DescriptionLength)
		if err != nil {
			return 0, fmt.Errorf("insert video %s: %w", r.VideoID, err)
		}
	}

	if err := tx.Commit(); err != nil {
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
			AVG(view_count), AVG(like_count), AVG(comment_count),
			AVG(like_view_ratio), AVG(comment_view_ratio), MAX(extracted_at)
		FROM trending_videos
		WHERE batch_id = ?
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
			AVG(view_count), AVG(like_count), AVG(comment_count), AVG(duration_seconds),
			AVG(like_view_ratio), AVG(comment_view_ratio), AVG(views_per_hour), MAX(extracted_at)
		FROM trending_videos
		WHERE batch_id = ?
		GROUP BY batch_id, category_id, category_name
	`)
}

// ReplaceHashtagStats always defers to the host-side aggregate; see HashtagSources.
func (s *Store) ReplaceHashtagStats(context.Context, string) (int, error) {
	return 0, provider.ErrExplodeUnsupported
}

func (s *Store) replace(ctx context.Context, table, batchID, insertSQL string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// table is one of the fixed aggregate table names above.
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE batch_id = ?", batchID); err != nil {
		return 0, fmt.Errorf("clear %s: %w", table, err)
	}
	res, err := tx.ExecContext(ctx, insertSQL, batchID)
	if err != nil {
		return 0, fmt.Errorf("compute %s: %w", table, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit %s: %w", table, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// HashtagSources returns the hashtag column of every row in batchID.
func (s *Store) HashtagSources(ctx context.Context, batchID string) ([]types.HashtagSource, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category_id, category_name, all_hashtags, extracted_at
		FROM trending_videos
		WHERE batch_id = ?
		ORDER BY category_id, video_id
	`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.HashtagSource
	for rows.Next() {
		var src types.HashtagSource
		var extracted sql.NullString
		if err := rows.Scan(&src.CategoryID, &src.CategoryName, &src.AllHashtags, &extracted); err != nil {
			return nil, err
		}
		src.ExtractedAt = valueTime(extracted)
		out = append(out, src)
	}
	return out, rows.Err()
}

// WriteHashtagStats replaces the hashtags rows of batchID with stats.
func (s *Store) WriteHashtagStats(ctx context.Context, batchID string, stats []types.HashtagStat) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM hashtags WHERE batch_id = ?", batchID); err != nil {
		return fmt.Errorf("clear hashtags: %w", err)
	}
	for _, st := range stats {
		ts := st.ExtractedAt
		_, err := tx.ExecContext(ctx, `
			INSERT INTO hashtags (batch_id, hashtag, count, category_id, category_name, extracted_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, batchID, st.Hashtag, st.Count, st.CategoryID, st.CategoryName, formatTime(&ts))
		if err != nil {
			return fmt.Errorf("insert hashtag %s: %w", st.Hashtag, err)
		}
	}
	return tx.Commit()
}
