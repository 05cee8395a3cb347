// Package sqlite implements the vidtrend relational store on an embedded
// SQLite database. Hashtags are always aggregated on the host:
// ReplaceHashtagStats reports ErrExplodeUnsupported even though the driver
// ships json_each.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dwsmith1983/vidtrend/internal/provider"
)

var _ provider.Backend = (*Store)(nil)

// timeLayout is fixed width so MAX() over the text column orders correctly.
const timeLayout = "2006-01-02T15:04:05.000000Z"

const schemaDDL = `
CREATE TABLE IF NOT EXISTS trending_videos (
    batch_id              TEXT NOT NULL,
    video_id              TEXT NOT NULL,
    title                 TEXT NOT NULL,
    channel_id            TEXT NOT NULL,
    channel_title         TEXT NOT NULL DEFAULT '',
    category_id           INTEGER NOT NULL DEFAULT 0,
    category_name         TEXT NOT NULL DEFAULT '',
    publish_time          TEXT,
    extracted_at          TEXT,
    view_count            INTEGER NOT NULL DEFAULT 0,
    like_count            INTEGER NOT NULL DEFAULT 0,
    comment_count         INTEGER NOT NULL DEFAULT 0,
    duration_seconds      INTEGER NOT NULL DEFAULT 0,
    length_category       TEXT NOT NULL DEFAULT '',
    hours_since_published REAL NOT NULL DEFAULT 0,
    views_per_hour        REAL NOT NULL DEFAULT 0,
    like_view_ratio       REAL NOT NULL DEFAULT 0,
    comment_view_ratio    REAL NOT NULL DEFAULT 0,
    thumbnail_url         TEXT NOT NULL DEFAULT '',
    tags                  TEXT NOT NULL DEFAULT '[]',
    title_hashtags        TEXT NOT NULL DEFAULT '[]',
    description_hashtags  TEXT NOT NULL DEFAULT '[]',
    all_hashtags          TEXT NOT NULL DEFAULT '[]',
    title_length          INTEGER NOT NULL DEFAULT 0,
    title_word_count      INTEGER NOT NULL DEFAULT 0,
    has_description       INTEGER NOT NULL DEFAULT 0,
    description_length    INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (batch_id, video_id)
);
CREATE INDEX IF NOT EXISTS idx_trending_videos_category ON trending_videos (batch_id, category_id);

CREATE TABLE IF NOT EXISTS channel_stats (
    batch_id               TEXT NOT NULL,
    channel_id             TEXT NOT NULL,
    channel_title          TEXT NOT NULL,
    video_count            INTEGER NOT NULL,
    avg_views              REAL NOT NULL,
    avg_likes              REAL NOT NULL,
    avg_comments           REAL NOT NULL,
    avg_like_view_ratio    REAL NOT NULL,
    avg_comment_view_ratio REAL NOT NULL,
    extracted_at           TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_channel_stats_key ON channel_stats (batch_id, channel_id, channel_title);

CREATE TABLE IF NOT EXISTS trends_summary (
    batch_id               TEXT NOT NULL,
    category_id            INTEGER NOT NULL,
    category_name          TEXT NOT NULL,
    video_count            INTEGER NOT NULL,
    avg_views              REAL NOT NULL,
    avg_likes              REAL NOT NULL,
    avg_comments           REAL NOT NULL,
    avg_duration           REAL NOT NULL,
    avg_like_view_ratio    REAL NOT NULL,
    avg_comment_view_ratio REAL NOT NULL,
    avg_views_per_hour     REAL NOT NULL,
    extracted_at           TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_trends_summary_key ON trends_summary (batch_id, category_id, category_name);

CREATE TABLE IF NOT EXISTS hashtags (
    batch_id      TEXT NOT NULL,
    hashtag       TEXT NOT NULL,
    count         INTEGER NOT NULL,
    category_id   INTEGER NOT NULL,
    category_name TEXT NOT NULL,
    extracted_at  TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_hashtags_key ON hashtags (batch_id, hashtag, category_id, category_name);
`

// Store is a SQLite-backed relational store.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database at path.
func New(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode = WAL;", "PRAGMA busy_timeout = 5000;"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite %s: %w", pragma, err)
		}
	}
	return &Store{db: db}, nil
}

// Migrate creates tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("sqlite migrate: %w", err)
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func formatTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(timeLayout, ns.String)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, ns.String)
		if err != nil {
			return nil
		}
	}
	t = t.UTC()
	return &t
}

func valueTime(ns sql.NullString) time.Time {
	if t := parseTime(ns); t != nil {
		return *t
	}
	return time.Time{}
}
