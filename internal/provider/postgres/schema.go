// Package postgres implements the vidtrend relational store on Postgres.
package postgres

const schemaDDL = `
CREATE TABLE IF NOT EXISTS trending_videos (
    batch_id              TEXT NOT NULL,
    video_id              TEXT NOT NULL,
    title                 TEXT NOT NULL,
    channel_id            TEXT NOT NULL,
    channel_title         TEXT NOT NULL DEFAULT '',
    category_id           INTEGER NOT NULL DEFAULT 0,
    category_name         TEXT NOT NULL DEFAULT '',
    publish_time          TIMESTAMPTZ,
    extracted_at          TIMESTAMPTZ,
    view_count            BIGINT NOT NULL DEFAULT 0,
    like_count            BIGINT NOT NULL DEFAULT 0,
    comment_count         BIGINT NOT NULL DEFAULT 0,
    duration_seconds      BIGINT NOT NULL DEFAULT 0,
    length_category       TEXT NOT NULL DEFAULT '',
    hours_since_published DOUBLE PRECISION NOT NULL DEFAULT 0,
    views_per_hour        DOUBLE PRECISION NOT NULL DEFAULT 0,
    like_view_ratio       DOUBLE PRECISION NOT NULL DEFAULT 0,
    comment_view_ratio    DOUBLE PRECISION NOT NULL DEFAULT 0,
    thumbnail_url         TEXT NOT NULL DEFAULT '',
    tags                  TEXT NOT NULL DEFAULT '[]',
    title_hashtags        TEXT NOT NULL DEFAULT '[]',
    description_hashtags  TEXT NOT NULL DEFAULT '[]',
    all_hashtags          TEXT NOT NULL DEFAULT '[]',
    title_length          INTEGER NOT NULL DEFAULT 0,
    title_word_count      INTEGER NOT NULL DEFAULT 0,
    has_description       BOOLEAN NOT NULL DEFAULT FALSE,
    description_length    INTEGER NOT NULL DEFAULT 0,
    loaded_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (batch_id, video_id)
);
CREATE INDEX IF NOT EXISTS idx_trending_videos_category ON trending_videos (batch_id, category_id);
CREATE INDEX IF NOT EXISTS idx_trending_videos_channel ON trending_videos (batch_id, channel_id);

CREATE TABLE IF NOT EXISTS channel_stats (
    batch_id               TEXT NOT NULL,
    channel_id             TEXT NOT NULL,
    channel_title          TEXT NOT NULL,
    video_count            INTEGER NOT NULL,
    avg_views              DOUBLE PRECISION NOT NULL,
    avg_likes              DOUBLE PRECISION NOT NULL,
    avg_comments           DOUBLE PRECISION NOT NULL,
    avg_like_view_ratio    DOUBLE PRECISION NOT NULL,
    avg_comment_view_ratio DOUBLE PRECISION NOT NULL,
    extracted_at           TIMESTAMPTZ
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_channel_stats_key ON channel_stats (batch_id, channel_id, channel_title);

CREATE TABLE IF NOT EXISTS trends_summary (
    batch_id               TEXT NOT NULL,
    category_id            INTEGER NOT NULL,
    category_name          TEXT NOT NULL,
    video_count            INTEGER NOT NULL,
    avg_views              DOUBLE PRECISION NOT NULL,
    avg_likes              DOUBLE PRECISION NOT NULL,
    avg_comments           DOUBLE PRECISION NOT NULL,
    avg_duration           DOUBLE PRECISION NOT NULL,
    avg_like_view_ratio    DOUBLE PRECISION NOT NULL,
    avg_comment_view_ratio DOUBLE PRECISION NOT NULL,
    avg_views_per_hour     DOUBLE PRECISION NOT NULL,
    extracted_at           TIMESTAMPTZ
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_trends_summary_key ON trends_summary (batch_id, category_id, category_name);

CREATE TABLE IF NOT EXISTS hashtags (
    batch_id      TEXT NOT NULL,
    hashtag       TEXT NOT NULL,
    count         INTEGER NOT NULL,
    category_id   INTEGER NOT NULL,
    category_name TEXT NOT NULL,
    extracted_at  TIMESTAMPTZ
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_hashtags_key ON hashtags (batch_id, hashtag, category_id, category_name);
`
