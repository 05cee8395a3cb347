package types

import "time"

// AggregateKind names one of the per-batch aggregate views.
type AggregateKind string

// AggregateKind values enumerate the recomputed aggregate tables.
const (
	AggregateChannel  AggregateKind = "channel"
	AggregateCategory AggregateKind = "category"
	AggregateHashtag  AggregateKind = "hashtag"
)

// AggregateKinds is the fixed recomputation order.
var AggregateKinds = []AggregateKind{AggregateChannel, AggregateCategory, AggregateHashtag}

// ChannelStat is one row of the channel_stats aggregate.
type ChannelStat struct {
	BatchID             string    `json:"batch_id"`
	ChannelID           string    `json:"channel_id"`
	ChannelTitle        string    `json:"channel_title"`
	VideoCount          int       `json:"video_count"`
	AvgViews            float64   `json:"avg_views"`
	AvgLikes            float64   `json:"avg_likes"`
	AvgComments         float64   `json:"avg_comments"`
	AvgLikeViewRatio    float64   `json:"avg_like_view_ratio"`
	AvgCommentViewRatio float64   `json:"avg_comment_view_ratio"`
	ExtractedAt         time.Time `json:"extracted_at,omitzero"`
}

// CategoryStat is one row of the trends_summary aggregate.
type CategoryStat struct {
	BatchID             string    `json:"batch_id"`
	CategoryID          int       `json:"category_id"`
	CategoryName        string    `json:"category_name"`
	VideoCount          int       `json:"video_count"`
	AvgViews            float64   `json:"avg_views"`
	AvgLikes            float64   `json:"avg_likes"`
	AvgComments         float64   `json:"avg_comments"`
	AvgDuration         float64   `json:"avg_duration"`
	AvgLikeViewRatio    float64   `json:"avg_like_view_ratio"`
	AvgCommentViewRatio float64   `json:"avg_comment_view_ratio"`
	AvgViewsPerHour     float64   `json:"avg_views_per_hour"`
	ExtractedAt         time.Time `json:"extracted_at,omitzero"`
}

// HashtagStat is one row of the hashtags aggregate.
type HashtagStat struct {
	BatchID      string    `json:"batch_id"`
	Hashtag      string    `json:"hashtag"`
	Count        int       `json:"count"`
	CategoryID   int       `json:"category_id"`
	CategoryName string    `json:"category_name"`
	ExtractedAt  time.Time `json:"extracted_at,omitzero"`
}

// HashtagSource is the slice of a canonical row needed to explode hashtags on
// the host when the relational engine cannot do it natively.
type HashtagSource struct {
	CategoryID   int
	CategoryName string
	AllHashtags  string // JSON-encoded array
	ExtractedAt  time.Time
}

// BatchInfo summarizes one loaded batch.
type BatchInfo struct {
	BatchID    string `json:"batch_id"`
	VideoCount int    `json:"video_count"`
}

// TopVideo is one row of a ranked video listing.
type TopVideo struct {
	VideoID         string  `json:"video_id"`
	Title           string  `json:"title"`
	ChannelTitle    string  `json:"channel_title"`
	CategoryName    string  `json:"category_name"`
	ViewCount       int64   `json:"view_count"`
	LikeCount       int64   `json:"like_count"`
	CommentCount    int64   `json:"comment_count"`
	ViewsPerHour    float64 `json:"views_per_hour"`
	LikeViewRatio   float64 `json:"like_view_ratio"`
	DurationSeconds int64   `json:"duration_seconds"`
}

// VideoSort selects the ranking column for top-video queries.
type VideoSort string

// VideoSort values are the supported ranking columns.
const (
	SortViewsPerHour  VideoSort = "views_per_hour"
	SortViewCount     VideoSort = "view_count"
	SortLikeViewRatio VideoSort = "like_view_ratio"
)

// Valid reports whether s is a supported ranking column.
func (s VideoSort) Valid() bool {
	switch s {
	case SortViewsPerHour, SortViewCount, SortLikeViewRatio:
		return true
	}
	return false
}

// DurationStat aggregates a batch by length bucket.
type DurationStat struct {
	LengthCategory   string  `json:"length_category"`
	VideoCount       int     `json:"video_count"`
	AvgViews         float64 `json:"avg_views"`
	AvgLikeViewRatio float64 `json:"avg_like_view_ratio"`
	AvgViewsPerHour  float64 `json:"avg_views_per_hour"`
}

// HashtagCount is a hashtag total across categories.
type HashtagCount struct {
	Hashtag string `json:"hashtag"`
	Count   int    `json:"count"`
}

// PublishSlotStat aggregates a batch by publish weekday or hour of day.
type PublishSlotStat struct {
	Slot       string  `json:"slot"`
	VideoCount int     `json:"video_count"`
	AvgViews   float64 `json:"avg_views"`
}

// AnalysisReport is the JSON document published for one batch.
type AnalysisReport struct {
	BatchID        string            `json:"batch_id"`
	GeneratedAt    time.Time         `json:"generated_at"`
	Categories     []CategoryStat    `json:"categories"`
	TopVideos      []TopVideo        `json:"top_videos"`
	TopByLikeRatio []TopVideo        `json:"top_by_like_ratio"`
	TopChannels    []ChannelStat     `json:"top_channels"`
	Durations      []DurationStat    `json:"durations"`
	PublishDays    []PublishSlotStat `json:"publish_days"`
	PublishHours   []PublishSlotStat `json:"publish_hours"`
	Hashtags       []HashtagCount    `json:"hashtags"`
}
