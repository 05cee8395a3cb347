// Package types defines the public domain types for the vidtrend trending-video pipeline.
package types

import "time"

// BatchIDLayout is the time layout of a batch identifier (YYYYMMDDHHMMSS).
const BatchIDLayout = "20060102150405"

// FormatBatchID renders t as a batch identifier in UTC.
func FormatBatchID(t time.Time) string {
	return t.UTC().Format(BatchIDLayout)
}

// RawRecord is one upstream video record as decoded from the source. Which keys
// are present, and the Go type behind each value, depends on the source and on
// the category response shape.
type RawRecord map[string]any

// Raw field names recognized by the normalizer.
const (
	FieldVideoID      = "video_id"
	FieldTitle        = "title"
	FieldChannelID    = "channel_id"
	FieldChannelTitle = "channel_title"
	FieldCategoryID   = "category_id"
	FieldCategoryName = "category_name"
	FieldPublishTime  = "publish_time"
	FieldExtractedAt  = "extracted_at"
	FieldViewCount    = "view_count"
	FieldLikeCount    = "like_count"
	FieldCommentCount = "comment_count"
	FieldDuration     = "duration"
	FieldTags         = "tags"
	FieldDescription  = "description"
	FieldThumbnailURL = "thumbnail_url"
	FieldBatchID      = "batch_id"
)

// CanonicalVideo is a raw record after normalization and metric derivation.
// Every field is always present; missing upstream values carry documented defaults.
type CanonicalVideo struct {
	BatchID      string    `json:"batch_id" parquet:"batch_id"`
	VideoID      string    `json:"video_id" parquet:"video_id"`
	Title        string    `json:"title" parquet:"title"`
	ChannelID    string    `json:"channel_id" parquet:"channel_id"`
	ChannelTitle string    `json:"channel_title" parquet:"channel_title"`
	CategoryID   int       `json:"category_id" parquet:"category_id"`
	CategoryName string    `json:"category_name" parquet:"category_name"`
	PublishTime  time.Time `json:"publish_time" parquet:"publish_time,timestamp(millisecond)"`
	ExtractedAt  time.Time `json:"extracted_at" parquet:"extracted_at,timestamp(millisecond)"`

	ViewCount    int64 `json:"view_count" parquet:"view_count"`
	LikeCount    int64 `json:"like_count" parquet:"like_count"`
	CommentCount int64 `json:"comment_count" parquet:"comment_count"`

	Duration            string  `json:"duration" parquet:"duration"`
	DurationSeconds     int64   `json:"duration_seconds" parquet:"duration_seconds"`
	LengthCategory      string  `json:"length_category" parquet:"length_category"`
	HoursSincePublished float64 `json:"hours_since_published" parquet:"hours_since_published"`
	ViewsPerHour        float64 `json:"views_per_hour" parquet:"views_per_hour"`
	LikeViewRatio       float64 `json:"like_view_ratio" parquet:"like_view_ratio"`
	CommentViewRatio    float64 `json:"comment_view_ratio" parquet:"comment_view_ratio"`

	ThumbnailURL string `json:"thumbnail_url" parquet:"thumbnail_url"`
	Description  string `json:"description" parquet:"description"`
	Tags         string `json:"tags" parquet:"tags"`

	TagsList            []string `json:"tags_list" parquet:"tags_list,list"`
	TitleHashtags       []string `json:"title_hashtags" parquet:"title_hashtags,list"`
	DescriptionHashtags []string `json:"description_hashtags" parquet:"description_hashtags,list"`
	AllHashtags         []string `json:"all_hashtags" parquet:"all_hashtags,list"`

	TitleLength       int  `json:"title_length" parquet:"title_length"`
	TitleWordCount    int  `json:"title_word_count" parquet:"title_word_count"`
	DescriptionLength int  `json:"description_length" parquet:"description_length"`
	HasDescription    bool `json:"has_description" parquet:"has_description"`
}

// VideoRow is the relational form of a CanonicalVideo. Collection-valued fields
// are serialized as JSON arrays because the relational sink stores no nested values.
type VideoRow struct {
	BatchID             string
	VideoID             string
	Title               string
	ChannelID           string
	ChannelTitle        string
	CategoryID          int
	CategoryName        string
	PublishTime         *time.Time
	ExtractedAt         *time.Time
	ViewCount           int64
	LikeCount           int64
	CommentCount        int64
	DurationSeconds     int64
	LengthCategory      string
	HoursSincePublished float64
	ViewsPerHour        float64
	LikeViewRatio       float64
	CommentViewRatio    float64
	ThumbnailURL        string
	Tags                string
	TitleHashtags       string
	DescriptionHashtags string
	AllHashtags         string
	TitleLength         int
	TitleWordCount      int
	HasDescription      bool
	DescriptionLength   int
}

// RawRow is the flat, string-valued archival projection of a RawRecord.
type RawRow struct {
	VideoID      string `json:"video_id" parquet:"video_id"`
	Title        string `json:"title" parquet:"title"`
	ChannelID    string `json:"channel_id" parquet:"channel_id"`
	ChannelTitle string `json:"channel_title" parquet:"channel_title"`
	CategoryID   string `json:"category_id" parquet:"category_id"`
	CategoryName string `json:"category_name" parquet:"category_name"`
	PublishTime  string `json:"publish_time" parquet:"publish_time"`
	ExtractedAt  string `json:"extracted_at" parquet:"extracted_at"`
	ViewCount    string `json:"view_count" parquet:"view_count"`
	LikeCount    string `json:"like_count" parquet:"like_count"`
	CommentCount string `json:"comment_count" parquet:"comment_count"`
	Duration     string `json:"duration" parquet:"duration"`
	Tags         string `json:"tags" parquet:"tags"`
	Description  string `json:"description" parquet:"description"`
	ThumbnailURL string `json:"thumbnail_url" parquet:"thumbnail_url"`
}

// TransformResult is the output of one transform execution.
type TransformResult struct {
	BatchID string                   `json:"batch_id"`
	Batches map[int][]CanonicalVideo `json:"batches"`
	// Failed maps dropped category ids to the reason they were dropped.
	Failed map[int]string `json:"failed,omitempty"`
}

// Rows returns the number of canonical records across all categories.
func (r *TransformResult) Rows() int {
	n := 0
	for _, b := range r.Batches {
		n += len(b)
	}
	return n
}
