package normalize

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/dwsmith1983/vidtrend/pkg/types"
)

// ToRow projects a canonical record onto the relational schema. Collection
// fields are serialized as JSON arrays and zero timestamps become NULL.
func ToRow(v types.CanonicalVideo) types.VideoRow {
	tags := v.Tags
	if tags == "" {
		tags = EncodeList(v.TagsList)
	}
	return types.VideoRow{
		BatchID:             v.BatchID,
		VideoID:             v.VideoID,
		Title:               v.Title,
		ChannelID:           v.ChannelID,
		ChannelTitle:        v.ChannelTitle,
		CategoryID:          v.CategoryID,
		CategoryName:        v.CategoryName,
		PublishTime:         timePtr(v.PublishTime),
		ExtractedAt:         timePtr(v.ExtractedAt),
		ViewCount:           v.ViewCount,
		LikeCount:           v.LikeCount,
		CommentCount:        v.CommentCount,
		DurationSeconds:     v.DurationSeconds,
		LengthCategory:      v.LengthCategory,
		HoursSincePublished: v.HoursSincePublished,
		ViewsPerHour:        v.ViewsPerHour,
		LikeViewRatio:       v.LikeViewRatio,
		CommentViewRatio:    v.CommentViewRatio,
		ThumbnailURL:        v.ThumbnailURL,
		Tags:                tags,
		TitleHashtags:       EncodeList(v.TitleHashtags),
		DescriptionHashtags: EncodeList(v.DescriptionHashtags),
		AllHashtags:         EncodeList(v.AllHashtags),
		TitleLength:         v.TitleLength,
		TitleWordCount:      v.TitleWordCount,
		HasDescription:      v.HasDescription,
		DescriptionLength:   v.DescriptionLength,
	}
}

// FromRow rebuilds a canonical record from its relational form. Description
// and the ISO duration text are not stored relationally and come back empty.
func FromRow(r types.VideoRow) types.CanonicalVideo {
	tagsList, _ := DecodeList(r.Tags)
	title, _ := DecodeList(r.TitleHashtags)
	desc, _ := DecodeList(r.DescriptionHashtags)
	all, _ := DecodeList(r.AllHashtags)
	v := types.CanonicalVideo{
		BatchID:             r.BatchID,
		VideoID:             r.VideoID,
		Title:               r.Title,
		ChannelID:           r.ChannelID,
		ChannelTitle:        r.ChannelTitle,
		CategoryID:          r.CategoryID,
		CategoryName:        r.CategoryName,
		ViewCount:           r.ViewCount,
		LikeCount:           r.LikeCount,
		CommentCount:        r.CommentCount,
		DurationSeconds:     r.DurationSeconds,
		LengthCategory:      r.LengthCategory,
		HoursSincePublished: r.HoursSincePublished,
		ViewsPerHour:        r.ViewsPerHour,
		LikeViewRatio:       r.LikeViewRatio,
		CommentViewRatio:    r.CommentViewRatio,
		ThumbnailURL:        r.ThumbnailURL,
		Tags:                r.Tags,
		TagsList:            tagsList,
		TitleHashtags:       title,
		DescriptionHashtags: desc,
		AllHashtags:         all,
		TitleLength:         r.TitleLength,
		TitleWordCount:      r.TitleWordCount,
		HasDescription:      r.HasDescription,
		DescriptionLength:   r.DescriptionLength,
	}
	if r.PublishTime != nil {
		v.PublishTime = r.PublishTime.UTC()
	}
	if r.ExtractedAt != nil {
		v.ExtractedAt = r.ExtractedAt.UTC()
	}
	return v
}

// Reconcile prepares a combined canonical set for the relational write: every
// row is stamped with batchID, required fields absent from the input are
// filled with their defaults, and duplicate video ids collapse to the last
// occurrence. The input slice is not modified.
func Reconcile(videos []types.CanonicalVideo, batchID string) []types.VideoRow {
	rows := make([]types.VideoRow, 0, len(videos))
	pos := make(map[string]int, len(videos))
	for i, v := range videos {
		v.BatchID = batchID
		if v.VideoID == "" {
			v.VideoID = PlaceholderVideoID(batchID, v.CategoryID, i)
		}
		if v.Title == "" {
			v.Title = DefaultTitle
		}
		if v.ChannelID == "" {
			v.ChannelID = PlaceholderChannelID(batchID)
		}
		if v.CategoryName == "" {
			v.CategoryName = DefaultCategoryName
		}
		row := ToRow(v)
		if at, dup := pos[row.VideoID]; dup {
			rows[at] = row
			continue
		}
		pos[row.VideoID] = len(rows)
		rows = append(rows, row)
	}
	return rows
}

// RawRowOf flattens a raw record to its string-valued archival projection.
func RawRowOf(raw types.RawRecord) types.RawRow {
	return types.RawRow{
		VideoID:      flat(raw[types.FieldVideoID]),
		Title:        flat(raw[types.FieldTitle]),
		ChannelID:    flat(raw[types.FieldChannelID]),
		ChannelTitle: flat(raw[types.FieldChannelTitle]),
		CategoryID:   flat(raw[types.FieldCategoryID]),
		CategoryName: flat(raw[types.FieldCategoryName]),
		PublishTime:  flat(raw[types.FieldPublishTime]),
		ExtractedAt:  flat(raw[types.FieldExtractedAt]),
		ViewCount:    flat(raw[types.FieldViewCount]),
		LikeCount:    flat(raw[types.FieldLikeCount]),
		CommentCount: flat(raw[types.FieldCommentCount]),
		Duration:     flat(raw[types.FieldDuration]),
		Tags:         flat(raw[types.FieldTags]),
		Description:  flat(raw[types.FieldDescription]),
		ThumbnailURL: flat(raw[types.FieldThumbnailURL]),
	}
}

func flat(val any) string {
	if val == nil {
		return ""
	}
	if s, ok := toString(val); ok {
		return s
	}
	switch t := val.(type) {
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	}
	b, err := json.Marshal(val)
	if err != nil {
		return ""
	}
	return string(b)
}

// RawCSVHeader is the column order of raw CSV artifacts.
var RawCSVHeader = []string{
	types.FieldVideoID, types.FieldTitle, types.FieldChannelID, types.FieldChannelTitle,
	types.FieldCategoryID, types.FieldCategoryName, types.FieldPublishTime, types.FieldExtractedAt,
	types.FieldViewCount, types.FieldLikeCount, types.FieldCommentCount, types.FieldDuration,
	types.FieldTags, types.FieldDescription, types.FieldThumbnailURL,
}

// RawCSVRecord renders r in RawCSVHeader order.
func RawCSVRecord(r types.RawRow) []string {
	return []string{
		r.VideoID, r.Title, r.ChannelID, r.ChannelTitle, r.CategoryID, r.CategoryName,
		r.PublishTime, r.ExtractedAt, r.ViewCount, r.LikeCount, r.CommentCount, r.Duration,
		r.Tags, r.Description, r.ThumbnailURL,
	}
}

// CanonicalCSVHeader is the column order of processed CSV artifacts.
var CanonicalCSVHeader = []string{
	"batch_id", "video_id", "title", "channel_id", "channel_title", "category_id", "category_name",
	"publish_time", "extracted_at", "view_count", "like_count", "comment_count", "duration",
	"duration_seconds", "length_category", "hours_since_published", "views_per_hour",
	"like_view_ratio", "comment_view_ratio", "thumbnail_url", "description", "tags", "tags_list",
	"title_hashtags", "description_hashtags", "all_hashtags", "title_length", "title_word_count",
	"description_length", "has_description",
}

// CanonicalCSVRecord renders v in CanonicalCSVHeader order.
func CanonicalCSVRecord(v types.CanonicalVideo) []string {
	return []string{
		v.BatchID, v.VideoID, v.Title, v.ChannelID, v.ChannelTitle, strconv.Itoa(v.CategoryID), v.CategoryName,
		formatTime(v.PublishTime), formatTime(v.ExtractedAt),
		strconv.FormatInt(v.ViewCount, 10), strconv.FormatInt(v.LikeCount, 10), strconv.FormatInt(v.CommentCount, 10),
		v.Duration, strconv.FormatInt(v.DurationSeconds, 10), v.LengthCategory,
		formatFloat(v.HoursSincePublished), formatFloat(v.ViewsPerHour),
		formatFloat(v.LikeViewRatio), formatFloat(v.CommentViewRatio),
		v.ThumbnailURL, v.Description, v.Tags, EncodeList(v.TagsList),
		EncodeList(v.TitleHashtags), EncodeList(v.DescriptionHashtags), EncodeList(v.AllHashtags),
		strconv.Itoa(v.TitleLength), strconv.Itoa(v.TitleWordCount),
		strconv.Itoa(v.DescriptionLength), strconv.FormatBool(v.HasDescription),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
