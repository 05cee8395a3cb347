// Package normalize converts heterogeneous raw video records into the
// canonical schema. Missing columns are filled with documented defaults and
// scalar values are coerced to their canonical types; the only hard failure is
// a video_id whose type cannot be coerced to a string.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dwsmith1983/vidtrend/pkg/types"
)

// ErrInvalidVideoID is returned when a record's video_id holds a value (bool,
// object, array) that has no string form.
var ErrInvalidVideoID = errors.New("invalid video_id")

// Placeholder values used when an upstream record omits a field.
const (
	DefaultTitle        = "Unknown Title"
	DefaultCategoryName = "Unknown"
)

// PlaceholderVideoID is the synthesized id for the record at index within
// categoryID. Both keys are needed: row indexes restart in every category.
func PlaceholderVideoID(batchID string, categoryID, index int) string {
	return fmt.Sprintf("unknown_%s_%d_%d", batchID, categoryID, index)
}

// PlaceholderChannelID is the synthesized channel id for a record without one.
func PlaceholderChannelID(batchID string) string {
	return "unknown_channel_" + batchID
}

// timeLayouts are tried in order. Layouts without a zone parse as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Normalizer fills and coerces raw records. The zero value is not usable; use New.
type Normalizer struct {
	logger *slog.Logger
}

// New creates a Normalizer that reports recoverable data defects to logger.
func New(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Normalizer{logger: logger}
}

// Normalize maps one raw record onto a CanonicalVideo carrying batchID.
// categoryID and index locate the record in the extraction and key the
// placeholder id. Derived metric fields are left zero; the raw record is never
// modified.
func (n *Normalizer) Normalize(raw types.RawRecord, batchID string, categoryID, index int) (types.CanonicalVideo, error) {
	videoID, err := coerceVideoID(raw[types.FieldVideoID])
	if err != nil {
		return types.CanonicalVideo{}, fmt.Errorf("record %d: %w", index, err)
	}
	if videoID == "" {
		videoID = PlaceholderVideoID(batchID, categoryID, index)
	}

	v := types.CanonicalVideo{
		BatchID:      batchID,
		VideoID:      videoID,
		Title:        stringOr(raw[types.FieldTitle], DefaultTitle),
		ChannelID:    stringOr(raw[types.FieldChannelID], PlaceholderChannelID(batchID)),
		ChannelTitle: stringOr(raw[types.FieldChannelTitle], ""),
		CategoryName: stringOr(raw[types.FieldCategoryName], DefaultCategoryName),
		Duration:     stringOr(raw[types.FieldDuration], ""),
		ThumbnailURL: stringOr(raw[types.FieldThumbnailURL], ""),
		Description:  stringOr(raw[types.FieldDescription], ""),
	}

	if id, err := toInt64(raw[types.FieldCategoryID]); err == nil && id >= math.MinInt32 && id <= math.MaxInt32 {
		v.CategoryID = int(id)
	} else if raw[types.FieldCategoryID] != nil {
		n.logger.Warn("unparseable category_id, using 0", "video_id", videoID, "value", raw[types.FieldCategoryID])
	}

	v.ViewCount = n.count(raw, types.FieldViewCount, videoID)
	v.LikeCount = n.count(raw, types.FieldLikeCount, videoID)
	v.CommentCount = n.count(raw, types.FieldCommentCount, videoID)

	v.PublishTime = n.timestamp(raw, types.FieldPublishTime, videoID)
	v.ExtractedAt = n.timestamp(raw, types.FieldExtractedAt, videoID)

	v.TagsList, v.Tags = n.tags(raw[types.FieldTags], videoID)
	return v, nil
}

// NormalizeBatch normalizes every record of categoryID, stopping at the
// first hard failure.
func (n *Normalizer) NormalizeBatch(records []types.RawRecord, batchID string, categoryID int) ([]types.CanonicalVideo, error) {
	out := make([]types.CanonicalVideo, 0, len(records))
	for i, raw := range records {
		v, err := n.Normalize(raw, batchID, categoryID, i)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (n *Normalizer) count(raw types.RawRecord, field, videoID string) int64 {
	val, present := raw[field]
	if !present || val == nil {
		return 0
	}
	c, err := toInt64(val)
	if errors.Is(err, errOutOfRange) {
		n.logger.Warn("count out of range, using 0", "video_id", videoID, "field", field, "value", val)
		return 0
	}
	if err != nil {
		n.logger.Warn("unparseable count, using 0", "video_id", videoID, "field", field, "value", val)
		return 0
	}
	if c < 0 {
		n.logger.Warn("negative count clamped to 0", "video_id", videoID, "field", field, "value", c)
		return 0
	}
	return c
}

func (n *Normalizer) timestamp(raw types.RawRecord, field, videoID string) time.Time {
	val, present := raw[field]
	if !present || val == nil {
		return time.Time{}
	}
	t, ok := ParseTime(val)
	if !ok {
		n.logger.Warn("unparseable timestamp", "video_id", videoID, "field", field, "value", val)
	}
	return t
}

// tags returns the decoded tag list and its JSON-encoded form.
func (n *Normalizer) tags(val any, videoID string) ([]string, string) {
	switch t := val.(type) {
	case nil:
		return []string{}, "[]"
	case string:
		if strings.TrimSpace(t) == "" {
			return []string{}, "[]"
		}
		var decoded []any
		if err := json.Unmarshal([]byte(t), &decoded); err != nil {
			n.logger.Warn("unparseable tags, using empty list", "video_id", videoID, "error", err)
			return []string{}, t
		}
		return stringList(decoded), t
	case []string:
		list := append([]string{}, t...)
		return list, EncodeList(list)
	case []any:
		list := stringList(t)
		return list, EncodeList(list)
	default:
		n.logger.Warn("unsupported tags value, using empty list", "video_id", videoID, "type", fmt.Sprintf("%T", val))
		return []string{}, "[]"
	}
}

func stringList(items []any) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := toString(it); ok {
			out = append(out, s)
		}
	}
	return out
}

// EncodeList renders list as a JSON array; nil encodes as "[]".
func EncodeList(list []string) string {
	if len(list) == 0 {
		return "[]"
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// DecodeList parses a JSON string array. Empty or malformed input yields an
// empty list and ok=false for malformed input.
func DecodeList(s string) ([]string, bool) {
	if strings.TrimSpace(s) == "" {
		return []string{}, true
	}
	var items []any
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return []string{}, false
	}
	return stringList(items), true
}

// ParseTime accepts a time.Time or a timestamp string in any supported
// layout. Zone-less values are interpreted as UTC; the result is always UTC.
func ParseTime(val any) (time.Time, bool) {
	switch t := val.(type) {
	case time.Time:
		return t.UTC(), !t.IsZero()
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return t.UTC(), !t.IsZero()
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

func coerceVideoID(val any) (string, error) {
	switch val.(type) {
	case nil:
		return "", nil
	case bool, map[string]any, []any, []string, types.RawRecord:
		return "", fmt.Errorf("%w: %T", ErrInvalidVideoID, val)
	}
	s, ok := toString(val)
	if !ok {
		return "", fmt.Errorf("%w: %T", ErrInvalidVideoID, val)
	}
	return strings.TrimSpace(s), nil
}

func stringOr(val any, def string) string {
	s, ok := toString(val)
	if !ok || s == "" {
		return def
	}
	return s
}

func toString(val any) (string, bool) {
	switch v := val.(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "", false
		}
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	}
	return "", false
}

var (
	errNotNumeric = errors.New("not numeric")
	errOutOfRange = errors.New("out of int64 range")
)

func toInt64(val any) (int64, error) {
	switch v := val.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, errOutOfRange
		}
		return int64(v), nil
	case float64:
		if math.IsNaN(v) {
			return 0, errNotNumeric
		}
		// 1<<63 is exact in float64; anything at or beyond it has no int64 form.
		if v >= 1<<63 || v < -(1<<63) {
			return 0, errOutOfRange
		}
		return int64(v), nil
	case float32:
		return toInt64(float64(v))
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		f, err := v.Float64()
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return 0, errNotNumeric
		}
		return toInt64(f)
	case string:
		s := strings.TrimSpace(v)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return 0, errNotNumeric
		}
		return toInt64(f)
	}
	return 0, errNotNumeric
}
