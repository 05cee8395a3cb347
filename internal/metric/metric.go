// Package metric provides the pure derived-metric functions used by the
// transform stage: duration parsing, hashtag extraction, length bucketing,
// engagement ratios and view velocity. Every function is stateless and safe
// for concurrent use.
package metric

import (
	"log/slog"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/sosodev/duration"
)

// Length bucket labels in ascending order.
const (
	LengthUnder1Min = "< 1 min"
	Length1To5Min   = "1-5 min"
	Length5To10Min  = "5-10 min"
	Length10To20Min = "10-20 min"
	LengthOver20Min = "> 20 min"
)

// LengthCategories lists every bucket label in ascending order.
var LengthCategories = []string{
	LengthUnder1Min, Length1To5Min, Length5To10Min, Length10To20Min, LengthOver20Min,
}

// lengthBreakpoints are the inclusive upper bounds (in seconds) of every
// bucket except the last. Buckets are right-closed: 60 is "< 1 min" and
// 300 is "1-5 min".
var lengthBreakpoints = []int64{60, 300, 600, 1200}

// Title and description hashtags: '#' followed by letters, digits or '_'.
var hashtagPattern = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)

// ParseDuration converts an ISO-8601 duration (e.g. "PT1H2M3S") to whole
// seconds. It fails closed: malformed, empty or negative input yields 0 and is
// logged at WARN, since upstream data is expected to contain such values.
func ParseDuration(text string, logger *slog.Logger) int64 {
	secs, err := parseDurationSeconds(text)
	if err != nil {
		if logger != nil {
			logger.Warn("could not parse duration", "duration", text, "error", err)
		}
		return 0
	}
	return secs
}

type durationError struct{ reason string }

func (e durationError) Error() string { return e.reason }

func parseDurationSeconds(text string) (int64, error) {
	if text == "" {
		return 0, durationError{"empty duration"}
	}
	if !strings.HasPrefix(text, "P") || !strings.ContainsAny(text, "0123456789") {
		return 0, durationError{"not an ISO-8601 duration"}
	}
	d, err := duration.Parse(text)
	if err != nil {
		return 0, err
	}
	td := d.ToTimeDuration()
	if td < 0 {
		return 0, durationError{"negative duration"}
	}
	return int64(td / time.Second), nil
}

// ExtractHashtags returns the hashtags in text without the leading '#', in
// order of appearance. Empty input yields an empty, non-nil slice.
func ExtractHashtags(text string) []string {
	if text == "" {
		return []string{}
	}
	matches := hashtagPattern.FindAllStringSubmatch(text, -1)
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tags = append(tags, m[1])
	}
	return tags
}

// BucketLength maps a duration in seconds to its length category. Negative
// values fall in the first bucket so the buckets cover every input.
func BucketLength(seconds int64) string {
	for i, upper := range lengthBreakpoints {
		if seconds <= upper {
			return LengthCategories[i]
		}
	}
	return LengthOver20Min
}

// EngagementRatio returns 100*numerator/denominator, or 0 when the
// denominator is not positive. The result is never negative or NaN.
func EngagementRatio(numerator, denominator int64) float64 {
	if denominator <= 0 || numerator <= 0 {
		return 0
	}
	return 100 * float64(numerator) / float64(denominator)
}

// ViewsPerHour returns viewCount/hours. When hours is not positive (or not a
// number) the view count itself is returned: a video extracted at or before
// its publish time has no meaningful rate, so the raw count stands in for it.
func ViewsPerHour(viewCount int64, hours float64) float64 {
	if math.IsNaN(hours) || hours <= 0 {
		return float64(viewCount)
	}
	return float64(viewCount) / hours
}

// HoursBetween returns extracted-published in hours. Both instants are
// converted to UTC first so zone-aware and zone-less inputs compare correctly.
func HoursBetween(published, extracted time.Time) float64 {
	return extracted.UTC().Sub(published.UTC()).Hours()
}
