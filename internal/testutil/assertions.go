package testutil

import (
	"testing"
	"time"

	"github.com/dwsmith1983/vidtrend/pkg/types"
)

// WaitFor polls check every 10ms until it returns true or timeout is reached.
func WaitFor(t *testing.T, timeout time.Duration, check func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for condition: %s", msg)
}

// RawVideo returns a complete raw record for category cat with the given
// counts, published two hours before extractedAt.
func RawVideo(id string, cat int, views, likes, comments int64, extractedAt time.Time) types.RawRecord {
	return types.RawRecord{
		types.FieldVideoID:      id,
		types.FieldTitle:        "Video " + id + " #trending",
		types.FieldChannelID:    "channel_" + id,
		types.FieldChannelTitle: "Channel " + id,
		types.FieldCategoryID:   cat,
		types.FieldCategoryName: "Category",
		types.FieldPublishTime:  extractedAt.Add(-2 * time.Hour).UTC().Format(time.RFC3339),
		types.FieldExtractedAt:  extractedAt.UTC().Format(time.RFC3339),
		types.FieldViewCount:    views,
		types.FieldLikeCount:    likes,
		types.FieldCommentCount: comments,
		types.FieldDuration:     "PT5M",
		types.FieldTags:         `["demo"]`,
		types.FieldDescription:  "About #" + id,
	}
}
