package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/vidtrend/pkg/types"
)

func sampleVideo() types.CanonicalVideo {
	pub := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return types.CanonicalVideo{
		BatchID:             "20260301120000",
		VideoID:             "v1",
		Title:               "Launch #go #news",
		ChannelID:           "c1",
		ChannelTitle:        "Channel",
		CategoryID:          28,
		CategoryName:        "Science & Technology",
		PublishTime:         pub,
		ExtractedAt:         pub.Add(2 * time.Hour),
		ViewCount:           1000,
		LikeCount:           100,
		CommentCount:        10,
		DurationSeconds:     300,
		LengthCategory:      "1-5 min",
		HoursSincePublished: 2,
		ViewsPerHour:        500,
		LikeViewRatio:       10,
		CommentViewRatio:    1,
		Tags:                `["go"]`,
		TagsList:            []string{"go"},
		TitleHashtags:       []string{"go", "news"},
		DescriptionHashtags: []string{"dev"},
		AllHashtags:         []string{"go", "news", "dev"},
		TitleLength:         16,
		TitleWordCount:      3,
		DescriptionLength:   4,
		HasDescription:      true,
	}
}

func TestRowRoundTrip(t *testing.T) {
	v := sampleVideo()
	row := ToRow(v)

	assert.Equal(t, `["go","news","dev"]`, row.AllHashtags)
	require.NotNil(t, row.PublishTime)

	back := FromRow(row)
	assert.Equal(t, v.VideoID, back.VideoID)
	assert.Equal(t, v.CategoryID, back.CategoryID)
	assert.Equal(t, v.ViewCount, back.ViewCount)
	assert.InDelta(t, v.ViewsPerHour, back.ViewsPerHour, 1e-9)
	assert.InDelta(t, v.LikeViewRatio, back.LikeViewRatio, 1e-9)
	assert.True(t, v.PublishTime.Equal(back.PublishTime))
	assert.ElementsMatch(t, v.AllHashtags, back.AllHashtags)
	assert.Equal(t, v.TagsList, back.TagsList)
}

func TestToRow_EmptyCollectionsAndTimes(t *testing.T) {
	row := ToRow(types.CanonicalVideo{VideoID: "v"})
	assert.Equal(t, "[]", row.Tags)
	assert.Equal(t, "[]", row.AllHashtags)
	assert.Nil(t, row.PublishTime)
	assert.Nil(t, row.ExtractedAt)
}

func TestReconcile(t *testing.T) {
	a := sampleVideo()
	a.BatchID = ""
	b := sampleVideo()
	b.BatchID = "other"
	b.ViewCount = 2000
	c := types.CanonicalVideo{}

	in := []types.CanonicalVideo{a, b, c}
	rows := Reconcile(in, "B1")

	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.Equal(t, "B1", r.BatchID)
	}
	assert.Equal(t, int64(2000), rows[0].ViewCount, "duplicate video id keeps the last occurrence")
	assert.Equal(t, "unknown_B1_0_2", rows[1].VideoID)
	assert.Equal(t, DefaultTitle, rows[1].Title)
	assert.Equal(t, "unknown_channel_B1", rows[1].ChannelID)

	assert.Equal(t, "", in[0].BatchID, "input is not modified")
}

func TestRawRowOf(t *testing.T) {
	r := RawRowOf(types.RawRecord{
		types.FieldVideoID:   "v1",
		types.FieldViewCount: 12.0,
		types.FieldTags:      []any{"a"},
	})
	assert.Equal(t, "v1", r.VideoID)
	assert.Equal(t, "12", r.ViewCount)
	assert.Equal(t, `["a"]`, r.Tags)
	assert.Equal(t, "", r.Title)
	assert.Len(t, RawCSVRecord(r), len(RawCSVHeader))
}

func TestCanonicalCSVRecord_MatchesHeader(t *testing.T) {
	rec := CanonicalCSVRecord(sampleVideo())
	require.Len(t, rec, len(CanonicalCSVHeader))
	assert.Equal(t, "v1", rec[1])
	assert.Equal(t, "500", rec[16])
}
