// Package providertest is a shared conformance suite for provider.Backend
// implementations. Each backend's tests call RunAll with a factory that
// returns a fresh, migrated store.
package providertest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/vidtrend/internal/aggregate"
	"github.com/dwsmith1983/vidtrend/internal/metric"
	"github.com/dwsmith1983/vidtrend/internal/normalize"
	"github.com/dwsmith1983/vidtrend/internal/provider"
	"github.com/dwsmith1983/vidtrend/internal/transform"
	"github.com/dwsmith1983/vidtrend/pkg/types"
)

// Open returns an empty, migrated backend. Implementations register their
// own cleanup on t.
type Open func(t *testing.T) provider.Backend

// RunAll runs every conformance test against backends produced by open.
func RunAll(t *testing.T, open Open) {
	t.Run("Upsert", func(t *testing.T) { testUpsert(t, open(t)) })
	t.Run("EmptyInsert", func(t *testing.T) { testEmptyInsert(t, open(t)) })
	t.Run("Aggregates", func(t *testing.T) { testAggregates(t, open(t)) })
	t.Run("Hashtags", func(t *testing.T) { testHashtags(t, open(t)) })
	t.Run("Batches", func(t *testing.T) { testBatches(t, open(t)) })
	t.Run("TopVideos", func(t *testing.T) { testTopVideos(t, open(t)) })
	t.Run("DurationStats", func(t *testing.T) { testDurationStats(t, open(t)) })
	t.Run("CanonicalRoundTrip", func(t *testing.T) { testCanonicalRoundTrip(t, open(t)) })
}

var extracted = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// Row builds a canonical row with two hours since publish.
func Row(batch, id, channel string, cat int, views int64, length string) types.VideoRow {
	ts := extracted
	pub := extracted.Add(-2 * time.Hour)
	return types.VideoRow{
		BatchID:             batch,
		VideoID:             id,
		Title:               "t " + id,
		ChannelID:           channel,
		ChannelTitle:        "Channel " + channel,
		CategoryID:          cat,
		CategoryName:        "Cat",
		PublishTime:         &pub,
		ExtractedAt:         &ts,
		ViewCount:           views,
		LikeCount:           views / 10,
		DurationSeconds:     300,
		LengthCategory:      length,
		HoursSincePublished: 2,
		ViewsPerHour:        float64(views) / 2,
		LikeViewRatio:       10,
		Tags:                "[]",
		TitleHashtags:       "[]",
		DescriptionHashtags: "[]",
		AllHashtags:         "[]",
		HasDescription:      true,
	}
}

func insert(t *testing.T, b provider.Backend, rows ...types.VideoRow) {
	t.Helper()
	n, err := b.InsertVideos(context.Background(), rows)
	require.NoError(t, err)
	require.Equal(t, len(rows), n)
}

func testUpsert(t *testing.T, b provider.Backend) {
	ctx := context.Background()
	in := Row("B1", "v1", "c1", 1, 100, metric.Length1To5Min)
	insert(t, b, in)

	in.ViewCount = 999
	in.Title = "renamed"
	insert(t, b, in)

	got, err := b.BatchVideos(ctx, "B1")
	require.NoError(t, err)
	require.Len(t, got, 1, "reloading a batch must not duplicate rows")
	assert.Equal(t, int64(999), got[0].ViewCount)
	assert.Equal(t, "renamed", got[0].Title)
	require.NotNil(t, got[0].ExtractedAt)
	assert.True(t, extracted.Equal(*got[0].ExtractedAt))
}

func testEmptyInsert(t *testing.T, b provider.Backend) {
	n, err := b.InsertVideos(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testAggregates(t *testing.T, b provider.Backend) {
	ctx := context.Background()
	insert(t, b,
		Row("B1", "v1", "c1", 1, 100, metric.Length1To5Min),
		Row("B1", "v2", "c1", 1, 300, metric.LengthUnder1Min),
		Row("B1", "v3", "c2", 2, 50, metric.Length1To5Min),
		Row("B2", "v9", "c9", 9, 7, metric.LengthOver20Min),
	)

	for range 2 {
		n, err := b.ReplaceChannelStats(ctx, "B1")
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		n, err = b.ReplaceCategoryStats(ctx, "B1")
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	}

	channels, err := b.TopChannels(ctx, "B1", 10)
	require.NoError(t, err)
	require.Len(t, channels, 2, "recomputation replaces rows")
	assert.Equal(t, "c1", channels[0].ChannelID)
	assert.Equal(t, 2, channels[0].VideoCount)
	assert.InDelta(t, 200.0, channels[0].AvgViews, 1e-9)

	cats, err := b.CategorySummary(ctx, "B1")
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, 1, cats[0].CategoryID)
	assert.Equal(t, 2, cats[0].VideoCount)
	assert.InDelta(t, 100.0, cats[0].AvgViewsPerHour, 1e-9)

	other, err := b.TopChannels(ctx, "B2", 10)
	require.NoError(t, err)
	assert.Empty(t, other, "aggregates are scoped to the recomputed batch")
}

func testHashtags(t *testing.T, b provider.Backend) {
	ctx := context.Background()
	r1 := Row("B1", "v1", "c1", 1, 100, metric.Length1To5Min)
	r1.AllHashtags = `["#go","#news"]`
	r2 := Row("B1", "v2", "c1", 1, 100, metric.Length1To5Min)
	r2.AllHashtags = `["#go"]`
	r3 := Row("B1", "v3", "c2", 2, 100, metric.Length1To5Min)
	r3.AllHashtags = `["#go"]`
	insert(t, b, r1, r2, r3)

	// Compute exercises the native path or the host fallback, whichever the
	// backend supports.
	failed := aggregate.New(b).Compute(ctx, "B1")
	assert.Empty(t, failed)
	failed = aggregate.New(b).Compute(ctx, "B1")
	assert.Empty(t, failed)

	tags, err := b.TopHashtags(ctx, "B1", 10)
	require.NoError(t, err)
	assert.Equal(t, []types.HashtagCount{
		{Hashtag: "#go", Count: 3},
		{Hashtag: "#news", Count: 1},
	}, tags)
}

func testBatches(t *testing.T, b provider.Backend) {
	ctx := context.Background()
	_, err := b.LatestBatchID(ctx)
	assert.ErrorIs(t, err, provider.ErrNoBatches)

	insert(t, b,
		Row("20260301_100000", "v1", "c1", 1, 1, metric.Length1To5Min),
		Row("20260302_100000", "v1", "c1", 1, 1, metric.Length1To5Min),
		Row("20260302_100000", "v2", "c1", 1, 1, metric.Length1To5Min),
	)

	latest, err := b.LatestBatchID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "20260302_100000", latest)

	batches, err := b.ListBatches(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []types.BatchInfo{
		{BatchID: "20260302_100000", VideoCount: 2},
		{BatchID: "20260301_100000", VideoCount: 1},
	}, batches)

	batches, err = b.ListBatches(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, batches, 1)
}

func testTopVideos(t *testing.T, b provider.Backend) {
	ctx := context.Background()
	low := Row("B1", "low", "c1", 1, 100, metric.Length1To5Min)
	low.LikeViewRatio = 30
	mid := Row("B1", "mid", "c1", 1, 500, metric.Length1To5Min)
	mid.ViewsPerHour = 5000
	mid.LikeViewRatio = 20
	high := Row("B1", "high", "c1", 1, 1000, metric.Length1To5Min)
	high.LikeViewRatio = 10
	insert(t, b, low, mid, high)

	tests := []struct {
		sort types.VideoSort
		want []string
	}{
		{types.SortViewCount, []string{"high", "mid", "low"}},
		{types.SortViewsPerHour, []string{"mid", "high", "low"}},
		{types.SortLikeViewRatio, []string{"low", "mid", "high"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.sort), func(t *testing.T) {
			got, err := b.TopVideos(ctx, "B1", tt.sort, 10)
			require.NoError(t, err)
			ids := make([]string, len(got))
			for i, v := range got {
				ids[i] = v.VideoID
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	got, err := b.TopVideos(ctx, "B1", types.SortViewCount, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func testDurationStats(t *testing.T, b provider.Backend) {
	ctx := context.Background()
	insert(t, b,
		Row("B1", "v1", "c1", 1, 100, metric.LengthOver20Min),
		Row("B1", "v2", "c1", 1, 300, metric.LengthUnder1Min),
		Row("B1", "v3", "c1", 1, 500, metric.LengthUnder1Min),
		Row("B1", "v4", "c1", 1, 50, metric.Length5To10Min),
	)

	stats, err := b.DurationStats(ctx, "B1")
	require.NoError(t, err)
	require.Len(t, stats, 3)
	assert.Equal(t, metric.LengthUnder1Min, stats[0].LengthCategory)
	assert.Equal(t, 2, stats[0].VideoCount)
	assert.InDelta(t, 400.0, stats[0].AvgViews, 1e-9)
	assert.Equal(t, metric.Length5To10Min, stats[1].LengthCategory)
	assert.Equal(t, metric.LengthOver20Min, stats[2].LengthCategory)
}

// testCanonicalRoundTrip sends transformed records through the relational
// write and back, including id-less records from two categories.
func testCanonicalRoundTrip(t *testing.T, b provider.Backend) {
	ctx := context.Background()
	raw := map[int][]types.RawRecord{
		10: {
			{
				types.FieldVideoID:      "full",
				types.FieldTitle:        "Launch day #go #release",
				types.FieldChannelID:    "c1",
				types.FieldChannelTitle: "Gophers",
				types.FieldCategoryID:   10.0,
				types.FieldCategoryName: "Music",
				types.FieldPublishTime:  "2026-03-01T09:30:00Z",
				types.FieldExtractedAt:  "2026-03-01T12:00:00Z",
				types.FieldViewCount:    "12345",
				types.FieldLikeCount:    678.0,
				types.FieldCommentCount: 90,
				types.FieldDuration:     "PT4M13S",
				types.FieldTags:         []any{"go", "gopher"},
				types.FieldDescription:  "notes #release #changelog",
				types.FieldThumbnailURL: "https://i.ytimg.com/vi/full/default.jpg",
			},
			{types.FieldTitle: "no id here", types.FieldCategoryID: 10.0},
		},
		20: {
			{types.FieldTitle: "no id either", types.FieldCategoryID: 20.0},
		},
	}
	res := transform.New(transform.WithClock(func() time.Time { return extracted })).Transform(ctx, raw)
	require.Empty(t, res.Failed)

	var videos []types.CanonicalVideo
	for _, id := range []int{10, 20} {
		videos = append(videos, res.Batches[id]...)
	}
	rows := normalize.Reconcile(videos, res.BatchID)
	require.Len(t, rows, 3, "every record of the combined frame is kept")
	insert(t, b, rows...)

	stored, err := b.BatchVideos(ctx, res.BatchID)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	byID := make(map[string]types.CanonicalVideo, len(stored))
	for _, r := range stored {
		byID[r.VideoID] = normalize.FromRow(r)
	}

	for _, want := range videos {
		got, ok := byID[want.VideoID]
		require.True(t, ok, "video %s missing after reload", want.VideoID)
		assertCanonicalEqual(t, want, got)
	}
}

func assertCanonicalEqual(t *testing.T, want, got types.CanonicalVideo) {
	t.Helper()
	assert.Equal(t, want.BatchID, got.BatchID)
	assert.Equal(t, want.Title, got.Title)
	assert.Equal(t, want.ChannelID, got.ChannelID)
	assert.Equal(t, want.ChannelTitle, got.ChannelTitle)
	assert.Equal(t, want.CategoryID, got.CategoryID)
	assert.Equal(t, want.CategoryName, got.CategoryName)
	assert.True(t, want.PublishTime.Equal(got.PublishTime), "publish_time %v != %v", want.PublishTime, got.PublishTime)
	assert.True(t, want.ExtractedAt.Equal(got.ExtractedAt), "extracted_at %v != %v", want.ExtractedAt, got.ExtractedAt)
	assert.Equal(t, want.ViewCount, got.ViewCount)
	assert.Equal(t, want.LikeCount, got.LikeCount)
	assert.Equal(t, want.CommentCount, got.CommentCount)
	assert.Equal(t, want.DurationSeconds, got.DurationSeconds)
	assert.Equal(t, want.LengthCategory, got.LengthCategory)
	assert.InDelta(t, want.HoursSincePublished, got.HoursSincePublished, 1e-9)
	assert.InDelta(t, want.ViewsPerHour, got.ViewsPerHour, 1e-6)
	assert.InDelta(t, want.LikeViewRatio, got.LikeViewRatio, 1e-9)
	assert.InDelta(t, want.CommentViewRatio, got.CommentViewRatio, 1e-9)
	assert.Equal(t, want.ThumbnailURL, got.ThumbnailURL)
	assert.Equal(t, want.Tags, got.Tags)
	assert.Equal(t, want.TagsList, got.TagsList)
	assert.ElementsMatch(t, want.TitleHashtags, got.TitleHashtags)
	assert.ElementsMatch(t, want.DescriptionHashtags, got.DescriptionHashtags)
	assert.ElementsMatch(t, want.AllHashtags, got.AllHashtags)
	assert.Equal(t, want.TitleLength, got.TitleLength)
	assert.Equal(t, want.TitleWordCount, got.TitleWordCount)
	assert.Equal(t, want.DescriptionLength, got.DescriptionLength)
	assert.Equal(t, want.HasDescription, got.HasDescription)
}
