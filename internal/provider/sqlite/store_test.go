package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/vidtrend/internal/provider"
	"github.com/dwsmith1983/vidtrend/internal/provider/providertest"
	"github.com/dwsmith1983/vidtrend/pkg/types"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	store, err := New(ctx, filepath.Join(t.TempDir(), "db", "vidtrend.db"))
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

var extracted = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func row(batch, id, channel string, cat int, views int64, length string) types.VideoRow {
	ts := extracted
	pub := extracted.Add(-2 * time.Hour)
	return types.VideoRow{
		BatchID:         batch,
		VideoID:         id,
		Title:           "t " + id,
		ChannelID:       channel,
		ChannelTitle:    "Channel " + channel,
		CategoryID:      cat,
		CategoryName:    "Cat",
		PublishTime:     &pub,
		ExtractedAt:     &ts,
		ViewCount:       views,
		LikeCount:       views / 10,
		DurationSeconds: 300,
		LengthCategory:  length,
		ViewsPerHour:    float64(views) / 2,
		LikeViewRatio:   10,
		Tags:            "[]",
		TitleHashtags:   "[]",
		AllHashtags:     `["go"]`,
		HasDescription:  true,
	}
}

func TestNew_RequiresPath(t *testing.T) {
	_, err := New(context.Background(), " ")
	assert.ErrorContains(t, err, "path is required")
}

func TestInsertVideos_RoundTripAndUpsert(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	in := row("B1", "v1", "c1", 1, 100, "1-5 min")
	n, err := store.InsertVideos(ctx, []types.VideoRow{in})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.BatchVideos(ctx, "B1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, in.VideoID, got[0].VideoID)
	assert.Equal(t, in.AllHashtags, got[0].AllHashtags)
	assert.True(t, got[0].HasDescription)
	require.NotNil(t, got[0].PublishTime)
	assert.True(t, in.PublishTime.Equal(*got[0].PublishTime))
	assert.InDelta(t, in.ViewsPerHour, got[0].ViewsPerHour, 1e-9)

	in.ViewCount = 999
	_, err = store.InsertVideos(ctx, []types.VideoRow{in})
	require.NoError(t, err)
	got, err = store.BatchVideos(ctx, "B1")
	require.NoError(t, err)
	require.Len(t, got, 1, "reloading a batch must not duplicate rows")
	assert.Equal(t, int64(999), got[0].ViewCount)
}

func TestConformance(t *testing.T) {
	providertest.RunAll(t, func(t *testing.T) provider.Backend { return setupTestStore(t) })
}

func TestAggregates(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	_, err := store.InsertVideos(ctx, []types.VideoRow{
		row("B1", "v1", "c1", 1, 100, "1-5 min"),
		row("B1", "v2", "c1", 1, 300, "< 1 min"),
		row("B1", "v3", "c2", 2, 50, "1-5 min"),
		row("B2", "v9", "c9", 9, 7, "> 20 min"),
	})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		n, err := store.ReplaceChannelStats(ctx, "B1")
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		n, err = store.ReplaceCategoryStats(ctx, "B1")
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	}

	channels, err := store.TopChannels(ctx, "B1", 10)
	require.NoError(t, err)
	require.Len(t, channels, 2, "recomputation replaces rows")
	assert.Equal(t, "c1", channels[0].ChannelID)
	assert.Equal(t, 2, channels[0].VideoCount)
	assert.InDelta(t, 200.0, channels[0].AvgViews, 1e-9)
	assert.True(t, extracted.Equal(channels[0].ExtractedAt))

	cats, err := store.CategorySummary(ctx, "B1")
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, 1, cats[0].CategoryID)
	assert.InDelta(t, 300.0, cats[0].AvgDuration, 1e-9)

	_, err = store.ReplaceHashtagStats(ctx, "B1")
	assert.ErrorIs(t, err, provider.ErrExplodeUnsupported)
}

func TestHashtagFallbackStorage(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	_, err := store.InsertVideos(ctx, []types.VideoRow{row("B1", "v1", "c1", 1, 100, "1-5 min")})
	require.NoError(t, err)

	srcs, err := store.HashtagSources(ctx, "B1")
	require.NoError(t, err)
	require.Len(t, srcs, 1)
	assert.Equal(t, `["go"]`, srcs[0].AllHashtags)
	assert.True(t, extracted.Equal(srcs[0].ExtractedAt))

	stats := []types.HashtagStat{
		{Hashtag: "go", Count: 3, CategoryID: 1, CategoryName: "Cat", ExtractedAt: extracted},
		{Hashtag: "go", Count: 2, CategoryID: 2, CategoryName: "Other"},
		{Hashtag: "news", Count: 4, CategoryID: 1, CategoryName: "Cat"},
	}
	require.NoError(t, store.WriteHashtagStats(ctx, "B1", stats))
	require.NoError(t, store.WriteHashtagStats(ctx, "B1", stats))

	top, err := store.TopHashtags(ctx, "B1", 10)
	require.NoError(t, err)
	assert.Equal(t, []types.HashtagCount{{Hashtag: "go", Count: 5}, {Hashtag: "news", Count: 4}}, top)
}

func TestQueries(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.LatestBatchID(ctx)
	assert.ErrorIs(t, err, provider.ErrNoBatches)

	_, err = store.InsertVideos(ctx, []types.VideoRow{
		row("20260301120000", "a", "c1", 1, 100, "1-5 min"),
		row("20260301120000", "b", "c1", 1, 900, "> 20 min"),
		row("20260301120000", "c", "c1", 1, 500, "< 1 min"),
		row("20260302120000", "z", "c1", 1, 1, "1-5 min"),
	})
	require.NoError(t, err)

	latest, err := store.LatestBatchID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "20260302120000", latest)

	batches, err := store.ListBatches(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []types.BatchInfo{
		{BatchID: "20260302120000", VideoCount: 1},
		{BatchID: "20260301120000", VideoCount: 3},
	}, batches)

	top, err := store.TopVideos(ctx, "20260301120000", types.SortViewCount, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "b", top[0].VideoID)
	assert.Equal(t, "c", top[1].VideoID)

	top, err = store.TopVideos(ctx, "20260301120000", "drop table", 1)
	require.NoError(t, err)
	require.Len(t, top, 1)

	durations, err := store.DurationStats(ctx, "20260301120000")
	require.NoError(t, err)
	require.Len(t, durations, 3)
	assert.Equal(t, "< 1 min", durations[0].LengthCategory)
	assert.Equal(t, "1-5 min", durations[1].LengthCategory)
	assert.Equal(t, "> 20 min", durations[2].LengthCategory)
}
