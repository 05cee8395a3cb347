package analysis

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/vidtrend/internal/aggregate"
	"github.com/dwsmith1983/vidtrend/internal/cache"
	"github.com/dwsmith1983/vidtrend/internal/testutil"
	"github.com/dwsmith1983/vidtrend/pkg/types"
)

var now = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// countingQuerier counts category summary calls to observe caching.
type countingQuerier struct {
	*testutil.MockStore
	categoryCalls int
}

func (c *countingQuerier) CategorySummary(ctx context.Context, batchID string) ([]types.CategoryStat, error) {
	c.categoryCalls++
	return c.MockStore.CategorySummary(ctx, batchID)
}

func seeded(t *testing.T) *testutil.MockStore {
	t.Helper()
	monday := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	sunday := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	store := testutil.NewMockStore()
	_, err := store.InsertVideos(context.Background(), []types.VideoRow{
		{BatchID: "B", VideoID: "1", ChannelID: "c1", CategoryID: 10, CategoryName: "Music", ViewCount: 100, ViewsPerHour: 10, LikeViewRatio: 5, AllHashtags: `["x"]`, PublishTime: &monday, LengthCategory: "1-5 min"},
		{BatchID: "B", VideoID: "2", ChannelID: "c2", CategoryID: 10, CategoryName: "Music", ViewCount: 300, ViewsPerHour: 30, LikeViewRatio: 1, AllHashtags: `["x","y"]`, PublishTime: &sunday, LengthCategory: "< 1 min"},
		{BatchID: "B", VideoID: "3", ChannelID: "c2", CategoryID: 20, CategoryName: "Gaming", ViewCount: 200, ViewsPerHour: 20, LikeViewRatio: 9, AllHashtags: `[]`, PublishTime: &monday, LengthCategory: "1-5 min"},
	})
	require.NoError(t, err)
	require.Empty(t, aggregate.New(store).Compute(context.Background(), "B"))
	return store
}

func TestService_ResolveBatch(t *testing.T) {
	svc := NewService(seeded(t))

	id, err := svc.ResolveBatch(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "B", id)

	id, err = svc.ResolveBatch(context.Background(), "X")
	require.NoError(t, err)
	assert.Equal(t, "X", id)

	_, err = NewService(testutil.NewMockStore()).ResolveBatch(context.Background(), "")
	assert.Error(t, err)
}

func TestService_TopVideos(t *testing.T) {
	svc := NewService(seeded(t))

	byVPH, err := svc.TopVideos(context.Background(), "B", types.SortViewsPerHour, 2)
	require.NoError(t, err)
	require.Len(t, byVPH, 2)
	assert.Equal(t, "2", byVPH[0].VideoID)

	byRatio, err := svc.TopVideos(context.Background(), "B", types.SortLikeViewRatio, 0)
	require.NoError(t, err)
	assert.Equal(t, "3", byRatio[0].VideoID)

	_, err = svc.TopVideos(context.Background(), "B", "title; DROP TABLE", 5)
	assert.ErrorContains(t, err, "unsupported sort")
}

func TestService_CachesByBatch(t *testing.T) {
	q := &countingQuerier{MockStore: seeded(t)}
	rdb := testutil.NewFakeRedis()
	svc := NewService(q, WithCache(cache.NewWithClient(rdb, time.Minute, nil)))

	for range 3 {
		cats, err := svc.CategorySummary(context.Background(), "B")
		require.NoError(t, err)
		assert.Len(t, cats, 2)
	}
	assert.Equal(t, 1, q.categoryCalls)
	assert.True(t, rdb.Has(cache.Key("gen", "B")))
}

func TestService_InvalidateAfterReload(t *testing.T) {
	ctx := context.Background()
	q := &countingQuerier{MockStore: seeded(t)}
	svc := NewService(q, WithCache(cache.NewWithClient(testutil.NewFakeRedis(), time.Minute, nil)))

	cats, err := svc.CategorySummary(ctx, "B")
	require.NoError(t, err)
	require.Len(t, cats, 2)

	_, err = q.InsertVideos(ctx, []types.VideoRow{
		{BatchID: "B", VideoID: "4", ChannelID: "c3", CategoryID: 30, CategoryName: "News", AllHashtags: `[]`, LengthCategory: "1-5 min"},
	})
	require.NoError(t, err)
	require.Empty(t, aggregate.New(q.MockStore).Compute(ctx, "B"))

	cats, err = svc.CategorySummary(ctx, "B")
	require.NoError(t, err)
	assert.Len(t, cats, 2, "cached until invalidated")

	require.NoError(t, svc.Invalidate(ctx, "B"))
	cats, err = svc.CategorySummary(ctx, "B")
	require.NoError(t, err)
	assert.Len(t, cats, 3)
	assert.Equal(t, 2, q.categoryCalls)
}

func TestService_WithoutCache(t *testing.T) {
	q := &countingQuerier{MockStore: seeded(t)}
	svc := NewService(q)
	for range 2 {
		_, err := svc.CategorySummary(context.Background(), "B")
		require.NoError(t, err)
	}
	assert.Equal(t, 2, q.categoryCalls)
}

func TestBuildReport(t *testing.T) {
	svc := NewService(seeded(t))

	r, err := svc.BuildReport(context.Background(), "B", 10, now)
	require.NoError(t, err)

	assert.Equal(t, "B", r.BatchID)
	assert.Equal(t, now, r.GeneratedAt)
	assert.Len(t, r.Categories, 2)
	assert.Len(t, r.TopVideos, 3)
	assert.Equal(t, "3", r.TopByLikeRatio[0].VideoID)
	assert.Len(t, r.TopChannels, 2)
	assert.Equal(t, []types.HashtagCount{{Hashtag: "x", Count: 2}, {Hashtag: "y", Count: 1}}, r.Hashtags)
	assert.Len(t, r.Durations, 2)

	require.Len(t, r.PublishDays, 2)
	assert.Equal(t, "Monday", r.PublishDays[0].Slot)
	assert.Equal(t, 2, r.PublishDays[0].VideoCount)
	assert.InDelta(t, 150.0, r.PublishDays[0].AvgViews, 1e-9)
	assert.Equal(t, "Sunday", r.PublishDays[1].Slot)
	assert.Equal(t, []string{"8", "20"}, []string{r.PublishHours[0].Slot, r.PublishHours[1].Slot})
}

func TestBuildReport_UnknownBatch(t *testing.T) {
	_, err := NewService(seeded(t)).BuildReport(context.Background(), "nope", 10, now)
	assert.ErrorIs(t, err, ErrBatchNotFound)
}

func TestPublishSlots_SkipsMissingPublishTime(t *testing.T) {
	days, hours := PublishSlots([]types.VideoRow{{VideoID: "a"}})
	assert.Empty(t, days)
	assert.Empty(t, hours)
}

func TestPublish(t *testing.T) {
	sink := testutil.NewMockSink()
	report := &types.AnalysisReport{BatchID: "B", GeneratedAt: now}

	uri, err := Publish(context.Background(), sink, nil, "", report, "20260302090000")
	require.NoError(t, err)
	assert.Equal(t, "mem://analysis/analysis_results_20260302090000.json", uri)

	data, err := sink.Get(context.Background(), uri)
	require.NoError(t, err)
	var decoded types.AnalysisReport
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "B", decoded.BatchID)
}

func TestPublish_Failure(t *testing.T) {
	sink := testutil.NewMockSink()
	sink.FailAll = assert.AnError

	_, err := Publish(context.Background(), sink, nil, "reports/", &types.AnalysisReport{}, "ts")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "publishing analysis report"))
}
