package aggregate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/vidtrend/internal/testutil"
	"github.com/dwsmith1983/vidtrend/pkg/types"
)

var ts = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, store *testutil.MockStore) {
	t.Helper()
	later := ts.Add(time.Minute)
	_, err := store.InsertVideos(context.Background(), []types.VideoRow{
		{BatchID: "B", VideoID: "1", ChannelID: "c1", CategoryID: 1, CategoryName: "Music", ViewCount: 100, AllHashtags: `["a","b"]`, ExtractedAt: &ts},
		{BatchID: "B", VideoID: "2", ChannelID: "c1", CategoryID: 1, CategoryName: "Music", ViewCount: 300, AllHashtags: `["a"]`, ExtractedAt: &later},
		{BatchID: "B", VideoID: "3", ChannelID: "c2", CategoryID: 2, CategoryName: "News", ViewCount: 50, AllHashtags: `not json`},
	})
	require.NoError(t, err)
}

func TestCompute_HostFallback(t *testing.T) {
	store := testutil.NewMockStore()
	seed(t, store)

	failed := New(store).Compute(context.Background(), "B")
	assert.Empty(t, failed)

	tags := store.HashtagStats("B")
	require.Len(t, tags, 2)
	assert.Equal(t, "a", tags[0].Hashtag)
	assert.Equal(t, 2, tags[0].Count)
	assert.True(t, ts.Add(time.Minute).Equal(tags[0].ExtractedAt))
	assert.Equal(t, "b", tags[1].Hashtag)

	channels, err := store.TopChannels(context.Background(), "B", 10)
	require.NoError(t, err)
	require.Len(t, channels, 2)
	assert.InDelta(t, 200.0, channels[0].AvgViews, 1e-9)
}

func TestCompute_NativeExplode(t *testing.T) {
	store := testutil.NewMockStore()
	store.NativeExplode = true
	seed(t, store)

	assert.Empty(t, New(store).Compute(context.Background(), "B"))
	assert.Len(t, store.HashtagStats("B"), 2)
}

func TestCompute_Idempotent(t *testing.T) {
	store := testutil.NewMockStore()
	seed(t, store)
	calc := New(store)

	calc.Compute(context.Background(), "B")
	calc.Compute(context.Background(), "B")

	top, err := store.TopHashtags(context.Background(), "B", 10)
	require.NoError(t, err)
	assert.Equal(t, []types.HashtagCount{{Hashtag: "a", Count: 2}, {Hashtag: "b", Count: 1}}, top)
}

func TestCompute_FailureIsolation(t *testing.T) {
	store := testutil.NewMockStore()
	seed(t, store)
	boom := errors.New("hashtag table locked")
	store.AggregateErrs[types.AggregateHashtag] = boom

	failed := New(store).Compute(context.Background(), "B")

	require.Len(t, failed, 1)
	assert.ErrorIs(t, failed[types.AggregateHashtag], boom)

	cats, err := store.CategorySummary(context.Background(), "B")
	require.NoError(t, err)
	assert.Len(t, cats, 2, "category aggregate still computed")
	channels, err := store.TopChannels(context.Background(), "B", 10)
	require.NoError(t, err)
	assert.Len(t, channels, 2, "channel aggregate still computed")
}

func TestCompute_ChannelFailureDoesNotBlockOthers(t *testing.T) {
	store := testutil.NewMockStore()
	seed(t, store)
	store.AggregateErrs[types.AggregateChannel] = errors.New("nope")

	failed := New(store).Compute(context.Background(), "B")
	assert.Contains(t, failed, types.AggregateChannel)
	assert.NotContains(t, failed, types.AggregateCategory)
	assert.NotContains(t, failed, types.AggregateHashtag)
	assert.Len(t, store.HashtagStats("B"), 2)
}

func TestExplodeHashtags(t *testing.T) {
	early := ts
	late := ts.Add(time.Hour)
	stats := ExplodeHashtags("B", []types.HashtagSource{
		{CategoryID: 2, CategoryName: "News", AllHashtags: `["x","y"]`, ExtractedAt: early},
		{CategoryID: 1, CategoryName: "Music", AllHashtags: `["x"]`, ExtractedAt: late},
		{CategoryID: 2, CategoryName: "News", AllHashtags: `["x"]`, ExtractedAt: late},
		{CategoryID: 3, CategoryName: "Gaming", AllHashtags: ``},
		{CategoryID: 3, CategoryName: "Gaming", AllHashtags: `{"bad":1}`},
		{CategoryID: 3, CategoryName: "Gaming", AllHashtags: `[""]`},
	}, nil)

	require.Len(t, stats, 3)
	assert.Equal(t, types.HashtagStat{BatchID: "B", Hashtag: "x", Count: 2, CategoryID: 2, CategoryName: "News", ExtractedAt: late}, stats[0])
	assert.Equal(t, "x", stats[1].Hashtag)
	assert.Equal(t, 1, stats[1].CategoryID)
	assert.Equal(t, "y", stats[2].Hashtag)
	assert.True(t, early.Equal(stats[2].ExtractedAt))
}

func TestExplodeHashtags_Empty(t *testing.T) {
	assert.Empty(t, ExplodeHashtags("B", nil, nil))
}
