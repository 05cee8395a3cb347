package load

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/vidtrend/internal/testutil"
	"github.com/dwsmith1983/vidtrend/internal/transform"
	"github.com/dwsmith1983/vidtrend/pkg/types"
)

var (
	extractedAt = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	loadTime    = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

const loadTS = "20260301120000"

func clock() time.Time { return loadTime }

func sampleRaw() map[int][]types.RawRecord {
	return map[int][]types.RawRecord{
		10: {
			testutil.RawVideo("a", 10, 1000, 100, 10, extractedAt),
			testutil.RawVideo("b", 10, 2000, 50, 5, extractedAt),
		},
		20: {
			testutil.RawVideo("c", 20, 500, 0, 0, extractedAt),
		},
	}
}

func sampleCanonical(t *testing.T, raw map[int][]types.RawRecord) map[int][]types.CanonicalVideo {
	t.Helper()
	res := transform.New().Transform(context.Background(), raw)
	require.Empty(t, res.Failed)
	return res.Batches
}

type recordingNotifier struct {
	calls []*types.LoadResult
	err   error
}

func (n *recordingNotifier) Notify(_ context.Context, res *types.LoadResult) error {
	n.calls = append(n.calls, res)
	return n.err
}

func TestLoad_EmptyInputNonDemo(t *testing.T) {
	store := testutil.NewMockStore()
	c := New(store, WithClock(clock), WithSink(testutil.NewMockSink()))

	res, err := c.Load(context.Background(), nil, nil)

	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, loadTS, res.BatchID)
	assert.True(t, res.BatchIDSynthesized)
	assert.Zero(t, res.RowsInserted)
	assert.False(t, res.Synthetic)
	assert.NotEmpty(t, res.RunID)
	assert.Zero(t, store.InsertCalls())
}

func TestLoad_FullBatch(t *testing.T) {
	store := testutil.NewMockStore()
	sink := testutil.NewMockSink()
	notifier := &recordingNotifier{}
	raw := sampleRaw()
	canonical := sampleCanonical(t, raw)

	res, err := New(store, WithClock(clock), WithSink(sink), WithNotifier(notifier)).Load(context.Background(), raw, canonical)
	require.NoError(t, err)

	assert.Equal(t, "20260301100000", res.BatchID)
	assert.False(t, res.BatchIDSynthesized)
	assert.Equal(t, 3, res.RowsInserted)
	assert.Empty(t, res.AggregateErrors)
	assert.Equal(t, loadTS, res.Timestamp)

	assert.Equal(t, "mem://raw/trending_raw_cat_10_"+loadTS+".parquet", res.BlobURIs.Raw[10])
	assert.Equal(t, "mem://processed/trending_processed_cat_20_"+loadTS+".parquet", res.BlobURIs.Processed[20])
	assert.Len(t, res.BlobURIs.Raw, 2)
	assert.Len(t, res.BlobURIs.Processed, 2)

	videos := store.Videos(res.BatchID)
	require.Len(t, videos, 3)
	for _, v := range videos {
		assert.Equal(t, res.BatchID, v.BatchID)
	}
	assert.NotEmpty(t, store.HashtagStats(res.BatchID))

	require.Len(t, notifier.calls, 1)
	assert.Same(t, res, notifier.calls[0])
}

func TestLoad_RecordsWithoutIDsInEveryCategoryAreKept(t *testing.T) {
	store := testutil.NewMockStore()
	raw := map[int][]types.RawRecord{
		10: {{types.FieldTitle: "first", types.FieldCategoryID: 10.0}},
		20: {{types.FieldTitle: "second", types.FieldCategoryID: 20.0}},
	}

	res, err := New(store, WithClock(clock)).Load(context.Background(), raw, sampleCanonical(t, raw))
	require.NoError(t, err)

	assert.Equal(t, 2, res.RowsInserted)
	videos := store.Videos(res.BatchID)
	require.Len(t, videos, 2)
	assert.NotEqual(t, videos[0].VideoID, videos[1].VideoID)
}

func TestLoad_BlobFallbackToCSV(t *testing.T) {
	store := testutil.NewMockStore()
	sink := testutil.NewMockSink()
	sink.FailExt["parquet"] = errors.New("parquet writer unavailable")
	raw := sampleRaw()

	res, err := New(store, WithClock(clock), WithSink(sink)).Load(context.Background(), raw, sampleCanonical(t, raw))
	require.NoError(t, err)

	assert.Equal(t, "mem://raw/trending_raw_cat_10_"+loadTS+".csv", res.BlobURIs.Raw[10])
	assert.Equal(t, "mem://processed/trending_processed_cat_10_"+loadTS+".csv", res.BlobURIs.Processed[10])
	assert.Equal(t, "text/csv", sink.ContentType("processed/trending_processed_cat_10_"+loadTS+".csv"))
	assert.Equal(t, 3, res.RowsInserted)
}

func TestLoad_BlobFailureDoesNotBlockInsert(t *testing.T) {
	store := testutil.NewMockStore()
	sink := testutil.NewMockSink()
	sink.FailAll = errors.New("bucket gone")
	raw := sampleRaw()

	res, err := New(store, WithClock(clock), WithSink(sink)).Load(context.Background(), raw, sampleCanonical(t, raw))
	require.NoError(t, err)

	assert.Empty(t, res.BlobURIs.Raw)
	assert.Empty(t, res.BlobURIs.Processed)
	assert.Equal(t, 3, res.RowsInserted)
	assert.Empty(t, sink.Keys())
}

func TestLoad_SynthesizesMissingBatchID(t *testing.T) {
	store := testutil.NewMockStore()
	raw := sampleRaw()
	canonical := sampleCanonical(t, raw)
	for id := range canonical {
		for i := range canonical[id] {
			canonical[id][i].BatchID = ""
		}
	}

	res, err := New(store, WithClock(clock)).Load(context.Background(), raw, canonical)
	require.NoError(t, err)

	assert.True(t, res.BatchIDSynthesized)
	assert.Equal(t, loadTS, res.BatchID)
	assert.Len(t, store.Videos(loadTS), 3)
	assert.Empty(t, canonical[10][0].BatchID, "caller's rows are not mutated")
}

func TestLoad_RestampsConflictingBatchIDs(t *testing.T) {
	store := testutil.NewMockStore()
	raw := sampleRaw()
	canonical := sampleCanonical(t, raw)
	for i := range canonical[20] {
		canonical[20][i].BatchID = "20990101000000"
	}

	res, err := New(store, WithClock(clock)).Load(context.Background(), raw, canonical)
	require.NoError(t, err)

	assert.Equal(t, "20260301100000", res.BatchID)
	assert.Len(t, store.Videos(res.BatchID), 3)
	assert.Empty(t, store.Videos("20990101000000"))
}

func TestLoad_InsertFailurePropagates(t *testing.T) {
	store := testutil.NewMockStore()
	boom := errors.New("connection refused")
	store.InsertErr = boom
	notifier := &recordingNotifier{}
	raw := sampleRaw()

	res, err := New(store, WithClock(clock), WithNotifier(notifier)).Load(context.Background(), raw, sampleCanonical(t, raw))

	require.ErrorIs(t, err, boom)
	require.NotNil(t, res)
	assert.Zero(t, res.RowsInserted)
	assert.Empty(t, notifier.calls)
}

func TestLoad_AggregateFailureIsolated(t *testing.T) {
	store := testutil.NewMockStore()
	store.AggregateErrs[types.AggregateHashtag] = errors.New("hashtags locked")
	raw := sampleRaw()

	res, err := New(store, WithClock(clock)).Load(context.Background(), raw, sampleCanonical(t, raw))
	require.NoError(t, err)

	assert.Equal(t, 3, res.RowsInserted)
	require.Len(t, res.AggregateErrors, 1)
	assert.Contains(t, res.AggregateErrors[types.AggregateHashtag], "hashtags locked")

	cats, err := store.CategorySummary(context.Background(), res.BatchID)
	require.NoError(t, err)
	assert.Len(t, cats, 2)
}

func TestLoad_ReloadIsIdempotent(t *testing.T) {
	store := testutil.NewMockStore()
	raw := sampleRaw()
	canonical := sampleCanonical(t, raw)
	c := New(store, WithClock(clock))

	first, err := c.Load(context.Background(), raw, canonical)
	require.NoError(t, err)
	before, err := store.TopHashtags(context.Background(), first.BatchID, 10)
	require.NoError(t, err)

	_, err = c.Load(context.Background(), raw, canonical)
	require.NoError(t, err)
	after, err := store.TopHashtags(context.Background(), first.BatchID, 10)
	require.NoError(t, err)

	assert.Len(t, store.Videos(first.BatchID), 3)
	assert.Equal(t, before, after)
	channels, err := store.TopChannels(context.Background(), first.BatchID, 10)
	require.NoError(t, err)
	assert.Len(t, channels, 3)
}

func TestLoad_DemoModeSynthesizes(t *testing.T) {
	store := testutil.NewMockStore()

	res, err := New(store, WithClock(clock), WithDemoMode(true)).Load(context.Background(), nil, nil)
	require.NoError(t, err)

	assert.True(t, res.Synthetic)
	assert.Equal(t, SyntheticSize, res.RowsInserted)
	assert.Len(t, store.Videos(loadTS), SyntheticSize)
	assert.Empty(t, res.AggregateErrors)
}

func TestLoad_DemoModeIgnoredWithInput(t *testing.T) {
	store := testutil.NewMockStore()
	raw := sampleRaw()

	res, err := New(store, WithClock(clock), WithDemoMode(true)).Load(context.Background(), raw, sampleCanonical(t, raw))
	require.NoError(t, err)
	assert.False(t, res.Synthetic)
	assert.Equal(t, 3, res.RowsInserted)
}

func TestLoad_NotifierErrorIgnored(t *testing.T) {
	store := testutil.NewMockStore()
	notifier := &recordingNotifier{err: errors.New("queue down")}
	raw := sampleRaw()

	res, err := New(store, WithClock(clock), WithNotifier(notifier)).Load(context.Background(), raw, sampleCanonical(t, raw))
	require.NoError(t, err)
	assert.Equal(t, 3, res.RowsInserted)
	assert.Len(t, notifier.calls, 1)
}

func TestSyntheticRecords_Deterministic(t *testing.T) {
	a := SyntheticRecords("B1", loadTime, 20)
	b := SyntheticRecords("B1", loadTime, 20)
	assert.Equal(t, a, b)

	total := 0
	for id, recs := range a {
		for _, r := range recs {
			assert.Equal(t, id, r[types.FieldCategoryID])
			assert.GreaterOrEqual(t, r[types.FieldViewCount].(int64), int64(10_000))
		}
		total += len(recs)
	}
	assert.Equal(t, 20, total)
}
