package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/dwsmith1983/vidtrend/internal/analysis"
	"github.com/dwsmith1983/vidtrend/internal/cache"
	"github.com/dwsmith1983/vidtrend/internal/load"
	"github.com/dwsmith1983/vidtrend/internal/testutil"
	"github.com/dwsmith1983/vidtrend/internal/transform"
	"github.com/dwsmith1983/vidtrend/pkg/types"
)

var (
	extractedAt = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	runTime     = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

func clock() time.Time { return runTime }

type fakeSource struct {
	raw     map[int][]types.RawRecord
	err     error
	started chan struct{}
	block   chan struct{}
}

func (f *fakeSource) Fetch(ctx context.Context) (map[int][]types.RawRecord, error) {
	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.raw, f.err
}

func sampleRaw() map[int][]types.RawRecord {
	return map[int][]types.RawRecord{
		10: {
			testutil.RawVideo("a", 10, 1000, 100, 10, extractedAt),
			testutil.RawVideo("b", 10, 2000, 50, 5, extractedAt),
		},
		20: {testutil.RawVideo("c", 20, 500, 0, 0, extractedAt)},
	}
}

type fixture struct {
	store *testutil.MockStore
	sink  *testutil.MockSink
	spans *tracetest.SpanRecorder
}

func newRunner(t *testing.T, src *fakeSource) (*Runner, *fixture) {
	t.Helper()
	f := &fixture{
		store: testutil.NewMockStore(),
		sink:  testutil.NewMockSink(),
		spans: tracetest.NewSpanRecorder(),
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(f.spans))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	loader := load.New(f.store, load.WithSink(f.sink), load.WithClock(clock))
	r := New(src, transform.New(transform.WithClock(clock)), loader,
		WithReports(analysis.NewService(f.store), f.sink, analysis.DefaultAnalysisPrefix, 10),
		WithTracerProvider(tp),
		WithClock(clock),
	)
	return r, f
}

func spanNames(rec *tracetest.SpanRecorder) []string {
	var names []string
	for _, s := range rec.Ended() {
		names = append(names, s.Name())
	}
	return names
}

func TestRun_EndToEnd(t *testing.T) {
	r, f := newRunner(t, &fakeSource{raw: sampleRaw()})

	summary, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.RawRecords)
	assert.Equal(t, 3, summary.TransformedRecords)
	assert.Empty(t, summary.FailedCategories)
	require.NotNil(t, summary.Load)
	assert.Equal(t, 3, summary.Load.RowsInserted)
	assert.Len(t, f.store.Videos(summary.Load.BatchID), 3)
	assert.True(t, strings.HasPrefix(summary.ReportURI, "mem://analysis/analysis_results_"), summary.ReportURI)
	assert.True(t, strings.HasSuffix(summary.ReportURI, ".json"))

	assert.ElementsMatch(t,
		[]string{"pipeline.extract", "pipeline.transform", "pipeline.load", "pipeline.report", "pipeline.run"},
		spanNames(f.spans))
}

func TestRun_ReloadInvalidatesQueryCache(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMockStore()
	svc := analysis.NewService(store, analysis.WithCache(cache.NewWithClient(testutil.NewFakeRedis(), time.Minute, nil)))
	src := &fakeSource{raw: sampleRaw()}
	r := New(src, transform.New(transform.WithClock(clock)), load.New(store, load.WithClock(clock)),
		WithReports(svc, testutil.NewMockSink(), analysis.DefaultAnalysisPrefix, 10),
		WithClock(clock),
	)

	first, err := r.Run(ctx)
	require.NoError(t, err)
	videos, err := svc.TopVideos(ctx, first.Load.BatchID, types.SortViewCount, 10)
	require.NoError(t, err)
	require.Len(t, videos, 3)

	src.raw = sampleRaw()
	src.raw[20] = append(src.raw[20], testutil.RawVideo("d", 20, 9000, 0, 0, extractedAt))
	second, err := r.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, first.Load.BatchID, second.Load.BatchID)

	videos, err = svc.TopVideos(ctx, second.Load.BatchID, types.SortViewCount, 10)
	require.NoError(t, err)
	require.Len(t, videos, 4)
	assert.Equal(t, "d", videos[0].VideoID)
}

func TestRun_ExtractFailure(t *testing.T) {
	r, f := newRunner(t, &fakeSource{err: errors.New("quota exceeded")})

	summary, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extract: quota exceeded")
	require.NotNil(t, summary)
	assert.Nil(t, summary.Load)
	assert.Zero(t, f.store.InsertCalls())
	assert.Empty(t, f.sink.Keys())
}

func TestRun_LoadFailure(t *testing.T) {
	r, f := newRunner(t, &fakeSource{raw: sampleRaw()})
	f.store.InsertErr = errors.New("connection refused")

	summary, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load:")
	require.NotNil(t, summary.Load)
	assert.Empty(t, summary.ReportURI)
}

func TestRun_ReportFailureDoesNotFailRun(t *testing.T) {
	r, f := newRunner(t, &fakeSource{raw: sampleRaw()})
	r.sink = &failingSink{MockSink: f.sink}

	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Load.RowsInserted)
	assert.Empty(t, summary.ReportURI)
}

func TestRun_NoRowsSkipsReport(t *testing.T) {
	r, f := newRunner(t, &fakeSource{raw: map[int][]types.RawRecord{}})

	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Load.RowsInserted)
	assert.Empty(t, summary.ReportURI)
	assert.NotContains(t, spanNames(f.spans), "pipeline.report")
}

func TestTryRun_RejectsOverlap(t *testing.T) {
	src := &fakeSource{raw: sampleRaw(), started: make(chan struct{}), block: make(chan struct{})}
	r, _ := newRunner(t, src)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := r.TryRun(context.Background())
		assert.NoError(t, err)
	}()

	select {
	case <-src.started:
	case <-time.After(time.Second):
		t.Fatal("first run never reached extract")
	}

	_, err := r.TryRun(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(src.block)
	wg.Wait()
}

func TestStatus(t *testing.T) {
	r := &Runner{}
	tests := []struct {
		name    string
		summary *types.RunSummary
		err     error
		want    string
	}{
		{"error", &types.RunSummary{}, errors.New("x"), "failed"},
		{"no load", &types.RunSummary{}, nil, "failed"},
		{"ok", &types.RunSummary{Load: &types.LoadResult{}}, nil, "ok"},
		{"dropped category", &types.RunSummary{Load: &types.LoadResult{}, FailedCategories: map[int]string{1: "x"}}, nil, "degraded"},
		{"aggregate failure", &types.RunSummary{Load: &types.LoadResult{
			AggregateErrors: map[types.AggregateKind]string{types.AggregateChannel: "x"},
		}}, nil, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.status(tt.summary, tt.err))
		})
	}
}

type failingSink struct {
	*testutil.MockSink
}

func (f *failingSink) Put(context.Context, string, string, []byte, string) (string, error) {
	return "", errors.New("bucket gone")
}
