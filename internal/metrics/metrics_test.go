package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/dwsmith1983/vidtrend/pkg/types"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sum(t *testing.T, agg metricdata.Aggregation) int64 {
	t.Helper()
	s, ok := agg.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum, got %T", agg)
	var total int64
	for _, dp := range s.DataPoints {
		total += dp.Value
	}
	return total
}

func newRecorder(t *testing.T) (*Recorder, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	r, err := New(provider.Meter(MeterName))
	require.NoError(t, err)
	return r, reader
}

func TestRecorder_TransformAndLoad(t *testing.T) {
	r, reader := newRecorder(t)
	ctx := context.Background()

	r.Transform(ctx, &types.TransformResult{
		Batches: map[int][]types.CanonicalVideo{1: make([]types.CanonicalVideo, 3)},
		Failed:  map[int]string{2: "boom"},
	}, time.Second)
	r.Load(ctx, &types.LoadResult{
		RowsInserted:    3,
		BlobURIs:        types.BlobURIs{Raw: map[int]string{1: "a"}, Processed: map[int]string{1: "b"}},
		AggregateErrors: map[types.AggregateKind]string{types.AggregateHashtag: "x"},
	}, 2*time.Second)
	r.Run(ctx, StatusDegraded)

	got := collect(t, reader)
	assert.EqualValues(t, 3, sum(t, got["vidtrend.transform.records"]))
	assert.EqualValues(t, 1, sum(t, got["vidtrend.transform.categories_dropped"]))
	assert.EqualValues(t, 3, sum(t, got["vidtrend.load.rows"]))
	assert.EqualValues(t, 2, sum(t, got["vidtrend.load.artifacts"]))
	assert.EqualValues(t, 1, sum(t, got["vidtrend.load.aggregate_failures"]))
	assert.EqualValues(t, 1, sum(t, got["vidtrend.pipeline.runs"]))

	hist, ok := got["vidtrend.pipeline.stage_duration"].(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.Len(t, hist.DataPoints, 2)
}

func TestRecorder_Nil(t *testing.T) {
	var r *Recorder
	ctx := context.Background()
	r.Transform(ctx, &types.TransformResult{}, time.Second)
	r.Load(ctx, &types.LoadResult{}, time.Second)
	r.Stage(ctx, "report", time.Second)
	r.Run(ctx, StatusOK)
}

func TestNew_GlobalMeter(t *testing.T) {
	r, err := New(nil)
	require.NoError(t, err)
	r.Run(context.Background(), StatusOK)
}
