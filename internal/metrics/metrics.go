// Package metrics records pipeline instruments through OpenTelemetry.
package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/dwsmith1983/vidtrend/pkg/types"
)

// MeterName is the instrumentation scope of every instrument.
const MeterName = "github.com/dwsmith1983/vidtrend"

// Run statuses.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusFailed   = "failed"
)

// Recorder holds the pipeline instruments. A nil Recorder records nothing.
type Recorder struct {
	records           metric.Int64Counter
	categoriesDropped metric.Int64Counter
	rowsLoaded        metric.Int64Counter
	blobArtifacts     metric.Int64Counter
	aggregateFailures metric.Int64Counter
	runs              metric.Int64Counter
	stageDuration     metric.Float64Histogram
}

// New creates a Recorder on meter. A nil meter uses the global provider.
func New(meter metric.Meter) (*Recorder, error) {
	if meter == nil {
		meter = otel.Meter(MeterName)
	}
	r := &Recorder{}
	var err error
	if r.records, err = meter.Int64Counter("vidtrend.transform.records",
		metric.WithDescription("Canonical records produced by transform")); err != nil {
		return nil, fmt.Errorf("creating records counter: %w", err)
	}
	if r.categoriesDropped, err = meter.Int64Counter("vidtrend.transform.categories_dropped",
		metric.WithDescription("Categories dropped by transform")); err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}
	if r.rowsLoaded, err = meter.Int64Counter("vidtrend.load.rows",
		metric.WithDescription("Rows inserted into the relational store")); err != nil {
		return nil, fmt.Errorf("creating rows counter: %w", err)
	}
	if r.blobArtifacts, err = meter.Int64Counter("vidtrend.load.artifacts",
		metric.WithDescription("Blob artifacts written")); err != nil {
		return nil, fmt.Errorf("creating artifacts counter: %w", err)
	}
	if r.aggregateFailures, err = meter.Int64Counter("vidtrend.load.aggregate_failures",
		metric.WithDescription("Aggregate recomputations that failed")); err != nil {
		return nil, fmt.Errorf("creating aggregate counter: %w", err)
	}
	if r.runs, err = meter.Int64Counter("vidtrend.pipeline.runs",
		metric.WithDescription("Pipeline runs by status")); err != nil {
		return nil, fmt.Errorf("creating runs counter: %w", err)
	}
	if r.stageDuration, err = meter.Float64Histogram("vidtrend.pipeline.stage_duration",
		metric.WithDescription("Stage wall time"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}
	return r, nil
}

// Transform records the outcome of a transform.
func (r *Recorder) Transform(ctx context.Context, res *types.TransformResult, d time.Duration) {
	if r == nil || res == nil {
		return
	}
	r.records.Add(ctx, int64(res.Rows()))
	r.categoriesDropped.Add(ctx, int64(len(res.Failed)))
	r.stage(ctx, "transform", d)
}

// Load records the outcome of a load.
func (r *Recorder) Load(ctx context.Context, res *types.LoadResult, d time.Duration) {
	if r == nil || res == nil {
		return
	}
	r.rowsLoaded.Add(ctx, int64(res.RowsInserted), metric.WithAttributes(attribute.Bool("synthetic", res.Synthetic)))
	r.blobArtifacts.Add(ctx, int64(len(res.BlobURIs.Raw)), metric.WithAttributes(attribute.String("kind", "raw")))
	r.blobArtifacts.Add(ctx, int64(len(res.BlobURIs.Processed)), metric.WithAttributes(attribute.String("kind", "processed")))
	for kind := range res.AggregateErrors {
		r.aggregateFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(kind))))
	}
	r.stage(ctx, "load", d)
}

// Stage records the wall time of a named stage.
func (r *Recorder) Stage(ctx context.Context, name string, d time.Duration) {
	if r == nil {
		return
	}
	r.stage(ctx, name, d)
}

// Run counts a finished pipeline run.
func (r *Recorder) Run(ctx context.Context, status string) {
	if r == nil {
		return
	}
	r.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func (r *Recorder) stage(ctx context.Context, name string, d time.Duration) {
	r.stageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("stage", name)))
}
