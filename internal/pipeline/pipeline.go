// Package pipeline runs extract, transform, load and report in sequence.
// Each stage fully materializes its output before the next begins.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dwsmith1983/vidtrend/internal/analysis"
	"github.com/dwsmith1983/vidtrend/internal/blob"
	"github.com/dwsmith1983/vidtrend/internal/load"
	"github.com/dwsmith1983/vidtrend/internal/metrics"
	"github.com/dwsmith1983/vidtrend/internal/source"
	"github.com/dwsmith1983/vidtrend/internal/transform"
	"github.com/dwsmith1983/vidtrend/pkg/types"
)

// ErrRunInProgress is returned by TryRun while another run holds the runner.
var ErrRunInProgress = errors.New("pipeline run already in progress")

const tracerName = "github.com/dwsmith1983/vidtrend/pipeline"

// Runner executes pipeline runs. Runs never overlap.
type Runner struct {
	src      source.Source
	engine   *transform.Engine
	loader   *load.Coordinator
	reports  *analysis.Service
	sink     blob.Sink
	prefix   string
	topLimit int
	recorder *metrics.Recorder
	tracer   trace.Tracer
	logger   *slog.Logger
	now      func() time.Time

	mu sync.Mutex
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithReports publishes an analysis report to sink under prefix after each
// load that inserted rows.
func WithReports(svc *analysis.Service, sink blob.Sink, prefix string, topLimit int) Option {
	return func(r *Runner) {
		r.reports = svc
		r.sink = sink
		r.prefix = prefix
		r.topLimit = topLimit
	}
}

// WithRecorder records stage metrics.
func WithRecorder(rec *metrics.Recorder) Option {
	return func(r *Runner) { r.recorder = rec }
}

// WithTracerProvider traces runs on tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Runner) { r.tracer = tp.Tracer(tracerName) }
}

// WithClock overrides the report clock.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// New creates a Runner.
func New(src source.Source, engine *transform.Engine, loader *load.Coordinator, opts ...Option) *Runner {
	r := &Runner{
		src:    src,
		engine: engine,
		loader: loader,
		tracer: otel.Tracer(tracerName),
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// TryRun is Run unless a run is already in progress, in which case it
// returns ErrRunInProgress immediately.
func (r *Runner) TryRun(ctx context.Context) (*types.RunSummary, error) {
	if !r.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.mu.Unlock()
	return r.run(ctx)
}

// Run executes one pipeline run, waiting for any run in progress.
func (r *Runner) Run(ctx context.Context) (*types.RunSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.run(ctx)
}

func (r *Runner) run(ctx context.Context) (summary *types.RunSummary, err error) {
	ctx, span := r.tracer.Start(ctx, "pipeline.run")
	defer func() {
		status := r.status(summary, err)
		r.recorder.Run(ctx, status)
		span.SetAttributes(attribute.String("status", status))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	summary = &types.RunSummary{}

	raw, err := r.extract(ctx)
	if err != nil {
		return summary, err
	}
	for _, records := range raw {
		summary.RawRecords += len(records)
	}

	tres := r.transform(ctx, raw)
	summary.TransformedRecords = tres.Rows()
	if len(tres.Failed) > 0 {
		summary.FailedCategories = tres.Failed
	}

	summary.Load, err = r.load(ctx, raw, tres.Batches)
	if err != nil {
		return summary, err
	}

	if r.reports != nil && summary.Load.RowsInserted > 0 {
		if err := r.reports.Invalidate(ctx, summary.Load.BatchID); err != nil {
			r.logger.Warn("query cache invalidation failed", "batch_id", summary.Load.BatchID, "error", err)
		}
		uri, err := r.report(ctx, summary.Load.BatchID)
		if err != nil {
			r.logger.Error("analysis report failed", "batch_id", summary.Load.BatchID, "error", err)
		} else {
			summary.ReportURI = uri
		}
	}

	r.logger.Info("pipeline run finished",
		"batch_id", summary.Load.BatchID,
		"raw_records", summary.RawRecords,
		"transformed", summary.TransformedRecords,
		"rows_inserted", summary.Load.RowsInserted,
		"failed_categories", len(summary.FailedCategories))
	return summary, nil
}

func (r *Runner) extract(ctx context.Context) (map[int][]types.RawRecord, error) {
	ctx, span := r.tracer.Start(ctx, "pipeline.extract")
	defer span.End()
	start := time.Now()
	raw, err := r.src.Fetch(ctx)
	r.recorder.Stage(ctx, "extract", time.Since(start))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("extract: %w", err)
	}
	return raw, nil
}

func (r *Runner) transform(ctx context.Context, raw map[int][]types.RawRecord) *types.TransformResult {
	ctx, span := r.tracer.Start(ctx, "pipeline.transform")
	defer span.End()
	start := time.Now()
	res := r.engine.Transform(ctx, raw)
	r.recorder.Transform(ctx, res, time.Since(start))
	span.SetAttributes(
		attribute.String("batch_id", res.BatchID),
		attribute.Int("rows", res.Rows()),
		attribute.Int("failed_categories", len(res.Failed)),
	)
	return res
}

func (r *Runner) load(ctx context.Context, raw map[int][]types.RawRecord, canonical map[int][]types.CanonicalVideo) (*types.LoadResult, error) {
	ctx, span := r.tracer.Start(ctx, "pipeline.load")
	defer span.End()
	start := time.Now()
	res, err := r.loader.Load(ctx, raw, canonical)
	r.recorder.Load(ctx, res, time.Since(start))
	if err != nil {
		span.RecordError(err)
		return res, fmt.Errorf("load: %w", err)
	}
	span.SetAttributes(attribute.String("batch_id", res.BatchID), attribute.Int("rows", res.RowsInserted))
	return res, nil
}

func (r *Runner) report(ctx context.Context, batchID string) (string, error) {
	ctx, span := r.tracer.Start(ctx, "pipeline.report")
	defer span.End()
	start := time.Now()
	defer func() { r.recorder.Stage(ctx, "report", time.Since(start)) }()

	now := r.now()
	rep, err := r.reports.BuildReport(ctx, batchID, r.topLimit, now)
	if err != nil {
		return "", err
	}
	return analysis.Publish(ctx, r.sink, r.logger, r.prefix, rep, types.FormatBatchID(now))
}

func (r *Runner) status(summary *types.RunSummary, err error) string {
	switch {
	case err != nil:
		return metrics.StatusFailed
	case summary == nil || summary.Load == nil:
		return metrics.StatusFailed
	case len(summary.FailedCategories) > 0, len(summary.Load.AggregateErrors) > 0:
		return metrics.StatusDegraded
	}
	return metrics.StatusOK
}
