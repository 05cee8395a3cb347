// Package load persists a transformed batch: raw and processed artifacts go
// to the blob sink, canonical rows go to the relational store, and the
// batch's aggregates are recomputed.
package load

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/dwsmith1983/vidtrend/internal/aggregate"
	"github.com/dwsmith1983/vidtrend/internal/blob"
	"github.com/dwsmith1983/vidtrend/internal/normalize"
	"github.com/dwsmith1983/vidtrend/internal/provider"
	"github.com/dwsmith1983/vidtrend/internal/retry"
	"github.com/dwsmith1983/vidtrend/internal/transform"
	"github.com/dwsmith1983/vidtrend/pkg/types"
)

// Default blob prefixes.
const (
	DefaultRawPrefix       = "raw/"
	DefaultProcessedPrefix = "processed/"
)

// Notifier is told about every load that inserted rows.
type Notifier interface {
	Notify(ctx context.Context, res *types.LoadResult) error
}

// Coordinator runs the load stage.
type Coordinator struct {
	store           provider.Store
	sink            blob.Sink
	calc            *aggregate.Calculator
	notifier        Notifier
	runner          *retry.Runner
	logger          *slog.Logger
	now             func() time.Time
	demo            bool
	rawPrefix       string
	processedPrefix string
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the coordinator logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithSink archives artifacts to s. Without a sink blob writes are skipped.
func WithSink(s blob.Sink) Option {
	return func(c *Coordinator) { c.sink = s }
}

// WithPrefixes overrides the raw and processed blob prefixes.
func WithPrefixes(raw, processed string) Option {
	return func(c *Coordinator) {
		if raw != "" {
			c.rawPrefix = raw
		}
		if processed != "" {
			c.processedPrefix = processed
		}
	}
}

// WithRetry runs relational writes under r.
func WithRetry(r *retry.Runner) Option {
	return func(c *Coordinator) { c.runner = r }
}

// WithNotifier publishes completed loads to n.
func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) { c.notifier = n }
}

// WithDemoMode enables synthetic rows when a load has no input at all.
func WithDemoMode(on bool) Option {
	return func(c *Coordinator) { c.demo = on }
}

// WithClock overrides the load clock.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New creates a Coordinator writing to store.
func New(store provider.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:           store,
		logger:          slog.New(slog.DiscardHandler),
		now:             time.Now,
		rawPrefix:       DefaultRawPrefix,
		processedPrefix: DefaultProcessedPrefix,
	}
	for _, o := range opts {
		o(c)
	}
	c.calc = aggregate.New(store, aggregate.WithLogger(c.logger), aggregate.WithRetry(c.runner))
	return c
}

// Load persists one batch. The result is never nil. An error is returned only
// when the relational insert fails; blob and aggregate failures are logged and
// reported in the result.
func (c *Coordinator) Load(ctx context.Context, raw map[int][]types.RawRecord, canonical map[int][]types.CanonicalVideo) (*types.LoadResult, error) {
	now := c.now().UTC()
	res := &types.LoadResult{
		RunID:     ulid.Make().String(),
		Timestamp: types.FormatBatchID(now),
		BlobURIs: types.BlobURIs{
			Raw:       make(map[int]string),
			Processed: make(map[int]string),
		},
	}
	logger := c.logger.With("run_id", res.RunID)

	res.BatchID, res.BatchIDSynthesized = c.reconcileBatchID(logger, canonical, res.Timestamp)
	stamped := stamp(canonical, res.BatchID)
	logger = logger.With("batch_id", res.BatchID)

	c.archive(ctx, logger, res, raw, stamped)

	rows := normalize.Reconcile(flatten(stamped), res.BatchID)
	if len(rows) == 0 {
		if !c.demo {
			logger.Warn("no canonical rows to load")
			return res, nil
		}
		rows = c.synthesize(ctx, logger, res.BatchID, now)
		res.Synthetic = true
	}

	n, err := retry.Value(ctx, c.runner, "insert videos", func(ctx context.Context) (int, error) {
		return c.store.InsertVideos(ctx, rows)
	})
	if err != nil {
		logger.Error("relational insert failed", "rows", len(rows), "error", err)
		return res, fmt.Errorf("loading batch %s: %w", res.BatchID, err)
	}
	res.RowsInserted = n
	logger.Info("rows inserted", "rows", n, "synthetic", res.Synthetic)

	if failed := c.calc.Compute(ctx, res.BatchID); len(failed) > 0 {
		res.AggregateErrors = make(map[types.AggregateKind]string, len(failed))
		for kind, err := range failed {
			res.AggregateErrors[kind] = err.Error()
		}
	}

	if c.notifier != nil {
		if err := c.notifier.Notify(ctx, res); err != nil {
			logger.Warn("load notification failed", "error", err)
		}
	}
	return res, nil
}

// reconcileBatchID picks the batch id carried by the canonical rows. Rows are
// visited in category id order; the first non-empty id wins. When no row
// carries one, fallback is used.
func (c *Coordinator) reconcileBatchID(logger *slog.Logger, canonical map[int][]types.CanonicalVideo, fallback string) (string, bool) {
	var chosen string
	seen := make(map[string]struct{})
	for _, id := range sortedKeys(canonical) {
		for _, v := range canonical[id] {
			if v.BatchID == "" {
				continue
			}
			if chosen == "" {
				chosen = v.BatchID
			}
			seen[v.BatchID] = struct{}{}
		}
	}
	if chosen == "" {
		logger.Info("canonical input carries no batch id, synthesizing", "batch_id", fallback)
		return fallback, true
	}
	if len(seen) > 1 {
		logger.Warn("canonical input carries several batch ids, restamping", "batch_id", chosen, "distinct", len(seen))
	}
	return chosen, false
}

// archive writes raw and processed artifacts for each category. Failures are
// logged and leave the category out of the result URIs.
func (c *Coordinator) archive(ctx context.Context, logger *slog.Logger, res *types.LoadResult, raw map[int][]types.RawRecord, canonical map[int][]types.CanonicalVideo) {
	if c.sink == nil {
		return
	}
	for _, id := range sortedKeys(raw) {
		records := raw[id]
		if len(records) == 0 {
			continue
		}
		rows := make([]types.RawRow, len(records))
		csvRecords := make([][]string, len(records))
		for i, r := range records {
			rows[i] = normalize.RawRowOf(r)
			csvRecords[i] = normalize.RawCSVRecord(rows[i])
		}
		out := blob.WriteArtifact(ctx, c.sink, logger, c.rawPrefix, blob.RawArtifactName(id), res.Timestamp,
			blob.ParquetStrategy(rows),
			blob.CSVStrategy(normalize.RawCSVHeader, csvRecords),
			blob.JSONStrategy(records),
		)
		c.record(logger, "raw", id, out, res.BlobURIs.Raw)
	}

	for _, id := range sortedKeys(canonical) {
		videos := canonical[id]
		if len(videos) == 0 {
			continue
		}
		csvRecords := make([][]string, len(videos))
		for i, v := range videos {
			csvRecords[i] = normalize.CanonicalCSVRecord(v)
		}
		out := blob.WriteArtifact(ctx, c.sink, logger, c.processedPrefix, blob.ProcessedArtifactName(id), res.Timestamp,
			blob.ParquetStrategy(videos),
			blob.CSVStrategy(normalize.CanonicalCSVHeader, csvRecords),
		)
		c.record(logger, "processed", id, out, res.BlobURIs.Processed)
	}
}

func (c *Coordinator) record(logger *slog.Logger, kind string, categoryID int, out blob.Outcome, uris map[int]string) {
	if !out.OK {
		logger.Error("artifact skipped", "kind", kind, "category_id", categoryID, "error", out.Err)
		return
	}
	uris[categoryID] = out.URI
	logger.Info("artifact written", "kind", kind, "category_id", categoryID, "format", out.Format, "uri", out.URI)
}

func (c *Coordinator) synthesize(ctx context.Context, logger *slog.Logger, batchID string, now time.Time) []types.VideoRow {
	logger.Warn("demo mode: loading synthetic records", "rows", SyntheticSize)
	engine := transform.New(transform.WithLogger(c.logger), transform.WithClock(func() time.Time { return now }))
	res := engine.Transform(ctx, SyntheticRecords(batchID, now, SyntheticSize))
	return normalize.Reconcile(flatten(res.Batches), batchID)
}

// stamp returns copies of every category slice with BatchID set to batchID.
func stamp(canonical map[int][]types.CanonicalVideo, batchID string) map[int][]types.CanonicalVideo {
	out := make(map[int][]types.CanonicalVideo, len(canonical))
	for id, videos := range canonical {
		cp := slices.Clone(videos)
		for i := range cp {
			cp[i].BatchID = batchID
		}
		out[id] = cp
	}
	return out
}

func flatten(batches map[int][]types.CanonicalVideo) []types.CanonicalVideo {
	var out []types.CanonicalVideo
	for _, id := range sortedKeys(batches) {
		out = append(out, batches[id]...)
	}
	return out
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
