// Package commands implements the CLI subcommands for the vidtrend binary.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dwsmith1983/vidtrend/internal/analysis"
	"github.com/dwsmith1983/vidtrend/internal/blob"
	"github.com/dwsmith1983/vidtrend/internal/cache"
	"github.com/dwsmith1983/vidtrend/internal/config"
	"github.com/dwsmith1983/vidtrend/internal/load"
	"github.com/dwsmith1983/vidtrend/internal/metrics"
	"github.com/dwsmith1983/vidtrend/internal/notify"
	"github.com/dwsmith1983/vidtrend/internal/pipeline"
	"github.com/dwsmith1983/vidtrend/internal/provider"
	pgstore "github.com/dwsmith1983/vidtrend/internal/provider/postgres"
	sqlitestore "github.com/dwsmith1983/vidtrend/internal/provider/sqlite"
	"github.com/dwsmith1983/vidtrend/internal/retry"
	"github.com/dwsmith1983/vidtrend/internal/source"
	"github.com/dwsmith1983/vidtrend/internal/telemetry"
	"github.com/dwsmith1983/vidtrend/internal/transform"
	"github.com/dwsmith1983/vidtrend/pkg/types"
)

// ConfigDirFlag names the persistent flag holding the config directory.
const ConfigDirFlag = "config-dir"

// Version is reported to telemetry. Set by main.
var Version = "dev"

// app holds the components shared by every command that touches storage.
type app struct {
	cfg      *types.Config
	logger   *slog.Logger
	store    provider.Backend
	sink     blob.Sink
	retry    *retry.Runner
	cache    *cache.Cache
	notifier *notify.Dispatcher
	recorder *metrics.Recorder
	shutdown telemetry.ShutdownFunc
}

// setup loads config from the --config-dir flag and wires every component.
func setup(ctx context.Context, cmd *cobra.Command) (*app, error) {
	dir, _ := cmd.Flags().GetString(ConfigDirFlag)
	if dir == "" {
		dir = "."
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return build(ctx, cfg, os.Stderr)
}

func build(ctx context.Context, cfg *types.Config, logOut io.Writer) (_ *app, err error) {
	a := &app{cfg: cfg, logger: newLogger(cfg.Log, logOut)}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	if err := config.ResolveSecrets(ctx, cfg, nil); err != nil {
		return nil, fmt.Errorf("resolving secrets: %w", err)
	}

	if a.shutdown, err = telemetry.Setup(ctx, cfg.Telemetry, Version); err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	if a.recorder, err = metrics.New(nil); err != nil {
		return nil, err
	}

	policy, err := retry.PolicyFromConfig(cfg.Retry)
	if err != nil {
		return nil, err
	}
	breaker := retry.NewBreaker("store", 5, 30*time.Second, a.logger)
	a.retry = retry.NewRunner(policy, retry.WithBreaker(breaker), retry.WithLogger(a.logger))

	if a.store, err = newStore(ctx, cfg.Database); err != nil {
		return nil, err
	}
	if err := a.store.Migrate(ctx); err != nil {
		return nil, err
	}

	sink, err := newSink(ctx, cfg.Blob)
	if err != nil {
		return nil, err
	}
	blobRetry := retry.NewRunner(policy, retry.WithLogger(a.logger))
	a.sink = blob.WithRetry(sink, blobRetry)

	if cfg.Cache != nil {
		ttl, _ := time.ParseDuration(cfg.Cache.TTL)
		a.cache = cache.New(ctx, cfg.Cache.RedisURL, ttl, a.logger)
	}

	if a.notifier, err = notify.FromConfig(ctx, cfg.Notify, a.logger); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) close() {
	if a.cache != nil {
		_ = a.cache.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.shutdown(ctx); err != nil {
			a.logger.Warn("telemetry shutdown failed", "error", err)
		}
	}
}

func (a *app) engine() *transform.Engine {
	return transform.New(
		transform.WithLogger(a.logger),
		transform.WithConcurrency(a.cfg.Pipeline.Concurrency),
	)
}

func (a *app) coordinator() *load.Coordinator {
	opts := []load.Option{
		load.WithLogger(a.logger),
		load.WithSink(a.sink),
		load.WithPrefixes(a.cfg.Blob.RawPrefix, a.cfg.Blob.ProcessedPrefix),
		load.WithRetry(a.retry),
		load.WithDemoMode(a.cfg.Pipeline.DemoMode),
	}
	if a.notifier.Len() > 0 {
		opts = append(opts, load.WithNotifier(a.notifier))
	}
	return load.New(a.store, opts...)
}

func (a *app) analysis() *analysis.Service {
	return analysis.NewService(a.store, analysis.WithCache(a.cache), analysis.WithLogger(a.logger))
}

func (a *app) pipeline(ctx context.Context) (*pipeline.Runner, error) {
	src, err := newSource(ctx, a.cfg.Source, a.logger)
	if err != nil {
		return nil, err
	}
	return pipeline.New(src, a.engine(), a.coordinator(),
		pipeline.WithLogger(a.logger),
		pipeline.WithRecorder(a.recorder),
		pipeline.WithReports(a.analysis(), a.sink, a.cfg.Blob.AnalysisPrefix, a.cfg.Pipeline.TopLimit),
	), nil
}

// newLogger builds the process logger from cfg.
func newLogger(cfg types.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// newStore opens the configured relational store.
func newStore(ctx context.Context, cfg types.DatabaseConfig) (provider.Backend, error) {
	switch cfg.Type {
	case "postgres":
		s, err := pgstore.New(ctx, config.PostgresDSN(cfg))
		if err != nil {
			return nil, err
		}
		return s, nil
	case "sqlite":
		s, err := sqlitestore.New(ctx, cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

// newSink opens the configured blob store.
func newSink(ctx context.Context, cfg types.BlobConfig) (blob.Sink, error) {
	switch cfg.Type {
	case "s3":
		return blob.NewS3Sink(ctx, cfg.Bucket, blob.WithS3Region(cfg.Region))
	case "minio":
		return blob.NewMinIOSink(ctx, blob.MinIOConfig{
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			Bucket:          cfg.Bucket,
			Region:          cfg.Region,
			UseSSL:          cfg.UseSSL,
		})
	case "file":
		return blob.NewFileSink(cfg.Dir)
	default:
		return nil, fmt.Errorf("unsupported blob type: %s", cfg.Type)
	}
}

// newSource creates the configured raw record source.
func newSource(ctx context.Context, cfg types.SourceConfig, logger *slog.Logger) (source.Source, error) {
	switch cfg.Type {
	case "file":
		return source.NewFile(cfg.Path), nil
	case "youtube":
		return source.NewYouTube(ctx, cfg, source.WithLogger(logger))
	default:
		return nil, fmt.Errorf("unsupported source type: %s", cfg.Type)
	}
}
