package commands

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dwsmith1983/vidtrend/internal/config"
	"github.com/dwsmith1983/vidtrend/internal/pipeline"
	"github.com/dwsmith1983/vidtrend/internal/schedule"
	"github.com/dwsmith1983/vidtrend/internal/server"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	var withSchedule bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard query API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, withSchedule)
		},
	}

	cmd.Flags().BoolVar(&withSchedule, "schedule", false, "Also run the pipeline on schedule.cron")
	return cmd
}

func runServe(cmd *cobra.Command, withSchedule bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	var sched cron.Schedule
	if withSchedule {
		if a.cfg.Schedule == nil {
			return fmt.Errorf("--schedule needs schedule.cron in %s", config.FileName)
		}
		if sched, err = schedule.Parse(a.cfg.Schedule.Cron); err != nil {
			return err
		}
	}

	runner, err := a.pipeline(ctx)
	if err != nil {
		return err
	}

	addr := ":8080"
	opts := []server.Option{server.WithLogger(a.logger), server.WithRunner(runner)}
	if a.cfg.Server != nil {
		addr = a.cfg.Server.Addr
		opts = append(opts, server.WithAPIKey(a.cfg.Server.APIKey))
	}
	srv := server.New(addr, a.analysis(), a.store, opts...)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Start(ctx) })
	if sched != nil {
		g.Go(func() error {
			schedule.New(sched, func(ctx context.Context) error {
				_, err := runner.TryRun(ctx)
				if errors.Is(err, pipeline.ErrRunInProgress) {
					return nil
				}
				return err
			}, a.logger).Run(ctx)
			return nil
		})
	}

	_, _ = green.Fprintf(cmd.OutOrStdout(), "Query API listening on %s\n", addr)
	if err := g.Wait(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	_, _ = green.Fprintln(cmd.OutOrStdout(), "Server stopped gracefully")
	return nil
}
