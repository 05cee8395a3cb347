package commands

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dwsmith1983/vidtrend/internal/config"
	"github.com/dwsmith1983/vidtrend/internal/pipeline"
	"github.com/dwsmith1983/vidtrend/internal/schedule"
)

// NewScheduleCmd creates the schedule command.
func NewScheduleCmd() *cobra.Command {
	var cronExpr string

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the pipeline on a cron schedule",
		Long:  "Runs extract, transform, load and report on schedule.cron (or --cron). A run still in progress when the next tick fires causes that tick to be skipped.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchedule(cmd, cronExpr)
		},
	}

	cmd.Flags().StringVar(&cronExpr, "cron", "", "Cron expression overriding schedule.cron")
	return cmd
}

func runSchedule(cmd *cobra.Command, cronExpr string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	if cronExpr == "" && a.cfg.Schedule != nil {
		cronExpr = a.cfg.Schedule.Cron
	}
	if cronExpr == "" {
		return fmt.Errorf("no cron expression: set schedule.cron in %s or pass --cron", config.FileName)
	}
	sched, err := schedule.Parse(cronExpr)
	if err != nil {
		return err
	}

	runner, err := a.pipeline(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = bold.Fprintf(out, "Scheduling pipeline: %s\n", cronExpr)
	for _, t := range schedule.Upcoming(sched, time.Now(), 3) {
		_, _ = fmt.Fprintf(out, "  next: %s\n", t.Format(time.RFC3339))
	}

	schedule.New(sched, func(ctx context.Context) error {
		summary, err := runner.TryRun(ctx)
		if errors.Is(err, pipeline.ErrRunInProgress) {
			return nil
		}
		if summary != nil {
			printRunSummary(out, summary)
		}
		return err
	}, a.logger).Run(ctx)

	_, _ = warn.Fprintln(out, "Scheduler stopped")
	return nil
}
