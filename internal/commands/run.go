package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Extract, transform, load and report once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd, timeout)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Minute, "Abort the run after this long")
	return cmd
}

func runOnce(cmd *cobra.Command, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	runner, err := a.pipeline(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = cyan.Fprintf(out, "Running pipeline (source: %s)...\n", a.cfg.Source.Type)
	summary, err := runner.Run(ctx)
	if summary != nil {
		printRunSummary(out, summary)
	}
	if err != nil {
		_, _ = red.Fprintf(out, "Run failed: %v\n", err)
		return err
	}
	_, _ = green.Fprintln(out, "Run completed")
	return nil
}
