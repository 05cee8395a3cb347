package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dwsmith1983/vidtrend/internal/analysis"
	"github.com/dwsmith1983/vidtrend/pkg/types"
)

// NewReportCmd creates the report command.
func NewReportCmd() *cobra.Command {
	var (
		batchID string
		limit   int
		publish bool
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Build the analysis report of a batch",
		Long:  "Builds the analysis report of a batch (latest by default), prints it as JSON and optionally publishes it to the blob store.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, batchID, limit, publish)
		},
	}

	cmd.Flags().StringVar(&batchID, "batch", "", "Batch id (default latest)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Rows per ranked listing (default pipeline.topLimit)")
	cmd.Flags().BoolVar(&publish, "publish", false, "Upload the report to the blob store")
	return cmd
}

func runReport(cmd *cobra.Command, batchID string, limit int, publish bool) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	svc := a.analysis()
	if batchID, err = svc.ResolveBatch(ctx, batchID); err != nil {
		return err
	}
	if limit <= 0 {
		limit = a.cfg.Pipeline.TopLimit
	}

	now := time.Now()
	report, err := svc.BuildReport(ctx, batchID, limit, now)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	if publish {
		uri, err := analysis.Publish(ctx, a.sink, a.logger, a.cfg.Blob.AnalysisPrefix, report, types.FormatBatchID(now))
		if err != nil {
			return err
		}
		_, _ = green.Fprintf(cmd.ErrOrStderr(), "Report published to %s\n", uri)
	}
	return nil
}
