package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/vidtrend/internal/analysis"
	"github.com/dwsmith1983/vidtrend/internal/blob"
	"github.com/dwsmith1983/vidtrend/internal/provider"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show store health, loaded batches and latest archives",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Batches to list")
	return cmd
}

func runStatus(cmd *cobra.Command, limit int) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	out := cmd.OutOrStdout()
	if err := a.store.Ping(ctx); err != nil {
		_, _ = fmt.Fprintf(out, "Store (%s): %s\n", a.cfg.Database.Type, color.RedString("UNREACHABLE"))
		return fmt.Errorf("pinging store: %w", err)
	}
	_, _ = fmt.Fprintf(out, "Store (%s): %s\n", a.cfg.Database.Type, color.GreenString("OK"))

	if err := showBatches(ctx, out, a.analysis(), limit); err != nil {
		return err
	}
	return showArchives(ctx, out, a.sink, a.cfg.Blob.ProcessedPrefix)
}

func showBatches(ctx context.Context, out io.Writer, svc *analysis.Service, limit int) error {
	batches, err := svc.Batches(ctx, provider.Limit(limit))
	if err != nil {
		return fmt.Errorf("listing batches: %w", err)
	}
	_, _ = fmt.Fprintln(out)
	if len(batches) == 0 {
		_, _ = fmt.Fprintln(out, "No batches loaded.")
		return nil
	}
	_, _ = bold.Fprintln(out, "Loaded Batches:")
	for i, b := range batches {
		marker := " "
		if i == 0 {
			marker = color.CyanString("*")
		}
		_, _ = fmt.Fprintf(out, "  %s %s  %d videos\n", marker, b.BatchID, b.VideoCount)
	}
	return nil
}

func showArchives(ctx context.Context, out io.Writer, sink blob.Sink, prefix string) error {
	latest, err := blob.LatestByCategory(ctx, sink, prefix)
	if err != nil {
		_, _ = warn.Fprintf(out, "\nArchive listing unavailable: %v\n", err)
		return nil
	}
	_, _ = fmt.Fprintln(out)
	if len(latest) == 0 {
		_, _ = fmt.Fprintln(out, "No processed archives.")
		return nil
	}
	_, _ = bold.Fprintln(out, "Latest Processed Archives:")
	for _, id := range sortedIDs(latest) {
		_, _ = fmt.Fprintf(out, "  category %-4d %s\n", id, latest[id])
	}
	return nil
}
