package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dwsmith1983/vidtrend/internal/source"
	"github.com/dwsmith1983/vidtrend/pkg/types"
)

// NewLoadCmd creates the load command.
func NewLoadCmd() *cobra.Command {
	var (
		input string
		raw   string
	)

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Persist canonical batches to the relational and blob stores",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd, input, raw)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "processed.json", "Canonical batches JSON file written by transform")
	cmd.Flags().StringVar(&raw, "raw", "", "Raw records JSON file to archive alongside")
	return cmd
}

func runLoad(cmd *cobra.Command, input, rawPath string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
	defer cancel()

	canonical, err := source.ReadCanonical(input)
	if err != nil {
		return err
	}
	var raw map[int][]types.RawRecord
	if rawPath != "" {
		if raw, err = source.NewFile(rawPath).Fetch(ctx); err != nil {
			return err
		}
	}

	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	res, err := a.coordinator().Load(ctx, raw, canonical)
	printLoadResult(cmd.OutOrStdout(), res)
	if err != nil {
		return fmt.Errorf("load failed: %w", err)
	}
	if res.RowsInserted > 0 {
		if err := a.analysis().Invalidate(ctx, res.BatchID); err != nil {
			a.logger.Warn("query cache invalidation failed", "batch_id", res.BatchID, "error", err)
		}
	}
	return nil
}
