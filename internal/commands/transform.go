package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dwsmith1983/vidtrend/internal/source"
	"github.com/dwsmith1983/vidtrend/internal/transform"
	"github.com/dwsmith1983/vidtrend/pkg/types"
)

// NewTransformCmd creates the transform command. It works on files only and
// needs no config.
func NewTransformCmd() *cobra.Command {
	var (
		input       string
		output      string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "transform",
		Short: "Normalize raw records into canonical batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransform(cmd, input, output, concurrency)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Raw records JSON file")
	cmd.Flags().StringVarP(&output, "output", "o", "processed.json", "Canonical batches JSON file")
	cmd.Flags().IntVar(&concurrency, "concurrency", transform.DefaultConcurrency, "Categories transformed in parallel")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runTransform(cmd *cobra.Command, input, output string, concurrency int) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	raw, err := source.NewFile(input).Fetch(ctx)
	if err != nil {
		return err
	}
	logger := newLogger(types.LogConfig{Level: "warn", Format: "text"}, os.Stderr)
	res := transform.New(transform.WithLogger(logger), transform.WithConcurrency(concurrency)).Transform(ctx, raw)

	if err := source.WriteJSON(output, res.Batches); err != nil {
		return err
	}
	printTransformResult(cmd.OutOrStdout(), res)
	_, _ = green.Fprintf(cmd.OutOrStdout(), "Wrote %d records to %s\n", res.Rows(), output)
	if res.Rows() == 0 && len(raw) > 0 {
		return fmt.Errorf("every category was dropped")
	}
	return nil
}
