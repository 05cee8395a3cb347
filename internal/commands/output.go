package commands

import (
	"fmt"
	"io"
	"slices"
	"sort"

	"github.com/fatih/color"

	"github.com/dwsmith1983/vidtrend/pkg/types"
)

var (
	bold  = color.New(color.Bold)
	green = color.New(color.FgGreen)
	red   = color.New(color.FgRed)
	warn  = color.New(color.FgYellow)
	cyan  = color.New(color.FgCyan)
)

func printTransformResult(w io.Writer, res *types.TransformResult) {
	_, _ = bold.Fprintf(w, "Transform batch %s\n", res.BatchID)
	for _, id := range sortedIDs(res.Batches) {
		_, _ = fmt.Fprintf(w, "  category %-4d %s\n", id, green.Sprintf("%d records", len(res.Batches[id])))
	}
	for _, id := range sortedIDs(res.Failed) {
		_, _ = fmt.Fprintf(w, "  category %-4d %s\n", id, red.Sprintf("dropped: %s", res.Failed[id]))
	}
}

func printLoadResult(w io.Writer, res *types.LoadResult) {
	if res == nil {
		return
	}
	_, _ = bold.Fprintf(w, "Load batch %s (run %s)\n", res.BatchID, res.RunID)
	if res.BatchIDSynthesized {
		_, _ = warn.Fprintf(w, "  batch id synthesized from load time\n")
	}
	if res.Synthetic {
		_, _ = warn.Fprintf(w, "  demo mode: synthetic records loaded\n")
	}
	rows := green.Sprintf("%d", res.RowsInserted)
	if res.RowsInserted == 0 {
		rows = warn.Sprintf("0")
	}
	_, _ = fmt.Fprintf(w, "  rows inserted: %s\n", rows)
	for _, id := range sortedIDs(res.BlobURIs.Raw) {
		_, _ = fmt.Fprintf(w, "  raw %-4d %s\n", id, res.BlobURIs.Raw[id])
	}
	for _, id := range sortedIDs(res.BlobURIs.Processed) {
		_, _ = fmt.Fprintf(w, "  processed %-4d %s\n", id, res.BlobURIs.Processed[id])
	}
	kinds := make([]string, 0, len(res.AggregateErrors))
	for k := range res.AggregateErrors {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		_, _ = red.Fprintf(w, "  %s aggregate failed: %s\n", k, res.AggregateErrors[types.AggregateKind(k)])
	}
}

func printRunSummary(w io.Writer, s *types.RunSummary) {
	_, _ = cyan.Fprintf(w, "Extracted %d raw records, transformed %d\n", s.RawRecords, s.TransformedRecords)
	for _, id := range sortedIDs(s.FailedCategories) {
		_, _ = red.Fprintf(w, "  category %d dropped: %s\n", id, s.FailedCategories[id])
	}
	printLoadResult(w, s.Load)
	if s.ReportURI != "" {
		_, _ = green.Fprintf(w, "Report published to %s\n", s.ReportURI)
	}
}

func sortedIDs[V any](m map[int]V) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
