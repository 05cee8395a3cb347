package types

// BlobURIs holds archived artifact locations keyed by category id.
type BlobURIs struct {
	Raw       map[int]string `json:"raw"`
	Processed map[int]string `json:"processed"`
}

// LoadResult describes one persistence run. It is returned even when nothing
// was written so callers can tell "zero rows loaded" apart from a failure.
type LoadResult struct {
	RunID        string   `json:"run_id"`
	Timestamp    string   `json:"timestamp"`
	BatchID      string   `json:"batch_id"`
	BlobURIs     BlobURIs `json:"blob_uris"`
	RowsInserted int      `json:"rows_inserted"`
	// BatchIDSynthesized is set when the canonical input carried no batch id.
	BatchIDSynthesized bool `json:"batch_id_synthesized,omitempty"`
	// Synthetic is set when demo mode generated the loaded rows.
	Synthetic       bool                     `json:"synthetic,omitempty"`
	AggregateErrors map[AggregateKind]string `json:"aggregate_errors,omitempty"`
}

// RunSummary reports one end-to-end pipeline execution.
type RunSummary struct {
	RawRecords         int            `json:"raw_records"`
	TransformedRecords int            `json:"transformed_records"`
	FailedCategories   map[int]string `json:"failed_categories,omitempty"`
	Load               *LoadResult    `json:"load"`
	ReportURI          string         `json:"report_uri,omitempty"`
}
