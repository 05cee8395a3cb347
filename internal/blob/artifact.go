package blob

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/parquet-go/parquet-go"
)

// Formats and content types of archived artifacts.
const (
	FormatParquet = "parquet"
	FormatCSV     = "csv"
	FormatJSON    = "json"

	ContentTypeParquet = "application/vnd.apache.parquet"
	ContentTypeCSV     = "text/csv"
	ContentTypeJSON    = "application/json"
)

// Strategy is one encoding attempt of an artifact.
type Strategy struct {
	Format      string
	ContentType string
	Encode      func() ([]byte, error)
}

// Outcome reports the result of WriteArtifact.
type Outcome struct {
	OK     bool
	URI    string
	Format string
	Err    error
}

// ParquetStrategy encodes rows as a Parquet file using T's parquet struct tags.
func ParquetStrategy[T any](rows []T) Strategy {
	return Strategy{
		Format:      FormatParquet,
		ContentType: ContentTypeParquet,
		Encode: func() ([]byte, error) {
			var buf bytes.Buffer
			if err := parquet.Write(&buf, rows); err != nil {
				return nil, fmt.Errorf("encoding parquet: %w", err)
			}
			return buf.Bytes(), nil
		},
	}
}

// CSVStrategy encodes a header and records as CSV.
func CSVStrategy(header []string, records [][]string) Strategy {
	return Strategy{
		Format:      FormatCSV,
		ContentType: ContentTypeCSV,
		Encode: func() ([]byte, error) {
			var buf bytes.Buffer
			w := csv.NewWriter(&buf)
			if err := w.Write(header); err != nil {
				return nil, fmt.Errorf("encoding csv header: %w", err)
			}
			if err := w.WriteAll(records); err != nil {
				return nil, fmt.Errorf("encoding csv: %w", err)
			}
			return buf.Bytes(), nil
		},
	}
}

// JSONStrategy encodes v as indented JSON.
func JSONStrategy(v any) Strategy {
	return Strategy{
		Format:      FormatJSON,
		ContentType: ContentTypeJSON,
		Encode: func() ([]byte, error) {
			b, err := json.MarshalIndent(v, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("encoding json: %w", err)
			}
			return b, nil
		},
	}
}

// WriteArtifact tries each strategy in order and stores the first encoding
// that both encodes and uploads. It never returns an error: when every
// strategy fails the Outcome carries OK=false and the joined causes.
func WriteArtifact(ctx context.Context, sink Sink, logger *slog.Logger, prefix, name, ts string, strategies ...Strategy) Outcome {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	var errs []error
	for _, s := range strategies {
		data, err := s.Encode()
		if err == nil {
			var uri string
			uri, err = sink.Put(ctx, prefix, ArtifactKey(name, ts, s.Format), data, s.ContentType)
			if err == nil {
				return Outcome{OK: true, URI: uri, Format: s.Format}
			}
		}
		logger.Warn("artifact write failed, trying next format",
			"artifact", name, "format", s.Format, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", s.Format, err))
	}
	if len(errs) == 0 {
		errs = append(errs, errors.New("no formats configured"))
	}
	return Outcome{Err: errors.Join(errs...)}
}
