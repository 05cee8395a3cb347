// Package source provides raw trending-video records keyed by category id.
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/dwsmith1983/vidtrend/pkg/types"
)

// Source fetches one extraction cycle of raw records.
type Source interface {
	Fetch(ctx context.Context) (map[int][]types.RawRecord, error)
}

// File reads raw records from a JSON document of the form
// {"<category_id>": [ {record}, ... ], ...}.
type File struct {
	path string
}

// NewFile creates a File source reading path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Fetch reads and decodes the file.
func (f *File) Fetch(ctx context.Context) (map[int][]types.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("reading raw records: %w", err)
	}
	return DecodeRaw(data)
}

// DecodeRaw decodes a category-keyed JSON document of raw records. Numbers
// are kept as json.Number so large counts survive intact.
func DecodeRaw(data []byte) (map[int][]types.RawRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc map[string][]types.RawRecord
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding raw records: %w", err)
	}
	out := make(map[int][]types.RawRecord, len(doc))
	for key, records := range doc {
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("decoding raw records: category key %q is not an integer", key)
		}
		out[id] = records
	}
	return out, nil
}

// ReadCanonical reads canonical batches written by WriteJSON.
func ReadCanonical(path string) (map[int][]types.CanonicalVideo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading canonical records: %w", err)
	}
	var out map[int][]types.CanonicalVideo
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding canonical records: %w", err)
	}
	return out, nil
}

// WriteJSON writes v to path as indented JSON.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
