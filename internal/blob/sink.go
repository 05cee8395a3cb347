// Package blob archives pipeline artifacts to an object store. Backends
// implement Sink; WriteArtifact tries an ordered list of encodings and
// reports a uniform Outcome instead of failing the caller.
package blob

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/dwsmith1983/vidtrend/internal/retry"
)

// ErrNotFound is returned by Get when the object does not exist.
var ErrNotFound = errors.New("blob not found")

// Sink is a key/value object store.
type Sink interface {
	// Put stores data at prefix+key and returns the object's URI.
	Put(ctx context.Context, prefix, key string, data []byte, contentType string) (string, error)
	// List returns the URIs of every object whose key starts with prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
	// Get returns the object at uri.
	Get(ctx context.Context, uri string) ([]byte, error)
}

// ArtifactKey builds "{name}_{ts}.{ext}".
func ArtifactKey(name, ts, ext string) string {
	return fmt.Sprintf("%s_%s.%s", name, ts, ext)
}

// RawArtifactName names the raw archive of one category.
func RawArtifactName(categoryID int) string {
	return "trending_raw_cat_" + strconv.Itoa(categoryID)
}

// ProcessedArtifactName names the processed archive of one category.
func ProcessedArtifactName(categoryID int) string {
	return "trending_processed_cat_" + strconv.Itoa(categoryID)
}

// AnalysisArtifactName names analysis report artifacts.
const AnalysisArtifactName = "analysis_results"

var categoryKeyPattern = regexp.MustCompile(`_cat_(\d+)_(\d{14})\.(parquet|csv|json)$`)

// LatestByCategory lists prefix and returns, per category id, the URI of the
// most recent artifact. Keys that do not follow the category naming scheme
// are ignored.
func LatestByCategory(ctx context.Context, sink Sink, prefix string) (map[int]string, error) {
	uris, err := sink.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("listing %q: %w", prefix, err)
	}
	type candidate struct {
		ts  string
		uri string
	}
	best := make(map[int]candidate)
	for _, uri := range uris {
		m := categoryKeyPattern.FindStringSubmatch(uri)
		if m == nil {
			continue
		}
		id, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		cur, ok := best[id]
		if !ok || m[2] > cur.ts || (m[2] == cur.ts && uri > cur.uri) {
			best[id] = candidate{ts: m[2], uri: uri}
		}
	}
	out := make(map[int]string, len(best))
	for id, c := range best {
		out[id] = c.uri
	}
	return out, nil
}

// Latest returns the lexically greatest URI under prefix with the given
// extension, or ErrNotFound.
func Latest(ctx context.Context, sink Sink, prefix, ext string) (string, error) {
	uris, err := sink.List(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("listing %q: %w", prefix, err)
	}
	var latest string
	for _, uri := range uris {
		if strings.HasSuffix(uri, "."+ext) && uri > latest {
			latest = uri
		}
	}
	if latest == "" {
		return "", ErrNotFound
	}
	return latest, nil
}

// WithRetry wraps sink so every call runs under runner.
func WithRetry(sink Sink, runner *retry.Runner) Sink {
	return &retryingSink{next: sink, runner: runner}
}

type retryingSink struct {
	next   Sink
	runner *retry.Runner
}

func (r *retryingSink) Put(ctx context.Context, prefix, key string, data []byte, contentType string) (string, error) {
	return retry.Value(ctx, r.runner, "blob put", func(ctx context.Context) (string, error) {
		return r.next.Put(ctx, prefix, key, data, contentType)
	})
}

func (r *retryingSink) List(ctx context.Context, prefix string) ([]string, error) {
	return retry.Value(ctx, r.runner, "blob list", func(ctx context.Context) ([]string, error) {
		return r.next.List(ctx, prefix)
	})
}

func (r *retryingSink) Get(ctx context.Context, uri string) ([]byte, error) {
	return retry.Value(ctx, r.runner, "blob get", func(ctx context.Context) ([]byte, error) {
		b, err := r.next.Get(ctx, uri)
		if errors.Is(err, ErrNotFound) {
			return nil, retry.Permanent(err)
		}
		return b, err
	})
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

// splitBucketURI parses "scheme://bucket/key".
func splitBucketURI(uri, scheme string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, scheme+"://")
	if !ok {
		return "", "", fmt.Errorf("unsupported URI %q: want %s://", uri, scheme)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("malformed URI %q", uri)
	}
	return bucket, key, nil
}
