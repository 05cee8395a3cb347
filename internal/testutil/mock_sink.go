package testutil

import (
	"context"
	"fmt"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/dwsmith1983/vidtrend/internal/blob"
)

var _ blob.Sink = (*MockSink)(nil)

// MockSink is an in-memory blob sink. URIs have the form mem://key.
type MockSink struct {
	mu      sync.Mutex
	objects map[string][]byte
	ctypes  map[string]string

	// FailExt makes Put fail for keys with these extensions (e.g. "parquet").
	FailExt map[string]error
	// FailAll makes every Put fail.
	FailAll error
}

// NewMockSink creates an empty MockSink.
func NewMockSink() *MockSink {
	return &MockSink{
		objects: make(map[string][]byte),
		ctypes:  make(map[string]string),
		FailExt: make(map[string]error),
	}
}

func (m *MockSink) Put(_ context.Context, prefix, key string, data []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAll != nil {
		return "", m.FailAll
	}
	full := prefix + key
	if err := m.FailExt[strings.TrimPrefix(path.Ext(full), ".")]; err != nil {
		return "", err
	}
	m.objects[full] = slices.Clone(data)
	m.ctypes[full] = contentType
	return "mem://" + full, nil
}

func (m *MockSink) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, "mem://"+k)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (m *MockSink) Get(_ context.Context, uri string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[strings.TrimPrefix(uri, "mem://")]
	if !ok {
		return nil, fmt.Errorf("%w: %s", blob.ErrNotFound, uri)
	}
	return slices.Clone(b), nil
}

// Keys returns every stored key in order.
func (m *MockSink) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.objects))
	for k := range m.objects {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// ContentType returns the content type recorded for key.
func (m *MockSink) ContentType(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ctypes[key]
}
