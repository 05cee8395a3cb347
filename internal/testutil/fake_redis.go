package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// FakeRedis is an in-memory stand-in for the Redis commands used by the
// query cache.
type FakeRedis struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration

	// GetErr makes every Get fail.
	GetErr error
}

// NewFakeRedis creates an empty FakeRedis.
func NewFakeRedis() *FakeRedis {
	return &FakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *FakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GetErr != nil {
		return redis.NewStringResult("", f.GetErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *FakeRedis) Set(_ context.Context, key string, value interface{}, exp time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	default:
		f.data[key] = fmt.Sprint(v)
	}
	f.ttls[key] = exp
	return redis.NewStatusResult("OK", nil)
}

func (f *FakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(int64(n), nil)
}

// Has reports whether key is stored.
func (f *FakeRedis) Has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok
}

// TTL returns the expiration key was stored with.
func (f *FakeRedis) TTL(key string) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ttls[key]
}

// Len returns the number of stored keys.
func (f *FakeRedis) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.data)
}
