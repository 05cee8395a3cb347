package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/vidtrend/internal/testutil"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestKey(t *testing.T) {
	assert.Equal(t, "vidtrend:top_videos:B:view_count:10", Key("top_videos", "B", "view_count", "10"))
}

func TestFetch_CacheAside(t *testing.T) {
	rdb := testutil.NewFakeRedis()
	c := NewWithClient(rdb, time.Minute, nil)
	calls := 0
	load := func(context.Context) (payload, error) {
		calls++
		return payload{Name: "a", Count: calls}, nil
	}

	first, err := Fetch(context.Background(), c, "k", load)
	require.NoError(t, err)
	second, err := Fetch(context.Background(), c, "k", load)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
	assert.Equal(t, time.Minute, rdb.TTL("k"))
}

func TestFetch_LoadErrorNotCached(t *testing.T) {
	rdb := testutil.NewFakeRedis()
	c := NewWithClient(rdb, 0, nil)
	boom := errors.New("db down")

	_, err := Fetch(context.Background(), c, "k", func(context.Context) (payload, error) { return payload{}, boom })
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, rdb.Len())
}

func TestFetch_ReadErrorFallsThrough(t *testing.T) {
	rdb := testutil.NewFakeRedis()
	rdb.GetErr = errors.New("connection reset")
	c := NewWithClient(rdb, 0, nil)

	v, err := Fetch(context.Background(), c, "k", func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestNilCacheIsNoop(t *testing.T) {
	var c *Cache
	var dst payload
	assert.False(t, c.Get(context.Background(), "k", &dst))
	assert.NoError(t, c.Set(context.Background(), "k", payload{}))
	assert.NoError(t, c.Delete(context.Background(), "k"))
	assert.NoError(t, c.Close())

	v, err := Fetch(context.Background(), c, "k", func(context.Context) (int, error) { return 3, nil })
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}

func TestNew_DisabledWithoutURL(t *testing.T) {
	assert.Nil(t, New(context.Background(), "", 0, nil))
	assert.Nil(t, New(context.Background(), "not a url", 0, nil))
}

func TestDelete(t *testing.T) {
	rdb := testutil.NewFakeRedis()
	c := NewWithClient(rdb, 0, nil)
	require.NoError(t, c.Set(context.Background(), "a", 1))
	require.NoError(t, c.Delete(context.Background(), "a"))
	assert.False(t, c.Get(context.Background(), "a", new(int)))
}

func TestGeneration_InvalidateRotates(t *testing.T) {
	ctx := context.Background()
	c := NewWithClient(testutil.NewFakeRedis(), time.Minute, nil)

	first := c.Generation(ctx, "B")
	require.NotEmpty(t, first)
	assert.Equal(t, first, c.Generation(ctx, "B"))
	assert.NotEqual(t, first, c.Generation(ctx, "other"))

	require.NoError(t, c.Invalidate(ctx, "B"))
	assert.NotEqual(t, first, c.Generation(ctx, "B"))
}

func TestGeneration_DisabledCache(t *testing.T) {
	var c *Cache
	assert.Empty(t, c.Generation(context.Background(), "B"))
	assert.NoError(t, c.Invalidate(context.Background(), "B"))
}
