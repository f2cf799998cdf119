package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, time.Minute)
}

func TestFetchJSONPopulatesAndServesCached(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return map[string]int{"answer": 42}, nil
	}

	key, err := c.BuildKey(ctx, "product", "7", "attributes")
	require.NoError(t, err)

	var first map[string]int
	require.NoError(t, c.FetchJSON(ctx, key, &first, loader))
	require.Equal(t, 42, first["answer"])
	require.Equal(t, 1, calls)

	var second map[string]int
	require.NoError(t, c.FetchJSON(ctx, key, &second, loader))
	require.Equal(t, 42, second["answer"])
	require.Equal(t, 1, calls)
}

func TestBumpChangesKeys(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	before, err := c.BuildKey(ctx, "product", "7", "attributes")
	require.NoError(t, err)
	require.NoError(t, c.Bump(ctx))
	after, err := c.BuildKey(ctx, "product", "7", "attributes")
	require.NoError(t, err)
	require.NotEqual(t, before, after)
}

func TestNilCachePassesThrough(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	var out map[string]string
	err := c.FetchJSON(ctx, "any", &out, func(context.Context) (any, error) {
		return map[string]string{"k": "v"}, nil
	})
	require.NoError(t, err)
	require.Equal(t, "v", out["k"])
	require.NoError(t, c.Bump(ctx))
}
