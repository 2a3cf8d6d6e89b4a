package memory

import (
	"context"
	"testing"
	"time"

	"gigradar/common/cache"

	"github.com/stretchr/testify/require"
)

func TestCache_SetGet(t *testing.T) {
	c := New(cache.Options{DefaultTTL: time.Minute})
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "value", 0))

	var got string
	require.NoError(t, c.Get(ctx, "k", &got))
	require.Equal(t, "value", got)

	var raw []byte
	require.NoError(t, c.Get(ctx, "k", &raw))
	require.Equal(t, []byte("value"), raw)
}

func TestCache_Expiry(t *testing.T) {
	c := New(cache.Options{DefaultTTL: time.Minute})
	defer c.Close()
	ctx := context.Background()

	now := time.Unix(1700000000, 0)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", "v", time.Second))
	now = now.Add(2 * time.Second)

	var got string
	require.ErrorIs(t, c.Get(ctx, "k", &got), cache.ErrNotFound)
}

func TestCache_InvalidInputs(t *testing.T) {
	c := New(cache.Options{})
	defer c.Close()
	ctx := context.Background()

	require.ErrorIs(t, c.Set(ctx, "", "v", 0), cache.ErrInvalidKey)
	require.ErrorIs(t, c.Set(ctx, "k", 42, 0), cache.ErrInvalidValue)

	require.NoError(t, c.Set(ctx, "k", "v", 0))
	var n int
	require.ErrorIs(t, c.Get(ctx, "k", &n), cache.ErrInvalidValue)
}

func TestCache_Closed(t *testing.T) {
	c := New(cache.Options{})
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	require.ErrorIs(t, c.Set(context.Background(), "k", "v", 0), cache.ErrClosed)
}
