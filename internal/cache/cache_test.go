package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestL1HitAndExpiry(t *testing.T) {
	ctx := context.Background()
	c := New(ctx, "", time.Minute, 10)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set(ctx, "k", []byte("v"))
	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v", string(got))

	now = now.Add(2 * time.Minute)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestEvictsWhenFull(t *testing.T) {
	ctx := context.Background()
	c := New(ctx, "", time.Minute, 2)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	step := 0
	c.now = func() time.Time { return base.Add(time.Duration(step) * time.Second) }

	c.Set(ctx, "a", []byte("1"))
	step++
	c.Set(ctx, "b", []byte("2"))
	step++
	c.Set(ctx, "c", []byte("3"))

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get(ctx, "a")
	assert.False(t, ok, "oldest entry should be evicted")
}

func TestInvalidRedisURLDisablesL2(t *testing.T) {
	c := New(context.Background(), "not a url", time.Minute, 10)
	assert.Nil(t, c.rdb)
	assert.NoError(t, c.Close())
}

func TestNilCacheIsSafe(t *testing.T) {
	var c *Cache
	c.Set(context.Background(), "k", []byte("v"))
	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestKeyIsStable(t *testing.T) {
	assert.Equal(t, Key("followers", "alice", "1"), Key("followers", "alice", "1"))
	assert.NotEqual(t, Key("followers", "alice", "1"), Key("followers", "alice", "2"))
}
