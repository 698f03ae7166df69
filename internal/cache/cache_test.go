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
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(rdb, 50*time.Millisecond)
}

func TestSaveAndGetLatest(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	err := c.SaveLatest(ctx, Snapshot{StreamID: "cam-1", FrameNumber: 42, PersonCount: 3})
	require.NoError(t, err)

	got, ok := c.GetLatest(ctx, "cam-1")
	require.True(t, ok)
	require.Equal(t, 42, got.FrameNumber)
	require.Equal(t, 3, got.PersonCount)
}

func TestGetLatest_MissingKeyReturnsFalse(t *testing.T) {
	c := newTestCache(t)
	_, ok := c.GetLatest(context.Background(), "nonexistent")
	require.False(t, ok)
}

func TestCache_NilClientIsNoop(t *testing.T) {
	c := New(nil, time.Second)
	require.NoError(t, c.SaveLatest(context.Background(), Snapshot{StreamID: "x"}))
	_, ok := c.GetLatest(context.Background(), "x")
	require.False(t, ok)
}
