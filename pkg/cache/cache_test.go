package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshot struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

func TestRedisCache_RoundTripAndExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	ctx := context.Background()

	var got snapshot
	assert.ErrorIs(t, c.GetJSON(ctx, "profile:1", &got), ErrMiss)

	require.NoError(t, c.SetJSON(ctx, "profile:1", snapshot{ID: 1, Username: "alice"}, time.Minute))
	require.NoError(t, c.GetJSON(ctx, "profile:1", &got))
	assert.Equal(t, "alice", got.Username)

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, c.GetJSON(ctx, "profile:1", &got), ErrMiss)
}

func TestRedisCache_Delete(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, "a", 1, 0))
	require.NoError(t, c.SetJSON(ctx, "b", 2, 0))
	require.NoError(t, c.Delete(ctx, "a", "b"))
	assert.False(t, mr.Exists("a"))
	assert.False(t, mr.Exists("b"))
	assert.NoError(t, c.Delete(ctx))
	assert.NoError(t, c.Ping(ctx))
}
