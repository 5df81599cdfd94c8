package ratelimit

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

func TestRedisLimiter_AllowsWithinLimit(t *testing.T) {
	client, _ := setupTestRedis(t)

	limiter := NewRedisLimiter(client, testLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := limiter.Check(ctx, "phone:254712345678", 5, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, 5-(i+1), result.Remaining)
	}
}

func TestRedisLimiter_BlocksWhenExceeded(t *testing.T) {
	client, _ := setupTestRedis(t)

	limiter := NewRedisLimiter(client, testLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := limiter.Check(ctx, "phone:254712345678", 2, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i < 2, result.Allowed)
	}
}

func TestRedisLimiter_SlidingWindow(t *testing.T) {
	client, _ := setupTestRedis(t)

	limiter := NewRedisLimiter(client, testLogger())
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		result, err := limiter.Check(ctx, "phone:254712345678", 2, time.Second)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	}

	now = now.Add(1100 * time.Millisecond)

	result, err := limiter.Check(ctx, "phone:254712345678", 2, time.Second)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestRedisLimiter_KeyExpires(t *testing.T) {
	client, mr := setupTestRedis(t)

	limiter := NewRedisLimiter(client, testLogger())
	_, err := limiter.Check(context.Background(), "phone:254712345678", 2, time.Minute)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Minute, mr.TTL("ratelimit:phone:254712345678"))
}

func TestRedisLimiter_RedisDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	t.Cleanup(func() { _ = client.Close() })

	_, err := NewRedisLimiter(client, testLogger()).Check(context.Background(), "phone:1", 2, time.Minute)
	assert.Error(t, err)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
