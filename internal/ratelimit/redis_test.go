package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jun/gophdeck/internal/deckerr"
)

// Runs against a real server when GOPHDECK_TEST_REDIS_ADDR is set.
func TestRedisLimiter(t *testing.T) {
	addr := os.Getenv("GOPHDECK_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("GOPHDECK_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client, err := NewRedisClient(ctx, RedisOptions{Addr: addr}, zap.NewNop())
	require.NoError(t, err)
	defer client.Close()

	l := NewRedisLimiter(client, Config{Limit: 2, Window: time.Minute}, nil)
	key := "test-" + uuid.NewString()
	defer client.Del(ctx, keyPrefix+key)

	require.NoError(t, l.Allow(ctx, key))
	require.NoError(t, l.Allow(ctx, key))
	err = l.Allow(ctx, key)
	assert.ErrorIs(t, err, deckerr.ErrRateLimit)

	ttl, err := client.TTL(ctx, keyPrefix+key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestRedisLimiter_FailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	l := NewRedisLimiter(client, Config{Limit: 1, Window: time.Minute}, nil)
	assert.NoError(t, l.Allow(context.Background(), "u1"))
}
