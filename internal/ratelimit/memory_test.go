package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jun/gophdeck/internal/deckerr"
)

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(Config{Limit: 2, Window: time.Minute}, nil)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, l.Allow(ctx, "u1"))
	require.NoError(t, l.Allow(ctx, "u1"))
	require.NoError(t, l.Allow(ctx, "u2"))

	now = now.Add(20 * time.Second)
	err := l.Allow(ctx, "u1")
	require.Error(t, err)
	assert.ErrorIs(t, err, deckerr.ErrRateLimit)
	assert.Contains(t, err.Error(), "retry after 40s")

	now = now.Add(40 * time.Second)
	assert.NoError(t, l.Allow(ctx, "u1"))
}

func TestMemoryLimiter_Sweep(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(Config{Limit: 5, Window: time.Minute}, nil)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	l.Allow(ctx, "a")
	now = now.Add(30 * time.Second)
	l.Allow(ctx, "b")
	assert.Equal(t, 2, l.Len())

	now = now.Add(31 * time.Second)
	assert.Equal(t, 1, l.Sweep())
	assert.Equal(t, 1, l.Len())
}

func TestMemoryLimiter_StartStopsWithContext(t *testing.T) {
	l := NewMemoryLimiter(Config{Limit: 1, Window: 10 * time.Millisecond}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	l.Start(ctx)

	require.NoError(t, l.Allow(ctx, "a"))
	assert.Eventually(t, func() bool { return l.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
}

func TestRetrySeconds(t *testing.T) {
	assert.Equal(t, 1, retrySeconds(0))
	assert.Equal(t, 1, retrySeconds(200*time.Millisecond))
	assert.Equal(t, 3, retrySeconds(2500*time.Millisecond))
}
