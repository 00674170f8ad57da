// Package ratelimit throttles callers with fixed-window counters.
package ratelimit

import (
	"context"
	"math"
	"time"
)

// Limiter admits or rejects one request for key.
type Limiter interface {
	// Allow returns a deckerr RateLimit error once key has used up its window.
	Allow(ctx context.Context, key string) error
}

// Config is a fixed window: at most Limit requests per Window.
type Config struct {
	Limit  int           `koanf:"limit" validate:"min=1"`
	Window time.Duration `koanf:"window" validate:"min=1s"`
}

func retrySeconds(d time.Duration) int {
	if d <= 0 {
		return 1
	}
	return int(math.Ceil(d.Seconds()))
}
