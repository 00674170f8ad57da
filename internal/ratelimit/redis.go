package ratelimit

import (
	"context"
	"fmt"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jun/gophdeck/internal/deckerr"
)

const keyPrefix = "gophdeck:ratelimit:"

// RedisOptions locate the Redis server.
type RedisOptions struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, opts RedisOptions, logger *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, pkgerrors.Wrap(err, "failed to connect to redis")
	}

	logger.Info("Redis connected successfully",
		zap.String("addr", opts.Addr),
		zap.Int("db", opts.DB),
	)
	return client, nil
}

// RedisLimiter shares windows between instances through Redis.
type RedisLimiter struct {
	client redis.Cmdable
	cfg    Config
	logger *zap.Logger
}

func NewRedisLimiter(client redis.Cmdable, cfg Config, logger *zap.Logger) *RedisLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLimiter{client: client, cfg: cfg, logger: logger}
}

// Allow increments the key's counter. The first increment of a window sets
// its expiry.
func (l *RedisLimiter) Allow(ctx context.Context, key string) error {
	k := fmt.Sprintf("%s%s", keyPrefix, key)

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, l.cfg.Window)
		ttl = pipe.PTTL(ctx, k)
		return nil
	})
	if err != nil {
		// Fail open: an unavailable Redis does not block presentation creation.
		l.logger.Warn("rate limit check failed", zap.String("key", key), zap.Error(err))
		return nil
	}

	if incr.Val() > int64(l.cfg.Limit) {
		return deckerr.RateLimit(key, retrySeconds(ttl.Val()))
	}
	return nil
}
