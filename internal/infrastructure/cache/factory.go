package cache

import (
	"context"

	"github.com/bpo/cashclosing/internal/domain/shared"
	"github.com/bpo/cashclosing/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewIdempotencyStore returns a redis-backed store when redis is configured
// and reachable, and an in-memory store otherwise. The returned client is nil
// for the in-memory store; callers may reuse a non-nil client (rate limiting).
func NewIdempotencyStore(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (shared.IdempotencyStore, *redis.Client) {
	if !cfg.Enabled() {
		logger.Info("redis not configured, using in-memory idempotency store")
		return NewInMemoryIdempotencyStore(), nil
	}

	client, err := NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Warn("Redis unavailable, falling back to in-memory idempotency store; "+
			"duplicate event handling is not shared between instances",
			zap.String("addr", cfg.Addr()),
			zap.Error(err),
		)
		return NewInMemoryIdempotencyStore(), nil
	}

	logger.Info("using Redis idempotency store", zap.String("addr", cfg.Addr()))
	return NewRedisIdempotencyStore(client, DefaultKeyPrefix), client
}
