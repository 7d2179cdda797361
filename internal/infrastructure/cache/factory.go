package cache

import (
	"context"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/config"
	"go.uber.org/zap"
)

// NewIdempotencyStore picks the store for the event handlers from config.
// With redis enabled it returns a tiered store; if redis cannot be reached it falls
// back to memory and logs a warning, since duplicates across instances become possible.
func NewIdempotencyStore(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) shared.IdempotencyStore {
	local := NewInMemoryIdempotencyStore()
	if !cfg.Enabled {
		logger.Info("using in-memory idempotency store")
		return local
	}

	client, err := Connect(ctx, cfg)
	if err != nil {
		logger.Warn("redis unavailable, falling back to in-memory idempotency store",
			zap.String("addr", cfg.Addr()),
			zap.Error(err),
		)
		return local
	}
	logger.Info("using redis idempotency store", zap.String("addr", cfg.Addr()))
	return NewTieredIdempotencyStore(local, NewRedisIdempotencyStore(client, ""), logger)
}
