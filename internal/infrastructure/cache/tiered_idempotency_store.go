package cache

import (
	"context"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"go.uber.org/zap"
)

// forgetter is implemented by stores that can drop a key
type forgetter interface {
	Forget(ctx context.Context, eventID string) error
}

// TieredIdempotencyStore answers repeat deliveries from local memory and only
// asks the shared store for events this instance has not seen.
// If the shared store is unreachable, the local tier keeps working on its own.
type TieredIdempotencyStore struct {
	local  *InMemoryIdempotencyStore
	remote shared.IdempotencyStore
	logger *zap.Logger
}

func NewTieredIdempotencyStore(local *InMemoryIdempotencyStore, remote shared.IdempotencyStore, logger *zap.Logger) *TieredIdempotencyStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TieredIdempotencyStore{local: local, remote: remote, logger: logger}
}

func (s *TieredIdempotencyStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	seen, _ := s.local.IsProcessed(ctx, eventID)
	if seen {
		return false, nil
	}

	fresh, err := s.remote.MarkProcessed(ctx, eventID, ttl)
	if err != nil {
		s.logger.Warn("shared idempotency store unavailable, using local tier",
			zap.String("event_id", eventID),
			zap.Error(err),
		)
		return s.local.MarkProcessed(ctx, eventID, ttl)
	}
	// Record locally either way so the next duplicate skips the round trip.
	_, _ = s.local.MarkProcessed(ctx, eventID, ttl)
	return fresh, nil
}

func (s *TieredIdempotencyStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	if seen, _ := s.local.IsProcessed(ctx, eventID); seen {
		return true, nil
	}
	return s.remote.IsProcessed(ctx, eventID)
}

// Forget clears eventID from both tiers
func (s *TieredIdempotencyStore) Forget(ctx context.Context, eventID string) error {
	_ = s.local.Forget(ctx, eventID)
	if f, ok := s.remote.(forgetter); ok {
		return f.Forget(ctx, eventID)
	}
	return nil
}

func (s *TieredIdempotencyStore) Close() error {
	_ = s.local.Close()
	return s.remote.Close()
}

var _ shared.IdempotencyStore = (*TieredIdempotencyStore)(nil)
