package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockEventHandler struct {
	mock.Mock
}

func (m *MockEventHandler) Handle(ctx context.Context, ev shared.DomainEvent) error {
	return m.Called(ctx, ev).Error(0)
}

func (m *MockEventHandler) EventTypes() []string {
	return m.Called().Get(0).([]string)
}

type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, eventID, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Close() error {
	return m.Called().Error(0)
}

func TestIdempotentHandler_Handle(t *testing.T) {
	ctx := context.Background()

	t.Run("duplicates are skipped", func(t *testing.T) {
		store := cache.NewInMemoryIdempotencyStore()
		defer store.Close()
		inner := new(MockEventHandler)
		ev := newTestEvent("DocumentPaid")
		inner.On("Handle", mock.Anything, ev).Return(nil).Once()

		h := NewIdempotentHandler(inner, store, zap.NewNop())
		for i := 0; i < 3; i++ {
			require.NoError(t, h.Handle(ctx, ev))
		}

		inner.AssertExpectations(t)
		assert.Equal(t, IdempotencyStats{Processed: 1, Duplicate: 2}, h.Stats())
	})

	t.Run("handler error is returned and counted", func(t *testing.T) {
		store := cache.NewInMemoryIdempotencyStore()
		defer store.Close()
		inner := new(MockEventHandler)
		ev := newTestEvent("DocumentPaid")
		boom := errors.New("notify failed")
		inner.On("Handle", mock.Anything, ev).Return(boom)

		h := NewIdempotentHandler(inner, store, zap.NewNop())

		assert.ErrorIs(t, h.Handle(ctx, ev), boom)
		assert.Equal(t, IdempotencyStats{Failed: 1}, h.Stats())
	})

	t.Run("store error still handles the event", func(t *testing.T) {
		store := new(MockIdempotencyStore)
		inner := new(MockEventHandler)
		ev := newTestEvent("PaymentProcessed")
		store.On("MarkProcessed", mock.Anything, ev.EventID().String(), 24*time.Hour).
			Return(false, errors.New("redis down"))
		inner.On("Handle", mock.Anything, ev).Return(nil)

		h := NewIdempotentHandler(inner, store, zap.NewNop())

		require.NoError(t, h.Handle(ctx, ev))
		store.AssertExpectations(t)
		inner.AssertExpectations(t)
	})

	t.Run("disabled passes everything through", func(t *testing.T) {
		store := new(MockIdempotencyStore)
		inner := new(MockEventHandler)
		ev := newTestEvent("PaymentProcessed")
		inner.On("Handle", mock.Anything, ev).Return(nil).Times(2)

		h := NewIdempotentHandler(inner, store, zap.NewNop(),
			WithIdempotencyConfig(shared.IdempotencyConfig{Enabled: false}),
		)
		require.NoError(t, h.Handle(ctx, ev))
		require.NoError(t, h.Handle(ctx, ev))

		inner.AssertExpectations(t)
		store.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything)
		assert.Equal(t, IdempotencyStats{}, h.Stats())
	})

	t.Run("custom ttl reaches the store", func(t *testing.T) {
		store := new(MockIdempotencyStore)
		inner := new(MockEventHandler)
		ev := newTestEvent("AccountCreated")
		store.On("MarkProcessed", mock.Anything, ev.EventID().String(), time.Hour).Return(true, nil)
		inner.On("Handle", mock.Anything, ev).Return(nil)

		h := NewIdempotentHandler(inner, store, zap.NewNop(),
			WithIdempotencyConfig(shared.IdempotencyConfig{Enabled: true, TTL: time.Hour}),
		)
		require.NoError(t, h.Handle(ctx, ev))
		store.AssertExpectations(t)
	})
}

func TestIdempotentHandler_Delegates(t *testing.T) {
	inner := new(MockEventHandler)
	inner.On("EventTypes").Return([]string{"DocumentPaid", "DocumentVoided"})

	h := NewIdempotentHandler(inner, new(MockIdempotencyStore), zap.NewNop())

	assert.Equal(t, []string{"DocumentPaid", "DocumentVoided"}, h.EventTypes())
	assert.Same(t, inner, h.Unwrap())
}

func TestIdempotentHandler_ConcurrentRedelivery(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()
	inner := new(MockEventHandler)
	ev := newTestEvent("JournalEntryPosted")
	inner.On("Handle", mock.Anything, ev).Return(nil).Once()

	h := NewIdempotentHandler(inner, store, zap.NewNop())

	const deliveries = 32
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, h.Handle(context.Background(), ev))
		}()
	}
	wg.Wait()

	inner.AssertExpectations(t)
	assert.Equal(t, int64(deliveries-1), h.Stats().Duplicate)
}

func TestIdempotentHandler_OnBus(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()
	inner := newTestHandler("DocumentPaid")
	bus := NewInMemoryEventBus(zap.NewNop())
	bus.Subscribe(NewIdempotentHandler(inner, store, zap.NewNop()))

	ev := newTestEvent("DocumentPaid")
	require.NoError(t, bus.Publish(context.Background(), ev, ev))

	assert.Equal(t, 1, inner.count())
}
