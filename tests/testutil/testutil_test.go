package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/ledger/internal/infrastructure/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewTestUUID(t *testing.T) {
	assert.Equal(t, NewTestUUID("a"), NewTestUUID("a"))
	assert.NotEqual(t, NewTestUUID("a"), NewTestUUID("b"))
}

func TestStack_PostEntry(t *testing.T) {
	s := NewStack(t, NewSQLiteDB(t))

	s.PostEntry(Day(2), "DEP-1", s.AccountID("1010"), s.AccountID("3000"), "500")

	assert.True(t, s.Balance("1010").Equal(s.Balance("3000")))
	assert.Equal(t, "500", s.Balance("1010").String())
	assert.Positive(t, s.PendingOutbox())
}

func TestRecordingHandler_OnBus(t *testing.T) {
	s := NewStack(t, NewSQLiteDB(t))
	s.PostEntry(Day(2), "DEP-1", s.AccountID("1010"), s.AccountID("3000"), "500")

	bus := event.NewInMemoryEventBus(zap.NewNop())
	h := NewRecordingHandler()
	bus.Subscribe(h)
	require.NoError(t, bus.Start(context.Background()))
	t.Cleanup(func() { _ = bus.Stop(context.Background()) })

	processor := event.NewOutboxProcessor(s.OutboxRepo, bus, s.Serializer, event.OutboxProcessorConfig{
		BatchSize:    10,
		PollInterval: 10 * time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, processor.Start(context.Background()))
	t.Cleanup(func() { _ = processor.Stop(context.Background()) })

	RequireEventually(t, func() bool { return s.PendingOutbox() == 0 }, 5*time.Second, 10*time.Millisecond)
	require.Positive(t, h.Count(""))
	assert.Equal(t, len(h.Handled()), h.Count(""))

	h.FailWith(errors.New("down"))
	assert.Error(t, h.Handle(context.Background(), h.Handled()[0]))
}
