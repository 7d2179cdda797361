package event

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memoryOutbox struct {
	entries map[uuid.UUID]*shared.OutboxEntry
	failOn  error
}

func newMemoryOutbox() *memoryOutbox {
	return &memoryOutbox{entries: make(map[uuid.UUID]*shared.OutboxEntry)}
}

func (r *memoryOutbox) add(status shared.OutboxStatus, eventType string) *shared.OutboxEntry {
	now := time.Now()
	e := &shared.OutboxEntry{
		ID:            uuid.New(),
		EventID:       uuid.New(),
		EventType:     eventType,
		AggregateID:   uuid.New(),
		AggregateType: "JournalEntry",
		Status:        status,
		MaxRetries:    shared.DefaultMaxRetries,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if status == shared.OutboxStatusDead {
		e.RetryCount = shared.DefaultMaxRetries
		e.LastError = "handler unavailable"
	}
	r.entries[e.ID] = e
	return e
}

func (r *memoryOutbox) Save(_ context.Context, entries ...*shared.OutboxEntry) error {
	for _, e := range entries {
		r.entries[e.ID] = e
	}
	return nil
}

func (r *memoryOutbox) FindPending(context.Context, int) ([]*shared.OutboxEntry, error) {
	return nil, nil
}

func (r *memoryOutbox) FindRetryable(context.Context, time.Time, int) ([]*shared.OutboxEntry, error) {
	return nil, nil
}

func (r *memoryOutbox) MarkProcessing(context.Context, []uuid.UUID) ([]*shared.OutboxEntry, error) {
	return nil, nil
}

func (r *memoryOutbox) FindDead(_ context.Context, page, pageSize int) ([]*shared.OutboxEntry, int64, error) {
	if r.failOn != nil {
		return nil, 0, r.failOn
	}
	var dead []*shared.OutboxEntry
	for _, e := range r.entries {
		if e.IsDead() {
			dead = append(dead, e)
		}
	}
	sort.Slice(dead, func(i, j int) bool { return dead[i].ID.String() < dead[j].ID.String() })
	total := int64(len(dead))
	start := (page - 1) * pageSize
	if start >= len(dead) {
		return nil, total, nil
	}
	end := start + pageSize
	if end > len(dead) {
		end = len(dead)
	}
	return dead[start:end], total, nil
}

func (r *memoryOutbox) FindByID(_ context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	if e, ok := r.entries[id]; ok {
		return e, nil
	}
	return nil, shared.NewNotFoundError("outbox entry", id)
}

func (r *memoryOutbox) Update(_ context.Context, entry *shared.OutboxEntry) error {
	r.entries[entry.ID] = entry
	return nil
}

func (r *memoryOutbox) DeleteOlderThan(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (r *memoryOutbox) CountByStatus(context.Context) (map[shared.OutboxStatus]int64, error) {
	counts := make(map[shared.OutboxStatus]int64)
	for _, e := range r.entries {
		counts[e.Status]++
	}
	return counts, nil
}

func TestOutboxService_GetDeadLetterEntries(t *testing.T) {
	repo := newMemoryOutbox()
	for i := 0; i < 5; i++ {
		repo.add(shared.OutboxStatusDead, "JournalEntryPosted")
	}
	repo.add(shared.OutboxStatusPending, "AccountCreated")
	svc := NewOutboxService(repo, zap.NewNop())

	t.Run("first page", func(t *testing.T) {
		result, err := svc.GetDeadLetterEntries(context.Background(), shared.Filter{Page: 1, PageSize: 3})
		require.NoError(t, err)
		assert.Equal(t, int64(5), result.Total)
		assert.Equal(t, 2, result.TotalPages)
		assert.Len(t, result.Items, 3)
		for _, e := range result.Items {
			assert.Equal(t, "DEAD", e.Status)
			assert.Equal(t, "handler unavailable", e.LastError)
		}
	})

	t.Run("page defaults", func(t *testing.T) {
		result, err := svc.GetDeadLetterEntries(context.Background(), shared.Filter{})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Page)
		assert.Len(t, result.Items, 5)
	})

	t.Run("repository failure", func(t *testing.T) {
		failing := newMemoryOutbox()
		failing.failOn = errors.New("connection reset")
		_, err := NewOutboxService(failing, nil).GetDeadLetterEntries(context.Background(), shared.Filter{})
		assert.Error(t, err)
	})
}

func TestOutboxService_RetryDeadEntry(t *testing.T) {
	repo := newMemoryOutbox()
	svc := NewOutboxService(repo, zap.NewNop())

	t.Run("requeues a dead letter", func(t *testing.T) {
		dead := repo.add(shared.OutboxStatusDead, "PaymentProcessed")
		result, err := svc.RetryDeadEntry(context.Background(), dead.ID)
		require.NoError(t, err)
		assert.Equal(t, "PENDING", result.Status)
		assert.Equal(t, 0, result.RetryCount)
		assert.Empty(t, result.LastError)
	})

	t.Run("unknown entry", func(t *testing.T) {
		_, err := svc.RetryDeadEntry(context.Background(), uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("entry is not dead", func(t *testing.T) {
		pending := repo.add(shared.OutboxStatusPending, "AccountCreated")
		_, err := svc.RetryDeadEntry(context.Background(), pending.ID)
		require.Error(t, err)
		assert.Equal(t, shared.KindState, shared.KindOf(err))
	})
}

func TestOutboxService_RetryAllDeadEntries(t *testing.T) {
	repo := newMemoryOutbox()
	// More than one batch so the loop must come back for the rest.
	for i := 0; i < retryAllBatch+7; i++ {
		repo.add(shared.OutboxStatusDead, "DocumentPaid")
	}
	pending := repo.add(shared.OutboxStatusPending, "AccountCreated")
	svc := NewOutboxService(repo, zap.NewNop())

	count, err := svc.RetryAllDeadEntries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(retryAllBatch+7), count)

	for id, e := range repo.entries {
		if id == pending.ID {
			continue
		}
		assert.Equal(t, shared.OutboxStatusPending, e.Status)
		assert.Zero(t, e.RetryCount)
	}
}

func TestOutboxService_GetStats(t *testing.T) {
	repo := newMemoryOutbox()
	for _, st := range []shared.OutboxStatus{
		shared.OutboxStatusPending,
		shared.OutboxStatusPending,
		shared.OutboxStatusProcessing,
		shared.OutboxStatusSent,
		shared.OutboxStatusSent,
		shared.OutboxStatusSent,
		shared.OutboxStatusFailed,
		shared.OutboxStatusDead,
	} {
		repo.add(st, "AccountBalanceUpdated")
	}

	stats, err := NewOutboxService(repo, zap.NewNop()).GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &OutboxStatsDTO{Pending: 2, Processing: 1, Sent: 3, Failed: 1, Dead: 1, Total: 8}, stats)
}
