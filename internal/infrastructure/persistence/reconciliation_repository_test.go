package persistence

import (
	"context"
	"testing"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormReconciliationRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewGormReconciliationRepository(setupTestDB(t))
	bank := uuid.New()

	stmt, err := ledger.NewReconciliationStatement(bank, "USD", day(31), day(1), day(31), usd("1000.00"), usd("900.00"))
	require.NoError(t, err)
	entryID := uuid.New()
	require.NoError(t, stmt.AddOutstandingCheck("CHK-1", usd("100.00"), day(28), &entryID))
	require.NoError(t, stmt.AddBankLine("DEP-7", usd("250.00"), day(12)))
	require.NoError(t, repo.Save(ctx, stmt))

	loaded, err := repo.FindByID(ctx, stmt.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.ReconciliationInProgress, loaded.Status())
	require.Len(t, loaded.OutstandingItems(), 1)
	assert.Equal(t, "CHK-1", loaded.OutstandingItems()[0].Reference)
	require.Len(t, loaded.BankLines(), 1)
	assert.True(t, loaded.IsBalanced())

	stale, err := repo.FindByID(ctx, stmt.ID)
	require.NoError(t, err)

	require.NoError(t, loaded.Complete(testActor))
	require.NoError(t, repo.Save(ctx, loaded))

	require.NoError(t, stale.AddBookAdjustment("bank fee", usd("-5.00")))
	assert.ErrorIs(t, repo.Save(ctx, stale), shared.ErrConcurrencyConflict)

	completed := ledger.ReconciliationCompleted
	inProgress := ledger.ReconciliationInProgress
	got, total, err := repo.List(ctx, ledger.ReconciliationFilter{BankAccountID: &bank, Status: &completed})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, got, 1)
	assert.Equal(t, stmt.ID, got[0].ID)

	_, total, err = repo.List(ctx, ledger.ReconciliationFilter{Status: &inProgress})
	require.NoError(t, err)
	assert.Zero(t, total)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
