package persistence

import (
	"context"
	"testing"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBill(t *testing.T, number string, vendor uuid.UUID, due int, unitCost string) *ledger.Document {
	t.Helper()
	d, err := ledger.NewVendorBill(number, vendor, "USD", day(1), day(due))
	require.NoError(t, err)
	unit, err := valueobject.DefaultUnitRegistry().Lookup("EA")
	require.NoError(t, err)
	qty, err := valueobject.NewQuantity(decimal.NewFromInt(2), unit)
	require.NoError(t, err)
	li, err := ledger.NewLineItem("paper", qty, usd(unitCost), decimal.RequireFromString("0.1"), nil)
	require.NoError(t, err)
	require.NoError(t, d.AddLineItem(li))
	return d
}

func approve(t *testing.T, d *ledger.Document) {
	t.Helper()
	require.NoError(t, d.Submit())
	require.NoError(t, d.Approve(testActor))
}

func TestGormDocumentRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewGormDocumentRepository(setupTestDB(t), nil)
	vendor := uuid.New()

	bill := newBill(t, "BILL-001", vendor, 31, "50.00")
	require.NoError(t, bill.SetEarlyPaymentTerms(&ledger.EarlyPaymentTerms{
		DiscountDate: day(10),
		DiscountRate: decimal.RequireFromString("0.02"),
	}))
	approve(t, bill)
	_, err := bill.ProcessPayment(usd("50.00"), day(20), ledger.PaymentMethodACH, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, bill))

	loaded, err := repo.FindByNumber(ctx, ledger.DocumentKindBill, "BILL-001")
	require.NoError(t, err)
	assert.Equal(t, bill.ID, loaded.ID)
	assert.Equal(t, ledger.DocumentStatusPartiallyPaid, loaded.Status())
	assert.True(t, loaded.TotalAmount().Equals(usd("110.00")))
	assert.True(t, loaded.PaidAmount().Equals(usd("50.00")))
	assert.True(t, loaded.OutstandingAmount().Equals(usd("60.00")))
	require.Len(t, loaded.LineItems(), 1)
	assert.Equal(t, "paper", loaded.LineItems()[0].Description)
	require.Len(t, loaded.Payments(), 1)
	assert.Equal(t, ledger.PaymentMethodACH, loaded.Payments()[0].Method)
	require.NotNil(t, loaded.EarlyPaymentTerms())
	assert.True(t, loaded.EarlyPaymentTerms().DiscountRate.Equal(decimal.RequireFromString("0.02")))

	_, err = repo.FindByNumber(ctx, ledger.DocumentKindInvoice, "BILL-001")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	t.Run("same number is allowed across kinds", func(t *testing.T) {
		inv, err := ledger.NewCustomerInvoice("BILL-001", uuid.New(), "USD", day(1), day(30))
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, inv))

		dup := newBill(t, "BILL-001", vendor, 30, "1.00")
		assert.ErrorIs(t, repo.Save(ctx, dup), shared.ErrAlreadyExists)
	})

	t.Run("stale save conflicts", func(t *testing.T) {
		a, err := repo.FindByID(ctx, bill.ID)
		require.NoError(t, err)
		b, err := repo.FindByID(ctx, bill.ID)
		require.NoError(t, err)

		_, err = a.ProcessPayment(usd("10.00"), day(21), ledger.PaymentMethodACH, nil)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, a))

		_, err = b.ProcessPayment(usd("10.00"), day(21), ledger.PaymentMethodACH, nil)
		require.NoError(t, err)
		assert.ErrorIs(t, repo.Save(ctx, b), shared.ErrConcurrencyConflict)
	})
}

func TestGormDocumentRepository_OpenAndPastDue(t *testing.T) {
	ctx := context.Background()
	repo := NewGormDocumentRepository(setupTestDB(t), nil)
	vendor := uuid.New()

	late := newBill(t, "BILL-001", vendor, 5, "10.00")
	approve(t, late)
	soon := newBill(t, "BILL-002", vendor, 20, "10.00")
	approve(t, soon)
	draft := newBill(t, "BILL-003", vendor, 3, "10.00")
	other := newBill(t, "BILL-004", uuid.New(), 4, "10.00")
	approve(t, other)
	for _, d := range []*ledger.Document{soon, late, draft, other} {
		require.NoError(t, repo.Save(ctx, d))
	}

	open, err := repo.FindOpen(ctx, ledger.DocumentKindBill, vendor)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "BILL-001", open[0].Number)
	assert.Equal(t, "BILL-002", open[1].Number)

	pastDue, err := repo.FindPastDue(ctx, day(10), 0)
	require.NoError(t, err)
	require.Len(t, pastDue, 2)
	assert.Equal(t, "BILL-004", pastDue[0].Number)
	assert.Equal(t, "BILL-001", pastDue[1].Number)

	limited, err := repo.FindPastDue(ctx, day(10), 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	changed, err := pastDue[1].MarkOverdue(day(10))
	require.NoError(t, err)
	require.True(t, changed)
	require.NoError(t, repo.Save(ctx, pastDue[1]))

	again, err := repo.FindPastDue(ctx, day(10), 0)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, "BILL-004", again[0].Number)

	open, err = repo.FindOpen(ctx, ledger.DocumentKindBill, vendor)
	require.NoError(t, err)
	assert.Len(t, open, 2, "overdue bills can still be paid")

	status := ledger.DocumentStatusDraft
	drafts, total, err := repo.List(ctx, ledger.DocumentFilter{Status: &status})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, drafts, 1)
	assert.Equal(t, "BILL-003", drafts[0].Number)

	found, err := repo.FindByIDs(ctx, []uuid.UUID{late.ID, other.ID})
	require.NoError(t, err)
	assert.Len(t, found, 2)
}

func TestGormDocumentRepository_UnitRegistry(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	pallet, err := valueobject.NewUnitOfMeasure("PLT", "Pallet", valueobject.DimensionCount, decimal.NewFromInt(40))
	require.NoError(t, err)
	ea, err := valueobject.DefaultUnitRegistry().Lookup("EA")
	require.NoError(t, err)
	units, err := valueobject.NewUnitRegistry(ea, pallet)
	require.NoError(t, err)
	repo := NewGormDocumentRepository(db, units)

	bill, err := ledger.NewVendorBill("BILL-PLT", uuid.New(), "USD", day(1), day(30))
	require.NoError(t, err)
	qty, err := units.NewQuantity(decimal.NewFromInt(3), "PLT")
	require.NoError(t, err)
	li, err := ledger.NewLineItem("bricks", qty, usd("12.00"), decimal.Zero, nil)
	require.NoError(t, err)
	require.NoError(t, bill.AddLineItem(li))
	require.NoError(t, repo.Save(ctx, bill))

	loaded, err := repo.FindByID(ctx, bill.ID)
	require.NoError(t, err)
	require.Len(t, loaded.LineItems(), 1)
	got := loaded.LineItems()[0].Quantity
	assert.Equal(t, "PLT", got.Unit().Code())
	assert.True(t, got.Unit().Factor().Equal(decimal.NewFromInt(40)))
	assert.True(t, got.Amount().Equal(decimal.NewFromInt(3)))
	assert.True(t, loaded.TotalAmount().Equals(usd("36.00")))

	t.Run("unit missing from the registry fails to load", func(t *testing.T) {
		_, err := NewGormDocumentRepository(db, nil).FindByID(ctx, bill.ID)
		require.Error(t, err)
		assert.ErrorContains(t, err, "PLT")
	})
}
