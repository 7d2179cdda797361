package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReceipt(t *testing.T, amount string) *Payment {
	t.Helper()
	p, err := NewPayment(PaymentReceipt, "RCPT-001", uuid.New(), uuid.New(), usd(amount), PaymentMethodCheck, testDay)
	require.NoError(t, err)
	return p
}

func alloc(amount string) PaymentAllocation {
	return PaymentAllocation{DocumentID: uuid.New(), Amount: usd(amount)}
}

func TestNewPayment_Validation(t *testing.T) {
	cp, bank := uuid.New(), uuid.New()
	tests := []struct {
		name     string
		build    func() (*Payment, error)
		wantCode string
	}{
		{"bad direction", func() (*Payment, error) {
			return NewPayment("SIDEWAYS", "P-1", cp, bank, usd("1"), PaymentMethodACH, testDay)
		}, "INVALID_DIRECTION"},
		{"blank number", func() (*Payment, error) {
			return NewPayment(PaymentReceipt, " ", cp, bank, usd("1"), PaymentMethodACH, testDay)
		}, "INVALID_PAYMENT_NUMBER"},
		{"no bank account", func() (*Payment, error) {
			return NewPayment(PaymentReceipt, "P-1", cp, uuid.Nil, usd("1"), PaymentMethodACH, testDay)
		}, "INVALID_BANK_ACCOUNT"},
		{"zero amount", func() (*Payment, error) {
			return NewPayment(PaymentReceipt, "P-1", cp, bank, usd("0"), PaymentMethodACH, testDay)
		}, CodeInvalidAmount},
		{"bad method", func() (*Payment, error) {
			return NewPayment(PaymentReceipt, "P-1", cp, bank, usd("1"), "IOU", testDay)
		}, "INVALID_PAYMENT_METHOD"},
		{"no date", func() (*Payment, error) {
			return NewPayment(PaymentReceipt, "P-1", cp, bank, usd("1"), PaymentMethodACH, time.Time{})
		}, "INVALID_PAYMENT_DATE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tt.build()
			require.Error(t, err)
			assert.Nil(t, p)
			assert.Equal(t, tt.wantCode, codeOf(t, err))
		})
	}
}

func TestPayment_AllocateToInvoices(t *testing.T) {
	t.Run("exact split", func(t *testing.T) {
		p := newReceipt(t, "300")
		require.NoError(t, p.AllocateToInvoices([]PaymentAllocation{alloc("150"), alloc("150")}))
		assert.Len(t, p.Allocations(), 2)
		assert.True(t, p.AllocatedAmount().Equals(usd("300")))
		assert.True(t, p.Allocations()[0].DiscountTaken.IsZero())
	})
	t.Run("sum mismatch", func(t *testing.T) {
		p := newReceipt(t, "300")
		err := p.AllocateToInvoices([]PaymentAllocation{alloc("150"), alloc("200")})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrAllocationMismatch))
		assert.Empty(t, p.Allocations())
	})
	t.Run("duplicate document", func(t *testing.T) {
		p := newReceipt(t, "300")
		a := alloc("150")
		assert.Equal(t, "DUPLICATE_ALLOCATION", codeOf(t, p.AllocateToInvoices([]PaymentAllocation{a, a})))
	})
	t.Run("currency mismatch", func(t *testing.T) {
		p := newReceipt(t, "300")
		a := PaymentAllocation{DocumentID: uuid.New(), Amount: valueobject.MustMoney("300", valueobject.EUR)}
		assert.Equal(t, "CURRENCY_MISMATCH", codeOf(t, p.AllocateToInvoices([]PaymentAllocation{a})))
	})
	t.Run("empty clears", func(t *testing.T) {
		p := newReceipt(t, "300")
		require.NoError(t, p.AllocateToInvoices([]PaymentAllocation{alloc("300")}))
		require.NoError(t, p.AllocateToInvoices(nil))
		assert.Empty(t, p.Allocations())
	})
	t.Run("only in draft", func(t *testing.T) {
		p := newReceipt(t, "300")
		require.NoError(t, p.Submit())
		err := p.AllocateToInvoices([]PaymentAllocation{alloc("300")})
		require.Error(t, err)
		assert.Equal(t, shared.KindState, kindOf(t, err))
	})
}

func TestPayment_Lifecycle(t *testing.T) {
	p := newReceipt(t, "300")
	a1, a2 := alloc("100"), alloc("200")
	require.NoError(t, p.AllocateToInvoices([]PaymentAllocation{a1, a2}))

	assert.Equal(t, CodeInvalidTransition, codeOf(t, p.Issue(testActor, nil, nil)))
	require.NoError(t, p.Submit())
	require.NoError(t, p.Approve(testActor))

	entryID := uuid.New()
	require.NoError(t, p.Issue(testActor, &entryID, map[uuid.UUID]valueobject.Money{a2.DocumentID: usd("4")}))
	assert.Equal(t, PaymentStatusIssued, p.Status())
	assert.Equal(t, entryID, *p.JournalEntryID)
	assert.True(t, p.Allocations()[1].DiscountTaken.Equals(usd("4")))
	assert.True(t, p.Allocations()[0].DiscountTaken.IsZero())

	events := p.GetDomainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, EventTypePaymentProcessed, events[0].EventType())

	require.NoError(t, p.MarkReconciled(testDay))
	assert.True(t, p.IsReconciled())

	err := p.Void("bounced")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPaymentReconciled))
	assert.Contains(t, err.Error(), "ISSUED")
	assert.Equal(t, PaymentStatusIssued, p.Status())
}

func TestPayment_Void(t *testing.T) {
	p := newReceipt(t, "50")
	require.NoError(t, p.Void("entered twice"))
	assert.Equal(t, PaymentStatusVoided, p.Status())
	assert.Equal(t, EventTypePaymentVoided, p.GetDomainEvents()[0].EventType())

	err := p.Void("again")
	require.Error(t, err)
	assert.Equal(t, CodeInvalidTransition, codeOf(t, err))
	assert.Equal(t, CodeInvalidTransition, codeOf(t, p.MarkReconciled(testDay)))
}

func TestPayment_SnapshotRoundTrip(t *testing.T) {
	p := newReceipt(t, "75")
	require.NoError(t, p.AllocateToInvoices([]PaymentAllocation{alloc("75")}))
	r := ReconstitutePayment(p.Snapshot())
	assert.Equal(t, p.PaymentNumber, r.PaymentNumber)
	assert.Equal(t, p.Status(), r.Status())
	assert.Equal(t, p.Allocations(), r.Allocations())
	assert.False(t, r.IsNew())
}
