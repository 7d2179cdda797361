package ledger

import (
	"context"
	"testing"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) draftPayment(t *testing.T, direction string, counterparty uuid.UUID, amount string) *PaymentResponse {
	t.Helper()
	p, err := f.pays.CreatePayment(context.Background(), CreatePaymentCommand{
		Direction:      direction,
		CounterpartyID: counterparty,
		BankAccountID:  f.id(t, "1010"),
		Amount:         dec(amount),
		Method:         "ACH",
		PaymentDate:    day(15),
	})
	require.NoError(t, err)
	return p
}

// approve takes a draft payment through submit and approval
func (f *fixture) approvePayment(t *testing.T, id uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	_, err := f.pays.Submit(ctx, id)
	require.NoError(t, err)
	_, err = f.pays.Approve(ctx, id, testActor)
	require.NoError(t, err)
}

func TestPaymentService_CreatePayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bank := f.id(t, "1010")

	t.Run("defaults to the bank account currency", func(t *testing.T) {
		p := f.draftPayment(t, "DISBURSEMENT", uuid.New(), "125.50")
		assert.Equal(t, "DRAFT", p.Status)
		assert.Equal(t, "USD", string(p.Amount.Currency()))
		assert.Regexp(t, `^PAY-20240315-`, p.PaymentNumber)
		assert.True(t, p.AllocatedAmount.IsZero())
	})

	tests := []struct {
		name  string
		cmd   CreatePaymentCommand
		check func(t *testing.T, err error)
	}{
		{
			name: "currency differs from the bank account",
			cmd: CreatePaymentCommand{Direction: "RECEIPT", CounterpartyID: uuid.New(), BankAccountID: bank,
				Amount: dec("10"), Currency: "EUR", Method: "WIRE", PaymentDate: day(3)},
			check: func(t *testing.T, err error) { assert.Equal(t, "CURRENCY_MISMATCH", codeOf(t, err)) },
		},
		{
			name: "unknown bank account",
			cmd: CreatePaymentCommand{Direction: "RECEIPT", CounterpartyID: uuid.New(), BankAccountID: uuid.New(),
				Amount: dec("10"), Method: "WIRE", PaymentDate: day(3)},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, shared.ErrNotFound) },
		},
		{
			name: "unknown method",
			cmd: CreatePaymentCommand{Direction: "RECEIPT", CounterpartyID: uuid.New(), BankAccountID: bank,
				Amount: dec("10"), Method: "BARTER", PaymentDate: day(3)},
			check: func(t *testing.T, err error) { assert.Equal(t, "INVALID_PAYMENT_METHOD", codeOf(t, err)) },
		},
		{
			name: "zero amount",
			cmd: CreatePaymentCommand{Direction: "RECEIPT", CounterpartyID: uuid.New(), BankAccountID: bank,
				Amount: dec("0"), Method: "WIRE", PaymentDate: day(3)},
			check: func(t *testing.T, err error) { assert.Equal(t, shared.KindValidation, shared.KindOf(err)) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.pays.CreatePayment(ctx, tt.cmd)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestPaymentService_AutoAllocateAndIssue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	vendor := uuid.New()
	first := f.approvedDocument(t, ledger.DocumentKindBill, vendor, "B-1", "300", day(10))
	second := f.approvedDocument(t, ledger.DocumentKindBill, vendor, "B-2", "500", day(20))
	third := f.approvedDocument(t, ledger.DocumentKindBill, vendor, "B-3", "400", day(25))
	f.approvedDocument(t, ledger.DocumentKindBill, uuid.New(), "B-OTHER", "999", day(5))

	p := f.draftPayment(t, "DISBURSEMENT", vendor, "600")
	resp, err := f.pays.AllocatePayment(ctx, AllocatePaymentCommand{PaymentID: p.ID})
	require.NoError(t, err)
	require.Len(t, resp.Allocations, 2)
	assert.Equal(t, first.ID, resp.Allocations[0].DocumentID)
	assert.True(t, resp.Allocations[0].Amount.Amount().Equal(dec("300")))
	assert.Equal(t, second.ID, resp.Allocations[1].DocumentID)
	assert.True(t, resp.Allocations[1].Amount.Amount().Equal(dec("300")))

	t.Run("cannot issue before approval", func(t *testing.T) {
		_, err := f.pays.Issue(ctx, p.ID, testActor)
		require.Error(t, err)
		assert.Equal(t, ledger.CodeInvalidTransition, codeOf(t, err))
	})

	f.approvePayment(t, p.ID)
	issued, err := f.pays.Issue(ctx, p.ID, testActor)
	require.NoError(t, err)
	assert.Equal(t, "ISSUED", issued.Status)
	require.NotNil(t, issued.JournalEntryID)
	require.NotNil(t, issued.IssuedBy)
	assert.Equal(t, []string{"DISBURSEMENT"}, f.metrics.payments)

	for id, want := range map[uuid.UUID]struct{ status, outstanding string }{
		first.ID:  {"PAID", "0"},
		second.ID: {"PARTIALLY_PAID", "200"},
		third.ID:  {"APPROVED", "400"},
	} {
		doc, err := f.docs.GetDocument(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want.status, doc.Status, doc.Number)
		assert.True(t, doc.Outstanding.Amount().Equal(dec(want.outstanding)), doc.Number)
	}

	entry, err := f.journal.GetEntry(ctx, *issued.JournalEntryID)
	require.NoError(t, err)
	assert.Equal(t, p.PaymentNumber, entry.Reference)
	assert.Equal(t, "-600.00", f.balance(t, "2000"))
	assert.Equal(t, "-600.00", f.balance(t, "1010"))
	assert.Contains(t, f.store.eventTypes(), ledger.EventTypePaymentProcessed)

	t.Run("an applied payment cannot be voided", func(t *testing.T) {
		_, err := f.pays.VoidPayment(ctx, p.ID, "sent twice", testActor)
		require.Error(t, err)
		assert.Equal(t, "PAYMENT_APPLIED", codeOf(t, err))
	})
}

func TestPaymentService_ProportionalAllocation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := uuid.New()
	big := f.approvedDocument(t, ledger.DocumentKindInvoice, customer, "I-1", "300", day(10))
	small := f.approvedDocument(t, ledger.DocumentKindInvoice, customer, "I-2", "100", day(20))

	p := f.draftPayment(t, "RECEIPT", customer, "200")
	resp, err := f.pays.AllocatePayment(ctx, AllocatePaymentCommand{PaymentID: p.ID, Strategy: "proportional"})
	require.NoError(t, err)

	got := make(map[uuid.UUID]string)
	for _, a := range resp.Allocations {
		got[a.DocumentID] = a.Amount.Amount().StringFixed(2)
	}
	assert.Equal(t, map[uuid.UUID]string{big.ID: "150.00", small.ID: "50.00"}, got)

	f.approvePayment(t, p.ID)
	_, err = f.pays.Issue(ctx, p.ID, testActor)
	require.NoError(t, err)
	assert.Equal(t, "200.00", f.balance(t, "1010"))
	assert.Equal(t, "-200.00", f.balance(t, "1200"))
}

func TestPaymentService_AllocationErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	vendor := uuid.New()
	bill := f.approvedDocument(t, ledger.DocumentKindBill, vendor, "B-1", "50", day(10))
	foreign := f.approvedDocument(t, ledger.DocumentKindBill, uuid.New(), "B-2", "50", day(10))
	invoice := f.approvedDocument(t, ledger.DocumentKindInvoice, vendor, "I-1", "50", day(10))

	tests := []struct {
		name   string
		amount string
		cmd    func(id uuid.UUID) AllocatePaymentCommand
		code   string
	}{
		{
			name:   "strategy cannot place the whole amount",
			amount: "80",
			cmd:    func(id uuid.UUID) AllocatePaymentCommand { return AllocatePaymentCommand{PaymentID: id} },
			code:   ledger.CodeAllocationMismatch,
		},
		{
			name:   "unknown strategy",
			amount: "50",
			cmd: func(id uuid.UUID) AllocatePaymentCommand {
				return AllocatePaymentCommand{PaymentID: id, Strategy: "lifo"}
			},
			code: "UNKNOWN_ALLOCATION_STRATEGY",
		},
		{
			name:   "manual allocation above outstanding",
			amount: "60",
			cmd: func(id uuid.UUID) AllocatePaymentCommand {
				return AllocatePaymentCommand{PaymentID: id, Allocations: []AllocationInput{{DocumentID: bill.ID, Amount: dec("60")}}}
			},
			code: ledger.CodeExceedsOutstanding,
		},
		{
			name:   "manual allocations short of the payment",
			amount: "60",
			cmd: func(id uuid.UUID) AllocatePaymentCommand {
				return AllocatePaymentCommand{PaymentID: id, Allocations: []AllocationInput{{DocumentID: bill.ID, Amount: dec("40")}}}
			},
			code: ledger.CodeAllocationMismatch,
		},
		{
			name:   "document of another counterparty",
			amount: "50",
			cmd: func(id uuid.UUID) AllocatePaymentCommand {
				return AllocatePaymentCommand{PaymentID: id, Allocations: []AllocationInput{{DocumentID: foreign.ID, Amount: dec("50")}}}
			},
			code: "INVALID_ALLOCATION",
		},
		{
			name:   "invoice on a disbursement",
			amount: "50",
			cmd: func(id uuid.UUID) AllocatePaymentCommand {
				return AllocatePaymentCommand{PaymentID: id, Allocations: []AllocationInput{{DocumentID: invoice.ID, Amount: dec("50")}}}
			},
			code: "INVALID_ALLOCATION",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := f.draftPayment(t, "DISBURSEMENT", vendor, tt.amount)
			_, err := f.pays.AllocatePayment(ctx, tt.cmd(p.ID))
			require.Error(t, err)
			assert.Equal(t, tt.code, codeOf(t, err))

			got, err := f.pays.GetPayment(ctx, p.ID)
			require.NoError(t, err)
			assert.Empty(t, got.Allocations)
		})
	}

	t.Run("missing document", func(t *testing.T) {
		p := f.draftPayment(t, "DISBURSEMENT", vendor, "10")
		_, err := f.pays.AllocatePayment(ctx, AllocatePaymentCommand{PaymentID: p.ID, Allocations: []AllocationInput{
			{DocumentID: uuid.New(), Amount: dec("10")},
		}})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("allocations are fixed once submitted", func(t *testing.T) {
		p := f.draftPayment(t, "DISBURSEMENT", vendor, "50")
		_, err := f.pays.Submit(ctx, p.ID)
		require.NoError(t, err)
		_, err = f.pays.AllocatePayment(ctx, AllocatePaymentCommand{PaymentID: p.ID})
		assert.Equal(t, ledger.CodeInvalidTransition, codeOf(t, err))
	})
}

func TestPaymentService_VoidPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("a draft is voided without touching the ledger", func(t *testing.T) {
		f := newFixture(t)
		p := f.draftPayment(t, "RECEIPT", uuid.New(), "75")
		_, err := f.pays.VoidPayment(ctx, p.ID, "", testActor)
		assert.Equal(t, "INVALID_REASON", codeOf(t, err))

		resp, err := f.pays.VoidPayment(ctx, p.ID, "customer cancelled", testActor)
		require.NoError(t, err)
		assert.Equal(t, "VOIDED", resp.Status)
		assert.Empty(t, f.store.entries)
		assert.Contains(t, f.store.eventTypes(), ledger.EventTypePaymentVoided)
	})

	t.Run("an issued unallocated payment has its entry reversed", func(t *testing.T) {
		f := newFixture(t)
		p := f.draftPayment(t, "DISBURSEMENT", uuid.New(), "75")
		f.approvePayment(t, p.ID)
		issued, err := f.pays.Issue(ctx, p.ID, testActor)
		require.NoError(t, err)
		assert.Equal(t, "-75.00", f.balance(t, "1010"))

		resp, err := f.pays.VoidPayment(ctx, p.ID, "stopped cheque", testActor)
		require.NoError(t, err)
		assert.Equal(t, "VOIDED", resp.Status)
		assert.Equal(t, "0.00", f.balance(t, "1010"))
		assert.Equal(t, "0.00", f.balance(t, "2000"))

		entry, err := f.journal.GetEntry(ctx, *issued.JournalEntryID)
		require.NoError(t, err)
		assert.Equal(t, "REVERSED", entry.Status)
		require.NotNil(t, entry.ReversedBy)
	})

	t.Run("reversal needs an actor", func(t *testing.T) {
		f := newFixture(t)
		p := f.draftPayment(t, "DISBURSEMENT", uuid.New(), "75")
		f.approvePayment(t, p.ID)
		_, err := f.pays.Issue(ctx, p.ID, testActor)
		require.NoError(t, err)

		_, err = f.pays.VoidPayment(ctx, p.ID, "stopped cheque", uuid.Nil)
		assert.Equal(t, "INVALID_ACTOR", codeOf(t, err))
		got, err := f.pays.GetPayment(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "ISSUED", got.Status)
	})

	t.Run("voided is final", func(t *testing.T) {
		f := newFixture(t)
		p := f.draftPayment(t, "RECEIPT", uuid.New(), "75")
		_, err := f.pays.VoidPayment(ctx, p.ID, "typo", testActor)
		require.NoError(t, err)
		_, err = f.pays.Submit(ctx, p.ID)
		assert.Equal(t, ledger.CodeInvalidTransition, codeOf(t, err))
	})
}

func TestPaymentService_ListPayments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	vendor := uuid.New()
	f.draftPayment(t, "DISBURSEMENT", vendor, "10")
	f.draftPayment(t, "DISBURSEMENT", vendor, "20")
	f.draftPayment(t, "RECEIPT", uuid.New(), "30")

	page, err := f.pays.ListPayments(ctx, PaymentQuery{Direction: "DISBURSEMENT"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)

	page, err = f.pays.ListPayments(ctx, PaymentQuery{CounterpartyID: &vendor, Status: "DRAFT"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)

	_, err = f.pays.ListPayments(ctx, PaymentQuery{Direction: "SIDEWAYS"})
	assert.Equal(t, "INVALID_DIRECTION", codeOf(t, err))
}
