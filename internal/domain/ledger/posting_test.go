package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cashAndRevenue(t *testing.T) (*Account, *Account) {
	return newTestAccount(t, "1000-Cash", "Cash", AccountTypeAsset),
		newTestAccount(t, "4000-Revenue", "Revenue", AccountTypeRevenue)
}

func TestPostingEngine_PostsBalancedEntry(t *testing.T) {
	cash, revenue := cashAndRevenue(t)
	postedAt := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	engine := NewPostingEngine(WithClock(func() time.Time { return postedAt }))

	entry, err := NewJournalEntryBuilder("JE-0001", testDay).
		Description("cash sale").
		Debit(cash.ID, usd("100.00"), "").
		Credit(revenue.ID, usd("100.00"), "").
		Build()
	require.NoError(t, err)

	res, err := engine.Post(entry, accountMap(cash, revenue), testActor)
	require.NoError(t, err)

	assert.Equal(t, EntryStatusPosted, entry.Status())
	assert.Equal(t, testActor, *entry.PostedBy())
	assert.Equal(t, postedAt, *entry.PostedAt())
	assert.True(t, cash.Balance().Equals(usd("100.00")))
	assert.True(t, revenue.Balance().Equals(usd("100.00")))
	require.Len(t, res.Accounts, 2)
	assert.Equal(t, "1000-Cash", res.Accounts[0].Code)

	events := entry.GetDomainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, EventTypeJournalEntryPosted, events[0].EventType())
	assert.Equal(t, EventTypeAccountBalanceUpdated, cash.GetDomainEvents()[len(cash.GetDomainEvents())-1].EventType())
}

func TestPostingEngine_RejectsUnbalanced(t *testing.T) {
	cash, revenue := cashAndRevenue(t)
	cashVersion, revVersion := cash.GetVersion(), revenue.GetVersion()

	entry, err := NewJournalEntryBuilder("JE-0002", testDay).
		Debit(cash.ID, usd("100.00"), "").
		Credit(revenue.ID, usd("99.99"), "").
		Build()
	require.NoError(t, err)

	_, err = NewPostingEngine().Post(entry, accountMap(cash, revenue), testActor)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnbalanced))
	assert.Equal(t, shared.KindInvariant, kindOf(t, err))

	assert.Equal(t, EntryStatusDraft, entry.Status())
	assert.True(t, cash.Balance().IsZero())
	assert.True(t, revenue.Balance().IsZero())
	assert.Equal(t, cashVersion, cash.GetVersion())
	assert.Equal(t, revVersion, revenue.GetVersion())
}

func TestPostingEngine_Preconditions(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(t *testing.T, cash, revenue *Account) (*JournalEntry, map[uuid.UUID]*Account)
		wantCode string
	}{
		{
			name: "closed account",
			setup: func(t *testing.T, cash, revenue *Account) (*JournalEntry, map[uuid.UUID]*Account) {
				require.NoError(t, revenue.Close(testActor, false))
				e, err := NewJournalEntryBuilder("JE-1", testDay).Debit(cash.ID, usd("5"), "").Credit(revenue.ID, usd("5"), "").Build()
				require.NoError(t, err)
				return e, accountMap(cash, revenue)
			},
			wantCode: CodeAccountClosed,
		},
		{
			name: "inactive account",
			setup: func(t *testing.T, cash, revenue *Account) (*JournalEntry, map[uuid.UUID]*Account) {
				require.NoError(t, cash.Deactivate(testActor))
				e, err := NewJournalEntryBuilder("JE-1", testDay).Debit(cash.ID, usd("5"), "").Credit(revenue.ID, usd("5"), "").Build()
				require.NoError(t, err)
				return e, accountMap(cash, revenue)
			},
			wantCode: CodeAccountInactive,
		},
		{
			name: "manual entry on control account",
			setup: func(t *testing.T, cash, revenue *Account) (*JournalEntry, map[uuid.UUID]*Account) {
				ar := newTestAccount(t, "1200", "AR", AccountTypeAsset, WithSubtype("ACCOUNTS_RECEIVABLE"))
				e, err := NewJournalEntryBuilder("JE-1", testDay).Debit(ar.ID, usd("5"), "").Credit(revenue.ID, usd("5"), "").Build()
				require.NoError(t, err)
				return e, accountMap(ar, revenue)
			},
			wantCode: CodeManualNotAllowed,
		},
		{
			name: "missing account",
			setup: func(t *testing.T, cash, revenue *Account) (*JournalEntry, map[uuid.UUID]*Account) {
				e, err := NewJournalEntryBuilder("JE-1", testDay).Debit(cash.ID, usd("5"), "").Credit(uuid.New(), usd("5"), "").Build()
				require.NoError(t, err)
				return e, accountMap(cash, revenue)
			},
			wantCode: "NOT_FOUND",
		},
		{
			name: "currency differs from account",
			setup: func(t *testing.T, cash, revenue *Account) (*JournalEntry, map[uuid.UUID]*Account) {
				eur := valueobject.MustMoney("5", valueobject.EUR)
				e, err := NewJournalEntryBuilder("JE-1", testDay).Debit(cash.ID, eur, "").Credit(revenue.ID, eur, "").Build()
				require.NoError(t, err)
				return e, accountMap(cash, revenue)
			},
			wantCode: "CURRENCY_MISMATCH",
		},
		{
			name: "single line",
			setup: func(t *testing.T, cash, revenue *Account) (*JournalEntry, map[uuid.UUID]*Account) {
				e, err := NewJournalEntryBuilder("JE-1", testDay).Debit(cash.ID, usd("5"), "").Build()
				require.NoError(t, err)
				return e, accountMap(cash, revenue)
			},
			wantCode: CodeInvalidLine,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cash, revenue := cashAndRevenue(t)
			entry, accts := tt.setup(t, cash, revenue)

			_, err := NewPostingEngine().Post(entry, accts, testActor)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, codeOf(t, err))
			assert.Equal(t, EntryStatusDraft, entry.Status())
			for _, a := range accts {
				assert.True(t, a.Balance().IsZero(), "account %s changed", a.Code)
			}
		})
	}
}

func TestPostingEngine_PostTwice(t *testing.T) {
	cash, revenue := cashAndRevenue(t)
	entry, err := NewJournalEntryBuilder("JE-1", testDay).Debit(cash.ID, usd("5"), "").Credit(revenue.ID, usd("5"), "").Build()
	require.NoError(t, err)
	engine := NewPostingEngine()
	_, err = engine.Post(entry, accountMap(cash, revenue), testActor)
	require.NoError(t, err)

	_, err = engine.Post(entry, accountMap(cash, revenue), testActor)
	require.Error(t, err)
	assert.Equal(t, CodeInvalidTransition, codeOf(t, err))
	assert.True(t, cash.Balance().Equals(usd("5")))
	assert.Equal(t, CodeInvalidTransition, codeOf(t, entry.AddDebit(cash.ID, usd("1"), "")))
}

func TestPostingEngine_MultiCurrency(t *testing.T) {
	cashUSD, revUSD := cashAndRevenue(t)
	cashEUR, err := NewAccount("1001-Cash-EUR", "Cash EUR", AccountTypeAsset, valueobject.EUR, nil)
	require.NoError(t, err)
	revEUR, err := NewAccount("4001-Rev-EUR", "Revenue EUR", AccountTypeRevenue, valueobject.EUR, nil)
	require.NoError(t, err)
	eur := valueobject.MustMoney("80", valueobject.EUR)

	entry, err := NewJournalEntryBuilder("JE-MC", testDay).
		Debit(cashUSD.ID, usd("100"), "").
		Credit(revUSD.ID, usd("100"), "").
		Debit(cashEUR.ID, eur, "").
		Credit(revEUR.ID, eur, "").
		Build()
	require.NoError(t, err)
	assert.Equal(t, []valueobject.Currency{valueobject.EUR, valueobject.USD}, entry.Currencies())

	_, err = NewPostingEngine().Post(entry, accountMap(cashUSD, revUSD, cashEUR, revEUR), testActor)
	require.NoError(t, err)
	assert.True(t, cashEUR.Balance().Equals(eur))
}

func TestPostingEngine_Reverse(t *testing.T) {
	cash, revenue := cashAndRevenue(t)
	engine := NewPostingEngine()
	accts := accountMap(cash, revenue)

	entry, err := NewJournalEntryBuilder("JE-10", testDay).Debit(cash.ID, usd("42.50"), "").Credit(revenue.ID, usd("42.50"), "").Build()
	require.NoError(t, err)
	_, err = engine.Post(entry, accts, testActor)
	require.NoError(t, err)

	res, err := engine.Reverse(entry, accts, "JE-10-R", testDay.AddDate(0, 0, 1), testActor)
	require.NoError(t, err)

	assert.Equal(t, EntryStatusReversed, entry.Status())
	assert.Equal(t, res.Reversal.ID, *entry.ReversedBy())
	assert.Equal(t, entry.ID, *res.Reversal.ReversalOf())
	assert.Equal(t, EntrySourceReversal, res.Reversal.Source)
	assert.Equal(t, "JE-10", res.Reversal.Reference)
	assert.Equal(t, EntryStatusPosted, res.Reversal.Status())
	assert.Len(t, entry.Lines(), 2)
	assert.True(t, cash.Balance().IsZero())
	assert.True(t, revenue.Balance().IsZero())

	t.Run("second reversal fails", func(t *testing.T) {
		_, err := engine.Reverse(entry, accts, "JE-10-R2", testDay, testActor)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrAlreadyReversed))
		assert.True(t, cash.Balance().IsZero())
	})
	t.Run("reversal cannot be reversed", func(t *testing.T) {
		_, err := engine.Reverse(res.Reversal, accts, "JE-10-RR", testDay, testActor)
		require.Error(t, err)
		assert.Equal(t, CodeInvalidTransition, codeOf(t, err))
	})
	t.Run("fold of lines matches balance", func(t *testing.T) {
		lines := append(entry.Lines(), res.Reversal.Lines()...)
		bal, err := ComputeBalance(cash, lines)
		require.NoError(t, err)
		assert.True(t, bal.Equals(cash.Balance()))
	})
}

// Random balanced entries keep every stored balance equal to the fold of posted lines.
func TestPostingEngine_BalanceMatchesFold(t *testing.T) {
	faker := gofakeit.New(42)
	accts := []*Account{
		newTestAccount(t, "1000", "Cash", AccountTypeAsset),
		newTestAccount(t, "1500", "Equipment", AccountTypeAsset),
		newTestAccount(t, "2000", "Loans", AccountTypeLiability),
		newTestAccount(t, "3000", "Capital", AccountTypeEquity),
		newTestAccount(t, "4000", "Sales", AccountTypeRevenue),
		newTestAccount(t, "6000", "Expenses", AccountTypeExpense),
	}
	byID := accountMap(accts...)
	engine := NewPostingEngine()
	var posted []JournalLine

	for i := 0; i < 50; i++ {
		dr := accts[faker.IntRange(0, len(accts)-1)]
		cr := accts[faker.IntRange(0, len(accts)-1)]
		amount := valueobject.MustMoney(decimal.NewFromFloat(faker.Price(0.01, 5000)).StringFixed(2), valueobject.USD)
		entry, err := NewJournalEntryBuilder(faker.Numerify("JE-######"), testDay).
			Debit(dr.ID, amount, faker.Word()).
			Credit(cr.ID, amount, faker.Word()).
			Build()
		require.NoError(t, err)
		_, err = engine.Post(entry, byID, testActor)
		require.NoError(t, err)

		for cur, tot := range entry.Totals() {
			assert.True(t, tot.IsBalanced(), "currency %s", cur)
		}
		posted = append(posted, entry.Lines()...)
	}

	for _, a := range accts {
		d, err := VerifyBalance(a, posted)
		require.NoError(t, err)
		assert.Nil(t, d, "account %s drifted", a.Code)
	}
	tb := BuildTrialBalance(testDay, accts, nil)
	assert.True(t, tb.Status.IsBalanced())
}
