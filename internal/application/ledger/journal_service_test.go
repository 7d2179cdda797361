package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournalService_CreateDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bank, equity := f.id(t, "1010"), f.id(t, "3000")

	t.Run("generates a number and keeps the entry in draft", func(t *testing.T) {
		resp, err := f.journal.CreateDraft(ctx, CreateJournalEntryCommand{
			Date:        day(4),
			Description: "owner funding",
			Lines:       []JournalLineInput{debit(bank, "100"), credit(equity, "100")},
		})
		require.NoError(t, err)
		assert.Regexp(t, `^JE-20240304-[0-9A-F]{8}$`, resp.EntryNumber)
		assert.Equal(t, "DRAFT", resp.Status)
		assert.Equal(t, "MANUAL", resp.Source)
		require.Len(t, resp.Lines, 2)
		assert.Equal(t, "USD", string(resp.Lines[0].Currency()))
		assert.Equal(t, "0.00", f.balance(t, "1010"))
	})

	t.Run("an unbalanced draft is accepted", func(t *testing.T) {
		_, err := f.journal.CreateDraft(ctx, CreateJournalEntryCommand{
			Date:        day(4),
			Description: "half done",
			Lines:       []JournalLineInput{debit(bank, "100")},
		})
		assert.NoError(t, err)
	})

	tests := []struct {
		name  string
		cmd   CreateJournalEntryCommand
		check func(t *testing.T, err error)
	}{
		{
			name: "line with both sides",
			cmd: CreateJournalEntryCommand{Date: day(4), Lines: []JournalLineInput{
				{AccountID: bank, Debit: decPtr("10"), Credit: decPtr("10")},
			}},
			check: func(t *testing.T, err error) { assert.Equal(t, ledger.CodeInvalidLine, codeOf(t, err)) },
		},
		{
			name: "line with neither side",
			cmd: CreateJournalEntryCommand{Date: day(4), Lines: []JournalLineInput{
				{AccountID: bank},
			}},
			check: func(t *testing.T, err error) { assert.Equal(t, ledger.CodeInvalidLine, codeOf(t, err)) },
		},
		{
			name: "unknown account",
			cmd: CreateJournalEntryCommand{Date: day(4), Lines: []JournalLineInput{
				debit(uuid.New(), "10"), credit(equity, "10"),
			}},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, shared.ErrNotFound) },
		},
		{
			name: "unknown source",
			cmd: CreateJournalEntryCommand{Date: day(4), Source: "ROBOT", Lines: []JournalLineInput{
				debit(bank, "10"), credit(equity, "10"),
			}},
			check: func(t *testing.T, err error) { assert.Equal(t, shared.KindValidation, shared.KindOf(err)) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.journal.CreateDraft(ctx, tt.cmd)
			require.Error(t, err)
			tt.check(t, err)
		})
	}

	t.Run("duplicate number", func(t *testing.T) {
		cmd := CreateJournalEntryCommand{
			EntryNumber: "JE-FIXED-1",
			Date:        day(4),
			Lines:       []JournalLineInput{debit(bank, "1"), credit(equity, "1")},
		}
		_, err := f.journal.CreateDraft(ctx, cmd)
		require.NoError(t, err)
		_, err = f.journal.CreateDraft(ctx, cmd)
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	})
}

func TestJournalService_EditDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bank, equity := f.id(t, "1010"), f.id(t, "3000")

	draft, err := f.journal.CreateDraft(ctx, CreateJournalEntryCommand{
		Date: day(5), Description: "built in steps", Lines: []JournalLineInput{debit(bank, "75")},
	})
	require.NoError(t, err)

	resp, err := f.journal.AddLines(ctx, draft.ID, []JournalLineInput{credit(equity, "50"), credit(equity, "25")})
	require.NoError(t, err)
	require.Len(t, resp.Lines, 3)

	resp, err = f.journal.RemoveLine(ctx, draft.ID, resp.Lines[2].LineNo)
	require.NoError(t, err)
	require.Len(t, resp.Lines, 2)

	_, err = f.journal.PostEntry(ctx, draft.ID, testActor)
	require.Error(t, err)
	assert.Equal(t, ledger.CodeUnbalancedEntry, codeOf(t, err))

	_, err = f.journal.AddLines(ctx, draft.ID, []JournalLineInput{credit(equity, "25")})
	require.NoError(t, err)
	posted, err := f.journal.PostEntry(ctx, draft.ID, testActor)
	require.NoError(t, err)
	assert.Equal(t, "POSTED", posted.Entry.Status)

	_, err = f.journal.AddLines(ctx, draft.ID, []JournalLineInput{debit(bank, "1")})
	require.Error(t, err)
	assert.Equal(t, shared.KindState, shared.KindOf(err))
}

func TestJournalService_PostEntry(t *testing.T) {
	ctx := context.Background()

	t.Run("moves balances and records events", func(t *testing.T) {
		f := newFixture(t)
		entry := f.post(t, day(6), "CAP-1", debit(f.id(t, "1010"), "2500.50"), credit(f.id(t, "3000"), "2500.50"))

		assert.Equal(t, "POSTED", entry.Status)
		require.NotNil(t, entry.PostedBy)
		assert.Equal(t, testActor, *entry.PostedBy)
		assert.Equal(t, "2500.50", f.balance(t, "1010"))
		assert.Equal(t, "2500.50", f.balance(t, "3000"))
		assert.Equal(t, []string{
			ledger.EventTypeJournalEntryPosted,
			ledger.EventTypeAccountBalanceUpdated,
			ledger.EventTypeAccountBalanceUpdated,
		}, f.store.eventTypes())
		assert.Equal(t, []string{"MANUAL"}, f.metrics.postings)
	})

	t.Run("expense against cash lowers the asset", func(t *testing.T) {
		f := newFixture(t)
		f.post(t, day(6), "RENT", debit(f.id(t, "6000"), "800"), credit(f.id(t, "1010"), "800"))
		assert.Equal(t, "800.00", f.balance(t, "6000"))
		assert.Equal(t, "-800.00", f.balance(t, "1010"))
	})

	t.Run("rejections leave everything untouched", func(t *testing.T) {
		f := newFixture(t)
		bank := f.id(t, "1010")

		unbalanced, err := f.journal.CreateDraft(ctx, CreateJournalEntryCommand{
			Date: day(6), Lines: []JournalLineInput{debit(bank, "100"), credit(f.id(t, "3000"), "99.99")},
		})
		require.NoError(t, err)
		control, err := f.journal.CreateDraft(ctx, CreateJournalEntryCommand{
			Date: day(6), Lines: []JournalLineInput{debit(bank, "100"), credit(f.id(t, "2000"), "100")},
		})
		require.NoError(t, err)

		tests := []struct {
			name  string
			id    uuid.UUID
			actor uuid.UUID
			code  string
		}{
			{"unbalanced", unbalanced.ID, testActor, ledger.CodeUnbalancedEntry},
			{"manual entry to a control account", control.ID, testActor, ledger.CodeManualNotAllowed},
			{"missing actor", unbalanced.ID, uuid.Nil, "INVALID_ACTOR"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := f.journal.PostEntry(ctx, tt.id, tt.actor)
				require.Error(t, err)
				assert.Equal(t, tt.code, codeOf(t, err))

				e, err := f.journal.GetEntry(ctx, tt.id)
				require.NoError(t, err)
				assert.Equal(t, "DRAFT", e.Status)
				assert.Equal(t, "0.00", f.balance(t, "1010"))
			})
		}
		assert.Empty(t, f.store.events)
	})

	t.Run("posting twice is refused", func(t *testing.T) {
		f := newFixture(t)
		entry := f.post(t, day(6), "ONCE", debit(f.id(t, "1010"), "10"), credit(f.id(t, "3000"), "10"))
		_, err := f.journal.PostEntry(ctx, entry.ID, testActor)
		require.Error(t, err)
		assert.Equal(t, ledger.CodeInvalidTransition, codeOf(t, err))
		assert.Equal(t, "10.00", f.balance(t, "1010"))
	})

	t.Run("retries a lost version race", func(t *testing.T) {
		f := newFixture(t)
		draft, err := f.journal.CreateDraft(ctx, CreateJournalEntryCommand{
			Date: day(7), Lines: []JournalLineInput{debit(f.id(t, "1010"), "40"), credit(f.id(t, "3000"), "40")},
		})
		require.NoError(t, err)
		f.accounts.conflicts = 1

		res, err := f.journal.PostEntry(ctx, draft.ID, testActor)
		require.NoError(t, err)
		assert.Equal(t, "POSTED", res.Entry.Status)
		assert.Equal(t, 1, f.metrics.conflicts["post_entry"])
		assert.Equal(t, 1, f.store.rollbacks)
		assert.Equal(t, "40.00", f.balance(t, "1010"))
	})

	t.Run("gives up after the configured attempts", func(t *testing.T) {
		f := newFixture(t)
		draft, err := f.journal.CreateDraft(ctx, CreateJournalEntryCommand{
			Date: day(7), Lines: []JournalLineInput{debit(f.id(t, "1010"), "40"), credit(f.id(t, "3000"), "40")},
		})
		require.NoError(t, err)
		f.accounts.conflicts = DefaultPostingRetries

		_, err = f.journal.PostEntry(ctx, draft.ID, testActor)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		e, err := f.journal.GetEntry(ctx, draft.ID)
		require.NoError(t, err)
		assert.Equal(t, "DRAFT", e.Status)
		assert.Equal(t, "0.00", f.balance(t, "1010"))
	})
}

func TestJournalService_PostBatch(t *testing.T) {
	ctx := context.Background()

	draft := func(t *testing.T, f *fixture, lines ...JournalLineInput) uuid.UUID {
		t.Helper()
		d, err := f.journal.CreateDraft(ctx, CreateJournalEntryCommand{Date: day(8), Lines: lines})
		require.NoError(t, err)
		return d.ID
	}

	t.Run("posts all entries against shared accounts", func(t *testing.T) {
		f := newFixture(t)
		bank, equity, rent := f.id(t, "1010"), f.id(t, "3000"), f.id(t, "6000")
		ids := []uuid.UUID{
			draft(t, f, debit(bank, "1000"), credit(equity, "1000")),
			draft(t, f, debit(rent, "300"), credit(bank, "300")),
		}
		res, err := f.journal.PostBatch(ctx, ids, testActor)
		require.NoError(t, err)
		assert.Len(t, res.Entries, 2)
		assert.Len(t, res.Accounts, 3)
		assert.Equal(t, "700.00", f.balance(t, "1010"))
		assert.Equal(t, "300.00", f.balance(t, "6000"))
		assert.Len(t, f.metrics.postings, 2)
	})

	t.Run("one bad entry posts nothing", func(t *testing.T) {
		f := newFixture(t)
		bank, equity := f.id(t, "1010"), f.id(t, "3000")
		good := draft(t, f, debit(bank, "1000"), credit(equity, "1000"))
		bad := draft(t, f, debit(bank, "5"), credit(equity, "4"))

		_, err := f.journal.PostBatch(ctx, []uuid.UUID{good, bad}, testActor)
		require.Error(t, err)
		assert.ErrorIs(t, err, ledger.ErrUnbalanced)

		e, err := f.journal.GetEntry(ctx, good)
		require.NoError(t, err)
		assert.Equal(t, "DRAFT", e.Status)
		assert.Equal(t, "0.00", f.balance(t, "1010"))
	})

	t.Run("input checks", func(t *testing.T) {
		f := newFixture(t)
		id := draft(t, f, debit(f.id(t, "1010"), "1"), credit(f.id(t, "3000"), "1"))

		_, err := f.journal.PostBatch(ctx, nil, testActor)
		assert.Equal(t, "EMPTY_BATCH", codeOf(t, err))
		_, err = f.journal.PostBatch(ctx, []uuid.UUID{id, id}, testActor)
		assert.Equal(t, "DUPLICATE_ENTRY", codeOf(t, err))
	})
}

func TestJournalService_ReverseEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	entry := f.post(t, day(10), "SALE-1", debit(f.id(t, "1010"), "450"), credit(f.id(t, "4000"), "450"))

	res, err := f.journal.ReverseEntry(ctx, ReverseEntryCommand{EntryID: entry.ID, ActorID: testActor})
	require.NoError(t, err)

	assert.Equal(t, "REVERSED", res.Original.Status)
	assert.Equal(t, "POSTED", res.Reversal.Status)
	assert.Equal(t, "REVERSAL", res.Reversal.Source)
	assert.True(t, res.Reversal.Date.Equal(day(10)))
	require.NotNil(t, res.Reversal.ReversalOf)
	assert.Equal(t, entry.ID, *res.Reversal.ReversalOf)
	assert.Equal(t, "0.00", f.balance(t, "1010"))
	assert.Equal(t, "0.00", f.balance(t, "4000"))

	t.Run("second reversal", func(t *testing.T) {
		_, err := f.journal.ReverseEntry(ctx, ReverseEntryCommand{EntryID: entry.ID, ActorID: testActor})
		assert.ErrorIs(t, err, ledger.ErrAlreadyReversed)
	})

	t.Run("reversing a reversal", func(t *testing.T) {
		_, err := f.journal.ReverseEntry(ctx, ReverseEntryCommand{EntryID: res.Reversal.ID, ActorID: testActor})
		require.Error(t, err)
		assert.Equal(t, shared.KindState, shared.KindOf(err))
	})

	t.Run("both entries stay in the books", func(t *testing.T) {
		v, err := f.journal.VerifyAccountBalance(ctx, f.id(t, "1010"))
		require.NoError(t, err)
		assert.True(t, v.Balanced)
	})
}

func TestJournalService_TrialBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bank, equity, rent := f.id(t, "1010"), f.id(t, "3000"), f.id(t, "6000")
	f.post(t, day(1), "CAP", debit(bank, "10000"), credit(equity, "10000"))
	f.post(t, day(20), "RENT", debit(rent, "1500"), credit(bank, "1500"))

	t.Run("stored balances", func(t *testing.T) {
		tb, err := f.journal.TrialBalance(ctx, time.Time{})
		require.NoError(t, err)
		assert.True(t, tb.Status.IsBalanced())
		assert.True(t, tb.AsOf.Equal(ledger.DateOf(testNow)))
		assert.Len(t, tb.Rows, 3)
	})

	t.Run("folded up to today", func(t *testing.T) {
		tb, err := f.journal.TrialBalance(ctx, testNow)
		require.NoError(t, err)
		require.Len(t, tb.Rows, 3)
		assert.True(t, tb.Rows[0].Debit.Amount().Equal(dec("8500")))
	})

	t.Run("as of an earlier date", func(t *testing.T) {
		tb, err := f.journal.TrialBalance(ctx, day(10))
		require.NoError(t, err)
		assert.True(t, tb.Status.IsBalanced())
		require.Len(t, tb.Rows, 2)
		assert.Equal(t, "1010", tb.Rows[0].Code)
		assert.True(t, tb.Rows[0].Debit.Amount().Equal(dec("10000")))
		totals := tb.Totals["USD"]
		assert.True(t, totals.Debits.Amount().Equal(dec("10000")))
		assert.True(t, totals.Credits.Amount().Equal(dec("10000")))
	})
}

func TestJournalService_VerifyBalances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bank, equity := f.id(t, "1010"), f.id(t, "3000")
	f.post(t, day(2), "CAP", debit(bank, "300"), credit(equity, "300"))

	mismatches, err := f.journal.VerifyAllBalances(ctx)
	require.NoError(t, err)
	assert.Empty(t, mismatches)

	// Simulate a balance written outside the posting engine.
	st := f.store.accounts[bank]
	st.Balance = dec("350")
	f.store.accounts[bank] = st

	mismatches, err = f.journal.VerifyAllBalances(ctx)
	require.NoError(t, err)
	require.Len(t, mismatches, 1)
	assert.Equal(t, "1010", mismatches[0].Code)
	require.NotNil(t, mismatches[0].Discrepancy)
	assert.True(t, mismatches[0].Discrepancy.Difference.Amount().Equal(dec("50")))
	assert.True(t, mismatches[0].Discrepancy.Computed.Amount().Equal(dec("300")))
}

func TestJournalService_ListEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bank, equity, rent := f.id(t, "1010"), f.id(t, "3000"), f.id(t, "6000")
	f.post(t, day(2), "A", debit(bank, "300"), credit(equity, "300"))
	f.post(t, day(3), "B", debit(rent, "100"), credit(bank, "100"))
	_, err := f.journal.CreateDraft(ctx, CreateJournalEntryCommand{Date: day(4), Lines: []JournalLineInput{debit(rent, "1")}})
	require.NoError(t, err)

	t.Run("by status", func(t *testing.T) {
		page, err := f.journal.ListEntries(ctx, JournalEntryQuery{Status: "POSTED"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), page.Total)
	})

	t.Run("by account", func(t *testing.T) {
		page, err := f.journal.ListEntries(ctx, JournalEntryQuery{AccountID: &rent})
		require.NoError(t, err)
		assert.Equal(t, int64(2), page.Total)
	})

	t.Run("invalid filters", func(t *testing.T) {
		_, err := f.journal.ListEntries(ctx, JournalEntryQuery{Status: "ARCHIVED"})
		assert.Equal(t, "INVALID_STATUS", codeOf(t, err))
		_, err = f.journal.ListEntries(ctx, JournalEntryQuery{Source: "ROBOT"})
		assert.Equal(t, "INVALID_ENTRY_SOURCE", codeOf(t, err))
	})
}
