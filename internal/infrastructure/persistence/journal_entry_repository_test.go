package persistence

import (
	"context"
	"testing"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type journalFixture struct {
	db       *gorm.DB
	accounts *GormAccountRepository
	entries  *GormJournalEntryRepository
	cash     *ledger.Account
	revenue  *ledger.Account
}

func newJournalFixture(t *testing.T) *journalFixture {
	t.Helper()
	db := setupTestDB(t)
	f := &journalFixture{
		db:       db,
		accounts: NewGormAccountRepository(db),
		entries:  NewGormJournalEntryRepository(db),
		cash:     newAccount(t, "1000", ledger.AccountTypeAsset),
		revenue:  newAccount(t, "4000", ledger.AccountTypeRevenue),
	}
	require.NoError(t, f.accounts.SaveAll(context.Background(), []*ledger.Account{f.cash, f.revenue}))
	return f
}

func (f *journalFixture) draft(t *testing.T, number string, d int, amount string) *ledger.JournalEntry {
	t.Helper()
	entry, err := ledger.NewJournalEntryBuilder(number, day(d)).
		Description("cash sale").
		Reference("INV-"+number).
		Debit(f.cash.ID, usd(amount), "till").
		Credit(f.revenue.ID, usd(amount), "").
		Build()
	require.NoError(t, err)
	require.NoError(t, f.entries.Save(context.Background(), entry))
	return entry
}

func (f *journalFixture) accountMap() map[uuid.UUID]*ledger.Account {
	return map[uuid.UUID]*ledger.Account{f.cash.ID: f.cash, f.revenue.ID: f.revenue}
}

func (f *journalFixture) post(t *testing.T, entry *ledger.JournalEntry) {
	t.Helper()
	ctx := context.Background()
	res, err := ledger.NewPostingEngine().Post(entry, f.accountMap(), testActor)
	require.NoError(t, err)
	err = NewGormTransactionManager(f.db).WithinTransaction(ctx, func(ctx context.Context) error {
		if err := f.entries.Save(ctx, res.Entry); err != nil {
			return err
		}
		return f.accounts.SaveAll(ctx, res.Accounts)
	})
	require.NoError(t, err)
}

func TestGormJournalEntryRepository_DraftRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newJournalFixture(t)
	entry := f.draft(t, "JE-0001", 1, "250.00")

	loaded, err := f.entries.FindByNumber(ctx, "JE-0001")
	require.NoError(t, err)
	assert.Equal(t, entry.ID, loaded.ID)
	assert.Equal(t, ledger.EntryStatusDraft, loaded.Status())
	assert.Equal(t, "INV-JE-0001", loaded.Reference)
	assert.True(t, day(1).Equal(loaded.Date))

	lines := loaded.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, ledger.SideDebit, lines[0].Side())
	assert.Equal(t, "till", lines[0].Memo)
	assert.True(t, lines[0].Amount().Equals(usd("250.00")))
	assert.Equal(t, ledger.SideCredit, lines[1].Side())

	exists, err := f.entries.ExistsByNumber(ctx, "JE-0001")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = f.entries.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormJournalEntryRepository_EditDraftRewritesLines(t *testing.T) {
	ctx := context.Background()
	f := newJournalFixture(t)
	f.draft(t, "JE-0001", 1, "100.00")

	loaded, err := f.entries.FindByNumber(ctx, "JE-0001")
	require.NoError(t, err)
	require.NoError(t, loaded.RemoveLine(2))
	require.NoError(t, loaded.AddCredit(f.revenue.ID, usd("60.00"), "goods"))
	require.NoError(t, loaded.AddCredit(f.revenue.ID, usd("40.00"), "service"))
	require.NoError(t, f.entries.Save(ctx, loaded))

	again, err := f.entries.FindByID(ctx, loaded.ID)
	require.NoError(t, err)
	lines := again.Lines()
	require.Len(t, lines, 3)
	assert.Equal(t, "goods", lines[1].Memo)
	assert.Equal(t, "service", lines[2].Memo)

	var count int64
	require.NoError(t, f.db.Table("journal_lines").Where("entry_id = ?", loaded.ID).Count(&count).Error)
	assert.EqualValues(t, 3, count)
}

func TestGormJournalEntryRepository_PostAndReverse(t *testing.T) {
	ctx := context.Background()
	f := newJournalFixture(t)

	entry := f.draft(t, "JE-0001", 2, "100.00")
	f.post(t, entry)

	stored, err := f.accounts.FindByID(ctx, f.cash.ID)
	require.NoError(t, err)
	assert.True(t, stored.Balance().Equals(usd("100.00")))

	posted, err := f.entries.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.EntryStatusPosted, posted.Status())
	require.NotNil(t, posted.PostedBy())
	assert.Equal(t, testActor, *posted.PostedBy())

	rev, err := ledger.NewPostingEngine().Reverse(entry, f.accountMap(), "JE-0002", day(5), testActor)
	require.NoError(t, err)
	err = NewGormTransactionManager(f.db).WithinTransaction(ctx, func(ctx context.Context) error {
		if err := f.entries.Save(ctx, rev.Reversal); err != nil {
			return err
		}
		if err := f.entries.Save(ctx, rev.Original); err != nil {
			return err
		}
		return f.accounts.SaveAll(ctx, rev.Accounts)
	})
	require.NoError(t, err)

	original, err := f.entries.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.EntryStatusReversed, original.Status())
	require.NotNil(t, original.ReversedBy())
	assert.Equal(t, rev.Reversal.ID, *original.ReversedBy())

	t.Run("posted lines include reversed entries", func(t *testing.T) {
		lines, err := f.entries.FindPostedLines(ctx, ledger.PostedLineQuery{AccountID: &f.cash.ID})
		require.NoError(t, err)
		require.Len(t, lines, 2)
		assert.Equal(t, "JE-0001", lines[0].EntryNumber)
		assert.Equal(t, "JE-0002", lines[1].EntryNumber)
		assert.Equal(t, ledger.SideCredit, lines[1].Side())

		plain := make([]ledger.JournalLine, 0, len(lines))
		for _, l := range lines {
			plain = append(plain, l.JournalLine)
		}
		bal, err := ledger.ComputeBalance(f.cash, plain)
		require.NoError(t, err)
		assert.True(t, bal.IsZero())
	})

	t.Run("date window", func(t *testing.T) {
		from, to := day(1), day(3)
		lines, err := f.entries.FindPostedLines(ctx, ledger.PostedLineQuery{From: &from, To: &to})
		require.NoError(t, err)
		require.Len(t, lines, 2)
		for _, l := range lines {
			assert.Equal(t, entry.ID, l.EntryID)
		}
	})

	t.Run("drafts are excluded", func(t *testing.T) {
		f.draft(t, "JE-0003", 4, "10.00")
		lines, err := f.entries.FindPostedLines(ctx, ledger.PostedLineQuery{})
		require.NoError(t, err)
		assert.Len(t, lines, 4)
	})

	t.Run("stale entry save conflicts", func(t *testing.T) {
		stale, err := f.entries.FindByNumber(ctx, "JE-0003")
		require.NoError(t, err)
		fresh, err := f.entries.FindByNumber(ctx, "JE-0003")
		require.NoError(t, err)
		f.post(t, fresh)

		require.NoError(t, stale.AddCredit(f.revenue.ID, usd("1.00"), ""))
		assert.ErrorIs(t, f.entries.Save(ctx, stale), shared.ErrConcurrencyConflict)
	})
}

func TestGormJournalEntryRepository_List(t *testing.T) {
	ctx := context.Background()
	f := newJournalFixture(t)
	f.post(t, f.draft(t, "JE-0001", 1, "10.00"))
	f.draft(t, "JE-0002", 2, "20.00")
	f.draft(t, "JE-0003", 3, "30.00")

	posted := ledger.EntryStatusPosted
	from := day(2)
	tests := []struct {
		name    string
		filter  ledger.JournalEntryFilter
		numbers []string
	}{
		{name: "all", numbers: []string{"JE-0001", "JE-0002", "JE-0003"}},
		{name: "posted", filter: ledger.JournalEntryFilter{Status: &posted}, numbers: []string{"JE-0001"}},
		{name: "from date", filter: ledger.JournalEntryFilter{FromDate: &from}, numbers: []string{"JE-0002", "JE-0003"}},
		{name: "by account", filter: ledger.JournalEntryFilter{AccountID: &f.cash.ID}, numbers: []string{"JE-0001", "JE-0002", "JE-0003"}},
		{name: "search", filter: ledger.JournalEntryFilter{Filter: shared.Filter{Search: "inv-je-0002"}}, numbers: []string{"JE-0002"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter := tt.filter
			filter.OrderBy, filter.OrderDir = "entry_number", "asc"
			got, total, err := f.entries.List(ctx, filter)
			require.NoError(t, err)
			assert.EqualValues(t, len(tt.numbers), total)
			numbers := make([]string, 0, len(got))
			for _, e := range got {
				numbers = append(numbers, e.EntryNumber)
				assert.Len(t, e.Lines(), 2)
			}
			assert.Equal(t, tt.numbers, numbers)
		})
	}
}
