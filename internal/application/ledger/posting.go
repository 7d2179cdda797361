package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PostingProfile names, by account code, the accounts settlements post against
type PostingProfile struct {
	AccountsPayable    string
	AccountsReceivable string
	PurchaseDiscount   string
	SalesDiscount      string
}

// settlement is cash moving between a bank account and a payables or receivables
// control account. Discount is the early-payment discount settled alongside the cash.
type settlement struct {
	kind        ledger.DocumentKind
	bank        uuid.UUID
	cash        valueobject.Money
	discount    valueobject.Money
	date        time.Time
	reference   string
	description string
}

// poster posts journal entries and persists the entry, the changed accounts and
// their events. It must run inside a transaction; callers own retries.
type poster struct {
	entries  ledger.JournalEntryRepository
	accounts ledger.AccountRepository
	engine   *ledger.PostingEngine
	events   shared.OutboxEventSaver
}

func newPoster(
	entries ledger.JournalEntryRepository,
	accounts ledger.AccountRepository,
	engine *ledger.PostingEngine,
	events shared.OutboxEventSaver,
) *poster {
	if engine == nil {
		engine = ledger.NewPostingEngine()
	}
	return &poster{entries: entries, accounts: accounts, engine: engine, events: events}
}

// post posts a DRAFT entry, new or already stored
func (p *poster) post(ctx context.Context, entry *ledger.JournalEntry, actorID uuid.UUID) (*ledger.PostingResult, error) {
	accounts, err := p.accounts.FindByIDs(ctx, accountIDs(entry.Lines()))
	if err != nil {
		return nil, err
	}
	res, err := p.engine.Post(entry, accounts, actorID)
	if err != nil {
		return nil, err
	}
	if err := p.persist(ctx, []*ledger.JournalEntry{entry}, res.Accounts); err != nil {
		return nil, err
	}
	return res, nil
}

// reverse posts the mirror of a POSTED entry
func (p *poster) reverse(ctx context.Context, original *ledger.JournalEntry, number string, date time.Time, actorID uuid.UUID) (*ledger.ReversalResult, error) {
	accounts, err := p.accounts.FindByIDs(ctx, accountIDs(original.Lines()))
	if err != nil {
		return nil, err
	}
	res, err := p.engine.Reverse(original, accounts, number, date, actorID)
	if err != nil {
		return nil, err
	}
	// The reversal row must exist before anything points at it.
	if err := p.persist(ctx, []*ledger.JournalEntry{res.Reversal, res.Original}, res.Accounts); err != nil {
		return nil, err
	}
	return res, nil
}

func (p *poster) persist(ctx context.Context, entries []*ledger.JournalEntry, accounts []*ledger.Account) error {
	aggregates := make([]shared.AggregateRoot, 0, len(entries)+len(accounts))
	for _, e := range entries {
		if err := p.entries.Save(ctx, e); err != nil {
			return err
		}
		aggregates = append(aggregates, e)
	}
	if err := p.accounts.SaveAll(ctx, accounts); err != nil {
		return err
	}
	for _, a := range accounts {
		aggregates = append(aggregates, a)
	}
	return saveEvents(ctx, p.events, aggregates...)
}

// accountIDs lists the distinct accounts referenced by lines
func accountIDs(lines []ledger.JournalLine) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(lines))
	ids := make([]uuid.UUID, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.AccountID]; ok {
			continue
		}
		seen[l.AccountID] = struct{}{}
		ids = append(ids, l.AccountID)
	}
	return ids
}

// debitTotals flattens an entry's per-currency debit totals for metrics
func debitTotals(entry *ledger.JournalEntry) map[string]decimal.Decimal {
	totals := entry.Totals()
	out := make(map[string]decimal.Decimal, len(totals))
	for cur, t := range totals {
		out[string(cur)] = t.Debits.Amount()
	}
	return out
}

// settlementEntry builds the draft GL entry for st:
//
//	bill:    Dr payables (cash+discount) / Cr bank (cash) / Cr purchase discounts
//	invoice: Dr bank (cash) / Dr sales discounts / Cr receivables (cash+discount)
func (p *poster) settlementEntry(ctx context.Context, profile PostingProfile, st settlement) (*ledger.JournalEntry, error) {
	controlCode, discountCode := profile.AccountsPayable, profile.PurchaseDiscount
	if st.kind == ledger.DocumentKindInvoice {
		controlCode, discountCode = profile.AccountsReceivable, profile.SalesDiscount
	}
	control, err := p.profileAccount(ctx, controlCode)
	if err != nil {
		return nil, err
	}
	settled, err := st.cash.Add(st.discount)
	if err != nil {
		return nil, err
	}

	b := ledger.NewJournalEntryBuilder(nextNumber("JE", st.date), st.date).
		Description(st.description).
		Source(ledger.EntrySourcePayment).
		Reference(st.reference)
	if st.kind == ledger.DocumentKindBill {
		b.Debit(control.ID, settled, "").Credit(st.bank, st.cash, "")
	} else {
		b.Debit(st.bank, st.cash, "")
	}
	if !st.discount.IsZero() {
		discount, err := p.profileAccount(ctx, discountCode)
		if err != nil {
			return nil, err
		}
		if st.kind == ledger.DocumentKindBill {
			b.Credit(discount.ID, st.discount, "early payment discount")
		} else {
			b.Debit(discount.ID, st.discount, "early payment discount")
		}
	}
	if st.kind == ledger.DocumentKindInvoice {
		b.Credit(control.ID, settled, "")
	}
	return b.Build()
}

func (p *poster) profileAccount(ctx context.Context, code string) (*ledger.Account, error) {
	if code == "" {
		return nil, shared.NewValidationError("POSTING_PROFILE_INCOMPLETE", "posting profile has no account configured for this settlement")
	}
	a, err := p.accounts.FindByCode(ctx, code)
	if err != nil {
		if isNotFound(err) {
			return nil, shared.NewValidationError("POSTING_PROFILE_INCOMPLETE",
				fmt.Sprintf("posting profile account %s does not exist", code))
		}
		return nil, err
	}
	return a, nil
}
