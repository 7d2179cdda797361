package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// PostingEngine moves draft journal entries into the books.
// It validates everything before touching any aggregate, so a rejected posting
// leaves the entry and every account exactly as they were.
type PostingEngine struct {
	now func() time.Time
}

// PostingEngineOption configures a PostingEngine
type PostingEngineOption func(*PostingEngine)

// WithClock overrides the time source used for posting stamps
func WithClock(now func() time.Time) PostingEngineOption {
	return func(p *PostingEngine) { p.now = now }
}

func NewPostingEngine(opts ...PostingEngineOption) *PostingEngine {
	p := &PostingEngine{now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PostingResult lists the entry and the accounts whose balances changed, ordered by code.
// Each changed account has had its version incremented exactly once.
type PostingResult struct {
	Entry    *JournalEntry
	Accounts []*Account
}

// ReversalResult is the outcome of reversing a posted entry
type ReversalResult struct {
	Original *JournalEntry
	Reversal *JournalEntry
	Accounts []*Account
}

// Post validates and posts entry. accounts must contain every account referenced by a line.
func (p *PostingEngine) Post(entry *JournalEntry, accounts map[uuid.UUID]*Account, actorID uuid.UUID) (*PostingResult, error) {
	if entry.status != EntryStatusDraft {
		return nil, invalidTransition("journal entry "+entry.EntryNumber, entry.status.String(), "post")
	}
	if actorID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_ACTOR", "posting requires an actor")
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	deltas, err := p.balanceChanges(entry, accounts)
	if err != nil {
		return nil, err
	}

	changed := make([]*Account, 0, len(deltas))
	for id := range deltas {
		changed = append(changed, accounts[id])
	}
	sort.Slice(changed, func(i, j int) bool { return changed[i].Code < changed[j].Code })

	for _, acct := range changed {
		// Currency was checked in balanceChanges.
		if err := acct.applyPosting(deltas[acct.ID], entry.ID); err != nil {
			return nil, err
		}
	}
	entry.markPosted(actorID, p.now())

	return &PostingResult{Entry: entry, Accounts: changed}, nil
}

// balanceChanges nets every line into one signed delta per account
func (p *PostingEngine) balanceChanges(entry *JournalEntry, accounts map[uuid.UUID]*Account) (map[uuid.UUID]valueobject.Money, error) {
	deltas := make(map[uuid.UUID]valueobject.Money)
	for _, l := range entry.lines {
		acct, ok := accounts[l.AccountID]
		if !ok || acct == nil {
			return nil, shared.NewNotFoundError("account", l.AccountID)
		}
		if err := acct.CanPost(entry.IsManual()); err != nil {
			return nil, err
		}
		if l.Currency() != acct.Currency {
			return nil, shared.NewInvariantError("CURRENCY_MISMATCH",
				fmt.Sprintf("line %d posts %s to account %s held in %s", l.LineNo, l.Currency(), acct.Code, acct.Currency))
		}
		d, ok := deltas[acct.ID]
		if !ok {
			d = valueobject.Zero(acct.Currency)
		}
		d, _ = d.Add(acct.SignedAmount(l.Side(), l.Amount()))
		deltas[acct.ID] = d
	}
	return deltas, nil
}

// Reverse posts a mirror of original and marks original REVERSED.
// A second reversal fails with ALREADY_REVERSED; a reversal entry itself cannot be reversed.
func (p *PostingEngine) Reverse(
	original *JournalEntry,
	accounts map[uuid.UUID]*Account,
	reversalNumber string,
	date time.Time,
	actorID uuid.UUID,
) (*ReversalResult, error) {
	if original.status == EntryStatusReversed || original.reversedBy != nil {
		return nil, shared.NewStateError(CodeAlreadyReversed, original.status.String(),
			fmt.Sprintf("journal entry %s has already been reversed", original.EntryNumber))
	}
	if original.status != EntryStatusPosted {
		return nil, invalidTransition("journal entry "+original.EntryNumber, original.status.String(), "reverse")
	}
	if original.reversalOf != nil {
		return nil, shared.NewStateError(CodeInvalidTransition, original.status.String(),
			fmt.Sprintf("journal entry %s is itself a reversal", original.EntryNumber))
	}
	if date.IsZero() {
		date = original.Date
	}

	mirror, err := original.mirror(reversalNumber, date)
	if err != nil {
		return nil, err
	}
	res, err := p.Post(mirror, accounts, actorID)
	if err != nil {
		return nil, err
	}
	original.markReversed(mirror)

	return &ReversalResult{Original: original, Reversal: mirror, Accounts: res.Accounts}, nil
}

// ComputeBalance folds the lines that hit acct, in order, into a balance.
// Only lines from entries that affect balances should be passed in.
func ComputeBalance(acct *Account, lines []JournalLine) (valueobject.Money, error) {
	bal := valueobject.Zero(acct.Currency)
	for _, l := range lines {
		if l.AccountID != acct.ID {
			continue
		}
		var err error
		if bal, err = bal.Add(acct.SignedAmount(l.Side(), l.Amount())); err != nil {
			return valueobject.Money{}, err
		}
	}
	return bal, nil
}
