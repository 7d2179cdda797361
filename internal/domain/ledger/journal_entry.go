package ledger

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// EntryStatus is the lifecycle state of a journal entry
type EntryStatus string

const (
	EntryStatusDraft    EntryStatus = "DRAFT"
	EntryStatusPosted   EntryStatus = "POSTED"
	EntryStatusReversed EntryStatus = "REVERSED"
)

func (s EntryStatus) IsValid() bool {
	return s == EntryStatusDraft || s == EntryStatusPosted || s == EntryStatusReversed
}

func (s EntryStatus) String() string { return string(s) }

// AffectsBalances is true for entries whose lines are part of the books.
// A reversed entry still counts; its mirror offsets it.
func (s EntryStatus) AffectsBalances() bool {
	return s == EntryStatusPosted || s == EntryStatusReversed
}

// EntrySource records what produced a journal entry
type EntrySource string

const (
	EntrySourceManual   EntrySource = "MANUAL"
	EntrySourceSystem   EntrySource = "SYSTEM"
	EntrySourceBill     EntrySource = "BILL"
	EntrySourceInvoice  EntrySource = "INVOICE"
	EntrySourcePayment  EntrySource = "PAYMENT"
	EntrySourceReversal EntrySource = "REVERSAL"
)

func (s EntrySource) IsValid() bool {
	switch s {
	case EntrySourceManual, EntrySourceSystem, EntrySourceBill, EntrySourceInvoice,
		EntrySourcePayment, EntrySourceReversal:
		return true
	}
	return false
}

// JournalLine posts one amount to one account. Exactly one of Debit or Credit is set.
type JournalLine struct {
	LineNo    int                `json:"line_no"`
	AccountID uuid.UUID          `json:"account_id"`
	Debit     *valueobject.Money `json:"debit,omitempty"`
	Credit    *valueobject.Money `json:"credit,omitempty"`
	Memo      string             `json:"memo,omitempty"`
}

func newLine(accountID uuid.UUID, side Side, amount valueobject.Money, memo string) (JournalLine, error) {
	l := JournalLine{AccountID: accountID, Memo: memo}
	if side == SideDebit {
		l.Debit = &amount
	} else {
		l.Credit = &amount
	}
	return l, l.validate()
}

// NewDebitLine creates a debit line for a positive amount
func NewDebitLine(accountID uuid.UUID, amount valueobject.Money, memo string) (JournalLine, error) {
	return newLine(accountID, SideDebit, amount, memo)
}

// NewCreditLine creates a credit line for a positive amount
func NewCreditLine(accountID uuid.UUID, amount valueobject.Money, memo string) (JournalLine, error) {
	return newLine(accountID, SideCredit, amount, memo)
}

func (l JournalLine) validate() error {
	if l.AccountID == uuid.Nil {
		return shared.NewValidationError(CodeInvalidLine, "journal line requires an account")
	}
	if (l.Debit == nil) == (l.Credit == nil) {
		return shared.NewValidationError(CodeInvalidLine, "journal line must have exactly one of debit or credit")
	}
	if !l.Amount().IsPositive() {
		return shared.NewValidationError(CodeInvalidLine, "journal line amount must be positive")
	}
	return nil
}

// Side returns the side the line posts to
func (l JournalLine) Side() Side {
	if l.Debit != nil {
		return SideDebit
	}
	return SideCredit
}

// Amount returns the unsigned line amount
func (l JournalLine) Amount() valueobject.Money {
	if l.Debit != nil {
		return *l.Debit
	}
	if l.Credit != nil {
		return *l.Credit
	}
	return valueobject.Money{}
}

func (l JournalLine) Currency() valueobject.Currency { return l.Amount().Currency() }

// mirrored swaps the side of the line
func (l JournalLine) mirrored() JournalLine {
	m := JournalLine{LineNo: l.LineNo, AccountID: l.AccountID, Memo: l.Memo}
	m.Debit, m.Credit = l.Credit, l.Debit
	return m
}

// CurrencyTotals holds the debit and credit sums of one currency group
type CurrencyTotals struct {
	Debits  valueobject.Money `json:"debits"`
	Credits valueobject.Money `json:"credits"`
}

// IsBalanced compares exactly; there is no rounding tolerance
func (t CurrencyTotals) IsBalanced() bool {
	return t.Debits.Equals(t.Credits)
}

// JournalEntry is an atomic set of debit and credit lines.
// Once posted its lines and stamps never change.
type JournalEntry struct {
	shared.BaseAggregateRoot
	EntryNumber string      `json:"entry_number"`
	Date        time.Time   `json:"date"`
	Description string      `json:"description"`
	Source      EntrySource `json:"source"`
	Reference   string      `json:"reference,omitempty"`
	lines       []JournalLine
	status      EntryStatus
	postedBy    *uuid.UUID
	postedAt    *time.Time
	reversalOf  *uuid.UUID
	reversedBy  *uuid.UUID
}

// NewJournalEntry creates an empty DRAFT entry
func NewJournalEntry(entryNumber string, date time.Time, description string, source EntrySource) (*JournalEntry, error) {
	entryNumber = strings.TrimSpace(entryNumber)
	if entryNumber == "" {
		return nil, shared.NewValidationError("INVALID_ENTRY_NUMBER", "entry number cannot be empty")
	}
	if len(entryNumber) > 50 {
		return nil, shared.NewValidationError("INVALID_ENTRY_NUMBER", "entry number cannot exceed 50 characters")
	}
	if date.IsZero() {
		return nil, shared.NewValidationError("INVALID_ENTRY_DATE", "entry date is required")
	}
	if source == "" {
		source = EntrySourceManual
	}
	if !source.IsValid() {
		return nil, shared.NewValidationError("INVALID_ENTRY_SOURCE", fmt.Sprintf("unknown entry source %q", source))
	}
	return &JournalEntry{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		EntryNumber:       entryNumber,
		Date:              date,
		Description:       description,
		Source:            source,
		status:            EntryStatusDraft,
	}, nil
}

func (e *JournalEntry) Status() EntryStatus    { return e.status }
func (e *JournalEntry) PostedBy() *uuid.UUID   { return e.postedBy }
func (e *JournalEntry) PostedAt() *time.Time   { return e.postedAt }
func (e *JournalEntry) ReversalOf() *uuid.UUID { return e.reversalOf }
func (e *JournalEntry) ReversedBy() *uuid.UUID { return e.reversedBy }
func (e *JournalEntry) IsManual() bool         { return e.Source == EntrySourceManual }

// Lines returns a copy of the entry lines
func (e *JournalEntry) Lines() []JournalLine {
	out := make([]JournalLine, len(e.lines))
	copy(out, e.lines)
	return out
}

func (e *JournalEntry) requireDraft(action string) error {
	if e.status != EntryStatusDraft {
		return invalidTransition("journal entry "+e.EntryNumber, e.status.String(), action)
	}
	return nil
}

// AddLine appends a validated line; only drafts can be edited
func (e *JournalEntry) AddLine(line JournalLine) error {
	if err := e.requireDraft("edit"); err != nil {
		return err
	}
	if err := line.validate(); err != nil {
		return err
	}
	line.LineNo = len(e.lines) + 1
	e.lines = append(e.lines, line)
	e.UpdatedAt = time.Now()
	return nil
}

func (e *JournalEntry) AddDebit(accountID uuid.UUID, amount valueobject.Money, memo string) error {
	l, err := NewDebitLine(accountID, amount, memo)
	if err != nil {
		return err
	}
	return e.AddLine(l)
}

func (e *JournalEntry) AddCredit(accountID uuid.UUID, amount valueobject.Money, memo string) error {
	l, err := NewCreditLine(accountID, amount, memo)
	if err != nil {
		return err
	}
	return e.AddLine(l)
}

// RemoveLine deletes a line by number and renumbers the rest
func (e *JournalEntry) RemoveLine(lineNo int) error {
	if err := e.requireDraft("edit"); err != nil {
		return err
	}
	idx := -1
	for i, l := range e.lines {
		if l.LineNo == lineNo {
			idx = i
			break
		}
	}
	if idx < 0 {
		return shared.NewNotFoundError("journal line", lineNo)
	}
	e.lines = append(e.lines[:idx], e.lines[idx+1:]...)
	for i := range e.lines {
		e.lines[i].LineNo = i + 1
	}
	e.UpdatedAt = time.Now()
	return nil
}

// Totals groups the lines by currency
func (e *JournalEntry) Totals() map[valueobject.Currency]CurrencyTotals {
	totals := make(map[valueobject.Currency]CurrencyTotals)
	for _, l := range e.lines {
		cur := l.Currency()
		t, ok := totals[cur]
		if !ok {
			t = CurrencyTotals{Debits: valueobject.Zero(cur), Credits: valueobject.Zero(cur)}
		}
		// Same currency by construction of the group, so Add cannot fail.
		if l.Side() == SideDebit {
			t.Debits, _ = t.Debits.Add(l.Amount())
		} else {
			t.Credits, _ = t.Credits.Add(l.Amount())
		}
		totals[cur] = t
	}
	return totals
}

// Currencies returns the currencies used by the entry in sorted order
func (e *JournalEntry) Currencies() []valueobject.Currency {
	totals := e.Totals()
	out := make([]valueobject.Currency, 0, len(totals))
	for c := range totals {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Validate checks line shape and that every currency group balances exactly
func (e *JournalEntry) Validate() error {
	if len(e.lines) < 2 {
		return shared.NewValidationError(CodeInvalidLine, "journal entry needs at least two lines")
	}
	for _, l := range e.lines {
		if err := l.validate(); err != nil {
			return err
		}
	}
	totals := e.Totals()
	for _, cur := range e.Currencies() {
		t := totals[cur]
		if !t.IsBalanced() {
			return ErrUnbalancedEntry(cur.String(), t.Debits.Amount().String(), t.Credits.Amount().String())
		}
	}
	return nil
}

func (e *JournalEntry) markPosted(actorID uuid.UUID, at time.Time) {
	e.status = EntryStatusPosted
	e.postedBy = &actorID
	e.postedAt = &at
	e.UpdatedAt = at
	e.IncrementVersion()
	e.AddDomainEvent(NewJournalEntryPostedEvent(e))
}

func (e *JournalEntry) markReversed(reversal *JournalEntry) {
	id := reversal.ID
	e.status = EntryStatusReversed
	e.reversedBy = &id
	e.UpdatedAt = time.Now()
	e.IncrementVersion()
	e.AddDomainEvent(NewJournalEntryReversedEvent(e, reversal))
}

// mirror builds a DRAFT entry with every line's side swapped
func (e *JournalEntry) mirror(entryNumber string, date time.Time) (*JournalEntry, error) {
	m, err := NewJournalEntry(entryNumber, date, "Reversal of "+e.EntryNumber, EntrySourceReversal)
	if err != nil {
		return nil, err
	}
	id := e.ID
	m.reversalOf = &id
	m.Reference = e.EntryNumber
	for _, l := range e.lines {
		m.lines = append(m.lines, l.mirrored())
	}
	return m, nil
}

// JournalEntryState is the persisted form of a journal entry
type JournalEntryState struct {
	ID          uuid.UUID
	EntryNumber string
	Date        time.Time
	Description string
	Source      EntrySource
	Reference   string
	Lines       []JournalLine
	Status      EntryStatus
	PostedBy    *uuid.UUID
	PostedAt    *time.Time
	ReversalOf  *uuid.UUID
	ReversedBy  *uuid.UUID
	Version     int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (e *JournalEntry) Snapshot() JournalEntryState {
	return JournalEntryState{
		ID:          e.ID,
		EntryNumber: e.EntryNumber,
		Date:        e.Date,
		Description: e.Description,
		Source:      e.Source,
		Reference:   e.Reference,
		Lines:       e.Lines(),
		Status:      e.status,
		PostedBy:    e.postedBy,
		PostedAt:    e.postedAt,
		ReversalOf:  e.reversalOf,
		ReversedBy:  e.reversedBy,
		Version:     e.Version,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func ReconstituteJournalEntry(s JournalEntryState) *JournalEntry {
	e := &JournalEntry{
		EntryNumber: s.EntryNumber,
		Date:        s.Date,
		Description: s.Description,
		Source:      s.Source,
		Reference:   s.Reference,
		lines:       append([]JournalLine(nil), s.Lines...),
		status:      s.Status,
		postedBy:    s.PostedBy,
		postedAt:    s.PostedAt,
		reversalOf:  s.ReversalOf,
		reversedBy:  s.ReversedBy,
	}
	e.ID = s.ID
	e.CreatedAt = s.CreatedAt
	e.UpdatedAt = s.UpdatedAt
	e.RestoreVersion(s.Version)
	return e
}
