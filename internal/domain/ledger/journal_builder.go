package ledger

import (
	"errors"
	"time"

	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// JournalEntryBuilder assembles a draft entry step by step and reports all
// problems at Build time
//
//	entry, err := NewJournalEntryBuilder("JE-0001", date).
//		Description("cash sale").
//		Debit(cash.ID, amount, "").
//		Credit(revenue.ID, amount, "").
//		Build()
type JournalEntryBuilder struct {
	number      string
	date        time.Time
	description string
	source      EntrySource
	reference   string
	lines       []JournalLine
	errs        []error
}

func NewJournalEntryBuilder(entryNumber string, date time.Time) *JournalEntryBuilder {
	return &JournalEntryBuilder{number: entryNumber, date: date, source: EntrySourceManual}
}

func (b *JournalEntryBuilder) Description(d string) *JournalEntryBuilder {
	b.description = d
	return b
}

func (b *JournalEntryBuilder) Source(s EntrySource) *JournalEntryBuilder {
	b.source = s
	return b
}

func (b *JournalEntryBuilder) Reference(r string) *JournalEntryBuilder {
	b.reference = r
	return b
}

func (b *JournalEntryBuilder) Debit(accountID uuid.UUID, amount valueobject.Money, memo string) *JournalEntryBuilder {
	return b.line(NewDebitLine(accountID, amount, memo))
}

func (b *JournalEntryBuilder) Credit(accountID uuid.UUID, amount valueobject.Money, memo string) *JournalEntryBuilder {
	return b.line(NewCreditLine(accountID, amount, memo))
}

func (b *JournalEntryBuilder) line(l JournalLine, err error) *JournalEntryBuilder {
	if err != nil {
		b.errs = append(b.errs, err)
		return b
	}
	b.lines = append(b.lines, l)
	return b
}

// Build returns a DRAFT entry. Balance is not checked here; posting does that.
func (b *JournalEntryBuilder) Build() (*JournalEntry, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	e, err := NewJournalEntry(b.number, b.date, b.description, b.source)
	if err != nil {
		return nil, err
	}
	e.Reference = b.reference
	for _, l := range b.lines {
		if err := e.AddLine(l); err != nil {
			return nil, err
		}
	}
	return e, nil
}
