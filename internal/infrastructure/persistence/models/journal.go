package models

import (
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// JournalEntryModel is the persistence model for journal entry headers
type JournalEntryModel struct {
	AggregateModel
	EntryNumber string             `gorm:"type:varchar(50);not null;uniqueIndex"`
	Date        time.Time          `gorm:"type:date;not null;index"`
	Description string             `gorm:"type:text"`
	Source      ledger.EntrySource `gorm:"type:varchar(20);not null"`
	Reference   string             `gorm:"type:varchar(100);index"`
	Status      ledger.EntryStatus `gorm:"type:varchar(20);not null;index"`
	PostedBy    *uuid.UUID         `gorm:"type:uuid"`
	PostedAt    *time.Time
	ReversalOf  *uuid.UUID         `gorm:"type:uuid;index"`
	ReversedBy  *uuid.UUID         `gorm:"type:uuid"`
	Lines       []JournalLineModel `gorm:"foreignKey:EntryID;constraint:OnDelete:CASCADE"`
}

func (JournalEntryModel) TableName() string {
	return "journal_entries"
}

// JournalLineModel stores one debit or credit line. Exactly one of Debit and Credit
// is non-zero.
type JournalLineModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	EntryID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	LineNo    int             `gorm:"not null"`
	AccountID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Debit     decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0"`
	Credit    decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0"`
	Currency  string          `gorm:"type:varchar(3);not null"`
	Memo      string          `gorm:"type:text"`
}

func (JournalLineModel) TableName() string {
	return "journal_lines"
}

func JournalEntryModelFromDomain(e *ledger.JournalEntry) *JournalEntryModel {
	s := e.Snapshot()
	m := &JournalEntryModel{
		AggregateModel: newAggregateModel(s.ID, s.Version, s.CreatedAt, s.UpdatedAt),
		EntryNumber:    s.EntryNumber,
		Date:           s.Date,
		Description:    s.Description,
		Source:         s.Source,
		Reference:      s.Reference,
		Status:         s.Status,
		PostedBy:       s.PostedBy,
		PostedAt:       s.PostedAt,
		ReversalOf:     s.ReversalOf,
		ReversedBy:     s.ReversedBy,
		Lines:          make([]JournalLineModel, 0, len(s.Lines)),
	}
	for _, l := range s.Lines {
		m.Lines = append(m.Lines, journalLineModel(s.ID, l))
	}
	return m
}

func journalLineModel(entryID uuid.UUID, l ledger.JournalLine) JournalLineModel {
	lm := JournalLineModel{
		ID:        uuid.New(),
		EntryID:   entryID,
		LineNo:    l.LineNo,
		AccountID: l.AccountID,
		Debit:     decimal.Zero,
		Credit:    decimal.Zero,
		Memo:      l.Memo,
	}
	if l.Debit != nil {
		lm.Debit = l.Debit.Amount()
		lm.Currency = l.Debit.Currency().String()
	}
	if l.Credit != nil {
		lm.Credit = l.Credit.Amount()
		lm.Currency = l.Credit.Currency().String()
	}
	return lm
}

// ToDomain rebuilds the journal line
func (m *JournalLineModel) ToDomain() ledger.JournalLine {
	l := ledger.JournalLine{
		LineNo:    m.LineNo,
		AccountID: m.AccountID,
		Memo:      m.Memo,
	}
	cur := valueobject.Currency(m.Currency)
	if m.Debit.IsPositive() {
		debit, _ := valueobject.NewMoney(m.Debit.RoundBank(valueobject.MoneyScale), cur)
		l.Debit = &debit
	}
	if m.Credit.IsPositive() {
		credit, _ := valueobject.NewMoney(m.Credit.RoundBank(valueobject.MoneyScale), cur)
		l.Credit = &credit
	}
	return l
}

func (m *JournalEntryModel) ToDomain() *ledger.JournalEntry {
	lines := make([]ledger.JournalLine, 0, len(m.Lines))
	for i := range m.Lines {
		lines = append(lines, m.Lines[i].ToDomain())
	}
	return ledger.ReconstituteJournalEntry(ledger.JournalEntryState{
		ID:          m.ID,
		EntryNumber: m.EntryNumber,
		Date:        m.Date,
		Description: m.Description,
		Source:      m.Source,
		Reference:   m.Reference,
		Lines:       lines,
		Status:      m.Status,
		PostedBy:    m.PostedBy,
		PostedAt:    m.PostedAt,
		ReversalOf:  m.ReversalOf,
		ReversedBy:  m.ReversedBy,
		Version:     m.Version,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	})
}

func (m *JournalEntryModel) UpdateColumns() map[string]any {
	return map[string]any{
		"date":        m.Date,
		"description": m.Description,
		"reference":   m.Reference,
		"status":      m.Status,
		"posted_by":   m.PostedBy,
		"posted_at":   m.PostedAt,
		"reversed_by": m.ReversedBy,
		"version":     m.Version,
		"updated_at":  m.UpdatedAt,
	}
}
