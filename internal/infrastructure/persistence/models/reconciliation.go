package models

import (
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReconciliationModel is the persistence model for bank reconciliation statements
type ReconciliationModel struct {
	AggregateModel
	BankAccountID       uuid.UUID                   `gorm:"type:uuid;not null;index"`
	Currency            string                      `gorm:"type:varchar(3);not null"`
	StatementDate       time.Time                   `gorm:"type:date;not null"`
	PeriodStart         time.Time                   `gorm:"type:date;not null"`
	PeriodEnd           time.Time                   `gorm:"type:date;not null"`
	BankBalance         decimal.Decimal             `gorm:"type:decimal(20,4);not null"`
	BookBalance         decimal.Decimal             `gorm:"type:decimal(20,4);not null"`
	Tolerance           decimal.Decimal             `gorm:"type:decimal(20,4);not null"`
	OutstandingItems    []byte                      `gorm:"type:jsonb"`
	BankAdjustments     []byte                      `gorm:"type:jsonb"`
	BookAdjustments     []byte                      `gorm:"type:jsonb"`
	BankLines           []byte                      `gorm:"type:jsonb"`
	Status              ledger.ReconciliationStatus `gorm:"type:varchar(20);not null;index"`
	VarianceExplanation string                      `gorm:"type:text"`
	RejectionReason     string                      `gorm:"type:text"`
	CompletedBy         *uuid.UUID                  `gorm:"type:uuid"`
	CompletedAt         *time.Time
}

func (ReconciliationModel) TableName() string {
	return "reconciliation_statements"
}

func ReconciliationModelFromDomain(r *ledger.ReconciliationStatement) (*ReconciliationModel, error) {
	s := r.Snapshot()
	m := &ReconciliationModel{
		AggregateModel:      newAggregateModel(s.ID, s.Version, s.CreatedAt, s.UpdatedAt),
		BankAccountID:       s.BankAccountID,
		Currency:            s.Currency.String(),
		StatementDate:       s.StatementDate,
		PeriodStart:         s.PeriodStart,
		PeriodEnd:           s.PeriodEnd,
		BankBalance:         s.BankBalance.Amount(),
		BookBalance:         s.BookBalance.Amount(),
		Tolerance:           s.Tolerance,
		Status:              s.Status,
		VarianceExplanation: s.VarianceExplanation,
		RejectionReason:     s.RejectionReason,
		CompletedBy:         s.CompletedBy,
		CompletedAt:         s.CompletedAt,
	}
	var err error
	if m.OutstandingItems, err = encodeJSON(s.OutstandingItems); err != nil {
		return nil, err
	}
	if m.BankAdjustments, err = encodeJSON(s.BankAdjustments); err != nil {
		return nil, err
	}
	if m.BookAdjustments, err = encodeJSON(s.BookAdjustments); err != nil {
		return nil, err
	}
	if m.BankLines, err = encodeJSON(s.BankLines); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *ReconciliationModel) ToDomain() (*ledger.ReconciliationStatement, error) {
	cur := valueobject.Currency(m.Currency)
	s := ledger.ReconciliationState{
		ID:                  m.ID,
		BankAccountID:       m.BankAccountID,
		Currency:            cur,
		StatementDate:       m.StatementDate,
		PeriodStart:         m.PeriodStart,
		PeriodEnd:           m.PeriodEnd,
		BankBalance:         money(m.BankBalance, cur),
		BookBalance:         money(m.BookBalance, cur),
		Tolerance:           m.Tolerance,
		Status:              m.Status,
		VarianceExplanation: m.VarianceExplanation,
		RejectionReason:     m.RejectionReason,
		CompletedBy:         m.CompletedBy,
		CompletedAt:         m.CompletedAt,
		Version:             m.Version,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
	for _, col := range []struct {
		data []byte
		dst  any
	}{
		{m.OutstandingItems, &s.OutstandingItems},
		{m.BankAdjustments, &s.BankAdjustments},
		{m.BookAdjustments, &s.BookAdjustments},
		{m.BankLines, &s.BankLines},
	} {
		if err := decodeJSON(col.data, col.dst); err != nil {
			return nil, err
		}
	}
	return ledger.ReconstituteReconciliation(s), nil
}

func (m *ReconciliationModel) UpdateColumns() map[string]any {
	return map[string]any{
		"statement_date":       m.StatementDate,
		"bank_balance":         m.BankBalance,
		"book_balance":         m.BookBalance,
		"tolerance":            m.Tolerance,
		"outstanding_items":    m.OutstandingItems,
		"bank_adjustments":     m.BankAdjustments,
		"book_adjustments":     m.BookAdjustments,
		"bank_lines":           m.BankLines,
		"status":               m.Status,
		"variance_explanation": m.VarianceExplanation,
		"rejection_reason":     m.RejectionReason,
		"completed_by":         m.CompletedBy,
		"completed_at":         m.CompletedAt,
		"version":              m.Version,
		"updated_at":           m.UpdatedAt,
	}
}
