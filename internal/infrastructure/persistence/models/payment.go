package models

import (
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentModel is the persistence model for disbursements and receipts
type PaymentModel struct {
	AggregateModel
	PaymentNumber  string                  `gorm:"type:varchar(50);not null;uniqueIndex"`
	Direction      ledger.PaymentDirection `gorm:"type:varchar(20);not null;index"`
	CounterpartyID uuid.UUID               `gorm:"type:uuid;not null;index"`
	BankAccountID  uuid.UUID               `gorm:"type:uuid;not null;index"`
	Amount         decimal.Decimal         `gorm:"type:decimal(20,4);not null"`
	Currency       string                  `gorm:"type:varchar(3);not null"`
	Method         ledger.PaymentMethod    `gorm:"type:varchar(10);not null"`
	PaymentDate    time.Time               `gorm:"type:date;not null"`
	Reference      string                  `gorm:"type:varchar(100)"`
	Allocations    []byte                  `gorm:"type:jsonb"`
	Extensions     []byte                  `gorm:"type:jsonb"`
	Status         ledger.PaymentStatus    `gorm:"type:varchar(20);not null;index"`
	IsReconciled   bool                    `gorm:"not null;default:false"`
	ReconciledAt   *time.Time
	ApprovedBy     *uuid.UUID `gorm:"type:uuid"`
	IssuedBy       *uuid.UUID `gorm:"type:uuid"`
	IssuedAt       *time.Time
	JournalEntryID *uuid.UUID `gorm:"type:uuid;index"`
	VoidReason     string     `gorm:"type:text"`
}

func (PaymentModel) TableName() string {
	return "payments"
}

func PaymentModelFromDomain(p *ledger.Payment) (*PaymentModel, error) {
	s := p.Snapshot()
	m := &PaymentModel{
		AggregateModel: newAggregateModel(s.ID, s.Version, s.CreatedAt, s.UpdatedAt),
		PaymentNumber:  s.PaymentNumber,
		Direction:      s.Direction,
		CounterpartyID: s.CounterpartyID,
		BankAccountID:  s.BankAccountID,
		Amount:         s.Amount.Amount(),
		Currency:       s.Amount.Currency().String(),
		Method:         s.Method,
		PaymentDate:    s.PaymentDate,
		Reference:      s.Reference,
		Status:         s.Status,
		IsReconciled:   s.IsReconciled,
		ReconciledAt:   s.ReconciledAt,
		ApprovedBy:     s.ApprovedBy,
		IssuedBy:       s.IssuedBy,
		IssuedAt:       s.IssuedAt,
		JournalEntryID: s.JournalEntryID,
		VoidReason:     s.VoidReason,
	}
	var err error
	if m.Allocations, err = encodeJSON(s.Allocations); err != nil {
		return nil, err
	}
	if m.Extensions, err = encodeJSON(s.Extensions); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *PaymentModel) ToDomain() (*ledger.Payment, error) {
	s := ledger.PaymentState{
		ID:             m.ID,
		PaymentNumber:  m.PaymentNumber,
		Direction:      m.Direction,
		CounterpartyID: m.CounterpartyID,
		BankAccountID:  m.BankAccountID,
		Amount:         money(m.Amount, valueobject.Currency(m.Currency)),
		Method:         m.Method,
		PaymentDate:    m.PaymentDate,
		Reference:      m.Reference,
		Status:         m.Status,
		IsReconciled:   m.IsReconciled,
		ReconciledAt:   m.ReconciledAt,
		ApprovedBy:     m.ApprovedBy,
		IssuedBy:       m.IssuedBy,
		IssuedAt:       m.IssuedAt,
		JournalEntryID: m.JournalEntryID,
		VoidReason:     m.VoidReason,
		Version:        m.Version,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	if err := decodeJSON(m.Allocations, &s.Allocations); err != nil {
		return nil, err
	}
	var ext shared.Extensions
	if err := decodeJSON(m.Extensions, &ext); err != nil {
		return nil, err
	}
	s.Extensions = ext
	return ledger.ReconstitutePayment(s), nil
}

func (m *PaymentModel) UpdateColumns() map[string]any {
	return map[string]any{
		"amount":           m.Amount,
		"method":           m.Method,
		"payment_date":     m.PaymentDate,
		"reference":        m.Reference,
		"allocations":      m.Allocations,
		"extensions":       m.Extensions,
		"status":           m.Status,
		"is_reconciled":    m.IsReconciled,
		"reconciled_at":    m.ReconciledAt,
		"approved_by":      m.ApprovedBy,
		"issued_by":        m.IssuedBy,
		"issued_at":        m.IssuedAt,
		"journal_entry_id": m.JournalEntryID,
		"void_reason":      m.VoidReason,
		"version":          m.Version,
		"updated_at":       m.UpdatedAt,
	}
}
