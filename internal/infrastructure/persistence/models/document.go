package models

import (
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentModel is the persistence model for vendor bills and customer invoices.
// Line items, payments and early payment terms are stored as JSON columns.
type DocumentModel struct {
	AggregateModel
	Kind            ledger.DocumentKind   `gorm:"type:varchar(10);not null;uniqueIndex:idx_documents_kind_number,priority:1"`
	Number          string                `gorm:"type:varchar(50);not null;uniqueIndex:idx_documents_kind_number,priority:2"`
	CounterpartyID  uuid.UUID             `gorm:"type:uuid;not null;index"`
	Currency        string                `gorm:"type:varchar(3);not null"`
	IssueDate       time.Time             `gorm:"type:date;not null"`
	DueDate         time.Time             `gorm:"type:date;not null;index"`
	Description     string                `gorm:"type:text"`
	Subtotal        decimal.Decimal       `gorm:"type:decimal(20,4);not null;default:0"`
	TaxAmount       decimal.Decimal       `gorm:"type:decimal(20,4);not null;default:0"`
	DiscountAmount  decimal.Decimal       `gorm:"type:decimal(20,4);not null;default:0"`
	TotalAmount     decimal.Decimal       `gorm:"type:decimal(20,4);not null;default:0"`
	PaidAmount      decimal.Decimal       `gorm:"type:decimal(20,4);not null;default:0"`
	DiscountTaken   decimal.Decimal       `gorm:"type:decimal(20,4);not null;default:0"`
	Status          ledger.DocumentStatus `gorm:"type:varchar(20);not null;index"`
	LineItems       []byte                `gorm:"type:jsonb"`
	Payments        []byte                `gorm:"type:jsonb"`
	EarlyPayment    []byte                `gorm:"type:jsonb"`
	Extensions      []byte                `gorm:"type:jsonb"`
	ApprovedBy      *uuid.UUID            `gorm:"type:uuid"`
	ApprovedAt      *time.Time
	RejectionReason string `gorm:"type:text"`
	VoidReason      string `gorm:"type:text"`
}

func (DocumentModel) TableName() string {
	return "documents"
}

func DocumentModelFromDomain(d *ledger.Document) (*DocumentModel, error) {
	s := d.Snapshot()
	m := &DocumentModel{
		AggregateModel:  newAggregateModel(s.ID, s.Version, s.CreatedAt, s.UpdatedAt),
		Kind:            s.Kind,
		Number:          s.Number,
		CounterpartyID:  s.CounterpartyID,
		Currency:        s.Currency.String(),
		IssueDate:       s.IssueDate,
		DueDate:         s.DueDate,
		Description:     s.Description,
		Subtotal:        s.Subtotal.Amount(),
		TaxAmount:       s.TaxAmount.Amount(),
		DiscountAmount:  s.DiscountAmount.Amount(),
		TotalAmount:     s.TotalAmount.Amount(),
		PaidAmount:      s.PaidAmount.Amount(),
		DiscountTaken:   s.DiscountTaken.Amount(),
		Status:          s.Status,
		ApprovedBy:      s.ApprovedBy,
		ApprovedAt:      s.ApprovedAt,
		RejectionReason: s.RejectionReason,
		VoidReason:      s.VoidReason,
	}
	var err error
	if m.LineItems, err = encodeJSON(s.LineItems); err != nil {
		return nil, err
	}
	if m.Payments, err = encodeJSON(s.Payments); err != nil {
		return nil, err
	}
	if s.EarlyPayment != nil {
		if m.EarlyPayment, err = encodeJSON(s.EarlyPayment); err != nil {
			return nil, err
		}
	}
	if m.Extensions, err = encodeJSON(s.Extensions); err != nil {
		return nil, err
	}
	return m, nil
}

// ToDomain rebuilds the document, resolving line item units against units. A nil
// registry falls back to the default units.
func (m *DocumentModel) ToDomain(units *valueobject.UnitRegistry) (*ledger.Document, error) {
	cur := valueobject.Currency(m.Currency)
	s := ledger.DocumentState{
		ID:              m.ID,
		Kind:            m.Kind,
		Number:          m.Number,
		CounterpartyID:  m.CounterpartyID,
		Currency:        cur,
		IssueDate:       m.IssueDate,
		DueDate:         m.DueDate,
		Description:     m.Description,
		Subtotal:        money(m.Subtotal, cur),
		TaxAmount:       money(m.TaxAmount, cur),
		DiscountAmount:  money(m.DiscountAmount, cur),
		TotalAmount:     money(m.TotalAmount, cur),
		PaidAmount:      money(m.PaidAmount, cur),
		DiscountTaken:   money(m.DiscountTaken, cur),
		Status:          m.Status,
		ApprovedBy:      m.ApprovedBy,
		ApprovedAt:      m.ApprovedAt,
		RejectionReason: m.RejectionReason,
		VoidReason:      m.VoidReason,
		Version:         m.Version,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	lines, err := decodeLineItems(m.LineItems, units)
	if err != nil {
		return nil, err
	}
	s.LineItems = lines
	if err := decodeJSON(m.Payments, &s.Payments); err != nil {
		return nil, err
	}
	if len(m.EarlyPayment) > 0 && string(m.EarlyPayment) != "null" {
		var terms ledger.EarlyPaymentTerms
		if err := decodeJSON(m.EarlyPayment, &terms); err != nil {
			return nil, err
		}
		s.EarlyPayment = &terms
	}
	var ext shared.Extensions
	if err := decodeJSON(m.Extensions, &ext); err != nil {
		return nil, err
	}
	s.Extensions = ext
	return ledger.ReconstituteDocument(s), nil
}

func (m *DocumentModel) UpdateColumns() map[string]any {
	return map[string]any{
		"counterparty_id":  m.CounterpartyID,
		"issue_date":       m.IssueDate,
		"due_date":         m.DueDate,
		"description":      m.Description,
		"subtotal":         m.Subtotal,
		"tax_amount":       m.TaxAmount,
		"discount_amount":  m.DiscountAmount,
		"total_amount":     m.TotalAmount,
		"paid_amount":      m.PaidAmount,
		"discount_taken":   m.DiscountTaken,
		"status":           m.Status,
		"line_items":       m.LineItems,
		"payments":         m.Payments,
		"early_payment":    m.EarlyPayment,
		"extensions":       m.Extensions,
		"approved_by":      m.ApprovedBy,
		"approved_at":      m.ApprovedAt,
		"rejection_reason": m.RejectionReason,
		"void_reason":      m.VoidReason,
		"version":          m.Version,
		"updated_at":       m.UpdatedAt,
	}
}

// lineItemRecord is the stored form of a line item. The quantity keeps its unit
// code so it can be resolved against the registry in use when the row is loaded.
type lineItemRecord struct {
	Description string `json:"description"`
	Quantity    struct {
		Amount decimal.Decimal `json:"amount"`
		Unit   string          `json:"unit"`
	} `json:"quantity"`
	UnitCost  valueobject.Money `json:"unit_cost"`
	TaxRate   decimal.Decimal   `json:"tax_rate"`
	NetAmount valueobject.Money `json:"net_amount"`
	TaxAmount valueobject.Money `json:"tax_amount"`
}

func decodeLineItems(data []byte, units *valueobject.UnitRegistry) ([]ledger.LineItem, error) {
	var records []lineItemRecord
	if err := decodeJSON(data, &records); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	if units == nil {
		units = valueobject.DefaultUnitRegistry()
	}
	lines := make([]ledger.LineItem, 0, len(records))
	for i, r := range records {
		qty, err := units.NewQuantity(r.Quantity.Amount, r.Quantity.Unit)
		if err != nil {
			return nil, fmt.Errorf("decode line item %d: %w", i, err)
		}
		lines = append(lines, ledger.LineItem{
			Description: r.Description,
			Quantity:    qty,
			UnitCost:    r.UnitCost,
			TaxRate:     r.TaxRate,
			NetAmount:   r.NetAmount,
			TaxAmount:   r.TaxAmount,
		})
	}
	return lines, nil
}

// money rebuilds a stored amount. Column scale never exceeds MoneyScale, so the
// rounding only normalises representation.
func money(amount decimal.Decimal, cur valueobject.Currency) valueobject.Money {
	m, err := valueobject.NewMoney(amount.RoundBank(valueobject.MoneyScale), cur)
	if err != nil {
		return valueobject.Zero(cur)
	}
	return m
}
