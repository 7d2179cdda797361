package models

import (
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountModel is the persistence model for chart of accounts entries
type AccountModel struct {
	AggregateModel
	Code               string                `gorm:"type:varchar(20);not null;uniqueIndex"`
	Name               string                `gorm:"type:varchar(200);not null"`
	Description        string                `gorm:"type:text"`
	Type               ledger.AccountType    `gorm:"type:varchar(20);not null;index"`
	Subtype            ledger.AccountSubtype `gorm:"type:varchar(40)"`
	ParentID           *uuid.UUID            `gorm:"type:uuid;index"`
	Currency           string                `gorm:"type:varchar(3);not null"`
	Balance            decimal.Decimal       `gorm:"type:decimal(20,4);not null;default:0"`
	Status             ledger.AccountStatus  `gorm:"type:varchar(20);not null;index"`
	IsControlAccount   bool                  `gorm:"not null;default:false"`
	IsSystemAccount    bool                  `gorm:"not null;default:false"`
	AllowManualEntries bool                  `gorm:"not null"`
	Extensions         []byte                `gorm:"type:jsonb"`
	ClosedAt           *time.Time
	ClosedBy           *uuid.UUID `gorm:"type:uuid"`
}

func (AccountModel) TableName() string {
	return "accounts"
}

// AccountModelFromDomain snapshots an account into its row
func AccountModelFromDomain(a *ledger.Account) (*AccountModel, error) {
	s := a.Snapshot()
	ext, err := encodeJSON(s.Extensions)
	if err != nil {
		return nil, err
	}
	return &AccountModel{
		AggregateModel:     newAggregateModel(s.ID, s.Version, s.CreatedAt, s.UpdatedAt),
		Code:               s.Code,
		Name:               s.Name,
		Description:        s.Description,
		Type:               s.Type,
		Subtype:            s.Subtype,
		ParentID:           s.ParentID,
		Currency:           s.Currency.String(),
		Balance:            s.Balance,
		Status:             s.Status,
		IsControlAccount:   s.IsControlAccount,
		IsSystemAccount:    s.IsSystemAccount,
		AllowManualEntries: s.AllowManualEntries,
		Extensions:         ext,
		ClosedAt:           s.ClosedAt,
		ClosedBy:           s.ClosedBy,
	}, nil
}

func (m *AccountModel) ToDomain() (*ledger.Account, error) {
	var ext shared.Extensions
	if err := decodeJSON(m.Extensions, &ext); err != nil {
		return nil, err
	}
	return ledger.ReconstituteAccount(ledger.AccountState{
		ID:                 m.ID,
		Code:               m.Code,
		Name:               m.Name,
		Description:        m.Description,
		Type:               m.Type,
		Subtype:            m.Subtype,
		ParentID:           m.ParentID,
		Currency:           valueobject.Currency(m.Currency),
		Balance:            m.Balance,
		Status:             m.Status,
		IsControlAccount:   m.IsControlAccount,
		IsSystemAccount:    m.IsSystemAccount,
		AllowManualEntries: m.AllowManualEntries,
		Extensions:         ext,
		ClosedAt:           m.ClosedAt,
		ClosedBy:           m.ClosedBy,
		Version:            m.Version,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}), nil
}

// UpdateColumns lists the mutable columns written by a versioned update
func (m *AccountModel) UpdateColumns() map[string]any {
	return map[string]any{
		"name":                 m.Name,
		"description":          m.Description,
		"subtype":              m.Subtype,
		"parent_id":            m.ParentID,
		"balance":              m.Balance,
		"status":               m.Status,
		"is_control_account":   m.IsControlAccount,
		"allow_manual_entries": m.AllowManualEntries,
		"extensions":           m.Extensions,
		"closed_at":            m.ClosedAt,
		"closed_by":            m.ClosedBy,
		"version":              m.Version,
		"updated_at":           m.UpdatedAt,
	}
}
