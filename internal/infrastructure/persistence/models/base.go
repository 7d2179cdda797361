package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AggregateModel holds the columns every aggregate table shares. Version backs
// optimistic locking.
type AggregateModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Version   int       `gorm:"not null;default:1"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// AllModels lists every table model for AutoMigrate in tests and sqlite mode
func AllModels() []any {
	return []any{
		&AccountModel{},
		&JournalEntryModel{},
		&JournalLineModel{},
		&DocumentModel{},
		&PaymentModel{},
		&ReconciliationModel{},
		&OutboxEntryModel{},
	}
}

func newAggregateModel(id uuid.UUID, version int, createdAt, updatedAt time.Time) AggregateModel {
	return AggregateModel{ID: id, Version: version, CreatedAt: createdAt, UpdatedAt: updatedAt}
}

// encodeJSON marshals nested value collections stored in a JSON column
func encodeJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode json column: %w", err)
	}
	return data, nil
}

// decodeJSON unmarshals a JSON column; empty columns leave v untouched
func decodeJSON(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode json column: %w", err)
	}
	return nil
}
