package ledger

import (
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

const (
	EventTypePaymentProcessed = "PaymentProcessed"
	EventTypePaymentVoided    = "PaymentVoided"

	AggregateTypePayment = "Payment"
)

// PaymentProcessedEvent is raised when a payment is issued and applied to its documents
type PaymentProcessedEvent struct {
	shared.BaseDomainEvent
	PaymentNumber  string              `json:"payment_number"`
	Direction      PaymentDirection    `json:"direction"`
	CounterpartyID uuid.UUID           `json:"counterparty_id"`
	BankAccountID  uuid.UUID           `json:"bank_account_id"`
	Amount         valueobject.Money   `json:"amount"`
	Method         PaymentMethod       `json:"method"`
	PaymentDate    time.Time           `json:"payment_date"`
	Allocations    []PaymentAllocation `json:"allocations"`
	JournalEntryID *uuid.UUID          `json:"journal_entry_id,omitempty"`
}

func NewPaymentProcessedEvent(p *Payment) *PaymentProcessedEvent {
	return &PaymentProcessedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentProcessed, AggregateTypePayment, p.ID),
		PaymentNumber:   p.PaymentNumber,
		Direction:       p.Direction,
		CounterpartyID:  p.CounterpartyID,
		BankAccountID:   p.BankAccountID,
		Amount:          p.Amount,
		Method:          p.Method,
		PaymentDate:     p.PaymentDate,
		Allocations:     p.Allocations(),
		JournalEntryID:  p.JournalEntryID,
	}
}

type PaymentVoidedEvent struct {
	shared.BaseDomainEvent
	PaymentNumber  string            `json:"payment_number"`
	PreviousStatus PaymentStatus     `json:"previous_status"`
	Amount         valueobject.Money `json:"amount"`
	Reason         string            `json:"reason"`
}

func NewPaymentVoidedEvent(p *Payment, previous PaymentStatus) *PaymentVoidedEvent {
	return &PaymentVoidedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentVoided, AggregateTypePayment, p.ID),
		PaymentNumber:   p.PaymentNumber,
		PreviousStatus:  previous,
		Amount:          p.Amount,
		Reason:          p.VoidReason,
	}
}
