package ledger

import (
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

const (
	EventTypeBillCreated            = "BillCreated"
	EventTypeInvoiceCreated         = "InvoiceCreated"
	EventTypeDocumentStatusChanged  = "DocumentStatusChanged"
	EventTypeDocumentPaymentApplied = "DocumentPaymentApplied"
	EventTypeDocumentPaid           = "DocumentPaid"
	EventTypeDocumentVoided         = "DocumentVoided"

	AggregateTypeDocument = "Document"
)

func createdEventType(k DocumentKind) string {
	if k == DocumentKindBill {
		return EventTypeBillCreated
	}
	return EventTypeInvoiceCreated
}

// DocumentCreatedEvent is raised when a bill or invoice is drafted
type DocumentCreatedEvent struct {
	shared.BaseDomainEvent
	Kind           DocumentKind         `json:"kind"`
	Number         string               `json:"number"`
	CounterpartyID uuid.UUID            `json:"counterparty_id"`
	Currency       valueobject.Currency `json:"currency"`
}

func NewDocumentCreatedEvent(d *Document) *DocumentCreatedEvent {
	return &DocumentCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(createdEventType(d.Kind), AggregateTypeDocument, d.ID),
		Kind:            d.Kind,
		Number:          d.Number,
		CounterpartyID:  d.CounterpartyID,
		Currency:        d.Currency,
	}
}

// DocumentStatusChangedEvent is raised on every lifecycle transition except payments
type DocumentStatusChangedEvent struct {
	shared.BaseDomainEvent
	Kind           DocumentKind      `json:"kind"`
	Number         string            `json:"number"`
	PreviousStatus DocumentStatus    `json:"previous_status"`
	NewStatus      DocumentStatus    `json:"new_status"`
	ActorID        uuid.UUID         `json:"actor_id,omitempty"`
	TotalAmount    valueobject.Money `json:"total_amount"`
	Reason         string            `json:"reason,omitempty"`
}

func NewDocumentStatusChangedEvent(d *Document, previous DocumentStatus, actorID uuid.UUID) *DocumentStatusChangedEvent {
	ev := &DocumentStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDocumentStatusChanged, AggregateTypeDocument, d.ID),
		Kind:            d.Kind,
		Number:          d.Number,
		PreviousStatus:  previous,
		NewStatus:       d.status,
		ActorID:         actorID,
		TotalAmount:     d.totalAmount,
	}
	if d.status == DocumentStatusRejected {
		ev.Reason = d.RejectionReason
	}
	return ev
}

// DocumentPaymentAppliedEvent carries the cash and discount settled by one payment
type DocumentPaymentAppliedEvent struct {
	shared.BaseDomainEvent
	Kind           DocumentKind      `json:"kind"`
	Number         string            `json:"number"`
	CounterpartyID uuid.UUID         `json:"counterparty_id"`
	Payment        DocumentPayment   `json:"payment"`
	Outstanding    valueobject.Money `json:"outstanding"`
	NewStatus      DocumentStatus    `json:"new_status"`
}

func NewDocumentPaymentAppliedEvent(d *Document, p DocumentPayment) *DocumentPaymentAppliedEvent {
	return &DocumentPaymentAppliedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDocumentPaymentApplied, AggregateTypeDocument, d.ID),
		Kind:            d.Kind,
		Number:          d.Number,
		CounterpartyID:  d.CounterpartyID,
		Payment:         p,
		Outstanding:     d.OutstandingAmount(),
		NewStatus:       d.status,
	}
}

// DocumentPaidEvent is raised once when the outstanding balance reaches zero
type DocumentPaidEvent struct {
	shared.BaseDomainEvent
	Kind          DocumentKind      `json:"kind"`
	Number        string            `json:"number"`
	TotalAmount   valueobject.Money `json:"total_amount"`
	DiscountTaken valueobject.Money `json:"discount_taken"`
}

func NewDocumentPaidEvent(d *Document) *DocumentPaidEvent {
	return &DocumentPaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDocumentPaid, AggregateTypeDocument, d.ID),
		Kind:            d.Kind,
		Number:          d.Number,
		TotalAmount:     d.totalAmount,
		DiscountTaken:   d.discountTaken,
	}
}

// DocumentVoidedEvent is raised when an unpaid document is cancelled
type DocumentVoidedEvent struct {
	shared.BaseDomainEvent
	Kind           DocumentKind      `json:"kind"`
	Number         string            `json:"number"`
	PreviousStatus DocumentStatus    `json:"previous_status"`
	TotalAmount    valueobject.Money `json:"total_amount"`
	Reason         string            `json:"reason"`
}

func NewDocumentVoidedEvent(d *Document, previous DocumentStatus) *DocumentVoidedEvent {
	return &DocumentVoidedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDocumentVoided, AggregateTypeDocument, d.ID),
		Kind:            d.Kind,
		Number:          d.Number,
		PreviousStatus:  previous,
		TotalAmount:     d.totalAmount,
		Reason:          d.VoidReason,
	}
}
