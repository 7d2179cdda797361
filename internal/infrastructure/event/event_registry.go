package event

import (
	"github.com/erp/ledger/internal/domain/ledger"
	"go.uber.org/zap"
)

// RegisterLedgerEvents registers every ledger event so the outbox processor can
// decode stored payloads
func RegisterLedgerEvents(s *Serializer) {
	s.Register(ledger.EventTypeAccountCreated, &ledger.AccountCreatedEvent{})
	s.Register(ledger.EventTypeAccountStatusChanged, &ledger.AccountStatusChangedEvent{})
	s.Register(ledger.EventTypeAccountBalanceUpdated, &ledger.AccountBalanceUpdatedEvent{})

	s.Register(ledger.EventTypeJournalEntryPosted, &ledger.JournalEntryPostedEvent{})
	s.Register(ledger.EventTypeJournalEntryReversed, &ledger.JournalEntryReversedEvent{})

	s.Register(ledger.EventTypeBillCreated, &ledger.DocumentCreatedEvent{})
	s.Register(ledger.EventTypeInvoiceCreated, &ledger.DocumentCreatedEvent{})
	s.Register(ledger.EventTypeDocumentStatusChanged, &ledger.DocumentStatusChangedEvent{})
	s.Register(ledger.EventTypeDocumentPaymentApplied, &ledger.DocumentPaymentAppliedEvent{})
	s.Register(ledger.EventTypeDocumentPaid, &ledger.DocumentPaidEvent{})
	s.Register(ledger.EventTypeDocumentVoided, &ledger.DocumentVoidedEvent{})

	s.Register(ledger.EventTypePaymentProcessed, &ledger.PaymentProcessedEvent{})
	s.Register(ledger.EventTypePaymentVoided, &ledger.PaymentVoidedEvent{})

	s.Register(ledger.EventTypeReconciliationCompleted, &ledger.ReconciliationCompletedEvent{})
}

// NewLedgerSerializer returns a serializer with every ledger event registered
func NewLedgerSerializer(logger *zap.Logger) *Serializer {
	s := NewSerializer(logger)
	RegisterLedgerEvents(s)
	return s
}
