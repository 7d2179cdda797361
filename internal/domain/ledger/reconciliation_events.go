package ledger

import (
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

const (
	EventTypeReconciliationCompleted = "ReconciliationCompleted"

	AggregateTypeReconciliation = "ReconciliationStatement"
)

// ReconciliationCompletedEvent is raised when a statement is completed, balanced or
// with an accepted variance
type ReconciliationCompletedEvent struct {
	shared.BaseDomainEvent
	BankAccountID       uuid.UUID         `json:"bank_account_id"`
	StatementDate       time.Time         `json:"statement_date"`
	AdjustedBank        valueobject.Money `json:"adjusted_bank_balance"`
	AdjustedBook        valueobject.Money `json:"adjusted_book_balance"`
	Variance            valueobject.Money `json:"variance"`
	VarianceExplanation string            `json:"variance_explanation,omitempty"`
	MatchedEntryIDs     []uuid.UUID       `json:"matched_entry_ids,omitempty"`
	CompletedBy         uuid.UUID         `json:"completed_by"`
}

func NewReconciliationCompletedEvent(r *ReconciliationStatement) *ReconciliationCompletedEvent {
	ev := &ReconciliationCompletedEvent{
		BaseDomainEvent:     shared.NewBaseDomainEvent(EventTypeReconciliationCompleted, AggregateTypeReconciliation, r.ID),
		BankAccountID:       r.BankAccountID,
		StatementDate:       r.StatementDate,
		AdjustedBank:        r.AdjustedBankBalance(),
		AdjustedBook:        r.AdjustedBookBalance(),
		Variance:            r.CalculateVariance(),
		VarianceExplanation: r.VarianceExplanation,
		MatchedEntryIDs:     r.MatchedEntryIDs(),
	}
	if r.CompletedBy != nil {
		ev.CompletedBy = *r.CompletedBy
	}
	return ev
}
