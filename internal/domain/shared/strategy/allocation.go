package strategy

import (
	"time"

	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// OpenDocument is a bill or invoice with an outstanding balance
type OpenDocument struct {
	ID          uuid.UUID
	Number      string
	IssueDate   time.Time
	DueDate     time.Time
	Outstanding valueobject.Money
}

// Allocation assigns part of a payment to one document
type Allocation struct {
	DocumentID uuid.UUID
	Number     string
	Amount     valueobject.Money
}

// AllocationResult is the outcome of spreading a payment across documents
type AllocationResult struct {
	Allocations    []Allocation
	TotalAllocated valueobject.Money
	Remaining      valueobject.Money
}

// PaymentAllocationStrategy suggests how a payment should be split across open documents
type PaymentAllocationStrategy interface {
	Strategy
	Allocate(amount valueobject.Money, documents []OpenDocument) (AllocationResult, error)
}
