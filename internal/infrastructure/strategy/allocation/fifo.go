package allocation

import (
	"sort"

	"github.com/erp/ledger/internal/domain/shared/strategy"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
)

// FIFOAllocationStrategy settles the documents that fall due first
type FIFOAllocationStrategy struct {
	strategy.BaseStrategy
}

func NewFIFOAllocationStrategy() *FIFOAllocationStrategy {
	return &FIFOAllocationStrategy{
		BaseStrategy: strategy.NewBaseStrategy(
			"fifo",
			strategy.StrategyTypeAllocation,
			"Allocate to the earliest due documents first",
		),
	}
}

func (s *FIFOAllocationStrategy) Allocate(amount valueobject.Money, documents []strategy.OpenDocument) (strategy.AllocationResult, error) {
	remaining := amount
	allocations := make([]strategy.Allocation, 0)

	for _, doc := range byDueDate(documents) {
		if !remaining.IsPositive() {
			break
		}
		if !doc.Outstanding.IsPositive() {
			continue
		}
		portion, err := remaining.Min(doc.Outstanding)
		if err != nil {
			return strategy.AllocationResult{}, err
		}
		allocations = append(allocations, strategy.Allocation{
			DocumentID: doc.ID,
			Number:     doc.Number,
			Amount:     portion,
		})
		if remaining, err = remaining.Subtract(portion); err != nil {
			return strategy.AllocationResult{}, err
		}
	}

	allocated, err := amount.Subtract(remaining)
	if err != nil {
		return strategy.AllocationResult{}, err
	}
	return strategy.AllocationResult{
		Allocations:    allocations,
		TotalAllocated: allocated,
		Remaining:      remaining,
	}, nil
}

// byDueDate orders documents by due date, then issue date, then number
func byDueDate(documents []strategy.OpenDocument) []strategy.OpenDocument {
	sorted := make([]strategy.OpenDocument, len(documents))
	copy(sorted, documents)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.DueDate.Equal(b.DueDate) {
			return a.DueDate.Before(b.DueDate)
		}
		if !a.IssueDate.Equal(b.IssueDate) {
			return a.IssueDate.Before(b.IssueDate)
		}
		return a.Number < b.Number
	})
	return sorted
}

func zero(m valueobject.Money) valueobject.Money {
	return valueobject.Zero(m.Currency())
}
