package allocation

import (
	"github.com/erp/ledger/internal/domain/shared/strategy"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// centPlaces is the precision shares are cut to before leftover cents are handed out
const centPlaces = 2

// ProportionalAllocationStrategy spreads a payment across documents in proportion to
// what each still owes. Shares are truncated to cents; leftover cents go to documents
// in due date order.
type ProportionalAllocationStrategy struct {
	strategy.BaseStrategy
}

func NewProportionalAllocationStrategy() *ProportionalAllocationStrategy {
	return &ProportionalAllocationStrategy{
		BaseStrategy: strategy.NewBaseStrategy(
			"proportional",
			strategy.StrategyTypeAllocation,
			"Allocate in proportion to each document's outstanding balance",
		),
	}
}

func (s *ProportionalAllocationStrategy) Allocate(amount valueobject.Money, documents []strategy.OpenDocument) (strategy.AllocationResult, error) {
	open := make([]strategy.OpenDocument, 0, len(documents))
	total := zero(amount)
	for _, doc := range byDueDate(documents) {
		if !doc.Outstanding.IsPositive() {
			continue
		}
		var err error
		if total, err = total.Add(doc.Outstanding); err != nil {
			return strategy.AllocationResult{}, err
		}
		open = append(open, doc)
	}

	// enough to settle everything: identical to paying each in full
	if cmp, err := amount.Compare(total); err != nil {
		return strategy.AllocationResult{}, err
	} else if cmp >= 0 || !amount.IsPositive() {
		return NewFIFOAllocationStrategy().Allocate(amount, open)
	}

	shares := make([]decimal.Decimal, len(open))
	leftover := amount.Amount()
	for i, doc := range open {
		shares[i] = amount.Amount().Mul(doc.Outstanding.Amount()).Div(total.Amount()).Truncate(centPlaces)
		leftover = leftover.Sub(shares[i])
	}
	for i, doc := range open {
		if !leftover.IsPositive() {
			break
		}
		room := doc.Outstanding.Amount().Sub(shares[i])
		extra := decimal.Min(room, leftover)
		shares[i] = shares[i].Add(extra)
		leftover = leftover.Sub(extra)
	}

	allocations := make([]strategy.Allocation, 0, len(open))
	for i, doc := range open {
		if !shares[i].IsPositive() {
			continue
		}
		m, err := valueobject.NewMoney(shares[i], amount.Currency())
		if err != nil {
			return strategy.AllocationResult{}, err
		}
		allocations = append(allocations, strategy.Allocation{DocumentID: doc.ID, Number: doc.Number, Amount: m})
	}
	return strategy.AllocationResult{
		Allocations:    allocations,
		TotalAllocated: amount,
		Remaining:      zero(amount),
	}, nil
}
