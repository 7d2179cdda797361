package strategy

import (
	"github.com/erp/ledger/internal/domain/shared/strategy"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
)

// ExemptTaxCalculator charges no tax regardless of the line rate. Used for
// counterparties holding an exemption certificate.
type ExemptTaxCalculator struct {
	strategy.BaseStrategy
}

func NewExemptTaxCalculator() *ExemptTaxCalculator {
	return &ExemptTaxCalculator{
		BaseStrategy: strategy.NewBaseStrategy("exempt", strategy.StrategyTypeTax, "No tax charged"),
	}
}

func (c *ExemptTaxCalculator) CalculateTax(line strategy.TaxableLine) (valueobject.Money, error) {
	return valueobject.Zero(line.NetAmount.Currency()), nil
}
