package strategy

import (
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// TaxableLine is the input to a tax computation for one document line
type TaxableLine struct {
	Description string
	NetAmount   valueobject.Money
	TaxRate     decimal.Decimal
}

// TaxCalculator computes tax for a document line. Jurisdiction rules live in
// implementations; the ledger only records the amount returned.
type TaxCalculator interface {
	Strategy
	CalculateTax(line TaxableLine) (valueobject.Money, error)
}

// RateTaxCalculator applies the line rate to the net amount with banker's rounding.
// It is the calculator documents use when none is supplied.
type RateTaxCalculator struct {
	BaseStrategy
}

func NewRateTaxCalculator() *RateTaxCalculator {
	return &RateTaxCalculator{
		BaseStrategy: NewBaseStrategy("rate", StrategyTypeTax, "Net amount multiplied by the line tax rate"),
	}
}

func (c *RateTaxCalculator) CalculateTax(line TaxableLine) (valueobject.Money, error) {
	return line.NetAmount.Multiply(line.TaxRate), nil
}
