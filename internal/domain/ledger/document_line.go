package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/strategy"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// LineItem is one priced line on a bill or invoice. Net and tax are fixed when the
// line is created so later strategy changes never rewrite existing documents.
type LineItem struct {
	Description string               `json:"description"`
	Quantity    valueobject.Quantity `json:"quantity"`
	UnitCost    valueobject.Money    `json:"unit_cost"`
	TaxRate     decimal.Decimal      `json:"tax_rate"`
	NetAmount   valueobject.Money    `json:"net_amount"`
	TaxAmount   valueobject.Money    `json:"tax_amount"`
}

// NewLineItem prices a line. taxRate is a fraction (0.08 for 8%). A nil calc uses the
// plain rate calculator.
func NewLineItem(
	description string,
	quantity valueobject.Quantity,
	unitCost valueobject.Money,
	taxRate decimal.Decimal,
	calc strategy.TaxCalculator,
) (LineItem, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return LineItem{}, shared.NewValidationError("INVALID_LINE_ITEM", "line description cannot be empty")
	}
	if !quantity.Amount().IsPositive() {
		return LineItem{}, shared.NewValidationError("INVALID_LINE_ITEM", "line quantity must be positive")
	}
	if unitCost.IsNegative() {
		return LineItem{}, shared.NewValidationError("INVALID_LINE_ITEM", "unit cost cannot be negative")
	}
	if taxRate.IsNegative() || taxRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return LineItem{}, shared.NewValidationError("INVALID_TAX_RATE",
			fmt.Sprintf("tax rate %s must be a fraction in [0, 1)", taxRate))
	}
	if calc == nil {
		calc = strategy.NewRateTaxCalculator()
	}

	net := unitCost.Multiply(quantity.Amount())
	tax, err := calc.CalculateTax(strategy.TaxableLine{Description: description, NetAmount: net, TaxRate: taxRate})
	if err != nil {
		return LineItem{}, err
	}
	if tax.Currency() != net.Currency() {
		return LineItem{}, shared.NewInvariantError("CURRENCY_MISMATCH", "tax calculator returned a different currency")
	}
	return LineItem{
		Description: description,
		Quantity:    quantity,
		UnitCost:    unitCost,
		TaxRate:     taxRate,
		NetAmount:   net,
		TaxAmount:   tax,
	}, nil
}

// EarlyPaymentTerms grant DiscountRate off the settled amount for payments made on or
// before DiscountDate
type EarlyPaymentTerms struct {
	DiscountDate time.Time       `json:"discount_date"`
	DiscountRate decimal.Decimal `json:"discount_rate"`
}

func (t EarlyPaymentTerms) validate() error {
	if t.DiscountDate.IsZero() {
		return shared.NewValidationError("INVALID_PAYMENT_TERMS", "discount date is required")
	}
	if !t.DiscountRate.IsPositive() || t.DiscountRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return shared.NewValidationError("INVALID_PAYMENT_TERMS", "discount rate must be in (0, 1)")
	}
	return nil
}

// Applies reports whether a payment dated on qualifies for the discount
func (t EarlyPaymentTerms) Applies(on time.Time) bool {
	return !DateOf(on).After(DateOf(t.DiscountDate))
}

// discountFor returns the discount earned by paying cash when outstanding is owed.
// Paying cash settles cash/(1-rate); the settled amount never exceeds outstanding.
func (t EarlyPaymentTerms) discountFor(cash, outstanding valueobject.Money) valueobject.Money {
	gross, err := cash.Divide(decimal.NewFromInt(1).Sub(t.DiscountRate))
	if err != nil {
		return valueobject.Zero(cash.Currency())
	}
	d, _ := gross.Subtract(cash)
	room, _ := outstanding.Subtract(cash)
	d, _ = d.Min(room)
	if d.IsNegative() {
		return valueobject.Zero(cash.Currency())
	}
	return d
}
