package valueobject

import (
	"encoding/json"
	"fmt"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// QuantityScale is the precision kept after unit conversions
const QuantityScale int32 = 4

// Quantity is a non-negative amount in a unit of measure
type Quantity struct {
	amount decimal.Decimal
	unit   UnitOfMeasure
}

func NewQuantity(amount decimal.Decimal, unit UnitOfMeasure) (Quantity, error) {
	if amount.IsNegative() {
		return Quantity{}, shared.NewValidationError("NEGATIVE_QUANTITY", "quantity cannot be negative")
	}
	if unit.code == "" {
		return Quantity{}, shared.NewValidationError("INVALID_UNIT", "quantity requires a unit")
	}
	return Quantity{amount: amount, unit: unit}, nil
}

func (q Quantity) Amount() decimal.Decimal { return q.amount }
func (q Quantity) Unit() UnitOfMeasure     { return q.unit }
func (q Quantity) IsZero() bool            { return q.amount.IsZero() }

// ConvertTo expresses q in unit. Units of different dimensions fail with INCOMPATIBLE_UNITS.
func (q Quantity) ConvertTo(unit UnitOfMeasure) (Quantity, error) {
	f, err := q.unit.ConversionFactor(unit)
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{amount: q.amount.Mul(f).RoundBank(QuantityScale), unit: unit}, nil
}

// Add converts other into q's unit and adds it
func (q Quantity) Add(other Quantity) (Quantity, error) {
	o, err := other.ConvertTo(q.unit)
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{amount: q.amount.Add(o.amount), unit: q.unit}, nil
}

// Subtract converts other into q's unit and subtracts it; the result may not go negative
func (q Quantity) Subtract(other Quantity) (Quantity, error) {
	o, err := other.ConvertTo(q.unit)
	if err != nil {
		return Quantity{}, err
	}
	res := q.amount.Sub(o.amount)
	if res.IsNegative() {
		return Quantity{}, shared.NewInvariantError("NEGATIVE_QUANTITY",
			fmt.Sprintf("cannot subtract %s from %s", other, q))
	}
	return Quantity{amount: res, unit: q.unit}, nil
}

// Multiply scales the quantity by a non-negative factor
func (q Quantity) Multiply(factor decimal.Decimal) (Quantity, error) {
	return NewQuantity(q.amount.Mul(factor).RoundBank(QuantityScale), q.unit)
}

// Equals compares after converting into a common unit
func (q Quantity) Equals(other Quantity) bool {
	o, err := other.ConvertTo(q.unit)
	if err != nil {
		return false
	}
	return q.amount.Equal(o.amount)
}

func (q Quantity) String() string {
	return fmt.Sprintf("%s %s", q.amount.String(), q.unit.code)
}

type quantityJSON struct {
	Amount string `json:"amount"`
	Unit   string `json:"unit"`
}

func (q Quantity) MarshalJSON() ([]byte, error) {
	return json.Marshal(quantityJSON{Amount: q.amount.String(), Unit: q.unit.code})
}
