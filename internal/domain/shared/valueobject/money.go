package valueobject

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// MoneyScale is the maximum number of decimal places a Money amount may carry
const MoneyScale int32 = 4

// Currency is an ISO 4217 currency code
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	JPY Currency = "JPY"
	CNY Currency = "CNY"
	CAD Currency = "CAD"
)

// ParseCurrency normalizes and validates an ISO 4217 code
func ParseCurrency(code string) (Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", shared.NewValidationError("INVALID_CURRENCY", "currency cannot be empty")
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", shared.NewValidationError("INVALID_CURRENCY", fmt.Sprintf("unknown currency code %q", code))
	}
	return Currency(unit.String()), nil
}

// IsValid reports whether c is a recognised ISO 4217 code
func (c Currency) IsValid() bool {
	_, err := ParseCurrency(string(c))
	return err == nil
}

func (c Currency) String() string { return string(c) }

// Money is an immutable amount in a single currency, at most four decimal places.
// Every operation returns a new value.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMoney validates the currency and the scale of amount
func NewMoney(amount decimal.Decimal, cur Currency) (Money, error) {
	c, err := ParseCurrency(string(cur))
	if err != nil {
		return Money{}, err
	}
	if !amount.Truncate(MoneyScale).Equal(amount) {
		return Money{}, shared.NewValidationError("INVALID_SCALE",
			fmt.Sprintf("amount %s has more than %d decimal places", amount.String(), MoneyScale))
	}
	return Money{amount: amount, currency: c}, nil
}

// NewMoneyFromString parses a decimal string such as "100.25"
func NewMoneyFromString(amount string, cur Currency) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return Money{}, shared.NewValidationError("INVALID_AMOUNT", fmt.Sprintf("invalid amount %q", amount))
	}
	return NewMoney(d, cur)
}

// NewMoneyFromFloat converts a float, rounding half-to-even at four places
func NewMoneyFromFloat(amount float64, cur Currency) (Money, error) {
	return NewMoney(decimal.NewFromFloat(amount).RoundBank(MoneyScale), cur)
}

// NewMoneyFromInt creates a whole-unit amount
func NewMoneyFromInt(amount int64, cur Currency) (Money, error) {
	return NewMoney(decimal.NewFromInt(amount), cur)
}

// MustMoney parses amount and panics on error. Intended for constants and tests.
func MustMoney(amount string, cur Currency) Money {
	m, err := NewMoneyFromString(amount, cur)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns a zero amount in cur
func Zero(cur Currency) Money {
	return Money{amount: decimal.Zero, currency: cur}
}

func (m Money) Amount() decimal.Decimal { return m.amount }
func (m Money) Currency() Currency      { return m.currency }
func (m Money) IsZero() bool            { return m.amount.IsZero() }
func (m Money) IsPositive() bool        { return m.amount.IsPositive() }
func (m Money) IsNegative() bool        { return m.amount.IsNegative() }

func currencyMismatch(op string, a, b Currency) error {
	return shared.NewInvariantError("CURRENCY_MISMATCH",
		fmt.Sprintf("cannot %s %s and %s", op, a, b))
}

// Add returns m + other. Both must share a currency.
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, currencyMismatch("add", m.currency, other.currency)
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

// Subtract returns m - other. Both must share a currency.
func (m Money) Subtract(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, currencyMismatch("subtract", m.currency, other.currency)
	}
	return Money{amount: m.amount.Sub(other.amount), currency: m.currency}, nil
}

// Multiply scales m by factor with banker's rounding at four places
func (m Money) Multiply(factor decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(factor).RoundBank(MoneyScale), currency: m.currency}
}

// Divide returns m / divisor with banker's rounding at four places
func (m Money) Divide(divisor decimal.Decimal) (Money, error) {
	if divisor.IsZero() {
		return Money{}, shared.NewInvariantError("DIVISION_BY_ZERO", "cannot divide money by zero")
	}
	return Money{amount: divRoundBank(m.amount, divisor), currency: m.currency}, nil
}

// divRoundBank rounds the exact quotient half to even, judging the tie from the
// remainder so no intermediate rounding can move it.
func divRoundBank(d, divisor decimal.Decimal) decimal.Decimal {
	q, r := d.QuoRem(divisor, MoneyScale)
	if r.IsZero() {
		return q
	}
	unit := decimal.New(1, -MoneyScale)
	cmp := r.Abs().Mul(decimal.NewFromInt(2)).Cmp(divisor.Abs().Mul(unit))
	if cmp < 0 || (cmp == 0 && q.Shift(MoneyScale).BigInt().Bit(0) == 0) {
		return q
	}
	if d.Sign()*divisor.Sign() < 0 {
		return q.Sub(unit)
	}
	return q.Add(unit)
}

func (m Money) Negate() Money {
	return Money{amount: m.amount.Neg(), currency: m.currency}
}

func (m Money) Abs() Money {
	return Money{amount: m.amount.Abs(), currency: m.currency}
}

// Compare returns -1, 0 or +1. Both must share a currency.
func (m Money) Compare(other Money) (int, error) {
	if m.currency != other.currency {
		return 0, currencyMismatch("compare", m.currency, other.currency)
	}
	return m.amount.Cmp(other.amount), nil
}

// Equals is true when amount and currency are both equal
func (m Money) Equals(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

func (m Money) GreaterThan(other Money) (bool, error) {
	c, err := m.Compare(other)
	return c > 0, err
}

func (m Money) LessThan(other Money) (bool, error) {
	c, err := m.Compare(other)
	return c < 0, err
}

// Min returns the smaller of m and other
func (m Money) Min(other Money) (Money, error) {
	c, err := m.Compare(other)
	if err != nil {
		return Money{}, err
	}
	if c <= 0 {
		return m, nil
	}
	return other, nil
}

// Sum adds all values; the result is zero in cur for an empty list
func Sum(cur Currency, values ...Money) (Money, error) {
	total := Zero(cur)
	for _, v := range values {
		var err error
		if total, err = total.Add(v); err != nil {
			return Money{}, err
		}
	}
	return total, nil
}

// String renders the amount with two decimal places, or four when needed
func (m Money) String() string {
	places := int32(2)
	if !m.amount.Round(2).Equal(m.amount) {
		places = MoneyScale
	}
	return fmt.Sprintf("%s %s", m.amount.StringFixed(places), m.currency)
}

type moneyJSON struct {
	Amount   string   `json:"amount"`
	Currency Currency `json:"currency"`
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Amount: m.amount.String(), Currency: m.currency})
}

// UnmarshalJSON validates through NewMoney so decoded values obey the same rules
func (m *Money) UnmarshalJSON(data []byte) error {
	var v moneyJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	parsed, err := NewMoneyFromString(v.Amount, v.Currency)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
