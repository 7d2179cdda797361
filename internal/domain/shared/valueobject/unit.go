package valueobject

import (
	"fmt"
	"sort"
	"strings"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Dimension groups units that can be converted into each other
type Dimension string

const (
	DimensionCount  Dimension = "COUNT"
	DimensionMass   Dimension = "MASS"
	DimensionLength Dimension = "LENGTH"
	DimensionVolume Dimension = "VOLUME"
	DimensionTime   Dimension = "TIME"
)

// UnitOfMeasure is a unit within a dimension. Factor is how many base units of the
// dimension one of this unit equals (KG = 1000 when G is the mass base).
type UnitOfMeasure struct {
	code      string
	name      string
	dimension Dimension
	factor    decimal.Decimal
}

// NewUnitOfMeasure validates and creates a unit
func NewUnitOfMeasure(code, name string, dim Dimension, factor decimal.Decimal) (UnitOfMeasure, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" || len(code) > 20 {
		return UnitOfMeasure{}, shared.NewValidationError("INVALID_UNIT", "unit code must be 1-20 characters")
	}
	if dim == "" {
		return UnitOfMeasure{}, shared.NewValidationError("INVALID_UNIT", "unit dimension is required")
	}
	if !factor.IsPositive() {
		return UnitOfMeasure{}, shared.NewValidationError("INVALID_UNIT", fmt.Sprintf("unit %s factor must be positive", code))
	}
	if name == "" {
		name = code
	}
	return UnitOfMeasure{code: code, name: name, dimension: dim, factor: factor}, nil
}

func mustUnit(code, name string, dim Dimension, factor string) UnitOfMeasure {
	u, err := NewUnitOfMeasure(code, name, dim, decimal.RequireFromString(factor))
	if err != nil {
		panic(err)
	}
	return u
}

func (u UnitOfMeasure) Code() string            { return u.code }
func (u UnitOfMeasure) Name() string            { return u.name }
func (u UnitOfMeasure) Dimension() Dimension    { return u.dimension }
func (u UnitOfMeasure) Factor() decimal.Decimal { return u.factor }

func (u UnitOfMeasure) Equals(o UnitOfMeasure) bool {
	return u.code == o.code && u.dimension == o.dimension
}

// ConversionFactor returns the multiplier that converts an amount in u into to
func (u UnitOfMeasure) ConversionFactor(to UnitOfMeasure) (decimal.Decimal, error) {
	if u.dimension != to.dimension {
		return decimal.Zero, shared.NewInvariantError("INCOMPATIBLE_UNITS",
			fmt.Sprintf("cannot convert %s (%s) to %s (%s)", u.code, u.dimension, to.code, to.dimension))
	}
	return u.factor.Div(to.factor), nil
}

// UnitRegistry is an immutable table of known units. Build it once at startup and
// pass it by reference; there is no package-level registry.
type UnitRegistry struct {
	units map[string]UnitOfMeasure
}

// NewUnitRegistry builds a registry, rejecting duplicate codes
func NewUnitRegistry(units ...UnitOfMeasure) (*UnitRegistry, error) {
	m := make(map[string]UnitOfMeasure, len(units))
	for _, u := range units {
		if _, dup := m[u.code]; dup {
			return nil, shared.NewValidationError("DUPLICATE_UNIT", fmt.Sprintf("unit %s registered twice", u.code))
		}
		m[u.code] = u
	}
	return &UnitRegistry{units: m}, nil
}

// DefaultUnitRegistry returns a new registry with the common count, mass, length,
// volume and time units
func DefaultUnitRegistry() *UnitRegistry {
	r, err := NewUnitRegistry(
		mustUnit("EA", "Each", DimensionCount, "1"),
		mustUnit("PCS", "Pieces", DimensionCount, "1"),
		mustUnit("DZ", "Dozen", DimensionCount, "12"),
		mustUnit("G", "Gram", DimensionMass, "1"),
		mustUnit("KG", "Kilogram", DimensionMass, "1000"),
		mustUnit("LB", "Pound", DimensionMass, "453.59237"),
		mustUnit("CM", "Centimeter", DimensionLength, "1"),
		mustUnit("M", "Meter", DimensionLength, "100"),
		mustUnit("ML", "Milliliter", DimensionVolume, "1"),
		mustUnit("L", "Liter", DimensionVolume, "1000"),
		mustUnit("MIN", "Minute", DimensionTime, "1"),
		mustUnit("HR", "Hour", DimensionTime, "60"),
		mustUnit("DAY", "Day", DimensionTime, "1440"),
	)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the unit registered under code
func (r *UnitRegistry) Lookup(code string) (UnitOfMeasure, error) {
	u, ok := r.units[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return UnitOfMeasure{}, shared.NewValidationError("UNKNOWN_UNIT", fmt.Sprintf("unit %q is not registered", code))
	}
	return u, nil
}

// NewQuantity builds a quantity in the unit registered under code
func (r *UnitRegistry) NewQuantity(amount decimal.Decimal, code string) (Quantity, error) {
	u, err := r.Lookup(code)
	if err != nil {
		return Quantity{}, err
	}
	return NewQuantity(amount, u)
}

// Convert expresses q in the unit registered under toCode
func (r *UnitRegistry) Convert(q Quantity, toCode string) (Quantity, error) {
	to, err := r.Lookup(toCode)
	if err != nil {
		return Quantity{}, err
	}
	return q.ConvertTo(to)
}

// Codes lists the registered unit codes in sorted order
func (r *UnitRegistry) Codes() []string {
	codes := make([]string, 0, len(r.units))
	for c := range r.units {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}
