package valueobject

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitRegistry(t *testing.T) {
	reg := DefaultUnitRegistry()

	t.Run("lookup is case insensitive", func(t *testing.T) {
		u, err := reg.Lookup("kg")
		require.NoError(t, err)
		assert.Equal(t, "KG", u.Code())
		assert.Equal(t, DimensionMass, u.Dimension())
	})

	t.Run("unknown unit", func(t *testing.T) {
		_, err := reg.Lookup("PARSEC")
		assert.Equal(t, "UNKNOWN_UNIT", errCode(t, err))
	})

	t.Run("duplicate codes rejected", func(t *testing.T) {
		ea := mustUnit("EA", "Each", DimensionCount, "1")
		_, err := NewUnitRegistry(ea, ea)
		assert.Equal(t, "DUPLICATE_UNIT", errCode(t, err))
	})

	t.Run("new quantity resolves the code", func(t *testing.T) {
		q, err := reg.NewQuantity(decimal.NewFromInt(3), "dz")
		require.NoError(t, err)
		assert.Equal(t, "3 DZ", q.String())

		_, err = reg.NewQuantity(decimal.NewFromInt(3), "PARSEC")
		assert.Equal(t, "UNKNOWN_UNIT", errCode(t, err))
	})

	t.Run("codes sorted", func(t *testing.T) {
		codes := reg.Codes()
		assert.Contains(t, codes, "DZ")
		assert.IsNonDecreasing(t, codes)
	})
}

func TestQuantity_Convert(t *testing.T) {
	reg := DefaultUnitRegistry()
	kg, _ := reg.Lookup("KG")
	ea, _ := reg.Lookup("EA")

	q, err := NewQuantity(decimal.RequireFromString("2.5"), kg)
	require.NoError(t, err)

	t.Run("same dimension", func(t *testing.T) {
		g, err := reg.Convert(q, "G")
		require.NoError(t, err)
		assert.Equal(t, "2500", g.Amount().String())
		assert.True(t, g.Equals(q))
	})

	t.Run("incompatible dimensions", func(t *testing.T) {
		_, err := q.ConvertTo(ea)
		assert.Equal(t, "INCOMPATIBLE_UNITS", errCode(t, err))

		other, _ := NewQuantity(decimal.NewFromInt(1), ea)
		_, err = q.Add(other)
		assert.Equal(t, "INCOMPATIBLE_UNITS", errCode(t, err))
	})
}

func TestQuantity_Arithmetic(t *testing.T) {
	reg := DefaultUnitRegistry()
	dz, _ := reg.Lookup("DZ")
	ea, _ := reg.Lookup("EA")

	oneDozen, _ := NewQuantity(decimal.NewFromInt(1), dz)
	six, _ := NewQuantity(decimal.NewFromInt(6), ea)

	sum, err := oneDozen.Add(six)
	require.NoError(t, err)
	assert.Equal(t, "1.5", sum.Amount().String())
	assert.Equal(t, "DZ", sum.Unit().Code())

	diff, err := six.Subtract(oneDozen)
	assert.Error(t, err)
	assert.True(t, diff.IsZero())

	doubled, err := six.Multiply(decimal.NewFromInt(2))
	require.NoError(t, err)
	assert.Equal(t, "12", doubled.Amount().String())

	_, err = NewQuantity(decimal.NewFromInt(-1), ea)
	assert.Equal(t, "NEGATIVE_QUANTITY", errCode(t, err))
}
