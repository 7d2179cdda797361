package allocation

import (
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/shared/strategy"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func usd(amount string) valueobject.Money {
	return valueobject.MustMoney(amount, "USD")
}

func openDoc(number string, dueInDays int, outstanding string) strategy.OpenDocument {
	return strategy.OpenDocument{
		ID:          uuid.New(),
		Number:      number,
		IssueDate:   day,
		DueDate:     day.AddDate(0, 0, dueInDays),
		Outstanding: usd(outstanding),
	}
}

func amountsByNumber(res strategy.AllocationResult) map[string]string {
	out := make(map[string]string, len(res.Allocations))
	for _, a := range res.Allocations {
		out[a.Number] = a.Amount.Amount().StringFixed(2)
	}
	return out
}

func TestFIFOAllocationStrategy(t *testing.T) {
	s := NewFIFOAllocationStrategy()
	assert.Equal(t, "fifo", s.Name())
	assert.Equal(t, strategy.StrategyTypeAllocation, s.Type())

	docs := []strategy.OpenDocument{
		openDoc("INV-3", 30, "300.00"),
		openDoc("INV-1", 10, "100.00"),
		openDoc("INV-2", 20, "200.00"),
		openDoc("INV-0", 5, "0.00"),
	}

	tests := []struct {
		name      string
		amount    string
		want      map[string]string
		remaining string
	}{
		{"earliest due settled first", "150.00", map[string]string{"INV-1": "100.00", "INV-2": "50.00"}, "0.00"},
		{"exact total", "600.00", map[string]string{"INV-1": "100.00", "INV-2": "200.00", "INV-3": "300.00"}, "0.00"},
		{"overpayment leaves remainder", "650.00", map[string]string{"INV-1": "100.00", "INV-2": "200.00", "INV-3": "300.00"}, "50.00"},
		{"partial first document", "40.00", map[string]string{"INV-1": "40.00"}, "0.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.Allocate(usd(tt.amount), docs)
			require.NoError(t, err)
			assert.Equal(t, tt.want, amountsByNumber(res))
			assert.Equal(t, tt.remaining, res.Remaining.Amount().StringFixed(2))

			allocated, err := usd(tt.amount).Subtract(res.Remaining)
			require.NoError(t, err)
			assert.True(t, res.TotalAllocated.Equals(allocated))
		})
	}

	t.Run("same due date ordered by number", func(t *testing.T) {
		res, err := s.Allocate(usd("10"), []strategy.OpenDocument{openDoc("B", 1, "10"), openDoc("A", 1, "10")})
		require.NoError(t, err)
		require.Len(t, res.Allocations, 1)
		assert.Equal(t, "A", res.Allocations[0].Number)
	})

	t.Run("currency mismatch", func(t *testing.T) {
		eur := openDoc("EUR-1", 1, "10")
		eur.Outstanding = valueobject.MustMoney("10", "EUR")
		_, err := s.Allocate(usd("10"), []strategy.OpenDocument{eur})
		assert.Error(t, err)
	})

	t.Run("input order untouched", func(t *testing.T) {
		_, err := s.Allocate(usd("1"), docs)
		require.NoError(t, err)
		assert.Equal(t, "INV-3", docs[0].Number)
	})
}

func TestProportionalAllocationStrategy(t *testing.T) {
	s := NewProportionalAllocationStrategy()
	assert.Equal(t, "proportional", s.Name())

	t.Run("splits by outstanding share", func(t *testing.T) {
		docs := []strategy.OpenDocument{openDoc("A", 1, "100.00"), openDoc("B", 2, "300.00")}
		res, err := s.Allocate(usd("200.00"), docs)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"A": "50.00", "B": "150.00"}, amountsByNumber(res))
		assert.True(t, res.Remaining.IsZero())
		assert.True(t, res.TotalAllocated.Equals(usd("200.00")))
	})

	t.Run("leftover cents go to earliest due", func(t *testing.T) {
		docs := []strategy.OpenDocument{openDoc("A", 1, "100"), openDoc("B", 2, "100"), openDoc("C", 3, "100")}
		res, err := s.Allocate(usd("100.00"), docs)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"A": "33.34", "B": "33.33", "C": "33.33"}, amountsByNumber(res))

		sum := usd("0")
		for _, a := range res.Allocations {
			sum, err = sum.Add(a.Amount)
			require.NoError(t, err)
		}
		assert.True(t, sum.Equals(usd("100.00")))
	})

	t.Run("covers everything", func(t *testing.T) {
		docs := []strategy.OpenDocument{openDoc("A", 1, "100"), openDoc("B", 2, "50")}
		res, err := s.Allocate(usd("175"), docs)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"A": "100.00", "B": "50.00"}, amountsByNumber(res))
		assert.Equal(t, "25.00", res.Remaining.Amount().StringFixed(2))
	})

	t.Run("never exceeds outstanding", func(t *testing.T) {
		docs := []strategy.OpenDocument{openDoc("A", 1, "0.01"), openDoc("B", 2, "0.02"), openDoc("C", 3, "999.97")}
		res, err := s.Allocate(usd("999.99"), docs)
		require.NoError(t, err)
		byNumber := map[string]strategy.OpenDocument{}
		for _, d := range docs {
			byNumber[d.Number] = d
		}
		for _, a := range res.Allocations {
			gt, err := a.Amount.GreaterThan(byNumber[a.Number].Outstanding)
			require.NoError(t, err)
			assert.False(t, gt, a.Number)
		}
	})
}
