package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	testActor = uuid.MustParse("7d5e2c1a-0000-4000-8000-000000000001")
	testDay   = time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)
)

func usd(amount string) valueobject.Money {
	return valueobject.MustMoney(amount, valueobject.USD)
}

func codeOf(t *testing.T, err error) string {
	t.Helper()
	var de *shared.DomainError
	require.True(t, errors.As(err, &de), "expected domain error, got %v", err)
	return de.Code
}

func kindOf(t *testing.T, err error) shared.ErrorKind {
	t.Helper()
	var de *shared.DomainError
	require.True(t, errors.As(err, &de), "expected domain error, got %v", err)
	return de.Kind
}

func newTestAccount(t *testing.T, code, name string, typ AccountType, opts ...AccountOption) *Account {
	t.Helper()
	a, err := NewAccount(code, name, typ, valueobject.USD, nil, opts...)
	require.NoError(t, err)
	return a
}

func accountMap(accts ...*Account) map[uuid.UUID]*Account {
	m := make(map[uuid.UUID]*Account, len(accts))
	for _, a := range accts {
		m[a.ID] = a
	}
	return m
}

func each(t *testing.T, n int64) valueobject.Quantity {
	t.Helper()
	unit, err := valueobject.DefaultUnitRegistry().Lookup("EA")
	require.NoError(t, err)
	q, err := valueobject.NewQuantity(decimal.NewFromInt(n), unit)
	require.NoError(t, err)
	return q
}
