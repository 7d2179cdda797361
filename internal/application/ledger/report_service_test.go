package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func (f *fixture) ledgerActivity(t *testing.T) {
	t.Helper()
	bank, equity, rent := f.id(t, "1010"), f.id(t, "3000"), f.id(t, "6000")
	f.post(t, day(3), "CAP-1", debit(bank, "500"), credit(equity, "500"))
	f.post(t, day(10), "RENT-3", debit(rent, "200"), credit(bank, "200"))
	f.post(t, day(20), "CAP-2", debit(bank, "50"), credit(equity, "50"))
}

func TestReportService_AccountLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.ledgerActivity(t)
	bank := f.id(t, "1010")

	tests := []struct {
		name     string
		from, to *time.Time
		opening  string
		closing  string
		balances []string
	}{
		{name: "whole history", opening: "0", closing: "350", balances: []string{"500", "300", "350"}},
		{name: "opening carried forward", from: ptrTime(day(5)), opening: "500", closing: "350", balances: []string{"300", "350"}},
		{name: "bounded on both sides", from: ptrTime(day(5)), to: ptrTime(day(15)), opening: "500", closing: "300", balances: []string{"300"}},
		{name: "nothing before the start", from: ptrTime(day(1)), opening: "0", closing: "350", balances: []string{"500", "300", "350"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := f.reports.AccountLedger(ctx, bank, tt.from, tt.to)
			require.NoError(t, err)
			assert.Equal(t, "1010", report.Account.Code)
			assert.True(t, report.OpeningBalance.Amount().Equal(dec(tt.opening)), "opening %s", report.OpeningBalance)
			assert.True(t, report.ClosingBalance.Amount().Equal(dec(tt.closing)), "closing %s", report.ClosingBalance)
			require.Len(t, report.Lines, len(tt.balances))
			for i, want := range tt.balances {
				assert.True(t, report.Lines[i].Balance.Amount().Equal(dec(want)), "line %d balance %s", i, report.Lines[i].Balance)
			}
		})
	}

	t.Run("credit lines carry the credit side", func(t *testing.T) {
		report, err := f.reports.AccountLedger(ctx, bank, ptrTime(day(10)), ptrTime(day(10)))
		require.NoError(t, err)
		require.Len(t, report.Lines, 1)
		line := report.Lines[0]
		assert.Equal(t, "RENT-3", line.Reference)
		assert.Nil(t, line.Debit)
		require.NotNil(t, line.Credit)
		assert.True(t, line.Credit.Amount().Equal(dec("200")))
	})

	t.Run("unknown account", func(t *testing.T) {
		_, err := f.reports.AccountLedger(ctx, uuid.New(), nil, nil)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestReportService_Exports(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.ledgerActivity(t)

	t.Run("trial balance", func(t *testing.T) {
		export, err := f.reports.ExportTrialBalance(ctx, testNow)
		require.NoError(t, err)
		assert.Equal(t, "trial-balance/2024-03-31/20240331T120000Z.json", export.Key)
		assert.Equal(t, "memory://"+export.Key, export.URL)
		assert.True(t, export.GeneratedAt.Equal(testNow))

		body, err := f.reports.GetReport(ctx, export.Key)
		require.NoError(t, err)
		assert.Len(t, body, export.Size)
		var decoded struct {
			AsOf time.Time         `json:"as_of"`
			Rows []json.RawMessage `json:"rows"`
		}
		require.NoError(t, json.Unmarshal(body, &decoded))
		assert.True(t, decoded.AsOf.Equal(day(31)))
		assert.Len(t, decoded.Rows, 3)
	})

	t.Run("account ledger", func(t *testing.T) {
		export, err := f.reports.ExportAccountLedger(ctx, f.id(t, "6000"), nil, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{export.Key}, f.reportData.keys("account-ledger/6000/"))
	})

	t.Run("reconciliation", func(t *testing.T) {
		st := f.startStatement(t, "350")
		export, err := f.reports.ExportReconciliation(ctx, st.ID)
		require.NoError(t, err)
		prefix := "reconciliation/" + st.BankAccountID.String() + "/2024-03-31/"
		assert.Equal(t, []string{export.Key}, f.reportData.keys(prefix))

		body, err := f.reports.GetReport(ctx, export.Key)
		require.NoError(t, err)
		var decoded map[string]any
		require.NoError(t, json.Unmarshal(body, &decoded))
		assert.Equal(t, "IN_PROGRESS", decoded["status"])
		assert.Equal(t, true, decoded["is_balanced"])
	})

	t.Run("a failed link still returns the export", func(t *testing.T) {
		f.reportData.urlErr = errors.New("presign disabled")
		defer func() { f.reportData.urlErr = nil }()
		export, err := f.reports.ExportTrialBalance(ctx, time.Time{})
		require.NoError(t, err)
		assert.Empty(t, export.URL)
		assert.NotEmpty(t, f.reportData.objects[export.Key])
	})

	t.Run("missing report", func(t *testing.T) {
		_, err := f.reports.GetReport(ctx, "trial-balance/1999-01-01/none.json")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestReportService_NoStore(t *testing.T) {
	f := newFixture(t)
	svc := NewReportService(f.journal, f.accounts, f.entries, f.statements, nil, WithLogger(zap.NewNop()))

	_, err := svc.ExportTrialBalance(context.Background(), testNow)
	assert.Error(t, err)
	_, err = svc.GetReport(context.Background(), "anything")
	assert.Error(t, err)
}

func ptrTime(t time.Time) *time.Time { return &t }
