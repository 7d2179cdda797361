package ledger

import (
	"sort"
	"time"

	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// TrialBalanceStatus represents the result status of a trial balance check
type TrialBalanceStatus string

const (
	TrialBalanceStatusBalanced   TrialBalanceStatus = "BALANCED"
	TrialBalanceStatusUnbalanced TrialBalanceStatus = "UNBALANCED"
)

func (s TrialBalanceStatus) IsBalanced() bool { return s == TrialBalanceStatusBalanced }

// TrialBalanceRow is one account's balance split into its debit or credit column
type TrialBalanceRow struct {
	AccountID uuid.UUID            `json:"account_id"`
	Code      string               `json:"code"`
	Name      string               `json:"name"`
	Type      AccountType          `json:"type"`
	Currency  valueobject.Currency `json:"currency"`
	Debit     valueobject.Money    `json:"debit"`
	Credit    valueobject.Money    `json:"credit"`
}

// TrialBalance lists every account with a balance as of a date, with column totals
// per currency
type TrialBalance struct {
	AsOf   time.Time                               `json:"as_of"`
	Rows   []TrialBalanceRow                       `json:"rows"`
	Totals map[valueobject.Currency]CurrencyTotals `json:"totals"`
	Status TrialBalanceStatus                      `json:"status"`
}

// BuildTrialBalance places each balance on the account's normal side, or the opposite
// side when negative. Accounts missing from balances use their stored balance; zero
// balances are omitted.
func BuildTrialBalance(asOf time.Time, accounts []*Account, balances map[uuid.UUID]valueobject.Money) *TrialBalance {
	tb := &TrialBalance{
		AsOf:   DateOf(asOf),
		Totals: make(map[valueobject.Currency]CurrencyTotals),
		Status: TrialBalanceStatusBalanced,
	}
	sorted := append([]*Account(nil), accounts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Code < sorted[j].Code })

	for _, a := range sorted {
		bal, ok := balances[a.ID]
		if !ok {
			bal = a.Balance()
		}
		if bal.IsZero() {
			continue
		}
		zero := valueobject.Zero(a.Currency)
		row := TrialBalanceRow{
			AccountID: a.ID, Code: a.Code, Name: a.Name, Type: a.Type, Currency: a.Currency,
			Debit: zero, Credit: zero,
		}
		side := a.Type.NormalSide()
		if bal.IsNegative() {
			side = side.Opposite()
		}
		if side == SideDebit {
			row.Debit = bal.Abs()
		} else {
			row.Credit = bal.Abs()
		}
		tb.Rows = append(tb.Rows, row)

		t, ok := tb.Totals[a.Currency]
		if !ok {
			t = CurrencyTotals{Debits: zero, Credits: zero}
		}
		t.Debits, _ = t.Debits.Add(row.Debit)
		t.Credits, _ = t.Credits.Add(row.Credit)
		tb.Totals[a.Currency] = t
	}
	for _, t := range tb.Totals {
		if !t.IsBalanced() {
			tb.Status = TrialBalanceStatusUnbalanced
		}
	}
	return tb
}

// BalanceDiscrepancy reports an account whose stored balance differs from the fold of
// its posted lines
type BalanceDiscrepancy struct {
	AccountID  uuid.UUID         `json:"account_id"`
	Code       string            `json:"code"`
	Stored     valueobject.Money `json:"stored"`
	Computed   valueobject.Money `json:"computed"`
	Difference valueobject.Money `json:"difference"`
}

// VerifyBalance folds lines into a balance and compares it to the stored one.
// It returns nil when they agree.
func VerifyBalance(acct *Account, lines []JournalLine) (*BalanceDiscrepancy, error) {
	computed, err := ComputeBalance(acct, lines)
	if err != nil {
		return nil, err
	}
	if computed.Equals(acct.Balance()) {
		return nil, nil
	}
	diff, _ := acct.Balance().Subtract(computed)
	return &BalanceDiscrepancy{
		AccountID:  acct.ID,
		Code:       acct.Code,
		Stored:     acct.Balance(),
		Computed:   computed,
		Difference: diff,
	}, nil
}
