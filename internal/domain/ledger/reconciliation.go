package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultVarianceTolerance is the largest absolute variance a statement may complete with
var DefaultVarianceTolerance = decimal.NewFromFloat(0.01)

// ReconciliationStatus is the lifecycle state of a bank reconciliation
type ReconciliationStatus string

const (
	ReconciliationInProgress      ReconciliationStatus = "IN_PROGRESS"
	ReconciliationVariancePending ReconciliationStatus = "VARIANCE_PENDING"
	ReconciliationCompleted       ReconciliationStatus = "COMPLETED"
	ReconciliationRejected        ReconciliationStatus = "REJECTED"
)

func (s ReconciliationStatus) String() string   { return string(s) }
func (s ReconciliationStatus) IsTerminal() bool { return s == ReconciliationCompleted }

// OutstandingKind separates items the bank has not yet seen
type OutstandingKind string

const (
	OutstandingCheck   OutstandingKind = "CHECK"
	OutstandingDeposit OutstandingKind = "DEPOSIT"
)

// OutstandingItem is a book transaction missing from the bank statement. Amount is
// always positive; Kind gives the direction.
type OutstandingItem struct {
	Kind           OutstandingKind   `json:"kind"`
	Reference      string            `json:"reference"`
	Amount         valueobject.Money `json:"amount"`
	Date           time.Time         `json:"date"`
	JournalEntryID *uuid.UUID        `json:"journal_entry_id,omitempty"`
}

// Adjustment is a signed correction to the bank or book side
type Adjustment struct {
	Description string            `json:"description"`
	Amount      valueobject.Money `json:"amount"`
}

// BankLine is one transaction on the bank statement. Deposits are positive and
// withdrawals negative.
type BankLine struct {
	Reference      string            `json:"reference"`
	Amount         valueobject.Money `json:"amount"`
	Date           time.Time         `json:"date"`
	MatchedEntryID *uuid.UUID        `json:"matched_entry_id,omitempty"`
}

func (l BankLine) IsMatched() bool { return l.MatchedEntryID != nil }

// ReconciliationStatement reconciles a bank statement balance with the book balance
// of one bank account
type ReconciliationStatement struct {
	shared.BaseAggregateRoot
	BankAccountID       uuid.UUID            `json:"bank_account_id"`
	Currency            valueobject.Currency `json:"currency"`
	StatementDate       time.Time            `json:"statement_date"`
	PeriodStart         time.Time            `json:"period_start"`
	PeriodEnd           time.Time            `json:"period_end"`
	BankBalance         valueobject.Money    `json:"bank_balance"`
	BookBalance         valueobject.Money    `json:"book_balance"`
	Tolerance           decimal.Decimal      `json:"tolerance"`
	VarianceExplanation string               `json:"variance_explanation,omitempty"`
	RejectionReason     string               `json:"rejection_reason,omitempty"`
	CompletedBy         *uuid.UUID           `json:"completed_by,omitempty"`
	CompletedAt         *time.Time           `json:"completed_at,omitempty"`
	outstanding         []OutstandingItem
	bankAdjustments     []Adjustment
	bookAdjustments     []Adjustment
	bankLines           []BankLine
	status              ReconciliationStatus
}

func NewReconciliationStatement(
	bankAccountID uuid.UUID,
	currency valueobject.Currency,
	statementDate, periodStart, periodEnd time.Time,
	bankBalance, bookBalance valueobject.Money,
) (*ReconciliationStatement, error) {
	if bankAccountID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_BANK_ACCOUNT", "bank account is required")
	}
	cur, err := valueobject.ParseCurrency(string(currency))
	if err != nil {
		return nil, err
	}
	if bankBalance.Currency() != cur || bookBalance.Currency() != cur {
		return nil, shared.NewInvariantError("CURRENCY_MISMATCH",
			fmt.Sprintf("statement balances must be in %s", cur))
	}
	if periodStart.IsZero() || periodEnd.IsZero() || statementDate.IsZero() {
		return nil, shared.NewValidationError("INVALID_PERIOD", "statement and period dates are required")
	}
	if DateOf(periodEnd).Before(DateOf(periodStart)) {
		return nil, shared.NewValidationError("INVALID_PERIOD", "period end cannot be before period start")
	}
	return &ReconciliationStatement{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		BankAccountID:     bankAccountID,
		Currency:          cur,
		StatementDate:     DateOf(statementDate),
		PeriodStart:       DateOf(periodStart),
		PeriodEnd:         DateOf(periodEnd),
		BankBalance:       bankBalance,
		BookBalance:       bookBalance,
		Tolerance:         DefaultVarianceTolerance,
		status:            ReconciliationInProgress,
	}, nil
}

func (r *ReconciliationStatement) Status() ReconciliationStatus { return r.status }

func (r *ReconciliationStatement) OutstandingItems() []OutstandingItem {
	return append([]OutstandingItem(nil), r.outstanding...)
}

func (r *ReconciliationStatement) BankAdjustments() []Adjustment {
	return append([]Adjustment(nil), r.bankAdjustments...)
}

func (r *ReconciliationStatement) BookAdjustments() []Adjustment {
	return append([]Adjustment(nil), r.bookAdjustments...)
}

func (r *ReconciliationStatement) BankLines() []BankLine {
	return append([]BankLine(nil), r.bankLines...)
}

// MatchedEntryIDs lists the journal entries cleared by matched bank lines
func (r *ReconciliationStatement) MatchedEntryIDs() []uuid.UUID {
	var ids []uuid.UUID
	for _, l := range r.bankLines {
		if l.MatchedEntryID != nil {
			ids = append(ids, *l.MatchedEntryID)
		}
	}
	return ids
}

func (r *ReconciliationStatement) requireInProgress(action string) error {
	if r.status != ReconciliationInProgress {
		return invalidTransition("reconciliation", r.status.String(), action)
	}
	return nil
}

func (r *ReconciliationStatement) checkMoney(m valueobject.Money) error {
	if m.Currency() != r.Currency {
		return shared.NewInvariantError("CURRENCY_MISMATCH",
			fmt.Sprintf("amount in %s cannot be used on a %s statement", m.Currency(), r.Currency))
	}
	return nil
}

func (r *ReconciliationStatement) addOutstanding(kind OutstandingKind, reference string, amount valueobject.Money, date time.Time, entryID *uuid.UUID) error {
	if err := r.requireInProgress("add outstanding item to"); err != nil {
		return err
	}
	if err := r.checkMoney(amount); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return shared.NewValidationError(CodeInvalidAmount, "outstanding item amount must be positive")
	}
	r.outstanding = append(r.outstanding, OutstandingItem{
		Kind:           kind,
		Reference:      strings.TrimSpace(reference),
		Amount:         amount,
		Date:           DateOf(date),
		JournalEntryID: entryID,
	})
	r.touch()
	return nil
}

// AddOutstandingCheck records a payment issued in the books but not yet cleared
func (r *ReconciliationStatement) AddOutstandingCheck(reference string, amount valueobject.Money, date time.Time, entryID *uuid.UUID) error {
	return r.addOutstanding(OutstandingCheck, reference, amount, date, entryID)
}

// AddOutstandingDeposit records a deposit in the books not yet credited by the bank
func (r *ReconciliationStatement) AddOutstandingDeposit(reference string, amount valueobject.Money, date time.Time, entryID *uuid.UUID) error {
	return r.addOutstanding(OutstandingDeposit, reference, amount, date, entryID)
}

func (r *ReconciliationStatement) newAdjustment(description string, amount valueobject.Money) (Adjustment, error) {
	if err := r.requireInProgress("adjust"); err != nil {
		return Adjustment{}, err
	}
	if err := r.checkMoney(amount); err != nil {
		return Adjustment{}, err
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return Adjustment{}, shared.NewValidationError("INVALID_ADJUSTMENT", "adjustment description is required")
	}
	if amount.IsZero() {
		return Adjustment{}, shared.NewValidationError(CodeInvalidAmount, "adjustment amount cannot be zero")
	}
	return Adjustment{Description: description, Amount: amount}, nil
}

// AddBankAdjustment records a signed correction to the bank balance
func (r *ReconciliationStatement) AddBankAdjustment(description string, amount valueobject.Money) error {
	adj, err := r.newAdjustment(description, amount)
	if err != nil {
		return err
	}
	r.bankAdjustments = append(r.bankAdjustments, adj)
	r.touch()
	return nil
}

// AddBookAdjustment records a signed correction to the book balance, such as bank fees
func (r *ReconciliationStatement) AddBookAdjustment(description string, amount valueobject.Money) error {
	adj, err := r.newAdjustment(description, amount)
	if err != nil {
		return err
	}
	r.bookAdjustments = append(r.bookAdjustments, adj)
	r.touch()
	return nil
}

// AddBankLine records a transaction from the bank statement for matching
func (r *ReconciliationStatement) AddBankLine(reference string, amount valueobject.Money, date time.Time) error {
	if err := r.requireInProgress("add bank line to"); err != nil {
		return err
	}
	if err := r.checkMoney(amount); err != nil {
		return err
	}
	if amount.IsZero() {
		return shared.NewValidationError(CodeInvalidAmount, "bank line amount cannot be zero")
	}
	r.bankLines = append(r.bankLines, BankLine{Reference: strings.TrimSpace(reference), Amount: amount, Date: DateOf(date)})
	r.touch()
	return nil
}

// MatchesApplied counts how ApplyMatches changed the outstanding items
type MatchesApplied struct {
	Added   int
	Cleared int
}

// ApplyMatches records matched bank lines and turns every unmatched book item into an
// outstanding check (negative amount) or deposit (positive amount). An outstanding
// item whose entry is now matched is cleared; an entry already outstanding is not
// added twice.
func (r *ReconciliationStatement) ApplyMatches(result MatchResult) (MatchesApplied, error) {
	var applied MatchesApplied
	if err := r.requireInProgress("apply matches to"); err != nil {
		return applied, err
	}
	for _, m := range result.Matches {
		if m.BankLineIndex < 0 || m.BankLineIndex >= len(r.bankLines) {
			return applied, shared.NewValidationError("INVALID_MATCH", fmt.Sprintf("bank line %d does not exist", m.BankLineIndex))
		}
	}
	for _, b := range result.UnmatchedBook {
		if err := r.checkMoney(b.Amount); err != nil {
			return applied, err
		}
	}

	lines := r.BankLines()
	cleared := make(map[uuid.UUID]struct{}, len(result.Matches))
	for _, m := range result.Matches {
		id := m.Book.EntryID
		lines[m.BankLineIndex].MatchedEntryID = &id
		cleared[id] = struct{}{}
	}

	outstanding := make([]OutstandingItem, 0, len(r.outstanding)+len(result.UnmatchedBook))
	listed := make(map[uuid.UUID]struct{}, len(r.outstanding))
	for _, it := range r.outstanding {
		if it.JournalEntryID != nil {
			if _, ok := cleared[*it.JournalEntryID]; ok {
				applied.Cleared++
				continue
			}
			listed[*it.JournalEntryID] = struct{}{}
		}
		outstanding = append(outstanding, it)
	}
	for _, b := range result.UnmatchedBook {
		if _, ok := listed[b.EntryID]; ok {
			continue
		}
		id := b.EntryID
		listed[id] = struct{}{}
		item := OutstandingItem{Reference: b.Reference, Amount: b.Amount.Abs(), Date: DateOf(b.Date), JournalEntryID: &id}
		if b.Amount.IsNegative() {
			item.Kind = OutstandingCheck
		} else {
			item.Kind = OutstandingDeposit
		}
		outstanding = append(outstanding, item)
		applied.Added++
	}
	r.bankLines = lines
	r.outstanding = outstanding
	r.touch()
	return applied, nil
}

func sumAdjustments(cur valueobject.Currency, adjs []Adjustment) valueobject.Money {
	total := valueobject.Zero(cur)
	for _, a := range adjs {
		total, _ = total.Add(a.Amount)
	}
	return total
}

// AdjustedBankBalance is bank − checks + deposits + bank adjustments
func (r *ReconciliationStatement) AdjustedBankBalance() valueobject.Money {
	bal := r.BankBalance
	for _, it := range r.outstanding {
		if it.Kind == OutstandingCheck {
			bal, _ = bal.Subtract(it.Amount)
		} else {
			bal, _ = bal.Add(it.Amount)
		}
	}
	bal, _ = bal.Add(sumAdjustments(r.Currency, r.bankAdjustments))
	return bal
}

// AdjustedBookBalance is book + book adjustments
func (r *ReconciliationStatement) AdjustedBookBalance() valueobject.Money {
	bal, _ := r.BookBalance.Add(sumAdjustments(r.Currency, r.bookAdjustments))
	return bal
}

// CalculateVariance is adjusted bank minus adjusted book
func (r *ReconciliationStatement) CalculateVariance() valueobject.Money {
	v, _ := r.AdjustedBankBalance().Subtract(r.AdjustedBookBalance())
	return v
}

// IsBalanced reports whether the variance is within tolerance
func (r *ReconciliationStatement) IsBalanced() bool {
	tol := r.Tolerance
	if tol.IsZero() || tol.IsNegative() {
		tol = DefaultVarianceTolerance
	}
	return r.CalculateVariance().Amount().Abs().LessThan(tol)
}

// Complete closes an IN_PROGRESS statement whose variance is within tolerance
func (r *ReconciliationStatement) Complete(actorID uuid.UUID) error {
	if err := r.requireInProgress("complete"); err != nil {
		return err
	}
	if actorID == uuid.Nil {
		return shared.NewValidationError("INVALID_ACTOR", "completing user is required")
	}
	if !r.IsBalanced() {
		return shared.NewInvariantError(CodeImbalanced,
			fmt.Sprintf("variance %s must be explained before completing", r.CalculateVariance()))
	}
	r.complete(actorID)
	return nil
}

// MarkVariancePending parks an imbalanced statement with an explanation for review
func (r *ReconciliationStatement) MarkVariancePending(explanation string) error {
	if err := r.requireInProgress("mark variance pending on"); err != nil {
		return err
	}
	if strings.TrimSpace(explanation) == "" {
		return shared.NewValidationError("EXPLANATION_REQUIRED", "a variance explanation is required")
	}
	r.VarianceExplanation = strings.TrimSpace(explanation)
	r.status = ReconciliationVariancePending
	r.touch()
	return nil
}

// AcceptVariance completes a VARIANCE_PENDING statement keeping its explanation
func (r *ReconciliationStatement) AcceptVariance(actorID uuid.UUID) error {
	if r.status != ReconciliationVariancePending {
		return invalidTransition("reconciliation", r.status.String(), "accept variance on")
	}
	if actorID == uuid.Nil {
		return shared.NewValidationError("INVALID_ACTOR", "approving user is required")
	}
	r.complete(actorID)
	return nil
}

func (r *ReconciliationStatement) Reject(reason string) error {
	if r.status != ReconciliationInProgress && r.status != ReconciliationVariancePending {
		return invalidTransition("reconciliation", r.status.String(), "reject")
	}
	if strings.TrimSpace(reason) == "" {
		return shared.NewValidationError("INVALID_REASON", "rejection reason is required")
	}
	r.RejectionReason = reason
	r.status = ReconciliationRejected
	r.touch()
	return nil
}

// Reopen returns a VARIANCE_PENDING or REJECTED statement to IN_PROGRESS
func (r *ReconciliationStatement) Reopen() error {
	if r.status != ReconciliationVariancePending && r.status != ReconciliationRejected {
		return invalidTransition("reconciliation", r.status.String(), "reopen")
	}
	r.RejectionReason = ""
	r.status = ReconciliationInProgress
	r.touch()
	return nil
}

func (r *ReconciliationStatement) complete(actorID uuid.UUID) {
	now := time.Now()
	r.CompletedBy = &actorID
	r.CompletedAt = &now
	r.status = ReconciliationCompleted
	r.touch()
	r.AddDomainEvent(NewReconciliationCompletedEvent(r))
}

func (r *ReconciliationStatement) touch() {
	r.UpdatedAt = time.Now()
	r.IncrementVersion()
}

// ReconciliationState is the persisted form of a statement
type ReconciliationState struct {
	ID                  uuid.UUID
	BankAccountID       uuid.UUID
	Currency            valueobject.Currency
	StatementDate       time.Time
	PeriodStart         time.Time
	PeriodEnd           time.Time
	BankBalance         valueobject.Money
	BookBalance         valueobject.Money
	Tolerance           decimal.Decimal
	OutstandingItems    []OutstandingItem
	BankAdjustments     []Adjustment
	BookAdjustments     []Adjustment
	BankLines           []BankLine
	Status              ReconciliationStatus
	VarianceExplanation string
	RejectionReason     string
	CompletedBy         *uuid.UUID
	CompletedAt         *time.Time
	Version             int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (r *ReconciliationStatement) Snapshot() ReconciliationState {
	return ReconciliationState{
		ID:                  r.ID,
		BankAccountID:       r.BankAccountID,
		Currency:            r.Currency,
		StatementDate:       r.StatementDate,
		PeriodStart:         r.PeriodStart,
		PeriodEnd:           r.PeriodEnd,
		BankBalance:         r.BankBalance,
		BookBalance:         r.BookBalance,
		Tolerance:           r.Tolerance,
		OutstandingItems:    r.OutstandingItems(),
		BankAdjustments:     r.BankAdjustments(),
		BookAdjustments:     r.BookAdjustments(),
		BankLines:           r.BankLines(),
		Status:              r.status,
		VarianceExplanation: r.VarianceExplanation,
		RejectionReason:     r.RejectionReason,
		CompletedBy:         r.CompletedBy,
		CompletedAt:         r.CompletedAt,
		Version:             r.Version,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

func ReconstituteReconciliation(s ReconciliationState) *ReconciliationStatement {
	r := &ReconciliationStatement{
		BankAccountID:       s.BankAccountID,
		Currency:            s.Currency,
		StatementDate:       s.StatementDate,
		PeriodStart:         s.PeriodStart,
		PeriodEnd:           s.PeriodEnd,
		BankBalance:         s.BankBalance,
		BookBalance:         s.BookBalance,
		Tolerance:           s.Tolerance,
		VarianceExplanation: s.VarianceExplanation,
		RejectionReason:     s.RejectionReason,
		CompletedBy:         s.CompletedBy,
		CompletedAt:         s.CompletedAt,
		outstanding:         append([]OutstandingItem(nil), s.OutstandingItems...),
		bankAdjustments:     append([]Adjustment(nil), s.BankAdjustments...),
		bookAdjustments:     append([]Adjustment(nil), s.BookAdjustments...),
		bankLines:           append([]BankLine(nil), s.BankLines...),
		status:              s.Status,
	}
	r.ID = s.ID
	r.CreatedAt = s.CreatedAt
	r.UpdatedAt = s.UpdatedAt
	r.RestoreVersion(s.Version)
	return r
}
