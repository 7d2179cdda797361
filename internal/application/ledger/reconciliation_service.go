package ledger

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	csvimport "github.com/erp/ledger/internal/infrastructure/import"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StartReconciliationCommand opens a statement for a bank account. Without BookBalance
// the book side is the account's balance folded from lines posted up to PeriodEnd.
type StartReconciliationCommand struct {
	BankAccountID uuid.UUID        `json:"bank_account_id"`
	StatementDate time.Time        `json:"statement_date"`
	PeriodStart   time.Time        `json:"period_start"`
	PeriodEnd     time.Time        `json:"period_end"`
	BankBalance   decimal.Decimal  `json:"bank_balance"`
	BookBalance   *decimal.Decimal `json:"book_balance,omitempty"`
}

// BankLineInput is one bank statement transaction; withdrawals are negative
type BankLineInput struct {
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"amount"`
	Date      time.Time       `json:"date"`
}

// OutstandingItemInput records a book item the bank has not seen yet
type OutstandingItemInput struct {
	Kind           string          `json:"kind"`
	Reference      string          `json:"reference"`
	Amount         decimal.Decimal `json:"amount"`
	Date           time.Time       `json:"date"`
	JournalEntryID *uuid.UUID      `json:"journal_entry_id,omitempty"`
}

// Adjustment sides
const (
	AdjustBank = "BANK"
	AdjustBook = "BOOK"
)

// AdjustmentInput is a signed correction to one side of the statement
type AdjustmentInput struct {
	Side        string          `json:"side"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// ReconciliationQuery narrows ListReconciliations
type ReconciliationQuery struct {
	shared.Filter
	BankAccountID *uuid.UUID
	Status        string
}

// ReconciliationService reconciles bank statements with the books
type ReconciliationService struct {
	statements ledger.ReconciliationRepository
	entries    ledger.JournalEntryRepository
	accounts   ledger.AccountRepository
	payments   ledger.PaymentRepository
	txm        shared.TransactionManager
	events     shared.OutboxEventSaver
	matcher    ledger.Matcher
	tolerance  decimal.Decimal
	opts       serviceOptions
}

func NewReconciliationService(
	statements ledger.ReconciliationRepository,
	entries ledger.JournalEntryRepository,
	accounts ledger.AccountRepository,
	payments ledger.PaymentRepository,
	txm shared.TransactionManager,
	events shared.OutboxEventSaver,
	tolerance decimal.Decimal,
	matchWindowDays int,
	opts ...Option,
) *ReconciliationService {
	if !tolerance.IsPositive() {
		tolerance = ledger.DefaultVarianceTolerance
	}
	return &ReconciliationService{
		statements: statements,
		entries:    entries,
		accounts:   accounts,
		payments:   payments,
		txm:        txm,
		events:     events,
		matcher:    ledger.NewMatcher(matchWindowDays),
		tolerance:  tolerance,
		opts:       buildOptions(opts),
	}
}

func (s *ReconciliationService) StartReconciliation(ctx context.Context, cmd StartReconciliationCommand) (resp *ReconciliationResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", "start", telemetry.SpanAttrBankAccountID, cmd.BankAccountID.String())
	defer func() { telemetry.End(span, err) }()

	if cmd.StatementDate.IsZero() {
		cmd.StatementDate = cmd.PeriodEnd
	}
	var stmt *ledger.ReconciliationStatement
	err = s.txm.WithinTransaction(ctx, func(ctx context.Context) error {
		bank, err := s.accounts.FindByID(ctx, cmd.BankAccountID)
		if err != nil {
			return err
		}
		if bank.Type != ledger.AccountTypeAsset {
			return shared.NewValidationError("INVALID_BANK_ACCOUNT",
				fmt.Sprintf("account %s is not an asset account", bank.Code))
		}
		bankBalance, err := valueobject.NewMoney(cmd.BankBalance, bank.Currency)
		if err != nil {
			return err
		}
		var bookBalance valueobject.Money
		if cmd.BookBalance != nil {
			if bookBalance, err = valueobject.NewMoney(*cmd.BookBalance, bank.Currency); err != nil {
				return err
			}
		} else if bookBalance, err = s.bookBalance(ctx, bank, cmd.PeriodEnd); err != nil {
			return err
		}

		st, err := ledger.NewReconciliationStatement(bank.ID, bank.Currency,
			cmd.StatementDate, cmd.PeriodStart, cmd.PeriodEnd, bankBalance, bookBalance)
		if err != nil {
			return err
		}
		st.Tolerance = s.tolerance
		if err := s.statements.Save(ctx, st); err != nil {
			return err
		}
		stmt = st
		return saveEvents(ctx, s.events, st)
	})
	if err != nil {
		return nil, err
	}

	s.opts.logger.Info("Reconciliation started",
		zap.String("reconciliation_id", stmt.ID.String()),
		zap.String("bank_account_id", stmt.BankAccountID.String()),
		zap.String("bank_balance", stmt.BankBalance.String()),
		zap.String("book_balance", stmt.BookBalance.String()),
	)
	r := ToReconciliationResponse(stmt)
	return &r, nil
}

func (s *ReconciliationService) bookBalance(ctx context.Context, bank *ledger.Account, asOf time.Time) (valueobject.Money, error) {
	to := ledger.DateOf(asOf)
	posted, err := s.entries.FindPostedLines(ctx, ledger.PostedLineQuery{AccountID: &bank.ID, To: &to})
	if err != nil {
		return valueobject.Money{}, err
	}
	lines := make([]ledger.JournalLine, len(posted))
	for i, p := range posted {
		lines[i] = p.JournalLine
	}
	return ledger.ComputeBalance(bank, lines)
}

func (s *ReconciliationService) AddBankLines(ctx context.Context, id uuid.UUID, lines []BankLineInput) (*ReconciliationResponse, error) {
	return s.mutate(ctx, "add_bank_lines", id, func(_ context.Context, st *ledger.ReconciliationStatement) error {
		for i, l := range lines {
			amt, err := valueobject.NewMoney(l.Amount, st.Currency)
			if err != nil {
				return err
			}
			if err := st.AddBankLine(l.Reference, amt, l.Date); err != nil {
				return fmt.Errorf("bank line %d: %w", i+1, err)
			}
		}
		return nil
	})
}

// BankStatementImport reports a CSV statement upload. When any row is rejected
// nothing is added and Statement is nil.
type BankStatementImport struct {
	TotalRows int                     `json:"total_rows"`
	Imported  int                     `json:"imported"`
	Errors    []csvimport.RowError    `json:"errors,omitempty"`
	Truncated bool                    `json:"truncated,omitempty"`
	Statement *ReconciliationResponse `json:"statement,omitempty"`
}

// ImportBankStatement parses a bank CSV export and adds every row as a bank line
func (s *ReconciliationService) ImportBankStatement(ctx context.Context, id uuid.UUID, r io.Reader) (*BankStatementImport, error) {
	parsed, err := csvimport.ParseStatement(r, s.opts.statementFormat)
	if err != nil {
		return nil, shared.NewValidationError(ledger.CodeInvalidStatementFile, err.Error())
	}
	res := &BankStatementImport{
		TotalRows: parsed.TotalRows,
		Errors:    parsed.Errors.Errors(),
		Truncated: parsed.Errors.IsTruncated(),
	}
	if parsed.Errors.HasErrors() {
		s.opts.logger.Warn("Bank statement rejected",
			zap.String("reconciliation_id", id.String()),
			zap.Int("rows", parsed.TotalRows),
			zap.Int("errors", parsed.Errors.TotalCount()),
		)
		return res, nil
	}

	lines := make([]BankLineInput, len(parsed.Lines))
	for i, l := range parsed.Lines {
		lines[i] = BankLineInput{Reference: l.Reference, Amount: l.Amount, Date: l.Date}
	}
	st, err := s.AddBankLines(ctx, id, lines)
	if err != nil {
		return nil, err
	}
	res.Imported = len(lines)
	res.Statement = st
	return res, nil
}

func (s *ReconciliationService) AddOutstandingItem(ctx context.Context, id uuid.UUID, in OutstandingItemInput) (*ReconciliationResponse, error) {
	return s.mutate(ctx, "add_outstanding_item", id, func(_ context.Context, st *ledger.ReconciliationStatement) error {
		amt, err := valueobject.NewMoney(in.Amount, st.Currency)
		if err != nil {
			return err
		}
		switch ledger.OutstandingKind(in.Kind) {
		case ledger.OutstandingCheck:
			return st.AddOutstandingCheck(in.Reference, amt, in.Date, in.JournalEntryID)
		case ledger.OutstandingDeposit:
			return st.AddOutstandingDeposit(in.Reference, amt, in.Date, in.JournalEntryID)
		default:
			return shared.NewValidationError("INVALID_OUTSTANDING_KIND", fmt.Sprintf("unknown outstanding item kind %q", in.Kind))
		}
	})
}

func (s *ReconciliationService) AddAdjustment(ctx context.Context, id uuid.UUID, in AdjustmentInput) (*ReconciliationResponse, error) {
	return s.mutate(ctx, "add_adjustment", id, func(_ context.Context, st *ledger.ReconciliationStatement) error {
		amt, err := valueobject.NewMoney(in.Amount, st.Currency)
		if err != nil {
			return err
		}
		switch in.Side {
		case AdjustBank:
			return st.AddBankAdjustment(in.Description, amt)
		case AdjustBook:
			return st.AddBookAdjustment(in.Description, amt)
		default:
			return shared.NewValidationError("INVALID_ADJUSTMENT", fmt.Sprintf("unknown adjustment side %q", in.Side))
		}
	})
}

// AutoMatch pairs the statement's bank lines with lines posted to the bank account in
// the statement period. Book items left unmatched become outstanding checks or deposits.
// Entries already matched are not offered again; an outstanding entry that now
// matches a bank line is cleared.
func (s *ReconciliationService) AutoMatch(ctx context.Context, id uuid.UUID) (result *AutoMatchResult, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", "auto_match", telemetry.SpanAttrStatementID, id.String())
	defer func() { telemetry.End(span, err) }()

	var (
		stmt    *ledger.ReconciliationStatement
		match   ledger.MatchResult
		applied ledger.MatchesApplied
	)
	err = s.txm.WithinTransaction(ctx, func(ctx context.Context) error {
		st, err := s.statements.FindByID(ctx, id)
		if err != nil {
			return err
		}
		book, err := s.bookItems(ctx, st)
		if err != nil {
			return err
		}
		match = s.matcher.Match(st.BankLines(), book)
		if applied, err = st.ApplyMatches(match); err != nil {
			return err
		}
		if err := s.statements.Save(ctx, st); err != nil {
			return err
		}
		stmt = st
		return saveEvents(ctx, s.events, st)
	})
	if err != nil {
		return nil, err
	}

	result = &AutoMatchResult{
		Matched:       len(match.Matches),
		UnmatchedBank: len(match.UnmatchedBank),
		Outstanding:   applied.Added,
		Cleared:       applied.Cleared,
		Statement:     ToReconciliationResponse(stmt),
	}
	telemetry.SetAttributes(span, "matched", result.Matched, "unmatched_bank", result.UnmatchedBank)
	s.opts.metrics.RecordUnmatched(ctx, result.UnmatchedBank)
	s.opts.logger.Info("Bank lines matched",
		zap.String("reconciliation_id", stmt.ID.String()),
		zap.Int("matched", result.Matched),
		zap.Int("unmatched_bank", result.UnmatchedBank),
		zap.Int("outstanding", result.Outstanding),
		zap.Int("cleared", result.Cleared),
		zap.String("variance", stmt.CalculateVariance().String()),
	)
	return result, nil
}

// bookItems lists the bank account's posted lines in the period as seen by the bank.
// Lines already outstanding stay candidates so a later bank line can clear them.
func (s *ReconciliationService) bookItems(ctx context.Context, st *ledger.ReconciliationStatement) ([]ledger.BookItem, error) {
	from, to := st.PeriodStart, st.PeriodEnd
	posted, err := s.entries.FindPostedLines(ctx, ledger.PostedLineQuery{AccountID: &st.BankAccountID, From: &from, To: &to})
	if err != nil {
		return nil, err
	}
	skip := make(map[uuid.UUID]struct{})
	for _, id := range st.MatchedEntryIDs() {
		skip[id] = struct{}{}
	}

	items := make([]ledger.BookItem, 0, len(posted))
	for _, p := range posted {
		if _, ok := skip[p.EntryID]; ok {
			continue
		}
		amt := p.Amount()
		if p.Side() == ledger.SideCredit {
			amt = amt.Negate()
		}
		ref := p.Reference
		if ref == "" {
			ref = p.EntryNumber
		}
		items = append(items, ledger.BookItem{EntryID: p.EntryID, Reference: ref, Amount: amt, Date: p.Date})
	}
	return items, nil
}

// Complete closes a statement whose variance is within tolerance and marks the
// payments cleared by matched bank lines as reconciled
func (s *ReconciliationService) Complete(ctx context.Context, id, actorID uuid.UUID) (*ReconciliationResponse, error) {
	resp, err := s.mutate(ctx, "complete", id, func(ctx context.Context, st *ledger.ReconciliationStatement) error {
		if err := st.Complete(actorID); err != nil {
			return err
		}
		return s.reconcilePayments(ctx, st)
	})
	if err != nil {
		return nil, err
	}
	s.opts.metrics.RecordReconciliation(ctx, "completed")
	return resp, nil
}

func (s *ReconciliationService) MarkVariancePending(ctx context.Context, id uuid.UUID, explanation string) (*ReconciliationResponse, error) {
	resp, err := s.mutate(ctx, "mark_variance_pending", id, func(_ context.Context, st *ledger.ReconciliationStatement) error {
		return st.MarkVariancePending(explanation)
	})
	if err != nil {
		return nil, err
	}
	s.opts.metrics.RecordReconciliation(ctx, "variance_pending")
	return resp, nil
}

// AcceptVariance completes a statement parked with an explained variance
func (s *ReconciliationService) AcceptVariance(ctx context.Context, id, actorID uuid.UUID) (*ReconciliationResponse, error) {
	resp, err := s.mutate(ctx, "accept_variance", id, func(ctx context.Context, st *ledger.ReconciliationStatement) error {
		if err := st.AcceptVariance(actorID); err != nil {
			return err
		}
		return s.reconcilePayments(ctx, st)
	})
	if err != nil {
		return nil, err
	}
	s.opts.metrics.RecordReconciliation(ctx, "variance_accepted")
	return resp, nil
}

func (s *ReconciliationService) Reject(ctx context.Context, id uuid.UUID, reason string) (*ReconciliationResponse, error) {
	resp, err := s.mutate(ctx, "reject", id, func(_ context.Context, st *ledger.ReconciliationStatement) error {
		return st.Reject(reason)
	})
	if err != nil {
		return nil, err
	}
	s.opts.metrics.RecordReconciliation(ctx, "rejected")
	return resp, nil
}

func (s *ReconciliationService) Reopen(ctx context.Context, id uuid.UUID) (*ReconciliationResponse, error) {
	return s.mutate(ctx, "reopen", id, func(_ context.Context, st *ledger.ReconciliationStatement) error {
		return st.Reopen()
	})
}

func (s *ReconciliationService) reconcilePayments(ctx context.Context, st *ledger.ReconciliationStatement) error {
	ids := st.MatchedEntryIDs()
	if len(ids) == 0 || s.payments == nil {
		return nil
	}
	payments, err := s.payments.FindByJournalEntryIDs(ctx, ids)
	if err != nil {
		return err
	}
	at := s.opts.now()
	changed := make([]shared.AggregateRoot, 0, len(payments))
	for _, p := range payments {
		if p.Status() != ledger.PaymentStatusIssued || p.IsReconciled() {
			continue
		}
		if err := p.MarkReconciled(at); err != nil {
			return err
		}
		if err := s.payments.Save(ctx, p); err != nil {
			return err
		}
		changed = append(changed, p)
	}
	s.opts.logger.Debug("Payments reconciled",
		zap.String("reconciliation_id", st.ID.String()),
		zap.Int("payments", len(changed)),
	)
	return saveEvents(ctx, s.events, changed...)
}

func (s *ReconciliationService) mutate(ctx context.Context, method string, id uuid.UUID, fn func(context.Context, *ledger.ReconciliationStatement) error) (resp *ReconciliationResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", method, telemetry.SpanAttrStatementID, id.String())
	defer func() { telemetry.End(span, err) }()

	var stmt *ledger.ReconciliationStatement
	err = s.txm.WithinTransaction(ctx, func(ctx context.Context) error {
		st, err := s.statements.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(ctx, st); err != nil {
			return err
		}
		if err := s.statements.Save(ctx, st); err != nil {
			return err
		}
		stmt = st
		return saveEvents(ctx, s.events, st)
	})
	if err != nil {
		return nil, err
	}

	s.opts.logger.Info("Reconciliation changed",
		zap.String("reconciliation_id", stmt.ID.String()),
		zap.String("operation", method),
		zap.String("status", stmt.Status().String()),
		zap.String("variance", stmt.CalculateVariance().String()),
	)
	r := ToReconciliationResponse(stmt)
	return &r, nil
}

func (s *ReconciliationService) GetReconciliation(ctx context.Context, id uuid.UUID) (*ReconciliationResponse, error) {
	st, err := s.statements.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r := ToReconciliationResponse(st)
	return &r, nil
}

func (s *ReconciliationService) ListReconciliations(ctx context.Context, q ReconciliationQuery) (*shared.Paginated[ReconciliationResponse], error) {
	filter := ledger.ReconciliationFilter{Filter: q.Filter, BankAccountID: q.BankAccountID}
	if q.Status != "" {
		st := ledger.ReconciliationStatus(q.Status)
		filter.Status = &st
	}
	items, total, err := s.statements.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	page := mapPage(items, total, q.Filter, ToReconciliationResponse)
	return &page, nil
}
