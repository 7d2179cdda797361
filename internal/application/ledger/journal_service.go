package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// JournalLineInput is one line of a new entry. Exactly one of Debit or Credit is set.
// Currency defaults to the account currency.
type JournalLineInput struct {
	AccountID uuid.UUID        `json:"account_id"`
	Debit     *decimal.Decimal `json:"debit,omitempty"`
	Credit    *decimal.Decimal `json:"credit,omitempty"`
	Currency  string           `json:"currency,omitempty"`
	Memo      string           `json:"memo,omitempty"`
}

// CreateJournalEntryCommand creates a DRAFT entry. A number is generated when empty.
type CreateJournalEntryCommand struct {
	EntryNumber string             `json:"entry_number,omitempty"`
	Date        time.Time          `json:"date"`
	Description string             `json:"description"`
	Source      string             `json:"source,omitempty"`
	Reference   string             `json:"reference,omitempty"`
	Lines       []JournalLineInput `json:"lines"`
}

// ReverseEntryCommand reverses a posted entry; Date defaults to the original's date
type ReverseEntryCommand struct {
	EntryID uuid.UUID `json:"-"`
	Date    time.Time `json:"date"`
	ActorID uuid.UUID `json:"-"`
}

// JournalEntryQuery narrows ListEntries
type JournalEntryQuery struct {
	shared.Filter
	Status    string
	Source    string
	AccountID *uuid.UUID
	FromDate  *time.Time
	ToDate    *time.Time
}

// BatchPostingResponse reports a batch posted as one unit
type BatchPostingResponse struct {
	Entries  []JournalEntryResponse `json:"entries"`
	Accounts []AccountResponse      `json:"accounts"`
}

// JournalService records and posts journal entries and answers balance queries
type JournalService struct {
	entries  ledger.JournalEntryRepository
	accounts ledger.AccountRepository
	txm      shared.TransactionManager
	poster   *poster
	opts     serviceOptions
}

func NewJournalService(
	entries ledger.JournalEntryRepository,
	accounts ledger.AccountRepository,
	txm shared.TransactionManager,
	events shared.OutboxEventSaver,
	engine *ledger.PostingEngine,
	opts ...Option,
) *JournalService {
	return &JournalService{
		entries:  entries,
		accounts: accounts,
		txm:      txm,
		poster:   newPoster(entries, accounts, engine, events),
		opts:     buildOptions(opts),
	}
}

// CreateDraft stores a DRAFT entry. Balance is checked only when it is posted.
func (s *JournalService) CreateDraft(ctx context.Context, cmd CreateJournalEntryCommand) (resp *JournalEntryResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "journal", "create_draft", telemetry.SpanAttrLineCount, len(cmd.Lines))
	defer func() { telemetry.End(span, err) }()

	if cmd.Date.IsZero() {
		cmd.Date = s.opts.now()
	}
	number := cmd.EntryNumber
	if number == "" {
		number = nextNumber("JE", cmd.Date)
	}

	var entry *ledger.JournalEntry
	err = s.txm.WithinTransaction(ctx, func(ctx context.Context) error {
		exists, err := s.entries.ExistsByNumber(ctx, number)
		if err != nil {
			return err
		}
		if exists {
			return &shared.DomainError{
				Code:    shared.ErrAlreadyExists.Code,
				Message: fmt.Sprintf("journal entry %s already exists", number),
				Kind:    shared.KindConflict,
			}
		}

		b := ledger.NewJournalEntryBuilder(number, cmd.Date).
			Description(cmd.Description).
			Reference(cmd.Reference)
		if cmd.Source != "" {
			b.Source(ledger.EntrySource(cmd.Source))
		}
		if err := s.addLines(ctx, b, cmd.Lines); err != nil {
			return err
		}
		e, err := b.Build()
		if err != nil {
			return err
		}
		if err := s.entries.Save(ctx, e); err != nil {
			return err
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.opts.logger.Info("Journal entry drafted",
		zap.String("entry_id", entry.ID.String()),
		zap.String("entry_number", entry.EntryNumber),
		zap.Int("lines", len(entry.Lines())),
	)
	r := ToJournalEntryResponse(entry)
	return &r, nil
}

// addLines resolves line currencies from their accounts and feeds them to b
func (s *JournalService) addLines(ctx context.Context, b *ledger.JournalEntryBuilder, lines []JournalLineInput) error {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.AccountID)
	}
	accounts, err := s.accounts.FindByIDs(ctx, ids)
	if err != nil {
		return err
	}
	for i, l := range lines {
		acct, ok := accounts[l.AccountID]
		if !ok {
			return shared.NewNotFoundError("account", l.AccountID)
		}
		if (l.Debit == nil) == (l.Credit == nil) {
			return shared.NewValidationError(ledger.CodeInvalidLine,
				fmt.Sprintf("line %d must have exactly one of debit or credit", i+1))
		}
		cur := valueobject.Currency(l.Currency)
		if cur == "" {
			cur = acct.Currency
		}
		if l.Debit != nil {
			amt, err := valueobject.NewMoney(*l.Debit, cur)
			if err != nil {
				return err
			}
			b.Debit(l.AccountID, amt, l.Memo)
		} else {
			amt, err := valueobject.NewMoney(*l.Credit, cur)
			if err != nil {
				return err
			}
			b.Credit(l.AccountID, amt, l.Memo)
		}
	}
	return nil
}

// AddLines appends lines to a DRAFT entry
func (s *JournalService) AddLines(ctx context.Context, id uuid.UUID, lines []JournalLineInput) (*JournalEntryResponse, error) {
	return s.editDraft(ctx, "add_lines", id, func(ctx context.Context, e *ledger.JournalEntry) error {
		b := ledger.NewJournalEntryBuilder(e.EntryNumber, e.Date)
		if err := s.addLines(ctx, b, lines); err != nil {
			return err
		}
		staged, err := b.Build()
		if err != nil {
			return err
		}
		for _, l := range staged.Lines() {
			if err := e.AddLine(l); err != nil {
				return err
			}
		}
		return nil
	})
}

// RemoveLine drops a line from a DRAFT entry by its line number
func (s *JournalService) RemoveLine(ctx context.Context, id uuid.UUID, lineNo int) (*JournalEntryResponse, error) {
	return s.editDraft(ctx, "remove_line", id, func(_ context.Context, e *ledger.JournalEntry) error {
		return e.RemoveLine(lineNo)
	})
}

func (s *JournalService) editDraft(ctx context.Context, method string, id uuid.UUID, fn func(context.Context, *ledger.JournalEntry) error) (resp *JournalEntryResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "journal", method, telemetry.SpanAttrEntryID, id.String())
	defer func() { telemetry.End(span, err) }()

	var entry *ledger.JournalEntry
	err = s.txm.WithinTransaction(ctx, func(ctx context.Context) error {
		e, err := s.entries.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(ctx, e); err != nil {
			return err
		}
		if err := s.entries.Save(ctx, e); err != nil {
			return err
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	r := ToJournalEntryResponse(entry)
	return &r, nil
}

// PostEntry posts a DRAFT entry and updates every account it touches atomically.
// Lost optimistic lock races are retried against freshly loaded state.
func (s *JournalService) PostEntry(ctx context.Context, id, actorID uuid.UUID) (resp *PostingResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "journal", "post", telemetry.SpanAttrEntryID, id.String())
	defer func() { telemetry.End(span, err) }()

	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	start := time.Now()
	var res *ledger.PostingResult
	err = retryOnConflict(ctx, s.opts, "post_entry", func(ctx context.Context) error {
		return s.txm.WithinTransaction(ctx, func(ctx context.Context) error {
			entry, err := s.entries.FindByID(ctx, id)
			if err != nil {
				return err
			}
			res, err = s.poster.post(ctx, entry, actorID)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	s.opts.metrics.RecordPosting(ctx, string(res.Entry.Source), debitTotals(res.Entry), time.Since(start))
	s.opts.logger.Info("Journal entry posted",
		zap.String("entry_id", res.Entry.ID.String()),
		zap.String("entry_number", res.Entry.EntryNumber),
		zap.Int("accounts", len(res.Accounts)),
	)
	return &PostingResponse{
		Entry:    ToJournalEntryResponse(res.Entry),
		Accounts: toAccountResponses(res.Accounts),
	}, nil
}

// PostBatch posts every entry or none. Entries are posted in the given order against
// one shared set of accounts, so a batch may hit the same account many times.
func (s *JournalService) PostBatch(ctx context.Context, ids []uuid.UUID, actorID uuid.UUID) (resp *BatchPostingResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "journal", "post_batch", telemetry.SpanAttrBatchSize, len(ids))
	defer func() { telemetry.End(span, err) }()

	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, shared.NewValidationError("EMPTY_BATCH", "batch contains no entries")
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return nil, shared.NewValidationError("DUPLICATE_ENTRY", fmt.Sprintf("entry %s appears twice in the batch", id))
		}
		seen[id] = struct{}{}
	}

	start := time.Now()
	var posted []*ledger.JournalEntry
	var changed []*ledger.Account
	err = retryOnConflict(ctx, s.opts, "post_batch", func(ctx context.Context) error {
		return s.txm.WithinTransaction(ctx, func(ctx context.Context) error {
			entries := make([]*ledger.JournalEntry, 0, len(ids))
			var lines []ledger.JournalLine
			for _, id := range ids {
				e, err := s.entries.FindByID(ctx, id)
				if err != nil {
					return err
				}
				entries = append(entries, e)
				lines = append(lines, e.Lines()...)
			}
			accounts, err := s.accounts.FindByIDs(ctx, accountIDs(lines))
			if err != nil {
				return err
			}

			touched := make(map[uuid.UUID]*ledger.Account)
			for _, e := range entries {
				res, err := s.poster.engine.Post(e, accounts, actorID)
				if err != nil {
					return fmt.Errorf("entry %s: %w", e.EntryNumber, err)
				}
				for _, a := range res.Accounts {
					touched[a.ID] = a
				}
			}
			changed = make([]*ledger.Account, 0, len(touched))
			for _, id := range accountIDs(lines) {
				if a, ok := touched[id]; ok {
					changed = append(changed, a)
				}
			}
			if err := s.poster.persist(ctx, entries, changed); err != nil {
				return err
			}
			posted = entries
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	took := time.Since(start)
	resp = &BatchPostingResponse{Accounts: toAccountResponses(changed)}
	for _, e := range posted {
		s.opts.metrics.RecordPosting(ctx, string(e.Source), debitTotals(e), took)
		resp.Entries = append(resp.Entries, ToJournalEntryResponse(e))
	}
	s.opts.logger.Info("Journal batch posted",
		zap.Int("entries", len(posted)),
		zap.Int("accounts", len(changed)),
	)
	return resp, nil
}

// ReverseEntry posts a mirrored entry offsetting a POSTED one and marks the original REVERSED
func (s *JournalService) ReverseEntry(ctx context.Context, cmd ReverseEntryCommand) (resp *ReversalResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "journal", "reverse", telemetry.SpanAttrEntryID, cmd.EntryID.String())
	defer func() { telemetry.End(span, err) }()

	if err := requireActor(cmd.ActorID); err != nil {
		return nil, err
	}
	var res *ledger.ReversalResult
	err = retryOnConflict(ctx, s.opts, "reverse_entry", func(ctx context.Context) error {
		return s.txm.WithinTransaction(ctx, func(ctx context.Context) error {
			original, err := s.entries.FindByID(ctx, cmd.EntryID)
			if err != nil {
				return err
			}
			date := cmd.Date
			if date.IsZero() {
				date = original.Date
			}
			res, err = s.poster.reverse(ctx, original, nextNumber("REV", date), date, cmd.ActorID)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	s.opts.logger.Info("Journal entry reversed",
		zap.String("entry_id", res.Original.ID.String()),
		zap.String("reversal_id", res.Reversal.ID.String()),
		zap.String("reversal_number", res.Reversal.EntryNumber),
	)
	return &ReversalResponse{
		Original: ToJournalEntryResponse(res.Original),
		Reversal: ToJournalEntryResponse(res.Reversal),
		Accounts: toAccountResponses(res.Accounts),
	}, nil
}

func (s *JournalService) GetEntry(ctx context.Context, id uuid.UUID) (*JournalEntryResponse, error) {
	e, err := s.entries.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r := ToJournalEntryResponse(e)
	return &r, nil
}

func (s *JournalService) GetEntryByNumber(ctx context.Context, number string) (*JournalEntryResponse, error) {
	e, err := s.entries.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	r := ToJournalEntryResponse(e)
	return &r, nil
}

func (s *JournalService) ListEntries(ctx context.Context, q JournalEntryQuery) (*shared.Paginated[JournalEntryResponse], error) {
	filter := ledger.JournalEntryFilter{
		Filter:    q.Filter,
		AccountID: q.AccountID,
		FromDate:  q.FromDate,
		ToDate:    q.ToDate,
	}
	if q.Status != "" {
		st := ledger.EntryStatus(q.Status)
		if !st.IsValid() {
			return nil, shared.NewValidationError("INVALID_STATUS", fmt.Sprintf("unknown entry status %q", q.Status))
		}
		filter.Status = &st
	}
	if q.Source != "" {
		src := ledger.EntrySource(q.Source)
		if !src.IsValid() {
			return nil, shared.NewValidationError("INVALID_ENTRY_SOURCE", fmt.Sprintf("unknown entry source %q", q.Source))
		}
		filter.Source = &src
	}
	items, total, err := s.entries.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	page := mapPage(items, total, q.Filter, ToJournalEntryResponse)
	return &page, nil
}

// TrialBalance lists account balances as of asOf. A zero asOf uses the stored
// balances; otherwise balances are folded from lines posted on or before asOf.
func (s *JournalService) TrialBalance(ctx context.Context, asOf time.Time) (tb *ledger.TrialBalance, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "journal", "trial_balance")
	defer func() { telemetry.End(span, err) }()

	accounts, err := s.accounts.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	if asOf.IsZero() {
		return ledger.BuildTrialBalance(s.opts.now(), accounts, nil), nil
	}

	to := ledger.DateOf(asOf)
	posted, err := s.entries.FindPostedLines(ctx, ledger.PostedLineQuery{To: &to})
	if err != nil {
		return nil, err
	}
	byAccount := make(map[uuid.UUID][]ledger.JournalLine)
	for _, l := range posted {
		byAccount[l.AccountID] = append(byAccount[l.AccountID], l.JournalLine)
	}
	balances := make(map[uuid.UUID]valueobject.Money, len(accounts))
	for _, a := range accounts {
		bal, err := ledger.ComputeBalance(a, byAccount[a.ID])
		if err != nil {
			return nil, err
		}
		balances[a.ID] = bal
	}
	tb = ledger.BuildTrialBalance(to, accounts, balances)
	telemetry.SetAttributes(span, "rows", len(tb.Rows), "status", string(tb.Status))
	return tb, nil
}

// VerifyAccountBalance folds every posted line of the account and compares the
// result with the stored balance
func (s *JournalService) VerifyAccountBalance(ctx context.Context, id uuid.UUID) (*BalanceVerification, error) {
	acct, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	posted, err := s.entries.FindPostedLines(ctx, ledger.PostedLineQuery{AccountID: &id})
	if err != nil {
		return nil, err
	}
	return verify(acct, posted)
}

// VerifyAllBalances checks every account and returns only those that disagree
func (s *JournalService) VerifyAllBalances(ctx context.Context) ([]BalanceVerification, error) {
	accounts, err := s.accounts.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	posted, err := s.entries.FindPostedLines(ctx, ledger.PostedLineQuery{})
	if err != nil {
		return nil, err
	}
	byAccount := make(map[uuid.UUID][]ledger.PostedLine)
	for _, l := range posted {
		byAccount[l.AccountID] = append(byAccount[l.AccountID], l)
	}
	var out []BalanceVerification
	for _, a := range accounts {
		v, err := verify(a, byAccount[a.ID])
		if err != nil {
			return nil, err
		}
		if !v.Balanced {
			s.opts.logger.Warn("Account balance disagrees with its postings",
				zap.String("account_id", a.ID.String()),
				zap.String("code", a.Code),
				zap.String("difference", v.Discrepancy.Difference.String()),
			)
			out = append(out, *v)
		}
	}
	return out, nil
}

func verify(acct *ledger.Account, posted []ledger.PostedLine) (*BalanceVerification, error) {
	lines := make([]ledger.JournalLine, len(posted))
	for i, p := range posted {
		lines[i] = p.JournalLine
	}
	d, err := ledger.VerifyBalance(acct, lines)
	if err != nil {
		return nil, err
	}
	return &BalanceVerification{AccountID: acct.ID, Code: acct.Code, Balanced: d == nil, Discrepancy: d}, nil
}
