package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReportStore keeps exported report files
type ReportStore interface {
	Put(ctx context.Context, key, contentType string, body []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	// URL returns a link to download key that stays valid for expires
	URL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// DefaultReportLinkTTL is how long a download link returned by an export stays valid
const DefaultReportLinkTTL = 15 * time.Minute

// ReportExport describes a stored report
type ReportExport struct {
	Key         string    `json:"key"`
	URL         string    `json:"url,omitempty"`
	Size        int       `json:"size"`
	GeneratedAt time.Time `json:"generated_at"`
}

// AccountLedgerLine is one posted line with the running balance after it
type AccountLedgerLine struct {
	Date        time.Time          `json:"date"`
	EntryID     uuid.UUID          `json:"entry_id"`
	EntryNumber string             `json:"entry_number"`
	Reference   string             `json:"reference,omitempty"`
	Memo        string             `json:"memo,omitempty"`
	Debit       *valueobject.Money `json:"debit,omitempty"`
	Credit      *valueobject.Money `json:"credit,omitempty"`
	Balance     valueobject.Money  `json:"balance"`
}

// AccountLedger is the posting history of one account over a period
type AccountLedger struct {
	Account        AccountResponse     `json:"account"`
	From           *time.Time          `json:"from,omitempty"`
	To             *time.Time          `json:"to,omitempty"`
	OpeningBalance valueobject.Money   `json:"opening_balance"`
	ClosingBalance valueobject.Money   `json:"closing_balance"`
	Lines          []AccountLedgerLine `json:"lines"`
}

// ReportService builds ledger reports and archives them in a ReportStore
type ReportService struct {
	journal         *JournalService
	accounts        ledger.AccountRepository
	entries         ledger.JournalEntryRepository
	reconciliations ledger.ReconciliationRepository
	store           ReportStore
	linkTTL         time.Duration
	opts            serviceOptions
}

func NewReportService(
	journal *JournalService,
	accounts ledger.AccountRepository,
	entries ledger.JournalEntryRepository,
	reconciliations ledger.ReconciliationRepository,
	store ReportStore,
	opts ...Option,
) *ReportService {
	return &ReportService{
		journal:         journal,
		accounts:        accounts,
		entries:         entries,
		reconciliations: reconciliations,
		store:           store,
		linkTTL:         DefaultReportLinkTTL,
		opts:            buildOptions(opts),
	}
}

// AccountLedger lists the lines posted to an account between from and to, either
// bound optional, with the balance carried forward from before from
func (s *ReportService) AccountLedger(ctx context.Context, accountID uuid.UUID, from, to *time.Time) (*AccountLedger, error) {
	acct, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	q := ledger.PostedLineQuery{AccountID: &accountID}
	if to != nil {
		d := ledger.DateOf(*to)
		q.To = &d
	}
	posted, err := s.entries.FindPostedLines(ctx, q)
	if err != nil {
		return nil, err
	}

	report := &AccountLedger{Account: ToAccountResponse(acct), From: from, To: to}
	balance := valueobject.Zero(acct.Currency)
	var start time.Time
	if from != nil {
		start = ledger.DateOf(*from)
	}
	for _, p := range posted {
		delta := acct.SignedAmount(p.Side(), p.Amount())
		if balance, err = balance.Add(delta); err != nil {
			return nil, err
		}
		if from != nil && p.Date.Before(start) {
			report.OpeningBalance = balance
			continue
		}
		report.Lines = append(report.Lines, AccountLedgerLine{
			Date:        p.Date,
			EntryID:     p.EntryID,
			EntryNumber: p.EntryNumber,
			Reference:   p.Reference,
			Memo:        p.Memo,
			Debit:       p.Debit,
			Credit:      p.Credit,
			Balance:     balance,
		})
	}
	if report.OpeningBalance.Currency() == "" {
		report.OpeningBalance = valueobject.Zero(acct.Currency)
	}
	report.ClosingBalance = balance
	return report, nil
}

// ExportTrialBalance stores the trial balance as of asOf and returns where it went
func (s *ReportService) ExportTrialBalance(ctx context.Context, asOf time.Time) (export *ReportExport, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "report", "export_trial_balance")
	defer func() { telemetry.End(span, err) }()

	tb, err := s.journal.TrialBalance(ctx, asOf)
	if err != nil {
		return nil, err
	}
	return s.export(ctx, path.Join("trial-balance", tb.AsOf.Format("2006-01-02")), tb)
}

// ExportReconciliation stores a statement with its computed balances
func (s *ReportService) ExportReconciliation(ctx context.Context, id uuid.UUID) (export *ReportExport, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "report", "export_reconciliation", telemetry.SpanAttrStatementID, id.String())
	defer func() { telemetry.End(span, err) }()

	st, err := s.reconciliations.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.export(ctx, path.Join("reconciliation", st.BankAccountID.String(), st.StatementDate.Format("2006-01-02")),
		ToReconciliationResponse(st))
}

// ExportAccountLedger stores the account ledger for the period
func (s *ReportService) ExportAccountLedger(ctx context.Context, accountID uuid.UUID, from, to *time.Time) (export *ReportExport, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "report", "export_account_ledger", telemetry.SpanAttrAccountID, accountID.String())
	defer func() { telemetry.End(span, err) }()

	report, err := s.AccountLedger(ctx, accountID, from, to)
	if err != nil {
		return nil, err
	}
	return s.export(ctx, path.Join("account-ledger", report.Account.Code), report)
}

// GetReport reads back a stored report
func (s *ReportService) GetReport(ctx context.Context, key string) ([]byte, error) {
	if s.store == nil {
		return nil, fmt.Errorf("report storage is not configured")
	}
	return s.store.Get(ctx, key)
}

func (s *ReportService) export(ctx context.Context, prefix string, v any) (*ReportExport, error) {
	if s.store == nil {
		return nil, fmt.Errorf("report storage is not configured")
	}
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	now := s.opts.now().UTC()
	key := fmt.Sprintf("%s/%s.json", prefix, now.Format("20060102T150405Z"))
	if err := s.store.Put(ctx, key, "application/json", body); err != nil {
		return nil, fmt.Errorf("store report %s: %w", key, err)
	}
	export := &ReportExport{Key: key, Size: len(body), GeneratedAt: now}
	if url, err := s.store.URL(ctx, key, s.linkTTL); err == nil {
		export.URL = url
	} else {
		s.opts.logger.Warn("Report link unavailable", zap.String("key", key), zap.Error(err))
	}
	s.opts.logger.Info("Report exported", zap.String("key", key), zap.Int("bytes", len(body)))
	return export, nil
}
