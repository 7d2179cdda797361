package testutil

import (
	"context"
	"strings"
	"testing"
	"time"

	ledgerapp "github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/event"
	"github.com/erp/ledger/internal/infrastructure/persistence"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/erp/ledger/internal/infrastructure/storage"
	infrastrategy "github.com/erp/ledger/internal/infrastructure/strategy"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ChartYAML is the chart every Stack starts from
const ChartYAML = `
currency: USD
accounts:
  - code: "1000"
    name: Cash and banks
    type: ASSET
    subtype: CASH
    children:
      - {code: "1010", name: Operating account, subtype: BANK_CHECKING}
  - {code: "1200", name: Accounts receivable, type: ASSET, subtype: ACCOUNTS_RECEIVABLE}
  - {code: "2000", name: Accounts payable, type: LIABILITY, subtype: ACCOUNTS_PAYABLE}
  - {code: "3000", name: Owner contributions, type: EQUITY, subtype: OWNER_CONTRIBUTIONS}
  - {code: "4000", name: Sales, type: REVENUE, subtype: SALES_REVENUE}
  - {code: "4900", name: Sales discounts, type: REVENUE, subtype: SALES_DISCOUNTS}
  - {code: "4910", name: Purchase discounts, type: REVENUE, subtype: PURCHASE_DISCOUNTS}
  - {code: "6000", name: Rent, type: EXPENSE, subtype: RENT_EXPENSE}
`

// Stack is every ledger service wired over one database, the way the server wires them
type Stack struct {
	t *testing.T

	DB         *gorm.DB
	OutboxRepo *persistence.GormOutboxRepository
	Serializer *event.Serializer
	Store      *storage.MemoryReportStore

	Accounts        *ledgerapp.AccountService
	Journal         *ledgerapp.JournalService
	Documents       *ledgerapp.DocumentService
	Payments        *ledgerapp.PaymentService
	Reconciliations *ledgerapp.ReconciliationService
	Reports         *ledgerapp.ReportService
}

// NewSQLiteDB opens a migrated in-memory sqlite database
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// NewStack wires the services over db and imports ChartYAML
func NewStack(t *testing.T, db *gorm.DB, opts ...ledgerapp.Option) *Stack {
	t.Helper()
	log := zap.NewNop()

	accountRepo := persistence.NewGormAccountRepository(db)
	entryRepo := persistence.NewGormJournalEntryRepository(db)
	documentRepo := persistence.NewGormDocumentRepository(db, nil)
	paymentRepo := persistence.NewGormPaymentRepository(db)
	statementRepo := persistence.NewGormReconciliationRepository(db)
	txm := persistence.NewGormTransactionManager(db)

	s := &Stack{
		t:          t,
		DB:         db,
		OutboxRepo: persistence.NewGormOutboxRepository(db),
		Serializer: event.NewLedgerSerializer(log),
		Store:      storage.NewMemoryReportStore(),
	}
	outbox := event.NewOutboxPublisher(s.OutboxRepo, s.Serializer)

	registry, err := infrastrategy.NewRegistryWithDefaults("")
	require.NoError(t, err)
	profile := ledgerapp.PostingProfile{
		AccountsPayable:    "2000",
		AccountsReceivable: "1200",
		PurchaseDiscount:   "4910",
		SalesDiscount:      "4900",
	}
	opts = append([]ledgerapp.Option{ledgerapp.WithLogger(log)}, opts...)

	s.Accounts = ledgerapp.NewAccountService(accountRepo, txm, outbox, "USD", opts...)
	s.Journal = ledgerapp.NewJournalService(entryRepo, accountRepo, txm, outbox, ledger.NewPostingEngine(), opts...)
	s.Documents = ledgerapp.NewDocumentService(documentRepo, entryRepo, accountRepo, txm, outbox, registry,
		ledgerapp.DocumentServiceConfig{DefaultCurrency: "USD", PostDocumentPayments: true, Profile: profile}, opts...)
	s.Payments = ledgerapp.NewPaymentService(paymentRepo, documentRepo, entryRepo, accountRepo, txm, outbox,
		registry, profile, opts...)
	s.Reconciliations = ledgerapp.NewReconciliationService(statementRepo, entryRepo, accountRepo, paymentRepo, txm, outbox,
		decimal.Zero, ledger.DefaultMatchWindowDays, opts...)
	s.Reports = ledgerapp.NewReportService(s.Journal, accountRepo, entryRepo, statementRepo, s.Store, opts...)

	seed, err := ledgerapp.ParseChartSeed(strings.NewReader(ChartYAML))
	require.NoError(t, err)
	_, err = s.Accounts.ImportChart(context.Background(), seed)
	require.NoError(t, err)
	return s
}

// AccountID resolves an account code
func (s *Stack) AccountID(code string) uuid.UUID {
	s.t.Helper()
	a, err := s.Accounts.GetByCode(context.Background(), code)
	require.NoError(s.t, err)
	return a.ID
}

// Balance returns the stored balance of the account with code
func (s *Stack) Balance(code string) decimal.Decimal {
	s.t.Helper()
	a, err := s.Accounts.GetByCode(context.Background(), code)
	require.NoError(s.t, err)
	return a.Balance.Amount()
}

// DraftEntry drafts a two-line entry moving value from credit to debit
func (s *Stack) DraftEntry(ctx context.Context, date time.Time, reference string, debit, credit uuid.UUID, value string) (*ledgerapp.JournalEntryResponse, error) {
	amount := decimal.RequireFromString(value)
	return s.Journal.CreateDraft(ctx, ledgerapp.CreateJournalEntryCommand{
		Date:        date,
		Description: "entry " + reference,
		Reference:   reference,
		Lines: []ledgerapp.JournalLineInput{
			{AccountID: debit, Debit: &amount},
			{AccountID: credit, Credit: &amount},
		},
	})
}

// PostEntry drafts and posts a two-line entry, failing the test on error
func (s *Stack) PostEntry(date time.Time, reference string, debit, credit uuid.UUID, value string) *ledgerapp.JournalEntryResponse {
	s.t.Helper()
	ctx := context.Background()
	draft, err := s.DraftEntry(ctx, date, reference, debit, credit, value)
	require.NoError(s.t, err)
	res, err := s.Journal.PostEntry(ctx, draft.ID, TestActorID)
	require.NoError(s.t, err)
	return &res.Entry
}

// ApprovedDocument creates, submits and approves a one-line bill or invoice
func (s *Stack) ApprovedDocument(kind, number string, counterparty uuid.UUID, total string, due time.Time) uuid.UUID {
	s.t.Helper()
	ctx := context.Background()
	doc, err := s.Documents.CreateDocument(ctx, ledgerapp.CreateDocumentCommand{
		Kind:           kind,
		Number:         number,
		CounterpartyID: counterparty,
		IssueDate:      Day(1),
		DueDate:        due,
		Lines: []ledgerapp.LineItemInput{
			{Description: "goods", Quantity: decimal.NewFromInt(1), UnitCost: decimal.RequireFromString(total)},
		},
	})
	require.NoError(s.t, err)
	_, err = s.Documents.Submit(ctx, doc.ID)
	require.NoError(s.t, err)
	_, err = s.Documents.Approve(ctx, doc.ID, TestActorID)
	require.NoError(s.t, err)
	return doc.ID
}

// PendingOutbox counts outbox entries still waiting for delivery
func (s *Stack) PendingOutbox() int64 {
	s.t.Helper()
	counts, err := s.OutboxRepo.CountByStatus(context.Background())
	require.NoError(s.t, err)
	return counts[shared.OutboxStatusPending]
}
