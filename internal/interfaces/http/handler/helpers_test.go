package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	ledgerapp "github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/domain/ledger"
	infraevent "github.com/erp/ledger/internal/infrastructure/event"
	"github.com/erp/ledger/internal/infrastructure/persistence"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/erp/ledger/internal/infrastructure/storage"
	infrastrategy "github.com/erp/ledger/internal/infrastructure/strategy"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/erp/ledger/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

var testActor = uuid.MustParse("0d9f3c52-6a51-4d0e-9a0c-4b1f5e2d7a10")

const testChartYAML = `
currency: USD
accounts:
  - code: "1000"
    name: Cash and banks
    type: ASSET
    subtype: CASH
    children:
      - code: "1010"
        name: Operating account
        subtype: BANK_CHECKING
  - code: "1200"
    name: Accounts receivable
    type: ASSET
    subtype: ACCOUNTS_RECEIVABLE
  - code: "2000"
    name: Accounts payable
    type: LIABILITY
    subtype: ACCOUNTS_PAYABLE
  - code: "3000"
    name: Owner contributions
    type: EQUITY
    subtype: OWNER_CONTRIBUTIONS
  - code: "4900"
    name: Sales discounts
    type: REVENUE
    subtype: SALES_DISCOUNTS
  - code: "4910"
    name: Purchase discounts
    type: REVENUE
    subtype: PURCHASE_DISCOUNTS
  - code: "6000"
    name: Rent
    type: EXPENSE
    subtype: RENT_EXPENSE
`

// testServer wires every ledger service over a migrated in-memory sqlite database
type testServer struct {
	t        *testing.T
	engine   *gin.Engine
	accounts *ledgerapp.AccountService
	journal  *ledgerapp.JournalService
	docs     *ledgerapp.DocumentService
	payments *ledgerapp.PaymentService
	recon    *ledgerapp.ReconciliationService
	reports  *ledgerapp.ReportService
	store    *storage.MemoryReportStore
}

func newTestDB(t *testing.T) *gorm.DB {
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

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := newTestDB(t)
	log := zap.NewNop()

	accountRepo := persistence.NewGormAccountRepository(db)
	entryRepo := persistence.NewGormJournalEntryRepository(db)
	documentRepo := persistence.NewGormDocumentRepository(db, nil)
	paymentRepo := persistence.NewGormPaymentRepository(db)
	statementRepo := persistence.NewGormReconciliationRepository(db)
	txm := persistence.NewGormTransactionManager(db)
	outbox := infraevent.NewOutboxPublisher(persistence.NewGormOutboxRepository(db), infraevent.NewLedgerSerializer(log))

	registry, err := infrastrategy.NewRegistryWithDefaults("")
	require.NoError(t, err)
	profile := ledgerapp.PostingProfile{
		AccountsPayable:    "2000",
		AccountsReceivable: "1200",
		PurchaseDiscount:   "4910",
		SalesDiscount:      "4900",
	}
	opts := []ledgerapp.Option{ledgerapp.WithLogger(log)}

	s := &testServer{t: t, store: storage.NewMemoryReportStore()}
	s.accounts = ledgerapp.NewAccountService(accountRepo, txm, outbox, "USD", opts...)
	s.journal = ledgerapp.NewJournalService(entryRepo, accountRepo, txm, outbox, ledger.NewPostingEngine(), opts...)
	s.docs = ledgerapp.NewDocumentService(documentRepo, entryRepo, accountRepo, txm, outbox, registry, ledgerapp.DocumentServiceConfig{
		DefaultCurrency:      "USD",
		PostDocumentPayments: true,
		Profile:              profile,
	}, opts...)
	s.payments = ledgerapp.NewPaymentService(paymentRepo, documentRepo, entryRepo, accountRepo, txm, outbox, registry, profile, opts...)
	s.recon = ledgerapp.NewReconciliationService(statementRepo, entryRepo, accountRepo, paymentRepo, txm, outbox,
		decimal.Zero, ledger.DefaultMatchWindowDays, opts...)
	s.reports = ledgerapp.NewReportService(s.journal, accountRepo, entryRepo, statementRepo, s.store, opts...)

	seed, err := ledgerapp.ParseChartSeed(strings.NewReader(testChartYAML))
	require.NoError(t, err)
	_, err = s.accounts.ImportChart(context.Background(), seed)
	require.NoError(t, err)

	s.engine = gin.New()
	s.engine.Use(middleware.RequestID(), func(c *gin.Context) {
		if c.GetHeader("X-Anonymous") == "" {
			c.Set(middleware.ActorIDKey, testActor.String())
		}
		c.Next()
	})
	return s
}

// do sends body as JSON (or as-is when it is a string) and decodes the envelope
func (s *testServer) do(method, path string, body any) (*httptest.ResponseRecorder, dto.Response) {
	s.t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var resp dto.Response
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") && w.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}

// decode re-marshals resp.Data into out
func decode(t *testing.T, resp dto.Response, out any) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func (s *testServer) accountID(code string) uuid.UUID {
	s.t.Helper()
	a, err := s.accounts.GetByCode(context.Background(), code)
	require.NoError(s.t, err)
	return a.ID
}

func day(d int) time.Time {
	return time.Date(2024, time.March, d, 0, 0, 0, 0, time.UTC)
}

func amount(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// postEntry drafts and posts a two-line entry through the services
func (s *testServer) postEntry(date time.Time, reference string, debit, credit uuid.UUID, value string) *ledgerapp.JournalEntryResponse {
	s.t.Helper()
	ctx := context.Background()
	draft, err := s.journal.CreateDraft(ctx, ledgerapp.CreateJournalEntryCommand{
		Date:        date,
		Description: "entry " + reference,
		Reference:   reference,
		Lines: []ledgerapp.JournalLineInput{
			{AccountID: debit, Debit: amount(value)},
			{AccountID: credit, Credit: amount(value)},
		},
	})
	require.NoError(s.t, err)
	res, err := s.journal.PostEntry(ctx, draft.ID, testActor)
	require.NoError(s.t, err)
	return &res.Entry
}

func dateOf(t time.Time) *dto.Date {
	return &dto.Date{Time: t}
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func newRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

func serve(s *testServer, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}
