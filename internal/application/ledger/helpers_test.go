package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	infrastrategy "github.com/erp/ledger/internal/infrastructure/strategy"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	testActor = uuid.MustParse("5b0c7a5e-0000-4000-8000-00000000a001")
	testNow   = time.Date(2024, time.March, 31, 12, 0, 0, 0, time.UTC)
)

func day(d int) time.Time {
	return time.Date(2024, time.March, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func codeOf(t *testing.T, err error) string {
	t.Helper()
	var de *shared.DomainError
	require.True(t, errors.As(err, &de), "expected domain error, got %v", err)
	return de.Code
}

// memStore keeps aggregate snapshots. WithinTransaction restores every map when fn
// fails, so services see the same all-or-nothing behaviour as with a database.
type memStore struct {
	accounts   map[uuid.UUID]ledger.AccountState
	entries    map[uuid.UUID]ledger.JournalEntryState
	documents  map[uuid.UUID]ledger.DocumentState
	payments   map[uuid.UUID]ledger.PaymentState
	statements map[uuid.UUID]ledger.ReconciliationState
	events     []shared.DomainEvent
	rollbacks  int
}

func newMemStore() *memStore {
	return &memStore{
		accounts:   make(map[uuid.UUID]ledger.AccountState),
		entries:    make(map[uuid.UUID]ledger.JournalEntryState),
		documents:  make(map[uuid.UUID]ledger.DocumentState),
		payments:   make(map[uuid.UUID]ledger.PaymentState),
		statements: make(map[uuid.UUID]ledger.ReconciliationState),
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	accounts, entries, documents := copyMap(s.accounts), copyMap(s.entries), copyMap(s.documents)
	payments, statements, events := copyMap(s.payments), copyMap(s.statements), len(s.events)
	if err := fn(ctx); err != nil {
		s.accounts, s.entries, s.documents = accounts, entries, documents
		s.payments, s.statements, s.events = payments, statements, s.events[:events]
		s.rollbacks++
		return err
	}
	return nil
}

func (s *memStore) SaveEvents(_ context.Context, events ...shared.DomainEvent) error {
	s.events = append(s.events, events...)
	return nil
}

func (s *memStore) eventTypes() []string {
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.EventType()
	}
	return out
}

// checkVersion applies the optimistic locking rule the SQL repositories enforce
func checkVersion(kind string, id uuid.UUID, isNew bool, loaded, stored int, exists bool) error {
	switch {
	case isNew && exists:
		return shared.ErrAlreadyExists
	case !isNew && !exists:
		return shared.NewNotFoundError(kind, id)
	case !isNew && stored != loaded:
		return shared.NewConflictError(fmt.Sprintf("%s %s is at version %d, not %d", kind, id, stored, loaded))
	}
	return nil
}

func paginate[T any](items []T, f shared.Filter) ([]T, int64) {
	total := int64(len(items))
	start := f.Offset()
	if start >= len(items) {
		return nil, total
	}
	end := start + f.Limit()
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], total
}

type memAccounts struct {
	s *memStore
	// conflicts makes the next SaveAll calls fail as if another writer got there first
	conflicts int
}

func (r *memAccounts) FindByID(_ context.Context, id uuid.UUID) (*ledger.Account, error) {
	st, ok := r.s.accounts[id]
	if !ok {
		return nil, shared.NewNotFoundError("account", id)
	}
	return ledger.ReconstituteAccount(st), nil
}

func (r *memAccounts) FindByCode(_ context.Context, code string) (*ledger.Account, error) {
	for _, st := range r.s.accounts {
		if st.Code == code {
			return ledger.ReconstituteAccount(st), nil
		}
	}
	return nil, shared.NewNotFoundError("account", code)
}

func (r *memAccounts) FindByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*ledger.Account, error) {
	out := make(map[uuid.UUID]*ledger.Account, len(ids))
	for _, id := range ids {
		if st, ok := r.s.accounts[id]; ok {
			out[id] = ledger.ReconstituteAccount(st)
		}
	}
	return out, nil
}

func (r *memAccounts) FindAll(context.Context) ([]*ledger.Account, error) {
	out := make([]*ledger.Account, 0, len(r.s.accounts))
	for _, st := range r.s.accounts {
		out = append(out, ledger.ReconstituteAccount(st))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *memAccounts) List(ctx context.Context, f ledger.AccountFilter) ([]*ledger.Account, int64, error) {
	all, _ := r.FindAll(ctx)
	var out []*ledger.Account
	for _, a := range all {
		switch {
		case f.Type != nil && a.Type != *f.Type,
			f.Status != nil && a.Status() != *f.Status,
			f.RootOnly && a.ParentID() != nil,
			f.ParentID != nil && (a.ParentID() == nil || *a.ParentID() != *f.ParentID):
			continue
		}
		out = append(out, a)
	}
	page, total := paginate(out, f.Filter)
	return page, total, nil
}

func (r *memAccounts) ExistsByCode(_ context.Context, code string) (bool, error) {
	for _, st := range r.s.accounts {
		if st.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (r *memAccounts) Save(_ context.Context, a *ledger.Account) error {
	prev, ok := r.s.accounts[a.ID]
	if err := checkVersion("account", a.ID, a.IsNew(), a.LoadedVersion(), prev.Version, ok); err != nil {
		return err
	}
	r.s.accounts[a.ID] = a.Snapshot()
	a.MarkPersisted()
	return nil
}

func (r *memAccounts) SaveAll(_ context.Context, accounts []*ledger.Account) error {
	if r.conflicts > 0 {
		r.conflicts--
		return shared.NewConflictError("account balance changed concurrently")
	}
	for _, a := range accounts {
		prev, ok := r.s.accounts[a.ID]
		if err := checkVersion("account", a.ID, a.IsNew(), a.LoadedVersion(), prev.Version, ok); err != nil {
			return err
		}
	}
	for _, a := range accounts {
		r.s.accounts[a.ID] = a.Snapshot()
		a.MarkPersisted()
	}
	return nil
}

type memEntries struct{ s *memStore }

func (r *memEntries) FindByID(_ context.Context, id uuid.UUID) (*ledger.JournalEntry, error) {
	st, ok := r.s.entries[id]
	if !ok {
		return nil, shared.NewNotFoundError("journal entry", id)
	}
	return ledger.ReconstituteJournalEntry(st), nil
}

func (r *memEntries) FindByNumber(_ context.Context, number string) (*ledger.JournalEntry, error) {
	for _, st := range r.s.entries {
		if st.EntryNumber == number {
			return ledger.ReconstituteJournalEntry(st), nil
		}
	}
	return nil, shared.NewNotFoundError("journal entry", number)
}

func (r *memEntries) List(_ context.Context, f ledger.JournalEntryFilter) ([]*ledger.JournalEntry, int64, error) {
	var out []*ledger.JournalEntry
	for _, st := range r.s.entries {
		switch {
		case f.Status != nil && st.Status != *f.Status,
			f.Source != nil && st.Source != *f.Source,
			f.FromDate != nil && st.Date.Before(*f.FromDate),
			f.ToDate != nil && st.Date.After(*f.ToDate):
			continue
		}
		if f.AccountID != nil && !touches(st.Lines, *f.AccountID) {
			continue
		}
		out = append(out, ledger.ReconstituteJournalEntry(st))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntryNumber < out[j].EntryNumber })
	page, total := paginate(out, f.Filter)
	return page, total, nil
}

func touches(lines []ledger.JournalLine, accountID uuid.UUID) bool {
	for _, l := range lines {
		if l.AccountID == accountID {
			return true
		}
	}
	return false
}

func (r *memEntries) ExistsByNumber(_ context.Context, number string) (bool, error) {
	for _, st := range r.s.entries {
		if st.EntryNumber == number {
			return true, nil
		}
	}
	return false, nil
}

func (r *memEntries) FindPostedLines(_ context.Context, q ledger.PostedLineQuery) ([]ledger.PostedLine, error) {
	var out []ledger.PostedLine
	for _, st := range r.s.entries {
		if !st.Status.AffectsBalances() {
			continue
		}
		d := ledger.DateOf(st.Date)
		if q.From != nil && d.Before(ledger.DateOf(*q.From)) {
			continue
		}
		if q.To != nil && d.After(ledger.DateOf(*q.To)) {
			continue
		}
		for _, l := range st.Lines {
			if q.AccountID != nil && l.AccountID != *q.AccountID {
				continue
			}
			out = append(out, ledger.PostedLine{
				JournalLine: l,
				EntryID:     st.ID,
				EntryNumber: st.EntryNumber,
				Reference:   st.Reference,
				Date:        st.Date,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.EntryNumber != b.EntryNumber {
			return a.EntryNumber < b.EntryNumber
		}
		return a.LineNo < b.LineNo
	})
	return out, nil
}

func (r *memEntries) Save(_ context.Context, e *ledger.JournalEntry) error {
	prev, ok := r.s.entries[e.ID]
	if err := checkVersion("journal entry", e.ID, e.IsNew(), e.LoadedVersion(), prev.Version, ok); err != nil {
		return err
	}
	r.s.entries[e.ID] = e.Snapshot()
	e.MarkPersisted()
	return nil
}

type memDocuments struct{ s *memStore }

func (r *memDocuments) FindByID(_ context.Context, id uuid.UUID) (*ledger.Document, error) {
	st, ok := r.s.documents[id]
	if !ok {
		return nil, shared.NewNotFoundError("document", id)
	}
	return ledger.ReconstituteDocument(st), nil
}

func (r *memDocuments) FindByNumber(_ context.Context, kind ledger.DocumentKind, number string) (*ledger.Document, error) {
	for _, st := range r.s.documents {
		if st.Kind == kind && st.Number == number {
			return ledger.ReconstituteDocument(st), nil
		}
	}
	return nil, shared.NewNotFoundError("document", number)
}

func (r *memDocuments) FindByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*ledger.Document, error) {
	out := make(map[uuid.UUID]*ledger.Document, len(ids))
	for _, id := range ids {
		if st, ok := r.s.documents[id]; ok {
			out[id] = ledger.ReconstituteDocument(st)
		}
	}
	return out, nil
}

func (r *memDocuments) sorted(keep func(ledger.DocumentState) bool) []*ledger.Document {
	var out []*ledger.Document
	for _, st := range r.s.documents {
		if keep(st) {
			out = append(out, ledger.ReconstituteDocument(st))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].Number < out[j].Number
	})
	return out
}

func (r *memDocuments) List(_ context.Context, f ledger.DocumentFilter) ([]*ledger.Document, int64, error) {
	out := r.sorted(func(st ledger.DocumentState) bool {
		switch {
		case f.Kind != nil && st.Kind != *f.Kind,
			f.Status != nil && st.Status != *f.Status,
			f.CounterpartyID != nil && st.CounterpartyID != *f.CounterpartyID,
			f.DueBefore != nil && !st.DueDate.Before(*f.DueBefore):
			return false
		}
		return true
	})
	page, total := paginate(out, f.Filter)
	return page, total, nil
}

func hasStatus(s ledger.DocumentStatus, in []ledger.DocumentStatus) bool {
	for _, st := range in {
		if st == s {
			return true
		}
	}
	return false
}

func (r *memDocuments) FindOpen(_ context.Context, kind ledger.DocumentKind, counterpartyID uuid.UUID) ([]*ledger.Document, error) {
	payable := ledger.PayableStatuses()
	return r.sorted(func(st ledger.DocumentState) bool {
		return st.Kind == kind && st.CounterpartyID == counterpartyID && hasStatus(st.Status, payable)
	}), nil
}

func (r *memDocuments) FindPastDue(_ context.Context, asOf time.Time, limit int) ([]*ledger.Document, error) {
	candidates := ledger.OverdueCandidateStatuses()
	cutoff := ledger.DateOf(asOf)
	out := r.sorted(func(st ledger.DocumentState) bool {
		return hasStatus(st.Status, candidates) && st.DueDate.Before(cutoff)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memDocuments) Save(_ context.Context, d *ledger.Document) error {
	prev, ok := r.s.documents[d.ID]
	if err := checkVersion("document", d.ID, d.IsNew(), d.LoadedVersion(), prev.Version, ok); err != nil {
		return err
	}
	r.s.documents[d.ID] = d.Snapshot()
	d.MarkPersisted()
	return nil
}

type memPayments struct{ s *memStore }

func (r *memPayments) FindByID(_ context.Context, id uuid.UUID) (*ledger.Payment, error) {
	st, ok := r.s.payments[id]
	if !ok {
		return nil, shared.NewNotFoundError("payment", id)
	}
	return ledger.ReconstitutePayment(st), nil
}

func (r *memPayments) FindByNumber(_ context.Context, number string) (*ledger.Payment, error) {
	for _, st := range r.s.payments {
		if st.PaymentNumber == number {
			return ledger.ReconstitutePayment(st), nil
		}
	}
	return nil, shared.NewNotFoundError("payment", number)
}

func (r *memPayments) FindByJournalEntryIDs(_ context.Context, ids []uuid.UUID) ([]*ledger.Payment, error) {
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []*ledger.Payment
	for _, st := range r.s.payments {
		if st.JournalEntryID != nil && want[*st.JournalEntryID] {
			out = append(out, ledger.ReconstitutePayment(st))
		}
	}
	return out, nil
}

func (r *memPayments) List(_ context.Context, f ledger.PaymentFilter) ([]*ledger.Payment, int64, error) {
	var out []*ledger.Payment
	for _, st := range r.s.payments {
		switch {
		case f.Direction != nil && st.Direction != *f.Direction,
			f.Status != nil && st.Status != *f.Status,
			f.CounterpartyID != nil && st.CounterpartyID != *f.CounterpartyID,
			f.BankAccountID != nil && st.BankAccountID != *f.BankAccountID,
			f.Reconciled != nil && st.IsReconciled != *f.Reconciled:
			continue
		}
		out = append(out, ledger.ReconstitutePayment(st))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaymentNumber < out[j].PaymentNumber })
	page, total := paginate(out, f.Filter)
	return page, total, nil
}

func (r *memPayments) Save(_ context.Context, p *ledger.Payment) error {
	prev, ok := r.s.payments[p.ID]
	if err := checkVersion("payment", p.ID, p.IsNew(), p.LoadedVersion(), prev.Version, ok); err != nil {
		return err
	}
	r.s.payments[p.ID] = p.Snapshot()
	p.MarkPersisted()
	return nil
}

type memStatements struct{ s *memStore }

func (r *memStatements) FindByID(_ context.Context, id uuid.UUID) (*ledger.ReconciliationStatement, error) {
	st, ok := r.s.statements[id]
	if !ok {
		return nil, shared.NewNotFoundError("reconciliation", id)
	}
	return ledger.ReconstituteReconciliation(st), nil
}

func (r *memStatements) List(_ context.Context, f ledger.ReconciliationFilter) ([]*ledger.ReconciliationStatement, int64, error) {
	var out []*ledger.ReconciliationStatement
	for _, st := range r.s.statements {
		if f.BankAccountID != nil && st.BankAccountID != *f.BankAccountID {
			continue
		}
		if f.Status != nil && st.Status != *f.Status {
			continue
		}
		out = append(out, ledger.ReconstituteReconciliation(st))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StatementDate.Before(out[j].StatementDate) })
	page, total := paginate(out, f.Filter)
	return page, total, nil
}

func (r *memStatements) Save(_ context.Context, st *ledger.ReconciliationStatement) error {
	prev, ok := r.s.statements[st.ID]
	if err := checkVersion("reconciliation", st.ID, st.IsNew(), st.LoadedVersion(), prev.Version, ok); err != nil {
		return err
	}
	r.s.statements[st.ID] = st.Snapshot()
	st.MarkPersisted()
	return nil
}

type recordingMetrics struct {
	postings        []string
	conflicts       map[string]int
	overdue         map[string]int
	reconciliations []string
	payments        []string
	unmatched       []int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{conflicts: make(map[string]int), overdue: make(map[string]int)}
}

func (m *recordingMetrics) RecordPosting(_ context.Context, source string, _ map[string]decimal.Decimal, _ time.Duration) {
	m.postings = append(m.postings, source)
}

func (m *recordingMetrics) RecordConflict(_ context.Context, operation string) {
	m.conflicts[operation]++
}

func (m *recordingMetrics) RecordOverdue(_ context.Context, kind string, n int) {
	m.overdue[kind] += n
}

func (m *recordingMetrics) RecordReconciliation(_ context.Context, outcome string) {
	m.reconciliations = append(m.reconciliations, outcome)
}

func (m *recordingMetrics) RecordPayment(_ context.Context, direction string) {
	m.payments = append(m.payments, direction)
}

func (m *recordingMetrics) RecordUnmatched(_ context.Context, lines int) {
	m.unmatched = append(m.unmatched, lines)
}

type memReportStore struct {
	objects map[string][]byte
	urlErr  error
}

func newMemReportStore() *memReportStore {
	return &memReportStore{objects: make(map[string][]byte)}
}

func (s *memReportStore) Put(_ context.Context, key, _ string, body []byte) error {
	s.objects[key] = append([]byte(nil), body...)
	return nil
}

func (s *memReportStore) Get(_ context.Context, key string) ([]byte, error) {
	b, ok := s.objects[key]
	if !ok {
		return nil, shared.NewNotFoundError("report", key)
	}
	return b, nil
}

func (s *memReportStore) URL(_ context.Context, key string, _ time.Duration) (string, error) {
	if s.urlErr != nil {
		return "", s.urlErr
	}
	return "memory://" + key, nil
}

func (s *memReportStore) keys(prefix string) []string {
	var out []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

var testChart = &ChartSeed{
	Currency: "USD",
	Accounts: []AccountSeed{
		{Code: "1000", Name: "Cash and banks", Type: "ASSET", Subtype: "CASH", Children: []AccountSeed{
			{Code: "1010", Name: "Operating account", Subtype: "BANK_CHECKING"},
		}},
		{Code: "1200", Name: "Accounts receivable", Type: "ASSET", Subtype: "ACCOUNTS_RECEIVABLE"},
		{Code: "2000", Name: "Accounts payable", Type: "LIABILITY", Subtype: "ACCOUNTS_PAYABLE"},
		{Code: "3000", Name: "Owner contributions", Type: "EQUITY", Subtype: "OWNER_CONTRIBUTIONS"},
		{Code: "4000", Name: "Sales", Type: "REVENUE", Subtype: "SALES_REVENUE"},
		{Code: "4900", Name: "Sales discounts", Type: "REVENUE", Subtype: "SALES_DISCOUNTS"},
		{Code: "4910", Name: "Purchase discounts", Type: "REVENUE", Subtype: "PURCHASE_DISCOUNTS"},
		{Code: "6000", Name: "Rent", Type: "EXPENSE", Subtype: "RENT_EXPENSE"},
	},
}

var testProfile = PostingProfile{
	AccountsPayable:    "2000",
	AccountsReceivable: "1200",
	PurchaseDiscount:   "4910",
	SalesDiscount:      "4900",
}

type fixture struct {
	store      *memStore
	accounts   *memAccounts
	entries    *memEntries
	documents  *memDocuments
	payments   *memPayments
	statements *memStatements
	metrics    *recordingMetrics
	reportData *memReportStore

	accountSvc *AccountService
	journal    *JournalService
	docs       *DocumentService
	pays       *PaymentService
	recon      *ReconciliationService
	reports    *ReportService
}

// newFixture wires every service over one in-memory store and seeds testChart
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	f := &fixture{
		store:      store,
		accounts:   &memAccounts{s: store},
		entries:    &memEntries{s: store},
		documents:  &memDocuments{s: store},
		payments:   &memPayments{s: store},
		statements: &memStatements{s: store},
		metrics:    newRecordingMetrics(),
		reportData: newMemReportStore(),
	}
	registry, err := infrastrategy.NewRegistryWithDefaults("")
	require.NoError(t, err)

	opts := []Option{
		WithLogger(zap.NewNop()),
		WithMetrics(f.metrics),
		WithClock(func() time.Time { return testNow }),
	}
	f.accountSvc = NewAccountService(f.accounts, store, store, "USD", opts...)
	f.journal = NewJournalService(f.entries, f.accounts, store, store, ledger.NewPostingEngine(), opts...)
	f.docs = NewDocumentService(f.documents, f.entries, f.accounts, store, store, registry, DocumentServiceConfig{
		DefaultCurrency:      "USD",
		PostDocumentPayments: true,
		Profile:              testProfile,
		OverdueBatchSize:     2,
	}, opts...)
	f.pays = NewPaymentService(f.payments, f.documents, f.entries, f.accounts, store, store, registry, testProfile, opts...)
	f.recon = NewReconciliationService(f.statements, f.entries, f.accounts, f.payments, store, store,
		decimal.Zero, ledger.DefaultMatchWindowDays, opts...)
	f.reports = NewReportService(f.journal, f.accounts, f.entries, f.statements, f.reportData, opts...)

	_, err = f.accountSvc.ImportChart(context.Background(), testChart)
	require.NoError(t, err)
	store.events = nil
	return f
}

func (f *fixture) account(t *testing.T, code string) *ledger.Account {
	t.Helper()
	a, err := f.accounts.FindByCode(context.Background(), code)
	require.NoError(t, err)
	return a
}

func (f *fixture) id(t *testing.T, code string) uuid.UUID {
	t.Helper()
	return f.account(t, code).ID
}

func (f *fixture) balance(t *testing.T, code string) string {
	t.Helper()
	return f.account(t, code).Balance().Amount().StringFixed(2)
}

func debit(id uuid.UUID, amount string) JournalLineInput {
	return JournalLineInput{AccountID: id, Debit: decPtr(amount)}
}

func credit(id uuid.UUID, amount string) JournalLineInput {
	return JournalLineInput{AccountID: id, Credit: decPtr(amount)}
}

// post drafts and posts a manual entry
func (f *fixture) post(t *testing.T, date time.Time, reference string, lines ...JournalLineInput) *JournalEntryResponse {
	t.Helper()
	ctx := context.Background()
	draft, err := f.journal.CreateDraft(ctx, CreateJournalEntryCommand{
		Date:        date,
		Description: "test entry " + reference,
		Reference:   reference,
		Lines:       lines,
	})
	require.NoError(t, err)
	res, err := f.journal.PostEntry(ctx, draft.ID, testActor)
	require.NoError(t, err)
	return &res.Entry
}

// approvedDocument creates a single-line document and takes it to APPROVED
func (f *fixture) approvedDocument(t *testing.T, kind ledger.DocumentKind, counterparty uuid.UUID, number, amount string, due time.Time) *DocumentResponse {
	t.Helper()
	ctx := context.Background()
	doc, err := f.docs.CreateDocument(ctx, CreateDocumentCommand{
		Kind:           string(kind),
		Number:         number,
		CounterpartyID: counterparty,
		IssueDate:      day(1),
		DueDate:        due,
		Lines: []LineItemInput{
			{Description: "services", Quantity: dec("1"), UnitCost: dec(amount)},
		},
	})
	require.NoError(t, err)
	_, err = f.docs.Submit(ctx, doc.ID)
	require.NoError(t, err)
	doc, err = f.docs.Approve(ctx, doc.ID, testActor)
	require.NoError(t, err)
	return doc
}
