package ledger

import (
	"context"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// AccountFilter narrows account listings
type AccountFilter struct {
	shared.Filter
	Type     *AccountType
	Status   *AccountStatus
	ParentID *uuid.UUID
	RootOnly bool
}

// AccountRepository persists accounts. Save inserts new accounts and updates existing
// ones guarded by the version they were loaded with.
type AccountRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)
	FindByCode(ctx context.Context, code string) (*Account, error)
	// FindByIDs returns the accounts found; missing IDs are simply absent from the map
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Account, error)
	// FindAll loads the whole chart
	FindAll(ctx context.Context) ([]*Account, error)
	List(ctx context.Context, filter AccountFilter) ([]*Account, int64, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	Save(ctx context.Context, account *Account) error
	// SaveAll saves every account in one statement batch; any stale version fails the batch
	SaveAll(ctx context.Context, accounts []*Account) error
}

// JournalEntryFilter narrows journal entry listings
type JournalEntryFilter struct {
	shared.Filter
	Status    *EntryStatus
	Source    *EntrySource
	AccountID *uuid.UUID
	FromDate  *time.Time
	ToDate    *time.Time
}

// PostedLine is a journal line together with the entry facts needed for reporting and
// bank matching
type PostedLine struct {
	JournalLine
	EntryID     uuid.UUID `json:"entry_id"`
	EntryNumber string    `json:"entry_number"`
	Reference   string    `json:"reference"`
	Date        time.Time `json:"date"`
}

// PostedLineQuery selects lines of entries that affect balances
type PostedLineQuery struct {
	AccountID *uuid.UUID
	From      *time.Time
	To        *time.Time
}

type JournalEntryRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*JournalEntry, error)
	FindByNumber(ctx context.Context, number string) (*JournalEntry, error)
	List(ctx context.Context, filter JournalEntryFilter) ([]*JournalEntry, int64, error)
	ExistsByNumber(ctx context.Context, number string) (bool, error)
	// FindPostedLines returns lines of POSTED and REVERSED entries ordered by date and entry number
	FindPostedLines(ctx context.Context, q PostedLineQuery) ([]PostedLine, error)
	Save(ctx context.Context, entry *JournalEntry) error
}

// DocumentFilter narrows bill and invoice listings
type DocumentFilter struct {
	shared.Filter
	Kind           *DocumentKind
	Status         *DocumentStatus
	CounterpartyID *uuid.UUID
	DueBefore      *time.Time
}

type DocumentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Document, error)
	FindByNumber(ctx context.Context, kind DocumentKind, number string) (*Document, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Document, error)
	List(ctx context.Context, filter DocumentFilter) ([]*Document, int64, error)
	// FindOpen returns documents of kind that can still take a payment from counterparty
	FindOpen(ctx context.Context, kind DocumentKind, counterpartyID uuid.UUID) ([]*Document, error)
	// FindPastDue returns unpaid documents due before asOf that are not yet OVERDUE
	FindPastDue(ctx context.Context, asOf time.Time, limit int) ([]*Document, error)
	Save(ctx context.Context, doc *Document) error
}

// PaymentFilter narrows payment listings
type PaymentFilter struct {
	shared.Filter
	Direction      *PaymentDirection
	Status         *PaymentStatus
	CounterpartyID *uuid.UUID
	BankAccountID  *uuid.UUID
	Reconciled     *bool
}

type PaymentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	FindByNumber(ctx context.Context, number string) (*Payment, error)
	// FindByJournalEntryIDs returns the payments whose GL entry is among ids
	FindByJournalEntryIDs(ctx context.Context, ids []uuid.UUID) ([]*Payment, error)
	List(ctx context.Context, filter PaymentFilter) ([]*Payment, int64, error)
	Save(ctx context.Context, payment *Payment) error
}

// ReconciliationFilter narrows statement listings
type ReconciliationFilter struct {
	shared.Filter
	BankAccountID *uuid.UUID
	Status        *ReconciliationStatus
}

type ReconciliationRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*ReconciliationStatement, error)
	List(ctx context.Context, filter ReconciliationFilter) ([]*ReconciliationStatement, int64, error)
	Save(ctx context.Context, statement *ReconciliationStatement) error
}
