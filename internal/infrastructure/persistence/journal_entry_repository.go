package persistence

import (
	"context"
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormJournalEntryRepository implements ledger.JournalEntryRepository using GORM
type GormJournalEntryRepository struct {
	db *gorm.DB
}

func NewGormJournalEntryRepository(db *gorm.DB) *GormJournalEntryRepository {
	return &GormJournalEntryRepository{db: db}
}

func withLines(db *gorm.DB) *gorm.DB {
	return db.Preload("Lines", func(db *gorm.DB) *gorm.DB {
		return db.Order("line_no ASC")
	})
}

func (r *GormJournalEntryRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.JournalEntry, error) {
	var m models.JournalEntryModel
	if err := withLines(conn(ctx, r.db)).First(&m, "id = ?", id).Error; err != nil {
		return nil, notFoundOr("find journal entry", "journal entry", id, err)
	}
	return m.ToDomain(), nil
}

func (r *GormJournalEntryRepository) FindByNumber(ctx context.Context, number string) (*ledger.JournalEntry, error) {
	var m models.JournalEntryModel
	if err := withLines(conn(ctx, r.db)).First(&m, "entry_number = ?", number).Error; err != nil {
		return nil, notFoundOr("find journal entry", "journal entry", number, err)
	}
	return m.ToDomain(), nil
}

func (r *GormJournalEntryRepository) List(ctx context.Context, filter ledger.JournalEntryFilter) ([]*ledger.JournalEntry, int64, error) {
	query := conn(ctx, r.db).Model(&models.JournalEntryModel{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Source != nil {
		query = query.Where("source = ?", *filter.Source)
	}
	if filter.AccountID != nil {
		query = query.Where("EXISTS (SELECT 1 FROM journal_lines jl WHERE jl.entry_id = journal_entries.id AND jl.account_id = ?)", *filter.AccountID)
	}
	if filter.FromDate != nil {
		query = query.Where("date >= ?", ledger.DateOf(*filter.FromDate))
	}
	if filter.ToDate != nil {
		query = query.Where("date <= ?", ledger.DateOf(*filter.ToDate))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		pattern := "%" + strings.ToLower(s) + "%"
		query = query.Where("LOWER(entry_number) LIKE ? OR LOWER(description) LIKE ? OR LOWER(reference) LIKE ?",
			pattern, pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, wrapDBError("count journal entries", err)
	}
	var rows []models.JournalEntryModel
	if err := withLines(paginate(query, filter.Filter, JournalEntrySortFields, "date")).Find(&rows).Error; err != nil {
		return nil, 0, wrapDBError("list journal entries", err)
	}
	entries := make([]*ledger.JournalEntry, 0, len(rows))
	for i := range rows {
		entries = append(entries, rows[i].ToDomain())
	}
	return entries, total, nil
}

func (r *GormJournalEntryRepository) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	var count int64
	if err := conn(ctx, r.db).Model(&models.JournalEntryModel{}).
		Where("entry_number = ?", number).
		Count(&count).Error; err != nil {
		return false, wrapDBError("check entry number", err)
	}
	return count > 0, nil
}

type postedLineRow struct {
	EntryID     uuid.UUID
	EntryNumber string
	Reference   string
	Date        time.Time
	LineNo      int
	AccountID   uuid.UUID
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Currency    string
	Memo        string
}

// FindPostedLines returns the lines of every entry that affects balances. Reversed
// entries stay in the result because their reversal is a separate posted entry.
func (r *GormJournalEntryRepository) FindPostedLines(ctx context.Context, q ledger.PostedLineQuery) ([]ledger.PostedLine, error) {
	query := conn(ctx, r.db).
		Table("journal_lines AS l").
		Select("e.id AS entry_id, e.entry_number, e.reference, e.date, l.line_no, l.account_id, l.debit, l.credit, l.currency, l.memo").
		Joins("JOIN journal_entries AS e ON e.id = l.entry_id").
		Where("e.status IN ?", []ledger.EntryStatus{ledger.EntryStatusPosted, ledger.EntryStatusReversed})
	if q.AccountID != nil {
		query = query.Where("l.account_id = ?", *q.AccountID)
	}
	if q.From != nil {
		query = query.Where("e.date >= ?", ledger.DateOf(*q.From))
	}
	if q.To != nil {
		query = query.Where("e.date <= ?", ledger.DateOf(*q.To))
	}

	var rows []postedLineRow
	if err := query.Order("e.date ASC, e.entry_number ASC, l.line_no ASC").Scan(&rows).Error; err != nil {
		return nil, wrapDBError("find posted lines", err)
	}
	out := make([]ledger.PostedLine, 0, len(rows))
	for _, row := range rows {
		lm := models.JournalLineModel{
			LineNo:    row.LineNo,
			AccountID: row.AccountID,
			Debit:     row.Debit,
			Credit:    row.Credit,
			Currency:  row.Currency,
			Memo:      row.Memo,
		}
		out = append(out, ledger.PostedLine{
			JournalLine: lm.ToDomain(),
			EntryID:     row.EntryID,
			EntryNumber: row.EntryNumber,
			Reference:   row.Reference,
			Date:        row.Date,
		})
	}
	return out, nil
}

// Save inserts a new entry with its lines, or updates the header at the loaded
// version and rewrites the lines.
func (r *GormJournalEntryRepository) Save(ctx context.Context, entry *ledger.JournalEntry) error {
	m := models.JournalEntryModelFromDomain(entry)
	err := inTransaction(ctx, r.db, func(tx *gorm.DB) error {
		if entry.IsNew() {
			return tx.Create(m).Error
		}
		result := tx.Model(&models.JournalEntryModel{}).
			Where("id = ? AND version = ?", entry.ID, entry.LoadedVersion()).
			Updates(m.UpdateColumns())
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return versionConflict("journal entry", entry.EntryNumber)
		}
		if err := tx.Where("entry_id = ?", entry.ID).Delete(&models.JournalLineModel{}).Error; err != nil {
			return err
		}
		if len(m.Lines) == 0 {
			return nil
		}
		return tx.Create(&m.Lines).Error
	})
	if err != nil {
		return wrapDBError("save journal entry", err)
	}
	entry.MarkPersisted()
	return nil
}

var _ ledger.JournalEntryRepository = (*GormJournalEntryRepository)(nil)
