package persistence

import (
	"context"
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormDocumentRepository implements ledger.DocumentRepository for bills and invoices
type GormDocumentRepository struct {
	db    *gorm.DB
	units *valueobject.UnitRegistry
}

// NewGormDocumentRepository loads line item units from units; nil uses the default registry
func NewGormDocumentRepository(db *gorm.DB, units *valueobject.UnitRegistry) *GormDocumentRepository {
	if units == nil {
		units = valueobject.DefaultUnitRegistry()
	}
	return &GormDocumentRepository{db: db, units: units}
}

func (r *GormDocumentRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Document, error) {
	var m models.DocumentModel
	if err := conn(ctx, r.db).First(&m, "id = ?", id).Error; err != nil {
		return nil, notFoundOr("find document", "document", id, err)
	}
	return m.ToDomain(r.units)
}

func (r *GormDocumentRepository) FindByNumber(ctx context.Context, kind ledger.DocumentKind, number string) (*ledger.Document, error) {
	var m models.DocumentModel
	if err := conn(ctx, r.db).First(&m, "kind = ? AND number = ?", kind, number).Error; err != nil {
		return nil, notFoundOr("find document", strings.ToLower(string(kind)), number, err)
	}
	return m.ToDomain(r.units)
}

func (r *GormDocumentRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*ledger.Document, error) {
	result := make(map[uuid.UUID]*ledger.Document, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var rows []models.DocumentModel
	if err := conn(ctx, r.db).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, wrapDBError("find documents", err)
	}
	docs, err := documentsToDomain(rows, r.units)
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		result[d.ID] = d
	}
	return result, nil
}

func (r *GormDocumentRepository) List(ctx context.Context, filter ledger.DocumentFilter) ([]*ledger.Document, int64, error) {
	query := conn(ctx, r.db).Model(&models.DocumentModel{})
	if filter.Kind != nil {
		query = query.Where("kind = ?", *filter.Kind)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.CounterpartyID != nil {
		query = query.Where("counterparty_id = ?", *filter.CounterpartyID)
	}
	if filter.DueBefore != nil {
		query = query.Where("due_date < ?", ledger.DateOf(*filter.DueBefore))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		pattern := "%" + strings.ToLower(s) + "%"
		query = query.Where("LOWER(number) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, wrapDBError("count documents", err)
	}
	var rows []models.DocumentModel
	if err := paginate(query, filter.Filter, DocumentSortFields, "due_date").Find(&rows).Error; err != nil {
		return nil, 0, wrapDBError("list documents", err)
	}
	docs, err := documentsToDomain(rows, r.units)
	return docs, total, err
}

// FindOpen returns payable documents for a counterparty, oldest due date first
func (r *GormDocumentRepository) FindOpen(ctx context.Context, kind ledger.DocumentKind, counterpartyID uuid.UUID) ([]*ledger.Document, error) {
	var rows []models.DocumentModel
	if err := conn(ctx, r.db).
		Where("kind = ? AND counterparty_id = ? AND status IN ?", kind, counterpartyID, ledger.PayableStatuses()).
		Order("due_date ASC, number ASC").
		Find(&rows).Error; err != nil {
		return nil, wrapDBError("find open documents", err)
	}
	return documentsToDomain(rows, r.units)
}

func (r *GormDocumentRepository) FindPastDue(ctx context.Context, asOf time.Time, limit int) ([]*ledger.Document, error) {
	query := conn(ctx, r.db).
		Where("status IN ? AND due_date < ?", ledger.OverdueCandidateStatuses(), ledger.DateOf(asOf)).
		Order("due_date ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.DocumentModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, wrapDBError("find past due documents", err)
	}
	return documentsToDomain(rows, r.units)
}

func (r *GormDocumentRepository) Save(ctx context.Context, doc *ledger.Document) error {
	m, err := models.DocumentModelFromDomain(doc)
	if err != nil {
		return err
	}
	db := conn(ctx, r.db)
	if doc.IsNew() {
		if err := db.Create(m).Error; err != nil {
			return wrapDBError("create document", err)
		}
		doc.MarkPersisted()
		return nil
	}
	result := db.Model(&models.DocumentModel{}).
		Where("id = ? AND version = ?", doc.ID, doc.LoadedVersion()).
		Updates(m.UpdateColumns())
	if result.Error != nil {
		return wrapDBError("update document", result.Error)
	}
	if result.RowsAffected == 0 {
		return versionConflict(strings.ToLower(string(doc.Kind)), doc.Number)
	}
	doc.MarkPersisted()
	return nil
}

func documentsToDomain(rows []models.DocumentModel, units *valueobject.UnitRegistry) ([]*ledger.Document, error) {
	out := make([]*ledger.Document, 0, len(rows))
	for i := range rows {
		d, err := rows[i].ToDomain(units)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

var _ ledger.DocumentRepository = (*GormDocumentRepository)(nil)
