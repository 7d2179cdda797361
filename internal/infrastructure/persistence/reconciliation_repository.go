package persistence

import (
	"context"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormReconciliationRepository implements ledger.ReconciliationRepository using GORM
type GormReconciliationRepository struct {
	db *gorm.DB
}

func NewGormReconciliationRepository(db *gorm.DB) *GormReconciliationRepository {
	return &GormReconciliationRepository{db: db}
}

func (r *GormReconciliationRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.ReconciliationStatement, error) {
	var m models.ReconciliationModel
	if err := conn(ctx, r.db).First(&m, "id = ?", id).Error; err != nil {
		return nil, notFoundOr("find reconciliation", "reconciliation", id, err)
	}
	return m.ToDomain()
}

func (r *GormReconciliationRepository) List(ctx context.Context, filter ledger.ReconciliationFilter) ([]*ledger.ReconciliationStatement, int64, error) {
	query := conn(ctx, r.db).Model(&models.ReconciliationModel{})
	if filter.BankAccountID != nil {
		query = query.Where("bank_account_id = ?", *filter.BankAccountID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, wrapDBError("count reconciliations", err)
	}
	var rows []models.ReconciliationModel
	if err := paginate(query, filter.Filter, ReconciliationSortFields, "statement_date").Find(&rows).Error; err != nil {
		return nil, 0, wrapDBError("list reconciliations", err)
	}
	out := make([]*ledger.ReconciliationStatement, 0, len(rows))
	for i := range rows {
		s, err := rows[i].ToDomain()
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, nil
}

func (r *GormReconciliationRepository) Save(ctx context.Context, statement *ledger.ReconciliationStatement) error {
	m, err := models.ReconciliationModelFromDomain(statement)
	if err != nil {
		return err
	}
	db := conn(ctx, r.db)
	if statement.IsNew() {
		if err := db.Create(m).Error; err != nil {
			return wrapDBError("create reconciliation", err)
		}
		statement.MarkPersisted()
		return nil
	}
	result := db.Model(&models.ReconciliationModel{}).
		Where("id = ? AND version = ?", statement.ID, statement.LoadedVersion()).
		Updates(m.UpdateColumns())
	if result.Error != nil {
		return wrapDBError("update reconciliation", result.Error)
	}
	if result.RowsAffected == 0 {
		return versionConflict("reconciliation", statement.ID)
	}
	statement.MarkPersisted()
	return nil
}

var _ ledger.ReconciliationRepository = (*GormReconciliationRepository)(nil)
