package persistence

import (
	"context"
	"strings"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormAccountRepository implements ledger.AccountRepository using GORM
type GormAccountRepository struct {
	db *gorm.DB
}

func NewGormAccountRepository(db *gorm.DB) *GormAccountRepository {
	return &GormAccountRepository{db: db}
}

func (r *GormAccountRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	var m models.AccountModel
	if err := conn(ctx, r.db).First(&m, "id = ?", id).Error; err != nil {
		return nil, notFoundOr("find account", "account", id, err)
	}
	return m.ToDomain()
}

func (r *GormAccountRepository) FindByCode(ctx context.Context, code string) (*ledger.Account, error) {
	var m models.AccountModel
	if err := conn(ctx, r.db).First(&m, "code = ?", strings.TrimSpace(code)).Error; err != nil {
		return nil, notFoundOr("find account", "account", code, err)
	}
	return m.ToDomain()
}

func (r *GormAccountRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*ledger.Account, error) {
	result := make(map[uuid.UUID]*ledger.Account, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var rows []models.AccountModel
	if err := conn(ctx, r.db).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, wrapDBError("find accounts", err)
	}
	for i := range rows {
		a, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		result[a.ID] = a
	}
	return result, nil
}

func (r *GormAccountRepository) FindAll(ctx context.Context) ([]*ledger.Account, error) {
	var rows []models.AccountModel
	if err := conn(ctx, r.db).Order("code ASC").Find(&rows).Error; err != nil {
		return nil, wrapDBError("list accounts", err)
	}
	return accountsToDomain(rows)
}

func (r *GormAccountRepository) List(ctx context.Context, filter ledger.AccountFilter) ([]*ledger.Account, int64, error) {
	query := conn(ctx, r.db).Model(&models.AccountModel{})
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.ParentID != nil {
		query = query.Where("parent_id = ?", *filter.ParentID)
	} else if filter.RootOnly {
		query = query.Where("parent_id IS NULL")
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		pattern := "%" + strings.ToLower(s) + "%"
		query = query.Where("LOWER(code) LIKE ? OR LOWER(name) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, wrapDBError("count accounts", err)
	}
	var rows []models.AccountModel
	if err := paginate(query, filter.Filter, AccountSortFields, "code").Find(&rows).Error; err != nil {
		return nil, 0, wrapDBError("list accounts", err)
	}
	accounts, err := accountsToDomain(rows)
	return accounts, total, err
}

func (r *GormAccountRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := conn(ctx, r.db).Model(&models.AccountModel{}).
		Where("code = ?", strings.TrimSpace(code)).
		Count(&count).Error; err != nil {
		return false, wrapDBError("check account code", err)
	}
	return count > 0, nil
}

// Save inserts a new account or updates it at the version it was loaded with
func (r *GormAccountRepository) Save(ctx context.Context, account *ledger.Account) error {
	if err := r.save(conn(ctx, r.db), account); err != nil {
		return err
	}
	account.MarkPersisted()
	return nil
}

// SaveAll writes every account in one transaction. A stale version anywhere fails the batch.
func (r *GormAccountRepository) SaveAll(ctx context.Context, accounts []*ledger.Account) error {
	err := inTransaction(ctx, r.db, func(tx *gorm.DB) error {
		for _, a := range accounts {
			if err := r.save(tx, a); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return wrapDBError("save accounts", err)
	}
	for _, a := range accounts {
		a.MarkPersisted()
	}
	return nil
}

func (r *GormAccountRepository) save(db *gorm.DB, account *ledger.Account) error {
	m, err := models.AccountModelFromDomain(account)
	if err != nil {
		return err
	}
	if account.IsNew() {
		return wrapDBError("create account", db.Create(m).Error)
	}
	result := db.Model(&models.AccountModel{}).
		Where("id = ? AND version = ?", account.ID, account.LoadedVersion()).
		Updates(m.UpdateColumns())
	if result.Error != nil {
		return wrapDBError("update account", result.Error)
	}
	if result.RowsAffected == 0 {
		return versionConflict("account", account.Code)
	}
	return nil
}

func accountsToDomain(rows []models.AccountModel) ([]*ledger.Account, error) {
	out := make([]*ledger.Account, 0, len(rows))
	for i := range rows {
		a, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

var _ ledger.AccountRepository = (*GormAccountRepository)(nil)
