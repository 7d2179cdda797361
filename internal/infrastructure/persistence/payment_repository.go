package persistence

import (
	"context"
	"strings"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPaymentRepository implements ledger.PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

func (r *GormPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Payment, error) {
	var m models.PaymentModel
	if err := conn(ctx, r.db).First(&m, "id = ?", id).Error; err != nil {
		return nil, notFoundOr("find payment", "payment", id, err)
	}
	return m.ToDomain()
}

func (r *GormPaymentRepository) FindByNumber(ctx context.Context, number string) (*ledger.Payment, error) {
	var m models.PaymentModel
	if err := conn(ctx, r.db).First(&m, "payment_number = ?", number).Error; err != nil {
		return nil, notFoundOr("find payment", "payment", number, err)
	}
	return m.ToDomain()
}

func (r *GormPaymentRepository) FindByJournalEntryIDs(ctx context.Context, ids []uuid.UUID) ([]*ledger.Payment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.PaymentModel
	if err := conn(ctx, r.db).Where("journal_entry_id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, wrapDBError("find payments by entry", err)
	}
	return paymentsToDomain(rows)
}

func (r *GormPaymentRepository) List(ctx context.Context, filter ledger.PaymentFilter) ([]*ledger.Payment, int64, error) {
	query := conn(ctx, r.db).Model(&models.PaymentModel{})
	if filter.Direction != nil {
		query = query.Where("direction = ?", *filter.Direction)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.CounterpartyID != nil {
		query = query.Where("counterparty_id = ?", *filter.CounterpartyID)
	}
	if filter.BankAccountID != nil {
		query = query.Where("bank_account_id = ?", *filter.BankAccountID)
	}
	if filter.Reconciled != nil {
		query = query.Where("is_reconciled = ?", *filter.Reconciled)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		pattern := "%" + strings.ToLower(s) + "%"
		query = query.Where("LOWER(payment_number) LIKE ? OR LOWER(reference) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, wrapDBError("count payments", err)
	}
	var rows []models.PaymentModel
	if err := paginate(query, filter.Filter, PaymentSortFields, "payment_date").Find(&rows).Error; err != nil {
		return nil, 0, wrapDBError("list payments", err)
	}
	payments, err := paymentsToDomain(rows)
	return payments, total, err
}

func (r *GormPaymentRepository) Save(ctx context.Context, payment *ledger.Payment) error {
	m, err := models.PaymentModelFromDomain(payment)
	if err != nil {
		return err
	}
	db := conn(ctx, r.db)
	if payment.IsNew() {
		if err := db.Create(m).Error; err != nil {
			return wrapDBError("create payment", err)
		}
		payment.MarkPersisted()
		return nil
	}
	result := db.Model(&models.PaymentModel{}).
		Where("id = ? AND version = ?", payment.ID, payment.LoadedVersion()).
		Updates(m.UpdateColumns())
	if result.Error != nil {
		return wrapDBError("update payment", result.Error)
	}
	if result.RowsAffected == 0 {
		return versionConflict("payment", payment.PaymentNumber)
	}
	payment.MarkPersisted()
	return nil
}

func paymentsToDomain(rows []models.PaymentModel) ([]*ledger.Payment, error) {
	out := make([]*ledger.Payment, 0, len(rows))
	for i := range rows {
		p, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

var _ ledger.PaymentRepository = (*GormPaymentRepository)(nil)
