package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/ledger/internal/domain/shared"
	"gorm.io/gorm"
)

type txKey struct{}

// GormTransactionManager runs units of work in a gorm transaction carried by the context.
// Nested calls join the outer transaction.
type GormTransactionManager struct {
	db *gorm.DB
}

func NewGormTransactionManager(db *gorm.DB) *GormTransactionManager {
	return &GormTransactionManager{db: db}
}

// WithinTransaction implements shared.TransactionManager
func (m *GormTransactionManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
	if err == nil {
		return nil
	}
	var domainErr *shared.DomainError
	var infraErr *shared.InfrastructureError
	if errors.As(err, &domainErr) || errors.As(err, &infraErr) {
		return err
	}
	return shared.NewInfrastructureError("transaction", err)
}

// conn returns the transaction from ctx, or db, bound to ctx
func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}

// inTransaction runs fn in the ambient transaction or a new one
func inTransaction(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(tx.WithContext(ctx))
	}
	return db.WithContext(ctx).Transaction(fn)
}

// wrapDBError passes domain errors through and wraps driver failures
func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	var domainErr *shared.DomainError
	var infraErr *shared.InfrastructureError
	if errors.As(err, &domainErr) || errors.As(err, &infraErr) {
		return err
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &shared.DomainError{
			Code:    shared.ErrAlreadyExists.Code,
			Message: op + ": duplicate key",
			Kind:    shared.KindConflict,
		}
	}
	return shared.NewInfrastructureError(op, err)
}

// notFoundOr maps gorm.ErrRecordNotFound to a NOT_FOUND domain error for resource
func notFoundOr(op, resource string, id any, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.NewNotFoundError(resource, id)
	}
	return wrapDBError(op, err)
}

// versionConflict is returned when an update matched no row at the loaded version
func versionConflict(resource string, id any) error {
	return shared.NewConflictError(fmt.Sprintf("%s %v was modified by another process", resource, id))
}

var _ shared.TransactionManager = (*GormTransactionManager)(nil)
