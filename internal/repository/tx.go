package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type txKey struct{}

// TxManager runs a function inside a database transaction carried on the
// context. Repositories pick the transaction up transparently, so quota
// checks, stock reservations and order writes issued through different
// repositories all commit or roll back together.
type TxManager struct {
	db *gorm.DB
}

// NewTxManager creates a transaction manager over the given database
func NewTxManager(db *gorm.DB) *TxManager {
	return &TxManager{db: db}
}

// Do executes fn inside a transaction. If the context already carries a
// transaction, fn joins it instead of opening a nested one.
func (m *TxManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

func txFromContext(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return nil
}

// dbFrom returns the transaction carried on the context, or the base
// database handle when no transaction is open
func dbFrom(ctx context.Context, base *gorm.DB) *gorm.DB {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return base.WithContext(ctx)
}

// IsSerializationFailure reports whether err is a concurrent-write conflict
// that the caller may retry (serialization failure or deadlock)
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 40001 serialization_failure, 40P01 deadlock_detected
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	if err != nil && strings.Contains(err.Error(), "could not serialize access") {
		return true
	}
	return false
}
