package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// withinTx runs fn as one transaction bounded by timeout. gorm rolls back
// when fn returns an error or panics; the error comes back as an engine error.
func withinTx(ctx context.Context, db *gorm.DB, timeout time.Duration, op string, fn func(tx *gorm.DB) error) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return asEngineError(op, db.WithContext(ctx).Transaction(fn))
}

// forUpdate row-locks the rows read by the next query. SQLite ignores the
// clause; its single writer connection serialises instead.
func forUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func isRecordNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
