package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Base is embedded by the domain repositories. It carries either the root
// connection or a transaction handle; ForTx swaps one for the other.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB scopes the handle to ctx. A nil ctx returns the handle untouched.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// ForUpdate takes a row lock when the dialect supports one. sqlite
// serialises writers already, so the clause is skipped there.
func ForUpdate(q *gorm.DB) *gorm.DB {
	if q.Dialector.Name() != "postgres" {
		return q
	}
	return q.Clauses(clause.Locking{Strength: "UPDATE"})
}

// First loads the first row matching q into a new T.
func First[T any](q *gorm.DB) (*T, error) {
	var row T
	if err := q.First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// Affected collapses a conditional write into (rows, err).
func Affected(res *gorm.DB) (int64, error) {
	return res.RowsAffected, res.Error
}
