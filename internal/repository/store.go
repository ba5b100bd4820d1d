package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Dialect selects the SQL flavour a Store talks to.
type Dialect string

const (
	DialectMySQL  Dialect = "mysql"
	DialectSQLite Dialect = "sqlite"
)

// querier is satisfied by both *sql.DB and *sql.Tx so read helpers can
// run inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store wraps the database handle and knows how to run the atomic
// units the floor service needs.  The isolation contract it provides:
// a row read with lock=true inside WithTx cannot be written by another
// transaction until this one ends.  MySQL achieves that with
// SELECT ... FOR UPDATE; SQLite by allowing one connection, hence one
// transaction, at a time.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// NewStore returns a Store bound to db.
func NewStore(db *sql.DB, dialect Dialect) *Store {
	if db == nil {
		panic("nil database passed to NewStore")
	}
	return &Store{db: db, dialect: dialect}
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect returns the SQL flavour of the store.
func (s *Store) Dialect() Dialect { return s.dialect }

// WithTx runs fn inside a transaction.  The transaction is committed
// when fn returns nil and rolled back otherwise, so a rejected
// operation never leaves a partial write behind.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}

// lockClause returns the suffix that row-locks a SELECT.
func (s *Store) lockClause(lock bool) string {
	if lock && s.dialect == DialectMySQL {
		return " FOR UPDATE"
	}
	return ""
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(v int64) time.Time { return time.UnixMilli(v).UTC() }

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func nullID(id *uint64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*id), Valid: true}
}

func idPtr(v sql.NullInt64) *uint64 {
	if !v.Valid {
		return nil
	}
	id := uint64(v.Int64)
	return &id
}
