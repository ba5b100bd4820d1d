package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/restaurant-floor/internal/model"
)

// TableRepo provides data access to the dining_tables table.  Writes are
// compare-and-set on the row version and bump it by one, so every
// committed change carries a strictly newer version.
type TableRepo struct {
	store *Store
}

// NewTableRepo returns a TableRepo bound to the given store.
func NewTableRepo(store *Store) *TableRepo { return &TableRepo{store: store} }

const tableColumns = `id, number, capacity, occupancy, order_id, version, updated_at`

func scanTable(row interface{ Scan(...any) error }) (model.Table, error) {
	var (
		t       model.Table
		occ     string
		orderID sql.NullInt64
		updated int64
	)
	if err := row.Scan(&t.ID, &t.Number, &t.Capacity, &occ, &orderID, &t.Version, &updated); err != nil {
		return model.Table{}, err
	}
	t.Occupancy = model.Occupancy(occ)
	t.OrderID = idPtr(orderID)
	t.UpdatedAt = fromMillis(updated)
	return t, nil
}

// CreateTx inserts a FREE table.  It returns ErrConflict when the number
// is already used by another table.
func (r *TableRepo) CreateTx(ctx context.Context, tx *sql.Tx, number, capacity uint32, now time.Time) (model.Table, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO dining_tables (number, capacity, occupancy, order_id, version, updated_at) VALUES (?, ?, ?, NULL, 1, ?)`,
		number, capacity, string(model.OccupancyFree), toMillis(now),
	)
	if isDuplicateKey(err) {
		return model.Table{}, ErrConflict
	}
	if err != nil {
		return model.Table{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Table{}, err
	}
	return model.Table{
		ID:        uint64(id),
		Number:    number,
		Capacity:  capacity,
		Occupancy: model.OccupancyFree,
		Version:   1,
		UpdatedAt: fromMillis(toMillis(now)),
	}, nil
}

// GetTx loads a table inside tx.  With lock set the row stays locked
// until the transaction ends.  A missing table yields ErrNotFound.
func (r *TableRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64, lock bool) (model.Table, error) {
	q := `SELECT ` + tableColumns + ` FROM dining_tables WHERE id = ?` + r.store.lockClause(lock)
	t, err := scanTable(tx.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Table{}, ErrNotFound
	}
	return t, err
}

// UpdateOccupancyTx writes occupancy and the bound order of t, checking
// that the stored version still equals t.Version.  On success t is
// updated in place with the new version.
func (r *TableRepo) UpdateOccupancyTx(ctx context.Context, tx *sql.Tx, t *model.Table, occ model.Occupancy, orderID *uint64, now time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE dining_tables SET occupancy = ?, order_id = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`,
		string(occ), nullID(orderID), toMillis(now), t.ID, t.Version,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errStaleVersion
	}
	t.Occupancy = occ
	t.OrderID = orderID
	t.Version++
	t.UpdatedAt = fromMillis(toMillis(now))
	return nil
}

// ReferencedTx reports whether any order, active or not, points at the table.
func (r *TableRepo) ReferencedTx(ctx context.Context, tx *sql.Tx, id uint64) (bool, error) {
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE table_id = ?`, id).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteTx removes a table row.
func (r *TableRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM dining_tables WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns every table ordered by number.
func (r *TableRepo) List(ctx context.Context) ([]model.Table, error) {
	return r.list(ctx, r.store.db)
}

// ListTx is List inside a transaction.
func (r *TableRepo) ListTx(ctx context.Context, tx *sql.Tx) ([]model.Table, error) {
	return r.list(ctx, tx)
}

func (r *TableRepo) list(ctx context.Context, q querier) ([]model.Table, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+tableColumns+` FROM dining_tables ORDER BY number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Table{}
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
