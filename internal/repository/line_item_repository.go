package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/restaurant-floor/internal/model"
)

// LineItemRepo provides data access to the line_items table.
type LineItemRepo struct {
	store *Store
}

// NewLineItemRepo returns a LineItemRepo bound to the given store.
func NewLineItemRepo(store *Store) *LineItemRepo { return &LineItemRepo{store: store} }

const lineItemColumns = `id, order_id, product_kind, product_id, quantity, state, rating, version, updated_at`

func scanLineItem(row interface{ Scan(...any) error }) (model.LineItem, error) {
	var (
		li      model.LineItem
		kind    string
		state   string
		rating  sql.NullInt64
		updated int64
	)
	if err := row.Scan(&li.ID, &li.OrderID, &kind, &li.Product.ID, &li.Quantity, &state, &rating, &li.Version, &updated); err != nil {
		return model.LineItem{}, err
	}
	li.Product.Kind = model.ProductKind(kind)
	li.State = model.ItemState(state)
	if rating.Valid {
		v := uint8(rating.Int64)
		li.Rating = &v
	}
	li.UpdatedAt = fromMillis(updated)
	return li, nil
}

// CreateBulkTx inserts the given items for orderID, one statement per
// row so each generated ID can be read back.  Items are modified in
// place.  Passing an empty slice has no effect and returns nil.
func (r *LineItemRepo) CreateBulkTx(ctx context.Context, tx *sql.Tx, orderID uint64, items []model.LineItem, now time.Time) error {
	for i := range items {
		li := &items[i]
		res, err := tx.ExecContext(ctx,
			`INSERT INTO line_items (order_id, product_kind, product_id, quantity, state, rating, version, updated_at) VALUES (?, ?, ?, ?, ?, NULL, 1, ?)`,
			orderID, string(li.Product.Kind), li.Product.ID, li.Quantity, string(li.State), toMillis(now),
		)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		li.ID = uint64(id)
		li.OrderID = orderID
		li.Version = 1
		li.Rating = nil
		li.UpdatedAt = fromMillis(toMillis(now))
	}
	return nil
}

// GetTx loads one line item of orderID.  An item that does not exist
// or belongs to another order yields ErrNotFound.
func (r *LineItemRepo) GetTx(ctx context.Context, tx *sql.Tx, orderID, id uint64, lock bool) (model.LineItem, error) {
	q := `SELECT ` + lineItemColumns + ` FROM line_items WHERE id = ? AND order_id = ?` + r.store.lockClause(lock)
	li, err := scanLineItem(tx.QueryRowContext(ctx, q, id, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.LineItem{}, ErrNotFound
	}
	return li, err
}

// ListByOrderTx returns the full current set of an order's items.  The
// completion rule must be evaluated against this, never a cached count.
func (r *LineItemRepo) ListByOrderTx(ctx context.Context, tx *sql.Tx, orderID uint64) ([]model.LineItem, error) {
	return r.list(ctx, tx, `WHERE order_id = ?`, orderID)
}

// ListTx returns every line item.
func (r *LineItemRepo) ListTx(ctx context.Context, tx *sql.Tx) ([]model.LineItem, error) {
	return r.list(ctx, tx, ``)
}

func (r *LineItemRepo) list(ctx context.Context, q querier, where string, args ...any) ([]model.LineItem, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+lineItemColumns+` FROM line_items `+where+` ORDER BY order_id, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.LineItem{}
	for rows.Next() {
		li, err := scanLineItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, li)
	}
	return out, rows.Err()
}

// UpdateTx writes state and rating of li if the stored version still
// equals li.Version, then advances li.Version.
func (r *LineItemRepo) UpdateTx(ctx context.Context, tx *sql.Tx, li *model.LineItem, now time.Time) error {
	var rating sql.NullInt64
	if li.Rating != nil {
		rating = sql.NullInt64{Int64: int64(*li.Rating), Valid: true}
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE line_items SET state = ?, rating = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`,
		string(li.State), rating, toMillis(now), li.ID, li.Version,
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
	li.Version++
	li.UpdatedAt = fromMillis(toMillis(now))
	return nil
}
