package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/restaurant-floor/internal/model"
)

// OrderRepo provides data access to the orders table.  Line items are
// stored separately by LineItemRepo; methods here never populate
// model.Order.LineItems.
type OrderRepo struct {
	store *Store
}

// NewOrderRepo returns a new OrderRepo bound to the given store.
func NewOrderRepo(store *Store) *OrderRepo { return &OrderRepo{store: store} }

const orderColumns = `id, channel, table_id, state, created_at, delivered_at, version, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (model.Order, error) {
	var (
		o         model.Order
		channel   string
		state     string
		tableID   sql.NullInt64
		created   int64
		delivered sql.NullInt64
		updated   int64
	)
	if err := row.Scan(&o.ID, &channel, &tableID, &state, &created, &delivered, &o.Version, &updated); err != nil {
		return model.Order{}, err
	}
	o.Channel = model.Channel(channel)
	o.State = model.OrderState(state)
	o.TableID = idPtr(tableID)
	o.CreatedAt = fromMillis(created)
	o.DeliveredAt = timePtr(delivered)
	o.UpdatedAt = fromMillis(updated)
	return o, nil
}

// CreateTx inserts o with version 1 and populates its generated ID,
// version and timestamps.  The caller must commit or roll back tx.
func (r *OrderRepo) CreateTx(ctx context.Context, tx *sql.Tx, o *model.Order, now time.Time) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO orders (channel, table_id, state, created_at, delivered_at, version, updated_at) VALUES (?, ?, ?, ?, NULL, 1, ?)`,
		string(o.Channel), nullID(o.TableID), string(o.State), toMillis(now), toMillis(now),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = uint64(id)
	o.Version = 1
	o.CreatedAt = fromMillis(toMillis(now))
	o.UpdatedAt = o.CreatedAt
	o.DeliveredAt = nil
	return nil
}

// GetTx loads an order inside tx, locking the row when lock is set.
// Locking the order row is what serialises concurrent writers of the
// same order's line items.  A missing order yields ErrNotFound.
func (r *OrderRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64, lock bool) (model.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE id = ?` + r.store.lockClause(lock)
	o, err := scanOrder(tx.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Order{}, ErrNotFound
	}
	return o, err
}

// UpdateTx writes state, table binding and delivered_at of o if the
// stored version still equals o.Version, then advances o.Version.
func (r *OrderRepo) UpdateTx(ctx context.Context, tx *sql.Tx, o *model.Order, now time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET state = ?, table_id = ?, delivered_at = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`,
		string(o.State), nullID(o.TableID), nullMillis(o.DeliveredAt), toMillis(now), o.ID, o.Version,
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
	o.Version++
	o.UpdatedAt = fromMillis(toMillis(now))
	return nil
}

// ListTx returns orders by creation time.  With activeOnly set,
// delivered orders are skipped.
func (r *OrderRepo) ListTx(ctx context.Context, tx *sql.Tx, activeOnly bool) ([]model.Order, error) {
	return r.list(ctx, tx, activeOnly)
}

func (r *OrderRepo) list(ctx context.Context, q querier, activeOnly bool) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders`
	var args []any
	if activeOnly {
		query += ` WHERE state <> ?`
		args = append(args, string(model.OrderDelivered))
	}
	query += ` ORDER BY created_at, id`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
