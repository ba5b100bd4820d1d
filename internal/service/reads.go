package service

import (
	"context"
	"database/sql"

	"github.com/iliyamo/restaurant-floor/internal/feed"
	"github.com/iliyamo/restaurant-floor/internal/model"
)

// Snapshot returns a consistent read of the whole floor.
func (f *Floor) Snapshot(ctx context.Context) (model.Snapshot, error) {
	return f.store.Snapshot(ctx)
}

func (f *Floor) replica(ctx context.Context) (*feed.Replica, error) {
	snap, err := f.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	r := feed.NewReplica()
	r.Load(snap)
	return r, nil
}

// Orders lists orders with their line items, oldest first.  With
// activeOnly set delivered orders are left out.
func (f *Floor) Orders(ctx context.Context, activeOnly bool) ([]model.Order, error) {
	var out []model.Order
	err := f.store.WithTx(ctx, func(tx *sql.Tx) error {
		orders, err := f.orders.ListTx(ctx, tx, activeOnly)
		if err != nil {
			return err
		}
		items, err := f.items.ListTx(ctx, tx)
		if err != nil {
			return err
		}
		byOrder := make(map[uint64][]model.LineItem, len(orders))
		for _, li := range items {
			byOrder[li.OrderID] = append(byOrder[li.OrderID], li)
		}
		for i := range orders {
			orders[i].LineItems = byOrder[orders[i].ID]
		}
		out = orders
		return nil
	})
	return out, err
}

// Tables lists every table by number.
func (f *Floor) Tables(ctx context.Context) ([]model.Table, error) {
	return f.tables.List(ctx)
}

// KitchenQueue derives the kitchen view from the authoritative store.
func (f *Floor) KitchenQueue(ctx context.Context) ([]feed.KitchenEntry, error) {
	r, err := f.replica(ctx)
	if err != nil {
		return nil, err
	}
	return feed.KitchenQueue(r), nil
}
