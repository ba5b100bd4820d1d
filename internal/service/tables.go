package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/restaurant-floor/internal/model"
	"github.com/iliyamo/restaurant-floor/internal/repository"
)

// occupyTx binds a locked FREE table to orderID.
func (f *Floor) occupyTx(ctx context.Context, tx *sql.Tx, cs *changeSet, t *model.Table, orderID uint64) error {
	if t.Occupancy != model.OccupancyFree {
		return fmt.Errorf("table %d is %s: %w", t.ID, t.Occupancy, model.ErrTableNotFree)
	}
	if err := f.tables.UpdateOccupancyTx(ctx, tx, t, model.OccupancyOccupied, &orderID, cs.at); err != nil {
		return casErr(err)
	}
	cs.table(*t)
	return nil
}

// releaseTx frees a locked table.  A FREE table is left untouched and
// produces no event.
func (f *Floor) releaseTx(ctx context.Context, tx *sql.Tx, cs *changeSet, t *model.Table) error {
	if t.Occupancy == model.OccupancyFree {
		return nil
	}
	if err := f.tables.UpdateOccupancyTx(ctx, tx, t, model.OccupancyFree, nil, cs.at); err != nil {
		return casErr(err)
	}
	cs.table(*t)
	return nil
}

// releaseBoundTx frees the table of a finished dine-in order, provided
// the table is still bound to that order.
func (f *Floor) releaseBoundTx(ctx context.Context, tx *sql.Tx, cs *changeSet, o model.Order) error {
	if o.Channel != model.ChannelDineIn || o.TableID == nil {
		return nil
	}
	t, err := f.tables.GetTx(ctx, tx, *o.TableID, true)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !t.BoundTo(o.ID) {
		return nil
	}
	return f.releaseTx(ctx, tx, cs, &t)
}

// OccupyTable seats an active dine-in order at tableID.  If the order is
// seated elsewhere it moves: the new table is occupied, the old one
// released and the order rebound in one transaction.  Seating an order
// at the table it already holds is a no-op.
func (f *Floor) OccupyTable(ctx context.Context, tableID, orderID uint64) (model.Table, error) {
	var out model.Table
	err := f.mutate(ctx, func(tx *sql.Tx, cs *changeSet) error {
		o, err := f.orders.GetTx(ctx, tx, orderID, true)
		if err != nil {
			return err
		}
		if o.Channel != model.ChannelDineIn {
			return fmt.Errorf("order %d is %s: %w", o.ID, o.Channel, model.ErrInvalidTransition)
		}
		if !o.Active() {
			return fmt.Errorf("order %d is delivered: %w", o.ID, model.ErrInvalidTransition)
		}
		t, err := f.tables.GetTx(ctx, tx, tableID, true)
		if err != nil {
			return err
		}
		if t.BoundTo(o.ID) {
			out = t
			return nil
		}
		if err := f.occupyTx(ctx, tx, cs, &t, o.ID); err != nil {
			return err
		}
		if o.TableID != nil && *o.TableID != tableID {
			if err := f.releaseBoundTx(ctx, tx, cs, o); err != nil {
				return err
			}
		}
		o.TableID = &t.ID
		if err := f.orders.UpdateTx(ctx, tx, &o, cs.at); err != nil {
			return casErr(err)
		}
		cs.order(o)
		out = t
		return nil
	})
	return out, err
}

// ReleaseTable frees tableID.  A table still bound to an active order
// cannot be released by hand; it frees itself when the order is
// delivered.  Releasing a FREE table is a no-op.
func (f *Floor) ReleaseTable(ctx context.Context, tableID uint64) (model.Table, error) {
	var out model.Table
	err := f.mutate(ctx, func(tx *sql.Tx, cs *changeSet) error {
		t, err := f.tables.GetTx(ctx, tx, tableID, true)
		if err != nil {
			return err
		}
		if t.Occupancy != model.OccupancyFree && t.OrderID != nil {
			o, err := f.orders.GetTx(ctx, tx, *t.OrderID, false)
			switch {
			case err == nil && o.Active():
				return fmt.Errorf("table %d holds active order %d: %w", t.ID, o.ID, model.ErrInvalidTransition)
			case err != nil && !errors.Is(err, repository.ErrNotFound):
				return err
			}
		}
		if err := f.releaseTx(ctx, tx, cs, &t); err != nil {
			return err
		}
		out = t
		return nil
	})
	return out, err
}

// ReserveTable marks a FREE table RESERVED.  Reserving a RESERVED table
// is a no-op; any other state yields ErrTableNotFree.
func (f *Floor) ReserveTable(ctx context.Context, tableID uint64) (model.Table, error) {
	var out model.Table
	err := f.mutate(ctx, func(tx *sql.Tx, cs *changeSet) error {
		t, err := f.tables.GetTx(ctx, tx, tableID, true)
		if err != nil {
			return err
		}
		switch t.Occupancy {
		case model.OccupancyReserved:
			out = t
			return nil
		case model.OccupancyFree:
		default:
			return fmt.Errorf("table %d is %s: %w", t.ID, t.Occupancy, model.ErrTableNotFree)
		}
		if err := f.tables.UpdateOccupancyTx(ctx, tx, &t, model.OccupancyReserved, nil, cs.at); err != nil {
			return casErr(err)
		}
		cs.table(t)
		out = t
		return nil
	})
	return out, err
}

// CreateTable adds a FREE table to the floor.
func (f *Floor) CreateTable(ctx context.Context, number, capacity uint32) (model.Table, error) {
	if number == 0 || capacity == 0 {
		return model.Table{}, fmt.Errorf("table number and capacity must be positive: %w", model.ErrValidation)
	}
	var out model.Table
	err := f.mutate(ctx, func(tx *sql.Tx, cs *changeSet) error {
		t, err := f.tables.CreateTx(ctx, tx, number, capacity, cs.at)
		if err != nil {
			return err
		}
		cs.table(t)
		out = t
		return nil
	})
	return out, err
}

// DeleteTable removes a table no order has ever referenced.  The delete
// event carries a tombstone version one past the last written version.
func (f *Floor) DeleteTable(ctx context.Context, tableID uint64) error {
	return f.mutate(ctx, func(tx *sql.Tx, cs *changeSet) error {
		t, err := f.tables.GetTx(ctx, tx, tableID, true)
		if err != nil {
			return err
		}
		if t.Occupancy == model.OccupancyOccupied {
			return fmt.Errorf("table %d is occupied: %w", t.ID, repository.ErrConflict)
		}
		referenced, err := f.tables.ReferencedTx(ctx, tx, t.ID)
		if err != nil {
			return err
		}
		if referenced {
			return fmt.Errorf("table %d is referenced by orders: %w", t.ID, repository.ErrConflict)
		}
		if err := f.tables.DeleteTx(ctx, tx, t.ID); err != nil {
			return err
		}
		cs.deleted(model.EntityTable, t.ID, t.Version+1)
		return nil
	})
}
