package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/restaurant-floor/internal/model"
)

// NewLineItem is one requested product of a new order.
type NewLineItem struct {
	Product  model.ProductRef `json:"product"`
	Quantity uint32           `json:"quantity" validate:"required"`
}

// PlaceOrderInput describes an order to open.  TableID is required for
// dine-in orders and must be absent for deliveries.
type PlaceOrderInput struct {
	Channel model.Channel `json:"channel" validate:"required"`
	TableID *uint64       `json:"table_id,omitempty"`
	Items   []NewLineItem `json:"items" validate:"required,min=1,dive"`
}

func (in PlaceOrderInput) validate() error {
	if !in.Channel.Valid() {
		return fmt.Errorf("unknown channel %q: %w", in.Channel, model.ErrValidation)
	}
	switch {
	case in.Channel == model.ChannelDineIn && in.TableID == nil:
		return fmt.Errorf("dine-in order needs a table: %w", model.ErrValidation)
	case in.Channel == model.ChannelDelivery && in.TableID != nil:
		return fmt.Errorf("delivery order cannot take a table: %w", model.ErrValidation)
	}
	if len(in.Items) == 0 {
		return fmt.Errorf("order has no items: %w", model.ErrValidation)
	}
	for i, it := range in.Items {
		if !it.Product.Valid() {
			return fmt.Errorf("item %d: invalid product reference: %w", i, model.ErrValidation)
		}
		if it.Quantity == 0 {
			return fmt.Errorf("item %d: quantity must be positive: %w", i, model.ErrValidation)
		}
	}
	return nil
}

// PlaceOrder opens an order with all items PENDING.  A dine-in order
// occupies its table in the same transaction; a table that is not FREE
// rejects the whole order with ErrTableNotFree.
func (f *Floor) PlaceOrder(ctx context.Context, in PlaceOrderInput) (model.Order, error) {
	if err := in.validate(); err != nil {
		return model.Order{}, err
	}
	var out model.Order
	err := f.mutate(ctx, func(tx *sql.Tx, cs *changeSet) error {
		var table model.Table
		if in.Channel == model.ChannelDineIn {
			t, err := f.tables.GetTx(ctx, tx, *in.TableID, true)
			if err != nil {
				return err
			}
			if t.Occupancy != model.OccupancyFree {
				return fmt.Errorf("table %d is %s: %w", t.ID, t.Occupancy, model.ErrTableNotFree)
			}
			table = t
		}

		o := model.Order{Channel: in.Channel, TableID: in.TableID, State: model.OrderPending}
		if err := f.orders.CreateTx(ctx, tx, &o, cs.at); err != nil {
			return err
		}
		items := make([]model.LineItem, len(in.Items))
		for i, it := range in.Items {
			items[i] = model.LineItem{Product: it.Product, Quantity: it.Quantity, State: model.ItemPending}
		}
		if err := f.items.CreateBulkTx(ctx, tx, o.ID, items, cs.at); err != nil {
			return err
		}
		cs.order(o)
		for _, li := range items {
			cs.item(li)
		}
		if in.Channel == model.ChannelDineIn {
			if err := f.occupyTx(ctx, tx, cs, &table, o.ID); err != nil {
				return err
			}
		}
		o.LineItems = items
		out = o
		return nil
	})
	return out, err
}

// recomputeTx applies the completion rule to a locked order against the
// full line item set visible in tx.
func (f *Floor) recomputeTx(ctx context.Context, tx *sql.Tx, cs *changeSet, o *model.Order) error {
	if o.State.Terminal() {
		return nil
	}
	items, err := f.items.ListByOrderTx(ctx, tx, o.ID)
	if err != nil {
		return err
	}
	o.LineItems = items
	if !model.AllDelivered(items) {
		return nil
	}
	return f.deliverTx(ctx, tx, cs, o)
}

// deliverTx moves a locked order into DELIVERED and releases its table.
func (f *Floor) deliverTx(ctx context.Context, tx *sql.Tx, cs *changeSet, o *model.Order) error {
	at := cs.at
	o.State = model.OrderDelivered
	o.DeliveredAt = &at
	if err := f.orders.UpdateTx(ctx, tx, o, cs.at); err != nil {
		return casErr(err)
	}
	cs.order(*o)
	return f.releaseBoundTx(ctx, tx, cs, *o)
}

// MarkReadyForPickup flags a pending dine-in order as ready.
func (f *Floor) MarkReadyForPickup(ctx context.Context, orderID, expectedVersion uint64) (model.Order, error) {
	return f.transition(ctx, orderID, expectedVersion, model.OrderReadyForPickup)
}

// MarkEnRoute flags a pending delivery order as handed to the courier.
func (f *Floor) MarkEnRoute(ctx context.Context, orderID, expectedVersion uint64) (model.Order, error) {
	return f.transition(ctx, orderID, expectedVersion, model.OrderEnRoute)
}

// MarkDelivered closes an order by hand.  Items not yet delivered are
// marked DELIVERED with it, and a dine-in order's table is released.
func (f *Floor) MarkDelivered(ctx context.Context, orderID, expectedVersion uint64) (model.Order, error) {
	return f.transition(ctx, orderID, expectedVersion, model.OrderDelivered)
}

// transition performs a staff-triggered order move.  An order already in
// target is returned unchanged without a version check, so retries of a
// successful call converge.
func (f *Floor) transition(ctx context.Context, orderID, expectedVersion uint64, target model.OrderState) (model.Order, error) {
	var out model.Order
	err := f.mutate(ctx, func(tx *sql.Tx, cs *changeSet) error {
		o, err := f.orders.GetTx(ctx, tx, orderID, true)
		if err != nil {
			return err
		}
		if o.State != target {
			if err := checkVersion(o, expectedVersion); err != nil {
				return err
			}
		}
		changed, err := model.ManualTransition(o, target)
		if err != nil {
			return err
		}
		items, err := f.items.ListByOrderTx(ctx, tx, o.ID)
		if err != nil {
			return err
		}
		if changed {
			if target == model.OrderDelivered {
				for i := range items {
					li := &items[i]
					if li.State == model.ItemDelivered {
						continue
					}
					li.State = model.ItemDelivered
					if err := f.items.UpdateTx(ctx, tx, li, cs.at); err != nil {
						return casErr(err)
					}
					cs.item(*li)
				}
				if err := f.deliverTx(ctx, tx, cs, &o); err != nil {
					return err
				}
			} else {
				o.State = target
				if err := f.orders.UpdateTx(ctx, tx, &o, cs.at); err != nil {
					return casErr(err)
				}
				cs.order(o)
			}
		}
		o.LineItems = items
		out = o
		return nil
	})
	return out, err
}
