package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/restaurant-floor/internal/model"
)

// SetLineItemState moves one line item to state and re-evaluates the
// parent order in the same transaction.  The order row is locked before
// the item, so concurrent writers of one order's items run one after
// another and exactly one of them sees the last item delivered.
// Setting the current state is a no-op.
func (f *Floor) SetLineItemState(ctx context.Context, orderID, itemID uint64, state model.ItemState) (model.LineItem, error) {
	if !state.Valid() {
		return model.LineItem{}, fmt.Errorf("unknown item state %q: %w", state, model.ErrInvalidTransition)
	}
	var out model.LineItem
	err := f.mutate(ctx, func(tx *sql.Tx, cs *changeSet) error {
		o, err := f.orders.GetTx(ctx, tx, orderID, true)
		if err != nil {
			return err
		}
		if o.State.Terminal() {
			return fmt.Errorf("order %d is delivered: %w", o.ID, model.ErrInvalidTransition)
		}
		li, err := f.items.GetTx(ctx, tx, orderID, itemID, true)
		if err != nil {
			return err
		}
		if li.State == state {
			out = li
			return nil
		}
		li.State = state
		if err := f.items.UpdateTx(ctx, tx, &li, cs.at); err != nil {
			return casErr(err)
		}
		cs.item(li)
		out = li
		return f.recomputeTx(ctx, tx, cs, &o)
	})
	return out, err
}

// RateLineItem stores a guest rating (1 to 5) on a delivered item.  It
// remains possible after the order itself is closed.
func (f *Floor) RateLineItem(ctx context.Context, orderID, itemID uint64, rating uint8) (model.LineItem, error) {
	if rating < 1 || rating > 5 {
		return model.LineItem{}, fmt.Errorf("rating %d outside 1..5: %w", rating, model.ErrValidation)
	}
	var out model.LineItem
	err := f.mutate(ctx, func(tx *sql.Tx, cs *changeSet) error {
		if _, err := f.orders.GetTx(ctx, tx, orderID, true); err != nil {
			return err
		}
		li, err := f.items.GetTx(ctx, tx, orderID, itemID, true)
		if err != nil {
			return err
		}
		if li.State != model.ItemDelivered {
			return fmt.Errorf("line item %d is %s: %w", li.ID, li.State, model.ErrInvalidTransition)
		}
		if li.Rating != nil && *li.Rating == rating {
			out = li
			return nil
		}
		li.Rating = &rating
		if err := f.items.UpdateTx(ctx, tx, &li, cs.at); err != nil {
			return casErr(err)
		}
		cs.item(li)
		out = li
		return nil
	})
	return out, err
}
