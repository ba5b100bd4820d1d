package feed

import (
	"sort"
	"time"

	"github.com/iliyamo/restaurant-floor/internal/model"
)

// OrderSummary is the part of an order the kitchen display needs.
type OrderSummary struct {
	ID        uint64           `json:"id"`
	Channel   model.Channel    `json:"channel"`
	TableID   *uint64          `json:"table_id,omitempty"`
	State     model.OrderState `json:"state"`
	CreatedAt time.Time        `json:"created_at"`
}

// KitchenEntry is one line of the kitchen queue.
type KitchenEntry struct {
	Item  model.LineItem `json:"line_item"`
	Order OrderSummary   `json:"order"`
}

// KitchenQueue lists the line items of every known, undelivered order.
// Entries sort by item state (PENDING, IN_PREPARATION, DELIVERED), then
// by order age, order id and item id.  Items whose order has not reached
// the replica yet are left out until it arrives.
func KitchenQueue(r *Replica) []KitchenEntry {
	out := make([]KitchenEntry, 0, len(r.items))
	for _, li := range r.items {
		o, ok := r.orders[li.OrderID]
		if !ok || o.State == model.OrderDelivered {
			continue
		}
		out = append(out, KitchenEntry{
			Item: li,
			Order: OrderSummary{
				ID:        o.ID,
				Channel:   o.Channel,
				TableID:   o.TableID,
				State:     o.State,
				CreatedAt: o.CreatedAt,
			},
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if ra, rb := a.Item.State.Rank(), b.Item.State.Rank(); ra != rb {
			return ra < rb
		}
		if !a.Order.CreatedAt.Equal(b.Order.CreatedAt) {
			return a.Order.CreatedAt.Before(b.Order.CreatedAt)
		}
		if a.Order.ID != b.Order.ID {
			return a.Order.ID < b.Order.ID
		}
		return a.Item.ID < b.Item.ID
	})
	return out
}
