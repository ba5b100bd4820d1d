package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestManualTransition(t *testing.T) {
	tests := []struct {
		name    string
		channel Channel
		from    OrderState
		to      OrderState
		changed bool
		wantErr bool
	}{
		{"dine-in ready", ChannelDineIn, OrderPending, OrderReadyForPickup, true, false},
		{"delivery en route", ChannelDelivery, OrderPending, OrderEnRoute, true, false},
		{"ready is dine-in only", ChannelDelivery, OrderPending, OrderReadyForPickup, false, true},
		{"en route is delivery only", ChannelDineIn, OrderPending, OrderEnRoute, false, true},
		{"deliver from pending", ChannelDineIn, OrderPending, OrderDelivered, true, false},
		{"deliver from ready", ChannelDineIn, OrderReadyForPickup, OrderDelivered, true, false},
		{"deliver from en route", ChannelDelivery, OrderEnRoute, OrderDelivered, true, false},
		{"same state converges", ChannelDelivery, OrderEnRoute, OrderEnRoute, false, false},
		{"delivered twice converges", ChannelDineIn, OrderDelivered, OrderDelivered, false, false},
		{"no way back from delivered", ChannelDineIn, OrderDelivered, OrderPending, false, true},
		{"no way back to pending", ChannelDineIn, OrderReadyForPickup, OrderPending, false, true},
		{"unknown target", ChannelDineIn, OrderPending, "COOKING", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changed, err := ManualTransition(Order{ID: 1, Channel: tt.channel, State: tt.from}, tt.to)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidTransition)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.changed, changed)
		})
	}
}

func TestAllDelivered(t *testing.T) {
	assert.False(t, AllDelivered(nil), "an empty order never completes")
	assert.False(t, AllDelivered([]LineItem{{State: ItemDelivered}, {State: ItemInPreparation}}))
	assert.True(t, AllDelivered([]LineItem{{State: ItemDelivered}, {State: ItemDelivered}}))
}

func TestItemStateRank(t *testing.T) {
	assert.Less(t, ItemPending.Rank(), ItemInPreparation.Rank())
	assert.Less(t, ItemInPreparation.Rank(), ItemDelivered.Rank())
	assert.False(t, ItemState("SERVED").Valid())
}

func TestOrderUpsertedStripsLineItems(t *testing.T) {
	ev := OrderUpserted(Order{ID: 3, Version: 2, LineItems: []LineItem{{ID: 1}}}, testTime)
	assert.Equal(t, EntityOrder, ev.Entity)
	assert.Equal(t, uint64(2), ev.Version)
	assert.NotContains(t, string(ev.Snapshot), "line_items")
}

func TestTableBoundTo(t *testing.T) {
	id := uint64(4)
	assert.True(t, Table{Occupancy: OccupancyOccupied, OrderID: &id}.BoundTo(4))
	assert.False(t, Table{Occupancy: OccupancyOccupied, OrderID: &id}.BoundTo(5))
	assert.False(t, Table{Occupancy: OccupancyFree}.BoundTo(4))
}
