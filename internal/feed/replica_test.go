package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/restaurant-floor/internal/model"
)

var t0 = time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)

func tableAt(id, version uint64, occ model.Occupancy) model.Table {
	return model.Table{ID: id, Number: uint32(id), Capacity: 4, Occupancy: occ, Version: version}
}

func TestReplica_VersionFiltering(t *testing.T) {
	r := NewReplica()

	changed, err := r.Apply(model.TableUpserted(tableAt(1, 2, model.OccupancyOccupied), t0))
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = r.Apply(model.TableUpserted(tableAt(1, 1, model.OccupancyFree), t0))
	require.NoError(t, err)
	assert.False(t, changed, "older version is discarded")

	changed, err = r.Apply(model.TableUpserted(tableAt(1, 2, model.OccupancyReserved), t0))
	require.NoError(t, err)
	assert.False(t, changed, "equal version is discarded")

	require.Len(t, r.Tables(), 1)
	assert.Equal(t, model.OccupancyOccupied, r.Tables()[0].Occupancy)
	assert.Equal(t, uint64(2), r.Version(model.EntityTable, 1))
}

func TestReplica_Idempotent(t *testing.T) {
	events := []model.ChangeEvent{
		model.OrderUpserted(model.Order{ID: 1, Channel: model.ChannelDelivery, State: model.OrderPending, Version: 1, CreatedAt: t0}, t0),
		model.LineItemUpserted(model.LineItem{ID: 10, OrderID: 1, State: model.ItemPending, Quantity: 1, Version: 1}, t0),
		model.LineItemUpserted(model.LineItem{ID: 10, OrderID: 1, State: model.ItemDelivered, Quantity: 1, Version: 2}, t0),
	}
	once := NewReplica()
	for _, ev := range events {
		_, err := once.Apply(ev)
		require.NoError(t, err)
	}
	twice := NewReplica()
	for _, ev := range append(events, events...) {
		_, err := twice.Apply(ev)
		require.NoError(t, err)
	}
	assert.Equal(t, once.Snapshot(), twice.Snapshot())
}

func TestReplica_ReorderedEventsConverge(t *testing.T) {
	v1 := model.TableUpserted(tableAt(1, 1, model.OccupancyFree), t0)
	v2 := model.TableUpserted(tableAt(1, 2, model.OccupancyOccupied), t0)
	v3 := model.TableUpserted(tableAt(1, 3, model.OccupancyFree), t0)

	inOrder := NewReplica()
	for _, ev := range []model.ChangeEvent{v1, v2, v3} {
		_, err := inOrder.Apply(ev)
		require.NoError(t, err)
	}
	shuffled := NewReplica()
	for _, ev := range []model.ChangeEvent{v3, v1, v2} {
		_, err := shuffled.Apply(ev)
		require.NoError(t, err)
	}
	assert.Equal(t, inOrder.Tables(), shuffled.Tables())
}

func TestReplica_Tombstone(t *testing.T) {
	r := NewReplica()
	_, err := r.Apply(model.TableUpserted(tableAt(1, 1, model.OccupancyFree), t0))
	require.NoError(t, err)

	changed, err := r.Apply(model.Deleted(model.EntityTable, 1, 2, t0))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Empty(t, r.Tables())

	changed, err = r.Apply(model.TableUpserted(tableAt(1, 1, model.OccupancyFree), t0))
	require.NoError(t, err)
	assert.False(t, changed, "a late upsert cannot resurrect a deleted row")
	assert.Empty(t, r.Tables())
}

func TestReplica_LoadKeepsTombstones(t *testing.T) {
	r := NewReplica()
	_, err := r.Apply(model.TableUpserted(tableAt(1, 1, model.OccupancyFree), t0))
	require.NoError(t, err)
	_, err = r.Apply(model.Deleted(model.EntityTable, 1, 2, t0))
	require.NoError(t, err)

	r.Load(model.Snapshot{Tables: []model.Table{tableAt(2, 1, model.OccupancyFree)}})
	assert.Equal(t, uint64(2), r.Version(model.EntityTable, 1))

	changed, err := r.Apply(model.TableUpserted(tableAt(1, 1, model.OccupancyFree), t0))
	require.NoError(t, err)
	assert.False(t, changed, "redelivered upsert after a resync stays deleted")
	require.Len(t, r.Tables(), 1)
	assert.Equal(t, uint64(2), r.Tables()[0].ID)

	r.Load(model.Snapshot{Tables: []model.Table{tableAt(1, 5, model.OccupancyFree)}})
	assert.Equal(t, uint64(5), r.Version(model.EntityTable, 1), "a snapshot row overrides the tombstone")
	assert.Zero(t, r.Version(model.EntityTable, 2), "live rows missing from a snapshot are forgotten")
}

func TestReplica_UnversionedLastWins(t *testing.T) {
	r := NewReplica()
	_, err := r.Apply(model.TableUpserted(tableAt(1, 5, model.OccupancyOccupied), t0))
	require.NoError(t, err)

	changed, err := r.Apply(model.TableUpserted(tableAt(1, 0, model.OccupancyFree), t0))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, model.OccupancyFree, r.Tables()[0].Occupancy)
	assert.Equal(t, uint64(5), r.Version(model.EntityTable, 1))
}

func TestReplica_Malformed(t *testing.T) {
	r := NewReplica()
	_, err := r.Apply(model.ChangeEvent{Kind: model.ChangeUpsert, Entity: "menu", EntityID: 1, Version: 1})
	assert.Error(t, err)

	_, err = r.Apply(model.ChangeEvent{Kind: model.ChangeUpsert, Entity: model.EntityTable, EntityID: 1, Version: 1, Snapshot: []byte("{")})
	assert.Error(t, err)
	assert.Zero(t, r.Version(model.EntityTable, 1))

	_, err = r.Apply(model.ChangeEvent{Kind: "PATCH", Entity: model.EntityTable, EntityID: 1, Version: 1})
	assert.Error(t, err)
}

func TestReplica_LoadReplaces(t *testing.T) {
	r := NewReplica()
	_, err := r.Apply(model.TableUpserted(tableAt(9, 1, model.OccupancyFree), t0))
	require.NoError(t, err)

	r.Load(model.Snapshot{
		Tables:    []model.Table{tableAt(1, 3, model.OccupancyFree)},
		Orders:    []model.Order{{ID: 2, Channel: model.ChannelDelivery, State: model.OrderPending, Version: 1}},
		LineItems: []model.LineItem{{ID: 5, OrderID: 2, State: model.ItemPending, Version: 4}},
	})
	require.Len(t, r.Tables(), 1)
	assert.Equal(t, uint64(1), r.Tables()[0].ID)
	assert.Equal(t, uint64(4), r.Version(model.EntityLineItem, 5))

	o, ok := r.Order(2)
	require.True(t, ok)
	require.Len(t, o.LineItems, 1)
	assert.Equal(t, uint64(5), o.LineItems[0].ID)
}
