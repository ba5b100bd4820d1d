// Package feed keeps observer-side replicas of the floor consistent with
// the server.  A Replica is a plain keyed store that applies change events
// with per-entity version filtering; a Projector owns one Replica in a
// goroutine and handles snapshot seeding and resync.
package feed

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/iliyamo/restaurant-floor/internal/model"
)

type entityKey struct {
	entity model.EntityType
	id     uint64
}

// Replica is a non-authoritative copy of tables, orders and line items.
// It is not safe for concurrent use; Projector serialises access.
//
// Versioning: for every entity id the replica remembers the highest
// version it applied, including the version of a delete (tombstone).
// An upsert whose version is not strictly newer is discarded, which
// makes Apply idempotent and insensitive to re-ordering.  Unversioned
// events (version 0) fall back to last-applied-wins.
type Replica struct {
	tables   map[uint64]model.Table
	orders   map[uint64]model.Order
	items    map[uint64]model.LineItem
	versions map[entityKey]uint64
}

// NewReplica returns an empty replica.
func NewReplica() *Replica {
	r := &Replica{}
	r.reset()
	return r
}

func (r *Replica) reset() {
	r.tables = make(map[uint64]model.Table)
	r.orders = make(map[uint64]model.Order)
	r.items = make(map[uint64]model.LineItem)
	r.versions = make(map[entityKey]uint64)
}

// Load replaces the whole replica with snap.  Tombstones of entities
// the snapshot does not contain are kept, so a redelivered upsert from
// before the delete stays discarded.
func (r *Replica) Load(snap model.Snapshot) {
	dead := r.tombstones()
	r.reset()
	for _, t := range snap.Tables {
		r.tables[t.ID] = t
		r.versions[entityKey{model.EntityTable, t.ID}] = t.Version
	}
	for _, o := range snap.Orders {
		o.LineItems = nil
		r.orders[o.ID] = o
		r.versions[entityKey{model.EntityOrder, o.ID}] = o.Version
	}
	for _, li := range snap.LineItems {
		r.items[li.ID] = li
		r.versions[entityKey{model.EntityLineItem, li.ID}] = li.Version
	}
	for k, v := range dead {
		if _, ok := r.versions[k]; !ok {
			r.versions[k] = v
		}
	}
}

// clear empties the replica but keeps its tombstones.
func (r *Replica) clear() {
	dead := r.tombstones()
	r.reset()
	r.versions = dead
}

// tombstones returns the held versions of entities no longer present.
func (r *Replica) tombstones() map[entityKey]uint64 {
	out := make(map[entityKey]uint64)
	for k, v := range r.versions {
		if !r.has(k) {
			out[k] = v
		}
	}
	return out
}

func (r *Replica) has(k entityKey) bool {
	var ok bool
	switch k.entity {
	case model.EntityTable:
		_, ok = r.tables[k.id]
	case model.EntityOrder:
		_, ok = r.orders[k.id]
	case model.EntityLineItem:
		_, ok = r.items[k.id]
	}
	return ok
}

// Version returns the version held for an entity, zero when unknown.
func (r *Replica) Version(entity model.EntityType, id uint64) uint64 {
	return r.versions[entityKey{entity, id}]
}

// Apply folds ev into the replica.  It reports whether the replica
// changed.  Stale or duplicate events are not errors; they return
// false.  Malformed events return an error and leave the replica as is.
func (r *Replica) Apply(ev model.ChangeEvent) (bool, error) {
	if !ev.Entity.Valid() {
		return false, fmt.Errorf("unknown entity type %q", ev.Entity)
	}
	key := entityKey{ev.Entity, ev.EntityID}
	held, seen := r.versions[key]
	if ev.Version != 0 && seen && ev.Version <= held {
		return false, nil
	}

	switch ev.Kind {
	case model.ChangeUpsert:
		if err := r.upsert(ev); err != nil {
			return false, err
		}
	case model.ChangeDelete:
		existed := r.remove(ev.Entity, ev.EntityID)
		if ev.Version == 0 {
			// nothing to guard against without a version
			return existed, nil
		}
	default:
		return false, fmt.Errorf("unknown change kind %q", ev.Kind)
	}
	if ev.Version > held {
		r.versions[key] = ev.Version
	}
	return true, nil
}

func (r *Replica) upsert(ev model.ChangeEvent) error {
	switch ev.Entity {
	case model.EntityTable:
		var t model.Table
		if err := json.Unmarshal(ev.Snapshot, &t); err != nil {
			return fmt.Errorf("decode table %d: %w", ev.EntityID, err)
		}
		t.ID = ev.EntityID
		r.tables[t.ID] = t
	case model.EntityOrder:
		var o model.Order
		if err := json.Unmarshal(ev.Snapshot, &o); err != nil {
			return fmt.Errorf("decode order %d: %w", ev.EntityID, err)
		}
		o.ID = ev.EntityID
		o.LineItems = nil
		r.orders[o.ID] = o
	case model.EntityLineItem:
		var li model.LineItem
		if err := json.Unmarshal(ev.Snapshot, &li); err != nil {
			return fmt.Errorf("decode line item %d: %w", ev.EntityID, err)
		}
		li.ID = ev.EntityID
		r.items[li.ID] = li
	}
	return nil
}

func (r *Replica) remove(entity model.EntityType, id uint64) bool {
	switch entity {
	case model.EntityTable:
		_, ok := r.tables[id]
		delete(r.tables, id)
		return ok
	case model.EntityOrder:
		_, ok := r.orders[id]
		delete(r.orders, id)
		return ok
	case model.EntityLineItem:
		_, ok := r.items[id]
		delete(r.items, id)
		return ok
	}
	return false
}

// Tables returns every table ordered by number.
func (r *Replica) Tables() []model.Table {
	out := make([]model.Table, 0, len(r.tables))
	for _, t := range r.tables {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Number != out[j].Number {
			return out[i].Number < out[j].Number
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Order returns one order with its known line items attached.
func (r *Replica) Order(id uint64) (model.Order, bool) {
	o, ok := r.orders[id]
	if !ok {
		return model.Order{}, false
	}
	o.LineItems = r.itemsOf(id)
	return o, true
}

// Orders returns every order by creation time, with line items attached.
func (r *Replica) Orders() []model.Order {
	byOrder := make(map[uint64][]model.LineItem, len(r.orders))
	for _, li := range r.items {
		byOrder[li.OrderID] = append(byOrder[li.OrderID], li)
	}
	out := make([]model.Order, 0, len(r.orders))
	for _, o := range r.orders {
		items := byOrder[o.ID]
		sortItems(items)
		o.LineItems = items
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return orderBefore(out[i], out[j]) })
	return out
}

// LineItems returns every line item, including items whose order is
// not (yet) known to the replica.
func (r *Replica) LineItems() []model.LineItem {
	out := make([]model.LineItem, 0, len(r.items))
	for _, li := range r.items {
		out = append(out, li)
	}
	sortItems(out)
	return out
}

// Snapshot exports the replica in snapshot form.
func (r *Replica) Snapshot() model.Snapshot {
	orders := make([]model.Order, 0, len(r.orders))
	for _, o := range r.orders {
		orders = append(orders, o)
	}
	sort.Slice(orders, func(i, j int) bool { return orderBefore(orders[i], orders[j]) })
	return model.Snapshot{Tables: r.Tables(), Orders: orders, LineItems: r.LineItems()}
}

func (r *Replica) itemsOf(orderID uint64) []model.LineItem {
	var out []model.LineItem
	for _, li := range r.items {
		if li.OrderID == orderID {
			out = append(out, li)
		}
	}
	sortItems(out)
	return out
}

func sortItems(items []model.LineItem) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].OrderID != items[j].OrderID {
			return items[i].OrderID < items[j].OrderID
		}
		return items[i].ID < items[j].ID
	})
}

func orderBefore(a, b model.Order) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
