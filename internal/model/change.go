package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EntityType names the aggregate a change event refers to.  Each type
// travels on its own logical channel of the change bus.
type EntityType string

const (
	EntityTable    EntityType = "table"
	EntityOrder    EntityType = "order"
	EntityLineItem EntityType = "line_item"
)

// AllEntities lists every entity type carried by the change feed.
var AllEntities = []EntityType{EntityTable, EntityOrder, EntityLineItem}

// Valid reports whether e is a known entity type.
func (e EntityType) Valid() bool {
	switch e {
	case EntityTable, EntityOrder, EntityLineItem:
		return true
	}
	return false
}

// ChangeKind distinguishes upserts from deletes.
type ChangeKind string

const (
	ChangeUpsert ChangeKind = "UPSERT"
	ChangeDelete ChangeKind = "DELETE"
)

// ChangeEvent is emitted once per mutated row after the transaction that
// wrote it commits.  Version is the row version at commit; zero means the
// producer could not supply one.  Snapshot holds the JSON form of the
// row for upserts and is empty for deletes.  ID is unique per emission
// and only serves tracing; duplicates of one emission share it.
type ChangeEvent struct {
	ID         string          `json:"id"`
	Kind       ChangeKind      `json:"kind"`
	Entity     EntityType      `json:"entity"`
	EntityID   uint64          `json:"entity_id"`
	Version    uint64          `json:"version"`
	Snapshot   json.RawMessage `json:"snapshot,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

func newUpsert(entity EntityType, id, version uint64, v any, at time.Time) ChangeEvent {
	body, err := json.Marshal(v)
	if err != nil {
		// model types contain only marshalable fields
		panic(fmt.Sprintf("marshal %s snapshot: %v", entity, err))
	}
	return ChangeEvent{
		ID:         uuid.NewString(),
		Kind:       ChangeUpsert,
		Entity:     entity,
		EntityID:   id,
		Version:    version,
		Snapshot:   body,
		OccurredAt: at.UTC(),
	}
}

// TableUpserted builds the upsert event for t.
func TableUpserted(t Table, at time.Time) ChangeEvent {
	return newUpsert(EntityTable, t.ID, t.Version, t, at)
}

// OrderUpserted builds the upsert event for o.  Line items are carried by
// their own events, so the snapshot never embeds them.
func OrderUpserted(o Order, at time.Time) ChangeEvent {
	o.LineItems = nil
	return newUpsert(EntityOrder, o.ID, o.Version, o, at)
}

// LineItemUpserted builds the upsert event for li.
func LineItemUpserted(li LineItem, at time.Time) ChangeEvent {
	return newUpsert(EntityLineItem, li.ID, li.Version, li, at)
}

// Deleted builds a delete event.  version is the tombstone version; it
// should be greater than the last upserted version of the entity.
func Deleted(entity EntityType, id, version uint64, at time.Time) ChangeEvent {
	return ChangeEvent{
		ID:         uuid.NewString(),
		Kind:       ChangeDelete,
		Entity:     entity,
		EntityID:   id,
		Version:    version,
		OccurredAt: at.UTC(),
	}
}

// Snapshot is a consistent full read of the floor used to seed or
// resync a replica.
type Snapshot struct {
	Tables    []Table    `json:"tables"`
	Orders    []Order    `json:"orders"`
	LineItems []LineItem `json:"line_items"`
	TakenAt   time.Time  `json:"taken_at"`
}
