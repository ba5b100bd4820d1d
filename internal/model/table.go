package model

import "time"

// Occupancy is the floor status of a dining table.
type Occupancy string

const (
	OccupancyFree     Occupancy = "FREE"
	OccupancyOccupied Occupancy = "OCCUPIED"
	OccupancyReserved Occupancy = "RESERVED"
)

// Valid reports whether o is one of the known occupancy values.
func (o Occupancy) Valid() bool {
	switch o {
	case OccupancyFree, OccupancyOccupied, OccupancyReserved:
		return true
	}
	return false
}

// Table represents a dining table on the floor.  A table is OCCUPIED
// exactly when an active dine-in order is bound to it; OrderID then
// holds that order.  FREE and RESERVED tables have no bound order.
//
// Fields:
//
//	ID        – dining_tables.id
//	Number    – number painted on the table, unique per floor.
//	Capacity  – seats at the table.
//	Occupancy – FREE, OCCUPIED or RESERVED.
//	OrderID   – the order currently occupying the table (nil unless OCCUPIED).
//	Version   – incremented on every write; carried by change events.
//	UpdatedAt – last modification time.
type Table struct {
	ID        uint64    `json:"id"`
	Number    uint32    `json:"number"`
	Capacity  uint32    `json:"capacity"`
	Occupancy Occupancy `json:"occupancy"`
	OrderID   *uint64   `json:"order_id,omitempty"`
	Version   uint64    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BoundTo reports whether the table is occupied by the given order.
func (t Table) BoundTo(orderID uint64) bool {
	return t.Occupancy == OccupancyOccupied && t.OrderID != nil && *t.OrderID == orderID
}
