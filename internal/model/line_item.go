package model

import "time"

// ItemState is the preparation state of a single line item.
type ItemState string

const (
	ItemPending       ItemState = "PENDING"
	ItemInPreparation ItemState = "IN_PREPARATION"
	ItemDelivered     ItemState = "DELIVERED"
)

// Valid reports whether s is one of the three preparation states.
func (s ItemState) Valid() bool {
	return s.Rank() >= 0
}

// Rank orders item states for kitchen display: PENDING first,
// DELIVERED last.  Unknown states rank -1.
func (s ItemState) Rank() int {
	switch s {
	case ItemPending:
		return 0
	case ItemInPreparation:
		return 1
	case ItemDelivered:
		return 2
	}
	return -1
}

// ProductKind distinguishes single products from combos.
type ProductKind string

const (
	ProductSingle ProductKind = "PRODUCT"
	ProductCombo  ProductKind = "COMBO"
)

// ProductRef points at a catalog entry.  The catalog itself is owned
// by the menu service; only the reference is stored with the order.
type ProductRef struct {
	Kind ProductKind `json:"kind" validate:"required"`
	ID   uint64      `json:"id" validate:"required"`
}

// Valid reports whether the reference names a known kind and a non-zero id.
func (p ProductRef) Valid() bool {
	return (p.Kind == ProductSingle || p.Kind == ProductCombo) && p.ID != 0
}

// LineItem is one product or combo instance inside an order.  It is
// owned by its order and is immutable once the order is DELIVERED.
//
// Fields:
//
//	ID        – line_items.id
//	OrderID   – owning order.
//	Product   – catalog reference.
//	Quantity  – number of portions, at least one.
//	State     – PENDING, IN_PREPARATION or DELIVERED.
//	Rating    – optional guest rating (1–5) for a delivered item.
//	Version   – incremented on every write.
//	UpdatedAt – last modification time.
type LineItem struct {
	ID        uint64     `json:"id"`
	OrderID   uint64     `json:"order_id"`
	Product   ProductRef `json:"product"`
	Quantity  uint32     `json:"quantity"`
	State     ItemState  `json:"state"`
	Rating    *uint8     `json:"rating,omitempty"`
	Version   uint64     `json:"version"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// AllDelivered is the completion rule: an order closes when every one
// of its line items is DELIVERED.  An empty set never closes an order.
func AllDelivered(items []LineItem) bool {
	if len(items) == 0 {
		return false
	}
	for _, it := range items {
		if it.State != ItemDelivered {
			return false
		}
	}
	return true
}
