package model

import (
	"fmt"
	"time"
)

// Channel is how an order reaches the guest.
type Channel string

const (
	ChannelDineIn   Channel = "DINE_IN"
	ChannelDelivery Channel = "DELIVERY"
)

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	return c == ChannelDineIn || c == ChannelDelivery
}

// OrderState is the aggregate lifecycle state of an order.
type OrderState string

const (
	OrderPending        OrderState = "PENDING"
	OrderReadyForPickup OrderState = "READY_FOR_PICKUP"
	OrderEnRoute        OrderState = "EN_ROUTE"
	OrderDelivered      OrderState = "DELIVERED"
)

// Terminal reports whether no further transitions are accepted.
func (s OrderState) Terminal() bool { return s == OrderDelivered }

// AllowedFor reports whether an order on channel c may be in state s.
// READY_FOR_PICKUP only exists for dine-in and EN_ROUTE only for delivery.
func (s OrderState) AllowedFor(c Channel) bool {
	switch s {
	case OrderPending, OrderDelivered:
		return true
	case OrderReadyForPickup:
		return c == ChannelDineIn
	case OrderEnRoute:
		return c == ChannelDelivery
	}
	return false
}

// Order is a guest order composed of independently prepared line
// items.  State is derived from the line items (see AllDelivered) plus
// the explicit staff signals READY_FOR_PICKUP and EN_ROUTE.
// DeliveredAt is set exactly once, when the order enters DELIVERED.
type Order struct {
	ID          uint64     `json:"id"`
	Channel     Channel    `json:"channel"`
	TableID     *uint64    `json:"table_id,omitempty"`
	State       OrderState `json:"state"`
	CreatedAt   time.Time  `json:"created_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	Version     uint64     `json:"version"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LineItems   []LineItem `json:"line_items,omitempty"`
}

// Active reports whether the order has not been delivered yet.
func (o Order) Active() bool { return !o.State.Terminal() }

// ManualTransition validates a staff-triggered move of o to target.
// It returns changed=false with a nil error when o is already in
// target, so repeated calls converge.  Moving out of DELIVERED or into
// a state that does not exist for the channel yields
// ErrInvalidTransition.  DELIVERED is reachable from every
// non-terminal state; the other manual targets only from PENDING.
func ManualTransition(o Order, target OrderState) (bool, error) {
	if o.State == target {
		return false, nil
	}
	if o.State.Terminal() {
		return false, fmt.Errorf("order %d is delivered: %w", o.ID, ErrInvalidTransition)
	}
	if !target.AllowedFor(o.Channel) {
		return false, fmt.Errorf("%s is not a %s state: %w", target, o.Channel, ErrInvalidTransition)
	}
	switch target {
	case OrderDelivered:
		return true, nil
	case OrderReadyForPickup, OrderEnRoute:
		if o.State != OrderPending {
			return false, fmt.Errorf("order %d cannot move %s -> %s: %w", o.ID, o.State, target, ErrInvalidTransition)
		}
		return true, nil
	}
	return false, fmt.Errorf("order %d cannot move to %s: %w", o.ID, target, ErrInvalidTransition)
}
