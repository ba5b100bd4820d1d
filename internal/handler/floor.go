package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-floor/internal/feed"
	"github.com/iliyamo/restaurant-floor/internal/model"
	"github.com/iliyamo/restaurant-floor/internal/service"
)

// ProjectedView is a replica-backed read model, such as a feed.Projector
// following the server's own change bus.
type ProjectedView interface {
	Synced(ctx context.Context) (bool, error)
	KitchenQueue(ctx context.Context) ([]feed.KitchenEntry, error)
}

// FloorHandler exposes the floor service over HTTP.
type FloorHandler struct {
	Floor *service.Floor
	View  ProjectedView // optional; used for the kitchen queue once synced
}

// NewFloorHandler panics when floor is nil.
func NewFloorHandler(floor *service.Floor, view ProjectedView) *FloorHandler {
	if floor == nil {
		panic("nil floor passed to NewFloorHandler")
	}
	return &FloorHandler{Floor: floor, View: view}
}

// PlaceOrder handles POST /v1/orders.
func (h *FloorHandler) PlaceOrder(c echo.Context) error {
	var in service.PlaceOrderInput
	if err := bindBody(c, &in); err != nil {
		return badRequest(c, err.Error())
	}
	o, err := h.Floor.PlaceOrder(c.Request().Context(), in)
	if err != nil {
		return fail(c, err)
	}
	setETag(c, o.Version)
	return c.JSON(http.StatusCreated, o)
}

// SetItemState handles PUT /v1/orders/:id/items/:item/state.
func (h *FloorHandler) SetItemState(c echo.Context) error {
	orderID, ok1 := pathID(c, "id")
	itemID, ok2 := pathID(c, "item")
	if !ok1 || !ok2 {
		return badRequest(c, "invalid order or item id")
	}
	var body struct {
		State model.ItemState `json:"state" validate:"required"`
	}
	if err := bindBody(c, &body); err != nil {
		return badRequest(c, err.Error())
	}
	li, err := h.Floor.SetLineItemState(c.Request().Context(), orderID, itemID, body.State)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, li)
}

// RateItem handles PUT /v1/orders/:id/items/:item/rating.
func (h *FloorHandler) RateItem(c echo.Context) error {
	orderID, ok1 := pathID(c, "id")
	itemID, ok2 := pathID(c, "item")
	if !ok1 || !ok2 {
		return badRequest(c, "invalid order or item id")
	}
	var body struct {
		Rating uint8 `json:"rating" validate:"min=1,max=5"`
	}
	if err := bindBody(c, &body); err != nil {
		return badRequest(c, err.Error())
	}
	li, err := h.Floor.RateLineItem(c.Request().Context(), orderID, itemID, body.Rating)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, li)
}

type transitionFunc func(ctx context.Context, orderID, expectedVersion uint64) (model.Order, error)

func (h *FloorHandler) transition(c echo.Context, fn transitionFunc) error {
	orderID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid order id")
	}
	expected, ok := expectedVersion(c)
	if !ok {
		return badRequest(c, "invalid expected version")
	}
	o, err := fn(c.Request().Context(), orderID, expected)
	if err != nil {
		return fail(c, err)
	}
	setETag(c, o.Version)
	return c.JSON(http.StatusOK, o)
}

// MarkReady handles POST /v1/orders/:id/ready.
func (h *FloorHandler) MarkReady(c echo.Context) error {
	return h.transition(c, h.Floor.MarkReadyForPickup)
}

// MarkEnRoute handles POST /v1/orders/:id/en-route.
func (h *FloorHandler) MarkEnRoute(c echo.Context) error {
	return h.transition(c, h.Floor.MarkEnRoute)
}

// MarkDelivered handles POST /v1/orders/:id/delivered.
func (h *FloorHandler) MarkDelivered(c echo.Context) error {
	return h.transition(c, h.Floor.MarkDelivered)
}

// ListOrders handles GET /v1/orders.  Delivered orders are included only
// with ?active=false.
func (h *FloorHandler) ListOrders(c echo.Context) error {
	activeOnly := true
	if v := c.QueryParam("active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return badRequest(c, "active must be true or false")
		}
		activeOnly = b
	}
	orders, err := h.Floor.Orders(c.Request().Context(), activeOnly)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, orders)
}

// KitchenQueue handles GET /v1/kitchen/queue.
func (h *FloorHandler) KitchenQueue(c echo.Context) error {
	ctx := c.Request().Context()
	if h.View != nil {
		if synced, err := h.View.Synced(ctx); err == nil && synced {
			q, err := h.View.KitchenQueue(ctx)
			if err == nil {
				return c.JSON(http.StatusOK, q)
			}
		}
	}
	q, err := h.Floor.KitchenQueue(ctx)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, q)
}

// Snapshot handles GET /v1/snapshot.
func (h *FloorHandler) Snapshot(c echo.Context) error {
	snap, err := h.Floor.Snapshot(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.JSON(http.StatusOK, snap)
}
