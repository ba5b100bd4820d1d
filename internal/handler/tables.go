package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ListTables handles GET /v1/tables.
func (h *FloorHandler) ListTables(c echo.Context) error {
	tables, err := h.Floor.Tables(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, tables)
}

// OccupyTable handles POST /v1/tables/:id/occupy.  The body names the
// dine-in order to seat: {"order_id": 12}.
func (h *FloorHandler) OccupyTable(c echo.Context) error {
	tableID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid table id")
	}
	var body struct {
		OrderID uint64 `json:"order_id" validate:"required"`
	}
	if err := bindBody(c, &body); err != nil {
		return badRequest(c, err.Error())
	}
	t, err := h.Floor.OccupyTable(c.Request().Context(), tableID, body.OrderID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

// ReleaseTable handles POST /v1/tables/:id/release.
func (h *FloorHandler) ReleaseTable(c echo.Context) error {
	tableID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid table id")
	}
	t, err := h.Floor.ReleaseTable(c.Request().Context(), tableID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

// ReserveTable handles POST /v1/tables/:id/reserve.
func (h *FloorHandler) ReserveTable(c echo.Context) error {
	tableID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid table id")
	}
	t, err := h.Floor.ReserveTable(c.Request().Context(), tableID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

// CreateTable handles POST /v1/tables (managers only).
func (h *FloorHandler) CreateTable(c echo.Context) error {
	var body struct {
		Number   uint32 `json:"number" validate:"required"`
		Capacity uint32 `json:"capacity" validate:"required"`
	}
	if err := bindBody(c, &body); err != nil {
		return badRequest(c, err.Error())
	}
	t, err := h.Floor.CreateTable(c.Request().Context(), body.Number, body.Capacity)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, t)
}

// DeleteTable handles DELETE /v1/tables/:id (managers only).  Tables that
// orders have referenced answer 409.
func (h *FloorHandler) DeleteTable(c echo.Context) error {
	tableID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid table id")
	}
	if err := h.Floor.DeleteTable(c.Request().Context(), tableID); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
