// Package router wires the floor handlers onto an echo instance.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-floor/internal/handler"
	"github.com/iliyamo/restaurant-floor/internal/middleware"
	"github.com/iliyamo/restaurant-floor/internal/utils"
)

// Options carries the middleware the floor routes need.  Zero-valued
// RateLimit and Cache mean no rate limiting and no caching.
type Options struct {
	JWTSecret string
	RateLimit echo.MiddlewareFunc
	Cache     echo.MiddlewareFunc
}

func passthrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo, health echo.HandlerFunc) {
	if health == nil {
		health = handler.Health()
	}
	e.GET("/healthz", health)
}

// RegisterFloor registers the authenticated /v1 API.  Every route needs a
// staff token; writes are rate limited, and table administration is for
// managers only.
func RegisterFloor(e *echo.Echo, h *handler.FloorHandler, opts Options) {
	limit, cache := opts.RateLimit, opts.Cache
	if limit == nil {
		limit = passthrough
	}
	if cache == nil {
		cache = passthrough
	}

	v1 := e.Group("/v1", middleware.JWTAuth(opts.JWTSecret))
	anyStaff := middleware.RequireRole(utils.RoleStaff, utils.RoleKitchen, utils.RoleManager)
	floorStaff := middleware.RequireRole(utils.RoleStaff, utils.RoleManager)
	manager := middleware.RequireRole(utils.RoleManager)

	v1.GET("/orders", h.ListOrders, anyStaff)
	v1.GET("/tables", h.ListTables, anyStaff)
	v1.GET("/kitchen/queue", h.KitchenQueue, anyStaff, cache)
	v1.GET("/snapshot", h.Snapshot, anyStaff)

	v1.POST("/orders", h.PlaceOrder, floorStaff, limit)
	v1.PUT("/orders/:id/items/:item/state", h.SetItemState, anyStaff, limit)
	v1.PUT("/orders/:id/items/:item/rating", h.RateItem, floorStaff, limit)
	v1.POST("/orders/:id/ready", h.MarkReady, anyStaff, limit)
	v1.POST("/orders/:id/en-route", h.MarkEnRoute, floorStaff, limit)
	v1.POST("/orders/:id/delivered", h.MarkDelivered, floorStaff, limit)

	v1.POST("/tables/:id/occupy", h.OccupyTable, floorStaff, limit)
	v1.POST("/tables/:id/release", h.ReleaseTable, floorStaff, limit)
	v1.POST("/tables/:id/reserve", h.ReserveTable, floorStaff, limit)

	v1.POST("/tables", h.CreateTable, manager, limit)
	v1.DELETE("/tables/:id", h.DeleteTable, manager, limit)
}
