// Package middleware holds the echo middleware of the floor server:
// token verification, role checks, rate limiting and response caching.
package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-floor/internal/utils"
)

// Context keys set by JWTAuth.
const (
	ContextStaffID = "staff_id"
	ContextRole    = "role"
)

// JWTAuth validates the Bearer access token and stores the staff id and
// role in the context for downstream handlers and middleware.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			claims, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set(ContextStaffID, claims.Subject)
			c.Set(ContextRole, claims.Role)
			return next(c)
		}
	}
}
