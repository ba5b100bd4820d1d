package middleware

import "github.com/labstack/echo/v4"

// StaffID returns the authenticated staff id, or "anon" before JWTAuth ran.
func StaffID(c echo.Context) string {
	if s, ok := c.Get(ContextStaffID).(string); ok && s != "" {
		return s
	}
	return "anon"
}
