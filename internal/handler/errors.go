package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-floor/internal/model"
	"github.com/iliyamo/restaurant-floor/internal/repository"
)

// fail maps a service error onto the HTTP status the API documents.
// Unknown errors are logged and reported as 500 without detail.
func fail(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, repository.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, repository.ErrConflict), errors.Is(err, model.ErrTableNotFree):
		status = http.StatusConflict
	case errors.Is(err, model.ErrInvalidTransition):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrConcurrencyConflict):
		status = http.StatusPreconditionFailed
	case errors.Is(err, model.ErrValidation):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		log.Printf("handler: %s %s: %v", c.Request().Method, c.Path(), err)
		return c.JSON(status, echo.Map{"error": "internal error"})
	}
	return c.JSON(status, echo.Map{"error": err.Error()})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// expectedVersion reads the optimistic version from If-Match (a plain or
// quoted number, weak tags accepted) or from ?expected_version.  Absent
// means unchecked and yields 0.
func expectedVersion(c echo.Context) (uint64, bool) {
	raw := strings.TrimSpace(c.Request().Header.Get("If-Match"))
	if raw == "" {
		raw = c.QueryParam("expected_version")
	}
	if raw == "" || raw == "*" {
		return 0, true
	}
	raw = strings.Trim(strings.TrimPrefix(raw, "W/"), `"`)
	v, err := strconv.ParseUint(raw, 10, 64)
	return v, err == nil
}

func setETag(c echo.Context, version uint64) {
	c.Response().Header().Set("ETag", strconv.Quote(strconv.FormatUint(version, 10)))
}
