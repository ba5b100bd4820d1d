package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/restaurant-floor/internal/model"
	"github.com/iliyamo/restaurant-floor/internal/repository"
)

func TestFailStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{repository.ErrNotFound, http.StatusNotFound},
		{repository.ErrConflict, http.StatusConflict},
		{fmt.Errorf("table 3 is OCCUPIED: %w", model.ErrTableNotFree), http.StatusConflict},
		{fmt.Errorf("order 1 is delivered: %w", model.ErrInvalidTransition), http.StatusUnprocessableEntity},
		{model.ErrConcurrencyConflict, http.StatusPreconditionFailed},
		{model.ErrValidation, http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	e := echo.New()
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
			require.NoError(t, fail(c, tt.err))
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusInternalServerError {
				assert.NotContains(t, rec.Body.String(), "disk on fire")
			}
		})
	}
}

func TestExpectedVersion(t *testing.T) {
	tests := []struct {
		name   string
		header string
		query  string
		want   uint64
		ok     bool
	}{
		{"absent", "", "", 0, true},
		{"wildcard", "*", "", 0, true},
		{"plain", "4", "", 4, true},
		{"quoted", `"7"`, "", 7, true},
		{"weak", `W/"9"`, "", 9, true},
		{"query", "", "3", 3, true},
		{"header wins", `"2"`, "5", 2, true},
		{"garbage", "abc", "", 0, false},
	}
	e := echo.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/"
			if tt.query != "" {
				target += "?expected_version=" + tt.query
			}
			req := httptest.NewRequest(http.MethodPost, target, nil)
			if tt.header != "" {
				req.Header.Set("If-Match", tt.header)
			}
			c := e.NewContext(req, httptest.NewRecorder())
			got, ok := expectedVersion(c)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

type downPinger struct{}

func (downPinger) PingContext(ctx context.Context) error { return errors.New("down") }

func TestHealth(t *testing.T) {
	e := echo.New()

	rec := httptest.NewRecorder()
	require.NoError(t, Health()(e.NewContext(httptest.NewRequest(http.MethodGet, "/healthz", nil), rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	require.NoError(t, Health(downPinger{})(e.NewContext(httptest.NewRequest(http.MethodGet, "/healthz", nil), rec)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
