package handler

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = validator.New()

var errBody = errors.New("invalid request body")

// bindBody decodes the request body into v and checks its validate tags.
func bindBody(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return errBody
	}
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, len(verrs))
			for i, fe := range verrs {
				fields[i] = strings.ToLower(fe.Field()) + " " + fe.Tag()
			}
			return errors.New("invalid " + strings.Join(fields, ", "))
		}
		return err
	}
	return nil
}
