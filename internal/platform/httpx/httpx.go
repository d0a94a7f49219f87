// Package httpx holds the request decoding helpers shared by the domain
// handlers. Every failure is returned as an apperror so the central error
// handler renders it.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/postcare/postcare/internal/platform/apperror"
	"github.com/postcare/postcare/pkg/dates"
)

// Bind decodes the JSON request body into dst. Unknown fields are ignored.
func Bind(c echo.Context, dst any) error {
	body := c.Request().Body
	if body == nil || body == http.NoBody {
		return apperror.Validation("", "request body is required")
	}
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		if errors.Is(err, io.EOF) {
			return apperror.Validation("", "request body is required")
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return apperror.Validation(typeErr.Field, fmt.Sprintf("%s has the wrong type", typeErr.Field))
		}
		return apperror.Validation("", "malformed JSON body")
	}
	return nil
}

// ParamUUID parses a path parameter. A malformed id cannot name an existing
// row, so it is reported as NotFound.
func ParamUUID(c echo.Context, name, resource string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperror.NotFound(resource)
	}
	return id, nil
}

// QueryUUID parses an optional query parameter.
func QueryUUID(c echo.Context, name string) (*uuid.UUID, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperror.Validation(name, fmt.Sprintf("%s must be a UUID", name))
	}
	return &id, nil
}

// QueryDay parses an optional date or timestamp query parameter into a day
// bucketed in loc.
func QueryDay(c echo.Context, name string, loc *time.Location) (*time.Time, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return nil, nil
	}
	d, err := dates.ParseDayOrTimestamp(raw, loc)
	if err != nil {
		return nil, apperror.Validation(name, err.Error())
	}
	return &d, nil
}

// Day parses a required YYYY-MM-DD body field.
func Day(field, value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, apperror.Validation(field, field+" is required")
	}
	d, err := dates.ParseDay(value)
	if err != nil {
		return time.Time{}, apperror.Validation(field, field+" must be a YYYY-MM-DD date")
	}
	return d, nil
}

// OptionalDay is Day for nullable fields; nil or blank yields nil.
func OptionalDay(field string, value *string) (*time.Time, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	d, err := Day(field, *value)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Required trims value and fails when it is empty.
func Required(field, value string) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", apperror.Validation(field, field+" is required")
	}
	return v, nil
}
