package apperror

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Body is the JSON error envelope.
type Body struct {
	Error Detail `json:"error"`
}

type Detail struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// fromHTTPError classifies errors raised by echo itself and by middleware.
func fromHTTPError(he *echo.HTTPError) *Error {
	msg := http.StatusText(he.Code)
	if s, ok := he.Message.(string); ok && s != "" {
		msg = s
	}
	switch he.Code {
	case http.StatusUnauthorized:
		return Unauthenticated(msg)
	case http.StatusForbidden:
		return Forbidden(msg)
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return &Error{Kind: KindNotFound, Message: msg}
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
		return &Error{Kind: KindValidation, Message: msg}
	case http.StatusConflict:
		return &Error{Kind: KindConstraintViolation, Message: msg}
	}
	if he.Code < 500 {
		return &Error{Kind: KindValidation, Message: msg}
	}
	return Internal(he)
}

// Resolve converts any error into an *Error and the status to send.
func Resolve(err error) (*Error, int) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, ae.Kind.Status()
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		ae = fromHTTPError(he)
		if ae.Kind == KindInternal || ae.Kind == KindValidation {
			return ae, he.Code
		}
		return ae, ae.Kind.Status()
	}
	return Internal(err), http.StatusInternalServerError
}

// HTTPErrorHandler renders errors as Body and logs internal failures.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		ae, status := Resolve(err)

		if ae.Kind == KindInternal {
			logger.Error().Err(err).
				Str("method", c.Request().Method).
				Str("path", c.Path()).
				Msg("request failed")
		}

		body := Body{Error: Detail{Kind: ae.Kind, Message: ae.Message, Field: ae.Field}}
		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			logger.Error().Err(werr).Msg("write error response")
		}
	}
}
