package auth

import (
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/postcare/postcare/internal/platform/apperror"
	"github.com/postcare/postcare/internal/store"
)

// RequireRole rejects callers whose role is not listed.
func RequireRole(roles ...store.Role) echo.MiddlewareFunc {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, err := RequirePrincipal(c.Request().Context())
			if err != nil {
				return err
			}
			for _, r := range roles {
				if p.Role() == r {
					return next(c)
				}
			}
			return apperror.Forbidden(fmt.Sprintf("required role: %s", strings.Join(names, " or ")))
		}
	}
}
