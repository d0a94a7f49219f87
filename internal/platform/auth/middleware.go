package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/postcare/postcare/internal/platform/apperror"
)

// SessionCookie carries the session token for browser clients.
const SessionCookie = "session"

// SessionConfig configures SessionMiddleware.
type SessionConfig struct {
	Tokens      *TokenIssuer
	Revocations RevocationStore
	Skipper     func(c echo.Context) bool
	Logger      zerolog.Logger
}

// bearerToken reads the Authorization header, falling back to the cookie.
func bearerToken(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		token = strings.TrimSpace(token)
		if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
			return "", apperror.Unauthenticated("invalid authorization format")
		}
		return token, nil
	}
	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	return "", apperror.Unauthenticated("authentication required")
}

// SessionMiddleware verifies the session token and attaches the Principal
// and claims to the request context.
func SessionMiddleware(cfg SessionConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}

			tokenStr, err := bearerToken(c.Request())
			if err != nil {
				return err
			}

			claims, err := cfg.Tokens.Parse(tokenStr)
			if err != nil {
				cfg.Logger.Debug().Err(err).Msg("session rejected")
				return apperror.Unauthenticated("invalid or expired session")
			}

			ctx := c.Request().Context()
			if cfg.Revocations != nil {
				revoked, err := cfg.Revocations.IsRevoked(ctx, claims.ID)
				if err != nil {
					return apperror.Internal(err)
				}
				if revoked {
					return apperror.Unauthenticated("session has been logged out")
				}
			}

			principal, err := claims.Principal()
			if err != nil {
				return apperror.Unauthenticated("invalid or expired session")
			}

			ctx = WithPrincipal(ctx, principal)
			ctx = contextWithClaims(ctx, claims)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set(string(principalKey), principal)

			return next(c)
		}
	}
}
