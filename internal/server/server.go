// Package server assembles the HTTP API from configuration and a store.
package server

import (
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/postcare/postcare/internal/config"
	"github.com/postcare/postcare/internal/domain/adherence"
	"github.com/postcare/postcare/internal/domain/dashboard"
	"github.com/postcare/postcare/internal/domain/discharge"
	"github.com/postcare/postcare/internal/domain/identity"
	"github.com/postcare/postcare/internal/domain/medication"
	"github.com/postcare/postcare/internal/domain/vitals"
	"github.com/postcare/postcare/internal/platform/apperror"
	"github.com/postcare/postcare/internal/platform/auth"
	"github.com/postcare/postcare/internal/platform/db"
	"github.com/postcare/postcare/internal/platform/middleware"
	"github.com/postcare/postcare/internal/store"
)

// Version is reported by /health.
var Version = "0.1.0"

// Deps are the long-lived collaborators owned by the caller. Pool is nil
// for the in-memory store.
type Deps struct {
	Store       store.Store
	Pool        *pgxpool.Pool
	Revocations auth.RevocationStore
	Logger      zerolog.Logger
}

// New builds the echo instance with every route mounted.
func New(cfg *config.Config, deps Deps) (*echo.Echo, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("server: store is required")
	}
	if deps.Revocations == nil {
		return nil, fmt.Errorf("server: revocation store is required")
	}
	logger := deps.Logger

	hasher, err := auth.NewPasswordHasher(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	tokens := auth.NewTokenIssuer([]byte(cfg.SessionSecret), cfg.SessionTTL)
	metrics := middleware.NewMetrics()
	loc := cfg.Location()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperror.HTTPErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, echo.HeaderXRequestID},
		AllowCredentials: true,
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	if cfg.RequestTimeout > 0 {
		e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	}
	e.Use(metrics.Middleware())
	e.Use(auth.SessionMiddleware(auth.SessionConfig{
		Tokens:      tokens,
		Revocations: deps.Revocations,
		Skipper:     auth.AuthSkipper,
		Logger:      logger,
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": Version})
	})
	e.GET("/health/db", db.HealthHandler(deps.Store, deps.Pool))
	e.GET("/metrics", metrics.Handler())

	rl := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 && cfg.RateLimitBurst > 0 {
		rl = middleware.RateLimitConfig{RequestsPerSecond: cfg.RateLimitRPS, BurstSize: cfg.RateLimitBurst}
	}

	meds := medication.NewService(deps.Store, loc)
	api := e.Group("")

	identity.NewHandler(
		identity.NewService(deps.Store, hasher, tokens, deps.Revocations, logger),
		cfg.IsProduction(),
	).RegisterRoutes(api, middleware.RateLimit(rl))
	discharge.NewHandler(discharge.NewService(deps.Store, logger)).RegisterRoutes(api)
	medication.NewHandler(meds).RegisterRoutes(api)
	vitals.NewHandler(vitals.NewService(deps.Store, loc)).RegisterRoutes(api)
	adherence.NewHandler(adherence.NewService(deps.Store, meds, loc, metrics.Registry, logger)).RegisterRoutes(api)
	dashboard.NewHandler(dashboard.NewService(deps.Store, meds)).RegisterRoutes(api)

	logger.Debug().Int("routes", len(e.Routes())).Msg("routes registered")
	return e, nil
}
