package identity

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/postcare/postcare/internal/platform/auth"
	"github.com/postcare/postcare/internal/platform/httpx"
	"github.com/postcare/postcare/internal/store"
	"github.com/postcare/postcare/pkg/pagination"
)

type Handler struct {
	svc          *Service
	secureCookie bool
}

// NewHandler returns the account handlers. secureCookie marks the session
// cookie Secure, which browsers only honour over HTTPS.
func NewHandler(svc *Service, secureCookie bool) *Handler {
	return &Handler{svc: svc, secureCookie: secureCookie}
}

// RegisterRoutes mounts /auth and /patients. authMiddleware applies to the
// /auth group only.
func (h *Handler) RegisterRoutes(api *echo.Group, authMiddleware ...echo.MiddlewareFunc) {
	authGroup := api.Group("/auth", authMiddleware...)
	authGroup.POST("/register", h.Register)
	authGroup.POST("/login", h.Login)
	authGroup.POST("/logout", h.Logout)
	authGroup.GET("/me", h.Me)

	patients := api.Group("/patients", auth.RequireRole(store.RoleHospital, store.RolePatient))
	patients.GET("", h.ListPatients)
	patients.POST("", h.AddPatient, auth.RequireRole(store.RoleHospital))
}

func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	acct, err := h.svc.Register(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, acct)
}

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	sess, err := h.svc.Login(c.Request().Context(), req)
	if err != nil {
		return err
	}
	c.SetCookie(h.sessionCookie(sess.Token, sess.ExpiresAt))
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := auth.RequirePrincipal(ctx); err != nil {
		return err
	}
	if err := h.svc.Logout(ctx, auth.ClaimsFromContext(ctx)); err != nil {
		return err
	}
	c.SetCookie(h.sessionCookie("", time.Unix(0, 0)))
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Me(c echo.Context) error {
	p, err := auth.RequirePrincipal(c.Request().Context())
	if err != nil {
		return err
	}
	acct, err := h.svc.Me(c.Request().Context(), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, acct)
}

// ListPatients searches the hospital's patients, or returns the caller's
// own profile for patients.
func (h *Handler) ListPatients(c echo.Context) error {
	ctx := c.Request().Context()
	p, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return err
	}
	if p.Role() == store.RolePatient {
		pt, err := h.svc.OwnPatient(ctx, p)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, pt)
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.SearchPatients(ctx, p, strings.TrimSpace(c.QueryParam("q")), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) AddPatient(c echo.Context) error {
	p, err := auth.RequirePrincipal(c.Request().Context())
	if err != nil {
		return err
	}
	var req AddPatientRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	res, err := h.svc.AddPatient(c.Request().Context(), p, req)
	if err != nil {
		return err
	}
	status := http.StatusCreated
	if res.Linked {
		status = http.StatusOK
	}
	return c.JSON(status, res)
}

func (h *Handler) sessionCookie(value string, expires time.Time) *http.Cookie {
	ck := &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}
	if value == "" {
		ck.MaxAge = -1
	}
	return ck
}
