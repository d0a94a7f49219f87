package dashboard

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/postcare/postcare/internal/platform/auth"
	"github.com/postcare/postcare/internal/platform/httpx"
	"github.com/postcare/postcare/internal/store"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	both := auth.RequireRole(store.RoleHospital, store.RolePatient)
	api.GET("/dashboard", h.GetDashboard, both)
	api.GET("/patients/:id", h.GetPatient, both)
}

func (h *Handler) GetDashboard(c echo.Context) error {
	p, err := auth.RequirePrincipal(c.Request().Context())
	if err != nil {
		return err
	}
	out, err := h.svc.Overview(c.Request().Context(), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GetPatient(c echo.Context) error {
	p, err := auth.RequirePrincipal(c.Request().Context())
	if err != nil {
		return err
	}
	id, err := httpx.ParamUUID(c, "id", "patient")
	if err != nil {
		return err
	}
	b, err := h.svc.PatientDetail(c.Request().Context(), p, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}
