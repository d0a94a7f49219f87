package vitals

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/postcare/postcare/internal/platform/auth"
	"github.com/postcare/postcare/internal/platform/httpx"
	"github.com/postcare/postcare/internal/store"
	"github.com/postcare/postcare/pkg/pagination"
)

// DefaultListLimit is the number of readings returned when ?limit= is absent.
const DefaultListLimit = 60

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/vitals", auth.RequireRole(store.RoleHospital, store.RolePatient))
	patientOnly := auth.RequireRole(store.RolePatient)

	g.GET("", h.ListVitals)
	g.POST("", h.CreateVital, patientOnly)
	g.GET("/:id", h.GetVital)
	g.PUT("/:id", h.UpdateVital, patientOnly)
	g.DELETE("/:id", h.DeleteVital, patientOnly)
}

func (h *Handler) ListVitals(c echo.Context) error {
	p, err := auth.RequirePrincipal(c.Request().Context())
	if err != nil {
		return err
	}
	patientID, err := httpx.QueryUUID(c, "patientId")
	if err != nil {
		return err
	}
	page := pagination.FromContextWithDefault(c, DefaultListLimit)
	out, total, err := h.svc.List(c.Request().Context(), p, patientID, page.Limit, page.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(out, total, page))
}

func (h *Handler) CreateVital(c echo.Context) error {
	p, err := auth.RequirePrincipal(c.Request().Context())
	if err != nil {
		return err
	}
	var req CreateRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	v, err := h.svc.Create(c.Request().Context(), p, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) GetVital(c echo.Context) error {
	p, err := auth.RequirePrincipal(c.Request().Context())
	if err != nil {
		return err
	}
	id, err := httpx.ParamUUID(c, "id", "vital log")
	if err != nil {
		return err
	}
	v, err := h.svc.Get(c.Request().Context(), p, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) UpdateVital(c echo.Context) error {
	p, err := auth.RequirePrincipal(c.Request().Context())
	if err != nil {
		return err
	}
	id, err := httpx.ParamUUID(c, "id", "vital log")
	if err != nil {
		return err
	}
	var req UpdateRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	v, err := h.svc.Update(c.Request().Context(), p, id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) DeleteVital(c echo.Context) error {
	p, err := auth.RequirePrincipal(c.Request().Context())
	if err != nil {
		return err
	}
	id, err := httpx.ParamUUID(c, "id", "vital log")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), p, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
