package discharge

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/postcare/postcare/internal/platform/auth"
	"github.com/postcare/postcare/internal/platform/httpx"
	"github.com/postcare/postcare/internal/store"
	"github.com/postcare/postcare/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/discharge-plans", auth.RequireRole(store.RoleHospital, store.RolePatient))
	g.GET("", h.ListPlans)
	g.POST("", h.CreatePlan, auth.RequireRole(store.RoleHospital))
	g.GET("/:id", h.GetPlan)
	g.PUT("/:id", h.UpdatePlan)
}

// ListPlans accepts ?patientId= for hospitals.
func (h *Handler) ListPlans(c echo.Context) error {
	p, err := auth.RequirePrincipal(c.Request().Context())
	if err != nil {
		return err
	}
	patientID, err := httpx.QueryUUID(c, "patientId")
	if err != nil {
		return err
	}
	page := pagination.FromContext(c)
	plans, total, err := h.svc.List(c.Request().Context(), p, patientID, page.Limit, page.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(plans, total, page))
}

func (h *Handler) CreatePlan(c echo.Context) error {
	p, err := auth.RequirePrincipal(c.Request().Context())
	if err != nil {
		return err
	}
	var req CreatePlanRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	plan, err := h.svc.Create(c.Request().Context(), p, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, plan)
}

func (h *Handler) GetPlan(c echo.Context) error {
	p, err := auth.RequirePrincipal(c.Request().Context())
	if err != nil {
		return err
	}
	id, err := httpx.ParamUUID(c, "id", "discharge plan")
	if err != nil {
		return err
	}
	plan, err := h.svc.Get(c.Request().Context(), p, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, plan)
}

func (h *Handler) UpdatePlan(c echo.Context) error {
	p, err := auth.RequirePrincipal(c.Request().Context())
	if err != nil {
		return err
	}
	id, err := httpx.ParamUUID(c, "id", "discharge plan")
	if err != nil {
		return err
	}
	var req UpdatePlanRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	plan, err := h.svc.Update(c.Request().Context(), p, id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, plan)
}
