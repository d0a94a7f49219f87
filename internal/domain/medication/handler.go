package medication

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
	g := api.Group("/medications", auth.RequireRole(store.RoleHospital, store.RolePatient))

	patientOnly := auth.RequireRole(store.RolePatient)
	g.GET("", h.ListMedications, patientOnly)
	g.POST("", h.CreateMedication, patientOnly)
	g.GET("/schedule", h.GetSchedule, patientOnly)

	// Ownership and origin are checked by the guard, so both roles reach
	// these and get NotFound or AuthorizationError as appropriate.
	g.GET("/:id", h.GetMedication)
	g.PUT("/:id", h.UpdateMedication)
	g.DELETE("/:id", h.DeleteMedication)
}

func (h *Handler) ListMedications(c echo.Context) error {
	p, err := auth.RequirePrincipal(c.Request().Context())
	if err != nil {
		return err
	}
	meds, err := h.svc.ListSelfAdded(c.Request().Context(), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, meds)
}

func (h *Handler) CreateMedication(c echo.Context) error {
	p, err := auth.RequirePrincipal(c.Request().Context())
	if err != nil {
		return err
	}
	var in Input
	if err := httpx.Bind(c, &in); err != nil {
		return err
	}
	m, err := h.svc.Create(c.Request().Context(), p, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) GetMedication(c echo.Context) error {
	p, err := auth.RequirePrincipal(c.Request().Context())
	if err != nil {
		return err
	}
	id, err := httpx.ParamUUID(c, "id", "medication")
	if err != nil {
		return err
	}
	m, err := h.svc.Get(c.Request().Context(), p, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) UpdateMedication(c echo.Context) error {
	p, err := auth.RequirePrincipal(c.Request().Context())
	if err != nil {
		return err
	}
	id, err := httpx.ParamUUID(c, "id", "medication")
	if err != nil {
		return err
	}
	var req UpdateRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	m, err := h.svc.Update(c.Request().Context(), p, id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) DeleteMedication(c echo.Context) error {
	p, err := auth.RequirePrincipal(c.Request().Context())
	if err != nil {
		return err
	}
	id, err := httpx.ParamUUID(c, "id", "medication")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), p, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// GetSchedule returns the medications due on ?date=, defaulting to today.
func (h *Handler) GetSchedule(c echo.Context) error {
	p, err := auth.RequirePrincipal(c.Request().Context())
	if err != nil {
		return err
	}
	day, err := httpx.QueryDay(c, "date", h.svc.loc)
	if err != nil {
		return err
	}
	if day == nil {
		today := h.svc.Today()
		day = &today
	}
	sched, err := h.svc.Schedule(c.Request().Context(), p, *day)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sched)
}
