package adherence

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
	g := api.Group("/medication-logs", auth.RequireRole(store.RoleHospital, store.RolePatient))
	patientOnly := auth.RequireRole(store.RolePatient)

	g.GET("", h.ListLogs)
	g.POST("", h.RecordLog, patientOnly)
	g.GET("/summary", h.GetSummary)
	g.GET("/:id", h.GetLog)
	g.PUT("/:id", h.UpdateLog, patientOnly)
	g.DELETE("/:id", h.DeleteLog, patientOnly)
}

// ListLogs accepts patientId (hospitals), medicationId, from and to.
func (h *Handler) ListLogs(c echo.Context) error {
	p, err := auth.RequirePrincipal(c.Request().Context())
	if err != nil {
		return err
	}
	patientID, err := httpx.QueryUUID(c, "patientId")
	if err != nil {
		return err
	}
	var f store.LogFilter
	if f.MedicationID, err = httpx.QueryUUID(c, "medicationId"); err != nil {
		return err
	}
	if f.From, err = httpx.QueryDay(c, "from", h.svc.loc); err != nil {
		return err
	}
	if f.To, err = httpx.QueryDay(c, "to", h.svc.loc); err != nil {
		return err
	}

	page := pagination.FromContextWithDefault(c, pagination.MaxLimit)
	logs, total, err := h.svc.List(c.Request().Context(), p, patientID, f, page.Limit, page.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(logs, total, page))
}

// RecordLog answers 201 when a new day was logged and 200 when an existing
// log for that day was overwritten.
func (h *Handler) RecordLog(c echo.Context) error {
	p, err := auth.RequirePrincipal(c.Request().Context())
	if err != nil {
		return err
	}
	var req RecordRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	l, created, err := h.svc.Record(c.Request().Context(), p, req)
	if err != nil {
		return err
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, l)
}

func (h *Handler) GetSummary(c echo.Context) error {
	p, err := auth.RequirePrincipal(c.Request().Context())
	if err != nil {
		return err
	}
	patientID, err := httpx.QueryUUID(c, "patientId")
	if err != nil {
		return err
	}
	sum, err := h.svc.Summary(c.Request().Context(), p, patientID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sum)
}

func (h *Handler) GetLog(c echo.Context) error {
	p, err := auth.RequirePrincipal(c.Request().Context())
	if err != nil {
		return err
	}
	id, err := httpx.ParamUUID(c, "id", "medication log")
	if err != nil {
		return err
	}
	l, err := h.svc.Get(c.Request().Context(), p, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, l)
}

func (h *Handler) UpdateLog(c echo.Context) error {
	p, err := auth.RequirePrincipal(c.Request().Context())
	if err != nil {
		return err
	}
	id, err := httpx.ParamUUID(c, "id", "medication log")
	if err != nil {
		return err
	}
	var req UpdateRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	l, err := h.svc.Update(c.Request().Context(), p, id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, l)
}

func (h *Handler) DeleteLog(c echo.Context) error {
	p, err := auth.RequirePrincipal(c.Request().Context())
	if err != nil {
		return err
	}
	id, err := httpx.ParamUUID(c, "id", "medication log")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), p, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
