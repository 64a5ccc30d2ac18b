package reminder

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dosewatch/dosewatch/internal/platform/auth"
	"github.com/dosewatch/dosewatch/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	role := auth.RequireRole(auth.RolePatient, auth.RoleClinician)

	g := api.Group("/reminders", role)
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.POST("/:id/taken", h.MarkTaken)
	g.DELETE("/:id", h.Delete)
	g.GET("/:id/history", h.History)
}

// scopedPatientID resolves which patient's rows the request may touch.
// Patients are pinned to their own record; clinicians and admins pass the
// target patient explicitly.
func scopedPatientID(c echo.Context, explicit uuid.UUID) (uuid.UUID, error) {
	ctx := c.Request().Context()
	if auth.RoleFromContext(ctx) == auth.RolePatient {
		pid := auth.PatientIDFromContext(ctx)
		if pid == uuid.Nil {
			return uuid.Nil, echo.NewHTTPError(http.StatusForbidden, "token has no patient binding")
		}
		return pid, nil
	}
	if explicit == uuid.Nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}
	return explicit, nil
}

// checkOwnership hides other patients' reminders from patient-role callers.
func checkOwnership(c echo.Context, r *Reminder) error {
	ctx := c.Request().Context()
	if auth.RoleFromContext(ctx) == auth.RolePatient && r.PatientID != auth.PatientIDFromContext(ctx) {
		return echo.NewHTTPError(http.StatusNotFound, "reminder not found")
	}
	return nil
}

func (h *Handler) Create(c echo.Context) error {
	var r Reminder
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	pid, err := scopedPatientID(c, r.PatientID)
	if err != nil {
		return err
	}
	r.PatientID = pid
	if err := h.svc.Create(c.Request().Context(), &r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) List(c echo.Context) error {
	var explicit uuid.UUID
	if q := c.QueryParam("patient_id"); q != "" {
		id, err := uuid.Parse(q)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		explicit = id
	}
	pid, err := scopedPatientID(c, explicit)
	if err != nil {
		return err
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListActive(c.Request().Context(), pid, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	r, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "reminder not found")
	}
	if err := checkOwnership(c, r); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) MarkTaken(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	existing, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "reminder not found")
	}
	if err := checkOwnership(c, existing); err != nil {
		return err
	}

	r, err := h.svc.MarkTaken(c.Request().Context(), id)
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "reminder not found")
	case errors.Is(err, ErrCompleted):
		return echo.NewHTTPError(http.StatusConflict, "reminder course already completed")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	existing, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "reminder not found")
	}
	if err := checkOwnership(c, existing); err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) History(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	existing, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "reminder not found")
	}
	if err := checkOwnership(c, existing); err != nil {
		return err
	}

	pg := pagination.FromContext(c)
	events, total, err := h.svc.History(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(events, total, pg.Limit, pg.Offset))
}
