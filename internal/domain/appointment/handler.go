package appointment

import (
	"context"
	"errors"
	"net/http"
	"strconv"

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
	read := api.Group("/appointments", auth.RequireRole(auth.RolePatient, auth.RoleClinician))
	read.GET("", h.List)
	read.GET("/upcoming", h.ListUpcoming)
	read.GET("/:id", h.Get)

	write := api.Group("/appointments", auth.RequireRole(auth.RoleClinician))
	write.POST("", h.Create)
	write.POST("/:id/cancel", h.Cancel)
	write.POST("/:id/complete", h.Complete)
}

func resolvePatientID(c echo.Context, explicit uuid.UUID) (uuid.UUID, error) {
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

func (h *Handler) Create(c echo.Context) error {
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if a.ClinicianUserID == "" {
		a.ClinicianUserID = auth.UserIDFromContext(c.Request().Context())
	}
	if err := h.svc.Create(c.Request().Context(), &a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	}
	ctx := c.Request().Context()
	if auth.RoleFromContext(ctx) == auth.RolePatient && a.PatientID != auth.PatientIDFromContext(ctx) {
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	}
	return c.JSON(http.StatusOK, a)
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
	pid, err := resolvePatientID(c, explicit)
	if err != nil {
		return err
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), pid, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListUpcoming(c echo.Context) error {
	var explicit uuid.UUID
	if q := c.QueryParam("patient_id"); q != "" {
		id, err := uuid.Parse(q)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		explicit = id
	}
	pid, err := resolvePatientID(c, explicit)
	if err != nil {
		return err
	}

	limit := 10
	if q := c.QueryParam("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 && n <= pagination.MaxLimit {
			limit = n
		}
	}
	items, err := h.svc.ListUpcoming(c.Request().Context(), pid, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Cancel(c echo.Context) error {
	return h.transition(c, h.svc.Cancel)
}

func (h *Handler) Complete(c echo.Context) error {
	return h.transition(c, h.svc.Complete)
}

func (h *Handler) transition(c echo.Context, fn func(ctx context.Context, id uuid.UUID) (*Appointment, error)) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := fn(c.Request().Context(), id)
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	case errors.Is(err, ErrFinalStatus):
		return echo.NewHTTPError(http.StatusConflict, "appointment already cancelled or completed")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, a)
}
