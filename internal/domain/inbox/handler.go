package inbox

import (
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
	g := api.Group("/messages", auth.RequireRole(auth.RolePatient, auth.RoleClinician))
	g.POST("", h.Send)
	g.GET("", h.Thread)
	g.POST("/read", h.MarkRead)
	g.GET("/unread-count", h.UnreadCount)
}

// threadPatientID resolves which patient thread the request addresses.
// Patients are pinned to their own thread; clinicians pass patient_id.
func threadPatientID(c echo.Context, explicit uuid.UUID) (uuid.UUID, error) {
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

func queryPatientID(c echo.Context) (uuid.UUID, error) {
	q := c.QueryParam("patient_id")
	if q == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(q)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}
	return id, nil
}

func (h *Handler) Send(c echo.Context) error {
	var m Message
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	pid, err := threadPatientID(c, m.PatientID)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	m.PatientID = pid
	m.SenderUserID = auth.UserIDFromContext(ctx)
	m.SenderRole = auth.RoleFromContext(ctx)
	if err := h.svc.Send(ctx, &m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) Thread(c echo.Context) error {
	explicit, err := queryPatientID(c)
	if err != nil {
		return err
	}
	pid, err := threadPatientID(c, explicit)
	if err != nil {
		return err
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.Thread(c.Request().Context(), pid, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) MarkRead(c echo.Context) error {
	explicit, err := queryPatientID(c)
	if err != nil {
		return err
	}
	pid, err := threadPatientID(c, explicit)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	n, err := h.svc.MarkRead(ctx, pid, auth.RoleFromContext(ctx))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]int{"marked": n})
}

func (h *Handler) UnreadCount(c echo.Context) error {
	explicit, err := queryPatientID(c)
	if err != nil {
		return err
	}
	pid, err := threadPatientID(c, explicit)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	n, err := h.svc.UnreadCount(ctx, pid, auth.RoleFromContext(ctx))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]int{"unread": n})
}
