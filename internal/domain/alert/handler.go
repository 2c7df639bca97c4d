package alert

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/remora/remora/internal/domain/identity"
	"github.com/remora/remora/internal/platform/apperr"
	"github.com/remora/remora/internal/platform/auth"
	"github.com/remora/remora/pkg/pagination"
)

type Handler struct {
	svc        *Service
	dispatcher *Dispatcher
}

func NewHandler(svc *Service, dispatcher *Dispatcher) *Handler {
	return &Handler{svc: svc, dispatcher: dispatcher}
}

// RegisterDeviceRoutes mounts the unauthenticated endpoints used by
// hardware buttons. The device token is the only credential.
func (h *Handler) RegisterDeviceRoutes(g *echo.Group) {
	g.POST("", h.SOS)
	g.POST("/voice-toggle", h.VoiceToggle)
	g.GET("/voice-toggle", h.VoiceToggleHelp)
	g.GET("/health", h.Health)
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/patients/sos", h.TriggerSelf, auth.RequireRole(string(identity.RolePatient)))
	api.GET("/alerts", h.List)
	api.POST("/alerts", h.Create)
	api.POST("/alerts/:id/ack", h.Acknowledge)
}

// SOS accepts deviceToken or userId from the body or the query string.
// deviceToken wins when both are present.
func (h *Handler) SOS(c echo.Context) error {
	var req SOSRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	token := req.DeviceToken
	if token == "" {
		token = c.QueryParam("deviceToken")
	}
	userID := req.UserID
	if userID == "" {
		userID = c.QueryParam("userId")
	}
	res, err := h.dispatcher.Trigger(c.Request().Context(), TriggerRequest{
		DeviceToken:     token,
		PatientID:       userID,
		Device:          req.Device,
		DeviceTimestamp: req.Timestamp,
	})
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) VoiceToggle(c echo.Context) error {
	var req VoiceToggleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	token := req.DeviceToken
	if token == "" {
		token = c.QueryParam("deviceToken")
	}
	res, err := h.dispatcher.VoiceToggle(c.Request().Context(), token, req.Device)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) VoiceToggleHelp(c echo.Context) error {
	return c.JSON(http.StatusMethodNotAllowed, map[string]interface{}{
		"success": false,
		"message": "Use POST with a JSON body: {\"device\": \"...\", \"deviceToken\": \"...\"}",
	})
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "sos",
		"message": "SOS endpoint is accessible",
	})
}

// TriggerSelf raises an emergency for the authenticated patient.
func (h *Handler) TriggerSelf(c echo.Context) error {
	actor, err := identity.CurrentActor(c)
	if err != nil {
		return apperr.HTTP(err)
	}
	res, err := h.dispatcher.Trigger(c.Request().Context(), TriggerRequest{Actor: actor, Device: "app"})
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) List(c echo.Context) error {
	actor, err := identity.CurrentActor(c)
	if err != nil {
		return apperr.HTTP(err)
	}
	p := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), actor, c.QueryParam("patientId"), p.Limit, p.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	pagination.SetHeaders(c, p, total)
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Create(c echo.Context) error {
	actor, err := identity.CurrentActor(c)
	if err != nil {
		return apperr.HTTP(err)
	}
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.Create(c.Request().Context(), actor, req)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Acknowledge(c echo.Context) error {
	actor, err := identity.CurrentActor(c)
	if err != nil {
		return apperr.HTTP(err)
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.HTTP(ErrAlertNotFound)
	}
	a, err := h.svc.Acknowledge(c.Request().Context(), actor, id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}
