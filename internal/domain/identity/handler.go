package identity

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/remora/remora/internal/platform/apperr"
	"github.com/remora/remora/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)

	api.GET("/users/me", h.Me)
	api.GET("/users/caregivers", h.SearchCaregivers)
	api.GET("/users/me/devices", h.ListDevices)
	api.POST("/users/me/devices", h.RegisterDevice, auth.RequireRole(string(RolePatient)))
}

func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sess, err := h.svc.Register(c.Request().Context(), req)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, sess)
}

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sess, err := h.svc.Login(c.Request().Context(), req)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) Me(c echo.Context) error {
	a, err := CurrentActor(c)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) SearchCaregivers(c echo.Context) error {
	if _, err := CurrentActor(c); err != nil {
		return apperr.HTTP(err)
	}
	caregivers, err := h.svc.SearchCaregivers(c.Request().Context(), c.QueryParam("query"))
	if err != nil {
		return apperr.HTTP(err)
	}
	if caregivers == nil {
		caregivers = []*Actor{}
	}
	return c.JSON(http.StatusOK, caregivers)
}

type registerDeviceRequest struct {
	DeviceName string `json:"deviceName"`
	DeviceType string `json:"deviceType"`
}

func (h *Handler) RegisterDevice(c echo.Context) error {
	a, err := CurrentActor(c)
	if err != nil {
		return apperr.HTTP(err)
	}
	var req registerDeviceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	reg, err := h.svc.RegisterDevice(c.Request().Context(), a, req.DeviceName, req.DeviceType)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, reg)
}

func (h *Handler) ListDevices(c echo.Context) error {
	a, err := CurrentActor(c)
	if err != nil {
		return apperr.HTTP(err)
	}
	devices, err := h.svc.ListDevices(c.Request().Context(), a)
	if err != nil {
		return apperr.HTTP(err)
	}
	if devices == nil {
		devices = []DeviceToken{}
	}
	return c.JSON(http.StatusOK, devices)
}
