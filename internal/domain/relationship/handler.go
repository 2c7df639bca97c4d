package relationship

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/remora/remora/internal/domain/identity"
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
	patientOnly := auth.RequireRole(string(identity.RolePatient))
	api.POST("/patients/connect-caregiver", h.Connect, patientOnly)
	api.GET("/patients/me/caregivers", h.MyCaregivers, patientOnly)
	api.GET("/patients/caregiver/my-patients", h.MyPatients, auth.RequireRole(string(identity.RoleCaregiver)))
}

func (h *Handler) Connect(c echo.Context) error {
	actor, err := identity.CurrentActor(c)
	if err != nil {
		return apperr.HTTP(err)
	}
	var req ConnectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.Connect(c.Request().Context(), actor, req.CaregiverCode)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) MyCaregivers(c echo.Context) error {
	actor, err := identity.CurrentActor(c)
	if err != nil {
		return apperr.HTTP(err)
	}
	if err := identity.RequireRole(actor, identity.RolePatient); err != nil {
		return apperr.HTTP(err)
	}
	out, err := h.svc.CaregiversOf(c.Request().Context(), actor.ID)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) MyPatients(c echo.Context) error {
	actor, err := identity.CurrentActor(c)
	if err != nil {
		return apperr.HTTP(err)
	}
	if err := identity.RequireRole(actor, identity.RoleCaregiver); err != nil {
		return apperr.HTTP(err)
	}
	out, err := h.svc.PatientsOf(c.Request().Context(), actor.ID)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, out)
}
