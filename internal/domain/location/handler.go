package location

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/remora/remora/internal/domain/identity"
	"github.com/remora/remora/internal/platform/apperr"
	"github.com/remora/remora/internal/platform/auth"
)

// LinkChecker reports whether a caregiver holds an ACTIVE link to a patient.
type LinkChecker interface {
	IsLinked(ctx context.Context, patientID, caregiverID uuid.UUID) (bool, error)
}

type Handler struct {
	svc   *Service
	links LinkChecker
}

func NewHandler(svc *Service, links LinkChecker) *Handler {
	return &Handler{svc: svc, links: links}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/patients/me/location", h.Report, auth.RequireRole(string(identity.RolePatient)))
	api.GET("/patients/:id/location", h.Latest)
}

func (h *Handler) Report(c echo.Context) error {
	actor, err := identity.CurrentActor(c)
	if err != nil {
		return apperr.HTTP(err)
	}
	var req ReportRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sample, err := h.svc.Report(c.Request().Context(), actor, req)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, sample)
}

// Latest is visible to the patient and to linked caregivers only.
func (h *Handler) Latest(c echo.Context) error {
	actor, err := identity.CurrentActor(c)
	if err != nil {
		return apperr.HTTP(err)
	}
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	ctx := c.Request().Context()

	if actor.ID != patientID {
		if err := identity.RequireRole(actor, identity.RoleCaregiver); err != nil {
			return apperr.HTTP(err)
		}
		linked, err := h.links.IsLinked(ctx, patientID, actor.ID)
		if err != nil {
			return apperr.HTTP(err)
		}
		if !linked {
			return apperr.HTTP(identity.ErrForbidden)
		}
	}

	sample, err := h.svc.LatestOf(ctx, patientID)
	if err != nil {
		return apperr.HTTP(err)
	}
	if sample == nil {
		return apperr.HTTP(ErrNoLocation)
	}
	return c.JSON(http.StatusOK, sample)
}
