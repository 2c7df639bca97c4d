package notification

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/remora/remora/internal/domain/identity"
	"github.com/remora/remora/internal/platform/apperr"
	"github.com/remora/remora/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/notifications", h.List)
	api.POST("/notifications", h.Create)
	api.POST("/notifications/:id/read", h.MarkRead)
}

func (h *Handler) List(c echo.Context) error {
	actor, err := identity.CurrentActor(c)
	if err != nil {
		return apperr.HTTP(err)
	}
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListFor(c.Request().Context(), actor.ID, p.Limit, p.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	pagination.SetHeaders(c, p, total)
	return c.JSON(http.StatusOK, items)
}

// Create stores a notification addressed to the caller.
func (h *Handler) Create(c echo.Context) error {
	actor, err := identity.CurrentActor(c)
	if err != nil {
		return apperr.HTTP(err)
	}
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	n, err := h.svc.Create(c.Request().Context(), actor.ID, Payload{Title: req.Title, Message: req.Message, Type: req.Type})
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, n)
}

// MarkRead answers 404 for notifications owned by someone else.
func (h *Handler) MarkRead(c echo.Context) error {
	actor, err := identity.CurrentActor(c)
	if err != nil {
		return apperr.HTTP(err)
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.HTTP(ErrNotificationNotFound)
	}
	ctx := c.Request().Context()

	existing, err := h.svc.Get(ctx, id)
	if err != nil {
		return apperr.HTTP(err)
	}
	if existing.CaregiverID != actor.ID {
		return apperr.HTTP(ErrNotificationNotFound)
	}

	n, err := h.svc.MarkRead(ctx, id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, n)
}
