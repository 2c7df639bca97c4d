package activity

import (
	"net/http"
	"time"

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
	api.GET("/activities", h.List)
	api.POST("/activities", h.Create)
}

// List accepts patientId, kind and an RFC 3339 from/to range on recordedAt.
func (h *Handler) List(c echo.Context) error {
	actor, err := identity.CurrentActor(c)
	if err != nil {
		return apperr.HTTP(err)
	}
	q := ListQuery{PatientID: c.QueryParam("patientId"), Kind: c.QueryParam("kind")}
	if q.From, err = timeParam(c, "from"); err != nil {
		return err
	}
	if q.To, err = timeParam(c, "to"); err != nil {
		return err
	}

	p := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), actor, q, p.Limit, p.Offset)
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
	a, err := h.svc.Record(c.Request().Context(), actor, req)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func timeParam(c echo.Context, name string) (*time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, apperr.HTTP(apperr.BadRequest("INVALID_TIME", name+" must be an RFC 3339 timestamp"))
	}
	return &t, nil
}
