package identity

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/journalsystem/portal/internal/platform/auth"
	"github.com/journalsystem/portal/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.RolePatient, auth.RoleDoctor, auth.RoleStaff))
	g.GET("/users/me", h.Me)
	g.GET("/users", h.ListUsers)
	g.GET("/users/:id", h.GetUser)
}

func (h *Handler) Me(c echo.Context) error {
	id, err := auth.ActorID(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authenticated user required")
	}
	return h.respondUser(c, id)
}

func (h *Handler) GetUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return h.respondUser(c, id)
}

func (h *Handler) respondUser(c echo.Context, id uuid.UUID) error {
	u, err := h.svc.GetUser(c.Request().Context(), id)
	if errors.Is(err, ErrUserNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

// ListUsers lists users of one role, e.g. the doctors a patient can write to.
// ?username= looks up a single user instead.
func (h *Handler) ListUsers(c echo.Context) error {
	ctx := c.Request().Context()
	if username := c.QueryParam("username"); username != "" {
		u, err := h.svc.GetByUsername(ctx, username)
		if errors.Is(err, ErrUserNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, u)
	}

	role := Role(c.QueryParam("role"))
	if role == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "role or username is required")
	}
	pg := pagination.FromContext(c)
	users, total, err := h.svc.ListByRole(ctx, role, pg.Limit, pg.Offset)
	if err != nil {
		if !role.Valid() {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(users, total, pg.Limit, pg.Offset))
}
