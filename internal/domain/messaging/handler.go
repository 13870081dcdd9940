package messaging

import (
	"context"
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
	g.GET("/inbox", h.GetInbox)
	g.POST("/messages", h.SendMessage)
	g.GET("/messages/received", h.ListReceived)
	g.GET("/messages/sent", h.ListSent)
	g.GET("/messages/unread", h.ListUnread)
	g.GET("/messages/:id", h.GetMessage)
	g.GET("/messages/:id/thread", h.GetThread)
	g.GET("/messages/:id/replies", h.GetReplies)
	g.POST("/messages/:id/replies", h.SendReply)
	g.PUT("/messages/:id/read", h.MarkRead)
}

// InboxResponse is a page of inbox rows plus the viewer's total unread count.
type InboxResponse struct {
	*pagination.Response
	UnreadCount int `json:"unread_count"`
}

func actor(c echo.Context) (uuid.UUID, error) {
	id, err := auth.ActorID(c.Request().Context())
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "authenticated user required")
	}
	return id, nil
}

func pathID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// httpError maps service errors onto status codes. Unexpected errors are
// returned as-is so the recovery/logging stack reports them as 500.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return err
	}
}

// -- Commands --

func (h *Handler) SendMessage(c echo.Context) error {
	sender, err := actor(c)
	if err != nil {
		return err
	}
	var req SendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	m, err := h.svc.SendMessage(c.Request().Context(), sender, &req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) SendReply(c echo.Context) error {
	sender, err := actor(c)
	if err != nil {
		return err
	}
	parentID, err := pathID(c)
	if err != nil {
		return err
	}
	var req ReplyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	m, err := h.svc.SendReply(c.Request().Context(), parentID, sender, &req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) MarkRead(c echo.Context) error {
	reader, err := actor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	m, err := h.svc.MarkRead(c.Request().Context(), id, reader)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, m)
}

// -- Queries --

func (h *Handler) GetInbox(c echo.Context) error {
	viewer, err := actor(c)
	if err != nil {
		return err
	}
	inbox, err := h.svc.GetInbox(c.Request().Context(), viewer)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, &InboxResponse{
		Response:    pagination.Paginate(inbox.Rows, pagination.FromContext(c)),
		UnreadCount: inbox.UnreadCount,
	})
}

func (h *Handler) GetMessage(c echo.Context) error {
	viewer, err := actor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	m, err := h.svc.GetMessage(c.Request().Context(), id, viewer)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, m)
}

// GetThread is restricted to participants of the requested message.
func (h *Handler) GetThread(c echo.Context) error {
	viewer, err := actor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if _, err := h.svc.GetMessage(ctx, id, viewer); err != nil {
		return httpError(err)
	}
	thread, err := h.svc.GetThread(ctx, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, thread)
}

func (h *Handler) GetReplies(c echo.Context) error {
	viewer, err := actor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if _, err := h.svc.GetMessage(ctx, id, viewer); err != nil {
		return httpError(err)
	}
	replies, err := h.svc.GetReplies(ctx, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, replies)
}

func (h *Handler) ListReceived(c echo.Context) error {
	return h.list(c, h.svc.ListReceived)
}

func (h *Handler) ListSent(c echo.Context) error {
	return h.list(c, h.svc.ListSent)
}

func (h *Handler) ListUnread(c echo.Context) error {
	return h.list(c, h.svc.ListUnread)
}

func (h *Handler) list(c echo.Context, fetch func(ctx context.Context, userID uuid.UUID) ([]*Message, error)) error {
	viewer, err := actor(c)
	if err != nil {
		return err
	}
	msgs, err := fetch(c.Request().Context(), viewer)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.Paginate(msgs, pagination.FromContext(c)))
}
