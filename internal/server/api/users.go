package api

import (
	"context"
	"errors"
	"net/http"

	"metarticles/internal/core"
	"metarticles/internal/server/service"

	"github.com/labstack/echo/v4"
)

// HandleUserManagement handles GET /user-management.
func (h *Handler) HandleUserManagement(c echo.Context) error {
	lists, err := h.identity.ListForManagement(c.Request().Context(), actorOf(c))
	if err != nil {
		return h.mapServiceError(c, err)
	}
	return h.render(c, http.StatusOK, "user_management.html", "User Management", lists)
}

// HandlePromote handles POST /promote-user/:id.
func (h *Handler) HandlePromote(c echo.Context) error {
	return h.changeRole(c, h.identity.Promote, "%s has been promoted to supervisor.")
}

// HandleDemote handles POST /demote-user/:id.
func (h *Handler) HandleDemote(c echo.Context) error {
	return h.changeRole(c, h.identity.Demote, "%s has been demoted to author.")
}

type roleChange func(ctx context.Context, actor core.Actor, targetID int64) (*core.User, error)

func (h *Handler) changeRole(c echo.Context, change roleChange, success string) error {
	id, ok := idParam(c)
	if !ok {
		return h.renderError(c, http.StatusNotFound)
	}

	u, err := change(c.Request().Context(), actorOf(c), id)
	switch {
	case err == nil:
		h.flash(c, "success", success, u.Username)
	case errors.Is(err, service.ErrSelfDemotion):
		h.flash(c, "danger", "You cannot demote yourself.")
	case errors.Is(err, service.ErrInvalidRoleChange):
		h.flash(c, "warning", "That user's role does not allow this change.")
	case errors.Is(err, service.ErrNotFound):
		h.flash(c, "warning", "User not found.")
	default:
		return h.mapServiceError(c, err)
	}
	return c.Redirect(http.StatusFound, "/user-management")
}
