package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"metarticles/internal/core"
	"metarticles/internal/server/service"

	"github.com/alexedwards/scs/v2"
	"github.com/labstack/echo/v4"
)

const msgForbidden = "You do not have permission to access this page."

// HealthChecker reports database connectivity. *database.DB implements it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler contains the HTTP handlers of the portal.
type Handler struct {
	identity *service.IdentityService
	articles *service.ArticleService
	sessions *scs.SessionManager
	health   HealthChecker
}

// NewHandler creates a new handler. health may be nil when running on the
// in-memory store.
func NewHandler(identity *service.IdentityService, articles *service.ArticleService, sessions *scs.SessionManager, health HealthChecker) *Handler {
	return &Handler{
		identity: identity,
		articles: articles,
		sessions: sessions,
		health:   health,
	}
}

// HandleHealth handles GET /health.
// Returns the health status of the server, including database connectivity.
func (h *Handler) HandleHealth(c echo.Context) error {
	status := "healthy"
	dbStatus := "connected"

	if h.health == nil {
		dbStatus = "memory"
	} else if err := h.health.HealthCheck(c.Request().Context()); err != nil {
		status = "degraded"
		dbStatus = fmt.Sprintf("error: %v", err)
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, echo.Map{
		"status":   status,
		"database": dbStatus,
	})
}

// mapServiceError translates service-layer errors that a handler did not
// handle itself into responses.
func (h *Handler) mapServiceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return h.renderError(c, http.StatusNotFound)
	case errors.Is(err, service.ErrForbidden):
		return h.redirect(c, "/", "danger", msgForbidden)
	case errors.Is(err, service.ErrFileTooLarge):
		return h.renderError(c, http.StatusRequestEntityTooLarge)
	default:
		slog.Error("request failed",
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			"error", err,
		)
		return h.renderError(c, http.StatusInternalServerError)
	}
}

type errorPage struct {
	Status  int
	Heading string
	Message string
}

var errorPages = map[int]errorPage{
	http.StatusBadRequest:            {Heading: "Bad Request", Message: "The request could not be understood."},
	http.StatusForbidden:             {Heading: "Forbidden", Message: "The request was rejected. Please reload the page and try again."},
	http.StatusNotFound:              {Heading: "Page Not Found", Message: "The page you are looking for does not exist."},
	http.StatusMethodNotAllowed:      {Heading: "Method Not Allowed", Message: "This page does not accept that request."},
	http.StatusRequestEntityTooLarge: {Heading: "File Too Large", Message: "The uploaded file exceeds the maximum allowed size."},
	http.StatusInternalServerError:   {Heading: "Server Error", Message: "Something went wrong on our side. Please try again later."},
}

func (h *Handler) renderError(c echo.Context, status int) error {
	page, ok := errorPages[status]
	if !ok {
		page = errorPage{Heading: http.StatusText(status), Message: "The request could not be completed."}
	}
	page.Status = status
	return h.render(c, status, "error.html", page.Heading, page)
}

// HTTPErrorHandler renders echo errors (routing, CSRF, body limit, panics)
// as HTML error pages.
func (h *Handler) HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
	}
	if status >= http.StatusInternalServerError {
		slog.Error("unhandled error",
			"path", c.Request().URL.Path,
			"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			"error", err,
		)
	}

	if c.Request().Method == http.MethodHead {
		c.NoContent(status)
		return
	}
	if rerr := h.renderError(c, status); rerr != nil {
		slog.Error("failed to render error page", "error", rerr)
		c.String(status, http.StatusText(status))
	}
}

// allow checks a role-gated action for pages that render before calling a
// service, redirecting home with a flash when denied.
func (h *Handler) allow(c echo.Context, action core.Action) (bool, error) {
	if core.Allow(actorOf(c), action) {
		return true, nil
	}
	return false, h.redirect(c, "/", "danger", msgForbidden)
}

// idParam parses the :id route parameter. Malformed ids are not found.
func idParam(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
