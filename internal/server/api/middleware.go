package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"metarticles/internal/core"
	"metarticles/internal/server/service"

	"github.com/labstack/echo/v4"
)

const (
	ctxActorKey = "actor"
	ctxUserKey  = "user"

	sessionUserKey = "uid"
)

// RequestLogger returns an echo middleware that logs requests using slog.
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				// Let the error handler write the response so the status is known.
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			slog.Info("request",
				"method", req.Method,
				"path", req.URL.Path,
				"status", res.Status,
				"latency_ms", time.Since(start).Milliseconds(),
				"ip", c.RealIP(),
				"user_agent", req.UserAgent(),
				"bytes_out", res.Size,
				"request_id", res.Header().Get(echo.HeaderXRequestID),
				"actor_id", actorOf(c).ID,
			)

			return nil
		}
	}
}

// LoadActor resolves the session's user id into the request's actor.
// Stale ids (deleted or deactivated users) are dropped from the session.
func (h *Handler) LoadActor(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		actor := core.Anonymous()

		if uid := h.sessions.GetInt64(ctx, sessionUserKey); uid != 0 {
			u, err := h.identity.UserByID(ctx, uid)
			switch {
			case err == nil && u.Active:
				actor = core.ActorFor(u)
				c.Set(ctxUserKey, u)
			case err == nil, errors.Is(err, service.ErrNotFound):
				h.sessions.Remove(ctx, sessionUserKey)
			default:
				return err
			}
		}

		c.Set(ctxActorKey, actor)
		return next(c)
	}
}

// RequireLogin sends anonymous visitors to the login page, remembering
// where they were going.
func RequireLogin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !actorOf(c).Authenticated() {
			target := c.Request().URL.RequestURI()
			return c.Redirect(http.StatusFound, "/login?next="+url.QueryEscape(target))
		}
		return next(c)
	}
}

func actorOf(c echo.Context) core.Actor {
	if a, ok := c.Get(ctxActorKey).(core.Actor); ok {
		return a
	}
	return core.Anonymous()
}

func userOf(c echo.Context) *core.User {
	u, _ := c.Get(ctxUserKey).(*core.User)
	return u
}
