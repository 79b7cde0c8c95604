package api

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"metarticles/internal/core"
	"metarticles/internal/server/service"

	"github.com/labstack/echo/v4"
)

// HandleRegisterForm handles GET /register.
func (h *Handler) HandleRegisterForm(c echo.Context) error {
	if actorOf(c).Authenticated() {
		return c.Redirect(http.StatusFound, "/")
	}
	return h.render(c, http.StatusOK, "register.html", "Register", nil)
}

// HandleRegister handles POST /register.
func (h *Handler) HandleRegister(c echo.Context) error {
	if actorOf(c).Authenticated() {
		return c.Redirect(http.StatusFound, "/")
	}

	in := service.RegisterInput{
		Username:        c.FormValue("username"),
		Email:           c.FormValue("email"),
		Password:        c.FormValue("password"),
		ConfirmPassword: c.FormValue("confirm_password"),
		FirstName:       c.FormValue("first_name"),
		LastName:        c.FormValue("last_name"),
	}
	form := map[string]string{
		"username":   in.Username,
		"email":      in.Email,
		"first_name": in.FirstName,
		"last_name":  in.LastName,
	}

	_, err := h.identity.Register(c.Request().Context(), in)
	if err != nil {
		var verr *core.ValidationError
		var conflict *service.ConflictError
		switch {
		case errors.As(err, &verr):
			return h.renderForm(c, http.StatusBadRequest, "register.html", "Register", nil, form, verr)
		case errors.As(err, &conflict):
			return h.renderForm(c, http.StatusConflict, "register.html", "Register", nil, form,
				core.NewValidationError(conflict.Field, conflict.Message))
		}
		return h.mapServiceError(c, err)
	}

	return h.redirect(c, "/login", "success", "Registration successful! Please log in.")
}

// HandleLoginForm handles GET /login.
func (h *Handler) HandleLoginForm(c echo.Context) error {
	if actorOf(c).Authenticated() {
		return c.Redirect(http.StatusFound, "/")
	}
	form := map[string]string{"next": c.QueryParam("next")}
	return h.renderForm(c, http.StatusOK, "login.html", "Login", nil, form, nil)
}

// HandleLogin handles POST /login.
func (h *Handler) HandleLogin(c echo.Context) error {
	if actorOf(c).Authenticated() {
		return c.Redirect(http.StatusFound, "/")
	}

	username := c.FormValue("username")
	next := c.FormValue("next")
	form := map[string]string{"username": username, "next": next}

	var v core.Validator
	v.Required("username", username, "Username")
	v.Required("password", c.FormValue("password"), "Password")
	if err := v.Err(); err != nil {
		return h.renderForm(c, http.StatusBadRequest, "login.html", "Login", nil, form, err.(*core.ValidationError))
	}

	u, err := h.identity.Authenticate(c.Request().Context(), username, c.FormValue("password"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			h.flash(c, "danger", "Invalid username or password.")
			return h.renderForm(c, http.StatusUnauthorized, "login.html", "Login", nil, form, nil)
		}
		return h.mapServiceError(c, err)
	}

	ctx := c.Request().Context()
	if err := h.sessions.RenewToken(ctx); err != nil {
		return h.mapServiceError(c, err)
	}
	h.sessions.Put(ctx, sessionUserKey, u.ID)

	return h.redirect(c, safeNext(next), "success", "Welcome back, "+u.FullName()+"!")
}

// HandleLogout handles GET /logout.
func (h *Handler) HandleLogout(c echo.Context) error {
	ctx := c.Request().Context()
	h.sessions.Remove(ctx, sessionUserKey)
	if err := h.sessions.RenewToken(ctx); err != nil {
		return h.mapServiceError(c, err)
	}
	return h.redirect(c, "/", "info", "You have been logged out.")
}

// HandleChangePasswordForm handles GET /change-password.
func (h *Handler) HandleChangePasswordForm(c echo.Context) error {
	return h.render(c, http.StatusOK, "change_password.html", "Change Password", nil)
}

// HandleChangePassword handles POST /change-password.
func (h *Handler) HandleChangePassword(c echo.Context) error {
	err := h.identity.ChangePassword(c.Request().Context(), actorOf(c),
		c.FormValue("current_password"),
		c.FormValue("new_password"),
		c.FormValue("confirm_password"),
	)
	if err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			return h.renderForm(c, http.StatusBadRequest, "change_password.html", "Change Password", nil, nil, verr)
		}
		return h.mapServiceError(c, err)
	}
	return h.redirect(c, "/", "success", "Your password has been updated.")
}

// safeNext only allows redirects to local paths.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return "/"
	}
	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" {
		return "/"
	}
	return next
}
