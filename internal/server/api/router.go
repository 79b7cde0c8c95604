package api

import (
	"fmt"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// RouterConfig holds the settings the router needs beyond the handler.
type RouterConfig struct {
	MaxUploadSize int64
	CookieSecure  bool
}

// multipartOverhead leaves room for form fields and boundaries around a
// file of the maximum size.
const multipartOverhead = 1 << 20

// SetupRouter creates and configures the echo router with all routes and middleware.
func SetupRouter(h *Handler, sessions *scs.SessionManager, cfg RouterConfig) (*echo.Echo, error) {
	renderer, err := NewRenderer()
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = renderer
	e.HTTPErrorHandler = h.HTTPErrorHandler

	// Global middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(RequestLogger())
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
		ReferrerPolicy:     "same-origin",
	}))
	e.Use(middleware.BodyLimitWithConfig(middleware.BodyLimitConfig{
		Limit: fmt.Sprintf("%dK", (cfg.MaxUploadSize+multipartOverhead)/1024),
	}))
	e.Use(echo.WrapMiddleware(sessions.LoadAndSave))
	e.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
		TokenLookup:    "form:_csrf",
		CookieName:     "_csrf",
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSecure:   cfg.CookieSecure,
		CookieSameSite: http.SameSiteLaxMode,
	}))
	e.Use(h.LoadActor)

	// Public pages
	e.GET("/health", h.HandleHealth)
	e.GET("/", h.HandleHome)
	e.GET("/about", h.HandleAbout)
	e.GET("/articles", h.HandleArticles)
	e.GET("/article/:id", h.HandleArticle)
	e.GET("/download/:id", h.HandleDownload)
	e.GET("/preview/:id", h.HandlePreview)

	// Account
	e.GET("/register", h.HandleRegisterForm)
	e.POST("/register", h.HandleRegister)
	e.GET("/login", h.HandleLoginForm)
	e.POST("/login", h.HandleLogin)

	e.GET("/logout", h.HandleLogout, RequireLogin)
	e.GET("/change-password", h.HandleChangePasswordForm, RequireLogin)
	e.POST("/change-password", h.HandleChangePassword, RequireLogin)

	// Authors
	e.GET("/submit-article", h.HandleSubmitForm, RequireLogin)
	e.POST("/submit-article", h.HandleSubmit, RequireLogin)
	e.GET("/my-articles", h.HandleMyArticles, RequireLogin)

	// Supervisors
	e.GET("/approval-dashboard", h.HandleDashboard, RequireLogin)
	e.GET("/review-article/:id", h.HandleReviewForm, RequireLogin)
	e.POST("/review-article/:id", h.HandleReview, RequireLogin)
	e.GET("/user-management", h.HandleUserManagement, RequireLogin)
	e.POST("/promote-user/:id", h.HandlePromote, RequireLogin)
	e.POST("/demote-user/:id", h.HandleDemote, RequireLogin)

	return e, nil
}
