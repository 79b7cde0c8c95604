package api

import (
	"errors"
	"fmt"
	"net/http"

	"metarticles/internal/core"
	"metarticles/internal/server/service"

	"github.com/labstack/echo/v4"
)

// HandleDashboard handles GET /approval-dashboard.
func (h *Handler) HandleDashboard(c echo.Context) error {
	dash, err := h.articles.Dashboard(c.Request().Context(), actorOf(c))
	if err != nil {
		return h.mapServiceError(c, err)
	}
	return h.render(c, http.StatusOK, "approval_dashboard.html", "Approval Dashboard", dash)
}

// HandleReviewForm handles GET /review-article/:id.
func (h *Handler) HandleReviewForm(c echo.Context) error {
	id, ok := idParam(c)
	if !ok {
		return h.renderError(c, http.StatusNotFound)
	}
	detail, err := h.articles.ReviewTarget(c.Request().Context(), actorOf(c), id)
	if err != nil {
		return h.mapServiceError(c, err)
	}
	if detail.Article.Status != core.StatusPending {
		return h.redirect(c, "/approval-dashboard", "warning", "This article has already been reviewed.")
	}
	return h.render(c, http.StatusOK, "review_article.html", "Review Article", detail)
}

// HandleReview handles POST /review-article/:id.
func (h *Handler) HandleReview(c echo.Context) error {
	id, ok := idParam(c)
	if !ok {
		return h.renderError(c, http.StatusNotFound)
	}
	ctx := c.Request().Context()
	actor := actorOf(c)

	decision, _ := service.ParseDecision(c.FormValue("decision"))
	comment := c.FormValue("comment")

	article, err := h.articles.Review(ctx, actor, id, decision, comment)
	if err != nil {
		var verr *core.ValidationError
		switch {
		case errors.As(err, &verr):
			detail, gerr := h.articles.ReviewTarget(ctx, actor, id)
			if gerr != nil {
				return h.mapServiceError(c, gerr)
			}
			form := map[string]string{"comment": comment, "decision": c.FormValue("decision")}
			return h.renderForm(c, http.StatusBadRequest, "review_article.html", "Review Article", detail, form, verr)
		case errors.Is(err, service.ErrAlreadyReviewed):
			return h.redirect(c, "/approval-dashboard", "warning", "This article has already been reviewed.")
		}
		return h.mapServiceError(c, err)
	}

	verb := "approved"
	if article.Status == core.StatusRejected {
		verb = "rejected"
	}
	return h.redirect(c, "/approval-dashboard", "success", fmt.Sprintf("Article \"%s\" has been %s.", article.Title, verb))
}
