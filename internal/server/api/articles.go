package api

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"strconv"

	"metarticles/internal/core"
	"metarticles/internal/server/service"

	"github.com/labstack/echo/v4"
)

// HandleHome handles GET /.
func (h *Handler) HandleHome(c echo.Context) error {
	stats, err := h.articles.HomeStats(c.Request().Context())
	if err != nil {
		return h.mapServiceError(c, err)
	}
	return h.render(c, http.StatusOK, "home.html", "Home", stats)
}

// HandleAbout handles GET /about.
func (h *Handler) HandleAbout(c echo.Context) error {
	return h.render(c, http.StatusOK, "about.html", "About", nil)
}

// HandleArticles handles GET /articles.
func (h *Handler) HandleArticles(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	q := core.ListQuery{
		Category: c.QueryParam("category"),
		Search:   c.QueryParam("search"),
		Sort:     core.SortOrder(c.QueryParam("sort")),
		Page:     page,
	}

	listing, err := h.articles.ListApproved(c.Request().Context(), q)
	if err != nil {
		return h.mapServiceError(c, err)
	}
	return h.render(c, http.StatusOK, "articles.html", "Browse Articles", listing)
}

// HandleArticle handles GET /article/:id.
func (h *Handler) HandleArticle(c echo.Context) error {
	id, ok := idParam(c)
	if !ok {
		return h.renderError(c, http.StatusNotFound)
	}
	detail, err := h.articles.Get(c.Request().Context(), actorOf(c), id)
	if err != nil {
		return h.mapServiceError(c, err)
	}
	return h.render(c, http.StatusOK, "article_detail.html", detail.Article.Title, detail)
}

// HandleSubmitForm handles GET /submit-article.
func (h *Handler) HandleSubmitForm(c echo.Context) error {
	if ok, err := h.allow(c, core.ActionSubmit); !ok {
		return err
	}
	return h.render(c, http.StatusOK, "submit_article.html", "Submit Article", nil)
}

// HandleSubmit handles POST /submit-article.
// Accepts a multipart form with the metadata fields and a "file" field.
func (h *Handler) HandleSubmit(c echo.Context) error {
	if ok, err := h.allow(c, core.ActionSubmit); !ok {
		return err
	}

	in := service.SubmitInput{
		Title:    c.FormValue("title"),
		Abstract: c.FormValue("abstract"),
		Keywords: c.FormValue("keywords"),
		Category: c.FormValue("category"),
	}
	form := map[string]string{
		"title":    in.Title,
		"abstract": in.Abstract,
		"keywords": in.Keywords,
		"category": in.Category,
	}
	renderForm := func(status int, errs *core.ValidationError) error {
		return h.renderForm(c, status, "submit_article.html", "Submit Article", nil, form, errs)
	}

	var (
		filename string
		size     int64
		article  *core.Article
		err      error
	)
	fileHeader, ferr := c.FormFile("file")
	if ferr == nil {
		filename = fileHeader.Filename
		size = fileHeader.Size

		src, oerr := fileHeader.Open()
		if oerr != nil {
			return h.mapServiceError(c, oerr)
		}
		defer src.Close()
		article, err = h.articles.Submit(c.Request().Context(), actorOf(c), in, src, size, filename)
	} else {
		article, err = h.articles.Submit(c.Request().Context(), actorOf(c), in, nil, 0, "")
	}

	if err != nil {
		var verr *core.ValidationError
		switch {
		case errors.As(err, &verr):
			return renderForm(http.StatusBadRequest, verr)
		case errors.Is(err, service.ErrNotPDF):
			return renderForm(http.StatusBadRequest, core.NewValidationError("file", "Only PDF files are allowed."))
		case errors.Is(err, service.ErrFileTooLarge):
			return renderForm(http.StatusRequestEntityTooLarge, core.NewValidationError("file", "The file exceeds the maximum allowed size."))
		case errors.Is(err, service.ErrStorage):
			h.flash(c, "danger", "Error uploading file. Please try again.")
			return renderForm(http.StatusInternalServerError, nil)
		}
		return h.mapServiceError(c, err)
	}

	return h.redirect(c, "/my-articles", "success",
		"Article \""+article.Title+"\" submitted successfully! It is now pending review.")
}

// HandleMyArticles handles GET /my-articles.
func (h *Handler) HandleMyArticles(c echo.Context) error {
	articles, err := h.articles.ListOwn(c.Request().Context(), actorOf(c))
	if err != nil {
		return h.mapServiceError(c, err)
	}
	return h.render(c, http.StatusOK, "my_articles.html", "My Articles", articles)
}

// HandleDownload handles GET /download/:id.
// Serves the PDF as an attachment named after the uploaded file. Every
// response is the full file, since each one is counted as a download.
func (h *Handler) HandleDownload(c echo.Context) error {
	blob, err := h.openBlob(c, h.articles.Download)
	if err != nil || blob == nil {
		return err
	}
	defer blob.Content.Close()

	setBlobHeaders(c, "attachment", blob)
	c.Response().Header().Set(echo.HeaderContentLength, strconv.FormatInt(blob.Size, 10))
	return c.Stream(http.StatusOK, "application/pdf", blob.Content)
}

// HandlePreview handles GET /preview/:id.
// Serves the PDF inline for the browser's viewer, without counting it.
// Range and conditional requests are honoured.
func (h *Handler) HandlePreview(c echo.Context) error {
	blob, err := h.openBlob(c, h.articles.Preview)
	if err != nil || blob == nil {
		return err
	}
	defer blob.Content.Close()

	setBlobHeaders(c, "inline", blob)
	http.ServeContent(c.Response(), c.Request(), blob.Filename, blob.ModTime, blob.Content)
	return nil
}

type blobOpener func(ctx context.Context, actor core.Actor, id int64) (*service.Blob, error)

// openBlob returns a nil blob when it already wrote an error response.
func (h *Handler) openBlob(c echo.Context, open blobOpener) (*service.Blob, error) {
	id, ok := idParam(c)
	if !ok {
		return nil, h.renderError(c, http.StatusNotFound)
	}
	blob, err := open(c.Request().Context(), actorOf(c), id)
	if err != nil {
		return nil, h.mapServiceError(c, err)
	}
	return blob, nil
}

func setBlobHeaders(c echo.Context, disposition string, blob *service.Blob) {
	header := c.Response().Header()
	header.Set(echo.HeaderContentType, "application/pdf")
	header.Set(echo.HeaderContentDisposition, mime.FormatMediaType(disposition, map[string]string{"filename": blob.Filename}))
	header.Set(echo.HeaderXContentTypeOptions, "nosniff")
}
