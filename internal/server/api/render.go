package api

import (
	"embed"
	"encoding/gob"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"metarticles/internal/core"

	"github.com/labstack/echo/v4"
)

//go:embed templates/*.html
var templateFS embed.FS

const flashKey = "flashes"

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Style   string // bootstrap alert style: success, info, warning, danger
	Message string
}

func init() {
	gob.Register([]Flash{})
}

// view is the data every page template receives.
type view struct {
	Title   string
	Actor   core.Actor
	User    *core.User
	CSRF    string
	Flashes []Flash
	Form    map[string]string
	Errors  *core.ValidationError
	Data    any
}

// Renderer executes page templates inside the shared layout.
type Renderer struct {
	pages map[string]*template.Template
}

var funcs = template.FuncMap{
	"formatFileSize": humanizeBytes,
	"formatDate":     formatDate,
	"formatTime":     formatTime,
	"categoryLabel":  core.CategoryLabel,
	"fieldError":     fieldError,
	"listURL":        listURL,
	"categories":     func() any { return core.Categories },
	"deref":          derefTime,
	"dict":           dict,
}

// NewRenderer parses the embedded templates. Each page is parsed into its
// own clone of the layout so their "content" blocks do not collide.
func NewRenderer() (*Renderer, error) {
	layout, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}

	names, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	r := &Renderer{pages: make(map[string]*template.Template)}
	for _, name := range names {
		base := name[len("templates/"):]
		if base == "layout.html" {
			continue
		}
		t, err := layout.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(templateFS, name); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		r.pages[base] = t
	}
	return r, nil
}

func (r *Renderer) Render(w io.Writer, name string, data any, c echo.Context) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("template %s not found", name)
	}
	return t.ExecuteTemplate(w, "layout.html", data)
}

// render fills the common view fields and renders a page.
func (h *Handler) render(c echo.Context, status int, name, title string, data any) error {
	return h.renderForm(c, status, name, title, data, nil, nil)
}

func (h *Handler) renderForm(c echo.Context, status int, name, title string, data any, form map[string]string, errs *core.ValidationError) error {
	if form == nil {
		form = map[string]string{}
	}
	csrf, _ := c.Get("csrf").(string)
	v := &view{
		Title:   title,
		Actor:   actorOf(c),
		User:    userOf(c),
		CSRF:    csrf,
		Flashes: h.popFlashes(c),
		Form:    form,
		Errors:  errs,
		Data:    data,
	}
	return c.Render(status, name, v)
}

func (h *Handler) flash(c echo.Context, style, format string, args ...any) {
	ctx := c.Request().Context()
	flashes, _ := h.sessions.Get(ctx, flashKey).([]Flash)
	flashes = append(flashes, Flash{Style: style, Message: fmt.Sprintf(format, args...)})
	h.sessions.Put(ctx, flashKey, flashes)
}

func (h *Handler) popFlashes(c echo.Context) []Flash {
	flashes, _ := h.sessions.Pop(c.Request().Context(), flashKey).([]Flash)
	return flashes
}

// redirect stores an optional flash and sends a 302 to path.
func (h *Handler) redirect(c echo.Context, path, style, message string) error {
	if message != "" {
		h.flash(c, style, "%s", message)
	}
	return c.Redirect(http.StatusFound, path)
}

// dict builds a map from alternating keys and values, for passing several
// values to a nested template.
func dict(pairs ...any) (map[string]any, error) {
	if len(pairs)%2 != 0 {
		return nil, fmt.Errorf("dict: odd number of arguments")
	}
	m := make(map[string]any, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict: key %v is not a string", pairs[i])
		}
		m[key] = pairs[i+1]
	}
	return m, nil
}

func fieldError(errs *core.ValidationError, field string) string {
	if errs == nil {
		return ""
	}
	return errs.For(field)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("January 2, 2006")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// listURL builds an /articles link that keeps the current filters.
func listURL(q core.ListQuery, page int) string {
	v := url.Values{}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Sort != "" && q.Sort != core.SortRecent {
		v.Set("sort", string(q.Sort))
	}
	if page > 1 {
		v.Set("page", strconv.Itoa(page))
	}
	if len(v) == 0 {
		return "/articles"
	}
	return "/articles?" + v.Encode()
}

// humanizeBytes formats a byte count into a human-readable string.
func humanizeBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
