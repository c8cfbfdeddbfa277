package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dukerupert/aivis/internal/auth"
	"github.com/dukerupert/aivis/internal/content"
	"github.com/dukerupert/aivis/internal/model"
	"github.com/dukerupert/aivis/internal/scan"
)

// pageFiles are rendered inside layout.html. Each gets its own template set so
// their "content" definitions do not collide.
var pageFiles = []string{
	"home.html", "about.html", "services.html", "contact.html",
	"blog.html", "blog_post.html", "faq.html",
	"login.html", "signup.html", "verify_email.html", "resend_verification.html",
	"forgot_password.html", "reset_password.html",
	"account.html", "checkout.html", "success.html",
	"admin_content.html", "admin_dashboard.html",
}

var partialFiles = []string{"partials.html", "admin.html"}

// Nav is the per-request chrome every page shows.
type Nav struct {
	Active        string
	Authenticated bool
	ShowAdmin     bool
	Email         string
	Year          int
}

// Renderer executes the embedded templates.
type Renderer struct {
	pages    map[string]*template.Template
	partials *template.Template
	logger   *slog.Logger
}

var funcs = template.FuncMap{
	"scanLabel":   scan.Label,
	"scanTone":    scan.Tone,
	"scanSummary": scan.SummaryText,
	"blocks":      content.Blocks,
	"formatTime":  formatTime,
	"postSlug":    postSlug,
	"viewTitle":   viewTitle,
}

func NewRenderer(fsys fs.FS, logger *slog.Logger) (*Renderer, error) {
	partials, err := template.New("partials").Funcs(funcs).ParseFS(fsys, partialFiles...)
	if err != nil {
		return nil, fmt.Errorf("parse partials: %w", err)
	}

	pages := make(map[string]*template.Template, len(pageFiles))
	for _, page := range pageFiles {
		files := append([]string{"layout.html", page}, partialFiles...)
		tmpl, err := template.New(page).Funcs(funcs).ParseFS(fsys, files...)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", page, err)
		}
		pages[page] = tmpl
	}
	return &Renderer{pages: pages, partials: partials, logger: logger}, nil
}

// Page renders a full page with status 200.
func (rd *Renderer) Page(w http.ResponseWriter, r *http.Request, name string, data map[string]any) {
	rd.PageStatus(w, r, http.StatusOK, name, data)
}

func (rd *Renderer) PageStatus(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) {
	tmpl, ok := rd.pages[name]
	if !ok {
		rd.logger.Error("template not found", "name", name)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	data["Nav"] = navFor(r, data)

	rd.write(w, status, func(buf *bytes.Buffer) error {
		return tmpl.ExecuteTemplate(buf, "layout.html", data)
	})
}

// Partial renders one named fragment for an HTMX swap.
func (rd *Renderer) Partial(w http.ResponseWriter, name string, data any) {
	rd.PartialStatus(w, http.StatusOK, name, data)
}

func (rd *Renderer) PartialStatus(w http.ResponseWriter, status int, name string, data any) {
	rd.write(w, status, func(buf *bytes.Buffer) error {
		return rd.partials.ExecuteTemplate(buf, name, data)
	})
}

// write buffers the output so a template error never leaves half a page.
func (rd *Renderer) write(w http.ResponseWriter, status int, exec func(*bytes.Buffer) error) {
	var buf bytes.Buffer
	if err := exec(&buf); err != nil {
		rd.logger.Error("template render", "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func navFor(r *http.Request, data map[string]any) Nav {
	hint := auth.Hint(r.Context())
	nav := Nav{
		Authenticated: auth.Token(r.Context()) != "",
		ShowAdmin:     hint.ShowAdminNav(),
		Email:         hint.Email,
		Year:          time.Now().Year(),
	}
	if active, ok := data["Active"].(string); ok {
		nav.Active = active
	}
	return nav
}

func formatTime(v any) string {
	var t time.Time
	switch tv := v.(type) {
	case time.Time:
		t = tv
	case *time.Time:
		if tv == nil {
			return ""
		}
		t = *tv
	default:
		return ""
	}
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("Jan 2, 2006 15:04")
}

// postSlug links by slug, falling back to the id for posts created without one.
func postSlug(p model.BlogPost) string {
	if p.Slug != "" {
		return p.Slug
	}
	return p.ID
}

func viewTitle(view string) string {
	switch view {
	case "faqs":
		return "FAQs"
	case "analysis":
		return "Analysis jobs"
	}
	return strings.ToUpper(view[:1]) + view[1:]
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// redirect navigates the whole page, via HX-Redirect for HTMX requests.
func redirect(w http.ResponseWriter, r *http.Request, target string) {
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// safeLocalPath accepts only same-origin absolute paths as redirect targets.
// Browsers strip tabs and newlines from URLs, so any control byte is refused.
func safeLocalPath(p string) bool {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.Contains(p, "\\") {
		return false
	}
	for i := 0; i < len(p); i++ {
		if p[i] < 0x20 || p[i] == 0x7f {
			return false
		}
	}
	u, err := url.Parse(p)
	return err == nil && u.Scheme == "" && u.Host == ""
}
