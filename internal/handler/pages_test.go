package handler

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/aivis/internal/content"
	"github.com/dukerupert/aivis/internal/scan"
)

func newPagesHandler(t *testing.T, backend http.HandlerFunc) *PagesHandler {
	t.Helper()
	c := setupBackend(t, backend)
	return NewPagesHandler(setupRenderer(t), content.NewService(c, content.NewMemoryCache(), time.Minute, quietLogger()), quietLogger())
}

func TestBlogShowsFeaturedAndCategories(t *testing.T) {
	h := newPagesHandler(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "posts": []map[string]any{
			{"_id": "1", "slug": "one", "title": "One", "category": "SEO", "featured": true, "published": true},
			{"_id": "2", "slug": "two", "title": "Two", "category": "AI", "published": true},
		}})
	})

	rec := httptest.NewRecorder()
	h.Blog(rec, httptest.NewRequest(http.MethodGet, "/blog", nil))

	doc := parseDoc(t, rec)
	if got := doc.Find("#featured h2").Text(); got != "One" {
		t.Errorf("featured = %q, want %q", got, "One")
	}
	if n := doc.Find(".categories a").Length(); n != 3 {
		t.Errorf("category links = %d, want 3", n)
	}
}

func TestBlogPostNotFound(t *testing.T) {
	h := newPagesHandler(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "Not found"})
	})

	req := httptest.NewRequest(http.MethodGet, "/blog/missing", nil)
	req.SetPathValue("slug", "missing")
	rec := httptest.NewRecorder()
	h.BlogPost(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestFallbackRendersHome(t *testing.T) {
	h := newPagesHandler(t, func(w http.ResponseWriter, r *http.Request) {})

	rec := httptest.NewRecorder()
	h.Fallback(rec, httptest.NewRequest(http.MethodGet, "/no/such/page", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if parseDoc(t, rec).Find("#quick-scan form").Length() != 1 {
		t.Error("home page not rendered")
	}

	rec = httptest.NewRecorder()
	h.Fallback(rec, httptest.NewRequest(http.MethodPost, "/no/such/page", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestQuickScanModal(t *testing.T) {
	c := setupBackend(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{
			"url": "https://a.example", "finalScore": 81.6, "recommendations": []string{"Add schema markup"},
		}})
	})
	h := NewScanHandler(setupRenderer(t), scan.NewService(c, quietLogger()))

	form := url.Values{"url": {"a.example"}, "email": {"ann@example.com"}}
	req := httptest.NewRequest(http.MethodPost, "/quick-scan", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.Run(rec, req)

	doc := parseDoc(t, rec)
	if got := doc.Find(".score-value").Text(); got != "82" {
		t.Errorf("score = %q, want %q", got, "82")
	}
	if n := doc.Find(".recommendations li").Length(); n != 1 {
		t.Errorf("recommendations = %d, want 1", n)
	}
}

func TestQuickScanFailure(t *testing.T) {
	c := setupBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html><title>Bad gateway</title></html>"))
	})
	h := NewScanHandler(setupRenderer(t), scan.NewService(c, quietLogger()))

	form := url.Values{"url": {"a.example"}, "email": {"ann@example.com"}}
	req := httptest.NewRequest(http.MethodPost, "/quick-scan", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.Run(rec, req)

	if got := strings.TrimSpace(parseDoc(t, rec).Find(".alert-error").Text()); got != scan.ErrScanFailed.Error() {
		t.Errorf("alert = %q, want %q", got, scan.ErrScanFailed.Error())
	}
}
