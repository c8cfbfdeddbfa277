package handler

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dukerupert/aivis/internal/console"
)

// fakeContent is a backend holding blog posts in memory.
type fakeContent struct {
	mu      sync.Mutex
	posts   []map[string]any
	deletes int
	creates []map[string]any
}

func (f *fakeContent) handle(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/admin/blogs":
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "posts": f.posts, "total": len(f.posts)})
		case r.Method == http.MethodPost && r.URL.Path == "/admin/blogs":
			var body map[string]any
			decodeBody(t, r, &body)
			body["_id"] = "p-new"
			f.creates = append(f.creates, body)
			f.posts = append(f.posts, body)
			writeJSON(w, http.StatusCreated, map[string]any{"success": true})
		case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/admin/blogs/"):
			f.deletes++
			id := strings.TrimPrefix(r.URL.Path, "/admin/blogs/")
			kept := f.posts[:0]
			for _, p := range f.posts {
				if p["_id"] != id {
					kept = append(kept, p)
				}
			}
			f.posts = kept
			writeJSON(w, http.StatusOK, map[string]any{"success": true})
		default:
			writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "not found"})
		}
	}
}

func newAdminHandler(t *testing.T, backend http.HandlerFunc) *AdminHandler {
	t.Helper()
	c := setupBackend(t, backend)
	return NewAdminHandler(c, console.NewWorkspaces(c), setupRenderer(t), quietLogger())
}

func TestAdminDeleteNeedsConfirmation(t *testing.T) {
	fake := &fakeContent{posts: []map[string]any{{"_id": "p1", "title": "First"}}}
	h := newAdminHandler(t, fake.handle(t))
	mgr := setupManager(t)

	req, holder := newRequest(t, mgr, http.MethodGet, "/admin/content/posts", nil, signToken(t, jwt.MapClaims{"role": "admin"}))
	req.SetPathValue("view", "posts")
	h.Panel(httptest.NewRecorder(), req)

	// First click: the prompt only.
	req = sameSession(http.MethodPost, "/admin/content/posts/p1/delete", url.Values{}, holder)
	req.SetPathValue("view", "posts")
	req.SetPathValue("id", "p1")
	rec := httptest.NewRecorder()
	h.Delete(rec, req)

	doc := parseDoc(t, rec)
	confirm := doc.Find(".confirm")
	if confirm.Length() != 1 {
		t.Fatal("confirm prompt not rendered")
	}
	if got := strings.TrimSpace(confirm.Find("p").Text()); got != "Delete post?" {
		t.Errorf("prompt = %q, want %q", got, "Delete post?")
	}
	if action, _ := confirm.Find("button").First().Attr("hx-post"); action != "/admin/content/posts/p1/delete" {
		t.Errorf("confirm action = %q", action)
	}
	if fake.deletes != 0 {
		t.Errorf("deletes = %d, want 0", fake.deletes)
	}

	// Confirmed: the request goes out and the list reloads.
	req = sameSession(http.MethodPost, "/admin/content/posts/p1/delete", url.Values{"confirmed": {"true"}}, holder)
	req.SetPathValue("view", "posts")
	req.SetPathValue("id", "p1")
	rec = httptest.NewRecorder()
	h.Delete(rec, req)

	if fake.deletes != 1 {
		t.Errorf("deletes = %d, want 1", fake.deletes)
	}
	doc = parseDoc(t, rec)
	if doc.Find("#post-p1").Length() != 0 {
		t.Error("deleted post still listed")
	}
	if got := strings.TrimSpace(doc.Find("#admin-notice").Text()); got != "Deleted." {
		t.Errorf("notice = %q, want %q", got, "Deleted.")
	}
}

func TestAdminPostFormRoundTrip(t *testing.T) {
	fake := &fakeContent{}
	h := newAdminHandler(t, fake.handle(t))
	mgr := setupManager(t)

	req, holder := newRequest(t, mgr, http.MethodGet, "/admin/content/posts/new", nil, signToken(t, jwt.MapClaims{"role": "admin"}))
	req.SetPathValue("view", "posts")
	rec := httptest.NewRecorder()
	h.New(rec, req)

	doc := parseDoc(t, rec)
	form := doc.Find("#post-form")
	if form.Length() != 1 {
		t.Fatal("post form not open")
	}
	if v, _ := form.Find(`input[name="readTime"]`).Attr("value"); v != "5 min" {
		t.Errorf("readTime default = %q, want %q", v, "5 min")
	}
	if _, checked := form.Find(`input[name="published"]`).Attr("checked"); !checked {
		t.Error("published should default to checked")
	}

	req = sameSession(http.MethodPost, "/admin/content/posts/save", url.Values{
		"title":     {"Hello"},
		"content":   {"Body"},
		"readTime":  {"3 min"},
		"published": {"true"},
	}, holder)
	req.SetPathValue("view", "posts")
	rec = httptest.NewRecorder()
	h.Save(rec, req)

	if len(fake.creates) != 1 {
		t.Fatalf("creates = %d, want 1", len(fake.creates))
	}
	created := fake.creates[0]
	if created["title"] != "Hello" || created["readTime"] != "3 min" || created["published"] != true {
		t.Errorf("created = %v", created)
	}

	doc = parseDoc(t, rec)
	if doc.Find("#post-form").Length() != 0 {
		t.Error("form should close after a successful save")
	}
	if doc.Find("#post-p-new").Length() != 1 {
		t.Error("created post not listed after reload")
	}
}

func TestAdminSaveFailureKeepsFormOpen(t *testing.T) {
	h := newAdminHandler(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Title is required"})
	})
	mgr := setupManager(t)

	req, holder := newRequest(t, mgr, http.MethodGet, "/admin/content/faqs/new", nil, signToken(t, jwt.MapClaims{"role": "admin"}))
	req.SetPathValue("view", "faqs")
	h.New(httptest.NewRecorder(), req)

	req = sameSession(http.MethodPost, "/admin/content/faqs/save", url.Values{"question": {""}, "order": {"4"}}, holder)
	req.SetPathValue("view", "faqs")
	rec := httptest.NewRecorder()
	h.Save(rec, req)

	form := parseDoc(t, rec).Find("#faq-form")
	if form.Length() != 1 {
		t.Fatal("form should stay open")
	}
	if got := strings.TrimSpace(form.Find(".alert-error").Text()); got != "Title is required" {
		t.Errorf("form error = %q, want %q", got, "Title is required")
	}
	if v, _ := form.Find(`input[name="order"]`).Attr("value"); v != "4" {
		t.Errorf("order = %q, want %q", v, "4")
	}
}

func TestAdminMessageStatusRejectsResolved(t *testing.T) {
	h := newAdminHandler(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
	})
	mgr := setupManager(t)

	req, _ := newRequest(t, mgr, http.MethodPost, "/admin/content/messages/m1/status", url.Values{"status": {"resolved"}}, signToken(t, jwt.MapClaims{"role": "admin"}))
	req.SetPathValue("id", "m1")
	rec := httptest.NewRecorder()
	h.MessageStatus(rec, req)

	if got := strings.TrimSpace(parseDoc(t, rec).Find("#admin-alert").Text()); got != `Invalid status "resolved"` {
		t.Errorf("alert = %q", got)
	}
}

func TestAdminRerunDeclinedIssuesNoRequest(t *testing.T) {
	var posts int
	h := newAdminHandler(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts++
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "items": []any{}})
	})
	mgr := setupManager(t)

	req, _ := newRequest(t, mgr, http.MethodPost, "/admin/content/analysis/a1/rerun", url.Values{}, signToken(t, jwt.MapClaims{"role": "admin"}))
	req.SetPathValue("id", "a1")
	rec := httptest.NewRecorder()
	h.Rerun(rec, req)

	if posts != 0 {
		t.Errorf("rerun requests = %d, want 0", posts)
	}
	if got := strings.TrimSpace(parseDoc(t, rec).Find(".confirm p").Text()); got != console.RerunPrompt {
		t.Errorf("prompt = %q, want %q", got, console.RerunPrompt)
	}
}

func TestAdminRenderError(t *testing.T) {
	h := newAdminHandler(t, func(w http.ResponseWriter, r *http.Request) {})
	rec := httptest.NewRecorder()
	h.RenderError(rec, httptest.NewRequest(http.MethodGet, "/admin/content", nil), "boom")

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if !strings.Contains(rec.Body.String(), "Admin panel error: boom") {
		t.Errorf("body = %q", rec.Body.String())
	}
}
