package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/aivis/internal/content"
)

// PagesHandler serves the informational pages and the public blog and FAQ.
type PagesHandler struct {
	render  *Renderer
	content *content.Service
	logger  *slog.Logger
}

func NewPagesHandler(rd *Renderer, cs *content.Service, logger *slog.Logger) *PagesHandler {
	return &PagesHandler{render: rd, content: cs, logger: logger}
}

func (h *PagesHandler) Home(w http.ResponseWriter, r *http.Request) {
	h.render.Page(w, r, "home.html", map[string]any{"Active": "home"})
}

// Static renders a page that needs no data.
func (h *PagesHandler) Static(page, active, title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.render.Page(w, r, page, map[string]any{"Active": active, "Title": title})
	}
}

// Fallback answers every unmatched GET with the home document, as a single
// page app host would.
func (h *PagesHandler) Fallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.Home(w, r)
}

func (h *PagesHandler) Blog(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{"Active": "blog", "Title": "Blog"}
	posts, err := h.content.Posts(r.Context())
	if err != nil {
		h.logger.Warn("load blog posts", "error", err)
		data["Error"] = "We couldn't load the blog right now. Please try again shortly."
	}
	data["Index"] = content.BuildIndex(posts, r.URL.Query().Get("category"))
	h.render.Page(w, r, "blog.html", data)
}

func (h *PagesHandler) BlogPost(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{"Active": "blog"}
	post, err := h.content.Post(r.Context(), r.PathValue("slug"))
	switch {
	case errors.Is(err, content.ErrNotFound):
		data["Error"] = "Post not found."
		h.render.PageStatus(w, r, http.StatusNotFound, "blog_post.html", data)
		return
	case err != nil:
		h.logger.Warn("load blog post", "slug", r.PathValue("slug"), "error", err)
		data["Error"] = "We couldn't load this post. Please try again shortly."
		h.render.PageStatus(w, r, http.StatusBadGateway, "blog_post.html", data)
		return
	}
	data["Title"] = post.Title
	data["Post"] = post
	h.render.Page(w, r, "blog_post.html", data)
}

func (h *PagesHandler) FAQ(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{"Active": "faq", "Title": "FAQ"}
	faqs, err := h.content.FAQs(r.Context())
	if err != nil {
		h.logger.Warn("load faqs", "error", err)
		data["Error"] = "We couldn't load the FAQ right now. Please try again shortly."
	}
	data["FAQs"] = faqs
	h.render.Page(w, r, "faq.html", data)
}
