package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/aivis/internal/api"
	"github.com/dukerupert/aivis/internal/auth"
)

const analyzeTimeout = 10 * time.Second

type CheckoutHandler struct {
	api    *api.Client
	render *Renderer
	logger *slog.Logger
}

func NewCheckoutHandler(c *api.Client, rd *Renderer, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{api: c, render: rd, logger: logger}
}

// Page renders the order form, prefilled from the query and the signed-in
// email.
func (h *CheckoutHandler) Page(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	email := q.Get("email")
	if email == "" {
		email = auth.Hint(r.Context()).Email
	}
	h.render.Page(w, r, "checkout.html", map[string]any{
		"Title":  "Checkout",
		"Active": "checkout",
		"URL":    q.Get("url"),
		"Email":  email,
		"Name":   q.Get("name"),
	})
}

// Submit prechecks the website, then opens a payment session and sends the
// browser to it.
func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render.Page(w, r, "checkout.html", map[string]any{"Error": "Invalid form data"})
		return
	}
	req := api.CheckoutRequest{
		URL:   strings.TrimSpace(r.FormValue("url")),
		Email: strings.TrimSpace(r.FormValue("email")),
		Name:  strings.TrimSpace(r.FormValue("name")),
	}
	data := map[string]any{"Title": "Checkout", "Active": "checkout", "URL": req.URL, "Email": req.Email, "Name": req.Name}
	if req.URL == "" || req.Email == "" {
		data["Error"] = "Website and email are required"
		h.render.PageStatus(w, r, http.StatusBadRequest, "checkout.html", data)
		return
	}

	final, err := h.api.PrecheckURL(r.Context(), req.URL)
	if err != nil {
		data["Error"] = api.Message(err, "That website could not be reached")
		h.render.PageStatus(w, r, http.StatusBadRequest, "checkout.html", data)
		return
	}
	req.URL = final

	payURL, err := h.api.CreateCheckoutSession(r.Context(), req)
	if err != nil {
		h.logger.Warn("checkout session", "error", err)
		data["URL"] = final
		data["Error"] = api.Message(err, "Payment initiation failed. Please try again.")
		h.render.PageStatus(w, r, http.StatusBadGateway, "checkout.html", data)
		return
	}
	redirect(w, r, payURL)
}

// Success is the payment return page. It queues the full analysis.
func (h *CheckoutHandler) Success(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	siteURL, email := q.Get("url"), q.Get("email")
	data := map[string]any{"Title": "Thank you", "URL": siteURL, "Email": email}
	if siteURL == "" || email == "" {
		data["Error"] = "Missing website or email. Check your inbox for the payment receipt."
		h.render.PageStatus(w, r, http.StatusBadRequest, "success.html", data)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), analyzeTimeout)
	defer cancel()
	ack, err := h.api.Analyze(ctx, siteURL, email)
	if err != nil {
		h.logger.Warn("queue analysis", "url", siteURL, "error", err)
		data["Error"] = api.Message(err, "Failed to start analysis")
		h.render.PageStatus(w, r, http.StatusBadGateway, "success.html", data)
		return
	}
	data["TaskID"] = ack.TaskID
	data["Notice"] = ack.Message
	h.render.Page(w, r, "success.html", data)
}
