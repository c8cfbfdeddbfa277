package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/aivis/internal/api"
	"github.com/dukerupert/aivis/internal/auth"
	"github.com/dukerupert/aivis/internal/poller"
	"github.com/dukerupert/aivis/internal/resource"
	"github.com/dukerupert/aivis/internal/session"
	"github.com/dukerupert/aivis/internal/websocket"
)

type AccountHandler struct {
	registry *poller.Registry
	hub      *websocket.Hub
	render   *Renderer
	logger   *slog.Logger
}

func NewAccountHandler(reg *poller.Registry, hub *websocket.Hub, rd *Renderer, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{registry: reg, hub: hub, render: rd, logger: logger}
}

func (h *AccountHandler) jobsData(p *poller.Poller, alert string) map[string]any {
	jobs := p.Jobs()
	return map[string]any{
		"Jobs":  jobs.Items(resource.Query{}),
		"State": jobs.State(),
		"Alert": alert,
	}
}

// Page starts the session's poller and renders the profile and job list.
func (h *AccountHandler) Page(w http.ResponseWriter, r *http.Request) {
	holder, _ := auth.FromContext(r.Context())
	data := map[string]any{"Title": "Account", "Active": "account"}
	p, err := h.registry.Start(r.Context(), holder)
	if err != nil {
		if errors.Is(err, poller.ErrNotAuthenticated) {
			redirect(w, r, "/login?from=/account")
			return
		}
		h.logger.Warn("start account poller", "session", holder.ID(), "error", err)
		data["Error"] = api.Message(err, "Failed to load your account")
		h.render.PageStatus(w, r, http.StatusBadGateway, "account.html", data)
		return
	}

	for k, v := range h.jobsData(p, "") {
		data[k] = v
	}
	data["User"] = p.User()
	h.render.Page(w, r, "account.html", data)
}

// Jobs renders the job list partial the page swaps in on each update.
func (h *AccountHandler) Jobs(w http.ResponseWriter, r *http.Request) {
	holder, _ := auth.FromContext(r.Context())
	h.render.Partial(w, "account-jobs", h.jobsData(h.registry.For(holder), ""))
}

func (h *AccountHandler) More(w http.ResponseWriter, r *http.Request) {
	holder, _ := auth.FromContext(r.Context())
	p := h.registry.For(holder)

	alert := ""
	err := p.Jobs().LoadMore(r.Context(), holder.Get())
	switch {
	case err == nil, errors.Is(err, resource.ErrNoMore):
	case errors.Is(err, resource.ErrBusy):
		alert = "Still loading, try again in a moment."
	default:
		alert = api.Message(err, "Failed to load more analyses")
	}
	h.render.Partial(w, "account-jobs", h.jobsData(p, alert))
}

// Stream subscribes the account page to its session's job updates. A
// reconnecting viewer resumes a poller paused when the last tab closed.
func (h *AccountHandler) Stream() http.HandlerFunc {
	topic := func(r *http.Request) (string, bool) {
		holder, ok := auth.FromContext(r.Context())
		if !ok || !holder.Authenticated() {
			return "", false
		}
		h.registry.For(holder)
		return holder.ID(), true
	}
	onJoin := func(id string) {
		if err := h.registry.Resume(context.Background(), id); err != nil {
			h.logger.Debug("resume poller", "session", id, "error", err)
		}
	}
	return websocket.Handle(h.hub, topic, onJoin, h.logger)
}

// *session.Holder owns pollers.
var _ poller.Session = (*session.Holder)(nil)
