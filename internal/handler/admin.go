package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dukerupert/aivis/internal/api"
	"github.com/dukerupert/aivis/internal/auth"
	"github.com/dukerupert/aivis/internal/console"
	"github.com/dukerupert/aivis/internal/editform"
	"github.com/dukerupert/aivis/internal/model"
	"github.com/dukerupert/aivis/internal/resource"
)

// Confirm is the two-step prompt shown before a destructive action.
type Confirm struct {
	Prompt string
	Action string
	Cancel string
}

type AdminHandler struct {
	api        *api.Client
	workspaces *console.Workspaces
	render     *Renderer
	logger     *slog.Logger
}

func NewAdminHandler(c *api.Client, ws *console.Workspaces, rd *Renderer, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{api: c, workspaces: ws, render: rd, logger: logger}
}

// RenderError is the admin error boundary's fallback.
func (h *AdminHandler) RenderError(w http.ResponseWriter, r *http.Request, msg string) {
	h.render.PartialStatus(w, http.StatusInternalServerError, "admin-error", map[string]any{"Message": msg})
}

func (h *AdminHandler) Index(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/admin/content", http.StatusSeeOther)
}

func (h *AdminHandler) workspace(r *http.Request) (*console.Workspace, api.Token) {
	holder, _ := auth.FromContext(r.Context())
	return h.workspaces.Get(holder.ID()), holder.Get()
}

// panelData snapshots one view of ws for the admin-panel template.
func (h *AdminHandler) panelData(ws *console.Workspace, view string) map[string]any {
	q := ws.Query(view)
	data := map[string]any{"View": view, "Views": console.Views, "Query": q}
	switch view {
	case console.ViewPosts:
		data["Items"] = ws.Posts.Items(q)
		data["State"] = ws.Posts.State()
		data["Form"] = ws.PostForm.Snapshot()
	case console.ViewFAQs:
		data["Items"] = ws.FAQs.Items(q)
		data["State"] = ws.FAQs.State()
		data["Form"] = ws.FAQForm.Snapshot()
	case console.ViewMessages:
		data["Items"] = ws.Messages.Items(q)
		data["State"] = ws.Messages.State()
		data["Filters"] = console.MessageFilters
	case console.ViewAnalysis:
		data["Items"] = ws.Jobs.Items(q)
		data["State"] = ws.Jobs.State()
		data["Filters"] = console.JobFilters
	}
	return data
}

func (h *AdminHandler) panel(w http.ResponseWriter, ws *console.Workspace, view string, extra map[string]any) {
	data := h.panelData(ws, view)
	for k, v := range extra {
		data[k] = v
	}
	h.render.Partial(w, "admin-panel", data)
}

func alert(err error, fallback string) map[string]any {
	var mErr *resource.MutationError
	if errors.As(err, &mErr) {
		return map[string]any{"Alert": mErr.Message}
	}
	return map[string]any{"Alert": api.Message(err, fallback)}
}

func pathView(w http.ResponseWriter, r *http.Request) (string, bool) {
	view := r.PathValue("view")
	if !console.ValidView(view) {
		http.NotFound(w, r)
		return "", false
	}
	return view, true
}

// Content renders the full console page on one view.
func (h *AdminHandler) Content(w http.ResponseWriter, r *http.Request) {
	view := r.URL.Query().Get("view")
	if !console.ValidView(view) {
		view = console.ViewPosts
	}
	ws, tok := h.workspace(r)

	var extra map[string]any
	if err := ws.Load(r.Context(), tok, view, 1); err != nil {
		extra = alert(err, "Failed to load "+viewTitle(view))
	}
	data := h.panelData(ws, view)
	for k, v := range extra {
		data[k] = v
	}
	data["Title"] = "Content manager"
	data["Active"] = "admin"
	h.render.Page(w, r, "admin_content.html", data)
}

// Panel applies the search and status filter from the query string and
// reloads page 1 of the view.
func (h *AdminHandler) Panel(w http.ResponseWriter, r *http.Request) {
	view, ok := pathView(w, r)
	if !ok {
		return
	}
	ws, tok := h.workspace(r)
	q := r.URL.Query()
	ws.SetQuery(view, resource.Query{Text: q.Get("q"), Status: q.Get("status")})

	var extra map[string]any
	if err := ws.Load(r.Context(), tok, view, 1); err != nil {
		extra = alert(err, "Failed to load "+viewTitle(view))
	}
	h.panel(w, ws, view, extra)
}

func (h *AdminHandler) More(w http.ResponseWriter, r *http.Request) {
	view, ok := pathView(w, r)
	if !ok {
		return
	}
	ws, tok := h.workspace(r)

	var extra map[string]any
	err := ws.LoadMore(r.Context(), tok, view)
	switch {
	case err == nil, errors.Is(err, resource.ErrNoMore):
	case errors.Is(err, resource.ErrBusy):
		extra = map[string]any{"Notice": "Still loading, try again in a moment."}
	default:
		extra = alert(err, "Failed to load more")
	}
	h.panel(w, ws, view, extra)
}

// New opens the create form of a posts or FAQs view.
func (h *AdminHandler) New(w http.ResponseWriter, r *http.Request) {
	view, ok := pathView(w, r)
	if !ok {
		return
	}
	ws, _ := h.workspace(r)
	switch view {
	case console.ViewPosts:
		ws.PostForm.OpenNew(model.NewBlogPost())
	case console.ViewFAQs:
		ws.FAQForm.OpenNew(model.NewFAQ())
	default:
		http.NotFound(w, r)
		return
	}
	h.panel(w, ws, view, nil)
}

func (h *AdminHandler) Edit(w http.ResponseWriter, r *http.Request) {
	view, ok := pathView(w, r)
	if !ok {
		return
	}
	ws, _ := h.workspace(r)
	id := r.PathValue("id")

	found := false
	switch view {
	case console.ViewPosts:
		var p model.BlogPost
		if p, found = ws.Posts.Get(id); found {
			ws.PostForm.Edit(p)
		}
	case console.ViewFAQs:
		var f model.FAQ
		if f, found = ws.FAQs.Get(id); found {
			ws.FAQForm.Edit(f)
		}
	default:
		http.NotFound(w, r)
		return
	}
	var extra map[string]any
	if !found {
		extra = map[string]any{"Alert": "That record is no longer loaded. Reload the list and try again."}
	}
	h.panel(w, ws, view, extra)
}

func (h *AdminHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	view, ok := pathView(w, r)
	if !ok {
		return
	}
	ws, _ := h.workspace(r)
	switch view {
	case console.ViewPosts:
		ws.PostForm.Cancel()
	case console.ViewFAQs:
		ws.FAQForm.Cancel()
	}
	h.panel(w, ws, view, nil)
}

// Save submits the open form. A failed save keeps the form open with its
// error; the panel shows it inside the form.
func (h *AdminHandler) Save(w http.ResponseWriter, r *http.Request) {
	view, ok := pathView(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return
	}
	ws, tok := h.workspace(r)

	var err error
	switch view {
	case console.ViewPosts:
		err = ws.PostForm.Submit(r.Context(), tok, postDraft(ws.PostForm.Snapshot().Draft, r))
	case console.ViewFAQs:
		err = ws.FAQForm.Submit(r.Context(), tok, faqDraft(ws.FAQForm.Snapshot().Draft, r))
	default:
		http.NotFound(w, r)
		return
	}

	var extra map[string]any
	switch {
	case err == nil:
		extra = map[string]any{"Notice": "Saved."}
	case errors.Is(err, editform.ErrClosed):
		extra = map[string]any{"Alert": "The form was closed. Open it again to save."}
	default:
		h.logger.Info("save failed", "view", view, "error", err)
	}
	h.panel(w, ws, view, extra)
}

// postDraft overlays the submitted fields on the draft the form was opened
// with, keeping fields the form does not carry.
func postDraft(base model.BlogPost, r *http.Request) model.BlogPost {
	base.Title = strings.TrimSpace(r.FormValue("title"))
	base.Excerpt = r.FormValue("excerpt")
	base.Content = r.FormValue("content")
	base.Category = strings.TrimSpace(r.FormValue("category"))
	base.Author = strings.TrimSpace(r.FormValue("author"))
	base.ReadTime = strings.TrimSpace(r.FormValue("readTime"))
	base.Featured = r.FormValue("featured") == "true"
	base.Published = r.FormValue("published") == "true"
	return base
}

func faqDraft(base model.FAQ, r *http.Request) model.FAQ {
	base.Question = strings.TrimSpace(r.FormValue("question"))
	base.Answer = r.FormValue("answer")
	base.Category = strings.TrimSpace(r.FormValue("category"))
	if n, err := strconv.Atoi(strings.TrimSpace(r.FormValue("order"))); err == nil {
		base.Order = n
	}
	base.Published = r.FormValue("published") == "true"
	return base
}

// confirmFor answers a resource prompt from the confirmed form field and
// records the prompt it was asked.
func confirmFor(r *http.Request, prompt *string) resource.Confirm {
	confirmed := r.FormValue("confirmed") == "true"
	return func(p string) bool {
		*prompt = p
		return confirmed
	}
}

func cancelURL(ws *console.Workspace, view string) string {
	q := ws.Query(view)
	v := url.Values{}
	if q.Text != "" {
		v.Set("q", q.Text)
	}
	if q.Status != resource.StatusAll {
		v.Set("status", q.Status)
	}
	target := "/admin/content/" + view
	if enc := v.Encode(); enc != "" {
		target += "?" + enc
	}
	return target
}

// Delete removes a record once the prompt was confirmed. Without
// confirmed=true it only renders the prompt and issues no request.
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	view, ok := pathView(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return
	}
	ws, tok := h.workspace(r)
	id := r.PathValue("id")

	var prompt string
	confirm := confirmFor(r, &prompt)
	var err error
	switch view {
	case console.ViewPosts:
		err = ws.Posts.Delete(r.Context(), tok, id, confirm)
	case console.ViewFAQs:
		err = ws.FAQs.Delete(r.Context(), tok, id, confirm)
	case console.ViewMessages:
		err = ws.Messages.Delete(r.Context(), tok, id, confirm)
	default:
		http.NotFound(w, r)
		return
	}
	h.afterAction(w, r, ws, view, prompt, err, "Deleted.", "Delete failed")
}

func (h *AdminHandler) afterAction(w http.ResponseWriter, r *http.Request, ws *console.Workspace, view, prompt string, err error, notice, fallback string) {
	var extra map[string]any
	switch {
	case err == nil:
		extra = map[string]any{"Notice": notice}
	case errors.Is(err, resource.ErrDeclined):
		extra = map[string]any{"Confirm": Confirm{Prompt: prompt, Action: r.URL.Path, Cancel: cancelURL(ws, view)}}
	default:
		h.logger.Info("admin action failed", "view", view, "path", r.URL.Path, "error", err)
		extra = alert(err, fallback)
	}
	h.panel(w, ws, view, extra)
}

// MessageStatus moves a contact message between new and viewed.
func (h *AdminHandler) MessageStatus(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return
	}
	ws, tok := h.workspace(r)
	var extra map[string]any
	if err := ws.SetMessageStatus(r.Context(), tok, r.PathValue("id"), r.FormValue("status")); err != nil {
		extra = alert(err, "Status update failed")
	}
	h.panel(w, ws, console.ViewMessages, extra)
}

// Rerun re-queues an analysis record after confirmation.
func (h *AdminHandler) Rerun(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return
	}
	ws, tok := h.workspace(r)

	var prompt string
	taskID, err := ws.Rerun(r.Context(), tok, r.PathValue("id"), confirmFor(r, &prompt))
	notice := "Analysis re-queued."
	if taskID != "" {
		notice = fmt.Sprintf("Analysis re-queued as task %s.", taskID)
	}
	h.afterAction(w, r, ws, console.ViewAnalysis, prompt, err, notice, console.RerunFallback)
}

// Dashboard shows the admin's profile and the analyses requested under
// their email.
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	tok := auth.Token(r.Context())
	data := map[string]any{"Title": "Admin dashboard", "Active": "admin"}

	user, err := h.api.Me(r.Context(), tok)
	if err != nil {
		data["Error"] = api.Message(err, "Failed to load profile")
		h.render.PageStatus(w, r, http.StatusBadGateway, "admin_dashboard.html", data)
		return
	}
	data["User"] = user

	tasks, err := h.api.AnalysisStatus(r.Context(), user.Email)
	if err != nil {
		data["Error"] = api.Message(err, "Failed to load analysis status")
	}
	data["Tasks"] = tasks
	h.render.Page(w, r, "admin_dashboard.html", data)
}

// Diagnostics reports the backend probes as JSON.
func (h *AdminHandler) Diagnostics(w http.ResponseWriter, r *http.Request) {
	out := map[string]api.ProbeResult{
		"connection": h.api.CheckConnection(r.Context()),
		"ping":       h.api.Ping(r.Context()),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		h.logger.Error("encode diagnostics", "error", err)
	}
}
