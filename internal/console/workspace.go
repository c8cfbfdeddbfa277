// Package console is the per-session state of the admin content console: one
// list per backend collection plus the inline edit forms for posts and FAQs.
package console

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dukerupert/aivis/internal/api"
	"github.com/dukerupert/aivis/internal/editform"
	"github.com/dukerupert/aivis/internal/model"
	"github.com/dukerupert/aivis/internal/resource"
)

// Views of the console, in tab order.
const (
	ViewPosts    = "posts"
	ViewFAQs     = "faqs"
	ViewMessages = "messages"
	ViewAnalysis = "analysis"
)

var Views = []string{ViewPosts, ViewFAQs, ViewMessages, ViewAnalysis}

func ValidView(v string) bool {
	for _, view := range Views {
		if v == view {
			return true
		}
	}
	return false
}

const (
	RerunPrompt   = "Re-run this analysis now?"
	RerunFallback = "Failed to re-queue"
)

// MessageFilters are the status filters offered for contact messages.
var MessageFilters = []string{resource.StatusAll, model.StatusNew, model.StatusViewed}

// JobFilters are the status filters offered for analysis records.
var JobFilters = []string{resource.StatusAll, model.JobQueued, model.JobProcessing, model.JobCompleted, model.JobFailed}

// NormalizeMessageFilter maps anything that is not an offered filter,
// including the legacy "resolved", to "all".
func NormalizeMessageFilter(status string) string {
	if model.ValidMessageStatus(status) {
		return status
	}
	return resource.StatusAll
}

func NormalizeJobFilter(status string) string {
	for _, s := range JobFilters {
		if s == status {
			return s
		}
	}
	return resource.StatusAll
}

type Workspace struct {
	Posts    *resource.List[model.BlogPost]
	FAQs     *resource.List[model.FAQ]
	Messages *resource.List[model.ContactMessage]
	Jobs     *resource.List[model.AnalysisJob]

	PostForm *editform.Form[model.BlogPost]
	FAQForm  *editform.Form[model.FAQ]

	mu       sync.Mutex
	queries  map[string]resource.Query
	lastUsed time.Time
}

func NewWorkspace(f resource.Fetcher) *Workspace {
	w := &Workspace{
		Posts:    resource.New(f, postsConfig()),
		FAQs:     resource.New(f, faqsConfig()),
		Messages: resource.New(f, messagesConfig()),
		Jobs:     resource.New(f, jobsConfig()),
		queries:  make(map[string]resource.Query),
	}
	w.PostForm = editform.New[model.BlogPost](w.Posts, postKey)
	w.FAQForm = editform.New[model.FAQ](w.FAQs, faqKey)
	return w
}

func postKey(p model.BlogPost) string { return p.ID }
func faqKey(f model.FAQ) string       { return f.ID }

func postsConfig() resource.Config[model.BlogPost] {
	return resource.Config[model.BlogPost]{
		Name:     "posts",
		Endpoint: "/admin/blogs",
		ItemsKey: "posts",
		PageSize: 20,
		Key:      postKey,
		Less:     func(a, b model.BlogPost) bool { return a.CreatedAt.After(b.CreatedAt) },
		Match: func(p model.BlogPost, q string) bool {
			return resource.Contains(q, p.Title)
		},
		DeletePrompt: "Delete post?",
	}
}

func faqsConfig() resource.Config[model.FAQ] {
	return resource.Config[model.FAQ]{
		Name:     "FAQs",
		Endpoint: "/admin/faqs",
		ItemsKey: "faqs",
		PageSize: 20,
		Key:      faqKey,
		Less: func(a, b model.FAQ) bool {
			if a.Order != b.Order {
				return a.Order < b.Order
			}
			return a.CreatedAt.After(b.CreatedAt)
		},
		Match: func(f model.FAQ, q string) bool {
			return resource.Contains(q, f.Question)
		},
		DeletePrompt: "Delete FAQ?",
	}
}

func messagesConfig() resource.Config[model.ContactMessage] {
	return resource.Config[model.ContactMessage]{
		Name:     "messages",
		Endpoint: "/admin/contact-messages",
		ItemsKey: "items",
		PageSize: 20,
		Key:      func(m model.ContactMessage) string { return m.ID },
		Less:     func(a, b model.ContactMessage) bool { return a.CreatedAt.After(b.CreatedAt) },
		Match: func(m model.ContactMessage, q string) bool {
			return resource.Contains(q, m.Name, m.Email, m.Business, m.Message)
		},
		Status:       func(m model.ContactMessage) string { return m.Status },
		RemoteSearch: true,
		DeletePrompt: "Delete message?",
	}
}

// adminJobKey keys analysis records by _id, which is what re-run addresses.
func adminJobKey(j model.AnalysisJob) string {
	if j.ID != "" {
		return j.ID
	}
	return j.TaskID
}

func jobsConfig() resource.Config[model.AnalysisJob] {
	return resource.Config[model.AnalysisJob]{
		Name:     "analysis records",
		Endpoint: "/admin/analysis-records",
		ItemsKey: "items",
		PageSize: 25,
		Key:      adminJobKey,
		Less:     func(a, b model.AnalysisJob) bool { return a.CreatedAt.After(b.CreatedAt) },
		Match: func(j model.AnalysisJob, q string) bool {
			return resource.Contains(q, j.URL, j.Email, j.TaskID)
		},
		Status:       func(j model.AnalysisJob) string { return j.Status },
		RemoteSearch: true,
		RemoteStatus: true,
	}
}

// Query returns the current query of a view.
func (w *Workspace) Query(view string) resource.Query {
	w.mu.Lock()
	defer w.mu.Unlock()
	q := w.queries[view]
	if q.Status == "" {
		q.Status = resource.StatusAll
	}
	return q
}

// SetQuery records q for view after normalizing its status filter.
func (w *Workspace) SetQuery(view string, q resource.Query) resource.Query {
	switch view {
	case ViewMessages:
		q.Status = NormalizeMessageFilter(q.Status)
	case ViewAnalysis:
		q.Status = NormalizeJobFilter(q.Status)
	default:
		q.Status = resource.StatusAll
	}
	q.Text = strings.TrimSpace(q.Text)

	w.mu.Lock()
	w.queries[view] = q
	w.mu.Unlock()
	return q
}

// Load fetches the given page of view under its current query.
func (w *Workspace) Load(ctx context.Context, tok api.Token, view string, page int) error {
	q := w.Query(view)
	switch view {
	case ViewPosts:
		return w.Posts.Load(ctx, tok, page, q)
	case ViewFAQs:
		return w.FAQs.Load(ctx, tok, page, q)
	case ViewMessages:
		return w.Messages.Load(ctx, tok, page, q)
	case ViewAnalysis:
		return w.Jobs.Load(ctx, tok, page, q)
	}
	return fmt.Errorf("unknown view %q", view)
}

func (w *Workspace) LoadMore(ctx context.Context, tok api.Token, view string) error {
	switch view {
	case ViewPosts:
		return w.Posts.LoadMore(ctx, tok)
	case ViewFAQs:
		return w.FAQs.LoadMore(ctx, tok)
	case ViewMessages:
		return w.Messages.LoadMore(ctx, tok)
	case ViewAnalysis:
		return w.Jobs.LoadMore(ctx, tok)
	}
	return fmt.Errorf("unknown view %q", view)
}

// SetMessageStatus moves a contact message to new or viewed.
func (w *Workspace) SetMessageStatus(ctx context.Context, tok api.Token, id, status string) error {
	if !model.ValidMessageStatus(status) {
		return &resource.MutationError{Op: "status", Message: fmt.Sprintf("Invalid status %q", status)}
	}
	path := "/admin/contact-messages/" + url.PathEscape(id) + "/status"
	_, err := w.Messages.Action(ctx, tok, http.MethodPatch, path, map[string]string{"status": status}, "", nil, "Status update failed")
	return err
}

// Rerun re-queues the analysis record with id after confirmation. It returns
// the task id reported by the backend, falling back to the record's own.
func (w *Workspace) Rerun(ctx context.Context, tok api.Token, id string, confirm resource.Confirm) (string, error) {
	rec, _ := w.Jobs.Get(id)
	path := "/admin/analysis/" + url.PathEscape(id) + "/rerun"
	resp, err := w.Jobs.Action(ctx, tok, http.MethodPost, path, nil, RerunPrompt, confirm, RerunFallback)
	if err != nil {
		return "", err
	}

	var ack struct {
		TaskID    string `json:"taskId"`
		NewTaskID string `json:"newTaskId"`
	}
	_ = json.Unmarshal(resp.Data, &ack)
	switch {
	case ack.TaskID != "":
		return ack.TaskID, nil
	case ack.NewTaskID != "":
		return ack.NewTaskID, nil
	}
	return rec.TaskID, nil
}

func (w *Workspace) touch(now time.Time) {
	w.mu.Lock()
	w.lastUsed = now
	w.mu.Unlock()
}

func (w *Workspace) LastUsed() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastUsed
}

// Workspaces holds one Workspace per admin session.
type Workspaces struct {
	api resource.Fetcher
	now func() time.Time

	mu     sync.Mutex
	spaces map[string]*Workspace
}

func NewWorkspaces(f resource.Fetcher) *Workspaces {
	return &Workspaces{api: f, now: time.Now, spaces: make(map[string]*Workspace)}
}

// Get returns the workspace of sessionID, creating it on first use.
func (ws *Workspaces) Get(sessionID string) *Workspace {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	w, ok := ws.spaces[sessionID]
	if !ok {
		w = NewWorkspace(ws.api)
		ws.spaces[sessionID] = w
	}
	w.touch(ws.now())
	return w
}

// Drop discards the workspace of sessionID, on logout.
func (ws *Workspaces) Drop(sessionID string) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	delete(ws.spaces, sessionID)
}

// Cleanup discards workspaces unused for longer than maxIdle and returns how
// many were removed.
func (ws *Workspaces) Cleanup(maxIdle time.Duration) int {
	cutoff := ws.now().Add(-maxIdle)
	ws.mu.Lock()
	defer ws.mu.Unlock()
	n := 0
	for id, w := range ws.spaces {
		if w.LastUsed().Before(cutoff) {
			delete(ws.spaces, id)
			n++
		}
	}
	return n
}

func (ws *Workspaces) Len() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return len(ws.spaces)
}
