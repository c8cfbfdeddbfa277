// Package resource implements paginated, searchable views over a backend
// collection. One List is configured per collection; every page loaded is
// reconciled into a map keyed by record identifier.
package resource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/dukerupert/aivis/internal/api"
)

var (
	ErrBusy   = errors.New("a load is already in progress")
	ErrNoMore = errors.New("no more pages")
)

// Fetcher is the slice of *api.Client a List needs.
type Fetcher interface {
	FetchJSON(ctx context.Context, method, path string, body any, tok api.Token) (*api.Response, error)
}

// StatusAll disables status filtering.
const StatusAll = "all"

type Config[T any] struct {
	Name     string
	Endpoint string
	// ItemsKey names the array in the response envelope ("posts", "items", ...).
	ItemsKey string
	PageSize int
	// PageSizeParam is the query parameter carrying PageSize. Defaults to "limit".
	PageSizeParam string

	Key  func(T) string
	Less func(a, b T) bool
	// Match reports whether item matches the lowercased search text q.
	Match func(item T, q string) bool
	// Status returns the record status used by local status filtering. Nil
	// disables status filtering.
	Status func(T) string

	// RemoteSearch and RemoteStatus forward the query to the backend as q and
	// status. Local filtering still applies to the loaded window.
	RemoteSearch bool
	RemoteStatus bool

	// DeletePrompt is shown to the user before a delete is issued.
	DeletePrompt string
}

// Query narrows a load (remotely, where configured) and the visible window.
type Query struct {
	Text   string
	Status string
}

func (q Query) normalized() Query {
	q.Text = strings.TrimSpace(q.Text)
	if q.Status == "" {
		q.Status = StatusAll
	}
	return q
}

// State is the pagination state of the last successful fetch.
type State struct {
	Page    int
	Total   int
	HasMore bool
	Loading bool
	Count   int
	Query   Query
	Err     error
}

type List[T any] struct {
	cfg Config[T]
	api Fetcher

	mu       sync.Mutex
	items    map[string]T
	sorted   []T
	page     int
	total    int
	hasMore  bool
	inflight int
	query    Query
	loaded   bool
	lastErr  error
}

func New[T any](f Fetcher, cfg Config[T]) *List[T] {
	if cfg.PageSizeParam == "" {
		cfg.PageSizeParam = "limit"
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 20
	}
	return &List[T]{
		cfg:   cfg,
		api:   f,
		items: make(map[string]T),
		query: Query{Status: StatusAll},
	}
}

func (l *List[T]) Name() string { return l.cfg.Name }

func (l *List[T]) PageSize() int { return l.cfg.PageSize }

// Load fetches one page and merges it into the window. Records already loaded
// from other pages are kept. Loading page 1 under a different query starts a
// fresh window.
func (l *List[T]) Load(ctx context.Context, tok api.Token, page int, q Query) error {
	l.mu.Lock()
	l.inflight++
	l.mu.Unlock()
	return l.load(ctx, tok, page, q.normalized(), false)
}

// LoadMore fetches the page after the last one loaded. It refuses to run while
// another load is outstanding or once the backend reported the last page.
func (l *List[T]) LoadMore(ctx context.Context, tok api.Token) error {
	l.mu.Lock()
	if l.inflight > 0 {
		l.mu.Unlock()
		return ErrBusy
	}
	if l.loaded && !l.hasMore {
		l.mu.Unlock()
		return ErrNoMore
	}
	next, q := l.page+1, l.query
	l.inflight++
	l.mu.Unlock()

	return l.load(ctx, tok, next, q, false)
}

// Reload replaces the window with page 1 of the current query. Mutations use
// it so removed records disappear.
func (l *List[T]) Reload(ctx context.Context, tok api.Token) error {
	l.mu.Lock()
	q := l.query
	l.inflight++
	l.mu.Unlock()
	return l.load(ctx, tok, 1, q, true)
}

// load expects the caller to have incremented inflight.
func (l *List[T]) load(ctx context.Context, tok api.Token, page int, q Query, replace bool) error {
	items, env, err := l.fetch(ctx, tok, page, q)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.inflight--

	if err != nil {
		l.lastErr = err
		return err
	}
	l.lastErr = nil

	if replace || (page == 1 && q != l.query) {
		l.items = make(map[string]T, len(items))
	}
	for _, item := range items {
		if key := l.cfg.Key(item); key != "" {
			l.items[key] = item
		}
	}
	l.resort()

	l.query = q
	l.loaded = true
	l.page = page
	if env.Page != nil && *env.Page > 0 {
		l.page = *env.Page
	}
	l.total = len(l.items)
	if env.Total != nil {
		l.total = *env.Total
	}
	switch {
	case env.HasMore != nil:
		l.hasMore = *env.HasMore
	case env.Total != nil:
		l.hasMore = l.page*l.cfg.PageSize < *env.Total
	default:
		l.hasMore = len(items) == l.cfg.PageSize
	}
	return nil
}

type envelope struct {
	Page    *int  `json:"page"`
	Total   *int  `json:"total"`
	HasMore *bool `json:"hasMore"`
}

func (l *List[T]) fetch(ctx context.Context, tok api.Token, page int, q Query) ([]T, envelope, error) {
	var env envelope

	resp, err := l.api.FetchJSON(ctx, "GET", l.pagePath(page, q), nil, tok)
	if err != nil {
		return nil, env, err
	}
	if err := resp.Err("Failed to load " + l.cfg.Name); err != nil {
		return nil, env, err
	}

	var raw map[string]json.RawMessage
	if err := resp.Decode(&raw); err != nil {
		return nil, env, err
	}
	if err := resp.Decode(&env); err != nil {
		return nil, env, err
	}

	var items []T
	if data, ok := raw[l.cfg.ItemsKey]; ok && string(data) != "null" {
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, env, fmt.Errorf("decode %s: %w", l.cfg.ItemsKey, err)
		}
	}
	return items, env, nil
}

func (l *List[T]) pagePath(page int, q Query) string {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set(l.cfg.PageSizeParam, strconv.Itoa(l.cfg.PageSize))
	if l.cfg.RemoteSearch && q.Text != "" {
		params.Set("q", q.Text)
	}
	if l.cfg.RemoteStatus && q.Status != StatusAll {
		params.Set("status", q.Status)
	}
	return l.cfg.Endpoint + "?" + params.Encode()
}

// resort expects l.mu held.
func (l *List[T]) resort() {
	sorted := make([]T, 0, len(l.items))
	for _, item := range l.items {
		sorted = append(sorted, item)
	}
	if l.cfg.Less != nil {
		slices.SortStableFunc(sorted, func(a, b T) int {
			switch {
			case l.cfg.Less(a, b):
				return -1
			case l.cfg.Less(b, a):
				return 1
			}
			return strings.Compare(l.cfg.Key(a), l.cfg.Key(b))
		})
	}
	l.sorted = sorted
}

// Merge folds items into the window without touching pagination state. It is
// how pushed updates reach the list.
func (l *List[T]) Merge(items []T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, item := range items {
		if key := l.cfg.Key(item); key != "" {
			l.items[key] = item
		}
	}
	l.resort()
}

// Items returns the loaded window filtered locally by f: case-insensitive
// substring search plus status equality. Unloaded pages are never searched.
func (l *List[T]) Items(f Query) []T {
	f = f.normalized()
	text := strings.ToLower(f.Text)

	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]T, 0, len(l.sorted))
	for _, item := range l.sorted {
		if text != "" && l.cfg.Match != nil && !l.cfg.Match(item, text) {
			continue
		}
		if f.Status != StatusAll && l.cfg.Status != nil && l.cfg.Status(item) != f.Status {
			continue
		}
		out = append(out, item)
	}
	return out
}

func (l *List[T]) Get(key string) (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	item, ok := l.items[key]
	return item, ok
}

func (l *List[T]) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return State{
		Page:    l.page,
		Total:   l.total,
		HasMore: l.hasMore,
		Loading: l.inflight > 0,
		Count:   len(l.items),
		Query:   l.query,
		Err:     l.lastErr,
	}
}

// Contains reports whether any field in fields contains q. q must already be
// lowercased.
func Contains(q string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}
