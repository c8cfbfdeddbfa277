package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/dukerupert/aivis/internal/api"
)

// authPaths are never remembered as the last visited route.
var authPaths = map[string]bool{
	"/login":               true,
	"/signup":              true,
	"/verify-email":        true,
	"/resend-verification": true,
	"/forgot-password":     true,
	"/reset-password":      true,
}

func IsAuthPath(path string) bool {
	return authPaths[path]
}

// Holder owns the bearer token and last-route marker of one browser session.
// It is shared by every request of that session.
type Holder struct {
	id    string
	store Store

	mu        sync.Mutex
	token     api.Token
	lastRoute string
	lastSeen  time.Time
	lastTouch time.Time

	listeners map[int]func(authenticated bool)
	nextID    int
}

func newHolder(id string, token, lastRoute string, store Store) *Holder {
	return &Holder{
		id:        id,
		store:     store,
		token:     api.Token(token),
		lastRoute: lastRoute,
		listeners: make(map[int]func(bool)),
	}
}

// ID is the opaque session id carried by the cookie.
func (h *Holder) ID() string { return h.id }

func (h *Holder) Get() api.Token {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.token
}

func (h *Holder) Authenticated() bool {
	return h.Get() != ""
}

// Hint decodes the current token for display purposes.
func (h *Holder) Hint() DisplayHint {
	return Decode(h.Get())
}

// Set stores tok and notifies listeners.
func (h *Holder) Set(tok api.Token) error {
	if tok == "" {
		return h.Clear()
	}
	if err := h.store.SetToken(h.id, string(tok)); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	h.mu.Lock()
	h.token = tok
	h.mu.Unlock()

	h.notify(true)
	return nil
}

// Clear removes the token and notifies listeners.
func (h *Holder) Clear() error {
	if err := h.store.ClearToken(h.id); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	h.mu.Lock()
	h.token = ""
	h.mu.Unlock()

	h.notify(false)
	return nil
}

// OnChange registers fn to run after every Set or Clear. The returned func
// unregisters it.
func (h *Holder) OnChange(fn func(authenticated bool)) (cancel func()) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}

func (h *Holder) notify(authenticated bool) {
	h.mu.Lock()
	fns := make([]func(bool), 0, len(h.listeners))
	for _, fn := range h.listeners {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(authenticated)
	}
}

func (h *Holder) LastRoute() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastRoute
}

// RememberRoute records path as the last visited route. Auth paths are ignored.
func (h *Holder) RememberRoute(path string) error {
	if path == "" || IsAuthPath(path) {
		return nil
	}
	h.mu.Lock()
	same := h.lastRoute == path
	h.mu.Unlock()
	if same {
		return nil
	}

	if err := h.store.SetLastRoute(h.id, path); err != nil {
		return fmt.Errorf("store last route: %w", err)
	}
	h.mu.Lock()
	h.lastRoute = path
	h.mu.Unlock()
	return nil
}

func (h *Holder) seen(now time.Time) (touch bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastSeen = now
	if now.Sub(h.lastTouch) >= touchInterval {
		h.lastTouch = now
		return true
	}
	return false
}

func (h *Holder) idle(now time.Time, maxIdle time.Duration) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners) == 0 && now.Sub(h.lastSeen) > maxIdle
}
