package session

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dukerupert/aivis/internal/model"
)

const (
	CookieName    = "aivis_session"
	touchInterval = time.Hour
)

// Store is the persistence a Manager needs. *store.SessionStore satisfies it.
type Store interface {
	Create() (*model.Session, error)
	Get(id string) (*model.Session, error)
	SetToken(id, token string) error
	ClearToken(id string) error
	SetLastRoute(id, route string) error
	Touch(id string) error
}

// Manager binds browser cookies to Holders. One Holder exists per live
// session so listeners registered on it (the status poller) see every change.
type Manager struct {
	store  Store
	secure bool
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	holders map[string]*Holder
}

func NewManager(store Store, ttl time.Duration, secure bool, logger *slog.Logger) *Manager {
	return &Manager{
		store:   store,
		secure:  secure,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
		holders: make(map[string]*Holder),
	}
}

// Lookup returns the holder for the request's cookie without creating one.
func (m *Manager) Lookup(r *http.Request) (*Holder, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}
	return m.load(cookie.Value)
}

// Resolve returns the request's holder, starting a new anonymous session and
// setting its cookie when there is none.
func (m *Manager) Resolve(w http.ResponseWriter, r *http.Request) (*Holder, error) {
	h, err := m.Lookup(r)
	if err != nil {
		return nil, err
	}
	if h != nil {
		return h, nil
	}

	sess, err := m.store.Create()
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	h = m.cache(sess)
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sess.ID,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return h, nil
}

// Get returns a cached holder by session id.
func (m *Manager) Get(id string) *Holder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.holders[id]
}

func (m *Manager) load(id string) (*Holder, error) {
	m.mu.Lock()
	h, ok := m.holders[id]
	m.mu.Unlock()

	if !ok {
		sess, err := m.store.Get(id)
		if err != nil {
			return nil, fmt.Errorf("load session: %w", err)
		}
		if sess == nil {
			return nil, nil
		}
		h = m.cache(sess)
	}

	if h.seen(m.now()) {
		if err := m.store.Touch(id); err != nil {
			m.logger.Warn("touch session", "error", err)
		}
	}
	return h, nil
}

func (m *Manager) cache(sess *model.Session) *Holder {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.holders[sess.ID]; ok {
		return h
	}
	h := newHolder(sess.ID, sess.Token, sess.LastRoute, m.store)
	h.lastSeen = m.now()
	m.holders[sess.ID] = h
	return h
}

// Cleanup drops cached holders idle for longer than maxIdle that nothing is
// listening on. Their sessions stay in the store and reload on next use.
func (m *Manager) Cleanup(maxIdle time.Duration) int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, h := range m.holders {
		if h.idle(now, maxIdle) {
			delete(m.holders, id)
			removed++
		}
	}
	return removed
}

// Active reports whether the holder of id is cached and was seen within
// maxIdle.
func (m *Manager) Active(id string, maxIdle time.Duration) bool {
	m.mu.Lock()
	h := m.holders[id]
	m.mu.Unlock()
	if h == nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return m.now().Sub(h.lastSeen) <= maxIdle
}
