package poller

import (
	"context"
	"sync"
	"time"

	"github.com/dukerupert/aivis/internal/resource"
)

// Session is what the registry needs from a session holder.
type Session interface {
	TokenSource
	OnChange(fn func(authenticated bool)) (cancel func())
}

type entry struct {
	poller *Poller
	cancel func()
}

// Registry owns one Poller per session.
type Registry struct {
	identity Identity
	fetcher  resource.Fetcher
	pub      Publisher
	opts     []Option

	mu      sync.Mutex
	entries map[string]entry
	viewers func(id string) int
	grace   time.Duration
}

func NewRegistry(identity Identity, fetcher resource.Fetcher, pub Publisher, opts ...Option) *Registry {
	return &Registry{
		identity: identity,
		fetcher:  fetcher,
		pub:      pub,
		opts:     opts,
		entries:  make(map[string]entry),
	}
}

// For returns the poller of s, creating it on first use. The poller is
// stopped and discarded when s signs out.
func (r *Registry) For(s Session) *Poller {
	id := s.ID()

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		return e.poller
	}

	p := New(s, r.identity, resource.New(r.fetcher, JobsConfig()), r.pub, r.opts...)
	cancel := s.OnChange(func(authenticated bool) {
		if !authenticated {
			go r.Remove(id)
		}
	})
	r.entries[id] = entry{poller: p, cancel: cancel}
	return p
}

// WatchViewers makes Start pause a poller when no account tab of its session
// has subscribed within grace. count reports the open tabs of a session.
func (r *Registry) WatchViewers(count func(id string) int, grace time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.viewers = count
	r.grace = grace
}

// Start starts the poller of s. With WatchViewers set, the poller is paused
// again unless a viewer subscribes within the grace period.
func (r *Registry) Start(ctx context.Context, s Session) (*Poller, error) {
	p := r.For(s)
	if err := p.Start(ctx); err != nil {
		return p, err
	}

	r.mu.Lock()
	count, grace := r.viewers, r.grace
	r.mu.Unlock()
	if count != nil {
		id := s.ID()
		time.AfterFunc(grace, func() {
			if count(id) == 0 {
				r.Pause(id)
			}
		})
	}
	return p, nil
}

func (r *Registry) Get(id string) *Poller {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[id].poller
}

// Pause stops the poller of id but keeps its job list. It is called when the
// last account page viewer of a session goes away.
func (r *Registry) Pause(id string) {
	if p := r.Get(id); p != nil {
		p.Stop()
	}
}

// Resume restarts a paused poller when a viewer reconnects.
func (r *Registry) Resume(ctx context.Context, id string) error {
	p := r.Get(id)
	if p == nil || p.Running() {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return p.Start(ctx)
}

// Remove stops and discards the poller of id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	e, ok := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()

	if !ok {
		return
	}
	e.cancel()
	e.poller.Stop()
}

// Prune removes stopped pollers of sessions for which keep returns false and
// returns how many were removed. Removing a poller also releases its sign-out
// listener on the session.
func (r *Registry) Prune(keep func(id string) bool) int {
	r.mu.Lock()
	var drop []string
	for id, e := range r.entries {
		if !e.poller.Running() && !keep(id) {
			drop = append(drop, id)
		}
	}
	r.mu.Unlock()

	for _, id := range drop {
		r.Remove(id)
	}
	return len(drop)
}

// StopAll stops every poller, on shutdown.
func (r *Registry) StopAll() {
	r.mu.Lock()
	pollers := make([]*Poller, 0, len(r.entries))
	for _, e := range r.entries {
		pollers = append(pollers, e.poller)
	}
	r.mu.Unlock()

	for _, p := range pollers {
		p.Stop()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
