// Package poller keeps the account page's analysis job list fresh by
// re-fetching the first page on an interval and pushing a change
// notification to the session's open tabs.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/aivis/internal/api"
	"github.com/dukerupert/aivis/internal/metrics"
	"github.com/dukerupert/aivis/internal/model"
	"github.com/dukerupert/aivis/internal/resource"
	"github.com/dukerupert/aivis/internal/websocket"
)

var ErrNotAuthenticated = errors.New("not authenticated")

const DefaultInterval = 15 * time.Second

// JobsConfig is the account list of the signed-in user's analyses.
func JobsConfig() resource.Config[model.AnalysisJob] {
	return resource.Config[model.AnalysisJob]{
		Name:          "analyses",
		Endpoint:      "/my-analyses",
		ItemsKey:      "analyses",
		PageSize:      20,
		PageSizeParam: "pageSize",
		Key:           model.AnalysisJob.Key,
		Less:          func(a, b model.AnalysisJob) bool { return a.CreatedAt.After(b.CreatedAt) },
	}
}

// TokenSource yields the current bearer token. *session.Holder satisfies it.
type TokenSource interface {
	ID() string
	Get() api.Token
}

// Identity fetches the signed-in user. *api.Client satisfies it.
type Identity interface {
	Me(ctx context.Context, tok api.Token) (*model.User, error)
}

// Publisher pushes a message to the viewers of a topic.
type Publisher interface {
	Publish(topic string, msg websocket.Message)
}

type Poller struct {
	tokens   TokenSource
	identity Identity
	jobs     *resource.List[model.AnalysisJob]
	pub      Publisher
	interval time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger

	mu      sync.Mutex
	user    *model.User
	running bool
	stopCh  chan struct{}
	stopped chan struct{}

	// tick serializes ticks so a slow fetch never overlaps the next one.
	tick sync.Mutex
}

type Option func(*Poller)

func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Poller) { p.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Poller) { p.logger = l }
}

func New(tokens TokenSource, identity Identity, jobs *resource.List[model.AnalysisJob], pub Publisher, opts ...Option) *Poller {
	p := &Poller{
		tokens:   tokens,
		identity: identity,
		jobs:     jobs,
		pub:      pub,
		interval: DefaultInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "poller", "session", tokens.ID())
	return p
}

// Start loads the user and the first page of jobs, then begins polling. It
// returns ErrNotAuthenticated without any request when there is no token.
// Calling Start on a running poller only refreshes the user.
func (p *Poller) Start(ctx context.Context) error {
	tok := p.tokens.Get()
	if tok == "" {
		return ErrNotAuthenticated
	}

	user, err := p.identity.Me(ctx, tok)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.user = user
	running := p.running
	p.mu.Unlock()
	if running {
		return nil
	}

	if err := p.jobs.Load(ctx, tok, 1, resource.Query{}); err != nil {
		p.logger.Debug("initial job load failed", "error", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.stopped = make(chan struct{})
	p.metrics.PollerStarted()

	// The loop outlives the request that started it.
	go p.loop(p.stopCh, p.stopped)
	return nil
}

func (p *Poller) loop(stopCh, stopped chan struct{}) {
	defer close(stopped)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.Tick(context.Background())
		case <-stopCh:
			return
		}
	}
}

// Tick re-fetches page 1 and merges it into the list, keeping any older
// pages already loaded. Failures are logged and otherwise ignored. A tick
// that finds the previous one still running is skipped.
func (p *Poller) Tick(ctx context.Context) {
	if !p.tick.TryLock() {
		p.metrics.ObservePoll("skipped")
		return
	}
	defer p.tick.Unlock()

	tok := p.tokens.Get()
	if tok == "" {
		p.metrics.ObservePoll("unauthenticated")
		go p.Stop()
		return
	}

	if err := p.jobs.Load(ctx, tok, 1, p.jobs.State().Query); err != nil {
		p.metrics.ObservePoll("error")
		p.logger.Debug("poll failed", "error", err)
		return
	}
	p.metrics.ObservePoll("ok")

	if p.pub != nil {
		st := p.jobs.State()
		p.pub.Publish(p.tokens.ID(), websocket.NewMessage("analysis_jobs", "updated", "", map[string]any{
			"count":   st.Count,
			"hasMore": st.HasMore,
		}))
	}
}

// Stop halts polling and waits for the loop to exit. It is safe to call on a
// stopped poller.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	stopCh, stopped := p.stopCh, p.stopped
	close(stopCh)
	p.metrics.PollerStopped()
	p.mu.Unlock()

	<-stopped
}

func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Poller) User() *model.User {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.user
}

func (p *Poller) Jobs() *resource.List[model.AnalysisJob] { return p.jobs }
