package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sethvargo/go-retry"

	"github.com/dukerupert/aivis/internal/api"
	"github.com/dukerupert/aivis/internal/config"
	"github.com/dukerupert/aivis/internal/console"
	"github.com/dukerupert/aivis/internal/content"
	"github.com/dukerupert/aivis/internal/crypt"
	"github.com/dukerupert/aivis/internal/handler"
	"github.com/dukerupert/aivis/internal/metrics"
	"github.com/dukerupert/aivis/internal/middleware"
	"github.com/dukerupert/aivis/internal/poller"
	"github.com/dukerupert/aivis/internal/scan"
	"github.com/dukerupert/aivis/internal/session"
	"github.com/dukerupert/aivis/internal/store"
	ws "github.com/dukerupert/aivis/internal/websocket"
	"github.com/dukerupert/aivis/web"
)

// viewerGrace is how long a started account poller waits for its page to
// open the websocket before it pauses.
const viewerGrace = 30 * time.Second

type Server struct {
	cfg          *config.Config
	api          *api.Client
	registry     *prometheus.Registry
	metrics      *metrics.Metrics
	hub          *ws.Hub
	sessionStore *store.SessionStore
	sessions     *session.Manager
	workspaces   *console.Workspaces
	pollers      *poller.Registry
	rateLimiter  *middleware.RateLimiter
	contentCache content.Cache
	static       fs.FS

	pagesH    *handler.PagesHandler
	scanH     *handler.ScanHandler
	authH     *handler.AuthHandler
	checkoutH *handler.CheckoutHandler
	accountH  *handler.AccountHandler
	adminH    *handler.AdminHandler

	logger *slog.Logger
}

func New(cfg *config.Config, db *sql.DB, sealer *crypt.Sealer, logger *slog.Logger) (*Server, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	s := &Server{
		cfg:         cfg,
		registry:    reg,
		metrics:     m,
		rateLimiter: middleware.NewRateLimiter(),
		static:      web.Static(),
		logger:      logger,
	}
	s.api = api.New(cfg.BaseURL(), api.WithLogger(logger.With("component", "api")), api.WithMetrics(m))

	rd, err := handler.NewRenderer(web.Templates(), logger.With("component", "render"))
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	s.sessionStore = store.NewSessionStore(db, sealer, cfg.SessionTTL)
	s.sessions = session.NewManager(s.sessionStore, cfg.SessionTTL, cfg.CookieSecure, logger.With("component", "session"))

	s.hub = ws.NewHub(logger.With("component", "websocket"))
	s.pollers = poller.NewRegistry(s.api, s.api, s.hub,
		poller.WithInterval(cfg.PollInterval),
		poller.WithMetrics(m),
		poller.WithLogger(logger),
	)
	// The last account tab closing pauses that session's poller.
	s.hub.OnEmpty(s.pollers.Pause)
	s.pollers.WatchViewers(s.hub.ClientCount, viewerGrace)

	s.workspaces = console.NewWorkspaces(s.api)
	s.contentCache = s.newContentCache()
	contentSvc := content.NewService(s.api, s.contentCache, cfg.ContentCacheTTL, logger.With("component", "content"))

	s.pagesH = handler.NewPagesHandler(rd, contentSvc, logger.With("component", "pages"))
	s.scanH = handler.NewScanHandler(rd, scan.NewService(s.api, logger.With("component", "scan")))
	s.authH = handler.NewAuthHandler(s.api, rd, s.workspaces, cfg.GoogleClientID, logger.With("component", "auth"))
	s.checkoutH = handler.NewCheckoutHandler(s.api, rd, logger.With("component", "checkout"))
	s.accountH = handler.NewAccountHandler(s.pollers, s.hub, rd, logger.With("component", "account"))
	s.adminH = handler.NewAdminHandler(s.api, s.workspaces, rd, logger.With("component", "admin"))
	return s, nil
}

// newContentCache uses Redis when REDIS_ADDR is set and reachable, and an
// in-process cache otherwise.
func (s *Server) newContentCache() content.Cache {
	if s.cfg.RedisAddr == "" {
		return content.NewMemoryCache()
	}
	rc := content.NewRedisCache(s.cfg.RedisAddr, 24*time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// Redis may still be starting alongside the web front.
	backoff := retry.WithMaxRetries(3, retry.NewExponential(200*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		return retry.RetryableError(rc.Ping(ctx))
	})
	if err != nil {
		s.logger.Warn("redis unavailable, using in-memory content cache", "addr", s.cfg.RedisAddr, "error", err)
		rc.Close()
		return content.NewMemoryCache()
	}
	s.logger.Info("content cache", "backend", "redis", "addr", s.cfg.RedisAddr)
	return rc
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// Release drops per-session state idle for longer than maxIdle: stopped
// pollers first, so their sign-out listeners no longer pin the holders, then
// the holders, the admin workspaces and stale rate-limit entries. It returns
// how many holders were dropped.
func (s *Server) Release(maxIdle time.Duration) int {
	pruned := s.pollers.Prune(func(id string) bool {
		return s.sessions.Active(id, maxIdle)
	})
	if pruned > 0 {
		s.logger.Debug("pruned account pollers", "count", pruned)
	}
	dropped := s.sessions.Cleanup(maxIdle)
	s.workspaces.Cleanup(maxIdle)
	s.rateLimiter.Cleanup()
	return dropped
}

// Close stops the pollers and releases the content cache.
func (s *Server) Close() {
	s.pollers.StopAll()
	if rc, ok := s.contentCache.(*content.RedisCache); ok {
		if err := rc.Close(); err != nil {
			s.logger.Warn("close redis", "error", err)
		}
	}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", metrics.Handler(s.registry))
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(s.static)))

	// Everything else runs with a resolved browser session. The wrapping is
	// per route so the mux still reports the matched pattern to the metrics.
	sessions := middleware.Sessions(s.sessions, s.logger.With("component", "session"))
	track := middleware.TrackRoute(s.logger)
	page := func(h http.HandlerFunc) http.Handler { return sessions(track(h)) }
	partial := func(h http.HandlerFunc) http.Handler { return sessions(h) }
	limited := func(h http.HandlerFunc) http.Handler { return sessions(s.rateLimited(h)) }
	member := func(h http.HandlerFunc) http.Handler { return sessions(track(middleware.RequireSession(h))) }
	recoverAdmin := middleware.Recover(s.logger.With("component", "admin"), s.adminH.RenderError)
	admin := func(h http.HandlerFunc) http.Handler {
		return sessions(middleware.RequireAdmin(recoverAdmin(h)))
	}

	// Public pages
	mux.Handle("GET /{$}", page(s.pagesH.Home))
	mux.Handle("GET /about", page(s.pagesH.Static("about.html", "about", "About")))
	mux.Handle("GET /services", page(s.pagesH.Static("services.html", "services", "Services")))
	mux.Handle("GET /contact", page(s.pagesH.Static("contact.html", "contact", "Contact")))
	mux.Handle("GET /blog", page(s.pagesH.Blog))
	mux.Handle("GET /blog/{slug}", page(s.pagesH.BlogPost))
	mux.Handle("GET /faq", page(s.pagesH.FAQ))

	// Quick scan (HTMX modal)
	mux.Handle("POST /quick-scan", limited(s.scanH.Run))
	mux.HandleFunc("GET /quick-scan/close", s.scanH.Close)

	// Auth
	mux.Handle("GET /login", page(s.authH.LoginPage))
	mux.Handle("POST /login", limited(s.authH.Login))
	mux.Handle("GET /signup", page(s.authH.SignupPage))
	mux.Handle("POST /signup", limited(s.authH.Signup))
	if s.cfg.GoogleEnabled() {
		mux.Handle("POST /auth/google", limited(s.authH.Google))
	}
	mux.Handle("POST /logout", partial(s.authH.Logout))
	mux.Handle("GET /verify-email", page(s.authH.VerifyEmail))
	mux.Handle("GET /resend-verification", page(s.authH.ResendPage))
	mux.Handle("POST /resend-verification", limited(s.authH.Resend))
	mux.Handle("GET /forgot-password", page(s.authH.ForgotPage))
	mux.Handle("POST /forgot-password", limited(s.authH.Forgot))
	mux.Handle("GET /reset-password", page(s.authH.ResetPage))
	mux.Handle("POST /reset-password", limited(s.authH.Reset))

	// Checkout
	mux.Handle("GET /checkout", member(s.checkoutH.Page))
	mux.Handle("POST /checkout", sessions(middleware.RequireSession(s.rateLimited(s.checkoutH.Submit))))
	mux.Handle("GET /success", page(s.checkoutH.Success))

	// Account
	mux.Handle("GET /account", member(s.accountH.Page))
	mux.Handle("GET /account/jobs", sessions(middleware.RequireSession(http.HandlerFunc(s.accountH.Jobs))))
	mux.Handle("POST /account/jobs/more", sessions(middleware.RequireSession(http.HandlerFunc(s.accountH.More))))
	mux.Handle("GET /account/ws", partial(s.accountH.Stream()))

	// Admin
	mux.Handle("GET /admin", admin(s.adminH.Index))
	mux.Handle("GET /admin/content", admin(s.adminH.Content))
	mux.Handle("GET /admin/content/{view}", admin(s.adminH.Panel))
	mux.Handle("POST /admin/content/{view}/more", admin(s.adminH.More))
	mux.Handle("GET /admin/content/{view}/new", admin(s.adminH.New))
	mux.Handle("GET /admin/content/{view}/{id}/edit", admin(s.adminH.Edit))
	mux.Handle("POST /admin/content/{view}/cancel", admin(s.adminH.Cancel))
	mux.Handle("POST /admin/content/{view}/save", admin(s.adminH.Save))
	mux.Handle("POST /admin/content/{view}/{id}/delete", admin(s.adminH.Delete))
	mux.Handle("POST /admin/content/messages/{id}/status", admin(s.adminH.MessageStatus))
	mux.Handle("POST /admin/content/analysis/{id}/rerun", admin(s.adminH.Rerun))
	mux.Handle("GET /admin/dashboard", admin(s.adminH.Dashboard))
	mux.Handle("GET /admin/diagnostics", admin(s.adminH.Diagnostics))

	// Unknown paths render the home page.
	mux.Handle("/", partial(s.pagesH.Fallback))

	return middleware.RequestLogger(s.logger.With("component", "http"))(s.metrics.Middleware(mux))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimited(h http.HandlerFunc) http.Handler {
	return middleware.RateLimit(s.rateLimiter, middleware.RealIP, middleware.FormLimit)(h)
}
