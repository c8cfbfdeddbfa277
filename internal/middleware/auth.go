package middleware

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/dukerupert/aivis/internal/auth"
	"github.com/dukerupert/aivis/internal/session"
)

// Sessions resolves the browser session, starting an anonymous one when the
// request carries no valid cookie, and places its holder in the context.
func Sessions(mgr *session.Manager, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h, err := mgr.Resolve(w, r)
			if err != nil {
				logger.Error("resolve session", "error", err)
				http.Error(w, "Session unavailable. Please reload the page.", http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), h)))
		})
	}
}

// TrackRoute remembers full-page GETs as the session's last route so login can
// return the visitor there. HTMX partials and auth pages are not remembered.
func TrackRoute(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet && !isHTMX(r) {
				if h, ok := auth.FromContext(r.Context()); ok {
					if err := h.RememberRoute(r.URL.Path); err != nil {
						logger.Warn("remember route", "error", err)
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSession sends requests without a bearer token to the login page,
// passing the attempted path along. Nothing downstream runs, so no
// authenticated fetch is issued.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.Token(r.Context()) == "" {
			redirectToLogin(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin additionally checks the token's role claim. The claim is read
// unverified and only gates which pages render; every admin call still sends
// the token and the backend rejects non-admins itself.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.Token(r.Context()) == "" {
			redirectToLogin(w, r)
			return
		}
		hint := auth.Hint(r.Context())
		switch {
		case !hint.Decoded:
			redirect(w, r, "/login")
		case !hint.ShowAdminNav():
			redirect(w, r, "/")
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	target := "/login"
	if from := r.URL.RequestURI(); from != "" && from != "/" {
		target += "?from=" + url.QueryEscape(from)
	}
	redirect(w, r, target)
}

// redirect is HTMX-aware: partial requests get HX-Redirect so the whole page
// navigates instead of swapping the login form into a fragment.
func redirect(w http.ResponseWriter, r *http.Request, target string) {
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
