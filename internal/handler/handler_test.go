package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/golang-jwt/jwt/v5"

	"github.com/dukerupert/aivis/internal/api"
	"github.com/dukerupert/aivis/internal/auth"
	"github.com/dukerupert/aivis/internal/crypt"
	"github.com/dukerupert/aivis/internal/database"
	"github.com/dukerupert/aivis/internal/session"
	"github.com/dukerupert/aivis/internal/store"
	"github.com/dukerupert/aivis/web"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupManager(t *testing.T) *session.Manager {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	salt, err := store.TokenSalt(db)
	if err != nil {
		t.Fatalf("token salt: %v", err)
	}
	sealer, err := crypt.NewSealer("test-secret", salt)
	if err != nil {
		t.Fatalf("new sealer: %v", err)
	}
	return session.NewManager(store.NewSessionStore(db, sealer, time.Hour), time.Hour, false, quietLogger())
}

func setupRenderer(t *testing.T) *Renderer {
	t.Helper()
	rd, err := NewRenderer(web.Templates(), quietLogger())
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	return rd
}

// setupBackend starts a fake backend API and returns a client for it.
func setupBackend(t *testing.T, h http.HandlerFunc) *api.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return api.New(srv.URL, api.WithLogger(quietLogger()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func signToken(t *testing.T, claims jwt.MapClaims) api.Token {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("backend-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return api.Token(s)
}

// newRequest builds a request bound to a fresh session holding tok. A non-nil
// form is sent url-encoded.
func newRequest(t *testing.T, mgr *session.Manager, method, target string, form url.Values, tok api.Token) (*http.Request, *session.Holder) {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	holder, err := mgr.Resolve(httptest.NewRecorder(), req)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if tok != "" {
		if err := holder.Set(tok); err != nil {
			t.Fatalf("set token: %v", err)
		}
	}
	return req.WithContext(auth.WithSession(req.Context(), holder)), holder
}

// sameSession builds another request on an existing holder.
func sameSession(method, target string, form url.Values, holder *session.Holder) *http.Request {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return req.WithContext(auth.WithSession(req.Context(), holder))
}

func parseDoc(t *testing.T, rec *httptest.ResponseRecorder) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rec.Body.String()))
	if err != nil {
		t.Fatalf("parse body: %v", err)
	}
	return doc
}

func decodeBody(t *testing.T, r *http.Request, v any) {
	t.Helper()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		t.Errorf("decode request body: %v", err)
	}
}
