package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/dukerupert/aivis/internal/api"
	"github.com/dukerupert/aivis/internal/auth"
	"github.com/dukerupert/aivis/internal/console"
	"github.com/dukerupert/aivis/internal/session"
)

type AuthHandler struct {
	api            *api.Client
	render         *Renderer
	workspaces     *console.Workspaces
	googleClientID string
	logger         *slog.Logger
}

func NewAuthHandler(c *api.Client, rd *Renderer, ws *console.Workspaces, googleClientID string, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		api:            c,
		render:         rd,
		workspaces:     ws,
		googleClientID: googleClientID,
		logger:         logger,
	}
}

func (h *AuthHandler) loginData(r *http.Request, extra map[string]any) map[string]any {
	data := map[string]any{
		"Title":          "Log in",
		"From":           r.FormValue("from"),
		"Email":          "",
		"GoogleClientID": h.googleClientID,
	}
	for k, v := range extra {
		data[k] = v
	}
	return data
}

// LoginPage renders the login form. A session that already holds a token is
// sent on to where login would have taken it.
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	holder, _ := auth.FromContext(r.Context())
	if holder != nil && holder.Authenticated() {
		redirect(w, r, h.afterLogin(holder, r.URL.Query().Get("from")))
		return
	}
	h.render.Page(w, r, "login.html", h.loginData(r, nil))
}

// Login exchanges credentials for a backend token. An unverified account gets
// the resend panel instead of a generic error.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render.Page(w, r, "login.html", h.loginData(r, map[string]any{"Error": "Invalid form data"}))
		return
	}
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	if email == "" || password == "" {
		h.render.Page(w, r, "login.html", h.loginData(r, map[string]any{"Email": email, "Error": "Email and password are required"}))
		return
	}

	res, err := h.api.Login(r.Context(), email, password)
	if err != nil {
		data := map[string]any{"Email": email}
		if api.IsUnverified(err) {
			data["Unverified"] = true
		} else {
			data["Error"] = api.Message(err, "Login failed")
		}
		h.logger.Info("login failed", "kind", api.KindOf(err).String(), "status", api.StatusOf(err))
		h.render.PageStatus(w, r, http.StatusUnauthorized, "login.html", h.loginData(r, data))
		return
	}
	h.startSession(w, r, res.Token, "login.html")
}

// startSession stores tok on the browser session and redirects onward.
func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, tok api.Token, page string) {
	holder, ok := auth.FromContext(r.Context())
	if !ok {
		h.render.PageStatus(w, r, http.StatusInternalServerError, page, h.loginData(r, map[string]any{"Error": "Session unavailable. Please reload the page."}))
		return
	}
	if err := holder.Set(tok); err != nil {
		h.logger.Error("store token", "error", err)
		h.render.PageStatus(w, r, http.StatusInternalServerError, page, h.loginData(r, map[string]any{"Error": "Unable to process request"}))
		return
	}
	redirect(w, r, h.afterLogin(holder, r.FormValue("from")))
}

// afterLogin picks where a freshly signed-in visitor lands: /admin for
// admins, else the from path, /checkout for from=checkout, the last
// non-auth route, or home.
func (h *AuthHandler) afterLogin(holder *session.Holder, from string) string {
	if holder.Hint().ShowAdminNav() {
		return "/admin"
	}
	if from == "checkout" {
		return "/checkout"
	}
	if safeLocalPath(from) && !session.IsAuthPath(pathOf(from)) {
		return from
	}
	if last := holder.LastRoute(); safeLocalPath(last) && !session.IsAuthPath(pathOf(last)) {
		return last
	}
	return "/"
}

func pathOf(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	return u.Path
}

func (h *AuthHandler) SignupPage(w http.ResponseWriter, r *http.Request) {
	h.render.Page(w, r, "signup.html", map[string]any{"Title": "Sign up", "From": r.URL.Query().Get("from"), "Email": ""})
}

// Signup registers an account. When the backend answers with a token the
// visitor is signed in straight away; otherwise they are told to verify.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render.Page(w, r, "signup.html", map[string]any{"Error": "Invalid form data"})
		return
	}
	email := strings.TrimSpace(r.FormValue("email"))
	data := map[string]any{"Title": "Sign up", "From": r.FormValue("from"), "Email": email}

	res, err := h.api.Register(r.Context(), email, r.FormValue("password"))
	if err != nil {
		data["Error"] = api.Message(err, "Registration failed")
		h.render.PageStatus(w, r, http.StatusBadRequest, "signup.html", data)
		return
	}
	if res.Token != "" {
		h.startSession(w, r, res.Token, "signup.html")
		return
	}

	notice := res.Message
	if notice == "" {
		notice = "Account created. Check your email to verify your address, then log in."
	}
	data["Notice"] = notice
	h.render.Page(w, r, "signup.html", data)
}

// Google exchanges a Google ID token for a backend token. It is not routed
// when no client id is configured.
func (h *AuthHandler) Google(w http.ResponseWriter, r *http.Request) {
	if h.googleClientID == "" {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.render.Page(w, r, "login.html", h.loginData(r, map[string]any{"Error": "Invalid form data"}))
		return
	}
	idToken := r.FormValue("credential")
	if idToken == "" {
		idToken = r.FormValue("idToken")
	}
	if idToken == "" {
		h.render.PageStatus(w, r, http.StatusBadRequest, "login.html", h.loginData(r, map[string]any{"Error": "Google sign-in failed"}))
		return
	}

	res, err := h.api.GoogleSignIn(r.Context(), idToken)
	if err != nil {
		h.render.PageStatus(w, r, http.StatusUnauthorized, "login.html", h.loginData(r, map[string]any{"Error": api.Message(err, "Google sign-in failed")}))
		return
	}
	h.startSession(w, r, res.Token, "login.html")
}

// Logout drops the token, which also stops the session's status poller, and
// discards the admin workspace.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if holder, ok := auth.FromContext(r.Context()); ok {
		if err := holder.Clear(); err != nil {
			h.logger.Error("clear token", "error", err)
		}
		h.workspaces.Drop(holder.ID())
	}
	redirect(w, r, "/")
}

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{"Title": "Verify email"}
	token := r.URL.Query().Get("token")
	if token == "" {
		data["Error"] = "Missing token"
		h.render.PageStatus(w, r, http.StatusBadRequest, "verify_email.html", data)
		return
	}

	msg, err := h.api.VerifyEmail(r.Context(), token)
	if err != nil {
		data["Error"] = api.Message(err, "Verification failed")
		h.render.PageStatus(w, r, http.StatusBadRequest, "verify_email.html", data)
		return
	}
	if msg == "" {
		msg = "Your email is verified. You can now log in."
	}
	data["Verified"] = true
	data["Notice"] = msg
	h.render.Page(w, r, "verify_email.html", data)
}

func (h *AuthHandler) ResendPage(w http.ResponseWriter, r *http.Request) {
	h.render.Page(w, r, "resend_verification.html", map[string]any{"Title": "Resend verification", "Email": r.URL.Query().Get("email")})
}

func (h *AuthHandler) Resend(w http.ResponseWriter, r *http.Request) {
	h.emailAction(w, r, "resend_verification.html", "Resend verification", h.api.ResendVerification,
		"Failed to resend verification email", "If that account exists and is unverified, a new link is on its way.")
}

func (h *AuthHandler) ForgotPage(w http.ResponseWriter, r *http.Request) {
	h.render.Page(w, r, "forgot_password.html", map[string]any{"Title": "Forgot password", "Email": ""})
}

func (h *AuthHandler) Forgot(w http.ResponseWriter, r *http.Request) {
	h.emailAction(w, r, "forgot_password.html", "Forgot password", h.api.ForgotPassword,
		"Failed to send reset email", "If an account exists for that email, a reset link has been sent.")
}

// emailAction posts an email address to a backend endpoint that answers with
// a message, as resend-verification and forgot-password do.
func (h *AuthHandler) emailAction(w http.ResponseWriter, r *http.Request, page, title string,
	call func(ctx context.Context, email string) (string, error), fallback, success string) {
	if err := r.ParseForm(); err != nil {
		h.render.Page(w, r, page, map[string]any{"Title": title, "Error": "Invalid form data"})
		return
	}
	email := strings.TrimSpace(r.FormValue("email"))
	data := map[string]any{"Title": title, "Email": email}
	if email == "" {
		data["Error"] = "Email is required"
		h.render.PageStatus(w, r, http.StatusBadRequest, page, data)
		return
	}

	msg, err := call(r.Context(), email)
	if err != nil {
		data["Error"] = api.Message(err, fallback)
		h.render.PageStatus(w, r, http.StatusBadRequest, page, data)
		return
	}
	if msg == "" {
		msg = success
	}
	data["Notice"] = msg
	h.render.Page(w, r, page, data)
}

func (h *AuthHandler) ResetPage(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{"Title": "Reset password", "Token": r.URL.Query().Get("token")}
	if data["Token"] == "" {
		data["Error"] = "Missing token"
	}
	h.render.Page(w, r, "reset_password.html", data)
}

func (h *AuthHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render.Page(w, r, "reset_password.html", map[string]any{"Error": "Invalid form data"})
		return
	}
	token := r.FormValue("token")
	data := map[string]any{"Title": "Reset password", "Token": token}

	msg, err := h.api.ResetPassword(r.Context(), token, r.FormValue("password"))
	if err != nil {
		data["Error"] = api.Message(err, "Password reset failed")
		h.render.PageStatus(w, r, http.StatusBadRequest, "reset_password.html", data)
		return
	}
	if msg == "" {
		msg = "Your password has been reset."
	}
	data["Done"] = true
	data["Notice"] = msg
	h.render.Page(w, r, "reset_password.html", data)
}
