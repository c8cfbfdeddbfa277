package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dukerupert/aivis/internal/model"
)

// AuthResult is what the auth endpoints return on success. Token is empty when
// the backend accepted the request but did not start a session (for example a
// registration that still needs email verification).
type AuthResult struct {
	Token   Token       `json:"token"`
	User    *model.User `json:"user"`
	Message string      `json:"message"`
}

func (c *Client) authCall(ctx context.Context, path string, body any, fallback string) (*AuthResult, error) {
	resp, err := c.call(ctx, http.MethodPost, path, body, "", fallback)
	if err != nil {
		return nil, err
	}
	var out AuthResult
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges credentials for a token. A 403 whose error mentions "not
// verified" yields an error of KindUnverified.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	body := map[string]string{"email": email, "password": password}
	res, err := c.authCall(ctx, "/auth/login", body, "Login failed")
	if err != nil {
		return nil, err
	}
	if res.Token == "" {
		return nil, &Error{Kind: KindHTTP, Status: http.StatusOK, Message: "Login failed"}
	}
	return res, nil
}

func (c *Client) Register(ctx context.Context, email, password string) (*AuthResult, error) {
	body := map[string]string{"email": email, "password": password}
	resp, err := c.FetchJSON(ctx, http.MethodPost, "/auth/register", body, "")
	if err != nil {
		return nil, err
	}
	if err := resp.Err(fmt.Sprintf("Registration failed (status %d)", resp.Status)); err != nil {
		return nil, err
	}
	var out AuthResult
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GoogleSignIn exchanges a Google ID token credential for a backend token.
func (c *Client) GoogleSignIn(ctx context.Context, idToken string) (*AuthResult, error) {
	res, err := c.authCall(ctx, "/auth/google", map[string]string{"idToken": idToken}, "Google sign-in failed")
	if err != nil {
		return nil, err
	}
	if res.Token == "" {
		return nil, &Error{Kind: KindHTTP, Status: http.StatusOK, Message: "Google sign-in failed"}
	}
	return res, nil
}

// Me returns the profile of the token's owner.
func (c *Client) Me(ctx context.Context, tok Token) (*model.User, error) {
	resp, err := c.call(ctx, http.MethodGet, "/auth/me", nil, tok, "Failed to load profile")
	if err != nil {
		return nil, err
	}
	var out struct {
		User *model.User `json:"user"`
	}
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	if out.User == nil {
		return nil, &Error{Kind: KindHTTP, Status: resp.Status, Message: "Failed to load profile"}
	}
	return out.User, nil
}

func (c *Client) message(ctx context.Context, path string, body any, fallback string) (string, error) {
	resp, err := c.call(ctx, http.MethodPost, path, body, "", fallback)
	if err != nil {
		return "", err
	}
	return resp.envelope().Message, nil
}

func (c *Client) VerifyEmail(ctx context.Context, token string) (string, error) {
	return c.message(ctx, "/auth/verify-email", map[string]string{"token": token}, "Verification failed")
}

func (c *Client) ResendVerification(ctx context.Context, email string) (string, error) {
	return c.message(ctx, "/auth/resend-verification", map[string]string{"email": email}, "Failed to resend verification email")
}

func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	return c.message(ctx, "/auth/forgot-password", map[string]string{"email": email}, "Failed to send reset email")
}

// ResetPassword sets a new password using the emailed reset token. No request
// is made when the token is missing.
func (c *Client) ResetPassword(ctx context.Context, token, password string) (string, error) {
	if token == "" {
		return "", &Error{Kind: KindHTTP, Message: "Missing token"}
	}
	return c.message(ctx, "/auth/reset-password", map[string]string{"token": token, "password": password}, "Password reset failed")
}
