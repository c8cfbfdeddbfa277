package session

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/dukerupert/aivis/internal/api"
)

// DisplayHint is what the token says about its owner, read without verifying
// the signature. It only decides what to show (the admin nav link, where to
// land after login). It carries no credential, and no call in package api
// accepts it: the backend re-checks every privileged request against the token.
type DisplayHint struct {
	Email string
	// Decoded is false when the token was absent or malformed.
	Decoded bool
	admin   bool
}

func (h DisplayHint) ShowAdminNav() bool { return h.admin }

// Decode reads the payload segment of tok. A malformed token yields the zero
// hint; the decode error is deliberately dropped.
func Decode(tok api.Token) DisplayHint {
	if tok == "" {
		return DisplayHint{}
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(string(tok), claims); err != nil {
		return DisplayHint{}
	}

	hint := DisplayHint{Decoded: true}
	if email, ok := claims["email"].(string); ok {
		hint.Email = email
	}
	if role, ok := claims["role"].(string); ok && role == "admin" {
		hint.admin = true
	}
	return hint
}
