package auth

import (
	"context"

	"github.com/dukerupert/aivis/internal/api"
	"github.com/dukerupert/aivis/internal/session"
)

type contextKey struct{}

func WithSession(ctx context.Context, h *session.Holder) context.Context {
	return context.WithValue(ctx, contextKey{}, h)
}

func FromContext(ctx context.Context) (*session.Holder, bool) {
	h, ok := ctx.Value(contextKey{}).(*session.Holder)
	return h, ok && h != nil
}

// Token returns the session's bearer token, or "" for anonymous requests.
func Token(ctx context.Context) api.Token {
	h, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return h.Get()
}

// Hint returns the display hint of the session token. It must only drive
// presentation; see session.DisplayHint.
func Hint(ctx context.Context) session.DisplayHint {
	h, ok := FromContext(ctx)
	if !ok {
		return session.DisplayHint{}
	}
	return h.Hint()
}
