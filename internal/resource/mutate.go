package resource

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/dukerupert/aivis/internal/api"
)

// ErrDeclined is returned when the user did not confirm a destructive action.
// No request was issued.
var ErrDeclined = errors.New("action not confirmed")

// Confirm asks the user a yes/no question before a destructive request.
type Confirm func(prompt string) bool

// MutationError carries the message to show in the blocking alert.
type MutationError struct {
	Op      string
	Message string
	Err     error
}

func (e *MutationError) Error() string { return e.Message }
func (e *MutationError) Unwrap() error { return e.Err }

const fallbackMessage = "Failed"

func (l *List[T]) itemPath(id string) string {
	return l.cfg.Endpoint + "/" + url.PathEscape(id)
}

// Create POSTs rec and reloads the list on success.
func (l *List[T]) Create(ctx context.Context, tok api.Token, rec T) error {
	_, err := l.mutate(ctx, tok, "create", http.MethodPost, l.cfg.Endpoint, rec, fallbackMessage)
	return err
}

// Update PUTs rec to the record with id and reloads the list on success.
func (l *List[T]) Update(ctx context.Context, tok api.Token, id string, rec T) error {
	_, err := l.mutate(ctx, tok, "update", http.MethodPut, l.itemPath(id), rec, fallbackMessage)
	return err
}

// Delete removes the record with id after confirm approves the list's delete
// prompt. A nil or declining confirm issues no request.
func (l *List[T]) Delete(ctx context.Context, tok api.Token, id string, confirm Confirm) error {
	if confirm == nil || !confirm(l.cfg.DeletePrompt) {
		return ErrDeclined
	}
	_, err := l.mutate(ctx, tok, "delete", http.MethodDelete, l.itemPath(id), nil, fallbackMessage)
	return err
}

// Action issues a non-CRUD request (a status change, a re-run) and reloads on
// success. A non-empty prompt requires confirmation first.
func (l *List[T]) Action(ctx context.Context, tok api.Token, method, path string, body any, prompt string, confirm Confirm, fallback string) (*api.Response, error) {
	if prompt != "" && (confirm == nil || !confirm(prompt)) {
		return nil, ErrDeclined
	}
	if fallback == "" {
		fallback = fallbackMessage
	}
	return l.mutate(ctx, tok, "action", method, path, body, fallback)
}

func (l *List[T]) mutate(ctx context.Context, tok api.Token, op, method, path string, body any, fallback string) (*api.Response, error) {
	resp, err := l.api.FetchJSON(ctx, method, path, body, tok)
	if err == nil {
		err = resp.Err(fallback)
	}
	if err != nil {
		return resp, &MutationError{Op: op, Message: api.Message(err, fallback), Err: err}
	}

	// The mutation stands even if the reload fails; State().Err reports it.
	_ = l.Reload(ctx, tok)
	return resp, nil
}
