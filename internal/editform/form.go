// Package editform holds the inline create/edit form shown above an admin
// resource list.
package editform

import (
	"context"
	"errors"
	"sync"

	"github.com/dukerupert/aivis/internal/api"
	"github.com/dukerupert/aivis/internal/resource"
)

type Mode int

const (
	Closed Mode = iota
	Creating
	Editing
)

func (m Mode) String() string {
	switch m {
	case Creating:
		return "creating"
	case Editing:
		return "editing"
	default:
		return "closed"
	}
}

var ErrClosed = errors.New("form is not open")

// Saver persists drafts. *resource.List satisfies it.
type Saver[T any] interface {
	Create(ctx context.Context, tok api.Token, rec T) error
	Update(ctx context.Context, tok api.Token, id string, rec T) error
}

// Snapshot is a copy of the form state safe to hand to a template.
type Snapshot[T any] struct {
	Mode   Mode
	ID     string
	Draft  T
	Error  string
	Saving bool
}

func (s Snapshot[T]) Open() bool { return s.Mode != Closed }

type Form[T any] struct {
	saver Saver[T]
	key   func(T) string

	mu     sync.Mutex
	mode   Mode
	id     string
	draft  T
	err    string
	saving bool
}

func New[T any](saver Saver[T], key func(T) string) *Form[T] {
	return &Form[T]{saver: saver, key: key}
}

var _ Saver[struct{}] = (*resource.List[struct{}])(nil)

// OpenNew opens an empty form prefilled with defaults. It does nothing and
// returns false when a create form is already open, so a half-typed draft
// survives a second click.
func (f *Form[T]) OpenNew(defaults T) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mode == Creating {
		return false
	}
	f.mode = Creating
	f.id = ""
	f.draft = defaults
	f.err = ""
	return true
}

// Edit opens the form on rec, replacing whatever was open.
func (f *Form[T]) Edit(rec T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mode = Editing
	f.id = f.key(rec)
	f.draft = rec
	f.err = ""
}

func (f *Form[T]) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.close()
}

// close expects f.mu held.
func (f *Form[T]) close() {
	var zero T
	f.mode = Closed
	f.id = ""
	f.draft = zero
	f.err = ""
}

// Submit saves draft. Creating issues a create, Editing an update of the
// record the form was opened on. On success the form closes; on failure it
// stays open with the draft and the error message.
func (f *Form[T]) Submit(ctx context.Context, tok api.Token, draft T) error {
	f.mu.Lock()
	mode, id := f.mode, f.id
	if mode == Closed {
		f.mu.Unlock()
		return ErrClosed
	}
	f.draft = draft
	f.saving = true
	f.mu.Unlock()

	var err error
	if mode == Creating {
		err = f.saver.Create(ctx, tok, draft)
	} else {
		err = f.saver.Update(ctx, tok, id, draft)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.saving = false
	// The user may have opened another record while the request was out.
	if f.mode != mode || f.id != id {
		return err
	}
	if err != nil {
		f.err = message(err)
		return err
	}
	f.close()
	return nil
}

func (f *Form[T]) Snapshot() Snapshot[T] {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Snapshot[T]{Mode: f.mode, ID: f.id, Draft: f.draft, Error: f.err, Saving: f.saving}
}

func message(err error) string {
	var mErr *resource.MutationError
	if errors.As(err, &mErr) {
		return mErr.Message
	}
	return api.Message(err, "Failed")
}
