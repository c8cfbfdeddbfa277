package api

import (
	"errors"
	"strings"
)

// Kind classifies a failed backend call.
type Kind int

const (
	KindNone Kind = iota
	// KindTransport: the request never produced a response (network, timeout).
	KindTransport
	// KindHTTP: non-2xx status or success=false with a JSON error body.
	KindHTTP
	// KindHTML: an HTML page came back where JSON was expected. The base URL
	// or a proxy in front of the backend is misconfigured.
	KindHTML
	// KindInvalidJSON: any other body that failed to parse.
	KindInvalidJSON
	// KindUnverified: the account exists but its email is not verified.
	KindUnverified
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindTransport:
		return "transport"
	case KindHTTP:
		return "http"
	case KindHTML:
		return "html"
	case KindInvalidJSON:
		return "invalid_json"
	case KindUnverified:
		return "unverified"
	}
	return "unknown"
}

// User-facing messages synthesized by the client.
const (
	MsgTransport   = "Network error. Please try again."
	MsgInvalidJSON = "Invalid JSON response from server."
)

// Error is returned by every typed call. Message is safe to show to users.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Kind == KindTransport {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind carried by err, or KindNone.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindNone
}

// IsUnverified reports whether err is the backend refusing an unverified account.
func IsUnverified(err error) bool {
	return KindOf(err) == KindUnverified
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// Message returns the text to show for err. Transport failures and foreign
// errors get fallback; backend messages are passed through verbatim.
func Message(err error, fallback string) string {
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Kind == KindTransport || apiErr.Message == "" {
		return fallback
	}
	return apiErr.Message
}

func unverified(status int, message string) bool {
	return status == 403 && strings.Contains(strings.ToLower(message), "not verified")
}
