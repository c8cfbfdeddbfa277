package model

import "time"

// Contact message statuses. StatusResolved is legacy: it is still read from the
// backend but is no longer offered as a filter or as a target status.
const (
	StatusNew      = "new"
	StatusViewed   = "viewed"
	StatusResolved = "resolved"
)

type ContactMessage struct {
	ID         string     `json:"_id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Business   string     `json:"business,omitempty"`
	Message    string     `json:"message"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"createdAt,omitzero"`
	ViewedAt   *time.Time `json:"viewedAt,omitempty"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
}

// ValidMessageStatus reports whether status may be set from the console.
func ValidMessageStatus(status string) bool {
	return status == StatusNew || status == StatusViewed
}
