package model

import "time"

// Session is a browser session of the web front. The bearer token issued by the
// backend is kept here, never in the browser.
type Session struct {
	ID        string    `json:"id"`
	Token     string    `json:"-"`
	LastRoute string    `json:"last_route"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type User struct {
	ID       string `json:"_id,omitempty"`
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Role     string `json:"role,omitempty"`
	Verified bool   `json:"verified,omitempty"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == "admin"
}
