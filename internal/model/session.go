package model

import "time"

// User is the identity-provider profile of a signed-in staff member.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Provider    string `json:"provider"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

// Name returns the display name, falling back to "User" like the home view does.
func (u User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return "User"
}

type Session struct {
	ID        string    `json:"id"`
	Token     string    `json:"-"`
	User      User      `json:"user"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
