package model

import "time"

// Session is the explicit per-request context passed to every core
// operation: the owning user plus the active storage filter. Keeping it
// explicit (instead of ambient globals) lets tests run concurrent sessions.
type Session struct {
	UID         string `json:"uid"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	// StorageFilter narrows list views to one storage tag; empty means all.
	StorageFilter StorageLocation `json:"storage_filter,omitempty"`
}

// Actor returns the display identity recorded in history entries.
func (s Session) Actor() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	if s.Email != "" {
		return s.Email
	}
	return "ANON"
}

// SessionToken is the stored form of an issued session token.
type SessionToken struct {
	Session   Session   `json:"session"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
