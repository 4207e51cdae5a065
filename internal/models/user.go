package models

import "time"

// User is the identity behind an active session.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Session is the gateway's proof of authentication for a user.
type Session struct {
	User         User      `json:"user" toml:"user"`
	AccessToken  string    `json:"-" toml:"access_token"`
	RefreshToken string    `json:"-" toml:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at" toml:"expires_at"`
}

// Expired reports whether the session has a known expiry in the past.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// SessionEvent names the reason a session changed.
type SessionEvent string

const (
	EventSignedIn       SessionEvent = "SIGNED_IN"
	EventSignedOut      SessionEvent = "SIGNED_OUT"
	EventSessionExpired SessionEvent = "SESSION_EXPIRED"
)

// SessionChange is pushed by the gateway whenever its session changes.
// Session is nil when nobody is signed in.
type SessionChange struct {
	Event   SessionEvent
	Session *Session
}
