package hosted

import (
	"time"

	"github.com/google/uuid"
)

// User is the identity record issued by the hosted service. It exists only
// while a session is valid.
type User struct {
	ID       uuid.UUID      `json:"id"`
	Email    string         `json:"email,omitempty"`
	Phone    string         `json:"phone,omitempty"`
	Metadata map[string]any `json:"user_metadata,omitempty"`
}

// Session is the token bundle issued by the hosted service. The access token
// is a JWT carrying the user identity; ExpiresAt is derived from its claims.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
	User         *User     `json:"user,omitempty"`
}

// Expired reports whether the session's access token is past its expiry.
// Sessions without expiry metadata are treated as live.
func (s *Session) Expired(now time.Time) bool {
	if s == nil || s.ExpiresAt.IsZero() {
		return false
	}
	return now.After(s.ExpiresAt)
}

// Profile is the application-owned supplementary record for a user, fetched
// best-effort from the profiles table. Absence is non-fatal.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// State is the session store's consolidated view. Snapshots handed to
// subscribers are copies; mutating them has no effect on the store.
type State struct {
	User            *User
	Profile         *Profile
	Session         *Session
	Loading         bool
	ConnectionError bool
}

// Authenticated reports whether the snapshot carries a signed-in user.
func (s State) Authenticated() bool {
	return s.User != nil
}
