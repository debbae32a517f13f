package model

import "time"

// User is the subset of the auth service's user record the client reads.
// Optional fields are pointers: nil means the service did not send them.
type User struct {
	ID          string
	Email       *string
	DisplayName *string // user_metadata.display_name
}

// Session is the token bundle issued by the auth service on sign-in.
// A nil *Session means "signed out".
type Session struct {
	AccessToken  string
	RefreshToken string
	TokenType    string    // "bearer"
	ExpiresAt    time.Time // zero if the service sent no expiry
	User         User
}

// Expired reports whether the access token is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	if s == nil || s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(s.ExpiresAt)
}

// AuthEventKind names what changed in an auth state event.
type AuthEventKind string

const (
	InitialSession AuthEventKind = "INITIAL_SESSION"
	SignedIn       AuthEventKind = "SIGNED_IN"
	SignedOut      AuthEventKind = "SIGNED_OUT"
	TokenRefreshed AuthEventKind = "TOKEN_REFRESHED"
	UserUpdated    AuthEventKind = "USER_UPDATED"
)

// AuthEvent is delivered by the auth provider on every session change.
// Session is nil for SignedOut.
type AuthEvent struct {
	Kind    AuthEventKind
	Session *Session
}
