package models

import "time"

// RefreshToken is a server-side session record. The token value is a
// bearer credential: unguessable, bound to the issuing IP, and replaced
// with a new value on every refresh.
type RefreshToken struct {
	ID        string
	UserID    string
	Token     string
	IPAddress string
	ExpiresAt time.Time
	CreatedAt time.Time
}
