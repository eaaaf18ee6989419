// Package models defines server-side data models persisted in the database.
package models

import (
	"time"

	"github.com/dkravets/backoffice/internal/server/roles"
)

// User is a back-office account. Accounts are created unverified and
// active, and are never hard-deleted.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         roles.Role
	IsActive     bool
	IsVerified   bool
	RegisteredAt time.Time
	LastLoginAt  *time.Time
}
