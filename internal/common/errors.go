// Package common defines shared constants and sentinel errors used across
// the back-office service layers. Callers should use errors.Is to match
// these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")

	// Credential and verification errors.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrWeakPassword       = errors.New("weak password")
	ErrInvalidCode        = errors.New("invalid confirmation code")

	// Token lifecycle errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")

	// Authorization errors.
	ErrPermissionDenied = errors.New("permission denied")
	ErrSelfUpdate       = errors.New("own account cannot be modified")
	ErrNotActive        = errors.New("account is not active")

	// Throttling.
	ErrTooManyAttempts = errors.New("too many failed attempts")

	// Generic internal failure surfaced to callers.
	ErrInternal = errors.New("internal error")
)
