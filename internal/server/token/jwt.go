// Package token issues and parses signed access tokens (HS256 JWT).
// The token subject carries the user id; refresh tokens are opaque values
// handled elsewhere.
package token

import (
	"errors"
	"time"

	"github.com/dkravets/backoffice/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Generate creates a time-boxed access token with the user id as subject.
func Generate(userID string, secretKey []byte, validity time.Duration) (string, error) {
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
	})

	signed, err := t.SignedString(secretKey)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// Subject verifies the token signature and expiry and returns the subject.
// Expired tokens yield common.ErrExpiredToken, anything else invalid yields
// common.ErrInvalidToken.
func Subject(tokenString string, secretKey []byte) (string, error) {
	claims := &jwt.RegisteredClaims{}

	t, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrExpiredToken
		}
		return "", common.ErrInvalidToken
	}

	if !t.Valid || claims.Subject == "" {
		return "", common.ErrInvalidToken
	}

	return claims.Subject, nil
}
