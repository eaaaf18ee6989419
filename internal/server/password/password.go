// Package password implements the account password policy: strength
// validation and salted adaptive hashing.
package password

import (
	"fmt"
	"unicode"

	"github.com/dkravets/backoffice/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// bcrypt silently truncates input past 72 bytes, so we cap deterministically
// before hashing on both the hash and verify paths.
const maxPasswordBytes = 72

// Policy validates password strength and produces/verifies bcrypt hashes.
type Policy struct {
	cost int
}

// NewPolicy returns a Policy with the given bcrypt cost. A cost below
// bcrypt.MinCost falls back to bcrypt.DefaultCost.
func NewPolicy(cost int) *Policy {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	return &Policy{cost: cost}
}

// ValidateStrength checks the candidate password against the policy and
// returns common.ErrWeakPassword wrapped with the first violated rule.
// Rules: at least 8 characters, at least one uppercase ASCII letter, one
// lowercase ASCII letter and one digit, ASCII characters only.
func (p *Policy) ValidateStrength(password string) error {
	for _, r := range password {
		if r > unicode.MaxASCII {
			return fmt.Errorf("%w: must contain only latin letters, digits and punctuation", common.ErrWeakPassword)
		}
	}
	if len(password) < 8 {
		return fmt.Errorf("%w: must be at least 8 characters", common.ErrWeakPassword)
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
	}
	if !hasUpper {
		return fmt.Errorf("%w: must contain an uppercase latin letter", common.ErrWeakPassword)
	}
	if !hasLower {
		return fmt.Errorf("%w: must contain a lowercase latin letter", common.ErrWeakPassword)
	}
	if !hasDigit {
		return fmt.Errorf("%w: must contain a digit", common.ErrWeakPassword)
	}
	return nil
}

// Hash produces a salted bcrypt hash of the password.
func (p *Policy) Hash(password string) (string, error) {
	b := []byte(password)
	if len(b) > maxPasswordBytes {
		b = b[:maxPasswordBytes]
	}
	hash, err := bcrypt.GenerateFromPassword(b, p.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether the password matches the stored hash. Comparison
// is delegated to bcrypt's own constant-time verify routine.
func (p *Policy) Verify(password, hash string) bool {
	b := []byte(password)
	if len(b) > maxPasswordBytes {
		b = b[:maxPasswordBytes]
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), b) == nil
}
