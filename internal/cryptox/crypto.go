// Package cryptox is the credential store: one-way hashing and verification
// of passwords and secret phrases.
package cryptox

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes secrets with bcrypt. Every Hash call draws a fresh salt, so
// equal secrets produce different hashes.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher with the given bcrypt cost. Out of range costs
// fall back to bcrypt.DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash returns the encoded bcrypt hash of secret.
//
// bcrypt ignores input past 72 bytes; longer secrets are rejected rather than
// silently truncated.
func (h *Hasher) Hash(secret string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(b), nil
}

// Verify reports whether secret matches hash. Malformed hashes never match.
func (h *Hasher) Verify(secret, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
