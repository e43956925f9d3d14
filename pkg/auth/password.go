package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultBcryptCost = 12
	MaxPasswordLen    = 72 // bcrypt ignores input beyond 72 bytes
)

// CredentialVerifier is a one-way, salted credential check
type CredentialVerifier interface {
	Hash(secret string) (string, error)
	Verify(secret, hash string) bool
}

// BcryptVerifier implements CredentialVerifier with bcrypt
type BcryptVerifier struct {
	cost int
}

// NewBcryptVerifier creates a verifier with the given work factor.
// Out-of-range costs fall back to DefaultBcryptCost.
func NewBcryptVerifier(cost int) *BcryptVerifier {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &BcryptVerifier{cost: cost}
}

// Hash returns a bcrypt hash of secret
func (v *BcryptVerifier) Hash(secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	if len(secret) > MaxPasswordLen {
		return "", fmt.Errorf("password exceeds %d bytes", MaxPasswordLen)
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(secret), v.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// Verify reports whether secret matches hash. Malformed hashes never match.
func (v *BcryptVerifier) Verify(secret, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
