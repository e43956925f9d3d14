package models

import (
	"strings"
	"time"
)

// Account is a registered identity that can be suspended after repeated
// failed logins.
type Account struct {
	ID             string
	Email          string // Identity: lowercase, trimmed, unique
	Name           string
	PasswordHash   string
	SuspendedUntil *time.Time // Suspension end; a past value means not suspended
	CreatedAt      time.Time
}

// NormalizeIdentity returns the canonical form of an identity string.
func NormalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}
