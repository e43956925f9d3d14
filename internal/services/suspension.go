package services

import (
	"context"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/models"
)

// IsSuspended reports whether account is suspended at now. Expiry is lazy: a
// past SuspendedUntil is simply ignored.
func IsSuspended(account *models.Account, now time.Time) bool {
	return account.SuspendedUntil != nil && account.SuspendedUntil.After(now)
}

// SuspensionState persists account suspensions
type SuspensionState struct {
	repo AccountRepository
}

func NewSuspensionState(repo AccountRepository) *SuspensionState {
	return &SuspensionState{repo: repo}
}

// Suspend sets the account's suspension end to now+duration and persists it
func (s *SuspensionState) Suspend(ctx context.Context, account *models.Account, now time.Time, duration time.Duration) (time.Time, error) {
	until := now.Add(duration)

	if err := s.repo.SetSuspendedUntil(ctx, account.ID, until); err != nil {
		return time.Time{}, storageError("persist suspension", err)
	}

	account.SuspendedUntil = &until
	return until, nil
}
