package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/models"
)

// AttemptLedger is the append-only log of failed login attempts
type AttemptLedger interface {
	Record(ctx context.Context, identity, origin string, at time.Time) error
	CountSince(ctx context.Context, identity string, since time.Time) (int, error)
	CountByOriginSince(ctx context.Context, origin string, since time.Time) (int, error)
	ClearAll(ctx context.Context, identity string) error
}

// AccountRepository defines the account persistence operations the gate needs
type AccountRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	SetSuspendedUntil(ctx context.Context, id string, until time.Time) error
}

// GateConfig holds the thresholds passed to the login engine at construction
type GateConfig struct {
	UserFailThreshold   int           // failures per identity before suspension
	OriginFailThreshold int           // failures per origin before throttling
	Window              time.Duration // sliding window for both counts
	SuspendDuration     time.Duration
	StoreTimeout        time.Duration // bound on every persistence call
}

// DefaultGateConfig returns the stock thresholds
func DefaultGateConfig() GateConfig {
	return GateConfig{
		UserFailThreshold:   5,
		OriginFailThreshold: 100,
		Window:              5 * time.Minute,
		SuspendDuration:     15 * time.Minute,
		StoreTimeout:        3 * time.Second,
	}
}

// Validate rejects non-positive thresholds and durations
func (c GateConfig) Validate() error {
	switch {
	case c.UserFailThreshold <= 0:
		return fmt.Errorf("%w: user fail threshold must be positive", models.ErrValidation)
	case c.OriginFailThreshold <= 0:
		return fmt.Errorf("%w: origin fail threshold must be positive", models.ErrValidation)
	case c.Window <= 0:
		return fmt.Errorf("%w: window must be positive", models.ErrValidation)
	case c.SuspendDuration <= 0:
		return fmt.Errorf("%w: suspend duration must be positive", models.ErrValidation)
	case c.StoreTimeout <= 0:
		return fmt.Errorf("%w: store timeout must be positive", models.ErrValidation)
	}
	return nil
}

// storageError tags err as a transient storage failure
func storageError(op string, err error) error {
	if errors.Is(err, models.ErrStorageUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, models.ErrStorageUnavailable, err)
}
