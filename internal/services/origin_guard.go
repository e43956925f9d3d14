package services

import (
	"context"
	"time"
)

// OriginGuard decides whether an origin has exceeded its failure ceiling.
// It never mutates the ledger.
type OriginGuard struct {
	ledger  AttemptLedger
	window  time.Duration
	ceiling int
}

// NewOriginGuard creates a new OriginGuard
func NewOriginGuard(ledger AttemptLedger, window time.Duration, ceiling int) *OriginGuard {
	return &OriginGuard{
		ledger:  ledger,
		window:  window,
		ceiling: ceiling,
	}
}

// IsThrottled reports whether origin has at least ceiling failures since now-window.
// The failure count is returned for logging.
func (g *OriginGuard) IsThrottled(ctx context.Context, origin string, now time.Time) (bool, int, error) {
	count, err := g.ledger.CountByOriginSince(ctx, origin, now.Add(-g.window))
	if err != nil {
		return false, 0, storageError("count origin failures", err)
	}
	return count >= g.ceiling, count, nil
}
