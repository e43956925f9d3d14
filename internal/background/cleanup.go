package background

import (
	"context"
	"log/slog"
	"time"

	pkglogger "github.com/BradenHooton/gatekeeper/pkg/logger"
)

// AttemptPruner deletes failed attempts that can no longer fall inside any window
type AttemptPruner interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupManager periodically prunes the failed attempt ledger. Pruning only
// bounds storage growth; counts never depend on it.
type CleanupManager struct {
	pruner    AttemptPruner
	logger    *slog.Logger
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
	stopCh    chan struct{}
}

// NewCleanupManager creates a new cleanup manager. Attempts older than
// retention are removed every interval.
func NewCleanupManager(
	pruner AttemptPruner,
	logger *slog.Logger,
	interval time.Duration,
	retention time.Duration,
) *CleanupManager {
	return &CleanupManager{
		pruner:    pruner,
		logger:    logger,
		interval:  interval,
		retention: retention,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the periodic cleanup task. It returns immediately when the
// interval is not positive.
func (cm *CleanupManager) Start(ctx context.Context) {
	if cm.interval <= 0 {
		cm.logger.Info("ledger cleanup disabled")
		return
	}

	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			cm.RunOnce(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// RunOnce removes attempts older than the retention period
func (cm *CleanupManager) RunOnce(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cutoff := cm.now().Add(-cm.retention)

	deleted, err := cm.pruner.DeleteBefore(cleanupCtx, cutoff)
	if err != nil {
		cm.logger.Error("failed to prune failed attempts", pkglogger.Err(err))
		return
	}

	if deleted > 0 {
		cm.logger.Info("failed attempt cleanup completed",
			slog.Int64("rows_deleted", deleted),
			slog.Time("cutoff", cutoff))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
