package repositories

import (
	"context"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/database"
	"github.com/google/uuid"
)

// AttemptRepository is the postgres-backed failed attempt ledger
type AttemptRepository struct {
	db *database.DB
}

// NewAttemptRepository creates a new AttemptRepository
func NewAttemptRepository(db *database.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// Record appends a failed attempt
func (r *AttemptRepository) Record(ctx context.Context, identity, origin string, at time.Time) error {
	query := `
		INSERT INTO failed_attempts (id, identity, origin, occurred_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.Pool.Exec(ctx, query, uuid.New(), identity, origin, at)
	return database.MapPostgresError(err)
}

// CountSince returns the number of failed attempts for an identity at or after since
func (r *AttemptRepository) CountSince(ctx context.Context, identity string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM failed_attempts
		WHERE identity = $1 AND occurred_at >= $2
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, identity, since).Scan(&count)
	return count, database.MapPostgresError(err)
}

// CountByOriginSince returns the number of failed attempts from an origin at or after since
func (r *AttemptRepository) CountByOriginSince(ctx context.Context, origin string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM failed_attempts
		WHERE origin = $1 AND occurred_at >= $2
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, origin, since).Scan(&count)
	return count, database.MapPostgresError(err)
}

// ClearAll deletes every failed attempt for an identity
func (r *AttemptRepository) ClearAll(ctx context.Context, identity string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM failed_attempts WHERE identity = $1`, identity)
	return database.MapPostgresError(err)
}

// DeleteBefore removes attempts older than cutoff
func (r *AttemptRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM failed_attempts WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}

// Ping checks database reachability
func (r *AttemptRepository) Ping(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}
