package database

import (
	"errors"
	"fmt"

	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// MapPostgresError translates driver errors into model sentinels. Anything
// that is not a recognised business condition is a storage failure.
func MapPostgresError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return models.ErrConflict
		case "23502", "23514": // not_null_violation, check_violation
			return fmt.Errorf("%w: %s", models.ErrValidation, pgErr.Message)
		}
	}

	return fmt.Errorf("%w: %w", models.ErrStorageUnavailable, err)
}
