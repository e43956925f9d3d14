package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

// mapSQLiteError converts sqlite errors to domain errors
func mapSQLiteError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return models.ErrConflict
		case sqlite3.ErrConstraintNotNull, sqlite3.ErrConstraintCheck:
			return models.ErrValidation
		}
	}

	return fmt.Errorf("%w: %w", models.ErrStorageUnavailable, err)
}

func toUnixNano(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

// SQLiteAccountRepository stores accounts in an embedded sqlite database
type SQLiteAccountRepository struct {
	db *sql.DB
}

func NewSQLiteAccountRepository(db *sql.DB) *SQLiteAccountRepository {
	return &SQLiteAccountRepository{db: db}
}

func scanSQLiteAccount(scanner rowScanner) (*models.Account, error) {
	var account models.Account
	var suspendedUntil sql.NullInt64
	var createdAt int64

	err := scanner.Scan(
		&account.ID, &account.Email, &account.Name, &account.PasswordHash,
		&suspendedUntil, &createdAt,
	)
	if err != nil {
		return nil, mapSQLiteError(err)
	}

	if suspendedUntil.Valid {
		t := time.Unix(0, suspendedUntil.Int64)
		account.SuspendedUntil = &t
	}
	account.CreatedAt = time.Unix(0, createdAt)

	return &account, nil
}

func (r *SQLiteAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = ?`

	return scanSQLiteAccount(r.db.QueryRowContext(ctx, query, email))
}

func (r *SQLiteAccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	account.ID = uuid.New().String()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO accounts (id, email, name, password_hash, suspended_until, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		account.ID, account.Email, account.Name, account.PasswordHash,
		toUnixNano(account.SuspendedUntil), account.CreatedAt.UnixNano(),
	)
	if err != nil {
		return nil, mapSQLiteError(err)
	}

	created := *account
	return &created, nil
}

func (r *SQLiteAccountRepository) SetSuspendedUntil(ctx context.Context, id string, until time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET suspended_until = ? WHERE id = ?`, until.UnixNano(), id)
	if err != nil {
		return mapSQLiteError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return mapSQLiteError(err)
	}
	if rows == 0 {
		return models.ErrNotFound
	}

	return nil
}

// SQLiteAttemptRepository is the sqlite-backed failed attempt ledger
type SQLiteAttemptRepository struct {
	db *sql.DB
}

func NewSQLiteAttemptRepository(db *sql.DB) *SQLiteAttemptRepository {
	return &SQLiteAttemptRepository{db: db}
}

func (r *SQLiteAttemptRepository) Record(ctx context.Context, identity, origin string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO failed_attempts (id, identity, origin, occurred_at) VALUES (?, ?, ?, ?)`,
		uuid.New().String(), identity, origin, at.UnixNano(),
	)
	return mapSQLiteError(err)
}

func (r *SQLiteAttemptRepository) CountSince(ctx context.Context, identity string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM failed_attempts WHERE identity = ? AND occurred_at >= ?`,
		identity, since.UnixNano(),
	).Scan(&count)
	return count, mapSQLiteError(err)
}

func (r *SQLiteAttemptRepository) CountByOriginSince(ctx context.Context, origin string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM failed_attempts WHERE origin = ? AND occurred_at >= ?`,
		origin, since.UnixNano(),
	).Scan(&count)
	return count, mapSQLiteError(err)
}

func (r *SQLiteAttemptRepository) ClearAll(ctx context.Context, identity string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM failed_attempts WHERE identity = ?`, identity)
	return mapSQLiteError(err)
}

func (r *SQLiteAttemptRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM failed_attempts WHERE occurred_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, mapSQLiteError(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, mapSQLiteError(err)
	}
	return rows, nil
}

func (r *SQLiteAttemptRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return mapSQLiteError(err)
	}
	return nil
}

func (r *SQLiteAccountRepository) Ping(ctx context.Context) error {
	return mapSQLiteError(r.db.PingContext(ctx))
}
