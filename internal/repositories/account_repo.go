package repositories

import (
	"context"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/database"
	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const accountColumns = `id, email, name, password_hash, suspended_until, created_at`

type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{pool: db.Pool}
}

// rowScanner interface for scanning account rows (pgx.Row and *sql.Row both satisfy it)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanAccountRow handles nullable fields and populates an Account from a database row
func scanAccountRow(scanner rowScanner) (*models.Account, error) {
	var account models.Account
	var suspendedUntil *time.Time

	err := scanner.Scan(
		&account.ID, &account.Email, &account.Name, &account.PasswordHash,
		&suspendedUntil, &account.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	account.SuspendedUntil = suspendedUntil

	return &account, nil
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`

	return scanAccountRow(r.pool.QueryRow(ctx, query, email))
}

func (r *AccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	account.ID = uuid.New().String()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO accounts (id, email, name, password_hash, suspended_until, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + accountColumns

	return scanAccountRow(r.pool.QueryRow(ctx, query,
		account.ID, account.Email, account.Name, account.PasswordHash,
		account.SuspendedUntil, account.CreatedAt,
	))
}

// SetSuspendedUntil persists a new suspension end for the account
func (r *AccountRepository) SetSuspendedUntil(ctx context.Context, id string, until time.Time) error {
	query := `UPDATE accounts SET suspended_until = $1 WHERE id = $2`

	result, err := r.pool.Exec(ctx, query, until, id)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// Ping checks database reachability
func (r *AccountRepository) Ping(ctx context.Context) error {
	return database.MapPostgresError(r.pool.Ping(ctx))
}
