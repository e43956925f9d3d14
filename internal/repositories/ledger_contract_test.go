package repositories_test

import (
	"context"
	"testing"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ledger interface {
	Record(ctx context.Context, identity, origin string, at time.Time) error
	CountSince(ctx context.Context, identity string, since time.Time) (int, error)
	CountByOriginSince(ctx context.Context, origin string, since time.Time) (int, error)
	ClearAll(ctx context.Context, identity string) error
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type accountStore interface {
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	SetSuspendedUntil(ctx context.Context, id string, until time.Time) error
}

// runLedgerTests exercises the behaviour every ledger backend must share.
// newLedger must return an empty ledger on each call.
func runLedgerTests(t *testing.T, newLedger func(t *testing.T) ledger) {
	t.Helper()

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("counts only attempts inside the window", func(t *testing.T) {
		l := newLedger(t)
		ctx := context.Background()

		require.NoError(t, l.Record(ctx, "alice@example.com", "1.1.1.1", base.Add(-10*time.Minute)))
		require.NoError(t, l.Record(ctx, "alice@example.com", "1.1.1.1", base.Add(-2*time.Minute)))
		require.NoError(t, l.Record(ctx, "alice@example.com", "1.1.1.1", base))

		count, err := l.CountSince(ctx, "alice@example.com", base.Add(-5*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("window start is inclusive", func(t *testing.T) {
		l := newLedger(t)
		ctx := context.Background()

		require.NoError(t, l.Record(ctx, "alice@example.com", "1.1.1.1", base))

		count, err := l.CountSince(ctx, "alice@example.com", base)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("unknown keys count zero", func(t *testing.T) {
		l := newLedger(t)
		ctx := context.Background()

		count, err := l.CountSince(ctx, gofakeit.Email(), base)
		require.NoError(t, err)
		assert.Zero(t, count)

		count, err = l.CountByOriginSince(ctx, gofakeit.IPv4Address(), base)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("origin count spans identities", func(t *testing.T) {
		l := newLedger(t)
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			require.NoError(t, l.Record(ctx, gofakeit.Email(), "2.2.2.2", base))
		}
		require.NoError(t, l.Record(ctx, gofakeit.Email(), "3.3.3.3", base))

		count, err := l.CountByOriginSince(ctx, "2.2.2.2", base.Add(-time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})

	t.Run("clear all removes identity attempts and their origin contribution", func(t *testing.T) {
		l := newLedger(t)
		ctx := context.Background()

		require.NoError(t, l.Record(ctx, "alice@example.com", "4.4.4.4", base))
		require.NoError(t, l.Record(ctx, "alice@example.com", "4.4.4.4", base))
		require.NoError(t, l.Record(ctx, "bob@example.com", "4.4.4.4", base))

		require.NoError(t, l.ClearAll(ctx, "alice@example.com"))

		count, err := l.CountSince(ctx, "alice@example.com", base.Add(-time.Hour))
		require.NoError(t, err)
		assert.Zero(t, count)

		count, err = l.CountSince(ctx, "bob@example.com", base.Add(-time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		count, err = l.CountByOriginSince(ctx, "4.4.4.4", base.Add(-time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("clear all on empty identity is a no-op", func(t *testing.T) {
		l := newLedger(t)
		assert.NoError(t, l.ClearAll(context.Background(), gofakeit.Email()))
	})

	t.Run("delete before prunes old attempts", func(t *testing.T) {
		l := newLedger(t)
		ctx := context.Background()

		require.NoError(t, l.Record(ctx, "alice@example.com", "5.5.5.5", base.Add(-time.Hour)))
		require.NoError(t, l.Record(ctx, "alice@example.com", "5.5.5.5", base))

		removed, err := l.DeleteBefore(ctx, base.Add(-time.Minute))
		require.NoError(t, err)
		assert.Equal(t, int64(1), removed)

		count, err := l.CountSince(ctx, "alice@example.com", base.Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		count, err = l.CountByOriginSince(ctx, "5.5.5.5", base.Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}

// runAccountTests exercises account persistence shared by every store.
func runAccountTests(t *testing.T, newStore func(t *testing.T) accountStore) {
	t.Helper()

	t.Run("create then get by email", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		email := gofakeit.Email()

		created, err := s.Create(ctx, &models.Account{Email: email, Name: gofakeit.Name(), PasswordHash: "hash"})
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)

		got, err := s.GetByEmail(ctx, email)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, "hash", got.PasswordHash)
		assert.Nil(t, got.SuspendedUntil)
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		email := gofakeit.Email()

		_, err := s.Create(ctx, &models.Account{Email: email, PasswordHash: "hash"})
		require.NoError(t, err)

		_, err = s.Create(ctx, &models.Account{Email: email, PasswordHash: "other"})
		assert.ErrorIs(t, err, models.ErrConflict)
	})

	t.Run("missing account is not found", func(t *testing.T) {
		s := newStore(t)

		_, err := s.GetByEmail(context.Background(), gofakeit.Email())
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("suspension end is persisted", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		email := gofakeit.Email()
		until := time.Date(2030, 6, 1, 10, 0, 0, 0, time.UTC)

		created, err := s.Create(ctx, &models.Account{Email: email, PasswordHash: "hash"})
		require.NoError(t, err)

		require.NoError(t, s.SetSuspendedUntil(ctx, created.ID, until))

		got, err := s.GetByEmail(ctx, email)
		require.NoError(t, err)
		require.NotNil(t, got.SuspendedUntil)
		assert.True(t, until.Equal(*got.SuspendedUntil))
	})
}
