package repositories_test

import (
	"context"
	"testing"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/BradenHooton/gatekeeper/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Ledger(t *testing.T) {
	runLedgerTests(t, func(t *testing.T) ledger {
		return repositories.NewMemoryStore()
	})
}

func TestMemoryStore_Accounts(t *testing.T) {
	runAccountTests(t, func(t *testing.T) accountStore {
		return repositories.NewMemoryStore()
	})
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := repositories.NewMemoryStore()
	ctx := context.Background()

	created, err := store.Create(ctx, &models.Account{Email: "copy@example.com", PasswordHash: "hash"})
	require.NoError(t, err)

	until := time.Now().Add(time.Hour)
	created.SuspendedUntil = &until

	got, err := store.GetByEmail(ctx, "copy@example.com")
	require.NoError(t, err)
	assert.Nil(t, got.SuspendedUntil, "mutating a returned account must not change the store")
}

func TestMemoryStore_SetSuspendedUntil_UnknownAccount(t *testing.T) {
	store := repositories.NewMemoryStore()

	err := store.SetSuspendedUntil(context.Background(), "missing", time.Now())
	assert.ErrorIs(t, err, models.ErrNotFound)
}
