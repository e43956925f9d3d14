package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/google/uuid"
)

// MemoryStore keeps accounts and failed attempts in process memory. It is used
// for single-instance deployments without a database and in tests.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]*models.Account // keyed by email
	attempts []models.FailedAttempt
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]*models.Account)}
}

func (s *MemoryStore) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[email]
	if !ok {
		return nil, models.ErrNotFound
	}
	return copyAccount(account), nil
}

func (s *MemoryStore) Create(_ context.Context, account *models.Account) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[account.Email]; exists {
		return nil, models.ErrConflict
	}

	account.ID = uuid.New().String()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}
	s.accounts[account.Email] = copyAccount(account)

	return copyAccount(account), nil
}

func (s *MemoryStore) SetSuspendedUntil(_ context.Context, id string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, account := range s.accounts {
		if account.ID == id {
			account.SuspendedUntil = &until
			return nil
		}
	}
	return models.ErrNotFound
}

func (s *MemoryStore) Record(_ context.Context, identity, origin string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempts = append(s.attempts, models.FailedAttempt{
		ID:         uuid.New().String(),
		Identity:   identity,
		Origin:     origin,
		OccurredAt: at,
	})
	return nil
}

func (s *MemoryStore) CountSince(_ context.Context, identity string, since time.Time) (int, error) {
	return s.count(func(a models.FailedAttempt) bool {
		return a.Identity == identity && !a.OccurredAt.Before(since)
	}), nil
}

func (s *MemoryStore) CountByOriginSince(_ context.Context, origin string, since time.Time) (int, error) {
	return s.count(func(a models.FailedAttempt) bool {
		return a.Origin == origin && !a.OccurredAt.Before(since)
	}), nil
}

func (s *MemoryStore) ClearAll(_ context.Context, identity string) error {
	s.removeWhere(func(a models.FailedAttempt) bool { return a.Identity == identity })
	return nil
}

func (s *MemoryStore) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	return s.removeWhere(func(a models.FailedAttempt) bool { return a.OccurredAt.Before(cutoff) }), nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func (s *MemoryStore) count(match func(models.FailedAttempt) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, a := range s.attempts {
		if match(a) {
			n++
		}
	}
	return n
}

func (s *MemoryStore) removeWhere(match func(models.FailedAttempt) bool) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.attempts[:0]
	var removed int64
	for _, a := range s.attempts {
		if match(a) {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	s.attempts = kept
	return removed
}

func copyAccount(a *models.Account) *models.Account {
	c := *a
	if a.SuspendedUntil != nil {
		t := *a.SuspendedUntil
		c.SuspendedUntil = &t
	}
	return &c
}
