package services_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/BradenHooton/gatekeeper/internal/repositories"
	"github.com/BradenHooton/gatekeeper/internal/services"
	pkgauth "github.com/BradenHooton/gatekeeper/pkg/auth"
	pkglogger "github.com/BradenHooton/gatekeeper/pkg/logger"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// fakeClock is a manually advanced clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// MockAttemptLedger implements AttemptLedger for testing
type MockAttemptLedger struct {
	RecordFunc             func(ctx context.Context, identity, origin string, at time.Time) error
	CountSinceFunc         func(ctx context.Context, identity string, since time.Time) (int, error)
	CountByOriginSinceFunc func(ctx context.Context, origin string, since time.Time) (int, error)
	ClearAllFunc           func(ctx context.Context, identity string) error
}

func (m *MockAttemptLedger) Record(ctx context.Context, identity, origin string, at time.Time) error {
	if m.RecordFunc != nil {
		return m.RecordFunc(ctx, identity, origin, at)
	}
	return nil
}

func (m *MockAttemptLedger) CountSince(ctx context.Context, identity string, since time.Time) (int, error) {
	if m.CountSinceFunc != nil {
		return m.CountSinceFunc(ctx, identity, since)
	}
	return 0, nil
}

func (m *MockAttemptLedger) CountByOriginSince(ctx context.Context, origin string, since time.Time) (int, error) {
	if m.CountByOriginSinceFunc != nil {
		return m.CountByOriginSinceFunc(ctx, origin, since)
	}
	return 0, nil
}

func (m *MockAttemptLedger) ClearAll(ctx context.Context, identity string) error {
	if m.ClearAllFunc != nil {
		return m.ClearAllFunc(ctx, identity)
	}
	return nil
}

// MockAccountRepository implements AccountRepository for testing
type MockAccountRepository struct {
	GetByEmailFunc        func(ctx context.Context, email string) (*models.Account, error)
	CreateFunc            func(ctx context.Context, account *models.Account) (*models.Account, error)
	SetSuspendedUntilFunc func(ctx context.Context, id string, until time.Time) error
}

func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, account)
	}
	return account, nil
}

func (m *MockAccountRepository) SetSuspendedUntil(ctx context.Context, id string, until time.Time) error {
	if m.SetSuspendedUntilFunc != nil {
		return m.SetSuspendedUntilFunc(ctx, id, until)
	}
	return nil
}

// MockNotifier records suspension notices
type MockNotifier struct {
	mu      sync.Mutex
	Notices []time.Time
	Err     error
}

func (m *MockNotifier) NotifySuspension(_ context.Context, _ *models.Account, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Notices = append(m.Notices, until)
	return m.Err
}

// MockRecorder collects decision telemetry
type MockRecorder struct {
	mu            sync.Mutex
	Decisions     []models.Decision
	StorageErrors []string
}

func (m *MockRecorder) RecordDecision(decision models.Decision, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Decisions = append(m.Decisions, decision)
}

func (m *MockRecorder) RecordStorageError(operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StorageErrors = append(m.StorageErrors, operation)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testVerifier() pkgauth.CredentialVerifier {
	return pkgauth.NewBcryptVerifier(bcrypt.MinCost)
}

// gateFixture wires a LoginService to an in-memory store and a fake clock
type gateFixture struct {
	service *services.LoginService
	store   *repositories.MemoryStore
	clock   *fakeClock
	config  services.GateConfig
}

func newGateFixture(t *testing.T, config services.GateConfig, opts ...services.LoginServiceOption) *gateFixture {
	t.Helper()

	store := repositories.NewMemoryStore()
	clock := newFakeClock()
	logger := testLogger()

	opts = append([]services.LoginServiceOption{services.WithClock(clock.Now)}, opts...)
	service := services.NewLoginService(store, store, testVerifier(), config, logger, pkglogger.NewAuditLogger(logger), opts...)

	return &gateFixture{service: service, store: store, clock: clock, config: config}
}

func (f *gateFixture) register(t *testing.T, identity, secret string) *models.Account {
	t.Helper()

	account, err := f.service.Register(context.Background(), identity, secret, "")
	require.NoError(t, err)
	return account
}

func (f *gateFixture) login(t *testing.T, identity, secret, origin string) models.Decision {
	t.Helper()

	result, err := f.service.Login(context.Background(), identity, secret, origin)
	require.NoError(t, err)
	return result.Decision
}

func (f *gateFixture) identityFailures(t *testing.T, identity string) int {
	t.Helper()

	count, err := f.store.CountSince(context.Background(), identity, f.clock.Now().Add(-f.config.Window))
	require.NoError(t, err)
	return count
}

func (f *gateFixture) originFailures(t *testing.T, origin string) int {
	t.Helper()

	count, err := f.store.CountByOriginSince(context.Background(), origin, f.clock.Now().Add(-f.config.Window))
	require.NoError(t, err)
	return count
}

// countingVerifier wraps a real verifier and records the hashes it compares against
type countingVerifier struct {
	pkgauth.CredentialVerifier
	mu       sync.Mutex
	compared []string
}

func (v *countingVerifier) Verify(secret, hash string) bool {
	v.mu.Lock()
	v.compared = append(v.compared, hash)
	v.mu.Unlock()
	return v.CredentialVerifier.Verify(secret, hash)
}

func (v *countingVerifier) Compares() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.compared...)
}
