package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/models"
	pkgauth "github.com/BradenHooton/gatekeeper/pkg/auth"
	pkglogger "github.com/BradenHooton/gatekeeper/pkg/logger"
)

// Audit reasons attached to each decision
const (
	reasonOriginThrottled     = "origin_throttled"
	reasonAccountSuspended    = "account_suspended"
	reasonSuspensionTriggered = "suspension_triggered"
	reasonUnknownIdentity     = "unknown_identity"
	reasonInvalidCredentials  = "invalid_credentials"
)

// DecisionRecorder receives per-decision telemetry
type DecisionRecorder interface {
	RecordDecision(decision models.Decision, elapsed time.Duration)
	RecordStorageError(operation string)
}

// SuspensionNotifier tells an account holder that their account was suspended
type SuspensionNotifier interface {
	NotifySuspension(ctx context.Context, account *models.Account, until time.Time) error
}

type noopRecorder struct{}

func (noopRecorder) RecordDecision(models.Decision, time.Duration) {}
func (noopRecorder) RecordStorageError(string)                     {}

// LoginResult is the outcome of a login request. Account is only set when the
// decision is ALLOWED.
type LoginResult struct {
	Decision            models.Decision
	Account             *models.Account
	SuspensionTriggered bool // this request caused the suspension
}

// LoginService is the login decision engine plus registration
type LoginService struct {
	accounts    AccountRepository
	ledger      AttemptLedger
	verifier    pkgauth.CredentialVerifier
	dummyHash   string // compared on paths without a stored hash
	guard       *OriginGuard
	suspensions *SuspensionState
	config      GateConfig
	now         func() time.Time
	notifier    SuspensionNotifier
	recorder    DecisionRecorder
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// LoginServiceOption customises a LoginService
type LoginServiceOption func(*LoginService)

// WithClock replaces the wall clock used to timestamp requests
func WithClock(now func() time.Time) LoginServiceOption {
	return func(s *LoginService) { s.now = now }
}

// WithSuspensionNotifier sends a notice whenever a suspension is triggered
func WithSuspensionNotifier(n SuspensionNotifier) LoginServiceOption {
	return func(s *LoginService) { s.notifier = n }
}

// WithDecisionRecorder attaches a metrics sink
func WithDecisionRecorder(r DecisionRecorder) LoginServiceOption {
	return func(s *LoginService) { s.recorder = r }
}

// NewLoginService creates a new LoginService
func NewLoginService(
	accounts AccountRepository,
	ledger AttemptLedger,
	verifier pkgauth.CredentialVerifier,
	config GateConfig,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
	opts ...LoginServiceOption,
) *LoginService {
	s := &LoginService{
		accounts:    accounts,
		ledger:      ledger,
		verifier:    verifier,
		guard:       NewOriginGuard(ledger, config.Window, config.OriginFailThreshold),
		suspensions: NewSuspensionState(accounts),
		config:      config,
		now:         time.Now,
		recorder:    noopRecorder{},
		logger:      logger,
		auditLogger: auditLogger,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Same cost as real hashes so every rejection pays one full compare
	if hash, err := verifier.Hash("gatekeeper-equal-work"); err == nil {
		s.dummyHash = hash
	} else {
		logger.Warn("failed to prepare equal-work hash", pkglogger.Err(err))
	}
	return s
}

// Login decides whether identity may log in from origin with secret.
//
// Checks run in a fixed order and the first one that triggers wins:
//  1. origin throttled: ORIGIN_THROTTLED, nothing recorded
//  2. account suspended: ACCOUNT_SUSPENDED, nothing recorded
//  3. unknown identity: failure recorded, DENIED
//  4. wrong secret: failure recorded, then ACCOUNT_SUSPENDED once the identity
//     reaches its threshold, otherwise DENIED
//  5. correct secret: identity history cleared, ALLOWED
//
// Any persistence failure is returned as an error wrapping
// models.ErrStorageUnavailable and never as a decision.
func (s *LoginService) Login(ctx context.Context, identity, secret, origin string) (*LoginResult, error) {
	start := time.Now()
	now := s.now()
	identity = models.NormalizeIdentity(identity)

	result, reason, err := s.decide(ctx, identity, secret, origin, now)
	if err != nil {
		s.recorder.RecordStorageError("login")
		s.logger.Error("login decision failed",
			slog.String("origin", origin),
			pkglogger.Err(err))
		return nil, err
	}

	s.recorder.RecordDecision(result.Decision, time.Since(start))

	event := pkglogger.AuditEvent{
		Email:    identity,
		Origin:   origin,
		Decision: result.Decision.String(),
		Reason:   reason,
		Success:  result.Decision == models.DecisionAllowed,
	}
	if result.Account != nil {
		event.AccountID = result.Account.ID
	}
	s.auditLogger.LogLoginDecision(event)

	return result, nil
}

func (s *LoginService) decide(ctx context.Context, identity, secret, origin string, now time.Time) (*LoginResult, string, error) {
	throttled, originFailures, err := s.checkOrigin(ctx, origin, now)
	if err != nil {
		return nil, "", err
	}
	if throttled {
		s.logger.Warn("origin throttled",
			slog.String("origin", origin),
			slog.Int("failed_attempts", originFailures))
		return &LoginResult{Decision: models.DecisionOriginThrottled}, reasonOriginThrottled, nil
	}

	account, err := s.lookupAccount(ctx, identity)
	if err != nil {
		return nil, "", err
	}

	if account != nil && IsSuspended(account, now) {
		s.burnCompare(secret)
		return &LoginResult{Decision: models.DecisionAccountSuspended}, reasonAccountSuspended, nil
	}

	if account == nil {
		s.burnCompare(secret)
		if err := s.recordFailure(ctx, identity, origin, now); err != nil {
			return nil, "", err
		}
		return &LoginResult{Decision: models.DecisionDenied}, reasonUnknownIdentity, nil
	}

	if s.verifier.Verify(secret, account.PasswordHash) {
		if err := s.clearFailures(ctx, identity); err != nil {
			return nil, "", err
		}
		return &LoginResult{Decision: models.DecisionAllowed, Account: account}, "", nil
	}

	if err := s.recordFailure(ctx, identity, origin, now); err != nil {
		return nil, "", err
	}

	failures, err := s.countFailures(ctx, identity, now)
	if err != nil {
		return nil, "", err
	}

	if failures < s.config.UserFailThreshold {
		return &LoginResult{Decision: models.DecisionDenied}, reasonInvalidCredentials, nil
	}

	until, err := s.suspend(ctx, account, now)
	if err != nil {
		return nil, "", err
	}

	s.logger.Warn("account suspended",
		slog.String("account_id", account.ID),
		slog.Int("failed_attempts", failures),
		slog.Time("suspended_until", until))
	s.notify(ctx, account, until)

	return &LoginResult{Decision: models.DecisionAccountSuspended, SuspensionTriggered: true}, reasonSuspensionTriggered, nil
}

// burnCompare runs a compare against a throwaway hash so unknown identities and
// suspended accounts cost as much as a wrong secret
func (s *LoginService) burnCompare(secret string) {
	if s.dummyHash != "" {
		s.verifier.Verify(secret, s.dummyHash)
	}
}

func (s *LoginService) checkOrigin(ctx context.Context, origin string, now time.Time) (bool, int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	return s.guard.IsThrottled(ctx, origin, now)
}

// lookupAccount returns nil without error when the identity is unknown
func (s *LoginService) lookupAccount(ctx context.Context, identity string) (*models.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	account, err := s.accounts.GetByEmail(ctx, identity)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageError("lookup account", err)
	}
	return account, nil
}

func (s *LoginService) recordFailure(ctx context.Context, identity, origin string, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	if err := s.ledger.Record(ctx, identity, origin, now); err != nil {
		return storageError("record failure", err)
	}
	return nil
}

func (s *LoginService) countFailures(ctx context.Context, identity string, now time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	count, err := s.ledger.CountSince(ctx, identity, now.Add(-s.config.Window))
	if err != nil {
		return 0, storageError("count identity failures", err)
	}
	return count, nil
}

func (s *LoginService) clearFailures(ctx context.Context, identity string) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	if err := s.ledger.ClearAll(ctx, identity); err != nil {
		return storageError("clear failures", err)
	}
	return nil
}

func (s *LoginService) suspend(ctx context.Context, account *models.Account, now time.Time) (time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	return s.suspensions.Suspend(ctx, account, now, s.config.SuspendDuration)
}

// notify is best effort; a failed notice never changes the decision
func (s *LoginService) notify(ctx context.Context, account *models.Account, until time.Time) {
	if s.notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	if err := s.notifier.NotifySuspension(ctx, account, until); err != nil {
		s.logger.Warn("failed to send suspension notice",
			slog.String("account_id", account.ID),
			pkglogger.Err(err))
	}
}

// Register creates an account for identity. A blank identity or secret is a
// validation error and an existing identity is a conflict; neither mutates state.
func (s *LoginService) Register(ctx context.Context, identity, secret, displayName string) (*models.Account, error) {
	identity = models.NormalizeIdentity(identity)
	if identity == "" || secret == "" {
		return nil, fmt.Errorf("%w: identity and secret are required", models.ErrValidation)
	}

	existing, err := s.lookupAccount(ctx, identity)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.auditLogger.LogRegistration(pkglogger.AuditEvent{
			Email:  identity,
			Reason: "already_exists",
		})
		return nil, models.ErrConflict
	}

	hash, err := s.verifier.Hash(secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrValidation, err)
	}

	createCtx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	account, err := s.accounts.Create(createCtx, &models.Account{
		Email:        identity,
		Name:         strings.TrimSpace(displayName),
		PasswordHash: hash,
		CreatedAt:    s.now(),
	})
	if errors.Is(err, models.ErrConflict) {
		return nil, models.ErrConflict
	}
	if err != nil {
		s.recorder.RecordStorageError("register")
		return nil, storageError("create account", err)
	}

	s.logger.Info("account registered", slog.String("account_id", account.ID))
	s.auditLogger.LogRegistration(pkglogger.AuditEvent{
		AccountID: account.ID,
		Email:     identity,
		Success:   true,
	})

	return account, nil
}
