package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/auth"
	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/BradenHooton/gatekeeper/internal/services"
	pkghttp "github.com/BradenHooton/gatekeeper/pkg/http"
	pkglogger "github.com/BradenHooton/gatekeeper/pkg/logger"
)

// Client-facing messages
const (
	msgInvalidCredentials  = "Invalid email or password"
	msgSuspendedStanding   = "Account suspended. Try again later."
	msgSuspendedTriggered  = "Account suspended due to multiple failed attempts."
	msgOriginThrottled     = "IP temporarily blocked due to excessive failed login attempts."
	msgStorageUnavailable  = "Service temporarily unavailable, please retry"
	msgCredentialsRequired = "Email and Password are required"
)

// GateService defines the login gate operations used by the handlers
type GateService interface {
	Login(ctx context.Context, identity, secret, origin string) (*services.LoginResult, error)
	Register(ctx context.Context, identity, secret, displayName string) (*models.Account, error)
}

// TokenIssuer issues the access token returned on ALLOWED
type TokenIssuer interface {
	GenerateAccessToken(account *models.Account) (string, error)
}

// AuthHandler handles login and registration HTTP requests
type AuthHandler struct {
	service     GateService
	tokens      TokenIssuer
	tokenExpiry time.Duration
	timing      *auth.TimingDelay
	ipConfig    *pkghttp.IPConfig
	logger      *slog.Logger
}

// NewAuthHandler creates a new AuthHandler. timing may be nil to disable
// response padding.
func NewAuthHandler(service GateService, tokens TokenIssuer, tokenExpiry time.Duration, timing *auth.TimingDelay, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service:     service,
		tokens:      tokens,
		tokenExpiry: tokenExpiry,
		timing:      timing,
		ipConfig:    ipConfig,
		logger:      logger,
	}
}

// Request DTOs

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"max=254"`
	Password string `json:"password" validate:"max=1024"`
}

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Name     string `json:"name" validate:"max=100"`
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=72"` // bcrypt input limit
}

// LoginResponse is returned on ALLOWED
type LoginResponse struct {
	Message     string `json:"message"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// MessageResponse is a plain acknowledgement
type MessageResponse struct {
	Message string `json:"message"`
}

// SessionResponse describes the bearer of a valid access token
type SessionResponse struct {
	AccountID string    `json:"account_id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login handles POST /api/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	// Empty credentials still go through the gate so a throttled origin stays
	// throttled and the attempt is recorded
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	origin := pkghttp.ExtractOrigin(r, h.ipConfig)

	result, err := h.service.Login(r.Context(), req.Email, req.Password, origin)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.pad(r.Context(), start, result.Decision == models.DecisionAllowed)

	switch result.Decision {
	case models.DecisionAllowed:
		h.writeLoginSuccess(w, result.Account)
	case models.DecisionOriginThrottled:
		pkghttp.WriteTooManyRequests(w, msgOriginThrottled)
	case models.DecisionAccountSuspended:
		if result.SuspensionTriggered {
			pkghttp.WriteForbidden(w, msgSuspendedTriggered)
		} else {
			pkghttp.WriteForbidden(w, msgSuspendedStanding)
		}
	default:
		pkghttp.WriteUnauthorized(w, msgInvalidCredentials)
	}
}

func (h *AuthHandler) writeLoginSuccess(w http.ResponseWriter, account *models.Account) {
	token, err := h.tokens.GenerateAccessToken(account)
	if err != nil {
		h.logger.Error("failed to generate access token",
			slog.String("account_id", account.ID),
			pkglogger.Err(err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{
		Message:     "Login successful",
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(h.tokenExpiry.Seconds()),
	})
}

// Register handles POST /api/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		pkghttp.WriteBadRequest(w, msgCredentialsRequired)
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	_, err := h.service.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrValidation):
			pkghttp.WriteBadRequest(w, msgCredentialsRequired)
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "Email already exists")
		default:
			h.writeServiceError(w, err)
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, MessageResponse{Message: "User registered successfully"})
}

// Session handles GET /api/session for a bearer of a valid access token
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r)
	if claims == nil {
		pkghttp.WriteError(w, http.StatusUnauthorized, "unauthorized", "missing session")
		return
	}

	resp := SessionResponse{AccountID: claims.AccountID, Email: claims.Email}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time
	}
	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// writeServiceError maps infrastructure failures; storage outages are retryable
func (h *AuthHandler) writeServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, models.ErrStorageUnavailable) {
		pkghttp.WriteServiceUnavailable(w, msgStorageUnavailable)
		return
	}

	h.logger.Error("unexpected gate error", pkglogger.Err(err))
	pkghttp.WriteInternalError(w, "Internal server error")
}

func (h *AuthHandler) pad(ctx context.Context, start time.Time, allowed bool) {
	if h.timing != nil {
		h.timing.WaitFrom(ctx, start, allowed)
	}
}
