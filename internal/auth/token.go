package auth

import (
	"fmt"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenTypeAccess = "access"

// TokenManager issues and validates the access tokens handed out on ALLOWED
type TokenManager struct {
	secret            []byte
	issuer            string
	accessTokenExpiry time.Duration
}

// NewTokenManager creates a new TokenManager
func NewTokenManager(secret, issuer string, accessExpiry time.Duration) *TokenManager {
	return &TokenManager{
		secret:            []byte(secret),
		issuer:            issuer,
		accessTokenExpiry: accessExpiry,
	}
}

// GenerateAccessToken creates a short-lived HS256 access token for account
func (tm *TokenManager) GenerateAccessToken(account *models.Account) (string, error) {
	now := time.Now()

	claims := &models.TokenClaims{
		Type:      tokenTypeAccess,
		AccountID: account.ID,
		Email:     account.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    tm.issuer,
			Subject:   account.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.accessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken verifies an access token and returns its claims
func (tm *TokenManager) ValidateToken(tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	}, jwt.WithIssuer(tm.issuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrUnauthorized, err)
	}

	if !token.Valid || claims.Type != tokenTypeAccess {
		return nil, models.ErrUnauthorized
	}

	return claims, nil
}
