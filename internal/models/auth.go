package models

import "github.com/golang-jwt/jwt/v5"

// TokenClaims are the claims carried by an access token issued on ALLOWED
type TokenClaims struct {
	Type      string `json:"type"`
	AccountID string `json:"account_id"`
	Email     string `json:"email,omitempty"`
	jwt.RegisteredClaims
}
