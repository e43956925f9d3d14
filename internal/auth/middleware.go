package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/BradenHooton/gatekeeper/internal/models"
	pkghttp "github.com/BradenHooton/gatekeeper/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

// ClaimsContextKey is the key for storing token claims in context
const ClaimsContextKey contextKey = "claims"

// AuthMiddleware validates bearer access tokens and injects their claims into context
func AuthMiddleware(tm *TokenManager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				pkghttp.WriteError(w, http.StatusUnauthorized, "unauthorized", "missing authorization header")
				return
			}

			scheme, tokenString, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || tokenString == "" {
				pkghttp.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid authorization header format")
				return
			}

			claims, err := tm.ValidateToken(tokenString)
			if err != nil {
				pkghttp.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClaimsFromContext extracts token claims from request context
func GetClaimsFromContext(r *http.Request) *models.TokenClaims {
	claims, ok := r.Context().Value(ClaimsContextKey).(*models.TokenClaims)
	if !ok {
		return nil
	}
	return claims
}
