package middleware

import (
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/gatekeeper/pkg/http"
	"github.com/go-chi/httprate"
)

// RateLimitConfig holds the coarse request limit applied in front of the gate
type RateLimitConfig struct {
	RequestsPerMinute int
	IPConfig          *pkghttp.IPConfig
}

// DefaultAuthRateLimit returns the default limit for auth endpoints
func DefaultAuthRateLimit() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 60,
	}
}

// RateLimitByOrigin limits raw request volume per normalized origin. It counts
// every request, successful or not, and is independent of the failure ledger.
func RateLimitByOrigin(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return pkghttp.ExtractOrigin(r, config.IPConfig), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteError(w, http.StatusTooManyRequests, "rate_limited", "Too many requests, slow down")
		}),
	)
}
